package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// autocorrelation computes the sample ACF of centered at every lag in [0, maxLag].
func autocorrelation(centered []float64, maxLag int) []float64 {
	n := len(centered)
	var c0 float64
	for _, v := range centered {
		c0 += v * v
	}
	acf := make([]float64, maxLag+1)
	if c0 == 0 {
		return acf
	}
	for lag := 0; lag <= maxLag; lag++ {
		var ck float64
		for t := 0; t < n-lag; t++ {
			ck += centered[t] * centered[t+lag]
		}
		acf[lag] = ck / c0
	}
	return acf
}

// estimateSeasonality finds the lag in [2, len(series)/2] with the strongest significant
// autocorrelation, per spec §4.5 step 2. A peak is significant when it exceeds the
// standard 2/sqrt(n) large-sample confidence bound. Returns (0, false) when no lag
// qualifies, meaning the series should be treated as non-seasonal.
func estimateSeasonality(series []float64) (int, bool) {
	n := len(series)
	maxLag := n / 2
	if maxLag < 2 {
		return 0, false
	}

	mean := stat.Mean(series, nil)
	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}
	acf := autocorrelation(centered, maxLag)

	threshold := 2.0 / math.Sqrt(float64(n))
	bestLag := 0
	bestVal := threshold
	for lag := 2; lag <= maxLag; lag++ {
		v := math.Abs(acf[lag])
		if v > bestVal {
			bestVal = v
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, false
	}
	return bestLag, true
}
