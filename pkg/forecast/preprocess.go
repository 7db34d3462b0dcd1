package forecast

import "math"

// difference applies first-differencing d times.
func difference(series []float64, d int) []float64 {
	out := append([]float64(nil), series...)
	for i := 0; i < d; i++ {
		if len(out) < 2 {
			return out
		}
		next := make([]float64, len(out)-1)
		for j := 1; j < len(out); j++ {
			next[j-1] = out[j] - out[j-1]
		}
		out = next
	}
	return out
}

// adfStationary runs a simplified augmented Dickey-Fuller test: regress delta(y_t) on
// y_{t-1} (and one lagged delta term to absorb short-run autocorrelation) and compares the
// t-statistic on the y_{t-1} coefficient against the standard 5% critical value for a
// no-trend, no-intercept specification (-2.89, the commonly tabulated MacKinnon value).
// Returns true when the series is judged stationary.
func adfStationary(series []float64) bool {
	n := len(series)
	if n < 4 {
		return false
	}
	// y_t - y_{t-1} = gamma * y_{t-1} + phi * (y_{t-1} - y_{t-2}) + e_t
	rows := n - 2
	X := make([][]float64, rows)
	y := make([]float64, rows)
	for i := 2; i < n; i++ {
		X[i-2] = []float64{series[i-1], series[i-1] - series[i-2]}
		y[i-2] = series[i] - series[i-1]
	}
	beta, residVar, ok := olsFit(X, y)
	if !ok || len(beta) < 1 {
		return false
	}

	gamma := beta[0]
	xtx := computeXtXInverse(X)
	if xtx == nil {
		return false
	}
	se := math.Sqrt(residVar * xtx[0])
	if se == 0 {
		return gamma < 0
	}
	tStat := gamma / se
	const criticalValue5pct = -2.89
	return tStat < criticalValue5pct
}

// preprocess differences series until adfStationary accepts it or dMax is reached, per
// spec §4.5 step 1. Returns the differenced series, the differencing order applied, and
// whether stationarity was actually achieved (fit proceeds regardless, using dMax if not).
func preprocess(series []float64, dMax int) (diffed []float64, d int, stationary bool) {
	current := series
	for d = 0; d <= dMax; d++ {
		if adfStationary(current) {
			return current, d, true
		}
		if d == dMax {
			break
		}
		current = difference(series, d+1)
	}
	return current, dMax, false
}

// differenceLevels returns series differenced 0..d times, each level kept in full so the
// forecaster can read off the trailing values needed to integrate a forecast back to the
// original scale.
func differenceLevels(series []float64, d int) [][]float64 {
	levels := make([][]float64, d+1)
	levels[0] = series
	for i := 1; i <= d; i++ {
		levels[i] = difference(series, i)
	}
	return levels
}

// isConstant reports whether every value in series is numerically identical, the
// boundary case of spec §4.5: "if the series is identically constant, return the
// constant as the forecast with zero-width bounds."
func isConstant(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	first := series[0]
	for _, v := range series[1:] {
		if v != first {
			return 0, false
		}
	}
	return first, true
}
