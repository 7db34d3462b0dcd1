package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// predictDiffed produces h-step-ahead point forecasts in differenced space, recursively
// applying the fitted AR/seasonal-AR/MA/seasonal-MA equation with future innovations
// taken as zero (the standard ARMA forecasting convention).
func predictDiffed(m Model, history, residHistory []float64, horizon int) ([]float64, []float64) {
	period := m.Order.Period
	extendedY := append([]float64(nil), history...)
	extendedE := append([]float64(nil), residHistory...)
	n := len(history)
	// residHistory covers only the last len(residHistory) points of history (the fit drops
	// its leading lags), so history index t maps to residual index t-residOffset.
	residOffset := n - len(residHistory)

	forecasts := make([]float64, horizon)
	for step := 0; step < horizon; step++ {
		t := n + step
		val := m.Intercept
		for i := 1; i <= m.Order.P; i++ {
			val += m.ARCoeffs[i-1] * extendedY[t-i]
		}
		for i := 1; i <= m.Order.SeasonalP; i++ {
			idx := t - i*period
			if idx >= 0 {
				val += m.SeasonalARCoeffs[i-1] * extendedY[idx]
			}
		}
		for i := 1; i <= m.Order.Q; i++ {
			idx := t - i - residOffset
			if idx >= 0 && idx < len(extendedE) {
				val += m.MACoeffs[i-1] * extendedE[idx]
			}
		}
		for i := 1; i <= m.Order.SeasonalQ; i++ {
			idx := t - i*period - residOffset
			if idx >= 0 && idx < len(extendedE) {
				val += m.SeasonalMACoeffs[i-1] * extendedE[idx]
			}
		}
		forecasts[step] = val
		extendedY = append(extendedY, val)
		extendedE = append(extendedE, 0) // future innovations assumed zero
	}

	// step-ahead forecast error variance grows with the number of accumulated future
	// innovations; approximate it as a linearly increasing multiple of the one-step
	// residual variance, which is exact for an MA(h-1) representation and a reasonable
	// bound for the low-order AR/seasonal models fit here.
	variances := make([]float64, horizon)
	for step := range variances {
		variances[step] = m.ResidualVariance * float64(step+1)
	}
	return forecasts, variances
}

// integrate undoes d rounds of first-differencing, turning a forecast made in differenced
// space back into the original metric's scale. levelTails[i] is the last observed value of
// the series after i rounds of differencing (levelTails[0] is the last raw observation).
func integrate(diffedForecast []float64, levelTails []float64, d int) []float64 {
	current := append([]float64(nil), diffedForecast...)
	for level := d; level >= 1; level-- {
		last := levelTails[level-1]
		next := make([]float64, len(current))
		for i, v := range current {
			last = last + v
			next[i] = last
		}
		current = next
	}
	return current
}

// buildForecast turns differenced point/variance forecasts into a Forecast in the
// original scale, with symmetric Gaussian confidence bounds per spec §3/§4.5.
func buildForecast(m Model, history, residHistory []float64, levelTails []float64, horizon int, confidence float64) Forecast {
	diffedPoint, variances := predictDiffed(m, history, residHistory, horizon)
	point := integrate(diffedPoint, levelTails, m.Order.D)

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + confidence/2)

	lower := make([]float64, horizon)
	upper := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		// Integration only re-accumulates the mean path; the spread of each integrated
		// step is the cumulative sum of the underlying per-step variances.
		cumVar := 0.0
		for s := 0; s <= i; s++ {
			cumVar += variances[s]
		}
		width := z * math.Sqrt(cumVar)
		lower[i] = point[i] - width
		upper[i] = point[i] + width
	}

	return Forecast{
		Horizon:    horizon,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
		Confidence: confidence,
	}
}
