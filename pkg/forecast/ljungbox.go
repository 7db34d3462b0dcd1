package forecast

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// ljungBoxPValue computes the Ljung-Box Q statistic over lags 1..h on residuals and
// returns its p-value against a chi-squared(h) null of no residual autocorrelation.
// A low p-value means the residuals still carry structure the fit failed to capture.
func ljungBoxPValue(residuals []float64, h int) float64 {
	n := len(residuals)
	if n <= h+1 || h < 1 {
		return 0
	}

	mean := 0.0
	for _, v := range residuals {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, v := range residuals {
		centered[i] = v - mean
	}
	acf := autocorrelation(centered, h)

	q := 0.0
	for k := 1; k <= h; k++ {
		q += (acf[k] * acf[k]) / float64(n-k)
	}
	q *= float64(n) * float64(n+2)

	dist := distuv.ChiSquared{K: float64(h)}
	return 1 - dist.CDF(q)
}

// ljungBoxPasses reports whether the residual series passes the Ljung-Box independence
// test at the standard 5% significance level, per spec §4.5 step 3.
func ljungBoxPasses(residuals []float64, h int) bool {
	return ljungBoxPValue(residuals, h) >= 0.05
}
