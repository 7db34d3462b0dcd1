package forecast

import "math"

// longARResiduals fits a long AR(k) model by OLS and returns its one-step residuals,
// used as proxy innovations for the Hannan-Rissanen style linearization of the MA terms
// below. k is chosen generously relative to series length since this model is discarded
// after producing residuals.
func longARResiduals(series []float64, k int) []float64 {
	n := len(series)
	resid := make([]float64, n)
	if k < 1 || n <= k+1 {
		return resid
	}
	rows := n - k
	X := make([][]float64, rows)
	y := make([]float64, rows)
	for i := k; i < n; i++ {
		row := make([]float64, k+1)
		row[0] = 1
		for l := 1; l <= k; l++ {
			row[l] = series[i-l]
		}
		X[i-k] = row
		y[i-k] = series[i]
	}
	beta, _, ok := olsFit(X, y)
	if !ok {
		return resid
	}
	for i := k; i < n; i++ {
		fitted := beta[0]
		for l := 1; l <= k; l++ {
			fitted += beta[l] * series[i-l]
		}
		resid[i] = series[i] - fitted
	}
	return resid
}

// candidateFit is the outcome of fitting one (p,q,P,Q) combination via linearized
// (Hannan-Rissanen) least squares: regress y_t on its own lags, its seasonal lags, the
// proxy innovations at lags 1..q, and the seasonal proxy innovations, plus an intercept.
func candidateFit(series []float64, order Order, proxyResid []float64) (Model, []float64, bool) {
	n := len(series)
	period := order.Period
	maxLag := order.P
	if period > 0 && order.SeasonalP*period > maxLag {
		maxLag = order.SeasonalP * period
	}
	if order.Q > maxLag {
		maxLag = order.Q
	}
	if period > 0 && order.SeasonalQ*period > maxLag {
		maxLag = order.SeasonalQ * period
	}
	if n <= maxLag+3 {
		return Model{}, nil, false
	}

	nParams := 1 + order.P + order.Q + order.SeasonalP + order.SeasonalQ
	rows := n - maxLag
	X := make([][]float64, rows)
	y := make([]float64, rows)
	for i := maxLag; i < n; i++ {
		row := make([]float64, 0, nParams)
		row = append(row, 1)
		for l := 1; l <= order.P; l++ {
			row = append(row, series[i-l])
		}
		for l := 1; l <= order.SeasonalP; l++ {
			row = append(row, series[i-l*period])
		}
		for l := 1; l <= order.Q; l++ {
			row = append(row, proxyResid[i-l])
		}
		for l := 1; l <= order.SeasonalQ; l++ {
			row = append(row, proxyResid[i-l*period])
		}
		X[i-maxLag] = row
		y[i-maxLag] = series[i]
	}

	beta, residVar, ok := olsFit(X, y)
	if !ok {
		return Model{}, nil, false
	}

	idx := 1
	ar := append([]float64(nil), beta[idx:idx+order.P]...)
	idx += order.P
	sar := append([]float64(nil), beta[idx:idx+order.SeasonalP]...)
	idx += order.SeasonalP
	ma := append([]float64(nil), beta[idx:idx+order.Q]...)
	idx += order.Q
	sma := append([]float64(nil), beta[idx:idx+order.SeasonalQ]...)

	resid := make([]float64, rows)
	for i, row := range X {
		fitted := 0.0
		for j, b := range beta {
			fitted += b * row[j]
		}
		resid[i] = y[i] - fitted
	}

	aic := float64(rows)*math.Log(residVar) + 2*float64(nParams)

	m := Model{
		Order:            order,
		ARCoeffs:         ar,
		MACoeffs:         ma,
		SeasonalARCoeffs: sar,
		SeasonalMACoeffs: sma,
		Intercept:        beta[0],
		ResidualVariance: residVar,
		AIC:              aic,
		trainedOnLen:     n,
	}
	return m, resid, true
}

// selectOrder grid-searches (p,q) and, when seasonal is true, (P,Q) with D fixed at 1,
// picking the candidate with lowest AIC among fits whose residuals pass the Ljung-Box
// independence test; ties within cfg.AICEpsilon are broken by lower model complexity,
// per spec §4.5 step 3.
func selectOrder(diffed []float64, d int, seasonal bool, period int, cfg Config) (Model, bool) {
	proxyK := cfg.MaxP + cfg.MaxQ + 2
	if proxyK > len(diffed)-2 {
		proxyK = len(diffed) - 2
	}
	proxyResid := longARResiduals(diffed, maxInt(proxyK, 1))

	lbLags := minInt(10, len(diffed)/5)
	if lbLags < 1 {
		lbLags = 1
	}

	var best Model
	var bestResid []float64
	found := false

	seasonalPRange := []int{0}
	seasonalQRange := []int{0}
	seasonalD := 0
	if seasonal {
		seasonalPRange = []int{0, 1}
		seasonalQRange = []int{0, 1}
		seasonalD = 1
	}

	for p := 0; p <= cfg.MaxP; p++ {
		for q := 0; q <= cfg.MaxQ; q++ {
			for _, sp := range seasonalPRange {
				for _, sq := range seasonalQRange {
					if p == 0 && q == 0 && sp == 0 && sq == 0 {
						continue
					}
					order := Order{P: p, D: d, Q: q, SeasonalP: sp, SeasonalD: seasonalD, SeasonalQ: sq, Period: period}
					m, resid, ok := candidateFit(diffed, order, proxyResid)
					if !ok {
						continue
					}
					if !ljungBoxPasses(resid, lbLags) {
						continue
					}
					if !found {
						best, bestResid, found = m, resid, true
						continue
					}
					if m.AIC < best.AIC-cfg.AICEpsilon {
						best, bestResid = m, resid
					} else if math.Abs(m.AIC-best.AIC) <= cfg.AICEpsilon && m.Order.complexity() < best.Order.complexity() {
						best, bestResid = m, resid
					}
				}
			}
		}
	}

	if found {
		best.residualHistory = bestResid
	}
	return best, found
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
