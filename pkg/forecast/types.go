// Package forecast implements the forecaster (C5): a per-(VNFType, metric) seasonal
// ARIMA model fitted from scratch via ordinary least squares, per spec §4.5 and the
// design note in §9 permitting a simplified SARIMA when no mature library is available.
package forecast

import "time"

// Order is a seasonal ARIMA order (p,d,q)(P,D,Q)_s.
type Order struct {
	P, D, Q    int
	SeasonalP  int
	SeasonalD  int
	SeasonalQ  int
	Period     int // s; 0 when non-seasonal
}

func (o Order) complexity() int {
	return o.P + o.Q + o.SeasonalP + o.SeasonalQ
}

// Model holds the fitted parameters and diagnostics for one (VNFType, metric) pair.
type Model struct {
	Order            Order
	ARCoeffs         []float64
	MACoeffs         []float64
	SeasonalARCoeffs []float64
	SeasonalMACoeffs []float64
	Intercept        float64
	ResidualVariance float64
	AIC              float64
	LastTrainedAt    time.Time
	trainedOnLen     int
	residualHistory  []float64 // in-sample residuals of the selected fit, the past innovations for the MA terms
	constant         bool
	constantValue    float64
}

// Forecast is a point prediction plus confidence bounds at horizon h (spec §3).
type Forecast struct {
	Horizon    int
	Point      []float64
	Lower      []float64
	Upper      []float64
	Confidence float64
}

// Config bundles the forecaster's tunable parameters, mirroring the defaults of spec §4.5
// and the configuration table of spec §6.
type Config struct {
	WindowSize     int // W
	MaxDifferencing int // d_max, default 2
	MaxP, MaxQ     int // p_max, q_max, default 3
	Horizon        int // h, default 3
	Confidence     float64 // alpha, default 0.95
	AICEpsilon     float64 // tie-break tolerance, default 2.0
	RetrainEvery   int // M, default W/4
	RetrainMAPE    float64 // default 0.20
	RetrainWindowK int // K predictions over which MAPE is evaluated, default 5
}

// DefaultConfig matches the spec's literal defaults.
func DefaultConfig(window int) Config {
	if window <= 0 {
		window = 20
	}
	retrainEvery := window / 4
	if retrainEvery < 1 {
		retrainEvery = 1
	}
	return Config{
		WindowSize:      window,
		MaxDifferencing: 2,
		MaxP:            3,
		MaxQ:            3,
		Horizon:         3,
		Confidence:      0.95,
		AICEpsilon:      2.0,
		RetrainEvery:    retrainEvery,
		RetrainMAPE:     0.20,
		RetrainWindowK:  5,
	}
}
