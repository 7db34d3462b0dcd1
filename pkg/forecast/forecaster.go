// Package forecast implements the forecaster (C5).
package forecast

import (
	"math"
	"sync"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/metrics"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

type seriesKey struct {
	vnfType vnf.VNFType
	metric  string
}

// state tracks one (VNFType, metric) model plus the bookkeeping needed for adaptive
// retraining: how many fresh samples have arrived since the last fit, and the trailing
// errors of predictions already validated against real observations.
type state struct {
	model           Model
	diffedHistory   []float64
	residHistory    []float64
	levelTails      []float64
	samplesSinceFit int
	trailingErrs    []float64 // most recent RetrainWindowK absolute percentage errors
	pendingPoint    float64
	havePending     bool
}

// Forecaster fits and serves per-(VNFType, metric) SARIMA models over the scraper's
// bounded series, retraining adaptively per spec §4.5 step 4 rather than on a fixed
// schedule.
type Forecaster struct {
	mu    sync.Mutex
	cfg   Config
	ins   *metrics.Instruments
	state map[seriesKey]*state
}

// New builds a Forecaster against cfg, recording accuracy into ins.
func New(cfg Config, ins *metrics.Instruments) *Forecaster {
	return &Forecaster{
		cfg:   cfg,
		ins:   ins,
		state: make(map[seriesKey]*state),
	}
}

// Observe feeds one window's worth of samples for (vnfType, metric) and returns a fresh
// forecast, fitting or refitting the model as needed. series must already be in the
// scraper's chronological order (oldest first).
func (f *Forecaster) Observe(vnfType vnf.VNFType, metric string, series []float64) (Forecast, error) {
	if len(series) < f.cfg.WindowSize {
		return Forecast{}, apierrors.ForecastUnavailable("insufficient history to fit a model")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := seriesKey{vnfType, metric}
	st := f.state[key]

	if constVal, ok := isConstant(series); ok {
		// Spec §4.5 boundary: a flat series forecasts itself with zero-width bounds,
		// no fit required.
		fc := Forecast{
			Horizon:    f.cfg.Horizon,
			Point:      repeat(constVal, f.cfg.Horizon),
			Lower:      repeat(constVal, f.cfg.Horizon),
			Upper:      repeat(constVal, f.cfg.Horizon),
			Confidence: f.cfg.Confidence,
		}
		f.state[key] = &state{model: Model{constant: true, constantValue: constVal}}
		return fc, nil
	}

	needsFit := st == nil || st.model.constant || f.shouldRetrain(st, len(series))
	if needsFit {
		fitted, ok := f.fit(series)
		if !ok {
			if st != nil && !st.model.constant {
				fc := buildForecast(st.model, st.diffedHistory, st.residHistory, st.levelTails, f.cfg.Horizon, f.cfg.Confidence)
				return fc, nil
			}
			return Forecast{}, apierrors.ForecastUnavailable("no candidate order passed residual diagnostics")
		}
		st = fitted
		f.state[key] = st
	} else {
		st.diffedHistory = differenceLevels(series, st.model.Order.D)[st.model.Order.D]
		st.levelTails = tailsOf(differenceLevels(series, st.model.Order.D))
		st.samplesSinceFit++
	}

	fc := buildForecast(st.model, st.diffedHistory, st.residHistory, st.levelTails, f.cfg.Horizon, f.cfg.Confidence)

	if len(fc.Point) > 0 {
		if st.havePending {
			actual := series[len(series)-1]
			f.recordAccuracy(vnfType, metric, st, st.pendingPoint, actual)
		}
		st.pendingPoint = fc.Point[0]
		st.havePending = true
	}

	return fc, nil
}

func (f *Forecaster) shouldRetrain(st *state, seriesLen int) bool {
	if st.samplesSinceFit >= f.cfg.RetrainEvery {
		return true
	}
	if len(st.trailingErrs) >= f.cfg.RetrainWindowK {
		mape := mean(st.trailingErrs)
		if mape > f.cfg.RetrainMAPE {
			return true
		}
	}
	return false
}

func (f *Forecaster) fit(series []float64) (*state, bool) {
	diffed, d, _ := preprocess(series, f.cfg.MaxDifferencing)
	period, seasonal := estimateSeasonality(diffed)

	model, ok := selectOrder(diffed, d, seasonal, period, f.cfg)
	if !ok {
		return nil, false
	}

	levels := differenceLevels(series, d)
	return &state{
		model:         model,
		diffedHistory: levels[d],
		residHistory:  model.residualHistory,
		levelTails:    tailsOf(levels),
	}, true
}

func (f *Forecaster) recordAccuracy(vnfType vnf.VNFType, metric string, st *state, predicted, actual float64) {
	var ape float64
	if actual != 0 {
		ape = math.Abs((actual - predicted) / actual)
	} else {
		ape = math.Abs(actual - predicted)
	}
	st.trailingErrs = append(st.trailingErrs, ape)
	if len(st.trailingErrs) > f.cfg.RetrainWindowK {
		st.trailingErrs = st.trailingErrs[len(st.trailingErrs)-f.cfg.RetrainWindowK:]
	}
	if f.ins != nil {
		f.ins.ForecastAccuracy.WithLabelValues(string(vnfType), metric).Observe(ape)
	}
}

func tailsOf(levels [][]float64) []float64 {
	tails := make([]float64, len(levels)-1)
	for i := 0; i < len(levels)-1; i++ {
		l := levels[i]
		if len(l) == 0 {
			tails[i] = 0
			continue
		}
		tails[i] = l[len(l)-1]
	}
	return tails
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}
