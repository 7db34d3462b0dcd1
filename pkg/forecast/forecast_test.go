package forecast

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/metrics"
)

func TestObserveConstantSeriesShortCircuits(t *testing.T) {
	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	f := New(DefaultConfig(20), ins)
	series := make([]float64, 20)
	for i := range series {
		series[i] = 42
	}

	fc, err := f.Observe("firewall", "cpu", series)
	require.NoError(t, err)
	for i := 0; i < fc.Horizon; i++ {
		assert.Equal(t, 42.0, fc.Point[i])
		assert.Equal(t, 42.0, fc.Lower[i])
		assert.Equal(t, 42.0, fc.Upper[i])
	}
}

func TestObserveInsufficientHistoryIsForecastUnavailable(t *testing.T) {
	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	f := New(DefaultConfig(20), ins)
	_, err = f.Observe("firewall", "cpu", []float64{1, 2})
	require.Error(t, err)
}

// TestObserveRejectsShortNonConstantSeriesAtConfiguredWindow guards spec §4.5 step 1's
// preprocessing gate directly: a non-constant series shorter than W must be rejected
// even though it is long enough for fit.go's candidateFit to produce a low-order fit.
// Scenario E only ever feeds constant series, which Observe would also reject as
// constant if this gate were missing, so it cannot catch a regression here on its own.
func TestObserveRejectsShortNonConstantSeriesAtConfiguredWindow(t *testing.T) {
	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	f := New(DefaultConfig(20), ins)
	series := []float64{12, 19, 15, 22, 17}
	_, err = f.Observe("firewall", "cpu", series)
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.CodeForecastUnavailable))
}

func TestObserveReturnsAHorizonLengthForecast(t *testing.T) {
	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	f := New(DefaultConfig(30), ins)
	series := generateAR1(30, 0.5, 1.0, rand.New(rand.NewSource(1)))

	fc, err := f.Observe("firewall", "cpu", series)
	require.NoError(t, err)
	assert.Len(t, fc.Point, fc.Horizon)
	assert.Len(t, fc.Lower, fc.Horizon)
	assert.Len(t, fc.Upper, fc.Horizon)
	for i := range fc.Point {
		assert.LessOrEqual(t, fc.Lower[i], fc.Point[i])
		assert.GreaterOrEqual(t, fc.Upper[i], fc.Point[i])
	}
}

// generateAR1 produces a stationary AR(1) series x_t = phi*x_{t-1} + e_t, e_t ~ N(0, sigma).
func generateAR1(n int, phi, sigma float64, r *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + sigma*r.NormFloat64()
	}
	return out
}

// TestOneStepCoverageMatchesNominalConfidence validates property 6: over many sliding
// windows of a stationary synthetic series, the fraction of one-step-ahead actuals falling
// within the returned [lower, upper] band at 95% confidence should land close to 0.95,
// specifically within spec's tolerance band of [0.9, 0.99]. Only the first forecast step
// is checked because its error-propagation formula is exact (no multi-step approximation),
// which is what makes this property testable without running the fit live.
func TestOneStepCoverageMatchesNominalConfidence(t *testing.T) {
	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	const window = 40
	const trials = 600
	full := generateAR1(window+trials+1, 0.5, 1.0, rand.New(rand.NewSource(7)))

	f := New(DefaultConfig(window), ins)

	hits, attempts := 0, 0
	for t := window; t < len(full)-1; t++ {
		w := full[t-window : t]
		fc, err := f.Observe("firewall", "cpu", w)
		if err != nil {
			continue
		}
		actual := full[t]
		attempts++
		if actual >= fc.Lower[0] && actual <= fc.Upper[0] {
			hits++
		}
	}

	require.Greater(t, attempts, trials/2, "expected most windows to produce a usable forecast")
	coverage := float64(hits) / float64(attempts)
	assert.GreaterOrEqual(t, coverage, 0.9)
	assert.LessOrEqual(t, coverage, 0.99)
}
