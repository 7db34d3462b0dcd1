package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	reg := New()

	c1, err := reg.GetOrCreateCounter("a", []string{"type"}, "test counter")
	require.NoError(t, err)
	c2, err := reg.GetOrCreateCounter("a", []string{"type"}, "test counter")
	require.NoError(t, err)

	assert.Same(t, c1, c2)
}

func TestGetOrCreateRejectsIncompatibleSchema(t *testing.T) {
	reg := New()

	_, err := reg.GetOrCreateCounter("a", []string{"type"}, "test counter")
	require.NoError(t, err)

	_, err = reg.GetOrCreateGauge("a", []string{"type"}, "test counter as gauge")
	assert.Error(t, err)

	_, err = reg.GetOrCreateCounter("a", []string{"type", "extra"}, "test counter, extra label")
	assert.Error(t, err)
}

func TestMetricsExpositionDeterminism(t *testing.T) {
	// Scenario F: two series for a single metric name, each incremented by 3.
	reg := New()
	c, err := reg.GetOrCreateCounter("a", []string{"type"}, "test counter")
	require.NoError(t, err)

	c.WithLabelValues("x").Add(3)
	c.WithLabelValues("y").Add(3)

	assert.Equal(t, float64(3), testutil.ToFloat64(c.WithLabelValues("x")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.WithLabelValues("y")))
}

func TestInstrumentsRegistersAllRequired(t *testing.T) {
	reg := New()
	ins, err := NewInstruments(reg)
	require.NoError(t, err)

	assert.NotNil(t, ins.VNFInstancesTotal)
	assert.NotNil(t, ins.VNFCPUUsage)
	assert.NotNil(t, ins.VNFMemoryUsage)
	assert.NotNil(t, ins.VNFProcessingLatency)
	assert.NotNil(t, ins.ScalingActionsTotal)
	assert.NotNil(t, ins.ForecastAccuracy)
	assert.NotNil(t, ins.SFCRequestsTotal)
	assert.NotNil(t, ins.DRLEpisodeReward)
}

func TestStartSecondCallIsNoOp(t *testing.T) {
	reg := New()
	err1 := reg.Start("127.0.0.1:0")
	require.NoError(t, err1)

	err2 := reg.Start("127.0.0.1:0")
	assert.NoError(t, err2)
}
