package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri0013/vnf-project/pkg/metrics"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

func TestSeriesDropsSamplesOlderThanWindow(t *testing.T) {
	s := NewSeries(3)
	now := time.Now()
	s.Append(now, 1)
	s.Append(now.Add(time.Second), 2)
	s.Append(now.Add(2*time.Second), 3)
	s.Append(now.Add(3*time.Second), 4)

	assert.Equal(t, []float64{2, 3, 4}, s.Values())
}

func TestScraperAggregatesMeanAndSum(t *testing.T) {
	instA := &vnf.Instance{ID: "a", Type: "firewall"}
	instB := &vnf.Instance{ID: "b", Type: "firewall"}
	instances := func(t vnf.VNFType) []*vnf.Instance { return []*vnf.Instance{instA, instB} }

	probe := func(ctx context.Context, inst *vnf.Instance) (vnf.Metrics, error) {
		if inst.ID == "a" {
			return vnf.Metrics{CPUPercent: 40, MemoryPercent: 50, LatencyMS: 10, ThroughputRPS: 100}, nil
		}
		return vnf.Metrics{CPUPercent: 60, MemoryPercent: 70, LatencyMS: 20, ThroughputRPS: 200}, nil
	}

	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	s := New(instances, []vnf.VNFType{"firewall"}, probe, ins, time.Hour, time.Second, 3, 20)
	s.tick(context.Background())

	cpuSeries := s.Series("firewall", "cpu")
	require.Equal(t, 1, cpuSeries.Len())
	assert.Equal(t, float64(50), cpuSeries.Values()[0]) // mean(40,60)

	throughputSeries := s.Series("firewall", "throughput")
	assert.Equal(t, float64(300), throughputSeries.Values()[0]) // sum(100,200)
}

func TestScraperExcludesAfterConsecutiveFailures(t *testing.T) {
	inst := &vnf.Instance{ID: "a", Type: "firewall"}
	instances := func(t vnf.VNFType) []*vnf.Instance { return []*vnf.Instance{inst} }
	probe := func(ctx context.Context, inst *vnf.Instance) (vnf.Metrics, error) {
		return vnf.Metrics{}, errors.New("probe failed")
	}

	reg := metrics.New()
	ins, err := metrics.NewInstruments(reg)
	require.NoError(t, err)

	s := New(instances, []vnf.VNFType{"firewall"}, probe, ins, time.Hour, time.Second, 3, 20)
	s.tick(context.Background())
	assert.False(t, s.IsUnhealthy("a"))
	s.tick(context.Background())
	assert.False(t, s.IsUnhealthy("a"))
	s.tick(context.Background())
	assert.True(t, s.IsUnhealthy("a"))
}
