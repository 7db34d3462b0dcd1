// Package simdriver is the orchestrator's in-process vnf.Driver, standing in for
// whatever opaque container capability set spec §6 says any adapter may satisfy. There
// is no production container backend wired anywhere in this repo, the same way the
// teacher's own main.go demonstrates slice deployment against generateMockSites and
// NewMockMetricsProvider rather than a real cluster: this keeps the CLI and the e2e
// scenario suite runnable standalone, against the exact same Driver implementation.
package simdriver

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Driver is a deterministic, in-memory vnf.Driver. Every container it "creates" carries
// synthetic telemetry a caller can drive directly via SetMetrics.
type Driver struct {
	mu         sync.Mutex
	containers map[string]*container
	rnd        *rand.Rand
}

type container struct {
	image   string
	running bool
	metrics vnf.Metrics
}

// New builds a Driver seeded for reproducible synthetic telemetry.
func New(seed int64) *Driver {
	return &Driver{
		containers: make(map[string]*container),
		rnd:        rand.New(rand.NewSource(seed)),
	}
}

func (d *Driver) Create(image string, env map[string]string, limits vnf.ResourceLimits) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.containers[id] = &container{
		image:   image,
		running: true,
		metrics: vnf.Metrics{CPUPercent: 20 + d.rnd.Float64()*10, MemoryPercent: 25 + d.rnd.Float64()*10, LatencyMS: 50, ThroughputRPS: 100},
	}
	return id, nil
}

func (d *Driver) Destroy(containerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.containers, containerID)
	return nil
}

func (d *Driver) Inspect(containerID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.containers[containerID]
	return ok && c.running, nil
}

func (d *Driver) ExecProbe(containerID string, command []string) (vnf.ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok && c.running {
		return vnf.ProbeResult{ExitCode: 0}, nil
	}
	return vnf.ProbeResult{ExitCode: 1}, nil
}

// SetMetrics overrides a container's synthetic telemetry, so a caller can drive a
// specific CPU/latency trajectory without a real workload behind it.
func (d *Driver) SetMetrics(containerID string, m vnf.Metrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[containerID]; ok {
		c.metrics = m
	}
}

func (d *Driver) metricsOf(containerID string) (vnf.Metrics, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.containers[containerID]
	if !ok {
		return vnf.Metrics{}, false
	}
	return c.metrics, true
}

// ProbeFuncFor builds a scrape.ProbeFunc over vnfCtrl, resolving each Instance to its
// backing simulated container via vnf.Controller.ContainerID.
func (d *Driver) ProbeFuncFor(vnfCtrl *vnf.Controller) func(ctx context.Context, inst *vnf.Instance) (vnf.Metrics, error) {
	return func(ctx context.Context, inst *vnf.Instance) (vnf.Metrics, error) {
		cid, ok := vnfCtrl.ContainerID(inst.ID)
		if !ok {
			return vnf.Metrics{}, context.DeadlineExceeded
		}
		m, ok := d.metricsOf(cid)
		if !ok {
			return vnf.Metrics{}, context.DeadlineExceeded
		}
		m.ScrapedAt = time.Now()
		return m, nil
	}
}
