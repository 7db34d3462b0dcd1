// Package vnf implements the instance driver (C3): VNFType catalog, Instance and
// InstancePool bookkeeping, and the opaque container-capability Driver interface.
package vnf

import (
	"time"

	"github.com/sri0013/vnf-project/pkg/lifecycle"
)

// VNFType is a closed-set tag catalogued at config load (spec §3, §9 Open Question 2:
// placeholder and "real" VNFs are indistinguishable to the orchestrator).
type VNFType string

// Metrics is the most recently scraped snapshot for one Instance.
type Metrics struct {
	CPUPercent     float64
	MemoryPercent  float64
	LatencyMS      float64
	ThroughputRPS  float64
	ScrapedAt      time.Time
}

// Instance is a running VNF, owned by the pool for its type. C3 drives its lifecycle
// transitions; the scraper (C2) records LastMetrics.
type Instance struct {
	ID          string
	Type        VNFType
	CreatedAt   time.Time
	machine     *lifecycle.Machine
	LastMetrics Metrics
	consecutiveProbeFailures int
	reservations int
}

// State returns the instance's current lifecycle state.
func (i *Instance) State() lifecycle.State {
	return i.machine.Current()
}

// Reservations returns the instance's current chain-reservation count.
func (i *Instance) Reservations() int {
	return i.reservations
}

// ResourceLimits bounds what the container driver may allocate to a new instance.
type ResourceLimits struct {
	CPUMillicores int
	MemoryMB      int
}

// ProbeResult is the outcome of one exec-probe call.
type ProbeResult struct {
	ExitCode int
}

// Driver is the opaque container capability set of spec §6: any adapter implementing it
// is an acceptable backing for instance lifecycle operations.
type Driver interface {
	Create(image string, env map[string]string, limits ResourceLimits) (containerID string, err error)
	Destroy(containerID string) error
	Inspect(containerID string) (running bool, err error)
	ExecProbe(containerID string, command []string) (ProbeResult, error)
}
