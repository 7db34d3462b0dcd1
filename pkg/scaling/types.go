// Package scaling implements the scaling controller (C7): it fuses the threshold,
// forecast, and learning-agent signals of spec §4.7 into a single scale-out/scale-in/
// no-op decision per VNFType each control tick, and drives the rolling-update sequence
// through C3 and C4.
package scaling

import (
	"time"

	"github.com/sri0013/vnf-project/pkg/agent"
	"github.com/sri0013/vnf-project/pkg/forecast"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Direction is the fused decision for one VNFType at one tick.
type Direction string

const (
	DirectionScaleOut Direction = "scale_out"
	DirectionScaleIn  Direction = "scale_in"
	DirectionNoOp     Direction = "no_op"
)

// Aggregates is the most recent per-metric snapshot for one VNFType, as read from the
// scraper's series (spec §3's MetricSeries, last sample).
type Aggregates struct {
	CPUPercent      float64
	MemoryPercent   float64
	LatencyMS       float64
	ThroughputRPS   float64
	ActiveInstances int
}

// Signal bundles everything the optimizer needs to decide one VNFType's direction: the
// current aggregates, this tick's per-metric forecasts, and the agent's suggestion if
// this type happens to be the one the agent's single action targets this tick.
type Signal struct {
	Type             vnf.VNFType
	Current          Aggregates
	Forecasts        map[string]forecast.Forecast // keyed by "cpu", "memory", "latency"
	AgentAction      *agent.Action                // nil unless the agent's suggestion targets Type
	CooldownExpired  bool
	MinInstances     int
	MaxInstances     int
	CanAddInstance   bool
	CanRemoveInstance bool
}

// Decision is the optimizer's verdict for one VNFType at one tick.
type Decision struct {
	Type      vnf.VNFType
	Direction Direction
	Reason    string
	Score     float64
	// Vetoed records whether a mandatory safety constraint downgraded an otherwise
	// triggered direction to no_op — used to recognize an agent suggestion that was an
	// invalid action (spec §4.6's reward term), not merely a quiet tick.
	Vetoed    bool
	DecidedAt time.Time
}
