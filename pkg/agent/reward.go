package agent

import "github.com/sri0013/vnf-project/pkg/config"

// Outcome is the set of independent per-action outcomes spec §4.6 prices into a single
// summed reward. Multiple outcomes may apply to the same action (e.g. a drain that is both
// unnecessary and later causes an SLA violation).
type Outcome struct {
	ChainSatisfied     bool
	ChainDropped       bool
	InvalidAction      bool
	UnnecessaryDrain   bool
	ResourceEfficiency bool // utilization within a high band and no SLA violation
	SLAViolation       bool
}

// Reward sums the weighted outcome terms, per spec §4.6:
// +2.0 chain satisfied; -1.5 chain dropped; -1.0 invalid action; -0.5 unnecessary
// teardown; +0.3 resource efficiency; -0.8 SLA violation.
func Reward(w config.RewardWeights, o Outcome) float64 {
	var r float64
	if o.ChainSatisfied {
		r += w.ChainSatisfied
	}
	if o.ChainDropped {
		r += w.ChainDropped
	}
	if o.InvalidAction {
		r += w.InvalidAction
	}
	if o.UnnecessaryDrain {
		r += w.UnnecessaryDrain
	}
	if o.ResourceEfficiency {
		r += w.ResourceEfficiency
	}
	if o.SLAViolation {
		r += w.SLAViolation
	}
	return r
}
