package scaling

import (
	"math"

	"github.com/sri0013/vnf-project/pkg/agent"
	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/forecast"
)

// Objective scores how strongly a Signal favors scale-out (positive) or scale-in
// (negative), weighted, purely for the Decision.Score diagnostic — the binary
// scale-out/scale-in/no_op call itself follows spec §4.7's literal rule wording in
// decidePolicy, not a score threshold.
type Objective struct {
	Name     string
	Weight   float64
	Evaluate func(Signal) float64
}

// Constraint vetoes a Direction for a Signal. Mandatory constraints downgrade the
// decision to no_op when violated.
type Constraint struct {
	Name      string
	Direction Direction
	Mandatory bool
	Validate  func(Signal) bool
}

// Optimizer fuses threshold, forecast, and agent signals per spec §4.7, generalized from
// the site-placement Objective/Constraint scoring of the teacher's placement optimizer to
// scale-direction scoring: objectives explain the decision's score, constraints guard its
// safety (min/max instances, cooldown).
type Optimizer struct {
	thresholds  config.ScalingThresholds
	confidence  float64
	objectives  []Objective
	constraints []Constraint
}

// NewOptimizer builds the default objective/constraint set over the given thresholds and
// required forecast confidence (spec §4.7 rule 2, config forecasting.confidence_threshold).
func NewOptimizer(thresholds config.ScalingThresholds, confidence float64) *Optimizer {
	o := &Optimizer{thresholds: thresholds, confidence: confidence}
	o.objectives = defaultObjectives(thresholds, confidence)
	o.constraints = defaultConstraints()
	return o
}

func defaultObjectives(t config.ScalingThresholds, confidence float64) []Objective {
	return []Objective{
		{
			Name:   "threshold_pressure",
			Weight: 0.5,
			Evaluate: func(s Signal) float64 {
				return thresholdPressure(s.Current, t)
			},
		},
		{
			Name:   "forecast_pressure",
			Weight: 0.3,
			Evaluate: func(s Signal) float64 {
				if anyForecastBreachesUpper(s.Forecasts, confidence, t) {
					return 1
				}
				return 0
			},
		},
		{
			Name:   "agent_bias",
			Weight: 0.2,
			Evaluate: func(s Signal) float64 {
				if s.AgentAction == nil {
					return 0
				}
				switch s.AgentAction.Kind {
				case agent.ActionAllocateNew:
					return 1
				case agent.ActionDrainOne:
					return -1
				default:
					return 0
				}
			},
		},
	}
}

func defaultConstraints() []Constraint {
	return []Constraint{
		{
			Name: "max_instances", Direction: DirectionScaleOut, Mandatory: true,
			Validate: func(s Signal) bool { return s.CanAddInstance },
		},
		{
			Name: "min_instances", Direction: DirectionScaleIn, Mandatory: true,
			Validate: func(s Signal) bool { return s.CanRemoveInstance },
		},
		{
			Name: "cooldown_out", Direction: DirectionScaleOut, Mandatory: true,
			Validate: func(s Signal) bool { return s.CooldownExpired },
		},
		{
			Name: "cooldown_in", Direction: DirectionScaleIn, Mandatory: true,
			Validate: func(s Signal) bool { return s.CooldownExpired },
		},
	}
}

// thresholdPressure returns spec §4.7 rule 1's verdict as a signed magnitude: positive
// when any metric breaches its scale-out upper bound, negative when all three are within
// the scale-in band, zero otherwise.
func thresholdPressure(a Aggregates, t config.ScalingThresholds) float64 {
	if a.CPUPercent > t.CPU.Upper || a.MemoryPercent > t.Memory.Upper || a.LatencyMS > t.Latency.Upper {
		return 1
	}
	if a.CPUPercent < t.CPU.Lower && a.MemoryPercent < t.Memory.Lower && a.LatencyMS < t.Latency.Lower {
		return -1
	}
	return 0
}

// upperFor maps a forecast's metric key to the same threshold rule 1 uses, so rule 2
// ("any forecast value within horizon exceeds its upper threshold") reuses rule 1's
// literal bounds rather than a second configured set.
func upperFor(metric string, t config.ScalingThresholds) (float64, bool) {
	switch metric {
	case "cpu":
		return t.CPU.Upper, true
	case "memory":
		return t.Memory.Upper, true
	case "latency":
		return t.Latency.Upper, true
	default:
		return 0, false
	}
}

// anyForecastBreachesUpper implements spec §4.7 rule 2: any forecast value within horizon
// exceeds its upper threshold with confidence >= the configured minimum. The forecast's
// own Confidence is the fitted model's nominal band coverage (e.g. 0.95); the comparison
// is against the minimum confidence the config requires before acting, not a per-point
// significance test, matching the literal "with confidence >= 0.7" wording.
func anyForecastBreachesUpper(forecasts map[string]forecast.Forecast, minConfidence float64, t config.ScalingThresholds) bool {
	for metric, fc := range forecasts {
		upper, ok := upperFor(metric, t)
		if !ok || fc.Confidence < minConfidence {
			continue
		}
		for _, v := range fc.Upper {
			if v > upper {
				return true
			}
		}
	}
	return false
}

// decidePolicy implements spec §4.7's literal decision policy: threshold/forecast rules
// OR an agent suggestion (while cooldown has elapsed) determine the direction. Cooldown
// and instance-bound safety are applied afterward by Optimizer.Decide's constraints.
func decidePolicy(s Signal, t config.ScalingThresholds, confidence float64) (Direction, string) {
	thresholdVote := thresholdPressure(s.Current, t)
	forecastOut := anyForecastBreachesUpper(s.Forecasts, confidence, t)
	agentOut := s.AgentAction != nil && s.AgentAction.Kind == agent.ActionAllocateNew && s.CooldownExpired

	if thresholdVote > 0 || forecastOut || agentOut {
		return DirectionScaleOut, reasonForOut(thresholdVote > 0, forecastOut, agentOut)
	}

	inBand := thresholdVote < 0
	agentIn := s.AgentAction != nil && s.AgentAction.Kind == agent.ActionDrainOne && s.CooldownExpired && inBand
	if (inBand && !forecastOut) || agentIn {
		return DirectionScaleIn, "aggregates in scale-in band"
	}

	return DirectionNoOp, "no rule triggered"
}

func reasonForOut(threshold, fc, ag bool) string {
	switch {
	case threshold && fc:
		return "threshold and forecast both breach upper bound"
	case threshold:
		return "current aggregates breach upper threshold"
	case fc:
		return "forecast breaches upper threshold within horizon"
	case ag:
		return "agent suggested allocate_new during elapsed cooldown"
	default:
		return "scale-out"
	}
}

// Decide fuses the three signals into a single Decision for one VNFType, applying
// constraints to veto an unsafe direction down to no_op.
func (o *Optimizer) Decide(s Signal) Decision {
	direction, reason := decidePolicy(s, o.thresholds, o.confidence)

	vetoed := false
	for _, c := range o.constraints {
		if c.Direction != direction || !c.Mandatory {
			continue
		}
		if !c.Validate(s) {
			direction = DirectionNoOp
			reason = "vetoed by constraint " + c.Name
			vetoed = true
		}
	}

	score := 0.0
	totalWeight := 0.0
	for _, obj := range o.objectives {
		score += obj.Evaluate(s) * obj.Weight
		totalWeight += obj.Weight
	}
	if totalWeight > 0 {
		score /= totalWeight
	}
	score = math.Max(-1, math.Min(1, score))

	return Decision{
		Type:      s.Type,
		Direction: direction,
		Reason:    reason,
		Score:     score,
		Vetoed:    vetoed,
	}
}
