package scaling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sri0013/vnf-project/pkg/agent"
	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/forecast"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

func testThresholds() config.ScalingThresholds {
	return config.ScalingThresholds{
		CPU:     config.ScalingThreshold{Upper: 80, Lower: 20},
		Memory:  config.ScalingThreshold{Upper: 80, Lower: 20},
		Latency: config.ScalingThreshold{Upper: 200, Lower: 50},
	}
}

func baseSignal() Signal {
	return Signal{
		Type: "firewall",
		Current: Aggregates{
			CPUPercent:    50,
			MemoryPercent: 50,
			LatencyMS:     100,
		},
		CooldownExpired:   true,
		CanAddInstance:    true,
		CanRemoveInstance: true,
	}
}

func TestDecideScalesOutOnThresholdBreach(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.Current.CPUPercent = 95

	d := o.Decide(s)
	assert.Equal(t, DirectionScaleOut, d.Direction)
	assert.False(t, d.Vetoed)
}

func TestDecideScalesInWhenAllMetricsBelowLowerBand(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.Current.CPUPercent = 5
	s.Current.MemoryPercent = 5
	s.Current.LatencyMS = 10

	d := o.Decide(s)
	assert.Equal(t, DirectionScaleIn, d.Direction)
}

func TestDecideNoOpWhenWithinBand(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()

	d := o.Decide(s)
	assert.Equal(t, DirectionNoOp, d.Direction)
}

func TestDecideScalesOutOnForecastBreach(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.Forecasts = map[string]forecast.Forecast{
		"cpu": {Point: []float64{60}, Upper: []float64{90}, Confidence: 0.9},
	}

	d := o.Decide(s)
	assert.Equal(t, DirectionScaleOut, d.Direction)
}

func TestDecideIgnoresForecastBelowMinConfidence(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.9)
	s := baseSignal()
	s.Forecasts = map[string]forecast.Forecast{
		"cpu": {Point: []float64{60}, Upper: []float64{90}, Confidence: 0.5},
	}

	d := o.Decide(s)
	assert.Equal(t, DirectionNoOp, d.Direction)
}

func TestDecideFollowsAgentSuggestionWhenCooldownElapsed(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	act := agent.Action{Kind: agent.ActionAllocateNew, VNFType: "firewall"}
	s.AgentAction = &act

	d := o.Decide(s)
	assert.Equal(t, DirectionScaleOut, d.Direction)
}

func TestDecideIgnoresAgentSuggestionDuringCooldown(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.CooldownExpired = false
	act := agent.Action{Kind: agent.ActionAllocateNew, VNFType: "firewall"}
	s.AgentAction = &act

	d := o.Decide(s)
	assert.Equal(t, DirectionNoOp, d.Direction)
}

func TestDecideVetoesScaleOutAtMaxInstances(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.Current.CPUPercent = 95
	s.CanAddInstance = false

	d := o.Decide(s)
	assert.Equal(t, DirectionNoOp, d.Direction)
	assert.True(t, d.Vetoed)
}

func TestDecideVetoesScaleInAtMinInstances(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.Current.CPUPercent = 5
	s.Current.MemoryPercent = 5
	s.Current.LatencyMS = 10
	s.CanRemoveInstance = false

	d := o.Decide(s)
	assert.Equal(t, DirectionNoOp, d.Direction)
	assert.True(t, d.Vetoed)
}

func TestDecideVetoesDuringCooldownEvenOnThresholdBreach(t *testing.T) {
	o := NewOptimizer(testThresholds(), 0.7)
	s := baseSignal()
	s.Current.CPUPercent = 95
	s.CooldownExpired = false

	d := o.Decide(s)
	assert.Equal(t, DirectionNoOp, d.Direction)
	assert.True(t, d.Vetoed)
}

func TestObserveOutcomeFlagsInvalidActionOnVetoedDecision(t *testing.T) {
	act := agent.Action{Kind: agent.ActionAllocateNew, VNFType: "firewall"}
	byType := map[vnf.VNFType]agent.TypeAggregate{
		"firewall": {VNFType: "firewall", CPUPercent: 50, LatencyMS: 100},
	}
	decisions := map[vnf.VNFType]Decision{
		"firewall": {Type: "firewall", Direction: DirectionNoOp, Vetoed: true},
	}

	outcome := observeOutcome(act, byType, decisions, testThresholds())
	assert.True(t, outcome.InvalidAction)
}

func TestObserveOutcomeFlagsSLAViolationAndSuppressesEfficiency(t *testing.T) {
	act := agent.Action{Kind: agent.ActionNoOp, VNFType: "firewall"}
	byType := map[vnf.VNFType]agent.TypeAggregate{
		"firewall": {VNFType: "firewall", CPUPercent: 50, LatencyMS: 250},
	}
	decisions := map[vnf.VNFType]Decision{
		"firewall": {Type: "firewall", Direction: DirectionNoOp},
	}

	outcome := observeOutcome(act, byType, decisions, testThresholds())
	assert.True(t, outcome.SLAViolation)
	assert.False(t, outcome.ResourceEfficiency)
	assert.False(t, outcome.InvalidAction)
}

func TestObserveOutcomeFlagsUnnecessaryDrainOnRisingForecast(t *testing.T) {
	act := agent.Action{Kind: agent.ActionDrainOne, VNFType: "firewall"}
	byType := map[vnf.VNFType]agent.TypeAggregate{
		"firewall": {VNFType: "firewall", CPUPercent: 50, LatencyMS: 100, ForecastPoint: 90},
	}
	decisions := map[vnf.VNFType]Decision{
		"firewall": {Type: "firewall", Direction: DirectionScaleIn},
	}

	outcome := observeOutcome(act, byType, decisions, testThresholds())
	assert.True(t, outcome.UnnecessaryDrain)
}
