// Package scenarios implements the end-to-end checks of spec §8 Scenarios A-F, each
// built from its own Plane so one scenario's scale decisions can never leak into
// another's. cmd/orchestrator's testN subcommands and the tests/e2e Ginkgo suite both
// drive these same Run functions.
package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/sri0013/vnf-project/internal/controlplane"
	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/sfc"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Result is one scenario's outcome: Passed plus a human-readable Detail, or an Err if
// the plane itself could not be built or driven.
type Result struct {
	Passed bool
	Detail string
	Err    error
}

// Scenario pairs a spec §8 letter with its check.
type Scenario struct {
	Name string
	Run  func(ctx context.Context) Result
}

var (
	A = Scenario{Name: "proactive-scale-out", Run: runA}
	B = Scenario{Name: "safe-scale-in-blocked", Run: runB}
	C = Scenario{Name: "allocation-rollback", Run: runC}
	D = Scenario{Name: "rolling-update-order", Run: runD}
	E = Scenario{Name: "forecast-unavailable-fallback", Run: runE}
	F = Scenario{Name: "metrics-exposition-determinism", Run: runF}
)

// All lists every scenario in spec §8's letter order, the set `testall` runs.
var All = []Scenario{A, B, C, D, E, F}

func fail(detail string) Result        { return Result{Detail: detail} }
func pass(detail string) Result        { return Result{Passed: true, Detail: detail} }
func errored(err error) Result         { return Result{Err: err} }

// freshPlane always starts from BaseConfig's short, deterministic timeouts: a scenario
// check needs to resolve in seconds, not inherit a production config's 30s health-check
// timeout.
func freshPlane(seed int64, mutate func(*config.Config)) (*controlplane.Plane, error) {
	cfg := *BaseConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return controlplane.Build(&cfg, seed)
}

// BaseConfig mirrors configs/orchestrator.yaml with a single VNF type and short
// timeouts; scenarios that need a different catalog or timing override it themselves.
func BaseConfig() *config.Config {
	return &config.Config{
		LogLevel:     "error",
		VNFTypes:     []string{"firewall"},
		MinInstances: 1,
		MaxInstances: 6,
		ScalingThresholds: config.ScalingThresholds{
			CPU:     config.ScalingThreshold{Upper: 80, Lower: 30},
			Memory:  config.ScalingThreshold{Upper: 85, Lower: 40},
			Latency: config.ScalingThreshold{Upper: 1000, Lower: 200},
		},
		Forecasting: config.ForecastingConfig{WindowSize: 20, ForecastSteps: 3, ConfidenceThreshold: 0.7},
		RollingUpdate: config.RollingUpdateConfig{
			HealthCheckTimeout: 3 * time.Second,
			DrainTimeout:       1 * time.Second,
			GracePeriod:        500 * time.Millisecond,
		},
		DRLConfig: config.DRLConfig{
			LearningRate: 0.00025, BatchSize: 8, MemorySize: 200, Gamma: 0.99,
			EpsilonStart: 1.0, EpsilonMin: 0.01, EpsilonDecay: 0.995, TargetUpdateFreq: 50,
			CheckpointEvery: 1000, ModelPath: "",
			RewardWeights: config.RewardWeights{
				ChainSatisfied: 2.0, ChainDropped: -1.5, InvalidAction: -1.0,
				UnnecessaryDrain: -0.5, ResourceEfficiency: 0.3, SLAViolation: -0.8,
			},
		},
		ControlLoop: config.ControlLoopConfig{TickInterval: time.Minute, Cooldown: 2 * time.Minute},
		Chain:       config.ChainConfig{MaxReservationsPerInstance: 2},
		HTTP:        config.HTTPConfig{MetricsPort: 0, FlowPort: 0},
	}
}

func waitForActive(pool *vnf.Pool, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if controlplane.CountActive(pool) >= n {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return controlplane.CountActive(pool) >= n
}

// runA feeds a flat-then-ramping CPU series for firewall and expects the control loop
// to scale out once the forecast crosses the upper threshold.
func runA(ctx context.Context) Result {
	p, err := freshPlane(1, func(c *config.Config) { c.VNFTypes = []string{"firewall"} })
	if err != nil {
		return errored(err)
	}
	if err := p.SeedInstances(ctx); err != nil {
		return errored(err)
	}

	series := p.Scraper.Series(vnf.VNFType("firewall"), "cpu")
	now := time.Now().Add(-20 * time.Second)
	for i := 0; i < 15; i++ {
		series.Append(now, 30)
		now = now.Add(time.Second)
	}
	for _, v := range []float64{42, 54, 66, 78, 90} {
		series.Append(now, v)
		now = now.Add(time.Second)
	}

	before := scalingActionsTotal(p, "firewall", "out")
	p.Scaler.Tick(ctx)

	pool, _ := p.VNFCtrl.Pool(vnf.VNFType("firewall"))
	if !waitForActive(pool, 2, 5*time.Second) {
		return fail("no second instance became active")
	}
	after := scalingActionsTotal(p, "firewall", "out")
	if after != before+1 {
		return fail(fmt.Sprintf("scaling_actions_total{action=out} moved %v -> %v, want +1", before, after))
	}
	return pass("scale-out fired once and the new instance reached active")
}

// runB starts with exactly one active spamfilter instance referenced by an active chain
// and feeds sub-threshold metrics; the controller must refuse to drain the last
// instance.
func runB(ctx context.Context) Result {
	p, err := freshPlane(2, func(c *config.Config) { c.VNFTypes = []string{"spamfilter"}; c.MinInstances = 1 })
	if err != nil {
		return errored(err)
	}
	if err := p.SeedInstances(ctx); err != nil {
		return errored(err)
	}

	req := sfc.ChainRequest{RequestID: "scenario-b", Types: []vnf.VNFType{"spamfilter"}}
	if _, err := p.Allocator.Allocate(ctx, req); err != nil {
		return errored(fmt.Errorf("allocating reference chain: %w", err))
	}

	series := p.Scraper.Series(vnf.VNFType("spamfilter"), "cpu")
	now := time.Now().Add(-10 * time.Second)
	for i := 0; i < 10; i++ {
		series.Append(now, 10)
		now = now.Add(time.Second)
	}

	before := scalingActionsTotal(p, "spamfilter", "in")
	p.Scaler.Tick(ctx)

	pool, _ := p.VNFCtrl.Pool(vnf.VNFType("spamfilter"))
	if controlplane.CountActive(pool) < 1 {
		return fail("the last instance was drained")
	}
	after := scalingActionsTotal(p, "spamfilter", "in")
	if after != before {
		return fail(fmt.Sprintf("scaling_actions_total{action=in} moved %v -> %v, want unchanged", before, after))
	}
	return pass("last active instance was not drained")
}

// runC issues a chain request sized to overflow the per-instance reservation cap on its
// second hop and checks the allocator leaves no partial state behind.
func runC(ctx context.Context) Result {
	p, err := freshPlane(3, func(c *config.Config) {
		c.VNFTypes = []string{"firewall", "encryption", "spamfilter"}
		c.Chain.MaxReservationsPerInstance = 1
	})
	if err != nil {
		return errored(err)
	}
	if err := p.SeedInstances(ctx); err != nil {
		return errored(err)
	}

	types := []vnf.VNFType{"firewall", "encryption", "spamfilter"}
	before := make(map[vnf.VNFType]int, len(types))
	for _, t := range types {
		pool, _ := p.VNFCtrl.Pool(t)
		before[t] = reservationsOf(pool)
	}

	// Saturate encryption's single reservation slot so the chain's second hop overflows.
	if _, err := p.Allocator.Allocate(ctx, sfc.ChainRequest{RequestID: "saturate", Types: []vnf.VNFType{"encryption"}}); err != nil {
		return errored(fmt.Errorf("saturating encryption capacity: %w", err))
	}

	_, allocErr := p.Allocator.Allocate(ctx, sfc.ChainRequest{RequestID: "scenario-c", Types: types})
	if allocErr == nil {
		return fail("expected no-capacity error on overflowing chain request")
	}

	for _, rule := range p.FlowCtrl.ListAllRules() {
		if rule.ChainID == "scenario-c" {
			return fail("a rule tagged with the failed chain id survived")
		}
	}
	for _, t := range []vnf.VNFType{"firewall", "spamfilter"} {
		pool, _ := p.VNFCtrl.Pool(t)
		if reservationsOf(pool) != before[t] {
			return fail(fmt.Sprintf("%s reservation count changed across the failed allocation", t))
		}
	}
	return pass("no-capacity returned with every reservation and rule rolled back")
}

// runD scales firewall 1 -> 2 -> 1 and checks next_instance(firewall) always resolves
// to an active instance at every observed step.
func runD(ctx context.Context) Result {
	p, err := freshPlane(4, func(c *config.Config) { c.VNFTypes = []string{"firewall"} })
	if err != nil {
		return errored(err)
	}
	if err := p.SeedInstances(ctx); err != nil {
		return errored(err)
	}
	if _, ok := p.VNFCtrl.ContainerID(firstInstanceID(p, "firewall")); !ok {
		return errored(fmt.Errorf("seed instance has no container id"))
	}

	pool, _ := p.VNFCtrl.Pool(vnf.VNFType("firewall"))
	if inst, err := p.FlowCtrl.NextInstance(vnf.VNFType("firewall")); err != nil || inst.State() != "active" {
		return fail("next_instance did not resolve to an active instance before scale-out")
	}

	series := p.Scraper.Series(vnf.VNFType("firewall"), "cpu")
	now := time.Now()
	for i := 0; i < 5; i++ {
		series.Append(now, 95)
		now = now.Add(time.Second)
	}
	p.Scaler.Tick(ctx)
	if !waitForActive(pool, 2, 5*time.Second) {
		return fail("scale-out did not reach 2 active instances")
	}
	if inst, err := p.FlowCtrl.NextInstance(vnf.VNFType("firewall")); err != nil || inst.State() != "active" {
		return fail("next_instance did not resolve to an active instance after scale-out")
	}

	series.Append(now, 5)
	p.Scaler.Tick(ctx)
	if !waitForActive(pool, 2, 1*time.Second) {
		return fail("a drain step removed an instance before grace elapsed")
	}
	if inst, err := p.FlowCtrl.NextInstance(vnf.VNFType("firewall")); err != nil || inst.State() != "active" {
		return fail("next_instance did not resolve to an active instance during drain")
	}

	time.Sleep(p.Cfg.RollingUpdate.DrainTimeout + p.Cfg.RollingUpdate.GracePeriod + 500*time.Millisecond)
	if controlplane.CountActive(pool) < 1 {
		return fail("scale-in drained every instance")
	}
	return pass("next_instance stayed active through create/activate/drain/destroy")
}

// runE feeds a 5-sample series (below the forecaster's W=20 window) and checks the
// controller falls back to threshold-only decisions.
func runE(ctx context.Context) Result {
	p, err := freshPlane(5, func(c *config.Config) { c.VNFTypes = []string{"firewall"}; c.ControlLoop.Cooldown = time.Hour })
	if err != nil {
		return errored(err)
	}
	if err := p.SeedInstances(ctx); err != nil {
		return errored(err)
	}
	pool, _ := p.VNFCtrl.Pool(vnf.VNFType("firewall"))

	series := p.Scraper.Series(vnf.VNFType("firewall"), "cpu")
	now := time.Now()
	for i := 0; i < 5; i++ {
		series.Append(now, 90)
		now = now.Add(time.Second)
	}
	p.Scaler.Tick(ctx)
	if !waitForActive(pool, 2, 5*time.Second) {
		return fail("threshold-only scale-out did not fire at CPU=90 with a short series")
	}

	// the scale-out above started p's one-hour cooldown; CPU=50 now arrives within it
	for i := 0; i < 5; i++ {
		series.Append(now, 50)
		now = now.Add(time.Second)
	}
	before := scalingActionsTotal(p, "firewall", "out") + scalingActionsTotal(p, "firewall", "in")
	p.Scaler.Tick(ctx)
	after := scalingActionsTotal(p, "firewall", "out") + scalingActionsTotal(p, "firewall", "in")
	if after != before {
		return fail("an action fired at CPU=50 within cooldown with no forecast available")
	}
	return pass("fallback scaled out at CPU=90 and stayed put at CPU=50 within cooldown")
}

// runF creates two labeled counters, increments each by 3, and checks the registry's
// exposition snapshot lists exactly those series plus the process-start gauge.
func runF(ctx context.Context) Result {
	p, err := freshPlane(7, func(c *config.Config) { c.VNFTypes = []string{"firewall"} })
	if err != nil {
		return errored(err)
	}

	counter, err := p.Registry.GetOrCreateCounter("a", []string{"type"}, "test counter")
	if err != nil {
		return errored(err)
	}
	counter.WithLabelValues("x").Add(3)
	counter.WithLabelValues("y").Add(3)

	families, err := p.Registry.Gather()
	if err != nil {
		return errored(err)
	}

	var aSeries int
	var startGaugePresent bool
	for _, fam := range families {
		switch fam.GetName() {
		case "a":
			for _, m := range fam.GetMetric() {
				if m.GetCounter().GetValue() != 3 {
					return fail(fmt.Sprintf("series %v has value %v, want 3", m.GetLabel(), m.GetCounter().GetValue()))
				}
				aSeries++
			}
		case "orchestrator_process_start_timestamp_seconds":
			startGaugePresent = true
		}
	}
	if aSeries != 2 {
		return fail(fmt.Sprintf("found %d series for counter a, want 2", aSeries))
	}
	if !startGaugePresent {
		return fail("process-start gauge missing from exposition")
	}
	return pass("exactly two series for a (3, 3) plus the process-start gauge")
}

func scalingActionsTotal(p *controlplane.Plane, vnfType, action string) float64 {
	families, err := p.Registry.Gather()
	if err != nil {
		return 0
	}
	for _, fam := range families {
		if fam.GetName() != "scaling_actions_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			var gotType, gotAction string
			for _, lbl := range m.GetLabel() {
				switch lbl.GetName() {
				case "vnf_type":
					gotType = lbl.GetValue()
				case "action":
					gotAction = lbl.GetValue()
				}
			}
			if gotType == vnfType && gotAction == action {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func reservationsOf(pool *vnf.Pool) int {
	total := 0
	for _, inst := range pool.List() {
		total += inst.Reservations()
	}
	return total
}

func firstInstanceID(p *controlplane.Plane, t vnf.VNFType) string {
	pool, ok := p.VNFCtrl.Pool(t)
	if !ok {
		return ""
	}
	for _, inst := range pool.List() {
		return inst.ID
	}
	return ""
}
