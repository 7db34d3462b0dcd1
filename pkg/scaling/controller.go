package scaling

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sri0013/vnf-project/pkg/agent"
	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/flowcontrol"
	"github.com/sri0013/vnf-project/pkg/forecast"
	"github.com/sri0013/vnf-project/pkg/lifecycle"
	"github.com/sri0013/vnf-project/pkg/metrics"
	"github.com/sri0013/vnf-project/pkg/scrape"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// flowPriority is the default priority new scale-out rules are installed at; round-robin
// load balancing across a type's active instances does not otherwise depend on priority.
const flowPriority = 0

// maxConcurrentScaleOps bounds cross-type scale operations per tick, per spec §5's
// "at most 3 concurrent scale operations" default.
const maxConcurrentScaleOps = 3

// healthPollInterval is how often Controller polls a newly created instance's state
// while waiting for C3's background health probe to resolve it to active or removed.
const healthPollInterval = 500 * time.Millisecond

// Controller drives the scaling control loop (C7): one Tick fuses signals per VNFType
// via Optimizer, then executes the rolling-update sequence for any type whose direction
// is not no_op, serialized per type and bounded globally by maxConcurrentScaleOps.
type Controller struct {
	types      []vnf.VNFType
	vnfCtrl    *vnf.Controller
	flowCtrl   *flowcontrol.Controller
	forecaster *forecast.Forecaster
	scraper    *scrape.Scraper
	agent      *agent.Agent
	space      agent.ActionSpace
	optimizer  *Optimizer
	scaling    *lifecycle.Manager
	ins        *metrics.Instruments

	minInstances int
	maxInstances int
	cooldown     time.Duration
	timeouts     vnf.Timeouts

	rewardWeights config.RewardWeights

	sem chan struct{}
	log *logrus.Entry

	mu                    sync.Mutex
	lastState             agent.State
	lastAction            agent.Action
	haveLastDecision      bool
	pendingChainSatisfied bool
	pendingChainDropped   bool
}

// NoteChainOutcome records a chain-allocation outcome from the SFC allocator (C8),
// merged into the reward of whichever scale action this controller's own recordTransition
// next evaluates. The allocator is not part of the agent's action space (spec §4.6), so
// chain outcomes reach the agent only through this side channel rather than a second,
// independent Observe call with its own (state, action) pair.
func (c *Controller) NoteChainOutcome(satisfied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if satisfied {
		c.pendingChainSatisfied = true
	} else {
		c.pendingChainDropped = true
	}
}

// New wires a Controller over the already-constructed C2–C6 components.
func New(
	types []vnf.VNFType,
	vnfCtrl *vnf.Controller,
	flowCtrl *flowcontrol.Controller,
	forecaster *forecast.Forecaster,
	scraper *scrape.Scraper,
	learningAgent *agent.Agent,
	cfg *config.Config,
	ins *metrics.Instruments,
) *Controller {
	space := agent.NewActionSpace(types)
	scalingMgr := lifecycle.NewScalingManager()
	for _, t := range types {
		_, _ = scalingMgr.Create(string(t), lifecycle.ScalingSteady)
	}

	return &Controller{
		types:         types,
		vnfCtrl:       vnfCtrl,
		flowCtrl:      flowCtrl,
		forecaster:    forecaster,
		scraper:       scraper,
		agent:         learningAgent,
		space:         space,
		optimizer:     NewOptimizer(cfg.ScalingThresholds, cfg.Forecasting.ConfidenceThreshold),
		scaling:       scalingMgr,
		ins:           ins,
		minInstances:  cfg.MinInstances,
		maxInstances:  cfg.MaxInstances,
		cooldown:      cfg.ControlLoop.Cooldown,
		timeouts:      vnf.Timeouts{HealthCheckTimeout: cfg.RollingUpdate.HealthCheckTimeout, DrainTimeout: cfg.RollingUpdate.DrainTimeout, GracePeriod: cfg.RollingUpdate.GracePeriod},
		rewardWeights: cfg.DRLConfig.RewardWeights,
		sem:           make(chan struct{}, maxConcurrentScaleOps),
		log:           logrus.WithField("component", "scaling_controller"),
	}
}

// Tick runs one control cycle: build each type's Signal, consult the agent once for a
// single suggested action, fuse signals into decisions, and execute every non-no_op
// decision concurrently (bounded by sem), serialized per type by the scaling lifecycle
// machine's state (a machine not in steady vetoes a second concurrent operation).
func (c *Controller) Tick(ctx context.Context) {
	byType := make(map[vnf.VNFType]agent.TypeAggregate, len(c.types))
	signals := make(map[vnf.VNFType]Signal, len(c.types))

	for _, t := range c.types {
		current := c.readAggregates(t)
		forecasts := c.readForecasts(t, current)

		forecastPoint := 0.0
		if fc, ok := forecasts["cpu"]; ok && len(fc.Point) > 0 {
			forecastPoint = fc.Point[0]
		}

		byType[t] = agent.TypeAggregate{
			VNFType:         t,
			CPUPercent:      current.CPUPercent,
			MemoryPercent:   current.MemoryPercent,
			LatencyMS:       current.LatencyMS,
			ThroughputRPS:   current.ThroughputRPS,
			ActiveInstances: current.ActiveInstances,
			ForecastPoint:   forecastPoint,
		}

		pool, _ := c.vnfCtrl.Pool(t)
		signals[t] = Signal{
			Type:              t,
			Current:           current,
			Forecasts:         forecasts,
			CooldownExpired:   c.cooldownExpired(t),
			MinInstances:      c.minInstances,
			MaxInstances:      c.maxInstances,
			CanAddInstance:    pool != nil && pool.CanAddInstance(),
			CanRemoveInstance: pool != nil && pool.CanRemoveInstance() && countActive(pool) > 1,
		}
	}

	state := c.space.EncodeState(byType)
	suggested := c.agent.SelectAction(state)
	if sig, ok := signals[suggested.VNFType]; ok && suggested.Kind != agent.ActionNoOp {
		sig.AgentAction = &suggested
		signals[suggested.VNFType] = sig
	}

	decisions := make(map[vnf.VNFType]Decision, len(c.types))
	var wg sync.WaitGroup
	for _, t := range c.types {
		decision := c.optimizer.Decide(signals[t])
		decision.DecidedAt = time.Now()
		decisions[t] = decision
		if decision.Direction == DirectionNoOp {
			continue
		}
		if machine, ok := c.scaling.Get(string(t)); !ok || machine.Current() != lifecycle.ScalingSteady {
			continue
		}

		wg.Add(1)
		c.sem <- struct{}{}
		go func(d Decision) {
			defer wg.Done()
			defer func() { <-c.sem }()
			c.execute(ctx, d)
		}(decision)
	}
	wg.Wait()

	c.recordTransition(state, suggested, byType, decisions)
}

func countActive(p *vnf.Pool) int {
	n := 0
	for _, inst := range p.List() {
		if inst.State() == lifecycle.InstanceActive {
			n++
		}
	}
	return n
}

func (c *Controller) readAggregates(t vnf.VNFType) Aggregates {
	pool, _ := c.vnfCtrl.Pool(t)
	activeCount := 0
	if pool != nil {
		activeCount = countActive(pool)
	}

	last := func(metric string) float64 {
		if sample, ok := c.scraper.Series(t, metric).Last(); ok {
			return sample.Value
		}
		return 0
	}

	return Aggregates{
		CPUPercent:      last("cpu"),
		MemoryPercent:   last("memory"),
		LatencyMS:       last("latency"),
		ThroughputRPS:   last("throughput"),
		ActiveInstances: activeCount,
	}
}

func (c *Controller) readForecasts(t vnf.VNFType, current Aggregates) map[string]forecast.Forecast {
	out := make(map[string]forecast.Forecast, 3)
	for _, metric := range []string{"cpu", "memory", "latency"} {
		series := c.scraper.Series(t, metric).Values()
		fc, err := c.forecaster.Observe(t, metric, series)
		if err != nil {
			continue
		}
		out[metric] = fc
	}
	return out
}

func (c *Controller) cooldownExpired(t vnf.VNFType) bool {
	machine, ok := c.scaling.Get(string(t))
	if !ok {
		return true
	}
	if machine.Current() != lifecycle.ScalingCooldown {
		return machine.Current() == lifecycle.ScalingSteady
	}
	until, ok := machine.Meta("cooldown_until")
	if !ok {
		return true
	}
	deadline, ok := until.(time.Time)
	if !ok {
		return true
	}
	if time.Now().Before(deadline) {
		return false
	}
	_ = c.scaling.Fire(context.Background(), string(t), lifecycle.EventCooldownElapsed, nil)
	return true
}

// execute runs the rolling-update sequence for one decision, driving the per-type
// scaling state machine through scaling_out/in -> cooldown, or back to steady on
// rollback.
func (c *Controller) execute(ctx context.Context, d Decision) {
	switch d.Direction {
	case DirectionScaleOut:
		c.executeScaleOut(ctx, d)
	case DirectionScaleIn:
		c.executeScaleIn(ctx, d)
	}
}

func (c *Controller) executeScaleOut(ctx context.Context, d Decision) {
	id := string(d.Type)
	if err := c.scaling.Fire(ctx, id, lifecycle.EventScaleOutStarted, nil); err != nil {
		return
	}

	inst, err := c.vnfCtrl.Create(ctx, d.Type)
	if err != nil {
		c.rollback(ctx, d.Type, "create failed: "+err.Error())
		return
	}

	if !c.waitActive(ctx, inst) {
		c.rollback(ctx, d.Type, "health probe did not succeed within timeout")
		return
	}

	if _, err := c.flowCtrl.AddRule(d.Type, inst.ID, flowPriority); err != nil {
		_ = c.vnfCtrl.Destroy(ctx, inst.ID)
		c.rollback(ctx, d.Type, "add_rule failed: "+err.Error())
		return
	}

	c.succeed(ctx, d.Type, "scale_out")
}

func (c *Controller) executeScaleIn(ctx context.Context, d Decision) {
	id := string(d.Type)
	if err := c.scaling.Fire(ctx, id, lifecycle.EventScaleInStarted, nil); err != nil {
		return
	}

	pool, ok := c.vnfCtrl.Pool(d.Type)
	if !ok {
		c.rollback(ctx, d.Type, "no pool for type")
		return
	}

	target := pickDrainTarget(pool)
	if target == nil {
		c.rollback(ctx, d.Type, "no drainable instance found")
		return
	}

	ruleID, ok := activeRuleFor(c.flowCtrl, d.Type, target.ID)
	if ok {
		if err := c.flowCtrl.RemoveRule(ruleID); err != nil {
			c.rollback(ctx, d.Type, "remove_rule failed: "+err.Error())
			return
		}
	}

	if err := c.vnfCtrl.Drain(ctx, target.ID, c.timeouts.GracePeriod); err != nil {
		c.rollback(ctx, d.Type, "drain failed: "+err.Error())
		return
	}

	c.succeed(ctx, d.Type, "scale_in")
}

func pickDrainTarget(pool *vnf.Pool) *vnf.Instance {
	for _, inst := range pool.List() {
		if inst.State() == lifecycle.InstanceActive {
			return inst
		}
	}
	return nil
}

func activeRuleFor(fc *flowcontrol.Controller, t vnf.VNFType, instanceID string) (string, bool) {
	for _, r := range fc.ListRules(t) {
		if r.Status == flowcontrol.StatusActive && r.InstanceID == instanceID {
			return r.ID, true
		}
	}
	return "", false
}

func (c *Controller) waitActive(ctx context.Context, inst *vnf.Instance) bool {
	deadline := time.Now().Add(c.timeouts.HealthCheckTimeout + time.Second)
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		switch inst.State() {
		case lifecycle.InstanceActive:
			return true
		case lifecycle.InstanceRemoved:
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return inst.State() == lifecycle.InstanceActive
}

func (c *Controller) rollback(ctx context.Context, t vnf.VNFType, reason string) {
	_ = c.scaling.Fire(ctx, string(t), lifecycle.EventScaleRolledBack, nil)
	if c.ins != nil {
		c.ins.ScalingActionsTotal.WithLabelValues(string(t), "failed").Inc()
	}
	c.log.WithFields(logrus.Fields{"vnf_type": string(t), "reason": reason}).Warn("scaling action rolled back")
}

func (c *Controller) succeed(ctx context.Context, t vnf.VNFType, action string) {
	if err := c.scaling.Fire(ctx, string(t), lifecycle.EventScaleSucceeded, nil); err == nil {
		if machine, ok := c.scaling.Get(string(t)); ok {
			machine.SetMeta("cooldown_until", time.Now().Add(c.cooldown))
		}
	}
	if c.ins != nil {
		c.ins.ScalingActionsTotal.WithLabelValues(string(t), action).Inc()
	}
}

// recordTransition feeds the agent's own suggested action back as a training transition:
// the reward reflects what this tick observed about its consequences (SLA/resource-
// efficiency/invalid-action signals), merged with any chain outcomes the SFC allocator
// reported via NoteChainOutcome since the last tick.
func (c *Controller) recordTransition(curState agent.State, action agent.Action, byType map[vnf.VNFType]agent.TypeAggregate, decisions map[vnf.VNFType]Decision) {
	c.mu.Lock()
	hadLast := c.haveLastDecision
	lastState, lastAction := c.lastState, c.lastAction
	c.lastState, c.lastAction, c.haveLastDecision = curState, action, true
	c.mu.Unlock()

	if !hadLast {
		return
	}

	outcome := observeOutcome(lastAction, byType, decisions, c.optimizer.thresholds)

	c.mu.Lock()
	outcome.ChainSatisfied = outcome.ChainSatisfied || c.pendingChainSatisfied
	outcome.ChainDropped = outcome.ChainDropped || c.pendingChainDropped
	c.pendingChainSatisfied, c.pendingChainDropped = false, false
	c.mu.Unlock()

	reward := agent.Reward(c.rewardWeights, outcome)
	c.agent.Observe(lastState, lastAction, reward, curState, false)
	c.agent.TrainStep()
	if c.ins != nil {
		c.ins.DRLEpisodeReward.WithLabelValues().Set(reward)
	}
}

// observeOutcome derives the agent's reward flags for the action it suggested last tick
// from what this tick observed: whether the decision that targeted its VNFType was
// vetoed (invalid action), whether it drained ahead of rising forecast load
// (unnecessary drain), and the type's resulting efficiency/SLA standing.
func observeOutcome(act agent.Action, byType map[vnf.VNFType]agent.TypeAggregate, decisions map[vnf.VNFType]Decision, t config.ScalingThresholds) agent.Outcome {
	agg, ok := byType[act.VNFType]
	if !ok {
		return agent.Outcome{}
	}

	slaViolation := agg.LatencyMS > t.Latency.Upper
	efficient := agg.CPUPercent >= t.CPU.Lower && agg.CPUPercent <= t.CPU.Upper && !slaViolation

	decision := decisions[act.VNFType]
	invalid := act.Kind != agent.ActionNoOp && decision.Vetoed

	unnecessaryDrain := act.Kind == agent.ActionDrainOne && agg.ForecastPoint > t.CPU.Upper

	return agent.Outcome{
		InvalidAction:      invalid,
		UnnecessaryDrain:   unnecessaryDrain,
		ResourceEfficiency: efficient,
		SLAViolation:       slaViolation,
	}
}
