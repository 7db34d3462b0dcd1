package sfc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/flowcontrol"
	"github.com/sri0013/vnf-project/pkg/lifecycle"
	"github.com/sri0013/vnf-project/pkg/metrics"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// RewardSink receives chain-allocation outcomes. The scaling controller (C7) implements
// it, since the allocator itself contributes no (state, action) pair of its own — the
// agent's action space does not include allocation (spec §4.6).
type RewardSink interface {
	NoteChainOutcome(satisfied bool)
}

// Allocator implements the SFC allocator (C8): spec §4.8's four-step algorithm, plus
// bidirectional complementary-chain handling and deterministic rollback on any failure.
type Allocator struct {
	vnfCtrl     *vnf.Controller
	flowCtrl    *flowcontrol.Controller
	chains      *lifecycle.Manager
	maxReservations int
	reward      RewardSink
	ins         *metrics.Instruments
	log         *logrus.Entry

	mu    sync.RWMutex
	store map[string]*ChainInstance
}

// New builds an Allocator over the already-constructed C3/C4 components.
func New(vnfCtrl *vnf.Controller, flowCtrl *flowcontrol.Controller, maxReservationsPerInstance int, reward RewardSink, ins *metrics.Instruments) *Allocator {
	return &Allocator{
		vnfCtrl:         vnfCtrl,
		flowCtrl:        flowCtrl,
		chains:          lifecycle.NewChainManager(),
		maxReservations: maxReservationsPerInstance,
		reward:          reward,
		ins:             ins,
		log:             logrus.WithField("component", "sfc_allocator"),
		store:           make(map[string]*ChainInstance),
	}
}

// Get returns a tracked ChainInstance by id.
func (a *Allocator) Get(chainID string) (*ChainInstance, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ci, ok := a.store[chainID]
	return ci, ok
}

// List returns every tracked ChainInstance.
func (a *Allocator) List() []*ChainInstance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*ChainInstance, 0, len(a.store))
	for _, ci := range a.store {
		out = append(out, ci)
	}
	return out
}

// Allocate runs spec §4.8's algorithm for req, additionally allocating a complementary
// reversed chain when req.Bidirectional, and returns the activated primary ChainInstance
// (with ReverseChainID set) or a structured apierrors failure. Every partial reservation
// or flow rule from a failed attempt is reverted before Allocate returns.
func (a *Allocator) Allocate(ctx context.Context, req ChainRequest) (*ChainInstance, error) {
	primary, err := a.allocateOne(ctx, req.Types, req)
	if err != nil {
		a.recordOutcome(false)
		return nil, err
	}

	if !req.Bidirectional {
		a.recordOutcome(true)
		return primary, nil
	}

	reverse, err := a.allocateOne(ctx, req.reverseOrder(), req)
	if err != nil {
		a.teardownLocked(primary.ChainID)
		a.recordOutcome(false)
		return nil, err
	}

	primary.ReverseChainID = reverse.ChainID
	reverse.ReverseChainID = primary.ChainID
	a.recordOutcome(true)
	return primary, nil
}

func (a *Allocator) recordOutcome(satisfied bool) {
	if a.reward != nil {
		a.reward.NoteChainOutcome(satisfied)
	}
	if a.ins != nil {
		outcome := "dropped"
		if satisfied {
			outcome = "satisfied"
		}
		a.ins.SFCRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// allocateOne runs the four-step algorithm for a single ordered chain of types (either
// the request's primary order or its reversed complementary order).
func (a *Allocator) allocateOne(ctx context.Context, types []vnf.VNFType, req ChainRequest) (*ChainInstance, error) {
	chainID := newChainID()
	if _, err := a.chains.Create(chainID, lifecycle.ChainInitialState); err != nil {
		return nil, apierrors.Fatal("chain machine creation failed", err)
	}

	ci := &ChainInstance{
		ChainID:        chainID,
		Request:        req,
		InstanceByType: make(map[vnf.VNFType]string, len(types)),
		StartedAt:      time.Now(),
		Status:         StatusFailed,
	}

	// Step 1: compute a target instance for each type.
	targets := make(map[vnf.VNFType]*vnf.Instance, len(types))
	for _, t := range types {
		inst, err := a.flowCtrl.NextInstance(t)
		if err != nil {
			a.fail(ci, "no target instance for type")
			return nil, apierrors.Capacity("no-capacity", map[string]interface{}{
				"chain_id": chainID, "vnf_type": string(t),
			})
		}
		targets[t] = inst
	}

	// Step 2: reserve instances atomically, reverting on the first overflow.
	reserved := make([]vnf.VNFType, 0, len(types))
	for _, t := range types {
		pool, ok := a.vnfCtrl.Pool(t)
		if !ok || !pool.ReserveSlot(targets[t].ID, a.maxReservations) {
			a.releaseReservations(reserved, targets)
			a.fail(ci, "reservation cap exceeded")
			return nil, apierrors.Capacity("no-capacity", map[string]interface{}{
				"chain_id": chainID, "vnf_type": string(t),
			})
		}
		reserved = append(reserved, t)
	}

	// Step 3: install flow rules in chain order, rolling back on the first failure.
	installed := make([]string, 0, len(types))
	for _, t := range types {
		rule, err := a.flowCtrl.AddRuleForChain(t, targets[t].ID, req.Priority, chainID)
		if err != nil {
			a.rollbackRules(installed)
			a.releaseReservations(reserved, targets)
			a.fail(ci, "flow rule install failed: "+err.Error())
			return nil, apierrors.Capacity("no-capacity", map[string]interface{}{
				"chain_id": chainID, "reason": err.Error(),
			})
		}
		installed = append(installed, rule.ID)
		ci.InstanceByType[t] = targets[t].ID
	}
	ci.FlowRuleIDs = installed

	// Step 4: mark active only once every rule is installed and every instance is active.
	for _, t := range types {
		if targets[t].State() != lifecycle.InstanceActive {
			a.rollbackRules(installed)
			a.releaseReservations(reserved, targets)
			a.fail(ci, "target instance no longer active")
			return nil, apierrors.Capacity("no-capacity", map[string]interface{}{
				"chain_id": chainID, "vnf_type": string(t),
			})
		}
	}

	if err := a.chains.Fire(ctx, chainID, lifecycle.EventChainActivated, nil); err != nil {
		a.rollbackRules(installed)
		a.releaseReservations(reserved, targets)
		a.fail(ci, "chain activation transition failed")
		return nil, apierrors.Fatal("chain activation failed", err)
	}
	ci.Status = StatusActive

	for _, t := range types {
		a.flowCtrl.IncChainRef(t)
	}

	a.mu.Lock()
	a.store[chainID] = ci
	a.mu.Unlock()

	return ci, nil
}

func (a *Allocator) fail(ci *ChainInstance, reason string) {
	ci.Status = StatusFailed
	ci.StoppedAt = time.Now()
	_ = a.chains.Fire(context.Background(), ci.ChainID, lifecycle.EventChainFailed, nil)
	a.log.WithFields(logrus.Fields{"chain_id": ci.ChainID, "reason": reason}).Warn("chain allocation failed")
}

func (a *Allocator) rollbackRules(ruleIDs []string) {
	for _, id := range ruleIDs {
		_ = a.flowCtrl.RemoveRule(id)
	}
}

func (a *Allocator) releaseReservations(reserved []vnf.VNFType, targets map[vnf.VNFType]*vnf.Instance) {
	for _, t := range reserved {
		if pool, ok := a.vnfCtrl.Pool(t); ok {
			pool.ReleaseSlot(targets[t].ID)
		}
	}
}

// Teardown retires an active ChainInstance: removes its flow rules, releases its
// reservations, decrements its types' chain-reference counts, and transitions it to
// torn-down. A bidirectional chain's complementary leg is torn down alongside it.
func (a *Allocator) Teardown(ctx context.Context, chainID string) error {
	a.mu.Lock()
	ci, ok := a.store[chainID]
	a.mu.Unlock()
	if !ok {
		return apierrors.Capacity("chain not found", map[string]interface{}{"chain_id": chainID})
	}

	a.teardownLocked(chainID)

	if ci.ReverseChainID != "" {
		a.teardownLocked(ci.ReverseChainID)
	}
	return nil
}

func (a *Allocator) teardownLocked(chainID string) {
	a.mu.Lock()
	ci, ok := a.store[chainID]
	if ok {
		delete(a.store, chainID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	a.rollbackRules(ci.FlowRuleIDs)
	for t, instanceID := range ci.InstanceByType {
		if pool, ok := a.vnfCtrl.Pool(t); ok {
			pool.ReleaseSlot(instanceID)
		}
		a.flowCtrl.DecChainRef(t)
	}
	ci.Status = StatusTornDown
	ci.StoppedAt = time.Now()
	_ = a.chains.Fire(context.Background(), chainID, lifecycle.EventChainTornDown, nil)
}

// RecordLatency appends one end-to-end latency sample to a tracked chain's
// LatencySamplesMS.
func (a *Allocator) RecordLatency(chainID string, ms float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	ci, ok := a.store[chainID]
	if !ok {
		return fmt.Errorf("chain %q not found", chainID)
	}
	ci.LatencySamplesMS = append(ci.LatencySamplesMS, ms)
	return nil
}
