package flowcontrol

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Controller owns the FlowRule table. Per-VNFType round-robin is delegated to the
// vnf.Pool supplied for that type, which is the authoritative owner of instance state.
type Controller struct {
	mu       sync.RWMutex
	rules    map[string]*FlowRule
	byType   map[vnf.VNFType]map[string]*FlowRule // ruleID -> rule, scoped per type
	chainRefs map[vnf.VNFType]int                 // active chains currently referencing a type
	pools    func(vnf.VNFType) (*vnf.Pool, bool)
}

// NewController creates a Controller that resolves VNFType -> *vnf.Pool via poolLookup,
// so the round-robin cursor and instance state stay single-owner in vnf.Pool.
func NewController(poolLookup func(vnf.VNFType) (*vnf.Pool, bool)) *Controller {
	return &Controller{
		rules:     make(map[string]*FlowRule),
		byType:    make(map[vnf.VNFType]map[string]*FlowRule),
		chainRefs: make(map[vnf.VNFType]int),
		pools:     poolLookup,
	}
}

// AddRule installs a new active rule. At most one active rule may reference a given
// instance for a given priority (spec §3).
func (c *Controller) AddRule(vnfType vnf.VNFType, instanceID string, priority int) (*FlowRule, error) {
	return c.addRule(vnfType, instanceID, priority, "")
}

// AddRuleForChain installs a rule the same way AddRule does, tagging it with chainID so
// the SFC allocator (C8) can correlate installed rules with the ChainInstance that owns
// them, per spec §4.8 step 3.
func (c *Controller) AddRuleForChain(vnfType vnf.VNFType, instanceID string, priority int, chainID string) (*FlowRule, error) {
	return c.addRule(vnfType, instanceID, priority, chainID)
}

func (c *Controller) addRule(vnfType vnf.VNFType, instanceID string, priority int, chainID string) (*FlowRule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.byType[vnfType] {
		if r.Status == StatusActive && r.InstanceID == instanceID && r.Priority == priority {
			return nil, apierrors.InvalidAction("conflicting active rule for instance at this priority", map[string]interface{}{
				"vnf_type": string(vnfType), "instance_id": instanceID, "priority": priority,
			})
		}
	}

	rule := &FlowRule{
		ID:         uuid.NewString(),
		VNFType:    vnfType,
		InstanceID: instanceID,
		Priority:   priority,
		Status:     StatusActive,
		CreatedAt:  time.Now(),
		ChainID:    chainID,
	}
	c.rules[rule.ID] = rule
	if c.byType[vnfType] == nil {
		c.byType[vnfType] = make(map[string]*FlowRule)
	}
	c.byType[vnfType][rule.ID] = rule
	return rule, nil
}

// RemoveRule marks a rule removed. Removing the last active rule of a type while chains
// reference it is forbidden (spec §3).
func (c *Controller) RemoveRule(flowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule, ok := c.rules[flowID]
	if !ok || rule.Status == StatusRemoved {
		return apierrors.Capacity("flow rule not found", map[string]interface{}{"flow_id": flowID})
	}

	if c.activeCountLocked(rule.VNFType) <= 1 && c.chainRefs[rule.VNFType] > 0 {
		return apierrors.InvalidAction("cannot remove last active rule for a type with referencing chains", map[string]interface{}{
			"vnf_type": string(rule.VNFType),
		})
	}

	rule.Status = StatusRemoved
	return nil
}

func (c *Controller) activeCountLocked(t vnf.VNFType) int {
	n := 0
	for _, r := range c.byType[t] {
		if r.Status == StatusActive {
			n++
		}
	}
	return n
}

// ListRules returns every rule (active and removed) for t.
func (c *Controller) ListRules(t vnf.VNFType) []*FlowRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*FlowRule, 0, len(c.byType[t]))
	for _, r := range c.byType[t] {
		out = append(out, r)
	}
	return out
}

// ListAllRules returns every rule the controller currently tracks, active and removed,
// used by the GET /flows endpoint.
func (c *Controller) ListAllRules() []*FlowRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*FlowRule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	return out
}

// RuleByID returns the rule with the given flow id, whatever its status; callers that
// need chain-scoped rules track the flow ids returned from AddRule themselves.
func (c *Controller) RuleByID(flowID string) (*FlowRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[flowID]
	return r, ok
}

// NextInstance returns the next active instance for t under round robin, skipping
// starting/draining instances, per spec §4.4.
func (c *Controller) NextInstance(t vnf.VNFType) (*vnf.Instance, error) {
	pool, ok := c.pools(t)
	if !ok {
		return nil, apierrors.Capacity(fmt.Sprintf("no pool for vnf type %q", t), nil)
	}
	inst, ok := pool.NextInstance()
	if !ok {
		return nil, apierrors.Capacity(fmt.Sprintf("no healthy instance for vnf type %q", t), map[string]interface{}{
			"vnf_type": string(t),
		})
	}
	return inst, nil
}

// IncChainRef records that one more chain now references t, vetoing removal of its last
// active rule until DecChainRef is called.
func (c *Controller) IncChainRef(t vnf.VNFType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainRefs[t]++
}

// DecChainRef reverts a prior IncChainRef.
func (c *Controller) DecChainRef(t vnf.VNFType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainRefs[t] > 0 {
		c.chainRefs[t]--
	}
}
