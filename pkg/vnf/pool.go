package vnf

import (
	"sync"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/lifecycle"
)

// Pool is the per-VNFType set of Instances with the invariants of spec §3:
// min_instances <= |active U starting| <= max_instances, and a round-robin cursor.
type Pool struct {
	mu           sync.RWMutex
	vnfType      VNFType
	minInstances int
	maxInstances int
	instances    map[string]*Instance
	order        []string // stable iteration order for round robin
	cursor       int
	machines     *lifecycle.Manager
}

// NewPool creates an empty pool for one VNFType bound to min/max instance bounds.
func NewPool(t VNFType, minInstances, maxInstances int, machines *lifecycle.Manager) *Pool {
	return &Pool{
		vnfType:      t,
		minInstances: minInstances,
		maxInstances: maxInstances,
		instances:    make(map[string]*Instance),
		machines:     machines,
	}
}

// Type returns the VNFType this pool manages.
func (p *Pool) Type() VNFType { return p.vnfType }

// countActiveOrStarting returns |active U starting|, used to enforce the pool bound.
func (p *Pool) countActiveOrStarting() int {
	n := 0
	for _, inst := range p.instances {
		s := inst.State()
		if s == lifecycle.InstanceActive || s == lifecycle.InstanceStarting {
			n++
		}
	}
	return n
}

// CanAddInstance reports whether adding one more starting instance keeps the pool within
// max_instances.
func (p *Pool) CanAddInstance() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.countActiveOrStarting() < p.maxInstances
}

// CanRemoveInstance reports whether draining one active instance keeps the pool at or
// above min_instances.
func (p *Pool) CanRemoveInstance() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.countActiveOrStarting() > p.minInstances
}

// Add registers a newly created Instance with the pool.
func (p *Pool) Add(inst *Instance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.countActiveOrStarting() >= p.maxInstances {
		return apierrors.Capacity("max_instances reached", map[string]interface{}{
			"vnf_type": string(p.vnfType), "max_instances": p.maxInstances,
		})
	}
	p.instances[inst.ID] = inst
	p.order = append(p.order, inst.ID)
	return nil
}

// Get retrieves an instance by id.
func (p *Pool) Get(id string) (*Instance, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.instances[id]
	return inst, ok
}

// Remove deletes a (removed-state) instance from the pool's bookkeeping.
func (p *Pool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.instances, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// List returns a snapshot of every known instance, per spec §4.3's list(type) operation.
func (p *Pool) List() []*Instance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		out = append(out, inst)
	}
	return out
}

// ActiveInstanceExists reports whether at least one instance is active, used to gate
// "at least one active instance must exist before any draining instance is removed".
func (p *Pool) ActiveInstanceExists() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, inst := range p.instances {
		if inst.State() == lifecycle.InstanceActive {
			return true
		}
	}
	return false
}

// NextInstance advances the round-robin cursor and returns the next active instance,
// skipping starting/draining ones, per spec §4.4's next_instance(type). Returns false if
// no active instance exists.
func (p *Pool) NextInstance() (*Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.order)
	if n == 0 {
		return nil, false
	}
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		inst := p.instances[p.order[idx]]
		if inst != nil && inst.State() == lifecycle.InstanceActive {
			p.cursor = (idx + 1) % n
			return inst, true
		}
	}
	return nil, false
}

// ReserveSlot attempts to reserve inst for chain allocation, bounded by cap per-instance
// concurrency (spec §4.8 step 2). Returns false if the reservation would exceed cap.
func (p *Pool) ReserveSlot(id string, cap int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[id]
	if !ok {
		return false
	}
	if inst.reservations >= cap {
		return false
	}
	inst.reservations++
	return true
}

// ReleaseSlot reverts a prior ReserveSlot call.
func (p *Pool) ReleaseSlot(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inst, ok := p.instances[id]; ok && inst.reservations > 0 {
		inst.reservations--
	}
}
