package lifecycle

import (
	"context"
	"fmt"
	"sync"
)

// Manager owns a set of Machines keyed by id, all driven by the same Table, and fans
// transitions out to registered Listeners. One Manager is created per lifecycle kind
// (Instance, VNFType scaling cycle, ChainInstance); each owns its own Table.
type Manager struct {
	table     Table
	mu        sync.RWMutex
	machines  map[string]*Machine
	listeners []Listener
}

// NewManager creates a Manager that will drive every machine it creates with table.
func NewManager(table Table) *Manager {
	return &Manager{
		table:    table,
		machines: make(map[string]*Machine),
	}
}

// AddListener registers l against every future transition of every machine, current and
// future, owned by this manager.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Create registers a new machine with id starting in initial. Returns an error if id is
// already in use.
func (m *Manager) Create(id string, initial State) (*Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.machines[id]; exists {
		return nil, fmt.Errorf("lifecycle: machine %q already exists", id)
	}
	machine := NewMachine(id, m.table, initial)
	m.machines[id] = machine
	return machine, nil
}

// Get retrieves a machine by id.
func (m *Manager) Get(id string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[id]
	return machine, ok
}

// Remove deletes a machine from the manager; it does not validate the machine's state.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.machines, id)
}

// ByState returns every machine currently in state.
func (m *Manager) ByState(state State) []*Machine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Machine
	for _, machine := range m.machines {
		if machine.Current() == state {
			out = append(out, machine)
		}
	}
	return out
}

// Fire looks up id and fires event against it, then notifies listeners on success.
func (m *Manager) Fire(ctx context.Context, id string, event Event, data interface{}) error {
	machine, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("lifecycle: machine %q not found", id)
	}
	before := machine.Current()
	err := machine.Fire(ctx, event, data)
	if err == nil {
		m.notify(ctx, machine, Record{From: before, To: machine.Current(), Event: event})
	}
	return err
}

func (m *Manager) notify(ctx context.Context, machine *Machine, rec Record) {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, l := range listeners {
		l.OnTransition(ctx, machine, rec)
	}
}

// Len returns the number of machines currently tracked.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.machines)
}
