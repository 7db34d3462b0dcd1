// Package lifecycle provides a generic transition-table state machine, reused to drive
// the Instance, VNFType scaling, and ChainInstance lifecycles.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is an opaque state tag; each owning component defines its own constants.
type State string

// Event is an opaque event tag; each owning component defines its own constants.
type Event string

// ActionFunc runs during a transition. A non-nil error aborts the transition.
type ActionFunc func(ctx context.Context, m *Machine, data interface{}) error

// GuardFunc vetoes a transition when it returns false.
type GuardFunc func(ctx context.Context, m *Machine, data interface{}) bool

// Transition describes one edge of the table.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guard  GuardFunc
	Action ActionFunc
}

// Table is a transition table: From -> Event -> Transition.
type Table map[State]map[Event]*Transition

// NewTable builds a Table from a flat transition list, for readable construction at the
// call site (one line per edge) instead of nested map literals.
func NewTable(transitions ...Transition) Table {
	t := make(Table)
	for i := range transitions {
		tr := transitions[i]
		if t[tr.From] == nil {
			t[tr.From] = make(map[Event]*Transition)
		}
		t[tr.From][tr.Event] = &tr
	}
	return t
}

// Record captures one executed transition for history/diagnostics.
type Record struct {
	From      State
	To        State
	Event     Event
	Timestamp time.Time
	Err       error
}

// Listener observes state changes across all machines registered with a Manager.
type Listener interface {
	OnTransition(ctx context.Context, m *Machine, rec Record)
}

var (
	// ErrNoTransition reports that the current state has no edge for the given event.
	ErrNoTransition = fmt.Errorf("lifecycle: no transition for event from current state")
	// ErrGuardVetoed reports that a guard function rejected the transition.
	ErrGuardVetoed = fmt.Errorf("lifecycle: transition vetoed by guard")
)

// Machine is one instance of a table driven by a shared transition Table.
type Machine struct {
	ID      string
	table   Table
	mu      sync.RWMutex
	current State
	history []Record
	meta    map[string]interface{}
}

// NewMachine creates a machine bound to table, starting in initial.
func NewMachine(id string, table Table, initial State) *Machine {
	return &Machine{
		ID:      id,
		table:   table,
		current: initial,
		meta:    make(map[string]interface{}),
	}
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// History returns a copy of the executed transition history.
func (m *Machine) History() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.history...)
}

// SetMeta attaches arbitrary metadata to the machine (e.g. a VNFType tag or chain id).
func (m *Machine) SetMeta(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
}

// Meta retrieves previously attached metadata.
func (m *Machine) Meta(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	return v, ok
}

// CanFire reports whether event has a defined, unguarded-or-passing transition from the
// current state. It does not execute any action.
func (m *Machine) CanFire(ctx context.Context, event Event, data interface{}) bool {
	m.mu.RLock()
	edges, ok := m.table[m.current]
	if !ok {
		m.mu.RUnlock()
		return false
	}
	tr, ok := edges[event]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if tr.Guard != nil && !tr.Guard(ctx, m, data) {
		return false
	}
	return true
}

// Fire processes event against the current state: a missing edge or a failing guard
// returns an error without mutating state; a failing action leaves the machine in its
// prior state with the action's error returned.
func (m *Machine) Fire(ctx context.Context, event Event, data interface{}) error {
	m.mu.Lock()
	edges, ok := m.table[m.current]
	if !ok {
		m.mu.Unlock()
		return ErrNoTransition
	}
	tr, ok := edges[event]
	if !ok {
		m.mu.Unlock()
		return ErrNoTransition
	}
	if tr.Guard != nil && !tr.Guard(ctx, m, data) {
		m.mu.Unlock()
		return ErrGuardVetoed
	}
	from := m.current
	m.mu.Unlock()

	var actionErr error
	if tr.Action != nil {
		actionErr = tr.Action(ctx, m, data)
	}

	m.mu.Lock()
	rec := Record{From: from, Event: event, Timestamp: time.Now(), Err: actionErr}
	if actionErr != nil {
		rec.To = from
		m.history = append(m.history, rec)
		m.mu.Unlock()
		return actionErr
	}
	m.current = tr.To
	rec.To = tr.To
	m.history = append(m.history, rec)
	m.mu.Unlock()
	return nil
}
