package lifecycle

// ChainInstance lifecycle: active only once every flow rule is installed and every
// referenced instance is active; failed allocations never reach active.
const (
	ChainActive   State = "active"
	ChainFailed   State = "failed"
	ChainTornDown State = "torn-down"
)

const (
	EventChainActivated = Event("chain_activated")
	EventChainFailed    = Event("chain_failed")
	EventChainTornDown  = Event("chain_torn_down")
)

// chainPending is the machine's initial state before activation succeeds or fails; it is
// intentionally distinct from ChainActive so CanFire(EventChainActivated) is observable.
const chainPending State = "pending"

// NewChainTable builds the ChainInstance lifecycle table.
func NewChainTable() Table {
	return NewTable(
		Transition{From: chainPending, Event: EventChainActivated, To: ChainActive},
		Transition{From: chainPending, Event: EventChainFailed, To: ChainFailed},
		Transition{From: ChainActive, Event: EventChainTornDown, To: ChainTornDown},
		Transition{From: ChainFailed, Event: EventChainTornDown, To: ChainTornDown},
	)
}

// NewChainManager creates a Manager dedicated to ChainInstance lifecycles.
func NewChainManager() *Manager {
	return NewManager(NewChainTable())
}

// ChainInitialState is the state every new ChainInstance machine should be created with.
const ChainInitialState = chainPending
