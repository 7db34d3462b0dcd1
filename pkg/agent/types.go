// Package agent implements the learning agent (C6): a dueling DQN with a multi-head
// attention block over the per-VNFType state, trained by prioritized-replay double-DQN,
// per spec §4.6.
package agent

import "github.com/sri0013/vnf-project/pkg/vnf"

// ActionKind is the agent's tagged-variant action, per spec §4.6 and the REDESIGN
// FLAGS note on modeling the action space as a closed enumeration rather than a
// duck-typed dispatch.
type ActionKind int

const (
	ActionAllocateNew ActionKind = iota
	ActionDrainOne
	ActionNoOp
)

func (k ActionKind) String() string {
	switch k {
	case ActionAllocateNew:
		return "allocate_new"
	case ActionDrainOne:
		return "drain_one"
	case ActionNoOp:
		return "no_op"
	default:
		return "unknown"
	}
}

// Action names one of the 3K discrete actions: a kind applied to one VNFType.
type Action struct {
	Kind    ActionKind
	VNFType vnf.VNFType
}

// State is the flattened per-VNFType feature vector fed to the network. Its layout is
// K contiguous blocks of FeaturesPerType entries (see ActionSpace.EncodeState in state.go).
type State []float64

// Experience is one (s,a,r,s',done) transition, stored in the prioritized replay buffer
// with a TD-error-derived priority (spec §3's AgentExperience).
type Experience struct {
	State     State
	ActionIdx int
	Reward    float64
	NextState State
	Done      bool
}
