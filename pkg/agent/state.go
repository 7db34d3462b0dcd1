package agent

import "github.com/sri0013/vnf-project/pkg/vnf"

// FeaturesPerType is the width of one VNFType's feature block: CPU%, memory%, latency,
// throughput, active-instance count, and the forecaster's next-step point prediction for
// CPU.
const FeaturesPerType = 6

// TypeAggregate is the per-VNFType snapshot the control loop feeds to the agent each tick.
type TypeAggregate struct {
	VNFType         vnf.VNFType
	CPUPercent      float64
	MemoryPercent   float64
	LatencyMS       float64
	ThroughputRPS   float64
	ActiveInstances int
	ForecastPoint   float64
}

// ActionSpace fixes the ordering between action index and (kind, VNFType) pair: for K
// types the space has 3K entries, grouped type-major as
// [allocate_new(t0), drain_one(t0), no_op(t0), allocate_new(t1), ...].
type ActionSpace struct {
	types []vnf.VNFType
}

// NewActionSpace builds the fixed action space over types, in the given order.
func NewActionSpace(types []vnf.VNFType) ActionSpace {
	cp := append([]vnf.VNFType(nil), types...)
	return ActionSpace{types: cp}
}

func (a ActionSpace) Size() int { return len(a.types) * 3 }

func (a ActionSpace) Types() []vnf.VNFType { return a.types }

// Decode maps an action index to its (kind, VNFType) pair.
func (a ActionSpace) Decode(idx int) Action {
	t := a.types[idx/3]
	switch idx % 3 {
	case 0:
		return Action{Kind: ActionAllocateNew, VNFType: t}
	case 1:
		return Action{Kind: ActionDrainOne, VNFType: t}
	default:
		return Action{Kind: ActionNoOp, VNFType: t}
	}
}

// Encode is the inverse of Decode.
func (a ActionSpace) Encode(act Action) int {
	base := 0
	for i, t := range a.types {
		if t == act.VNFType {
			base = i * 3
			break
		}
	}
	switch act.Kind {
	case ActionAllocateNew:
		return base
	case ActionDrainOne:
		return base + 1
	default:
		return base + 2
	}
}

// EncodeState flattens per-type aggregates into the fixed-width State vector, in the
// action space's type order so the network's attention blocks line up with action blocks.
func (a ActionSpace) EncodeState(byType map[vnf.VNFType]TypeAggregate) State {
	s := make(State, 0, len(a.types)*FeaturesPerType)
	for _, t := range a.types {
		agg := byType[t]
		s = append(s,
			agg.CPUPercent,
			agg.MemoryPercent,
			agg.LatencyMS,
			agg.ThroughputRPS,
			float64(agg.ActiveInstances),
			agg.ForecastPoint,
		)
	}
	return s
}
