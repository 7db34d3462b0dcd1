// Package sfc implements the SFC allocator (C8): it maps a typed chain request onto
// concrete instances via C3/C4, reserves capacity, installs flow rules in chain order,
// and tracks the resulting ChainInstance through its lifecycle, per spec §4.8.
package sfc

import (
	"time"

	"github.com/google/uuid"

	"github.com/sri0013/vnf-project/pkg/vnf"
)

// ChainRequest is the allocator's input, immutable after construction (spec §3).
type ChainRequest struct {
	RequestID string
	Types     []vnf.VNFType
	Priority  int // 1-10, drives the installed rules' flow priority
	// Bidirectional requests the allocator additionally build a complementary chain in
	// reversed type order (or ReverseTypes, if set), both of which must succeed.
	Bidirectional bool
	ReverseTypes  []vnf.VNFType
	Metadata      map[string]interface{}
}

// reverseOrder returns the complementary chain's type order: ReverseTypes if the
// request overrides it, otherwise Types reversed (spec §4.8's default).
func (r ChainRequest) reverseOrder() []vnf.VNFType {
	if len(r.ReverseTypes) > 0 {
		return r.ReverseTypes
	}
	out := make([]vnf.VNFType, len(r.Types))
	for i, t := range r.Types {
		out[len(r.Types)-1-i] = t
	}
	return out
}

// Status is a ChainInstance's lifecycle tag, mirroring the lifecycle.Chain* states.
type Status string

const (
	StatusActive   Status = "active"
	StatusFailed   Status = "failed"
	StatusTornDown Status = "torn-down"
)

// ChainInstance is a realized SFC: concrete instances and flow rules bound to one
// request (spec §3). ReverseChainID links a bidirectional request's two legs.
type ChainInstance struct {
	ChainID         string
	Request         ChainRequest
	InstanceByType  map[vnf.VNFType]string
	FlowRuleIDs     []string
	Status          Status
	StartedAt       time.Time
	StoppedAt       time.Time
	LatencySamplesMS []float64
	ReverseChainID  string
}

func newChainID() string {
	return uuid.NewString()
}
