// Package flowcontrol implements the flow controller (C4): the FlowRule table, the
// round-robin load-balancing cursor (delegated to each VNFType's vnf.Pool), and the
// Flow API HTTP surface.
package flowcontrol

import (
	"time"

	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Status is a FlowRule's lifecycle tag.
type Status string

const (
	StatusActive  Status = "active"
	StatusRemoved Status = "removed"
)

// FlowRule is (flow_id, VNFType, instance id, priority, status, created_at) per spec §3.
// ChainID is empty for rules installed outside chain allocation (e.g. the scaling
// controller's own AddRule calls); the SFC allocator tags its own rules via
// AddRuleForChain so a torn-down or rolled-back chain's rules are identifiable.
type FlowRule struct {
	ID         string
	VNFType    vnf.VNFType
	InstanceID string
	Priority   int
	Status     Status
	CreatedAt  time.Time
	ChainID    string
}
