package vnf

import (
	"errors"
	"fmt"

	"github.com/sri0013/vnf-project/pkg/apierrors"
)

// Sentinel errors a Driver implementation may return from Create/Destroy, classified by
// Controller into the apierrors taxonomy (spec §4.3, §7).
var (
	ErrImageMissing         = errors.New("vnf: image missing")
	ErrInsufficientResources = errors.New("vnf: insufficient resources")
	ErrAlreadyDestroyed     = errors.New("vnf: already destroyed")
)

// classifyCreateError maps a Driver.Create error onto the orchestrator's error taxonomy.
func classifyCreateError(t VNFType, err error) error {
	switch {
	case errors.Is(err, ErrImageMissing):
		return apierrors.InvalidAction(fmt.Sprintf("image missing for vnf type %q", t), map[string]interface{}{"vnf_type": string(t)})
	case errors.Is(err, ErrInsufficientResources):
		return apierrors.Capacity(fmt.Sprintf("insufficient resources to create vnf type %q", t), map[string]interface{}{"vnf_type": string(t)})
	default:
		return apierrors.TransientIO("create", err)
	}
}
