package lifecycle

// Scaling states per VNFType: steady -> scaling_out -> cooldown -> steady, mirrored for
// scale-in. A failed health probe during scaling_out rolls back directly to steady.
const (
	ScalingSteady    State = "steady"
	ScalingOut       State = "scaling_out"
	ScalingIn        State = "scaling_in"
	ScalingCooldown  State = "cooldown"
)

const (
	EventScaleOutStarted  Event = "scale_out_started"
	EventScaleInStarted   Event = "scale_in_started"
	EventScaleSucceeded   Event = "scale_succeeded"
	EventScaleRolledBack  Event = "scale_rolled_back"
	EventCooldownElapsed  Event = "cooldown_elapsed"
)

// NewScalingTable builds the per-VNFType scaling cycle table.
func NewScalingTable() Table {
	return NewTable(
		Transition{From: ScalingSteady, Event: EventScaleOutStarted, To: ScalingOut},
		Transition{From: ScalingSteady, Event: EventScaleInStarted, To: ScalingIn},
		Transition{From: ScalingOut, Event: EventScaleSucceeded, To: ScalingCooldown},
		Transition{From: ScalingOut, Event: EventScaleRolledBack, To: ScalingSteady},
		Transition{From: ScalingIn, Event: EventScaleSucceeded, To: ScalingCooldown},
		Transition{From: ScalingIn, Event: EventScaleRolledBack, To: ScalingSteady},
		Transition{From: ScalingCooldown, Event: EventCooldownElapsed, To: ScalingSteady},
	)
}

// NewScalingManager creates a Manager dedicated to per-VNFType scaling cycles; one
// Machine is created per VNFType, keyed by its string tag.
func NewScalingManager() *Manager {
	return NewManager(NewScalingTable())
}
