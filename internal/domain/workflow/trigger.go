package workflow

// Trigger represents an action that moves an invoice to a target status.
// Each target status has exactly one trigger.
type Trigger string

const (
	TriggerMarkDraft  Trigger = "MARK_DRAFT"
	TriggerMarkIssued Trigger = "MARK_ISSUED"
	TriggerMarkPaid   Trigger = "MARK_PAID"
	TriggerCancel     Trigger = "CANCEL"
)

var triggerTargets = map[Trigger]State{
	TriggerMarkDraft:  StateDraft,
	TriggerMarkIssued: StateIssued,
	TriggerMarkPaid:   StatePaid,
	TriggerCancel:     StateCancelled,
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Target returns the status the trigger moves an invoice to
func (t Trigger) Target() (State, bool) {
	s, ok := triggerTargets[t]
	return s, ok
}

// TriggerFor returns the trigger whose target is the given status
func TriggerFor(to State) (Trigger, bool) {
	for trigger, target := range triggerTargets {
		if target == to {
			return trigger, true
		}
	}
	return "", false
}
