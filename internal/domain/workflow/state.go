package workflow

// State represents an invoice lifecycle status
type State string

const (
	StateDraft     State = "DRAFT"
	StateIssued    State = "ISSUED"
	StatePaid      State = "PAID"
	StateCancelled State = "CANCELLED"
)

// IsEditable returns true if invoice metadata and task links may change in this state
func (s State) IsEditable() bool {
	return s == StateDraft
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known invoice status
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StateIssued, StatePaid, StateCancelled:
		return true
	default:
		return false
	}
}
