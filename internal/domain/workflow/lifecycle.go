package workflow

import (
	"context"
	"fmt"
	"sync"
)

var (
	lifecycleOnce sync.Once
	lifecycle     StateMachineBuilder
)

// invoiceLifecycle returns the invoice transition table:
//
//	DRAFT     -> ISSUED*, CANCELLED
//	ISSUED    -> DRAFT, PAID, CANCELLED
//	PAID      -> DRAFT, ISSUED*, CANCELLED
//	CANCELLED -> DRAFT
//
// * guarded by issueReady
func invoiceLifecycle() StateMachineBuilder {
	lifecycleOnce.Do(func() {
		b := NewBuilder()

		b.Configure(StateDraft).
			PermitIf(TriggerMarkIssued, StateIssued, issueReady).
			Permit(TriggerCancel, StateCancelled)

		b.Configure(StateIssued).
			Permit(TriggerMarkDraft, StateDraft).
			Permit(TriggerMarkPaid, StatePaid).
			Permit(TriggerCancel, StateCancelled)

		b.Configure(StatePaid).
			Permit(TriggerMarkDraft, StateDraft).
			PermitIf(TriggerMarkIssued, StateIssued, issueReady).
			Permit(TriggerCancel, StateCancelled)

		b.Configure(StateCancelled).
			Permit(TriggerMarkDraft, StateDraft)

		lifecycle = b
	})
	return lifecycle
}

// IssueFacts are what the ISSUED guard needs to know about an invoice
type IssueFacts struct {
	HasExternalNumber bool
	LinkedTasks       int
}

type issueFactsKey struct{}

// WithIssueFacts attaches the facts checked when an invoice moves to ISSUED
func WithIssueFacts(ctx context.Context, facts IssueFacts) context.Context {
	return context.WithValue(ctx, issueFactsKey{}, facts)
}

// issueReady requires an external number and at least one linked task.
// A context without facts fails the guard.
func issueReady(ctx context.Context) error {
	facts, _ := ctx.Value(issueFactsKey{}).(IssueFacts)
	if !facts.HasExternalNumber {
		return ErrMissingExternalNumber
	}
	if facts.LinkedTasks == 0 {
		return ErrNoTasksLinked
	}
	return nil
}

// ForInvoice returns a lifecycle machine positioned at the invoice's current status
func ForInvoice(current State) (StateMachine, error) {
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, current)
	}
	return invoiceLifecycle().Build(current), nil
}

// ValidateTransition is the single legality check shared by every status
// change path. Pairs outside the table yield a *TransitionError; a failed
// guard yields an error wrapping ErrGuardFailed and the guard's reason.
func ValidateTransition(ctx context.Context, from, to State) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, to)
	}
	machine, err := ForInvoice(from)
	if err != nil {
		return err
	}

	trigger, _ := TriggerFor(to)
	if !machine.CanFire(trigger) {
		return &TransitionError{From: from, To: to}
	}
	return machine.Fire(ctx, trigger)
}

// AllowedTargets lists the statuses the table reaches from the given one.
// Guards are not evaluated.
func AllowedTargets(from State) []State {
	machine, err := ForInvoice(from)
	if err != nil {
		return nil
	}
	triggers := machine.PermittedTriggers()
	targets := make([]State, 0, len(triggers))
	for _, trigger := range triggers {
		if s, ok := trigger.Target(); ok {
			targets = append(targets, s)
		}
	}
	return targets
}
