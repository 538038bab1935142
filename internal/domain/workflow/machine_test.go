package workflow

import (
	"context"
	"errors"
	"testing"
)

type guardKey struct{}

var errBlocked = errors.New("blocked")

var ready = WithIssueFacts(context.Background(), IssueFacts{HasExternalNumber: true, LinkedTasks: 1})

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"cancelled", StateCancelled, true},
		{"invalid state", State("VOID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsEditable(t *testing.T) {
	for _, s := range []State{StateIssued, StatePaid, StateCancelled} {
		if s.IsEditable() {
			t.Errorf("%s should not be editable", s)
		}
	}
	if !StateDraft.IsEditable() {
		t.Error("DRAFT should be editable")
	}
}

func TestTrigger_Target(t *testing.T) {
	for trigger, want := range map[Trigger]State{
		TriggerMarkDraft:  StateDraft,
		TriggerMarkIssued: StateIssued,
		TriggerMarkPaid:   StatePaid,
		TriggerCancel:     StateCancelled,
	} {
		got, ok := trigger.Target()
		if !ok || got != want {
			t.Errorf("%s.Target() = %v, %v, want %v", trigger, got, ok, want)
		}
		back, ok := TriggerFor(want)
		if !ok || back != trigger {
			t.Errorf("TriggerFor(%s) = %v, want %v", want, back, trigger)
		}
	}

	if _, ok := Trigger("MARK_VOID").Target(); ok {
		t.Error("unknown trigger should have no target")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	builder.Build(State("INVALID"))
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerMarkIssued, StateIssued, func(ctx context.Context) error {
			if ok, _ := ctx.Value(guardKey{}).(bool); !ok {
				return errBlocked
			}
			return nil
		})

	blocked := builder.Build(StateDraft)
	err := blocked.Fire(context.Background(), TriggerMarkIssued)
	if !errors.Is(err, ErrGuardFailed) || !errors.Is(err, errBlocked) {
		t.Fatalf("Fire() error = %v, want %v wrapping the guard reason", err, ErrGuardFailed)
	}
	if blocked.State() != StateDraft {
		t.Errorf("State should remain DRAFT after failed guard, got %v", blocked.State())
	}

	allowed := builder.Build(StateDraft)
	ctx := context.WithValue(context.Background(), guardKey{}, true)
	if err := allowed.Fire(ctx, TriggerMarkIssued); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if allowed.State() != StateIssued {
		t.Errorf("State after Fire() = %v, want %v", allowed.State(), StateIssued)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	machine1, _ := ForInvoice(StateDraft)
	machine2, _ := ForInvoice(StateDraft)

	if err := machine1.Fire(ready, TriggerMarkIssued); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if machine2.State() != StateDraft {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateDraft)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	machine, err := ForInvoice(StateIssued)
	if err != nil {
		t.Fatal(err)
	}

	got := machine.PermittedTriggers()
	want := []Trigger{TriggerCancel, TriggerMarkDraft, TriggerMarkPaid}
	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValidateTransition_Table(t *testing.T) {
	allowed := map[State]map[State]bool{
		StateDraft:     {StateIssued: true, StateCancelled: true},
		StateIssued:    {StateDraft: true, StatePaid: true, StateCancelled: true},
		StatePaid:      {StateDraft: true, StateIssued: true, StateCancelled: true},
		StateCancelled: {StateDraft: true},
	}
	states := []State{StateDraft, StateIssued, StatePaid, StateCancelled}

	for _, from := range states {
		for _, to := range states {
			err := ValidateTransition(ready, from, to)
			if allowed[from][to] {
				if err != nil {
					t.Errorf("ValidateTransition(%s, %s) = %v, want nil", from, to, err)
				}
				continue
			}

			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("ValidateTransition(%s, %s) = %v, want ErrInvalidTransition", from, to, err)
				continue
			}
			var te *TransitionError
			if !errors.As(err, &te) || te.From != from || te.To != to {
				t.Errorf("ValidateTransition(%s, %s) should name the rejected pair, got %v", from, to, err)
			}
		}
	}
}

func TestValidateTransition_InvalidStates(t *testing.T) {
	if err := ValidateTransition(ready, State("VOID"), StateDraft); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unknown source: got %v, want ErrInvalidState", err)
	}
	if err := ValidateTransition(ready, StateDraft, State("VOID")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unknown target: got %v, want ErrInvalidState", err)
	}
}

func TestAllowedTargets(t *testing.T) {
	got := AllowedTargets(StateCancelled)
	if len(got) != 1 || got[0] != StateDraft {
		t.Errorf("AllowedTargets(CANCELLED) = %v, want [DRAFT]", got)
	}
	if AllowedTargets(State("VOID")) != nil {
		t.Error("AllowedTargets of unknown state should be nil")
	}
}

func TestTransitionError_Message(t *testing.T) {
	err := &TransitionError{From: StateCancelled, To: StatePaid}
	if got := err.Error(); got != "cannot change invoice status from CANCELLED to PAID" {
		t.Errorf("Error() = %q", got)
	}
}

func TestForInvoice_EveryStateBuilds(t *testing.T) {
	// the table is assembled on first use, not during package initialization
	for _, s := range []State{StateDraft, StateIssued, StatePaid, StateCancelled} {
		machine, err := ForInvoice(s)
		if err != nil {
			t.Fatalf("ForInvoice(%s) failed: %v", s, err)
		}
		if machine.State() != s {
			t.Errorf("ForInvoice(%s).State() = %v", s, machine.State())
		}
	}
}

func TestValidateTransition_IssueGuard(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		want  error
		froms []State
	}{
		{
			name:  "no facts",
			ctx:   context.Background(),
			want:  ErrMissingExternalNumber,
			froms: []State{StateDraft, StatePaid},
		},
		{
			name:  "missing external number",
			ctx:   WithIssueFacts(context.Background(), IssueFacts{LinkedTasks: 3}),
			want:  ErrMissingExternalNumber,
			froms: []State{StateDraft, StatePaid},
		},
		{
			name:  "no linked tasks",
			ctx:   WithIssueFacts(context.Background(), IssueFacts{HasExternalNumber: true}),
			want:  ErrNoTasksLinked,
			froms: []State{StateDraft, StatePaid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, from := range tt.froms {
				err := ValidateTransition(tt.ctx, from, StateIssued)
				if !errors.Is(err, ErrGuardFailed) || !errors.Is(err, tt.want) {
					t.Errorf("ValidateTransition(%s, ISSUED) = %v, want %v", from, err, tt.want)
				}
			}
		})
	}

	// guards never apply to other targets
	if err := ValidateTransition(context.Background(), StateIssued, StatePaid); err != nil {
		t.Errorf("ISSUED -> PAID without facts = %v, want nil", err)
	}
	// an illegal pair reports the pair, not the guard
	var te *TransitionError
	if err := ValidateTransition(context.Background(), StateCancelled, StateIssued); !errors.As(err, &te) {
		t.Errorf("CANCELLED -> ISSUED = %v, want *TransitionError", err)
	}
}
