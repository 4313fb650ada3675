package triage

import (
	"context"
	"fmt"
)

// ItemState is the sealed interface for the states of one queue item.
type ItemState interface {
	// ProcessEvent handles an event and returns the next state along
	// with the outbox events to dispatch.
	ProcessEvent(ctx context.Context, event ItemEvent,
		env *ItemEnvironment) (*ItemTransition, error)

	// IsTerminal returns true once the item needs no more events.
	IsTerminal() bool

	String() string

	isItemState()
}

// ItemTransition is the result of processing an event.
type ItemTransition struct {
	NextState    ItemState
	OutboxEvents []ItemOutboxEvent
}

// ItemEnvironment is the context of the item being triaged.
type ItemEnvironment struct {
	ID string

	// OpenURL is the web link of the message, empty if there is none.
	OpenURL string
}

var (
	_ ItemState = (*StatePresenting)(nil)
	_ ItemState = (*StateDeciding)(nil)
	_ ItemState = (*StateExecuting)(nil)
	_ ItemState = (*StateAwaitingRecovery)(nil)
	_ ItemState = (*StateTerminal)(nil)
	_ ItemState = (*StateQuit)(nil)
)

// invalidEvent is the error for an event a state does not handle.
func invalidEvent(state ItemState, event ItemEvent) error {
	return violationf("event %T not valid in state %v", event, state)
}

// StatePresenting is the initial state: content is loaded but nothing has
// been shown yet.
type StatePresenting struct{}

func (*StatePresenting) isItemState()     {}
func (*StatePresenting) IsTerminal() bool { return false }
func (*StatePresenting) String() string   { return "presenting" }

// ProcessEvent handles events in the presenting state.
func (s *StatePresenting) ProcessEvent(_ context.Context, event ItemEvent,
	_ *ItemEnvironment) (*ItemTransition, error) {

	switch event.(type) {
	case PresentEvent:
		return &ItemTransition{
			NextState:    &StateDeciding{},
			OutboxEvents: []ItemOutboxEvent{RenderItem{}},
		}, nil

	default:
		return nil, invalidEvent(s, event)
	}
}

// StateDeciding waits for a keystroke.
type StateDeciding struct {
	// ShowFull is set while the full body is displayed.
	ShowFull bool
}

func (*StateDeciding) isItemState()     {}
func (*StateDeciding) IsTerminal() bool { return false }
func (*StateDeciding) String() string   { return "deciding" }

// ProcessEvent handles events in the deciding state.
func (s *StateDeciding) ProcessEvent(_ context.Context, event ItemEvent,
	env *ItemEnvironment) (*ItemTransition, error) {

	e, ok := event.(CommandEvent)
	if !ok {
		return nil, invalidEvent(s, event)
	}

	switch e.Command {
	case CommandArchive, CommandDelete, CommandTask, CommandReply:
		return &ItemTransition{
			NextState: &StateExecuting{Command: e.Command, Attempt: 1},
			OutboxEvents: []ItemOutboxEvent{
				RunAction{Command: e.Command, Attempt: 1},
			},
		}, nil

	case CommandOpen:
		if env.OpenURL == "" {
			return &ItemTransition{
				NextState: s,
				OutboxEvents: []ItemOutboxEvent{
					Warn{Msg: "this mailbox has no web view"},
				},
			}, nil
		}

		return &ItemTransition{
			NextState: s,
			OutboxEvents: []ItemOutboxEvent{
				OpenExternal{URL: env.OpenURL},
			},
		}, nil

	case CommandView:
		next := &StateDeciding{ShowFull: !s.ShowFull}
		return &ItemTransition{
			NextState: next,
			OutboxEvents: []ItemOutboxEvent{
				RenderItem{ShowFull: next.ShowFull},
			},
		}, nil

	case CommandSkip:
		outcome := Resolved(OutcomeSkipped)
		return &ItemTransition{
			NextState: &StateTerminal{Outcome: outcome},
			OutboxEvents: []ItemOutboxEvent{
				RecordOutcome{Outcome: outcome},
			},
		}, nil

	case CommandQuit:
		return &ItemTransition{NextState: &StateQuit{}}, nil

	default:
		return nil, violationf("unknown command %v", e.Command)
	}
}

// StateExecuting has exactly one action in flight.
type StateExecuting struct {
	Command Command
	Attempt int
}

func (*StateExecuting) isItemState()     {}
func (*StateExecuting) IsTerminal() bool { return false }
func (s *StateExecuting) String() string {
	return fmt.Sprintf("executing(%v)", s.Command)
}

// ProcessEvent handles the completion of the in-flight action.
func (s *StateExecuting) ProcessEvent(_ context.Context, event ItemEvent,
	_ *ItemEnvironment) (*ItemTransition, error) {

	switch e := event.(type) {
	case ActionSucceededEvent:
		if !e.Outcome.IsTerminal() {
			return nil, violationf("%v succeeded with a pending "+
				"outcome", s.Command)
		}

		return &ItemTransition{
			NextState: &StateTerminal{Outcome: e.Outcome},
			OutboxEvents: []ItemOutboxEvent{
				RecordOutcome{Outcome: e.Outcome},
			},
		}, nil

	case ActionFailedEvent:
		return &ItemTransition{
			NextState: &StateAwaitingRecovery{
				Command: s.Command,
				Attempt: s.Attempt,
				Err:     e.Err,
			},
			OutboxEvents: []ItemOutboxEvent{
				ReportFailure{Command: s.Command, Err: e.Err},
			},
		}, nil

	case ActionCancelledEvent:
		out := []ItemOutboxEvent{}
		if e.Warning != "" {
			out = append(out, Warn{Msg: e.Warning})
		}
		out = append(out, RenderItem{})

		return &ItemTransition{
			NextState:    &StateDeciding{},
			OutboxEvents: out,
		}, nil

	default:
		return nil, invalidEvent(s, event)
	}
}

// StateAwaitingRecovery holds a failed action until the user chooses to
// retry it, skip the item, or quit.
type StateAwaitingRecovery struct {
	Command Command
	Attempt int
	Err     error
}

func (*StateAwaitingRecovery) isItemState()     {}
func (*StateAwaitingRecovery) IsTerminal() bool { return false }
func (*StateAwaitingRecovery) String() string   { return "awaiting_recovery" }

// ProcessEvent handles the user's recovery choice.
func (s *StateAwaitingRecovery) ProcessEvent(_ context.Context,
	event ItemEvent, _ *ItemEnvironment) (*ItemTransition, error) {

	e, ok := event.(RecoveryEvent)
	if !ok {
		return nil, invalidEvent(s, event)
	}

	switch e.Choice {
	case RecoverRetry:
		attempt := s.Attempt + 1
		return &ItemTransition{
			NextState: &StateExecuting{
				Command: s.Command,
				Attempt: attempt,
			},
			OutboxEvents: []ItemOutboxEvent{
				RunAction{Command: s.Command, Attempt: attempt},
			},
		}, nil

	case RecoverSkip:
		outcome := Failed(s.Err.Error())
		return &ItemTransition{
			NextState: &StateTerminal{Outcome: outcome},
			OutboxEvents: []ItemOutboxEvent{
				RecordOutcome{Outcome: outcome},
			},
		}, nil

	default:
		return &ItemTransition{NextState: &StateQuit{}}, nil
	}
}

// StateTerminal is reached once the item's outcome is recorded.
type StateTerminal struct {
	Outcome Outcome
}

func (*StateTerminal) isItemState()     {}
func (*StateTerminal) IsTerminal() bool { return true }
func (s *StateTerminal) String() string {
	return "terminal(" + s.Outcome.String() + ")"
}

// ProcessEvent rejects every event.
func (s *StateTerminal) ProcessEvent(_ context.Context, event ItemEvent,
	_ *ItemEnvironment) (*ItemTransition, error) {

	return nil, invalidEvent(s, event)
}

// StateQuit ends the session with the item still pending.
type StateQuit struct{}

func (*StateQuit) isItemState()     {}
func (*StateQuit) IsTerminal() bool { return true }
func (*StateQuit) String() string   { return "quit" }

// ProcessEvent rejects every event.
func (s *StateQuit) ProcessEvent(_ context.Context, event ItemEvent,
	_ *ItemEnvironment) (*ItemTransition, error) {

	return nil, invalidEvent(s, event)
}
