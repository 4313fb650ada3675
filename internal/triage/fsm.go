package triage

import (
	"context"
	"fmt"
)

// ItemFSM is the state machine of the current queue item.
type ItemFSM struct {
	env   *ItemEnvironment
	state ItemState
}

// NewItemFSM returns an FSM in the presenting state.
func NewItemFSM(env *ItemEnvironment) *ItemFSM {
	return &ItemFSM{env: env, state: &StatePresenting{}}
}

// State returns the current state.
func (f *ItemFSM) State() ItemState {
	return f.state
}

// IsTerminal returns true once the item is resolved or the user quit.
func (f *ItemFSM) IsTerminal() bool {
	return f.state.IsTerminal()
}

// ProcessEvent applies event and returns the outbox events to dispatch.
func (f *ItemFSM) ProcessEvent(ctx context.Context,
	event ItemEvent) ([]ItemOutboxEvent, error) {

	transition, err := f.state.ProcessEvent(ctx, event, f.env)
	if err != nil {
		return nil, fmt.Errorf("process event %T: %w", event, err)
	}

	f.state = transition.NextState

	return transition.OutboxEvents, nil
}
