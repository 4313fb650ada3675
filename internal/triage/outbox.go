package triage

// ItemOutboxEvent is the sealed interface for side effects requested by
// the item state machine. The Session dispatches them.
type ItemOutboxEvent interface {
	isItemOutboxEvent()
}

func (RenderItem) isItemOutboxEvent()    {}
func (RunAction) isItemOutboxEvent()     {}
func (RecordOutcome) isItemOutboxEvent() {}
func (ReportFailure) isItemOutboxEvent() {}
func (OpenExternal) isItemOutboxEvent()  {}
func (Warn) isItemOutboxEvent()          {}

// RenderItem redraws the item card.
type RenderItem struct {
	ShowFull bool
}

// RunAction executes a command against the mail source or task store.
type RunAction struct {
	Command Command
	Attempt int
}

// RecordOutcome resolves the queue item and saves the checkpoint.
type RecordOutcome struct {
	Outcome Outcome
}

// ReportFailure asks the user how to recover from a failed action.
type ReportFailure struct {
	Command Command
	Err     error
}

// OpenExternal opens the message in the browser.
type OpenExternal struct {
	URL string
}

// Warn shows a non-fatal message.
type Warn struct {
	Msg string
}
