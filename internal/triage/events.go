package triage

import "fmt"

// Command is a user decision on the current item.
type Command uint8

const (
	CommandArchive Command = iota
	CommandDelete
	CommandTask
	CommandReply
	CommandOpen
	CommandView
	CommandSkip
	CommandQuit
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandArchive:
		return "archive"
	case CommandDelete:
		return "delete"
	case CommandTask:
		return "task"
	case CommandReply:
		return "reply"
	case CommandOpen:
		return "open"
	case CommandView:
		return "view"
	case CommandSkip:
		return "skip"
	case CommandQuit:
		return "quit"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

// RecoveryChoice is the user's answer to a failed action.
type RecoveryChoice uint8

const (
	RecoverRetry RecoveryChoice = iota
	RecoverSkip
	RecoverQuit
)

// String returns the choice name.
func (r RecoveryChoice) String() string {
	switch r {
	case RecoverRetry:
		return "retry"
	case RecoverSkip:
		return "skip"
	default:
		return "quit"
	}
}

// ItemEvent is the sealed interface for events driving an ItemFSM.
type ItemEvent interface {
	isItemEvent()
}

func (PresentEvent) isItemEvent()         {}
func (CommandEvent) isItemEvent()         {}
func (ActionSucceededEvent) isItemEvent() {}
func (ActionFailedEvent) isItemEvent()    {}
func (ActionCancelledEvent) isItemEvent() {}
func (RecoveryEvent) isItemEvent()        {}

// PresentEvent shows the item to the user once its content is loaded.
type PresentEvent struct{}

// CommandEvent carries a keystroke decision.
type CommandEvent struct {
	Command Command
}

// ActionSucceededEvent reports that the executing action completed.
type ActionSucceededEvent struct {
	Outcome Outcome
}

// ActionFailedEvent reports that the executing action failed.
type ActionFailedEvent struct {
	Err error
}

// ActionCancelledEvent reports that the action was abandoned without
// effect, e.g. a reply draft the user discarded.
type ActionCancelledEvent struct {
	// Warning is shown to the user when non-empty.
	Warning string
}

// RecoveryEvent answers a failure prompt.
type RecoveryEvent struct {
	Choice RecoveryChoice
}
