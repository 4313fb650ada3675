package triage

import (
	"context"

	"github.com/roasbeef/clinbox/internal/mailsource"
)

// NoticeLevel is the severity of a message shown to the user.
type NoticeLevel uint8

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// String returns the level name.
func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarn:
		return "warn"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// ItemView is what the user sees of the current item.
type ItemView struct {
	// Position is the zero based index of the item and Total the queue
	// length.
	Position int
	Total    int

	Ref     mailsource.MessageRef
	Content *mailsource.Content

	// ShowFull selects the full body over the summary card.
	ShowFull bool

	// Analysis polls the pipeline. It may move from pending to ready or
	// failed while the item is displayed.
	Analysis func() AnalysisState

	// Notice is the last warning raised for the item, if any.
	Notice string
}

// Surface is the interactive front end of a session. Every method blocks
// until the user answers. A method returning ctx.Err() after the context
// is cancelled is treated as a quit.
type Surface interface {
	// Decide shows the item and returns the chosen command.
	Decide(ctx context.Context, view *ItemView) (Command, error)

	// ConfirmTask lets the user edit the title of a new task. It returns
	// false if the user cancelled.
	ConfirmTask(ctx context.Context, view *ItemView,
		title string) (string, bool, error)

	// ReviewDraft lets the user edit a reply draft. It returns false if
	// the user cancelled.
	ReviewDraft(ctx context.Context, view *ItemView,
		draft string) (string, bool, error)

	// Recover reports a failed action and asks whether to retry it, skip
	// the item, or quit.
	Recover(ctx context.Context, view *ItemView, action string,
		err error) (RecoveryChoice, error)

	// Notify shows a message without waiting for an answer.
	Notify(level NoticeLevel, msg string)

	// OpenURL opens a link in the browser.
	OpenURL(url string) error

	// Summary shows the counts of the finished session.
	Summary(stats *Stats)
}
