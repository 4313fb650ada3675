package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/roasbeef/clinbox/internal/browser"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/triage"
)

// Surface is the terminal front end of a triage session. Every card runs
// its own bubbletea program and every prompt its own huh form, so the
// session stays in control between keystrokes.
type Surface struct {
	in  io.Reader
	out io.Writer

	keys *KeyMap

	open func(url string) error

	mu      sync.Mutex
	pending []notice
}

// Option configures a Surface.
type Option func(*Surface)

// WithInput reads keys from r instead of stdin.
func WithInput(r io.Reader) Option {
	return func(s *Surface) {
		s.in = r
	}
}

// WithOutput draws to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Surface) {
		s.out = w
	}
}

// WithOpener replaces the browser launcher.
func WithOpener(open func(url string) error) Option {
	return func(s *Surface) {
		s.open = open
	}
}

// New creates a terminal surface.
func New(opts ...Option) *Surface {
	s := &Surface{
		in:   os.Stdin,
		out:  os.Stdout,
		keys: DefaultKeyMap(),
		open: browser.Open,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ triage.Surface = (*Surface)(nil)

// takeNotices drains the notices raised since the last card.
func (s *Surface) takeNotices() []notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil

	return out
}

// Decide shows the card of an item and waits for a command key.
func (s *Surface) Decide(ctx context.Context,
	view *triage.ItemView) (triage.Command, error) {

	m := newDecideModel(view, s.keys, s.takeNotices())

	final, err := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
	).Run()
	if err != nil {
		if ctx.Err() != nil {
			return triage.CommandQuit, ctx.Err()
		}

		return triage.CommandQuit, fmt.Errorf("run card: %w", err)
	}

	dm, ok := final.(*decideModel)
	if !ok || !dm.done {
		return triage.CommandQuit, nil
	}

	return dm.chosen, nil
}

// runForm runs a form and maps an abort to a cancel.
func (s *Surface) runForm(ctx context.Context, form *huh.Form) (bool,
	error) {

	err := form.WithInput(s.in).WithOutput(s.out).RunWithContext(ctx)
	switch {
	case err == nil:
		return true, nil

	case errors.Is(err, huh.ErrUserAborted):
		return false, nil

	case ctx.Err() != nil:
		return false, ctx.Err()

	default:
		return false, err
	}
}

// ConfirmTask lets the user edit the title of a new task.
func (s *Surface) ConfirmTask(ctx context.Context, view *triage.ItemView,
	title string) (string, bool, error) {

	confirmed := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Task title").
				Description(mailsource.Truncate(
					view.Content.Subject, subjectWidth,
				)).
				Value(&title),
			huh.NewConfirm().
				Title("Create task?").
				Affirmative("Create").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	ok, err := s.runForm(ctx, form)
	if err != nil || !ok {
		return "", false, err
	}

	return title, confirmed, nil
}

// ReviewDraft lets the user edit a reply before it is sent.
func (s *Surface) ReviewDraft(ctx context.Context, view *triage.ItemView,
	draft string) (string, bool, error) {

	send := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Reply to "+view.Content.SenderName()).
				Lines(10).
				Value(&draft),
			huh.NewConfirm().
				Title("Send reply?").
				Affirmative("Send").
				Negative("Cancel").
				Value(&send),
		),
	)

	ok, err := s.runForm(ctx, form)
	if err != nil || !ok {
		return "", false, err
	}

	return draft, send, nil
}

// Recover reports a failed action and asks what to do next.
func (s *Surface) Recover(ctx context.Context, view *triage.ItemView,
	action string, actionErr error) (triage.RecoveryChoice, error) {

	choice := triage.RecoverRetry
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[triage.RecoveryChoice]().
				Title(fmt.Sprintf("%s failed", action)).
				Description(actionErr.Error()).
				Options(
					huh.NewOption("Retry", triage.RecoverRetry),
					huh.NewOption("Skip this message",
						triage.RecoverSkip),
					huh.NewOption("Quit", triage.RecoverQuit),
				).
				Value(&choice),
		),
	)

	ok, err := s.runForm(ctx, form)
	if err != nil {
		return triage.RecoverQuit, err
	}
	if !ok {
		return triage.RecoverQuit, nil
	}

	return choice, nil
}

// Notify queues a message for the next card. Errors are also written
// out right away since the session may end before another card.
func (s *Surface) Notify(level triage.NoticeLevel, msg string) {
	s.mu.Lock()
	s.pending = append(s.pending, notice{level: level, msg: msg})
	s.mu.Unlock()

	if level == triage.NoticeError {
		fmt.Fprintln(s.out, renderNotice(level, msg))
	}
}

// OpenURL opens a link in the browser.
func (s *Surface) OpenURL(url string) error {
	return s.open(url)
}

// Summary prints the session report along with any notices that never
// reached a card.
func (s *Surface) Summary(stats *triage.Stats) {
	for _, n := range s.takeNotices() {
		if n.level == triage.NoticeError {
			continue
		}
		fmt.Fprintln(s.out, renderNotice(n.level, n.msg))
	}

	fmt.Fprint(s.out, renderSummary(stats))
}
