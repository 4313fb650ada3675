package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/task"
)

// DefaultActionTimeout bounds a foreground call to the mail source.
const DefaultActionTimeout = 30 * time.Second

// TaskStore is the local store tasks are appended to.
type TaskStore interface {
	// AppendIfAbsent stores t unless a task for the same source message
	// exists. It returns true if t was stored.
	AppendIfAbsent(ctx context.Context, t task.Task) (bool, error)

	// ListPending returns the tasks not yet completed.
	ListPending(ctx context.Context) ([]task.Task, error)
}

// Checkpointer persists the queue of a session between runs.
type Checkpointer interface {
	// Save replaces the checkpoint for the snapshot's filter.
	Save(ctx context.Context, snap Snapshot) error

	// Load returns the checkpoint stored for filter, if any.
	Load(ctx context.Context,
		filter mailsource.Filter) (fn.Option[Snapshot], error)

	// Delete removes the checkpoint for filter.
	Delete(ctx context.Context, filter mailsource.Filter) error
}

// SessionConfig holds the collaborators and settings of a Session.
type SessionConfig struct {
	Source      mailsource.Source
	Analyzer    analysis.Analyzer
	Composer    analysis.Composer
	Tasks       TaskStore
	Checkpoints Checkpointer
	Surface     Surface

	Pipeline PipelineConfig

	// ActionTimeout bounds each mutation and send.
	ActionTimeout time.Duration

	// ArchiveAfterTask and ArchiveAfterReply archive the message once
	// the task or the reply succeeded.
	ArchiveAfterTask  bool
	ArchiveAfterReply bool

	// Fresh discards any checkpoint and builds a new queue.
	Fresh bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Session runs one interactive triage pass over a mailbox.
type Session struct {
	cfg SessionConfig
	log *slog.Logger
}

// NewSession returns a session over cfg's collaborators.
func NewSession(cfg SessionConfig, log *slog.Logger) *Session {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Session{cfg: cfg, log: log}
}

// Run triages the messages selected by filter until the queue is
// exhausted or the user quits. It fails if the queue cannot be built or an
// invariant is violated; action failures are handled with the user.
func (s *Session) Run(ctx context.Context,
	filter mailsource.Filter) (*Stats, error) {

	stats := newStats()

	queue, err := s.openQueue(ctx, filter, stats)
	if err != nil {
		return nil, err
	}
	stats.Total = queue.Len()

	s.log.Info("Starting triage session", "filter", filter,
		"items", queue.Len(), "cursor", queue.Cursor(),
		"resumed", stats.Resumed)

	if queue.Len() == 0 {
		s.cfg.Surface.Notify(NoticeInfo, "No messages to triage.")
	}

	pipeline := NewPipeline(
		s.cfg.Pipeline, s.cfg.Source, s.cfg.Analyzer, s.log,
	)
	pipeline.Start(ctx, queue)
	defer pipeline.Stop()

	for !queue.Done() {
		quit, err := s.triageCurrent(ctx, queue, pipeline, stats)
		if err != nil {
			s.log.Error("Triage session aborted", "err", err)
			return stats, err
		}
		if quit {
			stats.Quit = true
			break
		}

		if err := queue.Advance(); err != nil {
			return stats, err
		}
		pipeline.TopUp(queue.Cursor())
	}

	stats.Remaining = queue.Pending()
	if queue.Done() {
		err := s.cfg.Checkpoints.Delete(
			context.WithoutCancel(ctx), filter,
		)
		if err != nil {
			s.log.Warn("Unable to delete finished checkpoint",
				"err", err)
		}
	}

	s.log.Info("Triage session finished", "processed",
		stats.Processed(), "remaining", stats.Remaining,
		"quit", stats.Quit)

	s.cfg.Surface.Summary(stats)

	return stats, nil
}

// openQueue resumes the checkpoint for filter or builds a new queue.
func (s *Session) openQueue(ctx context.Context, filter mailsource.Filter,
	stats *Stats) (*Queue, error) {

	if s.cfg.Fresh {
		if err := s.cfg.Checkpoints.Delete(ctx, filter); err != nil {
			s.log.Warn("Unable to discard checkpoint", "err", err)
		}
	} else if q := s.resume(ctx, filter); q != nil {
		stats.Resumed = true
		return q, nil
	}

	queue, err := BuildQueue(ctx, s.cfg.Source, filter)
	if err != nil {
		return nil, err
	}
	s.save(ctx, queue)

	return queue, nil
}

// resume returns the queue stored for filter, or nil if there is none
// worth resuming.
func (s *Session) resume(ctx context.Context,
	filter mailsource.Filter) *Queue {

	snapOpt, err := s.cfg.Checkpoints.Load(ctx, filter)
	if err != nil {
		s.log.Warn("Unable to read checkpoint, starting fresh",
			"err", err)
		s.cfg.Surface.Notify(NoticeWarn,
			"Saved session is unreadable, starting a new one.")

		return nil
	}

	var queue *Queue
	snapOpt.WhenSome(func(snap Snapshot) {
		if snap.Filter.Canonical() != filter.Canonical() {
			s.log.Info("Discarding checkpoint for another filter",
				"stored", snap.Filter, "requested", filter)
			return
		}

		q, err := QueueFromSnapshot(snap)
		if err != nil {
			s.log.Warn("Discarding corrupt checkpoint", "err", err)
			s.cfg.Surface.Notify(NoticeWarn,
				"Saved session is corrupt, starting a new one.")
			return
		}
		if q.Done() {
			return
		}

		queue = q
	})

	if queue != nil {
		s.cfg.Surface.Notify(NoticeInfo, fmt.Sprintf(
			"Resuming session at message %d of %d.",
			queue.Cursor()+1, queue.Len(),
		))
	}

	return queue
}

// save writes the checkpoint. A failure is a warning: the in-memory queue
// stays authoritative and the next save retries.
func (s *Session) save(ctx context.Context, queue *Queue) {
	err := s.cfg.Checkpoints.Save(context.WithoutCancel(ctx), queue.Snapshot())
	if err != nil {
		ioErr := &IOError{Op: "save checkpoint", Err: err}
		s.log.Warn("Checkpoint not saved", "err", ioErr)
		s.cfg.Surface.Notify(NoticeWarn, ioErr.Error())
	}
}

// triageCurrent drives the current item to a terminal state. It returns
// true if the user quit.
func (s *Session) triageCurrent(ctx context.Context, queue *Queue,
	pipeline *Pipeline, stats *Stats) (bool, error) {

	var item QueueItem
	queue.Current().WhenSome(func(i QueueItem) {
		item = i
	})
	id := item.Ref.ID

	view := &ItemView{
		Position: queue.Cursor(),
		Total:    queue.Len(),
		Ref:      item.Ref,
		Analysis: func() AnalysisState {
			return pipeline.ResultFor(id)
		},
	}

	d := &itemDriver{
		session:  s,
		queue:    queue,
		pipeline: pipeline,
		stats:    stats,
		view:     view,
	}

	content, quit, err := d.loadContent(ctx)
	if err != nil || quit || content == nil {
		return quit, err
	}
	view.Content = content

	d.fsm = NewItemFSM(&ItemEnvironment{
		ID:      id,
		OpenURL: s.cfg.Source.OpenURL(id),
	})

	return d.run(ctx)
}

// itemDriver dispatches the outbox of one item's state machine.
type itemDriver struct {
	session  *Session
	queue    *Queue
	pipeline *Pipeline
	stats    *Stats
	view     *ItemView
	fsm      *ItemFSM

	// taskTitle and draft survive a retry so the user is not asked
	// twice.
	taskTitle string
	draft     string
}

// loadContent waits for the item's content, asking the user how to
// proceed while the fetch fails. A nil content with no error means the
// item was resolved as failed or the user quit.
func (d *itemDriver) loadContent(
	ctx context.Context) (*mailsource.Content, bool, error) {

	s := d.session
	id := d.view.Ref.ID

	content, err := d.pipeline.AwaitContent(ctx, id)
	for err != nil {
		if ctx.Err() != nil {
			return nil, true, nil
		}

		s.log.Warn("Unable to fetch message", "id", id, "err", err)

		choice, perr := s.cfg.Surface.Recover(ctx, d.view, "fetch", err)
		if perr != nil {
			return nil, ctx.Err() != nil, d.surfaceErr(ctx, perr)
		}

		switch choice {
		case RecoverRetry:
			content, err = d.pipeline.AwaitContent(ctx, id)

		case RecoverSkip:
			return nil, false, d.record(ctx, Failed(err.Error()))

		default:
			return nil, true, nil
		}
	}

	return content, false, nil
}

// run feeds events to the state machine until the item is terminal.
func (d *itemDriver) run(ctx context.Context) (bool, error) {
	var event ItemEvent = PresentEvent{}
	for {
		outbox, err := d.fsm.ProcessEvent(ctx, event)
		if err != nil {
			return false, err
		}

		var next ItemEvent
		for _, out := range outbox {
			ev, err := d.dispatch(ctx, out)
			if err != nil {
				return false, err
			}
			if ev != nil {
				next = ev
			}
		}

		switch d.fsm.State().(type) {
		case *StateQuit:
			return true, nil

		case *StateTerminal:
			return false, nil
		}

		if next == nil {
			next, err = d.decide(ctx)
			if err != nil {
				return false, err
			}
		}
		event = next
	}
}

// decide asks the user for a command.
func (d *itemDriver) decide(ctx context.Context) (ItemEvent, error) {
	if _, ok := d.fsm.State().(*StateDeciding); !ok {
		return nil, violationf("waiting for input in state %v",
			d.fsm.State())
	}

	cmd, err := d.session.cfg.Surface.Decide(ctx, d.view)
	if err != nil {
		if ctx.Err() != nil {
			return CommandEvent{Command: CommandQuit}, nil
		}

		return nil, d.surfaceErr(ctx, err)
	}
	d.view.Notice = ""

	return CommandEvent{Command: cmd}, nil
}

// dispatch performs one outbox event and returns the event it produced,
// if any.
func (d *itemDriver) dispatch(ctx context.Context,
	out ItemOutboxEvent) (ItemEvent, error) {

	s := d.session

	switch o := out.(type) {
	case RenderItem:
		d.view.ShowFull = o.ShowFull
		return nil, nil

	case Warn:
		d.view.Notice = o.Msg
		s.cfg.Surface.Notify(NoticeWarn, o.Msg)
		return nil, nil

	case OpenExternal:
		if err := s.cfg.Surface.OpenURL(o.URL); err != nil {
			s.log.Warn("Unable to open browser", "url", o.URL,
				"err", err)
			d.view.Notice = "Unable to open browser: " + err.Error()
		}
		return nil, nil

	case RunAction:
		return d.execute(ctx, o.Command, o.Attempt)

	case ReportFailure:
		choice, err := s.cfg.Surface.Recover(
			ctx, d.view, o.Command.String(), o.Err,
		)
		if err != nil {
			if ctx.Err() != nil {
				return RecoveryEvent{Choice: RecoverQuit}, nil
			}
			return nil, d.surfaceErr(ctx, err)
		}
		return RecoveryEvent{Choice: choice}, nil

	case RecordOutcome:
		return nil, d.record(ctx, o.Outcome)

	default:
		return nil, violationf("unknown outbox event %T", out)
	}
}

// record resolves the current item and writes the checkpoint before the
// queue may advance.
func (d *itemDriver) record(ctx context.Context, outcome Outcome) error {
	if err := d.queue.Resolve(outcome); err != nil {
		return err
	}
	d.stats.Counts[outcome.Kind]++

	d.session.log.Info("Item resolved", "id", d.view.Ref.ID,
		"outcome", outcome)

	d.session.save(ctx, d.queue)

	return nil
}

func (d *itemDriver) surfaceErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}

	return fmt.Errorf("surface: %w", err)
}

// execute runs an action and reports its result as an event.
func (d *itemDriver) execute(ctx context.Context, cmd Command,
	attempt int) (ItemEvent, error) {

	d.session.log.Debug("Executing action", "id", d.view.Ref.ID,
		"action", cmd, "attempt", attempt)

	switch cmd {
	case CommandArchive:
		return d.mutate(ctx, mailsource.MutationArchive,
			OutcomeArchived), nil

	case CommandDelete:
		return d.mutate(ctx, mailsource.MutationTrash,
			OutcomeDeleted), nil

	case CommandTask:
		return d.createTask(ctx)

	case CommandReply:
		return d.reply(ctx)

	default:
		return nil, violationf("%v is not an action", cmd)
	}
}

func (d *itemDriver) mutate(ctx context.Context, op mailsource.Mutation,
	kind OutcomeKind) ItemEvent {

	if err := d.applyMutation(ctx, op); err != nil {
		return ActionFailedEvent{Err: err}
	}

	return ActionSucceededEvent{Outcome: Resolved(kind)}
}

func (d *itemDriver) applyMutation(ctx context.Context,
	op mailsource.Mutation) error {

	s := d.session
	id := d.view.Ref.ID

	actx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	if err := s.cfg.Source.Mutate(actx, id, op); err != nil {
		s.log.Warn("Mutation failed", "id", id, "op", op, "err", err)
		return &RemoteError{Op: op.String(), ID: id, Err: err}
	}

	return nil
}

// followUpArchive archives the message after a task or reply. The outcome
// is already decided, so a failure only warns.
func (d *itemDriver) followUpArchive(ctx context.Context) {
	if err := d.applyMutation(ctx, mailsource.MutationArchive); err != nil {
		d.session.cfg.Surface.Notify(NoticeWarn,
			"Follow-up archive failed: "+err.Error())
	}
}

func (d *itemDriver) createTask(ctx context.Context) (ItemEvent, error) {
	s := d.session
	content := d.view.Content

	title, description := content.Subject, ""
	if res, ok := d.pipeline.ResultFor(content.ID).Ready(); ok {
		if res.SuggestedAction != "" {
			title = res.SuggestedAction
		}
		description = res.Summary
	}
	if title == "" {
		title = "Follow up on message from " + content.SenderName()
	}

	if d.taskTitle == "" {
		edited, ok, err := s.cfg.Surface.ConfirmTask(ctx, d.view, title)
		if err != nil {
			if ctx.Err() != nil {
				return ActionCancelledEvent{}, nil
			}
			return nil, d.surfaceErr(ctx, err)
		}
		if !ok {
			return ActionCancelledEvent{}, nil
		}
		d.taskTitle = edited
	}

	t := task.New(
		content.ID, d.taskTitle, description, content.Subject,
		s.cfg.Now(),
	)
	created, err := s.cfg.Tasks.AppendIfAbsent(ctx, t)
	if err != nil {
		return ActionFailedEvent{
			Err: &IOError{Op: "append task", Err: err},
		}, nil
	}

	if created {
		s.log.Info("Task created", "id", content.ID, "task", t.ID)
	} else {
		s.log.Info("Task already exists", "id", content.ID)
	}

	if s.cfg.ArchiveAfterTask {
		d.followUpArchive(ctx)
	}

	return ActionSucceededEvent{Outcome: Resolved(OutcomeTaskCreated)}, nil
}

func (d *itemDriver) reply(ctx context.Context) (ItemEvent, error) {
	s := d.session
	content := d.view.Content

	if d.draft == "" {
		draft, err := d.compose(ctx)
		if err != nil {
			s.log.Warn("Reply draft failed", "id", content.ID,
				"err", err)
			return ActionCancelledEvent{Warning: err.Error()}, nil
		}

		edited, ok, err := s.cfg.Surface.ReviewDraft(ctx, d.view, draft)
		if err != nil {
			if ctx.Err() != nil {
				return ActionCancelledEvent{}, nil
			}
			return nil, d.surfaceErr(ctx, err)
		}
		if !ok || edited == "" {
			return ActionCancelledEvent{}, nil
		}
		d.draft = edited
	}

	actx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	if err := s.cfg.Source.Send(actx, content.ID, d.draft); err != nil {
		return ActionFailedEvent{
			Err: &RemoteError{Op: "send", ID: content.ID, Err: err},
		}, nil
	}

	if s.cfg.ArchiveAfterReply {
		d.followUpArchive(ctx)
	}

	return ActionSucceededEvent{Outcome: Resolved(OutcomeReplied)}, nil
}

// compose drafts a reply in the tone of the original message, bounded by
// the action timeout.
func (d *itemDriver) compose(ctx context.Context) (string, error) {
	content := d.view.Content

	composer := d.session.cfg.Composer
	if composer == nil {
		return "", &ComposerError{
			ID:  content.ID,
			Err: errors.New("no composer configured"),
		}
	}

	cctx, cancel := context.WithTimeout(ctx, d.session.cfg.ActionTimeout)
	defer cancel()

	draft, err := composer.Compose(
		cctx, content, analysis.DetectTone(content),
	)
	if err != nil {
		return "", &ComposerError{ID: content.ID, Err: err}
	}

	return draft, nil
}
