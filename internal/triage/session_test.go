package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/build"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/stretchr/testify/require"
)

type sessionHarness struct {
	src         *fakeSource
	analyzer    *fakeAnalyzer
	composer    *fakeComposer
	tasks       *memTasks
	checkpoints *memCheckpoints
}

func newHarness(n int) *sessionHarness {
	return &sessionHarness{
		src:         newFakeSource(n),
		analyzer:    newFakeAnalyzer(okAnalysis),
		composer:    &fakeComposer{draft: "Thanks, will do."},
		tasks:       newMemTasks(),
		checkpoints: newMemCheckpoints(),
	}
}

func (h *sessionHarness) session(surface Surface,
	opts ...func(*SessionConfig)) *Session {

	cfg := SessionConfig{
		Source:      h.src,
		Analyzer:    h.analyzer,
		Composer:    h.composer,
		Tasks:       h.tasks,
		Checkpoints: h.checkpoints,
		Surface:     surface,
		Pipeline: PipelineConfig{
			Window:         3,
			AnalyzeTimeout: time.Second,
			FetchTimeout:   time.Second,
			Retry:          fastRetry,
		},
		ActionTimeout: time.Second,
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return NewSession(cfg, build.DiscardLogger())
}

func repeat(cmd Command, n int) []Command {
	out := make([]Command, n)
	for i := range out {
		out[i] = cmd
	}

	return out
}

func unreadFilter(n int) mailsource.Filter {
	return mailsource.Filter{UnreadOnly: true, MaxResults: n}
}

// TestSessionSkipAll skips every message of an unread-only queue of five.
func TestSessionSkipAll(t *testing.T) {
	h := newHarness(8)
	surface := &scriptSurface{commands: repeat(CommandSkip, 5)}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(5),
	)
	require.NoError(t, err)

	require.Equal(t, map[OutcomeKind]int{OutcomeSkipped: 5}, stats.Counts)
	require.Equal(t, 5, stats.Total)
	require.Zero(t, stats.Remaining)
	require.False(t, stats.Quit)
	require.Empty(t, h.src.mutations)
	require.Zero(t, h.tasks.appends)
	require.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"},
		surface.presented)
	require.Same(t, stats, surface.summary)

	// A finished queue leaves no checkpoint behind.
	require.Empty(t, h.checkpoints.snaps)
}

// TestSessionTaskTwice creates a task for the same message in two
// sessions and expects one record and two successes.
func TestSessionTaskTwice(t *testing.T) {
	h := newHarness(1)

	for i := 0; i < 2; i++ {
		surface := &scriptSurface{
			commands:     []Command{CommandTask},
			waitAnalysis: true,
		}

		stats, err := h.session(surface).Run(
			context.Background(), unreadFilter(1),
		)
		require.NoError(t, err)
		require.Equal(t, map[OutcomeKind]int{OutcomeTaskCreated: 1},
			stats.Counts)
	}

	require.Equal(t, 2, h.tasks.appends)
	require.Len(t, h.tasks.tasks, 1)

	created := h.tasks.tasks["m1"]
	require.Equal(t, "Reply to m1", created.Title)
	require.Equal(t, "Summary of m1", created.Description)
	require.Equal(t, "Subject of m1", created.SourceSubject)
	require.Empty(t, h.src.mutations)
}

// TestSessionArchiveRetry fails the first archive and succeeds on retry.
func TestSessionArchiveRetry(t *testing.T) {
	h := newHarness(2)
	h.src.mutateErrs = []error{errors.New("502 bad gateway")}

	surface := &scriptSurface{
		commands:   []Command{CommandArchive, CommandSkip},
		recoveries: []RecoveryChoice{RecoverRetry},
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)

	require.Equal(t, map[OutcomeKind]int{
		OutcomeArchived: 1, OutcomeSkipped: 1,
	}, stats.Counts)
	require.Equal(t, []mutationCall{
		{ID: "m1", Op: mailsource.MutationArchive},
	}, h.src.mutations)

	// The error was shown once and m1 was presented once before the
	// cursor moved to m2.
	require.Len(t, surface.failures, 1)
	require.Contains(t, surface.failures[0], "502 bad gateway")
	require.Equal(t, []string{"m1", "m2"}, surface.presented)
}

// TestSessionResume stops after two of five items and resumes at the
// third without presenting the first two again.
func TestSessionResume(t *testing.T) {
	h := newHarness(5)
	filter := unreadFilter(5)

	ctx, cancel := context.WithCancel(context.Background())
	first := &scriptSurface{
		commands: []Command{CommandArchive, CommandSkip},
		cancel:   cancel,
	}

	stats, err := h.session(first).Run(ctx, filter)
	require.NoError(t, err)
	require.True(t, stats.Quit)
	require.Equal(t, 3, stats.Remaining)
	require.Equal(t, []string{"m1", "m2", "m3"}, first.presented)

	saved := h.checkpoints.snaps[filter.Canonical()]
	require.Equal(t, Resolved(OutcomeArchived), saved.Outcomes[0])
	require.Equal(t, Resolved(OutcomeSkipped), saved.Outcomes[1])
	require.Equal(t, Pending(), saved.Outcomes[2])

	second := &scriptSurface{commands: repeat(CommandSkip, 3)}
	stats, err = h.session(second).Run(context.Background(), filter)
	require.NoError(t, err)

	require.True(t, stats.Resumed)
	require.Equal(t, []string{"m3", "m4", "m5"}, second.presented)
	require.Equal(t, map[OutcomeKind]int{OutcomeSkipped: 3}, stats.Counts)

	// Every save of the second session kept the first two outcomes.
	last := h.checkpoints.history[len(h.checkpoints.history)-1]
	require.Equal(t, saved.Refs, last.Refs)
	require.Equal(t, saved.Outcomes[:2], last.Outcomes[:2])

	// Only the first session's archive reached the mailbox.
	require.Len(t, h.src.mutations, 1)
}

func TestSessionResumeOtherFilterStartsFresh(t *testing.T) {
	h := newHarness(3)

	first := &scriptSurface{commands: []Command{CommandSkip, CommandQuit}}
	_, err := h.session(first).Run(context.Background(), unreadFilter(3))
	require.NoError(t, err)

	second := &scriptSurface{commands: repeat(CommandSkip, 2)}
	stats, err := h.session(second).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)
	require.False(t, stats.Resumed)
	require.Equal(t, []string{"m1", "m2"}, second.presented)
}

func TestSessionFreshDiscardsCheckpoint(t *testing.T) {
	h := newHarness(2)
	filter := unreadFilter(2)

	first := &scriptSurface{commands: []Command{CommandSkip, CommandQuit}}
	_, err := h.session(first).Run(context.Background(), filter)
	require.NoError(t, err)

	second := &scriptSurface{commands: repeat(CommandSkip, 2)}
	stats, err := h.session(second, func(cfg *SessionConfig) {
		cfg.Fresh = true
	}).Run(context.Background(), filter)
	require.NoError(t, err)
	require.False(t, stats.Resumed)
	require.Equal(t, []string{"m1", "m2"}, second.presented)
}

func TestSessionQuitKeepsItemPending(t *testing.T) {
	h := newHarness(2)
	surface := &scriptSurface{commands: []Command{CommandQuit}}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)
	require.True(t, stats.Quit)
	require.Zero(t, stats.Processed())
	require.Equal(t, 2, stats.Remaining)

	snap := h.checkpoints.snaps[unreadFilter(2).Canonical()]
	require.Equal(t, []Outcome{Pending(), Pending()}, snap.Outcomes)
}

// TestSessionPresentsInOrder makes later items finish analysis first.
func TestSessionPresentsInOrder(t *testing.T) {
	h := newHarness(3)
	delays := map[string]time.Duration{
		"m1": 30 * time.Millisecond,
		"m2": 15 * time.Millisecond,
		"m3": 0,
	}
	h.analyzer = newFakeAnalyzer(func(ctx context.Context,
		content *mailsource.Content) (*analysis.Result, error) {

		time.Sleep(delays[content.ID])
		return okAnalysis(ctx, content)
	})

	surface := &scriptSurface{commands: repeat(CommandSkip, 3)}
	_, err := h.session(surface).Run(context.Background(), unreadFilter(3))
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2", "m3"}, surface.presented)
}

// TestSessionDegradedTask creates a task for an item whose analysis
// failed.
func TestSessionDegradedTask(t *testing.T) {
	h := newHarness(1)
	h.analyzer = newFakeAnalyzer(func(context.Context,
		*mailsource.Content) (*analysis.Result, error) {

		return nil, errors.New("quota exceeded")
	})

	surface := &scriptSurface{
		commands:     []Command{CommandTask},
		waitAnalysis: true,
	}
	stats, err := h.session(surface, func(cfg *SessionConfig) {
		cfg.ArchiveAfterTask = true
	}).Run(context.Background(), unreadFilter(1))
	require.NoError(t, err)

	require.Equal(t, 1, stats.Counts[OutcomeTaskCreated])
	require.Equal(t, "Subject of m1", h.tasks.tasks["m1"].Title)
	require.Empty(t, h.tasks.tasks["m1"].Description)
	require.Equal(t, []mutationCall{
		{ID: "m1", Op: mailsource.MutationArchive},
	}, h.src.mutations)
}

func TestSessionTaskCancelled(t *testing.T) {
	h := newHarness(1)
	surface := &scriptSurface{
		commands:   []Command{CommandTask, CommandSkip},
		cancelTask: true,
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(1),
	)
	require.NoError(t, err)
	require.Equal(t, map[OutcomeKind]int{OutcomeSkipped: 1}, stats.Counts)
	require.Zero(t, h.tasks.appends)
}

func TestSessionTaskStoreFailure(t *testing.T) {
	h := newHarness(1)
	h.tasks.err = errors.New("disk full")

	surface := &scriptSurface{
		commands:   []Command{CommandTask},
		recoveries: []RecoveryChoice{RecoverSkip},
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(1),
	)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Counts[OutcomeFailed])
	require.Contains(t, surface.failures[0], "disk full")
}

func TestSessionReply(t *testing.T) {
	h := newHarness(1)
	surface := &scriptSurface{
		commands:  []Command{CommandReply},
		draftEdit: "Sounds good, see you Monday.",
	}

	stats, err := h.session(surface, func(cfg *SessionConfig) {
		cfg.ArchiveAfterReply = true
	}).Run(context.Background(), unreadFilter(1))
	require.NoError(t, err)

	require.Equal(t, 1, stats.Counts[OutcomeReplied])
	require.Equal(t, "Sounds good, see you Monday.", h.src.sent["m1"])
	require.Equal(t, []mutationCall{
		{ID: "m1", Op: mailsource.MutationArchive},
	}, h.src.mutations)
}

func TestSessionComposerFailureReturnsToDeciding(t *testing.T) {
	h := newHarness(1)
	h.composer.err = errors.New("rate limited")

	surface := &scriptSurface{
		commands: []Command{CommandReply, CommandSkip},
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(1),
	)
	require.NoError(t, err)
	require.Equal(t, map[OutcomeKind]int{OutcomeSkipped: 1}, stats.Counts)
	require.Empty(t, h.src.sent)
	require.Equal(t, []string{"m1", "m1"}, surface.presented)
	require.NotEmpty(t, surface.notices)
	require.Contains(t, surface.notices[len(surface.notices)-1],
		"rate limited")
}

func TestSessionOpenAndView(t *testing.T) {
	h := newHarness(1)
	surface := &scriptSurface{
		commands: []Command{CommandOpen, CommandView, CommandSkip},
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(1),
	)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Counts[OutcomeSkipped])
	require.Equal(t, []string{"https://mail.example/m1"}, surface.opened)
	require.Equal(t, []string{"m1", "m1", "m1"}, surface.presented)
}

func TestSessionFetchFailureSkip(t *testing.T) {
	h := newHarness(2)
	h.src.fetchErr["m1"] = errors.New("message vanished")

	surface := &scriptSurface{
		commands:   []Command{CommandSkip},
		recoveries: []RecoveryChoice{RecoverSkip},
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)
	require.Equal(t, map[OutcomeKind]int{
		OutcomeFailed: 1, OutcomeSkipped: 1,
	}, stats.Counts)
	require.Equal(t, []string{"m2"}, surface.presented)
}

func TestSessionCheckpointFailureWarns(t *testing.T) {
	h := newHarness(2)
	h.checkpoints.err = errors.New("read-only file system")

	surface := &scriptSurface{commands: repeat(CommandSkip, 2)}
	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Counts[OutcomeSkipped])
	require.NotEmpty(t, surface.notices)
}

func TestSessionEmptyQueue(t *testing.T) {
	h := newHarness(0)
	surface := &scriptSurface{}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(5),
	)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
	require.NotEmpty(t, surface.notices)
	require.NotNil(t, surface.summary)
}

func TestSessionListFailure(t *testing.T) {
	h := newHarness(1)
	h.src.listErr = errors.New("unauthorized")

	_, err := h.session(&scriptSurface{}).Run(
		context.Background(), unreadFilter(1),
	)
	require.True(t, IsRemoteError(err))
}

func TestSessionDelete(t *testing.T) {
	h := newHarness(1)
	surface := &scriptSurface{commands: []Command{CommandDelete}}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(1),
	)
	require.NoError(t, err)
	require.Equal(t, map[OutcomeKind]int{OutcomeDeleted: 1}, stats.Counts)
	require.Equal(t, []mutationCall{
		{ID: "m1", Op: mailsource.MutationTrash},
	}, h.src.mutations)

	snap := h.checkpoints.history[len(h.checkpoints.history)-1]
	require.Equal(t, Resolved(OutcomeDeleted), snap.Outcomes[0])
}

func TestSessionDeleteFailureSkip(t *testing.T) {
	h := newHarness(2)
	h.src.mutateErrs = []error{errors.New("403 insufficient scope")}

	surface := &scriptSurface{
		commands:   []Command{CommandDelete, CommandSkip},
		recoveries: []RecoveryChoice{RecoverSkip},
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)
	require.Equal(t, map[OutcomeKind]int{
		OutcomeFailed: 1, OutcomeSkipped: 1,
	}, stats.Counts)
	require.Empty(t, h.src.mutations)
	require.Len(t, surface.failures, 1)
	require.Contains(t, surface.failures[0], "403 insufficient scope")

	snap := h.checkpoints.history[len(h.checkpoints.history)-1]
	require.Equal(t, OutcomeFailed, snap.Outcomes[0].Kind)
	require.Contains(t, snap.Outcomes[0].Reason, "403 insufficient scope")
}

// TestSessionComposerTimeout gives up on a composer that never answers
// and returns to the decision with a warning.
func TestSessionComposerTimeout(t *testing.T) {
	h := newHarness(1)
	h.composer.hang = true

	surface := &scriptSurface{
		commands: []Command{CommandReply, CommandSkip},
	}

	stats, err := h.session(surface, func(cfg *SessionConfig) {
		cfg.ActionTimeout = 50 * time.Millisecond
	}).Run(context.Background(), unreadFilter(1))
	require.NoError(t, err)

	require.Equal(t, map[OutcomeKind]int{OutcomeSkipped: 1}, stats.Counts)
	require.Empty(t, h.src.sent)
	require.Equal(t, []string{"m1", "m1"}, surface.presented)
	require.NotEmpty(t, surface.notices)
	require.Contains(t, surface.notices[len(surface.notices)-1],
		context.DeadlineExceeded.Error())
}

// TestSessionPrefetchFailureHeals fails the background fetch of m2 while
// m1 is on screen. Once the mailbox answers again, m2 is fetched afresh
// and analyzed without asking the user to recover.
func TestSessionPrefetchFailureHeals(t *testing.T) {
	h := newHarness(2)
	h.src.setFetchErr("m2", errors.New("connection reset"))

	surface := &scriptSurface{
		commands:     repeat(CommandSkip, 2),
		waitAnalysis: true,
	}
	surface.beforeDecide = func(view *ItemView) {
		if view.Ref.ID != "m1" {
			return
		}

		// Both background attempts for m2 have failed.
		require.Eventually(t, func() bool {
			return h.src.fetchCount("m2") == 2
		}, 5*time.Second, time.Millisecond)
		h.src.setFetchErr("m2", nil)
	}

	stats, err := h.session(surface).Run(
		context.Background(), unreadFilter(2),
	)
	require.NoError(t, err)

	require.Equal(t, map[OutcomeKind]int{OutcomeSkipped: 2}, stats.Counts)
	require.Empty(t, surface.failures)
	require.Equal(t, []string{"m1", "m2"}, surface.presented)
	require.Equal(t, []AnalysisStatus{AnalysisReady, AnalysisReady},
		surface.analyses)
	require.Equal(t, 3, h.src.fetchCount("m2"))
	require.Equal(t, 1, h.analyzer.callCount("m2"))
}
