package triage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/backoff"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/task"
)

var fastRetry = backoff.Policy{
	Initial: time.Millisecond,
	Max:     2 * time.Millisecond,
}

type mutationCall struct {
	ID string
	Op mailsource.Mutation
}

// fakeSource is an in-memory mailbox.
type fakeSource struct {
	mu sync.Mutex

	refs []mailsource.MessageRef

	fetches   map[string]int
	mutations []mutationCall
	sent      map[string]string

	// mutateErrs is consumed one error per Mutate call.
	mutateErrs []error
	fetchErr   map[string]error
	listErr    error
}

func newFakeSource(n int) *fakeSource {
	return &fakeSource{
		refs:     testRefs(n),
		fetches:  make(map[string]int),
		sent:     make(map[string]string),
		fetchErr: make(map[string]error),
	}
}

func (f *fakeSource) List(_ context.Context,
	filter mailsource.Filter) ([]mailsource.MessageRef, error) {

	if f.listErr != nil {
		return nil, f.listErr
	}

	refs := f.refs
	if filter.MaxResults > 0 && len(refs) > filter.MaxResults {
		refs = refs[:filter.MaxResults]
	}

	return append([]mailsource.MessageRef(nil), refs...), nil
}

func (f *fakeSource) Fetch(_ context.Context,
	id string) (*mailsource.Content, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches[id]++
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}

	return &mailsource.Content{
		ID:      id,
		From:    "Alice <alice@example.com>",
		Subject: "Subject of " + id,
		Date:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Body:    "Hello, could you take a look?",
	}, nil
}

func (f *fakeSource) Mutate(_ context.Context, id string,
	op mailsource.Mutation) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.mutateErrs) > 0 {
		err := f.mutateErrs[0]
		f.mutateErrs = f.mutateErrs[1:]
		if err != nil {
			return err
		}
	}
	f.mutations = append(f.mutations, mutationCall{ID: id, Op: op})

	return nil
}

func (f *fakeSource) Send(_ context.Context, id, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent[id] = body

	return nil
}

func (f *fakeSource) OpenURL(id string) string {
	return "https://mail.example/" + id
}

// setFetchErr makes every fetch of id fail with err, or succeed if err is
// nil.
func (f *fakeSource) setFetchErr(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.fetchErr, id)
		return
	}
	f.fetchErr[id] = err
}

func (f *fakeSource) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetches[id]
}

// fakeAnalyzer answers with fn for every call.
type fakeAnalyzer struct {
	mu    sync.Mutex
	calls map[string]int

	fn func(ctx context.Context,
		content *mailsource.Content) (*analysis.Result, error)
}

func newFakeAnalyzer(fn func(ctx context.Context,
	content *mailsource.Content) (*analysis.Result, error)) *fakeAnalyzer {

	return &fakeAnalyzer{calls: make(map[string]int), fn: fn}
}

func okAnalysis(_ context.Context,
	content *mailsource.Content) (*analysis.Result, error) {

	return &analysis.Result{
		MessageID:       content.ID,
		Priority:        analysis.PriorityActionable,
		Category:        analysis.CategoryPersonal,
		Summary:         "Summary of " + content.ID,
		SuggestedAction: "Reply to " + content.ID,
	}, nil
}

func (a *fakeAnalyzer) Analyze(ctx context.Context,
	content *mailsource.Content) (*analysis.Result, error) {

	a.mu.Lock()
	a.calls[content.ID]++
	a.mu.Unlock()

	return a.fn(ctx, content)
}

func (a *fakeAnalyzer) callCount(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.calls[id]
}

type fakeComposer struct {
	draft string
	err   error

	// hang makes Compose wait for its context instead of answering.
	hang bool
}

func (c *fakeComposer) Compose(ctx context.Context, _ *mailsource.Content,
	_ analysis.Tone) (string, error) {

	if c.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	return c.draft, c.err
}

// memTasks is an in-memory TaskStore keyed by source message id.
type memTasks struct {
	mu      sync.Mutex
	tasks   map[string]task.Task
	appends int
	err     error
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]task.Task)}
}

func (m *memTasks) AppendIfAbsent(_ context.Context,
	t task.Task) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.appends++
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.tasks[t.SourceMessageID]; ok {
		return false, nil
	}
	m.tasks[t.SourceMessageID] = t

	return true, nil
}

func (m *memTasks) ListPending(context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []task.Task
	for _, t := range m.tasks {
		out = append(out, t)
	}

	return out, nil
}

// memCheckpoints is an in-memory Checkpointer.
type memCheckpoints struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
	saves int

	// history holds every saved snapshot in order.
	history []Snapshot
	err   error
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{snaps: make(map[string]Snapshot)}
}

func (m *memCheckpoints) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.saves++
	m.history = append(m.history, snap)
	m.snaps[snap.Filter.Canonical()] = snap

	return nil
}

func (m *memCheckpoints) Load(_ context.Context,
	filter mailsource.Filter) (fn.Option[Snapshot], error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snaps[filter.Canonical()]
	if !ok {
		return fn.None[Snapshot](), nil
	}

	return fn.Some(snap), nil
}

func (m *memCheckpoints) Delete(_ context.Context,
	filter mailsource.Filter) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.snaps, filter.Canonical())

	return nil
}

// errScriptDone is returned by scriptSurface when it runs out of input.
var errScriptDone = errors.New("script exhausted")

// scriptSurface answers prompts from fixed scripts and records what it
// was shown.
type scriptSurface struct {
	commands   []Command
	recoveries []RecoveryChoice

	taskTitle  string
	draftEdit  string
	cancelTask bool

	// waitAnalysis holds each decision until the pipeline has an
	// answer for the item.
	waitAnalysis bool

	// cancel, if set, is called once the commands run out.
	cancel context.CancelFunc

	// beforeDecide, if set, runs before each decision is read.
	beforeDecide func(view *ItemView)

	presented []string
	analyses  []AnalysisStatus
	failures  []string
	notices   []string
	opened    []string
	summary   *Stats
}

func (s *scriptSurface) Decide(ctx context.Context,
	view *ItemView) (Command, error) {

	s.presented = append(s.presented, view.Ref.ID)

	if s.beforeDecide != nil {
		s.beforeDecide(view)
	}

	for s.waitAnalysis && view.Analysis().Status == AnalysisPending {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	s.analyses = append(s.analyses, view.Analysis().Status)

	if len(s.commands) == 0 {
		if s.cancel != nil {
			s.cancel()
			return 0, ctx.Err()
		}
		return 0, errScriptDone
	}

	cmd := s.commands[0]
	s.commands = s.commands[1:]

	return cmd, nil
}

func (s *scriptSurface) ConfirmTask(_ context.Context, _ *ItemView,
	title string) (string, bool, error) {

	if s.cancelTask {
		return "", false, nil
	}
	if s.taskTitle != "" {
		return s.taskTitle, true, nil
	}

	return title, true, nil
}

func (s *scriptSurface) ReviewDraft(_ context.Context, _ *ItemView,
	draft string) (string, bool, error) {

	if s.draftEdit != "" {
		return s.draftEdit, true, nil
	}

	return draft, true, nil
}

func (s *scriptSurface) Recover(_ context.Context, _ *ItemView,
	action string, err error) (RecoveryChoice, error) {

	s.failures = append(s.failures, action+": "+err.Error())

	if len(s.recoveries) == 0 {
		return RecoverQuit, nil
	}

	choice := s.recoveries[0]
	s.recoveries = s.recoveries[1:]

	return choice, nil
}

func (s *scriptSurface) Notify(_ NoticeLevel, msg string) {
	s.notices = append(s.notices, msg)
}

func (s *scriptSurface) OpenURL(url string) error {
	s.opened = append(s.opened, url)
	return nil
}

func (s *scriptSurface) Summary(stats *Stats) {
	s.summary = stats
}
