package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roasbeef/clinbox/internal/analysis"
	"github.com/roasbeef/clinbox/internal/backoff"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultWindow is the number of items analyzed ahead of the
	// cursor, and the bound on concurrent requests.
	DefaultWindow = 3

	// DefaultAnalyzeTimeout bounds a single analyzer call.
	DefaultAnalyzeTimeout = 45 * time.Second

	// DefaultFetchTimeout bounds a single content fetch.
	DefaultFetchTimeout = 30 * time.Second
)

// DefaultRetryPolicy is the backoff before the single retry of a failed
// analysis or fetch.
var DefaultRetryPolicy = backoff.Policy{
	Initial: 500 * time.Millisecond,
	Max:     5 * time.Second,
}

// errAttemptTimeout marks an attempt whose deadline passed, whether or not
// the analyzer returned a result.
var errAttemptTimeout = errors.New("timed out")

// AnalysisStatus is the progress of one message through the pipeline.
type AnalysisStatus uint8

const (
	AnalysisPending AnalysisStatus = iota
	AnalysisReady
	AnalysisFailed
)

// AnalysisState is what the pipeline knows about a message's analysis.
type AnalysisState struct {
	Status AnalysisStatus

	// Result is set when Status is AnalysisReady.
	Result *analysis.Result

	// Reason is set when Status is AnalysisFailed.
	Reason string
}

// Ready returns the result if the analysis has completed.
func (s AnalysisState) Ready() (*analysis.Result, bool) {
	return s.Result, s.Status == AnalysisReady
}

// Fetcher is the read side of a mail source.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*mailsource.Content, error)
}

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	Window         int
	AnalyzeTimeout time.Duration
	FetchTimeout   time.Duration
	Retry          backoff.Policy
}

func (c *PipelineConfig) withDefaults() PipelineConfig {
	out := *c
	if out.Window <= 0 {
		out.Window = DefaultWindow
	}
	if out.AnalyzeTimeout <= 0 {
		out.AnalyzeTimeout = DefaultAnalyzeTimeout
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = DefaultFetchTimeout
	}
	if out.Retry.Initial <= 0 {
		out.Retry = DefaultRetryPolicy
	}

	return out
}

// entry is the pipeline's record for one message. Only successfully loaded
// content is kept, so a failed fetch is attempted again by the next caller.
// state is written once after the initial Pending, except that a failure
// caused by the fetch is reopened once the content arrives.
type entry struct {
	loadMu  sync.Mutex
	content *mailsource.Content

	state       AnalysisState
	fetchFailed bool
}

// Pipeline fetches and analyzes messages ahead of the queue cursor. At
// most Window requests run at once and each message is requested at most
// once. Results are only ever added, never replaced.
type Pipeline struct {
	cfg      PipelineConfig
	source   Fetcher
	analyzer analysis.Analyzer
	log      *slog.Logger

	sem *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	order     []string
	cursor    int
	requested map[string]bool
	entries   map[string]*entry
	stopped   bool
}

// NewPipeline returns an idle pipeline. Start begins the work.
func NewPipeline(cfg PipelineConfig, source Fetcher,
	analyzer analysis.Analyzer, log *slog.Logger) *Pipeline {

	cfg = cfg.withDefaults()

	return &Pipeline{
		cfg:       cfg,
		source:    source,
		analyzer:  analyzer,
		log:       log,
		sem:       semaphore.NewWeighted(int64(cfg.Window)),
		requested: make(map[string]bool),
		entries:   make(map[string]*entry),
	}
}

// Start records the order of queue and fills the window from its cursor.
func (p *Pipeline) Start(ctx context.Context, queue *Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.order = queue.IDs()
	p.cursor = queue.Cursor()
	p.topUpLocked()
}

// TopUp moves the window to start at cursor and schedules every
// unrequested id in it while request slots are free. The window never
// moves backwards.
func (p *Pipeline) TopUp(cursor int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cursor > p.cursor {
		p.cursor = cursor
	}
	p.topUpLocked()
}

func (p *Pipeline) topUpLocked() {
	if p.stopped || p.ctx == nil {
		return
	}

	end := min(p.cursor+p.cfg.Window, len(p.order))
	for i := p.cursor; i < end; i++ {
		id := p.order[i]
		if p.requested[id] {
			continue
		}
		if !p.sem.TryAcquire(1) {
			return
		}

		p.requested[id] = true
		e := p.entryLocked(id)

		p.wg.Add(1)
		go p.process(id, e)
	}
}

func (p *Pipeline) entryLocked(id string) *entry {
	e, ok := p.entries[id]
	if !ok {
		e = &entry{}
		p.entries[id] = e
	}

	return e
}

// process loads and analyzes one message, then releases its slot and
// refills the window.
func (p *Pipeline) process(id string, e *entry) {
	defer p.wg.Done()
	defer func() {
		p.sem.Release(1)

		p.mu.Lock()
		p.topUpLocked()
		p.mu.Unlock()
	}()

	content, err := p.loadContent(p.ctx, id, e, true)
	if err != nil {
		p.log.Warn("Fetch failed, presenting degraded item",
			"id", id, "err", err)
		return
	}

	p.analyzeContent(id, e, content)
}

// analyzeContent runs the analysis of loaded content and records it.
func (p *Pipeline) analyzeContent(id string, e *entry,
	content *mailsource.Content) {

	if p.analyzer == nil {
		p.finish(id, e, AnalysisState{
			Status: AnalysisFailed,
			Reason: "analysis disabled",
		})
		return
	}

	res, err := p.analyze(id, content)
	if err != nil {
		p.log.Warn("Analysis failed, presenting degraded item",
			"id", id, "err", err)

		p.finish(id, e, AnalysisState{
			Status: AnalysisFailed,
			Reason: err.Error(),
		})
		return
	}

	p.finish(id, e, AnalysisState{Status: AnalysisReady, Result: res})
}

// finish records the analysis state unless the pipeline has stopped.
func (p *Pipeline) finish(id string, e *entry, state AnalysisState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		p.log.Debug("Discarding late analysis", "id", id)
		return
	}
	if e.state.Status != AnalysisPending {
		return
	}
	e.state = state
}

// analyze calls the analyzer, retrying once after a backoff.
func (p *Pipeline) analyze(id string,
	content *mailsource.Content) (*analysis.Result, error) {

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := p.cfg.Retry.Wait(p.ctx, attempt-1); err != nil {
				return nil, &AnalyzerError{ID: id, Err: err}
			}
		}

		res, err := p.analyzeOnce(content)
		if err == nil {
			return res, nil
		}
		lastErr = err

		p.log.Debug("Analysis attempt failed", "id", id,
			"attempt", attempt+1, "err", err)
	}

	return nil, &AnalyzerError{ID: id, Err: lastErr}
}

func (p *Pipeline) analyzeOnce(
	content *mailsource.Content) (*analysis.Result, error) {

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.AnalyzeTimeout)
	defer cancel()

	res, err := p.analyzer.Analyze(ctx, content)

	// A deadline that passed while the call was returning still counts
	// as a timeout, even if a result came back.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, errAttemptTimeout
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("analyzer returned no result")
	}

	return res, nil
}

// loadContent returns the cached content of the entry or fetches it,
// retrying once. Concurrent callers wait for the fetch in flight. A failed
// background fetch marks the entry before the next caller can load it.
func (p *Pipeline) loadContent(ctx context.Context, id string, e *entry,
	background bool) (*mailsource.Content, error) {

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.content != nil {
		return e.content, nil
	}

	content, err := FetchWithRetry(
		ctx, p.source, id, p.cfg.FetchTimeout, p.cfg.Retry,
	)
	if err != nil {
		if background {
			p.mu.Lock()
			if !p.stopped && e.state.Status == AnalysisPending {
				e.state = AnalysisState{
					Status: AnalysisFailed,
					Reason: err.Error(),
				}
				e.fetchFailed = true
			}
			p.mu.Unlock()
		}

		return nil, err
	}
	e.content = content

	return content, nil
}

// FetchWithRetry fetches id with a per-attempt timeout and one retry.
func FetchWithRetry(ctx context.Context, src Fetcher, id string,
	timeout time.Duration, retry backoff.Policy) (*mailsource.Content,
	error) {

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := retry.Wait(ctx, attempt-1); err != nil {
				return nil, &RemoteError{Op: "fetch", ID: id, Err: err}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		content, err := src.Fetch(attemptCtx, id)
		cancel()
		if err == nil {
			return content, nil
		}
		lastErr = err
	}

	return nil, &RemoteError{Op: "fetch", ID: id, Err: lastErr}
}

// AwaitContent returns the content of id, fetching it in the caller when
// nothing is cached. If the background fetch of id had failed, the content
// recovered here is handed back to the pipeline for analysis.
func (p *Pipeline) AwaitContent(ctx context.Context,
	id string) (*mailsource.Content, error) {

	p.mu.Lock()
	e := p.entryLocked(id)
	p.mu.Unlock()

	content, err := p.loadContent(ctx, id, e, false)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !e.fetchFailed || p.stopped || p.ctx == nil {
		return content, nil
	}
	e.fetchFailed = false
	e.state = AnalysisState{Status: AnalysisPending}

	p.wg.Add(1)
	go p.analyzeRecovered(id, e, content)

	return content, nil
}

// analyzeRecovered analyzes content that the foreground fetched after the
// background fetch failed. It takes a request slot like any other request.
func (p *Pipeline) analyzeRecovered(id string, e *entry,
	content *mailsource.Content) {

	defer p.wg.Done()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return
	}
	defer func() {
		p.sem.Release(1)

		p.mu.Lock()
		p.topUpLocked()
		p.mu.Unlock()
	}()

	p.analyzeContent(id, e, content)
}

// ResultFor returns the analysis state of id.
func (p *Pipeline) ResultFor(id string) AnalysisState {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return AnalysisState{Status: AnalysisPending}
	}

	return e.state
}

// Stop abandons outstanding work. Results that arrive afterwards are
// discarded.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until every background request has returned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
