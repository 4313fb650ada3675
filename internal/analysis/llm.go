package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roasbeef/clinbox/internal/mailsource"
	"golang.org/x/time/rate"
)

const (
	// AnalysisBodyLimit is the number of body characters sent for
	// classification.
	AnalysisBodyLimit = 1500

	// ReplyBodyLimit is the number of body characters sent when drafting
	// a reply.
	ReplyBodyLimit = 2000

	// DefaultSummaryLanguage is used when no language is configured.
	DefaultSummaryLanguage = "English"
)

// Request is a single prompt sent to a model.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer is a chat model backend.
type Completer interface {
	// Complete returns the model's text answer to req.
	Complete(ctx context.Context, req *Request) (string, error)

	// Model returns the model identifier, used for logging.
	Model() string
}

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// Config tunes a Client.
type Config struct {
	// SummaryLanguage is the language summaries and suggested actions
	// are written in.
	SummaryLanguage string

	// RequestsPerSecond limits the rate of model calls. Zero disables
	// the limit.
	RequestsPerSecond float64
}

// Client implements Analyzer and Composer on top of a Completer.
type Client struct {
	llm     Completer
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
}

var (
	_ Analyzer = (*Client)(nil)
	_ Composer = (*Client)(nil)
)

// NewClient returns a Client using llm.
func NewClient(llm Completer, cfg Config, log *slog.Logger) *Client {
	if cfg.SummaryLanguage == "" {
		cfg.SummaryLanguage = DefaultSummaryLanguage
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		llm:     llm,
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}
}

// describe renders the message header block shared by both prompts.
func describe(c *mailsource.Content, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", c.From)
	fmt.Fprintf(&b, "Subject: %s\n", c.Subject)
	if !c.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", c.Date.Format("2006-01-02 15:04"))
	}
	if len(c.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(c.Labels, ", "))
	}
	fmt.Fprintf(&b, "\nBody:\n%s", mailsource.Truncate(c.Body, limit))

	return b.String()
}

// Analyze classifies content.
func (c *Client) Analyze(ctx context.Context,
	content *mailsource.Content) (*Result, error) {

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	answer, err := c.llm.Complete(ctx, &Request{
		System:      analysisPrompt(c.cfg.SummaryLanguage),
		User:        describe(content, AnalysisBodyLimit),
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	res, err := ParseResult(content.ID, answer)
	if err != nil {
		c.log.DebugContext(ctx, "Unparseable analysis",
			"id", content.ID, "model", c.llm.Model(),
			"answer", mailsource.Truncate(answer, 200))
		return nil, err
	}

	c.log.DebugContext(ctx, "Message analyzed", "id", content.ID,
		"priority", res.Priority, "category", res.Category)

	return res, nil
}

// Compose drafts a reply in the given tone.
func (c *Client) Compose(ctx context.Context, content *mailsource.Content,
	tone Tone) (string, error) {

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	answer, err := c.llm.Complete(ctx, &Request{
		System:      replyPrompt(tone),
		User:        describe(content, ReplyBodyLimit),
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}

	draft := strings.TrimSpace(answer)
	if draft == "" {
		return "", ErrEmptyResponse
	}

	return draft, nil
}

// rawResult is the JSON object the analysis prompt asks for.
type rawResult struct {
	Priority         string  `json:"priority"`
	Category         string  `json:"category"`
	Summary          string  `json:"summary"`
	SuggestedAction  *string `json:"suggested_action"`
	EstimatedMinutes *int    `json:"estimated_time_minutes"`
}

// ParseResult decodes a model answer into a Result for messageID.
func ParseResult(messageID, answer string) (*Result, error) {
	obj, err := ExtractJSON(answer)
	if err != nil {
		return nil, err
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}

	prio, err := ParsePriority(raw.Priority)
	if err != nil {
		return nil, err
	}

	res := &Result{
		MessageID:        messageID,
		Priority:         prio,
		Label:            strings.ToLower(strings.TrimSpace(raw.Priority)),
		Category:         ParseCategory(raw.Category),
		Summary:          strings.TrimSpace(raw.Summary),
		EstimatedMinutes: 1,
	}
	if raw.SuggestedAction != nil {
		res.SuggestedAction = strings.TrimSpace(*raw.SuggestedAction)
	}
	if raw.EstimatedMinutes != nil && *raw.EstimatedMinutes > 0 {
		res.EstimatedMinutes = *raw.EstimatedMinutes
	}

	return res, nil
}

// ExtractJSON finds the JSON object in a model answer. The object may be
// bare, wrapped in a markdown fence, or surrounded by prose.
func ExtractJSON(answer string) (string, error) {
	s := strings.TrimSpace(answer)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model answer")
	}

	obj := s[start : end+1]
	if !json.Valid([]byte(obj)) {
		return "", fmt.Errorf("malformed JSON object in model answer")
	}

	return obj, nil
}
