package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/roasbeef/clinbox/internal/build"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/stretchr/testify/require"
)

// fakeCompleter returns a canned answer and records the last request.
type fakeCompleter struct {
	answer string
	err    error
	last   *Request
}

func (f *fakeCompleter) Complete(_ context.Context,
	req *Request) (string, error) {

	f.last = req
	return f.answer, f.err
}

func (f *fakeCompleter) Model() string { return "fake" }

// TestParsePriority checks the mapping of model labels onto tiers.
func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"urgent":          PriorityUrgent,
		"URGENT":          PriorityUrgent,
		"action_required": PriorityActionable,
		"actionable":      PriorityActionable,
		"informative":     PriorityInformative,
		"low":             PriorityInformative,
		"spam":            PriorityInformative,
	}
	for label, want := range cases {
		got, err := ParsePriority(label)
		require.NoError(t, err, label)
		require.Equal(t, want, got, label)
	}

	_, err := ParsePriority("whenever")
	require.Error(t, err)
}

// TestExtractJSON covers bare, fenced and embedded answers.
func TestExtractJSON(t *testing.T) {
	const obj = `{"priority":"low"}`

	for _, answer := range []string{
		obj,
		"```json\n" + obj + "\n```",
		"```\n" + obj + "\n```",
		"Sure! Here it is: " + obj + " Hope that helps.",
	} {
		got, err := ExtractJSON(answer)
		require.NoError(t, err, answer)
		require.Equal(t, obj, got)
	}

	_, err := ExtractJSON("no json here")
	require.Error(t, err)

	_, err = ExtractJSON("{not json}")
	require.Error(t, err)
}

// TestParseResult checks field mapping and defaults.
func TestParseResult(t *testing.T) {
	res, err := ParseResult("m1", `{
		"priority": "action_required",
		"category": "Billing",
		"summary": " Invoice due. ",
		"suggested_action": "Pay the invoice",
		"estimated_time_minutes": 5
	}`)
	require.NoError(t, err)
	require.Equal(t, "m1", res.MessageID)
	require.Equal(t, PriorityActionable, res.Priority)
	require.Equal(t, "action_required", res.Label)
	require.Equal(t, CategoryBilling, res.Category)
	require.Equal(t, "Invoice due.", res.Summary)
	require.Equal(t, "Pay the invoice", res.SuggestedAction)
	require.Equal(t, 5, res.EstimatedMinutes)

	res, err = ParseResult("m2", `{"priority":"spam","category":"crypto",
		"summary":"x","suggested_action":null}`)
	require.NoError(t, err)
	require.Equal(t, PriorityInformative, res.Priority)
	require.Equal(t, CategoryOther, res.Category)
	require.Empty(t, res.SuggestedAction)
	require.Equal(t, 1, res.EstimatedMinutes)

	_, err = ParseResult("m3", `{"priority":"soon"}`)
	require.Error(t, err)
}

// TestDetectTone checks the formal and casual heuristics.
func TestDetectTone(t *testing.T) {
	formal := &mailsource.Content{
		Body: "Dear Mr. Smith,\nPlease find attached.\nKind regards",
	}
	require.Equal(t, ToneFormal, DetectTone(formal))

	casual := &mailsource.Content{Body: "hey! lunch tomorrow? cheers"}
	require.Equal(t, ToneCasual, DetectTone(casual))

	require.Equal(t, ToneFormal, DetectTone(&mailsource.Content{}))
}

// TestClientAnalyze checks prompt construction and truncation.
func TestClientAnalyze(t *testing.T) {
	llm := &fakeCompleter{
		answer: `{"priority":"urgent","category":"security",` +
			`"summary":"Login from new device"}`,
	}
	client := NewClient(llm, Config{SummaryLanguage: "Spanish"},
		build.DiscardLogger())

	content := &mailsource.Content{
		ID:      "m1",
		From:    "alerts@example.com",
		Subject: "New login",
		Body:    strings.Repeat("a", AnalysisBodyLimit+100),
	}

	res, err := client.Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Equal(t, PriorityUrgent, res.Priority)
	require.Equal(t, CategorySecurity, res.Category)

	require.Contains(t, llm.last.System, "Spanish")
	require.Contains(t, llm.last.User, "Subject: New login")
	require.NotContains(t, llm.last.User,
		strings.Repeat("a", AnalysisBodyLimit+1))
}

// TestClientCompose checks that drafts are trimmed and empty drafts
// rejected.
func TestClientCompose(t *testing.T) {
	llm := &fakeCompleter{answer: "  Thanks, will do.\n"}
	client := NewClient(llm, Config{}, build.DiscardLogger())

	draft, err := client.Compose(
		context.Background(), &mailsource.Content{ID: "m1"}, ToneCasual,
	)
	require.NoError(t, err)
	require.Equal(t, "Thanks, will do.", draft)
	require.Contains(t, llm.last.System, "casual")

	llm.answer = "   "
	_, err = client.Compose(
		context.Background(), &mailsource.Content{ID: "m1"}, ToneFormal,
	)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

// TestClientRateLimitCancelled checks that a cancelled context is honored
// while waiting for the limiter.
func TestClientRateLimitCancelled(t *testing.T) {
	llm := &fakeCompleter{answer: `{"priority":"low"}`}
	client := NewClient(llm, Config{RequestsPerSecond: 0.001},
		build.DiscardLogger())

	// The first call consumes the single token.
	_, err := client.Analyze(context.Background(),
		&mailsource.Content{ID: "m1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Analyze(ctx, &mailsource.Content{ID: "m2"})
	require.Error(t, err)
}
