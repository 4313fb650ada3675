// Package analysis classifies messages and drafts replies with a language
// model.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/roasbeef/clinbox/internal/mailsource"
)

// Priority is the triage tier of a message.
type Priority uint8

const (
	// PriorityInformative is for messages that need no action.
	PriorityInformative Priority = iota

	// PriorityActionable is for messages that need a response or an
	// action, but not urgently.
	PriorityActionable

	// PriorityUrgent is for messages that need attention now.
	PriorityUrgent
)

// String returns the label shown on the message card.
func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityActionable:
		return "actionable"
	default:
		return "informative"
	}
}

// MarshalText encodes the priority as its label.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes any label accepted by ParsePriority.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed

	return nil
}

// ParsePriority maps the labels a model may answer with onto the three
// tiers.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urgent", "high", "critical":
		return PriorityUrgent, nil

	case "action_required", "actionable", "action", "medium":
		return PriorityActionable, nil

	case "informative", "info", "low", "spam", "none":
		return PriorityInformative, nil

	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// Category is the topic of a message.
type Category string

// Known categories. Anything else a model returns maps to CategoryOther.
const (
	CategoryBilling        Category = "billing"
	CategorySecurity       Category = "security"
	CategoryInfrastructure Category = "infrastructure"
	CategorySEO            Category = "seo"
	CategoryNewsletter     Category = "newsletter"
	CategoryPersonal       Category = "personal"
	CategoryGitHub         Category = "github"
	CategoryOther          Category = "other"
)

// ParseCategory normalizes a category label.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryBilling, CategorySecurity, CategoryInfrastructure,
		CategorySEO, CategoryNewsletter, CategoryPersonal,
		CategoryGitHub:

		return c

	default:
		return CategoryOther
	}
}

// Result is the analysis of one message.
type Result struct {
	MessageID string   `json:"message_id"`
	Priority  Priority `json:"priority"`

	// Label is the priority as the model answered it, e.g. "spam".
	Label string `json:"label,omitempty"`

	Category         Category `json:"category"`
	Summary          string   `json:"summary"`
	SuggestedAction  string   `json:"suggested_action,omitempty"`
	EstimatedMinutes int      `json:"estimated_minutes,omitempty"`
}

// Tone is the register of a drafted reply.
type Tone uint8

const (
	ToneCasual Tone = iota
	ToneFormal
)

// String returns the tone name used in prompts.
func (t Tone) String() string {
	if t == ToneFormal {
		return "formal"
	}

	return "casual"
}

// Analyzer classifies a message.
type Analyzer interface {
	Analyze(ctx context.Context,
		content *mailsource.Content) (*Result, error)
}

// Composer drafts a reply to a message.
type Composer interface {
	Compose(ctx context.Context, content *mailsource.Content,
		tone Tone) (string, error)
}
