// Package mailsource defines the remote mailbox the triage loop works
// against, along with the message helpers shared by its adapters.
package mailsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxResults is the number of messages listed when no limit is
// given.
const DefaultMaxResults = 20

// Filter selects the messages that make up a triage session.
type Filter struct {
	// UnreadOnly restricts the listing to unread inbox messages.
	UnreadOnly bool `json:"unread_only"`

	// MaxResults bounds the number of messages listed.
	MaxResults int `json:"max_results"`
}

// DefaultFilter returns the filter used when no flags are given.
func DefaultFilter() Filter {
	return Filter{
		UnreadOnly: true,
		MaxResults: DefaultMaxResults,
	}
}

// Canonical returns a stable string form of the filter. Two filters that
// select the same messages have the same canonical form.
func (f Filter) Canonical() string {
	limit := f.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	return "inbox;unread=" + strconv.FormatBool(f.UnreadOnly) +
		";max=" + strconv.Itoa(limit)
}

// String returns a short human description of the filter.
func (f Filter) String() string {
	kind := "latest"
	if f.UnreadOnly {
		kind = "unread"
	}

	return fmt.Sprintf("%s (max %d)", kind, f.MaxResults)
}

// MessageRef identifies a message and its position in the listing.
type MessageRef struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// Content is a fetched message. It is not modified after Fetch returns.
type Content struct {
	ID       string
	ThreadID string

	From    string
	To      string
	Subject string
	Date    time.Time

	// MessageIDHeader and References are the RFC 5322 threading
	// headers used to build replies.
	MessageIDHeader string
	References      string

	// Body is plain text. HTML only parts are converted with PlainText.
	Body string

	Labels []string
}

// SenderName returns the display name part of From, or the whole value if
// there is none.
func (c *Content) SenderName() string {
	idx := strings.Index(c.From, "<")
	if idx <= 0 {
		return c.From
	}

	name := strings.Trim(strings.TrimSpace(c.From[:idx]), `"`)
	if name == "" {
		return c.From
	}

	return name
}

// Mutation is a change applied to a remote message.
type Mutation uint8

const (
	// MutationArchive removes the message from the inbox and marks it
	// read.
	MutationArchive Mutation = iota

	// MutationTrash moves the message to the trash.
	MutationTrash

	// MutationMarkRead clears the unread flag.
	MutationMarkRead
)

// String returns the name of the mutation.
func (m Mutation) String() string {
	switch m {
	case MutationArchive:
		return "archive"
	case MutationTrash:
		return "trash"
	case MutationMarkRead:
		return "mark_read"
	default:
		return fmt.Sprintf("mutation(%d)", uint8(m))
	}
}

// Source is a remote mailbox.
type Source interface {
	// List returns the messages selected by filter, newest first.
	List(ctx context.Context, filter Filter) ([]MessageRef, error)

	// Fetch returns the content of the message id.
	Fetch(ctx context.Context, id string) (*Content, error)

	// Mutate applies op to the message id.
	Mutate(ctx context.Context, id string, op Mutation) error

	// Send replies to the message id with body.
	Send(ctx context.Context, id string, body string) error

	// OpenURL returns a link that opens the message in a browser, or an
	// empty string when the mailbox has no web view.
	OpenURL(id string) string
}
