// Package gmail implements the mail source on top of the Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/roasbeef/clinbox/internal/mailsource"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	user = "me"

	labelInbox  = "INBOX"
	labelUnread = "UNREAD"

	webURL = "https://mail.google.com/mail/u/0/#inbox/"
)

// Source is a mailsource.Source backed by a Gmail account.
type Source struct {
	srv *gmailapi.Service
	log *slog.Logger
}

var _ mailsource.Source = (*Source)(nil)

// New returns a Source that talks to Gmail through client, which must carry
// OAuth credentials for the Scopes.
func New(ctx context.Context, client *http.Client,
	log *slog.Logger) (*Source, error) {

	srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return &Source{srv: srv, log: log}, nil
}

// Profile returns the address of the authenticated account.
func (s *Source) Profile(ctx context.Context) (string, error) {
	p, err := s.srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return p.EmailAddress, nil
}

// List returns the inbox messages selected by filter in the order Gmail
// reports them, newest first.
func (s *Source) List(ctx context.Context,
	filter mailsource.Filter) ([]mailsource.MessageRef, error) {

	limit := filter.MaxResults
	if limit <= 0 {
		limit = mailsource.DefaultMaxResults
	}

	call := s.srv.Users.Messages.List(user).
		MaxResults(int64(limit)).
		LabelIds(labelInbox)
	if filter.UnreadOnly {
		call = call.Q("is:unread")
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	refs := make([]mailsource.MessageRef, 0, len(resp.Messages))
	for i, m := range resp.Messages {
		if i >= limit {
			break
		}
		refs = append(refs, mailsource.MessageRef{ID: m.Id, Position: i})
	}

	s.log.DebugContext(ctx, "Listed messages", "filter", filter.Canonical(),
		"count", len(refs))

	return refs, nil
}

// Fetch returns the full message id.
func (s *Source) Fetch(ctx context.Context,
	id string) (*mailsource.Content, error) {

	msg, err := s.srv.Users.Messages.Get(user, id).
		Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	return parseMessage(msg), nil
}

// Mutate applies op to the message id.
func (s *Source) Mutate(ctx context.Context, id string,
	op mailsource.Mutation) error {

	var err error
	switch op {
	case mailsource.MutationArchive:
		_, err = s.srv.Users.Messages.Modify(user, id,
			&gmailapi.ModifyMessageRequest{
				RemoveLabelIds: []string{labelInbox, labelUnread},
			},
		).Context(ctx).Do()

	case mailsource.MutationTrash:
		_, err = s.srv.Users.Messages.Trash(user, id).Context(ctx).Do()

	case mailsource.MutationMarkRead:
		_, err = s.srv.Users.Messages.Modify(user, id,
			&gmailapi.ModifyMessageRequest{
				RemoveLabelIds: []string{labelUnread},
			},
		).Context(ctx).Do()

	default:
		return fmt.Errorf("unsupported mutation %v", op)
	}
	if err != nil {
		return fmt.Errorf("%v message %s: %w", op, id, err)
	}

	s.log.DebugContext(ctx, "Mutated message", "id", id, "op", op)

	return nil
}

// Send replies to the message id within its thread.
func (s *Source) Send(ctx context.Context, id string, body string) error {
	orig, err := s.Fetch(ctx, id)
	if err != nil {
		return err
	}

	reply := &mailsource.Reply{
		Original: orig,
		Body:     body,
		Date:     time.Now(),
	}
	raw, err := reply.Build()
	if err != nil {
		return err
	}

	_, err = s.srv.Users.Messages.Send(user, &gmailapi.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: orig.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send reply to %s: %w", id, err)
	}

	s.log.InfoContext(ctx, "Reply sent", "id", id, "thread", orig.ThreadID)

	return nil
}

// OpenURL returns the Gmail web link for the message.
func (s *Source) OpenURL(id string) string {
	return webURL + id
}

// parseMessage converts an API message into Content.
func parseMessage(msg *gmailapi.Message) *mailsource.Content {
	c := &mailsource.Content{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Labels:   msg.LabelIds,
	}

	var plain, html string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				c.From = h.Value
			case "to":
				c.To = h.Value
			case "subject":
				c.Subject = h.Value
			case "message-id":
				c.MessageIDHeader = h.Value
			case "references":
				c.References = h.Value
			case "date":
				if d, err := netmail.ParseDate(h.Value); err == nil {
					c.Date = d
				}
			}
		}

		plain, html = extractBodies(msg.Payload)
	}

	if c.Date.IsZero() && msg.InternalDate > 0 {
		c.Date = time.UnixMilli(msg.InternalDate)
	}

	c.Body = mailsource.BodyText(plain, html, msg.Snippet)

	return c
}

// extractBodies walks the MIME tree and returns the first text/plain and
// text/html bodies.
func extractBodies(part *gmailapi.MessagePart) (string, string) {
	var plain, html string

	var walk func(p *gmailapi.MessagePart)
	walk = func(p *gmailapi.MessagePart) {
		if p == nil {
			return
		}

		mime := strings.ToLower(p.MimeType)
		if p.Filename == "" && p.Body != nil && p.Body.Data != "" {
			switch {
			case mime == "text/plain" && plain == "":
				plain = decodeBody(p.Body.Data)
			case mime == "text/html" && html == "":
				html = decodeBody(p.Body.Data)
			}
		}

		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(part)

	return plain, html
}

// decodeBody decodes Gmail's base64url body data, with or without padding.
func decodeBody(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}

	return string(b)
}
