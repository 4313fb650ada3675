package mailsource

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var replyMarkdown = goldmark.New(
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Reply is an outgoing answer to a fetched message.
type Reply struct {
	// From is the sender address. It may be empty when the transport
	// fills it in, as Gmail does.
	From string

	Original *Content
	Body     string
	Date     time.Time
}

// ReplySubject prefixes subject with "Re: " unless it already has one.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}

	return "Re: " + trimmed
}

// angle wraps a message id in angle brackets if it lacks them.
func angle(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "<") {
		return id
	}

	return "<" + id + ">"
}

// ReplyReferences returns the References header for a reply to c: the
// original's references followed by its own message id.
func (c *Content) ReplyReferences() string {
	parts := strings.Fields(c.References)
	if id := angle(c.MessageIDHeader); id != "" {
		parts = append(parts, id)
	}

	return strings.Join(parts, " ")
}

// Recipients returns the bare addresses a reply goes to.
func (r *Reply) Recipients() ([]string, error) {
	addrs, err := mail.ParseAddressList(r.Original.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w",
			r.Original.From, err)
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}

	return out, nil
}

// Build renders the reply as an RFC 5322 message with a plain text part and
// an HTML part rendered from the body as markdown.
func (r *Reply) Build() ([]byte, error) {
	if r.Original == nil {
		return nil, fmt.Errorf("reply has no original message")
	}

	var h mail.Header
	date := r.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetSubject(ReplySubject(r.Original.Subject))

	if r.From != "" {
		from, err := mail.ParseAddress(r.From)
		if err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
		h.SetAddressList("From", []*mail.Address{from})
	}

	to, err := mail.ParseAddressList(r.Original.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w",
			r.Original.From, err)
	}
	h.SetAddressList("To", to)

	if id := angle(r.Original.MessageIDHeader); id != "" {
		h.Set("In-Reply-To", id)
		h.Set("References", r.Original.ReplyReferences())
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var htmlBody bytes.Buffer
	if err := replyMarkdown.Convert([]byte(r.Body), &htmlBody); err != nil {
		return nil, fmt.Errorf("render html part: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writeInline(tw, "text/plain", r.Body); err != nil {
		return nil, err
	}
	if err := writeInline(tw, "text/html", htmlBody.String()); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	w, err := tw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}
