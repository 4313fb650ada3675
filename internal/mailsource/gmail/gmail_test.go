package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// TestParseMessagePrefersPlain checks header extraction and that the plain
// part wins over HTML in a multipart message.
func TestParseMessagePrefersPlain(t *testing.T) {
	msg := &gmailapi.Message{
		Id:       "m1",
		ThreadId: "t1",
		LabelIds: []string{"INBOX", "UNREAD"},
		Snippet:  "snippet",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Ada <ada@example.com>"},
				{Name: "Subject", Value: "Hello"},
				{Name: "Message-ID", Value: "<x@example.com>"},
				{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
			},
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "text/html",
					Body: &gmailapi.MessagePartBody{
						Data: enc("<p>html</p>"),
					},
				},
				{
					MimeType: "text/plain",
					Body: &gmailapi.MessagePartBody{
						Data: enc("plain body"),
					},
				},
			},
		},
	}

	c := parseMessage(msg)
	require.Equal(t, "m1", c.ID)
	require.Equal(t, "t1", c.ThreadID)
	require.Equal(t, "Ada <ada@example.com>", c.From)
	require.Equal(t, "Hello", c.Subject)
	require.Equal(t, "<x@example.com>", c.MessageIDHeader)
	require.Equal(t, "plain body", c.Body)
	require.Equal(t, 2006, c.Date.Year())
}

// TestParseMessageHTMLOnly checks the HTML fallback and the internal date
// fallback.
func TestParseMessageHTMLOnly(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "m2",
		InternalDate: 1_700_000_000_000,
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body: &gmailapi.MessagePartBody{
				Data: base64.RawURLEncoding.EncodeToString(
					[]byte("<div>Only <i>html</i></div>"),
				),
			},
		},
	}

	c := parseMessage(msg)
	require.Equal(t, "Only html", c.Body)
	require.Equal(t, time.UnixMilli(1_700_000_000_000), c.Date)
}

// TestOpenURL checks the web link format.
func TestOpenURL(t *testing.T) {
	s := &Source{}
	require.Equal(t, "https://mail.google.com/mail/u/0/#inbox/abc",
		s.OpenURL("abc"))
}
