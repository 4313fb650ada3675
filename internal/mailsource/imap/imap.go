// Package imap implements the mail source for generic IMAP mailboxes,
// sending replies over SMTP.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/roasbeef/clinbox/internal/mailsource"
)

const inbox = "INBOX"

// Config holds the connection settings of an IMAP account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLS selects implicit TLS. When false the connection is upgraded
	// with STARTTLS.
	TLS bool

	// ArchiveMailbox receives archived messages.
	ArchiveMailbox string

	// TrashMailbox receives deleted messages.
	TrashMailbox string

	SMTP SMTPConfig
}

// Source is a mailsource.Source backed by an IMAP account.
type Source struct {
	cfg *Config
	log *slog.Logger

	sender *Sender
}

var _ mailsource.Source = (*Source)(nil)

// New returns an IMAP backed Source.
func New(cfg *Config, log *slog.Logger) *Source {
	if cfg.ArchiveMailbox == "" {
		cfg.ArchiveMailbox = "Archive"
	}
	if cfg.TrashMailbox == "" {
		cfg.TrashMailbox = "Trash"
	}

	return &Source{
		cfg:    cfg,
		log:    log,
		sender: NewSender(&cfg.SMTP, log),
	}
}

// connect dials, authenticates and selects the inbox. The caller must call
// the returned release func when done.
func (s *Source) connect(ctx context.Context) (*imapclient.Client, func(),
	error) {

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var (
		client *imapclient.Client
		err    error
	)
	if s.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to IMAP %s: %w", addr,
			err)
	}

	// The client has no context support; closing the connection is the
	// only way to abandon a blocked command.
	stop := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	err = client.Login(s.cfg.Username, s.cfg.Password).Wait()
	if err != nil {
		stop()
		_ = client.Close()
		return nil, nil, fmt.Errorf("IMAP login as %s: %w",
			s.cfg.Username, err)
	}

	if _, err := client.Select(inbox, nil).Wait(); err != nil {
		stop()
		_ = client.Logout().Wait()
		return nil, nil, fmt.Errorf("selecting %s: %w", inbox, err)
	}

	release := func() {
		stop()
		_ = client.Logout().Wait()
	}

	return client, release, nil
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid IMAP message id %q: %w", id, err)
	}

	return imap.UID(n), nil
}

// newestFirst keeps the limit highest uids and orders them newest first.
func newestFirst(uids []imap.UID, limit int) []imap.UID {
	sorted := slices.Clone(uids)
	slices.Sort(sorted)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	slices.Reverse(sorted)

	return sorted
}

// List searches the inbox and returns the newest matching messages.
func (s *Source) List(ctx context.Context,
	filter mailsource.Filter) ([]mailsource.MessageRef, error) {

	client, release, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	criteria := &imap.SearchCriteria{}
	if filter.UnreadOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", inbox, err)
	}

	limit := filter.MaxResults
	if limit <= 0 {
		limit = mailsource.DefaultMaxResults
	}

	uids := newestFirst(data.AllUIDs(), limit)
	refs := make([]mailsource.MessageRef, 0, len(uids))
	for i, uid := range uids {
		refs = append(refs, mailsource.MessageRef{
			ID:       strconv.FormatUint(uint64(uid), 10),
			Position: i,
		})
	}

	return refs, nil
}

// Fetch downloads the message without setting the seen flag.
func (s *Source) Fetch(ctx context.Context,
	id string) (*mailsource.Content, error) {

	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	client, release, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	section := &imap.FetchItemBodySection{Peek: true}
	cmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %s: %w", id, err)
	}

	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("message %s has no body", id)
	}

	content, err := ParseMessage(id, raw)
	if err != nil {
		return nil, err
	}
	for _, f := range buf.Flags {
		content.Labels = append(content.Labels, string(f))
	}

	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}

	return content, nil
}

// Mutate applies op to the message id. Archive and trash move the message
// to the configured mailbox. An archived message is flagged read in the
// archive after the move, so a failed move leaves it untouched in the inbox.
func (s *Source) Mutate(ctx context.Context, id string,
	op mailsource.Mutation) error {

	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	client, release, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	set := imap.UIDSetNum(uid)

	switch op {
	case mailsource.MutationArchive:
		err = s.archive(ctx, &clientOps{client: client}, set)

	case mailsource.MutationTrash:
		_, err = client.Move(set, s.cfg.TrashMailbox).Wait()

	case mailsource.MutationMarkRead:
		err = addFlag(client, set, imap.FlagSeen)

	default:
		return fmt.Errorf("unsupported mutation %v", op)
	}
	if err != nil {
		return fmt.Errorf("%v message %s: %w", op, id, err)
	}

	s.log.DebugContext(ctx, "Mutated message", "id", id, "op", op)

	return nil
}

// archiveOps are the commands an archive issues.
type archiveOps interface {
	// move moves set to mailbox and returns the uids the messages got
	// there, if the server reported them.
	move(set imap.UIDSet, mailbox string) (imap.UIDSet, error)

	// markSeen flags set in mailbox as read.
	markSeen(mailbox string, set imap.UIDSet) error
}

// archive moves set to the archive mailbox, then flags the moved messages
// read. The flag is best effort since the move already took effect.
func (s *Source) archive(ctx context.Context, ops archiveOps,
	set imap.UIDSet) error {

	dest, err := ops.move(set, s.cfg.ArchiveMailbox)
	if err != nil {
		return err
	}
	if len(dest) == 0 {
		s.log.DebugContext(ctx, "Server did not report archived uids, "+
			"leaving read flag unset", "uids", set.String())
		return nil
	}

	if err := ops.markSeen(s.cfg.ArchiveMailbox, dest); err != nil {
		s.log.WarnContext(ctx, "Unable to flag archived message read",
			"uids", dest.String(), "err", err)
	}

	return nil
}

// clientOps issues archiveOps over a live connection with the inbox
// selected.
type clientOps struct {
	client *imapclient.Client
}

func (m *clientOps) move(set imap.UIDSet,
	mailbox string) (imap.UIDSet, error) {

	data, err := m.client.Move(set, mailbox).Wait()
	if err != nil {
		return nil, err
	}

	// DestUIDs needs UIDPLUS on the server.
	if data == nil {
		return nil, nil
	}
	dest, _ := any(data.DestUIDs).(imap.UIDSet)

	return dest, nil
}

func (m *clientOps) markSeen(mailbox string, set imap.UIDSet) error {
	if _, err := m.client.Select(mailbox, nil).Wait(); err != nil {
		return err
	}

	return addFlag(m.client, set, imap.FlagSeen)
}

func addFlag(client *imapclient.Client, set imap.UIDSet,
	flag imap.Flag) error {

	return client.Store(set, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{flag},
	}, nil).Close()
}

// Send replies to the message id over SMTP and flags the original as
// answered.
func (s *Source) Send(ctx context.Context, id string, body string) error {
	orig, err := s.Fetch(ctx, id)
	if err != nil {
		return err
	}

	reply := &mailsource.Reply{
		From:     s.sender.From(),
		Original: orig,
		Body:     body,
		Date:     time.Now(),
	}
	if err := s.sender.Send(ctx, reply); err != nil {
		return err
	}

	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	client, release, err := s.connect(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Reply sent but unable to flag original",
			"id", id, "err", err)
		return nil
	}
	defer release()

	err = addFlag(client, imap.UIDSetNum(uid), imap.FlagAnswered)
	if err != nil {
		s.log.WarnContext(ctx, "Reply sent but unable to flag original",
			"id", id, "err", err)
	}

	return nil
}

// OpenURL returns an empty string: generic IMAP servers have no web view.
func (s *Source) OpenURL(string) string {
	return ""
}

// ParseMessage builds Content from a raw RFC 5322 message.
func ParseMessage(id string, raw []byte) (*mailsource.Content, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message %s: %w", id, err)
	}
	defer mr.Close()

	c := &mailsource.Content{
		ID:              id,
		From:            mr.Header.Get("From"),
		To:              mr.Header.Get("To"),
		MessageIDHeader: mr.Header.Get("Message-Id"),
		References:      mr.Header.Get("References"),
	}
	if subject, err := mr.Header.Subject(); err == nil {
		c.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		c.Date = date
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(ct, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(body)
		}
	}

	c.Body = mailsource.BodyText(plain, html, "")

	return c, nil
}
