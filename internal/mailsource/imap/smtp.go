package imap

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/roasbeef/clinbox/internal/mailsource"
)

// SMTPConfig holds the outgoing server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLS selects implicit TLS (port 465 style). When false STARTTLS
	// is used.
	TLS bool

	// From is the sender address. It defaults to Username.
	From string
}

// Sender delivers replies over SMTP.
type Sender struct {
	cfg *SMTPConfig
	log *slog.Logger
}

// NewSender returns a Sender for cfg.
func NewSender(cfg *SMTPConfig, log *slog.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// From returns the envelope sender.
func (s *Sender) From() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}

	return s.cfg.Username
}

// Send builds and delivers reply.
func (s *Sender) Send(ctx context.Context, reply *mailsource.Reply) error {
	raw, err := reply.Build()
	if err != nil {
		return err
	}
	to, err := reply.Recipients()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var c *smtp.Client
	if s.cfg.TLS {
		c, err = smtp.DialTLS(addr, nil)
	} else {
		c, err = smtp.DialStartTLS(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("connecting to SMTP %s: %w", addr, err)
	}
	defer c.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})
	defer stop()

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := c.SendMail(s.From(), to, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("SMTP send: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message was accepted before QUIT.
		s.log.WarnContext(ctx, "SMTP QUIT failed", "err", err)
	}

	s.log.InfoContext(ctx, "Reply sent", "to", to)

	return nil
}
