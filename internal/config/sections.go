package config

import (
	"errors"
	"fmt"
	"time"
)

// Mail selects the mailbox backend.
type Mail struct {
	Source string
}

// Gmail holds the OAuth client of the Gmail backend.
type Gmail struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
}

// IMAP holds the IMAP backend and its SMTP relay.
type IMAP struct {
	Host           string
	Port           int
	Username       string
	Password       string
	TLS            bool
	ArchiveMailbox string
	TrashMailbox   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
	SMTPFrom     string
}

// AI holds the analysis provider settings.
type AI struct {
	Provider          string
	APIKey            string
	AnalysisModel     string
	ReplyModel        string
	BaseURL           string
	Region            string
	SummaryLanguage   string
	RequestsPerSecond float64
	CachePath         string
	CacheTTL          time.Duration
}

// Triage tunes the session.
type Triage struct {
	MaxEmails         int
	Window            int
	AnalyzeTimeout    time.Duration
	FetchTimeout      time.Duration
	ActionTimeout     time.Duration
	ArchiveAfterTask  bool
	ArchiveAfterReply bool
}

// Storage locates the database.
type Storage struct {
	DBPath string
}

// Log configures the log files.
type Log struct {
	Dir       string
	Level     string
	MaxFiles  int
	MaxSizeMB int
}

// Mail returns the mail section.
func (c *Config) Mail() Mail {
	return Mail{Source: c.v.GetString("mail.source")}
}

// Gmail returns the gmail section.
func (c *Config) Gmail() Gmail {
	return Gmail{
		ClientID:     c.Get("gmail.client_id"),
		ClientSecret: c.Get("gmail.client_secret"),
		TokenPath:    c.pathValue("gmail.token_path"),
	}
}

// IMAP returns the imap and smtp sections. SMTP credentials default to
// the IMAP ones.
func (c *Config) IMAP() IMAP {
	cfg := IMAP{
		Host:           c.Get("imap.host"),
		Port:           c.v.GetInt("imap.port"),
		Username:       c.Get("imap.username"),
		Password:       c.Get("imap.password"),
		TLS:            c.v.GetBool("imap.tls"),
		ArchiveMailbox: c.Get("imap.archive_mailbox"),
		TrashMailbox:   c.Get("imap.trash_mailbox"),
		SMTPHost:       c.Get("smtp.host"),
		SMTPPort:       c.v.GetInt("smtp.port"),
		SMTPUsername:   c.Get("smtp.username"),
		SMTPPassword:   c.Get("smtp.password"),
		SMTPTLS:        c.v.GetBool("smtp.tls"),
		SMTPFrom:       c.Get("smtp.from"),
	}
	if cfg.SMTPUsername == "" {
		cfg.SMTPUsername = cfg.Username
	}
	if cfg.SMTPPassword == "" {
		cfg.SMTPPassword = cfg.Password
	}

	return cfg
}

// AI returns the ai section.
func (c *Config) AI() AI {
	return AI{
		Provider:          c.Get("ai.provider"),
		APIKey:            c.Get("ai.api_key"),
		AnalysisModel:     c.Get("ai.model_analysis"),
		ReplyModel:        c.Get("ai.model_reply"),
		BaseURL:           c.Get("ai.base_url"),
		Region:            c.Get("ai.region"),
		SummaryLanguage:   c.Get("ai.summary_language"),
		RequestsPerSecond: c.v.GetFloat64("ai.requests_per_second"),
		CachePath:         c.pathValue("ai.cache_path"),
		CacheTTL:          c.duration("ai.cache_ttl"),
	}
}

// Triage returns the triage section.
func (c *Config) Triage() Triage {
	return Triage{
		MaxEmails:         c.v.GetInt("triage.max_emails"),
		Window:            c.v.GetInt("triage.window"),
		AnalyzeTimeout:    c.duration("triage.analyze_timeout"),
		FetchTimeout:      c.duration("triage.fetch_timeout"),
		ActionTimeout:     c.duration("triage.action_timeout"),
		ArchiveAfterTask:  c.v.GetBool("triage.archive_after_task"),
		ArchiveAfterReply: c.v.GetBool("triage.archive_after_reply"),
	}
}

// Storage returns the storage section.
func (c *Config) Storage() Storage {
	return Storage{DBPath: c.pathValue("storage.db_path")}
}

// Log returns the log section.
func (c *Config) Log() Log {
	return Log{
		Dir:       c.pathValue("log.dir"),
		Level:     c.Get("log.level"),
		MaxFiles:  c.v.GetInt("log.max_files"),
		MaxSizeMB: c.v.GetInt("log.max_size_mb"),
	}
}

// Validate reports every missing or invalid setting needed to run a
// triage session.
func (c *Config) Validate() error {
	var errs []error
	require := func(keys ...string) {
		for _, key := range keys {
			if c.Get(key) == "" {
				errs = append(errs, fmt.Errorf("%s is not set", key))
			}
		}
	}

	switch source := c.Mail().Source; source {
	case MailSourceGmail:
		require("gmail.client_id", "gmail.client_secret")

	case MailSourceIMAP:
		require("imap.host", "imap.username", "imap.password",
			"smtp.host")

	default:
		errs = append(errs, fmt.Errorf("mail.source %q is not one of "+
			"gmail, imap", source))
	}

	switch provider := c.AI().Provider; provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderGemini:
		require("ai.api_key", "ai.model_analysis")

	case ProviderBedrock:
		require("ai.region", "ai.model_analysis")

	case ProviderNone:

	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not one of "+
			"openrouter, openai, gemini, bedrock, none", provider))
	}

	triage := c.Triage()
	if triage.MaxEmails < 1 {
		errs = append(errs, errors.New("triage.max_emails must be "+
			"at least 1"))
	}
	if triage.Window < 1 {
		errs = append(errs, errors.New("triage.window must be at "+
			"least 1"))
	}

	return errors.Join(errs...)
}
