// Package di assembles the clinbox object graph with dig.
package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/roasbeef/clinbox/internal/browser"
	"github.com/roasbeef/clinbox/internal/build"
	"github.com/roasbeef/clinbox/internal/checkpoint"
	"github.com/roasbeef/clinbox/internal/config"
	"github.com/roasbeef/clinbox/internal/credential"
	"github.com/roasbeef/clinbox/internal/db"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/mailsource/gmail"
	"github.com/roasbeef/clinbox/internal/mailsource/imap"
	"github.com/roasbeef/clinbox/internal/task"
	"go.uber.org/dig"
)

// Options are the command line overrides layered over the config file.
type Options struct {
	// ConfigPath replaces ~/.clinbox/config.json when set.
	ConfigPath string

	// DBPath replaces storage.db_path when set.
	DBPath string

	// LogLevel replaces log.level when set.
	LogLevel string

	// Secrets replaces the OS keyring when set.
	Secrets config.SecretStore

	// LogConsole receives a copy of the log. Interactive commands leave
	// it nil since the terminal belongs to the triage screen.
	LogConsole io.Writer
}

// Closers releases what the providers opened, newest first.
type Closers struct {
	mu  sync.Mutex
	fns []func() error
}

func (c *Closers) add(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fns = append(c.fns, fn)
}

// Close runs every registered closer once.
func (c *Closers) Close() error {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// BuildContainer registers every provider. Nothing is constructed until a
// caller invokes a function that needs it, so commands that only read the
// task list never authenticate with the mailbox.
func BuildContainer(ctx context.Context, opts *Options,
	closers *Closers) (*dig.Container, error) {

	container := dig.New()

	providers := []any{
		func() context.Context { return ctx },
		func() *Options { return opts },
		func() *Closers { return closers },
		provideSecrets,
		provideConfig,
		provideLogging,
		provideDatabase,
		provideTaskStore,
		provideCheckpointStore,
		provideMailSource,
		provideAI,
		provideSurface,
		provideApp,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, err
		}
	}

	return container, nil
}

// Invoke builds a container for opts, calls fn with its dependencies and
// closes everything that was opened along the way.
func Invoke(ctx context.Context, opts *Options, fn any) (err error) {
	closers := &Closers{}
	defer func() {
		if cerr := closers.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	container, err := BuildContainer(ctx, opts, closers)
	if err != nil {
		return err
	}

	return dig.RootCause(container.Invoke(fn))
}

// provideSecrets opens the OS keyring. Without one, secrets stay in the
// config file.
func provideSecrets(opts *Options) config.SecretStore {
	if opts.Secrets != nil {
		return opts.Secrets
	}

	dir, err := config.DefaultDir()
	if err != nil {
		return nil
	}

	store, err := credential.Open(dir)
	if err != nil {
		return nil
	}

	return store
}

func provideConfig(opts *Options,
	secrets config.SecretStore) (*config.Config, error) {

	path := opts.ConfigPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	return config.Load(path, secrets)
}

func provideLogging(cfg *config.Config, opts *Options,
	closers *Closers) (*build.Logging, error) {

	lc := cfg.Log()

	level := lc.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	logging, err := build.NewLogging(&build.LogConfig{
		Rotator: &build.LogRotatorConfig{
			LogDir:         lc.Dir,
			MaxLogFiles:    lc.MaxFiles,
			MaxLogFileSize: lc.MaxSizeMB,
		},
		Console: opts.LogConsole,
		Level:   level,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to set up logging: %w", err)
	}
	closers.add(logging.Close)

	return logging, nil
}

func provideDatabase(cfg *config.Config, opts *Options,
	logging *build.Logging, closers *Closers) (*db.SqliteStore, error) {

	path := opts.DBPath
	if path == "" {
		path = cfg.Storage().DBPath
	}
	if path == "" {
		var err error
		path, err = db.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	store, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: path,
	}, logging.Logger(build.SubsystemStore))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	closers.add(store.Close)

	return store, nil
}

func provideTaskStore(store *db.SqliteStore,
	logging *build.Logging) *task.Store {

	return task.NewStore(store.Store, logging.Logger(build.SubsystemStore))
}

func provideCheckpointStore(store *db.SqliteStore,
	logging *build.Logging) *checkpoint.Store {

	return checkpoint.NewStore(
		store.Store, logging.Logger(build.SubsystemStore),
	)
}

// provideMailSource connects to the configured mailbox. For Gmail this may
// run the browser consent flow on first use.
func provideMailSource(ctx context.Context, cfg *config.Config,
	logging *build.Logging) (mailsource.Source, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration (see `clinbox "+
			"config show`): %w", err)
	}

	log := logging.Logger(build.SubsystemMail)

	switch cfg.Mail().Source {
	case config.MailSourceIMAP:
		c := cfg.IMAP()

		return imap.New(&imap.Config{
			Host:           c.Host,
			Port:           c.Port,
			Username:       c.Username,
			Password:       c.Password,
			TLS:            c.TLS,
			ArchiveMailbox: c.ArchiveMailbox,
			TrashMailbox:   c.TrashMailbox,
			SMTP: imap.SMTPConfig{
				Host:     c.SMTPHost,
				Port:     c.SMTPPort,
				Username: c.SMTPUsername,
				Password: c.SMTPPassword,
				TLS:      c.SMTPTLS,
				From:     c.SMTPFrom,
			},
		}, log), nil

	default:
		c := cfg.Gmail()

		auth := gmail.NewAuthorizer(
			gmail.OAuthConfig(c.ClientID, c.ClientSecret),
			c.TokenPath, log,
		)
		auth.OpenBrowser = browser.Open

		client, err := auth.Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("gmail authorization failed: %w",
				err)
		}

		src, err := gmail.New(ctx, client, log)
		if err != nil {
			return nil, err
		}

		return src, nil
	}
}
