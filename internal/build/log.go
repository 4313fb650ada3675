package build

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// Subsystem tags used across the binary.
const (
	SubsystemTriage   = "TRGE"
	SubsystemPrefetch = "PFCH"
	SubsystemMail     = "MAIL"
	SubsystemAnalysis = "ANLZ"
	SubsystemStore    = "STOR"
	SubsystemCLI      = "CMD"
)

// LogConfig selects where log output goes.
type LogConfig struct {
	// Rotator configures the log file. A nil Rotator disables file
	// output.
	Rotator *LogRotatorConfig

	// Console receives a copy of every record when non-nil. The
	// interactive triage screen leaves this nil since the terminal is
	// owned by the TUI.
	Console io.Writer

	// Level is the btclog level name, e.g. "info" or "debug".
	Level string
}

// Logging owns the root handler and the rotating file writer.
type Logging struct {
	root   *HandlerSet
	writer *RotatingLogWriter
}

// NewLogging builds the handler set described by cfg.
func NewLogging(cfg *LogConfig) (*Logging, error) {
	var (
		handlers []btclogv2.Handler
		writer   *RotatingLogWriter
	)

	if cfg.Rotator != nil {
		w, err := NewRotatingLogWriter(cfg.Rotator)
		if err != nil {
			return nil, err
		}
		writer = w
		handlers = append(handlers, btclogv2.NewDefaultHandler(w))
	}
	if cfg.Console != nil {
		handlers = append(
			handlers, btclogv2.NewDefaultHandler(cfg.Console),
		)
	}

	l := &Logging{
		root:   NewHandlerSet(handlers...),
		writer: writer,
	}
	if err := l.SetLevel(cfg.Level); err != nil {
		_ = l.Close()
		return nil, err
	}

	return l, nil
}

// SetLevel parses level and applies it to every handler. An empty level
// leaves the default in place.
func (l *Logging) SetLevel(level string) error {
	if level == "" {
		return nil
	}

	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	l.root.SetLevel(lvl)

	return nil
}

// Logger returns a slog.Logger tagged with subsystem.
func (l *Logging) Logger(subsystem string) *slog.Logger {
	return slog.New(l.root.SubSystem(subsystem))
}

// Close flushes and closes the log file, if any.
func (l *Logging) Close() error {
	if l.writer == nil {
		return nil
	}

	return l.writer.Close()
}

// DiscardLogger returns a logger that drops everything. Tests and library
// callers without a configured Logging use it.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
