package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the number of rotated log files kept on disk.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the size in MB at which the log rotates.
	DefaultMaxLogFileSize = 20

	// DefaultLogFilename is the name of the active log file.
	DefaultLogFilename = "clinbox.log"
)

// LogRotatorConfig holds the configuration for the log file rotator.
type LogRotatorConfig struct {
	// LogDir is the directory where log files are written.
	LogDir string

	// MaxLogFiles is the maximum number of rotated log files to keep.
	// Zero disables rotation.
	MaxLogFiles int

	// MaxLogFileSize is the size in megabytes at which the file rotates.
	MaxLogFileSize int

	// Filename overrides DefaultLogFilename when set.
	Filename string
}

// DefaultLogRotatorConfig returns a LogRotatorConfig rooted at logDir.
func DefaultLogRotatorConfig(logDir string) *LogRotatorConfig {
	return &LogRotatorConfig{
		LogDir:         logDir,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       DefaultLogFilename,
	}
}

// RotatingLogWriter is an io.Writer that feeds a jrick/logrotate rotator
// through a pipe. Rotated files are gzip compressed.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator

	// done is closed once the rotator goroutine has drained the pipe.
	done chan struct{}
}

// NewRotatingLogWriter creates the log directory, opens the rotator and
// starts the goroutine that copies written bytes into it.
func NewRotatingLogWriter(cfg *LogRotatorConfig) (*RotatingLogWriter,
	error) {

	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}
	logFile := filepath.Join(cfg.LogDir, filename)

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	// The rotator threshold is expressed in kilobytes.
	r, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("create file rotator: %w", err)
	}
	r.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	w := &RotatingLogWriter{
		pipe:    pw,
		rotator: r,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(w.done)

		// The rotator is the log destination, so stderr is the only
		// place left to report its own failure.
		if err := r.Run(pr); err != nil {
			_, _ = fmt.Fprintf(
				os.Stderr, "log rotator stopped: %v\n", err,
			)
		}
	}()

	return w, nil
}

// Write sends b to the rotator.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	return w.pipe.Write(b)
}

// Close flushes pending output and stops the rotator goroutine.
func (w *RotatingLogWriter) Close() error {
	err := w.pipe.Close()
	<-w.done

	if closeErr := w.rotator.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
