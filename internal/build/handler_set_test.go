package build

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

// TestHandlerSetFanOut verifies that a record reaches every handler in the
// set and carries the subsystem tag.
func TestHandlerSetFanOut(t *testing.T) {
	var console, file bytes.Buffer
	set := NewHandlerSet(
		btclogv2.NewDefaultHandler(&console),
		btclogv2.NewDefaultHandler(&file),
	)

	log := slog.New(set.SubSystem(SubsystemTriage))
	log.Info("queue built", "items", 5)

	for _, buf := range []*bytes.Buffer{&console, &file} {
		require.Contains(t, buf.String(), "queue built")
		require.Contains(t, buf.String(), SubsystemTriage)
	}
}

// TestHandlerSetLevel verifies that records below the configured level are
// dropped by every member.
func TestHandlerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	set := NewHandlerSet(btclogv2.NewDefaultHandler(&buf))
	set.SetLevel(btclog.LevelWarn)

	require.Equal(t, btclog.LevelWarn, set.Level())
	require.False(t, set.Enabled(context.Background(), slog.LevelInfo))

	log := slog.New(set)
	log.Info("hidden")
	log.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

// TestNewLoggingInvalidLevel verifies that an unknown level name is
// rejected.
func TestNewLoggingInvalidLevel(t *testing.T) {
	_, err := NewLogging(&LogConfig{
		Console: &bytes.Buffer{},
		Level:   "loud",
	})
	require.Error(t, err)
}

// TestNewLoggingFile verifies that the rotating writer receives records and
// shuts down cleanly.
func TestNewLoggingFile(t *testing.T) {
	logging, err := NewLogging(&LogConfig{
		Rotator: DefaultLogRotatorConfig(t.TempDir()),
		Level:   "debug",
	})
	require.NoError(t, err)

	logging.Logger(SubsystemStore).Debug("opened")
	require.NoError(t, logging.Close())
}
