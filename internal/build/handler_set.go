package build

import (
	"context"
	"errors"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans a log record out to several btclog handlers, for example
// the console and the rotating log file. A record is forwarded only to the
// handlers whose level admits it.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet builds a HandlerSet over handlers, all at the Info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{set: handlers}
	h.SetLevel(btclog.LevelInfo)

	return h
}

// Enabled reports whether any underlying handler accepts level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle dispatches record to every handler enabled for its level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.set {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs returns a handler carrying attrs on every member.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(h.set))
	for i, handler := range h.set {
		out[i] = handler.WithAttrs(attrs)
	}

	return out
}

// WithGroup returns a handler that nests attributes under name.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	out := make(fanout, len(h.set))
	for i, handler := range h.set {
		out[i] = handler.WithGroup(name)
	}

	return out
}

// SubSystem returns a HandlerSet tagging every record with tag.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	return h.derive(func(handler btclogv2.Handler) btclogv2.Handler {
		return handler.SubSystem(tag)
	})
}

// WithPrefix returns a HandlerSet prefixing every message with prefix.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	return h.derive(func(handler btclogv2.Handler) btclogv2.Handler {
		return handler.WithPrefix(prefix)
	})
}

// SetLevel changes the level of every underlying handler.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the level last applied with SetLevel.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// derive builds a new set by applying f to each member.
func (h *HandlerSet) derive(
	f func(btclogv2.Handler) btclogv2.Handler) *HandlerSet {

	out := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		out.set[i] = f(handler)
	}

	return out
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// fanout is the plain slog.Handler produced by WithAttrs and WithGroup,
// which return slog handlers rather than btclog ones.
type fanout []slog.Handler

// Enabled reports whether any member accepts level.
func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle dispatches record to every enabled member.
func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range f {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs applies attrs to every member.
func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, handler := range f {
		out[i] = handler.WithAttrs(attrs)
	}

	return out
}

// WithGroup applies the group to every member.
func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, handler := range f {
		out[i] = handler.WithGroup(name)
	}

	return out
}

var _ slog.Handler = (fanout)(nil)
