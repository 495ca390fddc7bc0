// Package eventlog keeps the most recent warnings and errors the daemon has
// logged so that a status request can report them.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// Event is one captured log record.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// TeeHandler forwards every record to a base handler and additionally hands
// records at or above minLevel to sink. Attributes are flattened into the
// event message as key=value pairs.
type TeeHandler struct {
	base     slog.Handler
	sink     func(Event)
	minLevel slog.Level
	prefix   string // group path, dot-terminated
	attrs    string // pre-rendered WithAttrs attributes
}

// NewTeeHandler returns a handler that delegates to base. A nil sink disables
// capturing.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, sink func(Event)) *TeeHandler {
	return &TeeHandler{base: base, sink: sink, minLevel: minLevel}
}

// Enabled defers to the base handler; minLevel only gates capturing.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards record to the base handler and captures it when its level
// is at least minLevel. The base handler error is returned even when the
// record was captured.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)
	if h.sink == nil || record.Level < h.minLevel {
		return err
	}

	var msg strings.Builder
	msg.WriteString(record.Message)
	msg.WriteString(h.attrs)
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(&msg, h.prefix, a)
		return true
	})
	h.deliver(Event{Time: record.Time, Level: record.Level, Message: msg.String()})
	return err
}

func (h *TeeHandler) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			// Writing through slog here would re-enter this handler.
			fmt.Fprintf(os.Stderr, "[eventlog] sink panicked: %v\n%s\n", r, debug.Stack())
		}
	}()
	h.sink(ev)
}

// WithAttrs returns a handler whose base carries attrs and whose captured
// messages include them.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var rendered strings.Builder
	rendered.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&rendered, h.prefix, a)
	}
	clone := *h
	clone.base = h.base.WithAttrs(attrs)
	clone.attrs = rendered.String()
	return &clone
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.base = h.base.WithGroup(name)
	clone.prefix = h.prefix + name + "."
	return &clone
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, groupPrefix, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s%s=%v", prefix, a.Key, a.Value.Any())
}
