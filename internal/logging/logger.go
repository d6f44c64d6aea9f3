// Package logging provides leveled logging and event tracing for hornetcast.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLogger for structured JSONL simulation traces (<out>/events.jsonl)
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// per-country growth step is logged.
const LevelTrace = slog.LevelDebug - 4

// Levels lists the accepted level names, lowest first.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "trace", "debug", "info", "warn", "error" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return true
	}
	for _, l := range Levels {
		if l == s {
			return true
		}
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing text records to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// EventLogger writes structured simulation events (invasions, stage
// transitions, coerced values) as JSONL. It is safe for concurrent use and
// a nil EventLogger is a no-op.
type EventLogger struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	now func() time.Time
}

// NewEventLogger creates an event logger writing to dir/events.jsonl.
// Below debug verbosity (info and up) it returns nil and creates no file.
// It also returns nil if the file cannot be opened.
func NewEventLogger(dir string, level string) *EventLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}
	return &EventLogger{w: f, c: f, now: time.Now}
}

// NewEventWriter creates an event logger writing to w. Closing the logger
// does not close w.
func NewEventWriter(w io.Writer) *EventLogger {
	return &EventLogger{w: w, now: time.Now}
}

// Log writes an event of the given kind as a single JSONL line. "event" and
// "time" fields are added; the caller's map is not mutated.
func (el *EventLogger) Log(kind string, fields map[string]any) {
	if el == nil {
		return
	}

	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = kind
	entry["time"] = el.now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.w == nil {
		return
	}
	_, _ = el.w.Write(data)
}

// Invasion records a neighbor-triggered invasion.
func (el *EventLogger) Invasion(year int, country, source string, sourceDensity float64) {
	el.Log("invasion", map[string]any{
		"year":           year,
		"country":        country,
		"source":         source,
		"source_density": sourceDensity,
	})
}

// Transition records a stage change of an invaded country.
func (el *EventLogger) Transition(year int, country string, from, to int) {
	el.Log("transition", map[string]any{
		"year":    year,
		"country": country,
		"from":    from,
		"to":      to,
	})
}

// Coerced records a non-finite value replaced by zero.
func (el *EventLogger) Coerced(year int, country, field string) {
	el.Log("coerced", map[string]any{
		"year":    year,
		"country": country,
		"field":   field,
	})
}

// Close closes the underlying file, if the logger owns one.
func (el *EventLogger) Close() error {
	if el == nil {
		return nil
	}
	el.mu.Lock()
	defer el.mu.Unlock()

	el.w = nil
	if el.c == nil {
		return nil
	}
	err := el.c.Close()
	el.c = nil
	if err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}
