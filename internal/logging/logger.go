// Package logging provides leveled logging and recall-event tracing for
// recallsim. It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLogger for structured JSONL simulation traces (events.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level outcome
// probability vectors are included in recall events.
const LevelTrace = slog.LevelDebug - 4

// EventFile is the name of the JSONL trace written by EventLogger.
const EventFile = "events.jsonl"

// Event types emitted by the simulation driver.
const (
	EventExperience = "experience"
	EventRecall     = "recall"
	EventStop       = "stop"
)

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
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
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Event is one line of the simulation trace.
type Event struct {
	Time     string `json:"time"`
	RunID    string `json:"run_id,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Model    string `json:"model"`
	Type     string `json:"type"`

	// Step is the cycle index for experience events and the recall
	// position for recall and stop events.
	Step int `json:"step"`

	// Items holds the cycle members or the single recalled item.
	Items []int `json:"items,omitempty"`

	// Probabilities is the outcome distribution the choice was drawn from.
	// Only recorded at trace level.
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// EventLogger appends simulation events to a JSONL file.
// It is safe for concurrent use. A nil EventLogger is safe to use;
// all methods are no-ops on nil receiver.
type EventLogger struct {
	mu    sync.Mutex
	file  *os.File
	trace bool
}

// NewEventLogger creates an event logger writing to dir/events.jsonl.
// At "info" level (the default) it returns nil and no file is created.
// At "debug" or "trace" level the file is opened for append.
// Returns nil if the file cannot be opened.
func NewEventLogger(dir string, level string) *EventLogger {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, EventFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &EventLogger{file: f, trace: lvl <= LevelTrace}
}

// Tracing reports whether probability vectors are recorded.
func (el *EventLogger) Tracing() bool {
	return el != nil && el.trace
}

// Log writes ev as a single JSONL line, stamping Time when unset and
// dropping probabilities below trace level. Safe to call on nil receiver.
func (el *EventLogger) Log(ev Event) {
	if el == nil {
		return
	}
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if !el.trace {
		ev.Probabilities = nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file == nil {
		return
	}
	_, _ = el.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}
