package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"dataflow/internal/infrastructure"
)

// LogRecord is one captured record. SessionID is the workbench session the
// record was logged for, taken from its context.
type LogRecord struct {
	Time      time.Time
	Level     slog.Level
	Message   string
	SessionID string
	Attrs     map[string]any
}

// BufferedSlogHandler records everything logged through it. Handlers
// derived with WithAttrs or WithGroup append to the same buffer.
type BufferedSlogHandler struct {
	mu      *sync.Mutex
	records *[]LogRecord

	attrs  []slog.Attr
	prefix string
	t      *testing.T
}

// NewBufferedSlogHandler creates a capture handler. Records are echoed to
// t.Logf when t is not nil.
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{
		mu:      &sync.Mutex{},
		records: &[]LogRecord{},
		t:       t,
	}
}

// NewTestLogger returns a logger writing into a fresh BufferedSlogHandler
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	handler := NewBufferedSlogHandler(t)
	return slog.New(handler), handler
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *BufferedSlogHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := LogRecord{
		Time:      r.Time,
		Level:     r.Level,
		Message:   r.Message,
		SessionID: infrastructure.GetSessionID(ctx),
		Attrs:     make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[h.prefix+a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", rec.Level, rec.Message, rec.Attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &clone
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// Records returns the captured records, oldest first, that match every
// filter
func (h *BufferedSlogHandler) Records(filters ...func(LogRecord) bool) []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []LogRecord
next:
	for _, r := range *h.records {
		for _, keep := range filters {
			if !keep(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// GetRecords returns every captured record
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	return h.Records()
}

// GetRecordsByLevel returns the records logged at exactly level
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	return h.Records(AtLevel(level))
}

// ContainsMessage reports whether any record message contains message
func (h *BufferedSlogHandler) ContainsMessage(message string) bool {
	return len(h.Records(WithMessage(message))) > 0
}

// ContainsAttr reports whether any record carries key=value
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	return len(h.Records(WithAttr(key, value))) > 0
}

// Clear drops the captured records
func (h *BufferedSlogHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = nil
}

// Count returns the number of captured records
func (h *BufferedSlogHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(*h.records)
}

// AtLevel keeps records logged at exactly level
func AtLevel(level slog.Level) func(LogRecord) bool {
	return func(r LogRecord) bool { return r.Level == level }
}

// WithMessage keeps records whose message contains message
func WithMessage(message string) func(LogRecord) bool {
	return func(r LogRecord) bool { return strings.Contains(r.Message, message) }
}

// WithAttr keeps records carrying key=value
func WithAttr(key string, value any) func(LogRecord) bool {
	return func(r LogRecord) bool {
		v, ok := r.Attrs[key]
		return ok && v == value
	}
}

// ForSession keeps records logged for one workbench session
func ForSession(id string) func(LogRecord) bool {
	return func(r LogRecord) bool { return r.SessionID == id }
}

// AssertLogContains fails t unless a record at level contains message
func AssertLogContains(t *testing.T, handler *BufferedSlogHandler, level slog.Level, message string) {
	t.Helper()
	if len(handler.Records(AtLevel(level), WithMessage(message))) > 0 {
		return
	}
	t.Errorf("no %s log containing %q", level, message)
	for _, r := range handler.Records(AtLevel(level)) {
		t.Logf("  - %s", r.Message)
	}
}

// AssertLogAttr fails t unless some record carries key=expectedValue
func AssertLogAttr(t *testing.T, handler *BufferedSlogHandler, key string, expectedValue any) {
	t.Helper()
	if handler.ContainsAttr(key, expectedValue) {
		return
	}
	t.Errorf("no log with %s=%v", key, expectedValue)
	for _, r := range handler.Records() {
		t.Logf("  - %s: %v", r.Message, r.Attrs)
	}
}

// AssertNoErrors fails t for every error-level record
func AssertNoErrors(t *testing.T, handler *BufferedSlogHandler) {
	t.Helper()
	for _, r := range handler.Records(AtLevel(slog.LevelError)) {
		t.Errorf("unexpected error log: %s: %v", r.Message, r.Attrs)
	}
}
