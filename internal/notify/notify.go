// Package notify surfaces success, error and progress messages to the user.
// A Reporter remembers only the current message and fans every notification
// out to its sinks (structured log, websocket hub, terminal).
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/events"
)

// Notifier receives user-visible notifications
type Notifier interface {
	Notify(ctx context.Context, n events.Notification)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, n events.Notification)

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, n events.Notification) {
	f(ctx, n)
}

// Reporter is the notification/status reporter of one session
type Reporter struct {
	mu      sync.RWMutex
	current *events.Notification
	sinks   []Notifier
	now     func() time.Time
}

// NewReporter creates a new Reporter fanning out to sinks
func NewReporter(sinks ...Notifier) *Reporter {
	return &Reporter{
		sinks: sinks,
		now:   time.Now,
	}
}

// AddSink registers another sink
func (r *Reporter) AddSink(sink Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Notify records n as the current message and forwards it to every sink
func (r *Reporter) Notify(ctx context.Context, n events.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = r.now()
	}

	r.mu.Lock()
	r.current = &n
	sinks := append([]Notifier(nil), r.sinks...)
	r.mu.Unlock()

	for _, sink := range sinks {
		sink.Notify(ctx, n)
	}
}

// Success reports a completed operation
func (r *Reporter) Success(ctx context.Context, source, message string) {
	r.Notify(ctx, events.Notification{Level: events.LevelSuccess, Source: source, Message: message})
}

// Info reports a neutral message
func (r *Reporter) Info(ctx context.Context, source, message string) {
	r.Notify(ctx, events.Notification{Level: events.LevelInfo, Source: source, Message: message})
}

// Progress reports that an operation is in flight
func (r *Reporter) Progress(ctx context.Context, source, message string) {
	r.Notify(ctx, events.Notification{Level: events.LevelProgress, Source: source, Message: message})
}

// Error reports err. Superseded responses are reported at info level since
// nothing failed from the user's point of view.
func (r *Reporter) Error(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}
	kind := apperrors.KindOf(err)
	level := events.LevelError
	if kind == apperrors.KindSuperseded {
		level = events.LevelInfo
	}
	r.Notify(ctx, events.Notification{
		Level:   level,
		Source:  source,
		Message: err.Error(),
		Kind:    string(kind),
	})
}

// Current returns the last notification, if any
func (r *Reporter) Current() (events.Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return events.Notification{}, false
	}
	return *r.current, true
}

// Clear dismisses the current message
func (r *Reporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

// LogSink writes every notification to a structured logger
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a new LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "notify"))}
}

// Notify implements Notifier
func (s *LogSink) Notify(ctx context.Context, n events.Notification) {
	level := slog.LevelInfo
	if n.Level == events.LevelError {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("level_hint", string(n.Level)),
		slog.String("source", n.Source),
	}
	if n.Kind != "" {
		attrs = append(attrs, slog.String("kind", n.Kind))
	}
	s.logger.LogAttrs(ctx, level, n.Message, attrs...)
}

// WriterSink prints notifications as plain lines, for terminal use
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a new WriterSink
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Notify implements Notifier
func (s *WriterSink) Notify(_ context.Context, n events.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "[%s] %s\n", n.Level, n.Message)
}

// Recorder keeps every notification in order
type Recorder struct {
	mu    sync.Mutex
	items []events.Notification
}

// Notify implements Notifier
func (r *Recorder) Notify(_ context.Context, n events.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []events.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Notification(nil), r.items...)
}

// Levels returns the level of every recorded notification
func (r *Recorder) Levels() []events.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	levels := make([]events.Level, len(r.items))
	for i, n := range r.items {
		levels[i] = n.Level
	}
	return levels
}

// Last returns the most recent notification
func (r *Recorder) Last() (events.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return events.Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
