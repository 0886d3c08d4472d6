package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"

	"dataflow/internal/config"
)

// Log outputs accepted by LoggingConfig.Output
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// Log formats accepted by LoggingConfig.Format
const (
	FormatJSON = "json"
	FormatText = "text"
)

// contextKey is a type for context keys
type contextKey string

const (
	// TraceIDContextKey is the key for storing trace ID in context
	TraceIDContextKey contextKey = "trace_id"
	// SessionIDContextKey carries the workbench session id
	SessionIDContextKey contextKey = "session_id"
)

// process-wide logger and the log file it writes to
var std struct {
	once   sync.Once
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// InitializeLogger builds the process logger once and installs it as the
// slog default. Later calls return the first logger.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	std.once.Do(func() {
		std.logger, err = NewLogger(cfg, os.Stdout)
		if std.logger != nil {
			slog.SetDefault(std.logger)
		}
	})
	return std.logger, err
}

// GetLogger returns the process logger, or slog's default before
// InitializeLogger ran
func GetLogger() *slog.Logger {
	if std.logger == nil {
		return slog.Default()
	}
	return std.logger
}

// NewLogger creates a logger for cfg. console receives "console" output;
// the web server passes stdout and the CLI stderr.
func NewLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, error) {
	output, err := logOutput(cfg, console)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.Development,
		Level:     parseLogLevel(cfg.Level),
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, FormatText) {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	return slog.New(&contextHandler{Handler: handler}), nil
}

func logOutput(cfg config.LoggingConfig, console io.Writer) (io.Writer, error) {
	output := strings.ToLower(cfg.Output)
	if output != OutputFile && output != OutputBoth {
		return console, nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	std.mu.Lock()
	if std.file != nil {
		std.file.Close()
	}
	std.file = file
	std.mu.Unlock()

	if output == OutputBoth {
		return io.MultiWriter(console, file), nil
	}
	return file, nil
}

// contextHandler stamps records with the trace, request and session ids
// carried by the context. A session_id the logger or record already holds
// is not repeated.
type contextHandler struct {
	slog.Handler
	hasSession bool
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	if sessionID := GetSessionID(ctx); sessionID != "" && !h.hasSession && !hasAttr(r, "session_id") {
		r.AddAttrs(slog.String("session_id", sessionID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	has := h.hasSession
	for _, a := range attrs {
		has = has || a.Key == "session_id"
	}
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), hasSession: has}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), hasSession: h.hasSession}
}

func hasAttr(r slog.Record, key string) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		found = a.Key == key
		return !found
	})
	return found
}

// parseLogLevel maps a config level to slog; unknown levels mean info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID retrieves the trace ID from context, falling back to the
// active OpenTelemetry span
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return traceID
	}
	return TraceIDFromContext(ctx)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDContextKey, sessionID)
}

// GetSessionID retrieves the session ID from context
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDContextKey).(string); ok {
		return id
	}
	return ""
}

// CloseLogFile closes the log file opened by NewLogger, if any
func CloseLogFile() error {
	std.mu.Lock()
	defer std.mu.Unlock()

	if std.file == nil {
		return nil
	}
	err := std.file.Close()
	std.file = nil
	return err
}

// ResetLoggerForTesting forgets the process logger so a test can
// initialize it again
func ResetLoggerForTesting() {
	CloseLogFile()
	std.logger = nil
	std.once = sync.Once{}
}

func openLogFile(filePath string) (*os.File, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
