package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	// maxCapturedBody caps how much of a JSON request body is held for logs
	maxCapturedBody = 64 * 1024
	// maxLoggedBody is the length of the sanitized body written to a log line
	maxLoggedBody = 500
)

// redactedFields hold dataset values and never reach the logs
var redactedFields = []string{"data", "rows", "value", "value1", "value2"}

type outcomeKey struct{}

// outcome is filled by HandleError for the request log line
type outcome struct {
	kind Kind
}

func noteFailure(ctx context.Context, kind Kind) {
	if o, ok := ctx.Value(outcomeKey{}).(*outcome); ok {
		o.kind = kind
	}
}

// ErrorMiddleware writes one log line per request, carrying the error kind
// of a failed request, and turns panics into problem responses
type ErrorMiddleware struct {
	handler *ErrorHandler
	logger  *slog.Logger
}

// NewErrorMiddleware creates the middleware around handler
func NewErrorMiddleware(handler *ErrorHandler, logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		handler: handler,
		logger:  logger.With(slog.String("component", "error_middleware")),
	}
}

// Handler returns the middleware handler function
func (m *ErrorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		body := captureJSONBody(r)

		o := &outcome{}
		r = r.WithContext(context.WithValue(r.Context(), outcomeKey{}, o))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if rec := recover(); rec != nil {
				m.handler.HandlePanic(ww, r, rec)
			}
			m.logRequest(r, ww, o, body, time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (m *ErrorMiddleware) logRequest(r *http.Request, ww middleware.WrapResponseWriter, o *outcome, body []byte, elapsed time.Duration) {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
		slog.Int("bytes", ww.BytesWritten()),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, slog.String("query", r.URL.RawQuery))
	}
	if o.kind != "" {
		attrs = append(attrs, slog.String("error_kind", string(o.kind)))
	}
	if status >= http.StatusBadRequest && len(body) > 0 {
		logged := sanitizeRequestBody(body)
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody] + "..."
		}
		attrs = append(attrs, slog.String("request_body", logged))
	}

	m.logger.LogAttrs(r.Context(), statusLevel(status), "http request", attrs...)
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// captureJSONBody reads a small JSON body and puts it back for the handler.
// Uploads and large bodies stream through untouched.
func captureJSONBody(r *http.Request) []byte {
	if r.Body == nil || r.ContentLength <= 0 || r.ContentLength >= maxCapturedBody {
		return nil
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body
}

// sanitizeRequestBody replaces dataset values with a placeholder
func sanitizeRequestBody(body []byte) string {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "[unparseable body]"
	}
	for _, field := range redactedFields {
		if _, exists := data[field]; exists {
			data[field] = "[REDACTED]"
		}
	}
	sanitized, _ := json.Marshal(data)
	return string(sanitized)
}
