package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/internal/middleware"
)

var clientLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ClientLogHandler forwards browser-side log entries into the server log
type ClientLogHandler struct {
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

func NewClientLogHandler(validator *middleware.Validator, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "client_log")),
	}
}

// ClientLogEntry is the body of POST /api/logs. An empty level means info.
type ClientLogEntry struct {
	Level     string         `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message   string         `json:"message" validate:"required,max=2000"`
	Data      map[string]any `json:"data,omitempty"`
	Source    string         `json:"source,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// Handle processes POST /api/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var entry ClientLogEntry
	if err := h.validator.DecodeJSON(w, r, &entry); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx := r.Context()
	if entry.SessionID != "" {
		ctx = infrastructure.WithSessionID(ctx, entry.SessionID)
	}
	attrs := []slog.Attr{slog.String("client_source", entry.Source)}
	if len(entry.Data) > 0 {
		attrs = append(attrs, slog.Any("data", entry.Data))
	}
	level, ok := clientLevels[entry.Level]
	if !ok {
		level = slog.LevelInfo
	}
	h.logger.LogAttrs(ctx, level, entry.Message, attrs...)

	render.JSON(w, r, map[string]bool{"success": true})
}
