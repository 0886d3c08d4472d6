package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gorillaws "github.com/gorilla/websocket"

	"dataflow/internal/config"
	"dataflow/internal/infrastructure"
	"dataflow/internal/middleware"
	"dataflow/internal/websocket"
	"dataflow/pkg/contracts/events"
)

// StreamHandler upgrades GET /s/{sid}/ws to the notification stream of the
// session resolved by SessionHandler.SessionCtx
type StreamHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	cfg      config.WebSocketConfig
	logger   *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *websocket.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *StreamHandler {
	h := &StreamHandler{
		hub:    hub,
		cfg:    cfg,
		logger: logger.With(slog.String("handler", "stream")),
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ServeHTTP implements http.Handler
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wb := WorkbenchFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
			slog.String("session_id", wb.ID()),
			slog.String("error", err.Error()))
		return
	}

	client := websocket.NewClient(h.hub, conn, wb.ID(), h.cfg, h.logger).
		WithTrace(middleware.GetRequestID(r.Context()))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	ctx := infrastructure.WithSessionID(r.Context(), wb.ID())
	msg := events.NewMessage(events.MessageTypeConnect, wb.ID(), websocket.SessionState(wb.Snapshot()))
	if err := h.hub.Publish(ctx, wb.ID(), msg); err != nil {
		h.logger.WarnContext(ctx, "Failed to send initial state",
			slog.String("error", err.Error()))
	}
}

// originChecker accepts requests without an Origin header, same-host
// origins and the configured origins
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
