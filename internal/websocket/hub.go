// Package websocket pushes notifications and state changes of a workbench
// session to the pages subscribed to it.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"dataflow/internal/infrastructure"
	"dataflow/pkg/contracts/events"
)

const publishBuffer = 256

type envelope struct {
	ctx       context.Context
	sessionID string
	msgType   events.MessageType
	data      []byte
}

// Hub maintains the clients of every session and fans messages out to the
// clients of one session
type Hub struct {
	// Registered clients by session id
	sessions map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	publish    chan envelope

	mu sync.RWMutex

	logger  *slog.Logger
	metrics *HubMetrics

	quit     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a Hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *HubMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan envelope, publishBuffer),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled or Stop is
// called, closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()
	defer h.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			return nil

		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return nil

		case client := <-h.register:
			h.mu.Lock()
			clients, ok := h.sessions[client.sessionID]
			if !ok {
				clients = make(map[*Client]struct{})
				h.sessions[client.sessionID] = clients
			}
			clients[client] = struct{}{}
			count := len(clients)
			h.mu.Unlock()

			h.metrics.connectionDelta(ctx, 1)
			h.logger.InfoContext(client.context(), "Client registered",
				slog.String("client_id", client.id),
				slog.String("session_id", client.sessionID),
				slog.Int("session_clients", count),
				slog.String("remote_addr", client.remoteAddr))

		case client := <-h.unregister:
			if h.remove(client) {
				h.logger.InfoContext(client.context(), "Client unregistered",
					slog.String("client_id", client.id),
					slog.String("session_id", client.sessionID))
			}

		case env := <-h.publish:
			h.deliver(env)
		}
	}
}

func (h *Hub) deliver(env envelope) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[env.sessionID]))
	for c := range h.sessions[env.sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- env.data:
			h.metrics.messageSent(env.ctx, string(env.msgType), len(env.data))
		default:
			// A client that cannot keep up is disconnected rather than
			// stalling the session
			h.metrics.messageDropped(env.ctx, string(env.msgType))
			h.logger.WarnContext(env.ctx, "Client send buffer full, disconnecting",
				slog.String("client_id", c.id),
				slog.String("session_id", env.sessionID))
			h.remove(c)
		}
	}
}

// remove drops client and closes its send channel. It reports false when
// the client was already gone.
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}
	close(client.send)
	h.metrics.connectionDelta(context.Background(), -1)
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.sessions {
		for c := range clients {
			close(c.send)
			h.metrics.connectionDelta(context.Background(), -1)
		}
		delete(h.sessions, id)
	}
}

// Stop stops the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

// Register adds client to its session
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes client from its session
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Publish queues msg for every client of sessionID
func (h *Hub) Publish(ctx context.Context, sessionID string, msg events.WebSocketMessage) error {
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.TraceID == "" {
		msg.TraceID = infrastructure.GetTraceID(ctx)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case h.publish <- envelope{ctx: context.WithoutCancel(ctx), sessionID: sessionID, msgType: msg.Type, data: data}:
		return nil
	case <-h.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of clients subscribed to sessionID
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// SessionCount returns the number of sessions with at least one client
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
