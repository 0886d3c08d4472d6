package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dataflow/internal/config"
	"dataflow/internal/infrastructure"
)

// Maximum message size allowed from peer
const maxMessageSize = 512

var (
	newline   = []byte{'\n'}
	space     = []byte{' '}
	heartbeat = []byte(`{"type":"heartbeat"}`)
)

// Client is a middleman between one page's websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	sessionID   string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration

	logger *slog.Logger
}

// NewClient creates a client of sessionID on conn
func NewClient(hub *Hub, conn Connection, sessionID string, cfg config.WebSocketConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	pongWait := cfg.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		// Pings must go out before the peer's pong deadline
		pingPeriod = (pongWait * 9) / 10
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, buffer),
		id:          id,
		sessionID:   sessionID,
		remoteAddr:  remote,
		connectedAt: time.Now(),
		writeWait:   writeWait,
		pongWait:    pongWait,
		pingPeriod:  pingPeriod,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
			slog.String("session_id", sessionID),
		),
	}
}

// WithTrace tags the client's logs with the trace id of the upgrade request
func (c *Client) WithTrace(traceID string) *Client {
	c.traceID = traceID
	if traceID != "" {
		c.logger = c.logger.With(slog.String("trace_id", traceID))
	}
	return c
}

// ID returns the client id
func (c *Client) ID() string {
	return c.id
}

// SessionID returns the session the client is subscribed to
func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) context() context.Context {
	ctx := infrastructure.WithSessionID(context.Background(), c.sessionID)
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump reads from the connection until it fails, then unregisters the
// client. The page only sends heartbeats.
func (c *Client) ReadPump() {
	defer func() {
		c.logger.InfoContext(c.context(), "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(c.context(), "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		if bytes.Equal(message, heartbeat) {
			c.logger.Debug("Heartbeat received")
			continue
		}
		c.logger.Debug("Ignoring client message", slog.Int("bytes", len(message)))
	}
}

// WritePump writes queued messages and pings to the connection until the
// hub closes the send channel or a write fails
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.WarnContext(c.context(), "WebSocket write failed",
					slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
