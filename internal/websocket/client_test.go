package websocket

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/config"
	"dataflow/internal/shared/testutil"
)

func TestNewClientTimings(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	tests := []struct {
		name     string
		cfg      config.WebSocketConfig
		wantPing time.Duration
		wantPong time.Duration
	}{
		{
			name:     "configured",
			cfg:      config.WebSocketConfig{PingPeriod: 30 * time.Second, PongWait: 60 * time.Second, WriteWait: time.Second, SendBuffer: 4},
			wantPing: 30 * time.Second,
			wantPong: 60 * time.Second,
		},
		{
			name:     "ping not shorter than pong wait",
			cfg:      config.WebSocketConfig{PingPeriod: 20 * time.Second, PongWait: 10 * time.Second},
			wantPing: 9 * time.Second,
			wantPong: 10 * time.Second,
		},
		{
			name:     "zero values",
			cfg:      config.WebSocketConfig{},
			wantPing: 54 * time.Second,
			wantPong: 60 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(nil, newFakeConn(), "s", tt.cfg, logger)
			assert.Equal(t, tt.wantPing, c.pingPeriod)
			assert.Equal(t, tt.wantPong, c.pongWait)
			assert.Positive(t, cap(c.send))
			assert.Equal(t, "127.0.0.1:8080", c.remoteAddr)
			assert.NotEmpty(t, c.ID())
			assert.Equal(t, "s", c.SessionID())
		})
	}
}

func TestWritePumpDrainsAndCloses(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	conn := newFakeConn()
	c := NewClient(nil, conn, "s", config.Default().WebSocket, logger)

	c.send <- []byte(`{"type":"notification"}`)
	close(c.send)
	c.WritePump()

	written := conn.frames()
	require.Len(t, written, 2)
	assert.Equal(t, websocket.TextMessage, written[0].kind)
	assert.Equal(t, `{"type":"notification"}`, string(written[0].data))
	assert.Equal(t, websocket.CloseMessage, written[1].kind)
	assert.True(t, conn.isClosed())
}

func TestWritePumpStopsOnWriteError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	conn := newFakeConn()
	conn.writeErr = assert.AnError
	c := NewClient(nil, conn, "s", config.Default().WebSocket, logger)

	c.send <- []byte("x")
	c.WritePump()

	assert.True(t, conn.isClosed())
	assert.True(t, logs.ContainsMessage("WebSocket write failed"))
}

func TestReadPumpUnregistersOnError(t *testing.T) {
	hub := startHub(t)
	logger, logs := testutil.NewTestLogger(t)
	conn := newFakeConn(`{"type":"heartbeat"}`, "ignored")

	c := NewClient(hub, conn, "s", config.Default().WebSocket, logger)
	register(t, hub, c)

	c.ReadPump()

	require.Eventually(t, func() bool { return hub.ClientCount("s") == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, conn.isClosed())
	assert.Equal(t, int64(maxMessageSize), conn.readLimit)
	assert.NotNil(t, conn.pong)
	assert.True(t, logs.ContainsMessage("WebSocket client disconnected"))
}
