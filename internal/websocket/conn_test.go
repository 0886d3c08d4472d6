package websocket

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	kind int
	data []byte
}

// fakeConn is an in-memory Connection. Reads return the queued frames and
// then fail, so a read pump always ends.
type fakeConn struct {
	mu        sync.Mutex
	reads     []frame
	written   []frame
	writeErr  error
	closed    bool
	readLimit int64
	pong      func(string) error
}

func newFakeConn(reads ...string) *fakeConn {
	c := &fakeConn{}
	for _, r := range reads {
		c.reads = append(c.reads, frame{kind: websocket.TextMessage, data: []byte(r)})
	}
	return c
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return net.ErrClosed
	case c.writeErr != nil:
		return c.writeErr
	}
	c.written = append(c.written, frame{kind: kind, data: data})
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.reads) == 0 {
		return 0, nil, errors.New("eof")
	}
	f := c.reads[0]
	c.reads = c.reads[1:]
	return f.kind, f.data, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetReadLimit(limit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readLimit = limit
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = h
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

func (c *fakeConn) frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
