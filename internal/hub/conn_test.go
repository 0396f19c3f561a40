package hub

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/logging"
)

// guardTransport trips if two WriteMessage calls ever overlap and records
// the deadlines set before each write.
type guardTransport struct {
	writing   atomic.Bool
	overlaps  atomic.Int64
	pings     atomic.Int64
	texts     atomic.Int64
	deadlines atomic.Int64

	mu           sync.Mutex
	lastDeadline time.Time
}

func (g *guardTransport) WriteMessage(messageType int, _ []byte) error {
	if !g.writing.CompareAndSwap(false, true) {
		g.overlaps.Add(1)
	}
	time.Sleep(100 * time.Microsecond)
	switch messageType {
	case websocket.PingMessage:
		g.pings.Add(1)
	case websocket.TextMessage:
		g.texts.Add(1)
	}
	g.writing.Store(false)
	return nil
}

func (g *guardTransport) SetWriteDeadline(t time.Time) error {
	g.deadlines.Add(1)
	g.mu.Lock()
	g.lastDeadline = t
	g.mu.Unlock()
	return nil
}

func (g *guardTransport) Close() error { return nil }

func TestWritePumpIsSoleTransportWriter(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket.PingInterval = time.Millisecond
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	h := New(cfg, logging.Nop(), &stubOracle{}, nil, nil)
	defer h.Stop()

	guard := &guardTransport{}
	conn := h.Connect(guard, 1, "alice")

	// Flood the send queue while the ping ticker fires so data and ping
	// frames contend for the transport.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		conn.Send(EventNotification, map[string]any{"seq": 1})
		time.Sleep(50 * time.Microsecond)
	}
	h.Disconnect(conn)

	assert.Zero(t, guard.overlaps.Load(), "transport writes overlapped")
	assert.Positive(t, guard.pings.Load(), "ping ticker never fired")
	assert.Positive(t, guard.texts.Load(), "no data frames were written")
}

func TestWriteDeadlineAppliedPerFrame(t *testing.T) {
	guard := &guardTransport{}
	log := logging.Nop()

	conn := newConn("c1", 1, "alice", guard, 8, time.Minute, 5*time.Second, log)
	go conn.writePump()
	defer conn.close()

	before := time.Now()
	conn.Send(EventNotification, nil)

	require.Eventually(t, func() bool {
		return guard.texts.Load() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), guard.deadlines.Load())
	guard.mu.Lock()
	got := guard.lastDeadline
	guard.mu.Unlock()
	assert.True(t, got.After(before.Add(4*time.Second)), "deadline %v not pushed ~5s out", got)

	// Without a configured timeout no deadline is armed.
	bare := &guardTransport{}
	conn2 := newConn("c2", 2, "bob", bare, 8, time.Minute, 0, log)
	go conn2.writePump()
	defer conn2.close()

	conn2.Send(EventNotification, nil)
	require.Eventually(t, func() bool {
		return bare.texts.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, bare.deadlines.Load())
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	// No writePump running, so the queue only fills.
	conn := newConn("c1", 1, "alice", &guardTransport{}, 2, time.Minute, 0, logging.Nop())
	defer conn.close()

	conn.Send(EventNotification, nil)
	conn.Send(EventNotification, nil)
	conn.Send(EventNotification, nil)

	assert.Len(t, conn.send, 2)
}
