package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/metrics"
)

// Transport is the minimal surface of a websocket connection the hub needs.
// *websocket.Conn satisfies it; tests substitute a fake.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type roomKey struct {
	Kind RoomKind
	ID   string
}

// Conn is one live client connection. Outbound frames go through a buffered
// queue drained by a single writer goroutine, so one backlogged recipient
// never stalls delivery to the others.
type Conn struct {
	ID       string
	UserID   int64
	Nickname string

	transport    Transport
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	writeTimeout time.Duration

	mu    sync.Mutex
	rooms map[roomKey]struct{}

	log *zap.SugaredLogger
}

func newConn(id string, userID int64, nickname string, transport Transport, queueSize int, pingInterval, writeTimeout time.Duration, log *zap.SugaredLogger) *Conn {
	return &Conn{
		ID:           id,
		UserID:       userID,
		Nickname:     nickname,
		transport:    transport,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		rooms:        make(map[roomKey]struct{}),
		log:          log,
	}
}

// enqueue queues a frame without blocking. A full queue means the client is
// too slow to keep up; the frame is dropped for this connection only.
func (c *Conn) enqueue(frame []byte) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		metrics.IncDropped()
		c.log.Warnf("[Conn %s] send queue full, dropping frame for user %d", c.ID, c.UserID)
	}
}

// Send marshals an event envelope and queues it.
func (c *Conn) Send(event string, payload any) {
	frame, err := json.Marshal(OutboundEnvelope{Type: event, Payload: payload})
	if err != nil {
		c.log.Errorf("[Conn %s] failed to marshal %s event: %v", c.ID, event, err)
		return
	}
	metrics.IncWSEvent("out", event)
	c.enqueue(frame)
}

// writePump drains the send queue onto the transport and emits the liveness
// pings. It is the connection's only writer; the websocket forbids concurrent
// WriteMessage calls, so pings must come from here and not a second
// goroutine. Exits when the connection closes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				c.log.Warnf("[Conn %s] ping error: %v", c.ID, err)
				c.close()
				return
			}
		case frame := <-c.send:
			if err := c.writeFrame(websocket.TextMessage, frame); err != nil {
				c.log.Warnf("[Conn %s] write error: %v", c.ID, err)
				c.close()
				return
			}
		}
	}
}

func (c *Conn) writeFrame(messageType int, data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.transport.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.transport.WriteMessage(messageType, data)
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
}

func (c *Conn) trackRoom(key roomKey) {
	c.mu.Lock()
	c.rooms[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) untrackRoom(key roomKey) {
	c.mu.Lock()
	delete(c.rooms, key)
	c.mu.Unlock()
}

func (c *Conn) joinedRooms() []roomKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]roomKey, 0, len(c.rooms))
	for k := range c.rooms {
		keys = append(keys, k)
	}
	return keys
}
