package services

import (
	"log"
	"sync"
	"time"

	"audience-live/internal/models"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// WSClient is one transport connection, presenter or participant. The
// outbound queue is bounded; a consumer that can't keep up is dropped
// rather than letting the queue grow without limit.
type WSClient struct {
	ConnID string

	hub  *WebSocketService
	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	limiter *rateLimiter

	mu          sync.Mutex
	sessionCode string
	userID      string
	role        string
	intentional bool
}

// Bind records which session and user this connection belongs to, once a
// join succeeds
func (c *WSClient) Bind(sessionCode, userID, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionCode = sessionCode
	c.userID = userID
	c.role = role
}

// Membership returns the session binding established by Bind
func (c *WSClient) Membership() (sessionCode, userID, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionCode, c.userID, c.role
}

// MarkLeaving flags the connection as intentionally closing, so the
// disconnect is treated as a leave instead of a transient drop
func (c *WSClient) MarkLeaving() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intentional = true
}

func (c *WSClient) isLeaving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional
}

// Allow reports whether the client is within its inbound event budget
func (c *WSClient) Allow() bool {
	return c.limiter.Allow()
}

// enqueue queues one serialized message, reporting false when the send
// buffer is full. The mutex serializes against closeSend so a message can
// never hit a closed channel; a message for an already-torn-down client is
// silently dropped.
func (c *WSClient) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once, letting writePump
// flush and send the close frame
func (c *WSClient) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump reads envelopes off the wire and hands them to the hub's event
// handler in arrival order, preserving per-client ordering
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var envelope models.Envelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.MarkLeaving()
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket read error: conn=%s, err=%v", c.ConnID, err)
			}
			return
		}

		if handler := c.hub.eventHandler(); handler != nil {
			handler(c, envelope)
		}
	}
}

// writePump drains the send queue to the wire and keeps the connection
// alive with pings
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// rateLimiter is a small token bucket guarding inbound events per
// connection
type rateLimiter struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64 // tokens per second
	last   time.Time
}

func newRateLimiter(rate float64, burst int) *rateLimiter {
	return &rateLimiter{
		tokens: float64(burst),
		burst:  float64(burst),
		rate:   rate,
		last:   time.Now(),
	}
}

func (l *rateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
