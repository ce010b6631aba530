package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"audience-live/internal/models"

	"github.com/gorilla/websocket"
)

// EventFunc receives every envelope pushed by the server
type EventFunc func(envelope models.Envelope)

// Client is a reconnecting WebSocket client for one session membership.
// It wraps the transport with a Supervisor and re-sends the original join
// payload after every reconnect, so the server treats the connection as a
// resume rather than a new join.
type Client struct {
	url        string
	join       models.JoinSessionPayload
	supervisor *Supervisor
	dialer     *websocket.Dialer
	onEvent    EventFunc

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a client for the given ws:// or wss:// URL. The join
// payload must carry a stable userId; it is replayed verbatim on resume.
func New(url string, join models.JoinSessionPayload, onEvent EventFunc) *Client {
	return &Client{
		url:        url,
		join:       join,
		supervisor: NewSupervisor(DefaultSupervisorConfig()),
		dialer:     websocket.DefaultDialer,
		onEvent:    onEvent,
	}
}

// Supervisor exposes the reconnection state machine, mainly for status UX
func (c *Client) Supervisor() *Supervisor {
	return c.supervisor
}

// Run connects and keeps the session membership alive until the context
// is canceled. Transport errors surface as reconnect attempts, not
// failures; Run only returns on cancellation.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.supervisor.Reset()
			return err
		}

		c.supervisor.Connecting()
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if !c.sleep(ctx, c.supervisor.Failed()) {
				c.supervisor.Reset()
				return ctx.Err()
			}
			continue
		}

		c.setConn(conn)
		c.supervisor.Connected()

		if err := c.sendJoin(); err != nil {
			log.Printf("Join send failed: %v", err)
			conn.Close()
			c.setConn(nil)
			if !c.sleep(ctx, c.supervisor.Failed()) {
				c.supervisor.Reset()
				return ctx.Err()
			}
			continue
		}

		c.readLoop(ctx, conn)
		c.setConn(nil)

		if err := ctx.Err(); err != nil {
			c.supervisor.Reset()
			return err
		}
		if !c.sleep(ctx, c.supervisor.Failed()) {
			c.supervisor.Reset()
			return ctx.Err()
		}
	}
}

// Send queues one envelope to the server over the current connection
func (c *Client) Send(envelope models.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteJSON(envelope)
}

// Leave closes the membership cleanly so the server removes the
// participant instead of waiting out the grace window
func (c *Client) Leave() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.WriteJSON(models.Envelope{Type: models.EventLeaveSession})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}

func (c *Client) sendJoin() error {
	return c.Send(models.NewEnvelope(models.EventJoinSession, c.join))
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var envelope models.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Connection lost: %v", err)
			}
			return
		}
		if c.onEvent != nil {
			c.onEvent(envelope)
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
