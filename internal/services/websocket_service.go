package services

import (
	"encoding/json"
	"log"
	"sync"

	"audience-live/internal/models"

	"github.com/gorilla/websocket"
)

// EventFunc processes one inbound envelope from a client
type EventFunc func(client *WSClient, envelope models.Envelope)

// DisconnectFunc handles a connection going away. intentional is true
// when the peer closed cleanly or asked to leave; transient network loss
// reports false so membership can be preserved for the grace window.
type DisconnectFunc func(client *WSClient, intentional bool)

// WebSocketServiceConfig tunes per-connection transport behavior
type WebSocketServiceConfig struct {
	SendBufferSize int
	EventRate      float64 // inbound events per second per connection
	EventBurst     int
}

// DefaultWebSocketServiceConfig returns the production defaults
func DefaultWebSocketServiceConfig() WebSocketServiceConfig {
	return WebSocketServiceConfig{
		SendBufferSize: 256,
		EventRate:      10,
		EventBurst:     20,
	}
}

// WebSocketService owns every live connection and implements the engine's
// Sender. Fanout is fire-and-forget per connection, but each outbound
// queue is bounded and slow consumers get disconnected instead of growing
// memory unboundedly.
type WebSocketService struct {
	cfg WebSocketServiceConfig

	register   chan *WSClient
	unregister chan *WSClient

	mu      sync.RWMutex
	clients map[string]*WSClient // keyed by connection ID

	handlerMu    sync.RWMutex
	onEvent      EventFunc
	onDisconnect DisconnectFunc
}

// NewWebSocketService creates the connection hub. Run must be started in
// a goroutine before serving connections.
func NewWebSocketService(cfg WebSocketServiceConfig) *WebSocketService {
	return &WebSocketService{
		cfg:        cfg,
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		clients:    make(map[string]*WSClient),
	}
}

// SetHandlers wires the business-event and disconnect callbacks
func (ws *WebSocketService) SetHandlers(onEvent EventFunc, onDisconnect DisconnectFunc) {
	ws.handlerMu.Lock()
	defer ws.handlerMu.Unlock()
	ws.onEvent = onEvent
	ws.onDisconnect = onDisconnect
}

func (ws *WebSocketService) eventHandler() EventFunc {
	ws.handlerMu.RLock()
	defer ws.handlerMu.RUnlock()
	return ws.onEvent
}

func (ws *WebSocketService) disconnectHandler() DisconnectFunc {
	ws.handlerMu.RLock()
	defer ws.handlerMu.RUnlock()
	return ws.onDisconnect
}

// Run drives connection registration until the process exits
func (ws *WebSocketService) Run() {
	for {
		select {
		case client := <-ws.register:
			ws.mu.Lock()
			ws.clients[client.ConnID] = client
			ws.mu.Unlock()

		case client := <-ws.unregister:
			ws.mu.Lock()
			_, ok := ws.clients[client.ConnID]
			if ok {
				delete(ws.clients, client.ConnID)
			}
			ws.mu.Unlock()

			if ok {
				client.closeSend()
				if handler := ws.disconnectHandler(); handler != nil {
					handler(client, client.isLeaving())
				}
			}
		}
	}
}

// Serve attaches an upgraded connection to the hub and starts its pumps
func (ws *WebSocketService) Serve(connID string, conn *websocket.Conn) *WSClient {
	client := &WSClient{
		ConnID:  connID,
		hub:     ws,
		conn:    conn,
		send:    make(chan []byte, ws.cfg.SendBufferSize),
		limiter: newRateLimiter(ws.cfg.EventRate, ws.cfg.EventBurst),
	}

	ws.register <- client

	go client.writePump()
	go client.readPump()
	return client
}

// Send queues an envelope for one connection. A full queue means the
// consumer stopped keeping up; the connection is closed so the client's
// reconnect path can take over.
func (ws *WebSocketService) Send(connectionID string, envelope models.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("Failed to serialize event: type=%s, err=%v", envelope.Type, err)
		return
	}

	ws.mu.RLock()
	client, ok := ws.clients[connectionID]
	ws.mu.RUnlock()
	if !ok {
		return
	}

	if !client.enqueue(data) {
		log.Printf("Dropping slow consumer: conn=%s", connectionID)
		client.conn.Close()
	}
}

// ConnectionCount returns the number of live connections
func (ws *WebSocketService) ConnectionCount() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.clients)
}
