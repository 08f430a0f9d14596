package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// OutboundType tags every message the daemon sends to a presentation
// surface.
const OutboundType = "from-extension"

// ErrNoSurface is returned by Post when no presentation surface is
// connected. Posting before a surface binds is a caller bug, not a
// transient condition.
var ErrNoSurface = errors.New("no presentation surface bound")

// Envelope is the outbound message wrapper delivered to surfaces.
type Envelope struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

// InboundMessage is a message received from a presentation surface.
// Beyond the required type discriminator the payload is opaque.
type InboundMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"-"`
}

// InboundHandler receives messages from connected surfaces.
type InboundHandler func(msg InboundMessage)

type gatewayClient struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	gateway *Gateway
}

// Gateway fans daemon messages out to connected presentation surfaces
// over WebSocket and routes surface messages to a single inbound
// handler.
type Gateway struct {
	clients    map[*gatewayClient]bool
	broadcast  chan []byte
	register   chan *gatewayClient
	unregister chan *gatewayClient
	done       chan struct{}
	upgrader   websocket.Upgrader
	mu         sync.RWMutex

	// handler is the single inbound sink. Rebinding replaces the
	// previous handler; the last writer wins.
	handlerMu sync.RWMutex
	handler   InboundHandler
}

// NewGateway creates a gateway. originAllowed validates the Origin
// header on upgrade requests; requests without an Origin header are
// accepted (same-host tools, CLI clients).
func NewGateway(originAllowed func(string) bool) *Gateway {
	return &Gateway{
		clients:    make(map[*gatewayClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *gatewayClient),
		unregister: make(chan *gatewayClient),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if originAllowed != nil {
					return originAllowed(origin)
				}
				return false
			},
		},
	}
}

// SetInboundHandler binds the sink for surface messages.
func (g *Gateway) SetInboundHandler(handler InboundHandler) {
	g.handlerMu.Lock()
	g.handler = handler
	g.handlerMu.Unlock()
}

// SurfaceCount returns the number of connected surfaces.
func (g *Gateway) SurfaceCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Post wraps payload in the outbound envelope and delivers it to every
// connected surface.
func (g *Gateway) Post(payload any) error {
	if g.SurfaceCount() == 0 {
		return ErrNoSurface
	}

	data, err := json.Marshal(Envelope{Type: OutboundType, Message: payload})
	if err != nil {
		return err
	}

	select {
	case g.broadcast <- data:
		return nil
	default:
		return errors.New("gateway broadcast queue full")
	}
}

// Run pumps the register/unregister/broadcast channels until ctx is
// cancelled. Remaining clients are disconnected on exit.
func (g *Gateway) Run(ctx context.Context) {
	defer func() {
		close(g.done)
		g.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-g.register:
			g.mu.Lock()
			g.clients[client] = true
			g.mu.Unlock()

		case client := <-g.unregister:
			g.mu.Lock()
			if _, ok := g.clients[client]; ok {
				delete(g.clients, client)
				close(client.send)
			}
			g.mu.Unlock()

		case message := <-g.broadcast:
			g.mu.RLock()
			for client := range g.clients {
				select {
				case client.send <- message:
				default:
					// Surface not draining, skip this frame.
				}
			}
			g.mu.RUnlock()
		}
	}
}

func (g *Gateway) closeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for client := range g.clients {
		close(client.send)
		delete(g.clients, client)
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] upgrade error: %v", err)
		return
	}

	client := &gatewayClient{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, 64),
		gateway: g,
	}

	select {
	case g.register <- client:
	case <-g.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// dispatch validates the type discriminator and hands the message to
// the bound handler. Messages without a handler are dropped.
func (g *Gateway) dispatch(raw []byte) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		log.Printf("[Gateway] discarding malformed surface message: %v", err)
		return
	}

	msgType, ok := generic["type"].(string)
	if !ok || strings.TrimSpace(msgType) == "" {
		log.Printf("[Gateway] discarding surface message without type discriminator")
		return
	}

	g.handlerMu.RLock()
	handler := g.handler
	g.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	handler(InboundMessage{Type: msgType, Data: generic})
}

func (c *gatewayClient) readPump() {
	defer func() {
		select {
		case c.gateway.unregister <- c:
		case <-c.gateway.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.gateway.dispatch(message)
	}
}

func (c *gatewayClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
