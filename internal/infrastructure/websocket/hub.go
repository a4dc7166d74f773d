// Package websocket provides the dashboard push transport the Control
// Plane broadcasts domain events over (spec §4.9). Grounded on the
// teacher's own application/observer websocket hub/client/observer split
// (gorilla/websocket, a hub goroutine owning register/unregister/broadcast
// channels, one goroutine pair per client for the read and write pumps) —
// reconstructed here since the teacher's retrieved copy carries only that
// component's test files, not its implementation, and adapted to this
// domain's event shape instead of the teacher's workflow-execution one.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub owns every connected dashboard client and fans broadcasts out to
// them. All mutation goes through its own goroutine via register/
// unregister/broadcast channels, so Hub itself needs no external locking.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger

	mu    sync.RWMutex
	count int
}

// NewHub builds a Hub and starts its run loop.
func NewHub(l *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     l,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.count = len(h.clients)
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count = len(h.clients)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.acceptsAll() {
					continue
				}
				h.send(c, msg)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) send(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		// Slow consumer: drop it rather than block the whole hub.
		go func() { h.unregister <- c }()
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast sends msg to every client with no agent filter set.
func (h *Hub) Broadcast(msg []byte) { h.broadcast <- msg }

// BroadcastToAgent sends msg to clients filtered to agentID, and to
// clients with no filter (subscribed to everything).
func (h *Hub) BroadcastToAgent(agentID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.agentID == "" || c.agentID == agentID {
			h.send(c, msg)
		}
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Client is one dashboard websocket connection.
type Client struct {
	ID            string
	conn          *websocket.Conn
	send          chan []byte
	hub           *Hub
	agentID       string
	subscriptions map[observer.EventType]bool
	mu            sync.RWMutex
}

// NewClient builds a Client subscribed to agentID's events (empty = all).
func NewClient(id string, conn *websocket.Conn, hub *Hub, agentID string) *Client {
	return &Client{
		ID:            id,
		conn:          conn,
		send:          make(chan []byte, 256),
		hub:           hub,
		agentID:       agentID,
		subscriptions: make(map[observer.EventType]bool),
	}
}

func (c *Client) acceptsAll() bool { return c.agentID == "" }

// IsSubscribed reports whether the client wants eventType. No explicit
// subscriptions means every event type passes.
func (c *Client) IsSubscribed(eventType observer.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[eventType]
}

type clientCommand struct {
	Command    string   `json:"command"`
	EventTypes []string `json:"event_types"`
}

// handleMessage applies a subscribe/unsubscribe command sent by the client.
// Malformed or unknown commands are ignored rather than disconnecting.
func (c *Client) handleMessage(raw []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd.Command {
	case "subscribe":
		for _, t := range cmd.EventTypes {
			c.subscriptions[observer.EventType(t)] = true
		}
	case "unsubscribe":
		for _, t := range cmd.EventTypes {
			delete(c.subscriptions, observer.EventType(t))
		}
	}
}

// ReadPump drains client-sent commands until the connection closes. Must
// run in its own goroutine; it owns the unregister call on exit.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

// WritePump relays queued messages and periodic pings to the connection.
// Must run in its own goroutine; exits when send is closed by Unregister.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
