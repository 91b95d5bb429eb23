package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	sendBuffer = 64
)

// Event types pushed to connected tabs.
const (
	EventHello        = "hello"
	EventSession      = "session"
	EventTasksChanged = "tasks_changed"
	EventGoalsChanged = "goals_changed"
	EventFilters      = "filters"
	EventPing         = "ping"
	EventPong         = "pong"
)

// WebSocketMessage is the envelope of every message on the socket.
type WebSocketMessage struct {
	Type   string `json:"type"`
	Data   any    `json:"data,omitempty"`
	Sender string `json:"sender,omitempty"`
}

// Client is one connected browser tab.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient creates a client whose first message tells the tab its id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if hello, err := json.Marshal(WebSocketMessage{Type: EventHello, Data: map[string]string{"clientId": c.ID}}); err == nil {
		c.send <- hello
	}
	return c
}

// ReadPump consumes messages from the tab. Only pings are answered; the
// socket is otherwise push-only.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client", c.ID).Msg("websocket error")
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Str("client", c.ID).Msg("ignoring malformed websocket message")
			continue
		}

		if msg.Type != EventPing {
			log.Debug().Str("client", c.ID).Str("type", msg.Type).Msg("ignoring websocket message")
			continue
		}

		pong, err := json.Marshal(WebSocketMessage{
			Type: EventPong,
			Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
		})
		if err != nil {
			continue
		}
		c.hub.reply(c, pong)
	}
}

// WritePump pumps messages from the hub to the connection.
func (c *Client) WritePump() {
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
				// The hub closed the channel
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

type outbound struct {
	payload []byte
	exclude string
	target  *Client
}

// Hub maintains the set of connected tabs and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends an event to every client except the one with id exclude.
// An empty exclude reaches all clients.
func (h *Hub) Broadcast(eventType string, data any, exclude string) {
	payload, err := json.Marshal(WebSocketMessage{Type: eventType, Data: data, Sender: exclude})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- outbound{payload: payload, exclude: exclude}:
	case <-h.done:
	}
}

// reply sends payload to a single client through the hub, which owns the
// client's send channel.
func (h *Hub) reply(client *Client, payload []byte) {
	select {
	case h.broadcast <- outbound{payload: payload, target: client}:
	case <-h.done:
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Str("client", client.ID).Int("clients", len(h.clients)).Msg("websocket client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Debug().Str("client", client.ID).Msg("websocket client disconnected")
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if msg.target != nil && client != msg.target {
					continue
				}
				if msg.exclude != "" && client.ID == msg.exclude {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Client's send buffer is full, assume disconnected
					log.Warn().Str("client", client.ID).Msg("websocket send buffer full, dropping client")
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}
