package sync

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Keepalive tuning.
const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be shorter than pongWait
	writeWait      = 10 * time.Second
	maxMessageSize = 256 * 1024
	sendBuffer     = 64
)

// Client is one subscribed admin session. ID is the session's origin id,
// used to suppress self-echo on fan-out.
type Client struct {
	ID   string
	Name string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps an upgraded websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, id, name string) *Client {
	return &Client{
		ID:   id,
		Name: name,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// Register subscribes the client with the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// sendStatus queues a status frame; drops it if the client is backed up.
func (c *Client) sendStatus(st Status) {
	data, err := json.Marshal(Message{Type: TypeStatus, Status: &st})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs in its own goroutine per connection.
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

// ReadPump consumes frames from the session until the connection drops,
// routing change events into the hub. Runs in its own goroutine.
func (c *Client) ReadPump() {
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
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("sync: session %s closed unexpectedly: %v", c.ID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}

		if msg.Type == TypeChange && msg.Event != nil {
			c.hub.inbound(c, *msg.Event)
		}
	}
}

func (c *Client) sendError(reason string) {
	data, err := json.Marshal(Message{Type: TypeError, Error: reason})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
