package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Whole code buffers travel
	// inside code-change events, so this is generous.
	maxMessageSize = 512 * 1024
)

// Client is one WebSocket session attached to the hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string
	identity domain.Identity
	send     chan []byte

	// Scope membership, owned exclusively by the hub's Run loop.
	rooms         map[string]struct{}
	projectScopes map[string]struct{}
	fileScopes    map[string]struct{}
}

// NewClient wraps a connection in a session. The id must be unique per
// connection; it doubles as the participant id in room broadcasts.
func NewClient(h *Hub, conn *websocket.Conn, id string, identity domain.Identity) *Client {
	return &Client{
		hub:           h,
		conn:          conn,
		id:            id,
		identity:      identity,
		send:          make(chan []byte, 256),
		rooms:         make(map[string]struct{}),
		projectScopes: make(map[string]struct{}),
		fileScopes:    make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (c *Client) ID() string { return c.id }

// Identity returns the display claims attached to the session.
func (c *Client) Identity() domain.Identity { return c.identity }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// CloseConn closes the underlying connection.
func (c *Client) CloseConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// ReadPump pumps messages from the WebSocket connection into the hub.
// On any read error the session is unregistered, which sweeps its
// presence from every joined room.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	logCtx := logrus.WithField("session_id", c.id)
	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !c.hub.enqueue(message{kind: msgInbound, client: c, raw: raw}) {
			logCtx.Warn("Router queue full, client message dropped")
		}
	}
}

// WritePump pumps messages from the send channel to the WebSocket
// connection and keeps the connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel during unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithField("session_id", c.id).WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
