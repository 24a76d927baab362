// Package transport provides the concrete WebSocket plumbing behind the
// player connection the server treats as an external collaborator: one
// goroutine pair per connection, ping/pong keepalive, and a buffered
// outbound queue, grounded in 1kaius1-MUD-Engine's cmd/server/main.go
// Client/Server shape.
package transport

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"laughprop/log"
	"laughprop/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one player's full-duplex WebSocket connection. It satisfies
// session.Conn, so a Router can address it without importing gorilla at
// all.
type Client struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	router   *session.Router
}

// NewHandler returns an http.HandlerFunc that upgrades every request to a
// WebSocket connection. Each connection is minted a fresh player id; the
// spec's Non-goals exclude authenticated identity, so there is nothing to
// look up.
func NewHandler(router *session.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := uuid.New()
		if err := Serve(router, playerID, w, r); err != nil {
			log.Warn("transport: upgrade failed", "error", err)
		}
	}
}

// Serve upgrades the request, registers the connection with router, and
// blocks until the connection is closed by either side.
func Serve(router *session.Router, playerID uuid.UUID, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		playerID: playerID,
		conn:     conn,
		send:     make(chan []byte, 256),
		router:   router,
	}
	router.Connect(playerID, c)

	done := make(chan struct{})
	go c.writePump(done)
	c.readPump(done)
	return nil
}

// SendBytes queues a frame for delivery; a full buffer means the client is
// too slow and the frame is dropped rather than blocking the caller.
func (c *Client) SendBytes(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn("transport: dropping message, client send buffer full", "player", c.playerID)
	}
}

func (c *Client) readPump(done chan struct{}) {
	defer func() {
		close(done)
		c.router.Disconnect(c.playerID)
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
				log.Warn("transport: unexpected close", "player", c.playerID, "error", err)
			}
			return
		}
		c.router.HandleMessage(c.playerID, message)
	}
}

func (c *Client) writePump(done chan struct{}) {
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
		case <-done:
			return
		}
	}
}
