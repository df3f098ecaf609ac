package room

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one WebSocket connection of an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   int64
	username string
	send     chan []byte
	limiter  *rate.Limiter

	// room code -> session id, guarded by hub.mu
	rooms map[string]string
}

// ServeWS upgrades the request and serves room commands for the user until
// the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64, username string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user", username, "error", err)
		return
	}

	c := &Client{
		hub:      h,
		conn:     conn,
		userID:   userID,
		username: username,
		send:     make(chan []byte, sendBufferSize),
		limiter:  rate.NewLimiter(h.chatRate, h.chatBurst),
		rooms:    make(map[string]string),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump(r)
}

// readPump decodes and dispatches commands until the connection fails.
func (c *Client) readPump(r *http.Request) {
	defer func() {
		c.hub.leave(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "user", c.username, "error", err)
			}
			return
		}

		cmd, err := DecodeCommand(raw)
		if err != nil {
			c.reply(errorEvent("", err))
			continue
		}
		c.hub.Dispatch(r.Context(), c, cmd)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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

// reply sends an event to this connection only.
func (c *Client) reply(e Event) {
	msg, err := EncodeEvent(e)
	if err != nil {
		slog.Error("failed to encode room event", "error", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	c.enqueue(msg)
}

// enqueue queues a frame without blocking. A client that does not keep up
// misses the frame. Callers hold hub.mu so the channel is still open.
func (c *Client) enqueue(msg []byte) {
	if _, ok := c.hub.conns[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		slog.Warn("dropping room event for slow client", "user", c.username)
	}
}

func (c *Client) joined(roomCode string) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	_, ok := c.rooms[roomCode]
	return ok
}
