package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"marketfeed/src/logger"
	"marketfeed/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendQueueSize bounds per-client buffering; overflow drops the oldest
	// frame, never blocks the hub.
	sendQueueSize = 256
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	id   string
	hub  *FeedServer
	conn *websocket.Conn

	// mu guards send against a concurrent closeSend; the pumps may still be
	// delivering frames while the hub tears the client down.
	mu     sync.Mutex
	closed bool
	send   chan *models.MServerMessage
}

// -----------------------------------------------------------------------------

// enqueue queues a frame for delivery, evicting the oldest queued frame when
// the buffer is full. Returns false when a frame was dropped. Frames arriving
// after closeSend are discarded.
func (c *Client) enqueue(msg *models.MServerMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
	}

	// Drop-oldest: free one slot, then retry once.
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
	return false
}

// closeSend turns further enqueues into no-ops and releases writePump. Safe
// to call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// -----------------------------------------------------------------------------
// WebSocket upgrade
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *FeedServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("failed to upgrade websocket", logger.NewField("error", err.Error()))
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s,
		conn: conn,
		send: make(chan *models.MServerMessage, sendQueueSize),
	}

	// The hub stops consuming register once it has shut down; refuse the
	// connection instead of blocking the handler forever.
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Acts as a watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			// Hub already gone; it dropped every client on the way out.
		}
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
				c.hub.Logger.Debug("websocket closed", logger.NewField("error", err.Error()))
			}
			break
		}
		c.hub.handleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *FeedServer) handleClientMessage(client *Client, raw []byte) {
	var msg models.MClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		client.enqueue(models.NewErrorMessage("invalid_message", "could not parse message"))
		return
	}

	switch msg.Type {
	case "ping":
		client.enqueue(models.NewPongMessage())

	case "subscribe":
		if len(msg.Symbols) == 0 {
			client.enqueue(models.NewErrorMessage("invalid_message", "subscribe requires symbols"))
			return
		}
		if err := s.limiter.Allow(client.id); err != nil {
			client.enqueue(models.NewErrorMessage("rate_limited", "too many subscription requests"))
			return
		}
		if err := s.registry.Subscribe(client.id, msg.Symbols); err != nil {
			if errors.Is(err, ErrTooManySymbols) {
				client.enqueue(models.NewErrorMessage("too_many_symbols", "subscription limit reached"))
				return
			}
			client.enqueue(models.NewErrorMessage("subscribe_failed", err.Error()))
			return
		}
		client.enqueue(models.NewAckMessage("subscribed", msg.Symbols))

	case "unsubscribe":
		if err := s.limiter.Allow(client.id); err != nil {
			client.enqueue(models.NewErrorMessage("rate_limited", "too many subscription requests"))
			return
		}
		s.registry.Unsubscribe(client.id, msg.Symbols)
		client.enqueue(models.NewAckMessage("unsubscribed", msg.Symbols))

	default:
		client.enqueue(models.NewErrorMessage("invalid_message", "unknown message type"))
	}
}
