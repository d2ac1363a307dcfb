package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chathub/pkg/logger"
	"chathub/pkg/response"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection
	sendBufferSize = 256
)

// Client is one live websocket connection. It owns the read and write pumps;
// everything protocol-level goes through the hub's router. Events from this
// connection are handled in order because the read pump processes them
// synchronously, one at a time.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	// send is never closed; the write pump is stopped through done instead,
	// so concurrent enqueues from other connections' routing goroutines can
	// never hit a closed channel.
	send chan []byte
	done chan struct{}

	closed    int32
	closeOnce sync.Once

	log *logger.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, log *logger.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  log.With("connID", id),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) markClosed() {
	atomic.CompareAndSwapInt32(&c.closed, 0, 1)
}

// shutdown stops the write pump. Idempotent.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue hands an already-marshalled event to the write pump. A full buffer
// means the peer stopped draining; the transport is closed so the read pump
// exits and the hub tears the connection down, rather than letting one slow
// client stall a broadcast.
func (c *Client) enqueue(data []byte) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("send buffer full, dropping connection")
		c.markClosed()
		c.conn.Close()
		return ErrClientDisconnected
	}
}

func (c *Client) readPump() {
	defer func() {
		c.markClosed()
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			c.log.Debug("connection close", "error", err)
		}
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
				c.log.Error("websocket read failed", "error", err)
			} else {
				c.log.Debug("websocket closed", "error", err)
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.hub.deliverTo(c, NewErrorEvent(response.CodeValidation, "invalid event frame"))
			continue
		}

		// Synchronous: the next inbound event is not read until this one's
		// deliveries have been handed to the hub.
		c.hub.route(c, &evt)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("websocket write failed", "error", err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
