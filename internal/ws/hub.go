package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"chathub/pkg/logger"
)

var ErrClientDisconnected = errors.New("client disconnected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin policy is enforced by the CORS middleware in front of
		// the upgrade endpoint.
		return true
	},
}

// Hub owns the set of live connections and applies the router's deliveries
// to them. Registration and teardown funnel through one goroutine; routing
// itself runs on each connection's read pump so connections process their
// own events in order while different connections proceed concurrently.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	router *Router
	log    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(router *Router, log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		router:     router,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes connection lifecycle events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.log.Info("client registered", "connID", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[client.id]
			delete(h.clients, client.id)
			h.mu.Unlock()
			if !known {
				continue
			}
			client.shutdown()

			deliveries := h.router.HandleDisconnect(h.ctx, client.id)
			h.apply(deliveries)
			h.log.Info("client unregistered", "connID", client.id)

		case <-h.ctx.Done():
			h.log.Info("hub shutting down")
			return
		}
	}
}

// Stop terminates the run loop.
func (h *Hub) Stop() {
	h.cancel()
}

// ServeWS upgrades the request and attaches the connection to the hub. The
// connection starts unauthenticated; the first event must be setup.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn, h.log)
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// route runs one inbound event through the router and fans the resulting
// deliveries out to live connections.
func (h *Hub) route(client *Client, evt *Event) {
	deliveries := h.router.HandleEvent(h.ctx, client.id, evt)
	h.apply(deliveries)
}

// apply delivers each event to whichever target connections are still
// registered. Departed connections are skipped, not retried: at-most-once to
// live connections.
func (h *Hub) apply(deliveries []Delivery) {
	for _, d := range deliveries {
		data, err := marshalEvent(d.Event)
		if err != nil {
			h.log.Error("event marshal failed", "type", d.Event.Type, "error", err)
			continue
		}
		h.mu.RLock()
		targets := make([]*Client, 0, len(d.ConnIDs))
		for _, connID := range d.ConnIDs {
			if c, ok := h.clients[connID]; ok {
				targets = append(targets, c)
			}
		}
		h.mu.RUnlock()

		for _, c := range targets {
			if err := c.enqueue(data); err != nil {
				h.log.Debug("delivery skipped", "connID", c.id, "type", d.Event.Type)
			}
		}
	}
}

// deliverTo sends a single event to one connection, outside the router path.
func (h *Hub) deliverTo(client *Client, evt *Event) {
	data, err := marshalEvent(evt)
	if err != nil {
		return
	}
	client.enqueue(data)
}
