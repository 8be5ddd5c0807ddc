package broadcast

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/doorwatch/internal/logger"
)

// Application messages of the refresher protocol.
const (
	MessageRefresh    = "refresh"
	MessagePing       = "ping"
	MessagePong       = "pong"
	MessageRegister   = "register"
	MessageRegistered = "registered"
)

const (
	// DefaultPingInterval is used when Options.PingInterval is not set.
	DefaultPingInterval = 30 * time.Second

	// DefaultQueueSize is the outbound queue length per client.
	DefaultQueueSize = 16

	// defaultWriteWait bounds a single frame write.
	defaultWriteWait = 10 * time.Second

	// maxMessageSize limits inbound application messages.
	maxMessageSize = 512
)

// Options tunes the hub keepalive.
type Options struct {
	// PingInterval is how often a ping frame is sent to each client.
	PingInterval time.Duration
	// PongWait is how long a client may stay silent before it is closed.
	PongWait time.Duration
	// WriteWait bounds a single write; defaults to 10s.
	WriteWait time.Duration
	// QueueSize is the outbound queue length per client.
	QueueSize int
}

// Hub tracks live observers and fans refresh signals out to them.
type Hub struct {
	options  Options
	upgrader websocket.Upgrader

	clients map[*client]struct{}
	mu      sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(options Options) *Hub {
	if options.PingInterval <= 0 {
		options.PingInterval = DefaultPingInterval
	}

	if options.PongWait <= options.PingInterval {
		options.PongWait = 5 * options.PingInterval
	}

	if options.WriteWait <= 0 {
		options.WriteWait = defaultWriteWait
	}

	if options.QueueSize <= 0 {
		options.QueueSize = DefaultQueueSize
	}

	return &Hub{
		options: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard may be served from another origin than the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// BroadcastRefresh signals every current client to refresh.
// It never blocks: clients that cannot accept the message are dropped.
func (h *Hub) BroadcastRefresh() {
	for _, c := range h.snapshot() {
		if !c.enqueue(MessageRefresh) {
			h.drop(c)
		}
	}
}

// Count returns the number of live clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		h.drop(c)
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithName(r.Context(), "broadcast")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		logger.WarnKV(ctx, "Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(conn, h.options.QueueSize)
	h.register(c)

	logger.DebugKV(ctx, "Observer connected", "remote_addr", r.RemoteAddr, "observers", h.Count())

	go h.writePump(c)

	h.readPump(ctx, c)
	h.drop(c)

	logger.DebugKV(ctx, "Observer disconnected", "remote_addr", r.RemoteAddr, "observers", h.Count())
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
}

// drop removes the client and closes its connection. Safe to call repeatedly.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}

	return clients
}

// readPump answers application messages and enforces the read deadline.
func (h *Hub) readPump(ctx context.Context, c *client) {
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(h.options.PongWait))
	}

	c.conn.SetReadLimit(maxMessageSize)

	if err := extend(); err != nil {
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return extend()
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.DebugKV(ctx, "Observer read failed", "error", err)
			}

			return
		}

		if err := extend(); err != nil {
			return
		}

		var reply string

		switch string(message) {
		case MessagePing:
			reply = MessagePong
		case MessageRegister:
			reply = MessageRegistered
		default:
			logger.InfoKV(ctx, "Unknown observer message", "message", string(message))
			continue
		}

		if !c.enqueue(reply) {
			return
		}
	}
}

// writePump is the only writer of the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.options.WriteWait))

			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.options.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}
