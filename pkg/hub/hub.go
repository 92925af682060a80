// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler receives each inbound frame from a client.
type Handler func(c *Client, data []byte)

type direct struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients, owned by Run
	clients map[*Client]bool

	broadcast  chan []byte
	direct     chan direct
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	onMessage Handler
	onConnect func(c *Client)

	// Client count for readers outside Run
	mu    sync.RWMutex
	count int

	running  atomic.Bool
	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHandler sets the inbound message handler. It runs on the client's
// read goroutine.
func WithHandler(fn Handler) Option {
	return func(h *Hub) {
		h.onMessage = fn
	}
}

// WithOnConnect sets a callback run once a client is registered.
func WithOnConnect(fn func(c *Client)) Option {
	return func(h *Hub) {
		h.onConnect = fn
	}
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default().With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan direct, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is cancelled.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.drop(client)
		}
		h.running.Store(false)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			count := h.setCount()
			h.logger.Info("client connected", "id", client.ID, "total", count)
			if h.onConnect != nil {
				h.onConnect(client)
			}

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
			h.logger.Info("client disconnected", "id", client.ID, "remaining", h.setCount())

		case d := <-h.direct:
			if h.clients[d.client] {
				h.enqueue(d.client, d.data)
			}

		case data := <-h.broadcast:
			for client := range h.clients {
				h.enqueue(client, data)
			}
		}
	}
}

func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.send <- data:
		h.sent.Add(1)
	default:
		// Client's buffer is full - they're too slow
		h.drop(client)
		h.dropped.Add(1)
		h.logger.Warn("dropped slow client", "id", client.ID)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count = len(h.clients)
	return h.count
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SendTo queues a message for one client. Messages for clients that have
// already left are discarded.
func (h *Hub) SendTo(c *Client, data []byte) {
	select {
	case h.direct <- direct{client: c, data: data}:
	default:
		h.dropped.Add(1)
		h.logger.Warn("direct channel full, dropping message", "id", c.ID)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats contains hub statistics
type Stats struct {
	Clients  int    `json:"clients"`
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		Clients:  h.ClientCount(),
		Sent:     h.sent.Load(),
		Received: h.received.Load(),
		Dropped:  h.dropped.Load(),
	}
}
