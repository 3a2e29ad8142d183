package ws

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
)

// DefaultBuffer is the number of messages queued per client before new
// messages are dropped for that client.
const DefaultBuffer = 64

type client struct {
	send    chan []byte
	control chan []byte
	done    chan struct{}
	once    sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans results out to websocket clients. Broadcast never blocks: a
// client whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	buffer  int
	dropped atomic.Uint64
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHub creates a hub. A buffer below 1 uses DefaultBuffer.
func NewHub(buffer int, logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
			h.metrics.IncWSMessages()
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many client deliveries were skipped on a full buffer.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}

func (h *Hub) register() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	c := &client{
		send:    make(chan []byte, h.buffer),
		control: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	h.clients[c] = struct{}{}
	h.metrics.IncWSConnections()
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop requires h.mu held for writing.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.DecWSConnections()
}
