package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/teslashibe/go-peoplecam/internal/log"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name   string
	logger *zap.Logger

	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	// guards clients for ClientCount; Run is the only writer
	mu sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	dropped  atomic.Uint64
}

// New creates a hub. Call Run in a goroutine before registering clients.
func New(name string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = log.Named("hub")
	}
	return &Hub{
		name:       name,
		logger:     logger.With(zap.String("hub", name)),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns after Stop, closing every
// client queue on the way out.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", zap.Int("clients", count))

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", zap.Int("clients", count))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.removeLocked(c)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// removeLocked is a no-op for clients already removed. Caller holds mu.
func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() error {
	h.stopOnce.Do(func() { close(h.done) })
	return nil
}

// Broadcast queues msg for every client. When the hub is backed up the
// message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- msg:
	default:
		if n := h.dropped.Inc(); n == 1 || n%100 == 0 {
			h.logger.Warn("broadcast queue full, dropping messages", zap.Uint64("dropped", n))
		}
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
