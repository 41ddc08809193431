package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// sendBuffer is the per-client queue length. A client that falls this far
// behind is dropped.
const sendBuffer = 64

// sink is the write side of a connected client.
type sink struct {
	send chan Message
}

// Hub broadcasts messages to registered clients.
type Hub struct {
	name   string
	logger *slog.Logger

	broadcast  chan Message
	register   chan *sink
	unregister chan *sink
	quit       chan struct{}
	stopOnce   sync.Once

	mu      sync.RWMutex
	clients map[*sink]struct{}
	running bool

	// OnConnect, when set, returns messages sent to each new client
	// before any broadcast, such as the current status.
	OnConnect func() []Message
}

// New creates a hub. Call Run to start it.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		broadcast:  make(chan Message, 256),
		register:   make(chan *sink),
		unregister: make(chan *sink),
		quit:       make(chan struct{}),
		clients:    make(map[*sink]struct{}),
	}
}

// Run delivers broadcasts until Stop is called.
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.running = false
		h.mu.Unlock()
	}()

	for {
		select {
		case <-h.quit:
			return

		case c := <-h.register:
			if h.OnConnect != nil {
				for _, msg := range h.OnConnect() {
					select {
					case c.send <- msg:
					default:
					}
				}
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast queues msg for every client. It drops the message when the
// queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
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

// BroadcastBinary broadcasts raw bytes.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// subscribe registers a new client and returns its queue. ok is false once
// the hub has stopped.
func (h *Hub) subscribe() (*sink, bool) {
	c := &sink{send: make(chan Message, sendBuffer)}
	select {
	case h.register <- c:
		return c, true
	case <-h.quit:
		return nil, false
	}
}

func (h *Hub) unsubscribe(c *sink) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
