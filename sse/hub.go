package sse

import (
	"path"
	"sync"
	"sync/atomic"

	"github.com/kbukum/reactkit/logger"
)

// DefaultClientBuffer is the number of events buffered per client.
const DefaultClientBuffer = 64

// Client is one connected event-stream reader.
type Client struct {
	id      string
	stream  string
	events  chan Event
	dropped atomic.Int64
	log     *logger.Logger
}

// NewClient creates a client of the named stream with room for buffer
// pending events.
func NewClient(id, stream string, buffer int) *Client {
	if buffer < 1 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		id:     id,
		stream: stream,
		events: make(chan Event, buffer),
		log:    logger.Get(logger.ComponentSSE),
	}
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// Stream returns the name of the stream the client follows.
func (c *Client) Stream() string { return c.stream }

// Events returns the channel the client reads from.
func (c *Client) Events() <-chan Event { return c.events }

// Dropped returns how many events were discarded because the client was slow.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Send queues ev without blocking. It returns false and counts a drop when
// the client buffer is full.
func (c *Client) Send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		if c.dropped.Add(1) == 1 {
			c.log.Warn("Client buffer full, dropping events", logger.Fields("client_id", c.id, logger.FieldStream, c.stream))
		}
		return false
	}
}

func (c *Client) close() { close(c.events) }

// Hub tracks connected clients and routes broadcasts to them. Every change
// to the client set goes through the Run loop.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

type message struct {
	pattern string
	event   Event
}

// NewHub creates a hub. Call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get(logger.ComponentSSE)
	} else {
		log = log.WithComponent(logger.ComponentSSE)
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub loop. It returns after Stop, once every client is closed.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", client.id, logger.FieldStream, client.stream, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case msg := <-h.broadcast:
			h.broadcastWithPattern(msg.pattern, msg.event)
		}
	}
}

// Stop makes Run close every client and return. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Done is closed by Stop.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.close()
		delete(h.clients, id)
	}
}

// Register adds a client. It reports false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its event channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToPattern sends ev to all clients whose id matches pattern.
// It never blocks once the hub has stopped.
func (h *Hub) BroadcastToPattern(pattern string, ev Event) {
	select {
	case h.broadcast <- message{pattern: pattern, event: ev}:
	case <-h.done:
	}
}

// broadcastWithPattern runs on the hub loop.
func (h *Hub) broadcastWithPattern(pattern string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		matched, err := path.Match(pattern, id)
		if err != nil {
			h.log.Error("Pattern match error", logger.Fields("pattern", pattern, logger.FieldError, err.Error()))
			return
		}
		if matched {
			client.Send(ev)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns a client by id, or nil.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

var _ Broadcaster = (*Hub)(nil)
