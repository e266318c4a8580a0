// Package clients tracks the pages connected to the offline cache and
// delivers messages to them.
package clients

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swcache_clients_connected",
		Help: "Number of connected clients",
	})

	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swcache_client_messages_dropped_total",
		Help: "Messages dropped because a client's buffer was full",
	})
)

// DefaultBuffer is the per-client message buffer size.
const DefaultBuffer = 16

// Client is one connected page.
type Client struct {
	id       string
	messages chan Message

	mu         sync.RWMutex
	controller string
}

// ID returns the client identifier.
func (c *Client) ID() string {
	return c.id
}

// Messages delivers messages posted to the client. The channel is closed
// when the client disconnects.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Controller returns the version controlling the client, or "" when the
// client is uncontrolled.
func (c *Client) Controller() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controller
}

// Registry holds connected clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	order   []string
	buffer  int
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		buffer:  DefaultBuffer,
		logger:  logging.NewLogger("clients"),
	}
}

// Connect registers a client. An empty id is replaced by a random one;
// connecting an existing id returns the existing client.
func (r *Registry) Connect(id string) *Client {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c
	}
	c := &Client{id: id, messages: make(chan Message, r.buffer)}
	r.clients[id] = c
	r.order = append(r.order, id)
	connectedClients.Inc()
	r.logger.Debug().Str("client", id).Msg("Client connected")
	return c
}

// Disconnect removes the client and closes its message channel.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return
	}
	delete(r.clients, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	close(c.messages)
	connectedClients.Dec()
	r.logger.Debug().Str("client", id).Msg("Client disconnected")
}

// MatchAll returns every connected client in connection order.
func (r *Registry) MatchAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out
}

// Claim makes version the controller of every connected client and returns
// how many clients were claimed.
func (r *Registry) Claim(version string) int {
	clients := r.MatchAll()
	for _, c := range clients {
		c.mu.Lock()
		c.controller = version
		c.mu.Unlock()
	}
	r.logger.Info().Str("version", version).Int("clients", len(clients)).Msg("Clients claimed")
	return len(clients)
}

// Broadcast posts msg to every connected client and returns the number of
// clients it was delivered to. Clients with a full buffer miss the message.
func (r *Registry) Broadcast(msg Message) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, id := range r.order {
		select {
		case r.clients[id].messages <- msg:
			delivered++
		default:
			messagesDropped.Inc()
			r.logger.Warn().Str("client", id).Str("type", msg.Type).Msg("Client buffer full, message dropped")
		}
	}
	return delivered
}
