package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/metrics"
)

// Message types carried by the hub
const (
	TypeConnected    = "connected"
	TypeDisconnected = "disconnected"
	TypeSaved        = "saved"
)

// Message is the JSON envelope sent to websocket clients. Passwords are
// never broadcast.
type Message struct {
	Type    string    `json:"type"`
	SSID    string    `json:"ssid"`
	Address string    `json:"address,omitempty"`
	Time    time.Time `json:"time"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The status server binds to a management address; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans events out to websocket clients. Run it with Serve.
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	broadcast chan Message

	// Now stamps outgoing messages
	Now func() time.Time
}

// NewHub creates a hub with no clients
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan Message, 64),
		Now:       time.Now,
	}
}

// Attach subscribes the hub to all three hooks of n
func (h *Hub) Attach(n *Notifier) {
	n.Connect.Set(func(e ConnectEvent) {
		h.Publish(Message{Type: TypeConnected, SSID: e.SSID, Address: e.Address})
	})
	n.Disconnect.Set(func(e DisconnectEvent) {
		h.Publish(Message{Type: TypeDisconnected, SSID: e.SSID})
	})
	n.Save.Set(func(e SaveEvent) {
		h.Publish(Message{Type: TypeSaved, SSID: e.SSID})
	})
}

// Publish queues a message for broadcast. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Publish(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = h.Now()
	}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn("Event queue full, dropping message", zap.String("type", msg.Type))
	}
}

// Serve broadcasts queued messages until ctx is done, then disconnects every
// client
func (h *Hub) Serve(ctx context.Context) error {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) String() string { return "event-hub" }

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := newClient(h, conn)
	h.register(c)
	c.start()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.EventClients.Set(float64(n))
	logging.Info("Event client connected",
		zap.String("remote_addr", c.conn.RemoteAddr().String()),
		zap.Int("total_clients", n),
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.EventClients.Set(float64(n))
	logging.Info("Event client disconnected", zap.Int("total_clients", n))
}

func (h *Hub) fanOut(msg Message) {
	metrics.EventsBroadcast.WithLabelValues(msg.Type).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client
			delete(h.clients, c)
			close(c.send)
			logging.Warn("Dropping slow event client")
		}
	}
	metrics.EventClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.EventClients.Set(0)
}
