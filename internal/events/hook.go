package events

import "sync"

// ConnectEvent reports that the station link came up
type ConnectEvent struct {
	SSID    string
	Address string
}

// DisconnectEvent reports that the station link went down
type DisconnectEvent struct {
	SSID string
}

// SaveEvent reports that a credential was saved through the portal or the API
type SaveEvent struct {
	SSID     string
	Password string
}

// Hook is an optional subscription. The zero value is absent, and firing an
// absent hook does nothing.
type Hook[E any] struct {
	mu sync.RWMutex
	fn func(E)
}

// Set installs the subscriber, replacing any previous one
func (h *Hook[E]) Set(fn func(E)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn = fn
}

// Clear removes the subscriber
func (h *Hook[E]) Clear() {
	h.Set(nil)
}

// Present reports whether a subscriber is installed
func (h *Hook[E]) Present() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fn != nil
}

// Fire calls the subscriber synchronously, if there is one
func (h *Hook[E]) Fire(e E) {
	h.mu.RLock()
	fn := h.fn
	h.mu.RUnlock()

	if fn != nil {
		fn(e)
	}
}

// Notifier holds the three subscriptions an embedding application can make
type Notifier struct {
	Connect    Hook[ConnectEvent]
	Disconnect Hook[DisconnectEvent]
	Save       Hook[SaveEvent]
}

// NewNotifier creates a notifier with no subscribers
func NewNotifier() *Notifier {
	return &Notifier{}
}
