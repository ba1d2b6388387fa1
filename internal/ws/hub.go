package ws

import (
	"log"
	"sync"

	"github.com/chamahub/backend/internal/domain"
)

const clientBuffer = 32

// Hub fans ledger events out to connected activity feed clients. Publish
// never blocks; a client that falls behind loses events.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan domain.Event]struct{}
	next    domain.EventSink
}

// NewHub creates a Hub. next, when non-nil, also receives every event.
func NewHub(next domain.EventSink) *Hub {
	return &Hub{clients: make(map[chan domain.Event]struct{}), next: next}
}

// Publish implements domain.EventSink.
func (h *Hub) Publish(e domain.Event) {
	h.mu.RLock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			log.Printf("[Activity] Dropping %s for a slow client", e.Type)
		}
	}
	h.mu.RUnlock()
	if h.next != nil {
		h.next.Publish(e)
	}
}

// Subscribe registers a client and returns its event channel and an
// unsubscribe func.
func (h *Hub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
