package notify

import (
	"encoding/json"
	"sync"

	"github.com/landrecords/portal/common/workflow"
)

// subscriberBuffer bounds what a live connection may fall behind by before
// it is dropped
const subscriberBuffer = 64

// Subscriber receives one user's notifications as JSON frames. C is closed
// when the subscriber is dropped or unsubscribed.
type Subscriber struct {
	UserID string
	C      <-chan []byte
	send   chan []byte
}

// Hub fans notifications out to the live connections of each user
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a live connection for userID
func (h *Hub) Subscribe(userID string) *Subscriber {
	ch := make(chan []byte, subscriberBuffer)
	s := &Subscriber{UserID: userID, C: ch, send: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*Subscriber]struct{})
	}
	h.conns[userID][s] = struct{}{}
	return s
}

// Unsubscribe removes s. It is a no-op when s was already dropped.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(s)
}

func (h *Hub) remove(s *Subscriber) {
	subs, ok := h.conns[s.UserID]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.send)
	if len(subs) == 0 {
		delete(h.conns, s.UserID)
	}
}

// Publish sends n to every connection of n.UserID. A subscriber whose
// buffer is full is dropped.
func (h *Hub) Publish(n workflow.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.conns[n.UserID]
	if len(subs) == 0 {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	for s := range subs {
		select {
		case s.send <- data:
		default:
			h.remove(s)
		}
	}
}

// Connections returns the number of live subscribers
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, subs := range h.conns {
		n += len(subs)
	}
	return n
}
