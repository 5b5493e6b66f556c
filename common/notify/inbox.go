package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/landrecords/portal/common/workflow"
)

// DefaultInboxSize is the number of notifications kept per user
const DefaultInboxSize = 100

// Inbox keeps the most recent notifications per user in memory. It consumes
// the queue topic QueueNotifier publishes to and forwards every entry to the
// user's live connections.
type Inbox struct {
	mu    sync.RWMutex
	size  int
	users map[string][]workflow.Notification
	live  *Hub
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{size: size, users: make(map[string][]workflow.Notification), live: NewHub()}
}

// Handle is a queue.MessageHandler
func (b *Inbox) Handle(_ context.Context, _ string, value []byte) error {
	var n workflow.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	b.Add(n)
	return nil
}

// Add stores n, dropping the user's oldest entry when full
func (b *Inbox) Add(n workflow.Notification) {
	b.mu.Lock()
	list := append(b.users[n.UserID], n)
	if len(list) > b.size {
		list = list[len(list)-b.size:]
	}
	b.users[n.UserID] = list
	b.mu.Unlock()

	b.live.Publish(n)
}

// Live returns the hub of live connections fed by Add
func (b *Inbox) Live() *Hub {
	return b.live
}

// List returns userID's notifications, newest first
func (b *Inbox) List(userID string) []workflow.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.users[userID]
	out := make([]workflow.Notification, len(list))
	for i, n := range list {
		out[len(list)-1-i] = n
	}
	return out
}
