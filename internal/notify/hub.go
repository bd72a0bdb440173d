package notify

import (
	"context"
	"log/slog"
	"sync"
)

const defaultSubscriberBuffer = 16

// Hub fans notifications out to live per-user subscribers (websocket streams).
// Delivery never blocks: a full subscriber buffer drops the notification.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
}

type subscriber struct {
	ch chan Notification
}

// NewHub creates a hub. buffer <= 0 uses the default subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for userID. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Notification, func()) {
	s := &subscriber{ch: make(chan Notification, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], s)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Subscribers returns the number of live subscribers for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) Deliver(_ context.Context, n Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[n.UserID] {
		select {
		case s.ch <- n:
		default:
			slog.Warn("notification dropped, subscriber is slow", "user_id", n.UserID, "cause", n.Cause)
		}
	}
	return nil
}
