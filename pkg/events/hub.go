// Package events provides an in-process fan-out hub for audit events.
// Publishing never blocks: subscribers that fall behind lose events rather
// than stalling directory mutations.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 1000

// AuditEvent records one directory mutation for downstream consumers.
type AuditEvent struct {
	ID        uuid.UUID         `json:"id"`
	Action    string            `json:"action"`
	ActorID   *uuid.UUID        `json:"actor_id,omitempty"`
	TargetID  *uuid.UUID        `json:"target_id,omitempty"`
	IPAddr    string            `json:"ip_addr,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Hub fans AuditEvents out to all current subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan AuditEvent
	nextID  int
	bufSize int
	dropped atomic.Uint64
}

// NewHub returns a hub with the given per-subscriber buffer size.
// Sizes below 1 fall back to DefaultBufferSize.
func NewHub(bufSize int) *Hub {
	if bufSize < 1 {
		bufSize = DefaultBufferSize
	}
	return &Hub{
		subs:    make(map[int]chan AuditEvent),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription; the channel is closed by cancel.
func (h *Hub) Subscribe() (<-chan AuditEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan AuditEvent, h.bufSize)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers event to every subscriber whose buffer has room.
// Full buffers drop the event for that subscriber.
func (h *Hub) Publish(event AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped returns the total number of events discarded because a
// subscriber's buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
