package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types pushed to subscribers.
const (
	EventInit   = "init"
	EventUpdate = "update"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity used when none is configured.
const DefaultSubscriberBuffer = 16

// Event is one server-sent message. Data is the encoded JSON payload.
type Event struct {
	Type string
	Data []byte
}

// Hub fans events out to subscribers. Broadcast never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan Event
	buffer int
	closed bool
}

// NewHub creates a Hub whose subscribers buffer up to buffer events (≤0 = DefaultSubscriberBuffer).
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{subs: make(map[uuid.UUID]chan Event), buffer: buffer}
}

// Subscribe registers a new subscriber. The returned channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New()
	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	logrus.Debugf("subscriber %s connected (%d active)", id, len(h.subs))
	return id, ch
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		logrus.Debugf("subscriber %s disconnected (%d active)", id, len(h.subs))
	}
}

// Broadcast delivers ev to every subscriber with buffer space and returns how many missed it.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			dropped++
			logrus.Warnf("subscriber %s is slow, dropped %s event", id, ev.Type)
		}
	}
	return dropped
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later subscriptions receive an already-closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.closed = true
}
