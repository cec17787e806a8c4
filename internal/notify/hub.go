package notify

import (
	"encoding/json"
	"regexp"
	"sync"
	"time"
)

// Notification is one message published on the hub.
type Notification struct {
	ID      int64           `json:"id"`
	Channel string          `json:"channel"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data"`
}

// Hub is an in-memory notification bus with a small ring buffer for late
// readers.
type Hub struct {
	mu     sync.Mutex
	nextID int64

	ring  []Notification
	start int
	size  int

	subs      map[int]chan Notification
	nextSubID int
}

// NewHub returns a hub that keeps the last capacity notifications for
// replay. Non-positive capacities fall back to 100.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Notification, capacity),
		subs: make(map[int]chan Notification),
	}
}

// Publish records data on channel and fans it out to live subscribers.
// IDs are assigned under the lock, so the ring and every subscriber see
// them in increasing order.
func (h *Hub) Publish(channel string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	h.nextID++
	n := Notification{
		ID:      h.nextID,
		Channel: channel,
		At:      time.Now().UTC(),
		Data:    payload,
	}
	h.pushLocked(n)
	for _, ch := range h.subs {
		// Slow readers drop notifications rather than stall dispatch.
		select {
		case ch <- n:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe registers a live reader. The returned cancel func unregisters
// it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Notification, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered notifications with ID > lastID whose channel
// matches filter, oldest-first. A nil filter matches every channel.
func (h *Hub) SnapshotSince(lastID int64, filter *regexp.Regexp) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notification, 0, h.size)
	for i := 0; i < h.size; i++ {
		n := h.ring[(h.start+i)%len(h.ring)]
		if n.ID <= lastID {
			continue
		}
		if filter != nil && !filter.MatchString(n.Channel) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (h *Hub) pushLocked(n Notification) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = n
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = n
	h.start = (h.start + 1) % capacity
}
