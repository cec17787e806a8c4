package subscription

import (
	"context"
	"sync"

	"github.com/mattjoyce/intercom-event/internal/event"
)

// Handler receives a dispatched event. A returned error stops dispatch and
// reaches the webhook caller unchanged.
type Handler func(ctx context.Context, ev *event.Event) error

// Subscription is a registered (pattern, handler) pair.
type Subscription struct {
	Pattern Pattern
	Handler Handler
}

// Registry is an ordered, append-only list of subscriptions.
// Insertion order is dispatch order across all pattern kinds.
type Registry struct {
	mu   sync.RWMutex
	subs []Subscription
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a subscription.
func (r *Registry) Register(p Pattern, h Handler) {
	r.mu.Lock()
	r.subs = append(r.subs, Subscription{Pattern: p, Handler: h})
	r.mu.Unlock()
}

// Matching returns the subscriptions whose pattern matches topic, in
// registration order. The returned slice is a snapshot owned by the caller.
func (r *Registry) Matching(topic string) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Subscription
	for _, s := range r.subs {
		if s.Pattern.Matches(topic) {
			out = append(out, s)
		}
	}
	return out
}

// IsListening reports whether any subscription matches topic.
func (r *Registry) IsListening(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.subs {
		if s.Pattern.Matches(topic) {
			return true
		}
	}
	return false
}

// Reset drops every subscription.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.subs = nil
	r.mu.Unlock()
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Patterns lists registered patterns in order.
func (r *Registry) Patterns() []Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Pattern, len(r.subs))
	for i, s := range r.subs {
		out[i] = s.Pattern
	}
	return out
}
