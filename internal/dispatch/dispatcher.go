package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/intercom-event/internal/event"
	"github.com/mattjoyce/intercom-event/internal/log"
	"github.com/mattjoyce/intercom-event/internal/notify"
	"github.com/mattjoyce/intercom-event/internal/subscription"
)

// ErrNoRetriever is returned by Instrument when no retriever is configured.
var ErrNoRetriever = errors.New("no event retriever configured")

// ErrNilConfigure is returned by Configure when called without a function.
var ErrNilConfigure = errors.New("configure requires a function")

// Publisher receives one notification per dispatched event.
type Publisher interface {
	Publish(channel string, data any)
}

// Result describes one Instrument call.
type Result struct {
	DispatchID string
	Event      *event.Event
	Topic      string
	Channel    string
	Ignored    bool
	Handled    int
}

// Dispatch is the payload published on the hub after a dispatch.
type Dispatch struct {
	DispatchID string    `json:"dispatch_id"`
	EventID    string    `json:"event_id"`
	Topic      string    `json:"topic"`
	Handlers   int       `json:"handlers"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Dispatcher resolves webhook params into events and runs the matching
// subscriptions.
type Dispatcher struct {
	mu               sync.RWMutex
	defaultRetriever event.Retriever
	retriever        event.Retriever
	secret           string
	registry         *subscription.Registry

	namespace notify.Namespace
	publisher Publisher
	logger    *slog.Logger
}

// Option customizes a Dispatcher at construction.
type Option func(*Dispatcher)

// WithSecret sets the initial webhook secret.
func WithSecret(secret string) Option {
	return func(d *Dispatcher) { d.secret = secret }
}

// WithRegistry uses an existing registry instead of a fresh one.
func WithRegistry(r *subscription.Registry) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithNamespace sets the channel namespace used for handler notifications.
func WithNamespace(ns notify.Namespace) Option {
	return func(d *Dispatcher) { d.namespace = ns }
}

// WithPublisher sends a Dispatch notification after each successful dispatch.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher using r as the default retriever.
func New(r event.Retriever, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		defaultRetriever: r,
		retriever:        r,
		registry:         subscription.NewRegistry(),
		namespace:        notify.NewNamespace(notify.DefaultNamespace),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.WithComponent("dispatch")
	}
	return d
}

// Configure calls fn with the dispatcher.
func (d *Dispatcher) Configure(fn func(*Dispatcher)) error {
	if fn == nil {
		return ErrNilConfigure
	}
	fn(d)
	return nil
}

// Retriever returns the active retriever.
func (d *Dispatcher) Retriever() event.Retriever {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.retriever
}

// SetRetriever overrides the retriever. nil restores the default.
func (d *Dispatcher) SetRetriever(r event.Retriever) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r == nil {
		r = d.defaultRetriever
	}
	d.retriever = r
}

// Secret returns the webhook secret, or "" when none is configured.
func (d *Dispatcher) Secret() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.secret
}

// SetSecret sets the webhook secret. "" disables the credential check.
func (d *Dispatcher) SetSecret(secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.secret = secret
}

// Registry returns the subscription registry.
func (d *Dispatcher) Registry() *subscription.Registry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry
}

// Reset drops every subscription.
func (d *Dispatcher) Reset() {
	d.Registry().Reset()
}

// Namespace returns the channel namespace.
func (d *Dispatcher) Namespace() notify.Namespace {
	return d.namespace
}

// Subscribe registers h for exactly topic.
func (d *Dispatcher) Subscribe(topic string, h subscription.Handler) {
	d.Registry().Register(subscription.Exact(topic), h)
}

// SubscribeNamespace registers h for every topic starting with prefix.
// The prefix is compared literally; include the trailing "." for
// segment-level namespaces.
func (d *Dispatcher) SubscribeNamespace(prefix string, h subscription.Handler) {
	d.Registry().Register(subscription.Namespace(prefix), h)
}

// All registers h for every topic.
func (d *Dispatcher) All(h subscription.Handler) {
	d.Registry().Register(subscription.All(), h)
}

// Listening reports whether any subscription would receive topic.
func (d *Dispatcher) Listening(topic string) bool {
	return d.Registry().IsListening(topic)
}

// Instrument resolves params and dispatches the event to every matching
// subscription in registration order.
func (d *Dispatcher) Instrument(ctx context.Context, params event.Params) (Result, error) {
	res := Result{DispatchID: uuid.NewString()}
	logger := log.WithDispatch(d.logger, res.DispatchID)

	r := d.Retriever()
	if r == nil {
		return res, ErrNoRetriever
	}

	ev, err := r.Retrieve(ctx, params)
	if err != nil {
		return res, err
	}
	if ev == nil {
		res.Ignored = true
		logger.Debug("webhook ignored by retriever")
		return res, nil
	}

	res.Event = ev
	res.Topic = ev.Topic
	res.Channel = d.namespace.Build(ev.Topic)

	subs := d.Registry().Matching(ev.Topic)
	started := time.Now()
	for _, sub := range subs {
		call := notify.Adapt[*event.Event](sub.Handler)
		if err := call(ctx, res.Channel, started, ev); err != nil {
			return res, err
		}
		res.Handled++
	}

	elapsed := time.Since(started)
	logger.Info("event dispatched",
		"topic", res.Topic,
		"event_id", ev.ID,
		"handlers", res.Handled,
		"duration_ms", elapsed.Milliseconds(),
	)

	if d.publisher != nil {
		d.publisher.Publish(res.Channel, Dispatch{
			DispatchID: res.DispatchID,
			EventID:    ev.ID,
			Topic:      res.Topic,
			Handlers:   res.Handled,
			StartedAt:  started.UTC(),
			DurationMS: elapsed.Milliseconds(),
		})
	}

	return res, nil
}
