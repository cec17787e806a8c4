package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/mattjoyce/intercom-event/internal/config"
	"github.com/mattjoyce/intercom-event/internal/event"
	"github.com/mattjoyce/intercom-event/internal/event/mocks"
	"github.com/mattjoyce/intercom-event/internal/log"
	"github.com/mattjoyce/intercom-event/internal/notify"
	"github.com/mattjoyce/intercom-event/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json") // Suppress logs in tests
	os.Exit(m.Run())
}

// topicRetriever resolves the "topic" param into an event with the "id" param.
func topicRetriever() event.Retriever {
	return event.RetrieverFunc(func(_ context.Context, p event.Params) (*event.Event, error) {
		return &event.Event{ID: p.String("id"), Topic: p.String("topic")}, nil
	})
}

func collector(into *[]*event.Event) subscription.Handler {
	return func(_ context.Context, ev *event.Event) error {
		*into = append(*into, ev)
		return nil
	}
}

func instrument(t *testing.T, d *Dispatcher, id, topic string) Result {
	t.Helper()
	res, err := d.Instrument(context.Background(), event.Params{"id": id, "topic": topic})
	require.NoError(t, err)
	return res
}

func TestInstrumentExactSubscription(t *testing.T) {
	ctrl := gomock.NewController(t)
	retriever := mocks.NewMockRetriever(ctrl)

	companyCreated := &event.Event{ID: "company_created", Topic: "company.created"}
	params := event.Params{"id": "company_created", "topic": "company.created"}
	retriever.EXPECT().Retrieve(gomock.Any(), params).Return(companyCreated, nil)

	d := New(retriever)
	var events []*event.Event
	d.Subscribe("company.created", collector(&events))
	d.Subscribe("company.created.extra", collector(&events))

	res, err := d.Instrument(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, []*event.Event{companyCreated}, events)
	assert.Equal(t, 1, res.Handled)
	assert.Equal(t, "company.created", res.Topic)
	assert.Equal(t, "intercom_event.company.created", res.Channel)
	assert.NotEmpty(t, res.DispatchID)
	assert.False(t, res.Ignored)
}

func TestInstrumentNamespaceSubscription(t *testing.T) {
	d := New(topicRetriever())
	var events []*event.Event
	d.SubscribeNamespace("conversation.user", collector(&events))

	instrument(t, d, "evt_1", "conversation.user.created")
	instrument(t, d, "evt_2", "conversation.admin.replied")
	instrument(t, d, "evt_3", "conversation.user.replied")

	require.Len(t, events, 2)
	assert.Equal(t, "evt_1", events[0].ID)
	assert.Equal(t, "evt_3", events[1].ID)
}

func TestInstrumentNamespaceWithDelimiter(t *testing.T) {
	d := New(topicRetriever())
	var events []*event.Event
	d.SubscribeNamespace("conversation.", collector(&events))

	instrument(t, d, "evt_1", "conversation.user.created")
	instrument(t, d, "evt_2", "conversation.admin.replied")
	instrument(t, d, "evt_3", "user.created")

	require.Len(t, events, 2)
	assert.Equal(t, "conversation.user.created", events[0].Topic)
	assert.Equal(t, "conversation.admin.replied", events[1].Topic)
}

func TestInstrumentAllSubscription(t *testing.T) {
	d := New(topicRetriever())
	var events []*event.Event
	d.All(collector(&events))

	instrument(t, d, "company_created", "company.created")
	instrument(t, d, "user_created", "user.created")

	require.Len(t, events, 2)
	assert.Equal(t, "company.created", events[0].Topic)
	assert.Equal(t, "user.created", events[1].Topic)
}

func TestInstrumentDispatchOrderIsRegistrationOrder(t *testing.T) {
	d := New(topicRetriever())
	var order []string
	record := func(name string) subscription.Handler {
		return func(context.Context, *event.Event) error {
			order = append(order, name)
			return nil
		}
	}

	d.SubscribeNamespace("conversation.", record("h1"))
	d.All(record("h2"))
	d.Subscribe("conversation.user.created", record("h3"))
	d.Subscribe("user.created", record("h4"))

	res := instrument(t, d, "evt", "conversation.user.created")
	assert.Equal(t, []string{"h1", "h2", "h3"}, order)
	assert.Equal(t, 3, res.Handled)
}

func TestInstrumentIgnoredEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	retriever := mocks.NewMockRetriever(ctrl)
	retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(nil, nil)

	d := New(retriever)
	called := 0
	d.All(func(context.Context, *event.Event) error {
		called++
		return nil
	})

	res, err := d.Instrument(context.Background(), event.Params{"id": "evt_charge_succeeded"})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, 0, res.Handled)
	assert.Equal(t, 0, called)
	assert.Nil(t, res.Event)
}

func TestInstrumentRetrieverErrorPropagatesUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	retriever := mocks.NewMockRetriever(ctrl)
	upstream := &event.UnauthorizedError{ID: "evt_invalid_id", Status: 404}
	retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(nil, upstream)

	d := New(retriever)
	called := 0
	d.All(func(context.Context, *event.Event) error {
		called++
		return nil
	})

	_, err := d.Instrument(context.Background(), event.Params{"id": "evt_invalid_id"})
	assert.Same(t, upstream, err)
	assert.True(t, event.IsUnauthorized(err))
	assert.Equal(t, 0, called)
}

func TestInstrumentHandlerErrorStopsDispatch(t *testing.T) {
	d := New(topicRetriever())
	boom := errors.New("testing")
	var calls []string

	d.All(func(context.Context, *event.Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.All(func(context.Context, *event.Event) error {
		calls = append(calls, "second")
		return nil
	})

	res, err := d.Instrument(context.Background(), event.Params{"id": "evt", "topic": "charge.succeeded"})
	assert.Same(t, boom, err)
	assert.False(t, event.IsUnauthorized(err))
	assert.Equal(t, []string{"first"}, calls)
	assert.Equal(t, 0, res.Handled)
}

func TestInstrumentHandlerPanicIsNotRecovered(t *testing.T) {
	d := New(topicRetriever())
	d.All(func(context.Context, *event.Event) error {
		panic("handler bug")
	})

	assert.PanicsWithValue(t, "handler bug", func() {
		_, _ = d.Instrument(context.Background(), event.Params{"id": "evt", "topic": "x"})
	})
}

func TestInstrumentWithoutRetriever(t *testing.T) {
	d := New(nil)
	_, err := d.Instrument(context.Background(), event.Params{})
	assert.ErrorIs(t, err, ErrNoRetriever)
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (p *recordingPublisher) Publish(channel string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, data)
}

func TestInstrumentPublishesNamespacedNotification(t *testing.T) {
	pub := &recordingPublisher{}
	d := New(topicRetriever(),
		WithPublisher(pub),
		WithNamespace(notify.NewNamespace("hooks")),
	)
	d.Subscribe("user.created", func(context.Context, *event.Event) error { return nil })

	res := instrument(t, d, "evt_user", "user.created")

	require.Equal(t, []string{"hooks.user.created"}, pub.channels)
	payload, ok := pub.payloads[0].(Dispatch)
	require.True(t, ok)
	assert.Equal(t, res.DispatchID, payload.DispatchID)
	assert.Equal(t, "evt_user", payload.EventID)
	assert.Equal(t, 1, payload.Handlers)

	// Ignored and failed dispatches publish nothing.
	d.SetRetriever(event.RetrieverFunc(func(context.Context, event.Params) (*event.Event, error) {
		return nil, nil
	}))
	instrument(t, d, "evt_user", "user.created")
	assert.Len(t, pub.channels, 1)
}

func TestConfigurationAccessors(t *testing.T) {
	def := topicRetriever()
	d := New(def, WithSecret("secret"))

	assert.Equal(t, "secret", d.Secret())
	d.SetSecret("")
	assert.Equal(t, "", d.Secret())

	override := event.RetrieverFunc(func(context.Context, event.Params) (*event.Event, error) {
		return nil, nil
	})
	d.SetRetriever(override)
	res := instrument(t, d, "x", "y")
	assert.True(t, res.Ignored)

	d.SetRetriever(nil)
	res = instrument(t, d, "x", "y")
	assert.False(t, res.Ignored)

	var yielded *Dispatcher
	require.NoError(t, d.Configure(func(cfg *Dispatcher) { yielded = cfg }))
	assert.Same(t, d, yielded)
	assert.ErrorIs(t, d.Configure(nil), ErrNilConfigure)
}

func TestListeningAndReset(t *testing.T) {
	d := New(topicRetriever())
	noop := func(context.Context, *event.Event) error { return nil }

	d.SubscribeNamespace("customer.", noop)
	assert.True(t, d.Listening("customer.card"))
	assert.True(t, d.Listening("customer."))
	assert.False(t, d.Listening("account"))

	d.All(noop)
	assert.True(t, d.Listening("account"))

	d.Reset()
	assert.False(t, d.Listening("customer.card"))
	assert.Equal(t, 0, d.Registry().Len())
}

func TestFreshDispatchersAreIsolated(t *testing.T) {
	a := New(topicRetriever())
	b := New(topicRetriever())
	a.All(func(context.Context, *event.Event) error { return nil })

	assert.True(t, a.Listening("x"))
	assert.False(t, b.Listening("x"))

	shared := subscription.NewRegistry()
	c := New(topicRetriever(), WithRegistry(shared))
	c.All(func(context.Context, *event.Event) error { return nil })
	assert.Equal(t, 1, shared.Len())
}

func TestSubscribeConfigured(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "info", "json")

	d := New(topicRetriever())
	err := d.SubscribeConfigured([]config.SubscriptionConfig{
		{Topic: "charge.succeeded", Action: config.ActionLog},
		{Namespace: "conversation.", Action: config.ActionLog},
		{All: true},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, []subscription.Pattern{
		subscription.Exact("charge.succeeded"),
		subscription.Namespace("conversation."),
		subscription.All(),
	}, d.Registry().Patterns())

	res := instrument(t, d, "evt_charge_succeeded", "charge.succeeded")
	assert.Equal(t, 2, res.Handled)
	assert.Contains(t, buf.String(), `"msg":"intercom event received","topic":"charge.succeeded"`)

	err = d.SubscribeConfigured([]config.SubscriptionConfig{{Topic: "a", Action: "email"}}, logger)
	assert.Error(t, err)
	err = d.SubscribeConfigured([]config.SubscriptionConfig{{Action: config.ActionLog}}, logger)
	assert.Error(t, err)
}

func TestConcurrentInstrumentAndReconfigure(t *testing.T) {
	d := New(topicRetriever())
	d.All(func(context.Context, *event.Event) error { return nil })

	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := d.Instrument(ctx, event.Params{"id": "e", "topic": "t"}); err != nil {
					t.Errorf("Instrument: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			d.SetSecret("s")
			d.Subscribe("t", func(context.Context, *event.Event) error { return nil })
			d.SetRetriever(nil)
		}
	}()
	wg.Wait()
}

func TestInstrumentLogsWithInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "debug", "json").With("component", "dispatch")

	d := New(topicRetriever(), WithLogger(logger))
	d.Subscribe("charge.succeeded", func(context.Context, *event.Event) error { return nil })

	res := instrument(t, d, "evt_charge_succeeded", "charge.succeeded")

	out := buf.String()
	assert.Contains(t, out, `"msg":"event dispatched"`)
	assert.Contains(t, out, `"component":"dispatch"`)
	assert.Contains(t, out, `"dispatch_id":"`+res.DispatchID+`"`)
}
