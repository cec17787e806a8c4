package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/intercom-event/internal/config"
	"github.com/mattjoyce/intercom-event/internal/event"
	"github.com/mattjoyce/intercom-event/internal/log"
	"github.com/mattjoyce/intercom-event/internal/subscription"
)

// LogHandler returns a handler that records each event it receives.
func LogHandler(logger *slog.Logger) subscription.Handler {
	return func(ctx context.Context, ev *event.Event) error {
		log.WithTopic(logger, ev.Topic).InfoContext(ctx, "intercom event received",
			"event_id", ev.ID,
			"app_id", ev.AppID,
		)
		return nil
	}
}

// SubscribeConfigured registers the built-in subscribers declared in config,
// in file order.
func (d *Dispatcher) SubscribeConfigured(subs []config.SubscriptionConfig, logger *slog.Logger) error {
	for i, sc := range subs {
		var h subscription.Handler
		switch sc.Action {
		case config.ActionLog, "":
			h = LogHandler(logger)
		default:
			return fmt.Errorf("subscriptions[%d]: unknown action %q", i, sc.Action)
		}

		switch {
		case sc.All:
			d.All(h)
		case sc.Namespace != "":
			d.SubscribeNamespace(sc.Namespace, h)
		case sc.Topic != "":
			d.Subscribe(sc.Topic, h)
		default:
			return fmt.Errorf("subscriptions[%d]: no topic, namespace or all", i)
		}
	}
	return nil
}
