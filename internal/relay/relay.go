// Package relay mirrors kitchen events onto RabbitMQ so consumers outside
// the process (ticket printer host, a second display box) can follow along.
// It is just another hub subscriber: if it falls behind it gets dropped like
// any display would, and it resubscribes on its own.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"mozo-cocina/internal/connections/rabbitmq"
	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/hub"
	"mozo-cocina/internal/logger"
)

const publishTimeout = 5 * time.Second

type Relay struct {
	client *rabbitmq.Client
	hub    *hub.Hub
	lg     *logger.Logger
}

func New(client *rabbitmq.Client, h *hub.Hub, lg *logger.Logger) *Relay {
	return &Relay{client: client, hub: h, lg: lg}
}

// Run consumes kitchen events until ctx is cancelled. Publish failures are
// logged and the event is dropped; the ledger never hears about them.
func (r *Relay) Run(ctx context.Context) {
	sub := r.hub.Subscribe(domain.KitchenChannel)
	defer func() { r.hub.Unsubscribe(sub) }()
	r.lg.Info("relay_started", map[string]any{"exchange": rabbitmq.KitchenExchange})

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub for falling behind; start over with
				// a fresh subscription.
				sub = r.hub.Subscribe(domain.KitchenChannel)
				r.lg.Warn("relay_resubscribed", nil, nil)
				continue
			}
			r.forward(ctx, ev)
		}
	}
}

func (r *Relay) forward(ctx context.Context, ev domain.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		r.lg.Error("relay_marshal_failed", err, map[string]any{"event_type": string(ev.Type)})
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.PublishPersistent(pctx, rabbitmq.KitchenExchange, "", body); err != nil {
		r.lg.Error("relay_publish_failed", err, map[string]any{"event_type": string(ev.Type)})
	}
}
