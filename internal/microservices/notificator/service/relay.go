package service

import (
	"context"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
)

// Relay feeds broker traffic into a local notifier, normally the hub.
type Relay struct {
	broker Broker
	local  domain.Notifier
	log    *logger.Logger
}

func NewRelay(b Broker, local domain.Notifier, lg *logger.Logger) *Relay {
	return &Relay{broker: b, local: local, log: lg}
}

// Run consumes until ctx is cancelled or the broker connection fails.
func (r *Relay) Run(ctx context.Context) error {
	return r.broker.Consume(ctx, r.handle)
}

func (r *Relay) handle(body []byte) {
	env, _, err := decode(body)
	if err != nil {
		r.log.Warn("relay_bad_message", map[string]any{"error": err.Error()})
		return
	}
	switch env.Channel {
	case domain.ChannelKitchen:
		r.local.BroadcastToKitchen(env.Event)
	case domain.ChannelSession:
		if env.SessionID == "" {
			r.log.Warn("relay_missing_session", map[string]any{"type": env.Event.Type})
			return
		}
		r.local.BroadcastToSession(env.SessionID, env.Event)
	default:
		r.log.Warn("relay_unknown_channel", map[string]any{"channel": env.Channel})
	}
}
