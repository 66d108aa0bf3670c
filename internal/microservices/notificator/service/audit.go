package service

import (
	"context"

	"restaurant-pos/internal/common/logger"
)

// Auditor tails the event bus and writes one log line per event.
type Auditor struct {
	broker Broker
	log    *logger.Logger
}

func NewAuditor(b Broker, lg *logger.Logger) *Auditor {
	return &Auditor{broker: b, log: lg}
}

func (a *Auditor) Run(ctx context.Context) error {
	a.log.Info("audit_started", nil)
	err := a.broker.Consume(ctx, func(body []byte) {
		env, payload, err := decode(body)
		if err != nil {
			a.log.Warn("audit_bad_message", map[string]any{"error": err.Error(), "body": string(body)})
			return
		}
		a.log.Info("event_received", map[string]any{
			"type":       env.Event.Type,
			"channel":    env.Channel,
			"session_id": env.SessionID,
			"payload":    string(payload),
		})
	})
	a.log.Info("audit_stopped", nil)
	return err
}
