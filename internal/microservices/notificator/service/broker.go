package service

import (
	"context"
	"encoding/json"
	"time"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
)

const publishTimeout = 5 * time.Second

// Broker is a fanout bus: every consumer sees every published message.
type Broker interface {
	Publish(ctx context.Context, body []byte) error
	Consume(ctx context.Context, handle func(body []byte)) error
	Close() error
}

// publishQueue bounds how many encoded events may wait for the broker.
const publishQueue = 256

// BrokerNotifier hands events to the broker instead of local sockets, so
// every replica's hub can deliver them. Events are queued and published one
// at a time by Run, in the order they were emitted.
type BrokerNotifier struct {
	broker Broker
	queue  chan domain.Envelope
	log    *logger.Logger
}

func NewBrokerNotifier(b Broker, lg *logger.Logger) *BrokerNotifier {
	return &BrokerNotifier{broker: b, queue: make(chan domain.Envelope, publishQueue), log: lg}
}

func (n *BrokerNotifier) BroadcastToKitchen(ev domain.Event) {
	n.enqueue(domain.Envelope{Channel: domain.ChannelKitchen, Event: ev})
}

func (n *BrokerNotifier) BroadcastToSession(sessionID string, ev domain.Event) {
	n.enqueue(domain.Envelope{Channel: domain.ChannelSession, SessionID: sessionID, Event: ev})
}

// enqueue never blocks. Callers have already committed; an event that finds
// the queue full is dropped.
func (n *BrokerNotifier) enqueue(env domain.Envelope) {
	select {
	case n.queue <- env:
	default:
		n.log.Warn("event_publish_dropped", map[string]any{
			"type": env.Event.Type, "channel": env.Channel, "session_id": env.SessionID,
		})
	}
}

// Run drains the queue until ctx is cancelled.
func (n *BrokerNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-n.queue:
			n.publish(ctx, env)
		}
	}
}

func (n *BrokerNotifier) publish(ctx context.Context, env domain.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		n.log.Error("event_encode_failed", err, map[string]any{"type": env.Event.Type})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.broker.Publish(ctx, body); err != nil {
		n.log.Error("event_publish_failed", err, map[string]any{
			"type": env.Event.Type, "channel": env.Channel, "session_id": env.SessionID,
		})
	}
}

type wireEvent struct {
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

type wireEnvelope struct {
	Channel   domain.Channel `json:"channel"`
	SessionID string         `json:"sessionId"`
	Event     wireEvent      `json:"event"`
}

// decode turns a broker message back into an envelope. The payload stays
// raw JSON and is forwarded untouched.
func decode(body []byte) (domain.Envelope, json.RawMessage, error) {
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Envelope{}, nil, err
	}
	return domain.Envelope{
		Channel:   w.Channel,
		SessionID: w.SessionID,
		Event:     domain.Event{Type: w.Event.Type, Payload: w.Event.Payload},
	}, w.Event.Payload, nil
}
