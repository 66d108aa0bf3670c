package domain

type EventType string

const (
	EventNewOrder           EventType = "NEW_ORDER"
	EventOrderStatusUpdated EventType = "ORDER_STATUS_UPDATED"
	EventSessionClosed      EventType = "SESSION_CLOSED"
)

// Event is the wire shape pushed to subscribers.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type SessionClosedPayload struct {
	SessionID string `json:"sessionId"`
}

// Notifier receives events after the transaction that produced them has
// committed. Implementations must not block the caller.
type Notifier interface {
	BroadcastToKitchen(ev Event)
	BroadcastToSession(sessionID string, ev Event)
}

// Channel names the audience of an event.
type Channel string

const (
	ChannelKitchen Channel = "kitchen"
	ChannelSession Channel = "session"
)

// Envelope carries an event between replicas through a broker.
type Envelope struct {
	Channel   Channel `json:"channel"`
	SessionID string  `json:"sessionId,omitempty"`
	Event     Event   `json:"event"`
}
