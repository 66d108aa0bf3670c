package service

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/pos/repository"
)

var tracer = otel.Tracer("restaurant-pos/pos")

type Service struct {
	SessionService  SessionServiceInterface
	OrderService    OrderServiceInterface
	RegisterService RegisterServiceInterface
	BillingService  BillingServiceInterface
}

func New(store repository.Store, notifier domain.Notifier, lg *logger.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		SessionService:  NewSessionService(store, notifier, lg),
		OrderService:    NewOrderService(store, notifier, lg),
		RegisterService: NewRegisterService(store, lg),
		BillingService:  NewBillingService(store, notifier, lg),
	}
}

func now() time.Time { return time.Now().UTC() }

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type nopNotifier struct{}

func (nopNotifier) BroadcastToKitchen(domain.Event)         {}
func (nopNotifier) BroadcastToSession(string, domain.Event) {}

func publishOrder(n domain.Notifier, typ domain.EventType, o domain.Order) {
	ev := domain.Event{Type: typ, Payload: o}
	n.BroadcastToKitchen(ev)
	n.BroadcastToSession(o.SessionID, ev)
}

func publishSessionClosed(n domain.Notifier, sessionID string) {
	ev := domain.Event{Type: domain.EventSessionClosed, Payload: domain.SessionClosedPayload{SessionID: sessionID}}
	n.BroadcastToKitchen(ev)
	n.BroadcastToSession(sessionID, ev)
}
