package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/pos/repository"
)

type BillingServiceInterface interface {
	CloseBill(ctx context.Context, sessionID string, method domain.PaymentMethod) (domain.BillResult, error)
}

type BillingService struct {
	store  repository.Store
	notify domain.Notifier
	log    *logger.Logger
}

func NewBillingService(store repository.Store, notifier domain.Notifier, lg *logger.Logger) BillingServiceInterface {
	return &BillingService{store: store, notify: notifier, log: lg}
}

// CloseBill settles everything the session still owes with a single payment
// and closes the session. Orders flip to PAID in the same transaction that
// inserts the payment, so one never exists without the other. A bill that
// sums to zero marks the orders PAID and records no payment.
func (s *BillingService) CloseBill(ctx context.Context, sessionID string, method domain.PaymentMethod) (res domain.BillResult, err error) {
	ctx, span := tracer.Start(ctx, "billing.close_bill")
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("payment.method", string(method)))
	defer func() { endSpan(span, err) }()

	if !method.Valid() {
		return domain.BillResult{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, method)
	}

	var paid []domain.Order
	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		reg, err := q.OpenRegister(ctx, true)
		if err != nil {
			return err
		}
		if err := q.LockSession(ctx, sessionID, ts); err != nil {
			return err
		}

		claimed, err := q.ClaimOutstandingOrders(ctx, sessionID, ts)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return domain.ErrNoPendingOrders
		}
		total := decimal.Zero
		for _, c := range claimed {
			total = total.Add(c.TotalAmount)
		}

		paid = make([]domain.Order, 0, len(claimed))
		for _, c := range claimed {
			o, err := q.GetOrder(ctx, c.ID)
			if err != nil {
				return err
			}
			paid = append(paid, o)
		}
		res.UpdatedOrders = len(claimed)

		if total.IsZero() {
			return nil
		}

		payment := domain.Payment{
			ID:             id.New(id.PrefixPayment),
			SessionID:      sessionID,
			CashRegisterID: reg.ID,
			Amount:         total,
			Method:         method,
			Status:         domain.PaymentCompleted,
			CreatedAt:      ts,
		}
		if err := q.InsertPayment(ctx, payment); err != nil {
			return err
		}
		res.Payment = &payment

		res.SessionClosed, err = q.CloseSession(ctx, sessionID, ts)
		return err
	})
	if err != nil {
		return domain.BillResult{}, err
	}

	for _, o := range paid {
		publishOrder(s.notify, domain.EventOrderStatusUpdated, o)
	}
	if res.SessionClosed {
		publishSessionClosed(s.notify, sessionID)
	}

	fields := map[string]any{"session_id": sessionID, "orders": res.UpdatedOrders, "session_closed": res.SessionClosed}
	if res.Payment != nil {
		fields["payment_id"] = res.Payment.ID
		fields["amount"] = res.Payment.Amount.String()
		fields["method"] = method
	}
	s.log.Info("bill_closed", fields)
	return res, nil
}
