package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/pos/repository"
)

type RegisterServiceInterface interface {
	OpenRegister(ctx context.Context, initialValue decimal.Decimal) (domain.CashRegister, error)
	CloseRegister(ctx context.Context) (domain.RegisterSummary, error)
	ActiveRegisterDetails(ctx context.Context) (domain.RegisterSummary, error)
	RegisterHistory(ctx context.Context, start, end *time.Time) ([]domain.CashRegister, error)
}

type RegisterService struct {
	store repository.Store
	log   *logger.Logger
}

func NewRegisterService(store repository.Store, lg *logger.Logger) RegisterServiceInterface {
	return &RegisterService{store: store, log: lg}
}

func (s *RegisterService) OpenRegister(ctx context.Context, initialValue decimal.Decimal) (domain.CashRegister, error) {
	if initialValue.IsNegative() {
		return domain.CashRegister{}, fmt.Errorf("%w: initial value cannot be negative", domain.ErrInvalidInput)
	}

	reg := domain.CashRegister{
		ID:           id.New(id.PrefixRegister),
		Status:       domain.RegisterOpen,
		InitialValue: initialValue,
		OpenedAt:     now(),
	}
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		_, err := q.OpenRegister(ctx, false)
		switch {
		case err == nil:
			return domain.ErrRegisterAlreadyOpen
		case !errors.Is(err, domain.ErrNoOpenRegister):
			return err
		}
		return q.InsertRegister(ctx, reg)
	})
	if err != nil {
		return domain.CashRegister{}, err
	}

	s.log.Info("cash_register_opened", map[string]any{"register_id": reg.ID, "initial_value": initialValue.String()})
	return reg, nil
}

// CloseRegister settles the till. The exclusive lock waits out orders and
// bills still holding the shared one, so the snapshot counts all of them.
func (s *RegisterService) CloseRegister(ctx context.Context) (summary domain.RegisterSummary, err error) {
	ctx, span := tracer.Start(ctx, "register.close")
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		reg, err := q.LockOpenRegister(ctx, ts)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("register.id", reg.ID))

		n, err := q.CountUnsettledOrders(ctx, reg.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d orders are neither paid nor cancelled", domain.ErrUnsettledOrders, n)
		}

		summary, err = summarize(ctx, q, reg)
		if err != nil {
			return err
		}
		if err := q.CloseRegister(ctx, summary, ts); err != nil {
			return err
		}
		summary.Status = domain.RegisterClosed
		summary.ClosedAt = &ts
		return nil
	})
	if err != nil {
		return domain.RegisterSummary{}, err
	}

	s.log.Info("cash_register_closed", map[string]any{
		"register_id":    summary.RegisterID,
		"total_payments": summary.TotalPayments.String(),
		"final_value":    summary.FinalValue.String(),
	})
	return summary, nil
}

func (s *RegisterService) ActiveRegisterDetails(ctx context.Context) (domain.RegisterSummary, error) {
	q := s.store.Read()
	reg, err := q.OpenRegister(ctx, false)
	if err != nil {
		return domain.RegisterSummary{}, err
	}
	return summarize(ctx, q, reg)
}

func (s *RegisterService) RegisterHistory(ctx context.Context, start, end *time.Time) ([]domain.CashRegister, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, fmt.Errorf("%w: end date is before start date", domain.ErrInvalidInput)
	}
	return s.store.Read().ClosedRegisters(ctx, start, end)
}

// summarize is the one formula behind both the live preview and the closing
// snapshot.
func summarize(ctx context.Context, q *repository.Queries, reg domain.CashRegister) (domain.RegisterSummary, error) {
	payments, err := q.PaymentsByRegister(ctx, reg.ID)
	if err != nil {
		return domain.RegisterSummary{}, err
	}
	lines, err := q.PaidLines(ctx, reg.ID)
	if err != nil {
		return domain.RegisterSummary{}, err
	}

	total := decimal.Zero
	byMethod := make(map[domain.PaymentMethod]*domain.MethodTotal)
	for _, p := range payments {
		total = total.Add(p.Amount)
		mt, ok := byMethod[p.Method]
		if !ok {
			mt = &domain.MethodTotal{Method: p.Method, Total: decimal.Zero}
			byMethod[p.Method] = mt
		}
		mt.Total = mt.Total.Add(p.Amount)
		mt.Count++
	}
	methods := make([]domain.MethodTotal, 0, len(byMethod))
	for _, mt := range byMethod {
		methods = append(methods, *mt)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Method < methods[j].Method })

	byProduct := make(map[string]*domain.ProductSold)
	for _, it := range lines {
		ps, ok := byProduct[it.ProductID]
		if !ok {
			ps = &domain.ProductSold{ProductID: it.ProductID, Name: it.Product.Name, Revenue: decimal.Zero}
			byProduct[it.ProductID] = ps
		}
		ps.Quantity += it.Quantity
		ps.Revenue = ps.Revenue.Add(it.TotalPrice)
	}
	sold := make([]domain.ProductSold, 0, len(byProduct))
	for _, ps := range byProduct {
		sold = append(sold, *ps)
	}
	sort.Slice(sold, func(i, j int) bool {
		if c := sold[i].Revenue.Cmp(sold[j].Revenue); c != 0 {
			return c > 0
		}
		return sold[i].Name < sold[j].Name
	})

	return domain.RegisterSummary{
		RegisterID:       reg.ID,
		Status:           reg.Status,
		OpenedAt:         reg.OpenedAt,
		ClosedAt:         reg.ClosedAt,
		InitialValue:     reg.InitialValue,
		TotalPayments:    total,
		FinalValue:       reg.InitialValue.Add(total),
		PaymentsByMethod: methods,
		SoldProducts:     sold,
	}, nil
}
