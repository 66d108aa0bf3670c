package service

import (
	"context"
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

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, sessionID string, items []domain.ItemRequest) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	AddOrderItem(ctx context.Context, orderID string, item domain.ItemRequest) (domain.Order, error)
	DeleteOrderItem(ctx context.Context, itemID string) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) (domain.Order, error)

	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error)
	ListSessionOrders(ctx context.Context, sessionID string) ([]domain.Order, error)
}

type OrderService struct {
	store  repository.Store
	notify domain.Notifier
	log    *logger.Logger
}

func NewOrderService(store repository.Store, notifier domain.Notifier, lg *logger.Logger) OrderServiceInterface {
	return &OrderService{store: store, notify: notifier, log: lg}
}

func validateItem(it domain.ItemRequest) error {
	if it.ProductID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}
	if it.Quantity <= 0 {
		return fmt.Errorf("%w: invalid quantity %d for product %s", domain.ErrInvalidInput, it.Quantity, it.ProductID)
	}
	return nil
}

// CreateOrder places an order against the open till. Register and session
// checks, stock decrements and inserts share one transaction; any failure
// leaves stock and orders untouched.
func (s *OrderService) CreateOrder(ctx context.Context, sessionID string, items []domain.ItemRequest) (created domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.create")
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.Int("order.lines", len(items)))
	defer func() { endSpan(span, err) }()

	if len(items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one item is required", domain.ErrInvalidInput)
	}
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return domain.Order{}, err
		}
	}

	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()

		// 1. till
		reg, err := q.OpenRegister(ctx, true)
		if err != nil {
			return err
		}
		// 2. session
		if err := q.LockActiveSession(ctx, sessionID, ts); err != nil {
			return err
		}
		// 3. products
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ProductID
		}
		products, err := q.ProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		// 4. stock, summed per product so repeated lines are checked together
		need := make(map[string]int, len(products))
		for _, it := range items {
			need[it.ProductID] += it.Quantity
		}
		for pid, qty := range need {
			if p := products[pid]; p.Stock < qty {
				return &domain.InsufficientStockError{Product: p.Name, Available: p.Stock, Requested: qty}
			}
		}
		// 5. total
		order := domain.Order{
			ID:             id.New(id.PrefixOrder),
			SessionID:      sessionID,
			CashRegisterID: reg.ID,
			Status:         domain.OrderPending,
			TotalAmount:    decimal.Zero,
			CreatedAt:      ts,
			UpdatedAt:      ts,
		}
		lines := make([]domain.OrderItem, len(items))
		for i, it := range items {
			p := products[it.ProductID]
			lines[i] = snapshotLine(order.ID, p, it.Quantity, ts)
			order.TotalAmount = order.TotalAmount.Add(lines[i].TotalPrice)
		}
		// 6. persist
		if err := q.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, line := range lines {
			if err := q.InsertOrderItem(ctx, line); err != nil {
				return err
			}
		}
		if err := takeStock(ctx, q, products, need, ts); err != nil {
			return err
		}
		// 7. read back with product details
		created, err = q.GetOrder(ctx, order.ID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	publishOrder(s.notify, domain.EventNewOrder, created)
	s.log.Info("order_created", map[string]any{
		"order_id": created.ID, "session_id": sessionID, "total_amount": created.TotalAmount.String(),
	})
	return created, nil
}

// snapshotLine copies the product's current price onto the line.
func snapshotLine(orderID string, p domain.Product, qty int, ts time.Time) domain.OrderItem {
	return domain.OrderItem{
		ID:         id.New(id.PrefixItem),
		OrderID:    orderID,
		ProductID:  p.ID,
		Quantity:   qty,
		UnitPrice:  p.Price,
		TotalPrice: p.Price.Mul(decimal.NewFromInt(int64(qty))),
		CreatedAt:  ts,
	}
}

// takeStock applies the conditional decrements in product id order, so two
// orders over the same products always lock rows in the same sequence.
func takeStock(ctx context.Context, q *repository.Queries, products map[string]domain.Product, need map[string]int, ts time.Time) error {
	pids := make([]string, 0, len(need))
	for pid := range need {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	for _, pid := range pids {
		ok, err := q.DecrementStock(ctx, pid, need[pid], ts)
		if err != nil {
			return err
		}
		if !ok {
			available, err := q.StockOf(ctx, pid)
			if err != nil {
				return err
			}
			return &domain.InsufficientStockError{Product: products[pid].Name, Available: available, Requested: need[pid]}
		}
	}
	return nil
}

func restoreStock(ctx context.Context, q *repository.Queries, items []domain.OrderItem, ts time.Time) error {
	for _, it := range items {
		if err := q.RestoreStock(ctx, it.ProductID, it.Quantity, ts); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (updated domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.update_status")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(status)))
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	var from domain.OrderStatus
	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		cur, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = cur.Status
		if !from.CanTransitionTo(status) {
			return &domain.InvalidTransitionError{From: from, To: status}
		}

		ok, err := q.UpdateOrderStatus(ctx, orderID, from, status, ts)
		if err != nil {
			return err
		}
		if !ok {
			// Someone else moved the order first; report against what they left.
			fresh, err := q.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			return &domain.InvalidTransitionError{From: fresh.Status, To: status}
		}

		// Re-read after the guarded update: lines added while it waited on
		// the row are only visible to a later statement.
		updated, err = q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if status == domain.OrderCancelled && from.Unprepared() {
			return restoreStock(ctx, q, updated.Items, ts)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	publishOrder(s.notify, domain.EventOrderStatusUpdated, updated)
	s.log.Info("order_status_updated", map[string]any{"order_id": orderID, "from": from, "to": status})
	return updated, nil
}

func (s *OrderService) AddOrderItem(ctx context.Context, orderID string, item domain.ItemRequest) (updated domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.add_item")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("product.id", item.ProductID))
	defer func() { endSpan(span, err) }()

	if err := validateItem(item); err != nil {
		return domain.Order{}, err
	}

	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		if _, err := q.LockEditableOrder(ctx, orderID, ts); err != nil {
			return err
		}
		p, err := q.GetProduct(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if p.Stock < item.Quantity {
			return &domain.InsufficientStockError{Product: p.Name, Available: p.Stock, Requested: item.Quantity}
		}
		products := map[string]domain.Product{p.ID: p}
		if err := takeStock(ctx, q, products, map[string]int{p.ID: item.Quantity}, ts); err != nil {
			return err
		}
		if err := q.InsertOrderItem(ctx, snapshotLine(orderID, p, item.Quantity, ts)); err != nil {
			return err
		}
		if _, err := q.RecomputeOrderTotal(ctx, orderID, ts); err != nil {
			return err
		}
		updated, err = q.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	publishOrder(s.notify, domain.EventOrderStatusUpdated, updated)
	s.log.Info("order_item_added", map[string]any{"order_id": orderID, "product_id": item.ProductID, "quantity": item.Quantity})
	return updated, nil
}

// DeleteOrderItem removes one line and recomputes the order total. Stock
// goes back to the product only while the kitchen has not started the order.
func (s *OrderService) DeleteOrderItem(ctx context.Context, itemID string) (updated domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.delete_item")
	span.SetAttributes(attribute.String("order_item.id", itemID))
	defer func() { endSpan(span, err) }()

	var restored bool
	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		it, err := q.GetOrderItem(ctx, itemID)
		if err != nil {
			return err
		}
		status, err := q.LockEditableOrder(ctx, it.OrderID, ts)
		if err != nil {
			return err
		}
		if err := q.DeleteOrderItem(ctx, itemID); err != nil {
			return err
		}
		if status.Unprepared() {
			if err := restoreStock(ctx, q, []domain.OrderItem{it}, ts); err != nil {
				return err
			}
			restored = true
		}
		if _, err := q.RecomputeOrderTotal(ctx, it.OrderID, ts); err != nil {
			return err
		}
		updated, err = q.GetOrder(ctx, it.OrderID)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	publishOrder(s.notify, domain.EventOrderStatusUpdated, updated)
	s.log.Info("order_item_deleted", map[string]any{"order_id": updated.ID, "item_id": itemID, "stock_restored": restored})
	return updated, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) (deleted domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.delete")
	span.SetAttributes(attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		status, err := q.LockDeletableOrder(ctx, orderID, ts)
		if err != nil {
			return err
		}
		deleted, err = q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if status.Unprepared() {
			if err := restoreStock(ctx, q, deleted.Items, ts); err != nil {
				return err
			}
		}
		ok, err := q.DeleteOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOrderNotPayable
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order_deleted", map[string]any{"order_id": orderID, "status": deleted.Status})
	return deleted, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.store.Read().GetOrder(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *status)
	}
	return s.store.Read().ListOrders(ctx, status)
}

func (s *OrderService) ListSessionOrders(ctx context.Context, sessionID string) ([]domain.Order, error) {
	q := s.store.Read()
	if _, err := q.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return q.OrdersBySession(ctx, sessionID)
}
