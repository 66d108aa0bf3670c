package domain

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

// transitions lists the edges reachable through a status update. Only bill
// settlement sets PAID.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady},
	OrderReady:     {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady,
		OrderDelivered, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// InKitchen reports whether the order blocks closing its session. CONFIRMED
// does not: the table has agreed to it and it is billed with the rest.
func (s OrderStatus) InKitchen() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady:
		return true
	}
	return false
}

// Settled reports whether the order can no longer be billed or edited.
func (s OrderStatus) Settled() bool {
	return s == OrderPaid || s == OrderCancelled
}

// Unprepared reports whether the kitchen has not started the order yet, so
// its stock can go back on the shelf.
func (s OrderStatus) Unprepared() bool {
	return s == OrderPending || s == OrderConfirmed
}

// KitchenStatuses is the SQL-facing list behind InKitchen.
var KitchenStatuses = []OrderStatus{OrderPending, OrderPreparing, OrderReady}
