package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("pos: invalid input")

	ErrTableNotFound         = errors.New("pos: table not found")
	ErrTableHasActiveSession = errors.New("pos: cannot archive tables with active sessions")

	ErrSessionNotFound      = errors.New("pos: session not found")
	ErrSessionAlreadyActive = errors.New("pos: table already has an active session")
	ErrActiveOrdersPending  = errors.New("pos: cannot close session, there are active orders pending")
	ErrInvalidSession       = errors.New("pos: session is not active")

	ErrNoOpenRegister      = errors.New("pos: no open cash register")
	ErrRegisterAlreadyOpen = errors.New("pos: a cash register is already open")
	ErrUnsettledOrders     = errors.New("pos: cash register has unsettled orders")

	ErrProductNotFound         = errors.New("pos: product not found")
	ErrInsufficientStock       = errors.New("pos: insufficient stock")
	ErrInvalidStatusTransition = errors.New("pos: invalid status transition")
	ErrOrderNotFound           = errors.New("pos: order not found")
	ErrOrderItemNotFound       = errors.New("pos: order item not found")
	ErrOrderNotPayable         = errors.New("pos: order cannot be deleted because it is PAID")
	ErrOrderClosed             = errors.New("pos: order is already settled")
	ErrNoPendingOrders         = errors.New("pos: no pending orders to pay for this session")
)

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("pos: product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

type InsufficientStockError struct {
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("pos: insufficient stock for %s: available %d, requested %d",
		e.Product, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("pos: invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidStatusTransition }
