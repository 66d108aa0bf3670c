package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemRequest is one line of an order being placed.
type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type MethodTotal struct {
	Method PaymentMethod   `json:"method"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

type ProductSold struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// RegisterSummary is what a till shows while open and what it persists when
// it closes. Both are produced by the same computation.
type RegisterSummary struct {
	RegisterID       string          `json:"registerId"`
	Status           RegisterStatus  `json:"status"`
	OpenedAt         time.Time       `json:"openedAt"`
	ClosedAt         *time.Time      `json:"closedAt,omitempty"`
	InitialValue     decimal.Decimal `json:"initialValue"`
	TotalPayments    decimal.Decimal `json:"totalPayments"`
	FinalValue       decimal.Decimal `json:"finalValue"`
	PaymentsByMethod []MethodTotal   `json:"paymentsByMethod"`
	SoldProducts     []ProductSold   `json:"soldProducts"`
}

// BillResult is the outcome of settling a session. Payment is nil on the
// zero-total path.
type BillResult struct {
	Payment       *Payment `json:"payment"`
	UpdatedOrders int      `json:"updatedOrderCount"`
	SessionClosed bool     `json:"sessionClosed"`
}
