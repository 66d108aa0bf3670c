package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionClosed SessionStatus = "CLOSED"
)

type RegisterStatus string

const (
	RegisterOpen   RegisterStatus = "OPEN"
	RegisterClosed RegisterStatus = "CLOSED"
)

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentPix        PaymentMethod = "PIX"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentPix:
		return true
	}
	return false
}

type PaymentStatus string

const PaymentCompleted PaymentStatus = "COMPLETED"

type Table struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID        string        `json:"id"`
	Code      string        `json:"code"`
	TableID   string        `json:"tableId"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	ClosedAt  *time.Time    `json:"closedAt,omitempty"`

	TableNumber int     `json:"tableNumber,omitempty"`
	Orders      []Order `json:"orders,omitempty"`
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ProductRef is the product summary embedded in an order line.
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Order struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"sessionId"`
	CashRegisterID string          `json:"cashRegisterId"`
	Status         OrderStatus     `json:"status"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	TableNumber int         `json:"tableNumber,omitempty"`
	Items       []OrderItem `json:"items"`
}

// OrderItem keeps UnitPrice and TotalPrice as they were when the line was
// created. Later product price edits never touch them.
type OrderItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`

	Product ProductRef `json:"product"`
}

type CashRegister struct {
	ID                string           `json:"id"`
	Status            RegisterStatus   `json:"status"`
	InitialValue      decimal.Decimal  `json:"initialValue"`
	TotalPayments     *decimal.Decimal `json:"totalPayments,omitempty"`
	FinalValue        *decimal.Decimal `json:"finalValue,omitempty"`
	PaymentsBreakdown []MethodTotal    `json:"paymentsBreakdown,omitempty"`
	ProductsSold      []ProductSold    `json:"productsSold,omitempty"`
	OpenedAt          time.Time        `json:"openedAt"`
	ClosedAt          *time.Time       `json:"closedAt,omitempty"`
}

type Payment struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"sessionId"`
	CashRegisterID string          `json:"cashRegisterId"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Status         PaymentStatus   `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}
