package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusFailed    = "FAILED"
	OrderStatusCancelled = "CANCELLED"
)

// Order is the committed result of one order-creation attempt. It is created
// exactly once per idempotency key and immutable once PAID apart from the
// cancel transition.
type Order struct {
	ID             int64           `json:"-"`
	OrderID        string          `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id"`
	ClaimID        string          `json:"claim_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Status         string          `json:"status"`
	IdempotencyKey string          `json:"idempotency_key"`
	Items          []OrderItem     `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// OrderItem is one ordered line with the unit price captured at order time.
type OrderItem struct {
	ID        int64           `json:"-"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderSequence is the daily row producing strictly increasing order numbers.
// It is only ever incremented while its row lock is held.
type OrderSequence struct {
	Date  string `json:"date"` // yyyy-mm-dd
	Value int64  `json:"value"`
}

// Next increments the sequence and returns the new value.
func (s *OrderSequence) Next() int64 {
	s.Value++
	return s.Value
}

// OrderNumber formats the current sequence value as ORD-YYYYMMDD-NNNNNN.
func (s *OrderSequence) OrderNumber() string {
	datePart := strings.ReplaceAll(s.Date, "-", "")
	return fmt.Sprintf("ORD-%s-%06d", datePart, s.Value)
}

// NewOrderSequence starts a fresh sequence for the given day. The first call
// to Next returns 1.
func NewOrderSequence(date time.Time) *OrderSequence {
	return &OrderSequence{Date: date.Format("2006-01-02"), Value: 0}
}

// Cancellable reports whether the order can still be cancelled.
func (o *Order) Cancellable() bool {
	return o.Status == OrderStatusPaid
}

// Subtotal sums the line totals of the order's items.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}
