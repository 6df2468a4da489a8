package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a user's cart. UnitPrice is the price captured at
// add time; the orchestrator snapshots these lines, never mutates them.
type CartItem struct {
	ID        int64           `json:"-"`
	UserID    string          `json:"user_id"`
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineTotal is quantity times the captured unit price.
func (c *CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(c.Quantity))
}
