package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product stock statuses.
const (
	ProductStatusAvailable  = "AVAILABLE"
	ProductStatusOutOfStock = "OUT_OF_STOCK"
)

// Product carries the stock ledger row for one product. Version is the
// optimistic concurrency counter: it increments on every successful write and
// a stale version on write means a lost update was prevented.
type Product struct {
	ID          int64           `json:"-"`
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	SafetyStock int64           `json:"safety_stock"`
	Status      string          `json:"status"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Stock movement types recorded in stock histories.
const (
	StockTxDecrease = "DECREASE"
	StockTxIncrease = "INCREASE"
)

// StockHistory records one stock movement with before/after snapshots.
type StockHistory struct {
	ID          int64     `json:"-"`
	ProductID   string    `json:"product_id"`
	Type        string    `json:"type"`
	Quantity    int64     `json:"quantity"`
	StockBefore int64     `json:"stock_before"`
	StockAfter  int64     `json:"stock_after"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasStock reports whether the requested quantity can be taken.
func (p *Product) HasStock(quantity int64) bool {
	return p.Quantity >= quantity
}

// DecreaseStock takes quantity units off the row and flips the status to
// OUT_OF_STOCK when the row reaches zero. Callers must have verified
// HasStock first; the database write additionally guards with a version
// check.
func (p *Product) DecreaseStock(quantity int64) {
	p.Quantity -= quantity
	if p.Quantity == 0 {
		p.Status = ProductStatusOutOfStock
	}
}

// IncreaseStock returns quantity units to the row, reopening availability.
func (p *Product) IncreaseStock(quantity int64) {
	p.Quantity += quantity
	if p.Quantity > 0 {
		p.Status = ProductStatusAvailable
	}
}

// BelowSafetyStock reports whether the row has fallen to or under its
// safety-stock threshold.
func (p *Product) BelowSafetyStock() bool {
	return p.Quantity <= p.SafetyStock
}
