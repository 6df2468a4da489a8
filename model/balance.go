package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance movement types recorded in balance histories.
const (
	BalanceTxCharge = "CHARGE"
	BalanceTxDebit  = "DEBIT"
	BalanceTxRefund = "REFUND"
)

// User carries the balance ledger row for one user. The balance is only ever
// mutated inside a transaction holding the row's exclusive lock.
type User struct {
	ID        int64           `json:"-"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
}

// BalanceHistory records one balance movement with before/after snapshots.
type BalanceHistory struct {
	ID            int64           `json:"-"`
	UserID        string          `json:"user_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CanDebit reports whether the current balance covers amount.
func (u *User) CanDebit(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// Debit subtracts amount from the balance. Callers must have verified
// CanDebit while holding the row lock.
func (u *User) Debit(amount decimal.Decimal) {
	u.Balance = u.Balance.Sub(amount)
}

// Credit adds amount to the balance.
func (u *User) Credit(amount decimal.Decimal) {
	u.Balance = u.Balance.Add(amount)
}
