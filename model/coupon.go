package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon pool lifecycle statuses.
const (
	PoolStatusActive    = "ACTIVE"
	PoolStatusExhausted = "EXHAUSTED"
	PoolStatusInactive  = "INACTIVE"
	PoolStatusExpired   = "EXPIRED"
)

// Coupon discount types.
const (
	CouponTypeFixedAmount = "FIXED_AMOUNT"
	CouponTypePercentage  = "PERCENTAGE"
)

// Claim statuses.
const (
	ClaimStatusIssued  = "ISSUED"
	ClaimStatusUsed    = "USED"
	ClaimStatusExpired = "EXPIRED"
	ClaimStatusRevoked = "REVOKED"
)

// CouponPool is a first-come-first-served coupon campaign. The authoritative
// issued count lives in the atomic quota store; IssuedCount here is an
// eventually consistent projection reconciled by the claim-projection worker.
type CouponPool struct {
	ID                    int64           `json:"-"`
	PoolID                string          `json:"pool_id"`
	Code                  string          `json:"code"`
	Name                  string          `json:"name"`
	Description           string          `json:"description,omitempty"`
	Type                  string          `json:"type"`
	DiscountValue         decimal.Decimal `json:"discount_value"`
	MinimumOrderAmount    decimal.Decimal `json:"minimum_order_amount"`
	MaximumDiscountAmount decimal.Decimal `json:"maximum_discount_amount"`
	TotalQuota            int64           `json:"total_quota"`
	IssuedCount           int64           `json:"issued_count"`
	PerUserQuota          int64           `json:"per_user_quota"`
	IssueStartAt          time.Time       `json:"issue_start_at"`
	IssueEndAt            time.Time       `json:"issue_end_at"`
	ValidFrom             time.Time       `json:"valid_from"`
	ValidUntil            time.Time       `json:"valid_until"`
	Status                string          `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	MetaData              map[string]interface{} `json:"meta_data,omitempty"`
}

// CouponClaim is one coupon unit granted to one user. Rank is the 1-based
// position of the user's first claim in the pool's issuance order.
type CouponClaim struct {
	ID       int64     `json:"-"`
	ClaimID  string    `json:"claim_id"`
	PoolID   string    `json:"pool_id"`
	UserID   string    `json:"user_id"`
	UserSeq  int64     `json:"user_seq"`
	Status   string    `json:"status"`
	Rank     int64     `json:"rank"`
	IssuedAt time.Time `json:"issued_at"`
	UsedAt   *time.Time `json:"used_at,omitempty"`
}

// IssuanceOpen reports whether the pool can accept a claim attempt right now.
// The quota check itself is not done here; only the relational preconditions
// the engine evaluates before touching the quota store. EXHAUSTED counts as
// open: the relational status trails the quota store, which owns the
// sold-out answer.
func (p *CouponPool) IssuanceOpen(now time.Time) bool {
	return (p.Status == PoolStatusActive || p.Status == PoolStatusExhausted) &&
		!now.Before(p.IssueStartAt) &&
		now.Before(p.IssueEndAt)
}

// IssuanceNotYetOpen distinguishes "not yet open" from "closed" for caller
// messaging.
func (p *CouponPool) IssuanceNotYetOpen(now time.Time) bool {
	return now.Before(p.IssueStartAt)
}

// ValidForUse reports whether a claim from this pool can be applied to an
// order at the given time.
func (p *CouponPool) ValidForUse(now time.Time) bool {
	return !now.Before(p.ValidFrom) && now.Before(p.ValidUntil)
}

// CalculateDiscount computes the discount for an order subtotal. Percentage
// discounts are rounded down to 2 decimal places and capped at
// MaximumDiscountAmount when one is set. The discount never exceeds the
// subtotal.
func (p *CouponPool) CalculateDiscount(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	if p.Type == CouponTypeFixedAmount {
		discount = p.DiscountValue
	} else {
		discount = subtotal.Mul(p.DiscountValue).Div(decimal.NewFromInt(100)).RoundDown(2)
		if p.MaximumDiscountAmount.IsPositive() && discount.GreaterThan(p.MaximumDiscountAmount) {
			discount = p.MaximumDiscountAmount
		}
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount
}

// MeetsMinimum reports whether the subtotal satisfies the pool's
// minimum-order-amount requirement.
func (p *CouponPool) MeetsMinimum(subtotal decimal.Decimal) bool {
	if p.MinimumOrderAmount.IsZero() {
		return true
	}
	return subtotal.GreaterThanOrEqual(p.MinimumOrderAmount)
}

// ApplyProjectedIssue folds one projected claim into the relational copy of
// the issued count and derives the EXHAUSTED transition.
func (p *CouponPool) ApplyProjectedIssue() {
	p.IssuedCount++
	if p.IssuedCount >= p.TotalQuota {
		p.Status = PoolStatusExhausted
	}
}

// CanUse reports whether the claim is consumable by an order.
func (c *CouponClaim) CanUse() bool {
	return c.Status == ClaimStatusIssued
}

// MarkUsed transitions the claim to USED with the given use timestamp.
func (c *CouponClaim) MarkUsed(at time.Time) {
	c.Status = ClaimStatusUsed
	c.UsedAt = &at
}

// Restore returns a used claim to ISSUED, used when an order is cancelled.
func (c *CouponClaim) Restore() {
	c.Status = ClaimStatusIssued
	c.UsedAt = nil
}
