package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateCouponPool struct {
	Code                  string                 `json:"code"`
	Name                  string                 `json:"name"`
	Description           string                 `json:"description"`
	Type                  string                 `json:"type"`
	DiscountValue         decimal.Decimal        `json:"discount_value"`
	MinimumOrderAmount    decimal.Decimal        `json:"minimum_order_amount"`
	MaximumDiscountAmount decimal.Decimal        `json:"maximum_discount_amount"`
	TotalQuota            int64                  `json:"total_quota"`
	PerUserQuota          int64                  `json:"per_user_quota"`
	IssueStartAt          time.Time              `json:"issue_start_at"`
	IssueEndAt            time.Time              `json:"issue_end_at"`
	ValidFrom             time.Time              `json:"valid_from"`
	ValidUntil            time.Time              `json:"valid_until"`
	MetaData              map[string]interface{} `json:"meta_data"`
}

type ClaimCoupon struct {
	UserId string `json:"user_id"`
}
