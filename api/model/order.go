package model

import (
	"github.com/shopspring/decimal"
)

type CreateOrder struct {
	UserId         string `json:"user_id"`
	IdempotencyKey string `json:"idempotency_key"`
	ClaimId        string `json:"claim_id"`
}

type CancelOrder struct {
	UserId string `json:"user_id"`
}

type ChargeBalance struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}
