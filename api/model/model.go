/*
Copyright 2024 Flashcart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"errors"
	"time"

	"github.com/flashcart/flashcart/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

func positiveAmountValidation(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount type")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func issuanceWindowValidation(p *CreateCouponPool) validation.RuleFunc {
	return func(value interface{}) error {
		if !p.IssueEndAt.After(p.IssueStartAt) {
			return errors.New("issue_end_at must be after issue_start_at")
		}
		return nil
	}
}

func validityWindowValidation(p *CreateCouponPool) validation.RuleFunc {
	return func(value interface{}) error {
		if !p.ValidUntil.After(p.ValidFrom) {
			return errors.New("valid_until must be after valid_from")
		}
		return nil
	}
}

func (p *CreateCouponPool) ValidateCreateCouponPool() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Code, validation.Required),
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Type, validation.Required, validation.In(model.CouponTypeFixedAmount, model.CouponTypePercentage)),
		validation.Field(&p.DiscountValue, validation.By(positiveAmountValidation)),
		validation.Field(&p.TotalQuota, validation.Required, validation.Min(1)),
		validation.Field(&p.PerUserQuota, validation.Min(0)),
		validation.Field(&p.IssueStartAt, validation.Required),
		validation.Field(&p.IssueEndAt, validation.Required, validation.By(issuanceWindowValidation(p))),
		validation.Field(&p.ValidUntil, validation.By(validityWindowValidation(p))),
	)
}

func (c *ClaimCoupon) ValidateClaimCoupon() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserId, validation.Required),
	)
}

func (o *CreateOrder) ValidateCreateOrder() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.UserId, validation.Required),
		validation.Field(&o.IdempotencyKey, validation.Required, validation.Length(1, 255)),
	)
}

func (o *CancelOrder) ValidateCancelOrder() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.UserId, validation.Required),
	)
}

func (b *ChargeBalance) ValidateChargeBalance() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Amount, validation.By(positiveAmountValidation)),
	)
}

func (u *CreateUser) ValidateCreateUser() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Name, validation.Required),
	)
}

func (p *CreateProduct) ValidateCreateProduct() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Price, validation.By(positiveAmountValidation)),
		validation.Field(&p.Quantity, validation.Min(0)),
		validation.Field(&p.SafetyStock, validation.Min(0)),
	)
}

func (r *RestockProduct) ValidateRestockProduct() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
	)
}

func (a *AddToCart) ValidateAddToCart() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ProductId, validation.Required),
		validation.Field(&a.Quantity, validation.Required, validation.Min(1)),
	)
}

func (p *CreateCouponPool) ToCouponPool() model.CouponPool {
	return model.CouponPool{
		Code:                  p.Code,
		Name:                  p.Name,
		Description:           p.Description,
		Type:                  p.Type,
		DiscountValue:         p.DiscountValue,
		MinimumOrderAmount:    p.MinimumOrderAmount,
		MaximumDiscountAmount: p.MaximumDiscountAmount,
		TotalQuota:            p.TotalQuota,
		PerUserQuota:          p.PerUserQuota,
		IssueStartAt:          p.IssueStartAt,
		IssueEndAt:            p.IssueEndAt,
		ValidFrom:             p.ValidFrom,
		ValidUntil:            p.ValidUntil,
		Status:                model.PoolStatusActive,
		CreatedAt:             time.Now(),
		MetaData:              p.MetaData,
	}
}

func (u *CreateUser) ToUser() model.User {
	return model.User{
		Name:      u.Name,
		Balance:   u.Balance,
		CreatedAt: time.Now(),
		MetaData:  u.MetaData,
	}
}

func (p *CreateProduct) ToProduct() model.Product {
	return model.Product{
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		SafetyStock: p.SafetyStock,
		Status:      model.ProductStatusAvailable,
		CreatedAt:   time.Now(),
	}
}
