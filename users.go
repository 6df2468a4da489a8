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

package flashcart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/flashcart/flashcart/internal/notification"
	"github.com/flashcart/flashcart/model"
)

// CreateUser creates a new user account.
func (f *Flashcart) CreateUser(user model.User) (model.User, error) {
	return f.datasource.CreateUser(user)
}

// GetUser retrieves a user by ID.
func (f *Flashcart) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return f.datasource.GetUserByID(ctx, userID)
}

// GetAllUsers retrieves users with pagination.
func (f *Flashcart) GetAllUsers(limit, offset int) ([]model.User, error) {
	return f.datasource.GetAllUsers(limit, offset)
}

// ChargeBalance tops up a user's balance and emits the charge webhook.
func (f *Flashcart) ChargeBalance(ctx context.Context, userID string, amount decimal.Decimal, description string) (*model.User, error) {
	user, err := f.datasource.CreditBalance(ctx, userID, amount, description)
	if err != nil {
		return nil, err
	}

	if err := SendWebhook(NewWebhook{Event: EventBalanceCharged, Payload: user}); err != nil {
		notification.NotifyError(err)
	}
	return user, nil
}

// GetBalanceHistory retrieves a user's balance movements with pagination.
func (f *Flashcart) GetBalanceHistory(ctx context.Context, userID string, limit, offset int) ([]model.BalanceHistory, error) {
	return f.datasource.GetBalanceHistory(ctx, userID, limit, offset)
}
