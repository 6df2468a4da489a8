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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

// CreateUser inserts a new user record with a zero or seeded balance.
//
// Parameters:
// - user: A model.User object containing the user information to be created.
//
// Returns:
// - model.User: The created user with its ID and timestamp populated.
// - error: Returns an APIError in case of failures such as database conflicts or other issues.
func (d Datasource) CreateUser(user model.User) (model.User, error) {
	metaDataJSON, err := json.Marshal(user.MetaData)
	if err != nil {
		return model.User{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	user.UserID = model.GenerateUUIDWithSuffix("usr")
	user.CreatedAt = time.Now()

	_, err = d.Conn.Exec(`
		INSERT INTO flashcart.users (user_id, name, balance, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5)
	`, user.UserID, user.Name, user.Balance, user.CreatedAt, &metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.User{}, apierror.NewAPIError(apierror.ErrConflict, "User with this ID already exists", err)
			default:
				return model.User{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.User{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create user", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by their unique ID.
//
// Parameters:
// - ctx: The context for the operation.
// - id: The unique ID of the user to retrieve.
//
// Returns:
// - *model.User: A pointer to the retrieved User object.
// - error: Returns an APIError if the user is not found or the query fails.
func (d Datasource) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT user_id, name, balance, created_at, meta_data
		FROM flashcart.users
		WHERE user_id = $1
	`, id)

	user, err := scanUserRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan user data", err)
	}

	return user, nil
}

// GetAllUsers retrieves users ordered by most recent first.
func (d Datasource) GetAllUsers(limit, offset int) ([]model.User, error) {
	rows, err := d.Conn.Query(`
		SELECT user_id, name, balance, created_at, meta_data
		FROM flashcart.users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve users", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var user model.User
		var metaDataJSON []byte
		err = rows.Scan(&user.UserID, &user.Name, &user.Balance, &user.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan user data", err)
		}
		if err = json.Unmarshal(metaDataJSON, &user.MetaData); err != nil && len(metaDataJSON) > 0 {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
		users = append(users, user)
	}
	return users, nil
}

// CreditBalance adds funds to a user's balance and records the movement in
// balance_histories. The user row is locked for the duration of the update
// so concurrent top-ups and debits serialize on the row.
//
// Parameters:
// - ctx: The context for the operation.
// - userID: The ID of the user to credit.
// - amount: The amount to add. Must be positive.
// - description: Free-form reason recorded in the history row.
//
// Returns:
// - *model.User: The user with the updated balance.
// - error: Returns an APIError if the user is not found or the update fails.
func (d Datasource) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal, description string) (*model.User, error) {
	if !amount.IsPositive() {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Credit amount must be positive", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	user, err := lockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	before := user.Balance
	user.Credit(amount)

	_, err = tx.ExecContext(ctx, `
		UPDATE flashcart.users SET balance = $2 WHERE user_id = $1
	`, userID, user.Balance)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}

	err = recordBalanceHistory(ctx, tx, model.BalanceHistory{
		UserID:        userID,
		Type:          model.BalanceTxCharge,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  user.Balance,
		Description:   description,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return user, nil
}

// GetBalanceHistory retrieves a user's balance movements, most recent first.
func (d Datasource) GetBalanceHistory(ctx context.Context, userID string, limit, offset int) ([]model.BalanceHistory, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT user_id, type, amount, balance_before, balance_after, COALESCE(description, ''), created_at
		FROM flashcart.balance_histories
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve balance history", err)
	}
	defer rows.Close()

	histories := []model.BalanceHistory{}
	for rows.Next() {
		var h model.BalanceHistory
		err = rows.Scan(&h.UserID, &h.Type, &h.Amount, &h.BalanceBefore, &h.BalanceAfter, &h.Description, &h.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan balance history", err)
		}
		histories = append(histories, h)
	}
	return histories, nil
}

// lockUser reads a user row with FOR UPDATE inside the given transaction.
// Callers hold the lock until the transaction ends.
func lockUser(ctx context.Context, tx *sql.Tx, userID string) (*model.User, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT user_id, name, balance, created_at, meta_data
		FROM flashcart.users
		WHERE user_id = $1
		FOR UPDATE
	`, userID)

	user, err := scanUserRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", userID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan user data", err)
	}
	return user, nil
}

// debitUser subtracts amount from an already locked user row and records the
// movement. The caller must have obtained the row lock via lockUser.
func debitUser(ctx context.Context, tx *sql.Tx, user *model.User, amount decimal.Decimal, txType, description string) error {
	if !user.CanDebit(amount) {
		return apierror.NewAPIError(apierror.ErrInsufficientBalance,
			fmt.Sprintf("Balance %s is below required amount %s", user.Balance.String(), amount.String()), nil)
	}

	before := user.Balance
	user.Debit(amount)

	_, err := tx.ExecContext(ctx, `
		UPDATE flashcart.users SET balance = $2 WHERE user_id = $1
	`, user.UserID, user.Balance)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}

	return recordBalanceHistory(ctx, tx, model.BalanceHistory{
		UserID:        user.UserID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  user.Balance,
		Description:   description,
	})
}

// creditUser adds amount to an already locked user row and records the
// movement. Used for refunds when an order is cancelled.
func creditUser(ctx context.Context, tx *sql.Tx, user *model.User, amount decimal.Decimal, txType, description string) error {
	before := user.Balance
	user.Credit(amount)

	_, err := tx.ExecContext(ctx, `
		UPDATE flashcart.users SET balance = $2 WHERE user_id = $1
	`, user.UserID, user.Balance)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}

	return recordBalanceHistory(ctx, tx, model.BalanceHistory{
		UserID:        user.UserID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  user.Balance,
		Description:   description,
	})
}

func recordBalanceHistory(ctx context.Context, tx *sql.Tx, h model.BalanceHistory) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO flashcart.balance_histories (user_id, type, amount, balance_before, balance_after, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, h.UserID, h.Type, h.Amount, h.BalanceBefore, h.BalanceAfter, h.Description)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record balance history", err)
	}
	return nil
}

func scanUserRow(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var metaDataJSON []byte
	err := row.Scan(&user.UserID, &user.Name, &user.Balance, &user.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &user.MetaData); err != nil {
			return nil, err
		}
	}
	return user, nil
}
