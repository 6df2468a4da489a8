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

	"github.com/lib/pq"

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

// AddCartItem adds a product line to a user's cart. An existing line for the
// same product is replaced, capturing the current quantity and unit price.
func (d Datasource) AddCartItem(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if item.Quantity <= 0 {
		return model.CartItem{}, apierror.NewAPIError(apierror.ErrBadRequest, "Cart quantity must be positive", nil)
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO flashcart.cart_items (user_id, product_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price
	`, item.UserID, item.ProductID, item.Quantity, item.UnitPrice)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return model.CartItem{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid user or product ID", err)
		}
		return model.CartItem{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to add cart item", err)
	}

	return item, nil
}

// GetCartItems retrieves all cart lines for a user in insertion order.
func (d Datasource) GetCartItems(ctx context.Context, userID string) ([]model.CartItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT user_id, product_id, quantity, unit_price, created_at
		FROM flashcart.cart_items
		WHERE user_id = $1
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve cart items", err)
	}
	defer rows.Close()

	items := []model.CartItem{}
	for rows.Next() {
		var item model.CartItem
		err = rows.Scan(&item.UserID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan cart item", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// RemoveCartItem removes one product line from a user's cart.
func (d Datasource) RemoveCartItem(ctx context.Context, userID, productID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM flashcart.cart_items WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to remove cart item", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Cart item not found", nil)
	}
	return nil
}

// ClearCart removes all cart lines for a user.
func (d Datasource) ClearCart(ctx context.Context, userID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		DELETE FROM flashcart.cart_items WHERE user_id = $1
	`, userID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear cart", err)
	}
	return nil
}

// clearCartTx removes all cart lines for a user inside an existing
// transaction. Checkout consumes the cart in the same transaction that
// persists the order.
func clearCartTx(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM flashcart.cart_items WHERE user_id = $1
	`, userID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear cart", err)
	}
	return nil
}
