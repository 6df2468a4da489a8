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
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

// GetOrderByIdempotencyKey retrieves the order previously committed for a
// user's idempotency key. Returns (nil, nil) when no such order exists.
func (d Datasource) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT order_id, order_number, user_id, COALESCE(claim_id, ''), total_amount, discount_amount, final_amount,
		       status, idempotency_key, created_at, paid_at
		FROM flashcart.orders
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key)

	order, err := scanOrderRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order data", err)
	}

	if err := d.loadOrderItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// RecordOrder atomically persists a checkout. Inside a single database
// transaction it decrements stock for every line, debits the buyer's
// balance, consumes the coupon claim when one is attached, draws the next
// daily order number, and inserts the order with its items. Resources are
// always taken in the same fixed order (stock, then balance, then sequence)
// so concurrent checkouts cannot deadlock. Any failure rolls the whole
// transaction back, leaving no partial effects.
//
// Parameters:
// - ctx: The context for the operation.
// - order: The order to persist. Amounts, items, claim and status must be set by the caller; OrderNumber is assigned here.
// - clearCart: When true the user's cart lines are deleted in the same transaction.
//
// Returns:
// - *model.Order: The persisted order with its daily number assigned.
// - error: Returns an APIError describing the first step that failed.
func (d Datasource) RecordOrder(ctx context.Context, order *model.Order, clearCart bool) (*model.Order, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch config", err)
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

	// Stock first, rows taken in ascending product ID regardless of cart
	// insertion order, so two carts holding the same products can never
	// acquire the version-guarded rows in opposite orders. A shortfall
	// fails everything before money moves.
	sortItemsByProduct(order.Items)
	for i := range order.Items {
		item := &order.Items[i]
		_, err := decreaseStock(ctx, tx, item.ProductID, item.Quantity, cnf.Order.MaxStockRetries,
			fmt.Sprintf("order %s", order.OrderID))
		if err != nil {
			return nil, err
		}
	}

	// Balance second.
	buyer, err := lockUser(ctx, tx, order.UserID)
	if err != nil {
		return nil, err
	}
	err = debitUser(ctx, tx, buyer, order.FinalAmount, model.BalanceTxDebit, fmt.Sprintf("order %s", order.OrderID))
	if err != nil {
		return nil, err
	}

	if order.ClaimID != "" {
		usedAt := time.Now()
		if order.PaidAt != nil {
			usedAt = *order.PaidAt
		}
		if err := markClaimUsed(ctx, tx, order.ClaimID, usedAt); err != nil {
			return nil, err
		}
	}

	// Sequence last.
	seq, err := nextOrderSequence(ctx, tx, order.CreatedAt)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = seq.OrderNumber()

	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	if clearCart {
		if err := clearCartTx(ctx, tx, order.UserID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return order, nil
}

// RevertOrder atomically undoes a committed order: the order flips to
// CANCELLED, every stock decrement is restored, the buyer is refunded, and
// an attached coupon claim returns to ISSUED. Resources are taken in the
// same fixed order as RecordOrder so cancels and checkouts cannot deadlock
// against each other.
func (d Datasource) RevertOrder(ctx context.Context, order *model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// The status guard makes cancellation race-safe: only one transaction
	// can move the order out of a cancellable state.
	result, err := tx.ExecContext(ctx, `
		UPDATE flashcart.orders
		SET status = $2
		WHERE order_id = $1 AND status IN ($3, $4)
	`, order.OrderID, model.OrderStatusCancelled, model.OrderStatusPending, model.OrderStatusPaid)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to cancel order", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Order '%s' is not in a cancellable state", order.OrderID), nil)
	}

	sortItemsByProduct(order.Items)
	for i := range order.Items {
		item := &order.Items[i]
		_, err := increaseStock(ctx, tx, item.ProductID, item.Quantity, fmt.Sprintf("cancel order %s", order.OrderID))
		if err != nil {
			return err
		}
	}

	buyer, err := lockUser(ctx, tx, order.UserID)
	if err != nil {
		return err
	}
	err = creditUser(ctx, tx, buyer, order.FinalAmount, model.BalanceTxRefund, fmt.Sprintf("cancel order %s", order.OrderID))
	if err != nil {
		return err
	}

	if order.ClaimID != "" {
		if err := restoreClaim(ctx, tx, order.ClaimID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// GetOrderByID retrieves an order and its items by the order's unique ID.
func (d Datasource) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT order_id, order_number, user_id, COALESCE(claim_id, ''), total_amount, discount_amount, final_amount,
		       status, idempotency_key, created_at, paid_at
		FROM flashcart.orders
		WHERE order_id = $1
	`, orderID)

	order, err := scanOrderRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with ID '%s' not found", orderID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order data", err)
	}

	if err := d.loadOrderItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByNumber retrieves an order and its items by its daily number.
func (d Datasource) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT order_id, order_number, user_id, COALESCE(claim_id, ''), total_amount, discount_amount, final_amount,
		       status, idempotency_key, created_at, paid_at
		FROM flashcart.orders
		WHERE order_number = $1
	`, orderNumber)

	order, err := scanOrderRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with number '%s' not found", orderNumber), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order data", err)
	}

	if err := d.loadOrderItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrdersByUser retrieves a user's orders, most recent first. Items are
// not loaded; list views only need the order headers.
func (d Datasource) GetOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT order_id, order_number, user_id, COALESCE(claim_id, ''), total_amount, discount_amount, final_amount,
		       status, idempotency_key, created_at, paid_at
		FROM flashcart.orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve orders", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var order model.Order
		var paidAt sql.NullTime
		err = rows.Scan(&order.OrderID, &order.OrderNumber, &order.UserID, &order.ClaimID, &order.TotalAmount,
			&order.DiscountAmount, &order.FinalAmount, &order.Status, &order.IdempotencyKey, &order.CreatedAt, &paidAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order data", err)
		}
		if paidAt.Valid {
			order.PaidAt = &paidAt.Time
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateOrderStatus updates an order's status.
func (d Datasource) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE flashcart.orders SET status = $2 WHERE order_id = $1
	`, orderID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update order status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with ID '%s' not found", orderID), nil)
	}
	return nil
}

// sortItemsByProduct puts line items in ascending product ID, the fixed
// acquisition order for stock rows shared by RecordOrder and RevertOrder.
func sortItemsByProduct(items []model.OrderItem) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
}

// nextOrderSequence draws the next number from the day's sequence row while
// holding its row lock. The row is seeded on first use; concurrent seeders
// lose the insert race harmlessly and block on the lock instead, so numbers
// within a day are strictly increasing and gap-free.
func nextOrderSequence(ctx context.Context, tx *sql.Tx, at time.Time) (*model.OrderSequence, error) {
	date := at.Format("2006-01-02")

	_, err := tx.ExecContext(ctx, `
		INSERT INTO flashcart.order_sequences (seq_date, current_value)
		VALUES ($1, 0)
		ON CONFLICT (seq_date) DO NOTHING
	`, date)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to seed order sequence", err)
	}

	seq := &model.OrderSequence{Date: date}
	err = tx.QueryRowContext(ctx, `
		SELECT current_value FROM flashcart.order_sequences WHERE seq_date = $1 FOR UPDATE
	`, date).Scan(&seq.Value)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock order sequence", err)
	}

	seq.Next()
	_, err = tx.ExecContext(ctx, `
		UPDATE flashcart.order_sequences SET current_value = $2 WHERE seq_date = $1
	`, date, seq.Value)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to advance order sequence", err)
	}
	return seq, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order *model.Order) error {
	var claimID interface{} = order.ClaimID
	if order.ClaimID == "" {
		claimID = nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO flashcart.orders
			(order_id, order_number, user_id, claim_id, total_amount, discount_amount, final_amount, status, idempotency_key, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, order.OrderID, order.OrderNumber, order.UserID, claimID, order.TotalAmount, order.DiscountAmount,
		order.FinalAmount, order.Status, order.IdempotencyKey, order.CreatedAt, order.PaidAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			// A concurrent attempt with the same idempotency key committed
			// first; the caller should replay the stored order.
			return apierror.NewAPIError(apierror.ErrDuplicateRequest, "Order with this idempotency key already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert order", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.OrderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO flashcart.order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
		`, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert order item", err)
		}
	}
	return nil
}

func (d Datasource) loadOrderItems(ctx context.Context, order *model.Order) error {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM flashcart.order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, order.OrderID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order items", err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var item model.OrderItem
		err = rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan order item", err)
		}
		items = append(items, item)
	}
	order.Items = items
	return nil
}

func scanOrderRow(row *sql.Row) (*model.Order, error) {
	order := &model.Order{}
	var paidAt sql.NullTime
	err := row.Scan(&order.OrderID, &order.OrderNumber, &order.UserID, &order.ClaimID, &order.TotalAmount,
		&order.DiscountAmount, &order.FinalAmount, &order.Status, &order.IdempotencyKey, &order.CreatedAt, &paidAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	return order, nil
}
