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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/internal/apierror"
	redlock "github.com/flashcart/flashcart/internal/lock"
	"github.com/flashcart/flashcart/internal/notification"
	"github.com/flashcart/flashcart/model"
)

var orderTracer = otel.Tracer("flashcart.orders")

func orderLockKey(userID string) string {
	return fmt.Sprintf("order:user:lock:%s", userID)
}

// acquireOrderLock serializes all order attempts of one user behind a
// distributed lock. The lease bounds how long a crashed holder can block
// others; the wait bounds how long a caller queues before giving up.
func (f *Flashcart) acquireOrderLock(ctx context.Context, userID string) (*redlock.Locker, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	locker := redlock.NewLocker(f.redis, orderLockKey(userID), model.GenerateUUIDWithSuffix("loc"))
	lease := time.Duration(cnf.Order.LockLeaseSeconds) * time.Second
	wait := time.Duration(cnf.Order.LockWaitSeconds) * time.Second
	if err := locker.WaitLock(ctx, lease, wait); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Could not acquire order lock for user '%s'", userID), err)
	}
	return locker, nil
}

// CreateOrder turns a user's cart into a committed order, exactly once per
// idempotency key.
//
// The flow: replay the stored order if the key was already used; otherwise
// take the user's distributed order lock, re-check the key under the lock,
// price the cart, apply the coupon claim when one is attached, and hand the
// whole thing to the datasource which commits stock, balance, claim usage,
// the daily order number and the order rows in one database transaction.
// Any refusal (shortfall, insufficient balance, invalid claim) surfaces
// before anything is committed, so a failed attempt leaves no trace and the
// idempotency key remains unused.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - userID string: The buying user.
// - idempotencyKey string: Client-chosen key making the attempt replay-safe.
// - claimID string: Optional coupon claim to apply; empty for none.
//
// Returns:
// - *model.Order: The committed (or replayed) order.
// - error: An APIError describing the refusal.
func (f *Flashcart) CreateOrder(ctx context.Context, userID, idempotencyKey, claimID string) (*model.Order, error) {
	ctx, span := orderTracer.Start(ctx, "Create Order")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if idempotencyKey == "" {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Idempotency key is required", nil)
	}

	existing, err := f.datasource.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("order.replayed", true))
		return existing, nil
	}

	locker, err := f.acquireOrderLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		err := locker.Unlock(ctx)
		if err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	// A concurrent attempt with the same key may have committed while we
	// waited for the lock.
	existing, err = f.datasource.GetOrderByIdempotencyKey(ctx, userID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("order.replayed", true))
		return existing, nil
	}

	items, err := f.datasource.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrEmptyCart, "Cart is empty", nil)
	}

	subtotal := decimal.Zero
	orderItems := make([]model.OrderItem, 0, len(items))
	for i := range items {
		item := &items[i]
		subtotal = subtotal.Add(item.LineTotal())
		orderItems = append(orderItems, model.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	now := time.Now()
	discount := decimal.Zero
	if claimID != "" {
		discount, err = f.priceClaim(ctx, claimID, userID, subtotal, now)
		if err != nil {
			return nil, err
		}
	}

	order := &model.Order{
		OrderID:        model.GenerateUUIDWithSuffix("ord"),
		UserID:         userID,
		ClaimID:        claimID,
		TotalAmount:    subtotal,
		DiscountAmount: discount,
		FinalAmount:    subtotal.Sub(discount),
		Status:         model.OrderStatusPaid,
		IdempotencyKey: idempotencyKey,
		Items:          orderItems,
		CreatedAt:      now,
		PaidAt:         ptr.Time(now),
	}

	committed, err := f.datasource.RecordOrder(ctx, order, true)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", committed.OrderNumber))

	f.postOrderActions(ctx, committed)
	return committed, nil
}

// priceClaim validates a coupon claim against the buyer and subtotal and
// returns the discount it yields. The claim's actual consumption happens
// inside the order transaction; this only prices and pre-validates it.
func (f *Flashcart) priceClaim(ctx context.Context, claimID, userID string, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	claim, err := f.datasource.GetClaimByID(ctx, claimID)
	if err != nil {
		return decimal.Zero, err
	}
	if claim.UserID != userID {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrCouponInvalid,
			fmt.Sprintf("Claim '%s' does not belong to user '%s'", claimID, userID), nil)
	}
	if !claim.CanUse() {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrCouponInvalid,
			fmt.Sprintf("Claim '%s' is %s", claimID, claim.Status), nil)
	}

	pool, err := f.datasource.GetCouponPool(ctx, claim.PoolID)
	if err != nil {
		return decimal.Zero, err
	}
	if !pool.ValidForUse(now) {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrCouponInvalid,
			fmt.Sprintf("Coupon '%s' is outside its validity window", pool.Code), nil)
	}
	if !pool.MeetsMinimum(subtotal) {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrCouponInvalid,
			fmt.Sprintf("Order subtotal %s is below the coupon minimum %s", subtotal.String(), pool.MinimumOrderAmount.String()), nil)
	}

	return pool.CalculateDiscount(subtotal), nil
}

// postOrderActions emits the order webhook and flags products that dropped
// below their safety stock. Failures are reported, never propagated; the
// order is already committed.
func (f *Flashcart) postOrderActions(ctx context.Context, order *model.Order) {
	if err := SendWebhook(NewWebhook{Event: EventOrderCreated, Payload: order}); err != nil {
		notification.NotifyError(err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		product, err := f.datasource.GetProductByID(ctx, item.ProductID)
		if err != nil {
			continue
		}
		if product.BelowSafetyStock() {
			if err := SendWebhook(NewWebhook{Event: EventStockLow, Payload: product}); err != nil {
				notification.NotifyError(err)
			}
		}
	}
}

// CancelOrder reverts a committed order: stock returns, the buyer is
// refunded, and an attached claim becomes usable again. Only the order's
// owner can cancel it.
func (f *Flashcart) CancelOrder(ctx context.Context, orderID, userID string) (*model.Order, error) {
	ctx, span := orderTracer.Start(ctx, "Cancel Order")
	defer span.End()

	order, err := f.datasource.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apierror.NewAPIError(apierror.ErrNotFound,
			fmt.Sprintf("Order with ID '%s' not found", orderID), nil)
	}

	locker, err := f.acquireOrderLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		err := locker.Unlock(ctx)
		if err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	if err := f.datasource.RevertOrder(ctx, order); err != nil {
		return nil, err
	}
	order.Status = model.OrderStatusCancelled

	if err := SendWebhook(NewWebhook{Event: EventOrderCancelled, Payload: order}); err != nil {
		notification.NotifyError(err)
	}
	return order, nil
}

// GetOrder retrieves an order and its items by ID.
func (f *Flashcart) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return f.datasource.GetOrderByID(ctx, orderID)
}

// GetOrderByNumber retrieves an order and its items by its daily number.
func (f *Flashcart) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return f.datasource.GetOrderByNumber(ctx, orderNumber)
}

// GetUserOrders retrieves a user's order headers with pagination.
func (f *Flashcart) GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	return f.datasource.GetOrdersByUser(ctx, userID, limit, offset)
}
