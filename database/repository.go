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
	"time"

	"github.com/shopspring/decimal"

	"github.com/flashcart/flashcart/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	user    // Interface for user and balance operations
	product // Interface for product and stock operations
	cart    // Interface for cart operations
	coupon  // Interface for coupon pool and claim operations
	order   // Interface for order operations
}

// user defines methods for handling users and their balances.
type user interface {
	CreateUser(user model.User) (model.User, error)                                                                       // Creates a new user
	GetUserByID(ctx context.Context, id string) (*model.User, error)                                                      // Retrieves a user by ID
	GetAllUsers(limit, offset int) ([]model.User, error)                                                                  // Retrieves all users
	CreditBalance(ctx context.Context, userID string, amount decimal.Decimal, description string) (*model.User, error)    // Credits a user's balance
	GetBalanceHistory(ctx context.Context, userID string, limit, offset int) ([]model.BalanceHistory, error)              // Retrieves balance movements for a user
}

// product defines methods for handling products and stock.
type product interface {
	CreateProduct(product model.Product) (model.Product, error)                                              // Creates a new product
	GetProductByID(ctx context.Context, id string) (*model.Product, error)                                   // Retrieves a product by ID
	GetAllProducts(limit, offset int) ([]model.Product, error)                                               // Retrieves all products
	RestockProduct(ctx context.Context, productID string, quantity int64) (*model.Product, error)            // Adds stock to a product
	GetStockHistory(ctx context.Context, productID string, limit, offset int) ([]model.StockHistory, error)  // Retrieves stock movements for a product
}

// cart defines methods for handling cart items.
type cart interface {
	AddCartItem(ctx context.Context, item model.CartItem) (model.CartItem, error) // Adds or replaces a cart line
	GetCartItems(ctx context.Context, userID string) ([]model.CartItem, error)    // Retrieves all cart lines for a user
	RemoveCartItem(ctx context.Context, userID, productID string) error           // Removes one cart line
	ClearCart(ctx context.Context, userID string) error                           // Removes all cart lines for a user
}

// coupon defines methods for handling coupon pools and claims.
type coupon interface {
	CreateCouponPool(pool model.CouponPool) (model.CouponPool, error)                                       // Creates a new coupon pool
	GetCouponPool(ctx context.Context, poolID string) (*model.CouponPool, error)                            // Retrieves a pool by ID
	GetCouponPoolByCode(ctx context.Context, code string) (*model.CouponPool, error)                        // Retrieves a pool by its public code
	GetAllCouponPools(limit, offset int) ([]model.CouponPool, error)                                        // Retrieves all pools
	UpdateCouponPoolStatus(ctx context.Context, poolID, status string) error                                // Updates a pool's lifecycle status
	ProjectClaim(ctx context.Context, claim *model.CouponClaim) error                                       // Persists an issued claim and bumps the pool projection
	GetClaimByID(ctx context.Context, claimID string) (*model.CouponClaim, error)                           // Retrieves a claim by ID
	GetUserClaims(ctx context.Context, poolID, userID string) ([]model.CouponClaim, error)                  // Retrieves a user's claims in a pool
	UpdateClaimStatus(ctx context.Context, claimID, status string, usedAt *time.Time) error                 // Updates a claim's status
}

// order defines methods for handling orders.
type order interface {
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*model.Order, error)      // Retrieves a prior order for an idempotency key
	RecordOrder(ctx context.Context, order *model.Order, clearCart bool) (*model.Order, error)   // Atomically persists an order with stock, balance, coupon and sequence effects
	RevertOrder(ctx context.Context, order *model.Order) error                                   // Atomically reverts an order's stock, balance and coupon effects
	GetOrderByID(ctx context.Context, orderID string) (*model.Order, error)                      // Retrieves an order by ID
	GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error)              // Retrieves an order by its daily number
	GetOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) // Retrieves a user's orders
	UpdateOrderStatus(ctx context.Context, orderID, status string) error                         // Updates an order's status
}
