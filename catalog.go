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

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

// CreateProduct adds a product to the catalog.
func (f *Flashcart) CreateProduct(product model.Product) (model.Product, error) {
	return f.datasource.CreateProduct(product)
}

// GetProduct retrieves a product by ID.
func (f *Flashcart) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return f.datasource.GetProductByID(ctx, productID)
}

// GetAllProducts retrieves products with pagination.
func (f *Flashcart) GetAllProducts(limit, offset int) ([]model.Product, error) {
	return f.datasource.GetAllProducts(limit, offset)
}

// RestockProduct adds stock to a product.
func (f *Flashcart) RestockProduct(ctx context.Context, productID string, quantity int64) (*model.Product, error) {
	return f.datasource.RestockProduct(ctx, productID, quantity)
}

// GetStockHistory retrieves a product's stock movements with pagination.
func (f *Flashcart) GetStockHistory(ctx context.Context, productID string, limit, offset int) ([]model.StockHistory, error) {
	return f.datasource.GetStockHistory(ctx, productID, limit, offset)
}

// AddToCart puts a product line in a user's cart, capturing the product's
// current price. The captured price is what checkout charges, even if the
// catalog price moves afterwards.
func (f *Flashcart) AddToCart(ctx context.Context, userID, productID string, quantity int64) (*model.CartItem, error) {
	product, err := f.datasource.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.HasStock(quantity) {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientStock,
			fmt.Sprintf("Product '%s' has %d units left, %d requested", productID, product.Quantity, quantity), nil)
	}

	item, err := f.datasource.AddCartItem(ctx, model.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetCart retrieves a user's cart lines.
func (f *Flashcart) GetCart(ctx context.Context, userID string) ([]model.CartItem, error) {
	return f.datasource.GetCartItems(ctx, userID)
}

// RemoveFromCart removes one product line from a user's cart.
func (f *Flashcart) RemoveFromCart(ctx context.Context, userID, productID string) error {
	return f.datasource.RemoveCartItem(ctx, userID, productID)
}

// ClearCart removes all cart lines for a user.
func (f *Flashcart) ClearCart(ctx context.Context, userID string) error {
	return f.datasource.ClearCart(ctx, userID)
}
