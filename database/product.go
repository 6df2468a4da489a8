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
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

// CreateProduct inserts a new product record.
//
// Parameters:
// - product: A model.Product object containing the product information to be created.
//
// Returns:
// - model.Product: The created product with its ID and timestamp populated.
// - error: Returns an APIError in case of failures such as database conflicts or other issues.
func (d Datasource) CreateProduct(product model.Product) (model.Product, error) {
	product.ProductID = model.GenerateUUIDWithSuffix("prd")
	product.CreatedAt = time.Now()
	if product.Status == "" {
		product.Status = model.ProductStatusAvailable
	}

	_, err := d.Conn.Exec(`
		INSERT INTO flashcart.products (product_id, name, price, quantity, safety_stock, status, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
	`, product.ProductID, product.Name, product.Price, product.Quantity, product.SafetyStock, product.Status, product.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Product{}, apierror.NewAPIError(apierror.ErrConflict, "Product with this ID already exists", err)
			default:
				return model.Product{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Product{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create product", err)
	}

	return product, nil
}

// GetProductByID retrieves a product by its unique ID.
func (d Datasource) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT product_id, name, price, quantity, safety_stock, status, version, created_at
		FROM flashcart.products
		WHERE product_id = $1
	`, id)

	product, err := scanProductRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Product with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan product data", err)
	}

	return product, nil
}

// GetAllProducts retrieves products ordered by most recent first.
func (d Datasource) GetAllProducts(limit, offset int) ([]model.Product, error) {
	rows, err := d.Conn.Query(`
		SELECT product_id, name, price, quantity, safety_stock, status, version, created_at
		FROM flashcart.products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve products", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		err = rows.Scan(&p.ProductID, &p.Name, &p.Price, &p.Quantity, &p.SafetyStock, &p.Status, &p.Version, &p.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan product data", err)
		}
		products = append(products, p)
	}
	return products, nil
}

// RestockProduct adds stock to a product and records the movement. The
// version column is bumped so concurrent checkout decrements observe the
// change.
func (d Datasource) RestockProduct(ctx context.Context, productID string, quantity int64) (*model.Product, error) {
	if quantity <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Restock quantity must be positive", nil)
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

	product, err := increaseStock(ctx, tx, productID, quantity, "restock")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return product, nil
}

// GetStockHistory retrieves a product's stock movements, most recent first.
func (d Datasource) GetStockHistory(ctx context.Context, productID string, limit, offset int) ([]model.StockHistory, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT product_id, type, quantity, stock_before, stock_after, COALESCE(reason, ''), created_at
		FROM flashcart.stock_histories
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, productID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stock history", err)
	}
	defer rows.Close()

	histories := []model.StockHistory{}
	for rows.Next() {
		var h model.StockHistory
		err = rows.Scan(&h.ProductID, &h.Type, &h.Quantity, &h.StockBefore, &h.StockAfter, &h.Reason, &h.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan stock history", err)
		}
		histories = append(histories, h)
	}
	return histories, nil
}

// decreaseStock takes quantity units off a product using optimistic
// concurrency. Each attempt re-reads the row, verifies availability, and
// issues a version-guarded update. A zero-row update means another
// transaction won the version race; the read is retried up to maxRetries
// times before giving up with a retryable conflict. A genuine shortfall
// fails immediately without retrying.
func decreaseStock(ctx context.Context, tx *sql.Tx, productID string, quantity int64, maxRetries int, reason string) (*model.Product, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		row := tx.QueryRowContext(ctx, `
			SELECT product_id, name, price, quantity, safety_stock, status, version, created_at
			FROM flashcart.products
			WHERE product_id = $1
		`, productID)

		product, err := scanProductRow(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Product with ID '%s' not found", productID), err)
			}
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan product data", err)
		}

		if !product.HasStock(quantity) {
			return nil, apierror.NewAPIError(apierror.ErrInsufficientStock,
				fmt.Sprintf("Product '%s' has %d units left, %d requested", productID, product.Quantity, quantity), nil)
		}

		before := product.Quantity
		product.DecreaseStock(quantity)

		result, err := tx.ExecContext(ctx, `
			UPDATE flashcart.products
			SET quantity = $2, status = $3, version = version + 1
			WHERE product_id = $1 AND version = $4
		`, productID, product.Quantity, product.Status, product.Version)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update stock", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if affected == 0 {
			logrus.Debugf("stock version race on %s, attempt %d", productID, attempt+1)
			continue
		}

		product.Version++
		err = recordStockHistory(ctx, tx, model.StockHistory{
			ProductID:   productID,
			Type:        model.StockTxDecrease,
			Quantity:    quantity,
			StockBefore: before,
			StockAfter:  product.Quantity,
			Reason:      reason,
		})
		if err != nil {
			return nil, err
		}
		return product, nil
	}

	return nil, apierror.NewAPIError(apierror.ErrConflict,
		fmt.Sprintf("Stock update for product '%s' lost the version race %d times", productID, maxRetries+1), nil)
}

// increaseStock puts quantity units back on a product. Restores never fail
// on availability, so a single version-bumping update suffices.
func increaseStock(ctx context.Context, tx *sql.Tx, productID string, quantity int64, reason string) (*model.Product, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT product_id, name, price, quantity, safety_stock, status, version, created_at
		FROM flashcart.products
		WHERE product_id = $1
		FOR UPDATE
	`, productID)

	product, err := scanProductRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Product with ID '%s' not found", productID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan product data", err)
	}

	before := product.Quantity
	product.IncreaseStock(quantity)

	_, err = tx.ExecContext(ctx, `
		UPDATE flashcart.products
		SET quantity = $2, status = $3, version = version + 1
		WHERE product_id = $1
	`, productID, product.Quantity, product.Status)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update stock", err)
	}

	err = recordStockHistory(ctx, tx, model.StockHistory{
		ProductID:   productID,
		Type:        model.StockTxIncrease,
		Quantity:    quantity,
		StockBefore: before,
		StockAfter:  product.Quantity,
		Reason:      reason,
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func recordStockHistory(ctx context.Context, tx *sql.Tx, h model.StockHistory) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO flashcart.stock_histories (product_id, type, quantity, stock_before, stock_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, h.ProductID, h.Type, h.Quantity, h.StockBefore, h.StockAfter, h.Reason)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record stock history", err)
	}
	return nil
}

func scanProductRow(row *sql.Row) (*model.Product, error) {
	product := &model.Product{}
	err := row.Scan(&product.ProductID, &product.Name, &product.Price, &product.Quantity,
		&product.SafetyStock, &product.Status, &product.Version, &product.CreatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}
