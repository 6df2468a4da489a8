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

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

const couponPoolCacheTTL = 5 * time.Minute

// CreateCouponPool inserts a new coupon pool record.
//
// Parameters:
// - pool: A model.CouponPool object containing the pool definition to be created.
//
// Returns:
// - model.CouponPool: The created pool with its ID and timestamp populated.
// - error: Returns an APIError in case of failures such as database conflicts or other issues.
func (d Datasource) CreateCouponPool(pool model.CouponPool) (model.CouponPool, error) {
	metaDataJSON, err := json.Marshal(pool.MetaData)
	if err != nil {
		return model.CouponPool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	pool.PoolID = model.GenerateUUIDWithSuffix("pol")
	pool.CreatedAt = time.Now()
	if pool.Status == "" {
		pool.Status = model.PoolStatusActive
	}
	if pool.PerUserQuota == 0 {
		pool.PerUserQuota = 1
	}

	_, err = d.Conn.Exec(`
		INSERT INTO flashcart.coupon_pools
			(pool_id, code, name, description, type, discount_value, minimum_order_amount, maximum_discount_amount,
			 total_quota, issued_count, per_user_quota, issue_start_at, issue_end_at, valid_from, valid_until, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12, $13, $14, $15, $16, $17)
	`, pool.PoolID, pool.Code, pool.Name, pool.Description, pool.Type, pool.DiscountValue, pool.MinimumOrderAmount,
		pool.MaximumDiscountAmount, pool.TotalQuota, pool.PerUserQuota, pool.IssueStartAt, pool.IssueEndAt,
		pool.ValidFrom, pool.ValidUntil, pool.Status, pool.CreatedAt, &metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.CouponPool{}, apierror.NewAPIError(apierror.ErrConflict, "Coupon pool with this code already exists", err)
			case "check_violation":
				return model.CouponPool{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid coupon type", err)
			default:
				return model.CouponPool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.CouponPool{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create coupon pool", err)
	}

	return pool, nil
}

// GetCouponPool retrieves a coupon pool by its ID. Pool definitions are
// close to immutable during a sale, so reads go through the cache when one
// is configured.
func (d Datasource) GetCouponPool(ctx context.Context, poolID string) (*model.CouponPool, error) {
	if d.Cache != nil {
		pool := &model.CouponPool{}
		if err := d.Cache.Get(ctx, couponPoolCacheKey(poolID), pool); err == nil && pool.PoolID != "" {
			return pool, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT pool_id, code, name, COALESCE(description, ''), type, discount_value, minimum_order_amount,
		       maximum_discount_amount, total_quota, issued_count, per_user_quota, issue_start_at, issue_end_at,
		       valid_from, valid_until, status, created_at, meta_data
		FROM flashcart.coupon_pools
		WHERE pool_id = $1
	`, poolID)

	pool, err := scanCouponPoolRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Coupon pool with ID '%s' not found", poolID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan coupon pool data", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, couponPoolCacheKey(poolID), pool, couponPoolCacheTTL)
	}
	return pool, nil
}

// GetCouponPoolByCode retrieves a coupon pool by its public code.
func (d Datasource) GetCouponPoolByCode(ctx context.Context, code string) (*model.CouponPool, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT pool_id, code, name, COALESCE(description, ''), type, discount_value, minimum_order_amount,
		       maximum_discount_amount, total_quota, issued_count, per_user_quota, issue_start_at, issue_end_at,
		       valid_from, valid_until, status, created_at, meta_data
		FROM flashcart.coupon_pools
		WHERE code = $1
	`, code)

	pool, err := scanCouponPoolRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Coupon pool with code '%s' not found", code), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan coupon pool data", err)
	}
	return pool, nil
}

// GetAllCouponPools retrieves coupon pools ordered by most recent first.
func (d Datasource) GetAllCouponPools(limit, offset int) ([]model.CouponPool, error) {
	rows, err := d.Conn.Query(`
		SELECT pool_id, code, name, COALESCE(description, ''), type, discount_value, minimum_order_amount,
		       maximum_discount_amount, total_quota, issued_count, per_user_quota, issue_start_at, issue_end_at,
		       valid_from, valid_until, status, created_at, meta_data
		FROM flashcart.coupon_pools
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve coupon pools", err)
	}
	defer rows.Close()

	pools := []model.CouponPool{}
	for rows.Next() {
		pool, err := scanCouponPoolRows(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan coupon pool data", err)
		}
		pools = append(pools, *pool)
	}
	return pools, nil
}

// UpdateCouponPoolStatus updates a pool's lifecycle status and drops the
// cached copy.
func (d Datasource) UpdateCouponPoolStatus(ctx context.Context, poolID, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE flashcart.coupon_pools SET status = $2 WHERE pool_id = $1
	`, poolID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update coupon pool status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Coupon pool with ID '%s' not found", poolID), nil)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, couponPoolCacheKey(poolID))
	}
	return nil
}

// ProjectClaim persists a claim granted by the quota store and folds it into
// the pool's relational projection. Both writes happen in one transaction so
// issued_count never drifts from the claim rows. Replays of the same claim
// are absorbed by the uniqueness of (pool_id, user_id, user_seq).
func (d Datasource) ProjectClaim(ctx context.Context, claim *model.CouponClaim) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO flashcart.coupon_claims (claim_id, pool_id, user_id, user_seq, status, rank, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pool_id, user_id, user_seq) DO NOTHING
	`, claim.ClaimID, claim.PoolID, claim.UserID, claim.UserSeq, claim.Status, claim.Rank, claim.IssuedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record coupon claim", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		// Claim already projected; nothing to fold in.
		return tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE flashcart.coupon_pools
		SET issued_count = issued_count + 1,
		    status = CASE WHEN issued_count + 1 >= total_quota AND status = 'ACTIVE' THEN 'EXHAUSTED' ELSE status END
		WHERE pool_id = $1
	`, claim.PoolID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update pool projection", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, couponPoolCacheKey(claim.PoolID))
	}
	return nil
}

// GetClaimByID retrieves a claim by its unique ID.
func (d Datasource) GetClaimByID(ctx context.Context, claimID string) (*model.CouponClaim, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT claim_id, pool_id, user_id, user_seq, status, rank, issued_at, used_at
		FROM flashcart.coupon_claims
		WHERE claim_id = $1
	`, claimID)

	claim, err := scanClaimRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Claim with ID '%s' not found", claimID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan claim data", err)
	}
	return claim, nil
}

// GetUserClaims retrieves a user's claims in a pool ordered by sequence.
func (d Datasource) GetUserClaims(ctx context.Context, poolID, userID string) ([]model.CouponClaim, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT claim_id, pool_id, user_id, user_seq, status, rank, issued_at, used_at
		FROM flashcart.coupon_claims
		WHERE pool_id = $1 AND user_id = $2
		ORDER BY user_seq ASC
	`, poolID, userID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve claims", err)
	}
	defer rows.Close()

	claims := []model.CouponClaim{}
	for rows.Next() {
		var claim model.CouponClaim
		var usedAt sql.NullTime
		err = rows.Scan(&claim.ClaimID, &claim.PoolID, &claim.UserID, &claim.UserSeq, &claim.Status, &claim.Rank, &claim.IssuedAt, &usedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan claim data", err)
		}
		if usedAt.Valid {
			claim.UsedAt = &usedAt.Time
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// UpdateClaimStatus updates a claim's status outside of checkout, e.g. when
// an operator revokes a claim or an expiry sweep runs.
func (d Datasource) UpdateClaimStatus(ctx context.Context, claimID, status string, usedAt *time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE flashcart.coupon_claims SET status = $2, used_at = $3 WHERE claim_id = $1
	`, claimID, status, usedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update claim status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Claim with ID '%s' not found", claimID), nil)
	}
	return nil
}

// markClaimUsed transitions a claim from ISSUED to USED inside an existing
// transaction. The status guard in the WHERE clause makes double-spending a
// claim impossible: the second transaction sees zero rows.
func markClaimUsed(ctx context.Context, tx *sql.Tx, claimID string, usedAt time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE flashcart.coupon_claims
		SET status = $2, used_at = $3
		WHERE claim_id = $1 AND status = $4
	`, claimID, model.ClaimStatusUsed, usedAt, model.ClaimStatusIssued)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark claim used", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrCouponInvalid,
			fmt.Sprintf("Claim '%s' is not available for use", claimID), nil)
	}
	return nil
}

// restoreClaim transitions a claim from USED back to ISSUED when an order is
// cancelled.
func restoreClaim(ctx context.Context, tx *sql.Tx, claimID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE flashcart.coupon_claims
		SET status = $2, used_at = NULL
		WHERE claim_id = $1 AND status = $3
	`, claimID, model.ClaimStatusIssued, model.ClaimStatusUsed)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to restore claim", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrCouponInvalid,
			fmt.Sprintf("Claim '%s' is not in a restorable state", claimID), nil)
	}
	return nil
}

func couponPoolCacheKey(poolID string) string {
	return fmt.Sprintf("coupon:pool:%s", poolID)
}

func scanCouponPoolRow(row *sql.Row) (*model.CouponPool, error) {
	pool := &model.CouponPool{}
	var metaDataJSON []byte
	err := row.Scan(&pool.PoolID, &pool.Code, &pool.Name, &pool.Description, &pool.Type, &pool.DiscountValue,
		&pool.MinimumOrderAmount, &pool.MaximumDiscountAmount, &pool.TotalQuota, &pool.IssuedCount,
		&pool.PerUserQuota, &pool.IssueStartAt, &pool.IssueEndAt, &pool.ValidFrom, &pool.ValidUntil,
		&pool.Status, &pool.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &pool.MetaData); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

func scanCouponPoolRows(rows *sql.Rows) (*model.CouponPool, error) {
	pool := &model.CouponPool{}
	var metaDataJSON []byte
	err := rows.Scan(&pool.PoolID, &pool.Code, &pool.Name, &pool.Description, &pool.Type, &pool.DiscountValue,
		&pool.MinimumOrderAmount, &pool.MaximumDiscountAmount, &pool.TotalQuota, &pool.IssuedCount,
		&pool.PerUserQuota, &pool.IssueStartAt, &pool.IssueEndAt, &pool.ValidFrom, &pool.ValidUntil,
		&pool.Status, &pool.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &pool.MetaData); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

func scanClaimRow(row *sql.Row) (*model.CouponClaim, error) {
	claim := &model.CouponClaim{}
	var usedAt sql.NullTime
	err := row.Scan(&claim.ClaimID, &claim.PoolID, &claim.UserID, &claim.UserSeq, &claim.Status, &claim.Rank, &claim.IssuedAt, &usedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		claim.UsedAt = &usedAt.Time
	}
	return claim, nil
}
