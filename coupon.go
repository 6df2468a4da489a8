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
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/internal/notification"
	"github.com/flashcart/flashcart/model"
)

var couponTracer = otel.Tracer("flashcart.coupons")

// CreateCouponPool creates a new coupon pool and clears any quota store
// state left over from a previous pool that reused the same key space.
func (f *Flashcart) CreateCouponPool(ctx context.Context, pool model.CouponPool) (model.CouponPool, error) {
	created, err := f.datasource.CreateCouponPool(pool)
	if err != nil {
		return model.CouponPool{}, err
	}

	if err := f.ResetQuota(ctx, created.PoolID); err != nil {
		notification.NotifyError(err)
	}
	return created, nil
}

// GetCouponPool retrieves a coupon pool by ID.
func (f *Flashcart) GetCouponPool(ctx context.Context, poolID string) (*model.CouponPool, error) {
	return f.datasource.GetCouponPool(ctx, poolID)
}

// GetCouponPoolByCode retrieves a coupon pool by its public code.
func (f *Flashcart) GetCouponPoolByCode(ctx context.Context, code string) (*model.CouponPool, error) {
	return f.datasource.GetCouponPoolByCode(ctx, code)
}

// GetAllCouponPools retrieves coupon pools with pagination.
func (f *Flashcart) GetAllCouponPools(limit, offset int) ([]model.CouponPool, error) {
	return f.datasource.GetAllCouponPools(limit, offset)
}

// UpdateCouponPoolStatus updates a pool's lifecycle status.
func (f *Flashcart) UpdateCouponPoolStatus(ctx context.Context, poolID, status string) error {
	return f.datasource.UpdateCouponPoolStatus(ctx, poolID, status)
}

// ClaimCoupon runs one first-come-first-served claim attempt for a user.
//
// The issuance window and pool status are validated against the relational
// pool definition; the claim itself is a single atomic quota store
// invocation, so the engine never holds a lock and never over-issues no
// matter how many claimers race. On success the granted claim is enqueued
// for asynchronous projection into the relational store and a webhook is
// emitted; the caller gets the claim back immediately with its 1-based
// issuance rank.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - poolID string: The pool to claim from.
// - userID string: The claiming user.
//
// Returns:
// - *model.CouponClaim: The granted claim with rank and sequence populated.
// - error: An APIError carrying SOLD_OUT, EXCEED_USER_LIMIT, ALREADY_ISSUED or WINDOW_CLOSED when the claim is refused.
func (f *Flashcart) ClaimCoupon(ctx context.Context, poolID, userID string) (*model.CouponClaim, error) {
	ctx, span := couponTracer.Start(ctx, "Claim Coupon")
	defer span.End()
	span.SetAttributes(attribute.String("pool.id", poolID), attribute.String("user.id", userID))

	pool, err := f.datasource.GetCouponPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !pool.IssuanceOpen(now) {
		if pool.IssuanceNotYetOpen(now) {
			return nil, apierror.NewAPIError(apierror.ErrWindowClosed,
				fmt.Sprintf("Issuance for pool '%s' has not opened yet", poolID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrWindowClosed,
			fmt.Sprintf("Issuance for pool '%s' is closed", poolID), nil)
	}

	result, err := f.claimQuota(ctx, poolID, userID, pool.TotalQuota, pool.PerUserQuota)
	if err != nil {
		notification.NotifyError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Quota store unavailable", err)
	}

	switch result.Outcome {
	case QuotaOutcomeSoldOut:
		return nil, apierror.NewAPIError(apierror.ErrSoldOut,
			fmt.Sprintf("Pool '%s' is sold out", poolID), nil)
	case QuotaOutcomeExceedUserLimit:
		return nil, apierror.NewAPIError(apierror.ErrExceedUserLimit,
			fmt.Sprintf("User '%s' reached the per-user limit for pool '%s'", userID, poolID), nil)
	case QuotaOutcomeAlreadyIssued:
		return nil, apierror.NewAPIError(apierror.ErrAlreadyIssued,
			fmt.Sprintf("User '%s' already holds this claim for pool '%s'", userID, poolID), nil)
	case QuotaOutcomeSuccess:
		// fall through
	default:
		return nil, apierror.NewAPIError(apierror.ErrInternalServer,
			fmt.Sprintf("Quota store returned unknown outcome '%s'", result.Outcome), nil)
	}

	userSeq, err := f.QuotaUserCount(ctx, poolID, userID)
	if err != nil {
		logrus.Warnf("could not read user sequence for %s in %s: %v", userID, poolID, err)
		userSeq = 1
	}

	claim := &model.CouponClaim{
		ClaimID:  model.GenerateUUIDWithSuffix("clm"),
		PoolID:   poolID,
		UserID:   userID,
		UserSeq:  userSeq,
		Status:   model.ClaimStatusIssued,
		Rank:     result.Rank,
		IssuedAt: now,
	}
	span.SetAttributes(attribute.Int64("claim.rank", claim.Rank))

	// The quota store has already committed the grant; projection and
	// webhook delivery must not undo it. Failures here are reported, not
	// propagated.
	if err := f.queue.Enqueue(ctx, claim); err != nil {
		notification.NotifyError(err)
	}
	if err := SendWebhook(NewWebhook{Event: EventCouponIssued, Payload: claim}); err != nil {
		notification.NotifyError(err)
	}

	return claim, nil
}

// ProcessClaimProjection processes a claim projection task from the queue,
// folding a granted claim into the relational store. Safe to redeliver: the
// projection absorbs duplicates.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - task *asynq.Task: The task containing the claim data.
//
// Returns:
// - error: An error if the projection fails, so asynq retries the task.
func (f *Flashcart) ProcessClaimProjection(ctx context.Context, task *asynq.Task) error {
	ctx, span := couponTracer.Start(ctx, "Process Claim Projection")
	defer span.End()

	var claim model.CouponClaim
	if err := json.Unmarshal(task.Payload(), &claim); err != nil {
		log.Printf("Error unmarshaling claim payload: %v", err)
		return err
	}

	if err := f.datasource.ProjectClaim(ctx, &claim); err != nil {
		notification.NotifyError(err)
		return err
	}

	pool, err := f.datasource.GetCouponPool(ctx, claim.PoolID)
	if err == nil && pool.Status == model.PoolStatusExhausted && pool.IssuedCount == pool.TotalQuota {
		if err := SendWebhook(NewWebhook{Event: EventPoolExhausted, Payload: pool}); err != nil {
			notification.NotifyError(err)
		}
	}
	return nil
}

// GetClaim retrieves a projected claim by ID.
func (f *Flashcart) GetClaim(ctx context.Context, claimID string) (*model.CouponClaim, error) {
	return f.datasource.GetClaimByID(ctx, claimID)
}

// GetUserClaims retrieves a user's projected claims in a pool.
func (f *Flashcart) GetUserClaims(ctx context.Context, poolID, userID string) ([]model.CouponClaim, error) {
	return f.datasource.GetUserClaims(ctx, poolID, userID)
}

// PoolStatus pairs a pool definition with the authoritative issued count
// from the quota store. The relational issued_count may trail it while
// projections drain.
type PoolStatus struct {
	Pool        *model.CouponPool `json:"pool"`
	IssuedCount int64             `json:"issued_count"`
	Remaining   int64             `json:"remaining"`
}

// GetPoolStatus returns a pool with live quota store numbers.
func (f *Flashcart) GetPoolStatus(ctx context.Context, poolID string) (*PoolStatus, error) {
	pool, err := f.datasource.GetCouponPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	issued, err := f.QuotaIssuedCount(ctx, poolID)
	if err != nil {
		return nil, err
	}

	remaining := pool.TotalQuota - issued
	if remaining < 0 {
		remaining = 0
	}
	return &PoolStatus{Pool: pool, IssuedCount: issued, Remaining: remaining}, nil
}
