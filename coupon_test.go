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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"

	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"
)

func expectPoolQuery(mock sqlmock.Sqlmock, poolID string, totalQuota, perUserQuota int64, issueStart, issueEnd time.Time) {
	expectPoolQueryStatus(mock, poolID, totalQuota, perUserQuota, issueStart, issueEnd, "ACTIVE", 0)
}

func expectPoolQueryStatus(mock sqlmock.Sqlmock, poolID string, totalQuota, perUserQuota int64, issueStart, issueEnd time.Time, status string, issuedCount int64) {
	now := time.Now()
	mock.ExpectQuery("SELECT pool_id, code, name").
		WithArgs(poolID).
		WillReturnRows(sqlmock.NewRows([]string{
			"pool_id", "code", "name", "description", "type", "discount_value", "minimum_order_amount",
			"maximum_discount_amount", "total_quota", "issued_count", "per_user_quota", "issue_start_at",
			"issue_end_at", "valid_from", "valid_until", "status", "created_at", "meta_data",
		}).AddRow(poolID, "FLASH10", "Flash Sale", "", "PERCENTAGE", "10", "0", "0", totalQuota, issuedCount, perUserQuota,
			issueStart, issueEnd, issueStart, issueEnd.Add(24*time.Hour), status, now, nil))
}

func TestClaimCouponSuccess(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(-time.Hour), now.Add(time.Hour))

	claim, err := f.ClaimCoupon(context.Background(), "pol_1", "usr_1")
	assert.NoError(t, err)
	assert.Equal(t, "pol_1", claim.PoolID)
	assert.Equal(t, "usr_1", claim.UserID)
	assert.Equal(t, model.ClaimStatusIssued, claim.Status)
	assert.Equal(t, int64(1), claim.Rank)
	assert.Equal(t, int64(1), claim.UserSeq)

	// the grant must be committed in the quota store
	count, err := f.QuotaIssuedCount(context.Background(), "pol_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// and the projection task enqueued
	queued, err := f.queue.GetClaimFromQueue(claim.ClaimID)
	assert.NoError(t, err)
	assert.Equal(t, claim.ClaimID, queued.ClaimID)
}

func TestClaimCouponWindowNotOpenYet(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(time.Hour), now.Add(2*time.Hour))

	_, err := f.ClaimCoupon(context.Background(), "pol_1", "usr_1")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrWindowClosed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "not opened yet")

	count, err := f.QuotaIssuedCount(context.Background(), "pol_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestClaimCouponWindowClosed(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(-2*time.Hour), now.Add(-time.Hour))

	_, err := f.ClaimCoupon(context.Background(), "pol_1", "usr_1")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrWindowClosed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "closed")
}

func TestClaimCouponSoldOut(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	// the pool is cached after the first lookup, one query serves both claims
	expectPoolQuery(mock, "pol_1", 1, 1, now.Add(-time.Hour), now.Add(time.Hour))

	first, err := f.ClaimCoupon(context.Background(), "pol_1", "usr_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), first.Rank)

	_, err = f.ClaimCoupon(context.Background(), "pol_1", "usr_2")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrSoldOut, apiErr.Code)
}

func TestClaimCouponExhaustedPoolAnswersSoldOut(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	// The projection already flipped the pool to EXHAUSTED, but the window
	// is still live: the refusal must come from the quota store as
	// SOLD_OUT, never as a window refusal off the relational copy.
	expectPoolQueryStatus(mock, "pol_1", 1, 1, now.Add(-time.Hour), now.Add(time.Hour), model.PoolStatusExhausted, 1)

	_, err := f.claimQuota(context.Background(), "pol_1", "usr_1", 1, 1)
	assert.NoError(t, err)

	_, err = f.ClaimCoupon(context.Background(), "pol_1", "usr_2")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrSoldOut, apiErr.Code)
}

func TestClaimCouponPerUserLimit(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := f.ClaimCoupon(context.Background(), "pol_1", "usr_1")
	assert.NoError(t, err)

	_, err = f.ClaimCoupon(context.Background(), "pol_1", "usr_1")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrExceedUserLimit, apiErr.Code)
}

func TestProcessClaimProjection(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	claim := model.CouponClaim{
		ClaimID:  "clm_1",
		PoolID:   "pol_1",
		UserID:   "usr_1",
		UserSeq:  1,
		Status:   model.ClaimStatusIssued,
		Rank:     1,
		IssuedAt: now,
	}
	payload, err := json.Marshal(claim)
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO flashcart.coupon_claims").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE flashcart.coupon_pools").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// pool still active after this projection, no exhaustion webhook
	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(-time.Hour), now.Add(time.Hour))

	task := asynq.NewTask("new:claim_projection_1", payload)
	err = f.ProcessClaimProjection(context.Background(), task)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessClaimProjectionRedelivery(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	claim := model.CouponClaim{
		ClaimID: "clm_1", PoolID: "pol_1", UserID: "usr_1", UserSeq: 1,
		Status: model.ClaimStatusIssued, Rank: 1, IssuedAt: now,
	}
	payload, _ := json.Marshal(claim)

	// conflict on (pool_id, user_id, user_seq): already projected, the
	// pool counter must not move again
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO flashcart.coupon_claims").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(-time.Hour), now.Add(time.Hour))

	err := f.ProcessClaimProjection(context.Background(), asynq.NewTask("new:claim_projection_1", payload))
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPoolStatus(t *testing.T) {
	f, mock := newTestFlashcart(t)
	now := time.Now()

	expectPoolQuery(mock, "pol_1", 100, 1, now.Add(-time.Hour), now.Add(time.Hour))

	for i := 0; i < 3; i++ {
		_, err := f.claimQuota(context.Background(), "pol_1", model.GenerateUUIDWithSuffix("usr"), 100, 1)
		assert.NoError(t, err)
	}

	status, err := f.GetPoolStatus(context.Background(), "pol_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), status.IssuedCount)
	assert.Equal(t, int64(97), status.Remaining)
}
