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

package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	model2 "github.com/flashcart/flashcart/api/model"
	"github.com/flashcart/flashcart/internal/request"
	"github.com/flashcart/flashcart/model"
)

func validPoolPayload() model2.CreateCouponPool {
	now := time.Now()
	return model2.CreateCouponPool{
		Code:          gofakeit.LetterN(8),
		Name:          gofakeit.ProductName(),
		Type:          model.CouponTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		TotalQuota:    100,
		PerUserQuota:  1,
		IssueStartAt:  now.Add(-time.Hour),
		IssueEndAt:    now.Add(time.Hour),
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(24 * time.Hour),
	}
}

func TestCreateCouponPoolAPI(t *testing.T) {
	router, mock, err := setupRouter(t)
	if err != nil {
		t.Fatalf("Failed to setup router: %v", err)
	}

	tests := []struct {
		name         string
		mutate       func(*model2.CreateCouponPool)
		expectDB     bool
		expectedCode int
	}{
		{
			name:         "Valid Pool",
			mutate:       func(p *model2.CreateCouponPool) {},
			expectDB:     true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "Missing Code",
			mutate:       func(p *model2.CreateCouponPool) { p.Code = "" },
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Unknown Type",
			mutate:       func(p *model2.CreateCouponPool) { p.Type = "BOGOF" },
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Zero Quota",
			mutate:       func(p *model2.CreateCouponPool) { p.TotalQuota = 0 },
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPoolPayload()
			tt.mutate(&payload)

			if tt.expectDB {
				mock.ExpectExec("INSERT INTO flashcart.coupon_pools").
					WillReturnResult(sqlmock.NewResult(1, 1))
			}

			payloadBytes, _ := request.ToJsonReq(&payload)
			var response model.CouponPool
			resp, err := SetUpTestRequest(TestRequest{
				Payload:  payloadBytes,
				Response: &response,
				Method:   "POST",
				Route:    "/coupon-pools",
				Router:   router,
			})
			if err != nil {
				t.Fatalf("SetUpTestRequest() error = %v", err)
			}
			assert.Equal(t, tt.expectedCode, resp.Code)

			if tt.expectedCode == http.StatusCreated {
				assert.True(t, strings.HasPrefix(response.PoolID, "pol_"))
				assert.Equal(t, payload.Code, response.Code)
				assert.Equal(t, model.PoolStatusActive, response.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClaimCouponRequiresUserID(t *testing.T) {
	router, _, err := setupRouter(t)
	if err != nil {
		t.Fatalf("Failed to setup router: %v", err)
	}

	payloadBytes, _ := request.ToJsonReq(&model2.ClaimCoupon{})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payloadBytes,
		Response: &response,
		Method:   "POST",
		Route:    "/coupon-pools/pol_1/claims",
		Router:   router,
	})
	if err != nil {
		t.Fatalf("SetUpTestRequest() error = %v", err)
	}
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
