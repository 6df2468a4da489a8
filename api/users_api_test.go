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
	"database/sql"
	"net/http"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	model2 "github.com/flashcart/flashcart/api/model"
	"github.com/flashcart/flashcart/internal/request"
	"github.com/flashcart/flashcart/model"
)

func TestCreateUser(t *testing.T) {
	router, mock, err := setupRouter(t)
	if err != nil {
		t.Fatalf("Failed to setup router: %v", err)
	}

	tests := []struct {
		name         string
		payload      model2.CreateUser
		expectDB     bool
		expectedCode int
	}{
		{
			name: "Valid User",
			payload: model2.CreateUser{
				Name: gofakeit.Name(),
			},
			expectDB:     true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "Empty Name",
			payload:      model2.CreateUser{},
			expectDB:     false,
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectDB {
				mock.ExpectExec("INSERT INTO flashcart.users").
					WithArgs(sqlmock.AnyArg(), tt.payload.Name, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			}

			payloadBytes, _ := request.ToJsonReq(&tt.payload)
			var response model.User
			resp, err := SetUpTestRequest(TestRequest{
				Payload:  payloadBytes,
				Response: &response,
				Method:   "POST",
				Route:    "/users",
				Router:   router,
			})
			if err != nil {
				t.Fatalf("SetUpTestRequest() error = %v", err)
			}
			assert.Equal(t, tt.expectedCode, resp.Code)

			if tt.expectedCode == http.StatusCreated {
				assert.True(t, strings.HasPrefix(response.UserID, "usr_"))
				assert.Equal(t, tt.payload.Name, response.Name)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetUserNotFound(t *testing.T) {
	router, mock, err := setupRouter(t)
	if err != nil {
		t.Fatalf("Failed to setup router: %v", err)
	}

	mock.ExpectQuery("SELECT user_id, name, balance, created_at, meta_data").
		WithArgs("usr_missing").
		WillReturnError(sql.ErrNoRows)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/users/usr_missing",
		Router:   router,
	})
	if err != nil {
		t.Fatalf("SetUpTestRequest() error = %v", err)
	}
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChargeBalanceRejectsNonPositiveAmount(t *testing.T) {
	router, _, err := setupRouter(t)
	if err != nil {
		t.Fatalf("Failed to setup router: %v", err)
	}

	payloadBytes, _ := request.ToJsonReq(&model2.ChargeBalance{Description: "top up"})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payloadBytes,
		Response: &response,
		Method:   "POST",
		Route:    "/users/usr_1/balance",
		Router:   router,
	})
	if err != nil {
		t.Fatalf("SetUpTestRequest() error = %v", err)
	}
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
