package apierror

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorError(t *testing.T) {
	err := NewAPIError(ErrSoldOut, "coupon pool is exhausted", nil)
	assert.Equal(t, "SOLD_OUT: coupon pool is exhausted", err.Error())
}

func TestRetryable(t *testing.T) {
	conflict := NewAPIError(ErrConflict, "version conflict after retries", nil)
	assert.True(t, conflict.Retryable())

	soldOut := NewAPIError(ErrSoldOut, "coupon pool is exhausted", nil)
	assert.False(t, soldOut.Retryable())

	insufficient := NewAPIError(ErrInsufficientBalance, "balance too low", nil)
	assert.False(t, insufficient.Retryable())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrSoldOut, http.StatusUnprocessableEntity},
		{ErrExceedUserLimit, http.StatusUnprocessableEntity},
		{ErrAlreadyIssued, http.StatusUnprocessableEntity},
		{ErrWindowClosed, http.StatusUnprocessableEntity},
		{ErrEmptyCart, http.StatusUnprocessableEntity},
		{ErrInsufficientStock, http.StatusUnprocessableEntity},
		{ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{ErrCouponInvalid, http.StatusUnprocessableEntity},
		{ErrInternalServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		err := APIError{Code: tt.code, Message: "test"}
		assert.Equal(t, tt.status, MapErrorToHTTPStatus(err), "code %s", tt.code)
	}

	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(assert.AnError))
}
