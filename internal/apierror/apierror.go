package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// Coupon issuance failures.
	ErrSoldOut         ErrorCode = "SOLD_OUT"
	ErrExceedUserLimit ErrorCode = "EXCEED_USER_LIMIT"
	ErrAlreadyIssued   ErrorCode = "ALREADY_ISSUED"
	ErrWindowClosed    ErrorCode = "WINDOW_CLOSED"

	// Order creation failures.
	ErrEmptyCart           ErrorCode = "EMPTY_CART"
	ErrInsufficientStock   ErrorCode = "INSUFFICIENT_STOCK"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCouponInvalid       ErrorCode = "COUPON_INVALID"
	ErrDuplicateRequest    ErrorCode = "DUPLICATE_REQUEST"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the failure is a contention failure that can
// succeed on retry, as opposed to a business-rule violation that will fail
// again against the same state.
func (e APIError) Retryable() bool {
	return e.Code == ErrConflict
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrDuplicateRequest:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest:
			return http.StatusBadRequest
		case ErrSoldOut, ErrExceedUserLimit, ErrAlreadyIssued, ErrWindowClosed,
			ErrEmptyCart, ErrInsufficientStock, ErrInsufficientBalance, ErrCouponInvalid:
			return http.StatusUnprocessableEntity
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
