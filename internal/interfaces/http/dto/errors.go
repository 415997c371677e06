package dto

import (
	"net/http"

	appbilling "github.com/coliving/backend/internal/application/billing"
	appreport "github.com/coliving/backend/internal/application/report"
	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/shared"
)

// Transport-level error codes. Domain codes are passed through unchanged.
const (
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeDuplicateRequest = "DUPLICATE_REQUEST"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Malformed input -> 400
	ErrCodeValidation:                   http.StatusBadRequest,
	ErrCodeBadRequest:                   http.StatusBadRequest,
	ErrCodeInvalidJSON:                  http.StatusBadRequest,
	shared.ErrInvalidInput.Code:         http.StatusBadRequest,
	billing.CodeInvalidPayment:          http.StatusBadRequest,
	billing.CodeInvalidFee:              http.StatusBadRequest,
	booking.ErrInvalidDates.Code:        http.StatusBadRequest,
	booking.ErrInvalidStatus.Code:       http.StatusBadRequest,
	booking.ErrInvalidSubscription.Code: http.StatusBadRequest,
	"INVALID_BOOKING":                   http.StatusBadRequest,
	"INVALID_LOCATION":                  http.StatusBadRequest,
	"INVALID_RESOURCE":                  http.StatusBadRequest,

	ErrCodeNotFound: http.StatusNotFound,

	// Someone else got there first -> 409
	shared.ErrConcurrencyConflict.Code: http.StatusConflict,
	appbilling.ErrBillLocked.Code:      http.StatusConflict,
	ErrCodeDuplicateRequest:            http.StatusConflict,

	// Valid input the bill cannot accept -> 422
	shared.ErrInvalidState.Code:             http.StatusUnprocessableEntity,
	billing.CodeInvalidLineItemOperation:    http.StatusUnprocessableEntity,
	billing.CodeRefundExceedsBalance:        http.StatusUnprocessableEntity,
	billing.CodeInvalidSubject:              http.StatusUnprocessableEntity,
	billing.CodeConfigurationError:          http.StatusUnprocessableEntity,
	booking.ErrEndDateBeforePaidPeriod.Code: http.StatusUnprocessableEntity,

	billing.CodePaymentDeclined: http.StatusPaymentRequired,

	appreport.ErrExportNotConfigured.Code: http.StatusNotImplemented,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are treated as 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
