package billing

import (
	"errors"
	"fmt"

	"github.com/coliving/backend/internal/domain/shared"
)

// Error codes surfaced to callers
const (
	CodeConfigurationError       = "CONFIGURATION_ERROR"
	CodeRefundExceedsBalance     = "REFUND_EXCEEDS_BALANCE"
	CodePaymentDeclined          = "PAYMENT_DECLINED"
	CodeInvalidLineItemOperation = "INVALID_LINE_ITEM_OPERATION"
	CodeInvalidPayment           = "INVALID_PAYMENT"
	CodeInvalidSubject           = "INVALID_BILL_SUBJECT"
	CodeInvalidFee               = "INVALID_FEE"
)

var (
	// ErrConfiguration is returned when a subject has no resolvable rate or location
	ErrConfiguration = shared.NewDomainError(CodeConfigurationError, "billing: no resolvable rate or location")
	// ErrRefundExceedsBalance is returned when a refund is larger than what is left on the payment
	ErrRefundExceedsBalance = shared.NewDomainError(CodeRefundExceedsBalance, "billing: refund exceeds the net paid amount")
	// ErrPaymentDeclined is the sentinel every gateway decline unwraps to
	ErrPaymentDeclined = shared.NewDomainError(CodePaymentDeclined, "billing: payment declined")
	// ErrInvalidLineItemOperation is returned for line item changes the bill does not allow
	ErrInvalidLineItemOperation = shared.NewDomainError(CodeInvalidLineItemOperation, "billing: invalid line item operation")
	// ErrInvalidPayment is returned for malformed payment or charge input
	ErrInvalidPayment = shared.NewDomainError(CodeInvalidPayment, "billing: invalid payment")
	// ErrInvalidSubject is returned when a bill subject is empty, ambiguous or does not match
	ErrInvalidSubject = shared.NewDomainError(CodeInvalidSubject, "billing: invalid bill subject")
	// ErrInvalidFee is returned for malformed fee definitions
	ErrInvalidFee = shared.NewDomainError(CodeInvalidFee, "billing: invalid fee")
	// ErrBillNotFound is returned by services when a bill lookup comes back empty
	ErrBillNotFound = shared.NewDomainError("NOT_FOUND", "billing: bill not found")
)

func configurationError(format string, args ...any) error {
	return shared.NewDomainError(CodeConfigurationError, fmt.Sprintf(format, args...))
}

func lineItemError(format string, args ...any) error {
	return shared.NewDomainError(CodeInvalidLineItemOperation, fmt.Sprintf(format, args...))
}

func paymentError(format string, args ...any) error {
	return shared.NewDomainError(CodeInvalidPayment, fmt.Sprintf(format, args...))
}

// PaymentDeclinedError carries the gateway's reason for a declined charge.
// It unwraps to ErrPaymentDeclined.
type PaymentDeclinedError struct {
	DeclineCode string
	Message     string
}

// Error implements the error interface
func (e *PaymentDeclinedError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.DeclineCode, e.Message)
	}
	return "payment declined: " + e.Message
}

// Unwrap exposes the sentinel
func (e *PaymentDeclinedError) Unwrap() error {
	return ErrPaymentDeclined
}

// IsPaymentDeclined reports whether err is a gateway decline
func IsPaymentDeclined(err error) bool {
	return errors.Is(err, ErrPaymentDeclined)
}
