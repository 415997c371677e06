package billing

import (
	"context"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
)

// ChargeRequest asks the gateway to take money from a customer
type ChargeRequest struct {
	// CustomerRef is the gateway's handle for the payer (customer or payment method)
	CustomerRef string
	Amount      valueobject.Money
	// Reference ends up on the gateway's statement, e.g. "Bill 1234"
	Reference string
}

// ChargeResult is a successful charge
type ChargeResult struct {
	TransactionID string
	// Method is the card brand or payment method label reported by the gateway
	Method string
}

// PaymentGateway is the card processor. Declines are returned as
// *PaymentDeclinedError; anything else is an infrastructure failure.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amount valueobject.Money) (string, error)
}
