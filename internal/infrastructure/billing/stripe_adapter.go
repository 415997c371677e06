package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

// StripeAdapter takes card payments and refunds through Stripe
type StripeAdapter struct {
	config *StripeConfig
	api    *client.API
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter. A nil backend uses Stripe's
// HTTP API.
func NewStripeAdapter(config *StripeConfig, backend stripe.Backend, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if backend == nil {
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			MaxNetworkRetries: stripe.Int64(config.MaxNetworkRetries),
		})
	}
	api := client.New(config.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeAdapter{
		config: config,
		api:    api,
		logger: logger,
	}, nil
}

// Charge takes req.Amount from the customer. CustomerRef is either a Stripe
// customer (cus_...) charged on their default source, or a one-off token.
func (a *StripeAdapter) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	if !req.Amount.IsPositive() {
		return domain.ChargeResult{}, fmt.Errorf("%w: charge amount must be positive", domain.ErrInvalidPayment)
	}
	if req.CustomerRef == "" {
		return domain.ChargeResult{}, fmt.Errorf("%w: customer reference is required", domain.ErrInvalidPayment)
	}

	a.logger.Debug("Creating Stripe charge",
		zap.String("reference", req.Reference),
		zap.String("amount", req.Amount.StringFixed(2)))

	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.Amount.Cents()),
		Currency:    stripe.String(a.config.Currency),
		Description: stripe.String(req.Reference),
	}
	params.Context = ctx
	if strings.HasPrefix(req.CustomerRef, "cus_") {
		params.Customer = stripe.String(req.CustomerRef)
	} else {
		params.Source = &stripe.PaymentSourceSourceParams{Token: stripe.String(req.CustomerRef)}
	}
	params.AddMetadata("reference", req.Reference)

	ch, err := a.api.Charges.New(params)
	if err != nil {
		if declined := asDecline(err); declined != nil {
			a.logger.Info("Stripe charge declined",
				zap.String("reference", req.Reference),
				zap.String("decline_code", declined.DeclineCode))
			return domain.ChargeResult{}, declined
		}
		a.logger.Error("Failed to create Stripe charge",
			zap.String("reference", req.Reference),
			zap.Error(err))
		return domain.ChargeResult{}, fmt.Errorf("stripe: failed to create charge: %w", err)
	}

	if ch.Status == stripe.ChargeStatusFailed {
		return domain.ChargeResult{}, &domain.PaymentDeclinedError{
			DeclineCode: ch.FailureCode,
			Message:     ch.FailureMessage,
		}
	}

	a.logger.Info("Created Stripe charge",
		zap.String("reference", req.Reference),
		zap.String("charge_id", ch.ID))

	return domain.ChargeResult{
		TransactionID: ch.ID,
		Method:        chargeMethod(ch),
	}, nil
}

// Refund returns amount of an earlier charge and yields the refund's ID
func (a *StripeAdapter) Refund(ctx context.Context, transactionID string, amount valueobject.Money) (string, error) {
	if transactionID == "" {
		return "", fmt.Errorf("%w: transaction id is required", domain.ErrInvalidPayment)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: refund amount must be positive", domain.ErrInvalidPayment)
	}

	a.logger.Debug("Creating Stripe refund",
		zap.String("charge_id", transactionID),
		zap.String("amount", amount.StringFixed(2)))

	params := &stripe.RefundParams{
		Charge: stripe.String(transactionID),
		Amount: stripe.Int64(amount.Cents()),
	}
	params.Context = ctx

	r, err := a.api.Refunds.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe refund",
			zap.String("charge_id", transactionID),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to refund charge %s: %w", transactionID, err)
	}

	a.logger.Info("Created Stripe refund",
		zap.String("charge_id", transactionID),
		zap.String("refund_id", r.ID))
	return r.ID, nil
}

// asDecline converts a card error into a domain decline, or returns nil
func asDecline(err error) *domain.PaymentDeclinedError {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil
	}
	if stripeErr.Type != stripe.ErrorTypeCard && stripeErr.Code != stripe.ErrorCodeCardDeclined {
		return nil
	}
	code := string(stripeErr.DeclineCode)
	if code == "" {
		code = string(stripeErr.Code)
	}
	return &domain.PaymentDeclinedError{DeclineCode: code, Message: stripeErr.Msg}
}

func chargeMethod(ch *stripe.Charge) string {
	if ch.PaymentMethodDetails == nil {
		return ""
	}
	if card := ch.PaymentMethodDetails.Card; card != nil && card.Brand != "" {
		return string(card.Brand)
	}
	return string(ch.PaymentMethodDetails.Type)
}

// Ensure StripeAdapter implements PaymentGateway
var _ domain.PaymentGateway = (*StripeAdapter)(nil)
