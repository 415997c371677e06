package handler

import (
	"context"
	"errors"

	billingapp "github.com/coliving/backend/internal/application/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/logger"
	"github.com/coliving/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BillGenerator regenerates bills from their subject
type BillGenerator interface {
	GenerateBookingBill(ctx context.Context, req billingapp.GenerateBookingBillRequest) (*billingapp.BillResponse, error)
	GenerateSubscriptionBill(ctx context.Context, req billingapp.GenerateSubscriptionBillRequest) (*billingapp.BillResponse, error)
}

// BillEditor reads bills and edits their line items
type BillEditor interface {
	GetBill(ctx context.Context, billID uuid.UUID) (*billingapp.BillResponse, error)
	AddLineItem(ctx context.Context, req billingapp.AddLineItemRequest) (*billingapp.BillResponse, error)
	AddAdjustment(ctx context.Context, req billingapp.AddAdjustmentRequest) (*billingapp.BillResponse, error)
	RemoveLineItem(ctx context.Context, req billingapp.RemoveLineItemRequest) (*billingapp.BillResponse, error)
}

// PaymentTaker records, charges and refunds payments
type PaymentTaker interface {
	RecordPayment(ctx context.Context, req billingapp.RecordPaymentRequest) (*billingapp.PaymentResult, error)
	ChargeBill(ctx context.Context, req billingapp.ChargeBillRequest) (*billingapp.PaymentResult, error)
	IssueRefund(ctx context.Context, req billingapp.IssueRefundRequest) (*billingapp.PaymentResult, error)
}

// SubscriptionBiller manages the bills of a membership as a whole
type SubscriptionBiller interface {
	GenerateAllBills(ctx context.Context, req billingapp.GenerateAllBillsRequest) (*billingapp.SubscriptionBillsResponse, error)
	UpdateEndDate(ctx context.Context, req billingapp.UpdateEndDateRequest) (*billingapp.SubscriptionBillsResponse, error)
}

// BillingHandler serves bills, line items, payments and subscription billing
type BillingHandler struct {
	BaseHandler
	generator     BillGenerator
	editor        BillEditor
	payments      PaymentTaker
	subscriptions SubscriptionBiller
	idempotency   shared.IdempotencyStore
}

// NewBillingHandler creates a new BillingHandler. idempotency may be nil,
// in which case charges ignore the Idempotency-Key header.
func NewBillingHandler(
	generator BillGenerator,
	editor BillEditor,
	payments PaymentTaker,
	subscriptions SubscriptionBiller,
	idempotency shared.IdempotencyStore,
) *BillingHandler {
	return &BillingHandler{
		generator:     generator,
		editor:        editor,
		payments:      payments,
		subscriptions: subscriptions,
		idempotency:   idempotency,
	}
}

type generateBookingBillBody struct {
	ResetSuppressed bool `json:"reset_suppressed"`
}

type generateSubscriptionBillBody struct {
	PeriodStart     string `json:"period_start" binding:"required,datetime=2006-01-02"`
	ResetSuppressed bool   `json:"reset_suppressed"`
}

type generateAllBillsBody struct {
	Through *string `json:"through" binding:"omitempty,datetime=2006-01-02"`
}

type updateEndDateBody struct {
	EndDate *string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

type recordPaymentBody struct {
	billingapp.RecordPaymentRequest
	PaymentDate *string `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
}

// bindOptionalJSON binds a body that may be absent
func (h *BillingHandler) bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		h.BindError(c, err)
		return false
	}
	return true
}

// GenerateBookingBill handles POST /bookings/:id/bill/generate
func (h *BillingHandler) GenerateBookingBill(c *gin.Context) {
	bookingID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var body generateBookingBillBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	bill, err := h.generator.GenerateBookingBill(c.Request.Context(), billingapp.GenerateBookingBillRequest{
		BookingID:       bookingID,
		ResetSuppressed: body.ResetSuppressed,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// GenerateSubscriptionBill handles POST /subscriptions/:id/bills for a single period
func (h *BillingHandler) GenerateSubscriptionBill(c *gin.Context) {
	subscriptionID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var body generateSubscriptionBillBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BindError(c, err)
		return
	}

	bill, err := h.generator.GenerateSubscriptionBill(c.Request.Context(), billingapp.GenerateSubscriptionBillRequest{
		SubscriptionID:  subscriptionID,
		PeriodStart:     *parseDate(&body.PeriodStart),
		ResetSuppressed: body.ResetSuppressed,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// GenerateAllBills handles POST /subscriptions/:id/bills/generate
func (h *BillingHandler) GenerateAllBills(c *gin.Context) {
	subscriptionID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var body generateAllBillsBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	resp, err := h.subscriptions.GenerateAllBills(c.Request.Context(), billingapp.GenerateAllBillsRequest{
		SubscriptionID: subscriptionID,
		Through:        parseDate(body.Through),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateEndDate handles PUT /subscriptions/:id/end-date. A null end_date makes the membership open-ended.
func (h *BillingHandler) UpdateEndDate(c *gin.Context) {
	subscriptionID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var body updateEndDateBody
	if !h.bindOptionalJSON(c, &body) {
		return
	}

	resp, err := h.subscriptions.UpdateEndDate(c.Request.Context(), billingapp.UpdateEndDateRequest{
		SubscriptionID: subscriptionID,
		EndDate:        parseDate(body.EndDate),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetBill handles GET /bills/:id
func (h *BillingHandler) GetBill(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	bill, err := h.editor.GetBill(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// AddLineItem handles POST /bills/:id/line-items
func (h *BillingHandler) AddLineItem(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req billingapp.AddLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.BillID = billID

	bill, err := h.editor.AddLineItem(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, bill)
}

// AddAdjustment handles POST /bills/:id/adjustments
func (h *BillingHandler) AddAdjustment(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req billingapp.AddAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.BillID = billID

	bill, err := h.editor.AddAdjustment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, bill)
}

// RemoveLineItem handles DELETE /bills/:id/line-items/:item_id
func (h *BillingHandler) RemoveLineItem(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.parseUUIDParam(c, "item_id")
	if !ok {
		return
	}

	bill, err := h.editor.RemoveLineItem(c.Request.Context(), billingapp.RemoveLineItemRequest{
		BillID: billID,
		ItemID: itemID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// RecordPayment handles POST /bills/:id/payments
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var body recordPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.BindError(c, err)
		return
	}
	req := body.RecordPaymentRequest
	req.BillID = billID
	req.PaymentDate = parseDate(body.PaymentDate)

	result, err := h.payments.RecordPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ChargeBill handles POST /bills/:id/charges. A repeated Idempotency-Key is
// answered with 409 without calling the gateway again.
func (h *BillingHandler) ChargeBill(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req billingapp.ChargeBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.BillID = billID

	release, ok := h.claimIdempotencyKey(c, "charge:"+billID.String())
	if !ok {
		return
	}

	result, err := h.payments.ChargeBill(c.Request.Context(), req)
	if err != nil {
		// nothing was charged, so the same key may be retried
		if !errors.Is(err, billingapp.ErrChargeNotRecorded) {
			release()
		}
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// claimIdempotencyKey marks the request's Idempotency-Key as used. It returns
// false after answering when the key was already seen. release forgets the
// key again.
func (h *BillingHandler) claimIdempotencyKey(c *gin.Context, scope string) (release func(), ok bool) {
	noop := func() {}
	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	if key == "" || h.idempotency == nil {
		return noop, true
	}

	ctx := c.Request.Context()
	scoped := scope + ":" + key
	fresh, err := h.idempotency.MarkProcessed(ctx, scoped, shared.DefaultIdempotencyTTL)
	if err != nil {
		// fail open
		logger.L(ctx).Warn("idempotency store unavailable", zap.Error(err))
		return noop, true
	}
	if !fresh {
		h.Conflict(c, "A request with this Idempotency-Key was already processed")
		return noop, false
	}
	return func() {
		if err := h.idempotency.Release(ctx, scoped); err != nil {
			logger.L(ctx).Warn("could not release idempotency key", zap.Error(err))
		}
	}, true
}

// IssueRefund handles POST /payments/:id/refunds. Without an amount the
// remaining balance of the payment is refunded.
func (h *BillingHandler) IssueRefund(c *gin.Context) {
	paymentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req billingapp.IssueRefundRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	req.PaymentID = paymentID

	result, err := h.payments.IssueRefund(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
