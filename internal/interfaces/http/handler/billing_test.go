package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	billingapp "github.com/coliving/backend/internal/application/billing"
	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/coliving/backend/internal/infrastructure/cache"
	"github.com/coliving/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBillingServices implements every billing interface the handler needs
type MockBillingServices struct {
	mock.Mock
}

func (m *MockBillingServices) GenerateBookingBill(ctx context.Context, req billingapp.GenerateBookingBillRequest) (*billingapp.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BillResponse), args.Error(1)
}

func (m *MockBillingServices) GenerateSubscriptionBill(ctx context.Context, req billingapp.GenerateSubscriptionBillRequest) (*billingapp.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BillResponse), args.Error(1)
}

func (m *MockBillingServices) GetBill(ctx context.Context, billID uuid.UUID) (*billingapp.BillResponse, error) {
	args := m.Called(ctx, billID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BillResponse), args.Error(1)
}

func (m *MockBillingServices) AddLineItem(ctx context.Context, req billingapp.AddLineItemRequest) (*billingapp.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BillResponse), args.Error(1)
}

func (m *MockBillingServices) AddAdjustment(ctx context.Context, req billingapp.AddAdjustmentRequest) (*billingapp.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BillResponse), args.Error(1)
}

func (m *MockBillingServices) RemoveLineItem(ctx context.Context, req billingapp.RemoveLineItemRequest) (*billingapp.BillResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BillResponse), args.Error(1)
}

func (m *MockBillingServices) RecordPayment(ctx context.Context, req billingapp.RecordPaymentRequest) (*billingapp.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.PaymentResult), args.Error(1)
}

func (m *MockBillingServices) ChargeBill(ctx context.Context, req billingapp.ChargeBillRequest) (*billingapp.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.PaymentResult), args.Error(1)
}

func (m *MockBillingServices) IssueRefund(ctx context.Context, req billingapp.IssueRefundRequest) (*billingapp.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.PaymentResult), args.Error(1)
}

func (m *MockBillingServices) GenerateAllBills(ctx context.Context, req billingapp.GenerateAllBillsRequest) (*billingapp.SubscriptionBillsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.SubscriptionBillsResponse), args.Error(1)
}

func (m *MockBillingServices) UpdateEndDate(ctx context.Context, req billingapp.UpdateEndDateRequest) (*billingapp.SubscriptionBillsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.SubscriptionBillsResponse), args.Error(1)
}

func setupBillingTestRouter(t *testing.T) (*gin.Engine, *MockBillingServices) {
	t.Helper()
	svc := new(MockBillingServices)
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	h := NewBillingHandler(svc, svc, svc, svc, store)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")
	api.POST("/bookings/:id/bill/generate", h.GenerateBookingBill)
	api.POST("/subscriptions/:id/bills", h.GenerateSubscriptionBill)
	api.POST("/subscriptions/:id/bills/generate", h.GenerateAllBills)
	api.PUT("/subscriptions/:id/end-date", h.UpdateEndDate)
	api.GET("/bills/:id", h.GetBill)
	api.POST("/bills/:id/line-items", h.AddLineItem)
	api.POST("/bills/:id/adjustments", h.AddAdjustment)
	api.DELETE("/bills/:id/line-items/:item_id", h.RemoveLineItem)
	api.POST("/bills/:id/payments", h.RecordPayment)
	api.POST("/bills/:id/charges", h.ChargeBill)
	api.POST("/payments/:id/refunds", h.IssueRefund)
	return r, svc
}

func doJSON(r *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleBill(id uuid.UUID) *billingapp.BillResponse {
	return &billingapp.BillResponse{
		ID:        id,
		Amount:    valueobject.MustMoney("300"),
		TotalOwed: valueobject.MustMoney("300"),
		LineItems: []billingapp.LineItemResponse{},
		Payments:  []billingapp.PaymentResponse{},
		Version:   1,
	}
}

func samplePaymentResult(billID uuid.UUID, amount string) *billingapp.PaymentResult {
	return &billingapp.PaymentResult{
		Payment: billingapp.PaymentResponse{ID: uuid.New(), BillID: billID, Amount: valueobject.MustMoney(amount)},
		Bill:    sampleBill(billID),
	}
}

func TestBillingHandler_GenerateBookingBill(t *testing.T) {
	t.Run("without a body", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		bookingID := uuid.New()
		billID := uuid.New()
		svc.On("GenerateBookingBill", mock.Anything, billingapp.GenerateBookingBillRequest{BookingID: bookingID}).
			Return(sampleBill(billID), nil)

		w := doJSON(r, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/bill/generate", "")

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, billID.String(), resp.Data.(map[string]any)["id"])
		assert.Equal(t, "300.00", resp.Data.(map[string]any)["amount"])
		svc.AssertExpectations(t)
	})

	t.Run("with reset_suppressed", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		bookingID := uuid.New()
		svc.On("GenerateBookingBill", mock.Anything, billingapp.GenerateBookingBillRequest{BookingID: bookingID, ResetSuppressed: true}).
			Return(sampleBill(uuid.New()), nil)

		w := doJSON(r, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/bill/generate", `{"reset_suppressed":true}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("locked bill", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		svc.On("GenerateBookingBill", mock.Anything, mock.Anything).Return(nil, billingapp.ErrBillLocked)

		w := doJSON(r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/bill/generate", "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "BILL_LOCKED", decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)

		w := doJSON(r, http.MethodPost, "/api/v1/bookings/42/bill/generate", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "GenerateBookingBill", mock.Anything, mock.Anything)
	})
}

func TestBillingHandler_SubscriptionRoutes(t *testing.T) {
	t.Run("single period", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		subID := uuid.New()
		svc.On("GenerateSubscriptionBill", mock.Anything, billingapp.GenerateSubscriptionBillRequest{
			SubscriptionID: subID,
			PeriodStart:    time.Date(2028, time.March, 15, 0, 0, 0, 0, time.UTC),
		}).Return(sampleBill(uuid.New()), nil)

		w := doJSON(r, http.MethodPost, "/api/v1/subscriptions/"+subID.String()+"/bills", `{"period_start":"2028-03-15"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("single period needs a date", func(t *testing.T) {
		r, _ := setupBillingTestRouter(t)

		w := doJSON(r, http.MethodPost, "/api/v1/subscriptions/"+uuid.NewString()+"/bills", `{"period_start":"15/03/2028"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "period_start", resp.Error.Details[0].Field)
	})

	t.Run("generate all defaults through", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		subID := uuid.New()
		svc.On("GenerateAllBills", mock.Anything, billingapp.GenerateAllBillsRequest{SubscriptionID: subID}).
			Return(&billingapp.SubscriptionBillsResponse{SubscriptionID: subID, Bills: []*billingapp.BillResponse{}}, nil)

		w := doJSON(r, http.MethodPost, "/api/v1/subscriptions/"+subID.String()+"/bills/generate", "")

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("generate all through a date", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		subID := uuid.New()
		through := time.Date(2028, time.June, 30, 0, 0, 0, 0, time.UTC)
		svc.On("GenerateAllBills", mock.Anything, billingapp.GenerateAllBillsRequest{SubscriptionID: subID, Through: &through}).
			Return(&billingapp.SubscriptionBillsResponse{SubscriptionID: subID, Bills: []*billingapp.BillResponse{}}, nil)

		w := doJSON(r, http.MethodPost, "/api/v1/subscriptions/"+subID.String()+"/bills/generate", `{"through":"2028-06-30"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("end date before paid period", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		subID := uuid.New()
		end := time.Date(2028, time.February, 10, 0, 0, 0, 0, time.UTC)
		svc.On("UpdateEndDate", mock.Anything, billingapp.UpdateEndDateRequest{SubscriptionID: subID, EndDate: &end}).
			Return(nil, booking.ErrEndDateBeforePaidPeriod)

		w := doJSON(r, http.MethodPut, "/api/v1/subscriptions/"+subID.String()+"/end-date", `{"end_date":"2028-02-10"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "END_DATE_BEFORE_PAID_PERIOD", decodeResponse(t, w).Error.Code)
	})

	t.Run("null end date makes the membership open", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		subID := uuid.New()
		svc.On("UpdateEndDate", mock.Anything, billingapp.UpdateEndDateRequest{SubscriptionID: subID}).
			Return(&billingapp.SubscriptionBillsResponse{SubscriptionID: subID, Bills: []*billingapp.BillResponse{}}, nil)

		w := doJSON(r, http.MethodPut, "/api/v1/subscriptions/"+subID.String()+"/end-date", `{"end_date":null}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestBillingHandler_LineItems(t *testing.T) {
	t.Run("get bill not found", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID := uuid.New()
		svc.On("GetBill", mock.Anything, billID).Return(nil, billing.ErrBillNotFound)

		w := doJSON(r, http.MethodGet, "/api/v1/bills/"+billID.String(), "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("add line item", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID := uuid.New()
		svc.On("AddLineItem", mock.Anything, mock.MatchedBy(func(req billingapp.AddLineItemRequest) bool {
			return req.BillID == billID &&
				req.Description == "Airport pickup" &&
				req.Amount.Equals(valueobject.MustMoney("45")) &&
				req.PaidByHouse
		})).Return(sampleBill(billID), nil)

		w := doJSON(r, http.MethodPost, "/api/v1/bills/"+billID.String()+"/line-items",
			`{"description":"Airport pickup","amount":"45.00","paid_by_house":true}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("add line item with an unparseable amount", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)

		w := doJSON(r, http.MethodPost, "/api/v1/bills/"+uuid.NewString()+"/line-items",
			`{"description":"Airport pickup","amount":"forty"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_JSON", decodeResponse(t, w).Error.Code)
		svc.AssertNotCalled(t, "AddLineItem", mock.Anything, mock.Anything)
	})

	t.Run("adjustment kind is validated", func(t *testing.T) {
		r, _ := setupBillingTestRouter(t)

		w := doJSON(r, http.MethodPost, "/api/v1/bills/"+uuid.NewString()+"/adjustments",
			`{"kind":"rebate","amount":"10","reason":"loyalty"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeResponse(t, w).Error.Code)
	})

	t.Run("remove base charge is rejected", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID, itemID := uuid.New(), uuid.New()
		svc.On("RemoveLineItem", mock.Anything, billingapp.RemoveLineItemRequest{BillID: billID, ItemID: itemID}).
			Return(nil, billing.ErrInvalidLineItemOperation)

		w := doJSON(r, http.MethodDelete, "/api/v1/bills/"+billID.String()+"/line-items/"+itemID.String(), "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, billing.CodeInvalidLineItemOperation, decodeResponse(t, w).Error.Code)
	})
}

func TestBillingHandler_Payments(t *testing.T) {
	t.Run("record payment with a date", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID := uuid.New()
		paid := time.Date(2028, time.January, 12, 0, 0, 0, 0, time.UTC)
		svc.On("RecordPayment", mock.Anything, mock.MatchedBy(func(req billingapp.RecordPaymentRequest) bool {
			return req.BillID == billID &&
				req.Amount.Equals(valueobject.MustMoney("120.50")) &&
				req.Method == "cash" &&
				req.PaymentDate != nil && req.PaymentDate.Equal(paid)
		})).Return(samplePaymentResult(billID, "120.50"), nil)

		w := doJSON(r, http.MethodPost, "/api/v1/bills/"+billID.String()+"/payments",
			`{"amount":"120.50","service":"manual","method":"cash","payment_date":"2028-01-12"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("charge declined", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		svc.On("ChargeBill", mock.Anything, mock.Anything).
			Return(nil, &billing.PaymentDeclinedError{DeclineCode: "card_declined", Message: "Your card was declined."})

		w := doJSON(r, http.MethodPost, "/api/v1/bills/"+uuid.NewString()+"/charges",
			`{"customer_ref":"cus_123","amount":"300"}`)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, billing.CodePaymentDeclined, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "Your card was declined.")
	})

	t.Run("charge with a repeated idempotency key", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID := uuid.New()
		svc.On("ChargeBill", mock.Anything, mock.MatchedBy(func(req billingapp.ChargeBillRequest) bool {
			return req.BillID == billID && req.CustomerRef == "cus_123"
		})).Return(samplePaymentResult(billID, "300"), nil).Once()

		path := "/api/v1/bills/" + billID.String() + "/charges"
		body := `{"customer_ref":"cus_123","amount":"300"}`

		first := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusCreated, first.Code)

		second := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusConflict, second.Code)
		assert.Equal(t, "DUPLICATE_REQUEST", decodeResponse(t, second).Error.Code)

		svc.AssertNumberOfCalls(t, "ChargeBill", 1)
	})

	t.Run("a declined charge can be retried with the same key", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID := uuid.New()
		svc.On("ChargeBill", mock.Anything, mock.Anything).
			Return(nil, &billing.PaymentDeclinedError{DeclineCode: "card_declined", Message: "Your card was declined."}).Once()
		svc.On("ChargeBill", mock.Anything, mock.Anything).Return(samplePaymentResult(billID, "300"), nil).Once()

		path := "/api/v1/bills/" + billID.String() + "/charges"
		body := `{"customer_ref":"cus_123","amount":"300"}`

		first := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusPaymentRequired, first.Code)

		second := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusCreated, second.Code)

		third := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusConflict, third.Code)
		svc.AssertNumberOfCalls(t, "ChargeBill", 2)
	})

	t.Run("a charge taken but not recorded keeps its key", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		billID := uuid.New()
		svc.On("ChargeBill", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: %w", billingapp.ErrChargeNotRecorded, shared.ErrConcurrencyConflict)).Once()

		path := "/api/v1/bills/" + billID.String() + "/charges"
		body := `{"customer_ref":"cus_123","amount":"300"}`

		first := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.NotEqual(t, http.StatusCreated, first.Code)

		second := doJSON(r, http.MethodPost, path, body, middleware.IdempotencyKeyHeader, "key-1")
		assert.Equal(t, http.StatusConflict, second.Code)
		assert.Equal(t, "DUPLICATE_REQUEST", decodeResponse(t, second).Error.Code)
		svc.AssertNumberOfCalls(t, "ChargeBill", 1)
	})

	t.Run("the same key on another bill is a new charge", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		svc.On("ChargeBill", mock.Anything, mock.Anything).Return(samplePaymentResult(uuid.New(), "300"), nil)

		body := `{"customer_ref":"cus_123","amount":"300"}`
		for i := 0; i < 2; i++ {
			w := doJSON(r, http.MethodPost, "/api/v1/bills/"+uuid.NewString()+"/charges", body, middleware.IdempotencyKeyHeader, "key-1")
			assert.Equal(t, http.StatusCreated, w.Code)
		}
		svc.AssertNumberOfCalls(t, "ChargeBill", 2)
	})

	t.Run("full refund without a body", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		paymentID := uuid.New()
		svc.On("IssueRefund", mock.Anything, billingapp.IssueRefundRequest{PaymentID: paymentID}).
			Return(samplePaymentResult(uuid.New(), "-300"), nil)

		w := doJSON(r, http.MethodPost, "/api/v1/payments/"+paymentID.String()+"/refunds", "")

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("refund larger than the payment", func(t *testing.T) {
		r, svc := setupBillingTestRouter(t)
		paymentID := uuid.New()
		svc.On("IssueRefund", mock.Anything, mock.MatchedBy(func(req billingapp.IssueRefundRequest) bool {
			return req.PaymentID == paymentID && req.Amount != nil && req.Amount.Equals(valueobject.MustMoney("500"))
		})).Return(nil, billing.ErrRefundExceedsBalance)

		w := doJSON(r, http.MethodPost, "/api/v1/payments/"+paymentID.String()+"/refunds", `{"amount":"500"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, billing.CodeRefundExceedsBalance, decodeResponse(t, w).Error.Code)
	})
}
