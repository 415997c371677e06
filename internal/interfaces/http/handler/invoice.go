package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	billingapp "github.com/coliving/backend/internal/application/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

var (
	// ErrInvoicesNotConfigured is returned when no PDF renderer is available
	ErrInvoicesNotConfigured = shared.NewDomainError("EXPORT_NOT_CONFIGURED", "invoice printing is not configured")
	// ErrArchiveNotConfigured is returned when no document store is available
	ErrArchiveNotConfigured = shared.NewDomainError("EXPORT_NOT_CONFIGURED", "invoice archive is not configured")
)

// BillReader loads a single bill
type BillReader interface {
	GetBill(ctx context.Context, billID uuid.UUID) (*billingapp.BillResponse, error)
}

// InvoicePrinter writes a bill as a PDF document
type InvoicePrinter interface {
	Print(ctx context.Context, bill *billingapp.BillResponse, w io.Writer) error
}

// DocumentArchive stores rendered invoices and links to them
type DocumentArchive interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// InvoiceArchiveResponse points at an archived invoice
type InvoiceArchiveResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Created   bool      `json:"created"`
}

// InvoiceHandler serves printable bills
type InvoiceHandler struct {
	BaseHandler
	bills   BillReader
	printer InvoicePrinter
	archive DocumentArchive
}

// NewInvoiceHandler creates a new InvoiceHandler. A nil printer answers every
// request with EXPORT_NOT_CONFIGURED, a nil archive only the archive route.
func NewInvoiceHandler(bills BillReader, printer InvoicePrinter, archive DocumentArchive) *InvoiceHandler {
	return &InvoiceHandler{bills: bills, printer: printer, archive: archive}
}

// GetInvoicePDF handles GET /bills/:id/invoice.pdf
func (h *InvoiceHandler) GetInvoicePDF(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if h.printer == nil {
		h.HandleError(c, ErrInvoicesNotConfigured)
		return
	}

	bill, err := h.bills.GetBill(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.printer.Print(c.Request.Context(), bill, &buf); err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="invoice-`+billID.String()+`.pdf"`)
	c.Data(http.StatusOK, pdfContentType, buf.Bytes())
}

// ArchiveInvoice handles POST /bills/:id/invoice/archive. Each bill version is
// rendered once; later calls for the same version only return a fresh link.
func (h *InvoiceHandler) ArchiveInvoice(c *gin.Context) {
	billID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if h.printer == nil {
		h.HandleError(c, ErrInvoicesNotConfigured)
		return
	}
	if h.archive == nil {
		h.HandleError(c, ErrArchiveNotConfigured)
		return
	}

	ctx := c.Request.Context()
	bill, err := h.bills.GetBill(ctx, billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	key := invoiceKey(bill)
	exists, err := h.archive.Exists(ctx, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if !exists {
		var buf bytes.Buffer
		if err := h.printer.Print(ctx, bill, &buf); err != nil {
			h.HandleError(c, err)
			return
		}
		if err := h.archive.Put(ctx, key, buf.Bytes(), pdfContentType); err != nil {
			h.HandleError(c, err)
			return
		}
		logger.L(ctx).Info("Invoice archived",
			zap.String("bill_id", billID.String()),
			zap.String("key", key),
		)
	}

	link, expiresAt, err := h.archive.PresignGet(ctx, key, 0)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := InvoiceArchiveResponse{Key: key, URL: link, ExpiresAt: expiresAt, Created: !exists}
	if exists {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

func invoiceKey(bill *billingapp.BillResponse) string {
	return fmt.Sprintf("invoices/%s/%s/v%d.pdf", bill.LocationID, bill.ID, bill.Version)
}
