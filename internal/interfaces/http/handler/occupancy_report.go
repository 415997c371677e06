package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	reportapp "github.com/coliving/backend/internal/application/report"
	"github.com/coliving/backend/internal/domain/report"
	"github.com/coliving/backend/internal/infrastructure/export"
	"github.com/gin-gonic/gin"
)

// OccupancyReporter computes the monthly reports of a location
type OccupancyReporter interface {
	MonthlyOccupancy(ctx context.Context, req reportapp.MonthRequest) (*report.MonthlyOccupancy, error)
	PaymentsSummary(ctx context.Context, req reportapp.MonthRequest) (*report.PaymentsSummary, error)
	Occupants(ctx context.Context, req reportapp.OccupantsRequest) (*report.Occupants, error)
	ExportMonth(ctx context.Context, req reportapp.MonthRequest, w io.Writer) error
}

// ReportHandler serves location reports
type ReportHandler struct {
	BaseHandler
	reports OccupancyReporter
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports OccupancyReporter) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) bindMonth(c *gin.Context) (reportapp.MonthRequest, bool) {
	locationID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return reportapp.MonthRequest{}, false
	}
	var req reportapp.MonthRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return reportapp.MonthRequest{}, false
	}
	req.LocationID = locationID
	return req, true
}

// GetOccupancy handles GET /locations/:id/reports/occupancy?year=&month=
func (h *ReportHandler) GetOccupancy(c *gin.Context) {
	req, ok := h.bindMonth(c)
	if !ok {
		return
	}
	occupancy, err := h.reports.MonthlyOccupancy(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, occupancy)
}

// GetPayments handles GET /locations/:id/reports/payments?year=&month=
func (h *ReportHandler) GetPayments(c *gin.Context) {
	req, ok := h.bindMonth(c)
	if !ok {
		return
	}
	summary, err := h.reports.PaymentsSummary(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetOccupants handles GET /locations/:id/reports/occupants?start=&end=
func (h *ReportHandler) GetOccupants(c *gin.Context) {
	locationID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req reportapp.OccupantsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.LocationID = locationID

	occupants, err := h.reports.Occupants(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, occupants)
}

// ExportOccupancy handles GET /locations/:id/reports/occupancy.xlsx?year=&month=.
// The workbook is built in memory so a failure can still be answered as JSON.
func (h *ReportHandler) ExportOccupancy(c *gin.Context) {
	req, ok := h.bindMonth(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.reports.ExportMonth(c.Request.Context(), req, &buf); err != nil {
		h.HandleError(c, err)
		return
	}

	filename := fmt.Sprintf("occupancy-%04d-%02d.xlsx", req.Year, req.Month)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
