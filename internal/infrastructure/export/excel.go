// Package export renders reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/coliving/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of a month workbook
const (
	SheetSummary  = "Summary"
	SheetRooms    = "Rooms"
	SheetStays    = "Stays"
	SheetPayments = "Payments"
)

// ContentType is the MIME type of the workbooks ExcelExporter writes
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExcelExporter writes month reports as xlsx workbooks
type ExcelExporter struct{}

// NewExcelExporter creates an ExcelExporter
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// sheetWriter appends rows to one sheet and remembers the first error
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (s *sheetWriter) append(values ...any) {
	if s.err != nil {
		return
	}
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(s.sheet, cell, &values)
}

// header writes a bold first row
func (s *sheetWriter) header(style int, titles ...string) {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	s.append(values...)
	if s.err != nil || len(titles) == 0 {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(titles), s.row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellStyle(s.sheet, "A1", last, style)
}

// WriteMonth writes the occupancy and payments of one month to w
func (e *ExcelExporter) WriteMonth(w io.Writer, occupancy *report.MonthlyOccupancy, payments *report.PaymentsSummary) error {
	if occupancy == nil || payments == nil {
		return fmt.Errorf("export: occupancy and payments are required")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetRooms, SheetStays, SheetPayments} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for _, write := range []func() error{
		func() error { return writeSummary(f, bold, occupancy, payments) },
		func() error { return writeRooms(f, bold, occupancy) },
		func() error { return writeStays(f, bold, occupancy) },
		func() error { return writePayments(f, bold, payments) },
	} {
		if err := write(); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSummary(f *excelize.File, style int, o *report.MonthlyOccupancy, p *report.PaymentsSummary) error {
	s := &sheetWriter{f: f, sheet: SheetSummary}
	s.header(style, "Metric", "Value")
	s.append("Period start", o.Start.Format("2006-01-02"))
	s.append("Period end", o.End.AddDate(0, 0, -1).Format("2006-01-02"))
	s.append("Occupied nights", o.TotalOccupiedNights)
	s.append("Reservable nights", o.TotalReservableNights)
	s.append("Occupancy %", num(o.OverallOccupancy))
	s.append("Income", num(o.TotalIncome))
	s.append("Total user value", num(o.TotalUserValue))
	s.append("Externalized fees", num(o.ExternalizedFees))
	s.append("Internal fees", num(o.InternalFees))
	s.append("Comped nights", o.CompedNights)
	s.append("Comped value", num(o.CompedValue))
	s.append("Unpaid", num(o.UnpaidTotal))
	s.append("Payments (cash)", num(o.PaymentsCash))
	s.append("Payments (accrual)", num(o.PaymentsAccrual))
	s.append("Outstanding", num(o.OutstandingValue))
	s.append("Income for this month", num(o.IncomeForThisMonth))
	s.append("Income from past months", num(o.IncomeFromPastMonths))
	s.append("Income for future months", num(o.IncomeForFutureMonths))
	s.append("Income for past months", num(o.IncomeForPastMonths))
	s.append("Booking payments", num(p.BookingTotal))
	s.append("Subscription payments", num(p.SubscriptionTotal))
	s.append("Refunds", num(p.RefundTotal))
	s.append("Payments total", num(p.Total))
	if s.err != nil {
		return s.err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 26)
}

func writeRooms(f *excelize.File, style int, o *report.MonthlyOccupancy) error {
	s := &sheetWriter{f: f, sheet: SheetRooms}
	s.header(style, "Room", "Occupied nights", "Reservable nights", "Occupancy %", "Income",
		"Payments (cash)", "Payments (accrual)", "Outstanding", "Comped nights", "Comped value",
		"User value", "Net to house", "Externalized fees", "Internal fees")
	for _, r := range o.Rooms {
		s.append(r.Name, r.OccupiedNights, r.ReservableNights, num(r.OccupancyRate), num(r.Income),
			num(r.PaymentsCash), num(r.PaymentsAccrual), num(r.OutstandingValue), r.CompedNights, num(r.CompedValue),
			num(r.TotalUserValue), num(r.NetToHouse), num(r.ExternalizedFees), num(r.InternalFees))
	}
	return s.err
}

func writeStays(f *excelize.File, style int, o *report.MonthlyOccupancy) error {
	s := &sheetWriter{f: f, sheet: SheetStays}
	s.header(style, "Booking", "Room", "User", "Nights this month", "Total nights", "Rate",
		"Total", "Comp", "Unpaid", "Partially paid", "Owed")
	for _, l := range o.Lines {
		s.append(l.BookingID.String(), l.ResourceName, l.UserID.String(), l.NightsThisMonth, l.TotalNights,
			num(l.Rate), num(l.Total), l.Comp, l.Unpaid, l.PartialPayment, num(l.TotalOwed))
	}
	return s.err
}

func writePayments(f *excelize.File, style int, p *report.PaymentsSummary) error {
	s := &sheetWriter{f: f, sheet: SheetPayments}
	s.header(style, "Date", "Bill", "Kind", "Service", "Method", "Transaction", "Amount",
		"To house", "Non-house fees", "Refund")
	for _, r := range p.Rows {
		s.append(r.PaymentDate.Format("2006-01-02"), r.BillID.String(), string(r.SubjectKind), r.Service,
			r.Method, r.TransactionID, num(r.Amount), num(r.ToHouse), num(r.NonHouseFees), r.Refund)
	}
	return s.err
}

// num renders money as a spreadsheet number
func num(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
