package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/report"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Exporter renders a month of reports as a spreadsheet
type Exporter interface {
	WriteMonth(w io.Writer, occupancy *report.MonthlyOccupancy, payments *report.PaymentsSummary) error
}

// OccupancyReportService loads committed bookings, subscriptions and bills and
// hands them to the report builders. It takes no locks.
type OccupancyReportService struct {
	bills         billing.BillRepository
	bookings      booking.BookingRepository
	subscriptions booking.SubscriptionRepository
	locations     booking.LocationRepository
	exporter      Exporter
	logger        *zap.Logger
}

// NewOccupancyReportService creates a new OccupancyReportService. exporter may be nil
// when spreadsheet downloads are not offered.
func NewOccupancyReportService(
	bills billing.BillRepository,
	bookings booking.BookingRepository,
	subscriptions booking.SubscriptionRepository,
	locations booking.LocationRepository,
	exporter Exporter,
	logger *zap.Logger,
) *OccupancyReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccupancyReportService{
		bills:         bills,
		bookings:      bookings,
		subscriptions: subscriptions,
		locations:     locations,
		exporter:      exporter,
		logger:        logger,
	}
}

// ErrExportNotConfigured is returned by ExportMonth without an exporter
var ErrExportNotConfigured = shared.NewDomainError("EXPORT_NOT_CONFIGURED", "spreadsheet export is not configured")

// MonthlyOccupancy builds the occupancy and revenue report of one month
func (s *OccupancyReportService) MonthlyOccupancy(ctx context.Context, req MonthRequest) (*report.MonthlyOccupancy, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "monthly_occupancy")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLocationID, req.LocationID.String(),
		telemetry.SpanAttrReportMonth, fmt.Sprintf("%04d-%02d", req.Year, req.Month),
	)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureLocation(ctx, req.LocationID); err != nil {
		return nil, err
	}
	month := time.Month(req.Month)
	start, end := report.MonthWindow(req.Year, month)

	resources, err := s.locations.FindResources(ctx, req.LocationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	stays, err := s.bookings.FindIntersecting(ctx, req.LocationID, start, end, booking.StatusConfirmed)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	stayBills, err := s.pairBills(ctx, stays)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	paid, err := s.bookingsPaidBetween(ctx, req.LocationID, start, end)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	occupancy := report.BuildMonthlyOccupancy(report.OccupancyInput{
		LocationID: req.LocationID,
		Year:       req.Year,
		Month:      month,
		Resources:  resources,
		Stays:      stayBills,
		Paid:       paid,
	})
	if len(occupancy.PaymentDiscrepancies) > 0 {
		s.logger.Warn("bookings paid at a different rate than billed",
			zap.String("location_id", req.LocationID.String()),
			zap.Int("count", len(occupancy.PaymentDiscrepancies)),
		)
	}
	return occupancy, nil
}

// PaymentsSummary lists every payment and refund dated in one month
func (s *OccupancyReportService) PaymentsSummary(ctx context.Context, req MonthRequest) (*report.PaymentsSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "payments_summary")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLocationID, req.LocationID.String(),
		telemetry.SpanAttrReportMonth, fmt.Sprintf("%04d-%02d", req.Year, req.Month),
	)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureLocation(ctx, req.LocationID); err != nil {
		return nil, err
	}
	start, end := report.MonthWindow(req.Year, time.Month(req.Month))
	bills, err := s.bills.FindWithPaymentsBetween(ctx, req.LocationID, start, end)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load bills with payments: %w", err)
	}
	return report.BuildPaymentsSummary(req.LocationID, start, end, billPointers(bills)), nil
}

// Occupants summarizes guests and members who stayed during a window
func (s *OccupancyReportService) Occupants(ctx context.Context, req OccupantsRequest) (*report.Occupants, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "occupants")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrLocationID, req.LocationID.String())

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureLocation(ctx, req.LocationID); err != nil {
		return nil, err
	}
	start, end := billing.DateOf(req.Start), billing.DateOf(req.End)

	stays, err := s.bookings.FindIntersecting(ctx, req.LocationID, start, end, booking.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	guests, err := s.pairBills(ctx, stays)
	if err != nil {
		return nil, err
	}

	subs, err := s.subscriptions.FindActiveBetween(ctx, req.LocationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	members := make([]report.SubscribedBills, 0, len(subs))
	for i := range subs {
		bills, err := s.bills.FindBySubscription(ctx, subs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bills of subscription %s: %w", subs[i].ID, err)
		}
		members = append(members, report.SubscribedBills{Subscription: &subs[i], Bills: billPointers(bills)})
	}

	return report.BuildOccupants(report.OccupantInput{
		LocationID: req.LocationID,
		Start:      start,
		End:        end,
		Guests:     guests,
		Members:    members,
	}), nil
}

// ExportMonth writes the occupancy report and the payments summary of a month as xlsx
func (s *OccupancyReportService) ExportMonth(ctx context.Context, req MonthRequest, w io.Writer) error {
	if s.exporter == nil {
		return ErrExportNotConfigured
	}
	occupancy, err := s.MonthlyOccupancy(ctx, req)
	if err != nil {
		return err
	}
	payments, err := s.PaymentsSummary(ctx, req)
	if err != nil {
		return err
	}
	if err := s.exporter.WriteMonth(w, occupancy, payments); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func (s *OccupancyReportService) ensureLocation(ctx context.Context, id uuid.UUID) error {
	loc, err := s.locations.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load location %s: %w", id, err)
	}
	if loc == nil {
		return shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("location %s not found", id))
	}
	return nil
}

// pairBills attaches each booking's bill. Bookings without one are kept with a nil bill.
func (s *OccupancyReportService) pairBills(ctx context.Context, bookings []booking.Booking) ([]report.BookedBill, error) {
	ids := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	byBooking := make(map[uuid.UUID]*billing.Bill, len(ids))
	if len(ids) > 0 {
		bills, err := s.bills.FindByBookings(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load bills of bookings: %w", err)
		}
		for i := range bills {
			if bs, ok := bills[i].Subject.Booking(); ok {
				byBooking[bs.BookingID] = &bills[i]
			}
		}
	}
	out := make([]report.BookedBill, 0, len(bookings))
	for i := range bookings {
		out = append(out, report.BookedBill{Booking: &bookings[i], Bill: byBooking[bookings[i].ID]})
	}
	return out, nil
}

// bookingsPaidBetween finds the bookings behind every bill with a payment in [start, end)
func (s *OccupancyReportService) bookingsPaidBetween(ctx context.Context, locationID uuid.UUID, start, end time.Time) ([]report.BookedBill, error) {
	bills, err := s.bills.FindWithPaymentsBetween(ctx, locationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills with payments: %w", err)
	}
	byBooking := make(map[uuid.UUID]*billing.Bill)
	ids := make([]uuid.UUID, 0, len(bills))
	for i := range bills {
		if bs, ok := bills[i].Subject.Booking(); ok {
			byBooking[bs.BookingID] = &bills[i]
			ids = append(ids, bs.BookingID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	bookings, err := s.bookings.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid bookings: %w", err)
	}
	out := make([]report.BookedBill, 0, len(bookings))
	for i := range bookings {
		out = append(out, report.BookedBill{Booking: &bookings[i], Bill: byBooking[bookings[i].ID]})
	}
	return out, nil
}

func billPointers(bills []billing.Bill) []*billing.Bill {
	out := make([]*billing.Bill, len(bills))
	for i := range bills {
		out[i] = &bills[i]
	}
	return out
}
