package report

import (
	"context"
	"io"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	domainreport "github.com/coliving/backend/internal/domain/report"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockBillRepository struct {
	mock.Mock
}

func (m *mockBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Bill), args.Error(1)
}

func (m *mockBillRepository) FindBySubject(ctx context.Context, subject billing.BillSubject) (*billing.Bill, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Bill), args.Error(1)
}

func (m *mockBillRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*billing.Bill, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Bill), args.Error(1)
}

func (m *mockBillRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]billing.Bill, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Bill), args.Error(1)
}

func (m *mockBillRepository) FindByBookings(ctx context.Context, bookingIDs []uuid.UUID) ([]billing.Bill, error) {
	args := m.Called(ctx, bookingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Bill), args.Error(1)
}

func (m *mockBillRepository) FindWithPaymentsBetween(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]billing.Bill, error) {
	args := m.Called(ctx, locationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Bill), args.Error(1)
}

func (m *mockBillRepository) Create(ctx context.Context, bill *billing.Bill) error {
	return m.Called(ctx, bill).Error(0)
}

func (m *mockBillRepository) SaveWithLock(ctx context.Context, bill *billing.Bill) error {
	return m.Called(ctx, bill).Error(0)
}

func (m *mockBillRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockBookingRepository struct {
	mock.Mock
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *mockBookingRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]booking.Booking, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Booking), args.Error(1)
}

func (m *mockBookingRepository) FindAll(ctx context.Context, filter booking.BookingFilter) ([]booking.Booking, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Booking), args.Error(1)
}

func (m *mockBookingRepository) FindIntersecting(ctx context.Context, locationID uuid.UUID, start, end time.Time, statuses ...booking.Status) ([]booking.Booking, error) {
	args := m.Called(ctx, locationID, start, end, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Booking), args.Error(1)
}

func (m *mockBookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingRepository) SaveWithLock(ctx context.Context, b *booking.Booking) error {
	return m.Called(ctx, b).Error(0)
}

type mockSubscriptionRepository struct {
	mock.Mock
}

func (m *mockSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) FindActiveBetween(ctx context.Context, locationID uuid.UUID, start, end time.Time) ([]booking.Subscription, error) {
	args := m.Called(ctx, locationID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) Save(ctx context.Context, s *booking.Subscription) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSubscriptionRepository) SaveWithLock(ctx context.Context, s *booking.Subscription) error {
	return m.Called(ctx, s).Error(0)
}

type mockLocationRepository struct {
	mock.Mock
}

func (m *mockLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Location), args.Error(1)
}

func (m *mockLocationRepository) FindBySlug(ctx context.Context, slug string) (*booking.Location, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Location), args.Error(1)
}

func (m *mockLocationRepository) FindResource(ctx context.Context, id uuid.UUID) (*booking.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Resource), args.Error(1)
}

func (m *mockLocationRepository) FindResources(ctx context.Context, locationID uuid.UUID) ([]booking.Resource, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.Resource), args.Error(1)
}

func (m *mockLocationRepository) Save(ctx context.Context, l *booking.Location) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockLocationRepository) SaveResource(ctx context.Context, r *booking.Resource) error {
	return m.Called(ctx, r).Error(0)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) WriteMonth(w io.Writer, occupancy *domainreport.MonthlyOccupancy, payments *domainreport.PaymentsSummary) error {
	return m.Called(w, occupancy, payments).Error(0)
}
