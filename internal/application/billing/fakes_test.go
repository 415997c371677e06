package billing

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for the database. Aggregates are copied in
// and out so the version check behaves like the real repositories.
type memStore struct {
	mu            sync.Mutex
	bills         map[uuid.UUID]billing.Bill
	bookings      map[uuid.UUID]booking.Booking
	subscriptions map[uuid.UUID]booking.Subscription
	resources     map[uuid.UUID]booking.Resource
	locationFees  []billing.LocationFee
}

func newMemStore() *memStore {
	return &memStore{
		bills:         make(map[uuid.UUID]billing.Bill),
		bookings:      make(map[uuid.UUID]booking.Booking),
		subscriptions: make(map[uuid.UUID]booking.Subscription),
		resources:     make(map[uuid.UUID]booking.Resource),
	}
}

func (m *memStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(memBills{m}, memFees{m}, memBookings{m}, memSubscriptions{m}, memLocations{m})
}

func copyBill(b billing.Bill) billing.Bill {
	b.LineItems = slices.Clone(b.LineItems)
	b.Payments = slices.Clone(b.Payments)
	b.ClearDomainEvents()
	b.MarkPersisted()
	return b
}

type memBills struct{ m *memStore }

func (r memBills) FindByID(_ context.Context, id uuid.UUID) (*billing.Bill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bills[id]
	if !ok {
		return nil, nil
	}
	c := copyBill(b)
	return &c, nil
}

func (r memBills) FindBySubject(_ context.Context, subject billing.BillSubject) (*billing.Bill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, b := range r.m.bills {
		if b.Subject.SameBill(subject) {
			c := copyBill(b)
			return &c, nil
		}
	}
	return nil, nil
}

func (r memBills) FindByPaymentID(_ context.Context, paymentID uuid.UUID) (*billing.Bill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, b := range r.m.bills {
		if b.FindPayment(paymentID) != nil {
			c := copyBill(b)
			return &c, nil
		}
	}
	return nil, nil
}

func (r memBills) FindBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]billing.Bill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]billing.Bill, 0)
	for _, b := range r.m.bills {
		if s, ok := b.Subject.Subscription(); ok && s.SubscriptionID == subscriptionID {
			out = append(out, copyBill(b))
		}
	}
	return out, nil
}

func (r memBills) FindByBookings(_ context.Context, ids []uuid.UUID) ([]billing.Bill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]billing.Bill, 0)
	for _, b := range r.m.bills {
		if bs, ok := b.Subject.Booking(); ok && slices.Contains(ids, bs.BookingID) {
			out = append(out, copyBill(b))
		}
	}
	return out, nil
}

func (r memBills) FindWithPaymentsBetween(_ context.Context, locationID uuid.UUID, from, to time.Time) ([]billing.Bill, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]billing.Bill, 0)
	for _, b := range r.m.bills {
		if b.LocationID == locationID && len(b.PaymentsBetween(from, to)) > 0 {
			out = append(out, copyBill(b))
		}
	}
	return out, nil
}

func (r memBills) Create(_ context.Context, bill *billing.Bill) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.bills[bill.ID] = copyBill(*bill)
	bill.MarkPersisted()
	return nil
}

func (r memBills) SaveWithLock(_ context.Context, bill *billing.Bill) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.bills[bill.ID]
	if !ok || stored.Version != bill.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.bills[bill.ID] = copyBill(*bill)
	bill.MarkPersisted()
	return nil
}

func (r memBills) Delete(_ context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.bills, id)
	return nil
}

type memFees struct{ m *memStore }

func (r memFees) FindByID(_ context.Context, id uuid.UUID) (*billing.Fee, error) {
	for _, lf := range r.m.locationFees {
		if lf.FeeID == id {
			return lf.Fee, nil
		}
	}
	return nil, nil
}

func (r memFees) FindAll(context.Context) ([]billing.Fee, error) {
	out := make([]billing.Fee, 0)
	for _, lf := range r.m.locationFees {
		out = append(out, *lf.Fee)
	}
	return out, nil
}

func (r memFees) FindLocationFees(_ context.Context, locationID uuid.UUID) ([]billing.LocationFee, error) {
	out := make([]billing.LocationFee, 0)
	for _, lf := range r.m.locationFees {
		if lf.LocationID == locationID {
			out = append(out, lf)
		}
	}
	return out, nil
}

func (r memFees) Save(context.Context, *billing.Fee) error { return nil }

func (r memFees) SaveLocationFee(_ context.Context, lf *billing.LocationFee) error {
	r.m.locationFees = append(r.m.locationFees, *lf)
	return nil
}

func (r memFees) DeleteLocationFee(_ context.Context, id uuid.UUID) error {
	r.m.locationFees = slices.DeleteFunc(r.m.locationFees, func(lf billing.LocationFee) bool { return lf.ID == id })
	return nil
}

type memBookings struct{ m *memStore }

func copyBooking(b booking.Booking) booking.Booking {
	b.SuppressedFees = slices.Clone(b.SuppressedFees)
	b.MarkPersisted()
	return b
}

func (r memBookings) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, nil
	}
	c := copyBooking(b)
	return &c, nil
}

func (r memBookings) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]booking.Booking, error) {
	out := make([]booking.Booking, 0, len(ids))
	for _, id := range ids {
		if b, _ := r.FindByID(ctx, id); b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r memBookings) FindAll(context.Context, booking.BookingFilter) ([]booking.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]booking.Booking, 0)
	for _, b := range r.m.bookings {
		out = append(out, copyBooking(b))
	}
	return out, nil
}

func (r memBookings) FindIntersecting(_ context.Context, locationID uuid.UUID, start, end time.Time, statuses ...booking.Status) ([]booking.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]booking.Booking, 0)
	for _, b := range r.m.bookings {
		if b.Use.LocationID != locationID || b.Use.NightsBetween(start, end) == 0 {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, b.Use.Status) {
			continue
		}
		out = append(out, copyBooking(b))
	}
	return out, nil
}

func (r memBookings) Save(_ context.Context, b *booking.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.bookings[b.ID] = copyBooking(*b)
	b.MarkPersisted()
	return nil
}

func (r memBookings) SaveWithLock(_ context.Context, b *booking.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.bookings[b.ID]
	if !ok || stored.Version != b.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.bookings[b.ID] = copyBooking(*b)
	b.MarkPersisted()
	return nil
}

type memSubscriptions struct{ m *memStore }

func copySubscription(s booking.Subscription) booking.Subscription {
	s.SuppressedFees = slices.Clone(s.SuppressedFees)
	s.MarkPersisted()
	return s
}

func (r memSubscriptions) FindByID(_ context.Context, id uuid.UUID) (*booking.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.subscriptions[id]
	if !ok {
		return nil, nil
	}
	c := copySubscription(s)
	return &c, nil
}

func (r memSubscriptions) FindActiveBetween(_ context.Context, locationID uuid.UUID, start, end time.Time) ([]booking.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]booking.Subscription, 0)
	for _, s := range r.m.subscriptions {
		if s.LocationID == locationID && s.ActiveDaysBetween(start, end) > 0 {
			out = append(out, copySubscription(s))
		}
	}
	return out, nil
}

func (r memSubscriptions) Save(_ context.Context, s *booking.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.subscriptions[s.ID] = copySubscription(*s)
	s.MarkPersisted()
	return nil
}

func (r memSubscriptions) SaveWithLock(_ context.Context, s *booking.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.subscriptions[s.ID]
	if !ok || stored.Version != s.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.m.subscriptions[s.ID] = copySubscription(*s)
	s.MarkPersisted()
	return nil
}

type memLocations struct{ m *memStore }

func (r memLocations) FindByID(context.Context, uuid.UUID) (*booking.Location, error) {
	return nil, nil
}

func (r memLocations) FindBySlug(context.Context, string) (*booking.Location, error) {
	return nil, nil
}

func (r memLocations) FindResource(_ context.Context, id uuid.UUID) (*booking.Resource, error) {
	res, ok := r.m.resources[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r memLocations) FindResources(_ context.Context, locationID uuid.UUID) ([]booking.Resource, error) {
	out := make([]booking.Resource, 0)
	for _, res := range r.m.resources {
		if res.LocationID == locationID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r memLocations) Save(context.Context, *booking.Location) error { return nil }

func (r memLocations) SaveResource(_ context.Context, res *booking.Resource) error {
	r.m.resources[res.ID] = *res
	return nil
}

// MockPaymentGateway is a mock implementation of billing.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Charge(ctx context.Context, req billing.ChargeRequest) (billing.ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(billing.ChargeResult), args.Error(1)
}

func (m *MockPaymentGateway) Refund(ctx context.Context, transactionID string, amount valueobject.Money) (string, error) {
	args := m.Called(ctx, transactionID, amount)
	return args.String(0), args.Error(1)
}

// recordingNotifier keeps every event it is handed
type recordingNotifier struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (n *recordingNotifier) Notify(_ context.Context, events ...shared.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventType())
	}
	return out
}

// MockBillLocker is a mock implementation of BillLocker
type MockBillLocker struct {
	mock.Mock
}

func (m *MockBillLocker) Acquire(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// mutexLocker serializes callers in one process the way the Redis lock does across processes
type mutexLocker struct{ mu sync.Mutex }

func (l *mutexLocker) Acquire(context.Context, string) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

// fixture is a house with one $100/night room, a 5% guest fee, a $10 cleaning
// fee and a three night booking: 300 + 15 + 10 = 325
type fixture struct {
	store    *memStore
	notifier *recordingNotifier
	location uuid.UUID
	resource *booking.Resource
	guestFee *billing.Fee
	cleaning *billing.Fee
	booking  *booking.Booking
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		location: uuid.New(),
		now:      time.Date(2028, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	rate := valueobject.NewMoneyFromInt(100)
	res, err := booking.NewResource(f.location, "Blue room", &rate)
	require.NoError(t, err)
	f.resource = res
	f.store.resources[res.ID] = *res

	f.guestFee, err = billing.NewPercentageFee("Guest fee", decimal.RequireFromString("0.05"), false)
	require.NoError(t, err)
	f.cleaning, err = billing.NewFlatFee("Cleaning", valueobject.NewMoneyFromInt(10), true)
	require.NoError(t, err)
	f.store.locationFees = append(f.store.locationFees,
		billing.NewLocationFee(f.location, f.guestFee, nil),
		billing.NewLocationFee(f.location, f.cleaning, nil),
	)

	f.booking, err = booking.NewBooking(booking.Use{
		Arrive:     time.Date(2028, 1, 10, 0, 0, 0, 0, time.UTC),
		Depart:     time.Date(2028, 1, 13, 0, 0, 0, 0, time.UTC),
		ResourceID: res.ID,
		LocationID: f.location,
		UserID:     uuid.New(),
		Status:     booking.StatusConfirmed,
	}, nil)
	require.NoError(t, err)
	f.store.bookings[f.booking.ID] = *f.booking
	return f
}

func (f *fixture) options() Options {
	return Options{
		Notifier: f.notifier,
		Clock:    func() time.Time { return f.now },
	}
}

func (f *fixture) generation() *BillGenerationService {
	return NewBillGenerationService(f.store.scope(), zap.NewNop(), f.options())
}

// generate creates the booking's bill and returns it
func (f *fixture) generate(t *testing.T) *BillResponse {
	t.Helper()
	resp, err := f.generation().GenerateBookingBill(context.Background(), GenerateBookingBillRequest{BookingID: f.booking.ID})
	require.NoError(t, err)
	return resp
}

func (f *fixture) storedBooking() booking.Booking {
	return f.store.bookings[f.booking.ID]
}

func findItem(resp *BillResponse, description string) *LineItemResponse {
	for i := range resp.LineItems {
		if strings.HasPrefix(resp.LineItems[i].Description, description) {
			return &resp.LineItems[i]
		}
	}
	return nil
}

func money(s string) valueobject.Money {
	return valueobject.MustMoney(s)
}

func assertMoney(t *testing.T, expected string, actual valueobject.Money) {
	t.Helper()
	assert.True(t, actual.Equals(valueobject.MustMoney(expected)), "expected %s, got %s", expected, actual)
}
