package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormBookingRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	s := seedBilling(t, db)
	repo := NewGormBookingRepository(db)
	ctx := context.Background()

	t.Run("round trip keeps dates rate and suppressed fees", func(t *testing.T) {
		b, err := repo.FindByID(ctx, s.booking.ID)
		require.NoError(t, err)
		require.NotNil(t, b)

		rate := valueobject.MustMoney("85.50")
		require.NoError(t, b.SetRate(&rate))
		b.SuppressFee(s.guestFee.ID)
		b.LinkBill(uuid.New())
		require.NoError(t, repo.SaveWithLock(ctx, b))

		again, err := repo.FindByID(ctx, s.booking.ID)
		require.NoError(t, err)
		assert.True(t, again.Use.Arrive.Equal(date(2028, time.January, 10)))
		assert.Equal(t, 3, again.Use.TotalNights())
		require.NotNil(t, again.Rate)
		assert.True(t, again.Rate.Equals(rate))
		assert.Equal(t, []uuid.UUID{s.guestFee.ID}, again.SuppressedFees)
		assert.Equal(t, b.BillID, again.BillID)
		assert.Equal(t, b.Version, again.Version)
	})

	t.Run("stale write is rejected", func(t *testing.T) {
		first, err := repo.FindByID(ctx, s.booking.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, s.booking.ID)
		require.NoError(t, err)

		first.SetComp(!first.Comp)
		require.NoError(t, repo.SaveWithLock(ctx, first))

		second.ResetSuppressedFees()
		err = repo.SaveWithLock(ctx, second)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	})

	t.Run("unknown booking is nil", func(t *testing.T) {
		b, err := repo.FindByID(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, b)
	})
}

func TestGormBookingRepository_FindIntersecting(t *testing.T) {
	db := setupBillingTestDB(t)
	s := seedBilling(t, db)
	repo := NewGormBookingRepository(db)
	ctx := context.Background()

	newStay := func(arrive, depart time.Time, status booking.Status) {
		b, err := booking.NewBooking(booking.Use{
			Arrive:     arrive,
			Depart:     depart,
			ResourceID: s.room.ID,
			LocationID: s.location.ID,
			UserID:     uuid.New(),
			Status:     status,
		}, nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, b))
	}
	// Jan 28 -> Feb 3 crosses the month boundary
	newStay(date(2028, time.January, 28), date(2028, time.February, 3), booking.StatusConfirmed)
	// Departs on Feb 1, so it does not intersect February
	newStay(date(2028, time.January, 25), date(2028, time.February, 1), booking.StatusConfirmed)
	newStay(date(2028, time.February, 10), date(2028, time.February, 12), booking.StatusCanceled)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		statuses []booking.Status
		want     int
	}{
		{"january confirmed", date(2028, time.January, 1), date(2028, time.February, 1), []booking.Status{booking.StatusConfirmed}, 3},
		{"february confirmed", date(2028, time.February, 1), date(2028, time.March, 1), []booking.Status{booking.StatusConfirmed}, 1},
		{"february any status", date(2028, time.February, 1), date(2028, time.March, 1), nil, 2},
		{"march", date(2028, time.March, 1), date(2028, time.April, 1), nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindIntersecting(ctx, s.location.ID, tt.start, tt.end, tt.statuses...)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	t.Run("find all filters by status and pages", func(t *testing.T) {
		status := booking.StatusConfirmed
		filter := booking.BookingFilter{Filter: shared.DefaultFilter(), LocationID: &s.location.ID, Status: &status}
		filter.OrderBy = "arrive"
		filter.OrderDir = "asc"
		filter.PageSize = 2

		page, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.True(t, page[0].Use.Arrive.Equal(date(2028, time.January, 10)))

		filter.Page = 2
		page, err = repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}

func TestGormSubscriptionRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()
	locationID := uuid.New()

	newMembership := func(start time.Time, end *time.Time) *booking.Subscription {
		sub, err := booking.NewSubscription(locationID, uuid.New(), "Monthly membership", valueobject.MustMoney("290"), start, end)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, sub))
		return sub
	}
	endJan := date(2028, time.January, 31)
	ended := newMembership(date(2027, time.November, 1), &endJan)
	open := newMembership(date(2028, time.February, 15), nil)

	t.Run("end date is the last active day", func(t *testing.T) {
		subs, err := repo.FindActiveBetween(ctx, locationID, date(2028, time.January, 31), date(2028, time.February, 1))
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, ended.ID, subs[0].ID)
	})

	t.Run("open ended membership", func(t *testing.T) {
		subs, err := repo.FindActiveBetween(ctx, locationID, date(2028, time.February, 1), date(2028, time.March, 1))
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, open.ID, subs[0].ID)
		assert.Nil(t, subs[0].EndDate)
		assert.True(t, subs[0].Price.Equals(valueobject.MustMoney("290")))
	})

	t.Run("active ids across locations", func(t *testing.T) {
		elsewhere, err := booking.NewSubscription(uuid.New(), uuid.New(), "Desk", valueobject.MustMoney("120"), date(2028, time.January, 1), nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, elsewhere))

		ids, err := repo.ActiveIDsOn(ctx, date(2028, time.February, 20))
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{open.ID, elsewhere.ID}, ids)

		ids, err = repo.ActiveIDsOn(ctx, date(2028, time.January, 31))
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{ended.ID, elsewhere.ID}, ids)
	})

	t.Run("comp and rate override round trip", func(t *testing.T) {
		sub, err := repo.FindByID(ctx, ended.ID)
		require.NoError(t, err)
		assert.False(t, sub.Comp)
		assert.Nil(t, sub.Rate)

		rate := valueobject.MustMoney("250")
		require.NoError(t, sub.SetRate(&rate))
		require.NoError(t, repo.SaveWithLock(ctx, sub))
		sub.SetComp(true)
		require.NoError(t, repo.SaveWithLock(ctx, sub))

		again, err := repo.FindByID(ctx, ended.ID)
		require.NoError(t, err)
		assert.True(t, again.Comp)
		require.NotNil(t, again.Rate)
		assert.True(t, again.Rate.Equals(rate))
	})

	t.Run("update end date with lock", func(t *testing.T) {
		sub, err := repo.FindByID(ctx, open.ID)
		require.NoError(t, err)
		end := date(2028, time.June, 30)
		require.NoError(t, sub.UpdateEndDate(&end, nil))
		require.NoError(t, repo.SaveWithLock(ctx, sub))

		again, err := repo.FindByID(ctx, open.ID)
		require.NoError(t, err)
		require.NotNil(t, again.EndDate)
		assert.True(t, again.EndDate.Equal(end))

		stale := *again
		stale.Version--
		stale.SuppressFee(uuid.New())
		err = repo.SaveWithLock(ctx, &stale)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	})
}

func TestGormLocationRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	s := seedBilling(t, db)
	repo := NewGormLocationRepository(db)
	ctx := context.Background()

	loc, err := repo.FindBySlug(ctx, "mission")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, s.location.ID, loc.ID)

	private, err := booking.NewResource(s.location.ID, "Attic", nil)
	require.NoError(t, err)
	private.Reservable = false
	require.NoError(t, repo.SaveResource(ctx, private))

	rooms, err := repo.FindResources(ctx, s.location.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Attic", rooms[0].Name)
	assert.False(t, rooms[0].Reservable)
	assert.Nil(t, rooms[0].DefaultRate)
	require.NotNil(t, rooms[1].DefaultRate)
	assert.True(t, rooms[1].DefaultRate.Equals(valueobject.MustMoney("100")))

	missing, err := repo.FindBySlug(ctx, "nowhere")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
