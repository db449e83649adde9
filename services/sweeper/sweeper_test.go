package sweeper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/services/availability"
	"rentalspot/services/booking"
	"rentalspot/services/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type env struct {
	store   *calendarRepo.MemoryStore
	checker *availability.Checker
	svc     *booking.DefaultBookingService
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := calendarRepo.NewMemoryStore()
	cal := &models.PriceCalendar{
		ID: models.MonthKey("villa", 2025, time.July), PropertyID: "villa", Year: 2025, Month: 7,
		Days: map[string]models.DayEntry{},
	}
	for d := 1; d <= 31; d++ {
		cal.Days[fmt.Sprint(d)] = models.DayEntry{BaseOccupancyPrice: 150, Available: true}
	}
	require.NoError(t, store.SaveCalendar(context.Background(), cal))

	props := propertyRepo.NewMemoryPropertyRepo(models.Property{ID: "villa", BaseOccupancy: 2, MaxGuests: 4, Active: true})
	logger := zap.NewNop()
	checker := availability.NewChecker(store, availability.Config{Strategy: availability.StrategyDual}, logger)
	e := &env{store: store, checker: checker, now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	e.svc = booking.NewBookingService(store, props, pricing.NewPricingEngine(store, props, logger, 1), checker, logger, 15*time.Minute)
	e.svc.Now = func() time.Time { return e.now }
	return e
}

func (e *env) hold(t *testing.T, checkIn, checkOut string) *models.Booking {
	t.Helper()
	b, err := e.svc.CreateBooking(context.Background(), booking.CreateBookingRequest{
		PropertyID: "villa", CheckIn: checkIn, CheckOut: checkOut, Guests: 2,
		Guest:  models.GuestInfo{FirstName: "Lee", LastName: "Park", Email: "lee@example.com"},
		Status: models.StatusOnHold,
	})
	require.NoError(t, err)
	return b
}

func (e *env) sweeper(batch int) *Sweeper {
	s := NewSweeper(e.store, e.svc, zap.NewNop(), batch)
	s.Now = func() time.Time { return e.now }
	return s
}

func TestRun_ExpiresLapsedHoldsAndFreesNights(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	expiring := e.hold(t, "2025-07-01", "2025-07-04")
	e.now = e.now.Add(10 * time.Minute)
	live := e.hold(t, "2025-07-10", "2025-07-12")
	e.now = e.now.Add(6 * time.Minute)

	report, err := e.sweeper(10).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Expired)
	assert.Empty(t, report.Failures)

	got, err := e.svc.GetBooking(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	res, err := e.checker.CheckAvailability(ctx, "villa", "2025-07-01", "2025-07-04")
	require.NoError(t, err)
	assert.True(t, res.IsAvailable)

	got, _ = e.svc.GetBooking(ctx, live.ID)
	assert.Equal(t, models.StatusOnHold, got.Status)
}

func TestRun_PagesThroughBatches(t *testing.T) {
	e := newEnv(t)
	for d := 1; d <= 9; d += 2 {
		e.hold(t, fmt.Sprintf("2025-07-%02d", d), fmt.Sprintf("2025-07-%02d", d+1))
	}
	e.now = e.now.Add(time.Hour)

	report, err := e.sweeper(2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 5, report.Expired)

	holds, err := e.store.ListExpiredHolds(context.Background(), e.now, 0)
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	e := newEnv(t)
	e.hold(t, "2025-07-20", "2025-07-22")
	e.now = e.now.Add(time.Hour)
	s := e.sweeper(10)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
}

type flakyExpirer struct {
	next booking.BookingService
	fail string
}

func (f *flakyExpirer) ExpireHold(ctx context.Context, id string) (bool, error) {
	if id == f.fail {
		return false, errors.New("store unavailable")
	}
	return f.next.ExpireHold(ctx, id)
}

func TestRun_FailureDoesNotBlockOthers(t *testing.T) {
	e := newEnv(t)
	bad := e.hold(t, "2025-07-01", "2025-07-02")
	e.now = e.now.Add(time.Minute)
	good := e.hold(t, "2025-07-05", "2025-07-06")
	e.now = e.now.Add(time.Hour)

	s := NewSweeper(e.store, &flakyExpirer{next: e.svc, fail: bad.ID}, zap.NewNop(), 1)
	s.Now = func() time.Time { return e.now }
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Expired)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad.ID, report.Failures[0].BookingID)

	got, _ := e.svc.GetBooking(context.Background(), good.ID)
	assert.Equal(t, models.StatusCancelled, got.Status)
	got, _ = e.svc.GetBooking(context.Background(), bad.ID)
	assert.Equal(t, models.StatusOnHold, got.Status)
}
