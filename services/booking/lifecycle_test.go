package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/services/availability"
	"rentalspot/services/pricing"
	"rentalspot/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (r *recordingNotifier) NotifyBookingEvent(_ context.Context, evt models.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingScheduler struct {
	scheduled map[string]time.Time
}

func (r *recordingScheduler) ScheduleHoldExpiry(_ context.Context, bookingID string, at time.Time) error {
	r.scheduled[bookingID] = at
	return nil
}

type fakeGateway struct {
	calls int
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, b *models.Booking) (*models.PaymentIntentResponse, error) {
	g.calls++
	return &models.PaymentIntentResponse{
		BookingID:       b.ID,
		PaymentIntentID: "pi_" + b.ID,
		ClientSecret:    "pi_" + b.ID + "_secret",
		Amount:          b.Pricing.Total,
		Currency:        b.Pricing.Currency,
	}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*PaymentEvent, error) {
	return nil, errors.New("not used")
}

type fixture struct {
	svc       *DefaultBookingService
	store     *calendarRepo.MemoryStore
	checker   *availability.Checker
	notifier  *recordingNotifier
	scheduler *recordingScheduler
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := calendarRepo.NewMemoryStore()
	cal := &models.PriceCalendar{
		ID: models.MonthKey("villa", 2025, time.July), PropertyID: "villa", Year: 2025, Month: 7,
		Days: map[string]models.DayEntry{},
	}
	for d := 1; d <= 31; d++ {
		cal.Days[fmt.Sprint(d)] = models.DayEntry{BaseOccupancyPrice: 200, Available: true, MinimumStay: 1}
	}
	require.NoError(t, store.SaveCalendar(context.Background(), cal))

	props := propertyRepo.NewMemoryPropertyRepo(models.Property{
		ID: "villa", Name: "Villa Mar", BaseOccupancy: 4, MaxGuests: 6,
		ExtraGuestFee: 25, CleaningFee: 75, Currency: "EUR", HoldMinutes: 20, Active: true,
	})
	logger := zap.NewNop()
	checker := availability.NewChecker(store, availability.Config{Strategy: availability.StrategyDual, RetryAttempts: 1}, logger)
	engine := pricing.NewPricingEngine(store, props, logger, 1)

	f := &fixture{
		store:     store,
		checker:   checker,
		notifier:  &recordingNotifier{},
		scheduler: &recordingScheduler{scheduled: map[string]time.Time{}},
		now:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	var seq int64
	svc := NewBookingService(store, props, engine, checker, logger, 30*time.Minute)
	svc.Notifier = f.notifier
	svc.Holds = f.scheduler
	svc.Payments = &fakeGateway{}
	svc.Now = func() time.Time { return f.now }
	svc.NewID = func() string { return fmt.Sprintf("b-%d", atomic.AddInt64(&seq, 1)) }
	f.svc = svc
	return f
}

func request(checkIn, checkOut, status string) CreateBookingRequest {
	return CreateBookingRequest{
		PropertyID: "villa",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     2,
		Guest:      models.GuestInfo{FirstName: "Ana", LastName: "Costa", Email: "ana@example.com"},
		Status:     status,
	}
}

func (f *fixture) available(t *testing.T, checkIn, checkOut string) bool {
	t.Helper()
	res, err := f.checker.CheckAvailability(context.Background(), "villa", checkIn, checkOut)
	require.NoError(t, err)
	return res.IsAvailable
}

func TestCreateBooking_ThenUnavailableThenReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, request("2025-07-10", "2025-07-13", ""))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, 675.0, b.Pricing.Total)
	assert.Nil(t, b.HoldExpiresAt)
	assert.False(t, f.available(t, "2025-07-10", "2025-07-13"))
	assert.False(t, f.available(t, "2025-07-12", "2025-07-15"))
	assert.True(t, f.available(t, "2025-07-13", "2025-07-15"), "check-out day stays free")

	_, err = f.svc.CancelBooking(ctx, b.ID, "guest changed plans")
	require.NoError(t, err)
	assert.True(t, f.available(t, "2025-07-10", "2025-07-13"))
}

func TestCreateBooking_OnHoldSchedulesExpiry(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.CreateBooking(context.Background(), request("2025-07-01", "2025-07-03", models.StatusOnHold))
	require.NoError(t, err)
	require.NotNil(t, b.HoldExpiresAt)
	assert.Equal(t, f.now.Add(20*time.Minute), *b.HoldExpiresAt)
	assert.Equal(t, *b.HoldExpiresAt, f.scheduler.scheduled[b.ID])

	key := models.MonthKey("villa", 2025, time.July)
	recs, _ := f.store.GetAvailability(context.Background(), []string{key})
	assert.Equal(t, b.ID, recs[key].Holds["1"])
	assert.Equal(t, b.ID, recs[key].Bookings["2"])
}

func TestCreateBooking_ConcurrentOverlapExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	var wins, conflicts int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checkIn := "2025-07-10"
			if i%2 == 1 {
				checkIn = "2025-07-11"
			}
			_, err := f.svc.CreateBooking(ctx, request(checkIn, "2025-07-14", ""))
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case utils.IsKind(err, utils.KindConflict):
				assert.Equal(t, "dates no longer available", utils.MessageOf(err, ""))
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(attempts-1), conflicts)
	bookings, err := f.store.ListBookings(ctx, "villa")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestCreateBooking_IdempotencyKeyReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request("2025-07-20", "2025-07-22", "")
	req.IdempotencyKey = "checkout-42"

	first, err := f.svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	bookings, _ := f.store.ListBookings(ctx, "villa")
	assert.Len(t, bookings, 1)
}

func TestCreateBooking_FailedCommitLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailNextCommit(utils.TransientError("commit failed", errors.New("unavailable")))

	_, err := f.svc.CreateBooking(ctx, request("2025-07-05", "2025-07-08", models.StatusOnHold))
	require.Error(t, err)
	assert.Equal(t, utils.KindTransient, utils.KindOf(err))

	bookings, _ := f.store.ListBookings(ctx, "villa")
	assert.Empty(t, bookings)
	assert.True(t, f.available(t, "2025-07-05", "2025-07-08"))
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := request("2025-07-05", "2025-07-08", "")
	bad.Guest.Email = "not-an-email"
	_, err := f.svc.CreateBooking(ctx, bad)
	assert.Equal(t, utils.KindValidation, utils.KindOf(err))

	bad = request("2025-07-05", "2025-07-08", models.StatusCancelled)
	_, err = f.svc.CreateBooking(ctx, bad)
	assert.Equal(t, utils.KindValidation, utils.KindOf(err))

	bad = request("2025-07-05", "2025-07-08", "")
	bad.Guests = 7
	_, err = f.svc.CreateBooking(ctx, bad)
	assert.Equal(t, utils.KindValidation, utils.KindOf(err))

	_, err = f.svc.CreateBooking(ctx, request("2025-07-30", "2025-08-02", ""))
	assert.Equal(t, utils.KindCalendarMissing, utils.KindOf(err))
}

func TestAttachPayment_ConfirmsHoldAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-01", "2025-07-04", models.StatusOnHold))
	require.NoError(t, err)

	payment := models.PaymentInfo{PaymentID: "pi_1", Provider: "stripe", Amount: b.Pricing.Total, Currency: "eur", Status: "succeeded"}
	confirmed, err := f.svc.AttachPayment(ctx, b.ID, payment)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.HoldExpiresAt)
	assert.Equal(t, "EUR", confirmed.Payment.Currency)

	key := models.MonthKey("villa", 2025, time.July)
	recs, _ := f.store.GetAvailability(ctx, []string{key})
	assert.Empty(t, recs[key].Holds)
	assert.Equal(t, b.ID, recs[key].Bookings["3"])
	assert.False(t, f.available(t, "2025-07-01", "2025-07-04"))

	again, err := f.svc.AttachPayment(ctx, b.ID, payment)
	require.NoError(t, err)
	assert.Equal(t, len(confirmed.Notes), len(again.Notes))
	assert.Equal(t, []string{"confirmed"}, f.notifier.types())

	_, err = f.svc.AttachPayment(ctx, b.ID, models.PaymentInfo{PaymentID: "pi_other"})
	assert.Equal(t, utils.KindInvalidTransition, utils.KindOf(err))
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-15", "2025-07-18", ""))
	require.NoError(t, err)

	cancelled, err := f.svc.CancelBooking(ctx, b.ID, "guest changed plans")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes[len(cancelled.Notes)-1], "guest changed plans")
	assert.True(t, f.available(t, "2025-07-15", "2025-07-18"))

	again, err := f.svc.CancelBooking(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, len(cancelled.Notes), len(again.Notes))
	assert.Equal(t, []string{"cancelled"}, f.notifier.types())

	confirmed, err := f.svc.CreateBooking(ctx, request("2025-07-20", "2025-07-22", models.StatusConfirmed))
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, confirmed.ID, "")
	assert.Equal(t, utils.KindInvalidTransition, utils.KindOf(err))

	_, err = f.svc.CancelBooking(ctx, "missing", "")
	assert.Equal(t, utils.KindNotFound, utils.KindOf(err))
}

func TestExpireHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-05", "2025-07-07", models.StatusOnHold))
	require.NoError(t, err)

	expired, err := f.svc.ExpireHold(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, expired, "hold has not lapsed yet")

	f.now = f.now.Add(21 * time.Minute)
	expired, err = f.svc.ExpireHold(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	got, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Nil(t, got.HoldExpiresAt)
	assert.Contains(t, got.Notes[len(got.Notes)-1], "hold expired at")
	assert.True(t, f.available(t, "2025-07-05", "2025-07-07"))

	expired, err = f.svc.ExpireHold(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestExpireHold_LeavesOtherOwnersNights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold, err := f.svc.CreateBooking(ctx, request("2025-07-05", "2025-07-07", models.StatusOnHold))
	require.NoError(t, err)

	// Night 5 was handed to another booking by a manual repair before the sweep ran.
	key := models.MonthKey("villa", 2025, time.July)
	f.store.PutAvailability(&models.AvailabilityRecord{
		ID: key, PropertyID: "villa", Year: 2025, Month: 7,
		Available: map[string]bool{"5": false, "6": false},
		Bookings:  map[string]string{"5": "b-other", "6": hold.ID},
		Holds:     map[string]string{"6": hold.ID},
	})

	f.now = f.now.Add(time.Hour)
	expired, err := f.svc.ExpireHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.False(t, f.available(t, "2025-07-05", "2025-07-06"))
	assert.True(t, f.available(t, "2025-07-06", "2025-07-07"))

	recs, _ := f.store.GetAvailability(ctx, []string{key})
	assert.Equal(t, "b-other", recs[key].Bookings["5"])
	assert.Equal(t, f.now, recs[key].UpdatedAt)
}

func TestReleaseAvailability_ForeignHoldIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-25", "2025-07-27", models.StatusOnHold))
	require.NoError(t, err)

	res, err := f.svc.ReleaseAvailability(ctx, ReleaseRequest{PropertyID: "villa", CheckIn: "2025-07-24", CheckOut: "2025-07-27", HoldID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, res.Released)
	assert.Len(t, res.Skipped, 3)
	assert.False(t, f.available(t, "2025-07-25", "2025-07-27"))

	res, err = f.svc.ReleaseAvailability(ctx, ReleaseRequest{PropertyID: "villa", CheckIn: "2025-07-24", CheckOut: "2025-07-27", HoldID: b.ID})
	require.NoError(t, err)
	assert.Empty(t, res.Released, "a live hold is released by cancelling or expiring it")
	assert.Equal(t, []string{"2025-07-24", "2025-07-25", "2025-07-26"}, res.Skipped)
}

func TestReleaseAvailability_LiveBookingNightsAreSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-10", "2025-07-13", models.StatusConfirmed))
	require.NoError(t, err)

	res, err := f.svc.ReleaseAvailability(ctx, ReleaseRequest{PropertyID: "villa", CheckIn: "2025-07-09", CheckOut: "2025-07-13"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-09"}, res.Released)
	assert.Equal(t, []string{"2025-07-10", "2025-07-11", "2025-07-12"}, res.Skipped)

	got, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.False(t, f.available(t, "2025-07-10", "2025-07-13"))

	_, err = f.svc.CreateBooking(ctx, request("2025-07-11", "2025-07-12", models.StatusConfirmed))
	assert.Equal(t, utils.KindConflict, utils.KindOf(err))
}

func TestReleaseAvailability_FreesNightsOfEndedBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := models.MonthKey("villa", 2025, time.July)
	f.store.PutAvailability(&models.AvailabilityRecord{
		ID: key, PropertyID: "villa", Year: 2025, Month: 7,
		Available: map[string]bool{"20": false, "21": false},
		Bookings:  map[string]string{"20": "gone", "21": "gone"},
	})

	res, err := f.svc.ReleaseAvailability(ctx, ReleaseRequest{PropertyID: "villa", CheckIn: "2025-07-20", CheckOut: "2025-07-22", HoldID: "gone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-20", "2025-07-21"}, res.Released)
	assert.True(t, f.available(t, "2025-07-20", "2025-07-22"))
}

func TestPlaceHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-14", "2025-07-16", ""))
	require.NoError(t, err)

	held, err := f.svc.PlaceHold(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnHold, held.Status)
	require.NotNil(t, held.HoldExpiresAt)
	assert.Equal(t, f.now.Add(20*time.Minute), *held.HoldExpiresAt)
	assert.Equal(t, *held.HoldExpiresAt, f.scheduler.scheduled[b.ID])

	key := models.MonthKey("villa", 2025, time.July)
	recs, _ := f.store.GetAvailability(ctx, []string{key})
	assert.Equal(t, b.ID, recs[key].Holds["14"])
	assert.Equal(t, b.ID, recs[key].Bookings["15"])

	again, err := f.svc.PlaceHold(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, held.HoldExpiresAt, again.HoldExpiresAt)

	f.now = f.now.Add(time.Hour)
	expired, err := f.svc.ExpireHold(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.True(t, f.available(t, "2025-07-14", "2025-07-16"))

	_, err = f.svc.PlaceHold(ctx, b.ID)
	assert.Equal(t, utils.KindInvalidTransition, utils.KindOf(err))
	_, err = f.svc.PlaceHold(ctx, "missing")
	assert.Equal(t, utils.KindNotFound, utils.KindOf(err))
}

func TestPaymentFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, request("2025-07-08", "2025-07-10", ""))
	require.NoError(t, err)

	intent, err := f.svc.CreatePaymentIntent(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_"+b.ID, intent.PaymentIntentID)
	stored, _ := f.svc.GetBooking(ctx, b.ID)
	assert.Equal(t, intent.PaymentIntentID, stored.PaymentIntentID)

	evt := PaymentEvent{ID: "evt_1", Type: EventPaymentSucceeded, PaymentIntentID: intent.PaymentIntentID, Amount: intent.Amount, Currency: "EUR"}
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, evt))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, evt))

	stored, _ = f.svc.GetBooking(ctx, b.ID)
	assert.Equal(t, models.StatusConfirmed, stored.Status)
	assert.Equal(t, []string{"confirmed"}, f.notifier.types())

	_, err = f.svc.CreatePaymentIntent(ctx, b.ID)
	assert.Equal(t, utils.KindInvalidTransition, utils.KindOf(err))
}

func TestHandlePaymentEvent_FailureCancelsPendingOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending, err := f.svc.CreateBooking(ctx, request("2025-07-01", "2025-07-03", ""))
	require.NoError(t, err)
	hold, err := f.svc.CreateBooking(ctx, request("2025-07-10", "2025-07-12", models.StatusOnHold))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, PaymentEvent{Type: EventPaymentFailed, BookingID: pending.ID, FailureMessage: "card declined"}))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, PaymentEvent{Type: EventPaymentFailed, BookingID: hold.ID, FailureMessage: "card declined"}))

	got, _ := f.svc.GetBooking(ctx, pending.ID)
	assert.Equal(t, models.StatusCancelled, got.Status)
	got, _ = f.svc.GetBooking(ctx, hold.ID)
	assert.Equal(t, models.StatusOnHold, got.Status)

	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, PaymentEvent{Type: EventPaymentSucceeded, PaymentIntentID: "pi_unknown"}))
	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, PaymentEvent{Type: "charge.refunded"}))
}
