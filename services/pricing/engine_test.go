package pricing

import (
	"context"
	"testing"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testProperty() models.Property {
	return models.Property{
		ID:            "villa",
		Name:          "Villa Mar",
		BaseOccupancy: 4,
		MaxGuests:     8,
		ExtraGuestFee: 25,
		CleaningFee:   75,
		Currency:      "eur",
		Active:        true,
	}
}

func seedMonth(t *testing.T, store *calendarRepo.MemoryStore, year int, month time.Month, entry models.DayEntry) {
	t.Helper()
	cal := &models.PriceCalendar{
		ID:         models.MonthKey("villa", year, month),
		PropertyID: "villa",
		Year:       year,
		Month:      int(month),
		Days:       map[string]models.DayEntry{},
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	for d := 1; d <= last; d++ {
		cal.Days[models.DayKey(time.Date(year, month, d, 0, 0, 0, 0, time.UTC))] = entry
	}
	require.NoError(t, store.SaveCalendar(context.Background(), cal))
}

func newEngine(t *testing.T, props ...models.Property) (*DefaultPricingEngine, *calendarRepo.MemoryStore) {
	t.Helper()
	if len(props) == 0 {
		props = []models.Property{testProperty()}
	}
	store := calendarRepo.NewMemoryStore()
	seedMonth(t, store, 2025, time.July, models.DayEntry{BaseOccupancyPrice: 200, Available: true, MinimumStay: 1})
	return NewPricingEngine(store, propertyRepo.NewMemoryPropertyRepo(props...), zap.NewNop(), 1), store
}

func TestQuote_ExtraGuestsNoDiscount(t *testing.T) {
	engine, _ := newEngine(t)

	q, err := engine.Quote(context.Background(), "villa", "2025-07-10", "2025-07-13", 6)
	require.NoError(t, err)

	b := q.Breakdown
	assert.Equal(t, 3, b.Nights)
	assert.Len(t, b.NightlyRates, 3)
	assert.Equal(t, 600.0, b.AccommodationTotal)
	assert.Equal(t, 150.0, b.ExtraGuestFee)
	assert.Equal(t, 75.0, b.CleaningFee)
	assert.Equal(t, 825.0, b.Subtotal)
	assert.Equal(t, 0.0, b.DiscountAmount)
	assert.Equal(t, 825.0, b.Total)
	assert.Equal(t, "EUR", b.Currency)
}

func TestQuote_LengthOfStayDiscount(t *testing.T) {
	p := testProperty()
	p.LengthOfStayDiscounts = []models.DiscountRule{{MinNights: 7, DiscountPercent: 10}, {MinNights: 28, DiscountPercent: 25}}
	engine, _ := newEngine(t, p)

	q, err := engine.Quote(context.Background(), "villa", "2025-07-01", "2025-07-08", 4)
	require.NoError(t, err)

	b := q.Breakdown
	assert.Equal(t, 1400.0, b.AccommodationTotal)
	assert.Equal(t, 10.0, b.DiscountPercent)
	assert.Equal(t, 140.0, b.DiscountAmount)
	assert.Equal(t, 0.0, b.ExtraGuestFee)
	assert.Equal(t, 1335.0, b.Total)
	for _, r := range b.NightlyRates {
		assert.Equal(t, 200.0, r.Price, "discount must not be folded into nightly rates")
	}
}

func TestQuote_PerOccupancyPrices(t *testing.T) {
	engine, store := newEngine(t)
	seedMonth(t, store, 2025, time.August, models.DayEntry{
		BaseOccupancyPrice: 210,
		Prices:             map[string]float64{"1": 150, "2": 170, "4": 210},
		Available:          true,
		PriceSource:        models.PriceSourceSeason,
	})

	q, err := engine.Quote(context.Background(), "villa", "2025-08-01", "2025-08-03", 2)
	require.NoError(t, err)
	assert.Equal(t, 340.0, q.Breakdown.AccommodationTotal)
	assert.Equal(t, models.PriceSourceSeason, q.Breakdown.NightlyRates[0].Source)

	q, err = engine.Quote(context.Background(), "villa", "2025-08-01", "2025-08-03", 3)
	require.NoError(t, err)
	assert.Equal(t, 420.0, q.Breakdown.AccommodationTotal, "missing guest count falls back to base occupancy price")

	q, err = engine.Quote(context.Background(), "villa", "2025-08-01", "2025-08-03", 5)
	require.NoError(t, err)
	assert.Equal(t, 420.0, q.Breakdown.AccommodationTotal)
	assert.Equal(t, 50.0, q.Breakdown.ExtraGuestFee)
}

func TestQuote_InconsistentDayEntry(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()
	seedMonth(t, store, 2025, time.October, models.DayEntry{
		BaseOccupancyPrice: 200,
		Prices:             map[string]float64{"1": 150, "2": 170, "4": 150},
		Available:          true,
	})
	seedMonth(t, store, 2025, time.November, models.DayEntry{
		BaseOccupancyPrice: 200,
		Prices:             map[string]float64{"1": 300, "2": 100, "4": 200},
		Available:          true,
	})

	for _, guests := range []int{1, 4, 6} {
		_, err := engine.Quote(ctx, "villa", "2025-10-10", "2025-10-13", guests)
		assert.Equal(t, utils.KindDataInconsistency, utils.KindOf(err), "guests=%d", guests)
		_, err = engine.Quote(ctx, "villa", "2025-11-10", "2025-11-13", guests)
		assert.Equal(t, utils.KindDataInconsistency, utils.KindOf(err), "guests=%d", guests)
	}
}

func TestQuote_TotalNonDecreasingInGuests(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	prev := 0.0
	for guests := 1; guests <= 8; guests++ {
		q, err := engine.Quote(ctx, "villa", "2025-07-10", "2025-07-14", guests)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, q.Breakdown.Total, prev, "guests=%d", guests)
		prev = q.Breakdown.Total
	}
}

func TestQuote_MinimumStay(t *testing.T) {
	engine, store := newEngine(t)
	seedMonth(t, store, 2025, time.September, models.DayEntry{BaseOccupancyPrice: 180, Available: true, MinimumStay: 3})

	_, err := engine.Quote(context.Background(), "villa", "2025-09-10", "2025-09-12", 2)
	require.Error(t, err)
	assert.Equal(t, utils.KindMinimumStay, utils.KindOf(err))

	_, err = engine.Quote(context.Background(), "villa", "2025-09-10", "2025-09-13", 2)
	assert.NoError(t, err)
}

func TestQuote_MissingCalendarFailsClosed(t *testing.T) {
	engine, _ := newEngine(t)

	// July is seeded, August is not.
	_, err := engine.Quote(context.Background(), "villa", "2025-07-30", "2025-08-02", 2)
	require.Error(t, err)
	assert.Equal(t, utils.KindCalendarMissing, utils.KindOf(err))
}

func TestQuote_MissingDayEntry(t *testing.T) {
	engine, store := newEngine(t)
	cal := &models.PriceCalendar{
		ID: models.MonthKey("villa", 2025, time.October), PropertyID: "villa", Year: 2025, Month: 10,
		Days: map[string]models.DayEntry{"1": {BaseOccupancyPrice: 100, Available: true}},
	}
	require.NoError(t, store.SaveCalendar(context.Background(), cal))

	_, err := engine.Quote(context.Background(), "villa", "2025-10-01", "2025-10-03", 2)
	assert.Equal(t, utils.KindCalendarMissing, utils.KindOf(err))
}

func TestQuote_ZeroPriceIsInconsistent(t *testing.T) {
	engine, store := newEngine(t)
	seedMonth(t, store, 2025, time.November, models.DayEntry{Available: true})

	_, err := engine.Quote(context.Background(), "villa", "2025-11-01", "2025-11-03", 2)
	assert.Equal(t, utils.KindDataInconsistency, utils.KindOf(err))
}

func TestQuote_Validation(t *testing.T) {
	inactive := testProperty()
	inactive.ID = "closed"
	inactive.Active = false
	engine, _ := newEngine(t, testProperty(), inactive)
	ctx := context.Background()

	cases := []struct {
		name     string
		property string
		checkIn  string
		checkOut string
		guests   int
		kind     utils.ErrorKind
	}{
		{"bad date", "villa", "2025-7-10", "2025-07-12", 2, utils.KindValidation},
		{"checkout before checkin", "villa", "2025-07-12", "2025-07-10", 2, utils.KindValidation},
		{"same day", "villa", "2025-07-12", "2025-07-12", 2, utils.KindValidation},
		{"zero guests", "villa", "2025-07-10", "2025-07-12", 0, utils.KindValidation},
		{"too many guests", "villa", "2025-07-10", "2025-07-12", 9, utils.KindValidation},
		{"unknown property", "nowhere", "2025-07-10", "2025-07-12", 2, utils.KindNotFound},
		{"inactive property", "closed", "2025-07-10", "2025-07-12", 2, utils.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Quote(ctx, tc.property, tc.checkIn, tc.checkOut, tc.guests)
			require.Error(t, err)
			assert.Equal(t, tc.kind, utils.KindOf(err))
		})
	}
}

func TestDiscountPercent(t *testing.T) {
	rules := []models.DiscountRule{{MinNights: 28, DiscountPercent: 25}, {MinNights: 7, DiscountPercent: 10}}
	assert.Equal(t, 0.0, DiscountPercent(rules, 6))
	assert.Equal(t, 10.0, DiscountPercent(rules, 7))
	assert.Equal(t, 10.0, DiscountPercent(rules, 27))
	assert.Equal(t, 25.0, DiscountPercent(rules, 30))
	assert.Equal(t, 100.0, DiscountPercent([]models.DiscountRule{{MinNights: 1, DiscountPercent: 150}}, 2))
	assert.Equal(t, 0.0, DiscountPercent(nil, 30))
}
