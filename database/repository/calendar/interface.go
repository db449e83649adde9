// File: database/repository/calendar/interface.go
package calendarRepo

import (
	"context"
	"errors"
	"time"

	"rentalspot/models"
)

// ErrNotFound is returned when a single requested document does not exist.
var ErrNotFound = errors.New("document not found")

// NightOp is the mutation applied to one night by ApplyNights.
type NightOp int

const (
	// OpReserve marks the night unavailable in both collections and records its owner.
	OpReserve NightOp = iota + 1
	// OpRelease marks the night available and deletes the owner and hold keys.
	OpRelease
	// OpClearHold deletes only the hold key; the night stays unavailable.
	OpClearHold
)

// NightChange describes a mutation of a single night.
type NightChange struct {
	Date      time.Time
	Op        NightOp
	BookingID string // owner recorded on reserve
	HoldID    string // hold recorded on reserve, empty for non-hold bookings
	// UpdateCalendar is false when the PriceCalendar has no entry for the day;
	// only the availability record is touched then.
	UpdateCalendar bool
}

// Store is the document store behind the calendars, availability records and bookings.
// Batched reads return only the documents that exist.
type Store interface {
	GetCalendars(ctx context.Context, keys []string) (map[string]*models.PriceCalendar, error)
	GetAvailability(ctx context.Context, keys []string) (map[string]*models.AvailabilityRecord, error)
	SaveCalendar(ctx context.Context, cal *models.PriceCalendar) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	FindBookingByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Booking, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	ListBookings(ctx context.Context, propertyID string) ([]models.Booking, error)
	// RunTransaction runs fn atomically: either every write issued through tx is
	// committed or none is. Reads must precede writes inside fn.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the transactional view of a Store.
type Tx interface {
	GetCalendars(keys []string) (map[string]*models.PriceCalendar, error)
	GetAvailability(keys []string) (map[string]*models.AvailabilityRecord, error)
	GetBooking(id string) (*models.Booking, error)
	FindBookingByIdempotencyKey(propertyID, key string) (*models.Booking, error)
	CreateBooking(b *models.Booking) error
	UpdateBooking(b *models.Booking) error
	PutCalendar(cal *models.PriceCalendar) error
	// ApplyNights stamps every document it touches with at.
	ApplyNights(propertyID string, at time.Time, changes []NightChange) error
}

// groupByMonth splits changes by month document key, preserving order.
func groupByMonth(propertyID string, changes []NightChange) ([]string, map[string][]NightChange) {
	var keys []string
	grouped := make(map[string][]NightChange)
	for _, c := range changes {
		k := models.MonthKeyFor(propertyID, c.Date)
		if _, ok := grouped[k]; !ok {
			keys = append(keys, k)
		}
		grouped[k] = append(grouped[k], c)
	}
	return keys, grouped
}
