package calendarRepo

import (
	"time"

	"rentalspot/models"

	"cloud.google.com/go/firestore"
)

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) GetCalendars(keys []string) (map[string]*models.PriceCalendar, error) {
	if len(keys) == 0 {
		return map[string]*models.PriceCalendar{}, nil
	}
	snaps, err := t.tx.GetAll(docRefs(t.store.calendars, keys))
	if err != nil {
		return nil, mapFirestoreError("tx get calendars", err)
	}
	return decodeCalendars(snaps)
}

func (t *firestoreTx) GetAvailability(keys []string) (map[string]*models.AvailabilityRecord, error) {
	if len(keys) == 0 {
		return map[string]*models.AvailabilityRecord{}, nil
	}
	snaps, err := t.tx.GetAll(docRefs(t.store.availability, keys))
	if err != nil {
		return nil, mapFirestoreError("tx get availability", err)
	}
	return decodeAvailability(snaps)
}

func (t *firestoreTx) GetBooking(id string) (*models.Booking, error) {
	snap, err := t.tx.Get(t.store.bookings.Doc(id))
	if err != nil {
		return nil, mapFirestoreError("tx get booking "+id, err)
	}
	bookings, err := decodeBookings([]*firestore.DocumentSnapshot{snap})
	if err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

func (t *firestoreTx) FindBookingByIdempotencyKey(propertyID, key string) (*models.Booking, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	q := t.store.bookings.
		Where("propertyId", "==", propertyID).
		Where("idempotencyKey", "==", key).
		Limit(1)
	snaps, err := t.tx.Documents(q).GetAll()
	if err != nil {
		return nil, mapFirestoreError("tx find booking by idempotency key", err)
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	bookings, err := decodeBookings(snaps)
	if err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

func (t *firestoreTx) CreateBooking(b *models.Booking) error {
	return mapFirestoreError("tx create booking", t.tx.Create(t.store.bookings.Doc(b.ID), b))
}

func (t *firestoreTx) UpdateBooking(b *models.Booking) error {
	return mapFirestoreError("tx update booking", t.tx.Set(t.store.bookings.Doc(b.ID), b))
}

func (t *firestoreTx) PutCalendar(cal *models.PriceCalendar) error {
	return mapFirestoreError("tx put calendar "+cal.ID, t.tx.Set(t.store.calendars.Doc(cal.ID), cal))
}

// ApplyNights issues at most one write per month document and collection.
// Hold and owner keys are removed with firestore.Delete so the map entry disappears.
func (t *firestoreTx) ApplyNights(propertyID string, at time.Time, changes []NightChange) error {
	now := at.UTC()
	keys, grouped := groupByMonth(propertyID, changes)
	for _, key := range keys {
		monthChanges := grouped[key]
		first := monthChanges[0].Date

		calendarUpdates := []firestore.Update{}
		available := map[string]interface{}{}
		holds := map[string]interface{}{}
		owners := map[string]interface{}{}

		for _, c := range monthChanges {
			day := models.DayKey(c.Date)
			switch c.Op {
			case OpReserve:
				available[day] = false
				owners[day] = c.BookingID
				if c.HoldID != "" {
					holds[day] = c.HoldID
				}
			case OpRelease:
				available[day] = true
				owners[day] = firestore.Delete
				holds[day] = firestore.Delete
			case OpClearHold:
				holds[day] = firestore.Delete
			}
			if c.UpdateCalendar && c.Op != OpClearHold {
				calendarUpdates = append(calendarUpdates, firestore.Update{
					FieldPath: firestore.FieldPath{"days", day, "available"},
					Value:     c.Op == OpRelease,
				})
			}
		}

		if len(calendarUpdates) > 0 {
			calendarUpdates = append(calendarUpdates, firestore.Update{Path: "updatedAt", Value: now})
			if err := t.tx.Update(t.store.calendars.Doc(key), calendarUpdates); err != nil {
				return mapFirestoreError("tx update calendar "+key, err)
			}
		}

		data := map[string]interface{}{
			"id":         key,
			"propertyId": propertyID,
			"year":       first.Year(),
			"month":      int(first.Month()),
			"updatedAt":  now,
		}
		if len(available) > 0 {
			data["available"] = available
		}
		if len(holds) > 0 {
			data["holds"] = holds
		}
		if len(owners) > 0 {
			data["bookings"] = owners
		}
		if err := t.tx.Set(t.store.availability.Doc(key), data, firestore.MergeAll); err != nil {
			return mapFirestoreError("tx update availability "+key, err)
		}
	}
	return nil
}
