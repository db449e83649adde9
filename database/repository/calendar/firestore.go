package calendarRepo

import (
	"context"
	"time"

	"rentalspot/config"
	"rentalspot/models"

	"cloud.google.com/go/firestore"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client       *firestore.Client
	calendars    *firestore.CollectionRef
	availability *firestore.CollectionRef
	bookings     *firestore.CollectionRef
}

// NewFirestoreStore constructs a Firestore-backed Store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:       client,
		calendars:    client.Collection(config.PriceCalendarsCollection),
		availability: client.Collection(config.AvailabilityCollection),
		bookings:     client.Collection(config.BookingsCollection),
	}
}

func docRefs(coll *firestore.CollectionRef, keys []string) []*firestore.DocumentRef {
	refs := make([]*firestore.DocumentRef, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, coll.Doc(k))
	}
	return refs
}

func decodeCalendars(snaps []*firestore.DocumentSnapshot) (map[string]*models.PriceCalendar, error) {
	out := make(map[string]*models.PriceCalendar, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var cal models.PriceCalendar
		if err := snap.DataTo(&cal); err != nil {
			return nil, mapFirestoreError("decode calendar "+snap.Ref.ID, err)
		}
		cal.ID = snap.Ref.ID
		out[snap.Ref.ID] = &cal
	}
	return out, nil
}

func decodeAvailability(snaps []*firestore.DocumentSnapshot) (map[string]*models.AvailabilityRecord, error) {
	out := make(map[string]*models.AvailabilityRecord, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var rec models.AvailabilityRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, mapFirestoreError("decode availability "+snap.Ref.ID, err)
		}
		rec.ID = snap.Ref.ID
		out[snap.Ref.ID] = &rec
	}
	return out, nil
}

func decodeBookings(snaps []*firestore.DocumentSnapshot) ([]models.Booking, error) {
	out := make([]models.Booking, 0, len(snaps))
	for _, snap := range snaps {
		var b models.Booking
		if err := snap.DataTo(&b); err != nil {
			return nil, mapFirestoreError("decode booking "+snap.Ref.ID, err)
		}
		b.ID = snap.Ref.ID
		out = append(out, b)
	}
	return out, nil
}

func (s *FirestoreStore) GetCalendars(ctx context.Context, keys []string) (map[string]*models.PriceCalendar, error) {
	if len(keys) == 0 {
		return map[string]*models.PriceCalendar{}, nil
	}
	snaps, err := s.client.GetAll(ctx, docRefs(s.calendars, keys))
	if err != nil {
		return nil, mapFirestoreError("get calendars", err)
	}
	return decodeCalendars(snaps)
}

func (s *FirestoreStore) GetAvailability(ctx context.Context, keys []string) (map[string]*models.AvailabilityRecord, error) {
	if len(keys) == 0 {
		return map[string]*models.AvailabilityRecord{}, nil
	}
	snaps, err := s.client.GetAll(ctx, docRefs(s.availability, keys))
	if err != nil {
		return nil, mapFirestoreError("get availability", err)
	}
	return decodeAvailability(snaps)
}

func (s *FirestoreStore) SaveCalendar(ctx context.Context, cal *models.PriceCalendar) error {
	_, err := s.calendars.Doc(cal.ID).Set(ctx, cal)
	return mapFirestoreError("save calendar "+cal.ID, err)
}

func (s *FirestoreStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	snap, err := s.bookings.Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("get booking "+id, err)
	}
	bookings, err := decodeBookings([]*firestore.DocumentSnapshot{snap})
	if err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

func (s *FirestoreStore) FindBookingByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Booking, error) {
	snaps, err := s.bookings.Where("paymentIntentId", "==", paymentIntentID).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError("find booking by payment intent", err)
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

func (s *FirestoreStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	q := s.bookings.
		Where("status", "==", models.StatusOnHold).
		Where("holdExpiresAt", "<", now).
		OrderBy("holdExpiresAt", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError("list expired holds", err)
	}
	return decodeBookings(snaps)
}

func (s *FirestoreStore) ListBookings(ctx context.Context, propertyID string) ([]models.Booking, error) {
	snaps, err := s.bookings.
		Where("propertyId", "==", propertyID).
		OrderBy("checkIn", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError("list bookings", err)
	}
	return decodeBookings(snaps)
}

// RunTransaction relies on Firestore's own contention retries; every attempt
// re-runs fn, so the availability check is repeated against fresh reads.
func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: t})
	})
	return mapFirestoreError("transaction", err)
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.calendars.Limit(1).Documents(ctx).GetAll()
	return mapFirestoreError("ping", err)
}
