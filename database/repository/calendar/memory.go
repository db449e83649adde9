package calendarRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentalspot/models"
)

// MemoryStore is a process-local Store. Transactions are serialised behind a
// single mutex and their writes are staged until fn returns nil.
type MemoryStore struct {
	mu           sync.Mutex
	calendars    map[string]*models.PriceCalendar
	availability map[string]*models.AvailabilityRecord
	bookings     map[string]*models.Booking
	commitErr    error
	now          func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calendars:    make(map[string]*models.PriceCalendar),
		availability: make(map[string]*models.AvailabilityRecord),
		bookings:     make(map[string]*models.Booking),
		now:          time.Now,
	}
}

// FailNextCommit makes the next transaction commit fail with err and write nothing.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// PutAvailability seeds an availability record.
func (s *MemoryStore) PutAvailability(rec *models.AvailabilityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[rec.ID] = cloneAvailability(rec)
}

func (s *MemoryStore) GetCalendars(_ context.Context, keys []string) (map[string]*models.PriceCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalendars(keys), nil
}

func (s *MemoryStore) getCalendars(keys []string) map[string]*models.PriceCalendar {
	out := make(map[string]*models.PriceCalendar, len(keys))
	for _, k := range keys {
		if c, ok := s.calendars[k]; ok {
			out[k] = cloneCalendar(c)
		}
	}
	return out
}

func (s *MemoryStore) GetAvailability(_ context.Context, keys []string) (map[string]*models.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAvailability(keys), nil
}

func (s *MemoryStore) getAvailability(keys []string) map[string]*models.AvailabilityRecord {
	out := make(map[string]*models.AvailabilityRecord, len(keys))
	for _, k := range keys {
		if r, ok := s.availability[k]; ok {
			out[k] = cloneAvailability(r)
		}
	}
	return out
}

func (s *MemoryStore) SaveCalendar(_ context.Context, cal *models.PriceCalendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[cal.ID] = cloneCalendar(cal)
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemoryStore) FindBookingByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if paymentIntentID != "" && b.PaymentIntentID == paymentIntentID {
			return cloneBooking(b), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.HoldExpired(now) {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoldExpiresAt.Before(*out[j].HoldExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListBookings(_ context.Context, propertyID string) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.PropertyID == propertyID {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn < out[j].CheckIn })
	return out, nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, bookings: make(map[string]*models.Booking)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

type memoryTx struct {
	store     *MemoryStore
	bookings  map[string]*models.Booking
	calendars []*models.PriceCalendar
	nights    []stagedNights
}

type stagedNights struct {
	propertyID string
	at         time.Time
	changes    []NightChange
}

func (t *memoryTx) GetCalendars(keys []string) (map[string]*models.PriceCalendar, error) {
	return t.store.getCalendars(keys), nil
}

func (t *memoryTx) GetAvailability(keys []string) (map[string]*models.AvailabilityRecord, error) {
	return t.store.getAvailability(keys), nil
}

func (t *memoryTx) GetBooking(id string) (*models.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return cloneBooking(b), nil
	}
	b, ok := t.store.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (t *memoryTx) FindBookingByIdempotencyKey(propertyID, key string) (*models.Booking, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	for _, b := range t.store.bookings {
		if b.PropertyID == propertyID && b.IdempotencyKey == key {
			return cloneBooking(b), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) CreateBooking(b *models.Booking) error {
	if _, exists := t.store.bookings[b.ID]; exists {
		return ConflictOnCreate(b.ID)
	}
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *memoryTx) UpdateBooking(b *models.Booking) error {
	if _, exists := t.store.bookings[b.ID]; !exists {
		if _, staged := t.bookings[b.ID]; !staged {
			return ErrNotFound
		}
	}
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *memoryTx) PutCalendar(cal *models.PriceCalendar) error {
	t.calendars = append(t.calendars, cloneCalendar(cal))
	return nil
}

func (t *memoryTx) ApplyNights(propertyID string, at time.Time, changes []NightChange) error {
	t.nights = append(t.nights, stagedNights{propertyID: propertyID, at: at, changes: append([]NightChange(nil), changes...)})
	return nil
}

func (t *memoryTx) commit() {
	s := t.store
	for id, b := range t.bookings {
		s.bookings[id] = b
	}
	for _, cal := range t.calendars {
		s.calendars[cal.ID] = cal
	}
	for _, staged := range t.nights {
		now := staged.at.UTC()
		if staged.at.IsZero() {
			now = s.now().UTC()
		}
		keys, grouped := groupByMonth(staged.propertyID, staged.changes)
		for _, key := range keys {
			changes := grouped[key]
			first := changes[0].Date
			rec, ok := s.availability[key]
			if !ok {
				rec = &models.AvailabilityRecord{
					ID:         key,
					PropertyID: staged.propertyID,
					Year:       first.Year(),
					Month:      int(first.Month()),
				}
				s.availability[key] = rec
			}
			ensureAvailabilityMaps(rec)
			rec.UpdatedAt = now
			cal := s.calendars[key]
			for _, c := range changes {
				day := models.DayKey(c.Date)
				switch c.Op {
				case OpReserve:
					rec.Available[day] = false
					rec.Bookings[day] = c.BookingID
					if c.HoldID != "" {
						rec.Holds[day] = c.HoldID
					}
					setCalendarDay(cal, day, false, c.UpdateCalendar, now)
				case OpRelease:
					rec.Available[day] = true
					delete(rec.Bookings, day)
					delete(rec.Holds, day)
					setCalendarDay(cal, day, true, c.UpdateCalendar, now)
				case OpClearHold:
					delete(rec.Holds, day)
				}
			}
		}
	}
}

func setCalendarDay(cal *models.PriceCalendar, day string, available, enabled bool, now time.Time) {
	if !enabled || cal == nil {
		return
	}
	entry, ok := cal.Days[day]
	if !ok {
		return
	}
	entry.Available = available
	cal.Days[day] = entry
	cal.UpdatedAt = now
}

func ensureAvailabilityMaps(rec *models.AvailabilityRecord) {
	if rec.Available == nil {
		rec.Available = make(map[string]bool)
	}
	if rec.Holds == nil {
		rec.Holds = make(map[string]string)
	}
	if rec.Bookings == nil {
		rec.Bookings = make(map[string]string)
	}
}

func cloneCalendar(c *models.PriceCalendar) *models.PriceCalendar {
	out := *c
	out.Days = make(map[string]models.DayEntry, len(c.Days))
	for k, d := range c.Days {
		prices := make(map[string]float64, len(d.Prices))
		for g, p := range d.Prices {
			prices[g] = p
		}
		d.Prices = prices
		out.Days[k] = d
	}
	return &out
}

func cloneAvailability(r *models.AvailabilityRecord) *models.AvailabilityRecord {
	out := *r
	out.Available = make(map[string]bool, len(r.Available))
	for k, v := range r.Available {
		out.Available[k] = v
	}
	out.Holds = make(map[string]string, len(r.Holds))
	for k, v := range r.Holds {
		out.Holds[k] = v
	}
	out.Bookings = make(map[string]string, len(r.Bookings))
	for k, v := range r.Bookings {
		out.Bookings[k] = v
	}
	return &out
}

func cloneBooking(b *models.Booking) *models.Booking {
	out := *b
	out.Notes = append([]string(nil), b.Notes...)
	out.Pricing.NightlyRates = append([]models.NightlyRate(nil), b.Pricing.NightlyRates...)
	if b.HoldExpiresAt != nil {
		t := *b.HoldExpiresAt
		out.HoldExpiresAt = &t
	}
	if b.Payment != nil {
		p := *b.Payment
		out.Payment = &p
	}
	return &out
}
