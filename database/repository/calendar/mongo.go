package calendarRepo

import (
	"context"
	"time"

	"rentalspot/config"
	"rentalspot/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Transactions require a replica set.
type MongoStore struct {
	client       *mongo.Client
	calendars    *mongo.Collection
	availability *mongo.Collection
	bookings     *mongo.Collection
}

// NewMongoStore constructs a Mongo-backed Store on database dbName.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:       client,
		calendars:    db.Collection(config.PriceCalendarsCollection),
		availability: db.Collection(config.AvailabilityCollection),
		bookings:     db.Collection(config.BookingsCollection),
	}
}

func findCalendars(ctx context.Context, coll *mongo.Collection, keys []string) (map[string]*models.PriceCalendar, error) {
	out := make(map[string]*models.PriceCalendar, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cursor, err := coll.Find(ctx, bson.M{"id": bson.M{"$in": keys}})
	if err != nil {
		return nil, mapMongoError("find calendars", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var cal models.PriceCalendar
		if err := cursor.Decode(&cal); err != nil {
			return nil, mapMongoError("decode calendar", err)
		}
		out[cal.ID] = &cal
	}
	return out, mapMongoError("calendar cursor", cursor.Err())
}

func findAvailability(ctx context.Context, coll *mongo.Collection, keys []string) (map[string]*models.AvailabilityRecord, error) {
	out := make(map[string]*models.AvailabilityRecord, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cursor, err := coll.Find(ctx, bson.M{"id": bson.M{"$in": keys}})
	if err != nil {
		return nil, mapMongoError("find availability", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var rec models.AvailabilityRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, mapMongoError("decode availability", err)
		}
		out[rec.ID] = &rec
	}
	return out, mapMongoError("availability cursor", cursor.Err())
}

func findOneBooking(ctx context.Context, coll *mongo.Collection, filter bson.M) (*models.Booking, error) {
	var b models.Booking
	if err := coll.FindOne(ctx, filter).Decode(&b); err != nil {
		return nil, mapMongoError("find booking", err)
	}
	return &b, nil
}

func findBookings(ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoError("find bookings", err)
	}
	defer cursor.Close(ctx)
	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, mapMongoError("decode bookings", err)
	}
	return out, nil
}

func (s *MongoStore) GetCalendars(ctx context.Context, keys []string) (map[string]*models.PriceCalendar, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return findCalendars(ctx, s.calendars, keys)
}

func (s *MongoStore) GetAvailability(ctx context.Context, keys []string) (map[string]*models.AvailabilityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return findAvailability(ctx, s.availability, keys)
}

func (s *MongoStore) SaveCalendar(ctx context.Context, cal *models.PriceCalendar) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.calendars.ReplaceOne(ctx, bson.M{"id": cal.ID}, cal, options.Replace().SetUpsert(true))
	return mapMongoError("save calendar "+cal.ID, err)
}

func (s *MongoStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return findOneBooking(ctx, s.bookings, bson.M{"id": id})
}

func (s *MongoStore) FindBookingByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return findOneBooking(ctx, s.bookings, bson.M{"paymentIntentId": paymentIntentID})
}

func (s *MongoStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "holdExpiresAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := bson.M{
		"status":        models.StatusOnHold,
		"holdExpiresAt": bson.M{"$lt": now},
	}
	return findBookings(ctx, s.bookings, filter, opts)
}

func (s *MongoStore) ListBookings(ctx context.Context, propertyID string) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "checkIn", Value: 1}})
	return findBookings(ctx, s.bookings, bson.M{"propertyId": propertyID}, opts)
}

// RunTransaction runs fn inside a multi-document session transaction.
func (s *MongoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return mapMongoError("start session", err)
	}
	defer sess.EndSession(ctx)

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc, &mongoTx{store: s, sc: sc}); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
	return mapMongoError("transaction", err)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return mapMongoError("ping", s.client.Ping(ctx, nil))
}

// EnsureIndexes creates the indexes the store's queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	uniqueID := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_id"),
	}
	if _, err := s.calendars.Indexes().CreateOne(ctx, uniqueID); err != nil {
		return mapMongoError("calendar indexes", err)
	}
	if _, err := s.availability.Indexes().CreateOne(ctx, uniqueID); err != nil {
		return mapMongoError("availability indexes", err)
	}
	bookingIndexes := []mongo.IndexModel{
		uniqueID,
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "holdExpiresAt", Value: 1}},
			Options: options.Index().SetName("status_hold_expiry_idx"),
		},
		{
			Keys:    bson.D{{Key: "paymentIntentId", Value: 1}},
			Options: options.Index().SetName("payment_intent_idx"),
		},
		{
			Keys:    bson.D{{Key: "propertyId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
			Options: options.Index().SetName("property_idempotency_idx"),
		},
		{
			Keys:    bson.D{{Key: "propertyId", Value: 1}, {Key: "checkIn", Value: 1}},
			Options: options.Index().SetName("property_checkin_idx"),
		},
	}
	if _, err := s.bookings.Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		return mapMongoError("booking indexes", err)
	}
	return nil
}

type mongoTx struct {
	store *MongoStore
	sc    mongo.SessionContext
}

func (t *mongoTx) GetCalendars(keys []string) (map[string]*models.PriceCalendar, error) {
	return findCalendars(t.sc, t.store.calendars, keys)
}

func (t *mongoTx) GetAvailability(keys []string) (map[string]*models.AvailabilityRecord, error) {
	return findAvailability(t.sc, t.store.availability, keys)
}

func (t *mongoTx) GetBooking(id string) (*models.Booking, error) {
	return findOneBooking(t.sc, t.store.bookings, bson.M{"id": id})
}

func (t *mongoTx) FindBookingByIdempotencyKey(propertyID, key string) (*models.Booking, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	return findOneBooking(t.sc, t.store.bookings, bson.M{"propertyId": propertyID, "idempotencyKey": key})
}

func (t *mongoTx) CreateBooking(b *models.Booking) error {
	_, err := t.store.bookings.InsertOne(t.sc, b)
	return mapMongoError("tx insert booking", err)
}

func (t *mongoTx) UpdateBooking(b *models.Booking) error {
	res, err := t.store.bookings.ReplaceOne(t.sc, bson.M{"id": b.ID}, b)
	if err != nil {
		return mapMongoError("tx update booking", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *mongoTx) PutCalendar(cal *models.PriceCalendar) error {
	_, err := t.store.calendars.ReplaceOne(t.sc, bson.M{"id": cal.ID}, cal, options.Replace().SetUpsert(true))
	return mapMongoError("tx put calendar "+cal.ID, err)
}

// ApplyNights removes hold and owner keys with $unset rather than writing nulls.
func (t *mongoTx) ApplyNights(propertyID string, at time.Time, changes []NightChange) error {
	now := at.UTC()
	keys, grouped := groupByMonth(propertyID, changes)
	for _, key := range keys {
		monthChanges := grouped[key]
		first := monthChanges[0].Date

		calendarSet := bson.M{}
		set := bson.M{"updatedAt": now}
		unset := bson.M{}
		for _, c := range monthChanges {
			day := models.DayKey(c.Date)
			switch c.Op {
			case OpReserve:
				set["available."+day] = false
				set["bookings."+day] = c.BookingID
				if c.HoldID != "" {
					set["holds."+day] = c.HoldID
				}
			case OpRelease:
				set["available."+day] = true
				unset["bookings."+day] = ""
				unset["holds."+day] = ""
			case OpClearHold:
				unset["holds."+day] = ""
			}
			if c.UpdateCalendar && c.Op != OpClearHold {
				calendarSet["days."+day+".available"] = c.Op == OpRelease
			}
		}

		if len(calendarSet) > 0 {
			calendarSet["updatedAt"] = now
			if _, err := t.store.calendars.UpdateOne(t.sc, bson.M{"id": key}, bson.M{"$set": calendarSet}); err != nil {
				return mapMongoError("tx update calendar "+key, err)
			}
		}

		update := bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"propertyId": propertyID,
				"year":       first.Year(),
				"month":      int(first.Month()),
			},
		}
		if len(unset) > 0 {
			update["$unset"] = unset
		}
		if _, err := t.store.availability.UpdateOne(t.sc, bson.M{"id": key}, update, options.Update().SetUpsert(true)); err != nil {
			return mapMongoError("tx update availability "+key, err)
		}
	}
	return nil
}
