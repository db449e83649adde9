package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/utils"

	"go.uber.org/zap"
)

// CatalogService manages the property settings and price calendars that the
// pricing engine reads.
type CatalogService interface {
	UpsertProperty(ctx context.Context, p *models.Property) (*models.Property, error)
	PublishCalendar(ctx context.Context, propertyID, yearMonth string, days map[string]models.DayEntry) (*models.PriceCalendar, error)
	GetCalendar(ctx context.Context, propertyID, yearMonth string) (*models.PriceCalendar, error)
}

type DefaultCatalogService struct {
	Store      calendarRepo.Store
	Properties propertyRepo.PropertyRepository
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewCatalogService(store calendarRepo.Store, properties propertyRepo.PropertyRepository, logger *zap.Logger) *DefaultCatalogService {
	return &DefaultCatalogService{Store: store, Properties: properties, Logger: logger, Now: time.Now}
}

func (s *DefaultCatalogService) UpsertProperty(ctx context.Context, p *models.Property) (*models.Property, error) {
	if err := validateProperty(p); err != nil {
		return nil, err
	}
	p.Currency = utils.NormalizeCurrency(p.Currency)
	p.UpdatedAt = s.Now().UTC()
	if err := s.Properties.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save property %s: %w", p.ID, err)
	}
	s.Logger.Info("property saved", zap.String("propertyID", p.ID))
	return p, nil
}

func validateProperty(p *models.Property) error {
	switch {
	case p.ID == "":
		return utils.ValidationError("property id is required")
	case p.BaseOccupancy < 1:
		return utils.ValidationError("baseOccupancy must be at least 1")
	case p.MaxGuests < p.BaseOccupancy:
		return utils.ValidationError("maxGuests must be at least baseOccupancy")
	case p.ExtraGuestFee < 0 || p.CleaningFee < 0:
		return utils.ValidationError("fees must not be negative")
	case p.HoldMinutes < 0:
		return utils.ValidationError("holdMinutes must not be negative")
	}
	seen := make(map[int]bool)
	for _, r := range p.LengthOfStayDiscounts {
		if r.MinNights < 1 {
			return utils.ValidationError("discount minNights must be at least 1")
		}
		if r.DiscountPercent < 0 || r.DiscountPercent > 100 {
			return utils.ValidationError("discountPercent must be between 0 and 100")
		}
		if seen[r.MinNights] {
			return utils.ValidationError("duplicate discount tier for %d nights", r.MinNights)
		}
		seen[r.MinNights] = true
	}
	return nil
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(yearMonth string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return 0, 0, utils.ValidationError("invalid month %q, expected YYYY-MM", yearMonth)
	}
	return t.Year(), t.Month(), nil
}

// PublishCalendar replaces a month's day entries. Nights reserved by a booking
// keep available=false whatever the upload says. An entry without per-occupancy
// prices is priced flat at its base occupancy price.
func (s *DefaultCatalogService) PublishCalendar(ctx context.Context, propertyID, yearMonth string, days map[string]models.DayEntry) (*models.PriceCalendar, error) {
	if propertyID == "" {
		return nil, utils.ValidationError("propertyId is required")
	}
	year, month, err := ParseYearMonth(yearMonth)
	if err != nil {
		return nil, err
	}
	property, err := s.Properties.GetByID(ctx, propertyID)
	if errors.Is(err, propertyRepo.ErrNotFound) {
		return nil, utils.NotFoundError("property %s not found", propertyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property %s: %w", propertyID, err)
	}

	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	entries := make(map[string]models.DayEntry, len(days))
	for key, entry := range days {
		d, err := strconv.Atoi(key)
		if err != nil || d < 1 || d > lastDay || strconv.Itoa(d) != key {
			return nil, utils.ValidationError("invalid day %q for %s", key, yearMonth)
		}
		if entry.MinimumStay < 0 {
			return nil, utils.ValidationError("day %s: minimumStay must not be negative", key)
		}
		if entry, err = normalizePrices(property, key, entry); err != nil {
			return nil, err
		}
		entries[key] = entry
	}
	days = entries

	key := models.MonthKey(propertyID, year, month)
	cal := &models.PriceCalendar{
		ID:         key,
		PropertyID: propertyID,
		Year:       year,
		Month:      int(month),
		Days:       make(map[string]models.DayEntry, len(days)),
		UpdatedAt:  s.Now().UTC(),
	}
	var forced []string
	err = s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		forced = forced[:0]
		records, err := tx.GetAvailability([]string{key})
		if err != nil {
			return err
		}
		rec := records[key]
		for day, entry := range days {
			if rec != nil && entry.Available && (rec.Bookings[day] != "" || rec.Holds[day] != "") {
				entry.Available = false
				forced = append(forced, day)
			}
			cal.Days[day] = entry
		}
		return tx.PutCalendar(cal)
	})
	if err != nil {
		return nil, err
	}
	if len(forced) > 0 {
		s.Logger.Info("kept reserved nights unavailable", zap.String("calendar", key), zap.Strings("days", forced))
	}
	s.Logger.Info("price calendar published", zap.String("calendar", key), zap.Int("days", len(days)))
	return cal, nil
}

// normalizePrices makes prices cover every guest count from 1 to MaxGuests with
// positive, non-decreasing values and baseOccupancyPrice equal to the price at
// base occupancy.
func normalizePrices(p *models.Property, day string, entry models.DayEntry) (models.DayEntry, error) {
	if entry.BaseOccupancyPrice < 0 {
		return entry, utils.ValidationError("day %s: price must not be negative", day)
	}
	if len(entry.Prices) == 0 {
		if entry.BaseOccupancyPrice <= 0 {
			return entry, utils.ValidationError("day %s: a positive price is required", day)
		}
		entry.Prices = make(map[string]float64, p.MaxGuests)
		for g := 1; g <= p.MaxGuests; g++ {
			entry.Prices[strconv.Itoa(g)] = entry.BaseOccupancyPrice
		}
		return entry, nil
	}

	for guests, price := range entry.Prices {
		n, err := strconv.Atoi(guests)
		if err != nil || n < 1 || n > p.MaxGuests || strconv.Itoa(n) != guests {
			return entry, utils.ValidationError("day %s: invalid price for %q guests", day, guests)
		}
		if price <= 0 {
			return entry, utils.ValidationError("day %s: price for %s guests must be positive", day, guests)
		}
	}
	var prev float64
	for g := 1; g <= p.MaxGuests; g++ {
		price, ok := entry.PriceFor(g)
		if !ok {
			return entry, utils.ValidationError("day %s: missing price for %d guests", day, g)
		}
		if price < prev {
			return entry, utils.ValidationError("day %s: price for %d guests is lower than for %d", day, g, g-1)
		}
		prev = price
	}
	basePrice, _ := entry.PriceFor(p.BaseOccupancy)
	switch {
	case entry.BaseOccupancyPrice == 0:
		entry.BaseOccupancyPrice = basePrice
	case utils.RoundMoney(entry.BaseOccupancyPrice) != utils.RoundMoney(basePrice):
		return entry, utils.ValidationError("day %s: baseOccupancyPrice %.2f differs from the price for %d guests (%.2f)",
			day, entry.BaseOccupancyPrice, p.BaseOccupancy, basePrice)
	}
	return entry, nil
}

func (s *DefaultCatalogService) GetCalendar(ctx context.Context, propertyID, yearMonth string) (*models.PriceCalendar, error) {
	year, month, err := ParseYearMonth(yearMonth)
	if err != nil {
		return nil, err
	}
	key := models.MonthKey(propertyID, year, month)
	cals, err := s.Store.GetCalendars(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	cal, ok := cals[key]
	if !ok {
		return nil, utils.NotFoundError("no price calendar for %s %s", propertyID, yearMonth)
	}
	return cal, nil
}
