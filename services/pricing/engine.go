package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/utils"

	"go.uber.org/zap"
)

// PricingEngine computes the price of a stay from the monthly price calendars.
type PricingEngine interface {
	Quote(ctx context.Context, propertyID, checkIn, checkOut string, guests int) (*models.PriceQuote, error)
}

// DefaultPricingEngine reads calendars in one batched call per quote and never writes.
type DefaultPricingEngine struct {
	Store         calendarRepo.Store
	Properties    propertyRepo.PropertyRepository
	Logger        *zap.Logger
	RetryAttempts int
}

func NewPricingEngine(store calendarRepo.Store, properties propertyRepo.PropertyRepository, logger *zap.Logger, retryAttempts int) *DefaultPricingEngine {
	return &DefaultPricingEngine{
		Store:         store,
		Properties:    properties,
		Logger:        logger,
		RetryAttempts: retryAttempts,
	}
}

func (e *DefaultPricingEngine) Quote(ctx context.Context, propertyID, checkIn, checkOut string, guests int) (*models.PriceQuote, error) {
	quote, err := e.quote(ctx, propertyID, checkIn, checkOut, guests)
	utils.QuotesTotal.WithLabelValues(utils.Outcome(err)).Inc()
	return quote, err
}

func (e *DefaultPricingEngine) quote(ctx context.Context, propertyID, checkIn, checkOut string, guests int) (*models.PriceQuote, error) {
	in, out, err := utils.ParseStayDates(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	property, err := LoadProperty(ctx, e.Properties, propertyID)
	if err != nil {
		return nil, err
	}
	if err := ValidateGuests(property, guests); err != nil {
		return nil, err
	}

	nights := utils.Nights(in, out)
	keys := models.MonthKeys(propertyID, nights)
	var calendars map[string]*models.PriceCalendar
	err = utils.RetryRead(ctx, e.RetryAttempts, func() error {
		var readErr error
		calendars, readErr = e.Store.GetCalendars(ctx, keys)
		return readErr
	})
	if err != nil {
		return nil, err
	}

	breakdown, err := Compute(property, nights, guests, calendars)
	if err != nil {
		if utils.IsKind(err, utils.KindCalendarMissing) || utils.IsKind(err, utils.KindDataInconsistency) {
			e.Logger.Error("pricing data unusable",
				zap.String("propertyID", propertyID),
				zap.String("checkIn", checkIn),
				zap.String("checkOut", checkOut),
				zap.Int("guests", guests),
				zap.Error(err))
		}
		return nil, err
	}

	return &models.PriceQuote{
		PropertyID: propertyID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     guests,
		Breakdown:  breakdown,
	}, nil
}

// LoadProperty fetches a property and rejects inactive ones.
func LoadProperty(ctx context.Context, repo propertyRepo.PropertyRepository, propertyID string) (*models.Property, error) {
	if propertyID == "" {
		return nil, utils.ValidationError("propertyId is required")
	}
	property, err := repo.GetByID(ctx, propertyID)
	if errors.Is(err, propertyRepo.ErrNotFound) {
		return nil, utils.NotFoundError("property %s not found", propertyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property %s: %w", propertyID, err)
	}
	if !property.Active {
		return nil, utils.ValidationError("property %s is not accepting bookings", propertyID)
	}
	return property, nil
}

// ValidateGuests checks guests against the property's capacity.
func ValidateGuests(p *models.Property, guests int) error {
	if guests < 1 {
		return utils.ValidationError("guests must be at least 1")
	}
	if limit := maxGuests(p); guests > limit {
		return utils.ValidationError("property %s accepts at most %d guests", p.ID, limit)
	}
	return nil
}

func maxGuests(p *models.Property) int {
	if p.MaxGuests > 0 {
		return p.MaxGuests
	}
	return baseOccupancy(p)
}

func baseOccupancy(p *models.Property) int {
	if p.BaseOccupancy > 0 {
		return p.BaseOccupancy
	}
	if p.MaxGuests > 0 {
		return p.MaxGuests
	}
	return 1
}

// Compute prices the given nights. Every night must have a calendar entry;
// the check-in night's minimum stay applies to the whole stay.
func Compute(p *models.Property, nights []time.Time, guests int, calendars map[string]*models.PriceCalendar) (models.PriceBreakdown, error) {
	if len(nights) == 0 {
		return models.PriceBreakdown{}, utils.ValidationError("stay must include at least one night")
	}

	base := baseOccupancy(p)
	occupancy := guests
	if occupancy > base {
		occupancy = base
	}

	rates := make([]models.NightlyRate, 0, len(nights))
	var accommodation float64
	for i, night := range nights {
		date := utils.FormatDate(night)
		key := models.MonthKeyFor(p.ID, night)
		cal, ok := calendars[key]
		if !ok {
			return models.PriceBreakdown{}, utils.NewAppError(utils.KindCalendarMissing,
				"pricing is not available for the requested dates",
				fmt.Errorf("price calendar %s does not exist", key))
		}
		entry, ok := cal.Day(night.Day())
		if !ok {
			return models.PriceBreakdown{}, utils.NewAppError(utils.KindCalendarMissing,
				"pricing is not available for the requested dates",
				fmt.Errorf("price calendar %s has no entry for %s", key, date))
		}
		if i == 0 && len(nights) < entry.MinNights() {
			return models.PriceBreakdown{}, utils.NewAppError(utils.KindMinimumStay,
				fmt.Sprintf("stays starting %s require at least %d nights", date, entry.MinNights()), nil)
		}

		if err := checkEntry(entry, base, key, date); err != nil {
			return models.PriceBreakdown{}, err
		}
		price, ok := entry.PriceFor(occupancy)
		if !ok {
			price = entry.BaseOccupancyPrice
		}
		if price <= 0 {
			return models.PriceBreakdown{}, utils.NewAppError(utils.KindDataInconsistency,
				"pricing is not available for the requested dates",
				fmt.Errorf("no usable price for %s on %s (%d guests)", key, date, occupancy))
		}
		source := entry.PriceSource
		if source == "" {
			source = models.PriceSourceBase
		}
		rates = append(rates, models.NightlyRate{Date: date, Price: price, Source: source})
		accommodation += price
	}

	accommodation = utils.RoundMoney(accommodation)
	var extraGuests float64
	if guests > base {
		extraGuests = utils.RoundMoney(float64(guests-base) * p.ExtraGuestFee * float64(len(nights)))
	}
	percent := DiscountPercent(p.LengthOfStayDiscounts, len(nights))
	discount := utils.RoundMoney(accommodation * percent / 100)
	cleaning := utils.RoundMoney(p.CleaningFee)
	subtotal := utils.RoundMoney(accommodation + extraGuests + cleaning)

	return models.PriceBreakdown{
		Nights:             len(nights),
		NightlyRates:       rates,
		AccommodationTotal: accommodation,
		ExtraGuestFee:      extraGuests,
		CleaningFee:        cleaning,
		DiscountPercent:    percent,
		DiscountAmount:     discount,
		Subtotal:           subtotal,
		Total:              utils.RoundMoney(subtotal - discount),
		Currency:           utils.NormalizeCurrency(p.Currency),
	}, nil
}

// checkEntry rejects day entries whose per-occupancy prices contradict the base
// occupancy price. A smaller party never pays more than the base occupancy.
func checkEntry(entry models.DayEntry, base int, key, date string) error {
	basePrice := utils.RoundMoney(entry.BaseOccupancyPrice)
	if p, ok := entry.PriceFor(base); ok && utils.RoundMoney(p) != basePrice {
		return utils.NewAppError(utils.KindDataInconsistency,
			"pricing is not available for the requested dates",
			fmt.Errorf("%s on %s: price for %d guests is %.2f but base occupancy price is %.2f", key, date, base, p, basePrice))
	}
	for guests := 1; guests < base; guests++ {
		if p, ok := entry.PriceFor(guests); ok && utils.RoundMoney(p) > basePrice {
			return utils.NewAppError(utils.KindDataInconsistency,
				"pricing is not available for the requested dates",
				fmt.Errorf("%s on %s: price for %d guests exceeds base occupancy price", key, date, guests))
		}
	}
	return nil
}

// DiscountPercent picks the tier with the largest MinNights not exceeding nights.
func DiscountPercent(rules []models.DiscountRule, nights int) float64 {
	sorted := append([]models.DiscountRule(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinNights < sorted[j].MinNights })
	var percent float64
	for _, r := range sorted {
		if r.MinNights <= nights {
			percent = r.DiscountPercent
		}
	}
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}
