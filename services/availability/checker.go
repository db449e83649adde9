package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	"rentalspot/models"
	"rentalspot/utils"

	"go.uber.org/zap"
)

// Strategy selects which sources decide whether a night is bookable.
type Strategy string

const (
	// StrategyDual requires both the price calendar and the availability record to agree.
	StrategyDual Strategy = "dual"
	// StrategyCalendarOnly trusts the price calendar's per-day flag.
	StrategyCalendarOnly Strategy = "calendar-only"
	// StrategyAvailabilityOnly trusts the availability record and its holds.
	StrategyAvailabilityOnly Strategy = "availability-only"
)

// ParseStrategy maps a configuration value to a Strategy; empty means dual.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyDual:
		return StrategyDual, nil
	case StrategyCalendarOnly:
		return StrategyCalendarOnly, nil
	case StrategyAvailabilityOnly:
		return StrategyAvailabilityOnly, nil
	}
	return "", fmt.Errorf("unknown availability strategy %q", s)
}

// Config is fixed at construction.
type Config struct {
	Strategy      Strategy
	RetryAttempts int
}

// NightStatus is the evaluated state of one night.
type NightStatus struct {
	Date       time.Time
	Available  bool
	HasEntry   bool   // price calendar has a day entry
	Owner      string // booking recorded as owning the night
	HoldID     string
	Discrepant bool
}

// Evaluation is the per-night verdict for a stay.
type Evaluation struct {
	Nights []NightStatus
}

// IsAvailable reports whether every night is bookable.
func (e Evaluation) IsAvailable() bool {
	for _, n := range e.Nights {
		if !n.Available {
			return false
		}
	}
	return true
}

// UnavailableDates lists nights that are not bookable.
func (e Evaluation) UnavailableDates() []string {
	dates := []string{}
	for _, n := range e.Nights {
		if !n.Available {
			dates = append(dates, utils.FormatDate(n.Date))
		}
	}
	return dates
}

// DiscrepantDates lists nights where the two sources disagree.
func (e Evaluation) DiscrepantDates() []string {
	var dates []string
	for _, n := range e.Nights {
		if n.Discrepant {
			dates = append(dates, utils.FormatDate(n.Date))
		}
	}
	return dates
}

// Checker answers availability questions. It never writes: discrepancies are
// reported and logged, not repaired.
type Checker struct {
	store  calendarRepo.Store
	cfg    Config
	logger *zap.Logger
}

func NewChecker(store calendarRepo.Store, cfg Config, logger *zap.Logger) *Checker {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyDual
	}
	return &Checker{store: store, cfg: cfg, logger: logger}
}

// Strategy returns the configured strategy.
func (c *Checker) Strategy() Strategy {
	return c.cfg.Strategy
}

// CheckAvailability evaluates every night in [checkIn, checkOut).
func (c *Checker) CheckAvailability(ctx context.Context, propertyID, checkIn, checkOut string) (*models.AvailabilityResult, error) {
	if propertyID == "" {
		return nil, utils.ValidationError("propertyId is required")
	}
	in, out, err := utils.ParseStayDates(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	nights := utils.Nights(in, out)
	keys := models.MonthKeys(propertyID, nights)

	var calendars map[string]*models.PriceCalendar
	var records map[string]*models.AvailabilityRecord
	err = utils.RetryRead(ctx, c.cfg.RetryAttempts, func() error {
		var readErr error
		if calendars, readErr = c.store.GetCalendars(ctx, keys); readErr != nil {
			return readErr
		}
		records, readErr = c.store.GetAvailability(ctx, keys)
		return readErr
	})
	if err != nil {
		return nil, err
	}

	eval := c.Evaluate(propertyID, nights, calendars, records)
	result := &models.AvailabilityResult{
		PropertyID:       propertyID,
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		IsAvailable:      eval.IsAvailable(),
		UnavailableDates: eval.UnavailableDates(),
		Source:           string(c.cfg.Strategy),
		DiscrepantDates:  eval.DiscrepantDates(),
	}
	result.DiscrepancyFound = len(result.DiscrepantDates) > 0
	return result, nil
}

// Evaluate applies the configured strategy to already-read documents. It is
// pure so the booking lifecycle can re-run it on reads taken inside a transaction.
// A night whose price calendar entry is missing is never available.
func (c *Checker) Evaluate(propertyID string, nights []time.Time, calendars map[string]*models.PriceCalendar, records map[string]*models.AvailabilityRecord) Evaluation {
	eval := Evaluation{Nights: make([]NightStatus, 0, len(nights))}
	for _, night := range nights {
		key := models.MonthKeyFor(propertyID, night)
		day := models.DayKey(night)
		status := NightStatus{Date: night}

		entry, hasEntry := calendars[key].Day(night.Day())
		status.HasEntry = hasEntry
		calendarAvailable := hasEntry && entry.Available

		recordAvailable, recordKnown := true, false
		if rec := records[key]; rec != nil {
			if v, ok := rec.Available[day]; ok {
				recordAvailable, recordKnown = v, true
			}
			status.HoldID = rec.Holds[day]
			status.Owner = rec.Bookings[day]
		}
		held := status.HoldID != ""

		switch c.cfg.Strategy {
		case StrategyCalendarOnly:
			status.Available = calendarAvailable
		case StrategyAvailabilityOnly:
			status.Available = hasEntry && recordAvailable && !held
		default:
			status.Available = calendarAvailable && recordAvailable && !held
		}

		if hasEntry && recordKnown && entry.Available != recordAvailable {
			status.Discrepant = true
		}
		// The record offers a night the calendar cannot price.
		if !hasEntry && recordKnown && recordAvailable {
			status.Discrepant = true
		}
		if held && (calendarAvailable || (recordKnown && recordAvailable)) {
			status.Discrepant = true
		}
		eval.Nights = append(eval.Nights, status)
	}

	if dates := eval.DiscrepantDates(); len(dates) > 0 {
		utils.AvailabilityDiscrepancies.Add(float64(len(dates)))
		c.logger.Warn("availability sources disagree",
			zap.String("propertyID", propertyID),
			zap.String("strategy", string(c.cfg.Strategy)),
			zap.Strings("dates", dates))
	}
	return eval
}
