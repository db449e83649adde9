package models

import (
	"fmt"
	"strconv"
	"time"
)

// Price sources recorded on a day entry.
const (
	PriceSourceBase     = "base"
	PriceSourceWeekend  = "weekend"
	PriceSourceSeason   = "season"
	PriceSourceOverride = "override"
)

// DayEntry is the per-day pricing/availability record inside a monthly PriceCalendar.
type DayEntry struct {
	BaseOccupancyPrice float64            `firestore:"baseOccupancyPrice" bson:"baseOccupancyPrice" json:"baseOccupancyPrice"`
	Prices             map[string]float64 `firestore:"prices" bson:"prices" json:"prices"` // guest count -> price
	Available          bool               `firestore:"available" bson:"available" json:"available"`
	MinimumStay        int                `firestore:"minimumStay" bson:"minimumStay" json:"minimumStay"`
	PriceSource        string             `firestore:"priceSource" bson:"priceSource" json:"priceSource"`
}

// PriceFor returns the price stored for a guest count.
func (d DayEntry) PriceFor(guests int) (float64, bool) {
	p, ok := d.Prices[strconv.Itoa(guests)]
	return p, ok
}

// MinNights normalises MinimumStay; unset means one night.
func (d DayEntry) MinNights() int {
	if d.MinimumStay < 1 {
		return 1
	}
	return d.MinimumStay
}

// PriceCalendar holds one property's day entries for a single month.
type PriceCalendar struct {
	ID         string              `firestore:"id" bson:"id" json:"id"`
	PropertyID string              `firestore:"propertyId" bson:"propertyId" json:"propertyId"`
	Year       int                 `firestore:"year" bson:"year" json:"year"`
	Month      int                 `firestore:"month" bson:"month" json:"month"`
	Days       map[string]DayEntry `firestore:"days" bson:"days" json:"days"`
	UpdatedAt  time.Time           `firestore:"updatedAt" bson:"updatedAt" json:"updatedAt"`
}

// Day looks up the entry for a day of month.
func (c *PriceCalendar) Day(day int) (DayEntry, bool) {
	if c == nil {
		return DayEntry{}, false
	}
	e, ok := c.Days[strconv.Itoa(day)]
	return e, ok
}

// AvailabilityRecord is the secondary per-month availability document with hold bookkeeping.
type AvailabilityRecord struct {
	ID         string            `firestore:"id" bson:"id" json:"id"`
	PropertyID string            `firestore:"propertyId" bson:"propertyId" json:"propertyId"`
	Year       int               `firestore:"year" bson:"year" json:"year"`
	Month      int               `firestore:"month" bson:"month" json:"month"`
	Available  map[string]bool   `firestore:"available" bson:"available" json:"available"`
	Holds      map[string]string `firestore:"holds" bson:"holds" json:"holds"`          // day -> hold id
	Bookings   map[string]string `firestore:"bookings" bson:"bookings" json:"bookings"` // day -> owning booking id
	UpdatedAt  time.Time         `firestore:"updatedAt" bson:"updatedAt" json:"updatedAt"`
}

// MonthKey builds the deterministic document key {propertyId}_{year}-{month:02d}.
func MonthKey(propertyID string, year int, month time.Month) string {
	return fmt.Sprintf("%s_%d-%02d", propertyID, year, int(month))
}

// MonthKeyFor returns the key of the month containing t.
func MonthKeyFor(propertyID string, t time.Time) string {
	return MonthKey(propertyID, t.Year(), t.Month())
}

// DayKey is the map key of t inside its month document.
func DayKey(t time.Time) string {
	return strconv.Itoa(t.Day())
}

// MonthKeys returns the distinct month keys spanned by nights, in order.
func MonthKeys(propertyID string, nights []time.Time) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, n := range nights {
		k := MonthKeyFor(propertyID, n)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// AvailabilityResult is the outcome of an availability check for a stay.
type AvailabilityResult struct {
	PropertyID       string   `json:"propertyId"`
	CheckIn          string   `json:"checkIn"`
	CheckOut         string   `json:"checkOut"`
	IsAvailable      bool     `json:"isAvailable"`
	UnavailableDates []string `json:"unavailableDates"`
	Source           string   `json:"source"`
	DiscrepancyFound bool     `json:"discrepancyFound"`
	DiscrepantDates  []string `json:"discrepantDates,omitempty"`
}
