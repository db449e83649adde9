package utils

import (
	"fmt"
	"time"
)

// DateLayout is the civil-date format used for check-in/check-out and calendar days.
const DateLayout = "2006-01-02"

// ParseDate parses a civil date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Nights returns every night in [checkIn, checkOut).
func Nights(checkIn, checkOut time.Time) []time.Time {
	var nights []time.Time
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

// StayLength counts the nights between two civil dates.
func StayLength(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}

// MaxStayNights bounds a single stay.
const MaxStayNights = 365

// ParseStayDates validates a check-in/check-out pair.
func ParseStayDates(checkIn, checkOut string) (time.Time, time.Time, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return time.Time{}, time.Time{}, ValidationError("checkIn: %v", err)
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return time.Time{}, time.Time{}, ValidationError("checkOut: %v", err)
	}
	if !out.After(in) {
		return time.Time{}, time.Time{}, ValidationError("checkOut must be after checkIn")
	}
	if StayLength(in, out) > MaxStayNights {
		return time.Time{}, time.Time{}, ValidationError("stays are limited to %d nights", MaxStayNights)
	}
	return in, out, nil
}
