package models

import "time"

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusOnHold    = "on-hold"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

var transitions = map[string][]string{
	StatusPending: {StatusConfirmed, StatusOnHold, StatusCancelled},
	StatusOnHold:  {StatusConfirmed, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
// Confirmed, cancelled and expired are terminal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// GuestInfo is the contact information captured at booking time.
type GuestInfo struct {
	FirstName string `firestore:"firstName" bson:"firstName" json:"firstName"`
	LastName  string `firestore:"lastName" bson:"lastName" json:"lastName"`
	Email     string `firestore:"email" bson:"email" json:"email"`
	Phone     string `firestore:"phone,omitempty" bson:"phone,omitempty" json:"phone,omitempty"`
}

// Booking represents a stay, a hold, or a cancelled/expired record. Bookings are never deleted.
type Booking struct {
	ID              string         `firestore:"id" bson:"id" json:"id"`
	PropertyID      string         `firestore:"propertyId" bson:"propertyId" json:"propertyId"`
	CheckIn         string         `firestore:"checkIn" bson:"checkIn" json:"checkIn"`
	CheckOut        string         `firestore:"checkOut" bson:"checkOut" json:"checkOut"`
	Guests          int            `firestore:"guests" bson:"guests" json:"guests"`
	Guest           GuestInfo      `firestore:"guest" bson:"guest" json:"guest"`
	Pricing         PriceBreakdown `firestore:"pricing" bson:"pricing" json:"pricing"`
	Status          string         `firestore:"status" bson:"status" json:"status"`
	HoldExpiresAt   *time.Time     `firestore:"holdExpiresAt" bson:"holdExpiresAt,omitempty" json:"holdExpiresAt,omitempty"`
	Notes           []string       `firestore:"notes" bson:"notes" json:"notes,omitempty"`
	PaymentIntentID string         `firestore:"paymentIntentId" bson:"paymentIntentId" json:"paymentIntentId,omitempty"`
	Payment         *PaymentInfo   `firestore:"payment" bson:"payment,omitempty" json:"payment,omitempty"`
	IdempotencyKey  string         `firestore:"idempotencyKey" bson:"idempotencyKey" json:"-"`
	CreatedAt       time.Time      `firestore:"createdAt" bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `firestore:"updatedAt" bson:"updatedAt" json:"updatedAt"`
}

// AddNote appends a timestamped audit line.
func (b *Booking) AddNote(now time.Time, note string) {
	b.Notes = append(b.Notes, now.UTC().Format(time.RFC3339)+" "+note)
}

// ReservesNights reports whether b still owns the nights of its stay.
func (b *Booking) ReservesNights() bool {
	switch b.Status {
	case StatusPending, StatusOnHold, StatusConfirmed:
		return true
	}
	return false
}

// HoldExpired reports whether b is an on-hold booking whose hold lapsed before now.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.Status == StatusOnHold && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(now)
}

// SweepFailure records a booking the sweeper could not process.
type SweepFailure struct {
	BookingID string `json:"bookingId"`
	Error     string `json:"error"`
}

// SweepReport summarises one hold-expiration sweep.
type SweepReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Processed  int            `json:"processed"`
	Expired    int            `json:"expired"`
	Skipped    int            `json:"skipped"`
	Failures   []SweepFailure `json:"failures"`
}
