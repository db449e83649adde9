package models

import "time"

// DiscountRule is a length-of-stay discount tier.
type DiscountRule struct {
	MinNights       int     `firestore:"minNights" bson:"minNights" json:"minNights"`
	DiscountPercent float64 `firestore:"discountPercent" bson:"discountPercent" json:"discountPercent"`
}

// Property carries the property-level pricing constants used by the booking core.
type Property struct {
	ID                    string         `firestore:"id" bson:"id" json:"id"`
	Name                  string         `firestore:"name" bson:"name" json:"name"`
	BaseOccupancy         int            `firestore:"baseOccupancy" bson:"baseOccupancy" json:"baseOccupancy"`
	MaxGuests             int            `firestore:"maxGuests" bson:"maxGuests" json:"maxGuests"`
	ExtraGuestFee         float64        `firestore:"extraGuestFee" bson:"extraGuestFee" json:"extraGuestFee"` // per extra guest per night
	CleaningFee           float64        `firestore:"cleaningFee" bson:"cleaningFee" json:"cleaningFee"`
	Currency              string         `firestore:"currency" bson:"currency" json:"currency"`
	LengthOfStayDiscounts []DiscountRule `firestore:"lengthOfStayDiscounts" bson:"lengthOfStayDiscounts" json:"lengthOfStayDiscounts"`
	HoldMinutes           int            `firestore:"holdMinutes" bson:"holdMinutes" json:"holdMinutes,omitempty"`
	Active                bool           `firestore:"active" bson:"active" json:"active"`
	UpdatedAt             time.Time      `firestore:"updatedAt" bson:"updatedAt" json:"updatedAt"`
}
