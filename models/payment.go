package models

import "time"

// PaymentInfo is attached to a booking once the payment provider confirms it.
type PaymentInfo struct {
	PaymentID string    `firestore:"paymentId" bson:"paymentId" json:"paymentId"`
	Provider  string    `firestore:"provider" bson:"provider" json:"provider"`
	Amount    float64   `firestore:"amount" bson:"amount" json:"amount"`
	Currency  string    `firestore:"currency" bson:"currency" json:"currency"`
	Status    string    `firestore:"status" bson:"status" json:"status"`
	PaidAt    time.Time `firestore:"paidAt" bson:"paidAt" json:"paidAt"`
}

// PaymentIntentResponse is returned to the checkout page.
type PaymentIntentResponse struct {
	BookingID       string  `json:"bookingId"`
	PaymentIntentID string  `json:"paymentIntentId"`
	ClientSecret    string  `json:"clientSecret"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}
