package models

// BookingEvent is pushed to staff devices subscribed to a property topic.
type BookingEvent struct {
	Type       string `json:"type"` // confirmed, cancelled, expired
	BookingID  string `json:"bookingId"`
	PropertyID string `json:"propertyId"`
	CheckIn    string `json:"checkIn"`
	CheckOut   string `json:"checkOut"`
}

// HoldExpiryPayload is the task payload scheduled for a hold's expiry.
type HoldExpiryPayload struct {
	BookingID string `json:"bookingId"`
}
