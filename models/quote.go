package models

// NightlyRate is the price of a single night.
type NightlyRate struct {
	Date   string  `firestore:"date" bson:"date" json:"date"`
	Price  float64 `firestore:"price" bson:"price" json:"price"`
	Source string  `firestore:"source" bson:"source" json:"source"`
}

// PriceBreakdown is the computed pricing of a stay. DiscountAmount is reported
// separately and never folded into the nightly rates.
type PriceBreakdown struct {
	Nights             int           `firestore:"nights" bson:"nights" json:"nights"`
	NightlyRates       []NightlyRate `firestore:"nightlyRates" bson:"nightlyRates" json:"nightlyRates"`
	AccommodationTotal float64       `firestore:"accommodationTotal" bson:"accommodationTotal" json:"accommodationTotal"`
	ExtraGuestFee      float64       `firestore:"extraGuestFee" bson:"extraGuestFee" json:"extraGuestFee"`
	CleaningFee        float64       `firestore:"cleaningFee" bson:"cleaningFee" json:"cleaningFee"`
	DiscountPercent    float64       `firestore:"discountPercent" bson:"discountPercent" json:"discountPercent"`
	DiscountAmount     float64       `firestore:"discountAmount" bson:"discountAmount" json:"discountAmount"`
	Subtotal           float64       `firestore:"subtotal" bson:"subtotal" json:"subtotal"`
	Total              float64       `firestore:"total" bson:"total" json:"total"`
	Currency           string        `firestore:"currency" bson:"currency" json:"currency"`
}

// PriceQuote is the answer to a quote request.
type PriceQuote struct {
	PropertyID string         `json:"propertyId"`
	CheckIn    string         `json:"checkIn"`
	CheckOut   string         `json:"checkOut"`
	Guests     int            `json:"guests"`
	Breakdown  PriceBreakdown `json:"breakdown"`
}
