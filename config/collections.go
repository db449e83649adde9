package config

// Collection names shared by every store backend.
const (
	PriceCalendarsCollection = "priceCalendars"
	AvailabilityCollection   = "availability"
	BookingsCollection       = "bookings"
	PropertiesCollection     = "properties"
)
