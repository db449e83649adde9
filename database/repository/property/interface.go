package propertyRepo

import (
	"context"
	"errors"

	"rentalspot/models"
)

// ErrNotFound is returned when no property has the requested id.
var ErrNotFound = errors.New("property not found")

// PropertyRepository defines methods for property data access.
type PropertyRepository interface {
	// GetByID retrieves a property by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Property, error)
	// Upsert creates or replaces a property.
	Upsert(ctx context.Context, p *models.Property) error
}
