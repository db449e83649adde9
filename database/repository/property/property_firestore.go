package propertyRepo

import (
	"context"
	"fmt"

	"rentalspot/config"
	"rentalspot/models"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestorePropertyRepo struct {
	coll *firestore.CollectionRef
}

// NewFirestorePropertyRepo constructs a Firestore PropertyRepository.
func NewFirestorePropertyRepo(client *firestore.Client) PropertyRepository {
	return &firestorePropertyRepo{coll: client.Collection(config.PropertiesCollection)}
}

func (r *firestorePropertyRepo) GetByID(ctx context.Context, id string) (*models.Property, error) {
	snap, err := r.coll.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching property %s: %w", id, err)
	}
	var p models.Property
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("error decoding property %s: %w", id, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

func (r *firestorePropertyRepo) Upsert(ctx context.Context, p *models.Property) error {
	if _, err := r.coll.Doc(p.ID).Set(ctx, p); err != nil {
		return fmt.Errorf("error saving property %s: %w", p.ID, err)
	}
	return nil
}
