package propertyRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalspot/config"
	"rentalspot/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPropertyRepo struct {
	coll *mongo.Collection
}

// NewMongoPropertyRepo constructs a MongoDB PropertyRepository.
func NewMongoPropertyRepo(client *mongo.Client, dbName string) PropertyRepository {
	return &mongoPropertyRepo{coll: client.Database(dbName).Collection(config.PropertiesCollection)}
}

func (r *mongoPropertyRepo) GetByID(ctx context.Context, id string) (*models.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Property
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching property %s: %w", id, err)
	}
	return &p, nil
}

func (r *mongoPropertyRepo) Upsert(ctx context.Context, p *models.Property) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.ReplaceOne(ctx, bson.M{"id": p.ID}, p, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("error saving property %s: %w", p.ID, err)
	}
	return nil
}
