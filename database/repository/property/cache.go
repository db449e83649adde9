package propertyRepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rentalspot/models"
	"rentalspot/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "property:"

// CachedPropertyRepo is a read-through Redis cache in front of another PropertyRepository.
// Redis failures are logged and fall through to the backing repository.
type CachedPropertyRepo struct {
	next   PropertyRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

func NewCachedPropertyRepo(next PropertyRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedPropertyRepo {
	return &CachedPropertyRepo{next: next, client: client, ttl: ttl, logger: logger}
}

func (r *CachedPropertyRepo) GetByID(ctx context.Context, id string) (*models.Property, error) {
	key := cacheKeyPrefix + id
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p models.Property
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			utils.ObserveCache("property", "hit")
			return &p, nil
		}
		r.logger.Warn("discarding undecodable cached property", zap.String("propertyID", id))
	case errors.Is(err, redis.Nil):
		utils.ObserveCache("property", "miss")
	default:
		r.logger.Warn("property cache read failed", zap.String("propertyID", id), zap.Error(err))
	}

	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		p, err := r.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(p); err == nil {
			if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
				r.logger.Warn("property cache write failed", zap.String("propertyID", id), zap.Error(err))
			} else {
				utils.ObserveCache("property", "set")
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*models.Property)
	return &p, nil
}

func (r *CachedPropertyRepo) Upsert(ctx context.Context, p *models.Property) error {
	if err := r.next.Upsert(ctx, p); err != nil {
		return err
	}
	if err := r.client.Del(ctx, cacheKeyPrefix+p.ID).Err(); err != nil {
		r.logger.Warn("property cache invalidation failed", zap.String("propertyID", p.ID), zap.Error(err))
	} else {
		utils.ObserveCache("property", "del")
	}
	return nil
}
