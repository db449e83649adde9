package propertyRepo

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"rentalspot/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRepo struct {
	PropertyRepository
	gets int32
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*models.Property, error) {
	atomic.AddInt32(&c.gets, 1)
	return c.PropertyRepository.GetByID(ctx, id)
}

func newCachedRepo(t *testing.T) (*CachedPropertyRepo, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &countingRepo{PropertyRepository: NewMemoryPropertyRepo(models.Property{
		ID: "villa", Name: "Villa", BaseOccupancy: 4, MaxGuests: 6, Currency: "EUR", Active: true,
	})}
	return NewCachedPropertyRepo(backing, client, time.Minute, zap.NewNop()), backing, mr
}

func TestCachedPropertyRepo_MissThenHit(t *testing.T) {
	repo, backing, mr := newCachedRepo(t)
	ctx := context.Background()

	p, err := repo.GetByID(ctx, "villa")
	require.NoError(t, err)
	assert.Equal(t, "Villa", p.Name)
	assert.True(t, mr.Exists(cacheKeyPrefix+"villa"))

	p, err = repo.GetByID(ctx, "villa")
	require.NoError(t, err)
	assert.Equal(t, 6, p.MaxGuests)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backing.gets))
}

func TestCachedPropertyRepo_UpsertInvalidates(t *testing.T) {
	repo, backing, mr := newCachedRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "villa")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, &models.Property{ID: "villa", Name: "Villa Renamed", MaxGuests: 6, Active: true}))
	assert.False(t, mr.Exists(cacheKeyPrefix+"villa"))

	p, err := repo.GetByID(ctx, "villa")
	require.NoError(t, err)
	assert.Equal(t, "Villa Renamed", p.Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&backing.gets))
}

func TestCachedPropertyRepo_RedisDownFallsThrough(t *testing.T) {
	repo, backing, mr := newCachedRepo(t)
	mr.Close()

	p, err := repo.GetByID(context.Background(), "villa")
	require.NoError(t, err)
	assert.Equal(t, "villa", p.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backing.gets))
}

func TestCachedPropertyRepo_NotFoundIsNotCached(t *testing.T) {
	repo, _, mr := newCachedRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(cacheKeyPrefix+"missing"))
}
