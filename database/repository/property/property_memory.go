package propertyRepo

import (
	"context"
	"sync"

	"rentalspot/models"
)

// MemoryPropertyRepo keeps properties in process memory.
type MemoryPropertyRepo struct {
	mu         sync.RWMutex
	properties map[string]models.Property
}

func NewMemoryPropertyRepo(props ...models.Property) *MemoryPropertyRepo {
	r := &MemoryPropertyRepo{properties: make(map[string]models.Property)}
	for _, p := range props {
		r.properties[p.ID] = p
	}
	return r
}

func (r *MemoryPropertyRepo) GetByID(_ context.Context, id string) (*models.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.LengthOfStayDiscounts = append([]models.DiscountRule(nil), p.LengthOfStayDiscounts...)
	return &p, nil
}

func (r *MemoryPropertyRepo) Upsert(_ context.Context, p *models.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[p.ID] = *p
	return nil
}
