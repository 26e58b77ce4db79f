package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// MemoryHealthProfileRepository keeps profiles in process memory. It is used when
// no database is configured; profiles are lost on restart.
type MemoryHealthProfileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]models.HealthProfile
	now      func() time.Time
}

var _ HealthProfileRepository = (*MemoryHealthProfileRepository)(nil)

// NewMemoryHealthProfileRepository creates an empty in-memory repository.
func NewMemoryHealthProfileRepository() *MemoryHealthProfileRepository {
	return &MemoryHealthProfileRepository{
		profiles: make(map[uuid.UUID]models.HealthProfile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryHealthProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.HealthProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (r *MemoryHealthProfileRepository) Upsert(ctx context.Context, profile *models.HealthProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidProfile)
	}
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	r.profiles[profile.UserID] = *profile
	return nil
}

func (r *MemoryHealthProfileRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[userID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.profiles, userID)
	return nil
}
