//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/testhelpers"
)

func newTestHealthProfileRepo(t *testing.T) HealthProfileRepository {
	t.Helper()
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t, "health_profiles")
	return NewHealthProfileRepository(tdb.DB)
}

func TestHealthProfileRepository_GetMissing(t *testing.T) {
	repo := newTestHealthProfileRepo(t)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHealthProfileRepository_UpsertAndGet(t *testing.T) {
	repo := newTestHealthProfileRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	profile := &models.HealthProfile{
		UserID:        userID,
		Age:           55,
		WeightKg:      82,
		HeightFt:      5.9,
		Diabetes:      models.DiabetesType1,
		BloodPressure: models.StatusHigh,
	}
	require.NoError(t, repo.Upsert(ctx, profile))
	assert.False(t, profile.CreatedAt.IsZero())

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 55, got.Age)
	assert.Equal(t, models.CalculateBMI(82, 5.9), got.BMI)
	assert.Equal(t, models.DiabetesType1, got.Diabetes)
	assert.Equal(t, models.StatusHigh, got.BloodPressure)
	assert.Equal(t, models.StatusNormal, got.Cholesterol)

	update := &models.HealthProfile{UserID: userID, Age: 56, Cholesterol: models.StatusHigh}
	require.NoError(t, repo.Upsert(ctx, update))
	assert.True(t, update.CreatedAt.Equal(got.CreatedAt), "created_at survives an update")

	got, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 56, got.Age)
	assert.Equal(t, models.DiabetesNone, got.Diabetes)
	assert.Equal(t, models.StatusHigh, got.Cholesterol)
}

func TestHealthProfileRepository_RejectsInvalid(t *testing.T) {
	repo := newTestHealthProfileRepo(t)

	err := repo.Upsert(context.Background(), &models.HealthProfile{UserID: uuid.New(), Diabetes: "gestational"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidProfile)
}

func TestHealthProfileRepository_Delete(t *testing.T) {
	repo := newTestHealthProfileRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &models.HealthProfile{UserID: userID, Age: 30}))
	require.NoError(t, repo.Delete(ctx, userID))
	assert.ErrorIs(t, repo.Delete(ctx, userID), apperrors.ErrNotFound)
}
