package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/database"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// HealthProfileRepository defines the interface for health profile data access.
type HealthProfileRepository interface {
	// Get returns apperrors.ErrNotFound when the user has no profile.
	Get(ctx context.Context, userID uuid.UUID) (*models.HealthProfile, error)
	// Upsert creates or replaces the profile for profile.UserID.
	Upsert(ctx context.Context, profile *models.HealthProfile) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// healthProfileRepository implements HealthProfileRepository using PostgreSQL.
type healthProfileRepository struct {
	db *database.DB
}

var _ HealthProfileRepository = (*healthProfileRepository)(nil)

// NewHealthProfileRepository creates a new PostgreSQL-backed health profile repository.
func NewHealthProfileRepository(db *database.DB) HealthProfileRepository {
	return &healthProfileRepository{db: db}
}

const healthProfileColumns = `user_id, age, weight_kg, height_ft, bmi, diabetes, blood_pressure, cholesterol, created_at, updated_at`

func (r *healthProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.HealthProfile, error) {
	query := `SELECT ` + healthProfileColumns + ` FROM health_profiles WHERE user_id = $1`

	var p models.HealthProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Age,
		&p.WeightKg,
		&p.HeightFt,
		&p.BMI,
		&p.Diabetes,
		&p.BloodPressure,
		&p.Cholesterol,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health profile: %w", err)
	}

	return &p, nil
}

func (r *healthProfileRepository) Upsert(ctx context.Context, profile *models.HealthProfile) error {
	if profile.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidProfile)
	}
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	profile.UpdatedAt = now

	query := `
		INSERT INTO health_profiles (` + healthProfileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET age = EXCLUDED.age,
		    weight_kg = EXCLUDED.weight_kg,
		    height_ft = EXCLUDED.height_ft,
		    bmi = EXCLUDED.bmi,
		    diabetes = EXCLUDED.diabetes,
		    blood_pressure = EXCLUDED.blood_pressure,
		    cholesterol = EXCLUDED.cholesterol,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		profile.UserID,
		profile.Age,
		profile.WeightKg,
		profile.HeightFt,
		profile.BMI,
		profile.Diabetes,
		profile.BloodPressure,
		profile.Cholesterol,
		now,
	).Scan(&profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert health profile: %w", err)
	}

	return nil
}

func (r *healthProfileRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM health_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete health profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
