package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/repositories"
)

// HealthProfileService manages stored health profiles and the diet plans derived from them.
type HealthProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.HealthProfile, error)
	// Save validates, normalizes and stores the profile. BMI is recomputed from weight and height.
	Save(ctx context.Context, profile *models.HealthProfile) error
	Delete(ctx context.Context, userID uuid.UUID) error
	// DietPlan builds a plan for the stored profile. Extra diseases are ranked together
	// with the ones derived from the profile flags.
	DietPlan(ctx context.Context, userID uuid.UUID, otherDiseases []string) (models.DietPlan, error)
}

type healthProfileService struct {
	repo    repositories.HealthProfileRepository
	planner MealPlanner
	logger  *zap.Logger
}

var _ HealthProfileService = (*healthProfileService)(nil)

// NewHealthProfileService creates a HealthProfileService.
func NewHealthProfileService(repo repositories.HealthProfileRepository, planner MealPlanner, logger *zap.Logger) HealthProfileService {
	return &healthProfileService{
		repo:    repo,
		planner: planner,
		logger:  logger.Named("health-profile"),
	}
}

func (s *healthProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.HealthProfile, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get health profile: %w", err)
	}
	return profile, nil
}

func (s *healthProfileService) Save(ctx context.Context, profile *models.HealthProfile) error {
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("failed to save health profile: %w", err)
	}
	s.logger.Info("Saved health profile",
		zap.String("user_id", profile.UserID.String()),
		zap.Float64("bmi", profile.BMI))
	return nil
}

func (s *healthProfileService) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete health profile: %w", err)
	}
	return nil
}

func (s *healthProfileService) DietPlan(ctx context.Context, userID uuid.UUID, otherDiseases []string) (models.DietPlan, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return models.DietPlan{}, err
	}
	disease := PrimaryDisease(profile, otherDiseases)
	return s.planner.Plan(ctx, *profile, disease), nil
}
