// Package mealoracle adapts meal recommendation backends: a trained classifier
// served over HTTP and an OpenAI-compatible chat model.
package mealoracle

import (
	"context"
	"errors"
	"strings"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// Provider names accepted in configuration.
const (
	ProviderClassifier = "classifier"
	ProviderOpenAI     = "openai"
	ProviderNone       = "none"
)

var (
	// ErrUnavailable is returned when no oracle is configured or the circuit is open.
	ErrUnavailable = errors.New("meal oracle unavailable")

	// ErrMalformedPlan is returned when the oracle answers without three meals.
	ErrMalformedPlan = errors.New("malformed meal plan")
)

// Oracle recommends a breakfast, lunch and dinner for a user.
type Oracle interface {
	Recommend(ctx context.Context, query models.MealQuery) (models.MealPlan, error)
	Name() string
}

// NoopOracle is used when no provider is configured. It always fails so callers use their fallback.
type NoopOracle struct{}

var _ Oracle = NoopOracle{}

func (NoopOracle) Recommend(context.Context, models.MealQuery) (models.MealPlan, error) {
	return models.MealPlan{}, ErrUnavailable
}

func (NoopOracle) Name() string { return ProviderNone }

// cleanPlan normalizes line breaks inside meal names and rejects incomplete plans.
func cleanPlan(plan models.MealPlan) (models.MealPlan, error) {
	clean := func(s string) string {
		s = strings.NewReplacer("\r\n", " ", "\n", " ").Replace(s)
		return strings.TrimSpace(s)
	}
	plan = models.MealPlan{
		Breakfast: clean(plan.Breakfast),
		Lunch:     clean(plan.Lunch),
		Dinner:    clean(plan.Dinner),
	}
	if !plan.Valid() {
		return models.MealPlan{}, ErrMalformedPlan
	}
	return plan, nil
}

// heightMeters converts decimal feet to meters.
func heightMeters(ft float64) float64 {
	return ft * 0.3048
}
