package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
)

// DiabetesType values for HealthProfile.Diabetes
const (
	DiabetesNone  = "none"
	DiabetesType1 = "type1"
	DiabetesType2 = "type2"
)

// Status values for blood pressure and cholesterol
const (
	StatusNormal = "normal"
	StatusHigh   = "high"
)

// HealthProfile is the per-user health data used for personalized evaluation.
// Stored in health_profiles table.
type HealthProfile struct {
	UserID        uuid.UUID `json:"user_id"`
	Age           int       `json:"age"`
	WeightKg      float64   `json:"weight_kg"`
	HeightFt      float64   `json:"height_ft"` // decimal feet, e.g. 5.6
	BMI           float64   `json:"bmi"`
	Diabetes      string    `json:"diabetes"`       // "none", "type1", "type2"
	BloodPressure string    `json:"blood_pressure"` // "normal", "high"
	Cholesterol   string    `json:"cholesterol"`    // "normal", "high"
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasDiabetes reports whether any diabetes type is recorded.
func (p *HealthProfile) HasDiabetes() bool {
	return p.Diabetes != "" && p.Diabetes != DiabetesNone
}

// HasHighBloodPressure reports whether blood pressure is flagged high.
func (p *HealthProfile) HasHighBloodPressure() bool {
	return p.BloodPressure == StatusHigh
}

// HasHighCholesterol reports whether cholesterol is flagged high.
func (p *HealthProfile) HasHighCholesterol() bool {
	return p.Cholesterol == StatusHigh
}

// Normalize fills defaults for empty flags and recomputes BMI from weight and height.
func (p *HealthProfile) Normalize() {
	if p.Diabetes == "" {
		p.Diabetes = DiabetesNone
	}
	if p.BloodPressure == "" {
		p.BloodPressure = StatusNormal
	}
	if p.Cholesterol == "" {
		p.Cholesterol = StatusNormal
	}
	if p.WeightKg > 0 && p.HeightFt > 0 {
		p.BMI = CalculateBMI(p.WeightKg, p.HeightFt)
	}
}

// Validate checks ranges and enumerated flags.
func (p *HealthProfile) Validate() error {
	if p.Age < 0 || p.Age > 130 {
		return fmt.Errorf("%w: age %d out of range", apperrors.ErrInvalidProfile, p.Age)
	}
	if p.WeightKg < 0 || p.HeightFt < 0 || p.BMI < 0 {
		return fmt.Errorf("%w: weight, height and bmi must not be negative", apperrors.ErrInvalidProfile)
	}
	switch p.Diabetes {
	case "", DiabetesNone, DiabetesType1, DiabetesType2:
	default:
		return fmt.Errorf("%w: diabetes must be none, type1 or type2", apperrors.ErrInvalidProfile)
	}
	for field, v := range map[string]string{"blood_pressure": p.BloodPressure, "cholesterol": p.Cholesterol} {
		if v != "" && v != StatusNormal && v != StatusHigh {
			return fmt.Errorf("%w: %s must be normal or high", apperrors.ErrInvalidProfile, field)
		}
	}
	return nil
}

// CalculateBMI computes BMI with the imperial formula from kilograms and decimal feet:
// whole feet plus the fractional foot converted to inches, weight in pounds,
// lbs * 703 / inches^2, rounded to one decimal. Returns 0 for a non-positive height.
func CalculateBMI(weightKg, heightFt float64) float64 {
	if heightFt <= 0 {
		return 0
	}
	whole, frac := math.Modf(heightFt)
	inches := whole*12 + frac*12
	lbs := weightKg * 2.20462
	bmi := lbs * 703 / (inches * inches)
	return math.Round(bmi*10) / 10
}

// BMI categories used by the diet planner.
const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal weight"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

// BMICategory classifies a BMI value.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 24.9:
		return BMINormal
	case bmi < 29.9:
		return BMIOverweight
	default:
		return BMIObese
	}
}
