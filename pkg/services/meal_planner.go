package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/mealoracle"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// DiseaseNone is the label used when no known disease matches.
const DiseaseNone = "none"

// DefaultDailyCalories is used when height is unknown.
const DefaultDailyCalories = 2000

// Fallback meals served when the oracle cannot answer.
const (
	FallbackBreakfast = "Oatmeal with fruit"
	FallbackLunch     = "Grilled chicken salad"
	FallbackDinner    = "Baked salmon with vegetables"
)

// Calorie suggestions by BMI category.
const (
	SuggestionObese       = "Based on your BMI category (Obese), we suggest reducing your daily calorie intake by 20% to support healthy weight loss."
	SuggestionOverweight  = "Based on your BMI category (Overweight), we suggest reducing your daily calorie intake by 10% to achieve a healthy weight."
	SuggestionUnderweight = "Based on your BMI category (Underweight), we suggest increasing your daily calorie intake by 10% to support healthy weight gain."
	SuggestionNormal      = "Your BMI falls within the normal range. The suggested calorie intake aims to maintain your current weight."
)

// FallbackMeals returns the static plan used when the oracle fails.
func FallbackMeals() models.MealPlan {
	return models.MealPlan{Breakfast: FallbackBreakfast, Lunch: FallbackLunch, Dinner: FallbackDinner}
}

// DiseaseMatcher maps a free-form disease name onto one of the oracle's labels.
type DiseaseMatcher interface {
	Match(disease string) string
}

type substringDiseaseMatcher struct {
	labels []string
}

var _ DiseaseMatcher = (*substringDiseaseMatcher)(nil)

// NewDiseaseMatcher returns a matcher that picks the first label containing the
// disease name, case-insensitively, and "none" otherwise.
func NewDiseaseMatcher(labels []string) DiseaseMatcher {
	return &substringDiseaseMatcher{labels: labels}
}

func (m *substringDiseaseMatcher) Match(disease string) string {
	d := strings.ToLower(strings.TrimSpace(disease))
	if d == "" || d == DiseaseNone {
		return DiseaseNone
	}
	for _, label := range m.labels {
		if strings.Contains(strings.ToLower(label), d) {
			return label
		}
	}
	return DiseaseNone
}

// PrimaryDisease picks the disease that drives meal recommendations:
// diabetes, then hypertension, then heart disease, then the first other disease.
func PrimaryDisease(profile *models.HealthProfile, others []string) string {
	var diseases []string
	if profile != nil {
		if profile.HasDiabetes() {
			diseases = append(diseases, "diabetes")
		}
		if profile.HasHighBloodPressure() {
			diseases = append(diseases, "hypertension")
		}
		if profile.HasHighCholesterol() {
			diseases = append(diseases, "heart disease")
		}
	}
	for _, d := range others {
		if d = strings.TrimSpace(d); d != "" {
			diseases = append(diseases, d)
		}
	}
	if len(diseases) == 0 {
		return DiseaseNone
	}
	for _, preferred := range []string{"diabetes", "hypertension", "heart disease"} {
		for _, d := range diseases {
			if d == preferred {
				return preferred
			}
		}
	}
	return diseases[0]
}

// DailyCalories estimates sedentary energy needs from weight, decimal-feet height and age.
func DailyCalories(weightKg, heightFt float64, age int) int {
	if heightFt <= 0 {
		return DefaultDailyCalories
	}
	heightCm := heightFt * 30.48
	bmr := 10*weightKg + 6.25*heightCm - 5*float64(age) + 5
	return int(bmr * 1.2)
}

// AdjustCalories scales daily calories for a BMI category and returns the advice shown with it.
func AdjustCalories(daily int, category string) (int, string) {
	switch category {
	case models.BMIObese:
		return int(float64(daily) * 0.8), SuggestionObese
	case models.BMIOverweight:
		return int(float64(daily) * 0.9), SuggestionOverweight
	case models.BMIUnderweight:
		return int(float64(daily) * 1.1), SuggestionUnderweight
	default:
		return daily, SuggestionNormal
	}
}

// MealPlanner builds a diet plan for a health profile.
type MealPlanner interface {
	// Plan always returns a complete plan. An empty disease is derived from the profile.
	Plan(ctx context.Context, profile models.HealthProfile, disease string) models.DietPlan
}

type mealPlanner struct {
	oracle   mealoracle.Oracle
	diseases DiseaseMatcher
	logger   *zap.Logger
}

var _ MealPlanner = (*mealPlanner)(nil)

func NewMealPlanner(oracle mealoracle.Oracle, diseases DiseaseMatcher, logger *zap.Logger) MealPlanner {
	if oracle == nil {
		oracle = mealoracle.NoopOracle{}
	}
	if diseases == nil {
		diseases = NewDiseaseMatcher(nil)
	}
	return &mealPlanner{
		oracle:   oracle,
		diseases: diseases,
		logger:   logger.Named("meal-planner"),
	}
}

func (s *mealPlanner) Plan(ctx context.Context, profile models.HealthProfile, disease string) models.DietPlan {
	if strings.TrimSpace(disease) == "" {
		disease = PrimaryDisease(&profile, nil)
	}
	label := s.diseases.Match(disease)

	bmi := profile.BMI
	if bmi <= 0 {
		bmi = models.CalculateBMI(profile.WeightKg, profile.HeightFt)
	}
	category := models.BMICategory(bmi)
	daily := DailyCalories(profile.WeightKg, profile.HeightFt, profile.Age)
	adjusted, suggestion := AdjustCalories(daily, category)

	plan := models.DietPlan{
		Disease:           label,
		BMI:               bmi,
		BMICategory:       category,
		DailyCalories:     daily,
		AdjustedCalories:  adjusted,
		CalorieSuggestion: suggestion,
	}

	meals, err := s.oracle.Recommend(ctx, models.MealQuery{
		Age:      float64(profile.Age),
		WeightKg: profile.WeightKg,
		HeightFt: profile.HeightFt,
		Disease:  label,
		BMI:      bmi,
	})
	if err != nil || !meals.Valid() {
		s.logger.Warn("Meal oracle failed, using fallback meals",
			zap.String("oracle", s.oracle.Name()),
			zap.String("disease", label),
			zap.Error(err))
		meals = FallbackMeals()
		plan.Fallback = true
	}
	plan.Meals = meals

	s.logger.Debug("Built diet plan",
		zap.String("disease", label),
		zap.String("bmi_category", category),
		zap.Bool("fallback", plan.Fallback))
	return plan
}
