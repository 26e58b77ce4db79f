package services

import (
	"strings"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/reference"
)

// Condition names as they appear in the nutrient limit table.
const (
	ConditionType1Diabetes   = "Type 1 diabetes"
	ConditionType2Diabetes   = "Type 2 diabetes"
	ConditionHypertension    = "hypertension(high bp)"
	ConditionHighCholesterol = "High Cholesterol"
	ConditionUnderweight     = "underweight(bmi<18.5)"
	ConditionNormalWeight    = "normal(bmi 18.5-24.9)"
	ConditionOverweight      = "Overweight (BMI 25-29.9)"
)

// HealthRiskEvaluator compares a nutrient record with the limits for a user's conditions.
type HealthRiskEvaluator interface {
	// Evaluate returns a neutral report when profile is nil or no limit table is loaded.
	Evaluate(record models.NutrientRecord, profile *models.HealthProfile) models.RiskReport
}

type healthRiskEvaluator struct {
	limits *reference.LimitTable
	keys   []models.NutrientKey
	logger *zap.Logger
}

var _ HealthRiskEvaluator = (*healthRiskEvaluator)(nil)

// NewHealthRiskEvaluator creates an evaluator. limits may be nil when the table failed to load.
func NewHealthRiskEvaluator(limits *reference.LimitTable, logger *zap.Logger) HealthRiskEvaluator {
	s := &healthRiskEvaluator{
		limits: limits,
		keys:   models.KnownNutrientKeys(),
		logger: logger.Named("health-risk"),
	}
	if limits != nil {
		if unmapped := s.unmappedNutrients(); len(unmapped) > 0 {
			s.logger.Warn("Limit table names nutrients that are never evaluated",
				zap.Strings("nutrients", unmapped))
		}
	}
	return s
}

// unmappedNutrients lists limit table nutrients that resolve to no nutrient key.
func (s *healthRiskEvaluator) unmappedNutrients() []string {
	var out []string
	for _, name := range s.limits.Nutrients() {
		if _, ok := s.resolveKey(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

// ConditionsFor derives the limit table conditions that apply to a profile.
// Without any flagged condition the BMI band is used; BMI 30 and above shares
// the overweight band.
func ConditionsFor(profile *models.HealthProfile) []string {
	var conditions []string
	if profile.HasDiabetes() {
		if profile.HasHighBloodPressure() && profile.HasHighCholesterol() {
			conditions = append(conditions, ConditionType2Diabetes)
		} else {
			conditions = append(conditions, ConditionType1Diabetes)
		}
	}
	if profile.HasHighBloodPressure() {
		conditions = append(conditions, ConditionHypertension)
	}
	if profile.HasHighCholesterol() {
		conditions = append(conditions, ConditionHighCholesterol)
	}
	if len(conditions) > 0 {
		return conditions
	}

	bmi := profile.BMI
	if bmi <= 0 {
		bmi = models.DefaultProfileBMI
	}
	switch {
	case bmi < 18.5:
		return []string{ConditionUnderweight}
	case bmi < 25:
		return []string{ConditionNormalWeight}
	default:
		return []string{ConditionOverweight}
	}
}

func (s *healthRiskEvaluator) Evaluate(record models.NutrientRecord, profile *models.HealthProfile) models.RiskReport {
	report := models.NeutralRiskReport()
	if profile == nil {
		return report
	}
	if s.limits == nil {
		s.logger.Warn("Nutrient limit table not loaded, skipping personalized evaluation")
		return report
	}

	age := profile.Age
	if age <= 0 {
		age = models.DefaultProfileAge
	}
	bracket := models.AgeBracketFor(age)

	report.Personalized = true
	report.Conditions = ConditionsFor(profile)
	report.AgeBracket = bracket

	evaluated := make(map[models.NutrientKey]bool)
	for _, condition := range report.Conditions {
		rows := s.limits.RowsFor(condition)
		if len(rows) == 0 {
			s.logger.Warn("No limits for condition", zap.String("condition", condition))
			continue
		}

		for _, row := range rows {
			key, ok := s.resolveKey(row.Nutrient)
			if !ok || evaluated[key] {
				continue
			}
			evaluated[key] = true

			name := strings.ToLower(row.Nutrient)
			value := record.Get(key)
			unit := UnitFor(name)

			expr, ok := models.ParseLimitExpression(row.LimitFor(bracket))
			if !ok {
				continue
			}

			switch {
			case expr.IsAvoid():
				if value > 0 {
					report.ExceededLimits = append(report.ExceededLimits, models.ExceededLimit{
						Nutrient: name, Key: key, Value: value, Limit: 0, Unit: unit,
						Condition: condition, StrictAvoid: row.StrictAvoid, Avoid: true,
					})
				}
			case expr.IsUpperBound():
				if expr.Exceeds(value) {
					report.ExceededLimits = append(report.ExceededLimits, models.ExceededLimit{
						Nutrient: name, Key: key, Value: value, Limit: expr.Threshold, Unit: unit,
						Condition: condition, StrictAvoid: row.StrictAvoid,
					})
				} else if value > 0 {
					report.SafeNutrients = append(report.SafeNutrients, models.SafeNutrient{
						Nutrient: name, Key: key, Value: value, Unit: unit, Condition: condition,
					})
				}
			case expr.IsLowerBound():
				// a shortfall is never a warning; it is only reported when something is present
				if value > 0 && (value >= expr.Threshold || !row.StrictAvoid) {
					report.SafeNutrients = append(report.SafeNutrients, models.SafeNutrient{
						Nutrient: name, Key: key, Value: value, Unit: unit, Condition: condition, Beneficial: true,
					})
				}
			}
		}
	}

	for _, key := range record.Keys() {
		value := record.Get(key)
		if evaluated[key] || value <= 0 {
			continue
		}
		report.NotAnalyzed = append(report.NotAnalyzed, models.UnanalyzedNutrient{
			Nutrient: key.Label(), Key: key, Value: value, Unit: UnitFor(key.Label()),
		})
	}

	s.logger.Debug("Evaluated health risk",
		zap.Strings("conditions", report.Conditions),
		zap.String("age_bracket", string(bracket)),
		zap.Int("exceeded", len(report.ExceededLimits)),
		zap.Int("safe", len(report.SafeNutrients)))

	return report
}

// resolveKey maps a limit table nutrient name onto a record key: exact key equivalence
// first, then containment in either direction with exclusions that keep fat apart from
// saturated and trans fat, and sugar apart from sweeteners.
func (s *healthRiskEvaluator) resolveKey(nutrient string) (models.NutrientKey, bool) {
	if key, err := models.ParseNutrientKey(nutrient); err == nil {
		return key, true
	}

	name := strings.ToLower(strings.TrimSpace(nutrient))
	for _, key := range s.keys {
		label := key.Label()
		if !strings.Contains(name, label) && !strings.Contains(label, name) {
			continue
		}
		if excludedMatch(key, name) {
			continue
		}
		return key, true
	}
	return "", false
}

func excludedMatch(key models.NutrientKey, name string) bool {
	switch key {
	case models.NutrientFat:
		return strings.Contains(name, "trans") || strings.Contains(name, "saturated")
	case models.NutrientTransFat, models.NutrientSaturatedFat:
		return name == "fat"
	case models.NutrientSugars, models.NutrientAddedSugars:
		return strings.Contains(name, "sweetener")
	case models.NutrientArtificialSweeteners:
		return strings.Contains(name, "sugar")
	}
	return false
}

var (
	milligramNutrients = []string{"caffeine", "iron", "zinc", "selenium", "iodine", "magnesium", "calcium", "potassium"}
	microgramNutrients = []string{"vitamin", "folate", "folic"}
)

// UnitFor returns the display unit for a nutrient name. It does not affect comparisons.
func UnitFor(nutrient string) string {
	name := strings.ToLower(nutrient)
	if strings.Contains(name, "glycemic") {
		return ""
	}
	for _, n := range microgramNutrients {
		if strings.Contains(name, n) {
			return "μg"
		}
	}
	for _, n := range milligramNutrients {
		if strings.Contains(name, n) {
			return "mg"
		}
	}
	return "g"
}
