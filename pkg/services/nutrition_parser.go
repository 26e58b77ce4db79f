package services

import (
	"regexp"
	"strings"

	"github.com/nutriscan/nutriscan-engine/pkg/jsonutil"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// nutrientPattern captures the amount for one nutrient in lower-cased label text.
type nutrientPattern struct {
	key     models.NutrientKey
	pattern *regexp.Regexp
}

// Patterns are applied to whitespace-collapsed, lower-cased text. The first match wins
// for each nutrient.
var nutrientPatterns = []nutrientPattern{
	{models.NutrientEnergyKcal, regexp.MustCompile(`(?:energy|calories|kcal|energy value)[^\d]*(\d+[.,]?\d*)\s*(?:kcal|kj)?`)},
	{models.NutrientFat, regexp.MustCompile(`(?:total\s*fat|fat\s*content|fat)[^\d]*(\d+[.,]?\d*)\s*g`)},
	{models.NutrientSaturatedFat, regexp.MustCompile(`(?:saturated\s*fat|saturates|sat\.\s*fat)[^\d]*(\d+[.,]?\d*)\s*g`)},
	{models.NutrientCarbohydrates, regexp.MustCompile(`(?:total\s*carbohydrate|carbohydrates?|carbs?)[^\d]*(\d+[.,]?\d*)\s*g`)},
	{models.NutrientSugars, regexp.MustCompile(`(?:of\s*which\s*sugars|total\s*sugars|sugars?)[^\d]*(\d+[.,]?\d*)\s*g`)},
	{models.NutrientFiber, regexp.MustCompile(`(?:dietary\s*fibre|dietary\s*fiber|fibre|fiber)[^\d]*(\d+[.,]?\d*)\s*g`)},
	{models.NutrientProtein, regexp.MustCompile(`proteins?[^\d]*(\d+[.,]?\d*)\s*g`)},
}

// saltPattern also matches sodium; the keyword and unit decide the conversion to grams of salt.
var saltPattern = regexp.MustCompile(`(salt|sodium)[^\d]*(\d+[.,]?\d*)\s*(mg|g)`)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeLabelText collapses whitespace and lower-cases recognized text.
func NormalizeLabelText(text string) string {
	return strings.ToLower(strings.TrimSpace(whitespace.ReplaceAllString(text, " ")))
}

// ParseNutritionText extracts nutrient amounts from recognized label text.
// Only nutrients that matched are present in the result.
func ParseNutritionText(text string) models.NutrientRecord {
	out := models.NewNutrientRecord()
	norm := NormalizeLabelText(text)
	if norm == "" {
		return out
	}

	for _, p := range nutrientPatterns {
		m := p.pattern.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		if v, ok := jsonutil.ParseDecimal(m[1]); ok {
			_ = out.Set(p.key, v)
		}
	}

	if m := saltPattern.FindStringSubmatch(norm); m != nil {
		if v, ok := jsonutil.ParseDecimal(m[2]); ok {
			_ = out.Set(models.NutrientSalt, saltGrams(m[1], v, m[3]))
		}
	}

	return out
}

// saltGrams converts a salt or sodium amount to grams of salt.
// Sodium in mg becomes salt in g by dividing by 400 (x2.5 / 1000).
func saltGrams(keyword string, amount float64, unit string) float64 {
	switch {
	case keyword == "sodium" && unit == "mg":
		return amount / 400
	case keyword == "sodium":
		return amount * 2.5
	case unit == "mg":
		return amount / 1000
	default:
		return amount
	}
}

// MergeMax folds records keeping the highest non-zero value per nutrient.
// The fold is commutative and associative, so attempt order does not matter.
func MergeMax(records ...models.NutrientRecord) models.NutrientRecord {
	out := models.NewNutrientRecord()
	for _, r := range records {
		for _, key := range r.Keys() {
			v := r.Get(key)
			if v <= 0 {
				continue
			}
			if v > out.Get(key) {
				_ = out.Set(key, v)
			}
		}
	}
	return out
}
