package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// Conclusions shown with a safety review.
const (
	ConclusionNoProfile     = "Log in and update your health profile for personalized recommendations."
	ConclusionStrongCaution = "⚠️ Caution with this product. Some nutrients exceed recommended health limits."
	ConclusionMildCaution   = "⚠️ Consider limiting this product. Some nutrients exceed recommended limits."
	ConclusionBeneficial    = "✅ This product contains beneficial nutrients that align well with your health profile."
	ConclusionSuitable      = "✅ This product appears suitable for your health profile. Enjoy in moderation as part of a balanced diet."
)

// SafetyReviewer turns a risk report into user-facing text.
type SafetyReviewer interface {
	Summarize(report models.RiskReport, profile *models.HealthProfile) models.SafetyReview
}

type safetyReviewer struct{}

var _ SafetyReviewer = safetyReviewer{}

// NewSafetyReviewer creates a SafetyReviewer.
func NewSafetyReviewer() SafetyReviewer {
	return safetyReviewer{}
}

func (safetyReviewer) Summarize(report models.RiskReport, profile *models.HealthProfile) models.SafetyReview {
	review := models.SafetyReview{
		Conclusion:    ConclusionSuitable,
		Warnings:      []string{},
		SafeNutrients: []string{},
	}
	if profile == nil {
		review.Conclusion = ConclusionNoProfile
		return review
	}

	for _, e := range report.ExceededLimits {
		if strings.Contains(e.Nutrient, "trans") {
			continue
		}
		review.Warnings = append(review.Warnings, warningText(e))
	}

	seen := make(map[string]bool)
	for _, s := range report.SafeNutrients {
		if strings.Contains(s.Nutrient, "trans") || seen[s.Nutrient] {
			continue
		}
		seen[s.Nutrient] = true
		review.SafeNutrients = append(review.SafeNutrients,
			fmt.Sprintf("Good intake of %s (%s%s)", s.Nutrient, formatAmount(s.Value), s.Unit))
	}

	switch {
	case len(review.Warnings) > 2:
		review.Conclusion = ConclusionStrongCaution
	case len(review.Warnings) > 0:
		review.Conclusion = ConclusionMildCaution
	case len(review.SafeNutrients) > 0:
		review.Conclusion = ConclusionBeneficial
	}
	return review
}

func warningText(e models.ExceededLimit) string {
	if e.Avoid || e.Limit == 0 {
		return fmt.Sprintf("Contains %s (%s%s) - Should be avoided", e.Nutrient, formatAmount(e.Value), e.Unit)
	}
	return fmt.Sprintf("High %s content (%s%s) - Exceeds recommended limit (%s%s)",
		e.Nutrient, formatAmount(e.Value), e.Unit, formatAmount(e.Limit), e.Unit)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
