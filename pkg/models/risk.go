package models

// ExceededLimit is a nutrient over the limit for one of the profile's conditions.
type ExceededLimit struct {
	Nutrient    string      `json:"nutrient"`
	Key         NutrientKey `json:"key"`
	Value       float64     `json:"value"`
	Limit       float64     `json:"limit"`
	Unit        string      `json:"unit"`
	Condition   string      `json:"condition"`
	StrictAvoid bool        `json:"strict_avoid"`
	Avoid       bool        `json:"avoid"` // row carried the "avoid" directive
}

// SafeNutrient is a nutrient that was checked and found within its limit.
type SafeNutrient struct {
	Nutrient   string      `json:"nutrient"`
	Key        NutrientKey `json:"key"`
	Value      float64     `json:"value"`
	Unit       string      `json:"unit"`
	Condition  string      `json:"condition"`
	Beneficial bool        `json:"beneficial"` // lower-bound ("should be high") row
}

// UnanalyzedNutrient is a positive nutrient that no selected condition covers.
type UnanalyzedNutrient struct {
	Nutrient string      `json:"nutrient"`
	Key      NutrientKey `json:"key"`
	Value    float64     `json:"value"`
	Unit     string      `json:"unit"`
}

// RiskReport is the output of the health risk evaluation. Personalized is false
// when no profile or no limit table was available.
type RiskReport struct {
	Personalized   bool                 `json:"personalized"`
	Conditions     []string             `json:"conditions,omitempty"`
	AgeBracket     AgeBracket           `json:"age_bracket,omitempty"`
	ExceededLimits []ExceededLimit      `json:"exceeded_limits"`
	SafeNutrients  []SafeNutrient       `json:"safe_nutrients"`
	NotAnalyzed    []UnanalyzedNutrient `json:"not_analyzed"`
}

// NeutralRiskReport is returned when personalized evaluation is not possible.
func NeutralRiskReport() RiskReport {
	return RiskReport{
		ExceededLimits: []ExceededLimit{},
		SafeNutrients:  []SafeNutrient{},
		NotAnalyzed:    []UnanalyzedNutrient{},
	}
}

// SafetyReview is the user-facing summary of a RiskReport.
type SafetyReview struct {
	Conclusion    string   `json:"conclusion"`
	Warnings      []string `json:"warnings"`
	SafeNutrients []string `json:"safe_nutrients"`
}
