package models

// AllergenEntry is one row of the allergen reference table.
type AllergenEntry struct {
	Ingredient        string `json:"ingredient" yaml:"ingredient"`
	HazardDescription string `json:"hazard_description" yaml:"hazard"`
}

// Match confidence levels
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
)

// Recommended actions
const (
	ActionAvoid   = "Avoid"
	ActionCaution = "Caution"
)

// AllergenMatch links a reference allergen to the product ingredient it was found in.
type AllergenMatch struct {
	Ingredient        string `json:"ingredient"`
	HazardDescription string `json:"hazard_description"`
	FoundIn           string `json:"found_in"`
	Confidence        string `json:"confidence"`
	Action            string `json:"action"`
}
