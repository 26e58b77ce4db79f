package models

// MealPlan is the oracle's three-meal recommendation.
type MealPlan struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

// Valid reports whether all three meals are present.
func (m MealPlan) Valid() bool {
	return m.Breakfast != "" && m.Lunch != "" && m.Dinner != ""
}

// MealQuery is the oracle input.
type MealQuery struct {
	Age      float64 `json:"age"`
	WeightKg float64 `json:"weight_kg"`
	HeightFt float64 `json:"height_ft"`
	Disease  string  `json:"disease"`
	BMI      float64 `json:"bmi"`
}

// DietPlan combines oracle meals with BMI and calorie guidance.
type DietPlan struct {
	Meals             MealPlan `json:"meals"`
	Fallback          bool     `json:"fallback"`
	Disease           string   `json:"disease"`
	BMI               float64  `json:"bmi"`
	BMICategory       string   `json:"bmi_category"`
	DailyCalories     int      `json:"daily_calories"`
	AdjustedCalories  int      `json:"adjusted_calories"`
	CalorieSuggestion string   `json:"calorie_suggestion"`
}

// Alternative is a better-graded product from the same category.
type Alternative struct {
	Barcode      string   `json:"barcode"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand,omitempty"`
	ImageURL     string   `json:"image_url"`
	Grade        Grade    `json:"grade"`
	NovaGroup    int      `json:"nova_group"`
	Improvements []string `json:"improvements"`
	Reason       string   `json:"reason"`
}
