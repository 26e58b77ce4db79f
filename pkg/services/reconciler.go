package services

import (
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// NutrientReconciler combines label readings with product database data.
type NutrientReconciler interface {
	// Merge starts from the label reading and fills every canonical nutrient the label
	// did not provide (missing or zero) from the lookup. A non-zero label value always
	// wins. The output holds every canonical key.
	Merge(ocr, lookup models.NutrientRecord) models.NutrientRecord

	// MergeMetadata copies every non-empty lookup field over the placeholder.
	MergeMetadata(placeholder, lookup models.ProductMetadata) models.ProductMetadata
}

type nutrientReconciler struct{}

var _ NutrientReconciler = nutrientReconciler{}

// NewNutrientReconciler creates a NutrientReconciler.
func NewNutrientReconciler() NutrientReconciler {
	return nutrientReconciler{}
}

func (nutrientReconciler) Merge(ocr, lookup models.NutrientRecord) models.NutrientRecord {
	out := ocr.Clone()
	for _, key := range models.CanonicalNutrients {
		if out.Get(key) > 0 {
			continue
		}
		_ = out.Set(key, max(lookup.Get(key), 0))
	}
	// dataset-defined nutrients follow the same rule but are only added when present
	for _, key := range lookup.Keys() {
		if out.Get(key) > 0 {
			continue
		}
		_ = out.Set(key, lookup.Get(key))
	}
	return out
}

func (nutrientReconciler) MergeMetadata(placeholder, lookup models.ProductMetadata) models.ProductMetadata {
	out := placeholder
	if lookup.Barcode == "" && lookup.Name == "" {
		return out
	}
	if lookup.Barcode != "" {
		out.Barcode = lookup.Barcode
	}
	if lookup.Name != "" {
		out.Name = lookup.Name
	}
	if lookup.Brand != "" {
		out.Brand = lookup.Brand
	}
	if lookup.ImageURL != "" {
		out.ImageURL = lookup.ImageURL
	}
	if len(lookup.Categories) > 0 {
		out.Categories = lookup.Categories
	}
	if len(lookup.CategoriesHierarchy) > 0 {
		out.CategoriesHierarchy = lookup.CategoriesHierarchy
	}
	if lookup.NovaGroup >= 1 && lookup.NovaGroup <= 4 {
		out.NovaGroup = lookup.NovaGroup
	}
	if lookup.OfficialGrade != "" {
		out.OfficialGrade = lookup.OfficialGrade
	}
	if len(lookup.Additives) > 0 {
		out.Additives = lookup.Additives
	}
	if len(lookup.AllergenTags) > 0 {
		out.AllergenTags = lookup.AllergenTags
	}
	if len(lookup.TraceTags) > 0 {
		out.TraceTags = lookup.TraceTags
	}
	if lookup.IngredientsText != "" {
		out.IngredientsText = lookup.IngredientsText
	}
	if len(lookup.IngredientsAnalysisTags) > 0 {
		out.IngredientsAnalysisTags = lookup.IngredientsAnalysisTags
	}
	if lookup.ServingSize != "" {
		out.ServingSize = lookup.ServingSize
	}
	out.IsVegan = lookup.IsVegan
	out.ContainsPalmOil = lookup.ContainsPalmOil
	return out
}
