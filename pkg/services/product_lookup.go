package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/cache"
	"github.com/nutriscan/nutriscan-engine/pkg/jsonutil"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/openfoodfacts"
	"github.com/nutriscan/nutriscan-engine/pkg/reference"
)

// DefaultMinBarcodeLength is the shortest barcode sent to the product database.
const DefaultMinBarcodeLength = 8

// ProductSource fetches raw product documents. Implemented by *openfoodfacts.Client.
type ProductSource interface {
	GetProduct(ctx context.Context, barcode string) (*openfoodfacts.Product, error)
}

// ProductLookup resolves a barcode into nutrients and product metadata.
type ProductLookup interface {
	// Lookup never returns an error; failures are reported through the result status.
	Lookup(ctx context.Context, barcode string) models.LookupResult
}

type productLookup struct {
	source           ProductSource
	additives        *reference.AdditiveTable
	cache            cache.LookupCache
	minBarcodeLength int
	logger           *zap.Logger
}

var _ ProductLookup = (*productLookup)(nil)

// NewProductLookup creates a ProductLookup. additives may be nil, in which case
// additive descriptions fall back to "<code> - <name>".
func NewProductLookup(
	source ProductSource,
	additives *reference.AdditiveTable,
	lookupCache cache.LookupCache,
	minBarcodeLength int,
	logger *zap.Logger,
) ProductLookup {
	if lookupCache == nil {
		lookupCache = cache.NoopLookupCache{}
	}
	if minBarcodeLength <= 0 {
		minBarcodeLength = DefaultMinBarcodeLength
	}
	return &productLookup{
		source:           source,
		additives:        additives,
		cache:            lookupCache,
		minBarcodeLength: minBarcodeLength,
		logger:           logger.Named("product-lookup"),
	}
}

func (s *productLookup) Lookup(ctx context.Context, barcode string) models.LookupResult {
	barcode = strings.TrimSpace(barcode)
	if len(barcode) < s.minBarcodeLength {
		s.logger.Debug("Barcode too short", zap.String("barcode", barcode))
		return models.LookupFailed(models.LookupNotFound, apperrors.ErrInvalidBarcode)
	}

	if cached, ok := s.cache.Get(ctx, barcode); ok {
		s.logger.Debug("Lookup cache hit", zap.String("barcode", barcode))
		return cached
	}

	product, err := s.source.GetProduct(ctx, barcode)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.logger.Info("Product not found", zap.String("barcode", barcode))
		return models.LookupFailed(models.LookupNotFound, err)
	case errors.Is(err, openfoodfacts.ErrMalformedResponse):
		s.logger.Warn("Malformed product response", zap.String("barcode", barcode), zap.Error(err))
		return models.LookupFailed(models.LookupParseError, err)
	case err != nil:
		s.logger.Warn("Product lookup failed", zap.String("barcode", barcode), zap.Error(err))
		return models.LookupFailed(models.LookupTransportError, err)
	}

	result := models.LookupResult{
		Status:   models.LookupSuccess,
		Record:   NutrientsFromProduct(product),
		Metadata: MetadataFromProduct(barcode, product, s.additives),
	}
	s.cache.Set(ctx, barcode, result)
	return result
}

// offNutriment maps a product database nutriment onto a record key. scale converts the
// database's per-100g grams into the unit the limit table uses for that nutrient.
type offNutriment struct {
	field string
	key   models.NutrientKey
	scale float64
}

var canonicalNutriments = []offNutriment{
	{"energy-kcal_100g", models.NutrientEnergyKcal, 1},
	{"fat_100g", models.NutrientFat, 1},
	{"saturated-fat_100g", models.NutrientSaturatedFat, 1},
	{"carbohydrates_100g", models.NutrientCarbohydrates, 1},
	{"sugars_100g", models.NutrientSugars, 1},
	{"fiber_100g", models.NutrientFiber, 1},
	{"proteins_100g", models.NutrientProtein, 1},
	{"salt_100g", models.NutrientSalt, 1},
}

// Optional nutriments are only recorded when the database provides them.
var optionalNutriments = []offNutriment{
	{"sodium_100g", models.NutrientSodium, 1},
	{"cholesterol_100g", models.NutrientCholesterol, 1},
	{"trans-fat_100g", models.NutrientTransFat, 1},
	{"added-sugars_100g", models.NutrientAddedSugars, 1},
	{"omega-3-fat_100g", models.NutrientOmega3, 1},
	{"caffeine_100g", models.NutrientCaffeine, 1e3},
	{"potassium_100g", models.NutrientPotassium, 1e3},
	{"calcium_100g", models.NutrientCalcium, 1e3},
	{"iron_100g", models.NutrientIron, 1e3},
	{"magnesium_100g", models.NutrientMagnesium, 1e3},
	{"zinc_100g", models.NutrientZinc, 1e3},
	{"vitamin-a_100g", models.NutrientVitaminA, 1e6},
	{"vitamin-c_100g", models.NutrientVitaminC, 1e6},
	{"vitamin-d_100g", models.NutrientVitaminD, 1e6},
	{"vitamin-b12_100g", models.NutrientVitaminB12, 1e6},
	{"folates_100g", models.NutrientFolate, 1e6},
}

// NutrientsFromProduct normalizes product nutriments. Canonical nutrients are always
// present (0 when absent or unreadable); negative values are dropped.
func NutrientsFromProduct(p *openfoodfacts.Product) models.NutrientRecord {
	out := models.NewNutrientRecord()
	for _, n := range canonicalNutriments {
		v, ok := p.Nutriment(n.field)
		if !ok || v < 0 {
			v = 0
		}
		_ = out.Set(n.key, v*n.scale)
	}
	for _, n := range optionalNutriments {
		if v, ok := p.Nutriment(n.field); ok && v >= 0 {
			_ = out.Set(n.key, v*n.scale)
		}
	}
	return out
}

// MetadataFromProduct builds ProductMetadata from a product document.
func MetadataFromProduct(barcode string, p *openfoodfacts.Product, additives *reference.AdditiveTable) models.ProductMetadata {
	meta := models.NewProductMetadata(barcode)
	if p == nil {
		return meta
	}

	if name := strings.TrimSpace(p.ProductName); name != "" {
		meta.Name = name
	}
	meta.Brand = strings.TrimSpace(p.Brands)
	meta.ImageURL = p.ImageURL
	meta.Categories = p.CategoriesTags
	meta.CategoriesHierarchy = p.CategoriesHierarchy
	meta.NovaGroup = ParseNovaGroup(p.NovaGroup)
	meta.OfficialGrade = strings.ToUpper(strings.TrimSpace(p.NutritionGrades))
	meta.IngredientsText = p.IngredientsText
	meta.ServingSize = p.ServingSize

	for _, tag := range p.AdditivesTags {
		code := extractTagCode(tag)
		if code == "" {
			continue
		}
		meta.Additives = append(meta.Additives, resolveAdditive(code, p, additives))
	}

	for _, tag := range p.IngredientsAnalysisTags {
		meta.IngredientsAnalysisTags = append(meta.IngredientsAnalysisTags, strings.ToLower(tag))
	}
	meta.AllergenTags = extractTagCodes(p.AllergensTags)
	meta.TraceTags = extractTagCodes(p.TracesTags)

	if n, ok := jsonutil.FlexibleIntValue(p.IngredientsFromPalmOilN); ok {
		meta.ContainsPalmOil = n > 0
	}

	switch strings.ToLower(strings.TrimSpace(jsonutil.FlexibleStringValue(p.Vegan))) {
	case "no", "non-vegan":
		meta.IsVegan = false
	default:
		meta.IsVegan = true
	}

	return meta
}

// ParseNovaGroup reads a NOVA group, defaulting to 4 when it is absent, unreadable or
// outside 1-4.
func ParseNovaGroup(raw []byte) int {
	n, ok := jsonutil.FlexibleIntValue(raw)
	if !ok || n < 1 || n > 4 {
		return models.DefaultNovaGroup
	}
	return n
}

// FormatAdditiveCode canonicalizes an additive code: "e322" -> "E322", "150" -> "E150".
// Suffixes are preserved ("E150a").
func FormatAdditiveCode(code string) string {
	code = strings.TrimSpace(code)
	switch {
	case code == "":
		return ""
	case strings.HasPrefix(code, "e"):
		return "E" + code[1:]
	case strings.HasPrefix(code, "E"):
		return code
	default:
		return "E" + code
	}
}

// extractTagCode strips a language prefix from a taxonomy tag ("en:e322" -> "e322").
func extractTagCode(tag string) string {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func extractTagCodes(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, extractTagCode(tag))
	}
	return out
}

func resolveAdditive(code string, p *openfoodfacts.Product, additives *reference.AdditiveTable) models.Additive {
	display := FormatAdditiveCode(code)
	name := additiveName(code, p)

	additive := models.Additive{Code: display, Name: display, Description: display + " - " + display}
	if name != "" {
		additive.Name = name
		additive.Description = display + " - " + name
	}
	if desc, ok := additives.Describe(display); ok {
		additive.Description = desc
	}
	return additive
}

// additiveName looks the code up in the original and legacy additive tags, which carry
// names such as "en:e322-lecithins".
func additiveName(code string, p *openfoodfacts.Product) string {
	lower := strings.ToLower(code)
	for _, tags := range [][]string{p.AdditivesOriginalTags, p.AdditivesOldTags} {
		for _, original := range tags {
			if !strings.Contains(strings.ToLower(original), lower) {
				continue
			}
			if i := strings.LastIndex(original, ":"); i >= 0 {
				return titleCase(strings.ReplaceAll(original[i+1:], "-", " "))
			}
		}
	}
	return ""
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
// A Caser keeps state, so each call builds its own.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
