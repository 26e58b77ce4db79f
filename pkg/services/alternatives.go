package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/jsonutil"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/openfoodfacts"
)

const (
	// MaxAlternatives caps the number of suggested products.
	MaxAlternatives = 6

	maxReasons         = 3
	categoriesPerLevel = 2
	unknownBrand       = "Unknown Brand"
)

var targetGrades = []string{"a", "b"}

// ProductSearcher fetches a product and searches its category. Implemented by *openfoodfacts.Client.
type ProductSearcher interface {
	ProductSource
	Search(ctx context.Context, query openfoodfacts.SearchQuery) ([]openfoodfacts.Product, error)
}

// AlternativesFinder suggests better rated products from the same categories.
type AlternativesFinder interface {
	// Find is best effort and returns an empty list on any failure.
	Find(ctx context.Context, barcode string, currentGrade models.Grade) []models.Alternative
}

type alternativesFinder struct {
	source ProductSearcher
	logger *zap.Logger
}

var _ AlternativesFinder = (*alternativesFinder)(nil)

func NewAlternativesFinder(source ProductSearcher, logger *zap.Logger) AlternativesFinder {
	return &alternativesFinder{
		source: source,
		logger: logger.Named("alternatives"),
	}
}

func (s *alternativesFinder) Find(ctx context.Context, barcode string, currentGrade models.Grade) []models.Alternative {
	alternatives := []models.Alternative{}

	product, err := s.source.GetProduct(ctx, barcode)
	if err != nil {
		s.logger.Warn("Failed to get product for alternatives",
			zap.String("barcode", barcode),
			zap.Error(err))
		return alternatives
	}

	categories := searchCategories(product)
	if len(categories) == 0 {
		s.logger.Warn("No categories found for product", zap.String("barcode", barcode))
		return alternatives
	}

	grade := strings.ToLower(product.NutritionGrades)
	if grade == "" {
		grade = strings.ToLower(string(currentGrade))
	}

	for _, category := range categories {
		if ctx.Err() != nil {
			break
		}
		candidates, err := s.source.Search(ctx, openfoodfacts.SearchQuery{
			Category: category,
			Grades:   targetGrades,
		})
		if err != nil {
			s.logger.Warn("Category search failed",
				zap.String("category", category),
				zap.Error(err))
			continue
		}

		for i := range candidates {
			alt, ok := compareProducts(barcode, grade, product, &candidates[i])
			if !ok {
				continue
			}
			if slices.ContainsFunc(alternatives, func(a models.Alternative) bool { return a.Name == alt.Name }) {
				continue
			}
			alternatives = append(alternatives, alt)
			if len(alternatives) >= MaxAlternatives {
				break
			}
		}
		if len(alternatives) >= MaxAlternatives {
			break
		}
	}

	s.logger.Debug("Found alternatives",
		zap.String("barcode", barcode),
		zap.Int("categories", len(categories)),
		zap.Int("alternatives", len(alternatives)))
	return alternatives
}

// searchCategories takes the first two hierarchy levels and the first two tags, de-duplicated.
func searchCategories(p *openfoodfacts.Product) []string {
	var out []string
	for _, list := range [][]string{p.CategoriesHierarchy, p.CategoriesTags} {
		for i, c := range list {
			if i >= categoriesPerLevel {
				break
			}
			if c != "" && !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func compareProducts(barcode, currentGrade string, current, alt *openfoodfacts.Product) (models.Alternative, bool) {
	if alt.Code == barcode || alt.ProductName == "" || alt.ImageURL == "" || len(alt.Nutriments) == 0 {
		return models.Alternative{}, false
	}

	var improvements []string

	altGrade := strings.ToLower(alt.NutritionGrades)
	if slices.Contains(targetGrades, altGrade) && (currentGrade == "" || altGrade < currentGrade) {
		improvements = append(improvements, fmt.Sprintf("Better Nutri-Score (%s)", strings.ToUpper(altGrade)))
	}

	altNova, altOK := jsonutil.FlexibleIntValue(alt.NovaGroup)
	curNova, curOK := jsonutil.FlexibleIntValue(current.NovaGroup)
	if altOK && curOK && altNova > 0 && curNova > 0 && altNova < curNova {
		improvements = append(improvements, "Less processed")
	}

	for _, c := range []struct {
		key   string
		name  string
		lower bool
	}{
		{"sugars_100g", "sugar", true},
		{"salt_100g", "salt", true},
		{"fiber_100g", "fiber", false},
		{"proteins_100g", "protein", false},
	} {
		cur, _ := current.Nutriment(c.key)
		if cur <= 0 {
			continue
		}
		v, _ := alt.Nutriment(c.key)
		switch {
		case c.lower && v < cur:
			improvements = append(improvements, "Lower in "+c.name)
		case !c.lower && v > cur:
			improvements = append(improvements, "Higher in "+c.name)
		}
	}

	if len(improvements) == 0 {
		return models.Alternative{}, false
	}

	brand := alt.Brands
	if brand == "" {
		brand = unknownBrand
	}
	nova := 0
	if altOK {
		nova = altNova
	}

	return models.Alternative{
		Barcode:      alt.Code,
		Name:         alt.ProductName,
		Brand:        brand,
		ImageURL:     alt.ImageURL,
		Grade:        models.Grade(strings.ToUpper(altGrade)),
		NovaGroup:    nova,
		Improvements: improvements,
		Reason:       strings.Join(improvements[:min(len(improvements), maxReasons)], " • "),
	}, true
}
