package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/openfoodfacts"
)

type mockProductSearcher struct {
	mockProductSource
	results  map[string][]openfoodfacts.Product
	failing  map[string]bool
	searched []string
}

func (m *mockProductSearcher) Search(ctx context.Context, query openfoodfacts.SearchQuery) ([]openfoodfacts.Product, error) {
	m.searched = append(m.searched, query.Category)
	if m.failing[query.Category] {
		return nil, errors.New("search unavailable")
	}
	return m.results[query.Category], nil
}

func candidate(code, name, grade string, nova int, nutriments map[string]float64) openfoodfacts.Product {
	p := openfoodfacts.Product{
		Code:            code,
		ProductName:     name,
		Brands:          "Acme",
		ImageURL:        "https://images.example/" + code + ".jpg",
		NutritionGrades: grade,
		NovaGroup:       rawJSON(fmt.Sprint(nova)),
		Nutriments:      map[string]json.RawMessage{},
	}
	for k, v := range nutriments {
		p.Nutriments[k] = rawJSON(fmt.Sprint(v))
	}
	return p
}

func spreadProduct() *openfoodfacts.Product {
	p := nutellaProduct()
	p.Code = "3017620422003"
	p.CategoriesHierarchy = []string{"en:spreads", "en:sweet-spreads", "en:cocoa-spreads"}
	p.CategoriesTags = []string{"en:spreads", "en:hazelnut-spreads", "en:extra"}
	p.Nutriments["fiber_100g"] = rawJSON(`3.4`)
	return p
}

func TestAlternativesFinder_SearchCategories(t *testing.T) {
	assert.Equal(t,
		[]string{"en:spreads", "en:sweet-spreads", "en:hazelnut-spreads"},
		searchCategories(spreadProduct()))
	assert.Empty(t, searchCategories(&openfoodfacts.Product{}))
}

func TestAlternativesFinder_Find(t *testing.T) {
	source := &mockProductSearcher{
		mockProductSource: mockProductSource{product: spreadProduct()},
		results: map[string][]openfoodfacts.Product{
			"en:spreads": {
				candidate("111", "Hazelnut Butter", "a", 1, map[string]float64{
					"sugars_100g": 4, "salt_100g": 0.01, "fiber_100g": 7, "proteins_100g": 15,
				}),
				// same product
				candidate("3017620422003", "Nutella", "a", 4, map[string]float64{"sugars_100g": 1}),
				// no improvement at all
				candidate("222", "Sugar Paste", "e", 4, map[string]float64{"sugars_100g": 80, "salt_100g": 1}),
			},
			"en:sweet-spreads": {
				candidate("333", "Hazelnut Butter", "b", 2, map[string]float64{"sugars_100g": 2}),
				candidate("444", "Cocoa Light", "b", 4, map[string]float64{"sugars_100g": 30}),
			},
		},
	}

	alts := NewAlternativesFinder(source, zap.NewNop()).Find(context.Background(), "3017620422003", models.GradeE)
	require.Len(t, alts, 2)

	first := alts[0]
	assert.Equal(t, "111", first.Barcode)
	assert.Equal(t, "Hazelnut Butter", first.Name)
	assert.Equal(t, "Acme", first.Brand)
	assert.Equal(t, models.GradeA, first.Grade)
	assert.Equal(t, 1, first.NovaGroup)
	assert.Equal(t, []string{
		"Better Nutri-Score (A)", "Less processed", "Lower in sugar", "Lower in salt", "Higher in fiber", "Higher in protein",
	}, first.Improvements)
	assert.Equal(t, "Better Nutri-Score (A) • Less processed • Lower in sugar", first.Reason)

	assert.Equal(t, "Cocoa Light", alts[1].Name)
	// a missing candidate value reads as 0
	assert.Equal(t, "Better Nutri-Score (B) • Lower in sugar • Lower in salt", alts[1].Reason)

	assert.Equal(t, []string{"en:spreads", "en:sweet-spreads", "en:hazelnut-spreads"}, source.searched)
}

func TestAlternativesFinder_StopsAtLimit(t *testing.T) {
	var many []openfoodfacts.Product
	for i := range 10 {
		many = append(many, candidate(fmt.Sprint(500+i), fmt.Sprintf("Option %d", i), "a", 1, map[string]float64{"sugars_100g": 1}))
	}
	source := &mockProductSearcher{
		mockProductSource: mockProductSource{product: spreadProduct()},
		results:           map[string][]openfoodfacts.Product{"en:spreads": many},
	}

	alts := NewAlternativesFinder(source, zap.NewNop()).Find(context.Background(), "3017620422003", "")
	assert.Len(t, alts, MaxAlternatives)
	assert.Equal(t, []string{"en:spreads"}, source.searched)
}

func TestAlternativesFinder_SkipsIncompleteCandidates(t *testing.T) {
	noImage := candidate("1", "No Image", "a", 1, map[string]float64{"sugars_100g": 1})
	noImage.ImageURL = ""
	noName := candidate("2", "", "a", 1, map[string]float64{"sugars_100g": 1})
	noNutriments := candidate("3", "Empty", "a", 1, nil)
	noBrand := candidate("4", "Plain", "a", 1, map[string]float64{"sugars_100g": 1})
	noBrand.Brands = ""

	source := &mockProductSearcher{
		mockProductSource: mockProductSource{product: spreadProduct()},
		results: map[string][]openfoodfacts.Product{
			"en:spreads": {noImage, noName, noNutriments, noBrand},
		},
	}

	alts := NewAlternativesFinder(source, zap.NewNop()).Find(context.Background(), "3017620422003", "")
	require.Len(t, alts, 1)
	assert.Equal(t, "Plain", alts[0].Name)
	assert.Equal(t, "Unknown Brand", alts[0].Brand)
}

func TestAlternativesFinder_CurrentGradeFallback(t *testing.T) {
	product := spreadProduct()
	product.NutritionGrades = ""
	product.Nutriments = map[string]json.RawMessage{}
	product.NovaGroup = nil

	source := &mockProductSearcher{
		mockProductSource: mockProductSource{product: product},
		results: map[string][]openfoodfacts.Product{
			"en:spreads": {
				candidate("1", "Same Grade", "b", 1, map[string]float64{"sugars_100g": 1}),
				candidate("2", "Better Grade", "a", 1, map[string]float64{"sugars_100g": 1}),
			},
		},
	}

	alts := NewAlternativesFinder(source, zap.NewNop()).Find(context.Background(), "3017620422003", models.GradeB)
	require.Len(t, alts, 1)
	assert.Equal(t, "Better Grade", alts[0].Name)
	assert.Equal(t, []string{"Better Nutri-Score (A)"}, alts[0].Improvements)
}

func TestAlternativesFinder_Failures(t *testing.T) {
	finder := NewAlternativesFinder(&mockProductSearcher{
		mockProductSource: mockProductSource{err: apperrors.ErrNotFound},
	}, zap.NewNop())
	alts := finder.Find(context.Background(), "0000000000000", "")
	assert.NotNil(t, alts)
	assert.Empty(t, alts)

	source := &mockProductSearcher{
		mockProductSource: mockProductSource{product: spreadProduct()},
		failing:           map[string]bool{"en:spreads": true},
		results: map[string][]openfoodfacts.Product{
			"en:sweet-spreads": {candidate("9", "Fallback Pick", "a", 1, map[string]float64{"sugars_100g": 1})},
		},
	}
	alts = NewAlternativesFinder(source, zap.NewNop()).Find(context.Background(), "3017620422003", "")
	require.Len(t, alts, 1)
	assert.Equal(t, "Fallback Pick", alts[0].Name)
}
