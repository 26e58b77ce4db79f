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
	"github.com/nutriscan/nutriscan-engine/pkg/reference"
)

type mockProductSource struct {
	product *openfoodfacts.Product
	err     error
	calls   int
}

func (m *mockProductSource) GetProduct(ctx context.Context, barcode string) (*openfoodfacts.Product, error) {
	m.calls++
	return m.product, m.err
}

type mockLookupCache struct {
	stored map[string]models.LookupResult
}

func (m *mockLookupCache) Get(ctx context.Context, barcode string) (models.LookupResult, bool) {
	r, ok := m.stored[barcode]
	return r, ok
}

func (m *mockLookupCache) Set(ctx context.Context, barcode string, result models.LookupResult) {
	if m.stored == nil {
		m.stored = make(map[string]models.LookupResult)
	}
	m.stored[barcode] = result
}

func rawJSON(v string) json.RawMessage { return json.RawMessage(v) }

func nutellaProduct() *openfoodfacts.Product {
	return &openfoodfacts.Product{
		ProductName:             "Nutella",
		Brands:                  "Ferrero",
		ImageURL:                "https://images.example/nutella.jpg",
		CategoriesTags:          []string{"en:spreads", "en:sweet-spreads"},
		NovaGroup:               rawJSON(`"4"`),
		NutritionGrades:         "e",
		AdditivesTags:           []string{"en:e322", "en:e999", "en:e150a"},
		AdditivesOriginalTags:   []string{"en:e322-lecithins", "en:e999-mystery-agent"},
		AllergensTags:           []string{"en:milk", "en:nuts"},
		TracesTags:              []string{"en:gluten"},
		IngredientsAnalysisTags: []string{"en:Palm-Oil", "en:non-vegan"},
		IngredientsFromPalmOilN: rawJSON(`1`),
		Vegan:                   rawJSON(`"no"`),
		Nutriments: map[string]json.RawMessage{
			"energy-kcal_100g":   rawJSON(`539`),
			"fat_100g":           rawJSON(`30.9`),
			"saturated-fat_100g": rawJSON(`"10.6"`),
			"sugars_100g":        rawJSON(`56.3`),
			"proteins_100g":      rawJSON(`6.3`),
			"salt_100g":          rawJSON(`0.107`),
			"sodium_100g":        rawJSON(`0.0428`),
			"calcium_100g":       rawJSON(`0.12`),
		},
	}
}

func newTestLookup(source ProductSource, c *mockLookupCache) ProductLookup {
	additives := reference.NewAdditiveTable(map[string]string{"E322": "E322 - Lecithins: emulsifier"})
	if c == nil {
		return NewProductLookup(source, additives, nil, 0, zap.NewNop())
	}
	return NewProductLookup(source, additives, c, 0, zap.NewNop())
}

func TestProductLookup_Success(t *testing.T) {
	source := &mockProductSource{product: nutellaProduct()}

	result := newTestLookup(source, nil).Lookup(context.Background(), "3017620422003")

	require.Equal(t, models.LookupSuccess, result.Status)
	assert.True(t, result.Found())

	r := result.Record
	assert.Equal(t, 539.0, r.Get(models.NutrientEnergyKcal))
	assert.Equal(t, 10.6, r.Get(models.NutrientSaturatedFat))
	assert.True(t, r.Has(models.NutrientFiber), "canonical keys are always present")
	assert.Equal(t, 0.0, r.Get(models.NutrientFiber))
	assert.Equal(t, 0.0428, r.Get(models.NutrientSodium))
	assert.InDelta(t, 120.0, r.Get(models.NutrientCalcium), 1e-9, "minerals are converted to mg")
	assert.False(t, r.Has(models.NutrientCaffeine))

	m := result.Metadata
	assert.Equal(t, "Nutella", m.Name)
	assert.Equal(t, "Ferrero", m.Brand)
	assert.Equal(t, 4, m.NovaGroup)
	assert.Equal(t, "E", m.OfficialGrade)
	assert.True(t, m.ContainsPalmOil)
	assert.False(t, m.IsVegan)
	assert.Equal(t, []string{"milk", "nuts"}, m.AllergenTags)
	assert.Equal(t, []string{"gluten"}, m.TraceTags)
	assert.Equal(t, []string{"en:palm-oil", "en:non-vegan"}, m.IngredientsAnalysisTags)

	require.Len(t, m.Additives, 3)
	assert.Equal(t, models.Additive{Code: "E322", Name: "E322 Lecithins", Description: "E322 - Lecithins: emulsifier"}, m.Additives[0])
	assert.Equal(t, "E999 - E999 Mystery Agent", m.Additives[1].Description)
	// no table entry and no original tag: the code stands in for the name
	assert.Equal(t, models.Additive{Code: "E150a", Name: "E150a", Description: "E150a - E150a"}, m.Additives[2])
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "E471 Mono And Diglycérides", titleCase("e471 MONO and diglycérides"))
	assert.Equal(t, "", titleCase(""))
}

func TestProductLookup_ShortBarcodeSkipsNetwork(t *testing.T) {
	source := &mockProductSource{product: nutellaProduct()}

	result := newTestLookup(source, nil).Lookup(context.Background(), "1234567")

	assert.Equal(t, models.LookupNotFound, result.Status)
	assert.ErrorIs(t, result.Err, apperrors.ErrInvalidBarcode)
	assert.Equal(t, 0, source.calls)
}

func TestProductLookup_FailureStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.LookupStatus
	}{
		{"not found", apperrors.ErrNotFound, models.LookupNotFound},
		{"malformed", fmt.Errorf("%w: bad json", openfoodfacts.ErrMalformedResponse), models.LookupParseError},
		{"transport", errors.New("connection refused"), models.LookupTransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockLookupCache{}
			result := newTestLookup(&mockProductSource{err: tt.err}, c).Lookup(context.Background(), "12345678")

			assert.Equal(t, tt.want, result.Status)
			assert.False(t, result.Found())
			assert.True(t, result.Record.IsEmpty(), "failed lookups carry no data")
			assert.Empty(t, c.stored, "failures are not cached")
		})
	}
}

func TestProductLookup_UsesCache(t *testing.T) {
	source := &mockProductSource{product: nutellaProduct()}
	c := &mockLookupCache{}
	lookup := newTestLookup(source, c)

	first := lookup.Lookup(context.Background(), "3017620422003")
	second := lookup.Lookup(context.Background(), "3017620422003")

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first.Metadata.Name, second.Metadata.Name)
}

func TestFormatAdditiveCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"e322", "E322"},
		{"E150a", "E150a"},
		{"150", "E150"},
		{"e150d", "E150d"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAdditiveCode(tt.in), tt.in)
	}
}

func TestParseNovaGroup(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`1`, 1},
		{`"3"`, 3},
		{`4`, 4},
		{`0`, 4},
		{`7`, 4},
		{`-2`, 4},
		{`"unknown"`, 4},
		{`null`, 4},
		{``, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseNovaGroup([]byte(tt.raw)), tt.raw)
	}
}

func TestMetadataFromProduct_VeganAndDefaults(t *testing.T) {
	meta := MetadataFromProduct("12345678", &openfoodfacts.Product{}, nil)

	assert.Equal(t, "Unknown product", meta.Name)
	assert.Equal(t, 4, meta.NovaGroup)
	assert.True(t, meta.IsVegan)
	assert.False(t, meta.ContainsPalmOil)

	meta = MetadataFromProduct("12345678", &openfoodfacts.Product{Vegan: rawJSON(`"non-vegan"`)}, nil)
	assert.False(t, meta.IsVegan)
	meta = MetadataFromProduct("12345678", &openfoodfacts.Product{Vegan: rawJSON(`"maybe"`)}, nil)
	assert.True(t, meta.IsVegan)
}
