package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/openfoodfacts"
	"github.com/nutriscan/nutriscan-engine/pkg/repositories"
)

type mockLabelExtractor struct {
	record       models.NutrientRecord
	profileCalls []int
}

func (m *mockLabelExtractor) Extract(ctx context.Context, img image.Image) models.NutrientRecord {
	return m.record.Clone()
}

func (m *mockLabelExtractor) ExtractWithProfile(ctx context.Context, img image.Image, profileIndex int) (models.NutrientRecord, error) {
	m.profileCalls = append(m.profileCalls, profileIndex)
	if profileIndex < 0 || profileIndex > 3 {
		return models.NewNutrientRecord(), fmt.Errorf("%w: %d", apperrors.ErrInvalidProfileIndex, profileIndex)
	}
	return m.record.Clone(), nil
}

type mockAlternativesFinder struct {
	grades []models.Grade
}

func (m *mockAlternativesFinder) Find(ctx context.Context, barcode string, currentGrade models.Grade) []models.Alternative {
	m.grades = append(m.grades, currentGrade)
	return []models.Alternative{{Barcode: "111", Name: "Better spread", Grade: models.GradeB}}
}

type failingProfileRepo struct {
	repositories.HealthProfileRepository
}

func (failingProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*models.HealthProfile, error) {
	return nil, errors.New("connection refused")
}

type analysisFixture struct {
	service   AnalysisService
	extractor *mockLabelExtractor
	source    *mockProductSource
	profiles  *repositories.MemoryHealthProfileRepository
	alts      *mockAlternativesFinder
}

func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()
	tables := loadTables(t)
	f := &analysisFixture{
		extractor: &mockLabelExtractor{record: models.NewNutrientRecord()},
		source:    &mockProductSource{product: nutellaProduct()},
		profiles:  repositories.NewMemoryHealthProfileRepository(),
		alts:      &mockAlternativesFinder{},
	}
	f.service = NewAnalysisService(AnalysisDeps{
		Extractor:    f.extractor,
		Lookup:       NewProductLookup(f.source, tables.Additives, nil, 0, zap.NewNop()),
		Risk:         NewHealthRiskEvaluator(tables.Limits, zap.NewNop()),
		Allergens:    NewAllergenMatcher(tables.Allergens, zap.NewNop()),
		Alternatives: f.alts,
		Profiles:     f.profiles,
	}, zap.NewNop())
	return f
}

func (f *analysisFixture) diabeticUser(t *testing.T) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	require.NoError(t, f.profiles.Upsert(context.Background(), &models.HealthProfile{
		UserID:        userID,
		Age:           30,
		BMI:           22,
		Diabetes:      models.DiabetesType1,
		BloodPressure: models.StatusNormal,
		Cholesterol:   models.StatusNormal,
	}))
	return userID
}

func TestAnalysisService_AnalyzeBarcode(t *testing.T) {
	f := newAnalysisFixture(t)
	userID := f.diabeticUser(t)

	got, err := f.service.AnalyzeBarcode(context.Background(), "3017620422003", userID)
	require.NoError(t, err)

	assert.Equal(t, models.SourceBarcode, got.Source)
	assert.Equal(t, models.LookupSuccess, got.LookupStatus)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "Nutella", got.Product.Name)
	assert.Equal(t, 56.3, got.Nutrients.Get(models.NutrientSugars))
	assert.Equal(t, models.GradeE, got.Grade.Grade)
	assert.Equal(t, 4, got.Nova.Score)
	assert.Equal(t, models.ProcessingUltraProcessed, got.ProcessingLevel)
	assert.Contains(t, got.ProcessingMarkers, "Contains additives")

	require.True(t, got.Risk.Personalized)
	e, ok := findExceeded(got.Risk, models.NutrientSugars)
	require.True(t, ok)
	assert.Equal(t, ConditionType1Diabetes, e.Condition)
	assert.NotEmpty(t, got.Review.Warnings)

	_, ok = findAllergen(got.Allergens, "milk")
	assert.True(t, ok, "allergen tags are matched when no ingredient text is present")

	require.Len(t, got.Alternatives, 1)
	assert.Equal(t, []models.Grade{models.GradeE}, f.alts.grades)
}

func TestAnalysisService_AnalyzeBarcode_NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", apperrors.ErrNotFound},
		{"malformed", fmt.Errorf("%w: unexpected EOF", openfoodfacts.ErrMalformedResponse)},
		{"transport", errors.New("dial tcp: i/o timeout")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture(t)
			f.source.product = nil
			f.source.err = tt.err

			got, err := f.service.AnalyzeBarcode(context.Background(), "3017620422003", uuid.Nil)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
			assert.Nil(t, got)
			assert.Empty(t, f.alts.grades)
		})
	}
}

func TestAnalysisService_AnalyzeLabel_MalformedLookupUsesLabelData(t *testing.T) {
	f := newAnalysisFixture(t)
	f.source.product = nil
	f.source.err = fmt.Errorf("%w: invalid character '<'", openfoodfacts.ErrMalformedResponse)
	f.extractor.record = record(t, map[models.NutrientKey]float64{models.NutrientSugars: 20})
	userID := f.diabeticUser(t)

	got, err := f.service.AnalyzeLabel(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), "3017620422003", userID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.LookupParseError, got.LookupStatus)
	assert.Equal(t, 20.0, got.Nutrients.Get(models.NutrientSugars))
	for _, key := range models.CanonicalNutrients {
		assert.True(t, got.Nutrients.Has(key), "%s present after reconciliation", key)
	}
	assert.Equal(t, models.NewProductMetadata("3017620422003").Name, got.Product.Name)

	e, ok := findExceeded(got.Risk, models.NutrientSugars)
	require.True(t, ok)
	assert.Equal(t, 20.0, e.Value)
	assert.Equal(t, 15.0, e.Limit)
}

func TestAnalysisService_AnalyzeLabel_LabelValuesWin(t *testing.T) {
	f := newAnalysisFixture(t)
	f.extractor.record = record(t, map[models.NutrientKey]float64{
		models.NutrientSugars: 50,
		models.NutrientFat:    0,
	})

	got, err := f.service.AnalyzeLabel(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), "3017620422003", uuid.Nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.LookupSuccess, got.LookupStatus)
	assert.Equal(t, 50.0, got.Nutrients.Get(models.NutrientSugars))
	assert.Equal(t, 30.9, got.Nutrients.Get(models.NutrientFat), "zero label reading is filled from the lookup")
	assert.Equal(t, "Nutella", got.Product.Name)
	assert.False(t, got.Risk.Personalized)
	assert.Equal(t, ConclusionNoProfile, got.Review.Conclusion)
	assert.Empty(t, f.alts.grades, "label analyses do not search alternatives")
}

func TestAnalysisService_AnalyzeLabel_WithoutBarcode(t *testing.T) {
	f := newAnalysisFixture(t)
	f.extractor.record = record(t, map[models.NutrientKey]float64{models.NutrientProtein: 12})

	got, err := f.service.AnalyzeLabel(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), "", uuid.Nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, f.source.calls)
	assert.Empty(t, got.LookupStatus)
	assert.Equal(t, 12.0, got.Nutrients.Get(models.NutrientProtein))
}

func TestAnalysisService_AnalyzeLabel_ProfileIndex(t *testing.T) {
	f := newAnalysisFixture(t)
	img := image.NewGray(image.Rect(0, 0, 10, 10))

	idx := 2
	got, err := f.service.AnalyzeLabel(context.Background(), img, "", uuid.Nil, &idx)
	require.NoError(t, err)
	require.NotNil(t, got.OCRProfile)
	assert.Equal(t, 2, *got.OCRProfile)

	bad := 7
	_, err = f.service.AnalyzeLabel(context.Background(), img, "", uuid.Nil, &bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidProfileIndex)
	assert.Equal(t, []int{2, 7}, f.extractor.profileCalls)
}

func TestAnalysisService_AnalyzeManual(t *testing.T) {
	f := newAnalysisFixture(t)

	// scenario A values
	got, err := f.service.AnalyzeManual(context.Background(), map[string]string{
		"energy_kcal":   "450",
		"sugars":        "16",
		"fat":           "20",
		"saturated_fat": "7",
		"salt":          "1,6",
		"protein":       "2",
		"fiber":         "1",
		"sodium":        "",
	}, uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, models.SourceManual, got.Source)
	assert.Equal(t, 14, got.Grade.FinalScore)
	assert.Equal(t, models.GradeE, got.Grade.Grade)
	assert.Equal(t, 1.6, got.Nutrients.Get(models.NutrientSalt))
	assert.False(t, got.Nutrients.Has(models.NutrientSodium))
	assert.Equal(t, 0, f.source.calls)
}

func TestAnalysisService_AnalyzeManual_Validation(t *testing.T) {
	f := newAnalysisFixture(t)

	tests := []struct {
		name string
		form map[string]string
		want error
	}{
		{"empty", map[string]string{"sugars": " "}, apperrors.ErrEmptyNutrients},
		{"negative", map[string]string{"sugars": "-1"}, apperrors.ErrNegativeNutrient},
		{"not a number", map[string]string{"sugars": "lots"}, apperrors.ErrInvalidNutrientValue},
		{"unknown nutrient", map[string]string{"unobtainium": "1"}, apperrors.ErrUnknownNutrient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.AnalyzeManual(context.Background(), tt.form, uuid.Nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalysisService_ProfileStoreFailureIsNeutral(t *testing.T) {
	tables := loadTables(t)
	service := NewAnalysisService(AnalysisDeps{
		Extractor: &mockLabelExtractor{record: models.NewNutrientRecord()},
		Lookup:    NewProductLookup(&mockProductSource{product: nutellaProduct()}, nil, nil, 0, zap.NewNop()),
		Risk:      NewHealthRiskEvaluator(tables.Limits, zap.NewNop()),
		Profiles:  failingProfileRepo{},
	}, zap.NewNop())

	got, err := service.AnalyzeBarcode(context.Background(), "3017620422003", uuid.New())
	require.NoError(t, err)
	assert.False(t, got.Risk.Personalized)
	assert.NotNil(t, got.Allergens)
	assert.NotNil(t, got.Alternatives)
}
