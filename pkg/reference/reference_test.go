package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

func TestLoad_Embedded(t *testing.T) {
	tables, err := Load(Paths{}, zap.NewNop())
	require.NoError(t, err)

	require.NotNil(t, tables.Limits)
	assert.Contains(t, tables.Limits.Conditions(), "Type 1 diabetes")
	assert.Contains(t, tables.Limits.Conditions(), "Overweight (BMI 25-29.9)")

	var sugar *models.NutrientLimit
	for _, row := range tables.Limits.RowsFor("Type 1 diabetes") {
		if row.Nutrient == "Sugar" {
			sugar = &row
			break
		}
	}
	require.NotNil(t, sugar)
	assert.Equal(t, "≤15", sugar.LimitFor(models.AgeBracketAdult))

	require.NotNil(t, tables.Allergens)
	assert.Len(t, tables.Allergens.Entries(), 14)
	assert.Contains(t, tables.Allergens.Synonyms("milk chocolate"), "dairy")

	require.NotNil(t, tables.Additives)
	desc, ok := tables.Additives.Describe("E322")
	assert.True(t, ok)
	assert.Equal(t, "Lecithins - Emulsifier (from soy or eggs)", desc)
	_, ok = tables.Additives.Describe("E999")
	assert.False(t, ok)

	assert.Contains(t, tables.Diseases, "diabetes")
}

func TestLoad_MissingOverrideLeavesTableNil(t *testing.T) {
	tables, err := Load(Paths{NutrientLimits: filepath.Join(t.TempDir(), "missing.yaml")}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrReferenceDataMissing)

	assert.Nil(t, tables.Limits)
	assert.NotNil(t, tables.Allergens, "other datasets still load")
	assert.NotNil(t, tables.Additives)
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	content := `limits:
  - condition: Type 1 diabetes
    nutrient: Sugar
    strict_avoid: false
    limits:
      "Adults": "≤12"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tables, err := Load(Paths{NutrientLimits: path}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, tables.Limits.Len())
	assert.Equal(t, "≤12", tables.Limits.RowsFor("Type 1 diabetes")[0].LimitFor(models.AgeBracketAdult))
}

func TestNewLimitTable_Validation(t *testing.T) {
	_, err := NewLimitTable(nil)
	assert.ErrorIs(t, err, apperrors.ErrReferenceDataMissing)

	_, err = NewLimitTable([]models.NutrientLimit{{Condition: "x", Nutrient: ""}})
	assert.Error(t, err)

	_, err = NewLimitTable([]models.NutrientLimit{{
		Condition: "x", Nutrient: "Sugar",
		Limits: map[models.AgeBracket]string{"Seniors": "≤5"},
	}})
	assert.Error(t, err)
}

func TestLimitTable_Nutrients(t *testing.T) {
	table, err := NewLimitTable([]models.NutrientLimit{
		{Condition: "a", Nutrient: "Sugar"},
		{Condition: "b", Nutrient: "sugar"},
		{Condition: "b", Nutrient: "Salt"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sugar", "Salt"}, table.Nutrients())
	assert.Equal(t, []string{"a", "b"}, table.Conditions())
}
