// Package reference loads the immutable reference datasets: nutrient limits,
// allergens, additive descriptions and the meal model's disease labels.
package reference

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	limitsFile    = "data/nutrient_limits.yaml"
	allergensFile = "data/allergens.yaml"
	additivesFile = "data/additives.yaml"
	diseasesFile  = "data/diseases.yaml"
)

// Paths optionally overrides the embedded datasets with files on disk.
// Empty fields use the embedded copy.
type Paths struct {
	NutrientLimits string
	Allergens      string
	Additives      string
	Diseases       string
}

// Tables groups the loaded datasets. A nil table means that dataset failed to load.
type Tables struct {
	Limits    *LimitTable
	Allergens *AllergenTable
	Additives *AdditiveTable
	Diseases  []string
}

// Load reads every dataset. It always returns a Tables value; tables that could not be
// loaded are left nil and reported in the joined error so callers can degrade.
func Load(paths Paths, logger *zap.Logger) (*Tables, error) {
	logger = logger.Named("reference")
	tables := &Tables{}
	var errs []error

	if limits, err := loadLimits(paths.NutrientLimits); err != nil {
		errs = append(errs, err)
	} else {
		tables.Limits = limits
		logger.Info("Loaded nutrient limits",
			zap.Int("rows", limits.Len()),
			zap.Strings("conditions", limits.Conditions()))
	}

	if allergens, err := loadAllergens(paths.Allergens); err != nil {
		errs = append(errs, err)
	} else {
		tables.Allergens = allergens
		logger.Info("Loaded allergens", zap.Int("entries", len(allergens.entries)))
	}

	if additives, err := loadAdditives(paths.Additives); err != nil {
		errs = append(errs, err)
	} else {
		tables.Additives = additives
		logger.Info("Loaded additives", zap.Int("codes", len(additives.byCode)))
	}

	if diseases, err := loadDiseases(paths.Diseases); err != nil {
		errs = append(errs, err)
	} else {
		tables.Diseases = diseases
	}

	return tables, errors.Join(errs...)
}

func readSource(override, embeddedName string) ([]byte, error) {
	if override != "" {
		data, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", apperrors.ErrReferenceDataMissing, override, err)
		}
		return data, nil
	}
	data, err := embedded.ReadFile(embeddedName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read embedded %s: %v", apperrors.ErrReferenceDataMissing, embeddedName, err)
	}
	return data, nil
}

func loadLimits(override string) (*LimitTable, error) {
	data, err := readSource(override, limitsFile)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Limits []models.NutrientLimit `yaml:"limits"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse nutrient limits: %w", err)
	}
	return NewLimitTable(doc.Limits)
}

func loadAllergens(override string) (*AllergenTable, error) {
	data, err := readSource(override, allergensFile)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Allergens  []models.AllergenEntry `yaml:"allergens"`
		Variations map[string][]string    `yaml:"variations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse allergens: %w", err)
	}
	return NewAllergenTable(doc.Allergens, doc.Variations)
}

func loadAdditives(override string) (*AdditiveTable, error) {
	data, err := readSource(override, additivesFile)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Additives map[string]string `yaml:"additives"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse additives: %w", err)
	}
	return NewAdditiveTable(doc.Additives), nil
}

func loadDiseases(override string) ([]string, error) {
	data, err := readSource(override, diseasesFile)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Diseases []string `yaml:"diseases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse diseases: %w", err)
	}
	if len(doc.Diseases) == 0 {
		return nil, fmt.Errorf("%w: no disease labels", apperrors.ErrReferenceDataMissing)
	}
	return doc.Diseases, nil
}

// LimitTable holds nutrient limit rows grouped by condition, in file order.
type LimitTable struct {
	rows        []models.NutrientLimit
	byCondition map[string][]models.NutrientLimit
	conditions  []string
}

// NewLimitTable validates rows and indexes them by condition.
func NewLimitTable(rows []models.NutrientLimit) (*LimitTable, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: nutrient limit table is empty", apperrors.ErrReferenceDataMissing)
	}

	t := &LimitTable{byCondition: make(map[string][]models.NutrientLimit)}
	for i, row := range rows {
		row.Condition = strings.TrimSpace(row.Condition)
		row.Nutrient = strings.TrimSpace(row.Nutrient)
		if row.Condition == "" || row.Nutrient == "" {
			return nil, fmt.Errorf("nutrient limit row %d: condition and nutrient are required", i)
		}
		for bracket := range row.Limits {
			if !slices.Contains(models.AgeBrackets, bracket) {
				return nil, fmt.Errorf("nutrient limit row %d: unknown age bracket %q", i, bracket)
			}
		}
		if _, seen := t.byCondition[row.Condition]; !seen {
			t.conditions = append(t.conditions, row.Condition)
		}
		t.byCondition[row.Condition] = append(t.byCondition[row.Condition], row)
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// RowsFor returns the rows for a condition in table order. The slice must not be modified.
func (t *LimitTable) RowsFor(condition string) []models.NutrientLimit {
	return t.byCondition[condition]
}

// Conditions lists condition names in table order.
func (t *LimitTable) Conditions() []string {
	return slices.Clone(t.conditions)
}

// Nutrients returns the distinct nutrient names in table order.
func (t *LimitTable) Nutrients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.rows {
		name := strings.ToLower(row.Nutrient)
		if !seen[name] {
			seen[name] = true
			out = append(out, row.Nutrient)
		}
	}
	return out
}

// Len returns the number of rows.
func (t *LimitTable) Len() int {
	return len(t.rows)
}

// AllergenTable holds allergen rows and the synonym expansion used for fuzzy matching.
type AllergenTable struct {
	entries       []models.AllergenEntry
	variations    map[string][]string
	variationKeys []string
}

// NewAllergenTable validates and indexes allergen rows.
func NewAllergenTable(entries []models.AllergenEntry, variations map[string][]string) (*AllergenTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: allergen table is empty", apperrors.ErrReferenceDataMissing)
	}
	t := &AllergenTable{variations: make(map[string][]string, len(variations))}
	for _, e := range entries {
		if strings.TrimSpace(e.Ingredient) == "" {
			continue
		}
		t.entries = append(t.entries, e)
	}
	for key, values := range variations {
		k := strings.ToLower(strings.TrimSpace(key))
		t.variations[k] = slices.Clone(values)
		t.variationKeys = append(t.variationKeys, k)
	}
	slices.Sort(t.variationKeys)
	return t, nil
}

// Entries returns the allergen rows in table order. The slice must not be modified.
func (t *AllergenTable) Entries() []models.AllergenEntry {
	return t.entries
}

// Synonyms returns the synonyms registered for every variation key contained in text.
func (t *AllergenTable) Synonyms(text string) []string {
	var out []string
	for _, key := range t.variationKeys {
		if strings.Contains(text, key) {
			out = append(out, t.variations[key]...)
		}
	}
	return out
}

// AdditiveTable maps canonical E-codes to descriptions.
type AdditiveTable struct {
	byCode map[string]string
}

// NewAdditiveTable builds a table from code -> description pairs.
func NewAdditiveTable(descriptions map[string]string) *AdditiveTable {
	t := &AdditiveTable{byCode: make(map[string]string, len(descriptions))}
	for code, desc := range descriptions {
		t.byCode[strings.TrimSpace(code)] = desc
	}
	return t
}

// Describe returns the description for a canonical code such as "E322".
func (t *AdditiveTable) Describe(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	desc, ok := t.byCode[code]
	return desc, ok
}
