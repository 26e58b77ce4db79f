package models

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/jsonutil"
)

// NutrientKey identifies a nutrient in a NutrientRecord. Values are per 100 g of product.
type NutrientKey string

// Canonical nutrients, present on every reconciled record.
const (
	NutrientEnergyKcal    NutrientKey = "energy_kcal"
	NutrientFat           NutrientKey = "fat"
	NutrientSaturatedFat  NutrientKey = "saturated_fat"
	NutrientCarbohydrates NutrientKey = "carbohydrates"
	NutrientSugars        NutrientKey = "sugars"
	NutrientFiber         NutrientKey = "fiber"
	NutrientProtein       NutrientKey = "protein"
	NutrientSalt          NutrientKey = "salt"
)

// Dataset-defined nutrients referenced by the nutrient limit table.
const (
	NutrientSodium               NutrientKey = "sodium"
	NutrientCholesterol          NutrientKey = "cholesterol"
	NutrientTransFat             NutrientKey = "trans_fat"
	NutrientAddedSugars          NutrientKey = "added_sugars"
	NutrientArtificialSweeteners NutrientKey = "artificial_sweeteners"
	NutrientCaffeine             NutrientKey = "caffeine"
	NutrientGlycemicIndex        NutrientKey = "glycemic_index"
	NutrientPotassium            NutrientKey = "potassium"
	NutrientCalcium              NutrientKey = "calcium"
	NutrientIron                 NutrientKey = "iron"
	NutrientMagnesium            NutrientKey = "magnesium"
	NutrientZinc                 NutrientKey = "zinc"
	NutrientVitaminA             NutrientKey = "vitamin_a"
	NutrientVitaminC             NutrientKey = "vitamin_c"
	NutrientVitaminD             NutrientKey = "vitamin_d"
	NutrientVitaminB12           NutrientKey = "vitamin_b12"
	NutrientFolate               NutrientKey = "folate"
	NutrientOmega3               NutrientKey = "omega_3"
)

// CanonicalNutrients lists the eight keys read from labels and the product database.
var CanonicalNutrients = []NutrientKey{
	NutrientEnergyKcal,
	NutrientFat,
	NutrientSaturatedFat,
	NutrientCarbohydrates,
	NutrientSugars,
	NutrientFiber,
	NutrientProtein,
	NutrientSalt,
}

var knownNutrients = map[NutrientKey]bool{}

func init() {
	for _, k := range CanonicalNutrients {
		knownNutrients[k] = true
	}
	for _, k := range []NutrientKey{
		NutrientSodium, NutrientCholesterol, NutrientTransFat, NutrientAddedSugars,
		NutrientArtificialSweeteners, NutrientCaffeine, NutrientGlycemicIndex,
		NutrientPotassium, NutrientCalcium, NutrientIron, NutrientMagnesium, NutrientZinc,
		NutrientVitaminA, NutrientVitaminC, NutrientVitaminD, NutrientVitaminB12,
		NutrientFolate, NutrientOmega3,
	} {
		knownNutrients[k] = true
	}
}

// nutrientAliases maps label and form spellings onto keys.
var nutrientAliases = map[string]NutrientKey{
	"energy":               NutrientEnergyKcal,
	"energy_kcal":          NutrientEnergyKcal,
	"energy_kcal_100g":     NutrientEnergyKcal,
	"calories":             NutrientEnergyKcal,
	"kcal":                 NutrientEnergyKcal,
	"total_fat":            NutrientFat,
	"saturates":            NutrientSaturatedFat,
	"saturated_fats":       NutrientSaturatedFat,
	"carbs":                NutrientCarbohydrates,
	"carbohydrate":         NutrientCarbohydrates,
	"total_carbohydrate":   NutrientCarbohydrates,
	"sugar":                NutrientSugars,
	"total_sugars":         NutrientSugars,
	"fibre":                NutrientFiber,
	"dietary_fiber":        NutrientFiber,
	"dietary_fibre":        NutrientFiber,
	"proteins":             NutrientProtein,
	"trans_fats":           NutrientTransFat,
	"added_sugar":          NutrientAddedSugars,
	"sweeteners":           NutrientArtificialSweeteners,
	"artificial_sweetener": NutrientArtificialSweeteners,
	"glycemic_load":        NutrientGlycemicIndex,
	"folic_acid":           NutrientFolate,
	"omega3":               NutrientOmega3,
}

// ParseNutrientKey normalizes a free-form nutrient name ("Saturated Fat", "fibre")
// to a known key. Unknown names return apperrors.ErrUnknownNutrient.
func ParseNutrientKey(name string) (NutrientKey, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if knownNutrients[NutrientKey(norm)] {
		return NutrientKey(norm), nil
	}
	if key, ok := nutrientAliases[norm]; ok {
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownNutrient, name)
}

// IsKnown reports whether the key belongs to the nutrient enumeration.
func (k NutrientKey) IsKnown() bool {
	return knownNutrients[k]
}

// KnownNutrientKeys returns every key of the enumeration in sorted order.
func KnownNutrientKeys() []NutrientKey {
	keys := make([]NutrientKey, 0, len(knownNutrients))
	for k := range knownNutrients {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Label returns a human readable name, e.g. "saturated fat".
func (k NutrientKey) Label() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// NutrientRecord is a bag of non-negative per-100g nutrient amounts.
// A missing key means "not observed"; Get reads it as 0.
type NutrientRecord struct {
	values map[NutrientKey]float64
}

// NewNutrientRecord returns an empty record.
func NewNutrientRecord() NutrientRecord {
	return NutrientRecord{values: make(map[NutrientKey]float64)}
}

// Set stores a value after validating the key and the amount.
func (r *NutrientRecord) Set(key NutrientKey, value float64) error {
	if !key.IsKnown() {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownNutrient, key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidNutrientValue, key)
	}
	if value < 0 {
		return fmt.Errorf("%w: %s=%v", apperrors.ErrNegativeNutrient, key, value)
	}
	if r.values == nil {
		r.values = make(map[NutrientKey]float64)
	}
	r.values[key] = value
	return nil
}

// Get returns the stored value, or 0 when the nutrient was not observed.
func (r NutrientRecord) Get(key NutrientKey) float64 {
	return r.values[key]
}

// Lookup returns the stored value and whether it was present.
func (r NutrientRecord) Lookup(key NutrientKey) (float64, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether the nutrient was observed.
func (r NutrientRecord) Has(key NutrientKey) bool {
	_, ok := r.values[key]
	return ok
}

// Len returns the number of observed nutrients.
func (r NutrientRecord) Len() int {
	return len(r.values)
}

// IsEmpty reports whether nothing was observed.
func (r NutrientRecord) IsEmpty() bool {
	return len(r.values) == 0
}

// HasPositive reports whether at least one nutrient has a value above zero.
func (r NutrientRecord) HasPositive() bool {
	for _, v := range r.values {
		if v > 0 {
			return true
		}
	}
	return false
}

// Keys returns observed keys in sorted order.
func (r NutrientRecord) Keys() []NutrientKey {
	keys := make([]NutrientKey, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns an independent copy.
func (r NutrientRecord) Clone() NutrientRecord {
	out := NewNutrientRecord()
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether both records hold the same keys and values.
func (r NutrientRecord) Equal(other NutrientRecord) bool {
	if len(r.values) != len(other.values) {
		return false
	}
	for k, v := range r.values {
		ov, ok := other.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as {"sugars": 12.5, ...}.
func (r NutrientRecord) MarshalJSON() ([]byte, error) {
	if r.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.values)
}

// UnmarshalJSON decodes a JSON object and validates every entry.
// Values may be numbers or numeric strings.
func (r *NutrientRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse nutrients: %w", err)
	}

	values := make(map[string]float64, len(raw))
	for name, value := range raw {
		f, ok := jsonutil.FlexibleFloatValue(value)
		if !ok {
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidNutrientValue, name)
		}
		values[name] = f
	}
	out, err := ParseNutrientRecord(values)
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// ParseNutrientRecord validates a loosely typed nutrient map at the ingestion boundary.
func ParseNutrientRecord(values map[string]float64) (NutrientRecord, error) {
	out := NewNutrientRecord()
	for name, value := range values {
		key, err := ParseNutrientKey(name)
		if err != nil {
			return NutrientRecord{}, err
		}
		if err := out.Set(key, value); err != nil {
			return NutrientRecord{}, err
		}
	}
	return out, nil
}

// ParseManualEntry validates a human-entered nutrition form. Blank fields are skipped,
// commas are accepted as decimal separators, and at least one value is required.
func ParseManualEntry(form map[string]string) (NutrientRecord, error) {
	out := NewNutrientRecord()
	for name, raw := range form {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		key, err := ParseNutrientKey(name)
		if err != nil {
			return NutrientRecord{}, err
		}
		v, ok := jsonutil.ParseDecimal(raw)
		if !ok {
			return NutrientRecord{}, fmt.Errorf("%w: %s=%q", apperrors.ErrInvalidNutrientValue, name, raw)
		}
		if err := out.Set(key, v); err != nil {
			return NutrientRecord{}, err
		}
	}
	if out.IsEmpty() {
		return NutrientRecord{}, apperrors.ErrEmptyNutrients
	}
	return out, nil
}
