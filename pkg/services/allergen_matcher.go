package services

import (
	"slices"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/reference"
)

// AllergenMatcher finds known allergens in a product's ingredient list.
type AllergenMatcher interface {
	Match(ingredients []string) []models.AllergenMatch
	// MatchText splits a comma separated ingredient text and matches it.
	MatchText(ingredients string) []models.AllergenMatch
}

type allergenMatcher struct {
	table  *reference.AllergenTable
	logger *zap.Logger
}

var _ AllergenMatcher = (*allergenMatcher)(nil)

// NewAllergenMatcher creates a matcher. A nil table matches nothing.
func NewAllergenMatcher(table *reference.AllergenTable, logger *zap.Logger) AllergenMatcher {
	return &allergenMatcher{
		table:  table,
		logger: logger.Named("allergens"),
	}
}

func (s *allergenMatcher) MatchText(ingredients string) []models.AllergenMatch {
	return s.Match(SplitIngredients(ingredients))
}

func (s *allergenMatcher) Match(ingredients []string) []models.AllergenMatch {
	matches := []models.AllergenMatch{}
	if s.table == nil {
		s.logger.Warn("Allergen table not loaded, skipping allergen matching")
		return matches
	}

	cleaned := make([]string, 0, len(ingredients))
	present := make(map[string]bool, len(ingredients))
	for _, ing := range ingredients {
		c := cleanIngredient(ing)
		if c == "" {
			continue
		}
		cleaned = append(cleaned, c)
		present[c] = true
	}
	if len(cleaned) == 0 {
		return matches
	}

	entries := s.table.Entries()
	matched := make(map[string]bool, len(entries))
	add := func(entry models.AllergenEntry, foundIn, confidence string) {
		matched[entry.Ingredient] = true
		matches = append(matches, models.AllergenMatch{
			Ingredient:        entry.Ingredient,
			HazardDescription: entry.HazardDescription,
			FoundIn:           foundIn,
			Confidence:        confidence,
			Action:            actionFor(entry.HazardDescription),
		})
	}

	for _, entry := range entries {
		if present[cleanIngredient(entry.Ingredient)] {
			add(entry, entry.Ingredient, models.ConfidenceHigh)
		}
	}

	allergenVariations := make([][]string, len(entries))
	for i, entry := range entries {
		allergenVariations[i] = s.variations(cleanIngredient(entry.Ingredient))
	}

	for _, ingredient := range cleaned {
		ingredientVariations := s.variations(ingredient)
		for i, entry := range entries {
			if matched[entry.Ingredient] {
				continue
			}
			allergen := cleanIngredient(entry.Ingredient)
			switch {
			case slices.Contains(allergenVariations[i], ingredient) || slices.Contains(ingredientVariations, allergen):
				add(entry, ingredient, models.ConfidenceHigh)
			case overlaps(allergenVariations[i], ingredient) || overlaps(ingredientVariations, allergen):
				add(entry, ingredient, models.ConfidenceMedium)
			}
		}
	}

	slices.SortStableFunc(matches, func(a, b models.AllergenMatch) int {
		return matchRank(a) - matchRank(b)
	})

	s.logger.Debug("Matched allergens",
		zap.Int("ingredients", len(cleaned)),
		zap.Int("matches", len(matches)))
	return matches
}

// variations expands a cleaned name with its singular and plural forms and the
// synonyms registered for any variation key it contains.
func (s *allergenMatcher) variations(name string) []string {
	out := []string{name}
	for _, v := range []string{inflection.Singular(name), inflection.Plural(name)} {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	for _, v := range s.table.Synonyms(name) {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func overlaps(variations []string, name string) bool {
	for _, v := range variations {
		if strings.Contains(name, v) || strings.Contains(v, name) {
			return true
		}
	}
	return false
}

func matchRank(m models.AllergenMatch) int {
	rank := 0
	if m.Action != models.ActionAvoid {
		rank += 2
	}
	if m.Confidence != models.ConfidenceHigh {
		rank++
	}
	return rank
}

func actionFor(hazard string) string {
	h := strings.ToLower(hazard)
	if strings.Contains(h, "severe") || strings.Contains(h, "anaphylaxis") {
		return models.ActionAvoid
	}
	return models.ActionCaution
}

func cleanIngredient(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", " ", "_", " ").Replace(s)
}

// SplitIngredients splits a comma separated ingredient text, dropping blank items.
func SplitIngredients(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
