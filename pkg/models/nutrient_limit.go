package models

import (
	"regexp"
	"strconv"
	"strings"
)

// AgeBracket selects the column of a nutrient limit row.
type AgeBracket string

const (
	AgeBracketToddler AgeBracket = "0-6 years"
	AgeBracketChild   AgeBracket = "7-12 years"
	AgeBracketTeen    AgeBracket = "13-18 years"
	AgeBracketAdult   AgeBracket = "Adults"
)

// Defaults applied when a stored profile lacks age or BMI.
const (
	DefaultProfileAge = 30
	DefaultProfileBMI = 22.0
)

// AgeBrackets lists brackets in ascending order.
var AgeBrackets = []AgeBracket{AgeBracketToddler, AgeBracketChild, AgeBracketTeen, AgeBracketAdult}

// AgeBracketFor returns the bracket for an age in years.
func AgeBracketFor(age int) AgeBracket {
	switch {
	case age <= 6:
		return AgeBracketToddler
	case age <= 12:
		return AgeBracketChild
	case age <= 18:
		return AgeBracketTeen
	default:
		return AgeBracketAdult
	}
}

// Comparison is the operator of a limit expression.
type Comparison string

const (
	CompareAtMost  Comparison = "≤"
	CompareLess    Comparison = "<"
	CompareAtLeast Comparison = "≥"
	CompareGreater Comparison = ">"
	CompareAvoid   Comparison = "avoid"
)

// LimitExpression is a parsed limit cell such as "≤15" or "avoid".
type LimitExpression struct {
	Op        Comparison `json:"op"`
	Threshold float64    `json:"threshold"`
}

var limitPattern = regexp.MustCompile(`(<=|>=|[≤≥<>])\s*(\d+\.?\d*)`)

// ParseLimitExpression parses a limit cell. The second return is false for blank or
// unrecognized cells, which are skipped by the evaluator.
func ParseLimitExpression(raw string) (LimitExpression, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return LimitExpression{}, false
	}
	if strings.Contains(strings.ToLower(s), "avoid") {
		return LimitExpression{Op: CompareAvoid}, true
	}

	m := limitPattern.FindStringSubmatch(s)
	if m == nil {
		return LimitExpression{}, false
	}
	threshold, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return LimitExpression{}, false
	}

	op := Comparison(m[1])
	switch op {
	case "<=":
		op = CompareAtMost
	case ">=":
		op = CompareAtLeast
	}
	return LimitExpression{Op: op, Threshold: threshold}, true
}

// IsAvoid reports whether the expression is the "avoid" directive.
func (e LimitExpression) IsAvoid() bool {
	return e.Op == CompareAvoid
}

// IsUpperBound reports whether the nutrient should stay low (≤ or <).
func (e LimitExpression) IsUpperBound() bool {
	return e.Op == CompareAtMost || e.Op == CompareLess
}

// IsLowerBound reports whether the nutrient should be high (≥ or >).
func (e LimitExpression) IsLowerBound() bool {
	return e.Op == CompareAtLeast || e.Op == CompareGreater
}

// Exceeds reports whether value breaks an upper bound.
func (e LimitExpression) Exceeds(value float64) bool {
	if !e.IsUpperBound() {
		return false
	}
	return value > e.Threshold
}

// String renders the expression back to its table form.
func (e LimitExpression) String() string {
	if e.IsAvoid() {
		return "avoid"
	}
	return string(e.Op) + strconv.FormatFloat(e.Threshold, 'f', -1, 64)
}

// NutrientLimit is one row of the nutrient limit table.
type NutrientLimit struct {
	Condition   string                `json:"condition" yaml:"condition"`
	Nutrient    string                `json:"nutrient" yaml:"nutrient"`
	Limits      map[AgeBracket]string `json:"limits" yaml:"limits"`
	StrictAvoid bool                  `json:"strict_avoid" yaml:"strict_avoid"`
}

// LimitFor returns the raw limit cell for a bracket.
func (l NutrientLimit) LimitFor(bracket AgeBracket) string {
	return l.Limits[bracket]
}
