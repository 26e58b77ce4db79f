package services

import (
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// tier awards points when a nutrient is strictly above threshold.
type tier struct {
	above  float64
	points int
}

type scoredNutrient struct {
	key   models.NutrientKey
	tiers []tier // highest threshold first
}

var unfavorableNutrients = []scoredNutrient{
	{models.NutrientEnergyKcal, []tier{{400, 2}, {200, 1}}},
	{models.NutrientSugars, []tier{{15, 3}, {9, 2}, {4.5, 1}}},
	{models.NutrientFat, []tier{{18, 3}, {10, 2}, {3, 1}}},
	{models.NutrientSaturatedFat, []tier{{6, 3}, {3, 2}, {1, 1}}},
	{models.NutrientSalt, []tier{{1.5, 3}, {0.8, 2}, {0.3, 1}}},
}

var favorableNutrients = []scoredNutrient{
	{models.NutrientProtein, []tier{{12, 3}, {6, 2}, {3, 1}}},
	{models.NutrientFiber, []tier{{7, 3}, {4, 2}, {2, 1}}},
}

func tierPoints(value float64, tiers []tier) int {
	for _, t := range tiers {
		if value > t.above {
			return t.points
		}
	}
	return 0
}

// GradeCalculator scores nutrient records and describes processing groups.
// Both operations are pure.
type GradeCalculator interface {
	Grade(record models.NutrientRecord) models.Grade
	Breakdown(record models.NutrientRecord) models.GradeBreakdown
	NovaScore(group int) models.NovaInfo
}

type gradeCalculator struct{}

var _ GradeCalculator = gradeCalculator{}

// NewGradeCalculator creates a GradeCalculator.
func NewGradeCalculator() GradeCalculator {
	return gradeCalculator{}
}

func (c gradeCalculator) Grade(record models.NutrientRecord) models.Grade {
	return c.Breakdown(record).Grade
}

func (gradeCalculator) Breakdown(record models.NutrientRecord) models.GradeBreakdown {
	b := models.GradeBreakdown{Points: make(map[models.NutrientKey]int)}
	for _, n := range unfavorableNutrients {
		p := tierPoints(record.Get(n.key), n.tiers)
		b.Points[n.key] = p
		b.UnfavorablePoints += p
	}
	for _, n := range favorableNutrients {
		p := tierPoints(record.Get(n.key), n.tiers)
		b.Points[n.key] = p
		b.FavorablePoints += p
	}
	b.FinalScore = b.UnfavorablePoints - b.FavorablePoints
	b.Grade = gradeForScore(b.FinalScore)
	return b
}

func gradeForScore(score int) models.Grade {
	switch {
	case score <= -2:
		return models.GradeA
	case score <= 0:
		return models.GradeB
	case score <= 3:
		return models.GradeC
	case score <= 6:
		return models.GradeD
	default:
		return models.GradeE
	}
}

var novaDescriptions = map[int]string{
	1: "Unprocessed or minimally processed foods",
	2: "Processed culinary ingredients",
	3: "Processed foods",
	4: "Ultra-processed foods",
}

var novaExplanations = map[int]string{
	1: "NOVA score 1 indicates unprocessed or minimally processed foods that are natural and have undergone minimal alterations.",
	2: "NOVA score 2 indicates processed culinary ingredients like oils, butter, and sugar that are derived from natural foods through processes like pressing or refining.",
	3: "NOVA score 3 indicates moderately processed foods with additives for preservation or to enhance taste, but still recognizable as derived from real foods.",
	4: "NOVA score 4 indicates ultra-processed foods with multiple ingredients including additives not typically used in home cooking, often designed to be convenient and highly palatable.",
}

const novaMarkersExplanation = "Ultra-processing markers are indicators of industrial processes applied to foods, such as additives, artificial flavors, hydrogenated oils, and preservatives."

// NovaScore describes a NOVA group. Groups outside 1-4 are treated as 4.
func (gradeCalculator) NovaScore(group int) models.NovaInfo {
	if group < 1 || group > 4 {
		group = models.DefaultNovaGroup
	}
	markers := 0
	switch group {
	case 3:
		markers = 1
	case 4:
		markers = 2
	}
	return models.NovaInfo{
		Score:              group,
		Description:        novaDescriptions[group],
		Explanation:        novaExplanations[group],
		MarkersExplanation: novaMarkersExplanation,
		MarkersCount:       markers,
	}
}
