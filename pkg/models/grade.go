package models

// Grade is a Nutri-Score style letter grade.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Rank orders grades from best (0) to worst (4). Unknown grades rank after E.
func (g Grade) Rank() int {
	switch g {
	case GradeA:
		return 0
	case GradeB:
		return 1
	case GradeC:
		return 2
	case GradeD:
		return 3
	case GradeE:
		return 4
	}
	return 5
}

// GradeBreakdown carries the points behind a grade.
type GradeBreakdown struct {
	Grade             Grade               `json:"grade"`
	UnfavorablePoints int                 `json:"unfavorable_points"`
	FavorablePoints   int                 `json:"favorable_points"`
	FinalScore        int                 `json:"final_score"`
	Points            map[NutrientKey]int `json:"points"`
}

// NovaInfo describes a NOVA processing group.
type NovaInfo struct {
	Score              int    `json:"score"`
	Description        string `json:"description"`
	Explanation        string `json:"explanation"`
	MarkersExplanation string `json:"markers_explanation"`
	MarkersCount       int    `json:"markers_count"`
}
