package valuation

import (
	"github.com/arnadler/category-draft-coach/models"
)

// Evaluation is a roster snapshot: where everyone sits, what the roster
// totals to and how it stands against the league.
type Evaluation struct {
	Assignment
	Totals       Totals             `json:"totals"`
	ZScores      map[string]float64 `json:"z_scores"`
	FillFraction float64            `json:"fill_fraction"`
}

// Evaluate assigns players, aggregates their weighted stats and scores the
// result against baseline. Settings are expected to be normalized.
func Evaluate(players []*models.Player, settings models.LeagueSettings, baseline map[string]models.Distribution) Evaluation {
	assignment := Assign(players, settings.Roster)
	totals := Aggregate(assignment.Weighted(settings.BenchMultiplier), settings.Categories)

	fill := 0.0
	if n := len(assignment.Slots); n > 0 {
		fill = float64(assignment.Filled()) / float64(n)
	}

	return Evaluation{
		Assignment:   assignment,
		Totals:       totals,
		ZScores:      ZScores(settings.Categories, totals, baseline),
		FillFraction: fill,
	}
}

// TotalZ sums the z-scores across categories
func (e Evaluation) TotalZ() float64 {
	sum := 0.0
	for _, z := range e.ZScores {
		sum += z
	}
	return sum
}
