// Package recommend ranks undrafted players by how much they would move a
// roster's league-relative standing, adjusted for category need, position
// scarcity, risk appetite and draft position.
package recommend

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/metrics"
	"github.com/arnadler/category-draft-coach/models"
	"github.com/arnadler/category-draft-coach/valuation"
)

// Request is one scoring pass
type Request struct {
	Available     []*models.Player
	Roster        []*models.Player
	Settings      models.LeagueSettings
	Distributions map[string]models.Distribution // nil falls back to targets
	RiskTolerance float64
	OverallPick   int // 0 when unknown
	Limit         int
}

// CategoryImpact is a candidate's effect on one category
type CategoryImpact struct {
	Key       string  `json:"key"`
	Label     string  `json:"label"`
	Weight    float64 `json:"weight"`
	ZBefore   float64 `json:"z_before"`
	ZAfter    float64 `json:"z_after"`
	ZDelta    float64 `json:"z_delta"`
	RawBefore float64 `json:"raw_before"`
	RawAfter  float64 `json:"raw_after"`
	RawDelta  float64 `json:"raw_delta"`
}

// Breakdown lists the additive terms of a recommendation's total gain
type Breakdown struct {
	CategoryGain  float64 `json:"category_gain"`
	Scarcity      float64 `json:"scarcity"`
	MultiCategory float64 `json:"multi_category"`
	Risk          float64 `json:"risk"`
	Elite         float64 `json:"elite"`
	Reach         float64 `json:"reach"`
}

// Total sums the terms
func (b Breakdown) Total() float64 {
	return b.CategoryGain + b.Scarcity + b.MultiCategory + b.Risk + b.Elite + b.Reach
}

// Recommendation is a scored candidate
type Recommendation struct {
	Player      *models.Player   `json:"player"`
	TotalGain   float64          `json:"total_gain"`
	Breakdown   Breakdown        `json:"breakdown"`
	Categories  []CategoryImpact `json:"categories"`
	Explanation string           `json:"explanation"`
	SlotFit     string           `json:"slot_fit"`
}

// Recommend scores every available player against the current roster and
// returns the top Limit by total gain. Candidates already on the roster are
// ignored, and so is any candidate that fits none of the roster's open
// slots while open slots remain. A league without roster slots gets none.
func Recommend(req Request) []Recommendation {
	if req.Limit <= 0 {
		return []Recommendation{}
	}
	start := time.Now()

	settings := req.Settings.Normalize()
	tolerance := models.Clamp(req.RiskTolerance, 0, 1)
	baseline := valuation.Baseline(settings, req.Distributions)
	current := valuation.Evaluate(req.Roster, settings, baseline)
	if len(current.Slots) == 0 {
		return []Recommendation{}
	}
	weights := CategoryWeights(current.ZScores, settings.Categories, settings.CompetitiveThreshold)
	open := current.OpenSlots()

	owned := make(map[string]bool, len(req.Roster))
	for _, p := range req.Roster {
		if p != nil {
			owned[p.ID] = true
		}
	}
	candidates := make([]*models.Player, 0, len(req.Available))
	seen := make(map[string]bool, len(req.Available))
	for _, p := range req.Available {
		if p == nil || owned[p.ID] || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		candidates = append(candidates, p)
	}

	recs := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if len(open) > 0 && !fitsAny(c, open) {
			continue
		}
		recs = append(recs, score(c, req, settings, tolerance, baseline, current, weights, open, candidates))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.TotalGain != b.TotalGain {
			return a.TotalGain > b.TotalGain
		}
		ra, aa := a.Player.RankKey()
		rb, ab := b.Player.RankKey()
		if ra != rb {
			return ra < rb
		}
		if aa != ab {
			return aa < ab
		}
		return a.Player.ID < b.Player.ID
	})
	if len(recs) > req.Limit {
		recs = recs[:req.Limit]
	}

	metrics.CandidatesScored.Add(float64(len(candidates)))
	metrics.RecommendationLatency.Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"candidates": len(candidates),
		"returned":   len(recs),
		"roster":     len(req.Roster),
		"fill":       current.FillFraction,
		"duration":   time.Since(start),
	}).Debug("Scored recommendation candidates")

	return recs
}

func fitsAny(p *models.Player, open []valuation.Slot) bool {
	for _, slot := range open {
		if slot.Accepts(p) {
			return true
		}
	}
	return false
}

// score inserts the risk-adjusted candidate into the roster and measures
// every term of the marginal gain.
func score(
	candidate *models.Player,
	req Request,
	settings models.LeagueSettings,
	tolerance float64,
	baseline map[string]models.Distribution,
	current valuation.Evaluation,
	weights map[string]float64,
	open []valuation.Slot,
	pool []*models.Player,
) Recommendation {
	roster := make([]*models.Player, 0, len(req.Roster)+1)
	roster = append(roster, req.Roster...)
	roster = append(roster, RiskAdjusted(candidate, tolerance))
	after := valuation.Evaluate(roster, settings, baseline)

	impacts := make([]CategoryImpact, len(settings.Categories))
	var gain float64
	for i, cat := range settings.Categories {
		imp := CategoryImpact{
			Key:       cat.Key,
			Label:     cat.Label,
			Weight:    weights[cat.Key],
			ZBefore:   current.ZScores[cat.Key],
			ZAfter:    after.ZScores[cat.Key],
			RawBefore: current.Totals.Value(cat.Key),
			RawAfter:  after.Totals.Value(cat.Key),
		}
		imp.ZDelta = imp.ZAfter - imp.ZBefore
		imp.RawDelta = imp.RawAfter - imp.RawBefore
		gain += imp.Weight * imp.ZDelta
		impacts[i] = imp
	}

	risk := candidate.RiskValue()
	breakdown := Breakdown{
		CategoryGain:  gain,
		Scarcity:      ScarcityBonus(candidate, open, pool),
		MultiCategory: MultiCategoryBonus(impacts, current.FillFraction),
		Risk:          RiskPreference(risk, tolerance),
		Elite:         EliteBonus(candidate),
		Reach:         ReachPenalty(candidate, req.OverallPick),
	}

	return Recommendation{
		Player:      candidate,
		TotalGain:   breakdown.Total(),
		Breakdown:   breakdown,
		Categories:  impacts,
		Explanation: Explain(impacts, settings.CompetitiveThreshold),
		SlotFit:     SlotFit(candidate, open),
	}
}
