// Package valuation turns a set of drafted players into category totals and
// league-relative z-scores. Everything here is pure: no I/O, no shared state,
// and no error returns. Missing stats default to zero and every ratio has a
// defined fallback for an empty denominator.
package valuation

import (
	"github.com/arnadler/category-draft-coach/models"
)

// WeightedPlayer is a player plus the share of their stats that counts
// toward team totals (1.0 for a starter, the bench multiplier for a reserve).
type WeightedPlayer struct {
	Player *models.Player
	Weight float64
}

// Ratio holds the summed numerator and denominator behind a ratio category.
// ERA's numerator is earned runs times nine so Value is always Num/Den.
type Ratio struct {
	Num float64 `json:"numerator"`
	Den float64 `json:"denominator"`
}

// Value returns Num/Den, or 0 for an empty denominator
func (r Ratio) Value() float64 {
	if r.Den <= 0 {
		return 0
	}
	return r.Num / r.Den
}

// Totals are a roster's category values plus the ratio components they came from
type Totals struct {
	Values     map[string]float64 `json:"values"`
	Components map[string]Ratio   `json:"components"`
}

// Value returns the total for a category key, 0 when absent
func (t Totals) Value(key string) float64 {
	return t.Values[key]
}

// Aggregate sums weighted projections into category totals. Counting
// categories add the matching stat over players of the category's role;
// ratio categories divide summed components and never average per-player rates.
func Aggregate(players []WeightedPlayer, categories []models.Category) Totals {
	totals := Totals{
		Values:     make(map[string]float64, len(categories)),
		Components: make(map[string]Ratio),
	}

	for _, cat := range categories {
		if cat.IsRatio() {
			var sum Ratio
			for _, wp := range players {
				if wp.Player == nil || wp.Weight == 0 || !wp.Player.HasRole(cat.Role) {
					continue
				}
				r := ratioComponents(cat.Key, wp.Player.Projection)
				sum.Num += r.Num * wp.Weight
				sum.Den += r.Den * wp.Weight
			}
			totals.Components[cat.Key] = sum
			totals.Values[cat.Key] = sum.Value()
			continue
		}

		var sum float64
		for _, wp := range players {
			if wp.Player == nil || !wp.Player.HasRole(cat.Role) {
				continue
			}
			sum += wp.Player.Projection.Get(cat.Key) * wp.Weight
		}
		totals.Values[cat.Key] = sum
	}

	return totals
}

// ratioComponents extracts one player's numerator and denominator for a
// ratio category, deriving missing components from a precomputed rate.
func ratioComponents(key string, p models.Projection) Ratio {
	switch key {
	case models.CatAVG:
		return Ratio{Num: hits(p), Den: p.Get(models.StatAB)}

	case models.CatOBP:
		den := p.Get(models.StatAB) + p.Get(models.StatBB) + p.Get(models.StatHBP) + p.Get(models.StatSF)
		if den == 0 {
			den = p.Get(models.StatPA)
		}
		if !p.Has(models.StatBB) && !p.Has(models.StatHBP) && p.Has(models.StatOBP) {
			return Ratio{Num: p.Get(models.StatOBP) * den, Den: den}
		}
		return Ratio{Num: hits(p) + p.Get(models.StatBB) + p.Get(models.StatHBP), Den: den}

	case models.CatERA:
		ip := p.Get(models.StatIP)
		er := p.Get(models.StatER)
		if !p.Has(models.StatER) && p.Has(models.StatERA) {
			er = p.Get(models.StatERA) * ip / 9
		}
		return Ratio{Num: er * 9, Den: ip}

	case models.CatWHIP:
		ip := p.Get(models.StatIP)
		baserunners := p.Get(models.StatBBA) + p.Get(models.StatHA)
		if !p.Has(models.StatBBA) && !p.Has(models.StatHA) && p.Has(models.StatWHIP) {
			baserunners = p.Get(models.StatWHIP) * ip
		}
		return Ratio{Num: baserunners, Den: ip}
	}
	return Ratio{}
}

func hits(p models.Projection) float64 {
	if !p.Has(models.StatH) && p.Has(models.StatAVG) {
		return p.Get(models.StatAVG) * p.Get(models.StatAB)
	}
	return p.Get(models.StatH)
}
