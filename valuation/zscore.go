package valuation

import (
	"github.com/arnadler/category-draft-coach/models"
)

// Ratio stabilization. Below the stable denominator a roster's ratio is
// blended with a prior of the league mean so a handful of at-bats or
// innings cannot produce an extreme z-score.
const (
	PriorAtBats      = 1000.0
	PriorPlateApps   = 1100.0
	PriorInnings     = 200.0
	StableAtBats     = 3000.0
	StablePlateApps  = 3400.0
	StableInnings    = 600.0
	fallbackStd      = 1.0
	fallbackRatioStd = 0.01
)

// Baseline resolves the (mean, std) pair for every enabled category:
// simulated distributions when present, else the configured targets.
func Baseline(settings models.LeagueSettings, dists map[string]models.Distribution) map[string]models.Distribution {
	out := make(map[string]models.Distribution, len(settings.Categories))
	for _, cat := range settings.Categories {
		if d, ok := dists[cat.Key]; ok {
			out[cat.Key] = floorStd(d, cat)
			continue
		}
		if d, ok := settings.Targets[cat.Key]; ok {
			out[cat.Key] = floorStd(d, cat)
			continue
		}
		if d, ok := models.DefaultTargets()[cat.Key]; ok {
			out[cat.Key] = floorStd(d, cat)
			continue
		}
		out[cat.Key] = floorStd(models.Distribution{}, cat)
	}
	return out
}

func floorStd(d models.Distribution, cat models.Category) models.Distribution {
	if d.Std > 0 {
		return d
	}
	if cat.IsRatio() {
		d.Std = fallbackRatioStd
	} else {
		d.Std = fallbackStd
	}
	return d
}

// ZScore expresses value as standard deviations from the mean, signed so
// that a positive score is ahead of the league in either direction.
func ZScore(cat models.Category, value float64, d models.Distribution) float64 {
	std := d.Std
	if std <= 0 {
		std = fallbackStd
	}
	if cat.LowerBetter() {
		return (d.Mean - value) / std
	}
	return (value - d.Mean) / std
}

// StabilizedValue returns the value fed into a ratio category's z-score.
// An empty denominator yields the mean; a stable denominator yields the raw
// ratio; anything between is blended toward the mean with a fixed prior.
// Counting categories pass through unchanged.
func StabilizedValue(cat models.Category, totals Totals, d models.Distribution) float64 {
	if !cat.IsRatio() {
		return totals.Value(cat.Key)
	}
	r := totals.Components[cat.Key]
	if r.Den <= 0 {
		return d.Mean
	}
	prior, stable := stabilization(cat.Key)
	if r.Den >= stable {
		return r.Value()
	}
	return (r.Num + d.Mean*prior) / (r.Den + prior)
}

func stabilization(key string) (prior, stable float64) {
	switch key {
	case models.CatOBP:
		return PriorPlateApps, StablePlateApps
	case models.CatERA, models.CatWHIP:
		return PriorInnings, StableInnings
	default:
		return PriorAtBats, StableAtBats
	}
}

// ZScores computes a stabilized z-score for every enabled category
func ZScores(categories []models.Category, totals Totals, baseline map[string]models.Distribution) map[string]float64 {
	out := make(map[string]float64, len(categories))
	for _, cat := range categories {
		d := baseline[cat.Key]
		out[cat.Key] = ZScore(cat, StabilizedValue(cat, totals, d), d)
	}
	return out
}
