package recommend

import (
	"math"

	"github.com/arnadler/category-draft-coach/models"
)

// Category weighting
const (
	MaxDeficit       = 2.5
	DeficitBoost     = 0.55
	ComfortMargin    = 1.5
	ComfortDampening = 0.75
	MinWeight        = 0.4
	MaxWeight        = 2.8
)

// Risk handling
const (
	RiskFloorCut      = 0.28
	RiskCeilingBump   = 0.10
	RiskPenalty       = 0.55
	RiskUpsideBonus   = 0.12
	EarlyFillCutoff   = 0.3
	EarlyBonusScale   = 0.3
	HelpedZThreshold  = 0.02
	EliteADPHorizon   = 150.0
	EliteBonusScale   = 0.5
	ReachGrace        = 20.0
	ReachSpan         = 80.0
	ReachPenaltyScale = 0.2
	MaxReachPenalty   = 0.25
)

// CategoryWeights boosts categories below the competitive threshold in
// proportion to the deficit and dampens ones comfortably above it.
func CategoryWeights(z map[string]float64, categories []models.Category, threshold float64) map[string]float64 {
	weights := make(map[string]float64, len(categories))
	for _, cat := range categories {
		zi := z[cat.Key]
		w := 1.0
		switch {
		case zi < threshold:
			deficit := math.Min(threshold-zi, MaxDeficit)
			w = 1 + DeficitBoost*deficit
		case zi > threshold+ComfortMargin:
			w = ComfortDampening
		}
		weights[cat.Key] = models.Clamp(w, MinWeight, MaxWeight)
	}
	return weights
}

// RiskFactor interpolates between the floor and ceiling playing-time
// assumptions for a player with the given risk.
func RiskFactor(risk, tolerance float64) float64 {
	floor := 1 - RiskFloorCut*risk
	ceiling := 1 + RiskCeilingBump*risk
	return floor + (ceiling-floor)*tolerance
}

// RiskAdjusted returns a copy of p with role-appropriate counting stats
// scaled by RiskFactor. Rates are left alone.
func RiskAdjusted(p *models.Player, tolerance float64) *models.Player {
	factor := RiskFactor(p.RiskValue(), tolerance)
	if factor == 1 {
		return p
	}

	keys := models.HitterCountingStats
	if p.IsPitcher() {
		keys = models.PitcherCountingStats
	}
	adjusted := *p
	adjusted.Projection = p.Projection.Scaled(keys, factor)
	return &adjusted
}

// RiskPreference penalizes risky players for a cautious drafter and gives a
// small bonus to risky players for one chasing upside.
func RiskPreference(risk, tolerance float64) float64 {
	return -risk*(1-tolerance)*RiskPenalty + risk*tolerance*RiskUpsideBonus
}

// MultiCategoryBonus rewards broad contributions early in the draft
func MultiCategoryBonus(impacts []CategoryImpact, fill float64) float64 {
	if fill >= EarlyFillCutoff || len(impacts) == 0 {
		return 0
	}
	helped := 0
	for _, imp := range impacts {
		if imp.ZDelta >= HelpedZThreshold {
			helped++
		}
	}
	return float64(helped) / float64(len(impacts)) * EarlyBonusScale * (1 - fill)
}

// EliteBonus rewards players drafted near the top regardless of fit
func EliteBonus(p *models.Player) float64 {
	adp, ok := p.ADPValue()
	if !ok {
		return 0
	}
	return math.Max(0, (EliteADPHorizon-adp)/EliteADPHorizon) * EliteBonusScale
}

// ReachPenalty is a non-positive adjustment for taking a player well before
// their ADP. overallPick <= 0 means the pick is unknown.
func ReachPenalty(p *models.Player, overallPick int) float64 {
	adp, ok := p.ADPValue()
	if !ok || overallPick <= 0 {
		return 0
	}
	early := adp - float64(overallPick)
	if early <= ReachGrace {
		return 0
	}
	return -math.Min(MaxReachPenalty, (early-ReachGrace)/ReachSpan*ReachPenaltyScale)
}
