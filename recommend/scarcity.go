package recommend

import (
	"github.com/arnadler/category-draft-coach/models"
	"github.com/arnadler/category-draft-coach/valuation"
)

// positionScarcity is the bonus for the scarcest position a player covers
var positionScarcity = map[string]float64{
	"C":  0.30,
	"SS": 0.15,
	"2B": 0.10,
	"MI": 0.10,
	"SP": 0.05,
}

const (
	dhOnlyScarcity  = -0.05
	soleFillerBonus = 0.1
	benchOnlyMalus  = -0.1
)

// ScarcityBonus scores a candidate's positional value against the open
// slots and the rest of the available pool.
func ScarcityBonus(candidate *models.Player, open []valuation.Slot, others []*models.Player) float64 {
	bonus := positionBonus(candidate.Positions)

	fits := 0
	benchFits := 0
	sole := false
	for _, slot := range open {
		if !slot.Accepts(candidate) {
			continue
		}
		fits++
		if slot.Kind == models.SlotBench {
			benchFits++
			continue
		}
		if slot.Kind == models.SlotStarter && !sole && !anyOtherFills(slot, candidate, others) {
			sole = true
		}
	}

	if sole {
		bonus += soleFillerBonus
	}
	if fits > 0 && fits == benchFits {
		bonus += benchOnlyMalus
	}
	return bonus
}

func positionBonus(positions []string) float64 {
	if len(positions) == 0 {
		return 0
	}

	dhOnly := true
	best := 0.0
	for _, pos := range positions {
		if pos != "DH" && pos != "UTIL" {
			dhOnly = false
		}
		if v := positionScarcity[pos]; v > best {
			best = v
		}
	}
	if dhOnly {
		return dhOnlyScarcity
	}
	return best
}

func anyOtherFills(slot valuation.Slot, candidate *models.Player, others []*models.Player) bool {
	for _, p := range others {
		if p.ID != candidate.ID && slot.Accepts(p) {
			return true
		}
	}
	return false
}

// SlotFit names the slot the candidate would take: the first open non-bench
// slot, else a bench spot, else none.
func SlotFit(candidate *models.Player, open []valuation.Slot) string {
	bench := false
	for _, slot := range open {
		if !slot.Accepts(candidate) {
			continue
		}
		if slot.Kind != models.SlotBench {
			return slot.Name
		}
		bench = true
	}
	if bench {
		return "Bench spot"
	}
	return "No open slot"
}
