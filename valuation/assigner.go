package valuation

import (
	"sort"

	"github.com/arnadler/category-draft-coach/models"
)

// Slot is one concrete roster slot. Slots are rebuilt for every assignment
// and never shared.
type Slot struct {
	Name     string          `json:"name"`
	Kind     models.SlotKind `json:"kind"`
	Eligible []string        `json:"eligible"`
	Player   *models.Player  `json:"player,omitempty"`
	order    int
}

// Empty reports whether the slot is unoccupied
func (s Slot) Empty() bool {
	return s.Player == nil
}

// Accepts reports whether the player may occupy the slot
func (s Slot) Accepts(p *models.Player) bool {
	return p.EligibleFor(s.Eligible)
}

// Assignment is the result of placing players into slots
type Assignment struct {
	Slots      []Slot           `json:"slots"`
	Unassigned []*models.Player `json:"unassigned"`
}

// BuildSlots expands roster templates into empty slots in template order
func BuildSlots(templates []models.SlotTemplate) []Slot {
	var slots []Slot
	for _, t := range templates {
		for _, name := range t.SlotNames() {
			slots = append(slots, Slot{
				Name:     name,
				Kind:     t.Kind,
				Eligible: t.Eligible,
				order:    len(slots),
			})
		}
	}
	return slots
}

// Assign places players into slots greedily. Players go in order of
// (overall rank, ADP, player id); each takes the empty eligible slot with the
// lowest priority class, then the fewest eligible positions, then the
// earliest template position. This is a heuristic and not an optimal
// matching: a later player may be left out even though a swap would fit
// everyone. Downstream baselines depend on this exact bias.
func Assign(players []*models.Player, templates []models.SlotTemplate) Assignment {
	slots := BuildSlots(templates)

	ordered := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p != nil {
			ordered = append(ordered, p)
		}
	}
	SortByRank(ordered)

	seen := make(map[string]bool, len(ordered))
	var unassigned []*models.Player

	for _, p := range ordered {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		best := -1
		for i := range slots {
			if !slots[i].Empty() || !slots[i].Accepts(p) {
				continue
			}
			if best < 0 || slotBefore(slots[i], slots[best]) {
				best = i
			}
		}
		if best < 0 {
			unassigned = append(unassigned, p)
			continue
		}
		slots[best].Player = p
	}

	return Assignment{Slots: slots, Unassigned: unassigned}
}

func slotBefore(a, b Slot) bool {
	if a.Kind.Priority() != b.Kind.Priority() {
		return a.Kind.Priority() < b.Kind.Priority()
	}
	if len(a.Eligible) != len(b.Eligible) {
		return len(a.Eligible) < len(b.Eligible)
	}
	return a.order < b.order
}

// SortByRank orders players by (overall rank, ADP, player id) in place
func SortByRank(players []*models.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		ri, ai := players[i].RankKey()
		rj, aj := players[j].RankKey()
		if ri != rj {
			return ri < rj
		}
		if ai != aj {
			return ai < aj
		}
		return players[i].ID < players[j].ID
	})
}

// Weighted returns the assigned players with bench slots discounted
func (a Assignment) Weighted(benchMultiplier float64) []WeightedPlayer {
	out := make([]WeightedPlayer, 0, len(a.Slots))
	for _, s := range a.Slots {
		if s.Empty() {
			continue
		}
		w := 1.0
		if s.Kind == models.SlotBench {
			w = benchMultiplier
		}
		out = append(out, WeightedPlayer{Player: s.Player, Weight: w})
	}
	return out
}

// Filled returns the number of occupied slots
func (a Assignment) Filled() int {
	n := 0
	for _, s := range a.Slots {
		if !s.Empty() {
			n++
		}
	}
	return n
}

// OpenSlots returns the unoccupied slots in template order
func (a Assignment) OpenSlots() []Slot {
	var open []Slot
	for _, s := range a.Slots {
		if s.Empty() {
			open = append(open, s)
		}
	}
	return open
}
