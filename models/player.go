package models

import (
	"fmt"
	"math"
)

// Role tags a player as a hitter or a pitcher
type Role string

const (
	RoleHitter  Role = "hitter"
	RolePitcher Role = "pitcher"
)

// RankSentinel sorts unranked players after every ranked one
const RankSentinel = 1e9

// Hitter projection keys
const (
	StatPA  = "PA"
	StatAB  = "AB"
	StatH   = "H"
	Stat2B  = "2B"
	Stat3B  = "3B"
	StatHR  = "HR"
	StatR   = "R"
	StatRBI = "RBI"
	StatSB  = "SB"
	StatBB  = "BB"
	StatHBP = "HBP"
	StatSF  = "SF"
	StatSO  = "SO"
	StatAVG = "AVG"
	StatOBP = "OBP"
)

// Pitcher projection keys
const (
	StatIP   = "IP"
	StatW    = "W"
	StatL    = "L"
	StatSV   = "SV"
	StatHLD  = "HLD"
	StatQS   = "QS"
	StatK    = "K"
	StatER   = "ER"
	StatHA   = "HA"  // hits allowed
	StatBBA  = "BBA" // walks allowed
	StatERA  = "ERA"
	StatWHIP = "WHIP"
)

// HitterCountingStats are the hitter fields that scale with playing time
var HitterCountingStats = []string{
	StatPA, StatAB, StatH, Stat2B, Stat3B, StatHR, StatR, StatRBI,
	StatSB, StatBB, StatHBP, StatSF, StatSO,
}

// PitcherCountingStats are the pitcher fields that scale with playing time
var PitcherCountingStats = []string{
	StatIP, StatW, StatL, StatSV, StatHLD, StatQS, StatK, StatER, StatHA, StatBBA,
}

// Projection is a sparse set of projected stats keyed by stat code.
// A missing key reads as zero.
type Projection map[string]float64

// Get returns the projected value for key, or 0 when absent
func (p Projection) Get(key string) float64 {
	if p == nil {
		return 0
	}
	v, ok := p[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Has reports whether the projection carries a usable value for key
func (p Projection) Has(key string) bool {
	if p == nil {
		return false
	}
	v, ok := p[key]
	return ok && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Scaled returns a copy with the given keys multiplied by factor
func (p Projection) Scaled(keys []string, factor float64) Projection {
	out := make(Projection, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		if v, ok := out[k]; ok {
			out[k] = v * factor
		}
	}
	return out
}

// Player represents a draftable player and their projection
type Player struct {
	ID          string     `json:"player_id"`
	Name        string     `json:"name"`
	Team        string     `json:"team"`
	Positions   []string   `json:"positions"`
	Role        Role       `json:"role"`
	Projection  Projection `json:"projection"`
	ADP         *float64   `json:"adp,omitempty"`          // average draft position, lower = earlier
	OverallRank *float64   `json:"overall_rank,omitempty"` // lower = better
	Risk        *float64   `json:"risk,omitempty"`         // 0 (safe) to 1 (volatile)
}

// IsPitcher reports whether the player is tagged as a pitcher
func (p *Player) IsPitcher() bool {
	return p.Role == RolePitcher
}

// HasRole reports whether the player contributes to categories of role r
func (p *Player) HasRole(r Role) bool {
	if r == "" {
		return true
	}
	return p.Role == r
}

// RankKey returns the (overall rank, ADP) pair used for rank-quality ordering
func (p *Player) RankKey() (float64, float64) {
	rank, adp := RankSentinel, RankSentinel
	if p.OverallRank != nil && !math.IsNaN(*p.OverallRank) {
		rank = *p.OverallRank
	}
	if p.ADP != nil && !math.IsNaN(*p.ADP) {
		adp = *p.ADP
	}
	return rank, adp
}

// DraftKey collapses RankKey into one scalar: rank, else ADP, else the sentinel
func (p *Player) DraftKey() float64 {
	rank, adp := p.RankKey()
	if rank < RankSentinel {
		return rank
	}
	return adp
}

// RiskValue returns the player's risk clamped to [0,1]; missing risk is 0
func (p *Player) RiskValue() float64 {
	if p.Risk == nil || math.IsNaN(*p.Risk) {
		return 0
	}
	return Clamp(*p.Risk, 0, 1)
}

// ADPValue returns the ADP and whether one was supplied
func (p *Player) ADPValue() (float64, bool) {
	if p.ADP == nil || math.IsNaN(*p.ADP) {
		return 0, false
	}
	return *p.ADP, true
}

// EligibleFor reports whether any of the player's positions appear in eligible
func (p *Player) EligibleFor(eligible []string) bool {
	for _, pos := range p.Positions {
		for _, e := range eligible {
			if pos == e {
				return true
			}
		}
	}
	return false
}

// Validate checks the catalog invariants for a player record
func (p *Player) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("player %q has no id", p.Name)
	}
	if len(p.Positions) == 0 {
		return fmt.Errorf("player %s has no positions", p.ID)
	}
	if p.Role != RoleHitter && p.Role != RolePitcher {
		return fmt.Errorf("player %s has unknown role %q", p.ID, p.Role)
	}
	if want := RoleForPositions(p.Positions); want != p.Role {
		return fmt.Errorf("player %s role %s inconsistent with positions %v", p.ID, p.Role, p.Positions)
	}
	if p.Risk != nil && (*p.Risk < 0 || *p.Risk > 1 || math.IsNaN(*p.Risk)) {
		return fmt.Errorf("player %s risk %v outside [0,1]", p.ID, *p.Risk)
	}
	for stat, v := range p.Projection {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("player %s projection %s is not finite", p.ID, stat)
		}
	}
	return nil
}

// IsPitcherPosition reports whether pos is a pitcher-only position code
func IsPitcherPosition(pos string) bool {
	switch pos {
	case "SP", "RP", "P":
		return true
	default:
		return false
	}
}

// RoleForPositions derives the role implied by a position set.
// Pitcher-only codes imply a pitcher; anything else is a hitter.
func RoleForPositions(positions []string) Role {
	if len(positions) == 0 {
		return RoleHitter
	}
	for _, pos := range positions {
		if !IsPitcherPosition(pos) {
			return RoleHitter
		}
	}
	return RolePitcher
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Float returns a pointer to v, handy for optional fields
func Float(v float64) *float64 {
	return &v
}
