package models

import (
	"fmt"
)

// Direction tells whether a bigger category total is better or worse
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// Category keys
const (
	CatR    = "R"
	CatHR   = "HR"
	CatRBI  = "RBI"
	CatSB   = "SB"
	CatAVG  = "AVG"
	CatOBP  = "OBP"
	CatW    = "W"
	CatSV   = "SV"
	CatK    = "K"
	CatERA  = "ERA"
	CatWHIP = "WHIP"
	CatQS   = "QS"
	CatHLD  = "HLD"
)

// Category defines a single scoring statistic
type Category struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Direction Direction `json:"direction"`
	Role      Role      `json:"role"`
}

// IsRatio reports whether the category is computed from summed components
func (c Category) IsRatio() bool {
	switch c.Key {
	case CatAVG, CatOBP, CatERA, CatWHIP:
		return true
	}
	return false
}

// withDefaults fills label, direction and role from the known category table
func (c Category) withDefaults() Category {
	known, ok := KnownCategories[c.Key]
	if c.Label == "" {
		c.Label = c.Key
		if ok {
			c.Label = known.Label
		}
	}
	if c.Direction == "" {
		c.Direction = HigherIsBetter
		if ok {
			c.Direction = known.Direction
		}
	}
	if c.Role == "" && ok {
		c.Role = known.Role
	}
	return c
}

// LowerBetter reports whether a smaller total ranks ahead
func (c Category) LowerBetter() bool {
	return c.Direction == LowerIsBetter
}

// SlotKind is the priority class a slot belongs to during assignment
type SlotKind string

const (
	SlotStarter SlotKind = "starter"
	SlotFlex    SlotKind = "flex"
	SlotBench   SlotKind = "bench"
)

// Priority returns the assignment priority of the kind, lower fills first
func (k SlotKind) Priority() int {
	switch k {
	case SlotFlex:
		return 2
	case SlotBench:
		return 3
	default:
		return 1
	}
}

// SlotTemplate describes one or more identical roster slots
type SlotTemplate struct {
	Name     string   `json:"name"`
	Eligible []string `json:"eligible"`
	Kind     SlotKind `json:"kind"`
	Count    int      `json:"count"`
}

// SlotNames expands the template into concrete slot names.
// A single slot keeps the bare name; repeated slots are numbered from 1.
func (t SlotTemplate) SlotNames() []string {
	n := t.Count
	if n <= 0 {
		n = 1
	}
	if n == 1 {
		return []string{t.Name}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", t.Name, i+1)
	}
	return names
}

// Size returns the number of slots the template produces
func (t SlotTemplate) Size() int {
	if t.Count <= 0 {
		return 1
	}
	return t.Count
}

// AllowsPitchersOnly reports whether every eligible position is a pitcher code
func (t SlotTemplate) AllowsPitchersOnly() bool {
	if len(t.Eligible) == 0 {
		return false
	}
	for _, pos := range t.Eligible {
		if !IsPitcherPosition(pos) {
			return false
		}
	}
	return true
}

// Distribution is a category's league (mean, std) pair, either simulated or a
// configured fallback target
type Distribution struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// LeagueSettings holds everything the engine needs to know about a league
type LeagueSettings struct {
	Teams                int                     `json:"teams"`
	Categories           []Category              `json:"categories"`
	Roster               []SlotTemplate          `json:"roster"`
	Targets              map[string]Distribution `json:"targets,omitempty"`
	BenchMultiplier      float64                 `json:"bench_multiplier"`
	CompetitiveThreshold float64                 `json:"competitive_threshold"`
}

const (
	MinTeams           = 2
	MaxBenchMultiplier = 0.9
)

// Normalize returns a copy with league bounds enforced and missing pieces defaulted
func (s LeagueSettings) Normalize() LeagueSettings {
	out := s
	if out.Teams < MinTeams {
		out.Teams = MinTeams
	}
	out.BenchMultiplier = Clamp(out.BenchMultiplier, 0, MaxBenchMultiplier)
	if len(out.Categories) == 0 {
		out.Categories = DefaultCategories()
	} else {
		cats := make([]Category, len(s.Categories))
		for i, c := range s.Categories {
			cats[i] = c.withDefaults()
		}
		out.Categories = cats
	}
	targets := DefaultTargets()
	for k, v := range s.Targets {
		targets[k] = v
	}
	out.Targets = targets
	return out
}


// KnownCategories lists every category the engine can compute
var KnownCategories = map[string]Category{
	CatR:    {Key: CatR, Label: "Runs", Direction: HigherIsBetter, Role: RoleHitter},
	CatHR:   {Key: CatHR, Label: "Home Runs", Direction: HigherIsBetter, Role: RoleHitter},
	CatRBI:  {Key: CatRBI, Label: "Runs Batted In", Direction: HigherIsBetter, Role: RoleHitter},
	CatSB:   {Key: CatSB, Label: "Stolen Bases", Direction: HigherIsBetter, Role: RoleHitter},
	CatAVG:  {Key: CatAVG, Label: "Batting Average", Direction: HigherIsBetter, Role: RoleHitter},
	CatOBP:  {Key: CatOBP, Label: "On-Base Percentage", Direction: HigherIsBetter, Role: RoleHitter},
	CatW:    {Key: CatW, Label: "Wins", Direction: HigherIsBetter, Role: RolePitcher},
	CatSV:   {Key: CatSV, Label: "Saves", Direction: HigherIsBetter, Role: RolePitcher},
	CatK:    {Key: CatK, Label: "Strikeouts", Direction: HigherIsBetter, Role: RolePitcher},
	CatERA:  {Key: CatERA, Label: "Earned Run Average", Direction: LowerIsBetter, Role: RolePitcher},
	CatWHIP: {Key: CatWHIP, Label: "WHIP", Direction: LowerIsBetter, Role: RolePitcher},
	CatQS:   {Key: CatQS, Label: "Quality Starts", Direction: HigherIsBetter, Role: RolePitcher},
	CatHLD:  {Key: CatHLD, Label: "Holds", Direction: HigherIsBetter, Role: RolePitcher},
}

// DefaultCategories returns the standard 5x5 category set
func DefaultCategories() []Category {
	keys := []string{CatR, CatHR, CatRBI, CatSB, CatAVG, CatW, CatSV, CatK, CatERA, CatWHIP}
	cats := make([]Category, 0, len(keys))
	for _, k := range keys {
		cats = append(cats, KnownCategories[k])
	}
	return cats
}

// DefaultRoster returns the standard mixed-league roster configuration
func DefaultRoster() []SlotTemplate {
	return []SlotTemplate{
		{Name: "C", Eligible: []string{"C"}, Kind: SlotStarter, Count: 1},
		{Name: "1B", Eligible: []string{"1B"}, Kind: SlotStarter, Count: 1},
		{Name: "2B", Eligible: []string{"2B"}, Kind: SlotStarter, Count: 1},
		{Name: "3B", Eligible: []string{"3B"}, Kind: SlotStarter, Count: 1},
		{Name: "SS", Eligible: []string{"SS"}, Kind: SlotStarter, Count: 1},
		{Name: "CI", Eligible: []string{"1B", "3B"}, Kind: SlotStarter, Count: 1},
		{Name: "MI", Eligible: []string{"2B", "SS"}, Kind: SlotStarter, Count: 1},
		{Name: "OF", Eligible: []string{"OF", "LF", "CF", "RF"}, Kind: SlotStarter, Count: 4},
		{Name: "UTIL", Eligible: []string{"C", "1B", "2B", "3B", "SS", "OF", "LF", "CF", "RF", "DH"}, Kind: SlotFlex, Count: 1},
		{Name: "SP", Eligible: []string{"SP"}, Kind: SlotStarter, Count: 5},
		{Name: "RP", Eligible: []string{"RP"}, Kind: SlotStarter, Count: 2},
		{Name: "P", Eligible: []string{"SP", "RP", "P"}, Kind: SlotFlex, Count: 2},
		{Name: "BN", Eligible: []string{"C", "1B", "2B", "3B", "SS", "OF", "LF", "CF", "RF", "DH", "SP", "RP", "P"}, Kind: SlotBench, Count: 5},
	}
}

// DefaultTargets returns fallback league means and spreads for a 12-team league
func DefaultTargets() map[string]Distribution {
	return map[string]Distribution{
		CatR:    {Mean: 850, Std: 60},
		CatHR:   {Mean: 240, Std: 25},
		CatRBI:  {Mean: 820, Std: 60},
		CatSB:   {Mean: 120, Std: 25},
		CatAVG:  {Mean: 0.262, Std: 0.006},
		CatOBP:  {Mean: 0.335, Std: 0.007},
		CatW:    {Mean: 85, Std: 9},
		CatSV:   {Mean: 60, Std: 20},
		CatK:    {Mean: 1350, Std: 110},
		CatERA:  {Mean: 3.85, Std: 0.25},
		CatWHIP: {Mean: 1.22, Std: 0.04},
		CatQS:   {Mean: 75, Std: 10},
		CatHLD:  {Mean: 45, Std: 15},
	}
}

// DefaultSettings returns a 12-team 5x5 league
func DefaultSettings() LeagueSettings {
	return LeagueSettings{
		Teams:                12,
		Categories:           DefaultCategories(),
		Roster:               DefaultRoster(),
		Targets:              DefaultTargets(),
		BenchMultiplier:      0.35,
		CompetitiveThreshold: 0.0,
	}
}
