package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnadler/category-draft-coach/models"
)

func bat(id string, positions []string, proj models.Projection) *models.Player {
	return &models.Player{
		ID:         id,
		Name:       id,
		Positions:  positions,
		Role:       models.RoleHitter,
		Projection: proj,
	}
}

func arm(id string, proj models.Projection) *models.Player {
	return &models.Player{
		ID:         id,
		Name:       id,
		Positions:  []string{"SP"},
		Role:       models.RolePitcher,
		Projection: proj,
	}
}

func slugger() models.Projection {
	return models.Projection{
		models.StatAB: 550, models.StatH: 150, models.StatHR: 30,
		models.StatR: 90, models.StatRBI: 95, models.StatSB: 8,
	}
}

func byID(recs []Recommendation) map[string]Recommendation {
	out := make(map[string]Recommendation, len(recs))
	for _, r := range recs {
		out[r.Player.ID] = r
	}
	return out
}

// TestCatcherScarcity tests that a catcher outscores an identical first baseman
func TestCatcherScarcity(t *testing.T) {
	recs := Recommend(Request{
		Available: []*models.Player{
			bat("first", []string{"1B"}, slugger()),
			bat("catcher", []string{"C"}, slugger()),
		},
		Settings: models.DefaultSettings(),
		Limit:    10,
	})
	require.Len(t, recs, 2)
	assert.Equal(t, "catcher", recs[0].Player.ID)

	got := byID(recs)
	assert.InDelta(t, got["first"].Breakdown.CategoryGain, got["catcher"].Breakdown.CategoryGain, 1e-9)
	assert.InDelta(t, 0.30, got["catcher"].TotalGain-got["first"].TotalGain, 1e-9)
	assert.InDelta(t, 0.40, got["catcher"].Breakdown.Scarcity, 1e-9)
	assert.InDelta(t, 0.10, got["first"].Breakdown.Scarcity, 1e-9)
	assert.Equal(t, "C", got["catcher"].SlotFit)
	assert.Equal(t, "1B", got["first"].SlotFit)
}

// TestEliteAndReach tests ADP-driven bonus and penalty at pick 5
func TestEliteAndReach(t *testing.T) {
	early := bat("early", []string{"1B"}, slugger())
	early.ADP = models.Float(5)
	late := bat("late", []string{"1B"}, slugger())
	late.ADP = models.Float(200)

	recs := Recommend(Request{
		Available:   []*models.Player{late, early},
		Settings:    models.DefaultSettings(),
		OverallPick: 5,
		Limit:       2,
	})
	require.Len(t, recs, 2)
	got := byID(recs)

	assert.Equal(t, "early", recs[0].Player.ID)
	assert.InDelta(t, 145.0/150*0.5, got["early"].Breakdown.Elite, 1e-9)
	assert.Zero(t, got["early"].Breakdown.Reach)
	assert.Zero(t, got["late"].Breakdown.Elite)
	assert.InDelta(t, -MaxReachPenalty, got["late"].Breakdown.Reach, 1e-9)

	diff := got["early"].TotalGain - got["late"].TotalGain
	assert.InDelta(t, 145.0/150*0.5+MaxReachPenalty, diff, 1e-9)
}

// TestRiskTolerance tests the gap between cautious and aggressive scoring
// of a volatile player with counting stats only
func TestRiskTolerance(t *testing.T) {
	proj := models.Projection{models.StatHR: 30, models.StatR: 100, models.StatRBI: 90, models.StatSB: 20}
	candidate := bat("volatile", []string{"OF"}, proj)
	candidate.Risk = models.Float(0.9)

	score := func(tolerance float64) Recommendation {
		recs := Recommend(Request{
			Available:     []*models.Player{candidate},
			Settings:      models.DefaultSettings(),
			RiskTolerance: tolerance,
			Limit:         1,
		})
		require.Len(t, recs, 1)
		return recs[0]
	}
	cautious := score(0)
	aggressive := score(1)

	// every hitting counting category sits far below the mean on an empty
	// roster, so each carries the maximum deficit weight
	weight := 1 + DeficitBoost*MaxDeficit
	unit := weight * (30.0/25 + 100.0/60 + 90.0/60 + 20.0/25)

	assert.InDelta(t, 0.748*unit, cautious.Breakdown.CategoryGain, 1e-6)
	assert.InDelta(t, 1.09*unit, aggressive.Breakdown.CategoryGain, 1e-6)
	assert.InDelta(t, -0.495, cautious.Breakdown.Risk, 1e-9)
	assert.InDelta(t, 0.108, aggressive.Breakdown.Risk, 1e-9)
	assert.InDelta(t, cautious.Breakdown.MultiCategory, aggressive.Breakdown.MultiCategory, 1e-9)

	assert.InDelta(t, 0.342*unit+0.603, aggressive.TotalGain-cautious.TotalGain, 1e-6)
}

func TestRecommendLimit(t *testing.T) {
	available := []*models.Player{
		bat("a", []string{"OF"}, slugger()),
		bat("b", []string{"OF"}, slugger()),
		bat("c", []string{"OF"}, slugger()),
	}

	zero := Recommend(Request{Available: available, Settings: models.DefaultSettings()})
	assert.NotNil(t, zero)
	assert.Empty(t, zero)

	two := Recommend(Request{Available: available, Settings: models.DefaultSettings(), Limit: 2})
	assert.Len(t, two, 2)
}

// TestRecommendTieBreak tests rank then id ordering for equal gains
func TestRecommendTieBreak(t *testing.T) {
	b := bat("b", []string{"OF"}, slugger())
	a := bat("a", []string{"OF"}, slugger())
	ranked := bat("z", []string{"OF"}, slugger())
	ranked.OverallRank = models.Float(40)

	recs := Recommend(Request{
		Available: []*models.Player{b, a, ranked},
		Settings:  models.DefaultSettings(),
		Limit:     5,
	})
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"z", "a", "b"}, []string{recs[0].Player.ID, recs[1].Player.ID, recs[2].Player.ID})
}

// TestRecommendSkips tests rostered, duplicate and unplaceable candidates
func TestRecommendSkips(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Roster = []models.SlotTemplate{
		{Name: "C", Eligible: []string{"C"}, Kind: models.SlotStarter},
		{Name: "OF", Eligible: []string{"OF"}, Kind: models.SlotStarter},
	}
	owned := bat("owned", []string{"OF"}, slugger())
	catcher := bat("catcher", []string{"C"}, slugger())

	recs := Recommend(Request{
		Available: []*models.Player{
			nil,
			owned,
			catcher,
			catcher,
			bat("outfield", []string{"OF"}, slugger()),
			arm("ace", models.Projection{models.StatIP: 190, models.StatK: 210}),
		},
		Roster:   []*models.Player{owned},
		Settings: settings,
		Limit:    10,
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "catcher", recs[0].Player.ID)
}

func TestRecommendFullRoster(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Roster = []models.SlotTemplate{
		{Name: "OF", Eligible: []string{"OF"}, Kind: models.SlotStarter},
	}

	recs := Recommend(Request{
		Available: []*models.Player{bat("c", []string{"C"}, slugger())},
		Roster:    []*models.Player{bat("o", []string{"OF"}, slugger())},
		Settings:  settings,
		Limit:     3,
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "No open slot", recs[0].SlotFit)
	assert.Zero(t, recs[0].Breakdown.CategoryGain)
	assert.Equal(t, "Minimal category impact.", recs[0].Explanation[:len("Minimal category impact.")])
}

func TestRecommendEmptyRosterConfig(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Roster = nil

	early := bat("early", []string{"OF"}, slugger())
	early.OverallRank = models.Float(1)
	recs := Recommend(Request{
		Available:   []*models.Player{early, bat("b", []string{"C"}, slugger())},
		Settings:    settings,
		OverallPick: 20,
		Limit:       5,
	})
	require.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommendCategoryImpacts(t *testing.T) {
	settings := models.DefaultSettings()
	recs := Recommend(Request{
		Available: []*models.Player{arm("ace", models.Projection{
			models.StatIP: 190, models.StatW: 15, models.StatK: 220,
			models.StatER: 60, models.StatHA: 150, models.StatBBA: 45, models.StatSV: 0,
		})},
		Settings: settings,
		Limit:    1,
	})
	require.Len(t, recs, 1)
	rec := recs[0]
	require.Len(t, rec.Categories, len(settings.Normalize().Categories))

	impacts := make(map[string]CategoryImpact)
	for _, imp := range rec.Categories {
		impacts[imp.Key] = imp
	}
	assert.InDelta(t, 220, impacts[models.CatK].RawDelta, 1e-9)
	assert.InDelta(t, 15.0/9, impacts[models.CatW].ZDelta, 1e-9)
	assert.Zero(t, impacts[models.CatHR].ZDelta)
	assert.Zero(t, impacts[models.CatSV].ZDelta)
	assert.Equal(t, "SP1", rec.SlotFit)
	assert.Contains(t, rec.Explanation, "Improves")
}
