package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arnadler/category-draft-coach/models"
)

// TestZScoreDirection tests the sign convention for both directions
func TestZScoreDirection(t *testing.T) {
	d := models.Distribution{Mean: 100, Std: 10}
	hr := models.KnownCategories[models.CatHR]
	era := models.KnownCategories[models.CatERA]

	assert.Equal(t, 1.0, ZScore(hr, 110, d))
	assert.Equal(t, -1.0, ZScore(era, 110, d))

	prev := math.Inf(1)
	for v := 90.0; v <= 110; v += 5 {
		z := ZScore(era, v, d)
		assert.Less(t, z, prev, "lower-is-better z must fall as value rises")
		prev = z
	}
	assert.Greater(t, ZScore(hr, 101, d), ZScore(hr, 100, d))
	assert.Equal(t, 10.0, ZScore(hr, 110, models.Distribution{Mean: 100}), "zero std is treated as 1")
}

// TestStabilizedValue tests the three denominator regimes
func TestStabilizedValue(t *testing.T) {
	avg := models.KnownCategories[models.CatAVG]
	d := models.Distribution{Mean: 0.262, Std: 0.006}

	tests := []struct {
		name  string
		ratio Ratio
		want  float64
	}{
		{"empty denominator uses mean", Ratio{}, 0.262},
		{"small sample blends toward mean", Ratio{Num: 150, Den: 500}, (150 + 0.262*PriorAtBats) / (500 + PriorAtBats)},
		{"stable sample is raw", Ratio{Num: 900, Den: 3000}, 0.300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := Totals{Components: map[string]Ratio{models.CatAVG: tt.ratio}}
			assert.InDelta(t, tt.want, StabilizedValue(avg, totals, d), 1e-12)
		})
	}

	hr := models.KnownCategories[models.CatHR]
	totals := Totals{Values: map[string]float64{models.CatHR: 42}}
	assert.Equal(t, 42.0, StabilizedValue(hr, totals, d), "counting stats pass through")
}

// TestZeroAtBatsUsesFallback covers a roster whose hitters have no at-bats
func TestZeroAtBatsUsesFallback(t *testing.T) {
	settings := models.DefaultSettings()
	players := []*models.Player{
		hitter("a", 1, []string{"C"}, models.Projection{models.StatHR: 10, models.StatAB: 0}),
		hitter("b", 2, []string{"SS"}, models.Projection{models.StatR: 20}),
	}

	eval := Evaluate(players, settings, Baseline(settings, nil))

	z := eval.ZScores[models.CatAVG]
	assert.False(t, math.IsNaN(z))
	assert.False(t, math.IsInf(z, 0))
	assert.Equal(t, 0.0, z)
	assert.Equal(t, 0.0, eval.Totals.Value(models.CatAVG))
}

func TestNoPitchersIsNotPerfectERA(t *testing.T) {
	settings := models.DefaultSettings()
	eval := Evaluate([]*models.Player{hitter("a", 1, []string{"C"}, nil)}, settings, Baseline(settings, nil))

	assert.Equal(t, 0.0, eval.ZScores[models.CatERA])
	assert.Equal(t, 0.0, eval.ZScores[models.CatWHIP])
	assert.Less(t, eval.ZScores[models.CatW], 0.0)
}

func TestBaseline(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Targets[models.CatSB] = models.Distribution{Mean: 100, Std: 0}

	b := Baseline(settings, map[string]models.Distribution{
		models.CatHR:  {Mean: 250, Std: 20},
		models.CatAVG: {Mean: 0.27, Std: 0},
	})

	assert.Equal(t, models.Distribution{Mean: 250, Std: 20}, b[models.CatHR], "simulated wins over targets")
	assert.Equal(t, models.Distribution{Mean: 0.27, Std: fallbackRatioStd}, b[models.CatAVG])
	assert.Equal(t, models.Distribution{Mean: 100, Std: fallbackStd}, b[models.CatSB])
	assert.Equal(t, models.DefaultTargets()[models.CatK], b[models.CatK])
	assert.Len(t, b, len(settings.Categories))
}
