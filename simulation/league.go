package simulation

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/arnadler/category-draft-coach/models"
	"github.com/arnadler/category-draft-coach/valuation"
)

// Options controls a league simulation
type Options struct {
	Iterations int     `json:"iterations"`
	Seed       uint64  `json:"seed"`
	NoiseScale float64 `json:"noise_scale"`
	Workers    int     `json:"workers,omitempty"`

	// Progress, when set, is called once per finished iteration from the
	// worker that ran it.
	Progress func() `json:"-"`
}

// Defaults used when an option is left at zero
const (
	DefaultIterations = 200
	DefaultSeed       = 20240301
	DefaultNoiseScale = 12.0
)

// DefaultOptions returns the standard simulation options
func DefaultOptions() Options {
	return Options{
		Iterations: DefaultIterations,
		Seed:       DefaultSeed,
		NoiseScale: DefaultNoiseScale,
		Workers:    1,
	}
}

func (o Options) withDefaults() Options {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.NoiseScale < 0 {
		o.NoiseScale = 0
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Workers > o.Iterations {
		o.Workers = o.Iterations
	}
	return o
}

// Result holds simulated per-category league distributions
type Result struct {
	Distributions map[string]models.Distribution `json:"distributions"`
	Iterations    int                            `json:"iterations"`
	Teams         int                            `json:"teams"`
	Samples       map[string][]float64           `json:"-"`
}

// rosterTargets is how many hitters and pitchers each simulated team drafts
type rosterTargets struct {
	hitters  int
	pitchers int
}

func (t rosterTargets) total() int {
	return t.hitters + t.pitchers
}

// targetsFor splits the roster configuration into hitter and pitcher counts.
// Slots that only accept pitcher codes count as pitcher slots; bench slots
// are split by the ratio of starting hitters to starting pitchers, rounding
// the hitter share and giving the remainder to pitchers.
func targetsFor(templates []models.SlotTemplate) rosterTargets {
	var hitters, pitchers, bench int
	for _, t := range templates {
		switch {
		case t.Kind == models.SlotBench:
			bench += t.Size()
		case t.AllowsPitchersOnly():
			pitchers += t.Size()
		default:
			hitters += t.Size()
		}
	}

	share := 0.5
	if starters := hitters + pitchers; starters > 0 {
		share = float64(hitters) / float64(starters)
	}
	hitterBench := int(math.Round(float64(bench) * share))

	return rosterTargets{
		hitters:  hitters + hitterBench,
		pitchers: pitchers + bench - hitterBench,
	}
}

// SimulateLeague estimates per-category (mean, std) of a fully built team by
// running repeated noisy snake drafts over the catalog. Each iteration draws
// from its own generator derived from (seed, iteration), so the result is
// bit-identical for identical inputs regardless of the worker count.
//
// An empty catalog or roster configuration yields an empty distribution set
// rather than an error; callers fall back to configured targets.
func SimulateLeague(ctx context.Context, players []*models.Player, settings models.LeagueSettings, opts Options) (*Result, error) {
	settings = settings.Normalize()
	opts = opts.withDefaults()

	pool := canonicalPool(players)
	targets := targetsFor(settings.Roster)

	result := &Result{
		Distributions: make(map[string]models.Distribution),
		Samples:       make(map[string][]float64),
		Iterations:    opts.Iterations,
		Teams:         settings.Teams,
	}
	if len(pool) == 0 || targets.total() == 0 {
		return result, nil
	}

	// samples[i][team][category]
	samples := make([][][]float64, opts.Iterations)
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := iterationRand(opts.Seed, i)
				samples[i] = simulateIteration(pool, settings, targets, &rng, opts.NoiseScale)
				if opts.Progress != nil {
					opts.Progress()
				}
			}
		}()
	}

feed:
	for i := 0; i < opts.Iterations; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for c, cat := range settings.Categories {
		values := make([]float64, 0, opts.Iterations*settings.Teams)
		for _, iteration := range samples {
			for _, team := range iteration {
				values = append(values, team[c])
			}
		}
		result.Samples[cat.Key] = values
		result.Distributions[cat.Key] = summarize(values)
	}

	return result, nil
}

// canonicalPool drops nil and duplicate players and orders the rest by id,
// so the caller's catalog order cannot change the outcome.
func canonicalPool(players []*models.Player) []*models.Player {
	seen := make(map[string]bool, len(players))
	pool := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		pool = append(pool, p)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool
}

// simulateIteration runs one noisy snake draft and returns each team's
// category values in settings.Categories order.
func simulateIteration(pool []*models.Player, settings models.LeagueSettings, targets rosterTargets, rng *Rand, noise float64) [][]float64 {
	order := draftOrder(pool, rng, noise)
	d := newDraftPool(order)

	teams := settings.Teams
	rosters := make([][]*models.Player, teams)
	hitters := make([]int, teams)
	pitchers := make([]int, teams)

	for round := 0; round < targets.total() && !d.empty(); round++ {
		for k := 0; k < teams && !d.empty(); k++ {
			team := k
			if round%2 == 1 {
				team = teams - 1 - k
			}

			p := d.take(pickRole(targets, hitters[team], pitchers[team]))
			rosters[team] = append(rosters[team], p)
			if p.IsPitcher() {
				pitchers[team]++
			} else {
				hitters[team]++
			}
		}
	}

	out := make([][]float64, teams)
	for team, roster := range rosters {
		assignment := valuation.Assign(roster, settings.Roster)
		totals := valuation.Aggregate(assignment.Weighted(settings.BenchMultiplier), settings.Categories)
		values := make([]float64, len(settings.Categories))
		for c, cat := range settings.Categories {
			values[c] = totals.Value(cat.Key)
		}
		out[team] = values
	}
	return out
}

// draftOrder sorts the pool by draft key plus Gaussian noise
func draftOrder(pool []*models.Player, rng *Rand, noise float64) []*models.Player {
	type keyed struct {
		player *models.Player
		key    float64
	}
	ks := make([]keyed, len(pool))
	for i, p := range pool {
		ks[i] = keyed{player: p, key: p.DraftKey() + rng.NormFloat64()*noise}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })

	order := make([]*models.Player, len(ks))
	for i, k := range ks {
		order[i] = k.player
	}
	return order
}

// pickRole decides which role a team drafts next. A team needing only one
// role takes it; otherwise the role with the larger remaining need fraction
// wins and ties go to hitters. The empty role means "best available".
func pickRole(targets rosterTargets, hitters, pitchers int) models.Role {
	needHitters := hitters < targets.hitters
	needPitchers := pitchers < targets.pitchers

	switch {
	case needHitters && !needPitchers:
		return models.RoleHitter
	case needPitchers && !needHitters:
		return models.RolePitcher
	}

	hitterFrac := needFraction(targets.hitters, hitters)
	pitcherFrac := needFraction(targets.pitchers, pitchers)
	if hitterFrac >= pitcherFrac {
		return models.RoleHitter
	}
	return models.RolePitcher
}

func needFraction(target, have int) float64 {
	if target <= 0 {
		return 0
	}
	return float64(target-have) / float64(target)
}

// draftPool is the ordered set of undrafted players with per-role cursors
type draftPool struct {
	order     []*models.Player
	taken     []bool
	remaining int
	cursor    map[models.Role]int
}

func newDraftPool(order []*models.Player) *draftPool {
	return &draftPool{
		order:     order,
		taken:     make([]bool, len(order)),
		remaining: len(order),
		cursor:    make(map[models.Role]int, 3),
	}
}

func (d *draftPool) empty() bool {
	return d.remaining == 0
}

// take removes and returns the first remaining player of role, falling back
// to the first remaining player overall when none of that role is left.
func (d *draftPool) take(role models.Role) *models.Player {
	i := d.first(role)
	if i < 0 {
		i = d.first("")
	}
	d.taken[i] = true
	d.remaining--
	return d.order[i]
}

func (d *draftPool) first(role models.Role) int {
	i := d.cursor[role]
	for i < len(d.order) && (d.taken[i] || !d.order[i].HasRole(role)) {
		i++
	}
	d.cursor[role] = i
	if i >= len(d.order) {
		return -1
	}
	return i
}

// summarize returns the sample mean and (n-1) standard deviation, with the
// deviation floored to 1 when it comes out as zero.
func summarize(values []float64) models.Distribution {
	n := len(values)
	if n == 0 {
		return models.Distribution{Mean: 0, Std: 1}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	std := 0.0
	if n > 1 {
		var sq float64
		for _, v := range values {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(n-1))
	}
	if !(std > 0) {
		std = 1
	}

	return models.Distribution{Mean: mean, Std: std}
}
