// Package simulation estimates league-wide category distributions by
// simulating full snake drafts, and runs those simulations in the background
// so scoring never waits on them.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/metrics"
	"github.com/arnadler/category-draft-coach/models"
)

var (
	ErrRunNotFound     = errors.New("simulation run not found")
	ErrNoDistributions = errors.New("no distributions available")
)

// Run statuses
const (
	StatusPending    = "pending"
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusSuperseded = "superseded"
	StatusFailed     = "failed"
)

// Snapshot is a completed set of distributions and the inputs it belongs to
type Snapshot struct {
	RunID         string                         `json:"run_id"`
	Fingerprint   string                         `json:"fingerprint"`
	Distributions map[string]models.Distribution `json:"distributions"`
	Iterations    int                            `json:"iterations"`
	Teams         int                            `json:"teams"`
	Seed          uint64                         `json:"seed"`
	CompletedAt   time.Time                      `json:"completed_at"`
}

// RunStatus tracks the progress of a simulation run
type RunStatus struct {
	RunID               string     `json:"run_id"`
	Fingerprint         string     `json:"fingerprint"`
	Status              string     `json:"status"`
	Iterations          int        `json:"iterations"`
	CompletedIterations int        `json:"completed_iterations"`
	Progress            float64    `json:"progress"`
	Error               string     `json:"error,omitempty"`
	StartTime           time.Time  `json:"start_time"`
	CompletedTime       *time.Time `json:"completed_time,omitempty"`
}

// Finished reports whether the run has reached a terminal status
func (s RunStatus) Finished() bool {
	switch s.Status {
	case StatusCompleted, StatusSuperseded, StatusFailed:
		return true
	}
	return false
}

type run struct {
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}

	players  []*models.Player
	settings models.LeagueSettings
	opts     Options
}

// Store persists completed snapshots
type Store interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadLatest(ctx context.Context, fingerprint string) (*Snapshot, error)
}

// Engine schedules league simulations off the request path. Only the newest
// run matters: starting a run cancels any older in-flight run, whose result
// is discarded.
type Engine struct {
	store    Store
	cache    Cache
	workers  int
	defaults Options

	mu      sync.RWMutex
	runs    map[string]*run
	current string
	latest  *Snapshot
}

// NewEngine creates a simulation engine. store and cache may be nil.
func NewEngine(store Store, cache Cache, workers int, defaults Options) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		store:    store,
		cache:    cache,
		workers:  workers,
		defaults: defaults,
		runs:     make(map[string]*run),
	}
}

// Options fills zero fields of opts from the engine defaults
func (e *Engine) Options(opts Options) Options {
	if opts.Iterations <= 0 {
		opts.Iterations = e.defaults.Iterations
	}
	if opts.Seed == 0 {
		opts.Seed = e.defaults.Seed
	}
	if opts.NoiseScale == 0 {
		opts.NoiseScale = e.defaults.NoiseScale
	}
	return e.resolve(opts)
}

func (e *Engine) resolve(opts Options) Options {
	if opts.Workers <= 0 {
		opts.Workers = e.workers
	}
	return opts.withDefaults()
}

// Recompute starts a background simulation for (players, settings) and
// returns its run id. Zero fields of opts take the engine defaults. Any run
// still in flight is superseded.
func (e *Engine) Recompute(players []*models.Player, settings models.LeagueSettings, opts Options) string {
	return e.Submit(players, settings, e.Options(opts))
}

// Submit is Recompute with opts taken as given, so a zero Seed or
// NoiseScale is simulated as zero.
func (e *Engine) Submit(players []*models.Player, settings models.LeagueSettings, opts Options) string {
	r, ctx := e.newRun(players, settings, e.resolve(opts))

	e.mu.Lock()
	e.startLocked(r)
	e.mu.Unlock()

	go e.runSimulation(ctx, r)
	return r.status.RunID
}

func (e *Engine) newRun(players []*models.Player, settings models.LeagueSettings, opts Options) (*run, context.Context) {
	settings = settings.Normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &run{
		status: RunStatus{
			RunID:       uuid.New().String(),
			Fingerprint: Fingerprint(players, settings, opts),
			Status:      StatusPending,
			Iterations:  opts.Iterations,
			StartTime:   time.Now(),
		},
		cancel:   cancel,
		done:     make(chan struct{}),
		players:  players,
		settings: settings,
		opts:     opts,
	}, ctx
}

// startLocked makes r the current run. e.mu must be held.
func (e *Engine) startLocked(r *run) {
	if prev, ok := e.runs[e.current]; ok && !prev.status.Finished() {
		prev.cancel()
	}
	e.runs[r.status.RunID] = r
	e.current = r.status.RunID
}

// Pool returns the player pool of the current run, or nil before any run
func (e *Engine) Pool() []*models.Player {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if r, ok := e.runs[e.current]; ok {
		return r.players
	}
	return nil
}

// runSimulation executes a run and publishes its result unless superseded
func (e *Engine) runSimulation(ctx context.Context, r *run) {
	defer close(r.done)
	defer r.cancel()

	players, settings, opts := r.players, r.settings, r.opts
	runID := r.status.RunID
	fingerprint := r.status.Fingerprint
	logger := log.WithFields(log.Fields{
		"run_id":     runID,
		"iterations": opts.Iterations,
		"players":    len(players),
		"teams":      settings.Teams,
	})

	if e.cache != nil {
		if snap, ok := e.cache.Get(ctx, fingerprint); ok {
			logger.Debug("Serving simulation from cache")
			cached := *snap
			cached.RunID = runID
			e.finish(r, &cached, nil)
			return
		}
	}

	e.setStatus(r, StatusRunning)
	metrics.ActiveSimulations.Inc()
	defer metrics.ActiveSimulations.Dec()
	logger.Info("Simulation run started")

	start := time.Now()
	opts.Progress = func() { e.updateProgress(r) }
	result, err := SimulateLeague(ctx, players, settings, opts)
	if err != nil {
		e.finish(r, nil, err)
		return
	}

	snap := &Snapshot{
		RunID:         runID,
		Fingerprint:   fingerprint,
		Distributions: result.Distributions,
		Iterations:    result.Iterations,
		Teams:         result.Teams,
		Seed:          opts.Seed,
		CompletedAt:   time.Now().UTC(),
	}
	if !e.finish(r, snap, nil) {
		return
	}
	metrics.SimulationDuration.Observe(time.Since(start).Seconds())
	logger.WithField("duration", time.Since(start)).Info("Simulation run completed")

	if e.cache != nil {
		e.cache.Set(context.Background(), snap)
	}
	if e.store != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.store.SaveSnapshot(storeCtx, snap); err != nil {
			logger.WithError(err).Warn("Failed to persist distributions")
		}
	}
}

// finish records the terminal status of r. It returns true only when snap
// was published as the latest distributions.
func (e *Engine) finish(r *run, snap *Snapshot, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	r.status.CompletedTime = &now

	switch {
	case e.current != r.status.RunID || errors.Is(err, context.Canceled):
		r.status.Status = StatusSuperseded
		log.WithField("run_id", r.status.RunID).Info("Simulation run superseded")
	case err != nil:
		r.status.Status = StatusFailed
		r.status.Error = err.Error()
		log.WithField("run_id", r.status.RunID).WithError(err).Error("Simulation run failed")
	default:
		r.status.Status = StatusCompleted
		r.status.CompletedIterations = r.status.Iterations
		r.status.Progress = 1
		e.latest = snap
	}
	metrics.SimulationRuns.WithLabelValues(r.status.Status).Inc()
	return r.status.Status == StatusCompleted
}

func (e *Engine) setStatus(r *run, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r.status.Status = status
}

// updateProgress bumps the completed iteration count
func (e *Engine) updateProgress(r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r.status.CompletedIterations++
	if r.status.Iterations > 0 {
		r.status.Progress = float64(r.status.CompletedIterations) / float64(r.status.Iterations)
	}
}

// Status returns a copy of a run's status
func (e *Engine) Status(runID string) (RunStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.runs[runID]
	if !ok {
		return RunStatus{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r.status, nil
}

// Wait blocks until the run finishes or ctx is done
func (e *Engine) Wait(ctx context.Context, runID string) (RunStatus, error) {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return RunStatus{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	select {
	case <-r.done:
		return e.Status(runID)
	case <-ctx.Done():
		return RunStatus{}, ctx.Err()
	}
}

// Latest returns the most recently completed snapshot
func (e *Engine) Latest() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.latest == nil {
		return nil, ErrNoDistributions
	}
	return e.latest, nil
}

// Lookup finds distributions for the given inputs in memory, the cache, or
// the store, without simulating.
func (e *Engine) Lookup(ctx context.Context, players []*models.Player, settings models.LeagueSettings) (*Snapshot, error) {
	fingerprint := Fingerprint(players, settings, e.Options(Options{}))

	e.mu.RLock()
	latest := e.latest
	e.mu.RUnlock()
	if latest != nil && latest.Fingerprint == fingerprint {
		return latest, nil
	}

	if e.cache != nil {
		if snap, ok := e.cache.Get(ctx, fingerprint); ok {
			return snap, nil
		}
	}

	if e.store != nil {
		snap, err := e.store.LoadLatest(ctx, fingerprint)
		if err == nil {
			if e.cache != nil {
				e.cache.Set(ctx, snap)
			}
			return snap, nil
		}
		if !errors.Is(err, ErrNoDistributions) {
			return nil, fmt.Errorf("failed to load distributions: %w", err)
		}
	}

	return nil, ErrNoDistributions
}

// Ensure returns distributions for the inputs if they are already known.
// Otherwise it starts a background recompute and returns ErrNoDistributions
// along with the new run id, so callers can score against fallback targets.
func (e *Engine) Ensure(ctx context.Context, players []*models.Player, settings models.LeagueSettings) (*Snapshot, string, error) {
	snap, err := e.Lookup(ctx, players, settings)
	if err == nil {
		return snap, "", nil
	}
	if !errors.Is(err, ErrNoDistributions) {
		log.WithError(err).Warn("Distribution lookup failed, recomputing")
	}

	r, runCtx := e.newRun(players, settings, e.Options(Options{}))

	// Check and register under one lock so identical callers share a run.
	e.mu.Lock()
	if e.latest != nil && e.latest.Fingerprint == r.status.Fingerprint {
		latest := e.latest
		e.mu.Unlock()
		r.cancel()
		return latest, "", nil
	}
	if cur, ok := e.runs[e.current]; ok && !cur.status.Finished() && cur.status.Fingerprint == r.status.Fingerprint {
		runID := cur.status.RunID
		e.mu.Unlock()
		r.cancel()
		return nil, runID, ErrNoDistributions
	}
	e.startLocked(r)
	e.mu.Unlock()

	go e.runSimulation(runCtx, r)
	return nil, r.status.RunID, ErrNoDistributions
}

// Restore loads persisted distributions for the inputs into memory
func (e *Engine) Restore(ctx context.Context, players []*models.Player, settings models.LeagueSettings) error {
	snap, err := e.Lookup(ctx, players, settings)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.latest == nil {
		e.latest = snap
	}
	e.mu.Unlock()
	return nil
}

// CleanupOldRuns removes finished runs older than maxAge from memory
func (e *Engine) CleanupOldRuns(maxAge time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for runID, r := range e.runs {
		if runID == e.current || !r.status.Finished() {
			continue
		}
		if r.status.StartTime.Before(cutoff) {
			delete(e.runs, runID)
			removed++
		}
	}
	return removed
}

// Pruner is implemented by stores that can delete old snapshots
type Pruner interface {
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweep drops finished runs older than maxAge, evicts expired cache
// entries, and prunes stored snapshots older than retention when the store
// supports it. A zero retention keeps stored snapshots.
func (e *Engine) Sweep(ctx context.Context, maxAge, retention time.Duration) {
	fields := log.Fields{"runs_removed": e.CleanupOldRuns(maxAge)}

	if c, ok := e.cache.(interface{ Cleanup() }); ok {
		c.Cleanup()
	}

	if p, ok := e.store.(Pruner); ok && retention > 0 {
		pruned, err := p.PruneRuns(ctx, time.Now().Add(-retention))
		if err != nil {
			log.WithError(err).Warn("Failed to prune stored distributions")
		}
		fields["snapshots_pruned"] = pruned
	}
	log.WithFields(fields).Debug("Simulation engine cleanup")
}

// StartCleanup sweeps every interval until ctx is done
func (e *Engine) StartCleanup(ctx context.Context, interval, maxAge, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Sweep(ctx, maxAge, retention)
			}
		}
	}()
}

// Shutdown cancels any in-flight run
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.runs {
		if !r.status.Finished() {
			r.cancel()
		}
	}
}
