package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/catalog"
	"github.com/arnadler/category-draft-coach/models"
	"github.com/arnadler/category-draft-coach/recommend"
	"github.com/arnadler/category-draft-coach/simulation"
	"github.com/arnadler/category-draft-coach/valuation"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	maxBodyBytes = 10 << 20
)

// Distribution sources reported alongside scores
const (
	sourceSimulated = "simulated"
	sourceTargets   = "targets"
)

var errNoPlayers = errors.New("no players supplied and no catalog loaded")

// DraftInput identifies the drafter's roster and the pool to pick from.
// Players may be sent inline or referenced by id against the loaded catalog.
// Players, when sent, is the full draftable catalog and replaces the loaded
// one for this request.
type DraftInput struct {
	Players    []*models.Player       `json:"players,omitempty"`
	Roster     []*models.Player       `json:"roster,omitempty"`
	RosterIDs  []string               `json:"roster_ids,omitempty"`
	Available  []*models.Player       `json:"available,omitempty"`
	DraftedIDs []string               `json:"drafted_ids,omitempty"`
	Settings   *models.LeagueSettings `json:"settings,omitempty"`
}

type RecommendationRequest struct {
	DraftInput
	RiskTolerance float64 `json:"risk_tolerance"`
	OverallPick   int     `json:"overall_pick,omitempty"`
	Limit         int     `json:"limit,omitempty"`
}

type RecommendationResponse struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Distributions   string                     `json:"distributions"`
	RunID           string                     `json:"run_id,omitempty"`
}

type EvaluationResponse struct {
	valuation.Evaluation
	TotalZ        float64 `json:"total_z"`
	Distributions string  `json:"distributions"`
	RunID         string  `json:"run_id,omitempty"`
}

type RecomputeRequest struct {
	Players    []*models.Player       `json:"players,omitempty"`
	Settings   *models.LeagueSettings `json:"settings,omitempty"`
	Iterations int                    `json:"iterations,omitempty"`
	Seed       *uint64                `json:"seed,omitempty"`
	NoiseScale *float64               `json:"noise_scale,omitempty"`
}

type RecomputeResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// draftState is a DraftInput resolved against the catalog
type draftState struct {
	roster    []*models.Player
	available []*models.Player
	pool      []*models.Player
	settings  models.LeagueSettings
}

func (s *Server) resolve(in DraftInput) (draftState, error) {
	st := draftState{settings: models.DefaultSettings()}
	if in.Settings != nil {
		st.settings = *in.Settings
	}

	full := s.catalog
	if len(in.Players) > 0 {
		full = catalog.New(in.Players)
	}

	st.roster, _ = catalog.Normalize(in.Roster)
	if len(in.RosterIDs) > 0 {
		found, missing := full.Lookup(in.RosterIDs)
		if len(missing) > 0 {
			return st, fmt.Errorf("unknown player ids: %s", strings.Join(missing, ", "))
		}
		st.roster = append(st.roster, found...)
	}

	excluded := make(map[string]bool, len(st.roster)+len(in.DraftedIDs))
	for _, p := range st.roster {
		excluded[p.ID] = true
	}
	for _, id := range in.DraftedIDs {
		excluded[id] = true
	}

	if len(in.Available) > 0 {
		st.available, _ = catalog.Normalize(in.Available)
	} else {
		st.available = full.Available(excluded)
	}

	// The simulation pool must not shrink as the draft goes on, or every
	// pick would invalidate the distributions.
	last := s.engine.Pool()
	switch {
	case full.Len() > 0:
		st.pool = full.Players()
	case len(last) > 0:
		st.pool = last
	default:
		st.pool = append(append([]*models.Player{}, st.roster...), st.available...)
	}
	return st, nil
}

// distributions returns simulated distributions for the pool when they are
// known. Otherwise it kicks off a recompute and reports the target fallback.
func (s *Server) distributions(ctx context.Context, pool []*models.Player, settings models.LeagueSettings) (map[string]models.Distribution, string, string) {
	if len(pool) == 0 {
		return nil, sourceTargets, ""
	}
	snap, runID, err := s.engine.Ensure(ctx, pool, settings)
	if err != nil {
		return nil, sourceTargets, runID
	}
	return snap.Distributions, sourceSimulated, snap.RunID
}

func (s *Server) recommend(ctx context.Context, req RecommendationRequest) (RecommendationResponse, error) {
	st, err := s.resolve(req.DraftInput)
	if err != nil {
		return RecommendationResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	dists, source, runID := s.distributions(ctx, st.pool, st.settings)
	recs := recommend.Recommend(recommend.Request{
		Available:     st.available,
		Roster:        st.roster,
		Settings:      st.settings,
		Distributions: dists,
		RiskTolerance: req.RiskTolerance,
		OverallPick:   req.OverallPick,
		Limit:         limit,
	})

	return RecommendationResponse{Recommendations: recs, Distributions: source, RunID: runID}, nil
}

func (s *Server) evaluate(ctx context.Context, in DraftInput) (EvaluationResponse, error) {
	st, err := s.resolve(in)
	if err != nil {
		return EvaluationResponse{}, err
	}

	dists, source, runID := s.distributions(ctx, st.pool, st.settings)
	settings := st.settings.Normalize()
	eval := valuation.Evaluate(st.roster, settings, valuation.Baseline(settings, dists))

	return EvaluationResponse{
		Evaluation:    eval,
		TotalZ:        eval.TotalZ(),
		Distributions: source,
		RunID:         runID,
	}, nil
}

// Handlers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "healthy",
		"time":            time.Now().UTC(),
		"workers":         s.config.Workers,
		"database":        "disabled",
		"cache":           "memory",
		"catalog_players": s.catalog.Len(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	if s.db != nil {
		health["database"] = "connected"
		if err := s.db.Ping(ctx); err != nil {
			health["database"] = "disconnected"
			health["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	if s.rdb != nil {
		health["cache"] = "redis"
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			health["cache"] = "redis unavailable"
		}
	}
	if _, err := s.engine.Latest(); err == nil {
		health["distributions"] = sourceSimulated
	} else {
		health["distributions"] = sourceTargets
	}

	writeJSONStatus(w, status, health)
}

func (s *Server) recomputeHandler(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "Invalid request body", "bad_request", http.StatusBadRequest)
		return
	}

	players, _ := catalog.Normalize(req.Players)
	if len(players) == 0 {
		players = s.catalog.Players()
	}
	if len(players) == 0 {
		writeError(w, errNoPlayers.Error(), "no_players", http.StatusBadRequest)
		return
	}

	settings := models.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	opts := s.engine.Options(simulation.Options{Iterations: req.Iterations})
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	if req.NoiseScale != nil {
		opts.NoiseScale = *req.NoiseScale
	}
	runID := s.engine.Submit(players, settings, opts)

	writeJSONStatus(w, http.StatusAccepted, RecomputeResponse{
		RunID:     runID,
		Status:    simulation.StatusPending,
		Message:   fmt.Sprintf("Simulation started with %d iterations over %d players", opts.Iterations, len(players)),
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) latestDistributionsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Latest()
	if err != nil {
		writeError(w, "No distributions computed yet", "not_found", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) distributionStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, err := s.engine.Status(runID)
	if errors.Is(err, simulation.ErrRunNotFound) {
		writeError(w, "Simulation run not found", "not_found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to read run status")
		writeError(w, "Internal server error", "internal", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status)
}

func (s *Server) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, "Invalid request body", "bad_request", http.StatusBadRequest)
		return
	}

	resp, err := s.recommend(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), "bad_request", http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) evaluateRosterHandler(w http.ResponseWriter, r *http.Request) {
	var in DraftInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "Invalid request body", "bad_request", http.StatusBadRequest)
		return
	}

	resp, err := s.evaluate(r.Context(), in)
	if err != nil {
		writeError(w, err.Error(), "bad_request", http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) catalogHandler(w http.ResponseWriter, r *http.Request) {
	warnings := s.catalog.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, map[string]interface{}{
		"players":  s.catalog.Len(),
		"warnings": warnings,
	})
}

// decodeBody decodes a JSON request body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
