package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnadler/category-draft-coach/catalog"
	"github.com/arnadler/category-draft-coach/models"
	"github.com/arnadler/category-draft-coach/simulation"
)

func testPlayers() []*models.Player {
	var players []*models.Player
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("p%02d", i)
		rank := models.Float(float64(i + 1))
		if i%3 == 0 {
			players = append(players, &models.Player{
				ID: id, Name: id, Positions: []string{"SP"}, Role: models.RolePitcher, OverallRank: rank,
				Projection: models.Projection{
					models.StatIP: 180 - float64(i), models.StatW: 12, models.StatK: 200 - float64(i),
					models.StatER: 70, models.StatHA: 160, models.StatBBA: 50,
				},
			})
			continue
		}
		players = append(players, &models.Player{
			ID: id, Name: id, Positions: []string{"OF"}, Role: models.RoleHitter, OverallRank: rank,
			Projection: models.Projection{
				models.StatAB: 550, models.StatH: 150, models.StatHR: 35 - float64(i)/2,
				models.StatR: 90, models.StatRBI: 90, models.StatSB: float64(i % 7),
			},
		})
	}
	return players
}

func testLeague() *models.LeagueSettings {
	settings := models.DefaultSettings()
	settings.Teams = 4
	settings.Roster = []models.SlotTemplate{
		{Name: "OF", Eligible: []string{"OF"}, Kind: models.SlotStarter, Count: 3},
		{Name: "SP", Eligible: []string{"SP"}, Kind: models.SlotStarter, Count: 2},
		{Name: "BN", Eligible: []string{"OF", "SP"}, Kind: models.SlotBench, Count: 1},
	}
	return &settings
}

func testServer(t *testing.T) *Server {
	t.Helper()
	config := &Config{
		Port:           "0",
		Workers:        2,
		AllowedOrigins: []string{"http://localhost:3000"},
		MCPEnabled:     true,
	}
	engine := simulation.NewEngine(nil, simulation.NewMemoryCache(time.Hour), 2,
		simulation.Options{Iterations: 5, Seed: 11, NoiseScale: 6})
	t.Cleanup(engine.Shutdown)
	return newServer(config, engine, catalog.New(testPlayers()))
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.handler(), "GET", "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disabled", body["database"])
	assert.Equal(t, float64(40), body["catalog_players"])
	assert.Equal(t, sourceTargets, body["distributions"])
}

func TestCatalogHandler(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.router, "GET", "/api/v1/catalog", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"players": 40, "warnings": []}`, rec.Body.String())
}

func TestRecomputeAndLatest(t *testing.T) {
	s := testServer(t)

	rec := do(t, s.router, "GET", "/api/v1/distributions/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.router, "POST", "/api/v1/distributions", RecomputeRequest{Settings: testLeague(), Iterations: 4})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started RecomputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, simulation.StatusPending, started.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := s.engine.Wait(ctx, started.RunID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, status.Status)

	rec = do(t, s.router, "GET", "/api/v1/distributions/"+started.RunID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got simulation.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Iterations)

	rec = do(t, s.router, "GET", "/api/v1/distributions/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap simulation.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, started.RunID, snap.RunID)
	assert.Contains(t, snap.Distributions, models.CatHR)
}

func TestRecomputeExplicitZeroSeedAndNoise(t *testing.T) {
	s := testServer(t)
	seed, noise := uint64(0), 0.0

	rec := do(t, s.router, "POST", "/api/v1/distributions", RecomputeRequest{
		Settings:   testLeague(),
		Iterations: 4,
		Seed:       &seed,
		NoiseScale: &noise,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started RecomputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := s.engine.Wait(ctx, started.RunID)
	require.NoError(t, err)
	require.Equal(t, simulation.StatusCompleted, status.Status)

	snap, err := s.engine.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Seed)

	direct, err := simulation.SimulateLeague(ctx, s.catalog.Players(), *testLeague(),
		simulation.Options{Iterations: 4, Seed: 0, NoiseScale: 0})
	require.NoError(t, err)
	assert.Equal(t, direct.Distributions, snap.Distributions)
}

func TestRecomputeValidation(t *testing.T) {
	s := newServer(&Config{}, simulation.NewEngine(nil, nil, 1, simulation.DefaultOptions()), nil)

	rec := do(t, s.router, "POST", "/api/v1/distributions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_players")

	req := httptest.NewRequest("POST", "/api/v1/distributions", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDistributionStatusNotFound(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.router, "GET", "/api/v1/distributions/nope/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "Simulation run not found", "code": "not_found"}`, rec.Body.String())
}

func TestRecommendationsHandler(t *testing.T) {
	s := testServer(t)

	rec := do(t, s.router, "POST", "/api/v1/recommendations", RecommendationRequest{
		DraftInput: DraftInput{
			RosterIDs:  []string{"p01", "p03"},
			DraftedIDs: []string{"p02", "p04"},
			Settings:   testLeague(),
		},
		RiskTolerance: 0.5,
		Limit:         5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecommendationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Recommendations, 5)
	assert.Equal(t, sourceTargets, resp.Distributions)
	assert.NotEmpty(t, resp.RunID, "first request starts a recompute")

	excluded := map[string]bool{"p01": true, "p02": true, "p03": true, "p04": true}
	for i, r := range resp.Recommendations {
		assert.False(t, excluded[r.Player.ID], r.Player.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Recommendations[i-1].TotalGain, r.TotalGain)
		}
	}
}

func TestRecommendationsUsesSimulatedDistributions(t *testing.T) {
	s := testServer(t)
	league := testLeague()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runID := s.engine.Recompute(s.catalog.Players(), *league, simulation.Options{})
	_, err := s.engine.Wait(ctx, runID)
	require.NoError(t, err)

	resp, err := s.recommend(ctx, RecommendationRequest{DraftInput: DraftInput{Settings: league}})
	require.NoError(t, err)
	assert.Equal(t, sourceSimulated, resp.Distributions)
	assert.Equal(t, runID, resp.RunID)
	assert.Len(t, resp.Recommendations, defaultLimit)
}

func TestRecommendationsUnknownRoster(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.router, "POST", "/api/v1/recommendations", RecommendationRequest{
		DraftInput: DraftInput{RosterIDs: []string{"p01", "ghost"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ghost")
}

func TestRecommendationsReusePoolWithoutCatalog(t *testing.T) {
	engine := simulation.NewEngine(nil, nil, 2, simulation.Options{Iterations: 5, Seed: 11, NoiseScale: 6})
	t.Cleanup(engine.Shutdown)
	s := newServer(&Config{}, engine, nil)
	players := testPlayers()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := s.recommend(ctx, RecommendationRequest{
		DraftInput: DraftInput{Available: players, Settings: testLeague()},
	})
	require.NoError(t, err)
	assert.Equal(t, sourceTargets, first.Distributions)
	require.NotEmpty(t, first.RunID)

	status, err := s.engine.Wait(ctx, first.RunID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, status.Status)

	// Two picks later the available list is shorter but the pool is not.
	second, err := s.recommend(ctx, RecommendationRequest{
		DraftInput: DraftInput{Roster: players[:1], Available: players[3:], Settings: testLeague()},
	})
	require.NoError(t, err)
	assert.Equal(t, sourceSimulated, second.Distributions)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Len(t, s.engine.Pool(), len(players))
}

func TestRecommendationsInlinePlayers(t *testing.T) {
	engine := simulation.NewEngine(nil, nil, 2, simulation.Options{Iterations: 5, Seed: 11, NoiseScale: 6})
	t.Cleanup(engine.Shutdown)
	s := newServer(&Config{}, engine, nil)

	rec := do(t, s.router, "POST", "/api/v1/recommendations", RecommendationRequest{
		DraftInput: DraftInput{
			Players:    testPlayers(),
			RosterIDs:  []string{"p01"},
			DraftedIDs: []string{"p02"},
			Settings:   testLeague(),
		},
		Limit: 50,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecommendationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Recommendations)
	for _, r := range resp.Recommendations {
		assert.NotContains(t, []string{"p01", "p02"}, r.Player.ID)
	}
	assert.Len(t, s.engine.Pool(), 40)
}

func TestEvaluateRosterHandler(t *testing.T) {
	s := testServer(t)
	rec := do(t, s.router, "POST", "/api/v1/roster/evaluate", DraftInput{
		Roster: []*models.Player{
			{ID: "x1", Positions: []string{"OF"}, Projection: models.Projection{models.StatHR: 30, models.StatAB: 500, models.StatH: 140}},
			{ID: "x2", Positions: []string{"SP"}, Projection: models.Projection{models.StatK: 210, models.StatIP: 180}},
		},
		Settings: testLeague(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Slots []struct {
			Name   string         `json:"name"`
			Player *models.Player `json:"player"`
		} `json:"slots"`
		Totals struct {
			Values map[string]float64 `json:"values"`
		} `json:"totals"`
		ZScores      map[string]float64 `json:"z_scores"`
		FillFraction float64            `json:"fill_fraction"`
		TotalZ       float64            `json:"total_z"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Slots, 6)
	assert.InDelta(t, 2.0/6, body.FillFraction, 1e-9)
	assert.Equal(t, 30.0, body.Totals.Values[models.CatHR])
	assert.Equal(t, 210.0, body.Totals.Values[models.CatK])
	assert.Len(t, body.ZScores, 10)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := testServer(t)
	h := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := do(t, h, "GET", "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal")
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/v1/recommendations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SIMULATION_ITERATIONS", "50")
	t.Setenv("SIMULATION_SEED", "99")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MCP_ENABLED", "false")
	t.Setenv("DISTRIBUTION_RETENTION", "48h")

	c := NewConfig()
	assert.Equal(t, 50, c.Iterations)
	assert.Equal(t, uint64(99), c.Seed)
	assert.Equal(t, simulation.DefaultNoiseScale, c.NoiseScale)
	assert.Equal(t, 15*time.Minute, c.CacheTTL)
	assert.Equal(t, 48*time.Hour, c.Retention)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.False(t, c.MCPEnabled)
	assert.Equal(t, "", c.DBHost)
	assert.Equal(t, "8081", c.Port)
}

func TestNewServerRejectsRedisURLBeforeConnecting(t *testing.T) {
	config := &Config{
		DBHost:   "127.0.0.1",
		DBPort:   "1",
		DBUser:   "draft_user",
		DBName:   "draft_coach",
		Workers:  1,
		RedisURL: "ftp://localhost:6379",
		CacheTTL: time.Minute,
	}
	_, err := NewServer(config)
	assert.ErrorContains(t, err, "invalid REDIS_URL")
}

func TestMCPTools(t *testing.T) {
	s := testServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err := s.newMCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	session, err := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil).Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "league_distributions", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError, "nothing computed yet")

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "recommend_picks",
		Arguments: map[string]any{"roster_ids": []string{"p01"}, "limit": 3},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	var resp RecommendationResponse
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &resp))
	assert.Len(t, resp.Recommendations, 3)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "evaluate_roster", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
