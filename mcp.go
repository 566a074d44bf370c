package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arnadler/category-draft-coach/models"
)

type LeagueArgs struct {
	Teams           int      `json:"teams,omitempty" jsonschema:"Number of teams in the league (default 12)"`
	Categories      []string `json:"categories,omitempty" jsonschema:"Scoring category keys such as HR, SB, ERA (default 5x5)"`
	BenchMultiplier *float64 `json:"bench_multiplier,omitempty" jsonschema:"Weight of bench players' stats, 0 to 0.9 (default 0.35)"`
}

func (a LeagueArgs) settings() *models.LeagueSettings {
	settings := models.DefaultSettings()
	if a.Teams > 0 {
		settings.Teams = a.Teams
	}
	if len(a.Categories) > 0 {
		settings.Categories = make([]models.Category, len(a.Categories))
		for i, key := range a.Categories {
			settings.Categories[i] = models.Category{Key: key}
		}
	}
	if a.BenchMultiplier != nil {
		settings.BenchMultiplier = *a.BenchMultiplier
	}
	return &settings
}

type RecommendPicksArgs struct {
	League        LeagueArgs `json:"league,omitempty" jsonschema:"League settings overrides"`
	RosterIDs     []string   `json:"roster_ids,omitempty" jsonschema:"Catalog ids of players already on the drafter's roster"`
	DraftedIDs    []string   `json:"drafted_ids,omitempty" jsonschema:"Catalog ids taken by other teams"`
	RiskTolerance float64    `json:"risk_tolerance,omitempty" jsonschema:"0 (cautious) to 1 (chase upside)"`
	OverallPick   int        `json:"overall_pick,omitempty" jsonschema:"Current overall pick number (0 = unknown)"`
	Limit         int        `json:"limit,omitempty" jsonschema:"Number of recommendations (default 10)"`
}

type EvaluateRosterArgs struct {
	League    LeagueArgs `json:"league,omitempty" jsonschema:"League settings overrides"`
	RosterIDs []string   `json:"roster_ids,omitempty" jsonschema:"Catalog ids of players on the roster"`
}

type LeagueDistributionsArgs struct{}

func (s *Server) newMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "category-draft-coach",
			Version: "0.1.0",
		},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommend_picks",
		Description: "Rank available players by category z-score gain for the drafter's roster",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RecommendPicksArgs) (*mcp.CallToolResult, any, error) {
		resp, err := s.recommend(ctx, RecommendationRequest{
			DraftInput: DraftInput{
				RosterIDs:  args.RosterIDs,
				DraftedIDs: args.DraftedIDs,
				Settings:   args.League.settings(),
			},
			RiskTolerance: args.RiskTolerance,
			OverallPick:   args.OverallPick,
			Limit:         args.Limit,
		})
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(resp), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_roster",
		Description: "Slot a roster, total its categories and score it against the league",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EvaluateRosterArgs) (*mcp.CallToolResult, any, error) {
		if len(args.RosterIDs) == 0 {
			return toolError(fmt.Errorf("roster_ids is required")), nil, nil
		}
		resp, err := s.evaluate(ctx, DraftInput{RosterIDs: args.RosterIDs, Settings: args.League.settings()})
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(resp), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "league_distributions",
		Description: "Latest simulated league mean and spread per category",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LeagueDistributionsArgs) (*mcp.CallToolResult, any, error) {
		snap, err := s.engine.Latest()
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(snap), nil, nil
	})

	return server
}

func (s *Server) mcpHandler() http.Handler {
	server := s.newMCPServer()
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

func toolJSON(v any) *mcp.CallToolResult {
	b, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
