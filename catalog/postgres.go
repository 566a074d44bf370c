package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/models"
)

// DB is the subset of *pgxpool.Pool the source uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the player pool from the draft_players table
type PostgresSource struct {
	db DB
}

// NewPostgresSource creates a source on top of db
func NewPostgresSource(db DB) *PostgresSource {
	return &PostgresSource{db: db}
}

const createPlayersTable = `
	CREATE TABLE IF NOT EXISTS draft_players (
		player_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		positions TEXT[] NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		projections JSONB NOT NULL DEFAULT '{}',
		adp DOUBLE PRECISION,
		overall_rank DOUBLE PRECISION,
		risk DOUBLE PRECISION
	)
`

// EnsureSchema creates the players table if it does not exist
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createPlayersTable); err != nil {
		return fmt.Errorf("failed to create draft_players table: %w", err)
	}
	return nil
}

// Optional columns are coalesced to -1; ADP, rank and risk are never negative.
const selectPlayers = `
	SELECT player_id, name, team, positions, role, projections,
	       COALESCE(adp, -1), COALESCE(overall_rank, -1), COALESCE(risk, -1)
	FROM draft_players
	ORDER BY player_id
`

// Players implements Source
func (s *PostgresSource) Players(ctx context.Context) ([]*models.Player, error) {
	rows, err := s.db.Query(ctx, selectPlayers)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		var (
			p               models.Player
			role            string
			projJSON        []byte
			adp, rank, risk float64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Team, &p.Positions, &role, &projJSON, &adp, &rank, &risk); err != nil {
			log.Printf("Error scanning player: %v", err)
			continue
		}
		p.Role = models.Role(role)

		var stats map[string]interface{}
		if len(projJSON) > 0 {
			if err := json.Unmarshal(projJSON, &stats); err != nil {
				log.Printf("Failed to parse projections for %s: %v", p.ID, err)
			}
		}
		p.Projection = projectionFromStats(stats)
		p.ADP = present(adp)
		p.OverallRank = present(rank)
		p.Risk = present(risk)

		players = append(players, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read players: %w", err)
	}
	return players, nil
}

func present(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return models.Float(v)
}
