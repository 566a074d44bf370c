package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arnadler/category-draft-coach/models"
)

// DB is the subset of *pgxpool.Pool the stores use
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists completed distribution snapshots
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store on top of db
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const createDistributionTables = `
	CREATE TABLE IF NOT EXISTS distribution_runs (
		id UUID PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		iterations INTEGER NOT NULL,
		teams INTEGER NOT NULL,
		seed BIGINT NOT NULL,
		completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS distribution_runs_fingerprint_idx
		ON distribution_runs (fingerprint, completed_at DESC);
	CREATE TABLE IF NOT EXISTS category_distributions (
		run_id UUID NOT NULL REFERENCES distribution_runs(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		mean DOUBLE PRECISION NOT NULL,
		std DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, category)
	)
`

// EnsureSchema creates the distribution tables if they do not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createDistributionTables); err != nil {
		return fmt.Errorf("failed to create distribution tables: %w", err)
	}
	return nil
}

// SaveSnapshot stores a run and its per-category distributions in one transaction
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *Snapshot) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	runQuery := `
		INSERT INTO distribution_runs (id, fingerprint, iterations, teams, seed, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err = tx.Exec(ctx, runQuery,
		snap.RunID,
		snap.Fingerprint,
		snap.Iterations,
		snap.Teams,
		int64(snap.Seed),
		snap.CompletedAt,
	); err != nil {
		return fmt.Errorf("failed to store distribution run: %w", err)
	}

	categoryQuery := `
		INSERT INTO category_distributions (run_id, category, mean, std)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, category) DO UPDATE SET
			mean = EXCLUDED.mean,
			std = EXCLUDED.std
	`
	for _, key := range sortedKeys(snap.Distributions) {
		d := snap.Distributions[key]
		if _, err = tx.Exec(ctx, categoryQuery, snap.RunID, key, d.Mean, d.Std); err != nil {
			return fmt.Errorf("failed to store %s distribution: %w", key, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit distributions: %w", err)
	}
	return nil
}

// LoadLatest returns the newest stored snapshot for fingerprint
func (s *PostgresStore) LoadLatest(ctx context.Context, fingerprint string) (*Snapshot, error) {
	snap := Snapshot{
		Fingerprint:   fingerprint,
		Distributions: make(map[string]models.Distribution),
	}
	var seed int64
	var completedAt time.Time

	err := s.db.QueryRow(ctx, `
		SELECT id, iterations, teams, seed, completed_at
		FROM distribution_runs
		WHERE fingerprint = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`, fingerprint).Scan(&snap.RunID, &snap.Iterations, &snap.Teams, &seed, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDistributions
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load distribution run: %w", err)
	}
	snap.Seed = uint64(seed)
	snap.CompletedAt = completedAt

	rows, err := s.db.Query(ctx, `
		SELECT category, mean, std
		FROM category_distributions
		WHERE run_id = $1
		ORDER BY category
	`, snap.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category distributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var d models.Distribution
		if err := rows.Scan(&key, &d.Mean, &d.Std); err != nil {
			return nil, fmt.Errorf("failed to scan category distribution: %w", err)
		}
		snap.Distributions[key] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category distributions: %w", err)
	}

	return &snap, nil
}

// PruneRuns deletes stored runs completed before cutoff
func (s *PostgresStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM distribution_runs WHERE completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune distribution runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
