package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearfield/minesweeper-engine/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for Minesweeper Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Minesweeper Engine schema initialized")
	return nil
}

// GameResult is one finished session row.
type GameResult struct {
	GameID        string `json:"gameId"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Mines         int    `json:"mines"`
	Seed          int64  `json:"seed"`
	Outcome       string `json:"outcome"` // won / lost
	Validated     bool   `json:"validated"`
	Revealed      int    `json:"revealed"`
	FlagsPlaced   int    `json:"flagsPlaced"`
	DurationMilli int64  `json:"durationMs"`
}

// SaveGameResult persists one finished session.
func (s *PostgresStore) SaveGameResult(ctx context.Context, r GameResult) error {
	sql := `
		INSERT INTO game_results
		(game_id, width, height, mines, seed, outcome, validated, revealed, flags_placed, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id) DO UPDATE
		SET outcome = EXCLUDED.outcome, revealed = EXCLUDED.revealed,
		    flags_placed = EXCLUDED.flags_placed, duration_ms = EXCLUDED.duration_ms;
	`
	_, err := s.pool.Exec(ctx, sql, r.GameID, r.Width, r.Height, r.Mines, r.Seed,
		r.Outcome, r.Validated, r.Revealed, r.FlagsPlaced, r.DurationMilli)
	if err != nil {
		return fmt.Errorf("failed to insert game result: %v", err)
	}
	return nil
}

// GetRecentResults pages through finished sessions, newest first.
func (s *PostgresStore) GetRecentResults(ctx context.Context, page, limit int) ([]GameResult, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_results`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT game_id, width, height, mines, seed, outcome, validated, revealed, flags_placed, duration_ms
		FROM game_results
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []GameResult
	for rows.Next() {
		var r GameResult
		if err := rows.Scan(&r.GameID, &r.Width, &r.Height, &r.Mines, &r.Seed,
			&r.Outcome, &r.Validated, &r.Revealed, &r.FlagsPlaced, &r.DurationMilli); err != nil {
			return nil, 0, err
		}
		results = append(results, r)
	}
	if results == nil {
		results = []GameResult{}
	}
	return results, totalCount, nil
}

// SweepStat is one seed-sweep sample: how generation behaved for one seed.
type SweepStat struct {
	Width         int   `json:"width"`
	Height        int   `json:"height"`
	Mines         int   `json:"mines"`
	Seed          int64 `json:"seed"`
	Attempts      int   `json:"attempts"`
	Perturbations int   `json:"perturbations"`
	Validated     bool  `json:"validated"`
}

// SaveSweepStat persists one seed-sweep sample.
func (s *PostgresStore) SaveSweepStat(ctx context.Context, st SweepStat) error {
	sql := `
		INSERT INTO sweep_stats (width, height, mines, seed, attempts, perturbations, validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (width, height, mines, seed) DO UPDATE
		SET attempts = EXCLUDED.attempts, perturbations = EXCLUDED.perturbations,
		    validated = EXCLUDED.validated, last_updated = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, st.Width, st.Height, st.Mines, st.Seed,
		st.Attempts, st.Perturbations, st.Validated)
	return err
}

// SaveSetting upserts one key of the host UI's persisted configuration.
// Settings are opaque to the engine; this store is the external
// configuration layer the core delegates persistence to.
func (s *PostgresStore) SaveSetting(ctx context.Context, key, value string) error {
	sql := `
		INSERT INTO engine_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, last_updated = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, key, value)
	return err
}

// LoadSettings returns all persisted settings.
func (s *PostgresStore) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM engine_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// DefaultBoardSetting parses a stored default-difficulty setting back into a
// config, falling back to the beginner preset on anything unrecognized.
func DefaultBoardSetting(settings map[string]string) models.BoardConfig {
	switch settings["default_difficulty"] {
	case "intermediate":
		return models.PresetIntermediate
	case "expert":
		return models.PresetExpert
	default:
		return models.PresetBeginner
	}
}

// GetPool exposes the connection pool for other subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
