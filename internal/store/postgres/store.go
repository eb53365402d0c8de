// Package postgres provides the Postgres-backed roast and vote store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists roasts and votes in Postgres.
type Store struct {
	pool pool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateRoast inserts a roast row.
func (s *Store) CreateRoast(ctx context.Context, r roast.Roast) error {
	if r.ID == "" {
		return &roast.PersistenceError{Err: fmt.Errorf("roast id is required")}
	}
	const query = `
INSERT INTO roasts (
	id,
	startup_name,
	startup_url,
	roast_text,
	user_id,
	fire_count,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`
	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.StartupName,
		r.StartupURL,
		r.RoastText,
		r.UserID,
		r.FireCount,
		r.CreatedAt,
	)
	if err != nil {
		return &roast.PersistenceError{Err: fmt.Errorf("insert roast: %w", err)}
	}
	return nil
}

const roastColumns = `
	r.id,
	r.startup_name,
	r.startup_url,
	r.roast_text,
	r.user_id,
	r.fire_count,
	r.created_at,
	u.name,
	EXISTS (SELECT 1 FROM votes v WHERE v.roast_id = r.id AND v.user_id = $2)`

// GetRoast loads one roast with its author name and whether the viewer
// has voted on it. A nil viewer always reads Voted as false.
func (s *Store) GetRoast(ctx context.Context, id string, viewerID *string) (roast.RoastDetails, error) {
	query := `
SELECT` + roastColumns + `
FROM roasts r
LEFT JOIN users u ON u.id = r.user_id
WHERE r.id = $1`

	var d roast.RoastDetails
	err := s.pool.QueryRow(ctx, query, id, viewerID).Scan(
		&d.ID,
		&d.StartupName,
		&d.StartupURL,
		&d.RoastText,
		&d.UserID,
		&d.FireCount,
		&d.CreatedAt,
		&d.AuthorName,
		&d.Voted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return roast.RoastDetails{}, roast.ErrNotFound
	}
	if err != nil {
		return roast.RoastDetails{}, &roast.PersistenceError{Err: fmt.Errorf("select roast: %w", err)}
	}
	return d, nil
}

// Leaderboard returns the top roasts by fire count, newest first within
// equal counts.
func (s *Store) Leaderboard(ctx context.Context, limit int, viewerID *string) ([]roast.RoastDetails, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT` + roastColumns + `
FROM roasts r
LEFT JOIN users u ON u.id = r.user_id
ORDER BY r.fire_count DESC, r.created_at DESC
LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit, viewerID)
	if err != nil {
		return nil, &roast.PersistenceError{Err: fmt.Errorf("select leaderboard: %w", err)}
	}
	defer rows.Close()

	out := make([]roast.RoastDetails, 0, limit)
	for rows.Next() {
		var d roast.RoastDetails
		if err := rows.Scan(
			&d.ID,
			&d.StartupName,
			&d.StartupURL,
			&d.RoastText,
			&d.UserID,
			&d.FireCount,
			&d.CreatedAt,
			&d.AuthorName,
			&d.Voted,
		); err != nil {
			return nil, &roast.PersistenceError{Err: fmt.Errorf("scan leaderboard row: %w", err)}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &roast.PersistenceError{Err: fmt.Errorf("iterate leaderboard: %w", err)}
	}
	return out, nil
}

// ToggleVote flips the user's vote on a roast inside one transaction.
// The roast row is locked first so concurrent toggles for the same pair
// serialize, and fire_count is always recomputed from the votes table.
func (s *Store) ToggleVote(ctx context.Context, userID, roastID string) (roast.VoteResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return roast.VoteResult{}, &roast.PersistenceError{Err: fmt.Errorf("begin vote tx: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM roasts WHERE id = $1 FOR UPDATE`, roastID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return roast.VoteResult{}, roast.ErrNotFound
	}
	if err != nil {
		return roast.VoteResult{}, &roast.PersistenceError{Err: fmt.Errorf("lock roast: %w", err)}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM votes WHERE roast_id = $1 AND user_id = $2`, roastID, userID)
	if err != nil {
		return roast.VoteResult{}, &roast.PersistenceError{Err: fmt.Errorf("delete vote: %w", err)}
	}
	voted := tag.RowsAffected() == 0
	if voted {
		if _, err := tx.Exec(ctx, `INSERT INTO votes (roast_id, user_id) VALUES ($1, $2)`, roastID, userID); err != nil {
			return roast.VoteResult{}, &roast.PersistenceError{Err: fmt.Errorf("insert vote: %w", err)}
		}
	}

	var fireCount int
	err = tx.QueryRow(ctx, `
UPDATE roasts
SET fire_count = (SELECT count(*) FROM votes WHERE roast_id = $1)
WHERE id = $1
RETURNING fire_count`, roastID).Scan(&fireCount)
	if err != nil {
		return roast.VoteResult{}, &roast.PersistenceError{Err: fmt.Errorf("update fire count: %w", err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return roast.VoteResult{}, &roast.PersistenceError{Err: fmt.Errorf("commit vote tx: %w", err)}
	}
	return roast.VoteResult{FireCount: fireCount, Voted: voted}, nil
}
