package trust

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinel-labs/sentinelx/internal/pagination"
)

// PostgresStore persists trust states in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed trust store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the trust_states table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trust_states (
			identity       VARCHAR(64) PRIMARY KEY,
			trust_score    NUMERIC(5,2) NOT NULL CHECK (trust_score >= 0 AND trust_score <= 100),
			status         VARCHAR(20) NOT NULL CHECK (status IN ('active', 'step_up_required', 'restricted', 'locked')),
			locked_until   TIMESTAMPTZ,
			reason         TEXT NOT NULL DEFAULT '',
			last_evaluated TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, identity string) (*TrustState, error) {
	var state TrustState
	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT identity, trust_score, status, locked_until, reason, last_evaluated
		FROM trust_states
		WHERE identity = $1
	`, identity).Scan(&state.Identity, &state.TrustScore, &state.Status,
		&lockedUntil, &state.Reason, &state.LastEvaluated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trust state: %w", err)
	}
	if lockedUntil.Valid {
		state.LockedUntil = lockedUntil.Time
	}
	return &state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *TrustState) error {
	var lockedUntil interface{}
	if !state.LockedUntil.IsZero() {
		lockedUntil = state.LockedUntil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_states (identity, trust_score, status, locked_until, reason, last_evaluated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity) DO UPDATE SET
			trust_score = EXCLUDED.trust_score,
			status = EXCLUDED.status,
			locked_until = EXCLUDED.locked_until,
			reason = EXCLUDED.reason,
			last_evaluated = EXCLUDED.last_evaluated
	`, state.Identity, state.TrustScore, state.Status, lockedUntil, state.Reason, state.LastEvaluated)
	if err != nil {
		return fmt.Errorf("failed to save trust state: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, before *pagination.Cursor, limit int) ([]*TrustState, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if before != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT identity, trust_score, status, locked_until, reason, last_evaluated
			FROM trust_states
			WHERE (last_evaluated, identity) < ($1, $2)
			ORDER BY last_evaluated DESC, identity DESC
			LIMIT $3
		`, before.CreatedAt, before.ID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT identity, trust_score, status, locked_until, reason, last_evaluated
			FROM trust_states
			ORDER BY last_evaluated DESC, identity DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list trust states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*TrustState
	for rows.Next() {
		var state TrustState
		var lockedUntil sql.NullTime
		if err := rows.Scan(&state.Identity, &state.TrustScore, &state.Status,
			&lockedUntil, &state.Reason, &state.LastEvaluated); err != nil {
			return nil, err
		}
		if lockedUntil.Valid {
			state.LockedUntil = lockedUntil.Time
		}
		result = append(result, &state)
	}
	return result, rows.Err()
}
