package loginrisk

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAttemptStore persists login attempts in PostgreSQL.
type PostgresAttemptStore struct {
	db *sql.DB
}

// NewPostgresAttemptStore creates a PostgreSQL-backed attempt store.
func NewPostgresAttemptStore(db *sql.DB) *PostgresAttemptStore {
	return &PostgresAttemptStore{db: db}
}

// Migrate creates the login_attempts table if it doesn't exist.
func (s *PostgresAttemptStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS login_attempts (
			id           BIGSERIAL PRIMARY KEY,
			identity     VARCHAR(64) NOT NULL,
			fingerprint  VARCHAR(128) NOT NULL DEFAULT '',
			country      VARCHAR(2) NOT NULL DEFAULT '',
			attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_login_attempts_identity
			ON login_attempts (identity, attempted_at DESC);
	`)
	return err
}

func (s *PostgresAttemptStore) FetchRecent(ctx context.Context, identity string, limit int) ([]*Attempt, error) {
	if limit <= 0 {
		limit = historyLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, fingerprint, country, attempted_at
		FROM login_attempts
		WHERE identity = $1
		ORDER BY attempted_at DESC
		LIMIT $2
	`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.Identity, &a.Fingerprint, &a.Country, &a.At); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (s *PostgresAttemptStore) Append(ctx context.Context, attempt *Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts (identity, fingerprint, country, attempted_at)
		VALUES ($1, $2, $3, $4)
	`, attempt.Identity, attempt.Fingerprint, attempt.Country, attempt.At)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}
