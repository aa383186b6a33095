package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists scored events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed event history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the scored_events table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scored_events (
			id            VARCHAR(36) PRIMARY KEY,
			identity      VARCHAR(64) NOT NULL,
			kind          VARCHAR(10) NOT NULL CHECK (kind IN ('login', 'content', 'transfer')),
			content_hash  VARCHAR(66) NOT NULL DEFAULT '',
			event_hash    VARCHAR(66) NOT NULL,
			score         NUMERIC(5,4) NOT NULL CHECK (score >= 0 AND score <= 1),
			level         VARCHAR(10) NOT NULL CHECK (level IN ('low', 'medium', 'high')),
			factors       JSONB NOT NULL DEFAULT '[]',
			risky         BOOLEAN NOT NULL DEFAULT FALSE,
			override      BOOLEAN NOT NULL DEFAULT FALSE,
			blocked       BOOLEAN NOT NULL DEFAULT FALSE,
			cooldown_set  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_scored_events_identity
			ON scored_events (identity, kind, created_at DESC);
	`)
	return err
}

func (s *PostgresStore) FetchRecent(ctx context.Context, identity string, kind Kind, limit int) ([]*ScoredEvent, error) {
	if limit <= 0 {
		limit = maxPerIdentity
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, kind, content_hash, event_hash, score, level, factors,
		       risky, override, blocked, cooldown_set, created_at
		FROM scored_events
		WHERE identity = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, identity, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*ScoredEvent
	for rows.Next() {
		var e ScoredEvent
		var factorsJSON []byte
		if err := rows.Scan(&e.ID, &e.Identity, &e.Kind, &e.ContentHash, &e.EventHash,
			&e.Score, &e.Level, &factorsJSON,
			&e.Risky, &e.Override, &e.Blocked, &e.CooldownSet, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(factorsJSON, &e.Factors)
		result = append(result, &e)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Append(ctx context.Context, event *ScoredEvent) error {
	factorsJSON, err := json.Marshal(event.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scored_events (id, identity, kind, content_hash, event_hash, score, level,
		                           factors, risky, override, blocked, cooldown_set, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, event.ID, event.Identity, string(event.Kind), event.ContentHash, event.EventHash,
		event.Score, string(event.Level), factorsJSON,
		event.Risky, event.Override, event.Blocked, event.CooldownSet, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}
