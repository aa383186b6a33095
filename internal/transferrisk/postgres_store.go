package transferrisk

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresTransferStore persists transfer records in PostgreSQL.
type PostgresTransferStore struct {
	db *sql.DB
}

// NewPostgresTransferStore creates a PostgreSQL-backed transfer store.
func NewPostgresTransferStore(db *sql.DB) *PostgresTransferStore {
	return &PostgresTransferStore{db: db}
}

// Migrate creates the transfer_events table if it doesn't exist.
func (s *PostgresTransferStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transfer_events (
			id             BIGSERIAL PRIMARY KEY,
			sender         VARCHAR(42) NOT NULL,
			recipient      VARCHAR(42) NOT NULL,
			amount_eth     NUMERIC(36,18) NOT NULL CHECK (amount_eth > 0),
			risk_score     NUMERIC(5,4) NOT NULL CHECK (risk_score >= 0 AND risk_score <= 1),
			level          VARCHAR(10) NOT NULL CHECK (level IN ('low', 'medium', 'high')),
			blocked        BOOLEAN NOT NULL DEFAULT FALSE,
			cooldown_until TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transfer_events_sender
			ON transfer_events (sender, created_at DESC);
	`)
	return err
}

func (s *PostgresTransferStore) FetchRecent(ctx context.Context, sender string, limit int) ([]*Transfer, error) {
	if limit <= 0 {
		limit = historyLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, recipient, amount_eth, risk_score, level, blocked, cooldown_until, created_at
		FROM transfer_events
		WHERE sender = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sender, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Transfer
	for rows.Next() {
		var t Transfer
		var cooldownUntil sql.NullTime
		if err := rows.Scan(&t.Sender, &t.Recipient, &t.AmountETH, &t.RiskScore,
			&t.Level, &t.Blocked, &cooldownUntil, &t.CreatedAt); err != nil {
			return nil, err
		}
		if cooldownUntil.Valid {
			t.CooldownUntil = cooldownUntil.Time
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (s *PostgresTransferStore) Append(ctx context.Context, transfer *Transfer) error {
	var cooldownUntil interface{}
	if !transfer.CooldownUntil.IsZero() {
		cooldownUntil = transfer.CooldownUntil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_events (sender, recipient, amount_eth, risk_score, level, blocked, cooldown_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, transfer.Sender, transfer.Recipient, transfer.AmountETH, transfer.RiskScore,
		transfer.Level, transfer.Blocked, cooldownUntil, transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

func (s *PostgresTransferStore) ActiveCooldown(ctx context.Context, sender string) (time.Time, error) {
	var until sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(cooldown_until)
		FROM transfer_events
		WHERE sender = $1 AND cooldown_until > NOW()
	`, sender).Scan(&until)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to check cooldown: %w", err)
	}
	if until.Valid {
		return until.Time, nil
	}
	return time.Time{}, nil
}
