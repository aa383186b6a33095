package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PostgresBatchStore persists cut batches in PostgreSQL.
type PostgresBatchStore struct {
	db *sql.DB
}

// NewPostgresBatchStore creates a PostgreSQL-backed batch store.
func NewPostgresBatchStore(db *sql.DB) *PostgresBatchStore {
	return &PostgresBatchStore{db: db}
}

// Migrate creates the audit_batches table if it doesn't exist.
func (s *PostgresBatchStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_batches (
			id           VARCHAR(36) PRIMARY KEY,
			root         VARCHAR(66) NOT NULL,
			event_count  INT NOT NULL CHECK (event_count > 0),
			leaf_hashes  TEXT[] NOT NULL,
			events       JSONB NOT NULL DEFAULT '[]',
			status       VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'submitted', 'confirmed')),
			tx_hash      VARCHAR(66) NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_audit_batches_created
			ON audit_batches (created_at DESC);
	`)
	return err
}

func (s *PostgresBatchStore) SaveBatch(ctx context.Context, batch *Batch) error {
	eventsJSON, err := json.Marshal(batch.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal batch events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_batches (id, root, event_count, leaf_hashes, events, status, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, batch.ID, batch.Root, batch.EventCount, pq.Array(batch.LeafHashes),
		eventsJSON, batch.Status, batch.TxHash, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

func (s *PostgresBatchStore) UpdateStatus(ctx context.Context, id, status, txHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_batches
		SET status = $2, tx_hash = CASE WHEN $3 = '' THEN tx_hash ELSE $3 END
		WHERE id = $1
	`, id, status, txHash)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}
	return nil
}

func (s *PostgresBatchStore) ListRecent(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = recentBatchLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root, event_count, leaf_hashes, events, status, tx_hash, created_at
		FROM audit_batches
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Batch
	for rows.Next() {
		var b Batch
		var eventsJSON []byte
		if err := rows.Scan(&b.ID, &b.Root, &b.EventCount, pq.Array(&b.LeafHashes),
			&eventsJSON, &b.Status, &b.TxHash, &b.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(eventsJSON, &b.Events)
		result = append(result, &b)
	}
	return result, rows.Err()
}
