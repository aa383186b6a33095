// Package audit implements the Merkle batching service for the event
// audit trail.
//
// Scored-event hashes accumulate in a pending queue; batches are cut when
// the queue reaches a size threshold or on a fixed interval. Each batch is
// committed under a keccak-256 Merkle root with sorted-pair hashing, and
// inclusion proofs can be generated and verified after the fact. Roots are
// produced for later on-chain anchoring; submission itself happens outside
// this package and is reflected only in batch status.
package audit

import (
	"context"
	"time"
)

// Batch lifecycle status. Transitions past "pending" are driven by the
// external chain-submission collaborator.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
)

// PendingEvent is one queued event hash awaiting batching.
type PendingEvent struct {
	EventHash  string            `json:"eventHash"`
	Kind       string            `json:"kind"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// Batch is a set of event hashes committed under one Merkle root.
// Immutable after creation except for Status/TxHash.
type Batch struct {
	ID         string         `json:"id"`
	Root       string         `json:"merkleRoot"`
	EventCount int            `json:"eventCount"`
	LeafHashes []string       `json:"eventHashes"`
	Events     []PendingEvent `json:"events,omitempty"`
	Status     string         `json:"status"`
	TxHash     string         `json:"txHash,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Proof is an inclusion proof for one leaf in a batch.
type Proof struct {
	EventHash string   `json:"eventHash"`
	Root      string   `json:"merkleRoot"`
	Siblings  []string `json:"proof"`
	LeafIndex int      `json:"leafIndex"`
	Valid     bool     `json:"isValid"`
}

// BatchSummary is the read-only projection exposed by Stats.
type BatchSummary struct {
	ID         string    `json:"id"`
	Root       string    `json:"merkleRoot"`
	EventCount int       `json:"eventCount"`
	Status     string    `json:"status"`
	TxHash     string    `json:"txHash,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Stats is a snapshot of batcher state. No side effects.
type Stats struct {
	PendingEvents      int            `json:"pendingEvents"`
	TotalBatches       int            `json:"totalBatches"`
	TotalEventsBatched int            `json:"totalEventsBatched"`
	Batches            []BatchSummary `json:"batches"`
}

// BatchStore persists cut batches.
type BatchStore interface {
	SaveBatch(ctx context.Context, batch *Batch) error
	UpdateStatus(ctx context.Context, id, status, txHash string) error
	ListRecent(ctx context.Context, limit int) ([]*Batch, error)
}
