package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/idgen"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
)

// recentBatchLimit bounds how many batch summaries Stats returns.
const recentBatchLimit = 10

// Batcher accumulates event hashes and cuts Merkle batches. One mutex
// guards the pending queue and batch list: appends, size-triggered cuts,
// and timer-triggered cuts are atomic with respect to each other, so a
// leaf is never lost or double-counted across a cut boundary.
type Batcher struct {
	mu          sync.Mutex
	pending     []PendingEvent
	batches     []*Batch
	trees       map[string]*Tree // root → tree, for proof generation
	totalEvents int

	batchSize int
	store     BatchStore // nil = in-memory only
	logger    *slog.Logger

	onCut func(*Batch)
}

// NewBatcher creates a batcher that cuts when the queue reaches batchSize.
// store may be nil for in-memory operation.
func NewBatcher(batchSize int, store BatchStore, logger *slog.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Batcher{
		trees:     make(map[string]*Tree),
		batchSize: batchSize,
		store:     store,
		logger:    logger,
	}
}

// AddEvent appends an event hash to the pending queue. If the queue
// reaches the size threshold the batch is cut immediately and returned;
// otherwise the return is nil.
func (b *Batcher) AddEvent(eventHash, kind string, metadata map[string]string) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, PendingEvent{
		EventHash:  eventHash,
		Kind:       kind,
		Metadata:   metadata,
		EnqueuedAt: time.Now().UTC(),
	})
	metrics.AuditPendingEvents.Set(float64(len(b.pending)))

	if len(b.pending) >= b.batchSize {
		return b.cutLocked()
	}
	return nil
}

// CutBatch cuts a batch from the current pending queue. An empty queue is
// a no-op returning nil, not an error.
func (b *Batcher) CutBatch() *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cutLocked()
}

// cutLocked creates a batch from the pending queue. Caller holds b.mu.
func (b *Batcher) cutLocked() *Batch {
	if len(b.pending) == 0 {
		return nil
	}

	events := b.pending
	b.pending = nil

	leafHashes := make([]string, len(events))
	for i, e := range events {
		leafHashes[i] = e.EventHash
	}

	tree := NewTree(leafHashes)
	batch := &Batch{
		ID:         idgen.WithPrefix("batch_"),
		Root:       tree.Root(),
		EventCount: len(events),
		LeafHashes: leafHashes,
		Events:     events,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	b.trees[batch.Root] = tree
	b.batches = append(b.batches, batch)
	b.totalEvents += len(events)

	metrics.AuditBatchesCut.Inc()
	metrics.AuditPendingEvents.Set(0)

	// Persist asynchronously (best-effort; the in-memory copy is
	// authoritative for proofs).
	if b.store != nil {
		saved := batch
		go func() {
			if err := b.store.SaveBatch(context.Background(), saved); err != nil {
				b.logger.Warn("failed to persist audit batch", "root", saved.Root, "error", err)
			}
		}()
	}

	if b.onCut != nil {
		go b.onCut(batch)
	}

	b.logger.Info("merkle batch cut",
		"root", batch.Root,
		"events", batch.EventCount,
	)
	return batch
}

// OnCut registers a callback invoked (on its own goroutine) whenever a
// batch is cut. Set before the batcher starts receiving events.
func (b *Batcher) OnCut(fn func(*Batch)) {
	b.onCut = fn
}

// GetProof generates an inclusion proof for an event hash within the batch
// identified by root. Returns nil if the root or leaf is unknown.
func (b *Batcher) GetProof(root, eventHash string) *Proof {
	b.mu.Lock()
	tree, ok := b.trees[root]
	b.mu.Unlock()
	if !ok {
		return nil
	}

	index := tree.LeafIndex(eventHash)
	if index < 0 {
		return nil
	}

	siblings := tree.Proof(index)
	return &Proof{
		EventHash: eventHash,
		Root:      root,
		Siblings:  siblings,
		LeafIndex: index,
		Valid:     VerifyProof(eventHash, siblings, root),
	}
}

// Stats returns a read-only snapshot of batcher state.
func (b *Batcher) Stats() *Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := len(b.batches) - recentBatchLimit
	if start < 0 {
		start = 0
	}

	summaries := make([]BatchSummary, 0, len(b.batches)-start)
	for _, batch := range b.batches[start:] {
		summaries = append(summaries, BatchSummary{
			ID:         batch.ID,
			Root:       batch.Root,
			EventCount: batch.EventCount,
			Status:     batch.Status,
			TxHash:     batch.TxHash,
			CreatedAt:  batch.CreatedAt,
		})
	}

	return &Stats{
		PendingEvents:      len(b.pending),
		TotalBatches:       len(b.batches),
		TotalEventsBatched: b.totalEvents,
		Batches:            summaries,
	}
}

// PendingCount returns the current pending-queue length.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
