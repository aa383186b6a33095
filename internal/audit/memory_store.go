package audit

import (
	"context"
	"sync"
)

// MemoryBatchStore keeps cut batches in memory for demo/test use.
type MemoryBatchStore struct {
	mu      sync.RWMutex
	batches []*Batch
}

// NewMemoryBatchStore creates an in-memory batch store.
func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{}
}

func (s *MemoryBatchStore) SaveBatch(_ context.Context, batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *batch
	cp.LeafHashes = append([]string(nil), batch.LeafHashes...)
	cp.Events = append([]PendingEvent(nil), batch.Events...)
	s.batches = append(s.batches, &cp)
	return nil
}

func (s *MemoryBatchStore) UpdateStatus(_ context.Context, id, status, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.batches {
		if b.ID == id {
			b.Status = status
			if txHash != "" {
				b.TxHash = txHash
			}
			return nil
		}
	}
	return nil
}

func (s *MemoryBatchStore) ListRecent(_ context.Context, limit int) ([]*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.batches) {
		limit = len(s.batches)
	}

	result := make([]*Batch, 0, limit)
	for i := len(s.batches) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *s.batches[i]
		result = append(result, &cp)
	}
	return result, nil
}
