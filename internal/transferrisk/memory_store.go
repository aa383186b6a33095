package transferrisk

import (
	"context"
	"sync"
	"time"
)

// maxPerSender bounds stored transfers per sender.
const maxPerSender = 200

// MemoryTransferStore keeps transfer records in memory for demo/test use.
type MemoryTransferStore struct {
	mu        sync.RWMutex
	transfers map[string][]*Transfer
}

// NewMemoryTransferStore creates an in-memory transfer store.
func NewMemoryTransferStore() *MemoryTransferStore {
	return &MemoryTransferStore{transfers: make(map[string][]*Transfer)}
}

func (s *MemoryTransferStore) FetchRecent(_ context.Context, sender string, limit int) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.transfers[sender]
	if limit <= 0 || limit > len(stored) {
		limit = len(stored)
	}

	// Stored oldest-first; return most recent first.
	result := make([]*Transfer, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *stored[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryTransferStore) Append(_ context.Context, transfer *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *transfer
	list := append(s.transfers[transfer.Sender], &cp)
	if len(list) > maxPerSender {
		list = list[len(list)-maxPerSender:]
	}
	s.transfers[transfer.Sender] = list
	return nil
}

func (s *MemoryTransferStore) ActiveCooldown(_ context.Context, sender string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	var latest time.Time
	for _, t := range s.transfers[sender] {
		if t.CooldownUntil.After(now) && t.CooldownUntil.After(latest) {
			latest = t.CooldownUntil
		}
	}
	return latest, nil
}
