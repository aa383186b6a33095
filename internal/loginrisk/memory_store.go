package loginrisk

import (
	"context"
	"sync"
)

// maxPerIdentity bounds stored attempts per identity.
const maxPerIdentity = 200

// MemoryAttemptStore keeps login attempts in memory for demo/test use.
type MemoryAttemptStore struct {
	mu       sync.RWMutex
	attempts map[string][]*Attempt
}

// NewMemoryAttemptStore creates an in-memory attempt store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{attempts: make(map[string][]*Attempt)}
}

func (s *MemoryAttemptStore) FetchRecent(_ context.Context, identity string, limit int) ([]*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.attempts[identity]
	if limit <= 0 || limit > len(stored) {
		limit = len(stored)
	}

	// Stored oldest-first; return most recent first.
	result := make([]*Attempt, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *stored[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryAttemptStore) Append(_ context.Context, attempt *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *attempt
	list := append(s.attempts[attempt.Identity], &cp)
	if len(list) > maxPerIdentity {
		list = list[len(list)-maxPerIdentity:]
	}
	s.attempts[attempt.Identity] = list
	return nil
}
