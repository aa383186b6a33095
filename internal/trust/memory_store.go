package trust

import (
	"context"
	"sort"
	"sync"

	"github.com/sentinel-labs/sentinelx/internal/pagination"
)

// MemoryStore keeps trust states in memory for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*TrustState
}

// NewMemoryStore creates an in-memory trust store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*TrustState)}
}

func (s *MemoryStore) Get(_ context.Context, identity string) (*TrustState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[identity]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, state *TrustState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	s.states[state.Identity] = &cp
	return nil
}

func (s *MemoryStore) List(_ context.Context, before *pagination.Cursor, limit int) ([]*TrustState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*TrustState, 0, len(s.states))
	for _, state := range s.states {
		cp := *state
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastEvaluated.Equal(result[j].LastEvaluated) {
			return result[i].LastEvaluated.After(result[j].LastEvaluated)
		}
		return result[i].Identity > result[j].Identity
	})
	if before != nil {
		kept := result[:0]
		for _, state := range result {
			if state.LastEvaluated.Before(before.CreatedAt) ||
				(state.LastEvaluated.Equal(before.CreatedAt) && state.Identity < before.ID) {
				kept = append(kept, state)
			}
		}
		result = kept
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
