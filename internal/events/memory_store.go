package events

import (
	"context"
	"sync"
)

// maxPerIdentity bounds the retained window per identity and kind.
const maxPerIdentity = 100

// MemoryStore is an in-memory HistoryProvider for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]*ScoredEvent // identity+"/"+kind → events, oldest first
}

// NewMemoryStore creates an in-memory event history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]*ScoredEvent)}
}

func key(identity string, kind Kind) string {
	return identity + "/" + string(kind)
}

func (s *MemoryStore) FetchRecent(_ context.Context, identity string, kind Kind, limit int) ([]*ScoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.events[key(identity, kind)]
	if len(all) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}

	// Most recent first.
	result := make([]*ScoredEvent, 0, limit)
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *all[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) Append(_ context.Context, event *ScoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(event.Identity, event.Kind)
	cp := *event
	s.events[k] = append(s.events[k], &cp)

	// Keep a bounded window.
	if n := len(s.events[k]); n > maxPerIdentity {
		s.events[k] = s.events[k][n-maxPerIdentity:]
	}
	return nil
}
