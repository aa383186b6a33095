// Package syncutil provides keyed locking for per-identity critical
// sections.
package syncutil

import (
	"context"
	"hash/fnv"
)

const shardCount = 128

// ContextShardedMutex serializes work per key while letting waiters give
// up when their context ends. Keys map onto a fixed shard pool, so two
// identities may share a lock but one identity never runs concurrently
// with itself.
//
// The zero value is not ready to use; construct with
// NewContextShardedMutex.
type ContextShardedMutex struct {
	shards [shardCount]chan struct{}
}

// NewContextShardedMutex returns a mutex pool with every shard unlocked.
func NewContextShardedMutex() *ContextShardedMutex {
	m := &ContextShardedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// LockContext acquires the shard for key. It returns the unlock function
// on success; the caller must invoke it exactly once. If ctx ends while
// waiting, the lock is not held and ctx.Err is returned.
func (m *ContextShardedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	shard := m.shards[shardFor(key)]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
