package session

import (
	"context"
	"slices"
	"sync"
)

const shardCount = 64

// Store persists sessions. Implementations must be safe for concurrent use;
// per-user ordering is enforced by Manager, not the store.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, bool, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, userID int64) error
	// Range calls fn for every session until fn returns false.
	Range(ctx context.Context, fn func(Session) bool) error
}

func shardOf(userID int64) int {
	return int(uint64(userID) % shardCount)
}

type memoryShard struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// MemoryStore keeps sessions in process memory, sharded to reduce lock contention.
type MemoryStore struct {
	shards [shardCount]memoryShard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[int64]Session)
	}
	return s
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, bool, error) {
	sh := &m.shards[shardOf(userID)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[userID]
	return s, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	sh := &m.shards[shardOf(s.UserID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	// Callers keep their copy; the stored one must not share card slices.
	s.Tarot.Cards = slices.Clone(s.Tarot.Cards)
	sh.sessions[s.UserID] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	sh := &m.shards[shardOf(userID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, userID)
	return nil
}

func (m *MemoryStore) Range(ctx context.Context, fn func(Session) bool) error {
	for i := range m.shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh := &m.shards[i]
		sh.mu.RLock()
		snapshot := make([]Session, 0, len(sh.sessions))
		for _, s := range sh.sessions {
			snapshot = append(snapshot, s)
		}
		sh.mu.RUnlock()
		for _, s := range snapshot {
			if !fn(s) {
				return nil
			}
		}
	}
	return nil
}
