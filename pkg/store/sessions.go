package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/concierged/concierge/pkg/convo"
)

const defaultCacheSize = 1024

// Sessions hands out per-user conversation contexts with atomic
// get-or-create semantics. Two concurrent first requests for the same user
// id must never produce two divergent contexts; the per-key lock also
// serializes a whole turn (route, agent call, outcome recording).
//
// The hydrated-context cache is an LRU in front of the store: eviction only
// drops the in-memory copy, every mutation is persisted before release.
type Sessions struct {
	store ContextStore
	opts  []convo.Option

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache *lru.Cache[string, *convo.Context]
}

func NewSessions(store ContextStore, cacheSize int, opts ...convo.Option) (*Sessions, error) {
	if store == nil {
		return nil, fmt.Errorf("sessions store is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, *convo.Context](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Sessions{
		store: store,
		opts:  opts,
		locks: make(map[string]*sync.Mutex),
		cache: cache,
	}, nil
}

func (s *Sessions) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[userID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[userID] = l
	return l
}

// Acquire returns the user's context with its per-user lock held. The
// caller must invoke release when the turn is finished. A store failure is
// returned as-is and never converted into a fresh context.
func (s *Sessions) Acquire(ctx context.Context, userID string) (*convo.Context, func(), error) {
	lock := s.lockFor(userID)
	lock.Lock()

	if c, ok := s.cache.Get(userID); ok {
		return c, lock.Unlock, nil
	}

	snap, err := s.store.LoadContext(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		c := convo.New(userID, s.opts...)
		s.cache.Add(userID, c)
		return c, lock.Unlock, nil
	case err != nil:
		lock.Unlock()
		return nil, nil, fmt.Errorf("load session %s: %w", userID, err)
	}

	c, err := convo.FromSnapshot(snap, s.opts...)
	if err != nil {
		lock.Unlock()
		return nil, nil, fmt.Errorf("restore session %s: %w", userID, err)
	}
	s.cache.Add(userID, c)
	return c, lock.Unlock, nil
}

// Persist writes the context's snapshot through to the store. Call while
// still holding the per-user lock from Acquire.
func (s *Sessions) Persist(ctx context.Context, c *convo.Context) error {
	if err := s.store.SaveContext(ctx, c.UserID, c.Snapshot()); err != nil {
		return fmt.Errorf("persist session %s: %w", c.UserID, err)
	}
	return nil
}

// Evict drops the cached copy, forcing the next Acquire to rehydrate from
// the store.
func (s *Sessions) Evict(userID string) {
	s.cache.Remove(userID)
}
