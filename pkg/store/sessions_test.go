package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/concierged/concierge/pkg/convo"
)

type flakyStore struct {
	mu       sync.Mutex
	failLoad bool
	saved    map[string]convo.Snapshot
}

func newFlakyStore() *flakyStore {
	return &flakyStore{saved: make(map[string]convo.Snapshot)}
}

func (f *flakyStore) LoadContext(_ context.Context, userID string) (convo.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return convo.Snapshot{}, fmt.Errorf("store outage")
	}
	snap, ok := f.saved[userID]
	if !ok {
		return convo.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (f *flakyStore) SaveContext(_ context.Context, userID string, snap convo.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[userID] = snap
	return nil
}

func (f *flakyStore) DeleteContext(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, userID)
	return nil
}

func TestSessions_GetOrCreateIsAtomic(t *testing.T) {
	sessions, err := NewSessions(newFlakyStore(), 16)
	if err != nil {
		t.Fatal(err)
	}

	const workers = 16
	contexts := make([]*convo.Context, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, release, err := sessions.Acquire(context.Background(), "newuser")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			contexts[i] = c
			release()
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if contexts[i] != contexts[0] {
			t.Fatal("concurrent Acquire produced divergent contexts for the same user")
		}
	}
}

func TestSessions_LoadFailureIsNotAFreshContext(t *testing.T) {
	fs := newFlakyStore()
	fs.failLoad = true
	sessions, err := NewSessions(fs, 16)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = sessions.Acquire(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected load failure to surface, not a fresh context")
	}

	// Once the store recovers the user must be reachable again.
	fs.failLoad = false
	c, release, err := sessions.Acquire(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Acquire after recovery: %v", err)
	}
	defer release()
	if c.UserID != "u1" {
		t.Errorf("user id = %q", c.UserID)
	}
}

func TestSessions_EvictRehydratesFromStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	sessions, err := NewSessions(s, 16)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c, release, err := sessions.Acquire(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	c.SetActiveAgent("todo_agent")
	if err := sessions.Persist(ctx, c); err != nil {
		t.Fatal(err)
	}
	release()

	sessions.Evict("u1")

	c2, release2, err := sessions.Acquire(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	defer release2()
	if c2 == c {
		t.Fatal("expected a rehydrated context after eviction")
	}
	if c2.ActiveAgent != "todo_agent" {
		t.Errorf("active agent = %q, want persisted value", c2.ActiveAgent)
	}
}

func TestSessions_PropagatesRestoreError(t *testing.T) {
	fs := newFlakyStore()
	fs.saved["bad"] = convo.Snapshot{UserID: "bad", State: "NOT_A_STATE"}
	sessions, err := NewSessions(fs, 16)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = sessions.Acquire(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected restore error for invalid state")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("restore failure must not read as not-found")
	}
}

func TestUserIdentity(t *testing.T) {
	id := UserIdentity{Channel: "Discord", ActorID: "12345"}
	key := id.UserKey()
	if !isVersionedUserKey(key) {
		t.Fatalf("key %q missing version prefix", key)
	}

	// Channel is case-insensitive, actor id is not.
	same := UserIdentity{Channel: "discord", ActorID: "12345"}
	if same.UserKey() != key {
		t.Error("channel casing should not change the key")
	}
	other := UserIdentity{Channel: "discord", ActorID: "54321"}
	if other.UserKey() == key {
		t.Error("different actors must get different keys")
	}

	resolved, err := ResolveUserKey("", "discord", "12345")
	if err != nil {
		t.Fatal(err)
	}
	if resolved != key {
		t.Errorf("ResolveUserKey = %q, want %q", resolved, key)
	}
	if again, _ := ResolveUserKey(key, "", ""); again != key {
		t.Error("an already-derived key must pass through")
	}
	if _, err := ResolveUserKey("", "", ""); err == nil {
		t.Error("empty identity should fail")
	}
}
