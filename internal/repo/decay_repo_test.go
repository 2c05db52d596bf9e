package repo

import (
	"context"
	"testing"
	"time"

	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storetest"
)

func TestRunDecayPassExpiry(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()
	mustCreateSession(t, sessions, "alice", "s1")

	ttl := 1
	m := newMemory("alice", "s1", "short-lived", 0.5)
	m.TTLHours = &ttl
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	policy := model.DecayPolicy{}
	future := time.Now().UTC().Add(2 * time.Hour)

	stats, err := memories.RunDecayPass(ctx, policy, future)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if stats.MemoriesExpired != 1 {
		t.Fatalf("memories_expired = %d, want 1", stats.MemoriesExpired)
	}

	again, err := memories.RunDecayPass(ctx, policy, future)
	if err != nil {
		t.Fatalf("second decay: %v", err)
	}
	if again.MemoriesExpired != 0 {
		t.Errorf("decay not monotone: expired %d on second run", again.MemoriesExpired)
	}
}

func TestRunDecayPassEvictsOverQuota(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()
	mustCreateSession(t, sessions, "alice", "s1")

	for _, importance := range []float64{0.9, 0.5, 0.1} {
		if err := memories.Insert(ctx, newMemory("alice", "s1", "note", importance)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	policy := model.DecayPolicy{MaxMemoriesPerUser: 2}
	now := time.Now().UTC()

	stats, err := memories.RunDecayPass(ctx, policy, now)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if stats.MemoriesEvicted != 1 {
		t.Fatalf("memories_evicted = %d, want 1", stats.MemoriesEvicted)
	}

	count, err := memories.CountByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 memories left, got %d", count)
	}
}

func TestRunDecayPassLowImportanceSweep(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()
	mustCreateSession(t, sessions, "alice", "s1")

	m := newMemory("alice", "s1", "stale and unimportant", 0.1)
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	policy := model.DecayPolicy{DefaultMemoryTTLHours: 1, ImportanceThreshold: 0.3}
	future := time.Now().UTC().Add(2 * time.Hour)

	stats, err := memories.RunDecayPass(ctx, policy, future)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if stats.MemoriesEvicted != 1 {
		t.Fatalf("memories_evicted = %d, want 1", stats.MemoriesEvicted)
	}
}

func TestAnalyzeDecayPassIsReadOnly(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()
	mustCreateSession(t, sessions, "alice", "s1")

	ttl := 1
	m := newMemory("alice", "s1", "short-lived", 0.5)
	m.TTLHours = &ttl
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	future := time.Now().UTC().Add(2 * time.Hour)
	plan, err := memories.AnalyzeDecayPass(ctx, model.DecayPolicy{}, future)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(plan.WouldExpire) != 1 {
		t.Fatalf("would_expire = %v, want 1 entry", plan.WouldExpire)
	}

	if _, err := memories.Get(ctx, "alice", m.ID); err != nil {
		t.Fatalf("expected memory to still exist after analyze, got %v", err)
	}
}
