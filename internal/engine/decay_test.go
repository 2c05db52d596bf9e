package engine

import (
	"context"
	"testing"
	"time"

	"github.com/memexhq/memex/internal/model"
)

// insertDirect bypasses Save's own quota enforcement so a test can put a
// user over quota and then exercise the decay subsystem's eviction pass.
// It creates the memory's session first, since memories.session_id is a
// foreign key.
func insertDirect(t *testing.T, e *Engine, m *model.Memory) {
	t.Helper()
	if err := e.ensureSession(context.Background(), m.UserID, m.SessionID, time.Now().UTC()); err != nil {
		t.Fatalf("ensure session: %v", err)
	}
	if err := e.memories.Insert(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestEngineDecayEvictsOverQuota(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, importance := range []float64{0.9, 0.5, 0.1} {
		insertDirect(t, e, newMemory("alice", "s1", "note", importance))
	}
	e.UpdateDecayPolicy(model.DecayPolicy{MaxMemoriesPerUser: 2})

	stats, err := e.Decay(ctx)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if stats.MemoriesEvicted != 1 {
		t.Fatalf("memories_evicted = %d, want 1", stats.MemoriesEvicted)
	}
}

func TestEngineAnalyzeDecayDoesNotMutate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, importance := range []float64{0.9, 0.5, 0.1} {
		insertDirect(t, e, newMemory("alice", "s1", "note", importance))
	}
	e.UpdateDecayPolicy(model.DecayPolicy{MaxMemoriesPerUser: 2})

	plan, err := e.AnalyzeDecay(ctx)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(plan.WouldEvict) != 1 {
		t.Fatalf("would_evict = %v, want 1 entry", plan.WouldEvict)
	}

	count, err := e.memories.CountByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected analyze to leave all 3 memories in place, got %d", count)
	}
}

func TestEngineUpdateDecayPolicyTakesEffectOnNextPass(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, importance := range []float64{0.9, 0.5, 0.1} {
		insertDirect(t, e, newMemory("alice", "s1", "note", importance))
	}

	if stats, err := e.Decay(ctx); err != nil {
		t.Fatalf("decay: %v", err)
	} else if stats.MemoriesEvicted != 0 {
		t.Fatalf("expected no eviction before a quota was configured, got %d", stats.MemoriesEvicted)
	}

	e.UpdateDecayPolicy(model.DecayPolicy{MaxMemoriesPerUser: 2})

	stats, err := e.Decay(ctx)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if stats.MemoriesEvicted != 1 {
		t.Fatalf("expected the updated policy to evict the lowest-importance memory, got %d", stats.MemoriesEvicted)
	}
}
