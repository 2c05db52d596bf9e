package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/pkg/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")
	cfg.AutoDecayEnabled = false
	cfg.EnableRequestLimits = false

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func newMemory(userID, sessionID, content string, importance float64) *model.Memory {
	return &model.Memory{UserID: userID, SessionID: sessionID, Content: content, Importance: importance}
}

func TestEngineSaveCreatesSessionImplicitly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	m := newMemory("alice", "s1", "first note", 0.5)
	saved, err := e.Save(ctx, m)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected an assigned id")
	}

	if _, err := e.GetSession(ctx, "alice", "s1"); err != nil {
		t.Fatalf("expected session to be implicitly created, got %v", err)
	}
}

func TestEngineSaveRejectsInvalidImportance(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Save(ctx, newMemory("alice", "s1", "note", 1.5))
	if !memexerr.Is(err, memexerr.Invalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
}

func TestEngineSaveBatchPartialFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	batch := []*model.Memory{
		newMemory("", "s1", "first", 0.5),
		newMemory("", "s1", "second", 1.5),
		newMemory("", "s1", "third", 0.5),
	}
	resp, err := e.SaveBatch(ctx, "alice", batch, false)
	if err != nil {
		t.Fatalf("save batch: %v", err)
	}
	if resp.SuccessCount != 2 || resp.FailureCount != 1 {
		t.Fatalf("success=%d failure=%d, want 2/1", resp.SuccessCount, resp.FailureCount)
	}
}

func TestEngineQuotaExceededWithoutAutoEvict(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.UpdateDecayPolicy(model.DecayPolicy{MaxMemoriesPerUser: 2, AutoEvictOnQuota: false})

	for i := 0; i < 2; i++ {
		if _, err := e.Save(ctx, newMemory("alice", "s1", "note", 0.5)); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	_, err := e.Save(ctx, newMemory("alice", "s1", "over quota", 0.5))
	if !memexerr.Is(err, memexerr.QuotaExceeded) {
		t.Fatalf("expected QuotaExceeded, got %v", err)
	}
}

func TestEngineQuotaAutoEvictsLowestImportance(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.UpdateDecayPolicy(model.DecayPolicy{MaxMemoriesPerUser: 3, AutoEvictOnQuota: true, ImportanceThreshold: 0.3})

	var lowest *model.Memory
	for _, importance := range []float64{0.9, 0.5, 0.1} {
		m, err := e.Save(ctx, newMemory("alice", "s1", "note", importance))
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if importance == 0.1 {
			lowest = m
		}
	}

	if _, err := e.Save(ctx, newMemory("alice", "s1", "newest", 0.4)); err != nil {
		t.Fatalf("save over quota with auto-evict: %v", err)
	}

	if _, err := e.GetMemory(ctx, "alice", lowest.ID); !memexerr.Is(err, memexerr.NotFound) {
		t.Fatalf("expected lowest-importance memory evicted, got %v", err)
	}
}

func TestEngineConcurrentSavesRespectQuota(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.UpdateDecayPolicy(model.DecayPolicy{MaxMemoriesPerUser: 5, AutoEvictOnQuota: false})

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, quotaErrors := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Save(ctx, newMemory("alice", "s1", "note", 0.5))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if memexerr.Is(err, memexerr.QuotaExceeded) {
				quotaErrors++
			}
		}()
	}
	wg.Wait()

	if successes != 5 {
		t.Errorf("successes = %d, want 5", successes)
	}
	if quotaErrors != 5 {
		t.Errorf("quota errors = %d, want 5", quotaErrors)
	}
}

func TestEngineRecallTouchesAccessBookkeeping(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	m, err := e.Save(ctx, newMemory("alice", "s1", "note", 0.5))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err = e.Recall(ctx, &model.QueryFilter{UserID: "alice", Limit: 10})
	if err != nil {
		t.Fatalf("recall: %v", err)
	}

	e.access.flushNow()

	got, err := e.memories.Get(ctx, "alice", m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccessCount == 0 {
		t.Error("expected recall to bump access_count after a flush")
	}
}

func TestEngineDeleteSessionRequiresCascade(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Save(ctx, newMemory("alice", "s1", "note", 0.5)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := e.DeleteSession(ctx, "alice", "s1", false); !memexerr.Is(err, memexerr.Invalid) {
		t.Fatalf("expected Invalid without cascade, got %v", err)
	}
	if err := e.DeleteSession(ctx, "alice", "s1", true); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
}

func TestEngineSummarizeSession(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, importance := range []float64{0.9, 0.2} {
		if _, err := e.Save(ctx, newMemory("alice", "s1", "project roadmap discussion", importance)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	summary, err := e.SummarizeSession(ctx, "alice", "s1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.MemoryCount != 2 {
		t.Fatalf("memory_count = %d, want 2", summary.MemoryCount)
	}
}
