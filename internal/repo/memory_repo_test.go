package repo

import (
	"context"
	"testing"
	"time"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storetest"
)

func newMemory(userID, sessionID, content string, importance float64) *model.Memory {
	return &model.Memory{
		UserID:     userID,
		SessionID:  sessionID,
		Content:    content,
		Importance: importance,
	}
}

func mustCreateSession(t *testing.T, repo *SessionRepo, userID, id string) {
	t.Helper()
	if err := repo.Create(context.Background(), &model.Session{ID: id, UserID: userID}); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestMemoryRepoInsertAndGet(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")

	m := newMemory("alice", "s1", "Meeting notes about API design", 0.8)
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected an assigned id")
	}

	got, err := memories.Get(ctx, "alice", m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != m.Content {
		t.Errorf("content = %q, want %q", got.Content, m.Content)
	}
	if got.Importance != 0.8 {
		t.Errorf("importance = %v, want 0.8", got.Importance)
	}
}

func TestMemoryRepoGetNotFound(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)

	_, err := memories.Get(context.Background(), "alice", "missing")
	if !memexerr.Is(err, memexerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestMemoryRepoSearchFTS(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	m := newMemory("alice", "s1", "Meeting notes about API design", 0.8)
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	filter := &model.QueryFilter{UserID: "alice", Keywords: []string{"API"}, Limit: 10}
	page, err := memories.SearchFTS(ctx, filter)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Data) != 1 {
		t.Fatalf("expected 1 result, got %d", len(page.Data))
	}
	if page.Data[0].Memory.ID != m.ID {
		t.Errorf("got id %s, want %s", page.Data[0].Memory.ID, m.ID)
	}
	if page.Data[0].Relevance <= 0 || page.Data[0].Relevance > 1 {
		t.Errorf("relevance %v out of (0,1] range", page.Data[0].Relevance)
	}
}

func TestMemoryRepoListByFilter(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	for i := 0; i < 3; i++ {
		m := newMemory("alice", "s1", "note", 0.5)
		if err := memories.Insert(ctx, m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	filter := &model.QueryFilter{UserID: "alice", Limit: 2}
	page, err := memories.ListByFilter(ctx, filter)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page.Data))
	}
	if !page.HasNext {
		t.Error("expected has_next true")
	}
}

func TestMemoryRepoUpdate(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	m := newMemory("alice", "s1", "original", 0.5)
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	newContent := "revised"
	updated, err := memories.Update(ctx, "alice", m.ID, &model.MemoryPatch{Content: &newContent})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != newContent {
		t.Errorf("content = %q, want %q", updated.Content, newContent)
	}
	if !updated.UpdatedAt.After(m.UpdatedAt) && !updated.UpdatedAt.Equal(m.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
}

func TestMemoryRepoDelete(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	m := newMemory("alice", "s1", "note", 0.5)
	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := memories.Delete(ctx, "alice", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := memories.Get(ctx, "alice", m.ID); !memexerr.Is(err, memexerr.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestMemoryRepoInsertManyFailOnErrorFalse(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	batch := []*model.Memory{
		newMemory("alice", "s1", "first", 0.5),
		newMemory("alice", "s1", "second", 1.5),
		newMemory("alice", "s1", "third", 0.5),
	}

	resp, err := memories.InsertMany(ctx, batch, false)
	if err != nil {
		t.Fatalf("insert many: %v", err)
	}
	if resp.SuccessCount != 2 || resp.FailureCount != 1 {
		t.Fatalf("success=%d failure=%d, want 2/1", resp.SuccessCount, resp.FailureCount)
	}
	if resp.Results[1].Kind != string(memexerr.Invalid) {
		t.Errorf("expected Invalid at index 1, got %s", resp.Results[1].Kind)
	}
}

func TestMemoryRepoInsertManyFailOnErrorTrue(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	batch := []*model.Memory{
		newMemory("alice", "s1", "first", 0.5),
		newMemory("alice", "s1", "second", 1.5),
	}

	resp, err := memories.InsertMany(ctx, batch, true)
	if err != nil {
		t.Fatalf("insert many: %v", err)
	}
	if resp.SuccessCount != 0 {
		t.Fatalf("expected no successes when fail_on_error aborts the batch, got %d", resp.SuccessCount)
	}
	if _, err := memories.Get(ctx, "alice", resp.Results[0].ID); err == nil {
		t.Error("expected the valid row to not be persisted when the batch is aborted")
	}
}

func TestMemoryRepoPurgeExpired(t *testing.T) {
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
	ids, err := memories.PurgeExpired(ctx, future)
	if err != nil {
		t.Fatalf("purge expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != m.ID {
		t.Fatalf("expected %s to be purged, got %v", m.ID, ids)
	}

	if _, err := memories.Get(ctx, "alice", m.ID); !memexerr.Is(err, memexerr.NotFound) {
		t.Fatalf("expected NotFound after purge, got %v", err)
	}

	again, err := memories.PurgeExpired(ctx, future)
	if err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected decay to be monotone, got %d ids on second purge", len(again))
	}
}
