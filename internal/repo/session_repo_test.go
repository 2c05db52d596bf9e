package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storetest"
)

func TestSessionRepoCreateAndGet(t *testing.T) {
	store := storetest.NewStore(t)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	s := &model.Session{UserID: "alice", Name: "planning"}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected an assigned id")
	}

	got, err := sessions.Get(ctx, "alice", s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "planning" {
		t.Errorf("name = %q, want planning", got.Name)
	}
}

func TestSessionRepoEnsureAndTouchCreatesImplicitly(t *testing.T) {
	store := storetest.NewStore(t)
	sessions := NewSessionRepo(store)
	memories := NewMemoryRepo(store)
	ctx := context.Background()

	m := newMemory("alice", "new-session", "first write into an unknown session", 0.5)
	if err := memories.Insert(ctx, m); err == nil {
		t.Fatal("expected insert to fail until the session row exists (FK constraint)")
	}

	if err := store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		return sessions.EnsureAndTouch(ctx, tx, "alice", "new-session", m.CreatedAt)
	}); err != nil {
		t.Fatalf("ensure and touch: %v", err)
	}

	got, err := sessions.Get(ctx, "alice", "new-session")
	if err != nil {
		t.Fatalf("get implicitly created session: %v", err)
	}
	if got.ID != "new-session" {
		t.Errorf("id = %q, want new-session", got.ID)
	}

	if err := memories.Insert(ctx, m); err != nil {
		t.Fatalf("insert into now-existing session: %v", err)
	}
}

func TestSessionRepoDeleteRequiresCascadeWhenNonEmpty(t *testing.T) {
	store := storetest.NewStore(t)
	sessions := NewSessionRepo(store)
	memories := NewMemoryRepo(store)
	ctx := context.Background()

	s := &model.Session{UserID: "alice"}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := memories.Insert(ctx, newMemory("alice", s.ID, "note", 0.5)); err != nil {
			t.Fatalf("insert memory: %v", err)
		}
	}

	if err := sessions.Delete(ctx, "alice", s.ID, false); !memexerr.Is(err, memexerr.Invalid) {
		t.Fatalf("expected Invalid without cascade, got %v", err)
	}

	if err := sessions.Delete(ctx, "alice", s.ID, true); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}

	if _, err := sessions.Get(ctx, "alice", s.ID); !memexerr.Is(err, memexerr.NotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}

	remaining, err := memories.CountBySession(ctx, s.ID)
	if err != nil {
		t.Fatalf("count by session: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected cascade to remove memories, %d remain", remaining)
	}
}

func TestSessionRepoListByUser(t *testing.T) {
	store := storetest.NewStore(t)
	sessions := NewSessionRepo(store)
	ctx := context.Background()

	for _, name := range []string{"s1", "s2"} {
		if err := sessions.Create(ctx, &model.Session{UserID: "alice", Name: name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	list, err := sessions.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
}
