package repo

import (
	"context"
	"testing"

	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storetest"
)

func TestSummarizeSessionAggregates(t *testing.T) {
	store := storetest.NewStore(t)
	memories := NewMemoryRepo(store)
	sessions := NewSessionRepo(store)
	stats := NewStatsRepo(store)
	ctx := context.Background()

	mustCreateSession(t, sessions, "alice", "s1")
	for _, content := range []string{
		"the quarterly roadmap discussion about pricing",
		"pricing feedback from the roadmap review",
	} {
		if err := memories.Insert(ctx, newMemory("alice", "s1", content, 0.7)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := memories.Insert(ctx, newMemory("alice", "s1", "a throwaway note", 0.3)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	summary, err := stats.SummarizeSession(ctx, sessions, "alice", "s1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.MemoryCount != 3 {
		t.Fatalf("memory_count = %d, want 3", summary.MemoryCount)
	}
	wantAvg := (0.7 + 0.7 + 0.3) / 3
	if diff := summary.AverageImportance - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("average_importance = %v, want %v", summary.AverageImportance, wantAvg)
	}
	if summary.EarliestCreatedAt.After(summary.LatestCreatedAt) {
		t.Error("earliest_created_at should not be after latest_created_at")
	}
	if len(summary.TopMemories) != 3 {
		t.Fatalf("expected 3 top excerpts, got %d", len(summary.TopMemories))
	}
	if summary.TopMemories[0].Importance < summary.TopMemories[len(summary.TopMemories)-1].Importance {
		t.Error("expected top memories ordered by descending importance")
	}
	if summary.KeywordHistogram["pricing"] != 2 {
		t.Errorf("pricing keyword count = %d, want 2", summary.KeywordHistogram["pricing"])
	}
	if summary.KeywordHistogram["that"] != 0 {
		t.Error("stopwords should not appear in the keyword histogram")
	}
}

func TestSummarizeSessionEmpty(t *testing.T) {
	store := storetest.NewStore(t)
	sessions := NewSessionRepo(store)
	stats := NewStatsRepo(store)
	ctx := context.Background()

	if err := sessions.Create(ctx, &model.Session{ID: "empty", UserID: "alice"}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	summary, err := stats.SummarizeSession(ctx, sessions, "alice", "empty")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != nil {
		t.Fatalf("expected a nil summary for a session with no memories, got %+v", summary)
	}
}
