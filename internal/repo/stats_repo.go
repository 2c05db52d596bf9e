package repo

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storage"
)

// StatsRepo computes the per-user and per-session aggregate views
// (session summaries, user stats, session analytics) that don't map onto
// a single table's row shape. Engine-wide stats come from
// storage.Store.GetStats.
type StatsRepo struct {
	store *storage.Store
}

// NewStatsRepo builds a StatsRepo over store.
func NewStatsRepo(store *storage.Store) *StatsRepo {
	return &StatsRepo{store: store}
}

// topMemoriesPerSummary bounds how many excerpts SummarizeSession returns.
const topMemoriesPerSummary = 10

// excerptLength bounds how much of a memory's content appears in a
// SessionSummary excerpt.
const excerptLength = 120

// SummarizeSession aggregates the memories in a session into a
// SessionSummary: counts, importance statistics, the most important
// excerpts, and a keyword histogram over their content. Earliest/latest
// timestamps and the histogram are computed in Go from a single pass over
// created_at/content, since SQLite's MIN/MAX over an empty set returns
// NULL and aggregate-function results carry no declared column type for
// the driver to convert back into time.Time.
func (r *StatsRepo) SummarizeSession(ctx context.Context, sessionRepo *SessionRepo, userID, sessionID string) (*model.SessionSummary, error) {
	session, err := sessionRepo.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &model.SessionSummary{Session: *session, KeywordHistogram: map[string]int{}}
	var empty bool

	err = r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		var importanceSum float64
		var count int
		var earliest, latest time.Time

		rows, err := tx.QueryContext(ctx, "SELECT content, importance, created_at FROM memories WHERE session_id = ?", sessionID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "select session memories", err)
		}
		defer rows.Close()

		for rows.Next() {
			var content string
			var importance float64
			var createdAt time.Time
			if err := rows.Scan(&content, &importance, &createdAt); err != nil {
				return memexerr.Wrap(memexerr.IO, "scan session memory", err)
			}
			count++
			importanceSum += importance
			if earliest.IsZero() || createdAt.Before(earliest) {
				earliest = createdAt
			}
			if latest.IsZero() || createdAt.After(latest) {
				latest = createdAt
			}
			accumulateKeywords(summary.KeywordHistogram, content)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		summary.MemoryCount = count
		summary.AggregateImportance = importanceSum
		if count > 0 {
			summary.AverageImportance = importanceSum / float64(count)
			summary.EarliestCreatedAt = earliest
			summary.LatestCreatedAt = latest
		}
		if count == 0 {
			empty = true
			return nil
		}

		topRows, err := tx.QueryContext(ctx, `
			SELECT id, content, importance FROM memories
			WHERE session_id = ?
			ORDER BY importance DESC, created_at DESC
			LIMIT ?
		`, sessionID, topMemoriesPerSummary)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "select top session memories", err)
		}
		defer topRows.Close()
		for topRows.Next() {
			var ex model.Excerpt
			var content string
			if err := topRows.Scan(&ex.ID, &content, &ex.Importance); err != nil {
				return memexerr.Wrap(memexerr.IO, "scan top session memory", err)
			}
			ex.Content = truncate(content, excerptLength)
			summary.TopMemories = append(summary.TopMemories, ex)
		}
		return topRows.Err()
	})
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}

	return summary, nil
}

// UserStats aggregates memory and session counts, plus an importance
// average and the memory timestamp range, for userID in one read
// transaction. It backs get_user_stats, distinct from the engine-wide
// GetStats. The range is read from the rows themselves rather than with
// MIN/MAX, whose results the driver cannot convert back into time.Time.
func (r *StatsRepo) UserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{UserID: userID}
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE user_id = ?", userID).Scan(&stats.SessionCount); err != nil {
			return memexerr.Wrap(memexerr.IO, "count user sessions", err)
		}

		var avgImportance sql.NullFloat64
		row := tx.QueryRowContext(ctx, `
			SELECT COUNT(*), AVG(importance)
			FROM memories WHERE user_id = ?
		`, userID)
		if err := row.Scan(&stats.MemoryCount, &avgImportance); err != nil {
			return memexerr.Wrap(memexerr.IO, "aggregate user memories", err)
		}
		if avgImportance.Valid {
			stats.AverageImportance = avgImportance.Float64
		}
		if stats.MemoryCount == 0 {
			return nil
		}
		var oldest, newest time.Time
		if err := tx.QueryRowContext(ctx, "SELECT created_at FROM memories WHERE user_id = ? ORDER BY created_at ASC LIMIT 1", userID).Scan(&oldest); err != nil {
			return memexerr.Wrap(memexerr.IO, "select oldest user memory", err)
		}
		if err := tx.QueryRowContext(ctx, "SELECT created_at FROM memories WHERE user_id = ? ORDER BY created_at DESC LIMIT 1", userID).Scan(&newest); err != nil {
			return memexerr.Wrap(memexerr.IO, "select newest user memory", err)
		}
		stats.OldestMemoryAt = &oldest
		stats.NewestMemoryAt = &newest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SessionAnalytics rolls up every session userID owns into per-session
// memory counts and importance averages, backing get_session_analytics.
// A session with no memories still appears, with zeroed counters.
func (r *StatsRepo) SessionAnalytics(ctx context.Context, userID string) ([]model.SessionAnalytics, error) {
	var out []model.SessionAnalytics
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT s.id, s.name, s.last_activity_at,
			       COUNT(m.id), COALESCE(AVG(m.importance), 0)
			FROM sessions s
			LEFT JOIN memories m ON m.session_id = s.id
			WHERE s.user_id = ?
			GROUP BY s.id, s.name, s.last_activity_at
			ORDER BY s.last_activity_at DESC
		`, userID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "aggregate session analytics", err)
		}
		defer rows.Close()
		for rows.Next() {
			var a model.SessionAnalytics
			if err := rows.Scan(&a.SessionID, &a.Name, &a.LastActivityAt, &a.MemoryCount, &a.AverageImportance); err != nil {
				return memexerr.Wrap(memexerr.IO, "scan session analytics", err)
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var keywordPattern = regexp.MustCompile(`[a-zA-Z]{4,}`)

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"were": true, "been": true, "they": true, "their": true, "which": true,
	"would": true, "about": true, "there": true, "these": true, "those": true,
}

// accumulateKeywords tallies lowercased words of 4+ letters, skipping a
// small stopword list, into hist.
func accumulateKeywords(hist map[string]int, content string) {
	for _, word := range keywordPattern.FindAllString(strings.ToLower(content), -1) {
		if stopwords[word] {
			continue
		}
		hist[word]++
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
