package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
)

const compressionAgeDays = 30
const compressionExcerptLength = 200

// RunDecayPass runs all four decay passes inside one writer transaction
// and reports what it actually removed or compressed.
func (r *MemoryRepo) RunDecayPass(ctx context.Context, policy model.DecayPolicy, now time.Time) (*model.DecayStats, error) {
	start := now
	stats := &model.DecayStats{}

	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		expired, err := purgeExpiredTx(ctx, tx, now)
		if err != nil {
			return err
		}
		stats.MemoriesExpired = len(expired)

		evicted, err := evictOverQuotaTx(ctx, tx, policy, now)
		if err != nil {
			return err
		}

		swept, err := sweepLowImportanceTx(ctx, tx, policy, now)
		if err != nil {
			return err
		}
		stats.MemoriesEvicted = len(evicted) + len(swept)

		if policy.EnableCompression {
			compressed, err := compressOldTx(ctx, tx, now)
			if err != nil {
				return err
			}
			stats.MemoriesCompressed = compressed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.ElapsedMS = time.Since(start).Milliseconds()
	return stats, nil
}

// AnalyzeDecayPass performs the same selection logic read-only, reporting
// what a real pass would remove or compress without mutating anything.
func (r *MemoryRepo) AnalyzeDecayPass(ctx context.Context, policy model.DecayPolicy, now time.Time) (*model.DecayPlan, error) {
	plan := &model.DecayPlan{}

	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		ids, err := queryIDs(ctx, tx, "SELECT id FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
		if err != nil {
			return err
		}
		plan.WouldExpire = ids

		overQuota, err := candidatesOverQuotaTx(ctx, tx, policy, now)
		if err != nil {
			return err
		}
		plan.WouldEvict = overQuota

		lowImportance, err := candidatesLowImportanceTx(ctx, tx, policy, now)
		if err != nil {
			return err
		}
		plan.WouldEvict = append(plan.WouldEvict, lowImportance...)

		if policy.EnableCompression {
			compressible, err := queryIDs(ctx, tx, "SELECT id FROM memories WHERE created_at <= ? AND importance < 0.5 AND length(CAST(content AS BLOB)) > ?", now.AddDate(0, 0, -compressionAgeDays), compressionExcerptLength)
			if err != nil {
				return err
			}
			plan.WouldCompress = compressible
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func purgeExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]string, error) {
	ids, err := queryIDs(ctx, tx, "SELECT id FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?", now); err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "delete expired memories", err)
	}
	return ids, nil
}

// evictOverQuotaTx deletes the excess rows for every user whose memory
// count exceeds policy.MaxMemoriesPerUser, ordered soon-to-expire first,
// then ascending importance, then ascending last_accessed_at, then
// ascending created_at.
func evictOverQuotaTx(ctx context.Context, tx *sql.Tx, policy model.DecayPolicy, now time.Time) ([]string, error) {
	ids, err := candidatesOverQuotaTx(ctx, tx, policy, now)
	if err != nil {
		return nil, err
	}
	if err := deleteIDsTx(ctx, tx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func candidatesOverQuotaTx(ctx context.Context, tx *sql.Tx, policy model.DecayPolicy, now time.Time) ([]string, error) {
	if policy.MaxMemoriesPerUser <= 0 {
		return nil, nil
	}

	userIDs, err := queryUsersOverQuotaTx(ctx, tx, policy.MaxMemoriesPerUser)
	if err != nil {
		return nil, err
	}

	var all []string
	soonThreshold := now.Add(24 * time.Hour)
	for _, userID := range userIDs {
		count, err := countUserMemoriesTx(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		overBy := count - policy.MaxMemoriesPerUser
		if overBy <= 0 {
			continue
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM memories
			WHERE user_id = ?
			ORDER BY
				CASE WHEN expires_at IS NOT NULL AND expires_at <= ? THEN 0 ELSE 1 END,
				importance ASC,
				COALESCE(last_accessed_at, created_at) ASC,
				created_at ASC
			LIMIT ?
		`, userID, soonThreshold, overBy)
		if err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "select eviction candidates", err)
		}
		ids, err := scanIDRows(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
	}
	return all, nil
}

func sweepLowImportanceTx(ctx context.Context, tx *sql.Tx, policy model.DecayPolicy, now time.Time) ([]string, error) {
	ids, err := candidatesLowImportanceTx(ctx, tx, policy, now)
	if err != nil {
		return nil, err
	}
	if err := deleteIDsTx(ctx, tx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func candidatesLowImportanceTx(ctx context.Context, tx *sql.Tx, policy model.DecayPolicy, now time.Time) ([]string, error) {
	if policy.DefaultMemoryTTLHours <= 0 {
		return nil, nil
	}
	cutoff := now.Add(-time.Duration(policy.DefaultMemoryTTLHours) * time.Hour)
	return queryIDs(ctx, tx, `
		SELECT id FROM memories
		WHERE created_at <= ? AND importance < ? AND access_count = 0
	`, cutoff, policy.ImportanceThreshold)
}

func compressOldTx(ctx context.Context, tx *sql.Tx, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -compressionAgeDays)
	rows, err := tx.QueryContext(ctx, "SELECT id, content FROM memories WHERE created_at <= ? AND importance < 0.5", cutoff)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "select compression candidates", err)
	}
	type candidate struct {
		id      string
		content string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.content); err != nil {
			rows.Close()
			return 0, memexerr.Wrap(memexerr.IO, "scan compression candidate", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE memories SET content = ?, metadata = json_set(COALESCE(metadata, '{}'), '$.original_length', ?), updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "prepare compression update", err)
	}
	defer stmt.Close()

	compressedCount := 0
	for _, c := range candidates {
		if len(c.content) <= compressionExcerptLength {
			continue
		}
		truncated := truncate(c.content, compressionExcerptLength)
		if _, err := stmt.ExecContext(ctx, truncated, len(c.content), now, c.id); err != nil {
			return compressedCount, memexerr.Wrap(memexerr.IO, "compress memory", err)
		}
		compressedCount++
	}
	return compressedCount, nil
}

func queryUsersOverQuotaTx(ctx context.Context, tx *sql.Tx, maxPerUser int) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT user_id FROM memories GROUP BY user_id HAVING COUNT(*) > ?", maxPerUser)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "select users over quota", err)
	}
	return scanIDRows(rows)
}

func countUserMemoriesTx(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "count user memories", err)
	}
	return count, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "select memory ids", err)
	}
	return scanIDRows(rows)
}

func scanIDRows(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "scan memory id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func deleteIDsTx(ctx context.Context, tx *sql.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, "DELETE FROM memories WHERE id = ?")
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "prepare decay delete", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return memexerr.Wrap(memexerr.IO, "delete memory", err)
		}
	}
	return nil
}
