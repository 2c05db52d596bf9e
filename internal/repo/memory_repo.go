package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/memexhq/memex/internal/logging"
	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storage"
)

var log = logging.GetLogger("repo")

// MemoryRepo is the persistence layer for individual memories.
type MemoryRepo struct {
	store *storage.Store
}

// NewMemoryRepo builds a MemoryRepo over store.
func NewMemoryRepo(store *storage.Store) *MemoryRepo {
	return &MemoryRepo{store: store}
}

// Insert assigns an ID and timestamps if missing, computes ExpiresAt from
// TTLHours, and writes the row in a single writer transaction.
func (r *MemoryRepo) Insert(ctx context.Context, m *model.Memory) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	applyExpiry(m, now)

	metadataJSON, tagsJSON, err := encodeMemoryJSON(m)
	if err != nil {
		return err
	}

	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memories (
				id, user_id, session_id, content, importance, ttl_hours,
				created_at, updated_at, expires_at, metadata, tags,
				access_count, last_accessed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
		`,
			m.ID, m.UserID, m.SessionID, m.Content, m.Importance, m.TTLHours,
			m.CreatedAt, m.UpdatedAt, m.ExpiresAt, metadataJSON, tagsJSON,
		)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "insert memory", err)
		}
		return nil
	})
}

type preparedMemory struct {
	index    int
	memory   *model.Memory
	metadata string
	tags     string
}

// validateBatch checks every item's constraints and computes its insert
// payload, without touching the database. Invalid items carry their
// BatchItemResult directly; valid items come back ready to insert.
func validateBatch(memories []*model.Memory, now time.Time) ([]model.BatchItemResult, []preparedMemory) {
	results := make([]model.BatchItemResult, len(memories))
	var valid []preparedMemory

	for i, m := range memories {
		if m.Content == "" {
			results[i] = model.BatchItemResult{Index: i, Status: model.BatchItemError, Error: "content is required", Kind: string(memexerr.Invalid)}
			continue
		}
		if m.SessionID == "" {
			results[i] = model.BatchItemResult{Index: i, Status: model.BatchItemError, Error: "session_id is required", Kind: string(memexerr.Invalid)}
			continue
		}
		if m.Importance < 0 || m.Importance > 1 {
			results[i] = model.BatchItemResult{Index: i, Status: model.BatchItemError, Error: "importance must be between 0 and 1", Kind: string(memexerr.Invalid)}
			continue
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		applyExpiry(m, now)

		metadataJSON, tagsJSON, err := encodeMemoryJSON(m)
		if err != nil {
			results[i] = model.BatchItemResult{Index: i, Status: model.BatchItemError, Error: err.Error(), Kind: string(memexerr.Invalid)}
			continue
		}
		valid = append(valid, preparedMemory{index: i, memory: m, metadata: metadataJSON, tags: tagsJSON})
	}
	return results, valid
}

func insertPrepared(ctx context.Context, tx *sql.Tx, p preparedMemory) error {
	m := p.memory
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memories (
			id, user_id, session_id, content, importance, ttl_hours,
			created_at, updated_at, expires_at, metadata, tags,
			access_count, last_accessed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
	`,
		m.ID, m.UserID, m.SessionID, m.Content, m.Importance, m.TTLHours,
		m.CreatedAt, m.UpdatedAt, m.ExpiresAt, p.metadata, p.tags,
	)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "insert memory batch", err)
	}
	return nil
}

// InsertMany validates every item, then inserts the valid ones according
// to failOnError: true runs every valid insert inside one writer
// transaction (all land, or the whole batch rolls back on the first DB
// error); false inserts each valid item in its own transaction, so a
// failure on one row never rolls back its siblings and concurrent readers
// may observe the batch landing piecewise.
func (r *MemoryRepo) InsertMany(ctx context.Context, memories []*model.Memory, failOnError bool) (*model.BatchResponse, error) {
	now := time.Now().UTC()
	results, toInsert := validateBatch(memories, now)
	resp := &model.BatchResponse{Results: results}
	for _, res := range results {
		if res.Status == model.BatchItemError {
			resp.FailureCount++
		}
	}

	if len(toInsert) == 0 {
		return resp, nil
	}

	if failOnError {
		if resp.FailureCount > 0 {
			// A validation failure already occurred; fail_on_error means
			// none of the otherwise-valid rows get inserted either.
			for _, p := range toInsert {
				resp.Results[p.index] = model.BatchItemResult{Index: p.index, Status: model.BatchItemError, Error: "aborted by an earlier invalid item", Kind: string(memexerr.Invalid)}
				resp.FailureCount++
			}
			return resp, nil
		}
		err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
			for _, p := range toInsert {
				if err := insertPrepared(ctx, tx, p); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			for _, p := range toInsert {
				resp.Results[p.index] = model.BatchItemResult{Index: p.index, Status: model.BatchItemError, Error: err.Error(), Kind: string(memexerr.KindOf(err))}
				resp.FailureCount++
			}
			return resp, err
		}
		for _, p := range toInsert {
			resp.Results[p.index] = model.BatchItemResult{Index: p.index, Status: model.BatchItemOK, ID: p.memory.ID}
			resp.SuccessCount++
		}
		return resp, nil
	}

	for _, p := range toInsert {
		err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
			return insertPrepared(ctx, tx, p)
		})
		if err != nil {
			resp.Results[p.index] = model.BatchItemResult{Index: p.index, Status: model.BatchItemError, Error: err.Error(), Kind: string(memexerr.KindOf(err))}
			resp.FailureCount++
			continue
		}
		resp.Results[p.index] = model.BatchItemResult{Index: p.index, Status: model.BatchItemOK, ID: p.memory.ID}
		resp.SuccessCount++
	}
	return resp, nil
}

// Get fetches a memory by ID, returning a NotFound error if it doesn't
// exist or belongs to a different user.
func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (*model.Memory, error) {
	var m *model.Memory
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, user_id, session_id, content, importance, ttl_hours,
			       created_at, updated_at, expires_at, metadata, tags,
			       access_count, last_accessed_at
			FROM memories WHERE id = ? AND user_id = ?
		`, id, userID)
		var err error
		m, err = scanMemory(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Update applies patch to the memory, returning the updated row. Only
// fields the patch sets are touched; updated_at always advances.
func (r *MemoryRepo) Update(ctx context.Context, userID, id string, patch *model.MemoryPatch) (*model.Memory, error) {
	var updated *model.Memory
	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanMemory(tx.QueryRowContext(ctx, `
			SELECT id, user_id, session_id, content, importance, ttl_hours,
			       created_at, updated_at, expires_at, metadata, tags,
			       access_count, last_accessed_at
			FROM memories WHERE id = ? AND user_id = ?
		`, id, userID))
		if err != nil {
			return err
		}

		if patch.Content != nil {
			existing.Content = *patch.Content
		}
		if patch.Importance != nil {
			existing.Importance = *patch.Importance
		}
		if patch.MetadataSet {
			existing.Metadata = patch.Metadata
		}
		if patch.TagsSet {
			existing.Tags = patch.Tags
		}
		if patch.TTLHoursSet {
			existing.TTLHours = patch.TTLHours
		}
		existing.UpdatedAt = time.Now().UTC()
		applyExpiry(existing, existing.UpdatedAt)

		metadataJSON, tagsJSON, err := encodeMemoryJSON(existing)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE memories SET content = ?, importance = ?, ttl_hours = ?,
			       updated_at = ?, expires_at = ?, metadata = ?, tags = ?
			WHERE id = ? AND user_id = ?
		`, existing.Content, existing.Importance, existing.TTLHours,
			existing.UpdatedAt, existing.ExpiresAt, metadataJSON, tagsJSON, id, userID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "update memory", err)
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a memory by ID, reporting NotFound if nothing matched.
func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "delete memory", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return memexerr.Newf(memexerr.NotFound, "memory %s not found", id)
		}
		return nil
	})
}

// MarkAccessed bumps access_count and last_accessed_at for a batch of IDs
// in one transaction, called by the access-bookkeeping coalescing queue
// rather than once per recall hit.
func (r *MemoryRepo) MarkAccessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
			WHERE id = ?
		`)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "prepare mark-accessed", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, at, id); err != nil {
				return memexerr.Wrap(memexerr.IO, "mark memory accessed", err)
			}
		}
		return nil
	})
}

// CountByUser returns how many memories a user currently owns, used by the
// quota gate before an insert.
func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&count)
	})
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "count memories", err)
	}
	return count, nil
}

// ListByFilter runs a structural, filter-driven listing and returns a
// paginated envelope. When filter.Keywords is non-empty, it dispatches to
// the same FTS-joined, bm25-ranked path SearchFTS uses, so recall and
// search honor keywords identically rather than being two structurally
// separate reads.
func (r *MemoryRepo) ListByFilter(ctx context.Context, filter *model.QueryFilter) (model.PageResponse[model.Memory], error) {
	if err := filter.Normalize(); err != nil {
		return model.PageResponse[model.Memory]{}, err
	}
	if len(filter.Keywords) > 0 {
		return r.listByKeywordFilter(ctx, filter)
	}

	where, args := compileListFilter(filter)

	var total int
	var memories []model.Memory
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE "+where, args...).Scan(&total); err != nil {
			return memexerr.Wrap(memexerr.IO, "count filtered memories", err)
		}

		pageArgs := append(append([]interface{}{}, args...), filter.Limit+1, filter.Offset)
		rows, err := tx.QueryContext(ctx, `
			SELECT id, user_id, session_id, content, importance, ttl_hours,
			       created_at, updated_at, expires_at, metadata, tags,
			       access_count, last_accessed_at
			FROM memories WHERE `+where+`
			ORDER BY created_at DESC, importance DESC, id ASC LIMIT ? OFFSET ?
		`, pageArgs...)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "list filtered memories", err)
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMemoryRows(rows)
			if err != nil {
				return err
			}
			memories = append(memories, *m)
		}
		return rows.Err()
	})
	if err != nil {
		return model.PageResponse[model.Memory]{}, err
	}

	hasNext := len(memories) > filter.Limit
	if hasNext {
		memories = memories[:filter.Limit]
	}
	return model.NewPageResponse(memories, total, filter.Limit, filter.Offset, hasNext), nil
}

// listByKeywordFilter is ListByFilter's keyword-scoped path: same join,
// ordering and pagination as SearchFTS, but returning plain Memory rows
// with no relevance score attached.
func (r *MemoryRepo) listByKeywordFilter(ctx context.Context, filter *model.QueryFilter) (model.PageResponse[model.Memory], error) {
	var total int
	var memories []model.Memory
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		t, rows, err := queryFTSJoin(ctx, tx, filter)
		if err != nil {
			return err
		}
		total = t
		for _, row := range rows {
			memories = append(memories, *row.memory)
		}
		return nil
	})
	if err != nil {
		return model.PageResponse[model.Memory]{}, err
	}

	hasNext := len(memories) > filter.Limit
	if hasNext {
		memories = memories[:filter.Limit]
	}
	return model.NewPageResponse(memories, total, filter.Limit, filter.Offset, hasNext), nil
}

// SearchFTS runs a keyword search over memories.content via the FTS5
// index, joined back to memories for the full row, ranked by BM25. It is
// search's convenience layer over the same keyword-joined query
// ListByFilter runs, enriched with a per-row relevance score.
func (r *MemoryRepo) SearchFTS(ctx context.Context, filter *model.QueryFilter) (model.PageResponse[model.SearchResult], error) {
	if err := filter.Normalize(); err != nil {
		return model.PageResponse[model.SearchResult]{}, err
	}
	if len(filter.Keywords) == 0 {
		return model.PageResponse[model.SearchResult]{}, memexerr.New(memexerr.Invalid, "search requires at least one keyword")
	}

	var total int
	var results []model.SearchResult
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		t, rows, err := queryFTSJoin(ctx, tx, filter)
		if err != nil {
			return err
		}
		total = t
		for _, row := range rows {
			results = append(results, model.SearchResult{Memory: *row.memory, Relevance: normalizeBM25(row.rank)})
		}
		return nil
	})
	if err != nil {
		return model.PageResponse[model.SearchResult]{}, err
	}

	hasNext := len(results) > filter.Limit
	if hasNext {
		results = results[:filter.Limit]
	}
	return model.NewPageResponse(results, total, filter.Limit, filter.Offset, hasNext), nil
}

// ftsJoinRow is one row of the shared keyword-joined query: the scanned
// memory plus its raw bm25 rank, before normalization.
type ftsJoinRow struct {
	memory *model.Memory
	rank   float64
}

// queryFTSJoin runs the shared memories_fts-joined, bm25-ranked query
// both ListByFilter's keyword path and SearchFTS use: a real total count
// over the match set, then up to limit+1 rows ordered by
// (bm25, importance DESC, created_at DESC), tie-broken by id, so the
// caller can derive has_next without a second scan of the page itself.
func queryFTSJoin(ctx context.Context, tx *sql.Tx, filter *model.QueryFilter) (int, []ftsJoinRow, error) {
	where, args := compileListFilter(filter)
	matchQuery := compileFTSMatch(filter.Keywords)

	var total int
	countArgs := append([]interface{}{matchQuery}, args...)
	countQuery := `
		SELECT COUNT(*) FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ? AND ` + where
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return 0, nil, memexerr.Wrap(memexerr.IO, "count keyword matches", err)
	}

	pageArgs := append([]interface{}{matchQuery}, args...)
	pageArgs = append(pageArgs, filter.Limit+1, filter.Offset)
	rows, err := tx.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.session_id, m.content, m.importance, m.ttl_hours,
		       m.created_at, m.updated_at, m.expires_at, m.metadata, m.tags,
		       m.access_count, m.last_accessed_at, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ? AND `+where+`
		ORDER BY rank, m.importance DESC, m.created_at DESC, m.id ASC
		LIMIT ? OFFSET ?
	`, pageArgs...)
	if err != nil {
		return 0, nil, memexerr.Wrap(memexerr.IO, "search memories", err)
	}
	defer rows.Close()

	var out []ftsJoinRow
	for rows.Next() {
		m, rank, err := scanSearchRow(rows)
		if err != nil {
			return 0, nil, err
		}
		out = append(out, ftsJoinRow{memory: m, rank: rank})
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return total, out, nil
}

// ExportByUser returns every memory userID owns, oldest first, with no
// pagination, backing export_user_memories's full-dump semantics.
func (r *MemoryRepo) ExportByUser(ctx context.Context, userID string) ([]model.Memory, error) {
	var memories []model.Memory
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, user_id, session_id, content, importance, ttl_hours,
			       created_at, updated_at, expires_at, metadata, tags,
			       access_count, last_accessed_at
			FROM memories WHERE user_id = ?
			ORDER BY created_at ASC, id ASC
		`, userID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "export user memories", err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMemoryRows(rows)
			if err != nil {
				return err
			}
			memories = append(memories, *m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// PurgeExpired deletes every memory whose expires_at has passed as of now
// and returns the deleted IDs, in its own writer transaction. The decay
// pass uses purgeExpiredTx inside its shared transaction instead.
func (r *MemoryRepo) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "select expired memories", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return memexerr.Wrap(memexerr.IO, "scan expired memory id", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?", now); err != nil {
			return memexerr.Wrap(memexerr.IO, "delete expired memories", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// LowImportanceCandidates returns up to limit memory IDs for userID below
// threshold, least important and least recently accessed first, used by
// the engine's auto-evict-on-quota path.
func (r *MemoryRepo) LowImportanceCandidates(ctx context.Context, userID string, threshold float64, limit int) ([]string, error) {
	var ids []string
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM memories
			WHERE user_id = ? AND importance < ?
			ORDER BY importance ASC, COALESCE(last_accessed_at, created_at) ASC
			LIMIT ?
		`, userID, threshold, limit)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "select low-importance memories", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return memexerr.Wrap(memexerr.IO, "scan low-importance memory id", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteMany removes the given memory IDs in one writer transaction, used
// by the engine's auto-evict-on-quota path.
func (r *MemoryRepo) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "DELETE FROM memories WHERE id = ?")
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "prepare batch delete", err)
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return memexerr.Wrap(memexerr.IO, "delete memory", err)
			}
		}
		return nil
	})
}

// Compress overwrites a memory's content with a lossily-compressed form.
// The decay compression pass uses compressOldTx instead.
func (r *MemoryRepo) Compress(ctx context.Context, id, compressed string) error {
	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE memories SET content = ?, updated_at = ? WHERE id = ?", compressed, time.Now().UTC(), id)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "compress memory", err)
		}
		return nil
	})
}

// CountBySession returns how many memories a session currently holds.
// SessionRepo.Delete runs its own count inside its delete transaction.
func (r *MemoryRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE session_id = ?", sessionID).Scan(&count)
	})
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "count session memories", err)
	}
	return count, nil
}

func applyExpiry(m *model.Memory, reference time.Time) {
	if m.TTLHours == nil || *m.TTLHours <= 0 {
		m.ExpiresAt = nil
		return
	}
	expiry := reference.Add(time.Duration(*m.TTLHours) * time.Hour)
	m.ExpiresAt = &expiry
}

func encodeMemoryJSON(m *model.Memory) (metadataJSON, tagsJSON string, err error) {
	metaBytes, err := json.Marshal(m.Metadata)
	if err != nil {
		return "", "", memexerr.Wrap(memexerr.Invalid, "encode metadata", err)
	}
	tagBytes, err := json.Marshal(m.Tags)
	if err != nil {
		return "", "", memexerr.Wrap(memexerr.Invalid, "encode tags", err)
	}
	return string(metaBytes), string(tagBytes), nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows for the shared scan
// logic below.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	m, err := scanMemoryCommon(row)
	if err == sql.ErrNoRows {
		return nil, memexerr.New(memexerr.NotFound, "memory not found")
	}
	return m, err
}

func scanMemoryRows(rows *sql.Rows) (*model.Memory, error) {
	return scanMemoryCommon(rows)
}

func scanMemoryCommon(scanner rowScanner) (*model.Memory, error) {
	var m model.Memory
	var ttlHours sql.NullInt64
	var expiresAt, lastAccessedAt sql.NullTime
	var metadataJSON, tagsJSON string

	err := scanner.Scan(
		&m.ID, &m.UserID, &m.SessionID, &m.Content, &m.Importance, &ttlHours,
		&m.CreatedAt, &m.UpdatedAt, &expiresAt, &metadataJSON, &tagsJSON,
		&m.AccessCount, &lastAccessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "scan memory", err)
	}

	if ttlHours.Valid {
		v := int(ttlHours.Int64)
		m.TTLHours = &v
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Time
	}
	if lastAccessedAt.Valid {
		m.LastAccessedAt = &lastAccessedAt.Time
	}
	if err := json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
		log.Warn("failed to decode memory metadata, treating as empty", "id", m.ID, "error", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		log.Warn("failed to decode memory tags, treating as empty", "id", m.ID, "error", err)
	}

	return &m, nil
}

func scanSearchRow(rows *sql.Rows) (*model.Memory, float64, error) {
	var m model.Memory
	var ttlHours sql.NullInt64
	var expiresAt, lastAccessedAt sql.NullTime
	var metadataJSON, tagsJSON string
	var rank float64

	err := rows.Scan(
		&m.ID, &m.UserID, &m.SessionID, &m.Content, &m.Importance, &ttlHours,
		&m.CreatedAt, &m.UpdatedAt, &expiresAt, &metadataJSON, &tagsJSON,
		&m.AccessCount, &lastAccessedAt, &rank,
	)
	if err != nil {
		return nil, 0, memexerr.Wrap(memexerr.IO, "scan search result", err)
	}

	if ttlHours.Valid {
		v := int(ttlHours.Int64)
		m.TTLHours = &v
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Time
	}
	if lastAccessedAt.Valid {
		m.LastAccessedAt = &lastAccessedAt.Time
	}
	json.Unmarshal([]byte(metadataJSON), &m.Metadata) //nolint:errcheck
	json.Unmarshal([]byte(tagsJSON), &m.Tags)         //nolint:errcheck

	return &m, rank, nil
}

// normalizeBM25 maps SQLite's bm25() output, which is negative and
// unbounded below (lower is better), into a 0..1 relevance score.
func normalizeBM25(rank float64) float64 {
	relevance := 1.0 + (rank / 10.0)
	if relevance > 1.0 {
		relevance = 1.0
	}
	if relevance < 0.0 {
		relevance = 0.0
	}
	return relevance
}
