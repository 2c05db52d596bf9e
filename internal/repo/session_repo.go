package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/storage"
)

// SessionRepo is the persistence layer for sessions.
type SessionRepo struct {
	store *storage.Store
}

// NewSessionRepo builds a SessionRepo over store.
func NewSessionRepo(store *storage.Store) *SessionRepo {
	return &SessionRepo{store: store}
}

// Create inserts a new session, assigning an ID and timestamps if missing.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.LastActivityAt.IsZero() {
		s.LastActivityAt = now
	}

	metadataJSON, err := json.Marshal(s.Metadata)
	if err != nil {
		return memexerr.Wrap(memexerr.Invalid, "encode session metadata", err)
	}

	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, user_id, name, metadata, created_at, updated_at, last_activity_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.UserID, s.Name, string(metadataJSON), s.CreatedAt, s.UpdatedAt, s.LastActivityAt)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "insert session", err)
		}
		return nil
	})
}

// Get fetches a session by ID, scoped to userID.
func (r *SessionRepo) Get(ctx context.Context, userID, id string) (*model.Session, error) {
	var s *model.Session
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, user_id, name, metadata, created_at, updated_at, last_activity_at
			FROM sessions WHERE id = ? AND user_id = ?
		`, id, userID)
		var err error
		s, err = scanSession(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByUser returns every session owned by userID, most recently active
// first.
func (r *SessionRepo) ListByUser(ctx context.Context, userID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, user_id, name, metadata, created_at, updated_at, last_activity_at
			FROM sessions WHERE user_id = ?
			ORDER BY last_activity_at DESC
		`, userID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "list sessions", err)
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return err
			}
			sessions = append(sessions, *s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// TouchActivity advances last_activity_at, called whenever a memory is
// saved into the session.
func (r *SessionRepo) TouchActivity(ctx context.Context, tx *sql.Tx, sessionID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, "UPDATE sessions SET last_activity_at = ?, updated_at = ? WHERE id = ?", at, at, sessionID)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "touch session activity", err)
	}
	return nil
}

// EnsureAndTouch implicitly creates sessionID for userID if it doesn't
// already exist, and in either case bumps its last_activity_at. save and
// save_batch call this instead of Create so writes into a fresh session
// id never need a separate create_session round trip.
func (r *SessionRepo) EnsureAndTouch(ctx context.Context, tx *sql.Tx, userID, sessionID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, name, metadata, created_at, updated_at, last_activity_at)
		VALUES (?, ?, '', '{}', ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_activity_at = excluded.last_activity_at, updated_at = excluded.updated_at
	`, sessionID, userID, at, at, at)
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "ensure session activity", err)
	}
	return nil
}

// Delete removes a session. When cascade is false, the call fails with
// Invalid if the session still owns memories; when true, deleting the
// session row removes its memories through the FK's ON DELETE CASCADE,
// in the same transaction.
func (r *SessionRepo) Delete(ctx context.Context, userID, id string, cascade bool) error {
	return r.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE session_id = ?", id).Scan(&count); err != nil {
			return memexerr.Wrap(memexerr.IO, "count session memories", err)
		}
		if count > 0 && !cascade {
			return memexerr.Newf(memexerr.Invalid, "session %s has %d memories; set cascade_memories to delete them", id, count)
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ? AND user_id = ?", id, userID)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "delete session", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return memexerr.Newf(memexerr.NotFound, "session %s not found", id)
		}
		return nil
	})
}

// SearchByKeywords returns every session userID owns that has at least one
// memory matching keywords via the FTS index, most recently active first.
// It backs search_sessions.
func (r *SessionRepo) SearchByKeywords(ctx context.Context, userID string, keywords []string) ([]model.Session, error) {
	if len(keywords) == 0 {
		return nil, memexerr.New(memexerr.Invalid, "search_sessions requires at least one keyword")
	}
	matchQuery := compileFTSMatch(keywords)

	var sessions []model.Session
	err := r.store.WithReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT s.id, s.user_id, s.name, s.metadata, s.created_at, s.updated_at, s.last_activity_at
			FROM sessions s
			JOIN memories m ON m.session_id = s.id
			JOIN memories_fts ON memories_fts.rowid = m.rowid
			WHERE s.user_id = ? AND memories_fts MATCH ?
			ORDER BY s.last_activity_at DESC
		`, userID, matchQuery)
		if err != nil {
			return memexerr.Wrap(memexerr.IO, "search sessions", err)
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return err
			}
			sessions = append(sessions, *s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	var metadataJSON string
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &metadataJSON, &s.CreatedAt, &s.UpdatedAt, &s.LastActivityAt)
	if err == sql.ErrNoRows {
		return nil, memexerr.New(memexerr.NotFound, "session not found")
	}
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "scan session", err)
	}
	json.Unmarshal([]byte(metadataJSON), &s.Metadata) //nolint:errcheck
	return &s, nil
}
