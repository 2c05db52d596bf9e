package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/memexhq/memex/internal/logging"
	"github.com/memexhq/memex/internal/memexerr"
)

var log = logging.GetLogger("storage")

// DefaultReaderPoolSize is used when Open is called without an explicit
// reader pool size.
const DefaultReaderPoolSize = 8

// Store owns the two SQLite connection pools backing one database file: a
// single-connection writer pool (SQLite allows exactly one writer at a
// time) and a multi-connection reader pool for concurrent recall/search.
type Store struct {
	path   string
	writer *sql.DB
	reader *sql.DB
}

// Open opens path with both pools configured and the schema applied. It
// creates the containing directory and the file itself if they don't exist.
func Open(path string, readerPoolSize int) (*Store, error) {
	if readerPoolSize <= 0 {
		readerPoolSize = DefaultReaderPoolSize
	}

	log.Info("opening store", "path", path, "reader_pool_size", readerPoolSize)

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, memexerr.Wrap(memexerr.IO, "create database directory", err)
		}
	}

	writer, err := openPool(path, 1)
	if err != nil {
		return nil, err
	}

	reader, err := openPool(path, readerPoolSize)
	if err != nil {
		writer.Close()
		return nil, err
	}

	s := &Store{path: path, writer: writer, reader: reader}

	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.runMigrations(); err != nil {
		s.Close()
		return nil, err
	}

	log.Info("store ready", "path", path)
	return s, nil
}

func openPool(path string, maxOpen int) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL&_busy_timeout=30000&cache=shared",
		path,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "open sqlite3 connection", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA cache_size = -262144"); err != nil { // ~256MiB
		log.Warn("failed to set cache_size pragma", "error", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, memexerr.Wrap(memexerr.IO, "ping sqlite3 connection", err)
	}
	return db, nil
}

func (s *Store) initSchema() error {
	var name string
	err := s.writer.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='memories' LIMIT 1`).Scan(&name)
	if err == nil && name != "" {
		log.Debug("schema already present")
		return nil
	}

	tx, err := s.writer.Begin()
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "begin schema transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(CoreSchema); err != nil {
		return memexerr.Wrap(memexerr.IO, "create core schema", err)
	}
	if _, err := tx.Exec(FTS5Schema); err != nil {
		return memexerr.Wrap(memexerr.IO, "create fts5 schema", err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, SchemaVersion); err != nil {
		return memexerr.Wrap(memexerr.IO, "record schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return memexerr.Wrap(memexerr.IO, "commit schema transaction", err)
	}
	log.Info("schema initialized", "version", SchemaVersion)
	return nil
}

// runMigrations is a no-op today; it exists so a future SchemaVersion bump
// has a place to add a branch.
func (s *Store) runMigrations() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if version >= SchemaVersion {
		return nil
	}
	log.Warn("no migration path registered", "current_version", version, "target_version", SchemaVersion)
	return nil
}

// SchemaVersion returns the schema version currently applied to the file.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.reader.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, memexerr.Wrap(memexerr.IO, "read schema version", err)
	}
	return version, nil
}

// Close closes both pools.
func (s *Store) Close() error {
	var errs []string
	if err := s.writer.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := s.reader.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing store: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// WithWriteTx runs fn inside a single writer transaction, committing on a
// nil return and rolling back otherwise. ctx's deadline, if any, bounds
// acquiring the underlying connection; a timeout or lock contention is
// translated into the Busy/Timeout taxonomy so callers never need to
// recognize raw SQLite error strings.
func (s *Store) WithWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return translateTxError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translateTxError(err)
	}
	return nil
}

// WithReadTx runs fn inside a read-only transaction against the reader
// pool, so it never blocks on or behind the writer.
func (s *Store) WithReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.reader.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return translateTxError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	return fn(tx)
}

// Reader exposes the reader pool directly for single-statement queries that
// don't need transaction semantics.
func (s *Store) Reader() *sql.DB {
	return s.reader
}

func translateTxError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return memexerr.Wrap(memexerr.Timeout, "acquiring database connection", err)
	}
	if errors.Is(err, context.Canceled) {
		return memexerr.Wrap(memexerr.Timeout, "database operation canceled", err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return memexerr.Wrap(memexerr.Busy, "database busy", err)
		}
	}
	return memexerr.Wrap(memexerr.IO, "database operation failed", err)
}

// Vacuum rebuilds the database file, reclaiming space freed by deletes.
func (s *Store) Vacuum() error {
	_, err := s.writer.Exec("VACUUM")
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "vacuum", err)
	}
	return nil
}

// Checkpoint forces outstanding WAL frames back into the main database
// file, truncating the WAL.
func (s *Store) Checkpoint() error {
	_, err := s.writer.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return memexerr.Wrap(memexerr.IO, "checkpoint", err)
	}
	return nil
}

// Stats reports size and row-count information used by get_stats.
type Stats struct {
	Path              string `json:"path"`
	SchemaVersion     int    `json:"schema_version"`
	MemoryCount       int    `json:"memory_count"`
	SessionCount      int    `json:"session_count"`
	DatabaseFileBytes int64  `json:"database_file_bytes"`
}

// GetStats returns current file and row-count statistics.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{Path: s.path}

	if v, err := s.SchemaVersion(); err == nil {
		stats.SchemaVersion = v
	}

	s.reader.QueryRow("SELECT COUNT(*) FROM memories").Scan(&stats.MemoryCount)       //nolint:errcheck
	s.reader.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&stats.SessionCount)      //nolint:errcheck

	if info, err := os.Stat(s.path); err == nil {
		stats.DatabaseFileBytes = info.Size()
	}

	return stats, nil
}
