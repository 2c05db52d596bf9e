package engine

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/memexhq/memex/internal/memexerr"
	"github.com/memexhq/memex/internal/model"
	"github.com/memexhq/memex/internal/ratelimit"
	"github.com/memexhq/memex/internal/repo"
	"github.com/memexhq/memex/internal/storage"
	"github.com/memexhq/memex/pkg/config"
)

// accessFlushInterval bounds how stale access_count/last_accessed_at can
// get before a background flush catches up.
const accessFlushInterval = 2 * time.Second

// Engine is the orchestrator every caller (CLI, REST façade, and
// eventually an FFI bridge) goes through: it owns the store and repos,
// enforces quota and rate limits, and runs the decay subsystem.
type Engine struct {
	store    *storage.Store
	memories *repo.MemoryRepo
	sessions *repo.SessionRepo
	stats    *repo.StatsRepo
	cfgMu    sync.RWMutex
	cfg      *config.Config
	limiter  *ratelimit.Limiter
	access   *accessLog
	decay    *decayScheduler
	// quotaMu serializes the quota check with the insert it guards, so
	// concurrent saves cannot all pass the same count.
	quotaMu sync.Mutex
}

// New opens the database at cfg.DatabasePath and wires up the full engine.
func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, memexerr.Wrap(memexerr.BadConfig, "invalid configuration", err)
	}
	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, memexerr.Wrap(memexerr.IO, "prepare database directory", err)
	}

	store, err := storage.Open(cfg.DatabasePath, storage.DefaultReaderPoolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:    store,
		memories: repo.NewMemoryRepo(store),
		sessions: repo.NewSessionRepo(store),
		stats:    repo.NewStatsRepo(store),
		cfg:      cfg,
		limiter: ratelimit.NewLimiter(&ratelimit.Config{
			Enabled:           cfg.EnableRequestLimits,
			RequestsPerMinute: cfg.MaxRequestsPerMinute,
		}),
	}
	e.access = newAccessLog(accessFlushInterval, e.memories.MarkAccessed)
	e.access.run()

	if cfg.AutoDecayEnabled {
		interval := time.Duration(cfg.DecayIntervalHours) * time.Hour
		e.decay = newDecayScheduler(e, interval)
		e.decay.run()
	}

	log.Info("engine ready", "database_path", cfg.DatabasePath)
	return e, nil
}

// Close flushes pending access bookkeeping, stops the decay scheduler if
// running, and closes the database.
func (e *Engine) Close() error {
	if e.decay != nil {
		e.decay.close()
	}
	e.access.close()
	return e.store.Close()
}

// snapshot is an immutable copy of the configuration fields the hot path
// reads, taken under cfgMu so UpdateDecayPolicy can mutate cfg concurrently
// with in-flight Save/SaveBatch calls.
type snapshot struct {
	defaultTTLHours     int
	maxMemoriesPerUser  int
	importanceThreshold float64
	autoEvictOnQuota    bool
	maxBatchSize        int
}

func (e *Engine) snapshot() snapshot {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return snapshot{
		defaultTTLHours:     e.cfg.DefaultMemoryTTLHours,
		maxMemoriesPerUser:  e.cfg.MaxMemoriesPerUser,
		importanceThreshold: e.cfg.ImportanceThreshold,
		autoEvictOnQuota:    e.cfg.AutoEvictOnQuota,
		maxBatchSize:        e.cfg.MaxBatchSize,
	}
}

// gate enforces the per-user rate limit ahead of any state-changing or
// expensive operation. Read-only helper calls (e.g. Get inside Update)
// should not call gate a second time.
func (e *Engine) gate(userID string) error {
	result := e.limiter.Allow(userID)
	if !result.Allowed {
		return memexerr.Newf(memexerr.RateLimited, "rate limit exceeded, retry after %s", result.RetryAfter)
	}
	return nil
}

// Save validates and inserts a single memory, enforcing the per-user
// quota first. When the quota is exceeded and auto-eviction is enabled,
// memories below importance_threshold are evicted, least important first,
// to make room; when there are too few of them, or auto-eviction is
// disabled, the call fails with QuotaExceeded.
func (e *Engine) Save(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	if err := e.gate(m.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.Content) == "" {
		return nil, memexerr.New(memexerr.Invalid, "content is required")
	}
	if m.SessionID == "" {
		return nil, memexerr.New(memexerr.Invalid, "session_id is required")
	}
	if m.Importance < 0 || m.Importance > 1 {
		return nil, memexerr.New(memexerr.Invalid, "importance must be between 0 and 1")
	}
	snap := e.snapshot()
	if m.TTLHours == nil {
		ttl := snap.defaultTTLHours
		m.TTLHours = &ttl
	}

	e.quotaMu.Lock()
	defer e.quotaMu.Unlock()
	if err := e.enforceQuota(ctx, m.UserID, snap); err != nil {
		return nil, err
	}

	if err := e.ensureSession(ctx, m.UserID, m.SessionID, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := e.memories.Insert(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// SaveBatch validates and inserts a slice of memories, enforcing the
// quota against the batch's total size. With failOnError, the batch is
// atomic: any invalid or failed row aborts every row. Without it, valid
// rows are each inserted independently and reported per item.
func (e *Engine) SaveBatch(ctx context.Context, userID string, memories []*model.Memory, failOnError bool) (*model.BatchResponse, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	snap := e.snapshot()
	if snap.maxBatchSize > 0 && len(memories) > snap.maxBatchSize {
		return nil, memexerr.Newf(memexerr.Invalid, "batch of %d exceeds max_batch_size %d", len(memories), snap.maxBatchSize)
	}

	for _, m := range memories {
		m.UserID = userID
		if m.TTLHours == nil {
			ttl := snap.defaultTTLHours
			m.TTLHours = &ttl
		}
	}

	e.quotaMu.Lock()
	defer e.quotaMu.Unlock()
	if err := e.enforceQuotaForBatch(ctx, userID, len(memories), snap); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seen := map[string]bool{}
	for _, m := range memories {
		if m.SessionID == "" || seen[m.SessionID] {
			continue
		}
		seen[m.SessionID] = true
		if err := e.ensureSession(ctx, userID, m.SessionID, now); err != nil {
			return nil, err
		}
	}

	return e.memories.InsertMany(ctx, memories, failOnError)
}

// ensureSession implicitly creates sessionID for userID if it doesn't
// exist yet and bumps its last_activity_at, satisfying both the FK
// memories.session_id requires and the "touch on every write" invariant.
func (e *Engine) ensureSession(ctx context.Context, userID, sessionID string, at time.Time) error {
	if sessionID == "" {
		return nil
	}
	return e.store.WithWriteTx(ctx, func(tx *sql.Tx) error {
		return e.sessions.EnsureAndTouch(ctx, tx, userID, sessionID, at)
	})
}

func (e *Engine) enforceQuota(ctx context.Context, userID string, snap snapshot) error {
	return e.enforceQuotaForBatch(ctx, userID, 1, snap)
}

func (e *Engine) enforceQuotaForBatch(ctx context.Context, userID string, incoming int, snap snapshot) error {
	if snap.maxMemoriesPerUser <= 0 {
		return nil
	}
	count, err := e.memories.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	overBy := count + incoming - snap.maxMemoriesPerUser
	if overBy <= 0 {
		return nil
	}
	if !snap.autoEvictOnQuota {
		return memexerr.Newf(memexerr.QuotaExceeded, "user %s has %d memories, quota is %d", userID, count, snap.maxMemoriesPerUser)
	}

	candidates, err := e.memories.LowImportanceCandidates(ctx, userID, snap.importanceThreshold, overBy)
	if err != nil {
		return err
	}
	if len(candidates) < overBy {
		return memexerr.Newf(memexerr.QuotaExceeded, "user %s over quota and not enough low-importance memories to evict", userID)
	}
	return e.memories.DeleteMany(ctx, candidates)
}

// Recall lists memories for filter's user/session, honoring
// filter.Keywords via the same FTS join Search uses when present.
func (e *Engine) Recall(ctx context.Context, filter *model.QueryFilter) (model.PageResponse[model.Memory], error) {
	if err := e.gate(filter.UserID); err != nil {
		return model.PageResponse[model.Memory]{}, err
	}
	page, err := e.memories.ListByFilter(ctx, filter)
	if err != nil {
		return page, err
	}
	for _, m := range page.Data {
		e.access.touch(m.ID)
	}
	return page, nil
}

// Search runs a keyword search scoped to filter's user/session.
func (e *Engine) Search(ctx context.Context, filter *model.QueryFilter) (model.PageResponse[model.SearchResult], error) {
	if err := e.gate(filter.UserID); err != nil {
		return model.PageResponse[model.SearchResult]{}, err
	}
	page, err := e.memories.SearchFTS(ctx, filter)
	if err != nil {
		return page, err
	}
	for _, r := range page.Data {
		e.access.touch(r.Memory.ID)
	}
	return page, nil
}

// GetMemory fetches a single memory by ID, recording an access.
func (e *Engine) GetMemory(ctx context.Context, userID, id string) (*model.Memory, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	m, err := e.memories.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	e.access.touch(m.ID)
	return m, nil
}

// UpdateMemory applies patch to a memory owned by userID.
func (e *Engine) UpdateMemory(ctx context.Context, userID, id string, patch *model.MemoryPatch) (*model.Memory, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	if patch.Importance != nil && (*patch.Importance < 0 || *patch.Importance > 1) {
		return nil, memexerr.New(memexerr.Invalid, "importance must be between 0 and 1")
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return nil, memexerr.New(memexerr.Invalid, "content cannot be empty")
	}
	return e.memories.Update(ctx, userID, id, patch)
}

// DeleteMemory removes a memory owned by userID.
func (e *Engine) DeleteMemory(ctx context.Context, userID, id string) error {
	if err := e.gate(userID); err != nil {
		return err
	}
	return e.memories.Delete(ctx, userID, id)
}

// CreateSession creates a new session for userID.
func (e *Engine) CreateSession(ctx context.Context, s *model.Session) (*model.Session, error) {
	if err := e.gate(s.UserID); err != nil {
		return nil, err
	}
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session owned by userID.
func (e *Engine) GetSession(ctx context.Context, userID, id string) (*model.Session, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.sessions.Get(ctx, userID, id)
}

// ListSessions lists every session owned by userID.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.sessions.ListByUser(ctx, userID)
}

// DeleteSession removes a session, optionally cascading to its memories.
func (e *Engine) DeleteSession(ctx context.Context, userID, id string, cascade bool) error {
	if err := e.gate(userID); err != nil {
		return err
	}
	return e.sessions.Delete(ctx, userID, id, cascade)
}

// SummarizeSession aggregates a session's memories into a SessionSummary.
func (e *Engine) SummarizeSession(ctx context.Context, userID, sessionID string) (*model.SessionSummary, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.stats.SummarizeSession(ctx, e.sessions, userID, sessionID)
}

// SearchSessions returns userID's sessions whose memories match keywords.
func (e *Engine) SearchSessions(ctx context.Context, userID string, keywords []string) ([]model.Session, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.sessions.SearchByKeywords(ctx, userID, keywords)
}

// GetUserStats reports memory/session counts and importance statistics
// scoped to a single user, distinct from the engine-wide GetStats.
func (e *Engine) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.stats.UserStats(ctx, userID)
}

// GetSessionAnalytics rolls up every session userID owns into per-session
// memory counters.
func (e *Engine) GetSessionAnalytics(ctx context.Context, userID string) ([]model.SessionAnalytics, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.stats.SessionAnalytics(ctx, userID)
}

// ExportUserMemories returns every memory userID owns, oldest first.
func (e *Engine) ExportUserMemories(ctx context.Context, userID string) ([]model.Memory, error) {
	if err := e.gate(userID); err != nil {
		return nil, err
	}
	return e.memories.ExportByUser(ctx, userID)
}

// GetStats reports the engine-wide storage.Stats: memory and session
// counts, schema_version and database_file_bytes.
func (e *Engine) GetStats() (*storage.Stats, error) {
	return e.store.GetStats()
}

// Vacuum and Checkpoint expose storage maintenance operations as internal
// plumbing, not public operations; neither the CLI nor the decay
// scheduler calls them.
func (e *Engine) Vacuum() error     { return e.store.Vacuum() }
func (e *Engine) Checkpoint() error { return e.store.Checkpoint() }
