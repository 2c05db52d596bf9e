// Package model defines the data types shared across the storage, repo,
// and engine layers: Memory, Session, QueryFilter, and the paginated
// response envelope returned by recall-style operations.
package model

import "time"

// Memory is the atomic unit of stored text.
type Memory struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	SessionID      string                 `json:"session_id"`
	Content        string                 `json:"content"`
	Importance     float64                `json:"importance"`
	TTLHours       *int                   `json:"ttl_hours,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	AccessCount    int                    `json:"access_count"`
	LastAccessedAt *time.Time             `json:"last_accessed_at,omitempty"`
}

// MemoryPatch carries optional per-field updates for UpdateMemory. A nil
// field means "leave unchanged"; Metadata/Tags use presence via the *Set
// flags because nil and empty are both meaningful for them.
type MemoryPatch struct {
	Content       *string
	Importance    *float64
	Metadata      map[string]interface{}
	MetadataSet   bool
	Tags          []string
	TagsSet       bool
	TTLHours      *int
	TTLHoursSet   bool
}

// Session groups memories belonging to one user.
type Session struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Name           string                 `json:"name,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	LastActivityAt time.Time              `json:"last_activity_at"`
}

// SessionSummary carries the derived counters spec.md requires for a
// session: these are computed on demand by StatsRepo, never stored.
type SessionSummary struct {
	Session             Session   `json:"session"`
	MemoryCount         int       `json:"memory_count"`
	AggregateImportance float64   `json:"aggregate_importance"`
	AverageImportance   float64   `json:"average_importance"`
	EarliestCreatedAt   time.Time `json:"earliest_created_at"`
	LatestCreatedAt     time.Time `json:"latest_created_at"`
	TopMemories         []Excerpt `json:"top_memories"`
	KeywordHistogram    map[string]int `json:"keyword_histogram"`
}

// Excerpt is a truncated preview of a memory, used by session summaries.
type Excerpt struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Importance float64 `json:"importance"`
}

// QueryFilter is the transient filter recall/search compile into SQL.
type QueryFilter struct {
	UserID        string
	SessionID     string
	Keywords      []string
	DateFrom      *time.Time
	DateTo        *time.Time
	MinImportance float64
	Metadata      map[string]string
	Limit         int
	Offset        int
}

// DefaultLimit and MaxLimit bound QueryFilter.Limit.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Normalize applies QueryFilter defaults and reports whether the filter,
// as given, is valid.
func (f *QueryFilter) Normalize() error {
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 0 || f.Limit > MaxLimit {
		return errInvalidLimit
	}
	if f.Offset < 0 {
		return errInvalidOffset
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return errInvalidDateWindow
	}
	if f.MinImportance < 0 || f.MinImportance > 1 {
		return errInvalidImportance
	}
	return nil
}

// PageResponse is the paginated envelope returned by recall-style reads.
type PageResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPageResponse computes pagination metadata from a raw result set and
// the filter that produced it.
func NewPageResponse[T any](data []T, totalCount, limit, offset int, hasNext bool) PageResponse[T] {
	perPage := limit
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	page := offset/perPage + 1
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + perPage - 1) / perPage
	}
	return PageResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    hasNext,
		HasPrev:    offset > 0,
	}
}

// SearchResult pairs a Memory with the relevance score keyword search
// produced for it, normalized into the 0..1 range.
type SearchResult struct {
	Memory     Memory  `json:"memory"`
	Relevance  float64 `json:"relevance"`
}

// UserStats aggregates one user's memory and session counts, backing
// get_user_stats, distinct from the engine-wide Stats in the storage package.
type UserStats struct {
	UserID            string     `json:"user_id"`
	MemoryCount       int        `json:"memory_count"`
	SessionCount      int        `json:"session_count"`
	AverageImportance float64    `json:"average_importance"`
	OldestMemoryAt    *time.Time `json:"oldest_memory_at,omitempty"`
	NewestMemoryAt    *time.Time `json:"newest_memory_at,omitempty"`
}

// SessionAnalytics is one session's rolled-up memory counters, backing
// get_session_analytics.
type SessionAnalytics struct {
	SessionID         string    `json:"session_id"`
	Name              string    `json:"name,omitempty"`
	MemoryCount       int       `json:"memory_count"`
	AverageImportance float64   `json:"average_importance"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}

// DecayStats reports what a decay pass actually removed or compressed.
type DecayStats struct {
	MemoriesExpired    int   `json:"memories_expired"`
	MemoriesEvicted    int   `json:"memories_evicted"`
	MemoriesCompressed int   `json:"memories_compressed"`
	ElapsedMS          int64 `json:"elapsed_ms"`
}

// DecayPlan is the read-only counterpart of DecayStats produced by
// AnalyzeDecay: what would be removed without mutating anything.
type DecayPlan struct {
	WouldExpire    []string `json:"would_expire"`
	WouldEvict     []string `json:"would_evict"`
	WouldCompress  []string `json:"would_compress"`
}

// BatchItemStatus is the outcome of a single row within a SaveBatch call.
type BatchItemStatus string

const (
	BatchItemOK    BatchItemStatus = "ok"
	BatchItemError BatchItemStatus = "error"
)

// BatchItemResult is one entry in a SaveBatch response.
type BatchItemResult struct {
	Index  int             `json:"index"`
	Status BatchItemStatus `json:"status"`
	ID     string          `json:"id,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   string          `json:"kind,omitempty"`
}

// BatchResponse is the response shape for save_batch.
type BatchResponse struct {
	Results       []BatchItemResult `json:"results"`
	SuccessCount  int               `json:"success_count"`
	FailureCount  int               `json:"failure_count"`
}

// DecayPolicy configures the decay subsystem. It mirrors the subset of
// Config relevant to decay so the repo package's decay passes do not need
// to import the top-level config package.
type DecayPolicy struct {
	DefaultMemoryTTLHours int
	ImportanceThreshold   float64
	MaxMemoriesPerUser    int
	EnableCompression     bool
	AutoEvictOnQuota      bool
}
