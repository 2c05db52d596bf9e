package engine

import (
	"context"
	"sync"
	"time"

	"github.com/memexhq/memex/internal/logging"
)

// accessLog coalesces access-count bookkeeping. Recall and search hits
// would otherwise each cost a write transaction just to bump a counter;
// instead they call touch, and a background goroutine periodically
// flushes the accumulated IDs through a single MarkAccessed transaction.
// The accumulate-then-flush-on-an-interval shape mirrors the mutex-guarded
// refill bookkeeping in internal/ratelimit's Bucket, applied here to write
// coalescing instead of token accounting.
type accessLog struct {
	mu       sync.Mutex
	pending  map[string]struct{}
	flush    func(ctx context.Context, ids []string, at time.Time) error
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

func newAccessLog(interval time.Duration, flush func(ctx context.Context, ids []string, at time.Time) error) *accessLog {
	return &accessLog{
		pending:  make(map[string]struct{}),
		flush:    flush,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// touch records that id was read; the next flush will bump its access
// count and last_accessed_at.
func (a *accessLog) touch(id string) {
	a.mu.Lock()
	a.pending[id] = struct{}{}
	a.mu.Unlock()
}

// run starts the periodic flush loop. Call stop to end it.
func (a *accessLog) run() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flushNow()
			case <-a.stop:
				a.flushNow()
				return
			}
		}
	}()
}

func (a *accessLog) flushNow() {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	a.pending = make(map[string]struct{})
	a.mu.Unlock()

	if err := a.flush(context.Background(), ids, time.Now().UTC()); err != nil {
		log.Warn("access log flush failed", "error", err, "count", len(ids))
	}
}

func (a *accessLog) close() {
	close(a.stop)
	a.wg.Wait()
}

var log = logging.GetLogger("engine")
