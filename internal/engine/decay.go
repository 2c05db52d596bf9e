package engine

import (
	"context"
	"sync"
	"time"

	"github.com/memexhq/memex/internal/model"
)

// decayPolicy derives the repo-facing DecayPolicy from the engine's live
// configuration, so a concurrent UpdateDecayPolicy call is picked up by
// the next scheduled or on-demand pass without restarting the engine.
func (e *Engine) decayPolicy() model.DecayPolicy {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return model.DecayPolicy{
		DefaultMemoryTTLHours: e.cfg.DefaultMemoryTTLHours,
		ImportanceThreshold:   e.cfg.ImportanceThreshold,
		MaxMemoriesPerUser:    e.cfg.MaxMemoriesPerUser,
		EnableCompression:     e.cfg.EnableCompression,
		AutoEvictOnQuota:      e.cfg.AutoEvictOnQuota,
	}
}

// Decay runs all four decay passes now and returns what they removed or
// compressed. Safe to call concurrently with the background scheduler;
// both paths go through the same writer transaction.
func (e *Engine) Decay(ctx context.Context) (*model.DecayStats, error) {
	return e.memories.RunDecayPass(ctx, e.decayPolicy(), time.Now().UTC())
}

// AnalyzeDecay reports what Decay would do without mutating anything.
func (e *Engine) AnalyzeDecay(ctx context.Context) (*model.DecayPlan, error) {
	return e.memories.AnalyzeDecayPass(ctx, e.decayPolicy(), time.Now().UTC())
}

// UpdateDecayPolicy replaces the subset of configuration the decay
// subsystem reads. It takes effect on the next pass.
func (e *Engine) UpdateDecayPolicy(policy model.DecayPolicy) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.cfg.DefaultMemoryTTLHours = policy.DefaultMemoryTTLHours
	e.cfg.ImportanceThreshold = policy.ImportanceThreshold
	e.cfg.MaxMemoriesPerUser = policy.MaxMemoriesPerUser
	e.cfg.EnableCompression = policy.EnableCompression
	e.cfg.AutoEvictOnQuota = policy.AutoEvictOnQuota
}

// decayScheduler runs Decay on a timer when auto_decay_enabled is set,
// cancellable at pass boundaries via stop.
type decayScheduler struct {
	engine   *Engine
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

func newDecayScheduler(e *Engine, interval time.Duration) *decayScheduler {
	return &decayScheduler{engine: e, interval: interval, stop: make(chan struct{})}
}

func (s *decayScheduler) run() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				stats, err := s.engine.Decay(ctx)
				cancel()
				if err != nil {
					log.Warn("scheduled decay pass failed", "error", err)
					continue
				}
				log.Info("scheduled decay pass complete",
					"memories_expired", stats.MemoriesExpired,
					"memories_evicted", stats.MemoriesEvicted,
					"memories_compressed", stats.MemoriesCompressed,
					"elapsed_ms", stats.ElapsedMS,
				)
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *decayScheduler) close() {
	close(s.stop)
	s.wg.Wait()
}
