// Package tracker collects per-provider synthesis usage statistics.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per synthesis provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	Synthesized int64 // successful synthesis calls
	Failures    int64 // failed attempts (after retries)
	Retries     int64 // same-provider retry attempts
	FallbackIn  int64 // requests served as a fallback for another provider
	Played      int64 // queue items played through this provider
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackSynthesized increments the successful synthesis counter.
func (t *Tracker) TrackSynthesized(provider string) {
	atomic.AddInt64(&t.getStats(provider).Synthesized, 1)
}

func (t *Tracker) TrackFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).Failures, 1)
}

func (t *Tracker) TrackRetry(provider string) {
	atomic.AddInt64(&t.getStats(provider).Retries, 1)
}

func (t *Tracker) TrackFallbackIn(provider string) {
	atomic.AddInt64(&t.getStats(provider).FallbackIn, 1)
}

func (t *Tracker) TrackPlayed(provider string) {
	atomic.AddInt64(&t.getStats(provider).Played, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			Synthesized: atomic.LoadInt64(&v.Synthesized),
			Failures:    atomic.LoadInt64(&v.Failures),
			Retries:     atomic.LoadInt64(&v.Retries),
			FallbackIn:  atomic.LoadInt64(&v.FallbackIn),
			Played:      atomic.LoadInt64(&v.Played),
		}
	}
	return result
}

// Reset zeroes all counters while keeping known providers in the map.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.stats {
		atomic.StoreInt64(&s.Synthesized, 0)
		atomic.StoreInt64(&s.Failures, 0)
		atomic.StoreInt64(&s.Retries, 0)
		atomic.StoreInt64(&s.FallbackIn, 0)
		atomic.StoreInt64(&s.Played, 0)
	}
}
