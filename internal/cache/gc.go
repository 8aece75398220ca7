package cache

import (
	"context"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
)

// GC evicts entries nobody has looked at for GCTime. Entries with
// subscribers or pending mutations are kept, and stale subscribed entries
// are refetched.
func (s *Store) GC() int {
	s.mu.Lock()
	now := s.clock.Now()
	evicted := 0
	var refetch []domain.CacheKey
	for k, e := range s.entries {
		if s.subscribedLocked(k) {
			if e.stale(now) && len(e.pending) == 0 && e.fetcher != nil && e.status != StatusFetching {
				refetch = append(refetch, e.key)
			}
			continue
		}
		if len(e.pending) > 0 {
			continue
		}
		if now.Sub(e.touchedAt) < s.opts.GCTime {
			continue
		}
		delete(s.entries, k)
		evicted++
	}
	s.mu.Unlock()

	for _, key := range refetch {
		s.refetch(key)
	}
	if evicted > 0 {
		s.logger.Debug("cache entries evicted", "count", evicted)
	}
	return evicted
}

// Run calls GC every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			s.GC()
		}
	}
}
