package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime     = 5 * time.Minute
	DefaultGCTime        = 30 * time.Minute
	DefaultRetryAttempts = 3
	DefaultRetryInitial  = time.Second
	DefaultRetryMax      = 30 * time.Second
)

var ErrNoFetcher = errors.New("cache key has no fetcher")

// Fetcher loads the authoritative value for one key from the remote side.
type Fetcher func(ctx context.Context) (any, error)

type Query struct {
	Key   domain.CacheKey
	Fetch Fetcher
	// StaleAfter overrides Options.StaleTime for this key when positive.
	StaleAfter time.Duration
}

type Options struct {
	StaleTime     time.Duration
	GCTime        time.Duration
	RetryAttempts uint
	RetryInitial  time.Duration
	RetryMax      time.Duration
	// FetchTimeout bounds a single fetch attempt when positive.
	FetchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.StaleTime <= 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.GCTime <= 0 {
		o.GCTime = DefaultGCTime
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = DefaultRetryInitial
	}
	if o.RetryMax <= 0 {
		o.RetryMax = DefaultRetryMax
	}
	return o
}

// Store is the keyed table of fetched values shared by every reader. All
// entry state is guarded by one mutex so reads and writes to a key are
// serialized; remote calls happen outside the lock.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	subs    map[string]map[*Subscription]struct{}

	opts    Options
	clock   ports.Clock
	logger  *slog.Logger
	flights singleflight.Group

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewStore(opts Options, clock ports.Clock, logger *slog.Logger) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		entries: map[string]*entry{},
		subs:    map[string]map[*Subscription]struct{}{},
		opts:    opts.withDefaults(),
		clock:   clock,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Close stops background fetches and waits for them to return.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every background fetch scheduled so far has settled.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) Options() Options {
	return s.opts
}

// Peek returns the entry for key without fetching.
func (s *Store) Peek(key domain.CacheKey) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle, IsStale: true}, false
	}
	return e.snapshot(s.clock.Now()), true
}

// Get returns the cached value for q.Key. A fresh entry is returned as is.
// A stale or missing entry schedules a background fetch and the previous
// value, if any, is returned meanwhile.
func (s *Store) Get(ctx context.Context, q Query) Snapshot {
	s.mu.Lock()
	e := s.ensureLocked(q)
	now := s.clock.Now()
	e.touchedAt = now
	snap := e.snapshot(now)
	needsFetch := snap.IsStale && len(e.pending) == 0 && e.fetcher != nil
	s.mu.Unlock()

	if needsFetch {
		s.refetch(q.Key)
		snap.Status = StatusFetching
	}
	return snap
}

// Fetch is the blocking read: it returns a fresh entry immediately, otherwise
// waits for the fetch. An entry holding an optimistic value is returned as is
// while its mutations are pending. A failed fetch only surfaces an error when
// there is no previous value to fall back to; the snapshot still carries Err.
func (s *Store) Fetch(ctx context.Context, q Query) (Snapshot, error) {
	s.mu.Lock()
	e := s.ensureLocked(q)
	now := s.clock.Now()
	e.touchedAt = now
	if !e.stale(now) || (len(e.pending) > 0 && e.hasValue) {
		snap := e.snapshot(now)
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	ch := s.flights.DoChan(q.Key.String(), func() (any, error) {
		return s.fetchAndApply(q.Key)
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		if res.Err != nil && !snap.HasValue {
			return snap, res.Err
		}
		return snap, nil
	case <-ctx.Done():
		snap, _ := s.Peek(q.Key)
		return snap, ctx.Err()
	}
}

// Set overwrites the value for key and marks it freshly fetched.
func (s *Store) Set(key domain.CacheKey, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensureLocked(Query{Key: key})
	now := s.clock.Now()
	e.value = value
	e.hasValue = true
	e.fetchedAt = now
	e.touchedAt = now
	e.status = StatusIdle
	e.err = nil
	e.invalidated = false
	e.writeGen++
	s.notifyLocked(e)
}

// Invalidate marks every entry matching one of patterns stale, keeping its
// last value visible, and schedules a refetch for entries that can refetch.
// Entries with mutations in flight refetch once those settle.
func (s *Store) Invalidate(patterns ...domain.KeyPattern) []domain.CacheKey {
	s.mu.Lock()
	var matched []domain.CacheKey
	var refetch []domain.CacheKey
	for _, e := range s.entries {
		if !matchesAny(patterns, e.key) {
			continue
		}
		e.invalidated = true
		e.writeGen++
		matched = append(matched, e.key)
		s.notifyLocked(e)
		if len(e.pending) == 0 && e.fetcher != nil {
			refetch = append(refetch, e.key)
		}
	}
	s.mu.Unlock()

	for _, key := range refetch {
		s.refetch(key)
	}
	if len(matched) > 0 {
		s.logger.Debug("cache keys invalidated", "count", len(matched), "refetching", len(refetch))
	}
	return matched
}

// Remove deletes every entry matching one of patterns. Subscribers of a
// removed key observe an empty snapshot.
func (s *Store) Remove(patterns ...domain.KeyPattern) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if !matchesAny(patterns, e.key) {
			continue
		}
		delete(s.entries, k)
		s.flights.Forget(k)
		removed++
		empty := &entry{key: e.key, status: StatusIdle, staleAfter: e.staleAfter}
		s.notifyLocked(empty)
	}
	return removed
}

// Keys lists the keys currently held.
func (s *Store) Keys() []domain.CacheKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]domain.CacheKey, 0, len(s.entries))
	for _, e := range s.entries {
		keys = append(keys, e.key)
	}
	return keys
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) ensureLocked(q Query) *entry {
	k := q.Key.String()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{
			key:        q.Key,
			status:     StatusIdle,
			staleAfter: s.opts.StaleTime,
			touchedAt:  s.clock.Now(),
		}
		s.entries[k] = e
	}
	if q.Fetch != nil {
		e.fetcher = q.Fetch
	}
	if q.StaleAfter > 0 {
		e.staleAfter = q.StaleAfter
	}
	return e
}

// refetch starts a background fetch for key unless one is already in flight.
func (s *Store) refetch(key domain.CacheKey) {
	if s.baseCtx.Err() != nil {
		return
	}

	s.wg.Add(1)
	ch := s.flights.DoChan(key.String(), func() (any, error) {
		return s.fetchAndApply(key)
	})
	go func() {
		defer s.wg.Done()
		res := <-ch
		if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
			s.logger.Warn("background fetch failed", "key", key.String(), "error", res.Err)
		}
	}()
}

func (s *Store) fetchAndApply(key domain.CacheKey) (Snapshot, error) {
	k := key.String()

	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok || e.fetcher == nil {
		s.mu.Unlock()
		return Snapshot{Key: key, Status: StatusIdle, IsStale: true}, fmt.Errorf("fetch %s: %w", k, ErrNoFetcher)
	}
	fetcher := e.fetcher
	gen := e.writeGen
	e.status = StatusFetching
	s.notifyLocked(e)
	s.mu.Unlock()

	value, err := s.fetchWithRetry(key, fetcher)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok = s.entries[k]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle, IsStale: true}, err
	}

	if err != nil {
		e.status = StatusError
		e.err = err
		s.notifyLocked(e)
		return e.snapshot(now), err
	}

	raced := len(e.pending) > 0 || e.writeGen != gen
	if raced && e.hasValue {
		// A write landed while the fetch was in flight; it wins. If the key
		// is still invalidated and nothing is pending, fetch again.
		e.status = StatusIdle
		s.notifyLocked(e)
		if e.invalidated && len(e.pending) == 0 {
			s.flights.Forget(k)
			s.refetch(key)
		}
		return e.snapshot(now), nil
	}

	e.value = value
	e.hasValue = true
	e.fetchedAt = now
	e.status = StatusIdle
	e.err = nil
	// A cold key adopts a raced result as its base but stays due for a
	// refetch once its writes settle.
	e.invalidated = raced
	e.writeGen++
	s.notifyLocked(e)
	s.logger.Debug("cache key fetched", "key", k)
	if raced && len(e.pending) == 0 {
		s.flights.Forget(k)
		s.refetch(key)
	}
	return e.snapshot(now), nil
}

func matchesAny(patterns []domain.KeyPattern, key domain.CacheKey) bool {
	for _, p := range patterns {
		if p.Matches(key) {
			return true
		}
	}
	return false
}
