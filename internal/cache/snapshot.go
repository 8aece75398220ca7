package cache

import (
	"time"

	"github.com/bnema/pathfinder/internal/domain"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusError    Status = "error"
)

// Snapshot is a point-in-time copy of one cache entry as a consumer sees it.
type Snapshot struct {
	Key        domain.CacheKey
	Value      any
	HasValue   bool
	FetchedAt  time.Time
	StaleAfter time.Duration
	Status     Status
	Err        error
	IsStale    bool
	// Placeholder is set when Value belongs to the key a subscription showed
	// before it moved to Key, and Key has no value of its own yet.
	Placeholder bool
}

// Value extracts the typed value of a snapshot.
func Value[T any](s Snapshot) (T, bool) {
	var zero T
	if !s.HasValue {
		return zero, false
	}
	v, ok := s.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

type entry struct {
	key         domain.CacheKey
	value       any
	hasValue    bool
	fetchedAt   time.Time
	staleAfter  time.Duration
	touchedAt   time.Time
	status      Status
	err         error
	invalidated bool
	fetcher     Fetcher
	pending     []*PendingMutation
	// committedAbove is set once a committed mutation has been unwound while
	// older mutations on the same key were still in flight.
	committedAbove bool
	writeGen       uint64
}

func (e *entry) stale(now time.Time) bool {
	if !e.hasValue || e.invalidated {
		return true
	}
	return now.Sub(e.fetchedAt) >= e.staleAfter
}

func (e *entry) snapshot(now time.Time) Snapshot {
	return Snapshot{
		Key:        e.key,
		Value:      e.value,
		HasValue:   e.hasValue,
		FetchedAt:  e.fetchedAt,
		StaleAfter: e.staleAfter,
		Status:     e.status,
		Err:        e.err,
		IsStale:    e.stale(now),
	}
}
