package cache

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/google/uuid"
)

type MutationStatus string

const (
	MutationApplied    MutationStatus = "applied"
	MutationCommitted  MutationStatus = "committed"
	MutationRolledBack MutationStatus = "rolled_back"
)

var ErrNoRemote = errors.New("mutation has no remote call")

// PendingMutation records one optimistic write until its remote call settles.
// PreviousValue is captured before the optimistic value is written.
type PendingMutation struct {
	ID              string
	Kind            MutationKind
	TargetKey       domain.CacheKey
	PreviousValue   any
	HadPrevious     bool
	OptimisticValue any
	Status          MutationStatus

	wrote bool
}

// Optimistic derives the optimistic value from the current one. Returning
// false leaves the entry untouched. Cached values are shared, so next must
// be a new value rather than a modified previous.
type Optimistic func(previous any, exists bool) (next any, ok bool)

// Replace is the Optimistic that writes v whatever was cached.
func Replace(v any) Optimistic {
	return func(any, bool) (any, bool) { return v, true }
}

// Patch adapts a typed update of an existing value. Nothing is written when
// the key holds no value of type T.
func Patch[T any](update func(T) T) Optimistic {
	return func(previous any, exists bool) (any, bool) {
		if !exists {
			return nil, false
		}
		v, ok := previous.(T)
		if !ok {
			return nil, false
		}
		return update(v), true
	}
}

type Mutation struct {
	Kind    MutationKind
	Subject Subject
	// Target is the key written optimistically. A zero Target skips the
	// optimistic step and only runs Remote and the invalidation rule.
	Target     domain.CacheKey
	Optimistic Optimistic
	Remote     func(ctx context.Context) (any, error)
	// OnSuccess runs with the remote result after commit and before
	// invalidation.
	OnSuccess func(store *Store, result any)
}

type MutationResult struct {
	ID          string
	Value       any
	Invalidated []domain.CacheKey
}

// Coordinator runs writes with optimistic updates: apply locally, call the
// remote side, then either commit and invalidate or restore the snapshot.
type Coordinator struct {
	store  *Store
	bus    *Bus
	logger *slog.Logger
}

func NewCoordinator(store *Store, bus *Bus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{store: store, bus: bus, logger: logger}
}

// Mutate writes optimisticValue to target, then calls remote.
func (c *Coordinator) Mutate(ctx context.Context, target domain.CacheKey, optimisticValue any, remote func(ctx context.Context) (any, error)) (MutationResult, error) {
	return c.Run(ctx, Mutation{Target: target, Optimistic: Replace(optimisticValue), Remote: remote})
}

// Run executes m. The remote call is not cancellable once started: it runs
// with ctx's values but without its cancellation. Failed writes are never
// retried and never invalidate anything.
func (c *Coordinator) Run(ctx context.Context, m Mutation) (MutationResult, error) {
	if m.Remote == nil {
		return MutationResult{}, ErrNoRemote
	}

	result := MutationResult{ID: uuid.NewString()}

	var pm *PendingMutation
	if m.Optimistic != nil && !m.Target.IsZero() {
		pm = c.store.applyOptimistic(result.ID, m)
	}

	value, err := m.Remote(context.WithoutCancel(ctx))
	if err != nil {
		if pm != nil {
			c.store.settle(pm, MutationRolledBack)
		}
		c.logger.Error("mutation failed", "kind", m.Kind, "id", result.ID, "error_kind", domain.KindOf(err), "error", err)
		return result, err
	}

	var gen uint64
	if pm != nil {
		c.store.settle(pm, MutationCommitted)
		gen = c.store.generation(m.Target)
	}
	result.Value = value

	if m.OnSuccess != nil {
		m.OnSuccess(c.store, value)
	}
	// An OnSuccess that stored the server value leaves nothing to refetch.
	if pm != nil && !c.store.rewrittenSince(m.Target, gen) {
		result.Invalidated = append(result.Invalidated, c.store.Invalidate(domain.ExactPattern(m.Target))...)
	}
	if c.bus != nil && m.Kind != "" {
		result.Invalidated = appendUnique(result.Invalidated, c.bus.Publish(m.Kind, m.Subject)...)
	}

	c.logger.Debug("mutation committed", "kind", m.Kind, "id", result.ID, "invalidated", len(result.Invalidated))
	return result, nil
}

// Pending lists the unsettled mutations on key, oldest first.
func (s *Store) Pending(key domain.CacheKey) []PendingMutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return nil
	}
	out := make([]PendingMutation, 0, len(e.pending))
	for _, pm := range e.pending {
		out = append(out, *pm)
	}
	return out
}

func (s *Store) generation(key domain.CacheKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key.String()]; ok {
		return e.writeGen
	}
	return 0
}

// rewrittenSince reports whether key was written with a fresh value after
// generation gen and nothing has invalidated it since.
func (s *Store) rewrittenSince(key domain.CacheKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	return ok && e.writeGen != gen && e.hasValue && !e.invalidated && len(e.pending) == 0
}

// applyOptimistic snapshots the target and writes the optimistic value in
// one step, so a second mutation on the same key composes on the first.
func (s *Store) applyOptimistic(id string, m Mutation) *PendingMutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensureLocked(Query{Key: m.Target})
	e.touchedAt = s.clock.Now()

	pm := &PendingMutation{
		ID:              id,
		Kind:            m.Kind,
		TargetKey:       m.Target,
		PreviousValue:   e.value,
		HadPrevious:     e.hasValue,
		OptimisticValue: e.value,
		Status:          MutationApplied,
	}
	e.pending = append(e.pending, pm)

	next, ok := m.Optimistic(e.value, e.hasValue)
	if !ok {
		return pm
	}
	pm.OptimisticValue = next
	pm.wrote = true
	e.value = next
	e.hasValue = true
	e.writeGen++
	s.notifyLocked(e)
	return pm
}

// settle records the outcome of pm and unwinds settled mutations from the
// top of the key's stack. A rollback restores its snapshot unless a newer
// mutation on the key has already committed, in which case the refetch
// scheduled by that commit reconciles the value.
func (s *Store) settle(pm *PendingMutation, status MutationStatus) {
	s.mu.Lock()
	pm.Status = status

	e, ok := s.entries[pm.TargetKey.String()]
	if !ok || !slices.Contains(e.pending, pm) {
		s.mu.Unlock()
		return
	}

	for len(e.pending) > 0 {
		top := e.pending[len(e.pending)-1]
		if top.Status == MutationApplied {
			break
		}
		e.pending = e.pending[:len(e.pending)-1]

		switch top.Status {
		case MutationRolledBack:
			if e.committedAbove || !top.wrote {
				continue
			}
			e.value = top.PreviousValue
			e.hasValue = top.HadPrevious
			e.writeGen++
		case MutationCommitted:
			e.committedAbove = true
		}
	}

	refetch := false
	if len(e.pending) == 0 {
		e.committedAbove = false
		refetch = e.invalidated && e.fetcher != nil
	}
	s.notifyLocked(e)
	key := e.key
	s.mu.Unlock()

	if refetch {
		s.refetch(key)
	}
}

func appendUnique(keys []domain.CacheKey, more ...domain.CacheKey) []domain.CacheKey {
	for _, k := range more {
		if !slices.ContainsFunc(keys, k.Equal) {
			keys = append(keys, k)
		}
	}
	return keys
}
