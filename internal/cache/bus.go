package cache

import (
	"log/slog"
	"sync"

	"github.com/bnema/pathfinder/internal/domain"
)

type MutationKind string

// Subject identifies what a mutation touched. Rules derive key patterns from
// it; fields a rule does not need may be left empty.
type Subject struct {
	ID       string
	ParentID string
	UserID   domain.UserID
	Extra    map[string]string
}

// Target derives the key patterns affected by a mutation on subject.
type Target func(Subject) []domain.KeyPattern

// Rule declares which keys a mutation kind invalidates and which it removes
// outright, for example the detail of a deleted entity.
type Rule struct {
	Kind       MutationKind
	Invalidate []Target
	Remove     []Target
}

// Exact targets the single key build returns. An empty subject field yields
// no pattern.
func Exact(build func(Subject) domain.CacheKey) Target {
	return func(s Subject) []domain.KeyPattern {
		key := build(s)
		if len(key.Params) == 0 {
			return nil
		}
		return []domain.KeyPattern{domain.ExactPattern(key)}
	}
}

// Pattern targets every key of a domain and operation, whatever its params.
func Pattern(d domain.EntityDomain, op domain.Operation) Target {
	return func(Subject) []domain.KeyPattern {
		return []domain.KeyPattern{domain.DomainPattern(d, op)}
	}
}

type Bus struct {
	mu     sync.RWMutex
	rules  map[MutationKind]Rule
	store  *Store
	logger *slog.Logger
}

func NewBus(store *Store, logger *slog.Logger, rules ...Rule) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bus{
		rules:  map[MutationKind]Rule{},
		store:  store,
		logger: logger,
	}
	b.Register(rules...)
	return b
}

// Register adds rules, appending targets when a kind is already known.
func (b *Bus) Register(rules ...Rule) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range rules {
		existing := b.rules[r.Kind]
		existing.Kind = r.Kind
		existing.Invalidate = append(existing.Invalidate, r.Invalidate...)
		existing.Remove = append(existing.Remove, r.Remove...)
		b.rules[r.Kind] = existing
	}
}

func (b *Bus) Known(kind MutationKind) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rules[kind]
	return ok
}

// Patterns resolves the rule for kind against subject.
func (b *Bus) Patterns(kind MutationKind, subject Subject) (invalidate, remove []domain.KeyPattern) {
	b.mu.RLock()
	rule, ok := b.rules[kind]
	b.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	for _, t := range rule.Invalidate {
		invalidate = append(invalidate, t(subject)...)
	}
	for _, t := range rule.Remove {
		remove = append(remove, t(subject)...)
	}
	return invalidate, remove
}

// Publish applies the rule for kind: removals first, then invalidations.
// It returns the keys marked stale.
func (b *Bus) Publish(kind MutationKind, subject Subject) []domain.CacheKey {
	invalidate, remove := b.Patterns(kind, subject)
	if invalidate == nil && remove == nil {
		b.logger.Debug("no invalidation rule", "kind", kind)
		return nil
	}

	if len(remove) > 0 {
		b.store.Remove(remove...)
	}
	var stale []domain.CacheKey
	if len(invalidate) > 0 {
		stale = b.store.Invalidate(invalidate...)
	}
	b.logger.Debug("mutation published", "kind", kind, "subject", subject.ID, "invalidated", len(stale))
	return stale
}
