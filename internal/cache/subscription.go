package cache

import (
	"context"
)

type SubscribeOptions struct {
	// KeepPrevious shows the last value of the previous key while a key
	// moved to with SetQuery has no value yet.
	KeepPrevious bool
}

// Subscription observes one key at a time. Updates is a latest-wins channel:
// a slow reader only ever sees the newest snapshot.
type Subscription struct {
	store    *Store
	opts     SubscribeOptions
	query    Query
	previous *Snapshot
	updates  chan Snapshot
	closed   bool
}

// Subscribe registers interest in q.Key and triggers a fetch when the key is
// stale. Entries with subscribers are never garbage collected.
func (s *Store) Subscribe(ctx context.Context, q Query, opts SubscribeOptions) *Subscription {
	sub := &Subscription{
		store:   s,
		opts:    opts,
		query:   q,
		updates: make(chan Snapshot, 1),
	}

	s.mu.Lock()
	s.attachLocked(sub)
	s.mu.Unlock()

	s.Get(ctx, q)
	return sub
}

func (sub *Subscription) Key() string {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	return sub.query.Key.String()
}

// Snapshot returns the current view of the subscribed key.
func (sub *Subscription) Snapshot() Snapshot {
	s := sub.store
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Key: sub.query.Key, Status: StatusIdle, IsStale: true}
	if e, ok := s.entries[sub.query.Key.String()]; ok {
		snap = e.snapshot(s.clock.Now())
	}
	return sub.decorateLocked(snap)
}

func (sub *Subscription) Updates() <-chan Snapshot {
	return sub.updates
}

// SetQuery moves the subscription to another key, for example the next page
// of a list. With KeepPrevious the old value stays visible as a placeholder
// until the new key has data.
func (sub *Subscription) SetQuery(ctx context.Context, q Query) {
	s := sub.store
	s.mu.Lock()
	if sub.closed {
		s.mu.Unlock()
		return
	}
	if q.Key.Equal(sub.query.Key) {
		sub.query = q
		s.mu.Unlock()
		s.Get(ctx, q)
		return
	}

	var previous *Snapshot
	if sub.opts.KeepPrevious {
		if e, ok := s.entries[sub.query.Key.String()]; ok && e.hasValue {
			snap := e.snapshot(s.clock.Now())
			previous = &snap
		} else if sub.previous != nil {
			previous = sub.previous
		}
	}

	s.detachLocked(sub)
	sub.query = q
	sub.previous = previous
	s.attachLocked(sub)

	snap := Snapshot{Key: q.Key, Status: StatusIdle, IsStale: true}
	if e, ok := s.entries[q.Key.String()]; ok {
		snap = e.snapshot(s.clock.Now())
	}
	sub.sendLocked(sub.decorateLocked(snap))
	s.mu.Unlock()

	s.Get(ctx, q)
}

func (sub *Subscription) Close() {
	s := sub.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.closed {
		return
	}
	sub.closed = true
	s.detachLocked(sub)
	if e, ok := s.entries[sub.query.Key.String()]; ok {
		e.touchedAt = s.clock.Now()
	}
	close(sub.updates)
}

func (sub *Subscription) decorateLocked(snap Snapshot) Snapshot {
	if snap.HasValue {
		sub.previous = nil
		return snap
	}
	if sub.previous != nil {
		snap.Value = sub.previous.Value
		snap.HasValue = true
		snap.Placeholder = true
	}
	return snap
}

func (sub *Subscription) sendLocked(snap Snapshot) {
	select {
	case <-sub.updates:
	default:
	}
	sub.updates <- snap
}

func (s *Store) attachLocked(sub *Subscription) {
	k := sub.query.Key.String()
	set, ok := s.subs[k]
	if !ok {
		set = map[*Subscription]struct{}{}
		s.subs[k] = set
	}
	set[sub] = struct{}{}
}

func (s *Store) detachLocked(sub *Subscription) {
	k := sub.query.Key.String()
	set := s.subs[k]
	delete(set, sub)
	if len(set) == 0 {
		delete(s.subs, k)
	}
}

func (s *Store) subscribedLocked(key string) bool {
	return len(s.subs[key]) > 0
}

// notifyLocked pushes the current state of e to every subscriber of its key.
func (s *Store) notifyLocked(e *entry) {
	set := s.subs[e.key.String()]
	if len(set) == 0 {
		return
	}
	snap := e.snapshot(s.clock.Now())
	for sub := range set {
		sub.sendLocked(sub.decorateLocked(snap))
	}
}
