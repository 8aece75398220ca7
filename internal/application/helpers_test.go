package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/bnema/pathfinder/internal/ports/mocks"
	"github.com/stretchr/testify/mock"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// memSlots is an in-memory SlotStore.
type memSlots struct {
	mu    sync.Mutex
	slots map[string]string
}

func newMemSlots() *memSlots {
	return &memSlots{slots: map[string]string{}}
}

func (m *memSlots) Get(_ context.Context, slot string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[slot]
	if !ok {
		return "", fmt.Errorf("get %s: %w", slot, domain.ErrSlotNotFound)
	}
	return v, nil
}

func (m *memSlots) Set(_ context.Context, slot, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = value
	return nil
}

func (m *memSlots) Remove(_ context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, slot)
	return nil
}

func (m *memSlots) has(slot string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[slot]
	return ok
}

// memData is an in-memory DataService with per-table failure injection.
type memData struct {
	mu       sync.Mutex
	tables   map[string][]ports.Row
	failures map[string]error
	calls    []string
	nextID   int
}

func newMemData() *memData {
	return &memData{tables: map[string][]ports.Row{}, failures: map[string]error{}}
}

func (d *memData) seed(table string, rows ...ports.Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[table] = append(d.tables[table], rows...)
}

func (d *memData) failOn(table string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, table)
		return
	}
	d.failures[table] = err
}

func (d *memData) rows(table string) []ports.Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ports.Row, 0, len(d.tables[table]))
	for _, row := range d.tables[table] {
		out = append(out, copyRow(row))
	}
	return out
}

func (d *memData) Select(_ context.Context, collection string, filter ports.Filter, page ports.Pagination) (ports.SelectResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures[collection]; err != nil {
		return ports.SelectResult{}, err
	}

	var matched []ports.Row
	for _, row := range d.tables[collection] {
		if rowMatches(row, filter) {
			matched = append(matched, copyRow(row))
		}
	}
	count := len(matched)
	if page.Limit > 0 {
		start := min(page.Offset, len(matched))
		end := min(start+page.Limit, len(matched))
		matched = matched[start:end]
	}
	return ports.SelectResult{Rows: matched, Count: count}, nil
}

func (d *memData) Insert(_ context.Context, collection string, row ports.Row) (ports.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures[collection]; err != nil {
		return nil, err
	}
	stored := copyRow(row)
	if _, ok := stored["id"]; !ok {
		d.nextID++
		stored["id"] = fmt.Sprintf("%s-%d", collection, d.nextID)
	}
	d.tables[collection] = append(d.tables[collection], stored)
	return copyRow(stored), nil
}

func (d *memData) Update(_ context.Context, collection string, filter ports.Filter, patch ports.Row) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "update "+collection)
	if err := d.failures[collection]; err != nil {
		return 0, err
	}
	n := 0
	for _, row := range d.tables[collection] {
		if !rowMatches(row, filter) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		n++
	}
	return n, nil
}

func (d *memData) Delete(_ context.Context, collection string, filter ports.Filter) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures[collection]; err != nil {
		return 0, err
	}
	kept := d.tables[collection][:0]
	n := 0
	for _, row := range d.tables[collection] {
		if rowMatches(row, filter) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	d.tables[collection] = kept
	return n, nil
}

func (d *memData) Call(_ context.Context, procedure string, args map[string]any) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "call "+procedure)
	if err := d.failures[procedure]; err != nil {
		return nil, err
	}
	if procedure == "increment_content_views" {
		for _, row := range d.tables["contents"] {
			if row["id"] == args["content_id"] {
				row["view_count"] = toInt(row["view_count"]) + 1
			}
		}
	}
	return json.RawMessage("null"), nil
}

func rowMatches(row ports.Row, filter ports.Filter) bool {
	for _, c := range filter.Conditions {
		if fmt.Sprint(row[c.Column]) != fmt.Sprint(c.Value) {
			return false
		}
	}
	if filter.Search != nil {
		term := strings.ToLower(filter.Search.Term)
		for _, column := range filter.Search.Columns {
			if strings.Contains(strings.ToLower(fmt.Sprint(row[column])), term) {
				return true
			}
		}
		return false
	}
	return true
}

func copyRow(row ports.Row) ports.Row {
	out := make(ports.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// gatedData holds the next Update on one collection until the test releases
// it, so optimistic state can be observed mid-flight.
type gatedData struct {
	*memData

	gateMu     sync.Mutex
	collection string
	entered    chan struct{}
	release    chan error
}

func (d *gatedData) hold(collection string) (entered <-chan struct{}, release chan<- error) {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()
	d.collection = collection
	d.entered = make(chan struct{}, 1)
	d.release = make(chan error, 1)
	return d.entered, d.release
}

func (d *gatedData) Update(ctx context.Context, collection string, filter ports.Filter, patch ports.Row) (int, error) {
	d.gateMu.Lock()
	gated := d.collection != "" && d.collection == collection
	entered, release := d.entered, d.release
	if gated {
		d.collection = ""
	}
	d.gateMu.Unlock()

	if gated {
		entered <- struct{}{}
		if err := <-release; err != nil {
			return 0, err
		}
	}
	return d.memData.Update(ctx, collection, filter, patch)
}

type coreFixture struct {
	core  *Core
	data  *gatedData
	slots *memSlots
	auth  *mocks.MockAuthProvider
}

// newCoreFixture builds a started Core. A nil user resolves to a fresh
// anonymous session.
func newCoreFixture(t *testing.T, user *ports.AuthUser) *coreFixture {
	t.Helper()
	f := &coreFixture{
		data:  &gatedData{memData: newMemData()},
		slots: newMemSlots(),
		auth:  mocks.NewMockAuthProvider(t),
	}
	f.auth.EXPECT().CurrentUser(mock.Anything).Return(user, nil).Maybe()
	f.core = NewCore(f.auth, f.data, f.slots, fixedClock{now: testNow}, nil, CoreOptions{
		Cache: cache.Options{RetryAttempts: 1, RetryInitial: time.Millisecond},
	})
	t.Cleanup(f.core.Close)
	f.core.Start(context.Background())
	return f
}
