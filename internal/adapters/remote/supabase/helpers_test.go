package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	fileslots "github.com/bnema/pathfinder/internal/adapters/slots/file"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/stretchr/testify/require"
)

const testAnonKey = "anon-key"

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixture struct {
	client *Client
	slots  *fileslots.Store
	server *httptest.Server
}

func newFixture(t *testing.T, handler http.Handler) fixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	slots := fileslots.NewStore(t.TempDir())
	client, err := New(Config{
		URL:     server.URL,
		AnonKey: testAnonKey,
		Slots:   slots,
		Clock:   fixedClock{now: testNow},
	})
	require.NoError(t, err)

	return fixture{client: client, slots: slots, server: server}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func seedSession(t *testing.T, f fixture, session tokenSession) {
	t.Helper()
	payload, err := json.Marshal(session)
	require.NoError(t, err)
	require.NoError(t, f.slots.Set(context.Background(), SessionSlot, string(payload)))
}

func sessionBody(access, refresh string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]any{"id": "user-1", "email": "ana@example.com"},
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []ports.AuthEventType
}

func (r *eventRecorder) record(ev ports.AuthEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev.Type)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []ports.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.AuthEventType(nil), r.events...)
}
