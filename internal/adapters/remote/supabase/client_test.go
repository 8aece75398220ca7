package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "missing url", cfg: Config{AnonKey: "k"}, want: "url is required"},
		{name: "missing key", cfg: Config{URL: "https://x.supabase.co"}, want: "anon key is required"},
		{name: "bad scheme", cfg: Config{URL: "ftp://x.supabase.co", AnonKey: "k"}, want: "http or https"},
		{name: "no host", cfg: Config{URL: "https://", AnonKey: "k"}, want: "host is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelectBuildsPostgRESTQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/contents", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "eq.tech", q.Get("category"))
		assert.Equal(t, "(title.ilike.*go*,description.ilike.*go*)", q.Get("or"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "12-23", r.Header.Get("Range"))
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, testAnonKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testAnonKey, r.Header.Get("Authorization"))

		w.Header().Set("Content-Range", "12-13/14")
		writeJSON(t, w, http.StatusPartialContent, []map[string]any{{"id": "c13"}, {"id": "c14"}})
	}))

	filter := ports.Where(ports.Eq("category", "tech"))
	filter.Search = &ports.Search{Columns: []string{"title", "description"}, Term: "go"}
	filter.OrderBy = "created_at"
	filter.Descending = true

	res, err := f.client.Select(context.Background(), "contents", filter, ports.Pagination{Offset: 12, Limit: 12})
	require.NoError(t, err)
	assert.Equal(t, 14, res.Count)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "c13", res.Rows[0]["id"])
}

func TestSelectPastLastPageIsEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Range", "*/3")
		writeJSON(t, w, http.StatusRequestedRangeNotSatisfiable, map[string]any{"code": "PGRST103", "message": "Requested range not satisfiable"})
	}))

	res, err := f.client.Select(context.Background(), "stories", ports.Filter{}, ports.Pagination{Offset: 24, Limit: 12})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 3, res.Count)
}

func TestFilterQueryOperators(t *testing.T) {
	t.Parallel()

	q := filterQuery(ports.Filter{Conditions: []ports.Condition{
		{Column: "status", Op: ports.FilterNeq, Value: "archived"},
		{Column: "title", Op: ports.FilterILike, Value: "%intro%"},
		{Column: "id", Op: ports.FilterIn, Value: []any{"a", "b c"}},
		{Column: "parent_id", Op: ports.FilterEq, Value: nil},
		{Column: "is_public", Op: ports.FilterEq, Value: true},
	}})

	assert.Equal(t, "neq.archived", q.Get("status"))
	assert.Equal(t, "ilike.*intro*", q.Get("title"))
	assert.Equal(t, `in.(a,"b c")`, q.Get("id"))
	assert.Equal(t, "is.null", q.Get("parent_id"))
	assert.Equal(t, "eq.true", q.Get("is_public"))
}

func TestWritesReturnRepresentation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		switch r.Method {
		case http.MethodPost:
			writeJSON(t, w, http.StatusCreated, []map[string]any{{"id": "s1", "title": "Hello"}})
		case http.MethodPatch:
			assert.Equal(t, "eq.guest_1", r.URL.Query().Get("user_id"))
			writeJSON(t, w, http.StatusOK, []map[string]any{{"id": "a"}, {"id": "b"}})
		case http.MethodDelete:
			assert.Equal(t, "eq.s1", r.URL.Query().Get("id"))
			writeJSON(t, w, http.StatusOK, []map[string]any{})
		}
	}))
	ctx := context.Background()

	row, err := f.client.Insert(ctx, "stories", ports.Row{"title": "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "s1", row["id"])

	n, err := f.client.Update(ctx, "user_skills", ports.Where(ports.Eq("user_id", "guest_1")), ports.Row{"user_id": "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.client.Delete(ctx, "stories", ports.ByID("s1"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCallReturnsRawResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/increment_content_views", r.URL.Path)
		writeJSON(t, w, http.StatusOK, 42)
	}))

	out, err := f.client.Call(context.Background(), "increment_content_views", map[string]any{"content_id": "c1"})
	require.NoError(t, err)
	assert.JSONEq(t, "42", string(out))
}

func TestErrorsMapOntoDomainKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   *domain.Error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"JWT expired"}`, want: domain.ErrKindAuthentication},
		{name: "invalid grant", status: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, want: domain.ErrKindAuthentication},
		{name: "unique violation", status: http.StatusConflict, body: `{"code":"23505","message":"duplicate key"}`, want: domain.ErrKindConflict},
		{name: "user exists", status: http.StatusUnprocessableEntity, body: `{"error_code":"user_already_exists","msg":"User already registered"}`, want: domain.ErrKindConflict},
		{name: "single row missing", status: http.StatusNotAcceptable, body: `{"code":"PGRST116"}`, want: domain.ErrKindNotFound},
		{name: "not found", status: http.StatusNotFound, body: ``, want: domain.ErrKindNotFound},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: ``, want: domain.ErrKindTimeout},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, want: domain.ErrKindNetwork},
		{name: "bad request", status: http.StatusBadRequest, body: `{"message":"bad column"}`, want: domain.ErrKindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := f.client.Select(context.Background(), "contents", ports.Filter{}, ports.Pagination{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := New(Config{URL: url, AnonKey: testAnonKey})
	require.NoError(t, err)

	_, err = client.Select(context.Background(), "contents", ports.Filter{}, ports.Pagination{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKindNetwork)
	assert.True(t, domain.IsTransient(err))
}

func TestCanceledContextIsNotClassified(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []any{})
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client.Select(ctx, "contents", ports.Filter{}, ports.Pagination{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, domain.IsTransient(err))
}
