package supabase

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInWithOAuthCompletesPKCEFlow(t *testing.T) {
	t.Parallel()

	var challenge atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "code-abc", body["auth_code"])
		sum := sha256.Sum256([]byte(body["code_verifier"]))
		assert.Equal(t, challenge.Load(), base64.RawURLEncoding.EncodeToString(sum[:]))
		writeJSON(t, w, http.StatusOK, sessionBody("at-1", "rt-1"))
	})
	f := newFixture(t, mux)

	f.client.oauth.Timeout = 5 * time.Second
	f.client.oauth.OpenURL = func(authURL string) error {
		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		q := parsed.Query()
		assert.Equal(t, "/auth/v1/authorize", parsed.Path)
		assert.Equal(t, "google", q.Get("provider"))
		assert.Equal(t, pkceChallengeMethodS256, q.Get("code_challenge_method"))
		challenge.Store(q.Get("code_challenge"))

		go func() {
			resp, err := http.Get(q.Get("redirect_to") + "&code=code-abc")
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	user, err := f.client.SignInWithOAuth(context.Background(), "google")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), user.ID)

	_, err = f.slots.Get(context.Background(), SessionSlot)
	assert.NoError(t, err)
}

func TestSignInWithOAuthRequiresOpener(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.NotFoundHandler())
	_, err := f.client.SignInWithOAuth(context.Background(), "google")
	assert.ErrorIs(t, err, domain.ErrKindValidation)
}

func TestCallbackServerReturnsCodeOnSuccess(t *testing.T) {
	t.Parallel()

	server, err := startCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	resp, err := http.Get(server.RedirectURI() + "&code=auth-code")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Signed in")

	code, err := server.WaitForCode(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "auth-code", code)
}

func TestCallbackServerReturnsErrorOnStateMismatch(t *testing.T) {
	t.Parallel()

	server, err := startCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	port := server.listener.Addr().String()
	resp, err := http.Get("http://" + port + "/auth/callback?code=auth-code&state=wrong-state")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = server.WaitForCode(context.Background(), 2*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestCallbackServerReportsProviderError(t *testing.T) {
	t.Parallel()

	server, err := startCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	resp, err := http.Get(server.RedirectURI() + "&error=access_denied&error_description=user+cancelled")
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, err = server.WaitForCode(context.Background(), 2*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied: user cancelled")
}

func TestCallbackServerTimesOutWaitingForCallback(t *testing.T) {
	t.Parallel()

	server, err := startCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	_, err = server.WaitForCode(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallbackTimeout))
}

func TestCallbackServerStopsWithContext(t *testing.T) {
	t.Parallel()

	server, err := startCallbackServer("127.0.0.1:0", "expected-state")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = server.WaitForCode(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartCallbackServerRequiresExpectedState(t *testing.T) {
	t.Parallel()

	_, err := startCallbackServer("127.0.0.1:0", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingState))
}

func TestPKCEChallengeIsS256OfVerifier(t *testing.T) {
	t.Parallel()

	pair, err := newPKCEPair()
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(pair.Verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), pair.Challenge)
}
