package supabase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

var (
	ErrStateMismatch   = errors.New("oauth callback state mismatch")
	ErrCallbackTimeout = errors.New("timed out waiting for oauth callback")
	ErrMissingState    = errors.New("expected state is required")
)

const (
	defaultOAuthListenAddr = "127.0.0.1:0"
	defaultOAuthTimeout    = 5 * time.Minute
)

type OAuthConfig struct {
	ListenAddr string
	Timeout    time.Duration
	// OpenURL hands the authorize URL to the user, typically by printing it
	// or launching a browser.
	OpenURL func(authURL string) error
}

func (c OAuthConfig) withDefaults() OAuthConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultOAuthListenAddr
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultOAuthTimeout
	}
	return c
}

// SignInWithOAuth runs the PKCE browser flow against the project's
// configured identity provider, for example "google".
func (c *Client) SignInWithOAuth(ctx context.Context, provider string) (ports.AuthUser, error) {
	const op = "oauth sign in"
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return ports.AuthUser{}, domain.NewError(domain.KindValidation, op, "provider is required")
	}
	if c.oauth.OpenURL == nil {
		return ports.AuthUser{}, domain.NewError(domain.KindValidation, op, "no way to open the authorize url")
	}

	pkce, err := newPKCEPair()
	if err != nil {
		return ports.AuthUser{}, fmt.Errorf("generate pkce: %w", err)
	}
	state, err := newState()
	if err != nil {
		return ports.AuthUser{}, fmt.Errorf("generate oauth state: %w", err)
	}

	server, err := startCallbackServer(c.oauth.ListenAddr, state)
	if err != nil {
		return ports.AuthUser{}, fmt.Errorf("start callback server: %w", err)
	}
	defer func() { _ = server.Close() }()

	authURL := c.authorizeURL(provider, server.RedirectURI(), pkce.Challenge)
	if err := c.oauth.OpenURL(authURL); err != nil {
		return ports.AuthUser{}, fmt.Errorf("open authorize url: %w", err)
	}

	code, err := server.WaitForCode(ctx, c.oauth.Timeout)
	if err != nil {
		if errors.Is(err, ErrCallbackTimeout) {
			return ports.AuthUser{}, domain.WrapError(domain.KindTimeout, op, err)
		}
		if errors.Is(err, ErrStateMismatch) {
			return ports.AuthUser{}, domain.WrapError(domain.KindAuthentication, op, err)
		}
		return ports.AuthUser{}, fmt.Errorf("wait for oauth callback: %w", err)
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"pkce"}},
		body:   map[string]string{"auth_code": code, "code_verifier": pkce.Verifier},
	})
	if err != nil {
		return ports.AuthUser{}, err
	}

	var session tokenSession
	if err := decode(op, resp.body, &session); err != nil {
		return ports.AuthUser{}, err
	}
	return c.establish(ctx, session)
}

func (c *Client) authorizeURL(provider, redirectTo, challenge string) string {
	query := url.Values{}
	query.Set("provider", provider)
	query.Set("redirect_to", redirectTo)
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", pkceChallengeMethodS256)
	return c.endpoint("/auth/v1/authorize", query)
}

// callbackServer receives the provider redirect on localhost. The state is
// carried in the redirect URL so the callback can be matched to this flow.
type callbackServer struct {
	expectedState string
	listener      net.Listener
	server        *http.Server
	resultCh      chan callbackResult
	resultOnce    sync.Once
	closeOnce     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

func startCallbackServer(listenAddr string, expectedState string) (*callbackServer, error) {
	if expectedState == "" {
		return nil, ErrMissingState
	}
	if listenAddr == "" {
		listenAddr = defaultOAuthListenAddr
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &callbackServer{
		expectedState: expectedState,
		listener:      listener,
		resultCh:      make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", cb.handleCallback)

	cb.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if serveErr := cb.server.Serve(cb.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.trySendResult(callbackResult{err: serveErr})
		}
	}()

	return cb, nil
}

func (c *callbackServer) RedirectURI() string {
	query := url.Values{"state": {c.expectedState}}.Encode()
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d/auth/callback?%s", tcpAddr.Port, query)
	}
	return "http://localhost/auth/callback?" + query
}

func (c *callbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	defer func() { _ = c.Close() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-c.resultCh:
		return result.code, result.err
	case <-timer.C:
		return "", ErrCallbackTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *callbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.server.Close()
	})
	return closeErr
}

func (c *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if state != c.expectedState {
		c.trySendResult(callbackResult{err: ErrStateMismatch})
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	if oauthError := r.URL.Query().Get("error"); oauthError != "" {
		description := r.URL.Query().Get("error_description")
		if description != "" {
			oauthError = oauthError + ": " + description
		}
		c.trySendResult(callbackResult{err: errors.New(oauthError)})
		http.Error(w, "oauth error", http.StatusBadRequest)
		return
	}
	if code == "" {
		c.trySendResult(callbackResult{err: errors.New("missing authorization code")})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	c.trySendResult(callbackResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Signed in to pathfinder. You can close this window."))
}

func (c *callbackServer) trySendResult(result callbackResult) {
	c.resultOnce.Do(func() {
		c.resultCh <- result
	})
}
