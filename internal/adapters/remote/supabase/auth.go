package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

// CurrentUser returns the signed-in user, or nil when there is no session
// or the server no longer accepts it.
func (c *Client) CurrentUser(ctx context.Context) (*ports.AuthUser, error) {
	const op = "current user"
	token, err := c.bearer(ctx)
	if err != nil || token == "" {
		return nil, err
	}

	resp, err := c.do(ctx, op, request{method: http.MethodGet, path: "/auth/v1/user", bearer: token})
	if err != nil {
		if domain.KindOf(err) != domain.KindAuthentication {
			return nil, err
		}
		c.logger.Warn("stored session rejected", "error", err)
		if clearErr := c.clearSession(ctx); clearErr != nil {
			return nil, clearErr
		}
		c.emit(ports.AuthEvent{Type: ports.AuthEventSignedOut})
		return nil, nil
	}

	var user gotrueUser
	if err := decode(op, resp.body, &user); err != nil {
		return nil, err
	}
	authUser := user.authUser()
	return &authUser, nil
}

func (c *Client) SignIn(ctx context.Context, credentials domain.Credentials) (ports.AuthUser, error) {
	const op = "sign in"
	credentials = normalizeCredentials(credentials)
	if err := credentials.Validate(); err != nil {
		return ports.AuthUser{}, domain.WrapError(domain.KindValidation, op, err)
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": credentials.Email, "password": credentials.Password},
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

// signUpResponse is either a full session or, when email confirmation is
// on, the bare user.
type signUpResponse struct {
	tokenSession
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) SignUp(ctx context.Context, credentials domain.Credentials) (ports.AuthUser, error) {
	const op = "sign up"
	credentials = normalizeCredentials(credentials)
	if err := credentials.Validate(); err != nil {
		return ports.AuthUser{}, domain.WrapError(domain.KindValidation, op, err)
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]string{"email": credentials.Email, "password": credentials.Password},
	})
	if err != nil {
		return ports.AuthUser{}, err
	}

	var out signUpResponse
	if err := decode(op, resp.body, &out); err != nil {
		return ports.AuthUser{}, err
	}
	if out.AccessToken != "" {
		return c.establish(ctx, out.tokenSession)
	}
	if out.ID == "" {
		return ports.AuthUser{}, domain.NewError(domain.KindInternal, op, "sign-up response carried no user")
	}
	c.logger.Info("user registered; email confirmation pending", "user_id", out.ID)
	return gotrueUser{ID: out.ID, Email: out.Email}.authUser(), nil
}

// SignOut revokes the session remotely and always forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	c.sessionMu.Lock()
	if err := c.loadSessionLocked(ctx); err != nil {
		c.sessionMu.Unlock()
		return err
	}
	var token string
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.sessionMu.Unlock()

	var remoteErr error
	if token != "" {
		_, remoteErr = c.do(ctx, "sign out", request{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			bearer: token,
		})
	}
	if err := c.clearSession(ctx); err != nil {
		return err
	}
	c.emit(ports.AuthEvent{Type: ports.AuthEventSignedOut})
	return remoteErr
}

func (c *Client) Subscribe(listener func(ports.AuthEvent)) func() {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Client) emit(ev ports.AuthEvent) {
	c.listenersMu.Lock()
	listeners := make([]func(ports.AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (c *Client) establish(ctx context.Context, session tokenSession) (ports.AuthUser, error) {
	c.sessionMu.Lock()
	err := c.storeSessionLocked(ctx, session)
	c.sessionMu.Unlock()
	if err != nil {
		return ports.AuthUser{}, err
	}

	user := session.User.authUser()
	c.logger.Info("signed in", "user_id", user.ID)
	c.emit(ports.AuthEvent{Type: ports.AuthEventSignedIn, User: &user})
	return user, nil
}

func (c *Client) clearSession(ctx context.Context) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.clearSessionLocked(ctx)
}

func normalizeCredentials(credentials domain.Credentials) domain.Credentials {
	credentials.Email = strings.ToLower(strings.TrimSpace(credentials.Email))
	return credentials
}
