package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/golang-jwt/jwt/v5"
)

// refreshLeeway refreshes tokens slightly before they expire.
const refreshLeeway = 30 * time.Second

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u gotrueUser) authUser() ports.AuthUser {
	return ports.AuthUser{ID: domain.UserID(u.ID), Email: u.Email}
}

// tokenSession is the GoTrue token response, persisted as JSON in
// SessionSlot.
type tokenSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"`
	ExpiresAt    int64      `json:"expires_at,omitempty"`
	User         gotrueUser `json:"user"`
}

// fillExpiry sets ExpiresAt from expires_in, or from the access token's exp
// claim when the response carried neither.
func (s *tokenSession) fillExpiry(now time.Time) {
	if s.ExpiresAt != 0 {
		return
	}
	if s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
		return
	}
	if exp, ok := accessTokenExpiry(s.AccessToken); ok {
		s.ExpiresAt = exp.Unix()
	}
}

// accessTokenExpiry reads exp without verifying the signature; the server
// checks the token on every request.
func accessTokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *tokenSession) expired(now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(refreshLeeway).Before(time.Unix(s.ExpiresAt, 0))
}

// loadSessionLocked reads the persisted session once. A slot that does
// not decode is dropped.
func (c *Client) loadSessionLocked(ctx context.Context) error {
	if c.loaded || c.slots == nil {
		c.loaded = true
		return nil
	}

	raw, err := c.slots.Get(ctx, SessionSlot)
	if err != nil {
		if errors.Is(err, domain.ErrSlotNotFound) {
			c.loaded = true
			return nil
		}
		return fmt.Errorf("load auth session: %w", err)
	}
	c.loaded = true

	var session tokenSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.AccessToken == "" {
		c.logger.Warn("discarding unreadable auth session", "slot", SessionSlot)
		if removeErr := c.slots.Remove(ctx, SessionSlot); removeErr != nil {
			c.logger.Warn("remove unreadable auth session", "error", removeErr)
		}
		return nil
	}
	session.fillExpiry(c.clock.Now())
	c.session = &session
	return nil
}

func (c *Client) storeSessionLocked(ctx context.Context, session tokenSession) error {
	session.fillExpiry(c.clock.Now())
	if c.slots != nil {
		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("encode auth session: %w", err)
		}
		if err := c.slots.Set(ctx, SessionSlot, string(payload)); err != nil {
			return fmt.Errorf("persist auth session: %w", err)
		}
	}
	c.session = &session
	c.loaded = true
	return nil
}

func (c *Client) clearSessionLocked(ctx context.Context) error {
	c.session = nil
	c.loaded = true
	if c.slots == nil {
		return nil
	}
	if err := c.slots.Remove(ctx, SessionSlot); err != nil {
		return fmt.Errorf("clear auth session: %w", err)
	}
	return nil
}

// accessToken returns a valid user token, refreshing it when needed, or ""
// when nobody is signed in. The returned event, if any, must be emitted by
// the caller once it no longer holds any lock.
func (c *Client) accessToken(ctx context.Context) (string, *ports.AuthEvent, error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if err := c.loadSessionLocked(ctx); err != nil {
		return "", nil, err
	}
	if c.session == nil {
		return "", nil, nil
	}
	if !c.session.expired(c.clock.Now()) {
		return c.session.AccessToken, nil, nil
	}

	refreshed, err := c.refreshLocked(ctx, c.session.RefreshToken)
	if err != nil {
		if domain.KindOf(err) != domain.KindAuthentication {
			return "", nil, err
		}
		c.logger.Warn("refresh token rejected; signing out", "error", err)
		if clearErr := c.clearSessionLocked(ctx); clearErr != nil {
			return "", nil, clearErr
		}
		return "", &ports.AuthEvent{Type: ports.AuthEventSignedOut}, nil
	}
	user := refreshed.User.authUser()
	return refreshed.AccessToken, &ports.AuthEvent{Type: ports.AuthEventTokenRefreshed, User: &user}, nil
}

func (c *Client) refreshLocked(ctx context.Context, refreshToken string) (tokenSession, error) {
	const op = "refresh session"
	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	})
	if err != nil {
		return tokenSession{}, err
	}

	var session tokenSession
	if err := decode(op, resp.body, &session); err != nil {
		return tokenSession{}, err
	}
	if err := c.storeSessionLocked(ctx, session); err != nil {
		return tokenSession{}, err
	}
	return session, nil
}

// bearer is the token REST calls run under: the user's when signed in,
// otherwise the anon key.
func (c *Client) bearer(ctx context.Context) (string, error) {
	token, event, err := c.accessToken(ctx)
	if event != nil {
		c.emit(*event)
	}
	return token, err
}
