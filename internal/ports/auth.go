package ports

import (
	"context"

	"github.com/bnema/pathfinder/internal/domain"
)

type AuthUser struct {
	ID    domain.UserID
	Email string
}

type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventType = "USER_UPDATED"
)

type AuthEvent struct {
	Type AuthEventType
	User *AuthUser
}

// AuthProvider is the authentication surface of the remote data service.
// CurrentUser returns (nil, nil) when nobody is signed in.
type AuthProvider interface {
	CurrentUser(ctx context.Context) (*AuthUser, error)
	SignIn(ctx context.Context, credentials domain.Credentials) (AuthUser, error)
	SignUp(ctx context.Context, credentials domain.Credentials) (AuthUser, error)
	SignOut(ctx context.Context) error
	Subscribe(listener func(AuthEvent)) (unsubscribe func())
}

// OAuthProvider is implemented by auth providers that can sign in through a
// third-party identity provider in the browser.
type OAuthProvider interface {
	SignInWithOAuth(ctx context.Context, provider string) (AuthUser, error)
}
