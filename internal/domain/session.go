package domain

import (
	"fmt"
	"time"
)

type UserID string

type SessionKind string

const (
	SessionKindAnonymous     SessionKind = "anonymous"
	SessionKindAuthenticated SessionKind = "authenticated"
)

// Identity is implemented only by AnonymousIdentity and AuthenticatedIdentity.
type Identity interface {
	IdentityID() UserID
	Kind() SessionKind
	isIdentity()
}

type AnonymousIdentity struct {
	ID        UserID
	Secret    string
	CreatedAt time.Time
}

func (a AnonymousIdentity) IdentityID() UserID { return a.ID }
func (AnonymousIdentity) Kind() SessionKind { return SessionKindAnonymous }
func (AnonymousIdentity) isIdentity() {}

type AuthenticatedIdentity struct {
	ID        UserID
	Email     string
	Profile   *Profile
	CreatedAt time.Time
}

func (a AuthenticatedIdentity) IdentityID() UserID { return a.ID }
func (AuthenticatedIdentity) Kind() SessionKind { return SessionKindAuthenticated }
func (AuthenticatedIdentity) isIdentity() {}

// Session is replaced wholesale on every identity change and never mutated
// in place.
type Session struct {
	Identity   Identity
	ResolvedAt time.Time
}

func (s Session) IsZero() bool {
	return s.Identity == nil
}

func (s Session) Kind() SessionKind {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Kind()
}

func (s Session) UserID() UserID {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.IdentityID()
}

func (s Session) IsAnonymous() bool {
	_, ok := s.Identity.(AnonymousIdentity)
	return ok
}

func (s Session) Anonymous() (AnonymousIdentity, bool) {
	anon, ok := s.Identity.(AnonymousIdentity)
	return anon, ok
}

func (s Session) Authenticated() (AuthenticatedIdentity, bool) {
	auth, ok := s.Identity.(AuthenticatedIdentity)
	return auth, ok
}

func (s Session) String() string {
	switch identity := s.Identity.(type) {
	case nil:
		return "session(unresolved)"
	case AnonymousIdentity:
		return fmt.Sprintf("session(anonymous %s)", identity.ID)
	case AuthenticatedIdentity:
		return fmt.Sprintf("session(authenticated %s)", identity.ID)
	default:
		return fmt.Sprintf("session(unknown %T)", identity)
	}
}

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}
