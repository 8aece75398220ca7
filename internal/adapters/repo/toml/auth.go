package toml

import (
	"context"
	"errors"
	"strings"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = domain.NewError(domain.KindAuthentication, "sign in", "invalid login credentials")

// CurrentUser returns the signed-in user recorded in the data file, or nil.
func (b *Backend) CurrentUser(ctx context.Context) (*ports.AuthUser, error) {
	var user *ports.AuthUser
	err := b.view(ctx, func(file *fileSchema) error {
		if file.Session == nil {
			return nil
		}
		u, ok := file.userByID(file.Session.UserID)
		if !ok {
			return nil
		}
		user = &ports.AuthUser{ID: domain.UserID(u.ID), Email: u.Email}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (b *Backend) SignUp(ctx context.Context, credentials domain.Credentials) (ports.AuthUser, error) {
	email := strings.ToLower(strings.TrimSpace(credentials.Email))
	if err := (domain.Credentials{Email: email, Password: credentials.Password}).Validate(); err != nil {
		return ports.AuthUser{}, domain.WrapError(domain.KindValidation, "sign up", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credentials.Password), bcrypt.DefaultCost)
	if err != nil {
		return ports.AuthUser{}, domain.WrapError(domain.KindValidation, "sign up", err)
	}

	user := userSchema{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    b.now(),
	}
	err = b.update(ctx, func(file *fileSchema) error {
		if _, taken := file.userByEmail(email); taken {
			return domain.NewError(domain.KindConflict, "sign up", "user already registered")
		}
		file.Users = append(file.Users, user)
		file.Session = &sessionSchema{UserID: user.ID, SignedInAt: b.now()}
		return nil
	})
	if err != nil {
		return ports.AuthUser{}, err
	}

	authUser := ports.AuthUser{ID: domain.UserID(user.ID), Email: user.Email}
	b.logger.Info("local user registered", "user_id", user.ID)
	b.emit(ports.AuthEvent{Type: ports.AuthEventSignedIn, User: &authUser})
	return authUser, nil
}

func (b *Backend) SignIn(ctx context.Context, credentials domain.Credentials) (ports.AuthUser, error) {
	email := strings.ToLower(strings.TrimSpace(credentials.Email))

	var authUser ports.AuthUser
	err := b.update(ctx, func(file *fileSchema) error {
		user, ok := file.userByEmail(email)
		if !ok {
			return errInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credentials.Password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return errInvalidCredentials
			}
			return domain.WrapError(domain.KindInternal, "sign in", err)
		}
		file.Session = &sessionSchema{UserID: user.ID, SignedInAt: b.now()}
		authUser = ports.AuthUser{ID: domain.UserID(user.ID), Email: user.Email}
		return nil
	})
	if err != nil {
		return ports.AuthUser{}, err
	}

	b.emit(ports.AuthEvent{Type: ports.AuthEventSignedIn, User: &authUser})
	return authUser, nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	err := b.update(ctx, func(file *fileSchema) error {
		file.Session = nil
		return nil
	})
	if err != nil {
		return err
	}

	b.emit(ports.AuthEvent{Type: ports.AuthEventSignedOut})
	return nil
}

func (b *Backend) Subscribe(listener func(ports.AuthEvent)) func() {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = listener

	return func() {
		b.listenersMu.Lock()
		defer b.listenersMu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *Backend) emit(event ports.AuthEvent) {
	b.listenersMu.Lock()
	listeners := make([]func(ports.AuthEvent), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
