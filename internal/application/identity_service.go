package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const DefaultResolveTimeout = 5 * time.Second

type IdentityState string

const (
	StateUninitialized IdentityState = "uninitialized"
	StateResolving     IdentityState = "resolving"
	StateAnonymous     IdentityState = "anonymous"
	StateAuthenticated IdentityState = "authenticated"
	StateConverting    IdentityState = "converting"
)

var ErrOAuthUnsupported = errors.New("auth provider does not support oauth sign-in")

type ConversionResult struct {
	Session domain.Session
	Report  domain.MigrationReport
}

type IdentityOptions struct {
	ResolveTimeout time.Duration
}

// IdentityService owns the active session. Operations that change identity
// are serialized; readers see the last completed session.
type IdentityService struct {
	auth     ports.AuthProvider
	data     ports.DataService
	slots    ports.SlotStore
	migrator *OwnershipMigrator
	clock    ports.Clock
	logger   *slog.Logger
	timeout  time.Duration

	opMu sync.Mutex

	mu        sync.RWMutex
	state     IdentityState
	session   domain.Session
	listeners map[int]func(domain.Session)
	nextID    int
}

func NewIdentityService(auth ports.AuthProvider, data ports.DataService, slots ports.SlotStore, clock ports.Clock, logger *slog.Logger, opts IdentityOptions) *IdentityService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}

	return &IdentityService{
		auth:      auth,
		data:      data,
		slots:     slots,
		migrator:  NewOwnershipMigrator(data, clock, logger),
		clock:     clock,
		logger:    logger,
		timeout:   opts.ResolveTimeout,
		state:     StateUninitialized,
		listeners: map[int]func(domain.Session){},
	}
}

func (s *IdentityService) State() IdentityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Session returns the active session, zero before the first Resolve.
func (s *IdentityService) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// OnChange registers fn to be called with every new session.
func (s *IdentityService) OnChange(fn func(domain.Session)) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Resolve determines the active identity. It never leaves the caller
// without a session: auth failures and timeouts fall back to the persisted
// anonymous identity, or a new one.
func (s *IdentityService) Resolve(ctx context.Context) domain.Session {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.resolveLocked(ctx)
}

func (s *IdentityService) resolveLocked(ctx context.Context) domain.Session {
	s.setState(StateResolving)

	user, err := s.currentUser(ctx)
	if err != nil {
		s.logger.Warn("auth check failed, using anonymous session", "error", err, "kind", domain.KindOf(err))
		return s.enterAnonymous(ctx, false)
	}
	if user == nil {
		return s.enterAnonymous(ctx, false)
	}

	return s.enterAuthenticated(ctx, *user)
}

// currentUser asks the auth provider for the signed-in user, giving up after
// the resolve timeout even if the provider ignores cancellation.
func (s *IdentityService) currentUser(ctx context.Context) (*ports.AuthUser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		user *ports.AuthUser
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := s.auth.CurrentUser(ctx)
		done <- result{user: user, err: err}
	}()

	select {
	case res := <-done:
		return res.user, res.err
	case <-ctx.Done():
		return nil, domain.WrapError(domain.KindTimeout, "get current user", ctx.Err())
	}
}

func (s *IdentityService) enterAuthenticated(ctx context.Context, user ports.AuthUser) domain.Session {
	profile, err := s.loadProfile(ctx, user.ID)
	if err != nil {
		s.logger.Warn("load profile failed", "user_id", user.ID, "error", err)
	}
	s.clearAnonymousSlot(ctx)

	return s.publish(StateAuthenticated, domain.Session{
		Identity: domain.AuthenticatedIdentity{
			ID:        user.ID,
			Email:     user.Email,
			Profile:   profile,
			CreatedAt: s.clock.Now(),
		},
		ResolvedAt: s.clock.Now(),
	})
}

// enterAnonymous reuses the persisted anonymous identity unless fresh is
// set or nothing usable is stored, in which case a new one is minted.
func (s *IdentityService) enterAnonymous(ctx context.Context, fresh bool) domain.Session {
	var identity domain.AnonymousIdentity
	found := false

	if !fresh {
		raw, err := s.slots.Get(ctx, AnonymousSessionSlot)
		switch {
		case err == nil:
			identity, err = decodeAnonymous(raw)
			if err != nil {
				s.logger.Warn("stored anonymous session unreadable, minting a new one", "error", err)
			} else {
				found = true
			}
		case errors.Is(err, domain.ErrSlotNotFound):
		default:
			s.logger.Warn("read anonymous session failed", "error", err)
		}
	}

	if !found {
		identity = newAnonymousIdentity(s.clock.Now())
		if err := s.persistAnonymous(ctx, identity); err != nil {
			s.logger.Warn("persist anonymous session failed", "user_id", identity.ID, "error", err)
		}
		s.logger.Info("anonymous session created", "user_id", identity.ID)
	}

	return s.publish(StateAnonymous, domain.Session{Identity: identity, ResolvedAt: s.clock.Now()})
}

func (s *IdentityService) persistAnonymous(ctx context.Context, identity domain.AnonymousIdentity) error {
	raw, err := encodeAnonymous(identity)
	if err != nil {
		return err
	}
	if err := s.slots.Set(ctx, AnonymousSessionSlot, raw); err != nil {
		return fmt.Errorf("store anonymous session: %w", err)
	}
	return nil
}

func (s *IdentityService) clearAnonymousSlot(ctx context.Context) {
	if err := s.slots.Remove(ctx, AnonymousSessionSlot); err != nil && !errors.Is(err, domain.ErrSlotNotFound) {
		s.logger.Warn("clear anonymous session failed", "error", err)
	}
}

func (s *IdentityService) loadProfile(ctx context.Context, id domain.UserID) (*domain.Profile, error) {
	res, err := s.data.Select(ctx, "profiles", ports.ByID(string(id)), ports.Pagination{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	profile, err := decodeRow[domain.Profile](res.Rows[0])
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SignIn authenticates with credentials. Rows created by the current
// anonymous identity are not migrated; its slot is cleared.
func (s *IdentityService) SignIn(ctx context.Context, credentials domain.Credentials) (domain.Session, error) {
	if err := credentials.Validate(); err != nil {
		return domain.Session{}, domain.WrapError(domain.KindValidation, "sign in", err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	user, err := s.auth.SignIn(ctx, credentials)
	if err != nil {
		s.logger.Warn("sign in failed", "email", credentials.Email, "error", err)
		return s.Session(), err
	}
	return s.enterAuthenticated(ctx, user), nil
}

// SignInWithOAuth runs the provider's browser flow, for example "google".
func (s *IdentityService) SignInWithOAuth(ctx context.Context, provider string) (domain.Session, error) {
	oauth, ok := s.auth.(ports.OAuthProvider)
	if !ok {
		return s.Session(), ErrOAuthUnsupported
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	user, err := oauth.SignInWithOAuth(ctx, provider)
	if err != nil {
		s.logger.Warn("oauth sign in failed", "provider", provider, "error", err)
		return s.Session(), err
	}
	return s.enterAuthenticated(ctx, user), nil
}

// SignUp registers a new account with a public profile. Use
// ConvertGuestToUser to keep the anonymous identity's data.
func (s *IdentityService) SignUp(ctx context.Context, credentials domain.Credentials, data domain.ProfileData) (domain.Session, error) {
	if err := credentials.Validate(); err != nil {
		return domain.Session{}, domain.WrapError(domain.KindValidation, "sign up", err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	user, err := s.register(ctx, credentials, data)
	if err != nil {
		return s.Session(), err
	}
	return s.enterAuthenticated(ctx, user), nil
}

func (s *IdentityService) register(ctx context.Context, credentials domain.Credentials, data domain.ProfileData) (ports.AuthUser, error) {
	user, err := s.auth.SignUp(ctx, credentials)
	if err != nil {
		s.logger.Warn("registration failed", "email", credentials.Email, "error", err)
		return ports.AuthUser{}, err
	}

	if _, err := s.data.Insert(ctx, "profiles", profileRow(user, data, s.clock.Now())); err != nil {
		s.logger.Error("profile creation failed, account has no profile", "user_id", user.ID, "error", err)
		return user, fmt.Errorf("create profile for %s: %w", user.ID, err)
	}
	return user, nil
}

func profileRow(user ports.AuthUser, data domain.ProfileData, now time.Time) ports.Row {
	userType := data.UserType
	if userType == "" {
		userType = domain.UserTypeStudent
	}
	row := ports.Row{
		"id":         string(user.ID),
		"email":      user.Email,
		"user_type":  string(userType),
		"is_public":  true,
		"created_at": now.UTC().Format(time.RFC3339Nano),
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	optional := map[string]string{
		"username":   data.Username,
		"full_name":  data.FullName,
		"avatar_url": data.AvatarURL,
		"school":     data.School,
		"major":      data.Major,
		"bio":        data.Bio,
	}
	for column, value := range optional {
		if value != "" {
			row[column] = value
		}
	}
	if data.GraduationYear > 0 {
		row["graduation_year"] = data.GraduationYear
	}
	return row
}

// ConvertGuestToUser turns the current anonymous identity into a registered
// account and moves its rows over. Registration and profile creation must
// succeed; a migration that stops part way still returns the authenticated
// session along with a *domain.MigrationError.
func (s *IdentityService) ConvertGuestToUser(ctx context.Context, credentials domain.Credentials, data domain.ProfileData) (ConversionResult, error) {
	if err := credentials.Validate(); err != nil {
		return ConversionResult{Session: s.Session()}, domain.WrapError(domain.KindValidation, "convert guest", err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	current := s.Session()
	guest, ok := current.Anonymous()
	if !ok {
		return ConversionResult{Session: current}, domain.ErrNotAnonymous
	}

	s.setState(StateConverting)
	user, err := s.register(ctx, credentials, data)
	if err != nil {
		if user.ID != "" {
			s.abandonConversion(ctx, guest, user.ID)
		}
		s.setState(StateAnonymous)
		return ConversionResult{Session: current}, err
	}

	report, migErr := s.migrator.Migrate(ctx, guest.ID, user.ID)
	if migErr != nil {
		s.rememberPendingMigration(ctx, report)
	}
	s.markGuestConverted(ctx, guest, user.ID)

	session := s.enterAuthenticated(ctx, user)
	s.logger.Info("guest converted", "from", guest.ID, "to", user.ID, "complete", migErr == nil)
	return ConversionResult{Session: session, Report: report}, migErr
}

// abandonConversion handles an account that was registered but could not be
// completed. The provider session is dropped so the guest identity survives
// the next resolve, and the pair is remembered for a later migration retry.
func (s *IdentityService) abandonConversion(ctx context.Context, guest domain.AnonymousIdentity, to domain.UserID) {
	s.rememberPendingMigration(ctx, domain.MigrationReport{From: guest.ID, To: to})
	if err := s.auth.SignOut(ctx); err != nil {
		s.logger.Warn("sign out of incomplete account failed", "user_id", to, "error", err)
	}
}

func (s *IdentityService) markGuestConverted(ctx context.Context, guest domain.AnonymousIdentity, to domain.UserID) {
	_, err := s.data.Update(ctx, "guest_profiles",
		ports.Where(ports.Eq("id", string(guest.ID)), ports.Eq("guest_token", guest.Secret)),
		ports.Row{
			"converted_to_user_id": string(to),
			"converted_at":         s.clock.Now().UTC().Format(time.RFC3339Nano),
		},
	)
	if err != nil {
		s.logger.Warn("mark guest converted failed", "guest_id", guest.ID, "error", err)
	}
}

func (s *IdentityService) rememberPendingMigration(ctx context.Context, report domain.MigrationReport) {
	raw, err := encodePendingMigration(report)
	if err == nil {
		err = s.slots.Set(ctx, PendingMigrationSlot, raw)
	}
	if err != nil {
		s.logger.Warn("remember pending migration failed", "from", report.From, "to", report.To, "error", err)
	}
}

// PendingMigration returns the identities of an unfinished migration.
func (s *IdentityService) PendingMigration(ctx context.Context) (from, to domain.UserID, ok bool, err error) {
	raw, err := s.slots.Get(ctx, PendingMigrationSlot)
	if errors.Is(err, domain.ErrSlotNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("read pending migration: %w", err)
	}
	slot, err := decodePendingMigration(raw)
	if err != nil {
		return "", "", false, err
	}
	return domain.UserID(slot.From), domain.UserID(slot.To), true, nil
}

// RetryMigration re-runs the ownership migration. Empty ids fall back to the
// remembered pending migration.
func (s *IdentityService) RetryMigration(ctx context.Context, from, to domain.UserID) (domain.MigrationReport, error) {
	if from == "" || to == "" {
		pendingFrom, pendingTo, ok, err := s.PendingMigration(ctx)
		if err != nil {
			return domain.MigrationReport{}, err
		}
		if !ok {
			return domain.MigrationReport{}, domain.NewError(domain.KindValidation, "retry migration", "no pending migration")
		}
		from, to = pendingFrom, pendingTo
	}

	report, err := s.migrator.Migrate(ctx, from, to)
	if err != nil {
		s.rememberPendingMigration(ctx, report)
		return report, err
	}
	if err := s.slots.Remove(ctx, PendingMigrationSlot); err != nil && !errors.Is(err, domain.ErrSlotNotFound) {
		s.logger.Warn("clear pending migration failed", "error", err)
	}
	return report, nil
}

// SignOut ends the authenticated session and always starts a fresh
// anonymous one. A failed remote sign-out is logged; the local session is
// replaced regardless.
func (s *IdentityService) SignOut(ctx context.Context) domain.Session {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.auth.SignOut(ctx); err != nil {
		s.logger.Warn("remote sign out failed", "error", err)
	}
	s.clearAnonymousSlot(ctx)
	return s.enterAnonymous(ctx, true)
}

// RefreshProfile reloads the profile of an authenticated session or re-reads
// the stored anonymous identity.
func (s *IdentityService) RefreshProfile(ctx context.Context) (domain.Session, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current := s.Session()
	switch identity := current.Identity.(type) {
	case nil:
		return current, domain.ErrSessionUnresolved
	case domain.AuthenticatedIdentity:
		profile, err := s.loadProfile(ctx, identity.ID)
		if err != nil {
			return current, err
		}
		identity.Profile = profile
		return s.publish(StateAuthenticated, domain.Session{Identity: identity, ResolvedAt: s.clock.Now()}), nil
	case domain.AnonymousIdentity:
		raw, err := s.slots.Get(ctx, AnonymousSessionSlot)
		if err == nil {
			if stored, decodeErr := decodeAnonymous(raw); decodeErr == nil {
				return s.publish(StateAnonymous, domain.Session{Identity: stored, ResolvedAt: s.clock.Now()}), nil
			}
		}
		if err != nil && !errors.Is(err, domain.ErrSlotNotFound) {
			return current, fmt.Errorf("read anonymous session: %w", err)
		}
		return current, s.persistAnonymous(ctx, identity)
	default:
		return current, fmt.Errorf("%w: %T", domain.ErrUnknownIdentity, identity)
	}
}

// Watch re-resolves the session on every auth state change until ctx is
// done. Bursts of events collapse into one resolve.
func (s *IdentityService) Watch(ctx context.Context) error {
	events := make(chan ports.AuthEvent, 1)
	unsubscribe := s.auth.Subscribe(func(ev ports.AuthEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			s.logger.Debug("auth state changed", "event", ev.Type)
			// Stopping the watch must not cut a resolve short and fall back
			// to a guest session; the resolve timeout bounds it instead.
			s.Resolve(context.WithoutCancel(ctx))
		}
	}
}

func (s *IdentityService) setState(state IdentityState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *IdentityService) publish(state IdentityState, session domain.Session) domain.Session {
	s.mu.Lock()
	s.state = state
	s.session = session
	listeners := make([]func(domain.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
	return session
}
