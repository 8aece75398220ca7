package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/bnema/pathfinder/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const guestFixtureID = "guest_1772443800000_abc"

func newIdentityFixture(t *testing.T, auth ports.AuthProvider) (*IdentityService, *memData, *memSlots) {
	t.Helper()
	data := newMemData()
	slots := newMemSlots()
	svc := NewIdentityService(auth, data, slots, fixedClock{now: testNow}, nil, IdentityOptions{ResolveTimeout: 50 * time.Millisecond})
	return svc, data, slots
}

func seedGuestSlot(t *testing.T, slots *memSlots) domain.AnonymousIdentity {
	t.Helper()
	guest := domain.AnonymousIdentity{ID: guestFixtureID, Secret: "guest_secret", CreatedAt: testNow}
	raw, err := encodeAnonymous(guest)
	require.NoError(t, err)
	require.NoError(t, slots.Set(context.Background(), AnonymousSessionSlot, raw))
	return guest
}

func seedOwnedRows(data *memData, owner domain.UserID) {
	for _, table := range domain.OwnedTables {
		data.seed(table.Name,
			ports.Row{"id": table.Name + "-1", table.OwnerColumn: string(owner)},
			ports.Row{"id": table.Name + "-2", table.OwnerColumn: string(owner)},
			ports.Row{"id": table.Name + "-other", table.OwnerColumn: "someone-else"},
		)
	}
}

func ownedCount(data *memData, owner domain.UserID) int {
	n := 0
	for _, table := range domain.OwnedTables {
		for _, row := range data.rows(table.Name) {
			if row[table.OwnerColumn] == string(owner) {
				n++
			}
		}
	}
	return n
}

func TestResolveReusesPersistedAnonymousSession(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil)
	svc, _, slots := newIdentityFixture(t, auth)

	first := svc.Resolve(context.Background())
	second := svc.Resolve(context.Background())

	firstGuest, ok := first.Anonymous()
	require.True(t, ok)
	secondGuest, ok := second.Anonymous()
	require.True(t, ok)
	assert.Equal(t, firstGuest.ID, secondGuest.ID)
	assert.Equal(t, firstGuest.Secret, secondGuest.Secret)
	assert.Regexp(t, `^guest_\d+_[0-9a-f]{11}$`, string(firstGuest.ID))
	assert.True(t, slots.has(AnonymousSessionSlot))
	assert.Equal(t, StateAnonymous, svc.State())

	reloaded := NewIdentityService(auth, newMemData(), slots, fixedClock{now: testNow.Add(time.Hour)}, nil, IdentityOptions{})
	assert.Equal(t, firstGuest.ID, reloaded.Resolve(context.Background()).UserID())
}

func TestResolveFallsBackToAnonymousWhenAuthHangs(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).RunAndReturn(func(context.Context) (*ports.AuthUser, error) {
		<-release
		return &ports.AuthUser{ID: "late-user"}, nil
	})
	svc, _, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)

	started := time.Now()
	session := svc.Resolve(context.Background())
	elapsed := time.Since(started)

	assert.Less(t, elapsed, 50*time.Millisecond+500*time.Millisecond)
	assert.True(t, session.IsAnonymous())
	assert.Equal(t, guest.ID, session.UserID())
}

func TestResolveFallsBackToAnonymousOnAuthError(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, domain.NewError(domain.KindNetwork, "get user", "offline"))
	svc, _, _ := newIdentityFixture(t, auth)

	session := svc.Resolve(context.Background())
	assert.True(t, session.IsAnonymous())
	assert.NotEmpty(t, session.UserID())
}

func TestResolveMintsNewIdentityWhenSlotIsCorrupt(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil)
	svc, _, slots := newIdentityFixture(t, auth)
	require.NoError(t, slots.Set(context.Background(), AnonymousSessionSlot, "not = [valid"))

	session := svc.Resolve(context.Background())
	require.True(t, session.IsAnonymous())

	raw, err := slots.Get(context.Background(), AnonymousSessionSlot)
	require.NoError(t, err)
	stored, err := decodeAnonymous(raw)
	require.NoError(t, err)
	assert.Equal(t, session.UserID(), stored.ID)
}

func TestResolveKeepsSessionWhenSlotWriteFails(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil)
	slots := mocks.NewMockSlotStore(t)
	slots.EXPECT().Get(mockAnyContext(), AnonymousSessionSlot).Return("", domain.ErrSlotNotFound)
	slots.EXPECT().Set(mockAnyContext(), AnonymousSessionSlot, mock.AnythingOfType("string")).Return(errors.New("read-only filesystem"))

	svc := NewIdentityService(auth, newMemData(), slots, fixedClock{now: testNow}, nil, IdentityOptions{})
	session := svc.Resolve(context.Background())

	assert.True(t, session.IsAnonymous())
	assert.NotEmpty(t, session.UserID())
}

func TestResolveAuthenticatedLoadsProfileAndClearsAnonymousSlot(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(&ports.AuthUser{ID: "user-1", Email: "ana@example.com"}, nil)
	svc, data, slots := newIdentityFixture(t, auth)
	seedGuestSlot(t, slots)
	data.seed("profiles", ports.Row{"id": "user-1", "username": "ana", "user_type": "student", "created_at": "2026-01-05T10:00:00Z"})

	var notified []domain.Session
	svc.OnChange(func(s domain.Session) { notified = append(notified, s) })

	session := svc.Resolve(context.Background())

	identity, ok := session.Authenticated()
	require.True(t, ok)
	require.NotNil(t, identity.Profile)
	assert.Equal(t, "ana", identity.Profile.Username)
	assert.True(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC).Equal(identity.Profile.CreatedAt))
	assert.False(t, slots.has(AnonymousSessionSlot))
	assert.Equal(t, StateAuthenticated, svc.State())
	require.Len(t, notified, 1)
	assert.Equal(t, domain.UserID("user-1"), notified[0].UserID())
}

func TestConvertGuestToUserMigratesEverything(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil).Once()
	auth.EXPECT().SignUp(mockAnyContext(), domain.Credentials{Email: "ana@example.com", Password: "s3cret!"}).
		Return(ports.AuthUser{ID: "user-1", Email: "ana@example.com"}, nil)
	svc, data, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)
	seedOwnedRows(data, guest.ID)
	data.seed("guest_profiles", ports.Row{"id": string(guest.ID), "guest_token": guest.Secret})

	svc.Resolve(context.Background())
	result, err := svc.ConvertGuestToUser(context.Background(),
		domain.Credentials{Email: "ana@example.com", Password: "s3cret!"},
		domain.ProfileData{Username: "ana", School: "Tsinghua"})
	require.NoError(t, err)

	assert.True(t, result.Report.Complete())
	assert.Len(t, result.Report.Migrated, len(domain.OwnedTables))
	assert.Equal(t, 2, result.Report.Rows["stories"])
	assert.Zero(t, ownedCount(data, guest.ID))
	assert.Equal(t, 2*len(domain.OwnedTables), ownedCount(data, "user-1"))

	identity, ok := result.Session.Authenticated()
	require.True(t, ok)
	require.NotNil(t, identity.Profile)
	assert.Equal(t, "Tsinghua", identity.Profile.School)
	assert.True(t, identity.Profile.IsPublic)
	assert.Equal(t, StateAuthenticated, svc.State())
	assert.False(t, slots.has(AnonymousSessionSlot))
	assert.False(t, slots.has(PendingMigrationSlot))

	guestRow := data.rows("guest_profiles")[0]
	assert.Equal(t, "user-1", guestRow["converted_to_user_id"])
	assert.NotEmpty(t, guestRow["converted_at"])
}

func TestConvertGuestToUserRequiresAnonymousSession(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(&ports.AuthUser{ID: "user-1"}, nil)
	svc, _, _ := newIdentityFixture(t, auth)
	svc.Resolve(context.Background())

	_, err := svc.ConvertGuestToUser(context.Background(), domain.Credentials{Email: "a@b.c", Password: "pw"}, domain.ProfileData{})
	assert.ErrorIs(t, err, domain.ErrNotAnonymous)
}

func TestConvertGuestToUserRegistrationFailureLeavesGuestUntouched(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil)
	auth.EXPECT().SignUp(mockAnyContext(), mock.Anything).
		Return(ports.AuthUser{}, domain.NewError(domain.KindAuthentication, "sign up", "email already registered"))
	svc, data, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)
	seedOwnedRows(data, guest.ID)
	svc.Resolve(context.Background())

	result, err := svc.ConvertGuestToUser(context.Background(), domain.Credentials{Email: "a@b.c", Password: "pw"}, domain.ProfileData{})

	assert.ErrorIs(t, err, domain.ErrKindAuthentication)
	assert.Equal(t, guest.ID, result.Session.UserID())
	assert.Equal(t, guest.ID, svc.Session().UserID())
	assert.Equal(t, StateAnonymous, svc.State())
	assert.True(t, slots.has(AnonymousSessionSlot))
	assert.Equal(t, 2*len(domain.OwnedTables), ownedCount(data, guest.ID))
}

func TestConvertGuestToUserProfileFailureStopsBeforeMigration(t *testing.T) {
	t.Parallel()

	var signedIn atomic.Bool
	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).RunAndReturn(func(context.Context) (*ports.AuthUser, error) {
		if signedIn.Load() {
			return &ports.AuthUser{ID: "user-1", Email: "a@b.c"}, nil
		}
		return nil, nil
	})
	auth.EXPECT().SignUp(mockAnyContext(), mock.Anything).RunAndReturn(func(context.Context, domain.Credentials) (ports.AuthUser, error) {
		signedIn.Store(true)
		return ports.AuthUser{ID: "user-1", Email: "a@b.c"}, nil
	})
	auth.EXPECT().SignOut(mockAnyContext()).RunAndReturn(func(context.Context) error {
		signedIn.Store(false)
		return nil
	}).Once()
	svc, data, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)
	seedOwnedRows(data, guest.ID)
	data.failOn("profiles", domain.NewError(domain.KindConflict, "insert profiles", "duplicate username"))
	svc.Resolve(context.Background())

	_, err := svc.ConvertGuestToUser(context.Background(), domain.Credentials{Email: "a@b.c", Password: "pw"}, domain.ProfileData{Username: "taken"})

	assert.ErrorIs(t, err, domain.ErrKindConflict)
	assert.True(t, svc.Session().IsAnonymous())
	assert.Equal(t, 2*len(domain.OwnedTables), ownedCount(data, guest.ID))

	session := svc.Resolve(context.Background())
	assert.True(t, session.IsAnonymous())
	assert.Equal(t, guest.ID, session.UserID())
	assert.True(t, slots.has(AnonymousSessionSlot))

	from, to, ok, err := svc.PendingMigration(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, guest.ID, from)
	assert.Equal(t, domain.UserID("user-1"), to)
}

func TestConvertGuestToUserPartialMigrationCanBeRetried(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil)
	auth.EXPECT().SignUp(mockAnyContext(), mock.Anything).Return(ports.AuthUser{ID: "user-1"}, nil)
	svc, data, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)
	seedOwnedRows(data, guest.ID)
	data.failOn("user_answers", domain.NewError(domain.KindNetwork, "update user_answers", "connection reset"))
	svc.Resolve(context.Background())

	result, err := svc.ConvertGuestToUser(context.Background(), domain.Credentials{Email: "a@b.c", Password: "pw"}, domain.ProfileData{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKindMigrationPartial)
	assert.Equal(t, domain.KindMigrationPartial, domain.KindOf(err))
	var migrationErr *domain.MigrationError
	require.ErrorAs(t, err, &migrationErr)
	assert.Equal(t, guest.ID, migrationErr.Report.From)
	assert.Equal(t, domain.UserID("user-1"), migrationErr.Report.To)
	assert.Equal(t, []string{"user_skills", "user_badges", "skill_assessments"}, result.Report.Migrated)
	require.Len(t, result.Report.Failed, 1)
	assert.Equal(t, "user_answers", result.Report.Failed[0].Table)
	assert.Len(t, result.Report.Pending, len(domain.OwnedTables)-4)

	assert.Equal(t, domain.UserID("user-1"), result.Session.UserID())
	assert.Equal(t, StateAuthenticated, svc.State())
	assert.True(t, slots.has(PendingMigrationSlot))

	from, to, ok, err := svc.PendingMigration(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, guest.ID, from)
	assert.Equal(t, domain.UserID("user-1"), to)

	data.failOn("user_answers", nil)
	report, err := svc.RetryMigration(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Zero(t, report.Rows["user_skills"])
	assert.Equal(t, 2, report.Rows["user_answers"])
	assert.Zero(t, ownedCount(data, guest.ID))
	assert.False(t, slots.has(PendingMigrationSlot))

	again, err := svc.RetryMigration(context.Background(), guest.ID, "user-1")
	require.NoError(t, err)
	for _, table := range domain.OwnedTables {
		assert.Zero(t, again.Rows[table.Name], table.Name)
	}
	assert.Equal(t, 2*len(domain.OwnedTables), ownedCount(data, "user-1"))
}

func TestRetryMigrationWithoutPendingMigration(t *testing.T) {
	t.Parallel()

	svc, _, _ := newIdentityFixture(t, mocks.NewMockAuthProvider(t))

	_, err := svc.RetryMigration(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrKindValidation)
}

func TestSignOutAlwaysMintsFreshAnonymousSession(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(&ports.AuthUser{ID: "user-1"}, nil)
	auth.EXPECT().SignOut(mockAnyContext()).Return(errors.New("network down"))
	svc, _, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)
	svc.Resolve(context.Background())

	session := svc.SignOut(context.Background())

	require.True(t, session.IsAnonymous())
	assert.NotEqual(t, guest.ID, session.UserID())
	assert.Equal(t, StateAnonymous, svc.State())
	raw, err := slots.Get(context.Background(), AnonymousSessionSlot)
	require.NoError(t, err)
	stored, err := decodeAnonymous(raw)
	require.NoError(t, err)
	assert.Equal(t, session.UserID(), stored.ID)
}

func TestSignInClearsAnonymousSlotWithoutMigrating(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil)
	auth.EXPECT().SignIn(mockAnyContext(), domain.Credentials{Email: "ana@example.com", Password: "pw"}).
		Return(ports.AuthUser{ID: "user-1", Email: "ana@example.com"}, nil)
	svc, data, slots := newIdentityFixture(t, auth)
	guest := seedGuestSlot(t, slots)
	seedOwnedRows(data, guest.ID)
	svc.Resolve(context.Background())

	session, err := svc.SignIn(context.Background(), domain.Credentials{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, domain.UserID("user-1"), session.UserID())
	assert.False(t, slots.has(AnonymousSessionSlot))
	assert.Equal(t, 2*len(domain.OwnedTables), ownedCount(data, guest.ID))
}

func TestSignInRejectsEmptyCredentials(t *testing.T) {
	t.Parallel()

	svc, _, _ := newIdentityFixture(t, mocks.NewMockAuthProvider(t))

	_, err := svc.SignIn(context.Background(), domain.Credentials{Email: "ana@example.com"})
	assert.ErrorIs(t, err, domain.ErrKindValidation)
}

func TestSignInWithOAuthRequiresSupport(t *testing.T) {
	t.Parallel()

	svc, _, _ := newIdentityFixture(t, mocks.NewMockAuthProvider(t))

	_, err := svc.SignInWithOAuth(context.Background(), "google")
	assert.ErrorIs(t, err, ErrOAuthUnsupported)
}

func TestRefreshProfileReloadsAuthenticatedProfile(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(&ports.AuthUser{ID: "user-1"}, nil)
	svc, data, _ := newIdentityFixture(t, auth)
	data.seed("profiles", ports.Row{"id": "user-1", "bio": "before"})
	svc.Resolve(context.Background())

	_, err := data.Update(context.Background(), "profiles", ports.ByID("user-1"), ports.Row{"bio": "after"})
	require.NoError(t, err)

	session, err := svc.RefreshProfile(context.Background())
	require.NoError(t, err)
	identity, ok := session.Authenticated()
	require.True(t, ok)
	assert.Equal(t, "after", identity.Profile.Bio)
}

func TestRefreshProfileBeforeResolve(t *testing.T) {
	t.Parallel()

	svc, _, _ := newIdentityFixture(t, mocks.NewMockAuthProvider(t))

	_, err := svc.RefreshProfile(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionUnresolved)
}

func TestWatchResolvesOnAuthEvents(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil).Once()
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(&ports.AuthUser{ID: "user-1"}, nil)

	listeners := make(chan func(ports.AuthEvent), 1)
	auth.EXPECT().Subscribe(mock.Anything).RunAndReturn(func(listener func(ports.AuthEvent)) func() {
		listeners <- listener
		return func() {}
	})
	svc, _, _ := newIdentityFixture(t, auth)
	svc.Resolve(context.Background())
	require.True(t, svc.Session().IsAnonymous())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	listener := <-listeners
	listener(ports.AuthEvent{Type: ports.AuthEventSignedIn, User: &ports.AuthUser{ID: "user-1"}})

	require.Eventually(t, func() bool {
		return svc.Session().UserID() == "user-1"
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchFinishesResolveAfterStop(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	gate := make(chan struct{})
	auth := mocks.NewMockAuthProvider(t)
	auth.EXPECT().CurrentUser(mockAnyContext()).Return(nil, nil).Once()
	auth.EXPECT().CurrentUser(mockAnyContext()).RunAndReturn(func(ctx context.Context) (*ports.AuthUser, error) {
		close(entered)
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &ports.AuthUser{ID: "user-1"}, nil
	}).Once()

	listeners := make(chan func(ports.AuthEvent), 1)
	auth.EXPECT().Subscribe(mock.Anything).RunAndReturn(func(listener func(ports.AuthEvent)) func() {
		listeners <- listener
		return func() {}
	})
	svc := NewIdentityService(auth, newMemData(), newMemSlots(), fixedClock{now: testNow}, nil, IdentityOptions{ResolveTimeout: 5 * time.Second})
	svc.Resolve(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	listener := <-listeners
	listener(ports.AuthEvent{Type: ports.AuthEventSignedIn})
	<-entered
	cancel()
	close(gate)

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, domain.UserID("user-1"), svc.Session().UserID())
	assert.Equal(t, StateAuthenticated, svc.State())
}
