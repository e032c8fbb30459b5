package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
)

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.svc.Register(ctx, "  Alice@Example.com ", "pw-123456", " Alice ")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "Alice", user.FullName)
	require.True(t, user.IsActive)
	require.NotEqual(t, "pw-123456", user.PasswordHash)

	access, err := f.tokens.ParseToken(pair.AccessToken, domain.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, access.UserID)

	stored, err := f.repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, stored.ID)

	require.Equal(t, []events.EventType{events.EventUserRegistered}, f.events.snapshot())
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Register(ctx, "a@x.com", "pw", "A")
	require.NoError(t, err)

	_, _, err = f.svc.Register(ctx, "a@x.com", "other", "A2")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	_, _, err = f.svc.Register(ctx, "A@X.COM", "other", "A3")
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string][3]string{
		"missing email":     {"", "pw", "A"},
		"missing password":  {"a@x.com", "", "A"},
		"missing full name": {"a@x.com", "pw", "  "},
		"invalid email":     {"not-an-email", "pw", "A"},
		"display name form": {"Alice <a@x.com>", "pw", "A"},
		"password too long": {"a@x.com", strings.Repeat("p", 73), "A"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.svc.Register(ctx, tc[0], tc[1], tc[2])
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	require.Empty(t, f.events.snapshot())
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, _, err := f.svc.Register(ctx, "a@x.com", "pw-1", "A")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, "a@x.com", "pw-2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, "b@x.com", "pw-1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("success", func(t *testing.T) {
		user, pair, err := f.svc.Login(ctx, " A@X.com", "pw-1")
		require.NoError(t, err)
		require.Equal(t, registered.ID, user.ID)

		access, err := f.tokens.ParseToken(pair.AccessToken, domain.TokenTypeAccess)
		require.NoError(t, err)
		require.Equal(t, domain.TokenTypeAccess, access.Type)

		refresh, err := f.tokens.ParseToken(pair.RefreshToken, domain.TokenTypeRefresh)
		require.NoError(t, err)
		require.Equal(t, domain.TokenTypeRefresh, refresh.Type)
	})

	require.Equal(t, []events.EventType{events.EventUserRegistered, events.EventUserLoggedIn}, f.events.snapshot())
}

func TestAuthService_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.svc.Register(ctx, "a@x.com", "pw", "A")
	require.NoError(t, err)

	f.clock.Advance(time.Second)

	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)

	claims, err := f.tokens.ParseToken(next.AccessToken, domain.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", claims.Email)

	_, err = f.svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.Equal(t, []events.EventType{events.EventUserRegistered, events.EventTokenRefreshed}, f.events.snapshot())
}

func TestAuthService_CurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, pair, err := f.svc.Register(ctx, "a@x.com", "pw", "A")
	require.NoError(t, err)

	user, err := f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.Equal(t, "A", user.FullName)

	_, err = f.svc.CurrentUser(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.CurrentUser(ctx, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	f.clock.Advance(time.Hour)
	_, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_DeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.svc.Register(ctx, "a@x.com", "pw", "A")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccount(ctx, pair.AccessToken))

	_, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.ErrorIs(t, f.svc.DeleteAccount(ctx, pair.AccessToken), ErrNotFound)

	_, _, err = f.svc.Login(ctx, "a@x.com", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Register(ctx, "a@x.com", "pw", "A")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	require.ErrorIs(t, f.svc.DeleteAccount(ctx, "garbage"), ErrUnauthorized)

	require.Equal(t, []events.EventType{events.EventUserRegistered, events.EventUserDeleted}, f.events.snapshot())
}

func TestAuthService_LoginRejectsLongerPasswordWithSamePrefix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	password := strings.Repeat("k", 72)
	_, _, err := f.svc.Register(ctx, "a@x.com", password, "A")
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "a@x.com", password+"extra")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Login(ctx, "a@x.com", password)
	require.NoError(t, err)
}
