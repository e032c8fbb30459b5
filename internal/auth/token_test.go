package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
)

var testSecret = []byte("unit-test-secret-unit-test-secret")

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T) (*TokenManager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)}
	return NewTokenManager(testSecret, WithClock(clock.Now)), clock
}

func testClaims() Claims {
	return Claims{UserID: "8b0b7c1e-4a55-4f1c-9a3e-5d2f1a7c9e10", Email: "a@x.com"}
}

func decodeSegment(t *testing.T, seg string) map[string]any {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	tm, clock := newTestManager(t)

	in := testClaims()
	in.Extra = map[string]string{"plan": "pro"}

	token, exp, err := tm.GenerateToken(in, domain.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	require.True(t, exp.Equal(clock.now.Add(time.Hour)))

	out, err := tm.ParseToken(token, domain.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, in.UserID, out.UserID)
	require.Equal(t, in.Email, out.Email)
	require.Equal(t, in.Email, out.Subject)
	require.Equal(t, domain.TokenTypeAccess, out.Type)
	require.Equal(t, in.Extra, out.Extra)
	require.NotEmpty(t, out.ID)
	require.Equal(t, int64(3600), out.ExpiresAt.Unix()-out.IssuedAt.Unix())
	require.Equal(t, clock.now.Unix(), out.IssuedAt.Unix())

	out.Extra["plan"] = "free"
	require.Equal(t, "pro", in.Extra["plan"], "decoded claims must not alias the input")
}

func TestGenerateToken_WireFormat(t *testing.T) {
	tm, clock := newTestManager(t)

	token, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeRefresh, 30*24*time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	header := decodeSegment(t, parts[0])
	require.Equal(t, "HS256", header["alg"])

	payload := decodeSegment(t, parts[1])
	require.Equal(t, "a@x.com", payload["sub"])
	require.Equal(t, "a@x.com", payload["email"])
	require.Equal(t, testClaims().UserID, payload["user_id"])
	require.Equal(t, "refresh", payload["type"])
	require.EqualValues(t, clock.now.Unix(), payload["iat"])
	require.EqualValues(t, clock.now.Add(30*24*time.Hour).Unix(), payload["exp"])
	require.NotContains(t, payload, "ext")
}

func TestGenerateToken_InvalidArguments(t *testing.T) {
	tm, _ := newTestManager(t)

	_, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeAccess, 0)
	require.Error(t, err)

	_, _, err = tm.GenerateToken(testClaims(), domain.TokenType("session"), time.Hour)
	require.Error(t, err)
}

func TestGenerateToken_SameSecondTokensDiffer(t *testing.T) {
	tm, _ := newTestManager(t)

	first, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)
	second, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestParseToken_WrongType(t *testing.T) {
	tm, _ := newTestManager(t)

	access, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	refresh, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	_, err = tm.ParseToken(access, domain.TokenTypeRefresh)
	require.ErrorIs(t, err, ErrWrongType)

	_, err = tm.ParseToken(refresh, domain.TokenTypeAccess)
	require.ErrorIs(t, err, ErrWrongType)
}

func TestParseToken_OtherSecret(t *testing.T) {
	tm, clock := newTestManager(t)
	other := NewTokenManager([]byte("a-completely-different-secret"), WithClock(clock.Now))

	token, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	for _, typ := range []domain.TokenType{domain.TokenTypeAccess, domain.TokenTypeRefresh} {
		_, err = other.ParseToken(token, typ)
		require.ErrorIs(t, err, ErrBadSignature)
	}
}

func TestParseToken_ExpiryBoundary(t *testing.T) {
	tm, clock := newTestManager(t)
	issued := clock.now

	token, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeAccess, 10*time.Second)
	require.NoError(t, err)

	t.Run("one second before exp", func(t *testing.T) {
		clock.now = issued.Add(9 * time.Second)
		_, err := tm.ParseToken(token, domain.TokenTypeAccess)
		require.NoError(t, err)
	})

	t.Run("at exp", func(t *testing.T) {
		clock.now = issued.Add(10 * time.Second)
		_, err := tm.ParseToken(token, domain.TokenTypeAccess)
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("one second after exp", func(t *testing.T) {
		clock.now = issued.Add(11 * time.Second)
		_, err := tm.ParseToken(token, domain.TokenTypeAccess)
		require.ErrorIs(t, err, ErrExpired)
	})
}

func TestParseToken_Malformed(t *testing.T) {
	tm, _ := newTestManager(t)

	for _, token := range []string{
		"",
		"not-a-token",
		"a.b.c",
		"a.b",
		"eyJhbGciOiJIUzI1NiJ9.!!!.sig",
	} {
		_, err := tm.ParseToken(token, domain.TokenTypeAccess)
		require.ErrorIs(t, err, ErrMalformed, "token %q", token)
	}
}

func TestParseToken_TamperedPayload(t *testing.T) {
	tm, _ := newTestManager(t)

	token, _, err := tm.GenerateToken(testClaims(), domain.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	payload := decodeSegment(t, parts[1])
	payload["user_id"] = "someone-else"
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(raw)

	_, err = tm.ParseToken(strings.Join(parts, "."), domain.TokenTypeAccess)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	tm, clock := newTestManager(t)

	claims := jwt.MapClaims{
		"sub":     "a@x.com",
		"user_id": "u-1",
		"email":   "a@x.com",
		"type":    "access",
		"iat":     clock.now.Unix(),
		"exp":     clock.now.Add(time.Hour).Unix(),
	}

	t.Run("hs512", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
		require.NoError(t, err)
		_, err = tm.ParseToken(signed, domain.TokenTypeAccess)
		require.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("none", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.ParseToken(signed, domain.TokenTypeAccess)
		require.ErrorIs(t, err, ErrBadSignature)
	})
}

func TestParseToken_MissingRequiredClaims(t *testing.T) {
	tm, clock := newTestManager(t)

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":     "a@x.com",
			"user_id": "u-1",
			"email":   "a@x.com",
			"type":    "access",
			"iat":     clock.now.Unix(),
			"exp":     clock.now.Add(time.Hour).Unix(),
		}
	}

	for _, missing := range []string{"user_id", "email", "type", "iat", "exp"} {
		t.Run(missing, func(t *testing.T) {
			claims := base()
			delete(claims, missing)
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
			require.NoError(t, err)

			_, err = tm.ParseToken(signed, domain.TokenTypeAccess)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRejectionReason(t *testing.T) {
	require.Equal(t, "malformed", RejectionReason(ErrMalformed))
	require.Equal(t, "bad_signature", RejectionReason(ErrBadSignature))
	require.Equal(t, "expired", RejectionReason(ErrExpired))
	require.Equal(t, "wrong_type", RejectionReason(ErrWrongType))
	require.Equal(t, "unknown", RejectionReason(ErrSecretUnavailable))
}
