package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
)

// TokenManager issues and validates HS256 session tokens. It holds no state
// besides the signing secret, so one instance is shared by all requests.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager builds a manager signing with secret.
func NewTokenManager(secret []byte, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{secret: append([]byte(nil), secret...), now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Claims describes the JWT payload. Application specific values travel in
// Extra so the required field set stays fixed.
type Claims struct {
	UserID string            `json:"user_id"`
	Email  string            `json:"email"`
	Type   domain.TokenType  `json:"type"`
	Extra  map[string]string `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs claims as a token of the given type living for lifetime.
// iat, exp, type and jti are always set here; sub defaults to the email.
func (tm *TokenManager) GenerateToken(claims Claims, tokenType domain.TokenType, lifetime time.Duration) (string, time.Time, error) {
	if !tokenType.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown token type %q", tokenType)
	}
	if lifetime <= 0 {
		return "", time.Time{}, errors.New("token lifetime must be positive")
	}

	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(lifetime)

	subject := claims.Subject
	if subject == "" {
		subject = claims.Email
	}

	out := &Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Type:   tokenType,
		Extra:  copyExtra(claims.Extra),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, out)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature, expiry and type, returning fresh claims.
// Expiry is exact: a token is rejected from the second its exp is reached.
func (tm *TokenManager) ParseToken(tokenStr string, expected domain.TokenType) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}

	if claims.UserID == "" || claims.Email == "" || claims.IssuedAt == nil || !claims.Type.Valid() {
		return nil, ErrMalformed
	}
	if claims.Type != expected {
		return nil, ErrWrongType
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func copyExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
