package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
)

const (
	DefaultAccessTokenTTL  = 7 * 24 * time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// SessionConfig sets token lifetimes. Zero values fall back to the defaults.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Identity is the subject a token pair is issued for.
type Identity struct {
	UserID string
	Email  string
	Extra  map[string]string
}

// UserLookup resolves an active user by email, returning repository.ErrNotFound
// when there is none.
type UserLookup func(ctx context.Context, email string) (*domain.User, error)

// SessionManager runs the token protocol: issuance, credential checks,
// access verification and the refresh exchange. It keeps no session state.
type SessionManager struct {
	tokens     *auth.TokenManager
	hasher     *auth.Hasher
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewSessionManager builds the manager. logger and metrics may be nil.
func NewSessionManager(tokens *auth.TokenManager, hasher *auth.Hasher, cfg SessionConfig, logger *zap.Logger, metrics *observability.Metrics) *SessionManager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		tokens:     tokens,
		hasher:     hasher,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		logger:     logger,
		metrics:    metrics,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *SessionManager) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueTokenPair signs an access and a refresh token for the same identity.
func (s *SessionManager) IssueTokenPair(identity Identity) (*domain.TokenPair, error) {
	claims := auth.Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		Extra:  identity.Extra,
	}

	access, accessExp, err := s.tokens.GenerateToken(claims, domain.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.GenerateToken(claims, domain.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		AccessTTL:        s.accessTTL,
	}, nil
}

// Authenticate checks a password against the user found by lookup. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials.
func (s *SessionManager) Authenticate(ctx context.Context, lookup UserLookup, email, password string) (*domain.User, error) {
	user, err := lookup(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.BurnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.ComparePassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("verify credential: %w", err)
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// VerifyAccess decodes an access token. Every failure is ErrUnauthorized.
func (s *SessionManager) VerifyAccess(token string) (*auth.Claims, error) {
	claims, err := s.decode(token, domain.TokenTypeAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a brand-new pair. The presented token
// is not revoked and stays usable until its own expiry.
func (s *SessionManager) Refresh(refreshToken string) (*domain.TokenPair, *auth.Claims, error) {
	claims, err := s.decode(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	pair, err := s.IssueTokenPair(Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Extra:  claims.Extra,
	})
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}

func (s *SessionManager) decode(token string, expected domain.TokenType) (*auth.Claims, error) {
	claims, err := s.tokens.ParseToken(token, expected)
	if err != nil {
		reason := auth.RejectionReason(err)
		s.metrics.RecordTokenRejection(reason)
		s.logger.Debug("token rejected",
			zap.String("expected_type", string(expected)),
			zap.String("reason", reason),
		)
		return nil, err
	}
	return claims, nil
}
