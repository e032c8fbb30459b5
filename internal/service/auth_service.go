package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
)

// AuthService coordinates registration, login and account flows on top of
// the session manager.
type AuthService struct {
	users      repository.UserRepository
	sessions   *SessionManager
	hasher     *auth.Hasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AuthDependencies encapsulates the collaborators of the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Sessions   *SessionManager
	Hasher     *auth.Hasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.Sessions,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Register creates an account and signs its first token pair.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*domain.User, *domain.TokenPair, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	if email == "" || password == "" || fullName == "" {
		return nil, nil, fmt.Errorf("%w: email, password and full_name are required", ErrValidation)
	}
	if !validEmail(email) {
		return nil, nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrInputTooLarge) {
			return nil, nil, fmt.Errorf("%w: password is too long", ErrValidation)
		}
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, ErrDuplicateEmail
		}
		return nil, nil, err
	}

	pair, err := s.sessions.IssueTokenPair(identityOf(user))
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, user.Email)
	return user, pair, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.sessions.Authenticate(ctx, s.users.FindByEmail, normalizeEmail(email), password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.sessions.IssueTokenPair(identityOf(user))
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, user.Email)
	return user, pair, nil
}

// Refresh runs the refresh exchange.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	pair, claims, err := s.sessions.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTokenRefreshed, claims.UserID, claims.Email)
	return pair, nil
}

// CurrentUser resolves the active account behind an access token. A token
// for a deleted account is treated like any other bad token.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.sessions.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// DeleteAccount soft-deletes the account behind an access token.
func (s *AuthService) DeleteAccount(ctx context.Context, accessToken string) error {
	claims, err := s.sessions.VerifyAccess(accessToken)
	if err != nil {
		return ErrUnauthorized
	}

	deleted, err := s.users.SoftDelete(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	s.publish(ctx, events.EventUserDeleted, claims.UserID, claims.Email)
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID, email string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Email:     email,
		Timestamp: time.Now().UTC(),
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func identityOf(user *domain.User) Identity {
	return Identity{UserID: user.ID, Email: user.Email}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
