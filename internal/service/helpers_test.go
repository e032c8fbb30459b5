package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *recordedEvents) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

func (r *recordedEvents) snapshot() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.types...)
}

type fixture struct {
	clock    *testClock
	tokens   *auth.TokenManager
	hasher   *auth.Hasher
	sessions *SessionManager
	repo     repository.UserRepository
	svc      *AuthService
	events   *recordedEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newTestClock()
	tokens := auth.NewTokenManager([]byte("service-test-secret"), auth.WithClock(clock.Now))
	hasher := auth.NewHasher(bcrypt.MinCost)
	sessions := NewSessionManager(tokens, hasher, SessionConfig{
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, nil, nil)

	repo := repository.NewMemoryUserRepository()
	dispatcher := events.NewInMemoryDispatcher()
	recorded := &recordedEvents{}
	for _, et := range []events.EventType{
		events.EventUserRegistered,
		events.EventUserLoggedIn,
		events.EventTokenRefreshed,
		events.EventUserDeleted,
	} {
		dispatcher.Subscribe(et, recorded.handler)
	}

	svc := NewAuthService(AuthDependencies{
		UserRepo:   repo,
		Sessions:   sessions,
		Hasher:     hasher,
		Dispatcher: dispatcher,
	})

	return &fixture{
		clock:    clock,
		tokens:   tokens,
		hasher:   hasher,
		sessions: sessions,
		repo:     repo,
		svc:      svc,
		events:   recorded,
	}
}
