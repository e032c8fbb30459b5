package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultSecretRedisKey is where RedisSecretStore keeps the secret.
const DefaultSecretRedisKey = "auth:signing_secret"

// RedisSecretStore shares one secret between replicas through Redis. SETNX
// makes the first writer win; everyone else reads the winner's value.
type RedisSecretStore struct {
	client redis.UniversalClient
	key    string
	logger *zap.Logger

	mu     sync.Mutex
	secret []byte
}

// NewRedisSecretStore returns a store keeping the secret under key.
func NewRedisSecretStore(client redis.UniversalClient, key string, logger *zap.Logger) *RedisSecretStore {
	if key == "" {
		key = DefaultSecretRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSecretStore{client: client, key: key, logger: logger}
}

// Obtain returns the shared secret, creating it if the key is absent.
func (s *RedisSecretStore) Obtain(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret != nil {
		return s.secret, nil
	}
	if s.client == nil {
		return nil, fmt.Errorf("%w: redis client not configured", ErrSecretUnavailable)
	}

	candidate, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}

	created, err := s.client.SetNX(ctx, s.key, candidate, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: setnx %s: %v", ErrSecretUnavailable, s.key, err)
	}
	if created {
		s.logger.Info("generated new signing secret", zap.String("redis_key", s.key))
		s.secret = candidate
		return candidate, nil
	}

	stored, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s vanished after setnx", ErrSecretUnavailable, s.key)
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrSecretUnavailable, s.key, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrSecretUnavailable, s.key)
	}

	s.secret = stored
	return stored, nil
}
