package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
)

const (
	userCachePrefix = "auth:user:"
	// userTombstone marks a soft-deleted id. Readers only populate the key
	// with SETNX, so a lookup racing SoftDelete cannot overwrite it.
	userTombstone = "deleted"
)

// cachedUser is the JSON form of a user kept in Redis. The password hash is
// never cached; credential checks go through FindByEmail.
type cachedUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// cachedUserRepository is a read-through Redis cache in front of FindByID,
// which every authenticated request hits. Redis failures fall back to next.
type cachedUserRepository struct {
	next   UserRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository wraps next with a Redis cache. A nil client
// returns next unchanged.
func NewCachedUserRepository(next UserRepository, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) UserRepository {
	if client == nil {
		return next
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedUserRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func (r *cachedUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	key := userCachePrefix + id

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(raw) == userTombstone:
		return nil, ErrNotFound
	case err == nil:
		var cu cachedUser
		if jsonErr := json.Unmarshal(raw, &cu); jsonErr == nil {
			return cu.toDomain(), nil
		}
		r.logger.Warn("discarding unreadable cached user", zap.String("user_id", id))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("user cache read failed", zap.String("user_id", id), zap.Error(err))
	}

	user, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(fromDomain(user)); err == nil {
		if err := r.client.SetNX(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("user cache write failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	return user, nil
}

func (r *cachedUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.next.FindByEmail(ctx, email)
}

func (r *cachedUserRepository) Insert(ctx context.Context, user *domain.User) error {
	return r.next.Insert(ctx, user)
}

func (r *cachedUserRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.next.SoftDelete(ctx, id)
	if err != nil {
		return false, err
	}
	if err := r.client.Set(ctx, userCachePrefix+id, userTombstone, r.ttl).Err(); err != nil {
		r.logger.Warn("user cache invalidation failed", zap.String("user_id", id), zap.Error(err))
	}
	return deleted, nil
}

func fromDomain(u *domain.User) cachedUser {
	return cachedUser{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (c cachedUser) toDomain() *domain.User {
	return &domain.User{
		ID:        c.ID,
		Email:     c.Email,
		FullName:  c.FullName,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
