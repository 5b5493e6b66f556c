package repository

import (
	"context"
	"time"

	"github.com/landrecords/portal/common/cache"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/workflow"
)

// RoleCachingStore serves GetUserRole from a cache in front of another
// workflow.Store. Unknown users are not cached.
type RoleCachingStore struct {
	workflow.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewRoleCachingStore wraps store
func NewRoleCachingStore(store workflow.Store, c cache.Cache, ttl time.Duration) *RoleCachingStore {
	return &RoleCachingStore{Store: store, cache: c, ttl: ttl}
}

func roleKey(userID string) string {
	return "role:" + userID
}

// GetUserRole returns the cached role or loads and caches it
func (s *RoleCachingStore) GetUserRole(ctx context.Context, userID string) (models.Role, error) {
	if v, ok, err := s.cache.Get(ctx, roleKey(userID)); err == nil && ok {
		return models.Role(v), nil
	}
	role, err := s.Store.GetUserRole(ctx, userID)
	if err != nil {
		return "", err
	}
	_ = s.cache.Set(ctx, roleKey(userID), []byte(role), s.ttl)
	return role, nil
}

// Forget drops a cached role, e.g. after the user was updated
func (s *RoleCachingStore) Forget(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, roleKey(userID))
}
