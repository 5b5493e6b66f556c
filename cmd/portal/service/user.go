package service

import (
	"context"
	"fmt"

	"github.com/landrecords/portal/common/config"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/models"
)

// UserStore persists portal users
type UserStore interface {
	UpsertUser(ctx context.Context, u models.User) error
}

// SeedUsers upserts "id:role" pairs from configuration
func SeedUsers(ctx context.Context, store UserStore, pairs []string, log *logger.Logger) error {
	for _, pair := range pairs {
		id, role, ok := config.SplitSeedUser(pair)
		if !ok {
			return fmt.Errorf("invalid seed user %q", pair)
		}
		if !models.Role(role).Valid() {
			return fmt.Errorf("seed user %s has unknown role %q", id, role)
		}
		if err := store.UpsertUser(ctx, models.User{ID: id, Name: id, Role: models.Role(role)}); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", id, err)
		}
		log.Info("seeded user", "user_id", id, "role", role)
	}
	return nil
}
