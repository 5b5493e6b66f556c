package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/cache"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/store/memory"
)

func TestRoleCachingStore(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, mem.UpsertUser(ctx, models.User{ID: "legal-1", Role: models.RoleLegalOfficer}))

	c := cache.NewMemoryCache(logger.Discard(), time.Hour)
	defer c.Close()
	s := NewRoleCachingStore(mem, c, time.Minute)

	role, err := s.GetUserRole(ctx, "legal-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleLegalOfficer, role)

	// served from cache even though the backing store changed
	require.NoError(t, mem.UpsertUser(ctx, models.User{ID: "legal-1", Role: models.RoleCitizen}))
	role, err = s.GetUserRole(ctx, "legal-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleLegalOfficer, role)

	require.NoError(t, s.Forget(ctx, "legal-1"))
	role, err = s.GetUserRole(ctx, "legal-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCitizen, role)

	_, err = s.GetUserRole(ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, ok, _ := c.Get(ctx, roleKey("nobody"))
	assert.False(t, ok)
}
