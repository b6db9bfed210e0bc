package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/envmgr/envmgr/internal/auth"
	"github.com/envmgr/envmgr/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRefreshStore(t *testing.T, ttl time.Duration) *auth.RefreshStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.RefreshToken{}))
	return auth.NewRefreshStore(db, ttl)
}

func TestRefresh_IssueAndRotate(t *testing.T) {
	s := newRefreshStore(t, time.Hour)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	newRaw, userID, err := s.Rotate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.NotEqual(t, raw, newRaw)

	// the rotated-out token is spent
	_, _, err = s.Rotate(ctx, raw)
	require.Error(t, err)
}

func TestRefresh_RevokedTokenRejected(t *testing.T) {
	s := newRefreshStore(t, time.Hour)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, raw))

	_, _, err = s.Rotate(ctx, raw)
	require.Error(t, err)
}

func TestRefresh_ExpiredTokenRejected(t *testing.T) {
	s := newRefreshStore(t, -time.Minute)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "user-1")
	require.NoError(t, err)

	_, _, err = s.Rotate(ctx, raw)
	require.Error(t, err)
}

func TestRefresh_RevokeAllForUser(t *testing.T) {
	s := newRefreshStore(t, time.Hour)
	ctx := context.Background()

	a, err := s.Issue(ctx, "user-1")
	require.NoError(t, err)
	b, err := s.Issue(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, s.RevokeAllForUser(ctx, "user-1"))

	_, _, err = s.Rotate(ctx, a)
	require.Error(t, err)
	_, _, err = s.Rotate(ctx, b)
	require.Error(t, err)
}
