package store

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/envmgr/envmgr/internal/model"
	"github.com/envmgr/envmgr/internal/secret"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// White-box test: the afterDelete hook simulates a crash between the delete
// and the insert phase of ReplaceAll.

func TestReplaceAll_AtomicOnMidTransactionFailure(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Variable{}))

	box, err := secret.NewBox(hex.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	s := NewVariables(db, box)
	ctx := context.Background()

	_, err = s.BulkUpsert(ctx, "env-1", map[string]string{"A": "1", "B": "2"})
	require.NoError(t, err)

	boom := errors.New("simulated failure after delete")
	s.afterDelete = func() error { return boom }

	_, err = s.ReplaceAll(ctx, "env-1", map[string]string{"C": "3"})
	require.ErrorIs(t, err, boom)

	// the pre-operation set must still be visible, never the empty set
	s.afterDelete = nil
	list, err := s.List(ctx, "env-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Key)
	assert.Equal(t, "B", list[1].Key)
}
