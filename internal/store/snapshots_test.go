package store_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/envmgr/envmgr/internal/secret"
	"github.com/envmgr/envmgr/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotStore(t *testing.T) (*store.Variables, *store.Snapshots) {
	t.Helper()
	vars, db := newTestStore(t)
	box, err := secret.NewBox(hex.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	return vars, store.NewSnapshots(db, box, vars)
}

func TestSnapshot_CreateAndRestore(t *testing.T) {
	vars, snaps := newSnapshotStore(t)
	ctx := context.Background()

	_, err := vars.BulkUpsert(ctx, envID, map[string]string{"A": "1", "B": "2"})
	require.NoError(t, err)

	snap, err := snaps.Create(ctx, envID, "before-migration")
	require.NoError(t, err)
	assert.Equal(t, envID, snap.EnvironmentID)
	assert.NotEmpty(t, snap.ID)

	// drift after the snapshot
	_, err = vars.ReplaceAll(ctx, envID, map[string]string{"C": "3"})
	require.NoError(t, err)

	restoredEnv, n, err := snaps.Restore(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, envID, restoredEnv)
	assert.Equal(t, 2, n)

	blob, err := vars.Export(ctx, envID)
	require.NoError(t, err)
	assert.Equal(t, "A=1\nB=2\n", blob)
}

func TestSnapshot_List(t *testing.T) {
	vars, snaps := newSnapshotStore(t)
	ctx := context.Background()

	_, err := vars.Upsert(ctx, envID, "A", "1")
	require.NoError(t, err)

	_, err = snaps.Create(ctx, envID, "first")
	require.NoError(t, err)
	_, err = snaps.Create(ctx, envID, "second")
	require.NoError(t, err)

	list, err := snaps.List(ctx, envID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestSnapshot_RestoreUnknownID(t *testing.T) {
	_, snaps := newSnapshotStore(t)
	_, _, err := snaps.Restore(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
