package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/envmgr/envmgr/internal/clierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	g, err := state.LoadGlobal(dir)
	require.NoError(t, err)
	assert.Empty(t, g.Token)

	g.Token = "tok-123"
	g.RefreshToken = "ref-456"
	g.APIURL = "http://localhost:8080"
	require.NoError(t, state.SaveGlobal(dir, g))

	got, err := state.LoadGlobal(dir)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got.Token)
	assert.Equal(t, "ref-456", got.RefreshToken)
	assert.Equal(t, "http://localhost:8080", got.APIURL)
}

func TestLoadLink_MissingIsNotLinked(t *testing.T) {
	_, err := state.LoadLink(t.TempDir())
	assert.ErrorIs(t, err, clierr.ErrNotLinked)
}

func TestLinkRoundTrip(t *testing.T) {
	workdir := t.TempDir()
	link := &state.Link{
		ProjectID:       "proj-1",
		ProjectName:     "Billing",
		EnvironmentID:   "env-1",
		EnvironmentName: "Production",
		EnvFilePath:     ".env.local",
		EnvAliases:      map[string]string{"p": "production"},
	}
	require.NoError(t, state.SaveLink(workdir, link))

	got, err := state.LoadLink(workdir)
	require.NoError(t, err)
	assert.Equal(t, link, got)
}

func TestLoadLink_DefaultsEnvFile(t *testing.T) {
	workdir := t.TempDir()
	require.NoError(t, state.SaveLink(workdir, &state.Link{ProjectID: "p", EnvironmentID: "e"}))

	got, err := state.LoadLink(workdir)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultEnvFile, got.EnvFilePath)
}

func TestMalformedStateIsHardError(t *testing.T) {
	workdir := t.TempDir()
	dir := filepath.Join(workdir, ".envmgr")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o644))

	_, err := state.LoadLink(workdir)
	assert.ErrorIs(t, err, clierr.ErrMalformedState)
}

func TestMalformedGlobalIsHardError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("[]"), 0o600))

	_, err := state.LoadGlobal(dir)
	assert.ErrorIs(t, err, clierr.ErrMalformedState)
}
