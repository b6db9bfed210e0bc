package secret_test

import (
	"encoding/hex"
	"testing"

	"github.com/envmgr/envmgr/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = hex.EncodeToString(make([]byte, 32))

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := secret.NewBox(testKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"", "secret123", "p=a=s=s", "multi\nline"} {
		sealed, err := box.Seal(plaintext)
		require.NoError(t, err)
		assert.NotContains(t, string(sealed), plaintext+"X") // sanity: sealed is bytes

		got, err := box.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestSeal_NonDeterministic(t *testing.T) {
	box, err := secret.NewBox(testKey)
	require.NoError(t, err)

	a, err := box.Seal("same")
	require.NoError(t, err)
	b, err := box.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Tampered(t *testing.T) {
	box, err := secret.NewBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal("value")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = box.Open(sealed)
	require.Error(t, err)
}

func TestOpen_TooShort(t *testing.T) {
	box, err := secret.NewBox(testKey)
	require.NoError(t, err)

	_, err = box.Open([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestNewBox_BadKeys(t *testing.T) {
	_, err := secret.NewBox("not-hex")
	require.Error(t, err)

	_, err = secret.NewBox(hex.EncodeToString(make([]byte, 16)))
	require.Error(t, err)
}
