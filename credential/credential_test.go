package credential

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	secret := NewAdminToken()

	assert.True(t, Verify(secret, secret))

	other := NewAdminToken()
	assert.False(t, Verify(other, secret))

	// Length mismatch must fail, not panic.
	assert.False(t, Verify(secret[:16], secret))
	assert.False(t, Verify(nil, secret))
}

func TestVerifyHex(t *testing.T) {
	secret := NewJoinKey()

	assert.True(t, VerifyHex(hex.EncodeToString(secret), secret))
	assert.False(t, VerifyHex("not-hex", secret))
	assert.False(t, VerifyHex(hex.EncodeToString(NewJoinKey()), secret))
}

func TestMintedSecretsDiffer(t *testing.T) {
	require.NotEqual(t, NewAuthToken(), NewAuthToken())
	require.NotEqual(t, NewAPIKey(), NewAPIKey())
	require.Len(t, NewAdminToken(), 32)
}

func TestHashAPIKeyStable(t *testing.T) {
	key := NewAPIKey()
	assert.Equal(t, HashAPIKey(key), HashAPIKey(key))
	assert.NotEqual(t, HashAPIKey(key), HashAPIKey(key+"x"))
	assert.Len(t, HashAPIKey(key), 32)
}
