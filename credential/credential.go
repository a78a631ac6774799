// Package credential implements the shared-secret primitives used across the
// gateway: constant-time comparison and minting of the four secret kinds
// (service API key, admin token, per-wallet join key, per-cosigner auth token).
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	apiKeyBytes = 20
	tokenBytes  = 32
)

// Verify reports whether presented equals expected without leaking how many
// leading bytes matched. A length mismatch is folded into the same
// constant-time path rather than returning early.
func Verify(presented, expected []byte) bool {
	if len(presented) != len(expected) {
		// Burn a comparison of equal cost so length probing learns nothing
		// beyond the mismatch itself.
		subtle.ConstantTimeCompare(expected, expected)
		return false
	}
	return subtle.ConstantTimeCompare(presented, expected) == 1
}

// VerifyHex decodes a hex-encoded presented secret and compares it against
// expected. Malformed hex counts as a mismatch.
func VerifyHex(presentedHex string, expected []byte) bool {
	presented, err := hex.DecodeString(presentedHex)
	if err != nil {
		return false
	}
	return Verify(presented, expected)
}

// HashAPIKey returns the sha256 digest the transport gate compares basic-auth
// passwords against. The key itself is never stored by the server.
func HashAPIKey(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// NewAPIKey mints a random base58 service API key.
func NewAPIKey() string {
	return base58.Encode(randomBytes(apiKeyBytes))
}

// NewAdminToken mints a random 32-byte admin token.
func NewAdminToken() []byte {
	return randomBytes(tokenBytes)
}

// NewJoinKey mints the single-use-per-cosigner wallet join key.
func NewJoinKey() []byte {
	return randomBytes(tokenBytes)
}

// NewAuthToken mints a per-cosigner auth token at join time.
func NewAuthToken() []byte {
	return randomBytes(tokenBytes)
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; a broken entropy
		// source is not something the gateway can run without.
		panic(err)
	}
	return buf
}
