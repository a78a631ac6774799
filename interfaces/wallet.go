// Package interfaces defines the contracts between the gateway's HTTP layer
// and its collaborators, without implementation details.
package interfaces

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/cosignhq/multisig-gateway/credential"
)

// walletIDPattern constrains wallet identifiers to a safe path segment.
var walletIDPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._-]{0,39}$`)

// ValidateWalletID checks that id can be used as a wallet identifier.
func ValidateWalletID(id string) error {
	if id == "" {
		return errors.New("wallet id is required")
	}
	if !walletIDPattern.MatchString(id) {
		return fmt.Errorf("invalid wallet id %q", id)
	}
	return nil
}

// Cosigner is one party's stake in a multisig wallet. A cosigner is created
// only by a successful join (the creator counts as the first join) and is
// owned exclusively by its parent wallet record.
type Cosigner struct {
	// Name is the caller-supplied human label.
	Name string

	// Path is a caller-supplied derivation path hint, opaque to the gateway.
	Path string

	// XPub is the cosigner's base58 extended public key, validated against
	// the configured network before the cosigner is stored.
	XPub string

	// AuthToken is the secret minted at join time and required for all
	// subsequent wallet-scoped requests by this cosigner.
	AuthToken []byte
}

// WalletRecord is the coordination state of one multisig wallet under
// construction or in use.
type WalletRecord struct {
	ID        string
	M         int
	N         int
	Witness   bool
	JoinKey   []byte
	Cosigners []Cosigner
}

// Complete reports whether the wallet has reached its full cosigner count.
func (w *WalletRecord) Complete() bool {
	return len(w.Cosigners) == w.N
}

// VerifyJoinKey compares a presented join key against the wallet's stored one
// in constant time.
func (w *WalletRecord) VerifyJoinKey(presented []byte) bool {
	return credential.Verify(presented, w.JoinKey)
}

// Auth reports whether token belongs to any cosigner of this wallet. Every
// cosigner token is compared so the scan cost does not depend on which
// cosigner matched.
func (w *WalletRecord) Auth(token []byte) bool {
	ok := false
	for i := range w.Cosigners {
		if credential.Verify(token, w.Cosigners[i].AuthToken) {
			ok = true
		}
	}
	return ok
}

// Balance is the wallet's satoshi balance as tracked by the store.
type Balance struct {
	Confirmed   int64
	Unconfirmed int64
}

// Wallet is the underlying wallet handle resolved alongside a coordination
// record. Balance computation and address derivation are the store's
// responsibility, not the gateway's.
type Wallet interface {
	Balance(ctx context.Context) (Balance, error)

	// ReceiveAddress returns the wallet's current joint receive address, or
	// an empty string while the wallet is still missing cosigners.
	ReceiveAddress(ctx context.Context) (string, error)
}

// CreateOptions carries the parameters of a wallet creation. Cosigner is the
// initiating member and becomes index 0.
type CreateOptions struct {
	ID       string
	M        int
	N        int
	Witness  bool
	Cosigner Cosigner
}

// WalletStore is the external store the orchestrator depends on. Mutating
// operations must be serialized per wallet id by the implementation: two
// concurrent Join calls for the same id must never both observe room and
// both append.
type WalletStore interface {
	// Get resolves a wallet record and its underlying wallet handle.
	// A missing or removed id yields an error the HTTP layer renders as 404.
	Get(ctx context.Context, id string) (*WalletRecord, Wallet, error)

	// List returns every known wallet record.
	List(ctx context.Context) ([]*WalletRecord, error)

	// Create stores a new wallet record. The id must not already exist.
	Create(ctx context.Context, opts CreateOptions) (*WalletRecord, error)

	// Join appends a cosigner to the wallet, rejecting the append when the
	// wallet is already full or the cosigner would violate wallet
	// invariants. Returns the updated record.
	Join(ctx context.Context, id string, cosigner Cosigner) (*WalletRecord, error)

	// Remove deletes the wallet record and any underlying wallet state.
	Remove(ctx context.Context, id string) (bool, error)

	Close() error
}
