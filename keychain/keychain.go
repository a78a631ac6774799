// Package keychain wraps the HD key operations the gateway delegates to the
// btcsuite libraries: extended public key validation under a configured
// network and derivation of the joint m-of-n receive script and address.
package keychain

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Network maps a network name to its chain parameters.
func Network(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet", "main", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// ParseXPub decodes a base58 extended key and verifies it is a public key
// belonging to net.
func ParseXPub(b58 string, net *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(b58)
	if err != nil {
		return nil, fmt.Errorf("invalid extended key: %w", err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("extended key is private, expected public")
	}
	if !key.IsForNet(net) {
		return nil, fmt.Errorf("extended key does not belong to network %s", net.Name)
	}
	return key, nil
}

// MultisigScript derives the child public key of every cosigner at index and
// assembles the m-of-n multisig script. Keys are ordered by their serialized
// compressed form so every cosigner derives the identical script.
func MultisigScript(m int, xpubs []*hdkeychain.ExtendedKey, index uint32, net *chaincfg.Params) ([]byte, error) {
	if m < 1 || m > len(xpubs) {
		return nil, fmt.Errorf("invalid threshold %d for %d keys", m, len(xpubs))
	}

	addrKeys := make([]*btcutil.AddressPubKey, 0, len(xpubs))
	for _, xpub := range xpubs {
		child, err := xpub.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("deriving child %d: %w", index, err)
		}
		pub, err := child.ECPubKey()
		if err != nil {
			return nil, err
		}
		addrKey, err := btcutil.NewAddressPubKey(pub.SerializeCompressed(), net)
		if err != nil {
			return nil, err
		}
		addrKeys = append(addrKeys, addrKey)
	}

	sort.Slice(addrKeys, func(i, j int) bool {
		return string(addrKeys[i].ScriptAddress()) < string(addrKeys[j].ScriptAddress())
	})

	return txscript.MultiSigScript(addrKeys, m)
}

// MultisigAddress returns the joint receive address for the script at index:
// P2WSH when witness is set, legacy P2SH otherwise.
func MultisigAddress(m int, xpubs []*hdkeychain.ExtendedKey, index uint32, witness bool, net *chaincfg.Params) (btcutil.Address, error) {
	script, err := MultisigScript(m, xpubs, index, net)
	if err != nil {
		return nil, err
	}

	if witness {
		scriptHash := sha256.Sum256(script)
		return btcutil.NewAddressWitnessScriptHash(scriptHash[:], net)
	}
	return btcutil.NewAddressScriptHash(script, net)
}
