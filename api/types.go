// Package api holds the request and response types shared by the gateway's
// HTTP server and its Go client, together with the error envelope every
// failure renders as.
package api

import (
	"encoding/hex"

	"github.com/cosignhq/multisig-gateway/interfaces"
)

// TokenField is the query/body field carrying the admin or cosigner token.
const TokenField = "token"

// CreateWalletRequest is the body of PUT /{id}.
type CreateWalletRequest struct {
	ID           string `json:"id"`
	M            int    `json:"m"`
	N            int    `json:"n"`
	XPub         string `json:"xpub"`
	CosignerName string `json:"cosignerName"`
	CosignerPath string `json:"cosignerPath"`

	// Witness defaults to true when absent.
	Witness *bool `json:"witness,omitempty"`

	// Token may carry the admin token instead of the token query parameter.
	Token string `json:"token,omitempty"`
}

// JoinWalletRequest is the body of POST /{id}/join. JoinKey is hex encoded.
type JoinWalletRequest struct {
	JoinKey      string `json:"joinKey"`
	XPub         string `json:"xpub"`
	CosignerName string `json:"cosignerName"`
	CosignerPath string `json:"cosignerPath"`
	Token        string `json:"token,omitempty"`
}

// CosignerView is a cosigner as revealed to a caller. Token is present only
// for the cosigner the response is scoped to.
type CosignerView struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	XPub  string `json:"xpub"`
	Token string `json:"token,omitempty"`
}

// BalanceView is the wallet balance in satoshis.
type BalanceView struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// WalletResponse is the wallet JSON returned by wallet-scoped operations.
type WalletResponse struct {
	ID          string `json:"id"`
	M           int    `json:"m"`
	N           int    `json:"n"`
	Witness     bool   `json:"witness"`
	Initialized bool   `json:"initialized"`
	Network     string `json:"network,omitempty"`

	// JoinKey is revealed only to the creator in the create response.
	JoinKey string `json:"joinKey,omitempty"`

	Cosigners      []CosignerView `json:"cosigners"`
	Balance        *BalanceView   `json:"balance,omitempty"`
	ReceiveAddress string         `json:"receiveAddress,omitempty"`
}

// ListWalletsResponse is the body of GET /.
type ListWalletsResponse struct {
	Wallets []WalletResponse `json:"wallets"`
}

// RemoveWalletResponse is the body of DELETE /{id}.
type RemoveWalletResponse struct {
	Success bool `json:"success"`
}

// HideTokens scopes a wallet response so no cosigner secrets are revealed.
const HideTokens = -1

// WalletResponseFromRecord builds the wallet view of rec scoped to one
// cosigner: cosignerIndex selects whose auth token is revealed (HideTokens
// reveals none), and withJoinKey additionally reveals the wallet's join key
// (create response only).
func WalletResponseFromRecord(rec *interfaces.WalletRecord, cosignerIndex int, withJoinKey bool) WalletResponse {
	resp := WalletResponse{
		ID:          rec.ID,
		M:           rec.M,
		N:           rec.N,
		Witness:     rec.Witness,
		Initialized: rec.Complete(),
		Cosigners:   make([]CosignerView, 0, len(rec.Cosigners)),
	}

	if withJoinKey {
		resp.JoinKey = hex.EncodeToString(rec.JoinKey)
	}

	for i, cosigner := range rec.Cosigners {
		view := CosignerView{
			Name: cosigner.Name,
			Path: cosigner.Path,
			XPub: cosigner.XPub,
		}
		if i == cosignerIndex {
			view.Token = hex.EncodeToString(cosigner.AuthToken)
		}
		resp.Cosigners = append(resp.Cosigners, view)
	}

	return resp
}
