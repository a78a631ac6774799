// Package client implements a Go client for the multisig coordination
// gateway. Failures reported by the gateway decode into *api.Error so callers
// can branch on the failure type and status code.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cosignhq/multisig-gateway/api"
)

// Client talks to one gateway instance.
type Client struct {
	// BaseURL is the gateway's base URL, without a trailing slash.
	BaseURL string

	// APIKey is sent as the basic-auth password on every request. Leave empty
	// against gateways running with transport auth disabled.
	APIKey string

	// Token is the hex-encoded admin or cosigner token attached to every
	// request as the token query parameter. Optional.
	Token string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

// CreateWallet creates a wallet with the caller as its first cosigner. The
// response carries the wallet's join key and the creator's auth token; neither
// is retrievable later.
func (c *Client) CreateWallet(ctx context.Context, id string, req *api.CreateWalletRequest) (*api.WalletResponse, error) {
	var resp api.WalletResponse
	if err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinWallet adds a cosigner to an existing wallet using its join key. The
// response reveals only the new cosigner's auth token.
func (c *Client) JoinWallet(ctx context.Context, id string, req *api.JoinWalletRequest) (*api.WalletResponse, error) {
	var resp api.WalletResponse
	if err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(id)+"/join", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWallet fetches a wallet's public info, balance and receive address.
func (c *Client) GetWallet(ctx context.Context, id string) (*api.WalletResponse, error) {
	var resp api.WalletResponse
	if err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListWallets fetches every wallet summary. Requires the admin token.
func (c *Client) ListWallets(ctx context.Context) (*api.ListWalletsResponse, error) {
	var resp api.ListWalletsResponse
	if err := c.do(ctx, http.MethodGet, "/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveWallet deletes a wallet. Requires the admin token.
func (c *Client) RemoveWallet(ctx context.Context, id string) (bool, error) {
	var resp api.RemoveWalletResponse
	if err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.BaseURL + path
	if c.Token != "" {
		target += "?" + api.TokenField + "=" + url.QueryEscape(c.Token)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.SetBasicAuth("x", c.APIKey)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse gateway response: %w", err)
	}
	return nil
}

// decodeError turns a non-200 response into the gateway's *api.Error. A body
// that is not the error envelope still yields an error with the right status.
func decodeError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &api.Error{Type: api.InternalError, Code: resp.StatusCode,
			Message: fmt.Sprintf("gateway returned %d", resp.StatusCode)}
	}

	var envelope api.ErrorEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil || envelope.Err.Code == 0 {
		return &api.Error{Type: api.InternalError, Code: resp.StatusCode,
			Message: fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, string(bodyBytes))}
	}
	return &envelope.Err
}
