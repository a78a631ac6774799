package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cosignhq/multisig-gateway/api"
	"github.com/cosignhq/multisig-gateway/credential"
	"github.com/cosignhq/multisig-gateway/interfaces"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestContext is the per-request state threaded through the authorization
// pipeline. Admin is set exactly once by the admin-check stage and only read
// afterwards; later stages never re-derive it.
type RequestContext struct {
	// Admin marks the request as admin-authenticated (or admin auth as
	// disabled entirely).
	Admin bool

	// Token is the raw token field from the query string or JSON body.
	Token string

	// Record and Wallet are attached by the context-resolution stage for
	// wallet-scoped routes.
	Record *interfaces.WalletRecord
	Wallet interfaces.Wallet

	// Body is the request body, read once by the parse stage.
	Body []byte
}

// RoutePolicy declares which pipeline stages a route opts out of. Exemptions
// live here, in one table, instead of path/method checks inside the stages.
type RoutePolicy struct {
	// AdminOnly rejects non-admin callers after context resolution.
	AdminOnly bool

	// SkipWalletLoad suppresses the context-resolution stage. Used by
	// wallet-agnostic routes and by create, whose wallet does not exist yet.
	SkipWalletLoad bool

	// SkipCosignerAuth suppresses the cosigner token check. Used by join,
	// which authenticates with the wallet's join key instead.
	SkipCosignerAuth bool
}

var (
	policyList   = RoutePolicy{AdminOnly: true, SkipWalletLoad: true, SkipCosignerAuth: true}
	policyGet    = RoutePolicy{}
	policyCreate = RoutePolicy{SkipWalletLoad: true, SkipCosignerAuth: true}
	policyRemove = RoutePolicy{AdminOnly: true, SkipCosignerAuth: true}
	policyJoin   = RoutePolicy{SkipCosignerAuth: true}
)

// stage is one pipeline step. Returning an error short-circuits the chain.
type stage func(r *http.Request, rc *RequestContext, policy RoutePolicy) error

// runPipeline executes the ordered authorization chain and returns the
// populated request context, or the first stage error.
func (h *Handler) runPipeline(r *http.Request, policy RoutePolicy) (*RequestContext, error) {
	rc := &RequestContext{}
	stages := []stage{
		h.parseRequest,
		h.checkAdmin,
		h.resolveWallet,
		h.enforceAdminOnly,
		h.authCosigner,
	}
	for _, s := range stages {
		if err := s(r, rc, policy); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// parseRequest reads the body and extracts the token field from the query
// string or, failing that, the JSON body.
func (h *Handler) parseRequest(r *http.Request, rc *RequestContext, _ RoutePolicy) error {
	if r.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
		if err != nil {
			return api.Validation("failed to read request body")
		}
		rc.Body = body
	}

	rc.Token = r.URL.Query().Get(api.TokenField)
	if rc.Token == "" && len(rc.Body) > 0 {
		var fields struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(rc.Body, &fields); err != nil {
			return api.Validation("invalid JSON body")
		}
		rc.Token = fields.Token
	}
	return nil
}

// checkAdmin grants admin status either because admin auth is disabled or
// because the presented token matches the configured admin token.
func (h *Handler) checkAdmin(_ *http.Request, rc *RequestContext, _ RoutePolicy) error {
	if !h.walletAuth {
		rc.Admin = true
		return nil
	}
	if rc.Token != "" && credential.VerifyHex(rc.Token, h.adminToken) {
		rc.Admin = true
	}
	return nil
}

// resolveWallet loads the wallet record named in the route and attaches it,
// with its underlying wallet handle, to the request context. A missing or
// removed wallet short-circuits with 404 before any auth-specific stage.
func (h *Handler) resolveWallet(r *http.Request, rc *RequestContext, policy RoutePolicy) error {
	if policy.SkipWalletLoad {
		return nil
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		return nil
	}

	record, wallet, err := h.store.Get(r.Context(), id)
	if err != nil {
		return err
	}
	rc.Record = record
	rc.Wallet = wallet
	return nil
}

func (h *Handler) enforceAdminOnly(_ *http.Request, rc *RequestContext, policy RoutePolicy) error {
	if policy.AdminOnly && !rc.Admin {
		h.countAuthFailure("admin")
		return api.Forbidden("admin access required")
	}
	return nil
}

// authCosigner requires a recognized cosigner token for wallet-scoped routes.
// Admin requests and routes that authenticate differently (join) skip it.
func (h *Handler) authCosigner(_ *http.Request, rc *RequestContext, policy RoutePolicy) error {
	if rc.Admin || policy.SkipCosignerAuth {
		return nil
	}

	token, err := hex.DecodeString(rc.Token)
	if rc.Token == "" || err != nil || rc.Record == nil || !rc.Record.Auth(token) {
		h.countAuthFailure("cosigner")
		return api.Forbidden("auth failure")
	}
	return nil
}

func (h *Handler) countAuthFailure(stage string) {
	if h.metrics != nil {
		h.metrics.AuthFailuresTotal.WithLabelValues(stage).Inc()
	}
}
