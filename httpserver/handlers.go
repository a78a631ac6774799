package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-chi/chi/v5"

	"github.com/cosignhq/multisig-gateway/api"
	"github.com/cosignhq/multisig-gateway/interfaces"
	"github.com/cosignhq/multisig-gateway/keychain"
	"github.com/cosignhq/multisig-gateway/metrics"
)

// Handler processes wallet coordination requests. Every handler first runs
// the authorization pipeline for its route policy, then performs the
// operation; all failures funnel through the single error renderer.
type Handler struct {
	store      interfaces.WalletStore
	net        *chaincfg.Params
	log        *slog.Logger
	metrics    *metrics.MetricsServer
	walletAuth bool
	adminToken []byte
}

// HandlerConfig carries the Handler's dependencies and auth configuration.
type HandlerConfig struct {
	Store interfaces.WalletStore

	// Network configures which chain extended public keys must belong to.
	Network *chaincfg.Params

	// WalletAuth enables admin token authentication. When disabled, every
	// request is treated as admin (trusted/internal deployments).
	WalletAuth bool

	// AdminToken is the process-wide admin secret, required when WalletAuth
	// is enabled.
	AdminToken []byte

	Log     *slog.Logger
	Metrics *metrics.MetricsServer
}

// NewHandler creates the wallet coordination handler.
func NewHandler(cfg *HandlerConfig) *Handler {
	return &Handler{
		store:      cfg.Store,
		net:        cfg.Network,
		log:        cfg.Log,
		metrics:    cfg.Metrics,
		walletAuth: cfg.WalletAuth,
		adminToken: cfg.AdminToken,
	}
}

// HandleList returns every known wallet summary. Admin only.
//
// GET /
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, err := h.runPipeline(r, policyList)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	records, err := h.store.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := api.ListWalletsResponse{Wallets: make([]api.WalletResponse, 0, len(records))}
	for _, record := range records {
		resp.Wallets = append(resp.Wallets, api.WalletResponseFromRecord(record, api.HideTokens, false))
	}
	h.respondJSON(w, resp)
}

// HandleGet returns the wallet's public info plus its balance and, once the
// wallet is complete, its joint receive address.
//
// GET /{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rc, err := h.runPipeline(r, policyGet)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	balance, err := rc.Wallet.Balance(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	address, err := rc.Wallet.ReceiveAddress(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := api.WalletResponseFromRecord(rc.Record, api.HideTokens, false)
	resp.Network = h.net.Name
	resp.Balance = &api.BalanceView{Confirmed: balance.Confirmed, Unconfirmed: balance.Unconfirmed}
	resp.ReceiveAddress = address
	h.respondJSON(w, resp)
}

// HandleCreate creates a multisig wallet with the caller as its first
// cosigner. The minted join key is revealed only in this response.
//
// PUT /{id}
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	rc, err := h.runPipeline(r, policyCreate)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req api.CreateWalletRequest
	if len(rc.Body) > 0 {
		if err := json.Unmarshal(rc.Body, &req); err != nil {
			h.respondError(w, r, api.Validation("invalid JSON body"))
			return
		}
	}

	id := chi.URLParam(r, "id")
	if req.ID != "" && req.ID != id {
		h.respondError(w, r, api.Validation("body wallet id does not match route"))
		return
	}
	if req.XPub == "" {
		h.respondError(w, r, api.Validation("xpub is required"))
		return
	}
	if _, err := keychain.ParseXPub(req.XPub, h.net); err != nil {
		h.respondError(w, r, api.Validation(err.Error()))
		return
	}

	witness := true
	if req.Witness != nil {
		witness = *req.Witness
	}

	record, err := h.store.Create(r.Context(), interfaces.CreateOptions{
		ID:      id,
		M:       req.M,
		N:       req.N,
		Witness: witness,
		Cosigner: interfaces.Cosigner{
			Name: req.CosignerName,
			Path: req.CosignerPath,
			XPub: req.XPub,
		},
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.WalletsCreated.Inc()
	}

	resp := api.WalletResponseFromRecord(record, 0, true)
	resp.Network = h.net.Name
	h.respondJSON(w, resp)
}

// HandleRemove deletes the wallet and all its coordination state. Admin only.
//
// DELETE /{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	rc, err := h.runPipeline(r, policyRemove)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	removed, err := h.store.Remove(r.Context(), rc.Record.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, api.RemoveWalletResponse{Success: removed})
}

// HandleJoin adds a cosigner to an existing wallet. The caller proves
// eligibility with the wallet's join key, not a cosigner token; the response
// is scoped to reveal only the new cosigner's freshly minted auth token.
//
// POST /{id}/join
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	rc, err := h.runPipeline(r, policyJoin)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req api.JoinWalletRequest
	if err := json.Unmarshal(rc.Body, &req); err != nil {
		h.respondError(w, r, api.Validation("invalid JSON body"))
		return
	}

	// A malformed join key counts as a mismatch; neither case reveals
	// whether the wallet's key differs or the encoding was bad.
	joinKey, err := hex.DecodeString(req.JoinKey)
	if err != nil || !rc.Record.VerifyJoinKey(joinKey) {
		h.countAuthFailure("joinkey")
		h.respondError(w, r, api.Forbidden("invalid joinKey"))
		return
	}

	if req.XPub == "" {
		h.respondError(w, r, api.Validation("xpub is required"))
		return
	}
	if _, err := keychain.ParseXPub(req.XPub, h.net); err != nil {
		// Parse failures here are collaborator errors, rendered as 500.
		h.respondError(w, r, err)
		return
	}

	record, err := h.store.Join(r.Context(), rc.Record.ID, interfaces.Cosigner{
		Name: req.CosignerName,
		Path: req.CosignerPath,
		XPub: req.XPub,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CosignerJoins.Inc()
	}

	cosignerIndex := len(record.Cosigners) - 1
	resp := api.WalletResponseFromRecord(record, cosignerIndex, false)
	resp.Network = h.net.Name
	h.respondJSON(w, resp)
}

func (h *Handler) respondJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := api.AsError(err)
	if apiErr.Code >= http.StatusInternalServerError {
		h.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		h.log.Debug("Request rejected", "method", r.Method, "path", r.URL.Path,
			"status", apiErr.Code, "err", err)
	}
	api.WriteError(w, err)
}
