package httpserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosignhq/multisig-gateway/api"
	"github.com/cosignhq/multisig-gateway/credential"
	"github.com/cosignhq/multisig-gateway/msdb"
)

const testAPIKey = "test-api-key"

type testServer struct {
	t          *testing.T
	router     http.Handler
	store      *msdb.Store
	adminToken []byte
	apiKey     string
}

type serverOpts struct {
	walletAuth bool
	noAuth     bool
}

func newTestServer(t *testing.T, opts serverOpts) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := msdb.New("", &chaincfg.RegressionNetParams, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	adminToken := credential.NewAdminToken()
	handler := NewHandler(&HandlerConfig{
		Store:      store,
		Network:    &chaincfg.RegressionNetParams,
		WalletAuth: opts.walletAuth,
		AdminToken: adminToken,
		Log:        logger,
	})

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		MetricsAddr:              "127.0.0.1:0",
		Log:                      logger,
		NoAuth:                   opts.noAuth,
		APIKeyHash:               credential.HashAPIKey(testAPIKey),
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
		ReadTimeout:              time.Second,
		WriteTimeout:             time.Second,
	}, handler)
	require.NoError(t, err)

	return &testServer{
		t:          t,
		router:     srv.getRouter(),
		store:      store,
		adminToken: adminToken,
		apiKey:     testAPIKey,
	}
}

// request performs an HTTP request against the router, encoding body as JSON
// when non-nil and sending the API key unless it is empty.
func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if ts.apiKey != "" {
		req.SetBasicAuth("x", ts.apiKey)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeWallet(t *testing.T, w *httptest.ResponseRecorder) api.WalletResponse {
	t.Helper()
	var resp api.WalletResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder) api.Error {
	t.Helper()
	var envelope api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Err
}

func testXPub(t *testing.T, seedByte byte) string {
	t.Helper()
	seed := bytes.Repeat([]byte{seedByte}, 32)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	xpub, err := master.Neuter()
	require.NoError(t, err)
	return xpub.String()
}

func (ts *testServer) createWallet(id string, m, n int) api.WalletResponse {
	ts.t.Helper()
	w := ts.request(http.MethodPut, "/"+id, api.CreateWalletRequest{
		M: m, N: n, XPub: testXPub(ts.t, 1), CosignerName: "creator",
	})
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	return decodeWallet(ts.t, w)
}

func TestHandleCreate(t *testing.T) {
	ts := newTestServer(t, serverOpts{})

	resp := ts.createWallet("w1", 2, 3)
	assert.Equal(t, "w1", resp.ID)
	assert.Equal(t, 2, resp.M)
	assert.Equal(t, 3, resp.N)
	assert.True(t, resp.Witness)
	assert.False(t, resp.Initialized)
	assert.NotEmpty(t, resp.JoinKey)
	require.Len(t, resp.Cosigners, 1)
	assert.Equal(t, "creator", resp.Cosigners[0].Name)
	assert.NotEmpty(t, resp.Cosigners[0].Token)
}

func TestHandleCreateValidation(t *testing.T) {
	ts := newTestServer(t, serverOpts{})

	cases := []struct {
		name string
		path string
		body api.CreateWalletRequest
	}{
		{"missing xpub", "/w1", api.CreateWalletRequest{M: 2, N: 3}},
		{"bad xpub", "/w1", api.CreateWalletRequest{M: 2, N: 3, XPub: "garbage"}},
		{"body id mismatch", "/w1", api.CreateWalletRequest{ID: "other", M: 2, N: 3, XPub: testXPub(t, 1)}},
		{"m over n", "/w1", api.CreateWalletRequest{M: 3, N: 2, XPub: testXPub(t, 1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.request(http.MethodPut, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, api.ValidationError, decodeErrorEnvelope(t, w).Type)
		})
	}
}

func TestHandleCreateDuplicateID(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	ts.createWallet("w1", 2, 3)

	w := ts.request(http.MethodPut, "/w1", api.CreateWalletRequest{
		M: 2, N: 3, XPub: testXPub(t, 2),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleJoin(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	created := ts.createWallet("w1", 2, 3)

	w := ts.request(http.MethodPost, "/w1/join", api.JoinWalletRequest{
		JoinKey: created.JoinKey, XPub: testXPub(t, 2), CosignerName: "second",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeWallet(t, w)
	assert.False(t, resp.Initialized)
	assert.Empty(t, resp.JoinKey)
	require.Len(t, resp.Cosigners, 2)

	// Only the freshly joined cosigner's token is revealed.
	assert.Empty(t, resp.Cosigners[0].Token)
	assert.NotEmpty(t, resp.Cosigners[1].Token)

	w = ts.request(http.MethodPost, "/w1/join", api.JoinWalletRequest{
		JoinKey: created.JoinKey, XPub: testXPub(t, 3), CosignerName: "third",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeWallet(t, w)
	assert.True(t, resp.Initialized)
	require.Len(t, resp.Cosigners, 3)
	assert.NotEmpty(t, resp.Cosigners[2].Token)
}

func TestHandleJoinFullWallet(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	created := ts.createWallet("w1", 1, 1)

	w := ts.request(http.MethodPost, "/w1/join", api.JoinWalletRequest{
		JoinKey: created.JoinKey, XPub: testXPub(t, 2), CosignerName: "late",
	})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestHandleJoinBadJoinKey(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	ts.createWallet("w1", 2, 3)

	wrongKey := hex.EncodeToString(credential.NewJoinKey())
	for _, joinKey := range []string{wrongKey, "not-hex", ""} {
		w := ts.request(http.MethodPost, "/w1/join", api.JoinWalletRequest{
			JoinKey: joinKey, XPub: testXPub(t, 2), CosignerName: "intruder",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, api.AuthError, decodeErrorEnvelope(t, w).Type)
	}

	// Nothing was appended.
	record, _, err := ts.store.Get(context.Background(), "w1")
	require.NoError(t, err)
	assert.Len(t, record.Cosigners, 1)
}

func TestHandleJoinBadXPubIsInternal(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	created := ts.createWallet("w1", 2, 3)

	w := ts.request(http.MethodPost, "/w1/join", api.JoinWalletRequest{
		JoinKey: created.JoinKey, XPub: "not-an-xpub", CosignerName: "second",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, api.InternalError, decodeErrorEnvelope(t, w).Type)
}

// A join against an unknown wallet reports 404, even when the caller presents
// no credential at all.
func TestHandleJoinUnknownWallet(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: true})

	w := ts.request(http.MethodPost, "/missing/join", api.JoinWalletRequest{
		JoinKey: "feed", XPub: testXPub(t, 2),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, api.NotFoundError, decodeErrorEnvelope(t, w).Type)
}

func TestHandleGet(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	ts.createWallet("w1", 2, 2)

	w := ts.request(http.MethodGet, "/w1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeWallet(t, w)
	assert.Equal(t, "w1", resp.ID)
	assert.Equal(t, "regtest", resp.Network)
	assert.Empty(t, resp.JoinKey)
	require.NotNil(t, resp.Balance)
	assert.Zero(t, resp.Balance.Confirmed)
	assert.Empty(t, resp.ReceiveAddress)
	for _, cosigner := range resp.Cosigners {
		assert.Empty(t, cosigner.Token)
	}

	w = ts.request(http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetReceiveAddressWhenComplete(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	created := ts.createWallet("w1", 2, 2)

	w := ts.request(http.MethodPost, "/w1/join", api.JoinWalletRequest{
		JoinKey: created.JoinKey, XPub: testXPub(t, 2), CosignerName: "second",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.request(http.MethodGet, "/w1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeWallet(t, w)
	assert.True(t, resp.Initialized)
	assert.NotEmpty(t, resp.ReceiveAddress)
}

func TestCosignerAuth(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: true})
	created := ts.createWallet("w1", 2, 3)
	cosignerToken := created.Cosigners[0].Token

	// No token at all.
	w := ts.request(http.MethodGet, "/w1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A token that belongs to no cosigner.
	w = ts.request(http.MethodGet, "/w1?token="+hex.EncodeToString(credential.NewAuthToken()), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The cosigner's own token.
	w = ts.request(http.MethodGet, "/w1?token="+cosignerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The admin token works everywhere.
	w = ts.request(http.MethodGet, "/w1?token="+hex.EncodeToString(ts.adminToken), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListIsAdminOnly(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: true})
	ts.createWallet("w1", 2, 3)

	w := ts.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.request(http.MethodGet, "/?token="+hex.EncodeToString(ts.adminToken), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ListWalletsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Wallets, 1)

	// The listing never reveals secrets.
	assert.Empty(t, resp.Wallets[0].JoinKey)
	for _, cosigner := range resp.Wallets[0].Cosigners {
		assert.Empty(t, cosigner.Token)
	}
}

func TestRemoveIsAdminOnly(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: true})
	created := ts.createWallet("w1", 2, 3)

	// A cosigner token is not enough for remove.
	w := ts.request(http.MethodDelete, "/w1?token="+created.Cosigners[0].Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.request(http.MethodDelete, "/w1?token="+hex.EncodeToString(ts.adminToken), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.RemoveWalletResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	w = ts.request(http.MethodGet, "/w1?token="+hex.EncodeToString(ts.adminToken), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Removing a wallet that does not exist reports 404 before the admin check,
// so a non-admin probe cannot distinguish the two orderings.
func TestRemoveUnknownWallet(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: true})

	w := ts.request(http.MethodDelete, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminTokenInBody(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: true})
	ts.createWallet("w1", 2, 3)

	w := ts.request(http.MethodDelete, "/w1", map[string]string{
		"token": hex.EncodeToString(ts.adminToken),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWalletAuthDisabled(t *testing.T) {
	ts := newTestServer(t, serverOpts{walletAuth: false})
	ts.createWallet("w1", 2, 3)

	// Everything is admin when admin auth is off.
	w := ts.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.request(http.MethodDelete, "/w1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBasicAuthGate(t *testing.T) {
	ts := newTestServer(t, serverOpts{})

	// Missing credentials.
	ts.apiKey = ""
	w := ts.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, api.AuthError, decodeErrorEnvelope(t, w).Type)

	// Wrong key.
	ts.apiKey = "wrong-key"
	w = ts.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ts.apiKey = testAPIKey
	w = ts.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNoAuthSkipsBasicAuth(t *testing.T) {
	ts := newTestServer(t, serverOpts{noAuth: true})
	ts.apiKey = ""

	w := ts.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndDrain(t *testing.T) {
	ts := newTestServer(t, serverOpts{})
	ts.apiKey = ""

	w := ts.request(http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.request(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.request(http.MethodGet, "/drain", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.request(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.request(http.MethodGet, "/undrain", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.request(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
