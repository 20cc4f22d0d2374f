package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lypto/reward-engine/api"
	"github.com/lypto/reward-engine/ledger"
	"github.com/lypto/reward-engine/ledger/store"
	"github.com/lypto/reward-engine/minting"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestServer wires the full stack over the in-memory store, dev-mode
// attestation (X-Caller-ID header).
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	records := store.NewMemory()
	mint := minting.NewLedger(records, nil, nil)
	engine := ledger.NewEngine(records, mint)

	handler := api.NewHandler(engine, mint, nil)
	router := api.NewRouter(handler, api.NewAuthenticator(""))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, caller string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func initializeLedger(t *testing.T, server *httptest.Server) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/api/initialize", "", api.InitializeRequest{
		Authority: "authority-1",
		Mint:      "mint-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// INITIALIZE
// =============================================================================

func TestAPI_Initialize(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/initialize", "", api.InitializeRequest{
		Authority: "authority-1",
		Mint:      "mint-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	state := decode[api.StateDTO](t, resp)
	assert.Equal(t, "authority-1", state.Authority)
	assert.Equal(t, "mint-1", state.Mint)
	assert.Zero(t, state.TotalTransactions)

	// Second initialize conflicts.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/initialize", "", api.InitializeRequest{
		Authority: "authority-2",
		Mint:      "mint-2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Initialize_MissingFields(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/initialize", "", api.InitializeRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAPI_ProcessPayment(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", api.ProcessPaymentRequest{
		Customer:      "customer-1",
		AmountCents:   1000,
		TransactionID: "order-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tx := decode[api.TransactionDTO](t, resp)
	assert.Equal(t, "order-1", tx.TransactionID)
	assert.Equal(t, "merchant-1", tx.Merchant)
	assert.Equal(t, "customer-1", tx.Customer)
	assert.Equal(t, uint64(1000), tx.AmountCents)
	assert.Equal(t, "10.00", tx.AmountDisplay)
	assert.Equal(t, uint64(20), tx.RewardUnits)
	assert.NotEmpty(t, tx.Address)

	// Counters and balance reflect the payment.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[api.StateDTO](t, resp)
	assert.Equal(t, uint64(1), state.TotalTransactions)
	assert.Equal(t, uint64(20), state.TotalRewardsMinted)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/customers/customer-1/balance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, uint64(20), balance.Balance)
}

func TestAPI_ProcessPayment_RequiresCaller(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "", api.ProcessPaymentRequest{
		Customer:      "customer-1",
		AmountCents:   1000,
		TransactionID: "order-1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ProcessPayment_Duplicate(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	req := api.ProcessPaymentRequest{
		Customer:      "customer-1",
		AmountCents:   1000,
		TransactionID: "order-1",
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	errResp := decode[api.ErrorResponse](t, resp)
	assert.Contains(t, errResp.Details, "duplicate transaction")
}

func TestAPI_ProcessPayment_Validation(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	tests := []struct {
		name string
		req  api.ProcessPaymentRequest
	}{
		{"zero amount", api.ProcessPaymentRequest{Customer: "customer-1", AmountCents: 0, TransactionID: "order-1"}},
		{"empty transaction id", api.ProcessPaymentRequest{Customer: "customer-1", AmountCents: 1000}},
		{"missing customer", api.ProcessPaymentRequest{AmountCents: 1000, TransactionID: "order-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAPI_ProcessPayment_NotInitialized(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", api.ProcessPaymentRequest{
		Customer:      "customer-1",
		AmountCents:   1000,
		TransactionID: "order-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// TRANSACTION READS
// =============================================================================

func TestAPI_GetTransaction(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", api.ProcessPaymentRequest{
		Customer:      "customer-1",
		AmountCents:   250,
		TransactionID: "order-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/transactions/order-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tx := decode[api.TransactionDTO](t, resp)
	assert.Equal(t, uint64(250), tx.AmountCents)
	assert.Equal(t, "2.50", tx.AmountDisplay)
	assert.Equal(t, uint64(5), tx.RewardUnits)
}

func TestAPI_GetTransaction_NotFound(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/transactions/no-such-order", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// AUTHORITY
// =============================================================================

func TestAPI_UpdateAuthority(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	// Wrong caller is rejected.
	resp := doJSON(t, http.MethodPost, server.URL+"/api/admin/authority", "intruder", api.UpdateAuthorityRequest{
		NewAuthority: "authority-2",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The recorded authority rotates.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/admin/authority", "authority-1", api.UpdateAuthorityRequest{
		NewAuthority: "authority-2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[api.StateDTO](t, resp)
	assert.Equal(t, "authority-2", state.Authority)

	// The old authority is locked out.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/admin/authority", "authority-1", api.UpdateAuthorityRequest{
		NewAuthority: "authority-3",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =============================================================================
// JWT ATTESTATION
// =============================================================================

func TestAPI_JWTAttestation(t *testing.T) {
	const secret = "test-secret"

	records := store.NewMemory()
	mint := minting.NewLedger(records, nil, nil)
	engine := ledger.NewEngine(records, mint)
	handler := api.NewHandler(engine, mint, nil)
	router := api.NewRouter(handler, api.NewAuthenticator(secret))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/initialize", "", api.InitializeRequest{
		Authority: "authority-1",
		Mint:      "mint-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := json.Marshal(api.ProcessPaymentRequest{
		Customer:      "customer-1",
		AmountCents:   1000,
		TransactionID: "order-1",
	})
	require.NoError(t, err)

	// A signed token attests the merchant identity.
	token, err := api.SignToken(secret, "merchant-1")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/payments", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusCreated, httpResp.StatusCode)

	tx := decode[api.TransactionDTO](t, httpResp)
	assert.Equal(t, "merchant-1", tx.Merchant)

	// A garbage token is rejected outright.
	req, err = http.NewRequest(http.MethodPost, server.URL+"/api/payments", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")

	httpResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	// No token at all: anonymous, so the payment endpoint refuses.
	req, err = http.NewRequest(http.MethodPost, server.URL+"/api/payments", bytes.NewReader(body))
	require.NoError(t, err)

	httpResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	// In JWT mode the dev header is ignored.
	req, err = http.NewRequest(http.MethodPost, server.URL+"/api/payments", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Caller-ID", "merchant-1")

	httpResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)
}

// =============================================================================
// MULTIPLE PAYMENTS
// =============================================================================

func TestAPI_CountersAccumulate(t *testing.T) {
	server := newTestServer(t)
	initializeLedger(t, server)

	amounts := []uint64{1000, 50, 1, 249}
	var wantRewards uint64
	for i, cents := range amounts {
		resp := doJSON(t, http.MethodPost, server.URL+"/api/payments", "merchant-1", api.ProcessPaymentRequest{
			Customer:      "customer-1",
			AmountCents:   cents,
			TransactionID: fmt.Sprintf("order-%d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		wantRewards += ledger.RewardFor(cents, ledger.RewardRateBPS)
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/api/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[api.StateDTO](t, resp)
	assert.Equal(t, uint64(len(amounts)), state.TotalTransactions)
	assert.Equal(t, wantRewards, state.TotalRewardsMinted)
}
