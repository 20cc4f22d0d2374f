/*
handlers.go - HTTP API handlers for the reward ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  POST   /api/initialize               One-time global state creation
  POST   /api/payments                 Record a payment (caller = merchant)
  GET    /api/transactions/{id}        Transaction record by natural key
  GET    /api/state                    Global state snapshot
  GET    /api/customers/{id}/balance   Customer reward balance
  POST   /api/admin/authority          Rotate authority (caller-gated)

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve attested caller (auth middleware)
  3. Call domain logic (engine, minting)
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or wrong caller identity
  - 404: Record not found
  - 409: Conflict (duplicate transaction, already initialized)
  - 502: Credit sink failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Caller attestation
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lypto/reward-engine/ledger"
	"github.com/lypto/reward-engine/minting"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine
	Mint   *minting.Ledger
	Log    *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(engine *ledger.Engine, mint *minting.Ledger, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Engine: engine, Mint: mint, Log: log}
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// Initialize creates the global state.
// POST /api/initialize
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Authority == "" || req.Mint == "" {
		writeError(w, http.StatusBadRequest, "authority and mint are required", nil)
		return
	}

	state, err := h.Engine.Initialize(r.Context(), ledger.Identity(req.Authority), ledger.Identity(req.Mint))
	if err != nil {
		writeDomainError(w, "Failed to initialize", err)
		return
	}

	writeJSON(w, http.StatusCreated, toStateDTO(state))
}

// ProcessPayment records a payment event and credits the reward.
// POST /api/payments
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	merchant := CallerFrom(r.Context())
	if merchant == "" {
		writeError(w, http.StatusUnauthorized, "Merchant identity required", nil)
		return
	}

	var req ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Customer == "" {
		writeError(w, http.StatusBadRequest, "customer is required", nil)
		return
	}

	rec, err := h.Engine.ProcessPayment(r.Context(), ledger.Payment{
		Merchant:      merchant,
		Customer:      ledger.Identity(req.Customer),
		AmountCents:   req.AmountCents,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		writeDomainError(w, "Failed to process payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(rec))
}

// GetTransaction returns a transaction record by its natural key.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Engine.GetTransactionByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(rec))
}

// GetState returns the global state snapshot.
// GET /api/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Engine.State(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get state", err)
		return
	}

	writeJSON(w, http.StatusOK, toStateDTO(state))
}

// GetCustomerBalance returns a customer's reward balance.
// GET /api/customers/{id}/balance
func (h *Handler) GetCustomerBalance(w http.ResponseWriter, r *http.Request) {
	customer := ledger.Identity(chi.URLParam(r, "id"))

	state, err := h.Engine.State(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get state", err)
		return
	}

	balance, err := h.Mint.Balance(r.Context(), customer, state.Mint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		Customer: string(customer),
		Mint:     string(state.Mint),
		Balance:  balance,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// UpdateAuthority rotates the recorded authority.
// POST /api/admin/authority
func (h *Handler) UpdateAuthority(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "Caller identity required", nil)
		return
	}

	var req UpdateAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NewAuthority == "" {
		writeError(w, http.StatusBadRequest, "new_authority is required", nil)
		return
	}

	state, err := h.Engine.UpdateAuthority(r.Context(), caller, ledger.Identity(req.NewAuthority))
	if err != nil {
		writeDomainError(w, "Failed to update authority", err)
		return
	}

	writeJSON(w, http.StatusOK, toStateDTO(state))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto the HTTP status taxonomy.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrNotInitialized):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrCreditFailed):
		writeError(w, http.StatusBadGateway, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
