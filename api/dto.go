/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY DISPLAY:
  Amounts travel as integer cents and are additionally rendered as decimal
  dollar strings ("10.00") for display, via shopspring/decimal. The display
  field is derived, never parsed back.

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lypto/reward-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// InitializeRequest creates the singleton global state.
type InitializeRequest struct {
	Authority string `json:"authority"`
	Mint      string `json:"mint"`
}

// ProcessPaymentRequest records a payment. The merchant is the attested
// caller, not a body field.
type ProcessPaymentRequest struct {
	Customer      string `json:"customer"`
	AmountCents   uint64 `json:"amount_cents"`
	TransactionID string `json:"transaction_id"`
}

// UpdateAuthorityRequest rotates the recorded authority.
type UpdateAuthorityRequest struct {
	NewAuthority string `json:"new_authority"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// StateDTO represents the global state in API responses.
type StateDTO struct {
	Authority          string `json:"authority"`
	Mint               string `json:"mint"`
	TotalRewardsMinted uint64 `json:"total_rewards_minted"`
	TotalTransactions  uint64 `json:"total_transactions"`
}

// TransactionDTO represents a transaction record in API responses.
type TransactionDTO struct {
	TransactionID string `json:"transaction_id"`
	Address       string `json:"address"`
	Customer      string `json:"customer"`
	Merchant      string `json:"merchant"`
	AmountCents   uint64 `json:"amount_cents"`
	AmountDisplay string `json:"amount_display"`
	RewardUnits   uint64 `json:"reward_units"`
	Timestamp     string `json:"timestamp"`
}

// BalanceDTO represents a customer's reward balance.
type BalanceDTO struct {
	Customer string `json:"customer"`
	Mint     string `json:"mint"`
	Balance  uint64 `json:"balance"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStateDTO(st ledger.GlobalState) StateDTO {
	return StateDTO{
		Authority:          string(st.Authority),
		Mint:               string(st.Mint),
		TotalRewardsMinted: st.TotalRewardsMinted,
		TotalTransactions:  st.TotalTransactions,
	}
}

func toTransactionDTO(rec ledger.TransactionRecord) TransactionDTO {
	return TransactionDTO{
		TransactionID: rec.TransactionID,
		Address:       string(ledger.TransactionAddress(rec.TransactionID)),
		Customer:      string(rec.Customer),
		Merchant:      string(rec.Merchant),
		AmountCents:   rec.AmountCents,
		AmountDisplay: centsDisplay(rec.AmountCents),
		RewardUnits:   rec.RewardUnits,
		Timestamp:     time.Unix(rec.Timestamp, 0).UTC().Format(time.RFC3339),
	}
}

// centsDisplay renders integer cents as a dollar string: 1000 -> "10.00".
func centsDisplay(cents uint64) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}
