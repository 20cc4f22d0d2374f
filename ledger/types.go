/*
Package ledger provides the core reward-accrual engine.

PURPOSE:
  This package contains the types and algorithms for recording payment
  events, computing deterministic rewards, and maintaining aggregate
  statistics. Entities are located by derived addresses instead of
  free-form identifiers, and record creation doubles as the replay guard.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: An opaque principal identifier (customer, merchant, authority)
  - Address: A deterministic storage address derived from kind + natural key
  - GlobalState: The singleton aggregate record (authority, mint, counters)
  - TransactionRecord: An immutable per-payment record

DESIGN PRINCIPLES:
  1. Create-once: TransactionRecords are never modified after creation
  2. Derived addressing: Two callers racing on the same transaction id
     collide on the same address; at most one create succeeds
  3. Integer math: Amounts are minor currency units (cents), rewards are
     whole units; no floating point anywhere in the core

USAGE:
  engine := ledger.NewEngine(store, sink)
  state, err := engine.Initialize(ctx, "authority-1", "mint-1")
  rec, err := engine.ProcessPayment(ctx, ledger.Payment{
      Merchant:      "merchant-1",
      Customer:      "customer-1",
      AmountCents:   1000,
      TransactionID: "order-42",
  })

SEE ALSO:
  - keys.go: Address derivation
  - store.go: RecordStore contract
  - engine.go: Operations (Initialize, ProcessPayment, UpdateAuthority)
*/
package ledger

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Identity is an opaque principal identifier. The core never interprets it;
// cryptographic attestation that a caller really is a given identity belongs
// to the transport layer.
type Identity string

// Address is a deterministic storage address, hex-encoded. Produced only by
// Derive; never constructed from user input directly.
type Address string

// =============================================================================
// REWARD MATH
// =============================================================================

// Reward rate: 2% of the transaction amount.
const (
	RewardRateBPS  uint64 = 200 // 200 basis points = 2%
	BPSDenominator uint64 = 10000
)

// MaxTransactionIDLen bounds the caller-supplied uniqueness key.
const MaxTransactionIDLen = 64

// RewardFor computes the reward for a payment amount at the given rate,
// flooring toward zero. amountCents=1000, bps=200 -> 20.
func RewardFor(amountCents, bps uint64) uint64 {
	return amountCents * bps / BPSDenominator
}

// =============================================================================
// GLOBAL STATE - Singleton aggregate record
// =============================================================================

// GlobalState is the singleton record behind the global-state address.
// Created once by Initialize, mutated only by ProcessPayment (counters)
// and UpdateAuthority (authority field). Counters are monotonic.
type GlobalState struct {
	Authority          Identity `json:"authority"`
	Mint               Identity `json:"mint"`
	TotalRewardsMinted uint64   `json:"total_rewards_minted"`
	TotalTransactions  uint64   `json:"total_transactions"`
	KeySalt            uint8    `json:"key_salt"`
}

// =============================================================================
// TRANSACTION RECORD - Immutable per-payment record
// =============================================================================

// TransactionRecord is created exactly once per unique transaction id and
// never mutated or deleted afterward. Its address is derived from the id,
// so a duplicate id collides on the same address and the create fails.
type TransactionRecord struct {
	TransactionID string   `json:"transaction_id"`
	Customer      Identity `json:"customer"`
	Merchant      Identity `json:"merchant"`
	AmountCents   uint64   `json:"amount_cents"`
	RewardUnits   uint64   `json:"reward_units"`
	Timestamp     int64    `json:"timestamp"`
	KeySalt       uint8    `json:"key_salt"`
}

// =============================================================================
// PAYMENT EVENT - Input to ProcessPayment
// =============================================================================

// Payment is a merchant-initiated payment event. Merchant is the attested
// caller; Customer is named freely by the merchant as the reward beneficiary.
type Payment struct {
	Merchant      Identity
	Customer      Identity
	AmountCents   uint64
	TransactionID string
}
