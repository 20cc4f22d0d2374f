/*
engine.go - Ledger operations

PURPOSE:
  The business logic over the RecordStore: initialize global state, process
  a payment (derive reward, create the transaction record, credit the
  customer, update aggregates), rotate authority, read records.

OPERATION ORDER IN ProcessPayment:
  1. Validate input (no state touched on rejection)
  2. CreateIfAbsent the transaction record (replay guard)
  3. Credit the customer via the sink
  4. Mutate the global counters

  The record is created before the credit, matching the system this ledger
  accounts for. If the credit fails, the record exists but the counters do
  not include it and the sink has no matching trail entry; retrying the
  same id fails DuplicateTransaction. Reconciliation is a join of
  transaction records against the sink's credit entries.

CONCURRENCY:
  Payments with distinct transaction ids conflict only on the global-state
  address, which the store serializes. The address dependency order of any
  single call is fixed (transaction -> global -> external balance), so no
  two calls can deadlock.

SEE ALSO:
  - store.go: RecordStore contract
  - credit.go: External credit boundary
  - authority.go: Privileged-mutation gate
*/
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine implements the ledger operations over a RecordStore and a
// CreditSink.
type Engine struct {
	records RecordStore
	credits CreditSink
	guard   Guard

	rewardBPS uint64
	clock     func() time.Time
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRewardRate overrides the reward rate in basis points. The protocol
// default is RewardRateBPS (200 = 2%).
func WithRewardRate(bps uint64) Option {
	return func(e *Engine) { e.rewardBPS = bps }
}

// WithClock overrides the timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an engine over the given store and credit sink.
func NewEngine(records RecordStore, credits CreditSink, opts ...Option) *Engine {
	e := &Engine{
		records:   records,
		credits:   credits,
		rewardBPS: RewardRateBPS,
		clock:     time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// INITIALIZE
// =============================================================================

// Initialize creates the singleton GlobalState with both counters at zero.
// Calling it twice fails ErrAlreadyInitialized; initialization is one-time
// setup, not a reset.
func (e *Engine) Initialize(ctx context.Context, authority, mint Identity) (GlobalState, error) {
	if authority == "" || mint == "" {
		return GlobalState{}, fmt.Errorf("initialize: authority and mint are required")
	}

	addr, salt := DeriveWithSalt(KindGlobalState)
	state := GlobalState{
		Authority: authority,
		Mint:      mint,
		KeySalt:   salt,
	}

	value, err := json.Marshal(state)
	if err != nil {
		return GlobalState{}, fmt.Errorf("initialize: encode state: %w", err)
	}

	if err := e.records.CreateIfAbsent(ctx, addr, KindGlobalState, value); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return GlobalState{}, ErrAlreadyInitialized
		}
		return GlobalState{}, fmt.Errorf("initialize: %w", err)
	}

	e.log.Info("ledger initialized",
		zap.String("authority", string(authority)),
		zap.String("mint", string(mint)))

	return state, nil
}

// =============================================================================
// PROCESS PAYMENT
// =============================================================================

// ProcessPayment records a payment event, credits the reward to the
// customer, and advances the global counters. At most one call per
// transaction id ever succeeds.
func (e *Engine) ProcessPayment(ctx context.Context, p Payment) (TransactionRecord, error) {
	if p.AmountCents == 0 {
		return TransactionRecord{}, ErrInvalidAmount
	}
	if len(p.TransactionID) == 0 || len(p.TransactionID) > MaxTransactionIDLen {
		return TransactionRecord{}, ErrInvalidTransactionID
	}

	state, err := e.State(ctx)
	if err != nil {
		return TransactionRecord{}, err
	}

	reward := RewardFor(p.AmountCents, e.rewardBPS)

	addr, salt := DeriveWithSalt(KindTransaction, []byte(p.TransactionID))
	rec := TransactionRecord{
		TransactionID: p.TransactionID,
		Customer:      p.Customer,
		Merchant:      p.Merchant,
		AmountCents:   p.AmountCents,
		RewardUnits:   reward,
		Timestamp:     e.clock().Unix(),
		KeySalt:       salt,
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("process payment: encode record: %w", err)
	}

	// Creation is the uniqueness check. Of two concurrent payments with the
	// same id, exactly one create succeeds.
	if err := e.records.CreateIfAbsent(ctx, addr, KindTransaction, value); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return TransactionRecord{}, &DuplicateTransactionError{
				TransactionID: p.TransactionID,
				Address:       addr,
			}
		}
		return TransactionRecord{}, fmt.Errorf("process payment: %w", err)
	}

	if err := e.credits.Credit(ctx, p.Customer, state.Mint, reward); err != nil {
		e.log.Error("credit failed after record creation",
			zap.String("transaction_id", p.TransactionID),
			zap.String("customer", string(p.Customer)),
			zap.Uint64("reward", reward),
			zap.Error(err))
		return TransactionRecord{}, &CreditError{
			Customer: p.Customer,
			Mint:     state.Mint,
			Amount:   reward,
			Cause:    err,
		}
	}

	if _, err := e.records.Mutate(ctx, GlobalStateAddress(), func(old []byte) ([]byte, error) {
		var st GlobalState
		if err := json.Unmarshal(old, &st); err != nil {
			return nil, err
		}
		st.TotalRewardsMinted += reward
		st.TotalTransactions++
		return json.Marshal(st)
	}); err != nil {
		return TransactionRecord{}, fmt.Errorf("process payment: update counters: %w", err)
	}

	e.log.Info("payment processed",
		zap.String("transaction_id", p.TransactionID),
		zap.String("merchant", string(p.Merchant)),
		zap.String("customer", string(p.Customer)),
		zap.Uint64("amount_cents", p.AmountCents),
		zap.Uint64("reward", reward))

	return rec, nil
}

// =============================================================================
// UPDATE AUTHORITY
// =============================================================================

// UpdateAuthority atomically replaces the recorded authority. Only the
// current authority may rotate; counters are untouched.
func (e *Engine) UpdateAuthority(ctx context.Context, caller, newAuthority Identity) (GlobalState, error) {
	if newAuthority == "" {
		return GlobalState{}, fmt.Errorf("update authority: new authority is required")
	}

	state, err := e.State(ctx)
	if err != nil {
		return GlobalState{}, err
	}
	if !e.guard.Check(caller, state.Authority) {
		return GlobalState{}, ErrUnauthorized
	}

	value, err := e.records.Mutate(ctx, GlobalStateAddress(), func(old []byte) ([]byte, error) {
		var st GlobalState
		if err := json.Unmarshal(old, &st); err != nil {
			return nil, err
		}
		// Re-check under the store's atomicity: the authority may have
		// rotated between the read above and this mutate.
		if !e.guard.Check(caller, st.Authority) {
			return nil, ErrUnauthorized
		}
		st.Authority = newAuthority
		return json.Marshal(st)
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return GlobalState{}, ErrUnauthorized
		}
		return GlobalState{}, fmt.Errorf("update authority: %w", err)
	}

	var st GlobalState
	if err := json.Unmarshal(value, &st); err != nil {
		return GlobalState{}, fmt.Errorf("update authority: decode state: %w", err)
	}

	e.log.Info("authority updated",
		zap.String("previous", string(caller)),
		zap.String("new", string(newAuthority)))

	return st, nil
}

// =============================================================================
// READS
// =============================================================================

// GetTransaction reads a transaction record by its derived address.
func (e *Engine) GetTransaction(ctx context.Context, addr Address) (TransactionRecord, error) {
	value, err := e.records.Read(ctx, addr)
	if err != nil {
		return TransactionRecord{}, err
	}
	var rec TransactionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return TransactionRecord{}, fmt.Errorf("get transaction: decode record: %w", err)
	}
	return rec, nil
}

// GetTransactionByID reads a transaction record by its natural key.
func (e *Engine) GetTransactionByID(ctx context.Context, transactionID string) (TransactionRecord, error) {
	if len(transactionID) == 0 || len(transactionID) > MaxTransactionIDLen {
		return TransactionRecord{}, ErrInvalidTransactionID
	}
	return e.GetTransaction(ctx, TransactionAddress(transactionID))
}

// State returns a snapshot of the GlobalState.
func (e *Engine) State(ctx context.Context) (GlobalState, error) {
	value, err := e.records.Read(ctx, GlobalStateAddress())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return GlobalState{}, ErrNotInitialized
		}
		return GlobalState{}, err
	}
	var st GlobalState
	if err := json.Unmarshal(value, &st); err != nil {
		return GlobalState{}, fmt.Errorf("state: decode: %w", err)
	}
	return st, nil
}
