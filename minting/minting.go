/*
Package minting provides a reference CreditSink backed by a RecordStore.

PURPOSE:
  The engine treats crediting a reward as an external effect. This package
  is that effect made concrete: a token mint ledger with per-customer
  balance holders and a running supply record, addressed the same way the
  core addresses its own records (kind "balance" and kind "mint").

KEY CONCEPTS:
  - BalanceHolder: One record per (customer, mint), created on first credit
    and mutated on every subsequent one
  - MintState: One record per mint carrying the total supply
  - CreditEntry: An audit-trail row for every successful credit, used to
    reconcile transaction records against credits that actually landed

CONSERVATION:
  The mint supply equals the sum of all holder balances. Both are only ever
  increased, and always together.

SEE ALSO:
  - ledger/credit.go: The interface this package implements
  - store/sqlite/sqlite.go: The CreditLog persistence
*/
package minting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lypto/reward-engine/ledger"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// BalanceHolder is a customer's balance of a mint's units.
type BalanceHolder struct {
	Customer ledger.Identity `json:"customer"`
	Mint     ledger.Identity `json:"mint"`
	Balance  uint64          `json:"balance"`
	KeySalt  uint8           `json:"key_salt"`
}

// MintState is the running supply record for a mint.
type MintState struct {
	Mint    ledger.Identity `json:"mint"`
	Supply  uint64          `json:"supply"`
	KeySalt uint8           `json:"key_salt"`
}

// CreditEntry is the audit-trail row recorded for every successful credit.
type CreditEntry struct {
	ID        string
	Customer  ledger.Identity
	Mint      ledger.Identity
	Amount    uint64
	CreatedAt time.Time
}

// CreditLog stores credit entries. Append-only.
type CreditLog interface {
	AppendCredit(ctx context.Context, entry CreditEntry) error
	CreditsForCustomer(ctx context.Context, customer ledger.Identity) ([]CreditEntry, error)
}

// =============================================================================
// LEDGER - CreditSink implementation
// =============================================================================

// Ledger mints units into customer balance holders. Implements
// ledger.CreditSink.
type Ledger struct {
	records ledger.RecordStore
	audit   CreditLog // optional
	log     *zap.Logger
}

// NewLedger creates a mint ledger over the given record store. audit may be
// nil; credits then leave no trail beyond the holder and supply records.
func NewLedger(records ledger.RecordStore, audit CreditLog, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{records: records, audit: audit, log: log}
}

// Credit increases the customer's holder balance and the mint supply by
// amount. The holder is created on first use, mirroring an account that is
// initialized if needed at credit time.
func (l *Ledger) Credit(ctx context.Context, customer, mint ledger.Identity, amount uint64) error {
	if customer == "" || mint == "" {
		return fmt.Errorf("credit: customer and mint are required")
	}
	if amount == 0 {
		// A zero reward is a valid outcome of floor math; nothing to move.
		return nil
	}

	if err := l.ensureHolder(ctx, customer, mint); err != nil {
		return err
	}
	if _, err := l.records.Mutate(ctx, ledger.BalanceAddress(customer, mint), func(old []byte) ([]byte, error) {
		var h BalanceHolder
		if err := json.Unmarshal(old, &h); err != nil {
			return nil, err
		}
		h.Balance += amount
		return json.Marshal(h)
	}); err != nil {
		return fmt.Errorf("credit: holder update: %w", err)
	}

	if err := l.ensureMint(ctx, mint); err != nil {
		return err
	}
	if _, err := l.records.Mutate(ctx, ledger.MintStateAddress(mint), func(old []byte) ([]byte, error) {
		var m MintState
		if err := json.Unmarshal(old, &m); err != nil {
			return nil, err
		}
		m.Supply += amount
		return json.Marshal(m)
	}); err != nil {
		return fmt.Errorf("credit: supply update: %w", err)
	}

	if l.audit != nil {
		entry := CreditEntry{
			ID:        uuid.NewString(),
			Customer:  customer,
			Mint:      mint,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}
		if err := l.audit.AppendCredit(ctx, entry); err != nil {
			// The balance moved; a missing trail row is an observability
			// gap, not a failed credit.
			l.log.Warn("credit trail append failed",
				zap.String("customer", string(customer)),
				zap.Uint64("amount", amount),
				zap.Error(err))
		}
	}

	return nil
}

// Balance returns the customer's holder balance, zero if never credited.
func (l *Ledger) Balance(ctx context.Context, customer, mint ledger.Identity) (uint64, error) {
	value, err := l.records.Read(ctx, ledger.BalanceAddress(customer, mint))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var h BalanceHolder
	if err := json.Unmarshal(value, &h); err != nil {
		return 0, fmt.Errorf("balance: decode holder: %w", err)
	}
	return h.Balance, nil
}

// Supply returns the total units minted for a mint, zero if never credited.
func (l *Ledger) Supply(ctx context.Context, mint ledger.Identity) (uint64, error) {
	value, err := l.records.Read(ctx, ledger.MintStateAddress(mint))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var m MintState
	if err := json.Unmarshal(value, &m); err != nil {
		return 0, fmt.Errorf("supply: decode mint state: %w", err)
	}
	return m.Supply, nil
}

func (l *Ledger) ensureHolder(ctx context.Context, customer, mint ledger.Identity) error {
	addr, salt := ledger.DeriveWithSalt(ledger.KindBalance, []byte(customer), []byte(mint))
	value, err := json.Marshal(BalanceHolder{Customer: customer, Mint: mint, KeySalt: salt})
	if err != nil {
		return err
	}
	if err := l.records.CreateIfAbsent(ctx, addr, ledger.KindBalance, value); err != nil && !errors.Is(err, ledger.ErrAlreadyExists) {
		return fmt.Errorf("credit: create holder: %w", err)
	}
	return nil
}

func (l *Ledger) ensureMint(ctx context.Context, mint ledger.Identity) error {
	addr, salt := ledger.DeriveWithSalt(ledger.KindMint, []byte(mint))
	value, err := json.Marshal(MintState{Mint: mint, KeySalt: salt})
	if err != nil {
		return err
	}
	if err := l.records.CreateIfAbsent(ctx, addr, ledger.KindMint, value); err != nil && !errors.Is(err, ledger.ErrAlreadyExists) {
		return fmt.Errorf("credit: create mint state: %w", err)
	}
	return nil
}

// Compile-time check that Ledger implements ledger.CreditSink
var _ ledger.CreditSink = (*Ledger)(nil)
