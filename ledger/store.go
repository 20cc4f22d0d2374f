/*
store.go - Persistence contract for derived-address records

PURPOSE:
  Defines the interface between the engine and the database. The store is
  key-addressed: every record lives at an address produced by Derive, and
  the store never interprets record contents (values are opaque JSON).

CREATE-IS-THE-UNIQUENESS-CHECK:
  CreateIfAbsent collapses "check for duplicate" and "insert" into one
  atomic primitive. There is no Exists + Insert pair to race between:
  of two concurrent creates on the same address, exactly one succeeds and
  the other gets ErrAlreadyExists. This is the replay guard for payments.

ATOMICITY:
  Each operation is atomic with respect to other operations on the same
  address. Unrelated addresses proceed in parallel (single-writer-per-key,
  not single-writer-per-store). Mutate is a read-modify-write whose fn must
  be side-effect-free: an implementation is allowed to retry it on
  contention.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (PRIMARY KEY conflict =
    ErrAlreadyExists, mutate inside a DB transaction)
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - keys.go: Address derivation
  - engine.go: The only consumer of this interface in the core
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// RECORD - Stored unit
// =============================================================================

// Record is a stored value with its addressing metadata. Value is the
// JSON encoding chosen by the caller; the store never decodes it.
type Record struct {
	Address   Address
	Kind      string
	Value     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MutateFunc transforms a record value during an atomic read-modify-write.
// It must be side-effect-free apart from computing the new value: the store
// may call it more than once on contention.
type MutateFunc func(old []byte) ([]byte, error)

// =============================================================================
// RECORD STORE - Interface for record persistence
// =============================================================================

// RecordStore is a key-addressed store with atomic per-address operations.
//
// INVARIANTS:
//   - CreateIfAbsent succeeds at most once per address, ever.
//   - A record made visible by CreateIfAbsent is durable before the call
//     returns.
//   - Mutate never observes a half-applied concurrent mutate.
type RecordStore interface {
	// CreateIfAbsent materializes a record at address. Fails with
	// ErrAlreadyExists if the address is occupied, without touching the
	// existing record.
	CreateIfAbsent(ctx context.Context, address Address, kind string, value []byte) error

	// Mutate atomically replaces the value at address with fn(old).
	// Returns the new value, or ErrNotFound if the address is empty.
	Mutate(ctx context.Context, address Address, fn MutateFunc) ([]byte, error)

	// Read returns a snapshot of the value at address, or ErrNotFound.
	Read(ctx context.Context, address Address) ([]byte, error)

	// ListByKind returns all records of a kind, for operational surfaces
	// (reconciliation, inspection). Order is unspecified.
	ListByKind(ctx context.Context, kind string) ([]Record, error)
}
