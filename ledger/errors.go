/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on sentinels with errors.Is and on structured errors
  with errors.As.

ERROR CATEGORIES:
  1. Store errors       - Address-level persistence outcomes
  2. Validation errors  - Rejected before any state mutation
  3. Conflict errors    - Rejected atomically by create-if-absent
  4. Authorization      - Rejected before mutation
  5. External failures  - The credit sink failed after record creation

USAGE:
  if errors.Is(err, ledger.ErrDuplicateTransaction) {
      // replay; do not retry with the same id
  }

SEE ALSO:
  - store.go: Uses the store sentinels
  - engine.go: Maps store sentinels to operation errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyExists is returned by CreateIfAbsent when the address is
	// occupied. The existing record is untouched.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotFound is returned when reading or mutating an empty address.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification is returned when a store cannot resolve
	// mutate contention and gives up. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	// Initialization is one-time setup, not a reset.
	ErrAlreadyInitialized = errors.New("ledger already initialized")

	// ErrNotInitialized is returned by operations that need GlobalState
	// before Initialize has been called.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrInvalidAmount is returned for a zero payment amount.
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInvalidTransactionID is returned for an empty or over-length
	// transaction id.
	ErrInvalidTransactionID = errors.New("invalid transaction id")

	// ErrDuplicateTransaction is returned when a payment replays a
	// previously used transaction id.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnauthorized is returned when a privileged mutation is attempted
	// by an identity other than the recorded authority.
	ErrUnauthorized = errors.New("unauthorized: only the authority can perform this action")

	// ErrCreditFailed is returned when the external credit sink rejected
	// the reward credit. See CreditError for context.
	ErrCreditFailed = errors.New("credit failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateTransactionError reports a replayed transaction id.
type DuplicateTransactionError struct {
	TransactionID string
	Address       Address
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("duplicate transaction %q at %s", e.TransactionID, e.Address)
}

func (e *DuplicateTransactionError) Unwrap() error {
	return ErrDuplicateTransaction
}

// CreditError reports a failed credit. The transaction record already
// exists when this is returned: retrying the same id fails with
// DuplicateTransaction even though nothing was credited, so reconciliation
// joins transaction records against the sink's credit trail.
type CreditError struct {
	Customer Identity
	Mint     Identity
	Amount   uint64
	Cause    error
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("credit of %d to %s failed: %v", e.Amount, e.Customer, e.Cause)
}

func (e *CreditError) Unwrap() error {
	return ErrCreditFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransactionID)
}

// IsConflict returns true for errors rejected by the create-if-absent
// guard. Retrying with the same input cannot succeed.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyInitialized) ||
		errors.Is(err, ErrDuplicateTransaction)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
