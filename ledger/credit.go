/*
credit.go - External value-transfer boundary

PURPOSE:
  The engine does not implement balance storage. Crediting a reward to a
  customer is an external effect behind the CreditSink interface, the way
  the original system minted tokens into a customer's token account.

SEE ALSO:
  - minting/: Reference implementation backed by a RecordStore
  - errors.go: CreditError wrapping for sink failures
*/
package ledger

import "context"

// CreditSink increases a customer's balance of the mint's units.
// The engine treats a successful Credit as an atomic, durable balance
// increase; serialization per customer balance is the sink's concern.
type CreditSink interface {
	Credit(ctx context.Context, customer, mint Identity, amount uint64) error
}

// CreditSinkFunc adapts a function to the CreditSink interface.
type CreditSinkFunc func(ctx context.Context, customer, mint Identity, amount uint64) error

func (f CreditSinkFunc) Credit(ctx context.Context, customer, mint Identity, amount uint64) error {
	return f(ctx, customer, mint, amount)
}
