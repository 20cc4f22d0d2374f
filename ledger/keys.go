/*
keys.go - Deterministic address derivation

PURPOSE:
  Maps a logical entity reference (kind + natural key) to a stable storage
  address. Pure function: same inputs produce the same address for every
  caller, forever. This is what lets two concurrent callers racing on the
  same transaction id collide on one address instead of creating two records.

DERIVATION:
  SHA-256 over the kind tag followed by each part, every component
  length-prefixed. Length-prefixing keeps distinct (kind, parts) tuples
  from concatenating to the same byte stream, so derivation is
  collision-resistant across kinds and across part boundaries.

SALT BYTE:
  The last byte of the digest is surfaced as a derivation salt and persisted
  on the record it addresses. It carries no security weight; it lets a record
  be checked against its own address without re-deriving from scratch.

SEE ALSO:
  - store.go: The addresses produced here key the RecordStore
*/
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// =============================================================================
// RECORD KINDS - Domain separation tags
// =============================================================================

const (
	KindGlobalState = "global-state"
	KindTransaction = "transaction"
	KindBalance     = "balance"
	KindMint        = "mint"
)

// =============================================================================
// DERIVATION
// =============================================================================

// Derive computes the storage address for (kind, parts).
func Derive(kind string, parts ...[]byte) Address {
	addr, _ := DeriveWithSalt(kind, parts...)
	return addr
}

// DeriveWithSalt computes the storage address and its salt byte.
func DeriveWithSalt(kind string, parts ...[]byte) (Address, uint8) {
	h := sha256.New()
	writePrefixed(h, []byte(kind))
	for _, p := range parts {
		writePrefixed(h, p)
	}
	sum := h.Sum(nil)
	return Address(hex.EncodeToString(sum)), sum[len(sum)-1]
}

func writePrefixed(h io.Writer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}

// =============================================================================
// WELL-KNOWN ADDRESSES
// =============================================================================

// GlobalStateAddress returns the address of the singleton GlobalState.
func GlobalStateAddress() Address {
	return Derive(KindGlobalState)
}

// TransactionAddress returns the address of the record for a transaction id.
// The caller validates id length before deriving; Derive itself is total.
func TransactionAddress(transactionID string) Address {
	return Derive(KindTransaction, []byte(transactionID))
}

// BalanceAddress returns the address of a customer's balance holder for a
// given mint. Owned by the credit sink, not the core engine.
func BalanceAddress(customer, mint Identity) Address {
	return Derive(KindBalance, []byte(customer), []byte(mint))
}

// MintStateAddress returns the address of the supply record for a mint.
func MintStateAddress(mint Identity) Address {
	return Derive(KindMint, []byte(mint))
}
