// authority.go - Gate for privileged mutations.
//
// The guard is an identity-equality check. It is only meaningful when the
// presented identity has been cryptographically attested by the transport
// layer (see api/auth.go); the core does not verify signatures.
package ledger

// Guard checks that a caller is the recorded authority for a protected
// record.
type Guard struct{}

// Check reports whether the presented identity is the recorded authority.
// An empty presented identity never passes.
func (Guard) Check(presented, recorded Identity) bool {
	return presented != "" && presented == recorded
}
