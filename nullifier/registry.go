// Package nullifier implements the one-shot mark-and-check registry of
// spent nullifiers, generalizing internal/zkp/nullifier.go's NullifierSet
// to the strict semantics spec.md 4.C requires: a second mark_spent for the
// same nullifier must always fail, with no cache-driven race between the
// check and the write.
package nullifier

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/ccoin/privacypool/field"
)

// ErrAlreadySpent is returned by MarkSpent when a record for the nullifier
// already exists.
var ErrAlreadySpent = errors.New("nullifier: already spent")

// domainSeparator tags address derivation so a nullifier value can never
// collide with an address derived for an unrelated purpose in the same
// program.
var domainSeparator = []byte("ccoin-privacypool/nullifier-record")

// Address is the deterministic on-chain location of a nullifier record.
type Address [32]byte

// AddressOf deterministically derives the record address for n from a
// fixed domain separator and n's canonical bytes, so existence at that
// address is a pure function of n.
func AddressOf(n field.Scalar) Address {
	b := n.Encode()
	h := sha256.New()
	h.Write(domainSeparator)
	h.Write(b[:])
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// Store persists nullifier records. Implementations: storage.PostgresStore
// (durable, using ON CONFLICT DO NOTHING to enforce the one-shot
// invariant at the database layer too) and InMemoryStore (tests).
type Store interface {
	// Create inserts a record for addr if and only if none exists yet.
	// It reports ok=false (no error) if a record already existed.
	Create(ctx context.Context, addr Address, nullifier field.Scalar, txRef string) (ok bool, err error)
	// Exists reports whether a record exists at addr.
	Exists(ctx context.Context, addr Address) (bool, error)
}

// Registry is the authoritative spent-nullifier set for one pool. It has no
// client-side Bloom-filter cache: per spec.md §9, such an accelerator is a
// read-only convenience that must never be consulted for correctness, so
// this type simply isn't where one would live.
type Registry struct {
	store Store
}

// New wraps store as a Registry.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// IsSpent reports whether n has a record, i.e. "is_spent" per spec.md 4.C.
func (r *Registry) IsSpent(ctx context.Context, n field.Scalar) (bool, error) {
	return r.store.Exists(ctx, AddressOf(n))
}

// MarkSpent creates the record for n. It is not idempotent: a second call
// for the same nullifier returns ErrAlreadySpent, fatal for the containing
// transact call per spec.md 4.C's failure semantics.
func (r *Registry) MarkSpent(ctx context.Context, n field.Scalar, txRef string) error {
	ok, err := r.store.Create(ctx, AddressOf(n), n, txRef)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadySpent
	}
	return nil
}
