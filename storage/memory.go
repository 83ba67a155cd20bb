package storage

import (
	"github.com/ccoin/privacypool/merkletree"
	"github.com/ccoin/privacypool/nullifier"
	"github.com/ccoin/privacypool/pool"
)

// MemoryStore bundles the package-level in-memory stores from merkletree,
// nullifier, and pool into the one object `poolctl --memory` wires up in
// place of a PostgresStore.
type MemoryStore struct {
	Trees       *merkletree.InMemoryStore
	Nullifiers  *nullifier.InMemoryStore
	Configs     *pool.InMemoryConfigStore
	Vaults      *pool.InMemoryVaultStore
}

// NewMemoryStore builds an empty set of in-memory stores.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Trees:      merkletree.NewInMemoryStore(),
		Nullifiers: nullifier.NewInMemoryStore(),
		Configs:    pool.NewInMemoryConfigStore(),
		Vaults:     pool.NewInMemoryVaultStore(),
	}
}
