package pool

import (
	"context"
	"sync"

	"github.com/ccoin/privacypool/field"
)

// VaultStore persists a pool's native-value custody balance plus the
// addressed accounts step 9 of spec.md 4.F pays out of it, generalizing
// internal/economics/treasury.go's ledger-entry style (balance plus a
// per-recipient Allocation) from a DAO treasury to the pool vault and its
// withdrawal recipients / fee recipients.
type VaultStore interface {
	Balance(ctx context.Context, poolID string) (uint64, error)
	SetBalance(ctx context.Context, poolID string, balance uint64) error

	// Credit adds amount to address's balance under poolID. There is no
	// addressed Debit: the only debit step 9 performs is against the
	// vault's own aggregate balance (SetBalance), since the signer side of
	// a deposit is an external party this store never holds a balance for.
	Credit(ctx context.Context, poolID string, address field.Scalar, amount uint64) error
	AccountBalance(ctx context.Context, poolID string, address field.Scalar) (uint64, error)
}

// InMemoryVaultStore is a process-local VaultStore for tests and
// `poolctl --memory`.
type InMemoryVaultStore struct {
	mu       sync.Mutex
	balance  map[string]uint64
	accounts map[string]map[field.Scalar]uint64
}

// NewInMemoryVaultStore creates an empty in-memory vault store.
func NewInMemoryVaultStore() *InMemoryVaultStore {
	return &InMemoryVaultStore{
		balance:  make(map[string]uint64),
		accounts: make(map[string]map[field.Scalar]uint64),
	}
}

// Balance implements VaultStore.
func (s *InMemoryVaultStore) Balance(ctx context.Context, poolID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance[poolID], nil
}

// SetBalance implements VaultStore.
func (s *InMemoryVaultStore) SetBalance(ctx context.Context, poolID string, balance uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance[poolID] = balance
	return nil
}

// Credit implements VaultStore.
func (s *InMemoryVaultStore) Credit(ctx context.Context, poolID string, address field.Scalar, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok := s.accounts[poolID]
	if !ok {
		pool = make(map[field.Scalar]uint64)
		s.accounts[poolID] = pool
	}
	pool[address] += amount
	return nil
}

// AccountBalance implements VaultStore.
func (s *InMemoryVaultStore) AccountBalance(ctx context.Context, poolID string, address field.Scalar) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[poolID][address], nil
}
