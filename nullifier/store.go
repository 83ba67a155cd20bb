package nullifier

import (
	"context"
	"sync"

	"github.com/ccoin/privacypool/field"
)

type record struct {
	nullifier field.Scalar
	txRef     string
}

// InMemoryStore is a process-local Store, grounded on
// internal/zkp.InMemoryNullifierStore but enforcing true one-shot
// create-or-fail semantics (the teacher's AddNullifier map check and write
// are not atomic under concurrent access; this one holds its lock across
// both).
type InMemoryStore struct {
	mu      sync.Mutex
	records map[Address]record
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[Address]record)}
}

// Create implements Store.
func (s *InMemoryStore) Create(ctx context.Context, addr Address, n field.Scalar, txRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[addr]; exists {
		return false, nil
	}
	s.records[addr] = record{nullifier: n, txRef: txRef}
	return true, nil
}

// Exists implements Store.
func (s *InMemoryStore) Exists(ctx context.Context, addr Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.records[addr]
	return exists, nil
}
