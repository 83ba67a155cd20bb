package pool

import (
	"context"
	"sync"

	"github.com/ccoin/privacypool/feepolicy"
)

// GlobalConfig is spec.md §3's "Global config" singleton, plus the fields
// from "Tree state" that are administrative rather than part of the tree's
// own incremental bookkeeping (authority, max_deposit_amount).
type GlobalConfig struct {
	Authority        string
	MaxDepositAmount uint64
	Fees             feepolicy.Config
}

// ConfigStore persists a pool's GlobalConfig, grounded on
// internal/governance/governance.go's config-struct-plus-store pattern.
type ConfigStore interface {
	Load(ctx context.Context, poolID string) (GlobalConfig, bool, error)
	Save(ctx context.Context, poolID string, cfg GlobalConfig) error
}

// InMemoryConfigStore is a process-local ConfigStore for tests and
// `poolctl --memory`.
type InMemoryConfigStore struct {
	mu   sync.Mutex
	data map[string]GlobalConfig
}

// NewInMemoryConfigStore creates an empty in-memory config store.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{data: make(map[string]GlobalConfig)}
}

// Load implements ConfigStore.
func (s *InMemoryConfigStore) Load(ctx context.Context, poolID string) (GlobalConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.data[poolID]
	return cfg, ok, nil
}

// Save implements ConfigStore.
func (s *InMemoryConfigStore) Save(ctx context.Context, poolID string, cfg GlobalConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[poolID] = cfg
	return nil
}
