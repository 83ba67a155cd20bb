// Package storage implements the pool's PostgreSQL persistence layer,
// generalizing internal/storage/postgres.go's pgx/pgxpool usage from
// CCoin's block/transaction tables to the privacy pool's tree, nullifier,
// config, and vault accounts.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccoin/privacypool/feepolicy"
	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/merkletree"
	"github.com/ccoin/privacypool/nullifier"
	"github.com/ccoin/privacypool/pool"
)

// ErrDBConnection mirrors internal/storage/postgres.go's connection-level
// sentinel.
var ErrDBConnection = errors.New("storage: database connection error")

// Config holds the connection parameters for a pool's database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig mirrors internal/storage/postgres.go's DefaultConfig,
// adjusted to this repo's own default database name.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "privacypool",
		Password: "",
		Database: "privacypool",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// PostgresStore holds the connection pool and implements nullifier.Store
// and pool.VaultStore directly (their method names don't collide).
// merkletree.Store and pool.ConfigStore both want a method named
// Load/Save with a different shape, so those are exposed through the
// Trees() and Configs() adapter views instead of on PostgresStore itself,
// against the schema in SPEC_FULL.md §3: tree_state, root_history,
// filled_subtrees, nullifier_records, pool_config, account_balances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Trees returns this store's view as a merkletree.Store.
func (s *PostgresStore) Trees() merkletree.Store { return treeView{s} }

// Configs returns this store's view as a pool.ConfigStore.
func (s *PostgresStore) Configs() pool.ConfigStore { return configView{s} }

type treeView struct{ s *PostgresStore }

func (v treeView) Load(ctx context.Context, poolID string) (merkletree.State, bool, error) {
	return v.s.loadTree(ctx, poolID)
}

func (v treeView) Save(ctx context.Context, poolID string, state merkletree.State) error {
	return v.s.saveTree(ctx, poolID, state)
}

type configView struct{ s *PostgresStore }

func (v configView) Load(ctx context.Context, poolID string) (pool.GlobalConfig, bool, error) {
	return v.s.loadConfig(ctx, poolID)
}

func (v configView) Save(ctx context.Context, poolID string, cfg pool.GlobalConfig) error {
	return v.s.saveConfig(ctx, poolID, cfg)
}

// NewPostgresStore opens (and pings) a connection pool for cfg.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pgxPool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pgxPool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	return &PostgresStore{pool: pgxPool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// ============================================
// merkletree.Store
// ============================================

// loadTree backs treeView.Load.
func (s *PostgresStore) loadTree(ctx context.Context, poolID string) (merkletree.State, bool, error) {
	var state merkletree.State
	var nextIndex, rootCursor uint64

	err := s.pool.QueryRow(ctx,
		`SELECT next_index, root_cursor FROM tree_state WHERE pool_id = $1`,
		poolID,
	).Scan(&nextIndex, &rootCursor)
	if err == pgx.ErrNoRows {
		return merkletree.State{}, false, nil
	}
	if err != nil {
		return merkletree.State{}, false, fmt.Errorf("storage: load tree_state: %w", err)
	}
	state.NextIndex = nextIndex
	state.RootCursor = rootCursor

	rows, err := s.pool.Query(ctx,
		`SELECT level, node FROM filled_subtrees WHERE pool_id = $1`,
		poolID,
	)
	if err != nil {
		return merkletree.State{}, false, fmt.Errorf("storage: load filled_subtrees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var level int
		var node []byte
		if err := rows.Scan(&level, &node); err != nil {
			return merkletree.State{}, false, err
		}
		scalar, err := decodeScalar(node)
		if err != nil {
			return merkletree.State{}, false, err
		}
		if level >= 0 && level < merkletree.Height {
			state.FilledSubtrees[level] = scalar
		}
	}

	rows2, err := s.pool.Query(ctx,
		`SELECT cursor, root FROM root_history WHERE pool_id = $1`,
		poolID,
	)
	if err != nil {
		return merkletree.State{}, false, fmt.Errorf("storage: load root_history: %w", err)
	}
	defer rows2.Close()
	for rows2.Next() {
		var cursor int
		var root []byte
		if err := rows2.Scan(&cursor, &root); err != nil {
			return merkletree.State{}, false, err
		}
		scalar, err := decodeScalar(root)
		if err != nil {
			return merkletree.State{}, false, err
		}
		if cursor >= 0 && cursor < merkletree.HistorySize {
			state.RootHistory[cursor] = scalar
			state.HistoryFilled++
		}
	}

	return state, true, nil
}

// saveTree backs treeView.Save: one upsert into tree_state plus per-level
// upserts into filled_subtrees and root_history, wrapped in a single
// transaction so a crash mid-save never leaves next_index ahead of the
// subtree/root rows it depends on.
func (s *PostgresStore) saveTree(ctx context.Context, poolID string, state merkletree.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin save tree state: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO tree_state (pool_id, next_index, root_cursor)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (pool_id) DO UPDATE SET next_index = $2, root_cursor = $3`,
		poolID, state.NextIndex, state.RootCursor,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert tree_state: %w", err)
	}

	for level := 0; level < merkletree.Height; level++ {
		node := state.FilledSubtrees[level].Encode()
		_, err := tx.Exec(ctx,
			`INSERT INTO filled_subtrees (pool_id, level, node)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (pool_id, level) DO UPDATE SET node = $3`,
			poolID, level, node[:],
		)
		if err != nil {
			return fmt.Errorf("storage: upsert filled_subtrees[%d]: %w", level, err)
		}
	}

	cursor := state.RootCursor
	root := state.RootHistory[cursor].Encode()
	_, err = tx.Exec(ctx,
		`INSERT INTO root_history (pool_id, cursor, root)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (pool_id, cursor) DO UPDATE SET root = $3`,
		poolID, cursor, root[:],
	)
	if err != nil {
		return fmt.Errorf("storage: upsert root_history: %w", err)
	}

	return tx.Commit(ctx)
}

// ============================================
// nullifier.Store
// ============================================

// Create implements nullifier.Store. The one-shot invariant is enforced by
// the database itself via a unique nullifier primary key, not merely by
// application logic: ON CONFLICT DO NOTHING combined with inspecting the
// affected row count is what makes this atomic under concurrent writers.
func (s *PostgresStore) Create(ctx context.Context, addr nullifier.Address, n field.Scalar, txRef string) (bool, error) {
	enc := n.Encode()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO nullifier_records (nullifier, addr, tx_ref)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (nullifier) DO NOTHING`,
		enc[:], addr[:], txRef,
	)
	if err != nil {
		return false, fmt.Errorf("storage: insert nullifier_record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Exists implements nullifier.Store.
func (s *PostgresStore) Exists(ctx context.Context, addr nullifier.Address) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM nullifier_records WHERE addr = $1`,
		addr[:],
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("storage: check nullifier_record: %w", err)
	}
	return count > 0, nil
}

// ============================================
// pool.ConfigStore / pool.VaultStore
// ============================================

// loadConfig backs configView.Load.
func (s *PostgresStore) loadConfig(ctx context.Context, poolID string) (pool.GlobalConfig, bool, error) {
	var cfg pool.GlobalConfig
	var depositRate, withdrawalRate, margin uint16

	err := s.pool.QueryRow(ctx,
		`SELECT t.authority, t.max_deposit_amount,
		        c.deposit_fee_rate, c.withdrawal_fee_rate, c.fee_error_margin
		 FROM tree_state t JOIN pool_config c ON c.pool_id = t.pool_id
		 WHERE t.pool_id = $1`,
		poolID,
	).Scan(&cfg.Authority, &cfg.MaxDepositAmount, &depositRate, &withdrawalRate, &margin)
	if err == pgx.ErrNoRows {
		return pool.GlobalConfig{}, false, nil
	}
	if err != nil {
		return pool.GlobalConfig{}, false, fmt.Errorf("storage: load pool config: %w", err)
	}
	cfg.Fees = feepolicy.Config{
		DepositFeeRateBps:    depositRate,
		WithdrawalFeeRateBps: withdrawalRate,
		FeeErrorMarginBps:    margin,
	}
	return cfg, true, nil
}

// saveConfig backs configView.Save.
func (s *PostgresStore) saveConfig(ctx context.Context, poolID string, cfg pool.GlobalConfig) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin save config: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO tree_state (pool_id, authority, max_deposit_amount)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (pool_id) DO UPDATE SET authority = $2, max_deposit_amount = $3`,
		poolID, cfg.Authority, cfg.MaxDepositAmount,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert tree_state authority: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO pool_config (pool_id, deposit_fee_rate, withdrawal_fee_rate, fee_error_margin)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (pool_id) DO UPDATE SET deposit_fee_rate = $2, withdrawal_fee_rate = $3, fee_error_margin = $4`,
		poolID, cfg.Fees.DepositFeeRateBps, cfg.Fees.WithdrawalFeeRateBps, cfg.Fees.FeeErrorMarginBps,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert pool_config: %w", err)
	}

	return tx.Commit(ctx)
}

// Balance implements pool.VaultStore.
func (s *PostgresStore) Balance(ctx context.Context, poolID string) (uint64, error) {
	var balance uint64
	err := s.pool.QueryRow(ctx,
		`SELECT vault_balance FROM tree_state WHERE pool_id = $1`,
		poolID,
	).Scan(&balance)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: load vault balance: %w", err)
	}
	return balance, nil
}

// SetBalance implements pool.VaultStore.
func (s *PostgresStore) SetBalance(ctx context.Context, poolID string, balance uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_state (pool_id, vault_balance)
		 VALUES ($1, $2)
		 ON CONFLICT (pool_id) DO UPDATE SET vault_balance = $2`,
		poolID, balance,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert vault balance: %w", err)
	}
	return nil
}

// Credit implements pool.VaultStore: it adds amount to the recipient or
// fee_recipient account transact step 9 pays out of the vault, against the
// account_balances table (pool_id, address, balance).
func (s *PostgresStore) Credit(ctx context.Context, poolID string, address field.Scalar, amount uint64) error {
	enc := address.Encode()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_balances (pool_id, address, balance)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (pool_id, address) DO UPDATE SET balance = account_balances.balance + $3`,
		poolID, enc[:], amount,
	)
	if err != nil {
		return fmt.Errorf("storage: credit account: %w", err)
	}
	return nil
}

// AccountBalance implements pool.VaultStore.
func (s *PostgresStore) AccountBalance(ctx context.Context, poolID string, address field.Scalar) (uint64, error) {
	enc := address.Encode()
	var balance uint64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM account_balances WHERE pool_id = $1 AND address = $2`,
		poolID, enc[:],
	).Scan(&balance)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: load account balance: %w", err)
	}
	return balance, nil
}

func decodeScalar(b []byte) (field.Scalar, error) {
	var arr [field.Size]byte
	copy(arr[:], b)
	return field.Decode(arr)
}
