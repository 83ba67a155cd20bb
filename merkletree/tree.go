// Package merkletree implements the pool's append-only, Poseidon-hashed
// commitment tree: a fixed-height incremental tree with a filled-subtree
// cache and a bounded ring of recent roots, generalized from
// internal/zkp/merkle.go's SHA-256 CommitmentTree to Poseidon2 and the
// spec's exact bookkeeping.
package merkletree

import (
	"context"
	"errors"
	"sync"

	"github.com/ccoin/privacypool/field"
)

// Height is the fixed tree depth every production pool uses; capacity is
// 2^Height leaves.
const Height = 26

// HistorySize (K) bounds how many recent roots remain provable.
const HistorySize = 100

// ErrTreeFull is returned by Insert once next_index reaches the tree's
// capacity.
var ErrTreeFull = errors.New("merkletree: tree is full")

// ZeroHash is the precomputed empty-subtree hash table: ZeroHash[0] = 0,
// ZeroHash[l] = Poseidon(ZeroHash[l-1], ZeroHash[l-1]).
var ZeroHash [Height + 1]field.Scalar

func init() {
	ZeroHash[0] = field.Zero()
	for l := 1; l <= Height; l++ {
		ZeroHash[l] = field.Poseidon2(ZeroHash[l-1], ZeroHash[l-1])
	}
}

// Store persists tree state. Implementations: storage.PostgresStore
// (durable) and InMemoryStore (tests).
type Store interface {
	// Load returns the persisted state for a pool, or ok=false if the pool
	// has never been initialized.
	Load(ctx context.Context, poolID string) (state State, ok bool, err error)
	// Save persists the full tree state after a successful Insert.
	Save(ctx context.Context, poolID string, state State) error
}

// State is the tree's persisted shape, mirroring spec.md's tree-state
// account layout (§3, §6).
type State struct {
	NextIndex      uint64
	RootCursor     uint64
	FilledSubtrees [Height]field.Scalar
	RootHistory    [HistorySize]field.Scalar
	// HistoryFilled counts how many of RootHistory's slots have ever been
	// written, so slots that still hold their zero value are never
	// matched by is_known_root.
	HistoryFilled uint64
}

// Tree is one pool's commitment accumulator. Mutating methods (Insert) take
// a context because Store.Save may hit PostgreSQL; the in-process state
// itself is guarded by mu, taken per method call. pool.Executor holds its
// own mutex for the duration of a whole transact, not just the two Inserts
// within it, standing in for the host's write-lock on the tree-state
// account.
type Tree struct {
	mu     sync.Mutex
	poolID string
	store  Store
	state  State
	// height lets tests exercise the capacity-boundary behavior (spec.md
	// §8 scenario 6, "a test tree of height=2") without materializing
	// 2^Height leaves; every production pool uses the fixed Height.
	height int
}

// New loads (or initializes) a production tree (height=Height) for poolID
// against store.
func New(ctx context.Context, poolID string, store Store) (*Tree, error) {
	return newWithHeight(ctx, poolID, store, Height)
}

// NewWithHeight is New, but for a non-production tree depth. Only tests
// should call this.
func NewWithHeight(ctx context.Context, poolID string, store Store, height int) (*Tree, error) {
	if height <= 0 || height > Height {
		return nil, errors.New("merkletree: height out of range")
	}
	return newWithHeight(ctx, poolID, store, height)
}

func newWithHeight(ctx context.Context, poolID string, store Store, height int) (*Tree, error) {
	t := &Tree{poolID: poolID, store: store, height: height}
	state, ok, err := store.Load(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if ok {
		t.state = state
		return t, nil
	}

	var empty State
	for l := 0; l < Height; l++ {
		empty.FilledSubtrees[l] = ZeroHash[l]
	}
	empty.RootHistory[0] = ZeroHash[height]
	empty.HistoryFilled = 1
	t.state = empty
	if err := store.Save(ctx, poolID, t.state); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the most recently written root.
func (t *Tree) Root() field.Scalar {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.RootHistory[t.state.RootCursor]
}

// NextIndex returns the next leaf position an Insert will use.
func (t *Tree) NextIndex() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.NextIndex
}

// HasCapacity reports whether n further Inserts would all succeed,
// letting a caller validate room for a whole batch of leaves (e.g. the
// two outputs of one Transact) before committing to any mutation that
// would be awkward to roll back, such as marking nullifiers spent.
func (t *Tree) HasCapacity(n uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	maxLeaves := uint64(1) << uint(t.height)
	return maxLeaves-t.state.NextIndex >= n
}

// IsKnownRoot reports whether r appears anywhere in the bounded root
// history ring.
func (t *Tree) IsKnownRoot(r field.Scalar) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isKnownRootLocked(r)
}

func (t *Tree) isKnownRootLocked(r field.Scalar) bool {
	limit := t.state.HistoryFilled
	if limit > HistorySize {
		limit = HistorySize
	}
	for i := uint64(0); i < limit; i++ {
		if t.state.RootHistory[i].Equal(r) {
			return true
		}
	}
	return false
}

// Insert appends leaf at next_index using the incremental hashing
// algorithm from spec.md 4.B, advances next_index, and rotates the root
// history. It returns the leaf's index and the new root.
func (t *Tree) Insert(ctx context.Context, leaf field.Scalar) (leafIndex uint64, newRoot field.Scalar, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxLeaves := uint64(1) << uint(t.height)
	if t.state.NextIndex >= maxLeaves {
		return 0, field.Scalar{}, ErrTreeFull
	}

	i := t.state.NextIndex
	current := leaf
	filled := t.state.FilledSubtrees

	for l := 0; l < t.height; l++ {
		if (i>>uint(l))&1 == 0 {
			filled[l] = current
			current = field.Poseidon2(current, ZeroHash[l])
		} else {
			current = field.Poseidon2(filled[l], current)
		}
	}

	next := State{
		NextIndex:      i + 1,
		RootCursor:     (t.state.RootCursor + 1) % HistorySize,
		FilledSubtrees: filled,
		RootHistory:    t.state.RootHistory,
		HistoryFilled:  t.state.HistoryFilled + 1,
	}
	next.RootHistory[next.RootCursor] = current

	if err := t.store.Save(ctx, t.poolID, next); err != nil {
		return 0, field.Scalar{}, err
	}
	t.state = next

	return i, current, nil
}
