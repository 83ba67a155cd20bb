package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ccoin/privacypool/feepolicy"
	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/groth16verify"
	"github.com/ccoin/privacypool/merkletree"
	"github.com/ccoin/privacypool/nullifier"
)

// EventKind names the receipt shapes Dispatch emits: one for initialize and
// one for every transact-routed instruction.
type EventKind string

const (
	EventInitialized EventKind = "initialized"
	EventTransacted  EventKind = "transacted"
)

// Event is the append-only log record a successful Dispatch produces,
// generalizing internal/dag/validation.go's block-accepted event to the
// pool's own state transitions.
type Event struct {
	Kind              EventKind
	PoolID            string
	LeafIndex         uint64
	NewRoot           field.Scalar
	InputNullifier1   field.Scalar
	InputNullifier2   field.Scalar
	OutputCommitment1 field.Scalar
	OutputCommitment2 field.Scalar
	ExtAmount         int64
	Fee               uint64
}

// Receipt is the result of a successful Dispatch.
type Receipt struct {
	Event   Event
	Balance uint64
}

// Executor owns one pool's tree, nullifier registry, verifying key, fee
// and vault state, and serializes every instruction through a single
// mutex so the 10-step Transact transition in spec.md 4.F never
// interleaves with another writer (grounded on
// internal/zkp/transaction.go's ShieldedPool, which serializes
// ProcessTransaction the same way).
type Executor struct {
	mu sync.Mutex

	poolID   string
	tree     *merkletree.Tree
	nullregs *nullifier.Registry
	verifier *groth16verify.Verifier
	vault    VaultStore
	config   ConfigStore
}

// NewExecutor wires together the four subsystems for one pool.
func NewExecutor(poolID string, tree *merkletree.Tree, nullregs *nullifier.Registry, verifier *groth16verify.Verifier, vault VaultStore, config ConfigStore) *Executor {
	return &Executor{
		poolID:   poolID,
		tree:     tree,
		nullregs: nullregs,
		verifier: verifier,
		vault:    vault,
		config:   config,
	}
}

// Dispatch routes an Instruction to its handler. InitializeIx touches
// config and the vault balance only; Deposit/Withdraw/Transact all funnel
// through transact,
// matching spec.md §6's note that deposit/withdraw are thin wrappers
// around the canonical transact entry.
func (e *Executor) Dispatch(ctx context.Context, ix Instruction) (*Receipt, error) {
	switch v := ix.(type) {
	case InitializeIx:
		return e.initialize(ctx, v)
	case DepositIx:
		return e.transact(ctx, v.toTransact())
	case WithdrawIx:
		return e.transact(ctx, v.toTransact())
	case TransactIx:
		return e.transact(ctx, v)
	default:
		return nil, ErrUnknownInstruction
	}
}

// toTransact lifts a DepositIx into the canonical TransactIx shape:
// ext_amount = +amount, both nullifier slots spent on the dummy values the
// off-chain prover chose when it built Proof (a deposit has no real
// inputs to nullify, but the witness still needs two distinct ones),
// output_commitment1 is the deposited note, output_commitment2 is empty.
func (ix DepositIx) toTransact() TransactIx {
	t := TransactIx{
		ProofA:            ix.Proof.A,
		ProofB:            ix.Proof.B,
		ProofC:            ix.Proof.C,
		Root:              ix.Root,
		PublicAmount:      field.FromUint64(ix.Amount),
		InputNullifier1:   ix.DummyNullifier1,
		InputNullifier2:   ix.DummyNullifier2,
		OutputCommitment1: ix.Commitment,
		OutputCommitment2: field.Zero(),
		ExtAmount:         int64(ix.Amount),
		Fee:               0,
	}
	t.ExtDataHash = t.ComputeExtDataHash()
	return t
}

// toTransact lifts a WithdrawIx into the canonical shape: ext_amount is
// negative (value leaving the pool), input_nullifier1 is the real spend,
// input_nullifier2 is the prover-chosen dummy, both output commitments are
// empty (a full withdrawal leaves no change note).
func (ix WithdrawIx) toTransact() TransactIx {
	t := TransactIx{
		ProofA:            ix.ProofA,
		ProofB:            ix.ProofB,
		ProofC:            ix.ProofC,
		Root:              ix.Root,
		PublicAmount:      field.FromInt64(-int64(ix.Amount)),
		InputNullifier1:   ix.NullifierHash,
		InputNullifier2:   ix.DummyNullifier2,
		OutputCommitment1: field.Zero(),
		OutputCommitment2: field.Zero(),
		ExtAmount:         -int64(ix.Amount),
		Fee:               ix.Fee,
		Recipient:         ix.Recipient,
	}
	t.ExtDataHash = t.ComputeExtDataHash()
	return t
}

func (e *Executor) initialize(ctx context.Context, ix InitializeIx) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := GlobalConfig{MaxDepositAmount: ix.MaxDepositAmount}
	if err := e.config.Save(ctx, e.poolID, cfg); err != nil {
		return nil, fmt.Errorf("pool: save config: %w", err)
	}
	if err := e.vault.SetBalance(ctx, e.poolID, 0); err != nil {
		return nil, fmt.Errorf("pool: init vault: %w", err)
	}
	return &Receipt{Event: Event{Kind: EventInitialized, PoolID: e.poolID}}, nil
}

// transact implements spec.md 4.F's 10-step state transition, in the
// exact order spec.md lists them: root, nullifier freshness, ext-data
// binding, fee policy, proof verification, deposit cap, mark nullifiers,
// insert commitments, move value, emit event.
//
// Steps 1-6 are pure validation against the executor's current state and
// never mutate anything. The tree-capacity probe folded into step 6 is
// this executor's own addition (spec.md surfaces a full tree as a fatal
// `TreeFull` failure at step 8 instead): checking it alongside the last
// pure-validation step means steps 7-9 proceed without a rollback path —
// once nullifier freshness and tree capacity are both confirmed under
// e.mu, the only way steps 7-9 can still fail is a storage I/O fault,
// which this executor treats as fatal to the call (the caller retries the
// whole instruction; nothing here has been mutated yet when an I/O fault
// surfaces from MarkSpent or Insert, because mu serializes out every
// other writer).
func (e *Executor) transact(ctx context.Context, ix TransactIx) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok, err := e.config.Load(ctx, e.poolID)
	if err != nil {
		return nil, fmt.Errorf("pool: load config: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("pool: pool %q not initialized", e.poolID)
	}

	// Step 1: root freshness.
	if !e.tree.IsKnownRoot(ix.Root) {
		return nil, ErrUnknownRoot
	}

	// Step 2: nullifiers distinct and unspent. Distinctness is checked
	// before spend status, matching the order spec.md 4.F lists them in:
	// a self-collision is always a malformed proof regardless of whether
	// either nullifier happens to already be on the registry.
	if ix.InputNullifier1.Equal(ix.InputNullifier2) {
		return nil, ErrDuplicateNullifier
	}
	spent1, err := e.nullregs.IsSpent(ctx, ix.InputNullifier1)
	if err != nil {
		return nil, fmt.Errorf("pool: check nullifier1: %w", err)
	}
	spent2, err := e.nullregs.IsSpent(ctx, ix.InputNullifier2)
	if err != nil {
		return nil, fmt.Errorf("pool: check nullifier2: %w", err)
	}
	if spent1 || spent2 {
		return nil, ErrAlreadySpent
	}

	// Step 3: ext_data_hash binding.
	if !ix.ExtDataHash.Equal(ix.ComputeExtDataHash()) {
		return nil, ErrBadExtData
	}

	// Step 4: fee floor.
	if !feepolicy.ValidateFee(ix.ExtAmount, ix.Fee, cfg.Fees) {
		return nil, ErrInsufficientFee
	}

	// Step 5: proof verification.
	ok, err = e.verifier.Verify(groth16verify.Proof{A: ix.ProofA, B: ix.ProofB, C: ix.ProofC}, ix.PublicInputs())
	if err != nil || !ok {
		// A malformed point encoding and a well-formed-but-failing pairing
		// check are the same outcome from the caller's perspective: the
		// proof did not verify.
		return nil, ErrInvalidProof
	}

	// Step 6: deposit cap, plus this executor's own capacity probe for
	// both pending inserts and, for a withdrawal, its vault-balance and
	// fee-versus-amount checks. All of these are validated here, before step 7
	// marks any nullifier spent, so a full tree is rejected during pure
	// validation rather than after an output-commitment insert has
	// already partially committed a transaction with no other failure
	// mode left to roll back.
	if ix.ExtAmount > 0 && uint64(ix.ExtAmount) > cfg.MaxDepositAmount {
		return nil, ErrDepositTooLarge
	}
	if !e.tree.HasCapacity(2) {
		return nil, ErrTreeFull
	}
	balance, err := e.vault.Balance(ctx, e.poolID)
	if err != nil {
		return nil, fmt.Errorf("pool: load vault balance: %w", err)
	}
	if ix.ExtAmount < 0 {
		withdrawn := uint64(-ix.ExtAmount)
		if withdrawn > balance {
			return nil, fmt.Errorf("pool: vault underflow: withdrawing %d against balance %d", withdrawn, balance)
		}
		if ix.Fee > withdrawn {
			return nil, fmt.Errorf("pool: fee %d exceeds withdrawn amount %d", ix.Fee, withdrawn)
		}
	}

	// Step 7: mark both nullifiers spent. Atomic create-or-fail per call;
	// self-collision was already rejected in step 2 so these two calls
	// address two distinct registry slots.
	txRef := fmt.Sprintf("%s:%d", e.poolID, e.tree.NextIndex())
	if err := e.nullregs.MarkSpent(ctx, ix.InputNullifier1, txRef); err != nil {
		if errors.Is(err, nullifier.ErrAlreadySpent) {
			return nil, ErrAlreadySpent
		}
		return nil, fmt.Errorf("pool: mark nullifier1 spent: %w", err)
	}
	if err := e.nullregs.MarkSpent(ctx, ix.InputNullifier2, txRef); err != nil {
		if errors.Is(err, nullifier.ErrAlreadySpent) {
			return nil, ErrAlreadySpent
		}
		return nil, fmt.Errorf("pool: mark nullifier2 spent: %w", err)
	}

	// Step 8: insert both output commitments.
	leafIndex, _, err := e.tree.Insert(ctx, ix.OutputCommitment1)
	if err != nil {
		return nil, fmt.Errorf("pool: insert output_commitment1: %w", err)
	}
	_, newRoot, err := e.tree.Insert(ctx, ix.OutputCommitment2)
	if err != nil {
		return nil, fmt.Errorf("pool: insert output_commitment2: %w", err)
	}

	// Step 9: move value. Per spec.md 4.F this is three distinct
	// movements, not one aggregate balance update:
	//   - ext_amount > 0: ext_amount moves from the signer to the vault.
	//     The signer is an external party this store never holds a
	//     balance for (akin to the host's own token ledger crediting the
	//     vault account outside this program's state), so only the
	//     vault's own balance changes here.
	//   - ext_amount < 0: |ext_amount| moves from the vault to Recipient,
	//     split so Fee reaches Relayer (the fee_recipient address bound
	//     into ext_data_hash) out of that same withdrawal rather than as
	//     an extra debit against the vault — Property 4 (Δvault =
	//     ext_amount) holds either way.
	//   - ext_amount == 0: an internal transfer has no vault leg; Fee (if
	//     any) still reaches Relayer the same way a deposit's fee would.
	// In all cases Δ(vault balance) is exactly ext_amount.
	switch {
	case ix.ExtAmount > 0:
		balance += uint64(ix.ExtAmount)
		if ix.Fee > 0 {
			if err := e.vault.Credit(ctx, e.poolID, ix.Relayer, ix.Fee); err != nil {
				return nil, fmt.Errorf("pool: credit fee recipient: %w", err)
			}
		}
	case ix.ExtAmount < 0:
		withdrawn := uint64(-ix.ExtAmount)
		balance -= withdrawn
		if err := e.vault.Credit(ctx, e.poolID, ix.Recipient, withdrawn-ix.Fee); err != nil {
			return nil, fmt.Errorf("pool: credit recipient: %w", err)
		}
		if ix.Fee > 0 {
			if err := e.vault.Credit(ctx, e.poolID, ix.Relayer, ix.Fee); err != nil {
				return nil, fmt.Errorf("pool: credit fee recipient: %w", err)
			}
		}
	default:
		if ix.Fee > 0 {
			if err := e.vault.Credit(ctx, e.poolID, ix.Relayer, ix.Fee); err != nil {
				return nil, fmt.Errorf("pool: credit fee recipient: %w", err)
			}
		}
	}
	if err := e.vault.SetBalance(ctx, e.poolID, balance); err != nil {
		return nil, fmt.Errorf("pool: save vault balance: %w", err)
	}

	// Step 10: emit the transacted event.
	event := Event{
		Kind:              EventTransacted,
		PoolID:            e.poolID,
		LeafIndex:         leafIndex,
		NewRoot:           newRoot,
		InputNullifier1:   ix.InputNullifier1,
		InputNullifier2:   ix.InputNullifier2,
		OutputCommitment1: ix.OutputCommitment1,
		OutputCommitment2: ix.OutputCommitment2,
		ExtAmount:         ix.ExtAmount,
		Fee:               ix.Fee,
	}
	return &Receipt{Event: event, Balance: balance}, nil
}
