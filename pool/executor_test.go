package pool

import (
	"context"
	"testing"

	"github.com/ccoin/privacypool/feepolicy"
	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/groth16verify"
	"github.com/ccoin/privacypool/merkletree"
	"github.com/ccoin/privacypool/nullifier"
)

const testPoolID = "test-pool"

func newTestExecutor(t *testing.T) (*Executor, groth16verify.VerifyingKey) {
	t.Helper()
	ctx := context.Background()

	tree, err := merkletree.New(ctx, testPoolID, merkletree.NewInMemoryStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	nullregs := nullifier.New(nullifier.NewInMemoryStore())
	vk := groth16verify.DefaultVerifyingKey()
	verifier := groth16verify.New(vk)
	vault := NewInMemoryVaultStore()
	config := NewInMemoryConfigStore()

	exec := NewExecutor(testPoolID, tree, nullregs, verifier, vault, config)
	if _, err := exec.Dispatch(ctx, InitializeIx{MaxDepositAmount: 1_000_000_000}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return exec, vk
}

// buildTransact produces a TransactIx whose proof verifies against vk for
// its own public inputs, using groth16verify.ProveForTesting (vk here is
// always DefaultVerifyingKey's gamma=5/delta=7 construction).
func buildTransact(root field.Scalar, extAmount int64, fee uint64, nullifier1, nullifier2, out1, out2 field.Scalar, vk groth16verify.VerifyingKey) (TransactIx, error) {
	ix := TransactIx{
		Root:              root,
		PublicAmount:      field.FromInt64(extAmount),
		InputNullifier1:   nullifier1,
		InputNullifier2:   nullifier2,
		OutputCommitment1: out1,
		OutputCommitment2: out2,
		ExtAmount:         extAmount,
		Fee:               fee,
	}
	ix.ExtDataHash = ix.ComputeExtDataHash()

	proof, err := groth16verify.ProveForTesting(vk, ix.PublicInputs(), 5, 7)
	if err != nil {
		return TransactIx{}, err
	}
	ix.ProofA, ix.ProofB, ix.ProofC = proof.A, proof.B, proof.C
	return ix, nil
}

// scenario 1: a fresh deposit succeeds and moves the tree root.
func TestFreshDepositSucceeds(t *testing.T) {
	exec, vk := newTestExecutor(t)
	ctx := context.Background()

	rootBefore := exec.tree.Root()
	ix, err := buildTransact(rootBefore, 1_000_000, 0, field.FromUint64(1), field.FromUint64(2), field.FromUint64(123), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}

	receipt, err := exec.Dispatch(ctx, ix)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if receipt.Balance != 1_000_000 {
		t.Fatalf("expected vault balance 1000000, got %d", receipt.Balance)
	}
	if exec.tree.Root().Equal(rootBefore) {
		t.Fatalf("root must change after a successful transact")
	}
}

// scenario 2: replaying the same nullifier is rejected.
func TestDoubleSpendRejected(t *testing.T) {
	exec, vk := newTestExecutor(t)
	ctx := context.Background()

	n1 := field.FromUint64(999)
	rootBefore := exec.tree.Root()
	ix, err := buildTransact(rootBefore, 1_000_000, 0, n1, field.FromUint64(1000), field.FromUint64(1), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}
	if _, err := exec.Dispatch(ctx, ix); err != nil {
		t.Fatalf("first transact: %v", err)
	}

	rootAfter := exec.tree.Root()
	ix2, err := buildTransact(rootAfter, 1_000_000, 0, n1, field.FromUint64(1001), field.FromUint64(2), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}
	_, err = exec.Dispatch(ctx, ix2)
	if err != ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent, got %v", err)
	}
}

// scenario 3: a root not in the known-root history is rejected.
func TestStaleRootRejected(t *testing.T) {
	exec, vk := newTestExecutor(t)
	ctx := context.Background()

	staleRoot := field.FromUint64(0xDEADBEEF)
	ix, err := buildTransact(staleRoot, 1_000_000, 0, field.FromUint64(1), field.FromUint64(2), field.FromUint64(1), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}

	_, err = exec.Dispatch(ctx, ix)
	if err != ErrUnknownRoot {
		t.Fatalf("expected ErrUnknownRoot, got %v", err)
	}
}

// scenario 4: a withdrawal with a fee below the floor is rejected.
func TestInsufficientFeeRejected(t *testing.T) {
	ctx := context.Background()
	tree, err := merkletree.New(ctx, testPoolID, merkletree.NewInMemoryStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	nullregs := nullifier.New(nullifier.NewInMemoryStore())
	vk := groth16verify.DefaultVerifyingKey()
	verifier := groth16verify.New(vk)
	vault := NewInMemoryVaultStore()
	config := NewInMemoryConfigStore()
	exec := NewExecutor(testPoolID, tree, nullregs, verifier, vault, config)

	cfg := GlobalConfig{
		MaxDepositAmount: 1_000_000_000,
		Fees:             feepolicy.Config{WithdrawalFeeRateBps: 25, FeeErrorMarginBps: 500},
	}
	if err := config.Save(ctx, testPoolID, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if err := vault.SetBalance(ctx, testPoolID, 10_000_000); err != nil {
		t.Fatalf("seed vault: %v", err)
	}

	root := exec.tree.Root()
	ix, err := buildTransact(root, -1_000_000, 2374, field.FromUint64(1), field.FromUint64(2), field.Zero(), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}

	_, err = exec.Dispatch(ctx, ix)
	if err != ErrInsufficientFee {
		t.Fatalf("expected ErrInsufficientFee, got %v", err)
	}
}

// an invalid proof is rejected even when every other field is well formed,
// exercising property 6's delegation through to groth16verify.
func TestInvalidProofRejected(t *testing.T) {
	exec, vk := newTestExecutor(t)
	ctx := context.Background()

	root := exec.tree.Root()
	ix, err := buildTransact(root, 1_000_000, 0, field.FromUint64(5), field.FromUint64(6), field.FromUint64(1), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}
	// Corrupt the proof after it was built for these public inputs.
	ix.ProofC[0] ^= 0xFF

	_, err = exec.Dispatch(ctx, ix)
	if err != ErrInvalidProof {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}

// property 4: a successful transact's vault balance delta always equals
// ext_amount (a fee never moves the vault balance beyond ext_amount).
func TestVaultBalanceTracksExtAmount(t *testing.T) {
	exec, vk := newTestExecutor(t)
	ctx := context.Background()

	root := exec.tree.Root()
	ix, err := buildTransact(root, 500_000, 0, field.FromUint64(11), field.FromUint64(21), field.FromUint64(1), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}
	receipt, err := exec.Dispatch(ctx, ix)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if receipt.Balance != 500_000 {
		t.Fatalf("expected balance 500000 after deposit, got %d", receipt.Balance)
	}

	root2 := exec.tree.Root()
	ix2, err := buildTransact(root2, -200_000, 0, field.FromUint64(12), field.FromUint64(22), field.Zero(), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build transact: %v", err)
	}
	receipt2, err := exec.Dispatch(ctx, ix2)
	if err != nil {
		t.Fatalf("dispatch withdraw: %v", err)
	}
	if receipt2.Balance != 300_000 {
		t.Fatalf("expected balance 300000 after withdrawal, got %d", receipt2.Balance)
	}
}

// step 9 (move value): a withdrawal must pay Recipient the withdrawn amount
// minus the fee, and pay Relayer (the fee_recipient bound into
// ext_data_hash) exactly the fee — not merely shrink one aggregate vault
// balance.
func TestWithdrawalPaysRecipientAndFeeRecipient(t *testing.T) {
	exec, vk := newTestExecutor(t)
	ctx := context.Background()

	// Seed the vault via a fee-free deposit first.
	root := exec.tree.Root()
	deposit, err := buildTransact(root, 1_000_000, 0, field.FromUint64(1), field.FromUint64(2), field.FromUint64(100), field.Zero(), vk)
	if err != nil {
		t.Fatalf("build deposit: %v", err)
	}
	if _, err := exec.Dispatch(ctx, deposit); err != nil {
		t.Fatalf("dispatch deposit: %v", err)
	}

	recipient := field.FromUint64(0xCAFE)
	feeRecipient := field.FromUint64(0xF00D)
	const fee = 2_500

	root2 := exec.tree.Root()
	ix := TransactIx{
		Root:              root2,
		PublicAmount:      field.FromInt64(-300_000),
		InputNullifier1:   field.FromUint64(3),
		InputNullifier2:   field.FromUint64(4),
		OutputCommitment1: field.Zero(),
		OutputCommitment2: field.Zero(),
		ExtAmount:         -300_000,
		Fee:               fee,
		Recipient:         recipient,
		Relayer:           feeRecipient,
	}
	ix.ExtDataHash = ix.ComputeExtDataHash()
	proof, err := groth16verify.ProveForTesting(vk, ix.PublicInputs(), 5, 7)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	ix.ProofA, ix.ProofB, ix.ProofC = proof.A, proof.B, proof.C

	receipt, err := exec.Dispatch(ctx, ix)
	if err != nil {
		t.Fatalf("dispatch withdraw: %v", err)
	}
	if receipt.Balance != 700_000 {
		t.Fatalf("expected vault balance 700000, got %d", receipt.Balance)
	}

	vault := exec.vault.(*InMemoryVaultStore)
	gotRecipient, err := vault.AccountBalance(ctx, testPoolID, recipient)
	if err != nil {
		t.Fatalf("recipient balance: %v", err)
	}
	if gotRecipient != 300_000-fee {
		t.Fatalf("expected recipient balance %d, got %d", 300_000-fee, gotRecipient)
	}
	gotFeeRecipient, err := vault.AccountBalance(ctx, testPoolID, feeRecipient)
	if err != nil {
		t.Fatalf("fee recipient balance: %v", err)
	}
	if gotFeeRecipient != fee {
		t.Fatalf("expected fee recipient balance %d, got %d", fee, gotFeeRecipient)
	}
}
