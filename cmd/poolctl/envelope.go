package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/groth16verify"
	"github.com/ccoin/privacypool/pool"
)

// envelope is the on-disk JSON shape an off-chain prover writes: every
// proof point and field element as a hex string, decoded here into the
// strict binary types pool.Instruction implementations expect. poolctl
// never runs a prover itself — it only ingests what one already produced.
type envelope struct {
	ProofA string `json:"proof_a"`
	ProofB string `json:"proof_b"`
	ProofC string `json:"proof_c"`

	Root              string `json:"root"`
	Commitment        string `json:"commitment"`
	NullifierHash     string `json:"nullifier_hash"`
	DummyNullifier1   string `json:"dummy_nullifier_1"`
	DummyNullifier2   string `json:"dummy_nullifier_2"`
	InputNullifier1   string `json:"input_nullifier_1"`
	InputNullifier2   string `json:"input_nullifier_2"`
	OutputCommitment1 string `json:"output_commitment_1"`
	OutputCommitment2 string `json:"output_commitment_2"`
	Recipient         string `json:"recipient"`
	Relayer           string `json:"relayer"`
	Memo              string `json:"memo"`

	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	ExtAmount int64  `json:"ext_amount"`
}

func readEnvelope(path string) (envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return envelope{}, err
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	return e, nil
}

func decodeScalar(hexStr string) (field.Scalar, error) {
	if hexStr == "" {
		return field.Zero(), nil
	}
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return field.Scalar{}, fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != field.Size {
		return field.Scalar{}, fmt.Errorf("expected %d bytes, got %d", field.Size, len(raw))
	}
	var b [field.Size]byte
	copy(b[:], raw)
	return field.Decode(b)
}

func decodeG1(hexStr string) (groth16verify.G1, error) {
	var out groth16verify.G1
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func decodeG2(hexStr string) (groth16verify.G2, error) {
	var out groth16verify.G2
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func readDepositEnvelope(path string) (pool.DepositIx, error) {
	e, err := readEnvelope(path)
	if err != nil {
		return pool.DepositIx{}, err
	}
	a, err := decodeG1(e.ProofA)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("proof_a: %w", err)
	}
	b, err := decodeG2(e.ProofB)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("proof_b: %w", err)
	}
	c, err := decodeG1(e.ProofC)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("proof_c: %w", err)
	}
	root, err := decodeScalar(e.Root)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("root: %w", err)
	}
	commitment, err := decodeScalar(e.Commitment)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("commitment: %w", err)
	}
	n1, err := decodeScalar(e.DummyNullifier1)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("dummy_nullifier_1: %w", err)
	}
	n2, err := decodeScalar(e.DummyNullifier2)
	if err != nil {
		return pool.DepositIx{}, fmt.Errorf("dummy_nullifier_2: %w", err)
	}
	return pool.DepositIx{
		Proof:           groth16verify.Proof{A: a, B: b, C: c},
		Root:            root,
		Commitment:      commitment,
		DummyNullifier1: n1,
		DummyNullifier2: n2,
		Amount:          e.Amount,
	}, nil
}

func readWithdrawEnvelope(path string) (pool.WithdrawIx, error) {
	e, err := readEnvelope(path)
	if err != nil {
		return pool.WithdrawIx{}, err
	}
	a, err := decodeG1(e.ProofA)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("proof_a: %w", err)
	}
	b, err := decodeG2(e.ProofB)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("proof_b: %w", err)
	}
	c, err := decodeG1(e.ProofC)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("proof_c: %w", err)
	}
	root, err := decodeScalar(e.Root)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("root: %w", err)
	}
	nullifierHash, err := decodeScalar(e.NullifierHash)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("nullifier_hash: %w", err)
	}
	dummy, err := decodeScalar(e.DummyNullifier2)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("dummy_nullifier_2: %w", err)
	}
	recipient, err := decodeScalar(e.Recipient)
	if err != nil {
		return pool.WithdrawIx{}, fmt.Errorf("recipient: %w", err)
	}
	return pool.WithdrawIx{
		ProofA:          a,
		ProofB:          b,
		ProofC:          c,
		Root:            root,
		NullifierHash:   nullifierHash,
		DummyNullifier2: dummy,
		Recipient:       recipient,
		Amount:          e.Amount,
		Fee:             e.Fee,
	}, nil
}

func readTransactEnvelope(path string) (pool.TransactIx, error) {
	e, err := readEnvelope(path)
	if err != nil {
		return pool.TransactIx{}, err
	}
	a, err := decodeG1(e.ProofA)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("proof_a: %w", err)
	}
	b, err := decodeG2(e.ProofB)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("proof_b: %w", err)
	}
	c, err := decodeG1(e.ProofC)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("proof_c: %w", err)
	}

	root, err := decodeScalar(e.Root)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("root: %w", err)
	}
	n1, err := decodeScalar(e.InputNullifier1)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("input_nullifier_1: %w", err)
	}
	n2, err := decodeScalar(e.InputNullifier2)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("input_nullifier_2: %w", err)
	}
	oc1, err := decodeScalar(e.OutputCommitment1)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("output_commitment_1: %w", err)
	}
	oc2, err := decodeScalar(e.OutputCommitment2)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("output_commitment_2: %w", err)
	}
	recipient, err := decodeScalar(e.Recipient)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("recipient: %w", err)
	}
	relayer, err := decodeScalar(e.Relayer)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("relayer: %w", err)
	}
	memo, err := decodeScalar(e.Memo)
	if err != nil {
		return pool.TransactIx{}, fmt.Errorf("memo: %w", err)
	}

	ix := pool.TransactIx{
		ProofA:            a,
		ProofB:            b,
		ProofC:            c,
		Root:              root,
		PublicAmount:      field.FromInt64(e.ExtAmount),
		InputNullifier1:   n1,
		InputNullifier2:   n2,
		OutputCommitment1: oc1,
		OutputCommitment2: oc2,
		ExtAmount:         e.ExtAmount,
		Fee:               e.Fee,
		Recipient:         recipient,
		Relayer:           relayer,
		Memo:              memo,
	}
	ix.ExtDataHash = ix.ComputeExtDataHash()
	return ix, nil
}
