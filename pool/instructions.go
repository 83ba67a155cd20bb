package pool

import (
	"encoding/binary"
	"fmt"

	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/groth16verify"
)

// Kind is the instruction discriminant. Per spec.md §9, dispatch is a
// tagged enum over four variants with a flat discriminant-plus-payload
// layout, matched exhaustively rather than through dynamic dispatch.
type Kind uint8

const (
	KindInitialize Kind = iota
	KindDeposit
	KindWithdraw
	KindTransact
)

// Instruction is implemented by the four stable instruction payloads.
// MarshalBinary/UnmarshalBinary encode the wire layout from spec.md §6:
// little-endian for integer fields, big-endian (via field.Scalar.Encode)
// for field elements.
type Instruction interface {
	Kind() Kind
	MarshalBinary() ([]byte, error)
}

// InitializeIx creates tree-state, vault, and config accounts.
// Authority-only.
type InitializeIx struct {
	MaxDepositAmount uint64
}

func (InitializeIx) Kind() Kind { return KindInitialize }

func (ix InitializeIx) MarshalBinary() ([]byte, error) {
	b := make([]byte, 1+8)
	b[0] = byte(KindInitialize)
	binary.LittleEndian.PutUint64(b[1:], ix.MaxDepositAmount)
	return b, nil
}

// UnmarshalInitializeIx parses the payload following the discriminant
// byte.
func UnmarshalInitializeIx(payload []byte) (InitializeIx, error) {
	if len(payload) != 8 {
		return InitializeIx{}, fmt.Errorf("pool: initialize payload must be 8 bytes, got %d", len(payload))
	}
	return InitializeIx{MaxDepositAmount: binary.LittleEndian.Uint64(payload)}, nil
}

// UnmarshalBinary parses a full wire message (discriminant byte plus
// payload) into its concrete Instruction, dispatching on Kind(data[0]).
// This is the relayer's decode-side counterpart to the four MarshalBinary
// methods above.
func UnmarshalBinary(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("pool: empty instruction")
	}
	kind, payload := Kind(data[0]), data[1:]
	switch kind {
	case KindInitialize:
		return UnmarshalInitializeIx(payload)
	case KindDeposit:
		return UnmarshalDepositIx(payload)
	case KindWithdraw:
		return UnmarshalWithdrawIx(payload)
	case KindTransact:
		return UnmarshalTransactIx(payload)
	default:
		return nil, fmt.Errorf("pool: unrecognized instruction kind %d", kind)
	}
}

// readScalars decodes n consecutive 32-byte field.Scalar encodings
// starting at payload[0], returning the scalars and the remaining tail.
func readScalars(payload []byte, n int) ([]field.Scalar, []byte, error) {
	out := make([]field.Scalar, n)
	for i := 0; i < n; i++ {
		if len(payload) < field.Size {
			return nil, nil, fmt.Errorf("pool: truncated field element")
		}
		var enc [field.Size]byte
		copy(enc[:], payload[:field.Size])
		s, err := field.Decode(enc)
		if err != nil {
			return nil, nil, fmt.Errorf("pool: decode field element: %w", err)
		}
		out[i] = s
		payload = payload[field.Size:]
	}
	return out, payload, nil
}

// DepositIx is the thin legacy wrapper spec.md §6 describes: it transacts
// with ext_amount = +amount, output_commitment1 = commitment,
// output_commitment2 = 0, retained for migration compatibility (see
// Executor.Dispatch / toTransact). DummyNullifier1/2 are the unused input
// slots' nullifiers: the off-chain prover picks these (along with the
// rest of the witness) when it builds Proof, so they travel with the
// instruction rather than being invented at dispatch time.
type DepositIx struct {
	Proof            groth16verify.Proof
	Root             field.Scalar
	Commitment       field.Scalar
	DummyNullifier1  field.Scalar
	DummyNullifier2  field.Scalar
	Amount           uint64
}

func (DepositIx) Kind() Kind { return KindDeposit }

func (ix DepositIx) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 1+64+128+64+32+32+32+32+8)
	b = append(b, byte(KindDeposit))
	b = append(b, ix.Proof.A[:]...)
	b = append(b, ix.Proof.B[:]...)
	b = append(b, ix.Proof.C[:]...)
	for _, s := range []field.Scalar{ix.Root, ix.Commitment, ix.DummyNullifier1, ix.DummyNullifier2} {
		enc := s.Encode()
		b = append(b, enc[:]...)
	}
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], ix.Amount)
	b = append(b, amt[:]...)
	return b, nil
}

// UnmarshalDepositIx parses the payload following the discriminant byte.
func UnmarshalDepositIx(payload []byte) (DepositIx, error) {
	const want = 64 + 128 + 64 + 4*field.Size + 8
	if len(payload) != want {
		return DepositIx{}, fmt.Errorf("pool: deposit payload must be %d bytes, got %d", want, len(payload))
	}
	var ix DepositIx
	copy(ix.Proof.A[:], payload[:64])
	payload = payload[64:]
	copy(ix.Proof.B[:], payload[:128])
	payload = payload[128:]
	copy(ix.Proof.C[:], payload[:64])
	payload = payload[64:]

	scalars, payload, err := readScalars(payload, 4)
	if err != nil {
		return DepositIx{}, err
	}
	ix.Root, ix.Commitment, ix.DummyNullifier1, ix.DummyNullifier2 = scalars[0], scalars[1], scalars[2], scalars[3]
	ix.Amount = binary.LittleEndian.Uint64(payload)
	return ix, nil
}

// WithdrawIx is the legacy single-leg withdrawal. Like DepositIx, it never
// duplicates the 10-step transition: Executor.Dispatch routes it through
// Transact with input_nullifier2 fixed to the prover-supplied dummy value.
type WithdrawIx struct {
	ProofA          groth16verify.G1
	ProofB          groth16verify.G2
	ProofC          groth16verify.G1
	Root            field.Scalar
	NullifierHash   field.Scalar
	DummyNullifier2 field.Scalar
	Recipient       field.Scalar
	Amount          uint64
	Fee             uint64
}

func (WithdrawIx) Kind() Kind { return KindWithdraw }

func (ix WithdrawIx) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 1+64+128+64+32+32+32+32+8+8)
	b = append(b, byte(KindWithdraw))
	b = append(b, ix.ProofA[:]...)
	b = append(b, ix.ProofB[:]...)
	b = append(b, ix.ProofC[:]...)
	for _, s := range []field.Scalar{ix.Root, ix.NullifierHash, ix.DummyNullifier2, ix.Recipient} {
		enc := s.Encode()
		b = append(b, enc[:]...)
	}
	var amt, fee [8]byte
	binary.LittleEndian.PutUint64(amt[:], ix.Amount)
	binary.LittleEndian.PutUint64(fee[:], ix.Fee)
	b = append(b, amt[:]...)
	b = append(b, fee[:]...)
	return b, nil
}

// UnmarshalWithdrawIx parses the payload following the discriminant byte.
func UnmarshalWithdrawIx(payload []byte) (WithdrawIx, error) {
	const want = 64 + 128 + 64 + 4*field.Size + 16
	if len(payload) != want {
		return WithdrawIx{}, fmt.Errorf("pool: withdraw payload must be %d bytes, got %d", want, len(payload))
	}
	var ix WithdrawIx
	copy(ix.ProofA[:], payload[:64])
	payload = payload[64:]
	copy(ix.ProofB[:], payload[:128])
	payload = payload[128:]
	copy(ix.ProofC[:], payload[:64])
	payload = payload[64:]

	scalars, payload, err := readScalars(payload, 4)
	if err != nil {
		return WithdrawIx{}, err
	}
	ix.Root, ix.NullifierHash, ix.DummyNullifier2, ix.Recipient = scalars[0], scalars[1], scalars[2], scalars[3]
	ix.Amount = binary.LittleEndian.Uint64(payload[:8])
	ix.Fee = binary.LittleEndian.Uint64(payload[8:16])
	return ix, nil
}

// TransactIx is the canonical entry point: the byte-concatenation of
// spec.md 4.F's fields in declaration order.
type TransactIx struct {
	ProofA groth16verify.G1
	ProofB groth16verify.G2
	ProofC groth16verify.G1

	Root             field.Scalar
	PublicAmount     field.Scalar
	ExtDataHash      field.Scalar
	InputNullifier1  field.Scalar
	InputNullifier2  field.Scalar
	OutputCommitment1 field.Scalar
	OutputCommitment2 field.Scalar

	ExtAmount int64
	Fee       uint64

	// External-data fields bound by ExtDataHash (spec.md §6): the client
	// must have computed ExtDataHash = Poseidon(Recipient, Relayer, Fee,
	// ExtAmount, Memo) identically; the executor recomputes and checks it.
	Recipient field.Scalar
	Relayer   field.Scalar
	Memo      field.Scalar
}

func (TransactIx) Kind() Kind { return KindTransact }

func (ix TransactIx) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 512)
	b = append(b, byte(KindTransact))
	b = append(b, ix.ProofA[:]...)
	b = append(b, ix.ProofB[:]...)
	b = append(b, ix.ProofC[:]...)
	for _, s := range []field.Scalar{
		ix.Root, ix.PublicAmount, ix.ExtDataHash,
		ix.InputNullifier1, ix.InputNullifier2,
		ix.OutputCommitment1, ix.OutputCommitment2,
	} {
		enc := s.Encode()
		b = append(b, enc[:]...)
	}
	var extAmount, fee [8]byte
	binary.LittleEndian.PutUint64(extAmount[:], uint64(ix.ExtAmount))
	binary.LittleEndian.PutUint64(fee[:], ix.Fee)
	b = append(b, extAmount[:]...)
	b = append(b, fee[:]...)
	for _, s := range []field.Scalar{ix.Recipient, ix.Relayer, ix.Memo} {
		enc := s.Encode()
		b = append(b, enc[:]...)
	}
	return b, nil
}

// UnmarshalTransactIx parses the payload following the discriminant byte.
func UnmarshalTransactIx(payload []byte) (TransactIx, error) {
	const want = 64 + 128 + 64 + 10*field.Size + 16
	if len(payload) != want {
		return TransactIx{}, fmt.Errorf("pool: transact payload must be %d bytes, got %d", want, len(payload))
	}
	var ix TransactIx
	copy(ix.ProofA[:], payload[:64])
	payload = payload[64:]
	copy(ix.ProofB[:], payload[:128])
	payload = payload[128:]
	copy(ix.ProofC[:], payload[:64])
	payload = payload[64:]

	scalars, payload, err := readScalars(payload, 7)
	if err != nil {
		return TransactIx{}, err
	}
	ix.Root, ix.PublicAmount, ix.ExtDataHash = scalars[0], scalars[1], scalars[2]
	ix.InputNullifier1, ix.InputNullifier2 = scalars[3], scalars[4]
	ix.OutputCommitment1, ix.OutputCommitment2 = scalars[5], scalars[6]

	ix.ExtAmount = int64(binary.LittleEndian.Uint64(payload[:8]))
	ix.Fee = binary.LittleEndian.Uint64(payload[8:16])
	payload = payload[16:]

	scalars, payload, err = readScalars(payload, 3)
	if err != nil {
		return TransactIx{}, err
	}
	ix.Recipient, ix.Relayer, ix.Memo = scalars[0], scalars[1], scalars[2]
	return ix, nil
}

// ComputeExtDataHash recomputes ext_data_hash from the external-data
// tuple, per spec.md §6: Poseidon(recipient, relayer, fee, ext_amount,
// memo). fee is lifted with field.FromUint64; the signed ext_amount is
// lifted with field.FromInt64, so a negative value becomes modulus minus
// magnitude.
func (ix TransactIx) ComputeExtDataHash() field.Scalar {
	return field.PoseidonN(
		ix.Recipient,
		ix.Relayer,
		field.FromUint64(ix.Fee),
		field.FromInt64(ix.ExtAmount),
		ix.Memo,
	)
}

// PublicInputs returns the seven public inputs in the exact order
// spec.md §6 requires: [root, public_amount, ext_data_hash,
// input_nullifier1, input_nullifier2, output_commitment1,
// output_commitment2].
func (ix TransactIx) PublicInputs() [groth16verify.NumPublicInputs]field.Scalar {
	return [groth16verify.NumPublicInputs]field.Scalar{
		ix.Root, ix.PublicAmount, ix.ExtDataHash,
		ix.InputNullifier1, ix.InputNullifier2,
		ix.OutputCommitment1, ix.OutputCommitment2,
	}
}
