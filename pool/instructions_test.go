package pool

import (
	"testing"

	"github.com/ccoin/privacypool/field"
)

// UnmarshalBinary is the relayer's decode path for a gossiped instruction;
// this checks it inverts MarshalBinary for the canonical TransactIx shape.
func TestTransactIxRoundTrip(t *testing.T) {
	want := TransactIx{
		Root:              field.FromUint64(1),
		PublicAmount:      field.FromUint64(2),
		InputNullifier1:   field.FromUint64(3),
		InputNullifier2:   field.FromUint64(4),
		OutputCommitment1: field.FromUint64(5),
		OutputCommitment2: field.FromUint64(6),
		ExtAmount:         -1234,
		Fee:               7,
		Recipient:         field.FromUint64(8),
		Relayer:           field.FromUint64(9),
		Memo:              field.FromUint64(10),
	}
	want.ExtDataHash = want.ComputeExtDataHash()

	data, err := want.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	got, err := UnmarshalBinary(data)
	if err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	gotIx, ok := got.(TransactIx)
	if !ok {
		t.Fatalf("expected TransactIx, got %T", got)
	}

	if gotIx.ExtAmount != want.ExtAmount || gotIx.Fee != want.Fee {
		t.Fatalf("ext_amount/fee mismatch: %+v", gotIx)
	}
	if !gotIx.Root.Equal(want.Root) || !gotIx.ExtDataHash.Equal(want.ExtDataHash) {
		t.Fatalf("root/ext_data_hash mismatch: %+v", gotIx)
	}
	if !gotIx.InputNullifier1.Equal(want.InputNullifier1) || !gotIx.InputNullifier2.Equal(want.InputNullifier2) {
		t.Fatalf("input nullifier mismatch: %+v", gotIx)
	}
	if !gotIx.OutputCommitment1.Equal(want.OutputCommitment1) || !gotIx.OutputCommitment2.Equal(want.OutputCommitment2) {
		t.Fatalf("output commitment mismatch: %+v", gotIx)
	}
	if !gotIx.Recipient.Equal(want.Recipient) || !gotIx.Relayer.Equal(want.Relayer) || !gotIx.Memo.Equal(want.Memo) {
		t.Fatalf("ext-data mismatch: %+v", gotIx)
	}
}

// UnmarshalBinary must reject an empty message and an unrecognized kind
// byte rather than panicking on an out-of-range index.
func TestUnmarshalBinaryRejectsMalformed(t *testing.T) {
	if _, err := UnmarshalBinary(nil); err == nil {
		t.Fatalf("expected error for empty instruction")
	}
	if _, err := UnmarshalBinary([]byte{0xFF}); err == nil {
		t.Fatalf("expected error for unrecognized instruction kind")
	}
}
