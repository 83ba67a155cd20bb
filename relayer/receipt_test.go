package relayer

import (
	"testing"

	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/pool"
)

func TestEncodeDecodeReceiptRoundTrip(t *testing.T) {
	want := &pool.Receipt{
		Event: pool.Event{
			Kind:              pool.EventTransacted,
			PoolID:            "test-pool",
			LeafIndex:         7,
			NewRoot:           field.FromUint64(111),
			InputNullifier1:   field.FromUint64(1),
			InputNullifier2:   field.FromUint64(2),
			OutputCommitment1: field.FromUint64(3),
			OutputCommitment2: field.FromUint64(4),
			ExtAmount:         -500,
			Fee:               10,
		},
		Balance: 9500,
	}

	data := encodeReceipt(want)
	got, err := decodeReceipt(data)
	if err != nil {
		t.Fatalf("decodeReceipt: %v", err)
	}

	if got.Event.Kind != want.Event.Kind || got.Event.PoolID != want.Event.PoolID {
		t.Fatalf("kind/poolID mismatch: %+v", got.Event)
	}
	if got.Event.LeafIndex != want.Event.LeafIndex || got.Balance != want.Balance {
		t.Fatalf("leaf index/balance mismatch: %+v", got)
	}
	if got.Event.ExtAmount != want.Event.ExtAmount || got.Event.Fee != want.Event.Fee {
		t.Fatalf("ext_amount/fee mismatch: %+v", got.Event)
	}
	if !got.Event.NewRoot.Equal(want.Event.NewRoot) {
		t.Fatalf("new root mismatch")
	}
	if !got.Event.InputNullifier1.Equal(want.Event.InputNullifier1) || !got.Event.InputNullifier2.Equal(want.Event.InputNullifier2) {
		t.Fatalf("input nullifier mismatch")
	}
	if !got.Event.OutputCommitment1.Equal(want.Event.OutputCommitment1) || !got.Event.OutputCommitment2.Equal(want.Event.OutputCommitment2) {
		t.Fatalf("output commitment mismatch")
	}
}
