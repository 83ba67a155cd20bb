package nullifier

import (
	"context"
	"testing"

	"github.com/ccoin/privacypool/field"
)

func TestOneShot(t *testing.T) {
	r := New(NewInMemoryStore())
	n := field.FromUint64(42)

	spent, err := r.IsSpent(context.Background(), n)
	if err != nil {
		t.Fatalf("IsSpent: %v", err)
	}
	if spent {
		t.Fatalf("fresh nullifier must not be spent")
	}

	if err := r.MarkSpent(context.Background(), n, "tx-1"); err != nil {
		t.Fatalf("first MarkSpent must succeed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := r.MarkSpent(context.Background(), n, "tx-1"); err != ErrAlreadySpent {
			t.Fatalf("subsequent MarkSpent call %d must fail with ErrAlreadySpent, got %v", i, err)
		}
	}

	spent, err = r.IsSpent(context.Background(), n)
	if err != nil {
		t.Fatalf("IsSpent: %v", err)
	}
	if !spent {
		t.Fatalf("nullifier must report spent after MarkSpent")
	}
}

func TestDistinctNullifiersIndependent(t *testing.T) {
	r := New(NewInMemoryStore())
	a := field.FromUint64(1)
	b := field.FromUint64(2)

	if err := r.MarkSpent(context.Background(), a, "tx-a"); err != nil {
		t.Fatalf("mark a: %v", err)
	}
	if err := r.MarkSpent(context.Background(), b, "tx-b"); err != nil {
		t.Fatalf("mark b (distinct nullifier) must not be blocked by a: %v", err)
	}
}

func TestAddressOfDeterministic(t *testing.T) {
	n := field.FromUint64(7)
	if AddressOf(n) != AddressOf(n) {
		t.Fatalf("AddressOf must be a pure function of the nullifier value")
	}
	if AddressOf(n) == AddressOf(field.FromUint64(8)) {
		t.Fatalf("distinct nullifiers must not collide (with overwhelming probability)")
	}
}
