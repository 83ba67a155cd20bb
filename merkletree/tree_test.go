package merkletree

import (
	"context"
	"testing"

	"github.com/ccoin/privacypool/field"
)

// referenceRoot recursively builds the root over (leaves ++ zero-pad) the
// way Property 1 specifies, independent of the incremental algorithm under
// test.
func referenceRoot(leaves []field.Scalar, height int) field.Scalar {
	level := make([]field.Scalar, 1<<uint(height))
	copy(level, leaves)
	for i := len(leaves); i < len(level); i++ {
		level[i] = ZeroHash[0]
	}
	for h := 0; h < height; h++ {
		next := make([]field.Scalar, len(level)/2)
		for i := range next {
			next[i] = field.Poseidon2(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func TestInsertMatchesReferenceBuilder(t *testing.T) {
	// A small height keeps the reference builder tractable; the
	// incremental algorithm under test is identical regardless of depth.
	const testHeight = 4

	store := NewInMemoryStore()
	tr, err := NewWithHeight(context.Background(), "ref-root", store, testHeight)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	var leaves []field.Scalar
	for i := 0; i < 6; i++ {
		leaf := field.FromUint64(uint64(1000 + i))
		leaves = append(leaves, leaf)
		_, got, err := tr.Insert(context.Background(), leaf)
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		want := referenceRoot(leaves, testHeight)
		if !got.Equal(want) {
			t.Fatalf("insert %d: root mismatch", i)
		}
	}
}

func TestRootHistoryEviction(t *testing.T) {
	store := NewInMemoryStore()
	tr, err := New(context.Background(), "pool-a", store)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	_, firstRoot, err := tr.Insert(context.Background(), field.FromUint64(1))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !tr.IsKnownRoot(firstRoot) {
		t.Fatalf("root must be known immediately after insert")
	}

	for i := 0; i < HistorySize; i++ {
		if _, _, err := tr.Insert(context.Background(), field.FromUint64(uint64(100+i))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	if tr.IsKnownRoot(firstRoot) {
		t.Fatalf("root should have been evicted after %d subsequent inserts", HistorySize)
	}
}

func TestCapacityBoundary(t *testing.T) {
	store := NewInMemoryStore()
	tr, err := NewWithHeight(context.Background(), "capacity", store, 2)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, _, err := tr.Insert(context.Background(), field.FromUint64(uint64(i))); err != nil {
			t.Fatalf("insert %d should succeed: %v", i, err)
		}
	}

	if _, _, err := tr.Insert(context.Background(), field.FromUint64(99)); err != ErrTreeFull {
		t.Fatalf("fifth insert into a height=2 tree must fail with ErrTreeFull, got %v", err)
	}
	if tr.NextIndex() != 4 {
		t.Fatalf("next_index must remain 4 after the failed insert, got %d", tr.NextIndex())
	}
}
