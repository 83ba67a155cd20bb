package field

import (
	"math/big"
	"testing"
)

func TestDecodeRejectsModulus(t *testing.T) {
	var b [Size]byte
	mb := modulus.Bytes()
	copy(b[Size-len(mb):], mb)

	if _, err := Decode(b); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange decoding the modulus itself, got %v", err)
	}
}

func TestDecodeAcceptsModulusMinusOne(t *testing.T) {
	less := new(big.Int).Sub(modulus, big.NewInt(1))
	var b [Size]byte
	lb := less.Bytes()
	copy(b[Size-len(lb):], lb)

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("modulus-1 should decode cleanly: %v", err)
	}
	if got.Encode() != b {
		t.Fatalf("round-trip mismatch: got %x want %x", got.Encode(), b)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 2, 1000000, 1 << 40} {
		s := FromUint64(v)
		b := s.Encode()
		back, err := Decode(b)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if !back.Equal(s) {
			t.Fatalf("round trip mismatch for %d", v)
		}
	}
}

func TestFromInt64Negative(t *testing.T) {
	pos := FromInt64(100)
	neg := FromInt64(-100)
	if pos.Equal(neg) {
		t.Fatalf("positive and negative encodings must differ")
	}
	sum := Scalar{}
	sum.inner.Add(&pos.inner, &neg.inner)
	if !sum.IsZero() {
		t.Fatalf("FromInt64(100) + FromInt64(-100) must be zero mod r")
	}
}

func TestPoseidon2Deterministic(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	h1 := Poseidon2(a, b)
	h2 := Poseidon2(a, b)
	if !h1.Equal(h2) {
		t.Fatalf("Poseidon2 must be deterministic")
	}
	if h1.Equal(Poseidon2(b, a)) {
		t.Fatalf("Poseidon2(a,b) must differ from Poseidon2(b,a)")
	}
}

func TestPoseidonNMatchesPoseidon2ForPairs(t *testing.T) {
	a := FromUint64(7)
	b := FromUint64(9)
	if !Poseidon2(a, b).Equal(PoseidonN(a, b)) {
		t.Fatalf("Poseidon2 must agree with PoseidonN for two inputs")
	}
}
