package groth16verify

import (
	"testing"

	"github.com/ccoin/privacypool/field"
)

func TestAllZeroProofARejectsBeforePairing(t *testing.T) {
	v := New(DefaultVerifyingKey())

	var proof Proof // zero value: A, B, C all-zero encodings
	var inputs [NumPublicInputs]field.Scalar

	ok, err := v.Verify(proof, inputs)
	if err != nil {
		t.Fatalf("an all-zero proof_a must be rejected without reaching the pairing call, got error %v", err)
	}
	if ok {
		t.Fatalf("an all-zero proof_a must never verify")
	}
}

func TestEncodeDecodeG1RoundTrip(t *testing.T) {
	vk := DefaultVerifyingKey()
	enc := EncodeG1(vk.Alpha)
	got, err := DecodeG1(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(&vk.Alpha) {
		t.Fatalf("G1 round trip mismatch")
	}
}

func TestEncodeDecodeG2RoundTrip(t *testing.T) {
	vk := DefaultVerifyingKey()
	enc := EncodeG2(vk.Beta)
	got, err := DecodeG2(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(&vk.Beta) {
		t.Fatalf("G2 round trip mismatch")
	}
}

func TestProveForTestingVerifies(t *testing.T) {
	vk := DefaultVerifyingKey()
	v := New(vk)

	var inputs [NumPublicInputs]field.Scalar
	inputs[0] = field.FromUint64(42)
	inputs[3] = field.FromUint64(7)

	proof, err := ProveForTesting(vk, inputs, 5, 7)
	if err != nil {
		t.Fatalf("ProveForTesting: %v", err)
	}

	ok, err := v.Verify(proof, inputs)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("synthetic proof against its own public inputs must verify")
	}

	inputs[0] = field.FromUint64(43)
	ok, err = v.Verify(proof, inputs)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("a proof built for different public inputs must not verify")
	}
}

func TestDecodeG1RejectsGarbage(t *testing.T) {
	var garbage G1
	for i := range garbage {
		garbage[i] = 0xFF
	}
	if _, err := DecodeG1(garbage); err == nil {
		t.Fatalf("an all-0xFF encoding is not a valid curve point and must be rejected")
	}
}
