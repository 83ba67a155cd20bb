// Package groth16verify binds a fixed, compile-time Groth16 verification
// key to the pool's public-input layout and checks proofs against it via
// direct BN254 curve/pairing operations, generalizing the group-arithmetic
// style of internal/zkp/pedersen.go (ScalarMultiplication/Add/Neg over
// bn254.G1Affine) rather than routing through gnark's circuit-compilation
// and groth16.Verify path, which expects a compiled ConstraintSystem this
// package never builds.
package groth16verify

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"

	"github.com/ccoin/privacypool/field"
)

// NumPublicInputs is n in spec.md 4.D: the circuit exposes exactly 7
// public inputs, so IC has n+1 = 8 entries.
const NumPublicInputs = 7

// ErrInvalidEncoding is returned by the Decode helpers on malformed input.
var ErrInvalidEncoding = errors.New("groth16verify: invalid point encoding")

// G1 is the 64-byte big-endian (X, Y) encoding of a G1 point.
type G1 = [64]byte

// G2 is the 128-byte encoding of a G2 point, coordinates in (c1, c0) order
// per component — the host-precompile convention, not snarkjs's. Ingesting
// a snarkjs verifyingkey.json requires swapping each coordinate's two
// halves before calling DecodeG2.
type G2 = [128]byte

// VerifyingKey is the fixed, per-circuit verification key: alpha in G1,
// beta/gamma/delta in G2, and the IC linear-combination basis in G1.
type VerifyingKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	IC    [NumPublicInputs + 1]bn254.G1Affine
}

// DecodeG1 parses the 64-byte encoding into a curve point, without
// subgroup membership checks (gnark-crypto's Unmarshal already rejects
// points not on the curve).
func DecodeG1(b G1) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if err := p.Unmarshal(b[:]); err != nil {
		return bn254.G1Affine{}, ErrInvalidEncoding
	}
	return p, nil
}

// EncodeG1 serializes a G1 point as 64 bytes, big-endian (X, Y).
func EncodeG1(p bn254.G1Affine) G1 {
	var out G1
	copy(out[:], p.Marshal())
	return out
}

// DecodeG2 parses the 128-byte (c1, c0)-per-coordinate encoding.
func DecodeG2(b G2) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	var xa1, xa0, ya1, ya0 fp.Element
	xa1.SetBytes(b[0:32])
	xa0.SetBytes(b[32:64])
	ya1.SetBytes(b[64:96])
	ya0.SetBytes(b[96:128])
	p.X.A0 = xa0
	p.X.A1 = xa1
	p.Y.A0 = ya0
	p.Y.A1 = ya1
	if !p.IsOnCurve() {
		return bn254.G2Affine{}, ErrInvalidEncoding
	}
	return p, nil
}

// EncodeG2 serializes a G2 point in (c1, c0)-per-coordinate order.
func EncodeG2(p bn254.G2Affine) G2 {
	var out G2
	xa1 := p.X.A1.Bytes()
	xa0 := p.X.A0.Bytes()
	ya1 := p.Y.A1.Bytes()
	ya0 := p.Y.A0.Bytes()
	copy(out[0:32], xa1[:])
	copy(out[32:64], xa0[:])
	copy(out[64:96], ya1[:])
	copy(out[96:128], ya0[:])
	return out
}

// isZeroPrefix reports whether the 32-byte coordinate prefix of a G1
// encoding is all-zero, the all-zero-point-at-infinity convention
// spec.md 4.D step 1 requires rejecting before any pairing work.
func isZeroPrefix(b G1) bool {
	for _, v := range b[:32] {
		if v != 0 {
			return false
		}
	}
	return true
}

// scalarMul wraps field.Scalar's BigInt to drive ScalarMultiplication,
// mirroring pedersen.go's value*G idiom.
func scalarMul(base bn254.G1Affine, s field.Scalar) bn254.G1Affine {
	var out bn254.G1Affine
	out.ScalarMultiplication(&base, s.BigInt())
	return out
}
