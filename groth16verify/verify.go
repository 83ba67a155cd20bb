package groth16verify

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/ccoin/privacypool/field"
)

// Proof is a Groth16 proof over BN254: (A, B, C) in (G1, G2, G1).
type Proof struct {
	A G1
	B G2
	C G1
}

// Verifier holds the fixed verification key for one deployed circuit.
type Verifier struct {
	vk VerifyingKey
}

// New binds a Verifier to vk. The pool loads vk once at startup (see
// DefaultVerifyingKey) and never mutates it afterward: a changed vk means a
// different circuit, which spec.md §9 treats as requiring a new,
// differently-versioned pool.
func New(vk VerifyingKey) *Verifier {
	return &Verifier{vk: vk}
}

// Verify implements spec.md 4.D's four-step check:
//  1. reject proof_a/proof_c at infinity (all-zero coordinate prefix),
//  2. compute vk_x = IC[0] + sum(public_inputs[i] * IC[i+1]),
//  3. check e(A,B)*e(-alpha,beta)*e(-vk_x,gamma)*e(-C,delta) == 1,
//  4. return the pairing result.
func (v *Verifier) Verify(proof Proof, publicInputs [NumPublicInputs]field.Scalar) (bool, error) {
	if isZeroPrefix(proof.A) || isZeroPrefix(proof.C) {
		return false, nil
	}

	a, err := DecodeG1(proof.A)
	if err != nil {
		return false, err
	}
	b, err := DecodeG2(proof.B)
	if err != nil {
		return false, err
	}
	c, err := DecodeG1(proof.C)
	if err != nil {
		return false, err
	}

	vkx := v.vk.IC[0]
	for i, x := range publicInputs {
		term := scalarMul(v.vk.IC[i+1], x)
		vkx.Add(&vkx, &term)
	}

	var negAlpha, negVkx, negC bn254.G1Affine
	negAlpha.Neg(&v.vk.Alpha)
	negVkx.Neg(&vkx)
	negC.Neg(&c)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{a, negAlpha, negVkx, negC},
		[]bn254.G2Affine{b, v.vk.Beta, v.vk.Gamma, v.vk.Delta},
	)
	if err != nil {
		return false, err
	}
	return ok, nil
}
