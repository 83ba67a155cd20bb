package groth16verify

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ccoin/privacypool/field"
)

var errInvalidDeltaScalar = errors.New("groth16verify: delta scalar has no inverse mod r")

// ProveForTesting synthesizes a (A, B, C) triple that satisfies the
// pairing check against vk for the given publicInputs, without running an
// actual Groth16 prover. It only works against a vk shaped like
// DefaultVerifyingKey (alpha/beta/gamma/delta/IC all small integer
// multiples of the BN254 generators) because it needs to know the
// discrete logs involved; a real deployment's vk comes from a trusted
// setup and has no such structure. It exists purely so tests elsewhere in
// this module can exercise the "proof accepted" path without a circuit.
//
// Algebraically: picking A = alpha, B = beta cancels the first two
// pairing terms (e(alpha,beta)*e(-alpha,beta) = 1), leaving
// e(-vk_x,gamma)*e(-C,delta) = 1, i.e. e(vk_x,gamma) = e(C,delta)^-1.
// With gamma = gammaScalar*G2 and delta = deltaScalar*G2, and vk_x =
// k*G1, this holds for C = c*G1 where c = -k*gammaScalar/deltaScalar mod
// r.
func ProveForTesting(vk VerifyingKey, publicInputs [NumPublicInputs]field.Scalar, gammaScalar, deltaScalar int64) (Proof, error) {
	r := fr.Modulus()

	// k = the discrete log of vk_x base G1, i.e. the same linear
	// combination Verify computes, but tracked as a scalar rather than a
	// curve point: IC[i]'s own discrete log base G1 in
	// DefaultVerifyingKey's construction is 11+i (11, 12, 13, ...).
	k := big.NewInt(11)
	for i, x := range publicInputs {
		term := new(big.Int).Mul(big.NewInt(int64(12+i)), x.BigInt())
		k.Add(k, term)
		k.Mod(k, r)
	}

	gamma := big.NewInt(gammaScalar)
	delta := big.NewInt(deltaScalar)
	deltaInv := new(big.Int).ModInverse(delta, r)
	if deltaInv == nil {
		return Proof{}, errInvalidDeltaScalar
	}

	c := new(big.Int).Mul(k, gamma)
	c.Neg(c)
	c.Mul(c, deltaInv)
	c.Mod(c, r)

	_, _, g1Gen, _ := bn254.Generators()
	var cPoint bn254.G1Affine
	cPoint.ScalarMultiplication(&g1Gen, c)

	return Proof{
		A: EncodeG1(vk.Alpha),
		B: EncodeG2(vk.Beta),
		C: EncodeG1(cPoint),
	}, nil
}
