package groth16verify

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// DefaultVerifyingKey derives a placeholder VerifyingKey deterministically
// from the BN254 generators. It exists so this package, its tests, and
// poolctl/poold have something concrete to load at startup; a real
// deployment replaces it with the actual trusted-setup ceremony output for
// the withdrawal circuit (loaded from the same verifyingkey.json the
// off-chain prover uses, with G2 coordinates reordered per this package's
// (c1,c0) convention — see key.go's G2 doc comment).
func DefaultVerifyingKey() VerifyingKey {
	_, _, g1Gen, g2Gen := bn254.Generators()

	var vk VerifyingKey
	vk.Alpha.ScalarMultiplication(&g1Gen, big.NewInt(2))
	vk.Beta.ScalarMultiplication(&g2Gen, big.NewInt(3))
	vk.Gamma.ScalarMultiplication(&g2Gen, big.NewInt(5))
	vk.Delta.ScalarMultiplication(&g2Gen, big.NewInt(7))

	for i := range vk.IC {
		vk.IC[i].ScalarMultiplication(&g1Gen, big.NewInt(int64(11+i)))
	}
	return vk
}
