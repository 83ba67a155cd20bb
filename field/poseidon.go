package field

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// ParamsVersion tags the Poseidon round-constant/MDS parameter set this
// package was built against. Any change here is a breaking change to every
// pool already deployed against it, since the off-chain circuit must match
// byte-for-byte.
const ParamsVersion = 1

// Width/rate/capacity and round counts for the t=3 instance of
// gnark-crypto's Poseidon2 permutation. This is Poseidon2, not the original
// Poseidon permutation, so its outputs do not match an original-Poseidon
// t=3 hash such as Light Protocol's or circomlib's. A circuit gadget built on
// this same permutation never leaves the field to hash a multi-element
// input — it absorbs into the rate slots of a width-3 state and permutes —
// so PoseidonN operates on fr.Element values throughout and never routes
// through a byte-stream hasher, which would impose its own padding/framing
// the circuit's gadget doesn't share.
const (
	poseidonWidth         = 3
	poseidonRate          = poseidonWidth - 1
	poseidonFullRounds    = 8
	poseidonPartialRounds = 57
)

func newPoseidonPermutation() *poseidon2.Permutation {
	return poseidon2.NewPermutation(poseidonWidth, poseidonFullRounds, poseidonPartialRounds)
}

// Poseidon2 hashes two field elements into one, the two-to-one compression
// used at every Merkle-tree level.
func Poseidon2(a, b Scalar) Scalar {
	return PoseidonN(a, b)
}

// PoseidonN hashes an arbitrary (non-empty) sequence of field elements into
// one, used for commitments, nullifiers, and the external-data hash.
// Inputs are absorbed poseidonRate-at-a-time into the state's rate slots
// (additively, over whatever the previous permutation call left there),
// permuting between chunks and squeezing the first rate slot as the
// result — the standard sponge construction a circuit's own Poseidon2
// gadget uses for the same t=3 permutation. A fresh permutation is built
// per call rather than shared, since the pool's single-invocation model
// gives no benefit to statefulness and sharing one across goroutines would
// race on its internal state.
func PoseidonN(xs ...Scalar) Scalar {
	if len(xs) == 0 {
		panic("field: PoseidonN requires at least one input")
	}
	perm := newPoseidonPermutation()
	state := make([]fr.Element, poseidonWidth)

	for i := 0; i < len(xs); i += poseidonRate {
		end := i + poseidonRate
		if end > len(xs) {
			end = len(xs)
		}
		for j, x := range xs[i:end] {
			state[1+j].Add(&state[1+j], &x.inner)
		}
		if err := perm.Permutation(state); err != nil {
			panic("field: poseidon2 permutation: " + err.Error())
		}
	}
	return Scalar{inner: state[1]}
}
