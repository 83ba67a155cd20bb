// Package field implements BN254 scalar-field arithmetic and the fixed
// Poseidon permutation shared with the off-chain circuit. Every commitment,
// nullifier, and tree hash in the pool passes through this package so that a
// single implementation governs the encoding the proof system expects.
package field

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrOutOfRange is returned by Decode when the 32-byte input is not strictly
// less than the field modulus.
var ErrOutOfRange = errors.New("field: value out of range")

// Size is the canonical external encoding length of a Scalar.
const Size = fr.Bytes

var modulus = fr.Modulus()

// Scalar is an element of the BN254 scalar field F_r.
type Scalar struct {
	inner fr.Element
}

// Zero is the additive identity.
func Zero() Scalar { return Scalar{} }

// FromUint64 lifts a machine integer into the field.
func FromUint64(v uint64) Scalar {
	var s Scalar
	s.inner.SetUint64(v)
	return s
}

// FromInt64 lifts a signed integer into the field using the "wraps via the
// modulus" convention spec'd for public_amount: negative values are
// represented as modulus-minus-magnitude.
func FromInt64(v int64) Scalar {
	var s Scalar
	if v >= 0 {
		s.inner.SetUint64(uint64(v))
		return s
	}
	var mag fr.Element
	mag.SetUint64(uint64(-v))
	s.inner.Sub(&s.inner, &mag) // 0 - mag, reduces into [0, modulus)
	return s
}

// Decode parses the canonical 32-byte big-endian encoding of a Scalar,
// rejecting any input that is not strictly less than the field modulus.
// Unlike a bare fr.Element.SetBytes (which silently reduces an
// out-of-range input), this is the validating entry point required at the
// pool's external boundary.
func Decode(b [Size]byte) (Scalar, error) {
	asInt := new(big.Int).SetBytes(b[:])
	if asInt.Cmp(modulus) >= 0 {
		return Scalar{}, ErrOutOfRange
	}
	var s Scalar
	s.inner.SetBigInt(asInt)
	return s, nil
}

// Encode produces the canonical 32-byte big-endian representation.
func (s Scalar) Encode() [Size]byte {
	return s.inner.Bytes()
}

// Equal reports whether two scalars are the same field element.
func (s Scalar) Equal(o Scalar) bool {
	return s.inner.Equal(&o.inner)
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool {
	return s.inner.IsZero()
}

// BigInt returns the scalar's canonical (non-Montgomery) big.Int value.
func (s Scalar) BigInt() *big.Int {
	var out big.Int
	s.inner.BigInt(&out)
	return &out
}

// FrElement exposes the underlying gnark-crypto representation to sibling
// packages in this module.
func (s Scalar) FrElement() fr.Element {
	return s.inner
}
