// Package feepolicy computes and validates the minimum acceptable fee for
// a transact call, generalizing internal/economics/fees.go's FeeMarket
// (an EIP-1559-style gas market) to the flat basis-point deposit/withdrawal
// rate with a tolerance margin that spec.md 4.E specifies, keeping the same
// saturating-arithmetic discipline the teacher's fee code uses.
package feepolicy

import "math"

// BasisPointDenominator is the scale basis-point rates and the margin are
// expressed against (10000 bps = 100%).
const BasisPointDenominator = 10000

// Config is the pool's global fee configuration (spec.md §3's "Global
// config" singleton, minus the vault/authority fields that live in pool).
type Config struct {
	DepositFeeRateBps    uint16
	WithdrawalFeeRateBps uint16
	FeeErrorMarginBps    uint16
}

// MinFee implements spec.md 4.E: amount := |ext_amount|; rate is the
// deposit or withdrawal rate depending on ext_amount's sign; expected :=
// amount*rate/10000; tolerance := expected*margin/10000; return
// max(expected-tolerance, 0). All arithmetic saturates rather than
// overflowing.
func MinFee(extAmount int64, cfg Config) uint64 {
	amount := absUint64(extAmount)
	rate := cfg.WithdrawalFeeRateBps
	if extAmount >= 0 {
		rate = cfg.DepositFeeRateBps
	}

	expected, ok := mulDiv(amount, uint64(rate), BasisPointDenominator)
	if !ok {
		return math.MaxUint64
	}
	tolerance, ok := mulDiv(expected, uint64(cfg.FeeErrorMarginBps), BasisPointDenominator)
	if !ok {
		return 0
	}
	if tolerance >= expected {
		return 0
	}
	return expected - tolerance
}

// ValidateFee reports whether providedFee meets or exceeds MinFee for the
// given external amount and configuration.
func ValidateFee(extAmount int64, providedFee uint64, cfg Config) bool {
	return providedFee >= MinFee(extAmount, cfg)
}

// absUint64 returns |v| without risking overflow on math.MinInt64.
func absUint64(v int64) uint64 {
	if v >= 0 {
		return uint64(v)
	}
	if v == math.MinInt64 {
		return uint64(math.MaxInt64) + 1
	}
	return uint64(-v)
}

// mulDiv computes a*b/c, saturating to (MaxUint64, false) on overflow of
// the intermediate product rather than wrapping.
func mulDiv(a, b, c uint64) (uint64, bool) {
	hi, lo := bits64Mul(a, b)
	if hi == 0 {
		return lo / c, true
	}
	// a*b overflowed 64 bits; only reachable with amounts far beyond any
	// realistic native-value denomination, but reject rather than wrap.
	return math.MaxUint64, false
}

// bits64Mul returns the 128-bit product of a*b as (hi, lo).
func bits64Mul(a, b uint64) (hi, lo uint64) {
	const mask32 = 1<<32 - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = (t << 32) | w0
	return
}
