package feepolicy

import "testing"

func TestMinFeeDepositVsWithdrawalRate(t *testing.T) {
	cfg := Config{DepositFeeRateBps: 0, WithdrawalFeeRateBps: 25, FeeErrorMarginBps: 500}

	if got := MinFee(100_000_000, cfg); got != 0 {
		t.Fatalf("deposit rate is 0 bps, MinFee must be 0, got %d", got)
	}

	// scenario 4: withdrawal rate 25 bps, margin 500 bps, ext_amount = -1e6.
	// expected = 1e6*25/10000 = 2500; tolerance = 2500*500/10000 = 125;
	// min fee = 2375.
	got := MinFee(-1_000_000, cfg)
	if got != 2375 {
		t.Fatalf("expected min fee 2375, got %d", got)
	}
}

func TestValidateFeeBoundary(t *testing.T) {
	cfg := Config{WithdrawalFeeRateBps: 25, FeeErrorMarginBps: 500}

	if ValidateFee(-1_000_000, 2374, cfg) {
		t.Fatalf("fee=2374 must be rejected (one below the floor)")
	}
	if !ValidateFee(-1_000_000, 2375, cfg) {
		t.Fatalf("fee=2375 must be accepted (exactly at the floor)")
	}
}

func TestFeeFloorProperty(t *testing.T) {
	// Property 5: for all (ext_amount, rate, margin) with rate <= 10000,
	// min_fee <= |ext_amount|*rate/10000, and validate_fee accepts exactly
	// the fees >= min_fee.
	amounts := []int64{0, 1, 100, 12345, 1_000_000, -1, -500, -999_999}
	rates := []uint16{0, 1, 25, 100, 5000, 10000}
	margins := []uint16{0, 1, 100, 500, 10000}

	for _, amt := range amounts {
		for _, rate := range rates {
			for _, margin := range margins {
				cfg := Config{DepositFeeRateBps: rate, WithdrawalFeeRateBps: rate, FeeErrorMarginBps: margin}
				min := MinFee(amt, cfg)

				expected := absUint64(amt) * uint64(rate) / BasisPointDenominator
				if min > expected {
					t.Fatalf("min_fee %d exceeds expected %d for amount=%d rate=%d margin=%d", min, expected, amt, rate, margin)
				}

				if min > 0 && !ValidateFee(amt, min, cfg) {
					t.Fatalf("validate_fee must accept fee == min_fee")
				}
				if min > 0 && ValidateFee(amt, min-1, cfg) {
					t.Fatalf("validate_fee must reject fee == min_fee-1")
				}
			}
		}
	}
}
