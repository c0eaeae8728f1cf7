package escrow

import (
	"math/big"
	"testing"
)

func TestStatusValidity(t *testing.T) {
	for _, s := range []Status{StatusCreated, StatusFunded, StatusReleased, StatusRefunded} {
		if !s.Valid() {
			t.Fatalf("status %s should be valid", s)
		}
	}
	if Status(42).Valid() {
		t.Fatalf("unknown status should be invalid")
	}
	if StatusCreated.Terminal() || StatusFunded.Terminal() {
		t.Fatalf("created and funded are not terminal")
	}
	if !StatusReleased.Terminal() || !StatusRefunded.Terminal() {
		t.Fatalf("released and refunded are terminal")
	}
}

func TestSanitizeBalanceStateCoupling(t *testing.T) {
	base := func() *Escrow {
		return &Escrow{
			ID:           [32]byte{1},
			Payer:        newTestAddress(0x01),
			Payee:        newTestAddress(0x02),
			Balance:      big.NewInt(0),
			FeeBps:       500,
			ReleaseDelay: 3600,
			RefundDelay:  7200,
			Status:       StatusCreated,
		}
	}

	if _, err := Sanitize(base()); err != nil {
		t.Fatalf("valid created entry: %v", err)
	}

	funded := base()
	funded.Status = StatusFunded
	if _, err := Sanitize(funded); err == nil {
		t.Fatalf("funded entry with zero balance must be invalid")
	}
	funded.Balance = big.NewInt(100)
	if _, err := Sanitize(funded); err != nil {
		t.Fatalf("funded entry with positive balance: %v", err)
	}

	released := base()
	released.Status = StatusReleased
	released.Balance = big.NewInt(1)
	if _, err := Sanitize(released); err == nil {
		t.Fatalf("settled entry with residual balance must be invalid")
	}

	overFee := base()
	overFee.FeeBps = 10_001
	if _, err := Sanitize(overFee); err == nil {
		t.Fatalf("fee above 10000 bps must be invalid")
	}
}

func TestSanitizeReturnsClone(t *testing.T) {
	original := &Escrow{
		ID:           [32]byte{7},
		Payer:        newTestAddress(0x01),
		Payee:        newTestAddress(0x02),
		Balance:      big.NewInt(5),
		Status:       StatusFunded,
		ReleaseDelay: 1,
		RefundDelay:  2,
	}
	clone, err := Sanitize(original)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	clone.Balance.SetInt64(999)
	if original.Balance.Int64() != 5 {
		t.Fatalf("sanitize must not alias the original balance")
	}
}

func TestSplitFeeEdgeCases(t *testing.T) {
	cases := []struct {
		amount     int64
		feeBps     uint32
		wantPayout int64
		wantFee    int64
	}{
		{1_000_000, 500, 950_000, 50_000},
		{1, 500, 1, 0},
		{199, 500, 190, 9},
		{100, 0, 100, 0},
		{100, 10_000, 0, 100},
		{3, 3333, 3, 0},
		{10_001, 1, 10_000, 1},
	}
	for _, tc := range cases {
		payout, fee := SplitFee(big.NewInt(tc.amount), tc.feeBps)
		if payout.Int64() != tc.wantPayout || fee.Int64() != tc.wantFee {
			t.Fatalf("split %d @ %dbps: got %s/%s, want %d/%d",
				tc.amount, tc.feeBps, payout, fee, tc.wantPayout, tc.wantFee)
		}
	}
}
