package odds

import (
	"math"
	"testing"

	"fanclubz/internal/money"
)

const (
	platformBps = 250 // 2.5%
	creatorBps  = 100 // 1%
)

func TestReferenceMultiple_NoInformation(t *testing.T) {
	if _, ok := ReferenceMultiple(0, 0, 0, platformBps, creatorBps); ok {
		t.Fatalf("expected no multiple for empty market and zero reference stake")
	}
}

func TestReferenceMultiple_FirstMoverOnEmptySide(t *testing.T) {
	// All 37500c staked on the other side, 0 on the selected side. A 100c
	// reference stake owns the whole winning pool:
	// fees = floor(37500*350/10000) = 1312
	// distributable = 100 + (37500-1312) = 36288, multiple = 362.88
	m, ok := ReferenceMultiple(0, 37500, 100, platformBps, creatorBps)
	if !ok {
		t.Fatalf("expected a multiple")
	}
	if math.Abs(m-362.88) > 0.01 {
		t.Fatalf("multiple = %v, want 362.88", m)
	}
}

func TestReferenceMultiple_SymmetricPools(t *testing.T) {
	// otherPool=5000, fees=175, distributable=5000+4825=9825, /5100 ~ 1.926
	m, ok := ReferenceMultiple(5000, 10000, 100, platformBps, creatorBps)
	if !ok {
		t.Fatalf("expected a multiple")
	}
	if m < 1.5 || m > 2.5 {
		t.Fatalf("multiple = %v, want roughly 2", m)
	}
}

func TestReferenceMultiple_ZeroStakeOnEmptyOption(t *testing.T) {
	// selectedPoolAfter would be 0: division guard kicks in.
	if _, ok := ReferenceMultiple(0, 10000, 0, platformBps, creatorBps); ok {
		t.Fatalf("expected no multiple when selected pool stays empty")
	}
}

func TestPreview_NoInformation(t *testing.T) {
	if p := Preview(0, 0, 0, platformBps, creatorBps); p != nil {
		t.Fatalf("expected nil preview, got %+v", p)
	}
}

func TestPreview_FirstMoverExactCents(t *testing.T) {
	p := Preview(37500, 0, 5000, platformBps, creatorBps)
	if p == nil {
		t.Fatalf("expected a preview")
	}
	if p.SelectedPoolAfterCents != 5000 {
		t.Fatalf("selectedPoolAfter = %d, want 5000", p.SelectedPoolAfterCents)
	}
	if p.OtherPoolAfterCents != 37500 {
		t.Fatalf("otherPoolAfter = %d, want 37500", p.OtherPoolAfterCents)
	}
	if p.FeesCents != 1312 {
		t.Fatalf("fees = %d, want 1312", p.FeesCents)
	}
	if p.ExpectedReturnCents != 41188 {
		t.Fatalf("expectedReturn = %d, want 41188", p.ExpectedReturnCents)
	}
	if p.ExpectedProfitCents != 36188 {
		t.Fatalf("expectedProfit = %d, want 36188", p.ExpectedProfitCents)
	}
	if math.Abs(p.Multiple-8.2376) > 0.0001 {
		t.Fatalf("multiple = %v, want 8.2376", p.Multiple)
	}
}

func TestPreview_DominantSide(t *testing.T) {
	p := Preview(10000, 9000, 100, platformBps, creatorBps)
	if p == nil {
		t.Fatalf("expected a preview")
	}
	if p.Multiple < 1.0 || p.Multiple >= 1.5 {
		t.Fatalf("multiple = %v, want in [1.0, 1.5)", p.Multiple)
	}
}

func TestPreview_FeeDeductionOrder(t *testing.T) {
	// fees come off the other pool before it joins the distributable pot
	p := Preview(10000, 5000, 100, 1000, 500)
	if p == nil {
		t.Fatalf("expected a preview")
	}
	if p.FeesCents == 0 {
		t.Fatalf("expected nonzero fees")
	}
	want := p.SelectedPoolAfterCents + (p.OtherPoolAfterCents - p.FeesCents)
	if p.DistributableCents != want {
		t.Fatalf("distributable = %d, want %d", p.DistributableCents, want)
	}
}

func TestPayoutMultiple_EmptyWinningPool(t *testing.T) {
	if _, ok := PayoutMultiple(0, 10000, platformBps, creatorBps); ok {
		t.Fatalf("expected no multiple for empty winning pool")
	}
}

func TestPayoutMultiple_EvenPools(t *testing.T) {
	// feeBps=350: fees=175, distributable=5000+4825=9825, multiple=1.965
	m, ok := PayoutMultiple(5000, 5000, platformBps, creatorBps)
	if !ok {
		t.Fatalf("expected a multiple")
	}
	if math.Abs(m-1.965) > 0.001 {
		t.Fatalf("multiple = %v, want 1.965", m)
	}
}

func TestWinnerPayout_MatchesMultiple(t *testing.T) {
	payout, ok := WinnerPayout(2000, 5000, 5000, platformBps, creatorBps)
	if !ok {
		t.Fatalf("expected a payout")
	}
	// floor(2000 * 9825 / 5000) = floor(3930.0) = 3930
	if payout != 3930 {
		t.Fatalf("payout = %d, want 3930", payout)
	}
}

func TestWinnerPayout_NeverOverDistributes(t *testing.T) {
	stakes := []money.Cents{3301, 777, 919, 3}
	var selected money.Cents
	for _, s := range stakes {
		selected += s
	}
	other := money.Cents(12345)
	fees := money.Fee(other, platformBps+creatorBps)
	distributable := selected + (other - fees)

	var total money.Cents
	for _, s := range stakes {
		p, ok := WinnerPayout(s, selected, other, platformBps, creatorBps)
		if !ok {
			t.Fatalf("expected a payout for stake %d", s)
		}
		if p < s {
			t.Fatalf("winner payout %d below stake %d", p, s)
		}
		total += p
	}
	if total > distributable {
		t.Fatalf("payouts %d exceed distributable %d", total, distributable)
	}
}

func TestWinnerPayout_LargePoolsNoOverflow(t *testing.T) {
	// Pools in the billions of cents: the float path would drift, the
	// big.Int path must stay exact.
	stake := money.Cents(1_000_000_00)
	selected := money.Cents(40_000_000_00)
	other := money.Cents(60_000_000_00)
	payout, ok := WinnerPayout(stake, selected, other, platformBps, creatorBps)
	if !ok {
		t.Fatalf("expected a payout")
	}
	// fees = 210_000_000, distributable = 9_790_000_000,
	// payout = floor(100_000_000 * 9_790_000_000 / 4_000_000_000)
	if payout != 244_750_000 {
		t.Fatalf("payout = %d, want 244750000", payout)
	}
}

func TestSettlementFees_SplitFloorsIndependently(t *testing.T) {
	platform, creator := SettlementFees(37500, platformBps, creatorBps)
	if platform != 937 || creator != 375 {
		t.Fatalf("fees = %d/%d, want 937/375", platform, creator)
	}
	// Combined deduction uses the summed bps, so the split shares can never
	// exceed what was withheld from the pot.
	if platform+creator > money.Fee(37500, platformBps+creatorBps) {
		t.Fatalf("split fees exceed combined deduction")
	}
}

func TestFormatMultiple(t *testing.T) {
	tests := []struct {
		multiple float64
		decimals int
		want     string
	}{
		{2.456, 2, "2.46"},
		{1.01, 2, "1.01"},
		{2.456, 3, "2.456"},
		{362.88, 2, "362.88"},
	}
	for _, tt := range tests {
		if got := FormatMultiple(tt.multiple, tt.decimals); got != tt.want {
			t.Fatalf("FormatMultiple(%v, %d) = %q, want %q", tt.multiple, tt.decimals, got, tt.want)
		}
	}
}
