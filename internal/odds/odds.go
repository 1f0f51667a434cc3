// Package odds implements the parimutuel odds and payout calculator.
//
// All functions are pure: no I/O, no mutable state, safe to call from any
// goroutine with whatever pool snapshot the caller has read. Cent amounts
// stay in integer arithmetic end to end; the returned multiples are floats
// for display only and are never fed back into a monetary computation.
//
// Fee order is load-bearing: fees are charged on the pool of the OTHER
// side (the side that funds the winners), and deducted BEFORE that pool
// joins the distributable pot. Reversing the order changes payouts.
package odds

import (
	"math/big"

	"github.com/shopspring/decimal"

	"fanclubz/internal/money"
)

// PreviewResult exposes the intermediate quantities of a hypothetical stake
// so the UI can show exact cent values rather than reconstructing them from
// the rounded multiple.
type PreviewResult struct {
	SelectedPoolAfterCents money.Cents `json:"selectedPoolAfterCents"`
	OtherPoolAfterCents    money.Cents `json:"otherPoolAfterCents"`
	FeesCents              money.Cents `json:"feesCents"`
	DistributableCents     money.Cents `json:"distributableCents"`
	ExpectedReturnCents    money.Cents `json:"expectedReturnCents"`
	ExpectedProfitCents    money.Cents `json:"expectedProfitCents"`
	Multiple               float64     `json:"multiple"`
}

// ReferenceMultiple answers "if a reference stake were placed on this option
// now, what multiple would it earn if the option wins". The second return is
// false when there is no information to compute a multiple: an empty market
// with an empty reference stake.
func ReferenceMultiple(selectedPoolCents, totalPoolCents, referenceStakeCents money.Cents, platformFeeBps, creatorFeeBps int64) (float64, bool) {
	if totalPoolCents == 0 && referenceStakeCents == 0 {
		return 0, false
	}
	selectedAfter := selectedPoolCents + referenceStakeCents
	if selectedAfter == 0 {
		return 0, false
	}
	otherAfter := totalPoolCents - selectedPoolCents
	fees := money.Fee(otherAfter, platformFeeBps+creatorFeeBps)
	distributable := selectedAfter + (otherAfter - fees)
	return float64(distributable) / float64(selectedAfter), true
}

// Preview runs the same formula as ReferenceMultiple with the caller's real
// stake substituted, returning every intermediate value. Returns nil when
// both the selected pool and the stake are zero.
func Preview(totalPoolCents, selectedPoolCents, stakeCents money.Cents, platformFeeBps, creatorFeeBps int64) *PreviewResult {
	if selectedPoolCents == 0 && stakeCents == 0 {
		return nil
	}
	selectedAfter := selectedPoolCents + stakeCents
	otherAfter := totalPoolCents - selectedPoolCents
	fees := money.Fee(otherAfter, platformFeeBps+creatorFeeBps)
	distributable := selectedAfter + (otherAfter - fees)
	return &PreviewResult{
		SelectedPoolAfterCents: selectedAfter,
		OtherPoolAfterCents:    otherAfter,
		FeesCents:              fees,
		DistributableCents:     distributable,
		ExpectedReturnCents:    distributable,
		ExpectedProfitCents:    distributable - stakeCents,
		Multiple:               float64(distributable) / float64(selectedAfter),
	}
}

// PayoutMultiple is the settlement-time multiple on the final pool state,
// with no hypothetical stake added. The second return is false when the
// winning pool is empty (no winners to divide among; the orchestrator treats
// that as a full refund).
func PayoutMultiple(selectedPoolCents, otherPoolCents money.Cents, platformFeeBps, creatorFeeBps int64) (float64, bool) {
	if selectedPoolCents == 0 {
		return 0, false
	}
	fees := money.Fee(otherPoolCents, platformFeeBps+creatorFeeBps)
	distributable := selectedPoolCents + (otherPoolCents - fees)
	return float64(distributable) / float64(selectedPoolCents), true
}

// WinnerPayout computes floor(stake * multiple) for one winning entry
// without going through a float: floor(stake * distributable / selectedPool)
// in exact big-integer arithmetic. The second return is false when the
// winning pool is empty.
//
// Because sum(floor(stake_i * d / s)) <= d, the entries of a market can
// never be over-distributed past the fee-adjusted pot.
func WinnerPayout(stakeCents, selectedPoolCents, otherPoolCents money.Cents, platformFeeBps, creatorFeeBps int64) (money.Cents, bool) {
	if selectedPoolCents == 0 {
		return 0, false
	}
	fees := money.Fee(otherPoolCents, platformFeeBps+creatorFeeBps)
	distributable := selectedPoolCents + (otherPoolCents - fees)

	num := new(big.Int).Mul(big.NewInt(int64(stakeCents)), big.NewInt(int64(distributable)))
	num.Quo(num, big.NewInt(int64(selectedPoolCents)))
	return money.Cents(num.Int64()), true
}

// SettlementFees is the total fee taken from the losing pool at settlement,
// split into its platform and creator shares. Each share floors
// independently, matching how the credits are posted.
func SettlementFees(otherPoolCents money.Cents, platformFeeBps, creatorFeeBps int64) (platform, creator money.Cents) {
	return money.Fee(otherPoolCents, platformFeeBps), money.Fee(otherPoolCents, creatorFeeBps)
}

// FormatMultiple renders a multiple as a fixed-decimal string for display.
// Never used in monetary computation.
func FormatMultiple(multiple float64, decimals int) string {
	if decimals < 0 {
		decimals = 2
	}
	return decimal.NewFromFloat(multiple).StringFixed(int32(decimals))
}
