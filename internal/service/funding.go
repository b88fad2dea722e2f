package service

// FundingPlan is the allocation of one booking price across the three
// funding sources, in the order the business consumes them: free-hour
// vouchers first, then ledgered credit, then a card payment for any
// shortfall.  All arithmetic is integer pence and minutes, rounding
// half-up at each multiplication, so the split is exact and
// reproducible on retry.
type FundingPlan struct {
	VoucherMinutes       int   // minutes of the span covered by vouchers
	CreditNeededPence    int64 // price share the credit ledger must fund
	CreditAvailablePence int64 // available balance at planning time
	ShortfallPence       int64 // portion requiring a card payment
}

// FullyFunded reports whether no card payment is needed.
func (p FundingPlan) FullyFunded() bool { return p.ShortfallPence == 0 }

// PlanFunding splits totalPence across vouchers and credit.  Voucher
// coverage is capped at the span duration; the remaining fraction of
// the price, proportional to the uncovered minutes, must come from
// credit, and whatever credit cannot cover becomes the card shortfall.
// The price is already integer pence before the proportional split, so
// the rounding order matches the ledger bit-for-bit.
func PlanFunding(totalPence int64, durationMinutes, availableVoucherMinutes int, availableCreditPence int64) FundingPlan {
	vm := availableVoucherMinutes
	if vm > durationMinutes {
		vm = durationMinutes
	}
	paidMinutes := durationMinutes - vm
	var need int64
	if paidMinutes > 0 {
		need = halfUpDiv(totalPence*int64(paidMinutes), int64(durationMinutes))
	}
	shortfall := need - availableCreditPence
	if shortfall < 0 {
		shortfall = 0
	}
	return FundingPlan{
		VoucherMinutes:       vm,
		CreditNeededPence:    need,
		CreditAvailablePence: availableCreditPence,
		ShortfallPence:       shortfall,
	}
}

// ReconcilePlan describes how an updated booking's funding moves
// relative to what the booking already consumed: the new voucher and
// credit targets, and the signed deltas to apply against the ledgers.
type ReconcilePlan struct {
	VoucherTargetMinutes int
	CreditTargetPence    int64
	VoucherDeltaMinutes  int // positive consumes, negative releases
	CreditDeltaPence     int64
}

// PlanReconciliation re-derives the voucher/credit split for a
// re-priced booking span and expresses it as deltas against the
// recorded usage.  Minutes the booking already holds count as available
// again for the new span, so a pure slot move with an unchanged price
// yields zero deltas.
func PlanReconciliation(totalPence int64, durationMinutes, availableVoucherMinutes, recordedVoucherMinutes int, recordedCreditPence int64) ReconcilePlan {
	target := availableVoucherMinutes + recordedVoucherMinutes
	if target > durationMinutes {
		target = durationMinutes
	}
	paidMinutes := durationMinutes - target
	var need int64
	if paidMinutes > 0 {
		need = halfUpDiv(totalPence*int64(paidMinutes), int64(durationMinutes))
	}
	return ReconcilePlan{
		VoucherTargetMinutes: target,
		CreditTargetPence:    need,
		VoucherDeltaMinutes:  target - recordedVoucherMinutes,
		CreditDeltaPence:     need - recordedCreditPence,
	}
}

// halfUpDiv divides num by den rounding half away from zero.  Both
// arguments must be non-negative.
func halfUpDiv(num, den int64) int64 {
	return (2*num + den) / (2 * den)
}
