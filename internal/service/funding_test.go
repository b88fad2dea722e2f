package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanFundingNoVouchers(t *testing.T) {
	p := PlanFunding(4200, 120, 0, 6000)
	assert.Equal(t, 0, p.VoucherMinutes)
	assert.Equal(t, int64(4200), p.CreditNeededPence)
	assert.Equal(t, int64(0), p.ShortfallPence)
	assert.True(t, p.FullyFunded())
}

func TestPlanFundingVouchersCoverEverything(t *testing.T) {
	// More voucher time than the span: coverage caps at the duration
	// and no money moves at all.
	p := PlanFunding(4200, 120, 180, 0)
	assert.Equal(t, 120, p.VoucherMinutes)
	assert.Equal(t, int64(0), p.CreditNeededPence)
	assert.Equal(t, int64(0), p.ShortfallPence)
}

func TestPlanFundingPartialVoucherSplit(t *testing.T) {
	// One hour of a two-hour £42 booking on vouchers: the credit share
	// is the proportional half of the pence total.
	p := PlanFunding(4200, 120, 60, 6000)
	assert.Equal(t, 60, p.VoucherMinutes)
	assert.Equal(t, int64(2100), p.CreditNeededPence)
	assert.Equal(t, int64(0), p.ShortfallPence)
}

func TestPlanFundingShortfall(t *testing.T) {
	p := PlanFunding(6000, 120, 0, 3500)
	assert.Equal(t, int64(6000), p.CreditNeededPence)
	assert.Equal(t, int64(2500), p.ShortfallPence)
	assert.False(t, p.FullyFunded())
}

func TestPlanFundingRoundsHalfUpPerMultiplication(t *testing.T) {
	// 90 minutes at 1901p total with 45 voucher minutes: the exact
	// share is 950.5p and must round up to 951, not truncate.
	p := PlanFunding(1901, 90, 45, 10000)
	assert.Equal(t, int64(951), p.CreditNeededPence)
}

func TestPlanReconciliationUnchangedSlotIsANoOp(t *testing.T) {
	// Moving a booking without changing its price or duration: the
	// recorded minutes count as available again, so both deltas are
	// zero and no ledger row moves.
	p := PlanReconciliation(4200, 120, 0, 30, 3150)
	assert.Equal(t, 30, p.VoucherTargetMinutes)
	assert.Equal(t, int64(3150), p.CreditTargetPence)
	assert.Equal(t, 0, p.VoucherDeltaMinutes)
	assert.Equal(t, int64(0), p.CreditDeltaPence)
}

func TestPlanReconciliationLongerSpanConsumesMore(t *testing.T) {
	// A one-hour £21 booking fully on credit grows to two hours at
	// £42: the extra hour is a positive credit delta.
	p := PlanReconciliation(4200, 120, 0, 0, 2100)
	assert.Equal(t, int64(4200), p.CreditTargetPence)
	assert.Equal(t, int64(2100), p.CreditDeltaPence)
	assert.Equal(t, 0, p.VoucherDeltaMinutes)
}

func TestPlanReconciliationShorterSpanReleases(t *testing.T) {
	// Two hours half on vouchers shrinking to one: the recorded hour
	// of voucher time now covers the whole span, so the credit that
	// funded the dropped hour flows back as a negative delta.
	p := PlanReconciliation(2100, 60, 0, 60, 2100)
	assert.Equal(t, 60, p.VoucherTargetMinutes)
	assert.Equal(t, 0, p.VoucherDeltaMinutes)
	assert.Equal(t, int64(0), p.CreditTargetPence)
	assert.Equal(t, int64(-2100), p.CreditDeltaPence)
}

func TestPlanReconciliationVoucherCapAndSplit(t *testing.T) {
	// 30 freshly available voucher minutes on a 120-minute £42 slot:
	// the uncovered 90 minutes cost 3150p, matching the created-path
	// split for the same inputs.
	p := PlanReconciliation(4200, 120, 30, 0, 0)
	assert.Equal(t, 30, p.VoucherTargetMinutes)
	assert.Equal(t, int64(3150), p.CreditTargetPence)
	assert.Equal(t, 30, p.VoucherDeltaMinutes)
	assert.Equal(t, int64(3150), p.CreditDeltaPence)

	// Recorded plus fresh minutes cap at the span duration.
	capped := PlanReconciliation(4200, 120, 100, 60, 2100)
	assert.Equal(t, 120, capped.VoucherTargetMinutes)
	assert.Equal(t, int64(0), capped.CreditTargetPence)
	assert.Equal(t, 60, capped.VoucherDeltaMinutes)
	assert.Equal(t, int64(-2100), capped.CreditDeltaPence)
}

func TestPlanFundingDeterministic(t *testing.T) {
	first := PlanFunding(12345, 150, 40, 999)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, PlanFunding(12345, 150, 40, 999))
	}
}
