package repository

// allocation pairs a ledger row id with an amount moved against it.
// On input to planAllocation the amount is the balance the operation
// can move on that row (remaining headroom for a draw, consumed amount
// for a release); on output it is the slice actually taken.
type allocation struct {
	id     uint64
	amount int64
}

// planAllocation splits amount across the rows in the order given,
// draining each row before touching the next.  The ordering is the
// caller's: oldest-first for consumption, newest-first for reversal.
// When the summed balance falls short it returns nil takes together
// with the true total, so the caller can report the shortfall without
// mutating any row; otherwise the takes cover amount exactly.
func planAllocation(rows []allocation, amount int64) (takes []allocation, total int64) {
	for _, r := range rows {
		total += r.amount
	}
	if total < amount {
		return nil, total
	}
	takes = make([]allocation, 0, len(rows))
	outstanding := amount
	for _, r := range rows {
		if outstanding == 0 {
			break
		}
		take := r.amount
		if take > outstanding {
			take = outstanding
		}
		takes = append(takes, allocation{id: r.id, amount: take})
		outstanding -= take
	}
	return takes, total
}
