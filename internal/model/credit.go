package model

import "time"

// Credit source types describe how a ledger grant came to exist.  The
// source drives expiry policy and webhook deduplication: grants that
// originate from an external payment event carry the event id in
// SourceID so a retried webhook can be detected.
const (
	CreditSourceMonthlySubscription = "monthly_subscription"
	CreditSourceAdHocSubscription   = "ad_hoc_subscription"
	CreditSourcePayDifference       = "pay_difference"
	CreditSourceManual              = "manual"
)

// CreditTransaction is one grant of prepaid money in the credit ledger.
// Entries are append-only: consumption and refunds mutate UsedPence but
// rows are never deleted, preserving the audit trail.  The invariant
// UsedPence + remaining == AmountPence holds at all times, and an entry
// is available iff it is not revoked, not expired and has a positive
// remaining balance.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – owner of the grant.
//  AmountPence – granted amount in pence.
//  UsedPence   – portion consumed so far.
//  GrantDate   – date the grant was issued (FIFO ordering key).
//  ExpiryDate  – last date the remaining balance may be spent.
//  SourceType  – one of the CreditSource* constants.
//  SourceID    – external dedup key (e.g. payment-intent id), nullable.
//  Revoked     – set when an unused grant is withdrawn.
//  Description – free-text reason shown to admins.
//  CreatedAt   – creation timestamp.
type CreditTransaction struct {
	ID          uint64    // credit_transactions.id
	UserID      uint64    // credit_transactions.user_id
	AmountPence int64     // credit_transactions.amount_pence
	UsedPence   int64     // credit_transactions.used_pence
	GrantDate   time.Time // credit_transactions.grant_date
	ExpiryDate  time.Time // credit_transactions.expiry_date
	SourceType  string    // credit_transactions.source_type
	SourceID    *string   // credit_transactions.source_id (nullable)
	Revoked     bool      // credit_transactions.revoked
	Description string    // credit_transactions.description
	CreatedAt   time.Time // credit_transactions.created_at
}

// RemainingPence returns the unconsumed portion of the grant.
func (t *CreditTransaction) RemainingPence() int64 { return t.AmountPence - t.UsedPence }
