package model

import "time"

// Membership types.  Permanent members hold a recurring monthly
// subscription; ad-hoc members pay per period and may only book while
// inside their paid window.
const (
	MembershipTypePermanent = "permanent"
	MembershipTypeAdHoc     = "ad_hoc"
)

// Membership links a user to the practice's billing state.  There is at
// most one membership per user.  The Stripe identifiers are populated
// lazily when the member first pays by card; SuspensionDate is set when
// a termination is requested and marks the last date the member may
// book.
//
// Fields:
//  ID                     – primary key identifier.
//  UserID                 – owning user (unique).
//  Type                   – permanent or ad_hoc.
//  StripeCustomerID       – external customer id, nullable.
//  StripeSubscriptionID   – external subscription id, nullable.
//  SubscriptionStartDate  – start of the current paid period, nullable.
//  SubscriptionEndDate    – end of the current paid period, nullable.
//  MonthlyAmountPence     – recurring charge for permanent members.
//  TerminationRequestedAt – when the member asked to leave, nullable.
//  SuspensionDate         – last bookable date after termination, nullable.
//  CreatedAt              – creation timestamp.
//  UpdatedAt              – last update timestamp.
type Membership struct {
	ID                     uint64     // memberships.id
	UserID                 uint64     // memberships.user_id
	Type                   string     // memberships.type
	StripeCustomerID       *string    // memberships.stripe_customer_id (nullable)
	StripeSubscriptionID   *string    // memberships.stripe_subscription_id (nullable)
	SubscriptionStartDate  *time.Time // memberships.subscription_start_date (nullable)
	SubscriptionEndDate    *time.Time // memberships.subscription_end_date (nullable)
	MonthlyAmountPence     int64      // memberships.monthly_amount_pence
	TerminationRequestedAt *time.Time // memberships.termination_requested_at (nullable)
	SuspensionDate         *time.Time // memberships.suspension_date (nullable)
	CreatedAt              time.Time  // memberships.created_at
	UpdatedAt              time.Time  // memberships.updated_at
}
