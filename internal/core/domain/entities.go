package domain

import "time"

// PoolStatus represents the lifecycle status of a pool
type PoolStatus string

const (
	PoolStatusOpen        PoolStatus = "OPEN"
	PoolStatusFull        PoolStatus = "FULL"
	PoolStatusUnderReview PoolStatus = "UNDER_REVIEW"
	PoolStatusClosed      PoolStatus = "CLOSED"
)

// DerivePoolStatus computes pool status from slot occupancy and moderation.
// Status is never stored as independently-mutable state; this is the single
// source of truth.
func DerivePoolStatus(filledSlots, totalSlots int, underModeration bool) PoolStatus {
	if underModeration {
		return PoolStatusUnderReview
	}
	if filledSlots >= totalSlots {
		return PoolStatusFull
	}
	return PoolStatusOpen
}

// Pool represents a shared subscription with a fixed slot count
type Pool struct {
	ID              uint
	OwnerID         uint
	Platform        string
	PlanName        string
	TotalSlots      int
	PricePerSlot    int64 // cents
	InviteCode      string
	FilledSlots     int
	UnderModeration bool
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status derives the current status of the pool
func (p *Pool) Status() PoolStatus {
	if p.ClosedAt != nil {
		return PoolStatusClosed
	}
	return DerivePoolStatus(p.FilledSlots, p.TotalSlots, p.UnderModeration)
}

// PlatformInfo is a row of the seeded platform catalog
type PlatformInfo struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	SuggestedPriceCents int64  `json:"suggested_price_cents"`
}

// MembershipState represents a member's lifecycle state within a pool
type MembershipState string

const (
	MembershipRequested MembershipState = "REQUESTED"
	MembershipApproved  MembershipState = "APPROVED"
	MembershipActive    MembershipState = "ACTIVE"
	MembershipRemoved   MembershipState = "REMOVED"
	MembershipRejected  MembershipState = "REJECTED"
)

// IsTerminal reports whether the state is final. Terminal memberships are
// never resurrected; a new join request creates a new membership.
func (s MembershipState) IsTerminal() bool {
	return s == MembershipRemoved || s == MembershipRejected
}

// Membership rejection / removal reasons
const (
	ReasonPoolFilledDuringReview = "POOL_FILLED_DURING_REVIEW"
	ReasonOwnerRejected          = "OWNER_REJECTED"
	ReasonOwnerRemoved           = "OWNER_REMOVED"
	ReasonMemberLeft             = "MEMBER_LEFT"
)

// Membership represents a member's relationship to a pool
type Membership struct {
	ID       uint            `json:"id"`
	PoolID   uint            `json:"pool_id"`
	MemberID uint            `json:"member_id"`
	State    MembershipState `json:"state"`
	Reason   string          `json:"reason,omitempty"`
	JoinedAt time.Time       `json:"joined_at"`
}

// LedgerStatus represents the payment status of one ledger entry
type LedgerStatus string

const (
	LedgerOwed          LedgerStatus = "OWED"
	LedgerPartiallyPaid LedgerStatus = "PARTIALLY_PAID"
	LedgerPaid          LedgerStatus = "PAID"
	LedgerOverdue       LedgerStatus = "OVERDUE"
)

// DeriveEntryStatus computes ledger entry status purely from the two amounts
// and the cycle due date. Overdue iff not fully paid and past due.
func DeriveEntryStatus(amountDue, amountPaid int64, dueDate, now time.Time) LedgerStatus {
	if amountPaid >= amountDue {
		return LedgerPaid
	}
	if now.After(dueDate) {
		return LedgerOverdue
	}
	if amountPaid > 0 {
		return LedgerPartiallyPaid
	}
	return LedgerOwed
}

// PlatformFeePct is the flat marketplace fee, owner-borne and display-only
const PlatformFeePct = 5

// PlatformFee returns the fee in cents, rounded up
func PlatformFee(totalCents int64) int64 {
	return (totalCents*PlatformFeePct + 99) / 100
}

// BillingCycle is a fixed period over which owed amounts accrue
type BillingCycle struct {
	ID        uint       `json:"id"`
	PoolID    uint       `json:"pool_id"`
	StartDate time.Time  `json:"start_date"`
	DueDate   time.Time  `json:"due_date"`
	FeeCents  int64      `json:"fee_cents"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// IsClosed reports whether the cycle has been closed
func (c *BillingCycle) IsClosed() bool {
	return c.ClosedAt != nil
}

// LedgerEntry is the owed/paid record for one membership within one cycle
type LedgerEntry struct {
	ID           uint         `json:"id"`
	CycleID      uint         `json:"cycle_id"`
	MembershipID uint         `json:"membership_id"`
	AmountDue    int64        `json:"amount_due_cents"`
	AmountPaid   int64        `json:"amount_paid_cents"`
	Status       LedgerStatus `json:"status"`
}

// PaymentEvent is the append-only audit record of one applied payment.
// EventID is the gateway's idempotency key: replaying the same event id is
// a no-op success.
type PaymentEvent struct {
	ID            uint      `json:"id"`
	EventID       string    `json:"event_id"`
	LedgerEntryID uint      `json:"ledger_entry_id"`
	Amount        int64     `json:"amount_cents"`
	ReceivedAt    time.Time `json:"received_at"`
}
