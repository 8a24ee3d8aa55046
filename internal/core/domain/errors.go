package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")
)

// PoolErrors
var (
	ErrPoolNotFound    = errors.New("pool not found")
	ErrPoolFull        = errors.New("pool has no vacant slot")
	ErrPoolClosed      = errors.New("pool is closed")
	ErrPoolHasMembers  = errors.New("pool still has active members")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrPlatformUnknown = errors.New("unknown platform")
)

// MembershipErrors
var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrAlreadyMember      = errors.New("a non-terminal membership already exists for this member")
	ErrInvalidTransition  = errors.New("invalid membership state transition")
)

// BillingErrors
var (
	ErrCycleNotFound         = errors.New("billing cycle not found")
	ErrCycleAlreadyOpen      = errors.New("an open billing cycle already exists for this pool")
	ErrCycleClosed           = errors.New("billing cycle is already closed")
	ErrEntryNotFound         = errors.New("ledger entry not found")
	ErrOverpaymentRejected   = errors.New("payment exceeds amount due")
	ErrOpenObligationsRemain = errors.New("unpaid ledger entries remain in this cycle")
	ErrNoActiveMemberships   = errors.New("pool has no active memberships to bill")
)

// PricingErrors
var (
	ErrInvalidSnapshot  = errors.New("invalid market snapshot")
	ErrSnapshotNotFound = errors.New("no market snapshot for platform")
)

// RuleErrors
var (
	ErrUnknownRuleKind = errors.New("unknown auto-approve rule kind")
)
