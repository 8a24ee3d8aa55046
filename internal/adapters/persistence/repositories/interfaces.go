package repositories

import (
	"context"
	"time"

	"splitsub/internal/core/domain"
)

// PoolRepository defines pool & slot registry persistence
type PoolRepository interface {
	Create(ctx context.Context, pool *domain.Pool) error
	GetByID(ctx context.Context, id uint) (*domain.Pool, error)
	List(ctx context.Context, platform string, offset, limit int) ([]*domain.Pool, int64, error)
	ListOwnedBy(ctx context.Context, ownerID uint) ([]*domain.Pool, error)
	SetModeration(ctx context.Context, poolID uint, flag bool) error
	Close(ctx context.Context, poolID uint, at time.Time) error

	// Slot occupancy. FindVacantSlot returns domain.ErrPoolFull when none.
	FindVacantSlot(ctx context.Context, poolID uint) (uint, error)
	OccupySlot(ctx context.Context, slotID, membershipID uint) error
	// VacateSlot reports whether the slot was occupied before the call.
	VacateSlot(ctx context.Context, poolID, slotID uint) (bool, error)
	FindSlotByMembership(ctx context.Context, membershipID uint) (uint, error)
	CountOccupied(ctx context.Context, poolID uint) (int, error)
}

// PlatformRepository defines platform master data access
type PlatformRepository interface {
	ListActive(ctx context.Context) ([]*domain.PlatformInfo, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// MembershipRepository defines membership persistence
type MembershipRepository interface {
	Create(ctx context.Context, m *domain.Membership) error
	GetByID(ctx context.Context, id uint) (*domain.Membership, error)
	// FindNonTerminal returns nil when no Requested/Approved/Active
	// membership exists for the pair.
	FindNonTerminal(ctx context.Context, poolID, memberID uint) (*domain.Membership, error)
	UpdateState(ctx context.Context, id uint, state domain.MembershipState, reason string) error
	ListByPool(ctx context.Context, poolID uint) ([]*domain.Membership, error)
	ListActiveByPool(ctx context.Context, poolID uint) ([]*domain.Membership, error)
	CountActiveByPool(ctx context.Context, poolID uint) (int64, error)
}

// RuleRepository defines auto-approve rule set persistence
type RuleRepository interface {
	GetByPool(ctx context.Context, poolID uint) (domain.RuleSet, error)
	Replace(ctx context.Context, poolID uint, toggles []domain.RuleToggle) error
}

// BillingRepository defines billing cycle & ledger persistence
type BillingRepository interface {
	// CreateCycle persists the cycle and its ledger entries atomically.
	CreateCycle(ctx context.Context, cycle *domain.BillingCycle, entries []*domain.LedgerEntry) error
	GetCycleByID(ctx context.Context, id uint) (*domain.BillingCycle, error)
	// GetOpenCycleByPool returns nil when the pool has no unclosed cycle.
	GetOpenCycleByPool(ctx context.Context, poolID uint) (*domain.BillingCycle, error)
	ListExpiredOpenCycles(ctx context.Context, dueBefore time.Time) ([]*domain.BillingCycle, error)
	// CloseCycle stamps closed_at and flags the given entries Overdue in one
	// transaction.
	CloseCycle(ctx context.Context, cycleID uint, at time.Time, overdueEntryIDs []uint) error

	// AppendEntry adds a ledger entry to an already-open cycle.
	AppendEntry(ctx context.Context, cycleID uint, entry *domain.LedgerEntry) error
	GetEntryByID(ctx context.Context, id uint) (*domain.LedgerEntry, error)
	ListEntriesByCycle(ctx context.Context, cycleID uint) ([]*domain.LedgerEntry, error)
	// ApplyPayment updates the entry and appends the audit event in one
	// transaction.
	ApplyPayment(ctx context.Context, entryID uint, newPaid int64, status domain.LedgerStatus, event *domain.PaymentEvent) error
	FindPaymentEvent(ctx context.Context, eventID string) (*domain.PaymentEvent, error)
	HasAnyPayment(ctx context.Context, membershipID uint) (bool, error)

	SumOwedByPool(ctx context.Context, poolID uint) (int64, error)
	SumCollectedByCycle(ctx context.Context, cycleID uint) (int64, error)
	// ListPoolsDueForCycle returns ids of pools with at least one active
	// membership and no open cycle.
	ListPoolsDueForCycle(ctx context.Context) ([]uint, error)
}

// MarketRepository defines market snapshot access
type MarketRepository interface {
	GetByPlatform(ctx context.Context, platform string) (domain.MarketSnapshot, error)
	Upsert(ctx context.Context, snap domain.MarketSnapshot) error
}
