package services

import (
	"context"
	"log"
	"sync"
	"time"

	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/clock"
	"splitsub/internal/core/domain"

	"github.com/google/uuid"
)

// BillingService computes per-cycle amounts owed, records payment events and
// reconciles collected vs. outstanding
type BillingService struct {
	billingRepo       repositories.BillingRepository
	memberRepo        repositories.MembershipRepository
	poolRepo          repositories.PoolRepository
	membershipService *MembershipService
	notifyService     *NotificationService
	clock             clock.Clock

	// one mutex per ledger entry id; the overpayment invariant is re-checked
	// inside the same critical section that applies the update
	entryLocks sync.Map

	// one mutex per pool id; the one-open-cycle check and the cycle create
	// run in the same critical section, so a manual open racing the daily
	// sweep cannot open two cycles for the same pool
	cycleLocks sync.Map
}

// NewBillingService creates a new billing service
func NewBillingService(
	billingRepo repositories.BillingRepository,
	memberRepo repositories.MembershipRepository,
	poolRepo repositories.PoolRepository,
	membershipService *MembershipService,
	notifyService *NotificationService,
	clk clock.Clock,
) *BillingService {
	return &BillingService{
		billingRepo:       billingRepo,
		memberRepo:        memberRepo,
		poolRepo:          poolRepo,
		membershipService: membershipService,
		notifyService:     notifyService,
		clock:             clk,
	}
}

func (s *BillingService) lockForEntry(entryID uint) *sync.Mutex {
	mu, _ := s.entryLocks.LoadOrStore(entryID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// lockForPool returns the mutex serializing cycle opens for one pool
func (s *BillingService) lockForPool(poolID uint) *sync.Mutex {
	mu, _ := s.cycleLocks.LoadOrStore(poolID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// OpenCycle opens a calendar-month cycle for a pool and creates one ledger
// entry per Active membership with amountDue = pricePerSlot
func (s *BillingService) OpenCycle(ctx context.Context, poolID uint, startDate time.Time) (*domain.BillingCycle, []*domain.LedgerEntry, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}

	mu := s.lockForPool(poolID)
	mu.Lock()
	defer mu.Unlock()

	open, err := s.billingRepo.GetOpenCycleByPool(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}
	if open != nil {
		return nil, nil, domain.ErrCycleAlreadyOpen
	}

	actives, err := s.memberRepo.ListActiveByPool(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}
	if len(actives) == 0 {
		return nil, nil, domain.ErrNoActiveMemberships
	}

	cycle := &domain.BillingCycle{
		PoolID:    poolID,
		StartDate: startDate,
		DueDate:   startDate.AddDate(0, 1, 0),
		FeeCents:  domain.PlatformFee(pool.PricePerSlot * int64(len(actives))),
	}
	entries := make([]*domain.LedgerEntry, 0, len(actives))
	for _, m := range actives {
		entries = append(entries, &domain.LedgerEntry{
			MembershipID: m.ID,
			AmountDue:    pool.PricePerSlot,
			Status:       domain.LedgerOwed,
		})
	}

	if err := s.billingRepo.CreateCycle(ctx, cycle, entries); err != nil {
		return nil, nil, err
	}
	log.Printf("🧾 Cycle %d opened for pool %d (%d entries, due %s)", cycle.ID, poolID, len(entries), cycle.DueDate.Format("2006-01-02"))
	return cycle, entries, nil
}

// ScheduleMembership bills a freshly accepted membership into the pool's
// open cycle. No-op when no cycle is open; the membership is picked up by
// the next OpenCycle once it turns Active.
func (s *BillingService) ScheduleMembership(ctx context.Context, poolID, membershipID uint) error {
	cycle, err := s.billingRepo.GetOpenCycleByPool(ctx, poolID)
	if err != nil {
		return err
	}
	if cycle == nil {
		return nil
	}
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return err
	}

	entry := &domain.LedgerEntry{
		CycleID:      cycle.ID,
		MembershipID: membershipID,
		AmountDue:    pool.PricePerSlot,
		Status:       domain.LedgerOwed,
	}
	if err := s.billingRepo.AppendEntry(ctx, cycle.ID, entry); err != nil {
		return err
	}
	log.Printf("🧾 Membership %d scheduled into open cycle %d (pool %d)", membershipID, cycle.ID, poolID)
	return nil
}

// RecordPayment applies a payment event to a ledger entry. Atomic per
// entry: concurrent partial payments summing past amountDue are rejected
// deterministically. A replayed event id is a no-op success. The
// membership's first-ever payment triggers activation.
func (s *BillingService) RecordPayment(ctx context.Context, entryID uint, amount int64, eventID string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	mu := s.lockForEntry(entryID)
	mu.Lock()
	defer mu.Unlock()

	seen, err := s.billingRepo.FindPaymentEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if seen != nil {
		return s.billingRepo.GetEntryByID(ctx, seen.LedgerEntryID)
	}

	entry, err := s.billingRepo.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	cycle, err := s.billingRepo.GetCycleByID(ctx, entry.CycleID)
	if err != nil {
		return nil, err
	}

	if entry.AmountPaid+amount > entry.AmountDue {
		return nil, domain.ErrOverpaymentRejected
	}

	now := s.clock.Now()
	newPaid := entry.AmountPaid + amount
	status := domain.DeriveEntryStatus(entry.AmountDue, newPaid, cycle.DueDate, now)

	hasPrior, err := s.billingRepo.HasAnyPayment(ctx, entry.MembershipID)
	if err != nil {
		return nil, err
	}

	event := &domain.PaymentEvent{
		EventID:       eventID,
		LedgerEntryID: entryID,
		Amount:        amount,
		ReceivedAt:    now,
	}
	if err := s.billingRepo.ApplyPayment(ctx, entryID, newPaid, status, event); err != nil {
		return nil, err
	}
	log.Printf("💰 Payment %s: %d cents on entry %d (%d/%d, %s)", eventID, amount, entryID, newPaid, entry.AmountDue, status)

	if !hasPrior {
		if err := s.membershipService.ActivateOnFirstPayment(ctx, entry.MembershipID); err != nil && err != domain.ErrInvalidTransition {
			return nil, err
		}
	}

	return s.billingRepo.GetEntryByID(ctx, entryID)
}

// CloseCycle closes a cycle. Without force it fails while unpaid entries
// remain; with force it closes anyway and flags the remainder Overdue
// (owner-initiated end-of-grace-period close).
func (s *BillingService) CloseCycle(ctx context.Context, cycleID uint, force bool) error {
	cycle, err := s.billingRepo.GetCycleByID(ctx, cycleID)
	if err != nil {
		return err
	}
	if cycle.IsClosed() {
		return domain.ErrCycleClosed
	}

	entries, err := s.billingRepo.ListEntriesByCycle(ctx, cycleID)
	if err != nil {
		return err
	}

	var unpaid []uint
	unpaidMemberships := make([]uint, 0)
	for _, e := range entries {
		if e.AmountPaid < e.AmountDue {
			unpaid = append(unpaid, e.ID)
			unpaidMemberships = append(unpaidMemberships, e.MembershipID)
		}
	}

	if len(unpaid) > 0 && !force {
		return domain.ErrOpenObligationsRemain
	}

	if err := s.billingRepo.CloseCycle(ctx, cycleID, s.clock.Now(), unpaid); err != nil {
		return err
	}
	log.Printf("🔒 Cycle %d closed (force=%t, %d entries flagged overdue)", cycleID, force, len(unpaid))

	for _, membershipID := range unpaidMemberships {
		if m, err := s.memberRepo.GetByID(ctx, membershipID); err == nil {
			s.notifyService.NotifyEntryOverdue(m.PoolID, m.MemberID, cycleID)
		}
	}
	return nil
}

// TotalOwed derives the outstanding cents across all cycles of a pool.
// Never stored; always computed from ledger entries.
func (s *BillingService) TotalOwed(ctx context.Context, poolID uint) (int64, error) {
	if _, err := s.poolRepo.GetByID(ctx, poolID); err != nil {
		return 0, err
	}
	return s.billingRepo.SumOwedByPool(ctx, poolID)
}

// TotalCollected derives the collected cents for one cycle
func (s *BillingService) TotalCollected(ctx context.Context, cycleID uint) (int64, error) {
	if _, err := s.billingRepo.GetCycleByID(ctx, cycleID); err != nil {
		return 0, err
	}
	return s.billingRepo.SumCollectedByCycle(ctx, cycleID)
}

// CycleDetail is the owner-dashboard view of one cycle
type CycleDetail struct {
	Cycle          *domain.BillingCycle  `json:"cycle"`
	Entries        []*domain.LedgerEntry `json:"entries"`
	CollectedCents int64                 `json:"collected_cents"`
}

// GetOpenCycleDetail returns the pool's open cycle with its entries, or
// ErrCycleNotFound when no cycle is open
func (s *BillingService) GetOpenCycleDetail(ctx context.Context, poolID uint) (*CycleDetail, error) {
	if _, err := s.poolRepo.GetByID(ctx, poolID); err != nil {
		return nil, err
	}
	cycle, err := s.billingRepo.GetOpenCycleByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, domain.ErrCycleNotFound
	}

	entries, err := s.billingRepo.ListEntriesByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	collected, err := s.billingRepo.SumCollectedByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	return &CycleDetail{Cycle: cycle, Entries: entries, CollectedCents: collected}, nil
}
