package services

import (
	"context"
	"log"
	"sync"

	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/clock"
	"splitsub/internal/core/domain"
)

// MembershipService turns join requests into slot reservations and drives
// the membership state machine:
// Requested → {Approved → Active, Rejected}; Active → Removed.
type MembershipService struct {
	memberRepo    repositories.MembershipRepository
	poolRepo      repositories.PoolRepository
	ruleRepo      repositories.RuleRepository
	poolService   *PoolService
	notifyService *NotificationService
	clock         clock.Clock
	scheduler     CycleScheduler

	// one mutex per pool id; the at-most-one-non-terminal-membership check
	// and the create run in the same critical section, so duplicate join
	// requests for one (pool, member) cannot both slip past the check
	joinLocks sync.Map
}

// CycleScheduler bills an accepted membership into the pool's open cycle.
// Implemented by BillingService; attached after construction because billing
// also calls back into this service on first payment.
type CycleScheduler interface {
	ScheduleMembership(ctx context.Context, poolID, membershipID uint) error
}

// NewMembershipService creates a new membership service
func NewMembershipService(
	memberRepo repositories.MembershipRepository,
	poolRepo repositories.PoolRepository,
	ruleRepo repositories.RuleRepository,
	poolService *PoolService,
	notifyService *NotificationService,
	clk clock.Clock,
) *MembershipService {
	return &MembershipService{
		memberRepo:    memberRepo,
		poolRepo:      poolRepo,
		ruleRepo:      ruleRepo,
		poolService:   poolService,
		notifyService: notifyService,
		clock:         clk,
	}
}

// SubmitJoinRequest creates a Requested membership. Vacancy is checked but
// not reserved; reservation happens only on approval so un-reviewed requests
// never hold slots. When a requester profile is supplied the owner's rule
// set is evaluated and an AutoApprove decision promotes immediately.
func (s *MembershipService) SubmitJoinRequest(ctx context.Context, poolID, memberID uint, profile *domain.RequesterProfile) (*domain.Membership, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	switch pool.Status() {
	case domain.PoolStatusClosed:
		return nil, domain.ErrPoolClosed
	case domain.PoolStatusFull:
		return nil, domain.ErrPoolFull
	}

	m, err := s.createRequested(ctx, poolID, memberID)
	if err != nil {
		return nil, err
	}
	log.Printf("📨 Join request %d: member %d → pool %d", m.ID, memberID, poolID)

	if profile == nil {
		return m, nil
	}

	ruleSet, err := s.ruleRepo.GetByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if ruleSet.Evaluate(*profile) != domain.DecisionAutoApprove {
		return m, nil
	}

	log.Printf("🤖 Join request %d auto-approved by rule set", m.ID)
	if err := s.promote(ctx, m); err != nil {
		if err == domain.ErrPoolFull {
			// Lost the race to fullness; the membership is already
			// terminally rejected. The request itself succeeded.
			return s.memberRepo.GetByID(ctx, m.ID)
		}
		return nil, err
	}
	return s.memberRepo.GetByID(ctx, m.ID)
}

// lockFor returns the mutex serializing join-request creation for one pool
func (s *MembershipService) lockFor(poolID uint) *sync.Mutex {
	mu, _ := s.joinLocks.LoadOrStore(poolID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// createRequested checks and creates inside one critical section: a member
// holds at most one non-terminal membership per pool, even under concurrent
// duplicate requests
func (s *MembershipService) createRequested(ctx context.Context, poolID, memberID uint) (*domain.Membership, error) {
	mu := s.lockFor(poolID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.memberRepo.FindNonTerminal(ctx, poolID, memberID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyMember
	}

	m := &domain.Membership{
		PoolID:   poolID,
		MemberID: memberID,
		State:    domain.MembershipRequested,
		JoinedAt: s.clock.Now(),
	}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Approve promotes a Requested membership by owner action
func (s *MembershipService) Approve(ctx context.Context, ownerID, membershipID uint) (*domain.Membership, error) {
	m, err := s.memberRepo.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	pool, err := s.poolRepo.GetByID(ctx, m.PoolID)
	if err != nil {
		return nil, err
	}
	if pool.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	if m.State != domain.MembershipRequested {
		return nil, domain.ErrInvalidTransition
	}

	if err := s.promote(ctx, m); err != nil {
		return nil, err
	}
	return s.memberRepo.GetByID(ctx, membershipID)
}

// promote runs Requested → Approved → ReserveSlot. Approval is not a
// guarantee of a slot: losing the reservation race flips the membership to
// Rejected with reason PoolFilledDuringReview and surfaces ErrPoolFull.
func (s *MembershipService) promote(ctx context.Context, m *domain.Membership) error {
	if err := s.memberRepo.UpdateState(ctx, m.ID, domain.MembershipApproved, ""); err != nil {
		return err
	}

	if _, err := s.poolService.ReserveSlot(ctx, m.PoolID, m.ID); err != nil {
		if err == domain.ErrPoolFull {
			if uerr := s.memberRepo.UpdateState(ctx, m.ID, domain.MembershipRejected, domain.ReasonPoolFilledDuringReview); uerr != nil {
				return uerr
			}
			log.Printf("⛔ Membership %d rejected: pool %d filled during review", m.ID, m.PoolID)
			s.notifyService.NotifyMembershipRejected(m.PoolID, m.MemberID, domain.ReasonPoolFilledDuringReview)
		}
		return err
	}

	log.Printf("✅ Membership %d approved (pool %d, member %d)", m.ID, m.PoolID, m.MemberID)
	s.notifyService.NotifyMembershipApproved(m.PoolID, m.MemberID)

	if s.scheduler != nil {
		// Acceptance bills the member into the pool's open cycle, if any.
		// A scheduling failure must not roll back the approval.
		if err := s.scheduler.ScheduleMembership(ctx, m.PoolID, m.ID); err != nil {
			log.Printf("❌ Failed to schedule membership %d into open cycle: %v", m.ID, err)
		}
	}
	return nil
}

// AttachScheduler wires the billing side in after both services exist
func (s *MembershipService) AttachScheduler(scheduler CycleScheduler) {
	s.scheduler = scheduler
}

// ActivateOnFirstPayment transitions Approved → Active. Access is granted
// only once the first billing obligation is acknowledged by a payment.
// Idempotent for already-Active memberships.
func (s *MembershipService) ActivateOnFirstPayment(ctx context.Context, membershipID uint) error {
	m, err := s.memberRepo.GetByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if m.State == domain.MembershipActive {
		return nil
	}
	if m.State != domain.MembershipApproved {
		return domain.ErrInvalidTransition
	}

	if err := s.memberRepo.UpdateState(ctx, membershipID, domain.MembershipActive, ""); err != nil {
		return err
	}
	log.Printf("🔓 Membership %d activated on first payment", membershipID)
	return nil
}

// Reject terminally rejects a Requested membership by owner action
func (s *MembershipService) Reject(ctx context.Context, ownerID, membershipID uint, reason string) error {
	m, err := s.memberRepo.GetByID(ctx, membershipID)
	if err != nil {
		return err
	}
	pool, err := s.poolRepo.GetByID(ctx, m.PoolID)
	if err != nil {
		return err
	}
	if pool.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	if m.State != domain.MembershipRequested {
		return domain.ErrInvalidTransition
	}

	if reason == "" {
		reason = domain.ReasonOwnerRejected
	}
	if err := s.memberRepo.UpdateState(ctx, membershipID, domain.MembershipRejected, reason); err != nil {
		return err
	}
	log.Printf("⛔ Membership %d rejected (%s)", membershipID, reason)
	s.notifyService.NotifyMembershipRejected(m.PoolID, m.MemberID, reason)
	return nil
}

// Remove terminally removes a membership (owner- or self-initiated) and
// releases its slot
func (s *MembershipService) Remove(ctx context.Context, actorID, membershipID uint) error {
	m, err := s.memberRepo.GetByID(ctx, membershipID)
	if err != nil {
		return err
	}
	pool, err := s.poolRepo.GetByID(ctx, m.PoolID)
	if err != nil {
		return err
	}

	var reason string
	switch actorID {
	case pool.OwnerID:
		reason = domain.ReasonOwnerRemoved
	case m.MemberID:
		reason = domain.ReasonMemberLeft
	default:
		return domain.ErrForbidden
	}

	if m.State.IsTerminal() {
		return domain.ErrInvalidTransition
	}

	if err := s.memberRepo.UpdateState(ctx, membershipID, domain.MembershipRemoved, reason); err != nil {
		return err
	}
	if err := s.poolService.ReleaseSlotByMembership(ctx, m.PoolID, membershipID); err != nil {
		return err
	}
	log.Printf("👋 Membership %d removed (%s)", membershipID, reason)
	return nil
}

// GetMembership returns a membership by id
func (s *MembershipService) GetMembership(ctx context.Context, membershipID uint) (*domain.Membership, error) {
	return s.memberRepo.GetByID(ctx, membershipID)
}

// ListPoolMemberships returns all memberships of a pool
func (s *MembershipService) ListPoolMemberships(ctx context.Context, poolID uint) ([]*domain.Membership, error) {
	if _, err := s.poolRepo.GetByID(ctx, poolID); err != nil {
		return nil, err
	}
	return s.memberRepo.ListByPool(ctx, poolID)
}
