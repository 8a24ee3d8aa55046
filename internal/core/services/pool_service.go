package services

import (
	"context"
	"log"
	"sync"

	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/clock"
	"splitsub/internal/core/domain"

	"github.com/google/uuid"
)

// PoolService owns pool definitions and slot occupancy
type PoolService struct {
	poolRepo     repositories.PoolRepository
	platformRepo repositories.PlatformRepository
	memberRepo   repositories.MembershipRepository
	clock        clock.Clock

	// one mutex per pool id; pools proceed fully in parallel
	locks sync.Map
}

// NewPoolService creates a new pool service
func NewPoolService(poolRepo repositories.PoolRepository, platformRepo repositories.PlatformRepository, memberRepo repositories.MembershipRepository, clk clock.Clock) *PoolService {
	return &PoolService{
		poolRepo:     poolRepo,
		platformRepo: platformRepo,
		memberRepo:   memberRepo,
		clock:        clk,
	}
}

// lockFor returns the mutex serializing slot mutations for one pool
func (s *PoolService) lockFor(poolID uint) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(poolID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreatePoolInput represents a create-pool request
type CreatePoolInput struct {
	Platform     string `json:"platform" validate:"required"`
	PlanName     string `json:"plan_name" validate:"required"`
	TotalSlots   int    `json:"total_slots" validate:"required"`
	PricePerSlot int64  `json:"price_per_slot_cents" validate:"required"`
}

// CreatePool creates a pool with its slots
func (s *PoolService) CreatePool(ctx context.Context, ownerID uint, input *CreatePoolInput) (*domain.Pool, error) {
	if input.TotalSlots < 1 || input.PricePerSlot <= 0 || input.PlanName == "" {
		return nil, domain.ErrInvalidInput
	}

	known, err := s.platformRepo.ExistsByCode(ctx, input.Platform)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, domain.ErrPlatformUnknown
	}

	pool := &domain.Pool{
		OwnerID:      ownerID,
		Platform:     input.Platform,
		PlanName:     input.PlanName,
		TotalSlots:   input.TotalSlots,
		PricePerSlot: input.PricePerSlot,
		InviteCode:   uuid.NewString(),
	}
	if err := s.poolRepo.Create(ctx, pool); err != nil {
		return nil, err
	}

	log.Printf("✅ Pool created: #%d %s/%s (%d slots, owner %d)", pool.ID, pool.Platform, pool.PlanName, pool.TotalSlots, ownerID)
	return pool, nil
}

// GetPool returns a pool by id
func (s *PoolService) GetPool(ctx context.Context, poolID uint) (*domain.Pool, error) {
	return s.poolRepo.GetByID(ctx, poolID)
}

// ListPools returns open pools, optionally filtered by platform
func (s *PoolService) ListPools(ctx context.Context, platform string, offset, limit int) ([]*domain.Pool, int64, error) {
	return s.poolRepo.List(ctx, platform, offset, limit)
}

// ListOwnedPools returns all pools owned by a member
func (s *PoolService) ListOwnedPools(ctx context.Context, ownerID uint) ([]*domain.Pool, error) {
	return s.poolRepo.ListOwnedBy(ctx, ownerID)
}

// ReserveSlot binds one vacant slot to a membership. Linearizable per pool:
// the vacancy check and the binding happen under the pool's mutex, so
// concurrent callers racing for the last slot get exactly one winner and the
// losers observe ErrPoolFull.
func (s *PoolService) ReserveSlot(ctx context.Context, poolID, membershipID uint) (uint, error) {
	mu := s.lockFor(poolID)
	mu.Lock()
	defer mu.Unlock()

	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return 0, err
	}
	if pool.Status() == domain.PoolStatusClosed {
		return 0, domain.ErrPoolClosed
	}

	slotID, err := s.poolRepo.FindVacantSlot(ctx, poolID)
	if err != nil {
		return 0, err
	}
	if err := s.poolRepo.OccupySlot(ctx, slotID, membershipID); err != nil {
		return 0, err
	}

	log.Printf("🎟️ Slot %d reserved in pool %d (membership %d)", slotID, poolID, membershipID)
	return slotID, nil
}

// ReleaseSlot vacates a slot. Idempotent: releasing an already-vacant slot
// is a no-op, not an error.
func (s *PoolService) ReleaseSlot(ctx context.Context, poolID, slotID uint) error {
	mu := s.lockFor(poolID)
	mu.Lock()
	defer mu.Unlock()

	released, err := s.poolRepo.VacateSlot(ctx, poolID, slotID)
	if err != nil {
		return err
	}
	if released {
		log.Printf("♻️ Slot %d released in pool %d", slotID, poolID)
	}
	return nil
}

// ReleaseSlotByMembership vacates whichever slot a membership occupies.
// No-op when the membership holds no slot.
func (s *PoolService) ReleaseSlotByMembership(ctx context.Context, poolID, membershipID uint) error {
	slotID, err := s.poolRepo.FindSlotByMembership(ctx, membershipID)
	if err != nil {
		if err == domain.ErrSlotNotFound {
			return nil
		}
		return err
	}
	return s.ReleaseSlot(ctx, poolID, slotID)
}

// ClosePool archives a pool. Only the owner may close, and only with zero
// active members.
func (s *PoolService) ClosePool(ctx context.Context, ownerID, poolID uint) error {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	if pool.Status() == domain.PoolStatusClosed {
		return domain.ErrPoolClosed
	}

	active, err := s.memberRepo.CountActiveByPool(ctx, poolID)
	if err != nil {
		return err
	}
	if active > 0 {
		return domain.ErrPoolHasMembers
	}

	if err := s.poolRepo.Close(ctx, poolID, s.clock.Now()); err != nil {
		return err
	}
	log.Printf("🗄️ Pool %d closed by owner %d", poolID, ownerID)
	return nil
}

// SetModeration flips the moderation flag; the derived status becomes
// UnderReview while the flag is set
func (s *PoolService) SetModeration(ctx context.Context, poolID uint, flag bool) error {
	return s.poolRepo.SetModeration(ctx, poolID, flag)
}

// ListPlatforms returns the seeded platform catalog
func (s *PoolService) ListPlatforms(ctx context.Context) ([]*domain.PlatformInfo, error) {
	return s.platformRepo.ListActive(ctx)
}
