package repositories

import (
	"context"
	"errors"
	"time"

	"splitsub/internal/adapters/persistence/models"
	"splitsub/internal/core/domain"

	"gorm.io/gorm"
)

// GormPoolRepository handles pool & slot database operations
type GormPoolRepository struct {
	db *gorm.DB
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *gorm.DB) *GormPoolRepository {
	return &GormPoolRepository{db: db}
}

// Create persists the pool and materializes its slot rows in one transaction
func (r *GormPoolRepository) Create(ctx context.Context, pool *domain.Pool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &models.Pool{
			OwnerID:      pool.OwnerID,
			Platform:     pool.Platform,
			PlanName:     pool.PlanName,
			TotalSlots:   pool.TotalSlots,
			PricePerSlot: pool.PricePerSlot,
			InviteCode:   pool.InviteCode,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		slots := make([]models.Slot, pool.TotalSlots)
		for i := range slots {
			slots[i] = models.Slot{PoolID: row.ID}
		}
		if err := tx.Create(&slots).Error; err != nil {
			return err
		}

		pool.ID = row.ID
		pool.CreatedAt = row.CreatedAt
		pool.UpdatedAt = row.UpdatedAt
		return nil
	})
}

// GetByID returns a pool with its derived filled-slot count
func (r *GormPoolRepository) GetByID(ctx context.Context, id uint) (*domain.Pool, error) {
	var row models.Pool
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPoolNotFound
		}
		return nil, err
	}

	filled, err := r.CountOccupied(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return row.ToDomain(filled), nil
}

// List returns pools filtered by platform (empty = all), newest first
func (r *GormPoolRepository) List(ctx context.Context, platform string, offset, limit int) ([]*domain.Pool, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Pool{}).Where("closed_at IS NULL")
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Pool
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	pools := make([]*domain.Pool, 0, len(rows))
	for i := range rows {
		filled, err := r.CountOccupied(ctx, rows[i].ID)
		if err != nil {
			return nil, 0, err
		}
		pools = append(pools, rows[i].ToDomain(filled))
	}
	return pools, total, nil
}

// ListOwnedBy returns all pools owned by a member, including closed ones
func (r *GormPoolRepository) ListOwnedBy(ctx context.Context, ownerID uint) ([]*domain.Pool, error) {
	var rows []models.Pool
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	pools := make([]*domain.Pool, 0, len(rows))
	for i := range rows {
		filled, err := r.CountOccupied(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		pools = append(pools, rows[i].ToDomain(filled))
	}
	return pools, nil
}

// SetModeration flips the moderation flag
func (r *GormPoolRepository) SetModeration(ctx context.Context, poolID uint, flag bool) error {
	res := r.db.WithContext(ctx).Model(&models.Pool{}).Where("id = ?", poolID).Update("under_moderation", flag)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPoolNotFound
	}
	return nil
}

// Close stamps closed_at (archival; the row is kept)
func (r *GormPoolRepository) Close(ctx context.Context, poolID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Pool{}).Where("id = ? AND closed_at IS NULL", poolID).Update("closed_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPoolNotFound
	}
	return nil
}

// FindVacantSlot returns the id of one vacant slot, or ErrPoolFull
func (r *GormPoolRepository) FindVacantSlot(ctx context.Context, poolID uint) (uint, error) {
	var slot models.Slot
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND membership_id IS NULL", poolID).
		Order("id ASC").
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrPoolFull
		}
		return 0, err
	}
	return slot.ID, nil
}

// OccupySlot binds a slot to a membership. The guard on membership_id keeps
// the write a no-op if the slot was taken between find and occupy.
func (r *GormPoolRepository) OccupySlot(ctx context.Context, slotID, membershipID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Slot{}).
		Where("id = ? AND membership_id IS NULL", slotID).
		Update("membership_id", membershipID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPoolFull
	}
	return nil
}

// VacateSlot clears the binding. Reports whether the slot was occupied;
// vacating an already-vacant slot is not an error.
func (r *GormPoolRepository) VacateSlot(ctx context.Context, poolID, slotID uint) (bool, error) {
	var slot models.Slot
	err := r.db.WithContext(ctx).Where("id = ? AND pool_id = ?", slotID, poolID).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, domain.ErrSlotNotFound
		}
		return false, err
	}
	if slot.IsVacant() {
		return false, nil
	}

	res := r.db.WithContext(ctx).Model(&models.Slot{}).Where("id = ?", slotID).Update("membership_id", nil)
	if res.Error != nil {
		return false, res.Error
	}
	return true, nil
}

// FindSlotByMembership returns the slot currently bound to a membership
func (r *GormPoolRepository) FindSlotByMembership(ctx context.Context, membershipID uint) (uint, error) {
	var slot models.Slot
	err := r.db.WithContext(ctx).Where("membership_id = ?", membershipID).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrSlotNotFound
		}
		return 0, err
	}
	return slot.ID, nil
}

// CountOccupied counts occupied slots for a pool
func (r *GormPoolRepository) CountOccupied(ctx context.Context, poolID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Slot{}).
		Where("pool_id = ? AND membership_id IS NOT NULL", poolID).
		Count(&count).Error
	return int(count), err
}

// GormPlatformRepository handles platform master data
type GormPlatformRepository struct {
	db *gorm.DB
}

// NewPlatformRepository creates a new platform repository
func NewPlatformRepository(db *gorm.DB) *GormPlatformRepository {
	return &GormPlatformRepository{db: db}
}

// ListActive returns the active platform catalog
func (r *GormPlatformRepository) ListActive(ctx context.Context) ([]*domain.PlatformInfo, error) {
	var rows []models.Platform
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	infos := make([]*domain.PlatformInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, &domain.PlatformInfo{
			Code:                row.Code,
			Name:                row.Name,
			SuggestedPriceCents: row.SuggestedPriceCents,
		})
	}
	return infos, nil
}

// ExistsByCode checks whether a platform code is known and active
func (r *GormPlatformRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Platform{}).
		Where("code = ? AND is_active = ?", code, true).
		Count(&count).Error
	return count > 0, err
}
