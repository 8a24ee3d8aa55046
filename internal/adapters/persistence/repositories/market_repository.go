package repositories

import (
	"context"
	"errors"

	"splitsub/internal/adapters/persistence/models"
	"splitsub/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMarketRepository handles market snapshot access
type GormMarketRepository struct {
	db *gorm.DB
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *gorm.DB) *GormMarketRepository {
	return &GormMarketRepository{db: db}
}

// GetByPlatform returns the snapshot for a platform
func (r *GormMarketRepository) GetByPlatform(ctx context.Context, platform string) (domain.MarketSnapshot, error) {
	var row models.MarketSnapshot
	err := r.db.WithContext(ctx).Where("platform = ?", platform).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MarketSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.MarketSnapshot{}, err
	}
	return row.ToDomain(), nil
}

// Upsert inserts or refreshes the per-platform snapshot row
func (r *GormMarketRepository) Upsert(ctx context.Context, snap domain.MarketSnapshot) error {
	row := models.MarketSnapshot{
		Platform:      snap.Platform,
		LowCents:      snap.LowCents,
		HighCents:     snap.HighCents,
		AvgCents:      snap.AvgCents,
		SweetMinCents: snap.SweetMin,
		SweetMaxCents: snap.SweetMax,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"low_cents", "high_cents", "avg_cents", "sweet_min_cents", "sweet_max_cents"}),
	}).Create(&row).Error
}
