package repositories

import (
	"context"
	"fmt"

	"splitsub/internal/adapters/persistence/models"
	"splitsub/internal/core/domain"

	"gorm.io/gorm"
)

// GormRuleRepository handles auto-approve rule set persistence
type GormRuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// GetByPool loads the ordered rule set for a pool. A pool with no stored
// rows gets an empty set, which always evaluates to manual review.
func (r *GormRuleRepository) GetByPool(ctx context.Context, poolID uint) (domain.RuleSet, error) {
	var rows []models.AutoApproveRule
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return domain.RuleSet{}, err
	}

	rs := domain.RuleSet{PoolID: poolID, Rules: make([]domain.RuleToggle, 0, len(rows))}
	for _, row := range rows {
		rule, err := domain.DecodeRule(domain.RuleKind(row.Kind), row.Value)
		if err != nil {
			return domain.RuleSet{}, fmt.Errorf("pool %d rule %d: %w", poolID, row.ID, err)
		}
		rs.Rules = append(rs.Rules, domain.RuleToggle{Rule: rule, Enabled: row.Enabled})
	}
	return rs, nil
}

// Replace swaps the pool's rule set for the given toggles in one transaction,
// preserving the caller's ordering
func (r *GormRuleRepository) Replace(ctx context.Context, poolID uint, toggles []domain.RuleToggle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pool_id = ?", poolID).Delete(&models.AutoApproveRule{}).Error; err != nil {
			return err
		}
		if len(toggles) == 0 {
			return nil
		}

		rows := make([]models.AutoApproveRule, 0, len(toggles))
		for i, t := range toggles {
			kind, value := domain.EncodeRule(t.Rule)
			rows = append(rows, models.AutoApproveRule{
				PoolID:   poolID,
				Position: i,
				Kind:     string(kind),
				Value:    value,
				Enabled:  t.Enabled,
			})
		}
		return tx.Create(&rows).Error
	})
}
