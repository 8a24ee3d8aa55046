package repositories

import (
	"context"
	"errors"

	"splitsub/internal/adapters/persistence/models"
	"splitsub/internal/core/domain"

	"gorm.io/gorm"
)

var nonTerminalStates = []string{
	string(domain.MembershipRequested),
	string(domain.MembershipApproved),
	string(domain.MembershipActive),
}

// GormMembershipRepository handles membership database operations
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// Create persists a new membership
func (r *GormMembershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	row := &models.Membership{
		PoolID:   m.PoolID,
		MemberID: m.MemberID,
		State:    string(m.State),
		Reason:   m.Reason,
		JoinedAt: m.JoinedAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	m.ID = row.ID
	return nil
}

// GetByID returns a membership by id
func (r *GormMembershipRepository) GetByID(ctx context.Context, id uint) (*domain.Membership, error) {
	var row models.Membership
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// FindNonTerminal returns the single Requested/Approved/Active membership
// for the (pool, member) pair, or nil when none exists
func (r *GormMembershipRepository) FindNonTerminal(ctx context.Context, poolID, memberID uint) (*domain.Membership, error) {
	var row models.Membership
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND member_id = ? AND state IN ?", poolID, memberID, nonTerminalStates).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// UpdateState moves a membership to a new state with an optional reason
func (r *GormMembershipRepository) UpdateState(ctx context.Context, id uint, state domain.MembershipState, reason string) error {
	updates := map[string]interface{}{
		"state": string(state),
	}
	if reason != "" {
		updates["reason"] = reason
	}
	res := r.db.WithContext(ctx).Model(&models.Membership{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

// ListByPool returns all memberships of a pool, oldest first
func (r *GormMembershipRepository) ListByPool(ctx context.Context, poolID uint) ([]*domain.Membership, error) {
	var rows []models.Membership
	if err := r.db.WithContext(ctx).Where("pool_id = ?", poolID).Order("joined_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainMemberships(rows), nil
}

// ListActiveByPool returns Active memberships of a pool
func (r *GormMembershipRepository) ListActiveByPool(ctx context.Context, poolID uint) ([]*domain.Membership, error) {
	var rows []models.Membership
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND state = ?", poolID, string(domain.MembershipActive)).
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainMemberships(rows), nil
}

// CountActiveByPool counts Active memberships of a pool
func (r *GormMembershipRepository) CountActiveByPool(ctx context.Context, poolID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("pool_id = ? AND state = ?", poolID, string(domain.MembershipActive)).
		Count(&count).Error
	return count, err
}

func toDomainMemberships(rows []models.Membership) []*domain.Membership {
	out := make([]*domain.Membership, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}
