package repositories

import (
	"context"
	"errors"
	"time"

	"splitsub/internal/adapters/persistence/models"
	"splitsub/internal/core/domain"

	"gorm.io/gorm"
)

// GormBillingRepository handles billing cycle & ledger database operations
type GormBillingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository
func NewBillingRepository(db *gorm.DB) *GormBillingRepository {
	return &GormBillingRepository{db: db}
}

// CreateCycle persists the cycle and its ledger entries atomically
func (r *GormBillingRepository) CreateCycle(ctx context.Context, cycle *domain.BillingCycle, entries []*domain.LedgerEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &models.BillingCycle{
			PoolID:    cycle.PoolID,
			StartDate: cycle.StartDate,
			DueDate:   cycle.DueDate,
			FeeCents:  cycle.FeeCents,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		cycle.ID = row.ID

		if len(entries) == 0 {
			return nil
		}
		rows := make([]models.LedgerEntry, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, models.LedgerEntry{
				CycleID:      row.ID,
				MembershipID: e.MembershipID,
				AmountDue:    e.AmountDue,
				AmountPaid:   0,
				Status:       string(e.Status),
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			entries[i].ID = rows[i].ID
			entries[i].CycleID = row.ID
		}
		return nil
	})
}

// GetCycleByID returns a cycle by id
func (r *GormBillingRepository) GetCycleByID(ctx context.Context, id uint) (*domain.BillingCycle, error) {
	var row models.BillingCycle
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCycleNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// GetOpenCycleByPool returns the unclosed cycle for a pool, or nil
func (r *GormBillingRepository) GetOpenCycleByPool(ctx context.Context, poolID uint) (*domain.BillingCycle, error) {
	var row models.BillingCycle
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND closed_at IS NULL", poolID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// ListExpiredOpenCycles returns open cycles whose due date passed before the
// given instant
func (r *GormBillingRepository) ListExpiredOpenCycles(ctx context.Context, dueBefore time.Time) ([]*domain.BillingCycle, error) {
	var rows []models.BillingCycle
	err := r.db.WithContext(ctx).
		Where("closed_at IS NULL AND due_date < ?", dueBefore).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	cycles := make([]*domain.BillingCycle, 0, len(rows))
	for i := range rows {
		cycles = append(cycles, rows[i].ToDomain())
	}
	return cycles, nil
}

// CloseCycle stamps closed_at and flags the given entries Overdue in one
// transaction
func (r *GormBillingRepository) CloseCycle(ctx context.Context, cycleID uint, at time.Time, overdueEntryIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BillingCycle{}).
			Where("id = ? AND closed_at IS NULL", cycleID).
			Update("closed_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrCycleClosed
		}

		if len(overdueEntryIDs) == 0 {
			return nil
		}
		return tx.Model(&models.LedgerEntry{}).
			Where("id IN ?", overdueEntryIDs).
			Update("status", string(domain.LedgerOverdue)).Error
	})
}

// AppendEntry adds a ledger entry to an already-open cycle
func (r *GormBillingRepository) AppendEntry(ctx context.Context, cycleID uint, entry *domain.LedgerEntry) error {
	row := models.LedgerEntry{
		CycleID:      cycleID,
		MembershipID: entry.MembershipID,
		AmountDue:    entry.AmountDue,
		AmountPaid:   0,
		Status:       string(entry.Status),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	entry.ID = row.ID
	entry.CycleID = cycleID
	return nil
}

// GetEntryByID returns a ledger entry by id
func (r *GormBillingRepository) GetEntryByID(ctx context.Context, id uint) (*domain.LedgerEntry, error) {
	var row models.LedgerEntry
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// ListEntriesByCycle returns all entries of a cycle
func (r *GormBillingRepository) ListEntriesByCycle(ctx context.Context, cycleID uint) ([]*domain.LedgerEntry, error) {
	var rows []models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, nil
}

// ApplyPayment updates the entry and appends the audit event in one
// transaction
func (r *GormBillingRepository) ApplyPayment(ctx context.Context, entryID uint, newPaid int64, status domain.LedgerStatus, event *domain.PaymentEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.LedgerEntry{}).
			Where("id = ?", entryID).
			Updates(map[string]interface{}{
				"amount_paid": newPaid,
				"status":      string(status),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrEntryNotFound
		}

		return tx.Create(&models.PaymentEvent{
			EventID:       event.EventID,
			LedgerEntryID: entryID,
			Amount:        event.Amount,
			ReceivedAt:    event.ReceivedAt,
		}).Error
	})
}

// FindPaymentEvent looks up an audit event by its gateway event id
func (r *GormBillingRepository) FindPaymentEvent(ctx context.Context, eventID string) (*domain.PaymentEvent, error) {
	var row models.PaymentEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// HasAnyPayment reports whether any payment was ever recorded against any
// entry of this membership
func (r *GormBillingRepository) HasAnyPayment(ctx context.Context, membershipID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentEvent{}).
		Joins("JOIN ledger_entries ON ledger_entries.id = payment_events.ledger_entry_id").
		Where("ledger_entries.membership_id = ?", membershipID).
		Count(&count).Error
	return count > 0, err
}

// SumOwedByPool derives total outstanding cents across all cycles of a pool
func (r *GormBillingRepository) SumOwedByPool(ctx context.Context, poolID uint) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("SUM(ledger_entries.amount_due - ledger_entries.amount_paid)").
		Joins("JOIN billing_cycles ON billing_cycles.id = ledger_entries.cycle_id").
		Where("billing_cycles.pool_id = ?", poolID).
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

// SumCollectedByCycle derives total collected cents for one cycle
func (r *GormBillingRepository) SumCollectedByCycle(ctx context.Context, cycleID uint) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("SUM(amount_paid)").
		Where("cycle_id = ?", cycleID).
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

// ListPoolsDueForCycle returns ids of pools with at least one active
// membership and no open cycle
func (r *GormBillingRepository) ListPoolsDueForCycle(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Select("DISTINCT memberships.pool_id").
		Joins("JOIN pools ON pools.id = memberships.pool_id AND pools.closed_at IS NULL").
		Where("memberships.state = ?", string(domain.MembershipActive)).
		Where("memberships.pool_id NOT IN (?)",
			r.db.Model(&models.BillingCycle{}).Select("pool_id").Where("closed_at IS NULL"),
		).
		Scan(&ids).Error
	return ids, err
}
