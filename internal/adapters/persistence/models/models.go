package models

import (
	"time"

	"gorm.io/gorm"

	"splitsub/internal/core/domain"
)

// ============================================================
// Master Tables
// ============================================================

// Platform represents the platforms master table (seeded)
type Platform struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Code                string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name                string    `gorm:"size:100;not null" json:"name"`
	SuggestedPriceCents int64     `gorm:"not null;default:0" json:"suggested_price_cents"`
	IsActive            bool      `gorm:"default:true" json:"is_active"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Platform) TableName() string {
	return "platforms"
}

// MarketSnapshot represents market_snapshots table (one row per platform,
// refreshed by an external analytics job)
type MarketSnapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Platform      string    `gorm:"size:50;uniqueIndex;not null" json:"platform"`
	LowCents      int64     `gorm:"not null" json:"low_cents"`
	HighCents     int64     `gorm:"not null" json:"high_cents"`
	AvgCents      int64     `gorm:"not null" json:"avg_cents"`
	SweetMinCents int64     `gorm:"not null" json:"sweet_min_cents"`
	SweetMaxCents int64     `gorm:"not null" json:"sweet_max_cents"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}

// ToDomain converts to the domain snapshot
func (m *MarketSnapshot) ToDomain() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Platform:  m.Platform,
		LowCents:  m.LowCents,
		HighCents: m.HighCents,
		AvgCents:  m.AvgCents,
		SweetMin:  m.SweetMinCents,
		SweetMax:  m.SweetMaxCents,
	}
}

// ============================================================
// Pool & Slot Tables
// ============================================================

// Pool represents pools table
type Pool struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OwnerID         uint           `gorm:"index;not null" json:"owner_id"`
	Platform        string         `gorm:"size:50;index;not null" json:"platform"`
	PlanName        string         `gorm:"size:100;not null" json:"plan_name"`
	TotalSlots      int            `gorm:"not null" json:"total_slots"`
	PricePerSlot    int64          `gorm:"not null" json:"price_per_slot_cents"`
	InviteCode      string         `gorm:"size:36;uniqueIndex;not null" json:"invite_code"`
	UnderModeration bool           `gorm:"default:false" json:"under_moderation"`
	ClosedAt        *time.Time     `json:"closed_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Pool) TableName() string {
	return "pools"
}

// ToDomain converts to the domain pool. filledSlots is counted separately
// because it is derived, never stored on the row.
func (p *Pool) ToDomain(filledSlots int) *domain.Pool {
	return &domain.Pool{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Platform:        p.Platform,
		PlanName:        p.PlanName,
		TotalSlots:      p.TotalSlots,
		PricePerSlot:    p.PricePerSlot,
		InviteCode:      p.InviteCode,
		FilledSlots:     filledSlots,
		UnderModeration: p.UnderModeration,
		ClosedAt:        p.ClosedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// Slot represents slots table. A slot belongs to exactly one pool and is
// vacant when membership_id is NULL.
type Slot struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PoolID       uint      `gorm:"index;not null" json:"pool_id"`
	MembershipID *uint     `gorm:"index" json:"membership_id"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Slot) TableName() string {
	return "slots"
}

// IsVacant reports whether the slot is unoccupied
func (s *Slot) IsVacant() bool {
	return s.MembershipID == nil
}

// ============================================================
// Membership Tables
// ============================================================

// Membership represents memberships table
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PoolID    uint      `gorm:"index:idx_pool_member;not null" json:"pool_id"`
	MemberID  uint      `gorm:"index:idx_pool_member;not null" json:"member_id"`
	State     string    `gorm:"size:20;index;not null" json:"state"`
	Reason    string    `gorm:"size:50" json:"reason,omitempty"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}

// ToDomain converts to the domain membership
func (m *Membership) ToDomain() *domain.Membership {
	return &domain.Membership{
		ID:       m.ID,
		PoolID:   m.PoolID,
		MemberID: m.MemberID,
		State:    domain.MembershipState(m.State),
		Reason:   m.Reason,
		JoinedAt: m.JoinedAt,
	}
}

// AutoApproveRule represents auto_approve_rules table. Kind/Value is the
// flattened storage of the domain rule variant.
type AutoApproveRule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PoolID    uint      `gorm:"index;not null" json:"pool_id"`
	Position  int       `gorm:"not null" json:"position"`
	Kind      string    `gorm:"size:40;not null" json:"kind"`
	Value     float64   `gorm:"not null;default:0" json:"value"`
	Enabled   bool      `gorm:"default:false" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutoApproveRule) TableName() string {
	return "auto_approve_rules"
}

// ============================================================
// Billing Tables
// ============================================================

// BillingCycle represents billing_cycles table
type BillingCycle struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PoolID    uint       `gorm:"index;not null" json:"pool_id"`
	StartDate time.Time  `gorm:"not null" json:"start_date"`
	DueDate   time.Time  `gorm:"not null" json:"due_date"`
	FeeCents  int64      `gorm:"not null;default:0" json:"fee_cents"`
	ClosedAt  *time.Time `gorm:"index" json:"closed_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (BillingCycle) TableName() string {
	return "billing_cycles"
}

// ToDomain converts to the domain cycle
func (c *BillingCycle) ToDomain() *domain.BillingCycle {
	return &domain.BillingCycle{
		ID:        c.ID,
		PoolID:    c.PoolID,
		StartDate: c.StartDate,
		DueDate:   c.DueDate,
		FeeCents:  c.FeeCents,
		ClosedAt:  c.ClosedAt,
	}
}

// LedgerEntry represents ledger_entries table (append-only; rows are never
// deleted, only amount_paid/status move forward)
type LedgerEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CycleID      uint      `gorm:"index;not null" json:"cycle_id"`
	MembershipID uint      `gorm:"index;not null" json:"membership_id"`
	AmountDue    int64     `gorm:"not null" json:"amount_due_cents"`
	AmountPaid   int64     `gorm:"not null;default:0" json:"amount_paid_cents"`
	Status       string    `gorm:"size:20;index;not null" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// ToDomain converts to the domain entry
func (e *LedgerEntry) ToDomain() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:           e.ID,
		CycleID:      e.CycleID,
		MembershipID: e.MembershipID,
		AmountDue:    e.AmountDue,
		AmountPaid:   e.AmountPaid,
		Status:       domain.LedgerStatus(e.Status),
	}
}

// PaymentEvent represents payment_events table (append-only audit trail,
// event_id is the gateway idempotency key)
type PaymentEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EventID       string    `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	LedgerEntryID uint      `gorm:"index;not null" json:"ledger_entry_id"`
	Amount        int64     `gorm:"not null" json:"amount_cents"`
	ReceivedAt    time.Time `gorm:"not null" json:"received_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}

// ToDomain converts to the domain event
func (p *PaymentEvent) ToDomain() *domain.PaymentEvent {
	return &domain.PaymentEvent{
		ID:            p.ID,
		EventID:       p.EventID,
		LedgerEntryID: p.LedgerEntryID,
		Amount:        p.Amount,
		ReceivedAt:    p.ReceivedAt,
	}
}

// AutoMigrate creates/updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Platform{},
		&MarketSnapshot{},
		&Pool{},
		&Slot{},
		&Membership{},
		&AutoApproveRule{},
		&BillingCycle{},
		&LedgerEntry{},
		&PaymentEvent{},
	)
}
