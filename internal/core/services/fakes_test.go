package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"splitsub/internal/clock"
	"splitsub/internal/core/domain"
)

// In-memory repository fakes. Each fake guards its maps with a mutex so the
// concurrency tests stay race-free; linearizability itself comes from the
// service-level locks under test.

type fakePoolRepo struct {
	mu       sync.Mutex
	pools    map[uint]*domain.Pool
	slots    map[uint]*fakeSlot
	nextPool uint
	nextSlot uint
}

type fakeSlot struct {
	id           uint
	poolID       uint
	membershipID *uint
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{
		pools: make(map[uint]*domain.Pool),
		slots: make(map[uint]*fakeSlot),
	}
}

func (r *fakePoolRepo) Create(_ context.Context, pool *domain.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPool++
	pool.ID = r.nextPool
	cp := *pool
	r.pools[pool.ID] = &cp
	for i := 0; i < pool.TotalSlots; i++ {
		r.nextSlot++
		r.slots[r.nextSlot] = &fakeSlot{id: r.nextSlot, poolID: pool.ID}
	}
	return nil
}

func (r *fakePoolRepo) GetByID(_ context.Context, id uint) (*domain.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[id]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	cp := *p
	cp.FilledSlots = r.countOccupiedLocked(id)
	return &cp, nil
}

func (r *fakePoolRepo) List(_ context.Context, platform string, offset, limit int) ([]*domain.Pool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Pool
	for _, p := range r.pools {
		if p.ClosedAt != nil {
			continue
		}
		if platform != "" && p.Platform != platform {
			continue
		}
		cp := *p
		cp.FilledSlots = r.countOccupiedLocked(p.ID)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	total := int64(len(out))
	if offset > len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakePoolRepo) ListOwnedBy(_ context.Context, ownerID uint) ([]*domain.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Pool
	for _, p := range r.pools {
		if p.OwnerID == ownerID {
			cp := *p
			cp.FilledSlots = r.countOccupiedLocked(p.ID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePoolRepo) SetModeration(_ context.Context, poolID uint, flag bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[poolID]
	if !ok {
		return domain.ErrPoolNotFound
	}
	p.UnderModeration = flag
	return nil
}

func (r *fakePoolRepo) Close(_ context.Context, poolID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[poolID]
	if !ok {
		return domain.ErrPoolNotFound
	}
	p.ClosedAt = &at
	return nil
}

func (r *fakePoolRepo) FindVacantSlot(_ context.Context, poolID uint) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint, 0, len(r.slots))
	for id := range r.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s := r.slots[id]
		if s.poolID == poolID && s.membershipID == nil {
			return s.id, nil
		}
	}
	return 0, domain.ErrPoolFull
}

func (r *fakePoolRepo) OccupySlot(_ context.Context, slotID, membershipID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.membershipID != nil {
		return domain.ErrPoolFull
	}
	id := membershipID
	s.membershipID = &id
	return nil
}

func (r *fakePoolRepo) VacateSlot(_ context.Context, poolID, slotID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.poolID != poolID {
		return false, domain.ErrSlotNotFound
	}
	if s.membershipID == nil {
		return false, nil
	}
	s.membershipID = nil
	return true, nil
}

func (r *fakePoolRepo) FindSlotByMembership(_ context.Context, membershipID uint) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.membershipID != nil && *s.membershipID == membershipID {
			return s.id, nil
		}
	}
	return 0, domain.ErrSlotNotFound
}

func (r *fakePoolRepo) CountOccupied(_ context.Context, poolID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countOccupiedLocked(poolID), nil
}

func (r *fakePoolRepo) countOccupiedLocked(poolID uint) int {
	n := 0
	for _, s := range r.slots {
		if s.poolID == poolID && s.membershipID != nil {
			n++
		}
	}
	return n
}

type fakePlatformRepo struct {
	codes map[string]bool
}

func newFakePlatformRepo(codes ...string) *fakePlatformRepo {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return &fakePlatformRepo{codes: m}
}

func (r *fakePlatformRepo) ListActive(_ context.Context) ([]*domain.PlatformInfo, error) {
	var out []*domain.PlatformInfo
	for c := range r.codes {
		out = append(out, &domain.PlatformInfo{Code: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *fakePlatformRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	return r.codes[code], nil
}

type fakeMembershipRepo struct {
	mu          sync.Mutex
	memberships map[uint]*domain.Membership
	nextID      uint
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{memberships: make(map[uint]*domain.Membership)}
}

func (r *fakeMembershipRepo) Create(_ context.Context, m *domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	m.ID = r.nextID
	cp := *m
	r.memberships[m.ID] = &cp
	return nil
}

func (r *fakeMembershipRepo) GetByID(_ context.Context, id uint) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memberships[id]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMembershipRepo) FindNonTerminal(_ context.Context, poolID, memberID uint) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.memberships {
		if m.PoolID == poolID && m.MemberID == memberID && !m.State.IsTerminal() {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMembershipRepo) UpdateState(_ context.Context, id uint, state domain.MembershipState, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memberships[id]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	m.State = state
	if reason != "" {
		m.Reason = reason
	}
	return nil
}

func (r *fakeMembershipRepo) ListByPool(_ context.Context, poolID uint) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Membership
	for _, m := range r.memberships {
		if m.PoolID == poolID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMembershipRepo) ListActiveByPool(_ context.Context, poolID uint) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Membership
	for _, m := range r.memberships {
		if m.PoolID == poolID && m.State == domain.MembershipActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMembershipRepo) CountActiveByPool(_ context.Context, poolID uint) (int64, error) {
	actives, _ := r.ListActiveByPool(context.Background(), poolID)
	return int64(len(actives)), nil
}

type fakeRuleRepo struct {
	mu   sync.Mutex
	sets map[uint][]domain.RuleToggle
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{sets: make(map[uint][]domain.RuleToggle)}
}

func (r *fakeRuleRepo) GetByPool(_ context.Context, poolID uint) (domain.RuleSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RuleSet{PoolID: poolID, Rules: append([]domain.RuleToggle(nil), r.sets[poolID]...)}, nil
}

func (r *fakeRuleRepo) Replace(_ context.Context, poolID uint, toggles []domain.RuleToggle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[poolID] = append([]domain.RuleToggle(nil), toggles...)
	return nil
}

type fakeBillingRepo struct {
	mu        sync.Mutex
	cycles    map[uint]*domain.BillingCycle
	entries   map[uint]*domain.LedgerEntry
	events    map[string]*domain.PaymentEvent
	nextCycle uint
	nextEntry uint
	nextEvent uint
	duePools  []uint
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		cycles:  make(map[uint]*domain.BillingCycle),
		entries: make(map[uint]*domain.LedgerEntry),
		events:  make(map[string]*domain.PaymentEvent),
	}
}

func (r *fakeBillingRepo) CreateCycle(_ context.Context, cycle *domain.BillingCycle, entries []*domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextCycle++
	cycle.ID = r.nextCycle
	cp := *cycle
	r.cycles[cycle.ID] = &cp

	for _, e := range entries {
		r.nextEntry++
		e.ID = r.nextEntry
		e.CycleID = cycle.ID
		ce := *e
		r.entries[e.ID] = &ce
	}
	return nil
}

func (r *fakeBillingRepo) GetCycleByID(_ context.Context, id uint) (*domain.BillingCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cycles[id]
	if !ok {
		return nil, domain.ErrCycleNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeBillingRepo) GetOpenCycleByPool(_ context.Context, poolID uint) (*domain.BillingCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.cycles {
		if c.PoolID == poolID && c.ClosedAt == nil {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBillingRepo) ListExpiredOpenCycles(_ context.Context, dueBefore time.Time) ([]*domain.BillingCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.BillingCycle
	for _, c := range r.cycles {
		if c.ClosedAt == nil && c.DueDate.Before(dueBefore) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBillingRepo) CloseCycle(_ context.Context, cycleID uint, at time.Time, overdueEntryIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cycles[cycleID]
	if !ok {
		return domain.ErrCycleNotFound
	}
	if c.ClosedAt != nil {
		return domain.ErrCycleClosed
	}
	c.ClosedAt = &at
	for _, id := range overdueEntryIDs {
		if e, ok := r.entries[id]; ok {
			e.Status = domain.LedgerOverdue
		}
	}
	return nil
}

func (r *fakeBillingRepo) AppendEntry(_ context.Context, cycleID uint, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cycles[cycleID]; !ok {
		return domain.ErrCycleNotFound
	}
	r.nextEntry++
	entry.ID = r.nextEntry
	entry.CycleID = cycleID
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *fakeBillingRepo) GetEntryByID(_ context.Context, id uint) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeBillingRepo) ListEntriesByCycle(_ context.Context, cycleID uint) ([]*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LedgerEntry
	for _, e := range r.entries {
		if e.CycleID == cycleID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBillingRepo) ApplyPayment(_ context.Context, entryID uint, newPaid int64, status domain.LedgerStatus, event *domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[entryID]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.AmountPaid = newPaid
	e.Status = status

	r.nextEvent++
	ev := *event
	ev.ID = r.nextEvent
	r.events[event.EventID] = &ev
	return nil
}

func (r *fakeBillingRepo) FindPaymentEvent(_ context.Context, eventID string) (*domain.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[eventID]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (r *fakeBillingRepo) HasAnyPayment(_ context.Context, membershipID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.events {
		if e, ok := r.entries[ev.LedgerEntryID]; ok && e.MembershipID == membershipID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBillingRepo) SumOwedByPool(_ context.Context, poolID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, e := range r.entries {
		if c, ok := r.cycles[e.CycleID]; ok && c.PoolID == poolID {
			total += e.AmountDue - e.AmountPaid
		}
	}
	return total, nil
}

func (r *fakeBillingRepo) SumCollectedByCycle(_ context.Context, cycleID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, e := range r.entries {
		if e.CycleID == cycleID {
			total += e.AmountPaid
		}
	}
	return total, nil
}

func (r *fakeBillingRepo) ListPoolsDueForCycle(_ context.Context) ([]uint, error) {
	// Pools are registered externally in tests via duePools.
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.duePools...), nil
}

type fakeMarketRepo struct {
	snaps map[string]domain.MarketSnapshot
}

func newFakeMarketRepo() *fakeMarketRepo {
	return &fakeMarketRepo{snaps: make(map[string]domain.MarketSnapshot)}
}

func (r *fakeMarketRepo) GetByPlatform(_ context.Context, platform string) (domain.MarketSnapshot, error) {
	snap, ok := r.snaps[platform]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (r *fakeMarketRepo) Upsert(_ context.Context, snap domain.MarketSnapshot) error {
	r.snaps[snap.Platform] = snap
	return nil
}

// testEnv wires the full service graph over fakes with a fixed clock and a
// disabled notifier.
type testEnv struct {
	now         time.Time
	poolRepo    *fakePoolRepo
	memberRepo  *fakeMembershipRepo
	ruleRepo    *fakeRuleRepo
	billingRepo *fakeBillingRepo
	marketRepo  *fakeMarketRepo

	pools       *PoolService
	memberships *MembershipService
	rules       *RuleService
	billing     *BillingService
	pricing     *PricingService
	sweep       *BillingSweepService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		now:         time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		poolRepo:    newFakePoolRepo(),
		memberRepo:  newFakeMembershipRepo(),
		ruleRepo:    newFakeRuleRepo(),
		billingRepo: newFakeBillingRepo(),
		marketRepo:  newFakeMarketRepo(),
	}

	clk := clock.NewFixed(env.now)
	notify := NewNotificationService("")
	platforms := newFakePlatformRepo("netflix", "spotify", "youtube")

	env.pools = NewPoolService(env.poolRepo, platforms, env.memberRepo, clk)
	env.memberships = NewMembershipService(env.memberRepo, env.poolRepo, env.ruleRepo, env.pools, notify, clk)
	env.rules = NewRuleService(env.ruleRepo, env.poolRepo)
	env.billing = NewBillingService(env.billingRepo, env.memberRepo, env.poolRepo, env.memberships, notify, clk)
	env.memberships.AttachScheduler(env.billing)
	env.pricing = NewPricingService(env.marketRepo)
	env.sweep = NewBillingSweepService(env.billing, env.billingRepo, clk, 3)
	return env
}

// mustCreatePool seeds a pool owned by ownerID
func (env *testEnv) mustCreatePool(t testing.TB, ownerID uint, slots int, price int64) *domain.Pool {
	t.Helper()
	pool, err := env.pools.CreatePool(context.Background(), ownerID, &CreatePoolInput{
		Platform:     "netflix",
		PlanName:     "Premium 4K",
		TotalSlots:   slots,
		PricePerSlot: price,
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return pool
}

// mustActiveMember seeds an Active membership holding a slot
func (env *testEnv) mustActiveMember(t testing.TB, ownerID, poolID, memberID uint) *domain.Membership {
	t.Helper()
	ctx := context.Background()

	m, err := env.memberships.SubmitJoinRequest(ctx, poolID, memberID, nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.memberships.Approve(ctx, ownerID, m.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := env.memberRepo.UpdateState(ctx, m.ID, domain.MembershipActive, ""); err != nil {
		t.Fatalf("activate: %v", err)
	}
	m, err = env.memberRepo.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return m
}
