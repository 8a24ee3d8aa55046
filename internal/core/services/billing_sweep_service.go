package services

import (
	"context"
	"log"
	"time"

	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/clock"

	"github.com/robfig/cron/v3"
)

// BillingSweepService rolls billing cycles forward at calendar boundaries:
// it force-closes cycles whose due date plus grace has passed (flagging the
// remainder Overdue) and opens the next cycle for every pool with at least
// one Active membership. This is the only place that auto-recovers by
// forcing a close instead of surfacing an error.
type BillingSweepService struct {
	billingService *BillingService
	billingRepo    repositories.BillingRepository
	clock          clock.Clock
	graceDays      int
	cron           *cron.Cron
}

// NewBillingSweepService creates a new sweep service
func NewBillingSweepService(billingService *BillingService, billingRepo repositories.BillingRepository, clk clock.Clock, graceDays int) *BillingSweepService {
	return &BillingSweepService{
		billingService: billingService,
		billingRepo:    billingRepo,
		clock:          clk,
		graceDays:      graceDays,
	}
}

// Start schedules the daily sweep
func (s *BillingSweepService) Start() {
	s.cron = cron.New()
	// 02:00 daily, after the payment gateway's nightly settlement
	s.cron.AddFunc("0 2 * * *", func() {
		s.Sweep(context.Background())
	})
	s.cron.Start()
	log.Println("🚀 BillingSweepService started (daily at 02:00)")
}

// Stop halts the scheduler
func (s *BillingSweepService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	log.Println("🛑 BillingSweepService stopped")
}

// Sweep runs one full pass. Exported so operators (and tests) can trigger
// it outside the schedule.
func (s *BillingSweepService) Sweep(ctx context.Context) {
	s.closeExpiredCycles(ctx)
	s.openDueCycles(ctx)
}

func (s *BillingSweepService) closeExpiredCycles(ctx context.Context) {
	cutoff := s.clock.Now().AddDate(0, 0, -s.graceDays)

	cycles, err := s.billingRepo.ListExpiredOpenCycles(ctx, cutoff)
	if err != nil {
		log.Printf("❌ Sweep: expired-cycle query error: %v", err)
		return
	}

	for _, c := range cycles {
		if err := s.billingService.CloseCycle(ctx, c.ID, true); err != nil {
			log.Printf("❌ Sweep: force-close cycle %d error: %v", c.ID, err)
			continue
		}
		log.Printf("⏰ Sweep: cycle %d force-closed past grace period", c.ID)
	}

	if len(cycles) > 0 {
		log.Printf("⏰ Sweep: force-closed %d expired cycles", len(cycles))
	}
}

func (s *BillingSweepService) openDueCycles(ctx context.Context) {
	now := s.clock.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	poolIDs, err := s.billingRepo.ListPoolsDueForCycle(ctx)
	if err != nil {
		log.Printf("❌ Sweep: due-pool query error: %v", err)
		return
	}

	opened := 0
	for _, poolID := range poolIDs {
		if _, _, err := s.billingService.OpenCycle(ctx, poolID, monthStart); err != nil {
			log.Printf("❌ Sweep: open cycle for pool %d error: %v", poolID, err)
			continue
		}
		opened++
	}

	if opened > 0 {
		log.Printf("🧾 Sweep: opened %d cycles for %s", opened, monthStart.Format("2006-01"))
	}
}
