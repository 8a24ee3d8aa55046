package services

import (
	"context"
	"testing"
	"time"

	"splitsub/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func TestSweepForceClosesExpiredCycles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	pool := env.mustCreatePool(t, 1, 4, 499)
	m := env.mustActiveMember(t, 1, pool.ID, 50)

	// due 2026-01-01, grace 3 days, fixed now 2026-01-15: past grace
	expired, _, err := env.billing.OpenCycle(ctx, pool.ID, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	env.sweep.Sweep(ctx)

	closed, err := env.billingRepo.GetCycleByID(ctx, expired.ID)
	require.NoError(t, err)
	require.True(t, closed.IsClosed())

	entry := entryFor(t, env, expired.ID, m.ID)
	require.Equal(t, domain.LedgerOverdue, entry.Status)
}

func TestSweepKeepsCyclesInsideGrace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	pool := env.mustCreatePool(t, 1, 4, 499)
	env.mustActiveMember(t, 1, pool.ID, 50)

	// due 2026-02-01, well ahead of the fixed now
	cycle, _, err := env.billing.OpenCycle(ctx, pool.ID, cycleStart)
	require.NoError(t, err)

	env.sweep.Sweep(ctx)

	loaded, err := env.billingRepo.GetCycleByID(ctx, cycle.ID)
	require.NoError(t, err)
	require.False(t, loaded.IsClosed())
}

func TestSweepOpensDueCycles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	pool := env.mustCreatePool(t, 1, 4, 499)
	env.mustActiveMember(t, 1, pool.ID, 50)
	env.billingRepo.duePools = []uint{pool.ID}

	env.sweep.Sweep(ctx)

	detail, err := env.billing.GetOpenCycleDetail(ctx, pool.ID)
	require.NoError(t, err)
	// opened at the current calendar month boundary
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), detail.Cycle.StartDate)
	require.Len(t, detail.Entries, 1)
}

func TestSweepRollsAnExpiredCycleForward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	pool := env.mustCreatePool(t, 1, 4, 499)
	env.mustActiveMember(t, 1, pool.ID, 50)
	env.billingRepo.duePools = []uint{pool.ID}

	expired, _, err := env.billing.OpenCycle(ctx, pool.ID, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// one pass both closes the stale cycle and opens the next one
	env.sweep.Sweep(ctx)

	closed, err := env.billingRepo.GetCycleByID(ctx, expired.ID)
	require.NoError(t, err)
	require.True(t, closed.IsClosed())

	detail, err := env.billing.GetOpenCycleDetail(ctx, pool.ID)
	require.NoError(t, err)
	require.NotEqual(t, expired.ID, detail.Cycle.ID)
}
