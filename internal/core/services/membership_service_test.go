package services

import (
	"context"
	"sync"
	"testing"

	"splitsub/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func TestSubmitJoinRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates requested membership", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)
		require.Equal(t, domain.MembershipRequested, m.State)
		require.Equal(t, env.now, m.JoinedAt)

		// no slot is held before approval
		loaded, err := env.pools.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		require.Equal(t, 0, loaded.FilledSlots)
	})

	t.Run("duplicate non-terminal membership rejected", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		_, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)
		_, err = env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.ErrorIs(t, err, domain.ErrAlreadyMember)
	})

	t.Run("terminal membership allows a fresh request", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)
		require.NoError(t, env.memberships.Reject(ctx, 1, m.ID, ""))

		m2, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)
		require.NotEqual(t, m.ID, m2.ID)
	})

	t.Run("full pool refuses requests", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 1, 499)
		env.mustActiveMember(t, 1, pool.ID, 50)

		_, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 51, nil)
		require.ErrorIs(t, err, domain.ErrPoolFull)
	})

	t.Run("auto-approves when profile passes rule set", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)
		require.NoError(t, env.ruleRepo.Replace(ctx, pool.ID, []domain.RuleToggle{
			{Rule: domain.MinRating{Min: 4.0}, Enabled: true},
		}))

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, &domain.RequesterProfile{Rating: 4.5})
		require.NoError(t, err)
		require.Equal(t, domain.MembershipApproved, m.State)

		loaded, err := env.pools.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		require.Equal(t, 1, loaded.FilledSlots)
	})

	t.Run("failing profile stays requested for manual review", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)
		require.NoError(t, env.ruleRepo.Replace(ctx, pool.ID, []domain.RuleToggle{
			{Rule: domain.MinRating{Min: 4.0}, Enabled: true},
		}))

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, &domain.RequesterProfile{Rating: 3.9})
		require.NoError(t, err)
		require.Equal(t, domain.MembershipRequested, m.State)
	})

	t.Run("concurrent duplicate requests create one membership", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		const attempts = 8
		var wg sync.WaitGroup
		results := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
			}(i)
		}
		wg.Wait()

		var created, duplicate int
		for _, err := range results {
			if err == nil {
				created++
			} else {
				require.ErrorIs(t, err, domain.ErrAlreadyMember)
				duplicate++
			}
		}
		require.Equal(t, 1, created)
		require.Equal(t, attempts-1, duplicate)

		all, err := env.memberships.ListPoolMemberships(ctx, pool.ID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.Equal(t, domain.MembershipRequested, all[0].State)
	})

	t.Run("profile with empty rule set stays requested", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, &domain.RequesterProfile{Rating: 5, Verified: true})
		require.NoError(t, err)
		require.Equal(t, domain.MembershipRequested, m.State)
	})
}

func TestApprove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("approve reserves a slot", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)

		approved, err := env.memberships.Approve(ctx, 1, m.ID)
		require.NoError(t, err)
		require.Equal(t, domain.MembershipApproved, approved.State)

		loaded, err := env.pools.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		require.Equal(t, 1, loaded.FilledSlots)
	})

	t.Run("only the owner may approve", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)

		_, err = env.memberships.Approve(ctx, 99, m.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("approve is not repeatable", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)
		_, err = env.memberships.Approve(ctx, 1, m.ID)
		require.NoError(t, err)

		_, err = env.memberships.Approve(ctx, 1, m.ID)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("losing the race to fullness rejects with reason", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)

		// fill 3 of 4 slots
		for memberID := uint(10); memberID < 13; memberID++ {
			env.mustActiveMember(t, 1, pool.ID, memberID)
		}

		a, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
		require.NoError(t, err)
		b, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 51, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i, id := range []uint{a.ID, b.ID} {
			wg.Add(1)
			go func(i int, id uint) {
				defer wg.Done()
				_, results[i] = env.memberships.Approve(ctx, 1, id)
			}(i, id)
		}
		wg.Wait()

		// exactly one winner; the loser observes PoolFull
		var winners, losers int
		for _, err := range results {
			if err == nil {
				winners++
			} else {
				require.ErrorIs(t, err, domain.ErrPoolFull)
				losers++
			}
		}
		require.Equal(t, 1, winners)
		require.Equal(t, 1, losers)

		// the losing membership is terminally rejected with the race reason
		ma, _ := env.memberRepo.GetByID(ctx, a.ID)
		mb, _ := env.memberRepo.GetByID(ctx, b.ID)
		states := map[domain.MembershipState]*domain.Membership{ma.State: ma, mb.State: mb}
		require.Contains(t, states, domain.MembershipApproved)
		require.Contains(t, states, domain.MembershipRejected)
		require.Equal(t, domain.ReasonPoolFilledDuringReview, states[domain.MembershipRejected].Reason)

		loaded, err := env.pools.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		require.Equal(t, 4, loaded.FilledSlots)
	})
}

func TestActivateOnFirstPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	pool := env.mustCreatePool(t, 1, 4, 499)

	m, err := env.memberships.SubmitJoinRequest(ctx, pool.ID, 50, nil)
	require.NoError(t, err)

	// Requested memberships cannot activate
	require.ErrorIs(t, env.memberships.ActivateOnFirstPayment(ctx, m.ID), domain.ErrInvalidTransition)

	_, err = env.memberships.Approve(ctx, 1, m.ID)
	require.NoError(t, err)

	require.NoError(t, env.memberships.ActivateOnFirstPayment(ctx, m.ID))
	loaded, err := env.memberRepo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MembershipActive, loaded.State)

	// idempotent for already-active memberships
	require.NoError(t, env.memberships.ActivateOnFirstPayment(ctx, m.ID))
}

func TestRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("owner removal releases the slot", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)
		m := env.mustActiveMember(t, 1, pool.ID, 50)

		require.NoError(t, env.memberships.Remove(ctx, 1, m.ID))

		loaded, err := env.memberRepo.GetByID(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, domain.MembershipRemoved, loaded.State)
		require.Equal(t, domain.ReasonOwnerRemoved, loaded.Reason)

		p, err := env.pools.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		require.Equal(t, 0, p.FilledSlots)
	})

	t.Run("self removal records member-left", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)
		m := env.mustActiveMember(t, 1, pool.ID, 50)

		require.NoError(t, env.memberships.Remove(ctx, 50, m.ID))

		loaded, err := env.memberRepo.GetByID(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ReasonMemberLeft, loaded.Reason)
	})

	t.Run("strangers cannot remove", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)
		m := env.mustActiveMember(t, 1, pool.ID, 50)

		require.ErrorIs(t, env.memberships.Remove(ctx, 99, m.ID), domain.ErrForbidden)
	})

	t.Run("terminal memberships stay terminal", func(t *testing.T) {
		env := newTestEnv()
		pool := env.mustCreatePool(t, 1, 4, 499)
		m := env.mustActiveMember(t, 1, pool.ID, 50)

		require.NoError(t, env.memberships.Remove(ctx, 1, m.ID))
		require.ErrorIs(t, env.memberships.Remove(ctx, 1, m.ID), domain.ErrInvalidTransition)
	})
}

func TestRuleServicePreview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	pool := env.mustCreatePool(t, 1, 4, 499)

	require.NoError(t, env.rules.UpdateRuleSet(ctx, 1, pool.ID, []RuleInput{
		{Kind: string(domain.RuleMinRating), Value: 4.0, Enabled: true},
		{Kind: string(domain.RuleVerifiedOnly), Enabled: false},
	}))

	decision, err := env.rules.Preview(ctx, pool.ID, domain.RequesterProfile{Rating: 4.5})
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAutoApprove, decision)

	decision, err = env.rules.Preview(ctx, pool.ID, domain.RequesterProfile{Rating: 3.9})
	require.NoError(t, err)
	require.Equal(t, domain.DecisionManualReview, decision)

	// preview never touches membership state
	members, err := env.memberships.ListPoolMemberships(ctx, pool.ID)
	require.NoError(t, err)
	require.Empty(t, members)

	t.Run("update rejects unknown kinds", func(t *testing.T) {
		err := env.rules.UpdateRuleSet(ctx, 1, pool.ID, []RuleInput{{Kind: "MAX_KARMA", Enabled: true}})
		require.ErrorIs(t, err, domain.ErrUnknownRuleKind)
	})

	t.Run("update is owner-only", func(t *testing.T) {
		err := env.rules.UpdateRuleSet(ctx, 99, pool.ID, nil)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("get returns ordered views", func(t *testing.T) {
		views, err := env.rules.GetRuleSet(ctx, pool.ID)
		require.NoError(t, err)
		require.Len(t, views, 2)
		require.Equal(t, string(domain.RuleMinRating), views[0].Kind)
		require.True(t, views[0].Enabled)
		require.False(t, views[1].Enabled)
	})
}
