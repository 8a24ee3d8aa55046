package services

import (
	"context"
	"testing"

	"splitsub/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func TestRecommend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv()
	require.NoError(t, env.marketRepo.Upsert(ctx, domain.MarketSnapshot{
		Platform:  "netflix",
		LowCents:  299,
		HighCents: 899,
		AvgCents:  549,
		SweetMin:  449,
		SweetMax:  599,
	}))

	cases := []struct {
		name  string
		price int64
		band  domain.PriceBand
	}{
		{"below average", 300, domain.BandBelowAverage},
		{"sweet spot", 499, domain.BandSweetSpot},
		{"sweet spot above average still sweet", 580, domain.BandSweetSpot},
		{"above average", 700, domain.BandAboveAverage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := env.pricing.Recommend(ctx, "netflix", tc.price)
			require.NoError(t, err)
			require.Equal(t, tc.band, rec.Band)
			require.Equal(t, tc.price, rec.PriceCents)
			require.Equal(t, int64(549), rec.AvgCents)
		})
	}

	t.Run("unknown platform", func(t *testing.T) {
		_, err := env.pricing.Recommend(ctx, "hulu", 499)
		require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("non-positive price", func(t *testing.T) {
		_, err := env.pricing.Recommend(ctx, "netflix", 0)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("refresh validates before storing", func(t *testing.T) {
		require.ErrorIs(t, env.pricing.RefreshSnapshot(ctx, domain.MarketSnapshot{}), domain.ErrInvalidInput)
		require.ErrorIs(t, env.pricing.RefreshSnapshot(ctx, domain.MarketSnapshot{
			Platform: "youtube", LowCents: 900, HighCents: 300,
		}), domain.ErrInvalidSnapshot)

		require.NoError(t, env.pricing.RefreshSnapshot(ctx, domain.MarketSnapshot{
			Platform: "youtube", LowCents: 249, HighCents: 649, AvgCents: 399, SweetMin: 349, SweetMax: 449,
		}))
		rec, err := env.pricing.Recommend(ctx, "youtube", 399)
		require.NoError(t, err)
		require.Equal(t, domain.BandSweetSpot, rec.Band)
	})

	t.Run("inconsistent snapshot rejected", func(t *testing.T) {
		require.NoError(t, env.marketRepo.Upsert(ctx, domain.MarketSnapshot{
			Platform: "spotify", LowCents: 900, HighCents: 300,
		}))
		_, err := env.pricing.Recommend(ctx, "spotify", 499)
		require.ErrorIs(t, err, domain.ErrInvalidSnapshot)
	})
}
