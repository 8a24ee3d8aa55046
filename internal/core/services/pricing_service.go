package services

import (
	"context"

	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/core/domain"
)

// PricingService is read-only analytics over aggregated pool price data.
// Advisory only; it never mutates state.
type PricingService struct {
	marketRepo repositories.MarketRepository
}

// NewPricingService creates a new pricing service
func NewPricingService(marketRepo repositories.MarketRepository) *PricingService {
	return &PricingService{marketRepo: marketRepo}
}

// Recommendation is the advisory result for one price point
type Recommendation struct {
	Platform      string           `json:"platform"`
	PriceCents    int64            `json:"price_cents"`
	Band          domain.PriceBand `json:"band"`
	AvgCents      int64            `json:"avg_cents"`
	SweetMinCents int64            `json:"sweet_min_cents"`
	SweetMaxCents int64            `json:"sweet_max_cents"`
}

// RefreshSnapshot replaces the platform's market snapshot. Called when the
// external analytics job delivers a new aggregate.
func (s *PricingService) RefreshSnapshot(ctx context.Context, snap domain.MarketSnapshot) error {
	if snap.Platform == "" {
		return domain.ErrInvalidInput
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.marketRepo.Upsert(ctx, snap)
}

// Recommend classifies a price-per-slot against the platform's market
// snapshot
func (s *PricingService) Recommend(ctx context.Context, platform string, pricePerSlot int64) (*Recommendation, error) {
	if pricePerSlot <= 0 {
		return nil, domain.ErrInvalidInput
	}

	snap, err := s.marketRepo.GetByPlatform(ctx, platform)
	if err != nil {
		return nil, err
	}

	band, err := snap.Classify(pricePerSlot)
	if err != nil {
		return nil, err
	}

	return &Recommendation{
		Platform:      platform,
		PriceCents:    pricePerSlot,
		Band:          band,
		AvgCents:      snap.AvgCents,
		SweetMinCents: snap.SweetMin,
		SweetMaxCents: snap.SweetMax,
	}, nil
}
