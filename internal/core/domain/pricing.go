package domain

// PriceBand classifies a price-per-slot against the market
type PriceBand string

const (
	BandBelowAverage PriceBand = "BELOW_AVERAGE"
	BandSweetSpot    PriceBand = "SWEET_SPOT"
	BandAboveAverage PriceBand = "ABOVE_AVERAGE"
)

// MarketSnapshot is externally-supplied aggregate price data for one
// platform. All amounts are cents. Read-only input; this core never
// recomputes or mutates it.
type MarketSnapshot struct {
	Platform  string
	LowCents  int64
	HighCents int64
	AvgCents  int64
	SweetMin  int64
	SweetMax  int64
}

// Validate rejects an inconsistent snapshot
func (s MarketSnapshot) Validate() error {
	if s.LowCents > s.HighCents {
		return ErrInvalidSnapshot
	}
	return nil
}

// Classify places a price-per-slot into a band. The sweet-spot band wins
// over the plain average comparison: a sweet-spot price is also competitive
// but is reported as the more specific band.
func (s MarketSnapshot) Classify(pricePerSlot int64) (PriceBand, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if pricePerSlot >= s.SweetMin && pricePerSlot <= s.SweetMax {
		return BandSweetSpot, nil
	}
	if pricePerSlot <= s.AvgCents {
		return BandBelowAverage, nil
	}
	return BandAboveAverage, nil
}
