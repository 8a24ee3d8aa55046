package handlers

import (
	"splitsub/internal/core/domain"
	"splitsub/internal/core/services"
	"splitsub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PricingHandler handles pricing intelligence endpoints
type PricingHandler struct {
	pricingService *services.PricingService
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(pricingService *services.PricingService) *PricingHandler {
	return &PricingHandler{
		pricingService: pricingService,
	}
}

// ============================================================
// GET /api/v1/pricing/recommend?platform=netflix&price_cents=499
// ============================================================
func (h *PricingHandler) Recommend(c *fiber.Ctx) error {
	platform := c.Query("platform")
	if platform == "" {
		return response.BadRequest(c, "platform is required")
	}
	price := int64(c.QueryInt("price_cents", 0))

	rec, err := h.pricingService.Recommend(c.Context(), platform, price)
	if err != nil {
		switch err {
		case domain.ErrInvalidInput:
			return response.BadRequest(c, "price_cents must be positive")
		case domain.ErrSnapshotNotFound:
			return response.NotFound(c, "No market data for this platform")
		case domain.ErrInvalidSnapshot:
			return response.InternalServerError(c, "Market data is inconsistent")
		default:
			return response.InternalServerError(c, "Failed to compute recommendation")
		}
	}
	return response.Success(c, "Recommendation computed", rec)
}

// ============================================================
// PUT /api/v1/admin/market-snapshots — analytics refresh (admin)
// ============================================================
func (h *PricingHandler) RefreshSnapshot(c *fiber.Ctx) error {
	var input struct {
		Platform  string `json:"platform"`
		LowCents  int64  `json:"low_cents"`
		HighCents int64  `json:"high_cents"`
		AvgCents  int64  `json:"avg_cents"`
		SweetMin  int64  `json:"sweet_min_cents"`
		SweetMax  int64  `json:"sweet_max_cents"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	snap := domain.MarketSnapshot{
		Platform:  input.Platform,
		LowCents:  input.LowCents,
		HighCents: input.HighCents,
		AvgCents:  input.AvgCents,
		SweetMin:  input.SweetMin,
		SweetMax:  input.SweetMax,
	}
	if err := h.pricingService.RefreshSnapshot(c.Context(), snap); err != nil {
		switch err {
		case domain.ErrInvalidInput:
			return response.BadRequest(c, "platform is required")
		case domain.ErrInvalidSnapshot:
			return response.UnprocessableEntity(c, "low_cents must not exceed high_cents")
		default:
			return response.InternalServerError(c, "Failed to refresh snapshot")
		}
	}
	return response.Success(c, "Market snapshot refreshed", nil)
}
