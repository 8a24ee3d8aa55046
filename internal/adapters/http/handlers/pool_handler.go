package handlers

import (
	"strconv"

	"splitsub/internal/core/domain"
	"splitsub/internal/core/services"
	"splitsub/internal/pkg/pagination"
	"splitsub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PoolHandler handles pool & slot registry endpoints
type PoolHandler struct {
	poolService    *services.PoolService
	billingService *services.BillingService
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(poolService *services.PoolService, billingService *services.BillingService) *PoolHandler {
	return &PoolHandler{
		poolService:    poolService,
		billingService: billingService,
	}
}

// ============================================================
// POST /api/v1/pools — open a new sharing pool
// ============================================================

// CreatePool creates a pool owned by the authenticated member
// @Summary Create pool
// @Description Open a new subscription-sharing pool
// @Tags Pools
// @Accept json
// @Produce json
// @Param body body services.CreatePoolInput true "Pool definition"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Security BearerAuth
// @Router /api/v1/pools [post]
func (h *PoolHandler) CreatePool(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}

	var input services.CreatePoolInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	pool, err := h.poolService.CreatePool(c.Context(), ownerID, &input)
	if err != nil {
		switch err {
		case domain.ErrInvalidInput:
			return response.BadRequest(c, "total_slots and price_per_slot_cents must be positive")
		case domain.ErrPlatformUnknown:
			return response.BadRequest(c, "Unknown platform")
		default:
			return response.InternalServerError(c, "Failed to create pool")
		}
	}
	return response.Created(c, "Pool created", poolView(pool))
}

// ============================================================
// GET /api/v1/pools — browse open pools
// ============================================================
func (h *PoolHandler) ListPools(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	platform := c.Query("platform")

	pools, total, err := h.poolService.ListPools(c.Context(), platform, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list pools")
	}

	views := make([]fiber.Map, 0, len(pools))
	for _, p := range pools {
		views = append(views, poolView(p))
	}
	return response.Success(c, "Pools retrieved", pagination.NewResponse(views, params, total))
}

// ============================================================
// GET /api/v1/pools/:id — pool detail with derived status
// ============================================================
func (h *PoolHandler) GetPool(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	pool, err := h.poolService.GetPool(c.Context(), uint(poolID))
	if err != nil {
		if err == domain.ErrPoolNotFound {
			return response.NotFound(c, "Pool not found")
		}
		return response.InternalServerError(c, "Failed to get pool")
	}
	return response.Success(c, "Pool retrieved", poolView(pool))
}

// ============================================================
// GET /api/v1/pools/mine — owner dashboard listing
// ============================================================
func (h *PoolHandler) MyPools(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}

	pools, err := h.poolService.ListOwnedPools(c.Context(), ownerID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list pools")
	}

	views := make([]fiber.Map, 0, len(pools))
	for _, p := range pools {
		v := poolView(p)
		// owners also see total outstanding across cycles
		if owed, err := h.billingService.TotalOwed(c.Context(), p.ID); err == nil {
			v["total_owed_cents"] = owed
		}
		views = append(views, v)
	}
	return response.Success(c, "My pools retrieved", views)
}

// ============================================================
// POST /api/v1/pools/:id/close — owner closes an emptied pool
// ============================================================
func (h *PoolHandler) ClosePool(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	if err := h.poolService.ClosePool(c.Context(), ownerID, uint(poolID)); err != nil {
		switch err {
		case domain.ErrPoolNotFound:
			return response.NotFound(c, "Pool not found")
		case domain.ErrForbidden:
			return response.Forbidden(c, "Only the owner may close a pool")
		case domain.ErrPoolHasMembers:
			return response.PreconditionFailed(c, "Pool still has active members")
		case domain.ErrPoolClosed:
			return response.Conflict(c, "Pool is already closed")
		default:
			return response.InternalServerError(c, "Failed to close pool")
		}
	}
	return response.Success(c, "Pool closed", nil)
}

// ============================================================
// PATCH /api/v1/pools/:id/moderation — admin moderation flag
// ============================================================
func (h *PoolHandler) SetModeration(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var input struct {
		UnderModeration bool `json:"under_moderation"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.poolService.SetModeration(c.Context(), uint(poolID), input.UnderModeration); err != nil {
		if err == domain.ErrPoolNotFound {
			return response.NotFound(c, "Pool not found")
		}
		return response.InternalServerError(c, "Failed to update moderation flag")
	}
	return response.Success(c, "Moderation flag updated", nil)
}

// ============================================================
// GET /api/v1/platforms — platform master data
// ============================================================
func (h *PoolHandler) ListPlatforms(c *fiber.Ctx) error {
	platforms, err := h.poolService.ListPlatforms(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list platforms")
	}
	return response.Success(c, "Platforms retrieved", platforms)
}

// poolView serializes a pool with its derived status
func poolView(p *domain.Pool) fiber.Map {
	return fiber.Map{
		"id":                   p.ID,
		"owner_id":             p.OwnerID,
		"platform":             p.Platform,
		"plan_name":            p.PlanName,
		"total_slots":          p.TotalSlots,
		"filled_slots":         p.FilledSlots,
		"price_per_slot_cents": p.PricePerSlot,
		"invite_code":          p.InviteCode,
		"status":               p.Status(),
		"created_at":           p.CreatedAt,
	}
}
