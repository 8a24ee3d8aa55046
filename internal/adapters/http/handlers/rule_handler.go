package handlers

import (
	"strconv"

	"splitsub/internal/core/domain"
	"splitsub/internal/core/services"
	"splitsub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RuleHandler handles auto-approve rule set endpoints
type RuleHandler struct {
	ruleService *services.RuleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(ruleService *services.RuleService) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
	}
}

// ============================================================
// GET /api/v1/pools/:id/rules
// ============================================================
func (h *RuleHandler) GetRuleSet(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	views, err := h.ruleService.GetRuleSet(c.Context(), uint(poolID))
	if err != nil {
		if err == domain.ErrPoolNotFound {
			return response.NotFound(c, "Pool not found")
		}
		return response.InternalServerError(c, "Failed to get rule set")
	}
	return response.Success(c, "Rule set retrieved", views)
}

// ============================================================
// PUT /api/v1/pools/:id/rules — replace the owner's rule set
// ============================================================
func (h *RuleHandler) UpdateRuleSet(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var input struct {
		Rules []services.RuleInput `json:"rules"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.ruleService.UpdateRuleSet(c.Context(), ownerID, uint(poolID), input.Rules); err != nil {
		switch err {
		case domain.ErrPoolNotFound:
			return response.NotFound(c, "Pool not found")
		case domain.ErrForbidden:
			return response.Forbidden(c, "Only the pool owner may edit rules")
		case domain.ErrUnknownRuleKind:
			return response.UnprocessableEntity(c, "Unknown rule kind")
		default:
			return response.InternalServerError(c, "Failed to update rule set")
		}
	}
	return response.Success(c, "Rule set updated", nil)
}

// ============================================================
// POST /api/v1/pools/:id/rules/preview — dry-run a profile
// ============================================================
func (h *RuleHandler) Preview(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var profile domain.RequesterProfile
	if err := c.BodyParser(&profile); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	decision, err := h.ruleService.Preview(c.Context(), uint(poolID), profile)
	if err != nil {
		if err == domain.ErrPoolNotFound {
			return response.NotFound(c, "Pool not found")
		}
		return response.InternalServerError(c, "Failed to preview rules")
	}
	return response.Success(c, "Preview evaluated", fiber.Map{"decision": decision})
}
