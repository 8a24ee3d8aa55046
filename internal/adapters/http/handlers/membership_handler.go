package handlers

import (
	"strconv"

	"splitsub/internal/core/domain"
	"splitsub/internal/core/services"
	"splitsub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// MembershipHandler handles membership lifecycle endpoints
type MembershipHandler struct {
	membershipService *services.MembershipService
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(membershipService *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
	}
}

// joinRequest optionally carries the requester profile supplied by the
// identity platform; without it the request always waits for manual review
type joinRequest struct {
	Profile *domain.RequesterProfile `json:"profile"`
}

// ============================================================
// POST /api/v1/pools/:id/join — submit a join request
// ============================================================

// Join submits a join request for a pool
// @Summary Join pool
// @Description Submit a join request; auto-approved when the owner's rule set passes
// @Tags Memberships
// @Accept json
// @Produce json
// @Param id path int true "Pool ID"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Security BearerAuth
// @Router /api/v1/pools/{id}/join [post]
func (h *MembershipHandler) Join(c *fiber.Ctx) error {
	memberID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var input joinRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	m, err := h.membershipService.SubmitJoinRequest(c.Context(), uint(poolID), memberID, input.Profile)
	if err != nil {
		switch err {
		case domain.ErrPoolNotFound:
			return response.NotFound(c, "Pool not found")
		case domain.ErrPoolClosed:
			return response.Conflict(c, "Pool is closed")
		case domain.ErrPoolFull:
			return response.Conflict(c, "Pool is full")
		case domain.ErrAlreadyMember:
			return response.Conflict(c, "A non-terminal membership already exists for this pool")
		default:
			return response.InternalServerError(c, "Failed to submit join request")
		}
	}
	return response.Created(c, "Join request submitted", m)
}

// ============================================================
// POST /api/v1/memberships/:id/approve — owner approves
// ============================================================
func (h *MembershipHandler) Approve(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}
	membershipID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	m, err := h.membershipService.Approve(c.Context(), ownerID, uint(membershipID))
	if err != nil {
		switch err {
		case domain.ErrMembershipNotFound:
			return response.NotFound(c, "Membership not found")
		case domain.ErrForbidden:
			return response.Forbidden(c, "Only the pool owner may approve")
		case domain.ErrInvalidTransition:
			return response.Conflict(c, "Membership is not awaiting review")
		case domain.ErrPoolFull:
			// the pool filled during review; the request is terminally rejected
			return response.Conflict(c, "Pool filled during review")
		default:
			return response.InternalServerError(c, "Failed to approve membership")
		}
	}
	return response.Success(c, "Membership approved", m)
}

// ============================================================
// POST /api/v1/memberships/:id/reject — owner rejects
// ============================================================
func (h *MembershipHandler) Reject(c *fiber.Ctx) error {
	ownerID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}
	membershipID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	if err := h.membershipService.Reject(c.Context(), ownerID, uint(membershipID), input.Reason); err != nil {
		switch err {
		case domain.ErrMembershipNotFound:
			return response.NotFound(c, "Membership not found")
		case domain.ErrForbidden:
			return response.Forbidden(c, "Only the pool owner may reject")
		case domain.ErrInvalidTransition:
			return response.Conflict(c, "Membership is not awaiting review")
		default:
			return response.InternalServerError(c, "Failed to reject membership")
		}
	}
	return response.Success(c, "Membership rejected", nil)
}

// ============================================================
// DELETE /api/v1/memberships/:id — owner removes or member leaves
// ============================================================
func (h *MembershipHandler) Remove(c *fiber.Ctx) error {
	actorID, ok := c.Locals("memberID").(uint)
	if !ok {
		return response.Unauthorized(c, "Member not authenticated")
	}
	membershipID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	if err := h.membershipService.Remove(c.Context(), actorID, uint(membershipID)); err != nil {
		switch err {
		case domain.ErrMembershipNotFound:
			return response.NotFound(c, "Membership not found")
		case domain.ErrForbidden:
			return response.Forbidden(c, "Only the pool owner or the member may remove")
		case domain.ErrInvalidTransition:
			return response.Conflict(c, "Membership is already terminal")
		default:
			return response.InternalServerError(c, "Failed to remove membership")
		}
	}
	return response.Success(c, "Membership removed", nil)
}

// ============================================================
// GET /api/v1/memberships/:id
// ============================================================
func (h *MembershipHandler) GetMembership(c *fiber.Ctx) error {
	membershipID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	m, err := h.membershipService.GetMembership(c.Context(), uint(membershipID))
	if err != nil {
		if err == domain.ErrMembershipNotFound {
			return response.NotFound(c, "Membership not found")
		}
		return response.InternalServerError(c, "Failed to get membership")
	}
	return response.Success(c, "Membership retrieved", m)
}

// ============================================================
// GET /api/v1/pools/:id/memberships — owner review queue
// ============================================================
func (h *MembershipHandler) ListPoolMemberships(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	memberships, err := h.membershipService.ListPoolMemberships(c.Context(), uint(poolID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list memberships")
	}
	return response.Success(c, "Memberships retrieved", memberships)
}
