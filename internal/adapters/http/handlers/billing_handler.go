package handlers

import (
	"strconv"
	"time"

	"splitsub/internal/core/domain"
	"splitsub/internal/core/services"
	"splitsub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BillingHandler handles billing cycle & ledger endpoints, including the
// inbound payment gateway webhook
type BillingHandler struct {
	billingService *services.BillingService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService *services.BillingService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
	}
}

// ============================================================
// POST /api/v1/pools/:id/cycles — open a billing cycle
// ============================================================
func (h *BillingHandler) OpenCycle(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	var input struct {
		StartDate string `json:"start_date"` // YYYY-MM-DD, defaults to today
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	startDate := time.Now().UTC().Truncate(24 * time.Hour)
	if input.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", input.StartDate)
		if err != nil {
			return response.BadRequest(c, "start_date must be YYYY-MM-DD")
		}
	}

	cycle, entries, err := h.billingService.OpenCycle(c.Context(), uint(poolID), startDate)
	if err != nil {
		switch err {
		case domain.ErrPoolNotFound:
			return response.NotFound(c, "Pool not found")
		case domain.ErrCycleAlreadyOpen:
			return response.Conflict(c, "Pool already has an open cycle")
		case domain.ErrNoActiveMemberships:
			return response.PreconditionFailed(c, "Pool has no active memberships")
		default:
			return response.InternalServerError(c, "Failed to open cycle")
		}
	}
	return response.Created(c, "Cycle opened", fiber.Map{
		"cycle":   cycle,
		"entries": entries,
	})
}

// ============================================================
// GET /api/v1/pools/:id/cycles/open — open-cycle dashboard view
// ============================================================
func (h *BillingHandler) GetOpenCycle(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	detail, err := h.billingService.GetOpenCycleDetail(c.Context(), uint(poolID))
	if err != nil {
		switch err {
		case domain.ErrPoolNotFound:
			return response.NotFound(c, "Pool not found")
		case domain.ErrCycleNotFound:
			return response.NotFound(c, "No open cycle for this pool")
		default:
			return response.InternalServerError(c, "Failed to get open cycle")
		}
	}
	return response.Success(c, "Open cycle retrieved", detail)
}

// ============================================================
// POST /api/v1/cycles/:id/close — close a cycle
// ============================================================
func (h *BillingHandler) CloseCycle(c *fiber.Ctx) error {
	cycleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid cycle ID")
	}
	force := c.QueryBool("force", false)

	if err := h.billingService.CloseCycle(c.Context(), uint(cycleID), force); err != nil {
		switch err {
		case domain.ErrCycleNotFound:
			return response.NotFound(c, "Cycle not found")
		case domain.ErrCycleClosed:
			return response.Conflict(c, "Cycle is already closed")
		case domain.ErrOpenObligationsRemain:
			return response.PreconditionFailed(c, "Unpaid entries remain; retry with force=true to flag them overdue")
		default:
			return response.InternalServerError(c, "Failed to close cycle")
		}
	}
	return response.Success(c, "Cycle closed", nil)
}

// ============================================================
// GET /api/v1/cycles/:id/collected — reconciliation view
// ============================================================
func (h *BillingHandler) GetCollected(c *fiber.Ctx) error {
	cycleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid cycle ID")
	}

	collected, err := h.billingService.TotalCollected(c.Context(), uint(cycleID))
	if err != nil {
		if err == domain.ErrCycleNotFound {
			return response.NotFound(c, "Cycle not found")
		}
		return response.InternalServerError(c, "Failed to compute collected total")
	}
	return response.Success(c, "Collected total computed", fiber.Map{"collected_cents": collected})
}

// ============================================================
// GET /api/v1/pools/:id/owed — outstanding across all cycles
// ============================================================
func (h *BillingHandler) GetOwed(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid pool ID")
	}

	owed, err := h.billingService.TotalOwed(c.Context(), uint(poolID))
	if err != nil {
		if err == domain.ErrPoolNotFound {
			return response.NotFound(c, "Pool not found")
		}
		return response.InternalServerError(c, "Failed to compute owed total")
	}
	return response.Success(c, "Owed total computed", fiber.Map{"owed_cents": owed})
}

// paymentWebhook is the payment gateway's settlement notification
type paymentWebhook struct {
	EventID     string `json:"event_id"`
	EntryID     uint   `json:"entry_id"`
	AmountCents int64  `json:"amount_cents"`
}

// ============================================================
// POST /api/v1/webhooks/payments — inbound gateway events
// ============================================================

// PaymentWebhook records a settled payment against a ledger entry
// @Summary Payment webhook
// @Description Inbound settlement events from the payment gateway. Replays of the same event_id are no-op successes.
// @Tags Billing
// @Accept json
// @Produce json
// @Param body body paymentWebhook true "Settlement event"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/webhooks/payments [post]
func (h *BillingHandler) PaymentWebhook(c *fiber.Ctx) error {
	var input paymentWebhook
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.EntryID == 0 {
		return response.BadRequest(c, "entry_id is required")
	}

	entry, err := h.billingService.RecordPayment(c.Context(), input.EntryID, input.AmountCents, input.EventID)
	if err != nil {
		switch err {
		case domain.ErrInvalidInput:
			return response.BadRequest(c, "amount_cents must be positive")
		case domain.ErrEntryNotFound:
			return response.NotFound(c, "Ledger entry not found")
		case domain.ErrOverpaymentRejected:
			return response.Conflict(c, "Payment exceeds the amount due")
		default:
			return response.InternalServerError(c, "Failed to record payment")
		}
	}
	return response.Success(c, "Payment recorded", entry)
}
