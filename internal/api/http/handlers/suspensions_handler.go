package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-admin/internal/api/dto"
	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/service"
)

// SuspensionsHandler exposes the suspension lifecycle endpoints.
type SuspensionsHandler struct {
	suspensions *service.SuspensionService
}

// NewSuspensionsHandler constructs handler.
func NewSuspensionsHandler(suspensions *service.SuspensionService) *SuspensionsHandler {
	return &SuspensionsHandler{suspensions: suspensions}
}

func suspensionResponse(s *domain.Suspension) dto.SuspensionResponse {
	return dto.SuspensionResponse{
		ID:             s.ID,
		AccountID:      s.AccountID,
		Active:         s.Active,
		SuspendedUntil: s.SuspendedUntil,
	}
}

// Suspend handles POST /suspensions.
func (h *SuspensionsHandler) Suspend(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.SuspendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.AccountID == "" || req.Reason == "" || req.Duration == "" {
		return fiber.NewError(http.StatusBadRequest, "account_id, reason, duration required")
	}

	suspension, err := h.suspensions.Suspend(c.Context(), principal.Account, req.AccountID, req.Reason, req.Category, domain.SuspensionDuration(req.Duration))
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "account suspended", fiber.Map{"suspension": suspensionResponse(suspension)})
}

// Extend handles POST /suspensions/:id/extend.
func (h *SuspensionsHandler) Extend(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.ExtendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Duration == "" {
		return fiber.NewError(http.StatusBadRequest, "duration required")
	}

	suspension, err := h.suspensions.Extend(c.Context(), principal.Account, c.Params("id"), domain.SuspensionDuration(req.Duration), req.Reason)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "suspension extended", fiber.Map{"suspension": suspensionResponse(suspension)})
}

// Lift handles POST /suspensions/:id/lift.
func (h *SuspensionsHandler) Lift(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.LiftRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.suspensions.Lift(c.Context(), principal.Account, c.Params("id"), req.Reason); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "suspension lifted", nil)
}

// ResolveAppeal handles POST /suspensions/:id/appeals/:entryID/resolve.
func (h *SuspensionsHandler) ResolveAppeal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.ResolveAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Decision == "" {
		return fiber.NewError(http.StatusBadRequest, "decision required")
	}

	if err := h.suspensions.ResolveAppeal(c.Context(), principal.Account, c.Params("id"), c.Params("entryID"), req.Decision, req.Notes); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "appeal resolved", nil)
}

// Sweep handles POST /suspensions/sweep.
func (h *SuspensionsHandler) Sweep(c *fiber.Ctx) error {
	outcomes, err := h.suspensions.SweepExpired(c.Context())
	if err != nil {
		return err
	}

	lifted := 0
	for _, o := range outcomes {
		if o.Status == "lifted" {
			lifted++
		}
	}

	return respond(c, http.StatusOK, "sweep complete", fiber.Map{
		"lifted":   lifted,
		"failed":   len(outcomes) - lifted,
		"outcomes": outcomes,
	})
}
