package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-admin/internal/api/dto"
	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/service"
)

// ActivationHandler exposes the one-time token redemption flow.
type ActivationHandler struct {
	activation *service.ActivationService
	sessions   *service.SessionService
}

// NewActivationHandler constructs handler.
func NewActivationHandler(activation *service.ActivationService, sessions *service.SessionService) *ActivationHandler {
	return &ActivationHandler{activation: activation, sessions: sessions}
}

// Redeem handles POST /activation/redeem. A successful redemption verifies the
// account, activates the grant and opens a session in one round trip.
func (h *ActivationHandler) Redeem(c *fiber.Ctx) error {
	var req dto.RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Token == "" {
		return fiber.NewError(http.StatusBadRequest, "email and token required")
	}

	result, err := h.activation.Redeem(c.Context(), req.Email, req.Token)
	if err != nil {
		return err
	}

	token, exp, err := h.sessions.IssueSession(result.Account)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "grant activated", fiber.Map{
		"account": dto.AccountResponse{
			ID:       result.Account.ID,
			Handle:   result.Account.Handle,
			Email:    result.Account.Email,
			Role:     string(result.Account.Role),
			Verified: result.Account.Verified,
		},
		"password_set": result.Grant.PasswordSet,
		"auth":         dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Reissue handles POST /activation/reissue.
func (h *ActivationHandler) Reissue(c *fiber.Ctx) error {
	var req dto.ReissueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return fiber.NewError(http.StatusBadRequest, "email required")
	}

	cred, err := h.activation.Reissue(c.Context(), req.Email)
	if err != nil {
		return err
	}

	// The token itself is delivered by email, never echoed here.
	return respond(c, http.StatusOK, "token reissued", dto.CredentialResponse{ExpiresAt: cred.ExpiresAt})
}

// SetPassword handles POST /activation/password for the authenticated caller.
func (h *ActivationHandler) SetPassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.SetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.activation.SetPassword(c.Context(), principal.Account.ID, req.Password); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "password set", nil)
}
