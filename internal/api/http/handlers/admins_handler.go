package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-admin/internal/api/dto"
	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/service"
)

// AdminsHandler exposes administrative grant provisioning and role moves.
type AdminsHandler struct {
	roles      *service.RoleService
	activation *service.ActivationService
}

// NewAdminsHandler constructs handler.
func NewAdminsHandler(roles *service.RoleService, activation *service.ActivationService) *AdminsHandler {
	return &AdminsHandler{roles: roles, activation: activation}
}

// Create handles POST /admins.
func (h *AdminsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.CreateAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Role == "" {
		return fiber.NewError(http.StatusBadRequest, "email and role required")
	}

	account, err := h.roles.CreateAdminDirectly(c.Context(), principal.Account, req.Email, domain.Role(req.Role))
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "admin provisioned", fiber.Map{
		"account": dto.AccountResponse{
			ID:       account.ID,
			Handle:   account.Handle,
			Email:    account.Email,
			Role:     string(account.Role),
			Verified: account.Verified,
		},
	})
}

// AssignRole handles PUT /admins/:accountID/role.
func (h *AdminsHandler) AssignRole(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	accountID := c.Params("accountID")
	if accountID == "" {
		return fiber.NewError(http.StatusBadRequest, "account id required")
	}

	var req dto.AssignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Role == "" {
		return fiber.NewError(http.StatusBadRequest, "role required")
	}

	if err := h.roles.AssignRole(c.Context(), principal.Account, accountID, domain.Role(req.Role), req.Reason); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "role assigned", nil)
}

// IssueToken handles POST /admins/:accountID/token.
func (h *AdminsHandler) IssueToken(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	accountID := c.Params("accountID")
	if accountID == "" {
		return fiber.NewError(http.StatusBadRequest, "account id required")
	}

	var req dto.IssueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Role == "" {
		return fiber.NewError(http.StatusBadRequest, "role required")
	}

	cred, err := h.activation.Issue(c.Context(), accountID, domain.Role(req.Role), principal.Account.ID)
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "token issued", dto.CredentialResponse{
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
	})
}

// DeleteGrant handles DELETE /admins/:grantID.
func (h *AdminsHandler) DeleteGrant(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	grantID := c.Params("grantID")
	if grantID == "" {
		return fiber.NewError(http.StatusBadRequest, "grant id required")
	}

	var req dto.DeleteGrantRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.roles.DeleteAdminGrant(c.Context(), principal.Account, grantID, req.Reason); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "grant removed", nil)
}
