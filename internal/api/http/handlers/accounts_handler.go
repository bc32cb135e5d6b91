package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-admin/internal/api/dto"
	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/repository"
	"github.com/spec-kit/listing-admin/internal/service"
)

// AccountsHandler exposes session login and the authenticated /me surface.
type AccountsHandler struct {
	sessions      *service.SessionService
	suspensions   *service.SuspensionService
	notifications repository.NotificationRepository
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(sessions *service.SessionService, suspensions *service.SuspensionService, notifications repository.NotificationRepository) *AccountsHandler {
	return &AccountsHandler{sessions: sessions, suspensions: suspensions, notifications: notifications}
}

// Login handles POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	account, token, exp, err := h.sessions.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "logged in", fiber.Map{
		"account": dto.AccountResponse{
			ID:       account.ID,
			Handle:   account.Handle,
			Email:    account.Email,
			Role:     string(account.Role),
			Verified: account.Verified,
		},
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// ListNotifications handles GET /me/notifications.
func (h *AccountsHandler) ListNotifications(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	records, err := h.notifications.ListByAccount(c.Context(), principal.Account.ID, limit, offset)
	if err != nil {
		return err
	}

	out := make([]dto.NotificationResponse, 0, len(records))
	for _, n := range records {
		out = append(out, dto.NotificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Content:   n.Content,
			Type:      string(n.Type),
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}

	return respond(c, http.StatusOK, "notifications", fiber.Map{"notifications": out})
}

// FileAppeal handles POST /me/appeal.
func (h *AccountsHandler) FileAppeal(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.AppealRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Reason == "" {
		return fiber.NewError(http.StatusBadRequest, "reason required")
	}

	entry, err := h.suspensions.FileAppeal(c.Context(), principal.Account, req.Reason)
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "appeal filed", fiber.Map{
		"appeal_entry_id": entry.ID,
		"suspension_id":   entry.SuspensionID,
	})
}
