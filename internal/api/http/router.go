package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-admin/internal/api/http/handlers"
	"github.com/spec-kit/listing-admin/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Activation     *handlers.ActivationHandler
	Admins         *handlers.AdminsHandler
	Suspensions    *handlers.SuspensionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Accounts.Login)

	activation := app.Group("/activation")
	activation.Post("/redeem", cfg.Activation.Redeem)
	activation.Post("/reissue", cfg.Activation.Reissue)
	activation.Post("/password", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Activation.SetPassword)

	me := app.Group("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	me.Get("/notifications", cfg.Accounts.ListNotifications)
	me.Post("/appeal", cfg.Accounts.FileAppeal)

	admins := app.Group("/admins", cfg.AuthMiddleware.Handle)
	admins.Post("", auth.RequireCapability(auth.CapManageAdmins), cfg.Admins.Create)
	admins.Put("/:accountID/role", auth.RequireCapability(auth.CapManageUsers), cfg.Admins.AssignRole)
	admins.Post("/:accountID/token", auth.RequireCapability(auth.CapManageAdmins), cfg.Admins.IssueToken)
	admins.Delete("/:grantID", auth.RequireCapability(auth.CapDeleteAdminGrants), cfg.Admins.DeleteGrant)

	suspensions := app.Group("/suspensions", cfg.AuthMiddleware.Handle)
	suspensions.Post("", auth.RequireCapability(auth.CapManageUsers), cfg.Suspensions.Suspend)
	suspensions.Post("/sweep", auth.RequireCapability(auth.CapTriggerSweep), cfg.Suspensions.Sweep)
	suspensions.Post("/:id/extend", auth.RequireCapability(auth.CapManageUsers), cfg.Suspensions.Extend)
	suspensions.Post("/:id/lift", auth.RequireCapability(auth.CapManageUsers), cfg.Suspensions.Lift)
	suspensions.Post("/:id/appeals/:entryID/resolve", auth.RequireCapability(auth.CapManageUsers), cfg.Suspensions.ResolveAppeal)
}
