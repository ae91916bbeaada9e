package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/points-ledger/internal/api/http/handlers"
	"github.com/spec-kit/points-ledger/internal/auth"
	"github.com/spec-kit/points-ledger/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Transactions   *handlers.TransactionsHandler
	Users          *handlers.UsersHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/tokens", cfg.Auth.Login)
	authGroup.Post("/resets", cfg.Auth.RequestReset)
	authGroup.Post("/resets/:resetToken", cfg.Auth.ConfirmReset)

	authenticated := cfg.AuthMiddleware.Handle

	transactions := app.Group("/transactions", authenticated)
	transactions.Post("/", auth.RequireRole(domain.RoleCashier), cfg.Transactions.Create)
	transactions.Get("/:transactionId", auth.RequireRole(domain.RoleManager), cfg.Transactions.Get)
	transactions.Patch("/:transactionId/suspicious", auth.RequireRole(domain.RoleManager), cfg.Transactions.SetSuspicious)
	transactions.Patch("/:transactionId/processed", auth.RequireRole(domain.RoleCashier), cfg.Transactions.Process)

	users := app.Group("/users", authenticated, auth.RequireAny())
	users.Post("/me/transactions", cfg.Users.Redeem)
	users.Post("/:userId/transactions", cfg.Users.Transfer)

	// Organizers may award regardless of role, so the service checks access.
	events := app.Group("/events", authenticated, auth.RequireAny())
	events.Post("/:eventId/transactions", cfg.Events.Award)
}
