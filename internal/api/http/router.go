package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/http/handlers"
	"github.com/spec-kit/assignment-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	WorkUnits      *handlers.WorkUnitsHandler
	WorkItems      *handlers.WorkItemsHandler
	Operations     *handlers.OperationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireMember())
	admin := auth.RequireAdmin()

	units := protected.Group("/work-units")
	units.Post("/", cfg.WorkUnits.Start)
	units.Get("/:id", cfg.WorkUnits.Get)
	units.Get("/:id/owner", cfg.WorkUnits.Owner)
	units.Get("/:id/ownership-history", cfg.WorkUnits.OwnershipHistory)
	units.Post("/:id/advance", cfg.WorkUnits.Advance)
	units.Post("/:id/status", cfg.WorkUnits.SetStatus)
	units.Post("/:id/owner/escalate", cfg.WorkUnits.EscalateOwner)
	units.Post("/:id/owner/transfer", admin, cfg.WorkUnits.TransferOwner)

	protected.Get("/me/work-items", cfg.WorkItems.ListMine)

	items := protected.Group("/work-items")
	items.Get("/:id", cfg.WorkItems.Get)
	items.Post("/:id/resolve", cfg.WorkItems.Resolve)
	items.Post("/:id/escalate", cfg.WorkItems.Escalate)
	items.Post("/:id/transfer", cfg.WorkItems.Transfer)
	items.Post("/:id/claim", admin, cfg.WorkItems.Claim)
	items.Post("/:id/breach", admin, cfg.WorkItems.Breach)

	protected.Post("/rotations/:key/next", admin, cfg.Operations.NextOwner)

	notifications := protected.Group("/notifications/failed", admin)
	notifications.Get("/", cfg.Operations.ListFailed)
	notifications.Post("/retry-all", cfg.Operations.RetryAll)
	notifications.Post("/:id/retry", cfg.Operations.Retry)
	notifications.Post("/:id/reenable", cfg.Operations.Reenable)
}
