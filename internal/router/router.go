package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evalio/evalio-api/internal/config"
	"github.com/evalio/evalio-api/internal/handler"
	"github.com/evalio/evalio-api/internal/middleware"
	"github.com/evalio/evalio-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	SeedHandler       *handler.SeedHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		// Status and result reads are open to any authenticated user; the
		// pipeline triggers and reviews are restricted to staff.
		evaluations := api.Group("/", jwtMiddleware)
		deps.EvaluationHandler.Register(evaluations)

		staff := evaluations.Group("/", middleware.RequireRole("teacher", "admin"))
		deps.EvaluationHandler.RegisterManagement(staff)
	}

	if deps.SeedHandler != nil {
		seed := api.Group("/seed")
		deps.SeedHandler.Register(seed)
	}
}
