package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sso-requester/internal/api/http/handlers"
	"github.com/spec-kit/sso-requester/internal/observability"
	apperrors "github.com/spec-kit/sso-requester/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Token   *handlers.TokenHandler
	Proxy   *handlers.ProxyHandler
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"data": cfg.Metrics.Snapshot()})
		})
	}

	ssoGroup := app.Group("/sso")
	ssoGroup.Get("/token", cfg.Token.Get)
	ssoGroup.Get("/token/status", cfg.Token.Status)
	ssoGroup.Post("/token/refresh", cfg.Token.Refresh)

	app.All("/proxy/*", cfg.Proxy.Forward)

	app.Use(func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("route", map[string]any{"method": c.Method(), "path": c.Path()})
	})
}
