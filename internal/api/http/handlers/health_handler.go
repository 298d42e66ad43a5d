package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	tokens      TokenService
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, tokens TokenService) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, tokens: tokens}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness: the service is ready once a token can be served.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	if _, err := h.tokens.Token(ctx); err != nil {
		depStatus["sso"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": depStatus,
			},
		})
	}

	depStatus["sso"] = "ok"
	return c.JSON(fiber.Map{
		"status":       "ready",
		"dependencies": depStatus,
	})
}
