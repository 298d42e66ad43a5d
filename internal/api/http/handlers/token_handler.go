package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sso-requester/internal/sso"
	apperrors "github.com/spec-kit/sso-requester/pkg/util/errorutil"
)

// TokenService is the part of the token cache the HTTP layer needs.
type TokenService interface {
	Token(ctx context.Context) (string, error)
	TokenWithExpiry(ctx context.Context) (sso.CachedToken, error)
	RefreshToken(ctx context.Context) sso.LoginOutcome
	Status() sso.TokenStatus
}

// TokenHandler exposes the cached SSO token to callers that cannot link the
// Go package.
type TokenHandler struct {
	tokens TokenService
}

// NewTokenHandler constructs handler.
func NewTokenHandler(tokens TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Get handles GET /sso/token.
func (h *TokenHandler) Get(c *fiber.Ctx) error {
	cached, err := h.tokens.TokenWithExpiry(c.UserContext())
	if err != nil {
		return loginFailure(err)
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"token":     cached.Value,
			"expiresAt": cached.ExpiresAt,
		},
	})
}

// Status handles GET /sso/token/status. The token value is never returned.
func (h *TokenHandler) Status(c *fiber.Ctx) error {
	status := h.tokens.Status()
	data := fiber.Map{
		"cached": status.Cached,
		"valid":  status.Valid,
	}
	if status.Cached {
		data["expiresAt"] = status.ExpiresAt
		data["expiresIn"] = status.ExpiresIn.Round(time.Second).String()
	}
	return c.JSON(fiber.Map{"data": data})
}

// Refresh handles POST /sso/token/refresh.
func (h *TokenHandler) Refresh(c *fiber.Ctx) error {
	outcome := h.tokens.RefreshToken(c.UserContext())
	if !outcome.Succeeded() {
		return loginFailure(outcome.Err)
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"refreshed": true,
			"expiresAt": outcome.ExpiresAt,
		},
	})
}

func loginFailure(err error) error {
	var loginErr *sso.LoginError
	if !errors.As(err, &loginErr) {
		return apperrors.NewInternalError(err)
	}
	return apperrors.NewBadGateway("SSO_LOGIN_FAILED", "sso login failed", map[string]any{
		"kind":   string(loginErr.Kind),
		"reason": loginErr.Message,
	}, loginErr)
}
