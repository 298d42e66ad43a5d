package ssotest

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/sso-requester/pkg/util/errorutil"
)

const subjectKey = "sso_subject"

// requireToken validates bearer tokens on protected routes. Expired tokens are
// rejected with a message mentioning "expired", which is the only expiry
// signal the provider gives.
func requireToken(issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperrors.NewUnauthorized("missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}

		subject, _, err := issuer.Verify(parts[1])
		if err != nil {
			if errors.Is(err, errExpiredToken) {
				return apperrors.NewUnauthorized("Token " + strings.TrimPrefix(err.Error(), "token "))
			}
			return apperrors.NewUnauthorized("invalid token")
		}

		c.Locals(subjectKey, subject)
		return c.Next()
	}
}

// subjectFromContext retrieves the authenticated email.
func subjectFromContext(c *fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(subjectKey).(string)
	return subject, ok
}
