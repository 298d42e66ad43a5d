// Package ssotest runs an in-process SSO provider that speaks the same login
// protocol as the real one. It backs end-to-end tests and the fakesso dev
// binary.
package ssotest

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	apperrors "github.com/spec-kit/sso-requester/pkg/util/errorutil"
)

// Config configures a Provider.
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
	LoginPath  string
	Now        func() time.Time
}

// Provider is a minimal SSO provider: a login endpoint that issues tokens and
// a protected endpoint that accepts them.
type Provider struct {
	issuer   *TokenIssuer
	accounts *accounts
	app      *fiber.App
	logins   atomic.Int64
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// New builds a provider with no accounts.
func New(cfg Config) *Provider {
	if cfg.Secret == "" {
		cfg.Secret = "ssotest-secret"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/auth/login"
	}

	p := &Provider{
		issuer:   NewTokenIssuer(cfg.Secret, cfg.TokenTTL, cfg.Now),
		accounts: newAccounts(cfg.BcryptCost),
	}

	p.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	p.app.Post(cfg.LoginPath, p.login)
	protected := p.app.Group("/api", requireToken(p.issuer))
	protected.Get("/whoami", p.whoami)
	return p
}

// AddAccount registers an identity that may log in.
func (p *Provider) AddAccount(email, password string) error {
	return p.accounts.add(email, password)
}

// RevokeAll makes every token issued so far report as expired.
func (p *Provider) RevokeAll() {
	p.issuer.RevokeAll()
}

// Logins returns the number of successful logins served.
func (p *Provider) Logins() int64 {
	return p.logins.Load()
}

// App exposes the fiber application, e.g. to Listen on it.
func (p *Provider) App() *fiber.App {
	return p.app
}

// Handler adapts the provider to net/http, e.g. for httptest.NewServer.
func (p *Provider) Handler() http.Handler {
	return adaptor.FiberApp(p.app)
}

func (p *Provider) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", map[string]any{
			"email":    req.Email != "",
			"password": req.Password != "",
		})
	}
	if !p.accounts.verify(req.Email, req.Password) {
		return apperrors.NewUnauthorized("Invalid credentials")
	}

	issued, err := p.issuer.Issue(req.Email)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	p.logins.Add(1)

	return c.JSON(fiber.Map{
		"token":     issued.Token,
		"expiresAt": issued.ExpiresAt,
	})
}

func (p *Provider) whoami(c *fiber.Ctx) error {
	subject, _ := subjectFromContext(c)
	return c.JSON(fiber.Map{"email": subject})
}

func errorHandler(c *fiber.Ctx, err error) error {
	domainErr := apperrors.ToDomainError(err)
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		},
	})
}
