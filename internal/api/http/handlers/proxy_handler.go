package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sso-requester/internal/sso"
	apperrors "github.com/spec-kit/sso-requester/pkg/util/errorutil"
)

// Requester sends authorized downstream calls.
type Requester interface {
	Do(ctx context.Context, req sso.Request) (*sso.Response, error)
}

var forwardedHeaders = []string{"Accept", "Content-Type", "Accept-Language"}

// ProxyHandler forwards requests to the downstream service with the SSO token.
type ProxyHandler struct {
	requester Requester
}

// NewProxyHandler constructs handler. A nil requester disables proxying.
func NewProxyHandler(requester Requester) *ProxyHandler {
	return &ProxyHandler{requester: requester}
}

// Forward handles ALL /proxy/*.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	if h.requester == nil {
		return apperrors.NewServiceUnavailable("downstream proxy is not configured")
	}

	path := "/" + c.Params("*")
	if query := string(c.Request().URI().QueryString()); query != "" {
		path += "?" + query
	}

	header := http.Header{}
	for _, name := range forwardedHeaders {
		if v := c.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	var body []byte
	if raw := c.Body(); len(raw) > 0 {
		body = append([]byte(nil), raw...)
	}

	resp, err := h.requester.Do(c.UserContext(), sso.Request{
		Method: c.Method(),
		Path:   path,
		Header: header,
		Body:   body,
	})
	if err != nil {
		if sso.IsLoginError(err, "") {
			return loginFailure(err)
		}
		return apperrors.NewBadGateway("DOWNSTREAM_UNAVAILABLE", "downstream request failed", nil, err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
	return c.Status(resp.StatusCode).Send(resp.Body)
}
