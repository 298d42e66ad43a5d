package sso

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds how many times one downstream call is sent when
// the provider keeps reporting an expired token.
const DefaultMaxAttempts = 10

// TokenSource hands out bearer tokens and forces new ones. *TokenCache
// implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) LoginOutcome
}

// Request describes a downstream call. Path is appended to the requester's
// base URL.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Response is a fully read downstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Envelope   Envelope
	// Attempts counts how many times the request was sent.
	Attempts int
}

// Succeeded reports whether the downstream call succeeded.
func (r *Response) Succeeded() bool {
	return r.Envelope.Success || (r.StatusCode >= 200 && r.StatusCode < 300)
}

// FailureMessage returns the classified failure text.
func (r *Response) FailureMessage() string {
	return r.Envelope.Message
}

// RequesterConfig configures a Requester.
type RequesterConfig struct {
	BaseURL     string
	Tokens      TokenSource
	HTTPClient  Doer
	Classifier  ResponseClassifier
	MaxAttempts int
	Logger      *zap.Logger
}

// Requester calls downstream services with the cached bearer token and
// re-authenticates when a call is rejected for an expired token.
type Requester struct {
	baseURL     string
	tokens      TokenSource
	client      Doer
	classifier  ResponseClassifier
	maxAttempts int
	logger      *zap.Logger
}

// NewRequester builds a Requester.
func NewRequester(cfg RequesterConfig) *Requester {
	r := &Requester{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokens:      cfg.Tokens,
		client:      cfg.HTTPClient,
		classifier:  cfg.Classifier,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 30 * time.Second}
	}
	if r.classifier == nil {
		r.classifier = DefaultClassifier
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Do sends req with a bearer token. When the response is an expired-token
// failure the token is refreshed and the request is sent again, up to the
// configured number of attempts; the last response is then returned as is.
// Errors are transport failures or a *LoginError from token acquisition.
func (r *Requester) Do(ctx context.Context, req Request) (*Response, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		resp, err := r.send(ctx, req, token)
		if err != nil {
			return nil, err
		}
		resp.Attempts = attempt

		if !IsExpiredTokenFailure(resp, resp.StatusCode) {
			return resp, nil
		}
		if attempt >= r.maxAttempts {
			r.logger.Warn("downstream still rejects token after refresh attempts",
				zap.String("path", req.Path),
				zap.Int("attempts", attempt))
			return resp, nil
		}

		r.logger.Info("downstream reported expired token, refreshing",
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt))
		outcome := r.tokens.RefreshToken(ctx)
		if !outcome.Succeeded() {
			return nil, outcome.Err
		}
		token = outcome.Token
	}
}

func (r *Requester) send(ctx context.Context, req Request, token string) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, r.baseURL+ensureLeadingSlash(req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("build downstream request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("downstream %s %s: %w", method, req.Path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read downstream response: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       raw,
		Envelope:   r.classifier.Classify(httpResp.StatusCode, string(raw)),
	}, nil
}
