package sso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProtocolConfig configures the login exchange.
type ProtocolConfig struct {
	BaseEndpoint string
	LoginPath    string
	HTTPClient   Doer
	Classifier   ResponseClassifier
	Logger       *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Protocol performs single login attempts against the SSO provider.
type Protocol struct {
	loginURL   string
	client     Doer
	classifier ResponseClassifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewProtocol builds a Protocol, filling defaults for unset collaborators.
func NewProtocol(cfg ProtocolConfig) *Protocol {
	p := &Protocol{
		loginURL:   strings.TrimRight(cfg.BaseEndpoint, "/") + ensureLeadingSlash(cfg.LoginPath),
		client:     cfg.HTTPClient,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 30 * time.Second}
	}
	if p.classifier == nil {
		p.classifier = DefaultClassifier
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Login exchanges credentials for a token. It never returns an error value;
// every failure is reported in the outcome. No retries are attempted.
func (p *Protocol) Login(ctx context.Context, creds Credentials) LoginOutcome {
	p.logger.Debug("sso login started", zap.String("email", creds.Email))

	outcome := p.login(ctx, creds)
	if outcome.Succeeded() {
		p.logger.Debug("sso login succeeded", zap.Time("expires_at", outcome.ExpiresAt))
	} else {
		p.logger.Debug("sso login failed",
			zap.String("kind", string(outcome.Err.Kind)),
			zap.String("message", outcome.Err.Message))
	}
	return outcome
}

func (p *Protocol) login(ctx context.Context, creds Credentials) LoginOutcome {
	payload, err := json.Marshal(creds)
	if err != nil {
		return failureOutcome(ErrorKindTransportOrParse, err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.loginURL, bytes.NewReader(payload))
	if err != nil {
		return failureOutcome(ErrorKindTransportOrParse, err.Error(), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return failureOutcome(ErrorKindTransportOrParse, err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failureOutcome(ErrorKindTransportOrParse, fmt.Sprintf("read login response: %v", err), err)
	}

	envelope := p.classifier.Classify(resp.StatusCode, string(body))
	if envelope.Err != nil {
		return failureOutcome(ErrorKindTransportOrParse, envelope.Err.Error(), envelope.Err)
	}
	if !envelope.Success {
		return failureOutcome(ErrorKindRejected, envelope.Message, nil)
	}

	token, ok := envelope.Data["token"].(string)
	if !ok || strings.TrimSpace(token) == "" {
		return failureOutcome(ErrorKindMalformedResponse, "login response has no token field", nil)
	}

	// exp is seconds remaining, not an absolute epoch.
	expiresIn, err := DecodeExpirySeconds(token)
	if err != nil {
		return failureOutcome(ErrorKindMalformedToken, err.Error(), err)
	}
	if expiresIn <= 0 {
		return failureOutcome(ErrorKindMalformedToken, fmt.Sprintf("non-positive exp claim %d", expiresIn), nil)
	}
	if expiresIn > maxExpirySeconds {
		return failureOutcome(ErrorKindMalformedToken, fmt.Sprintf("exp claim %d out of range", expiresIn), nil)
	}

	return successOutcome(token, p.now().Add(time.Duration(expiresIn)*time.Second))
}

// maxExpirySeconds is the largest exp a time.Duration can hold.
const maxExpirySeconds = math.MaxInt64 / int64(time.Second)

func ensureLeadingSlash(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
