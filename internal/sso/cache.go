package sso

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/sso-requester/internal/events"
)

// DefaultSkew is subtracted from a token's expiry before it is considered stale.
const DefaultSkew = 30 * time.Second

const (
	flightToken   = "token"
	flightRefresh = "refresh"
)

// Authenticator performs one login attempt. *Protocol implements it.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) LoginOutcome
}

// CacheConfig configures a TokenCache.
type CacheConfig struct {
	Authenticator Authenticator
	Credentials   Credentials
	// Skew defaults to DefaultSkew when zero.
	Skew       time.Duration
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// TokenCache serves a bearer token for the default identity, logging in again
// lazily once the cached one gets within Skew of its expiry.
//
// Concurrent misses share a single login; so do concurrent forced refreshes.
// A miss and a refresh may still overlap, in which case the last login to
// finish wins. Both produce a fresh token, so either is fine to keep.
type TokenCache struct {
	auth       Authenticator
	creds      Credentials
	skew       time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	current atomic.Pointer[CachedToken]
	flight  singleflight.Group
}

// NewTokenCache builds an empty cache.
func NewTokenCache(cfg CacheConfig) *TokenCache {
	c := &TokenCache{
		auth:       cfg.Authenticator,
		creds:      cfg.Credentials,
		skew:       cfg.Skew,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if c.skew == 0 {
		c.skew = DefaultSkew
	}
	if c.dispatcher == nil {
		c.dispatcher = events.NewNoopDispatcher()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// GetToken returns a usable token, logging in on a miss. The failure detail is
// dropped; use Token when it matters.
func (c *TokenCache) GetToken(ctx context.Context) (string, bool) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", false
	}
	return token, true
}

// Token returns a usable token, logging in on a miss. On failure the error is
// a *LoginError.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	cached, err := c.TokenWithExpiry(ctx)
	if err != nil {
		return "", err
	}
	return cached.Value, nil
}

// TokenWithExpiry is Token, returning the expiry that belongs to the served
// token.
func (c *TokenCache) TokenWithExpiry(ctx context.Context) (CachedToken, error) {
	if cached, ok := c.valid(); ok {
		c.publish(ctx, events.New(events.EventCacheHit, c.creds.Email, nil))
		return cached, nil
	}

	c.logger.Debug("sso token cache miss")
	outcome := c.shared(ctx, flightToken, func(ctx context.Context) LoginOutcome {
		// Another caller may have filled the cache while we were queued.
		if cached, ok := c.valid(); ok {
			return successOutcome(cached.Value, cached.ExpiresAt)
		}
		return c.login(ctx, c.creds, false)
	})
	if !outcome.Succeeded() {
		return CachedToken{}, outcome.Err
	}
	return CachedToken{Value: outcome.Token, ExpiresAt: outcome.ExpiresAt}, nil
}

// RefreshToken logs in with the default credentials whatever the cache holds.
func (c *TokenCache) RefreshToken(ctx context.Context) LoginOutcome {
	c.logger.Debug("refreshing sso token (re-login)")
	return c.shared(ctx, flightRefresh, func(ctx context.Context) LoginOutcome {
		return c.login(ctx, c.creds, true)
	})
}

// Login logs in with explicit credentials. A success replaces the cached token.
func (c *TokenCache) Login(ctx context.Context, creds Credentials) LoginOutcome {
	return c.login(ctx, creds, true)
}

// Snapshot returns the cached token and whether it is still served as valid.
func (c *TokenCache) Snapshot() (CachedToken, bool) {
	cached := c.current.Load()
	if cached == nil {
		return CachedToken{}, false
	}
	return *cached, cached.ValidAt(c.now(), c.skew)
}

// Status describes the cached token against the cache's clock. It never
// triggers a login.
func (c *TokenCache) Status() TokenStatus {
	cached := c.current.Load()
	if cached == nil {
		return TokenStatus{}
	}
	now := c.now()
	return TokenStatus{
		Cached:    true,
		Valid:     cached.ValidAt(now, c.skew),
		ExpiresAt: cached.ExpiresAt,
		ExpiresIn: cached.ExpiresAt.Sub(now),
	}
}

// IsExpiredTokenFailure reports whether a failed call was rejected with a 4xx
// status whose message mentions an expired token. The provider signals expiry
// only through free text, so this is a heuristic.
func (c *TokenCache) IsExpiredTokenFailure(result Result, status int) bool {
	return IsExpiredTokenFailure(result, status)
}

// IsExpiredTokenFailure is the package-level form of
// (*TokenCache).IsExpiredTokenFailure.
func IsExpiredTokenFailure(result Result, status int) bool {
	if result == nil || result.Succeeded() {
		return false
	}
	if status < 400 || status > 499 {
		return false
	}
	return mentionsExpired(result.FailureMessage())
}

func mentionsExpired(message string) bool {
	return strings.Contains(strings.ToLower(message), "expired")
}

func (c *TokenCache) valid() (CachedToken, bool) {
	cached := c.current.Load()
	if cached == nil || !cached.ValidAt(c.now(), c.skew) {
		return CachedToken{}, false
	}
	return *cached, true
}

// shared runs fn once per key for all concurrent callers. The login itself is
// detached from the first caller's cancellation so that waiters are not
// failed by it; each caller still stops waiting when its own ctx is done.
func (c *TokenCache) shared(ctx context.Context, key string, fn func(context.Context) LoginOutcome) LoginOutcome {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		return fn(detached), nil
	})

	select {
	case <-ctx.Done():
		return failureOutcome(ErrorKindTransportOrParse, ctx.Err().Error(), ctx.Err())
	case res := <-ch:
		return res.Val.(LoginOutcome)
	}
}

func (c *TokenCache) login(ctx context.Context, creds Credentials, forced bool) LoginOutcome {
	outcome := c.auth.Login(ctx, creds)
	if !outcome.Succeeded() {
		c.logger.Warn("sso login failed",
			zap.String("email", creds.Email),
			zap.String("kind", string(outcome.Err.Kind)),
			zap.String("message", outcome.Err.Message))
		c.publish(ctx, events.New(events.EventLoginFailed, creds.Email, events.LoginFailedPayload{
			Kind:       string(outcome.Err.Kind),
			Message:    outcome.Err.Message,
			AuthExpiry: outcome.Err.AuthExpiry,
		}))
		return outcome
	}

	c.current.Store(&CachedToken{Value: outcome.Token, ExpiresAt: outcome.ExpiresAt})
	c.logger.Info("sso token acquired",
		zap.String("email", creds.Email),
		zap.Time("expires_at", outcome.ExpiresAt),
		zap.Bool("forced", forced))

	eventType := events.EventTokenAcquired
	if forced {
		eventType = events.EventTokenRefreshed
	}
	c.publish(ctx, events.New(eventType, creds.Email, events.TokenAcquiredPayload{
		ExpiresAt: outcome.ExpiresAt,
		Forced:    forced,
	}))
	return outcome
}

func (c *TokenCache) publish(ctx context.Context, event events.Event) {
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("sso event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
