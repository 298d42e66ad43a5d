package sso

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sso-requester/internal/events"
)

var defaultCreds = Credentials{Email: "svc@example.com", Password: "secret"}

func newTestCache(auth Authenticator, clock *fakeClock) *TokenCache {
	return NewTokenCache(CacheConfig{
		Authenticator: auth,
		Credentials:   defaultCreds,
		Now:           clock.Now,
	})
}

func TestGetTokenValiditySkew(t *testing.T) {
	cases := []struct {
		name       string
		ttl        time.Duration
		wantLogins int32
	}{
		{"outside skew is served from cache", 31 * time.Second, 1},
		{"inside skew triggers login", 29 * time.Second, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			auth := &fakeAuthenticator{answer: issuing(clock, tc.ttl)}
			cache := newTestCache(auth, clock)

			first, ok := cache.GetToken(context.Background())
			require.True(t, ok)
			assert.Equal(t, "token-1", first)

			_, ok = cache.GetToken(context.Background())
			require.True(t, ok)
			assert.Equal(t, tc.wantLogins, auth.calls.Load())
		})
	}
}

func TestGetTokenRefreshesOnceExpired(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: issuing(clock, time.Hour)}
	cache := newTestCache(auth, clock)

	first, ok := cache.GetToken(context.Background())
	require.True(t, ok)

	clock.Advance(time.Hour - 30*time.Second)
	second, ok := cache.GetToken(context.Background())
	require.True(t, ok)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestGetTokenFailureReturnsAbsent(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: func(int32, Credentials) LoginOutcome {
		return failureOutcome(ErrorKindRejected, "Invalid credentials", nil)
	}}
	cache := newTestCache(auth, clock)

	token, ok := cache.GetToken(context.Background())
	assert.False(t, ok)
	assert.Empty(t, token)

	_, err := cache.Token(context.Background())
	assert.True(t, IsLoginError(err, ErrorKindRejected))
}

func TestMalformedClaimLeavesCachedTokenUntouched(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: func(n int32, creds Credentials) LoginOutcome {
		if n == 1 {
			return successOutcome("good", clock.Now().Add(time.Hour))
		}
		return failureOutcome(ErrorKindMalformedToken, "exp claim is not numeric", nil)
	}}
	cache := newTestCache(auth, clock)

	_, ok := cache.GetToken(context.Background())
	require.True(t, ok)

	outcome := cache.RefreshToken(context.Background())
	require.False(t, outcome.Succeeded())
	assert.Equal(t, ErrorKindMalformedToken, outcome.Err.Kind)

	snapshot, valid := cache.Snapshot()
	assert.True(t, valid)
	assert.Equal(t, "good", snapshot.Value)
}

func TestRefreshTokenAlwaysLogsIn(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: issuing(clock, time.Hour)}
	cache := newTestCache(auth, clock)

	first := cache.RefreshToken(context.Background())
	clock.Advance(time.Second)
	second := cache.RefreshToken(context.Background())

	require.True(t, first.Succeeded())
	require.True(t, second.Succeeded())
	assert.NotEqual(t, first.Token, second.Token)
	assert.False(t, second.ExpiresAt.Before(first.ExpiresAt))
	assert.Equal(t, int32(2), auth.calls.Load())

	token, ok := cache.GetToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, second.Token, token)
}

func TestLoginWithExplicitCredentialsReplacesCache(t *testing.T) {
	clock := newFakeClock()
	var seen Credentials
	auth := &fakeAuthenticator{answer: func(n int32, creds Credentials) LoginOutcome {
		seen = creds
		return issuing(clock, time.Hour)(n, creds)
	}}
	cache := newTestCache(auth, clock)

	other := Credentials{Email: "ops@example.com", Password: "pw"}
	outcome := cache.Login(context.Background(), other)
	require.True(t, outcome.Succeeded())
	assert.Equal(t, other, seen)

	snapshot, valid := cache.Snapshot()
	assert.True(t, valid)
	assert.Equal(t, outcome.Token, snapshot.Value)
}

func TestConcurrentMissesShareLogin(t *testing.T) {
	const callers = 25

	clock := newFakeClock()
	auth := &fakeAuthenticator{delay: 20 * time.Millisecond, answer: issuing(clock, time.Hour)}
	cache := newTestCache(auth, clock)

	var wg sync.WaitGroup
	tokens := make([]string, callers)
	oks := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], oks[i] = cache.GetToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		assert.True(t, oks[i])
		assert.NotEmpty(t, tokens[i])
	}
	assert.Equal(t, int32(1), auth.calls.Load(), "concurrent misses must share one login")
	for i := 1; i < callers; i++ {
		assert.Equal(t, tokens[0], tokens[i])
	}
}

func TestTokenWithExpiryPairsValueAndExpiry(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: issuing(clock, time.Hour)}
	cache := newTestCache(auth, clock)

	first, err := cache.TokenWithExpiry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), first.ExpiresAt)

	clock.Advance(time.Minute)
	refreshed := cache.RefreshToken(context.Background())
	require.True(t, refreshed.Succeeded())

	second, err := cache.TokenWithExpiry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, refreshed.Token, second.Value)
	assert.Equal(t, refreshed.ExpiresAt, second.ExpiresAt)
	assert.NotEqual(t, first.ExpiresAt, second.ExpiresAt)
}

func TestStatusUsesCacheClock(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: issuing(clock, time.Hour)}
	cache := newTestCache(auth, clock)

	assert.Equal(t, TokenStatus{}, cache.Status())

	_, ok := cache.GetToken(context.Background())
	require.True(t, ok)
	clock.Advance(40 * time.Minute)

	status := cache.Status()
	assert.True(t, status.Cached)
	assert.True(t, status.Valid)
	assert.Equal(t, 20*time.Minute, status.ExpiresIn)

	clock.Advance(19 * time.Minute)
	status = cache.Status()
	assert.False(t, status.Valid, "inside the skew window")
	assert.Equal(t, time.Minute, status.ExpiresIn)
	assert.Equal(t, int32(1), auth.calls.Load())
}

func TestWaiterStopsOnOwnCancellation(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{delay: 200 * time.Millisecond, answer: issuing(clock, time.Hour)}
	cache := newTestCache(auth, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cache.Token(ctx)
	assert.True(t, IsLoginError(err, ErrorKindTransportOrParse))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachePublishesLifecycleEvents(t *testing.T) {
	clock := newFakeClock()
	auth := &fakeAuthenticator{answer: issuing(clock, time.Hour)}
	dispatcher := events.NewInMemoryDispatcher()

	var mu sync.Mutex
	seen := map[events.EventType]int{}
	record := func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Type]++
		return nil
	}
	dispatcher.Subscribe(events.EventTokenAcquired, record)
	dispatcher.Subscribe(events.EventTokenRefreshed, record)
	dispatcher.Subscribe(events.EventCacheHit, record)

	cache := NewTokenCache(CacheConfig{
		Authenticator: auth,
		Credentials:   defaultCreds,
		Dispatcher:    dispatcher,
		Now:           clock.Now,
	})

	_, _ = cache.GetToken(context.Background())
	_, _ = cache.GetToken(context.Background())
	_ = cache.RefreshToken(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[events.EventTokenAcquired])
	assert.Equal(t, 1, seen[events.EventCacheHit])
	assert.Equal(t, 1, seen[events.EventTokenRefreshed])
}

type callResult struct {
	ok      bool
	message string
}

func (r callResult) Succeeded() bool        { return r.ok }
func (r callResult) FailureMessage() string { return r.message }

func TestIsExpiredTokenFailure(t *testing.T) {
	cases := []struct {
		name   string
		result Result
		status int
		want   bool
	}{
		{"expired message on 401", callResult{message: "Token expired at 10:00"}, http.StatusUnauthorized, true},
		{"case insensitive", callResult{message: "JWT EXPIRED"}, http.StatusForbidden, true},
		{"other message", callResult{message: "Invalid credentials"}, http.StatusUnauthorized, false},
		{"server error", callResult{message: "token expired"}, http.StatusInternalServerError, false},
		{"success", callResult{ok: true, message: "expired"}, http.StatusUnauthorized, false},
		{"empty message", callResult{}, http.StatusUnauthorized, false},
		{"nil result", nil, http.StatusUnauthorized, false},
		{"login outcome", failureOutcome(ErrorKindRejected, "session expired", nil), http.StatusUnauthorized, true},
	}

	cache := newTestCache(&fakeAuthenticator{}, newFakeClock())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cache.IsExpiredTokenFailure(tc.result, tc.status))
		})
	}
}
