package sso

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

// mintToken signs an HS256 token with the given claims.
func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	require.NoError(t, err)
	return token
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAuthenticator answers logins from a function and counts calls.
type fakeAuthenticator struct {
	calls  atomic.Int32
	delay  time.Duration
	answer func(n int32, creds Credentials) LoginOutcome
}

func (f *fakeAuthenticator) Login(_ context.Context, creds Credentials) LoginOutcome {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.answer(n, creds)
}

// issuing returns an answer func that hands out distinct tokens valid for ttl.
func issuing(clock *fakeClock, ttl time.Duration) func(int32, Credentials) LoginOutcome {
	return func(n int32, _ Credentials) LoginOutcome {
		return successOutcome(fmt.Sprintf("token-%d", n), clock.Now().Add(ttl))
	}
}
