package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginServer(t *testing.T, handler http.HandlerFunc) (*Protocol, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := newFakeClock()
	p := NewProtocol(ProtocolConfig{
		BaseEndpoint: srv.URL + "/",
		LoginPath:    "auth/login",
		HTTPClient:   srv.Client(),
		Now:          clock.Now,
	})
	return p, clock
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLoginSuccess(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{"exp": 3600})

	p, clock := newLoginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, Credentials{Email: "svc@example.com", Password: `p"ss`}, creds)

		writeJSON(w, http.StatusOK, map[string]any{"token": token})
	})

	outcome := p.Login(context.Background(), Credentials{Email: "svc@example.com", Password: `p"ss`})
	require.True(t, outcome.Succeeded(), "unexpected failure: %v", outcome.Failure())
	assert.Equal(t, token, outcome.Token)
	assert.Equal(t, clock.Now().Add(3600*time.Second), outcome.ExpiresAt)
}

func TestLoginFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    ErrorKind
		message string
	}{
		{
			name:   "missing token field",
			status: http.StatusOK,
			body:   `{"user":"svc"}`,
			kind:   ErrorKindMalformedResponse,
		},
		{
			name:   "token not a string",
			status: http.StatusOK,
			body:   `{"token":42}`,
			kind:   ErrorKindMalformedResponse,
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			body:   ``,
			kind:   ErrorKindMalformedResponse,
		},
		{
			name:   "non numeric exp",
			status: http.StatusOK,
			body:   `{"token":"` + compact(`{"exp":"later"}`) + `"}`,
			kind:   ErrorKindMalformedToken,
		},
		{
			name:   "zero exp",
			status: http.StatusOK,
			body:   `{"token":"` + compact(`{"exp":0}`) + `"}`,
			kind:   ErrorKindMalformedToken,
		},
		{
			name:   "exp beyond duration range",
			status: http.StatusOK,
			body:   `{"token":"` + compact(`{"exp":10000000000}`) + `"}`,
			kind:   ErrorKindMalformedToken,
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `<html>`,
			kind:   ErrorKindTransportOrParse,
		},
		{
			name:    "rejected credentials",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"code":"UNAUTHORIZED","message":"Invalid credentials"}}`,
			kind:    ErrorKindRejected,
			message: "Invalid credentials",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newLoginServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			outcome := p.Login(context.Background(), Credentials{Email: "a", Password: "b"})
			require.False(t, outcome.Succeeded())
			assert.Empty(t, outcome.Token)
			assert.Equal(t, tc.kind, outcome.Err.Kind)
			if tc.message != "" {
				assert.Equal(t, tc.message, outcome.Err.Message)
			}
			assert.True(t, IsLoginError(outcome.Failure(), tc.kind))
		})
	}
}

func TestLoginTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProtocol(ProtocolConfig{BaseEndpoint: url, LoginPath: "/login"})
	outcome := p.Login(context.Background(), Credentials{})

	require.False(t, outcome.Succeeded())
	assert.Equal(t, ErrorKindTransportOrParse, outcome.Err.Kind)
	assert.NotEmpty(t, outcome.Err.Message)
}

func TestLoginFlagsExpiryMessages(t *testing.T) {
	p, _ := newLoginServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Password EXPIRED"})
	})

	outcome := p.Login(context.Background(), Credentials{})
	require.False(t, outcome.Succeeded())
	assert.True(t, outcome.Err.AuthExpiry)
}
