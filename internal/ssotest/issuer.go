package ssotest

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	errInvalidToken = errors.New("invalid token")
	errExpiredToken = errors.New("token expired")
)

// TokenIssuer signs tokens the way the provider does: exp holds the lifetime
// in seconds, iat the issue time. A token is expired once iat+exp has passed
// or its generation has been revoked.
type TokenIssuer struct {
	secret     []byte
	ttl        time.Duration
	generation atomic.Int64
	now        func() time.Time
}

// NewTokenIssuer builds an issuer. ttl defaults to one hour.
func NewTokenIssuer(secret string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

// IssuedToken describes a freshly signed token.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Issue signs a token for email.
func (ti *TokenIssuer) Issue(email string) (IssuedToken, error) {
	issuedAt := ti.now()
	claims := jwt.MapClaims{
		"sub": email,
		"exp": int64(ti.ttl / time.Second),
		"iat": issuedAt.Unix(),
		"gen": ti.generation.Load(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ExpiresAt: issuedAt.Add(ti.ttl)}, nil
}

// RevokeAll makes every token issued so far report as expired.
func (ti *TokenIssuer) RevokeAll() {
	ti.generation.Add(1)
}

// Verify checks the signature and the relative expiry, returning the subject
// and the instant the token expired or will expire.
func (ti *TokenIssuer) Verify(tokenStr string) (string, time.Time, error) {
	// exp is relative, so the library's absolute exp check must stay off.
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return "", time.Time{}, errInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, errInvalidToken
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", time.Time{}, errInvalidToken
	}
	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return "", time.Time{}, errInvalidToken
	}
	lifetime, ok := claims["exp"].(float64)
	if !ok {
		return "", time.Time{}, errInvalidToken
	}
	generation, _ := claims["gen"].(float64)

	expiresAt := issuedAt.Time.Add(time.Duration(lifetime) * time.Second)
	if int64(generation) != ti.generation.Load() || !ti.now().Before(expiresAt) {
		return subject, expiresAt, fmt.Errorf("%w at %s", errExpiredToken, expiresAt.UTC().Format(time.RFC3339))
	}
	return subject, expiresAt, nil
}
