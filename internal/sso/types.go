package sso

import "time"

// Credentials identify the account used to log in on the provider.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CachedToken is the last token obtained by a successful login.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be served at now, keeping skew
// as a safety margin before the nominal expiry.
func (t CachedToken) ValidAt(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-skew))
}

// TokenStatus is a read-only view of the cache for status reporting.
type TokenStatus struct {
	Cached    bool
	Valid     bool
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// LoginOutcome is the result of one login attempt. Exactly one of Token or
// Err is meaningful: Err is nil on success.
type LoginOutcome struct {
	Token     string
	ExpiresAt time.Time
	Err       *LoginError
}

// Result is anything that can report a call failure with a free-text message.
type Result interface {
	Succeeded() bool
	FailureMessage() string
}

// Succeeded reports whether the login produced a token.
func (o LoginOutcome) Succeeded() bool {
	return o.Err == nil
}

// FailureMessage returns the failure text, or "" on success.
func (o LoginOutcome) FailureMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Message
}

// Failure returns the failure as an error value, or nil on success.
func (o LoginOutcome) Failure() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}

func successOutcome(token string, expiresAt time.Time) LoginOutcome {
	return LoginOutcome{Token: token, ExpiresAt: expiresAt}
}

func failureOutcome(kind ErrorKind, message string, err error) LoginOutcome {
	return LoginOutcome{Err: &LoginError{
		Kind:       kind,
		Message:    message,
		AuthExpiry: mentionsExpired(message),
		Err:        err,
	}}
}
