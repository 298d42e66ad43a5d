package sso

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a login attempt failed.
type ErrorKind string

const (
	// ErrorKindTransportOrParse covers network failures, timeouts and any
	// unexpected error while exchanging the login request.
	ErrorKindTransportOrParse ErrorKind = "TRANSPORT_OR_PARSE"
	// ErrorKindMalformedResponse means the provider answered successfully but
	// the body carries no usable token.
	ErrorKindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"
	// ErrorKindMalformedToken means the token payload could not be decoded or
	// lacks a usable exp claim.
	ErrorKindMalformedToken ErrorKind = "MALFORMED_TOKEN"
	// ErrorKindRejected means the provider classified the login as a failure
	// (bad credentials, 4xx/5xx).
	ErrorKindRejected ErrorKind = "REJECTED"
	// ErrorKindAuthRejected is never produced by a login. Callers use it when a
	// downstream call was refused because the bearer token expired.
	ErrorKindAuthRejected ErrorKind = "AUTH_REJECTED"
)

// LoginError carries the failure detail of a login attempt.
type LoginError struct {
	Kind    ErrorKind
	Message string
	// AuthExpiry is set when the failure message reports an expired token.
	AuthExpiry bool
	Err        error
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("sso login failed (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("sso login failed (%s)", e.Kind)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// IsLoginError reports whether err is, or wraps, a *LoginError of the given kind.
// An empty kind matches any login error.
func IsLoginError(err error, kind ErrorKind) bool {
	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		return false
	}
	return kind == "" || loginErr.Kind == kind
}

// MalformedTokenError reports a compact token whose payload could not yield an
// exp claim.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token: %s: %v", e.Reason, e.Err)
	}
	return "malformed token: " + e.Reason
}

func (e *MalformedTokenError) Unwrap() error {
	return e.Err
}

func newMalformedTokenError(reason string, err error) *MalformedTokenError {
	return &MalformedTokenError{Reason: reason, Err: err}
}
