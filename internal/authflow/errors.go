package authflow

import (
	"errors"
	"fmt"
)

// Kind classifies a token-acquisition failure. Every failure surfaced by
// this package carries exactly one Kind; none are retried internally except
// the RFC-mandated poll continuations (authorization_pending and slow_down,
// which are protocol-normal and never become errors).
type Kind string

const (
	// KindInvalidCredentials means the token endpoint rejected the client
	// id/secret pair (HTTP 400/401 with error=invalid_client).
	KindInvalidCredentials Kind = "invalid_credentials"

	// KindInvalidScope means the requested scope was rejected
	// (HTTP 400 with error=invalid_scope).
	KindInvalidScope Kind = "invalid_scope"

	// KindNetworkError means the request never produced an HTTP response.
	KindNetworkError Kind = "network_error"

	// KindUnexpectedResponse means the endpoint answered with an unknown
	// status or a body this package cannot interpret.
	KindUnexpectedResponse Kind = "unexpected_response"

	// KindAuthorizationDenied means the user declined the device
	// authorization request. Terminal for the device session.
	KindAuthorizationDenied Kind = "authorization_denied"

	// KindDeviceCodeExpired means the device code expired before the user
	// completed authentication. Terminal for the device session.
	KindDeviceCodeExpired Kind = "device_code_expired"

	// KindTimeout means the wall-clock bound on a blocking poll elapsed
	// before the device session reached a terminal state. The session
	// itself may still be pending.
	KindTimeout Kind = "timeout"

	// KindReauthenticationRequired means no valid device-flow token is
	// available and the full device flow must be run again.
	KindReauthenticationRequired Kind = "reauthentication_required"
)

// Error is a classified token-acquisition failure. Status, Code and
// Description carry the HTTP status and the OAuth error body fields when a
// response was received, so callers can log and display the failure without
// re-parsing anything.
type Error struct {
	Kind        Kind
	Status      int    // HTTP status code, 0 if no response was received
	Code        string // OAuth "error" field from the response body
	Description string // OAuth "error_description" field
	Err         error  // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or the empty Kind when err was not
// produced by this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
