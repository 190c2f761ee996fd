// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho

import (
	"errors"
	"fmt"
)

// # Error Taxonomy

// APIError is the general failure type for every vendor API interaction:
// transport failures, unexpected response shapes, and non-auth API error
// codes. The Cause chain is preserved for [errors.Is] / [errors.As].
type APIError struct {
	// Endpoint is the RPC path segment the failure occurred on.
	Endpoint string

	// Code is the vendor response code, or 0 when the failure happened
	// before a response was parsed (transport, codec).
	Code int

	// Message is the vendor-supplied or wrapped failure description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("renpho: %s (code %d): %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("renpho: %s: %s", e.Endpoint, e.Message)
}

// Unwrap exposes the underlying cause to [errors.Is] and [errors.As].
func (e *APIError) Unwrap() error { return e.Cause }

// AuthError is the specialization of [APIError] for failures that cannot be
// resolved without new credentials or a new token: rejected logins,
// expired/invalid sessions, and auth failures observed while auto re-auth
// is disabled or already exhausted.
type AuthError struct {
	APIError
}

// Unwrap yields the embedded [*APIError] so that a coarse-grained
// errors.As(err, &apiErr) also matches auth failures.
func (e *AuthError) Unwrap() error { return &e.APIError }

// IsAuthError reports whether err (or any error in its chain) is an [*AuthError].
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// CodecError reports a payload that could not be encrypted or decrypted by
// the wire codec.
type CodecError struct {
	// Op names the failing operation ("encrypt" or "decrypt").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	return fmt.Sprintf("renpho: codec %s failed: %v", e.Op, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *CodecError) Unwrap() error { return e.Cause }
