// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ra486/hacs-renpho-health/internal/renpho"
)

/*
TestIsCredentialRejection verifies that only vendor auth-code rejections are
classified as fatal at startup; transport failures and non-auth server
errors are left to the scheduled retry.
*/
func TestIsCredentialRejection(t *testing.T) {
	// Login wraps every failure in an auth error with code 0; the
	// classified response sits in the cause chain.
	wrapLogin := func(cause error) error {
		return &renpho.AuthError{APIError: renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Message:  "login failed",
			Cause:    cause,
		}}
	}

	t.Run("vendor_auth_code_is_fatal", func(t *testing.T) {
		err := wrapLogin(&renpho.AuthError{APIError: renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Code:     102,
			Message:  "invalid credentials",
		}})
		assert.True(t, isCredentialRejection(err))
	})

	t.Run("keyword_classified_code_is_fatal", func(t *testing.T) {
		err := wrapLogin(&renpho.AuthError{APIError: renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Code:     500,
			Message:  "token expired",
		}})
		assert.True(t, isCredentialRejection(err))
	})

	t.Run("transport_failure_is_retryable", func(t *testing.T) {
		err := wrapLogin(&renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Message:  "api call failed",
			Cause:    errors.New("connection refused"),
		})
		assert.False(t, isCredentialRejection(err))
	})

	t.Run("non_auth_server_error_is_retryable", func(t *testing.T) {
		err := wrapLogin(&renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Code:     500,
			Message:  "server exploded",
		})
		assert.False(t, isCredentialRejection(err))
	})

	t.Run("malformed_login_response_is_retryable", func(t *testing.T) {
		err := &renpho.AuthError{APIError: renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Message:  "login response missing token or user id",
		}}
		assert.False(t, isCredentialRejection(err))
	})

	t.Run("plain_error_is_retryable", func(t *testing.T) {
		assert.False(t, isCredentialRejection(errors.New("boom")))
	})
}
