// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package sec_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ra486/hacs-renpho-health/internal/platform/sec"
)

// buildToken assembles an unsigned JWT with the given payload JSON.
func buildToken(payload string) string {
	encode := func(segment string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(segment))
	}
	return encode(`{"alg":"HS256","typ":"JWT"}`) + "." + encode(payload) + "." + encode("sig")
}

/*
TestUserIDFromToken verifies user-id extraction from the unverified JWT
payload, including the string-typed claim variant.
*/
func TestUserIDFromToken(t *testing.T) {
	t.Run("numeric_claim", func(t *testing.T) {
		userID, err := sec.UserIDFromToken(buildToken(`{"userId":42}`))
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
	})

	t.Run("string_claim", func(t *testing.T) {
		userID, err := sec.UserIDFromToken(buildToken(`{"userId":"42"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
	})

	t.Run("missing_claim", func(t *testing.T) {
		_, err := sec.UserIDFromToken(buildToken(`{"sub":"someone"}`))
		assert.Error(t, err)
	})

	t.Run("not_a_jwt", func(t *testing.T) {
		_, err := sec.UserIDFromToken("definitely-not-a-token")
		assert.Error(t, err)
	})
}

/*
TestLooksLikeSessionToken verifies the cheap shape check applied before a
manually pasted token is persisted.
*/
func TestLooksLikeSessionToken(t *testing.T) {
	assert.True(t, sec.LooksLikeSessionToken("eyJhbGciOiJIUzI1NiJ9.e30.x"))
	assert.True(t, sec.LooksLikeSessionToken("  eyJhbGciOiJIUzI1NiJ9.e30.x  "))
	assert.False(t, sec.LooksLikeSessionToken("Bearer something"))
	assert.False(t, sec.LooksLikeSessionToken(""))
}
