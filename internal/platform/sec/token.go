// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

// Package sec inspects externally supplied Renpho session tokens.
//
// # Architecture
//
// Tokens pasted from the vendor's mobile app are JWTs signed by the vendor;
// we cannot verify the signature (the key is the vendor's), but the payload
// carries the user id the persisted session document needs. This package
// isolates that deliberately-unverified parsing from the rest of the daemon.
package sec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// sessionTokenPrefix is the base64 header every vendor session JWT starts
// with ({"alg":...).
const sessionTokenPrefix = "eyJ"

// LooksLikeSessionToken reports whether the string has the shape of a
// vendor session JWT. Used as a cheap sanity check before persisting a
// manually supplied token.
func LooksLikeSessionToken(token string) bool {
	return strings.HasPrefix(strings.TrimSpace(token), sessionTokenPrefix)
}

// sessionClaims is the subset of the vendor JWT payload we care about.
//
// The userId claim has been observed both as a number and as a string, so
// it is captured raw and coerced afterwards.
type sessionClaims struct {
	jwt.RegisteredClaims

	UserID json.Number `json:"userId"`
}

/*
UserIDFromToken extracts the vendor user id from a session JWT payload.

Description: The token signature is NOT verified; the caller only learns
which account the token claims to belong to. The extracted id pairs the
token with a user id so the persisted document satisfies the token/user-id
invariant.

Parameters:
  - token: The raw JWT string pasted from the mobile app.

Returns:
  - int64: The userId claim.
  - error: Parse failures or a missing/non-numeric claim.
*/
func UserIDFromToken(token string) (int64, error) {
	claims := &sessionClaims{}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return 0, fmt.Errorf("sec: failed to parse session token: %w", err)
	}

	if claims.UserID == "" {
		return 0, fmt.Errorf("sec: session token has no userId claim")
	}

	userID, err := claims.UserID.Int64()
	if err != nil {
		return 0, fmt.Errorf("sec: session token userId claim is not numeric: %w", err)
	}

	return userID, nil
}
