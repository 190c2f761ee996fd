// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ra486/hacs-renpho-health/internal/renpho"
)

const (
	loginPath = "/renpho-aggregation/user/login"
	fetchPath = "/RenphoHealth/healthManage/dailyCalories"
)

// fakeVendor is a scripted stand-in for the Renpho cloud API. Handlers are
// swapped per test; call counters verify the re-auth bounds.
type fakeVendor struct {
	t *testing.T

	server *httptest.Server

	loginCalls int
	fetchCalls int

	handleLogin func(w http.ResponseWriter, r *http.Request)
	handleFetch func(w http.ResponseWriter, r *http.Request)
}

func newFakeVendor(t *testing.T) *fakeVendor {
	vendor := &fakeVendor{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		vendor.loginCalls++
		require.NotNil(t, vendor.handleLogin, "unexpected login call")
		vendor.handleLogin(w, r)
	})
	mux.HandleFunc(fetchPath, func(w http.ResponseWriter, r *http.Request) {
		vendor.fetchCalls++
		require.NotNil(t, vendor.handleFetch, "unexpected fetch call")
		vendor.handleFetch(w, r)
	})

	vendor.server = httptest.NewServer(mux)
	t.Cleanup(vendor.server.Close)

	return vendor
}

func (v *fakeVendor) client() *renpho.Client {
	return renpho.NewClient(renpho.Config{
		Email:      "user@example.com",
		Password:   "hunter2",
		BaseURL:    v.server.URL,
		HTTPClient: v.server.Client(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// writeEnvelope writes a vendor response with an encrypted data document.
func writeEnvelope(t *testing.T, w http.ResponseWriter, code int, msg string, document any) {
	t.Helper()

	envelope := map[string]any{"code": code, "msg": msg}
	if document != nil {
		raw, err := json.Marshal(document)
		require.NoError(t, err)

		encrypted, err := renpho.Encrypt(string(raw))
		require.NoError(t, err)
		envelope["data"] = encrypted
	}

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(envelope))
}

func loginDocument(token string, id int64) map[string]any {
	return map[string]any{
		"login": map[string]any{
			"token":  token,
			"id":     id,
			"email":  "user@example.com",
			"height": 180.0,
			"weight": 82.5,
		},
	}
}

func measurementDocument(weight float64) map[string]any {
	return map[string]any{
		"fourElectrodeWeight": map[string]any{
			"weight":         weight,
			"bodyfat":        18.2,
			"scaleName":      "Renpho Elis 1",
			"localCreatedAt": "2026-08-31 07:12:00",
		},
	}
}

/*
TestClient_Login_Success verifies the fresh-login scenario: the session
becomes validated and TokenData returns the persisted pair.
*/
func TestClient_Login_Success(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleLogin = func(w http.ResponseWriter, r *http.Request) {
		// The request body must be the encrypted envelope carrying the
		// account credentials.
		var body struct {
			EncryptData string `json:"encryptData"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		plaintext, err := renpho.Decrypt(body.EncryptData)
		require.NoError(t, err)
		assert.Contains(t, plaintext, `"email":"user@example.com"`)
		assert.Contains(t, plaintext, `"deviceTypes"`)

		writeEnvelope(t, w, 101, "ok", loginDocument("T", 42))
	}

	client := vendor.client()
	require.NoError(t, client.Login(context.Background()))

	assert.True(t, client.Validated())
	assert.Equal(t, int64(42), client.UserID())

	tokenData := client.TokenData()
	require.NotNil(t, tokenData)
	assert.Equal(t, "T", tokenData.Token)
	assert.Equal(t, int64(42), tokenData.UserID)
}

/*
TestClient_Login_MissingTokenOrID verifies that a login response lacking the
token or the user id is a fatal AuthError with no retry.
*/
func TestClient_Login_MissingTokenOrID(t *testing.T) {
	tests := []struct {
		name     string
		document map[string]any
	}{
		{"missing_token", map[string]any{"login": map[string]any{"id": 42}}},
		{"missing_id", map[string]any{"login": map[string]any{"token": "T"}}},
		{"no_login_object", map[string]any{"something": "else"}},
		{"undecryptable", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := newFakeVendor(t)
			vendor.handleLogin = func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(t, w, 101, "ok", tt.document)
			}

			client := vendor.client()
			err := client.Login(context.Background())
			require.Error(t, err)
			assert.True(t, renpho.IsAuthError(err))
			assert.False(t, client.Validated())
			assert.Nil(t, client.TokenData())
			assert.Equal(t, 1, vendor.loginCalls)
		})
	}
}

/*
TestClient_Fetch_SuccessNeverLogsIn verifies that a code-101 response never
triggers a login call, and validates a cached token.
*/
func TestClient_Fetch_SuccessNeverLogsIn(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "T", r.Header.Get("token"))
		assert.Equal(t, "42", r.Header.Get("userId"))
		writeEnvelope(t, w, 101, "ok", measurementDocument(70.0))
	}

	client := vendor.client()
	client.SetCachedToken("T", 42, false)
	assert.False(t, client.Validated())

	measurement, err := client.FetchMeasurements(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, vendor.loginCalls)
	assert.Equal(t, 1, vendor.fetchCalls)
	assert.True(t, client.Validated())

	require.NotNil(t, measurement.WeightKg)
	assert.Equal(t, 70.0, *measurement.WeightKg)
	require.NotNil(t, measurement.WeightLbs)
	assert.Equal(t, 154.3, *measurement.WeightLbs)
	require.NotNil(t, measurement.ScaleName)
	assert.Equal(t, "Renpho Elis 1", *measurement.ScaleName)
}

/*
TestClient_Fetch_ReauthenticatesExactlyOnce verifies the bounded re-auth
cycle: one login plus one retried fetch after an auth-failure response.
*/
func TestClient_Fetch_ReauthenticatesExactlyOnce(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleLogin = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 101, "ok", loginDocument("T2", 42))
	}
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		if vendor.fetchCalls == 1 {
			writeEnvelope(t, w, 401, "token expired", nil)
			return
		}
		writeEnvelope(t, w, 101, "ok", measurementDocument(70.0))
	}

	client := vendor.client()
	client.SetCachedToken("T1", 42, false)

	measurement, err := client.FetchMeasurements(context.Background())
	require.NoError(t, err)
	require.NotNil(t, measurement.WeightKg)

	assert.Equal(t, 1, vendor.loginCalls)
	assert.Equal(t, 2, vendor.fetchCalls)

	// The rotated token must be the persistable one.
	tokenData := client.TokenData()
	require.NotNil(t, tokenData)
	assert.Equal(t, "T2", tokenData.Token)
}

/*
TestClient_Fetch_SecondAuthFailureSurfaces verifies that an auth failure on
the retried fetch propagates as AuthError with no third network call.
*/
func TestClient_Fetch_SecondAuthFailureSurfaces(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleLogin = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 101, "ok", loginDocument("T2", 42))
	}
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 401, "token expired", nil)
	}

	client := vendor.client()
	client.SetCachedToken("T1", 42, false)

	_, err := client.FetchMeasurements(context.Background())
	require.Error(t, err)
	assert.True(t, renpho.IsAuthError(err))

	assert.Equal(t, 1, vendor.loginCalls)
	assert.Equal(t, 2, vendor.fetchCalls)
	assert.False(t, client.Validated())
}

/*
TestClient_Fetch_ReauthDisabled verifies that with auto re-auth disabled an
auth-failure response raises AuthError immediately and no login ever occurs.
*/
func TestClient_Fetch_ReauthDisabled(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 403, "forbidden", nil)
	}

	client := vendor.client()
	client.SetCachedToken("T", 42, true)

	_, err := client.FetchMeasurements(context.Background())
	require.Error(t, err)
	assert.True(t, renpho.IsAuthError(err))

	assert.Equal(t, 0, vendor.loginCalls)
	assert.Equal(t, 1, vendor.fetchCalls)
}

/*
TestClient_Fetch_NoTokenReauthDisabled verifies that a missing token with
auto re-auth disabled fails fast without any network traffic.
*/
func TestClient_Fetch_NoTokenReauthDisabled(t *testing.T) {
	vendor := newFakeVendor(t)

	client := vendor.client()
	client.SetCachedToken("", 0, true)

	_, err := client.FetchMeasurements(context.Background())
	require.Error(t, err)
	assert.True(t, renpho.IsAuthError(err))

	assert.Equal(t, 0, vendor.loginCalls)
	assert.Equal(t, 0, vendor.fetchCalls)
}

/*
TestClient_Fetch_NoTokenLogsInFirst verifies that a missing token with auto
re-auth enabled performs a login before the fetch.
*/
func TestClient_Fetch_NoTokenLogsInFirst(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleLogin = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 101, "ok", loginDocument("T", 42))
	}
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 101, "ok", measurementDocument(70.0))
	}

	client := vendor.client()

	measurement, err := client.FetchMeasurements(context.Background())
	require.NoError(t, err)
	require.NotNil(t, measurement.WeightKg)

	assert.Equal(t, 1, vendor.loginCalls)
	assert.Equal(t, 1, vendor.fetchCalls)
}

/*
TestClient_Fetch_NonAuthFailurePropagates verifies that non-auth API errors
propagate as APIError without any re-auth attempt.
*/
func TestClient_Fetch_NonAuthFailurePropagates(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 500, "server exploded", nil)
	}

	client := vendor.client()
	client.SetCachedToken("T", 42, false)

	_, err := client.FetchMeasurements(context.Background())
	require.Error(t, err)
	assert.False(t, renpho.IsAuthError(err))

	var apiErr *renpho.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.Code)

	assert.Equal(t, 0, vendor.loginCalls)
	assert.Equal(t, 1, vendor.fetchCalls)
}

/*
TestClient_Fetch_AuthFailureByKeyword verifies the message-based half of the
auth-failure classification: a non-auth code with an auth keyword in the
message is still treated as an auth failure.
*/
func TestClient_Fetch_AuthFailureByKeyword(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 500, "Token has EXPIRED", nil)
	}

	client := vendor.client()
	client.SetCachedToken("T", 42, true)

	_, err := client.FetchMeasurements(context.Background())
	require.Error(t, err)
	assert.True(t, renpho.IsAuthError(err))
	assert.Equal(t, 0, vendor.loginCalls)
}

/*
TestClient_Fetch_PlaintextDataSkipped verifies the permissive data handling:
a data field whose base64-decoded length is not a multiple of 16 is skipped
without failing the call.
*/
func TestClient_Fetch_PlaintextDataSkipped(t *testing.T) {
	vendor := newFakeVendor(t)
	vendor.handleFetch = func(w http.ResponseWriter, r *http.Request) {
		// 17 raw bytes: valid base64, not block-aligned, so decryption is
		// skipped and the call still succeeds.
		plain := base64.StdEncoding.EncodeToString([]byte("17 plaintext bytes"[:17]))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"code": 101, "msg": "ok", "data": plain,
		}))
	}

	client := vendor.client()
	client.SetCachedToken("T", 42, false)

	measurement, err := client.FetchMeasurements(context.Background())
	require.NoError(t, err)

	// No decrypted document means no reading: every field is absent.
	assert.Nil(t, measurement.WeightKg)
	assert.Nil(t, measurement.ScaleName)
	assert.True(t, client.Validated())
}

/*
TestClient_TokenData verifies the both-or-nothing persistence invariant.
*/
func TestClient_TokenData(t *testing.T) {
	vendor := newFakeVendor(t)

	client := vendor.client()
	assert.Nil(t, client.TokenData())

	client.SetCachedToken("T", 0, false)
	assert.Nil(t, client.TokenData())

	client.SetCachedToken("", 42, false)
	assert.Nil(t, client.TokenData())

	client.SetCachedToken("T", 42, false)
	tokenData := client.TokenData()
	require.NotNil(t, tokenData)
	assert.Equal(t, "T", tokenData.Token)
	assert.Equal(t, int64(42), tokenData.UserID)
	assert.True(t, client.HasToken())
}
