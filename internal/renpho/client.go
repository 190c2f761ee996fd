// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package renpho implements the session-lifecycle client for the Renpho cloud
API used by smart body-composition scales.

It handles token acquisition, the encrypted payload exchange, auth-failure
detection, conditional re-authentication, and the construction of the derived
measurement record consumed by the presentation layer.

Architecture:

  - Client: Owns the single session (token, user id, profile) per account.
  - Wire codec: AES-128-ECB + base64 framing for legacy protocol compatibility.
  - Errors: *APIError for general failures, *AuthError for credential failures.

The client is synchronous and performs no internal parallelism. Calls are
serialized on an internal mutex, so at most one vendor RPC cycle is in
flight per account even when the poller and the HTTP surface act at once.
*/
package renpho

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// # Session State

// UserInfo is the profile document returned by a successful login. Pointer
// fields stay nil when the vendor omits them; they feed the derived-record
// fallbacks.
type UserInfo struct {
	ID          int64    `json:"id"`
	Token       string   `json:"token"`
	Email       string   `json:"email"`
	Height      *float64 `json:"height"`
	Weight      *float64 `json:"weight"`
	WeightGoal  *float64 `json:"weightGoal"`
	BodyfatGoal *float64 `json:"bodyfatGoal"`
}

// TokenData is the persistable session document. It is only produced when
// both token and user id are present, never one without the other.
type TokenData struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

// Config configures a [Client]. Zero values fall back to production
// defaults, which keeps test wiring to the fields under test.
type Config struct {
	// Email and Password are the account credentials. They are immutable
	// for the lifetime of the client.
	Email    string
	Password string

	// BaseURL overrides the production API endpoint (tests only).
	BaseURL string

	// HTTPClient overrides the default verification-disabled transport.
	HTTPClient *http.Client

	// Logger receives transport and session lifecycle events.
	Logger *slog.Logger

	// Now overrides the wall clock used for the daily-measurement date.
	Now func() time.Time
}

// Client is the authenticated session against the Renpho cloud API.
//
// # Concurrency
//
// Client is safe for concurrent use. One logical session exists per
// configured account; a mutex serializes all session access, so a manual
// token update cannot interleave with an in-flight fetch.
type Client struct {
	email    string
	password string

	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// mu guards the session fields below and serializes RPC cycles.
	mu sync.Mutex

	token    string
	userID   int64
	userInfo UserInfo

	// validated is false while a token is present but has not yet been
	// confirmed against the live API (e.g. freshly loaded from cache).
	validated bool

	// disableAutoReauth is set when the session was seeded from an
	// externally supplied token. A silent re-login with the account
	// credentials would invalidate that shared session (e.g. the mobile
	// app's own login), so the caller must trigger it explicitly.
	disableAutoReauth bool
}

// NewClient constructs a session client from plain constructor injection;
// it has no dependency on any host registry.
func NewClient(cfg Config) *Client {
	client := &Client{
		email:      cfg.Email,
		password:   cfg.Password,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}

	if client.baseURL == "" {
		client.baseURL = DefaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = newHTTPClient()
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	if client.now == nil {
		client.now = time.Now
	}

	return client
}

// # Login

// loginRequest is the fixed login payload shape the aggregation endpoint
// expects, including the device-type allow-list for scale binding.
type loginRequest struct {
	Questionnaire struct{}         `json:"questionnaire"`
	Login         loginCredentials `json:"login"`
	BindingList   loginBindingList `json:"bindingList"`
}

type loginCredentials struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	AreaCode      string `json:"areaCode"`
	AppRevision   string `json:"appRevision"`
	CellphoneType string `json:"cellphoneType"`
	SystemType    string `json:"systemType"`
	Platform      string `json:"platform"`
}

type loginBindingList struct {
	DeviceTypes []string `json:"deviceTypes"`
}

// loginResponse is the decrypted data document of a successful login call.
type loginResponse struct {
	Login UserInfo `json:"login"`
}

/*
Login authenticates with the account credentials and replaces the session.

Description: A decrypted response containing a login object with both token
and id is required; the absence of either is a fatal [*AuthError] with no
retry. A fresh login always permits future auto re-auth, so the flag is left
untouched.

Parameters:
  - ctx: context.Context bounding the RPC.

Returns:
  - error: *AuthError on any login failure, nil on success.
*/
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

// login performs the credential exchange. c.mu must be held.
func (c *Client) login(ctx context.Context) error {
	c.logger.Info("renpho_login_started", slog.String("email", c.email))

	payload := loginRequest{
		Login: loginCredentials{
			Email:         c.email,
			Password:      c.password,
			AreaCode:      "US",
			AppRevision:   appVersion,
			CellphoneType: "HomeAssistant",
			SystemType:    "11",
			Platform:      "android",
		},
		BindingList: loginBindingList{DeviceTypes: deviceTypes},
	}

	resp, err := c.call(ctx, endpointLogin, payload)
	if err != nil {
		return &AuthError{APIError{Endpoint: endpointLogin, Message: "login failed", Cause: err}}
	}

	var document loginResponse
	if err := resp.decryptedDocument(&document); err != nil {
		return &AuthError{APIError{Endpoint: endpointLogin, Message: "failed to decrypt login response", Cause: err}}
	}

	if document.Login.Token == "" || document.Login.ID == 0 {
		return &AuthError{APIError{Endpoint: endpointLogin, Message: "login response missing token or user id"}}
	}

	// Replace the session wholesale with the fresh login identity.
	c.token = document.Login.Token
	c.userID = document.Login.ID
	c.userInfo = document.Login
	c.validated = true

	c.logger.Debug("renpho_login_successful", slog.Int64("user_id", c.userID))
	return nil
}

// # Cached Sessions

// SetCachedToken seeds the session from external storage without touching
// the network. The session starts unvalidated; it is confirmed by the first
// successful API call that uses it.
func (c *Client) SetCachedToken(token string, userID int64, disableAutoReauth bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.userID = userID
	c.validated = false
	c.disableAutoReauth = disableAutoReauth

	c.logger.Debug("renpho_cached_token_loaded",
		slog.Int64("user_id", userID),
		slog.Bool("auto_reauth", !disableAutoReauth),
	)
}

// TokenData returns the persistable session document, or nil unless both
// token and user id are present. Callers persist this after every
// successful login and fetch, since the server may rotate the token
// transparently.
func (c *Client) TokenData() *TokenData {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || c.userID == 0 {
		return nil
	}
	return &TokenData{Token: c.token, UserID: c.userID}
}

// HasToken reports whether a session token is present. The token may or may
// not have been validated against the live API yet.
func (c *Client) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != "" && c.userID != 0
}

// Validated reports whether the current token has been confirmed by a
// successful API call.
func (c *Client) Validated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validated
}

// AutoReauthDisabled reports whether the session runs on an externally
// supplied token. Persistence must record such sessions as manual so the
// provenance survives restarts.
func (c *Client) AutoReauthDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disableAutoReauth
}

// UserID returns the session's user id, or 0 when no session exists.
func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// UserInfo returns the profile captured by the most recent login.
func (c *Client) UserInfo() UserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userInfo
}

// # Measurement Fetch

// dailyResponse is the decrypted data document of the daily-measurement
// endpoint, keyed by scale electrode variant.
type dailyResponse struct {
	FourElectrodeWeight  *rawMeasurement `json:"fourElectrodeWeight"`
	EightElectrodeWeight *rawMeasurement `json:"eightElectrodeWeight"`
}

/*
FetchMeasurements retrieves today's body-composition reading and builds the
derived record.

Description: Requires a token. Without one the call either performs a login
first (auto re-auth enabled) or fails with [*AuthError] (disabled). An
auth-failure response triggers exactly one login followed by exactly one
retry when auto re-auth is enabled; a second consecutive auth failure
propagates without a further loop. Non-auth failures propagate immediately
with no re-auth attempt.

Parameters:
  - ctx: context.Context bounding the RPCs.

Returns:
  - *Measurement: The derived record for presentation.
  - error: *AuthError or *APIError.
*/
func (c *Client) FetchMeasurements(ctx context.Context) (*Measurement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" {
		if c.disableAutoReauth {
			return nil, &AuthError{APIError{
				Endpoint: endpointDailyMeasurements,
				Message:  "no token available and auto re-auth is disabled; update the token manually",
			}}
		}
		c.logger.Debug("renpho_no_token_performing_login")
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	today := c.now().Format("2006-01-02")
	payload := map[string]string{"data": today}

	resp, err := c.call(ctx, endpointDailyMeasurements, payload)
	if err != nil {
		if !IsAuthError(err) {
			return nil, err
		}
		if c.disableAutoReauth {
			c.logger.Error("renpho_token_rejected_manual_update_required")
			return nil, &AuthError{APIError{
				Endpoint: endpointDailyMeasurements,
				Message:  "token expired; update it from the mobile app to avoid logging the app out",
				Cause:    err,
			}}
		}

		// Bounded to a single re-auth cycle: one login, one retry. A second
		// auth failure on the retry propagates to the caller.
		c.logger.Info("renpho_token_invalid_reauthenticating")
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		resp, err = c.call(ctx, endpointDailyMeasurements, payload)
		if err != nil {
			return nil, err
		}
	}

	c.validated = true

	var document dailyResponse
	if resp.Decrypted != nil {
		if err := resp.decryptedDocument(&document); err != nil {
			return nil, &APIError{Endpoint: endpointDailyMeasurements, Message: "failed to parse measurement document", Cause: err}
		}
	}

	// Prefer the four-electrode variant when both scale models reported.
	reading := document.FourElectrodeWeight
	if reading == nil {
		reading = document.EightElectrodeWeight
	}

	return buildMeasurement(reading, c.userInfo), nil
}
