// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package renpho

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// # Transport
//
// Every vendor operation is a single POST RPC: the plaintext JSON payload is
// encrypted by the wire codec, wrapped in {"encryptData": ...}, and sent with
// a fixed header set. Responses carry {code, msg, data} where a non-empty
// data field is usually (but not always) an encrypted JSON document.

// requestEnvelope is the outer JSON body of every RPC.
type requestEnvelope struct {
	EncryptData string `json:"encryptData"`
}

// response is the parsed vendor response envelope. Decrypted holds the
// decoded data document when the data field was present and decryptable;
// it stays nil for endpoints that return plaintext or no auxiliary data.
type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`

	Decrypted json.RawMessage `json:"-"`
}

// newHTTPClient builds the default transport. The vendor endpoint presents a
// certificate the mobile clients do not validate, so verification is
// disabled to stay reachable; the fixed key codec is the only wire framing.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// headers returns the fixed header set, plus token/userId when a session is
// present.
func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Content-Type":  "application/json;charset=UTF-8",
		"language":      "en",
		"appVersion":    appVersion,
		"platform":      "android",
		"area":          "US",
		"timeZone":      "-6",
		"systemVersion": "16",
		"languageCode":  "en",
		"userArea":      "US",
	}
	if c.token != "" {
		h["token"] = c.token
	}
	if c.userID != 0 {
		h["userId"] = strconv.FormatInt(c.userID, 10)
	}
	return h
}

/*
call performs one encrypted RPC against the vendor API.

Description: Serializes and encrypts the payload, POSTs it, then classifies
the response: code 101 is success, a code/message matching the auth-failure
set yields [*AuthError] (and resets the validated flag), anything else yields
[*APIError].

Parameters:
  - ctx: context.Context for the request lifetime.
  - endpoint: RPC path segment under the base URL.
  - payload: request document, or nil for an empty object.

Returns:
  - *response: Parsed envelope with Decrypted populated when possible.
  - error: *AuthError, *APIError, or nil.
*/
func (c *Client) call(ctx context.Context, endpoint string, payload any) (*response, error) {
	if payload == nil {
		payload = struct{}{}
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "failed to encode request payload", Cause: err}
	}

	encrypted, err := Encrypt(string(plaintext))
	if err != nil {
		c.logger.Error("request_encryption_failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		return nil, &APIError{Endpoint: endpoint, Message: "failed to encrypt request payload", Cause: err}
	}

	body, err := json.Marshal(requestEnvelope{EncryptData: encrypted})
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "failed to encode request envelope", Cause: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "failed to build request", Cause: err}
	}
	for key, value := range c.headers() {
		request.Header.Set(key, value)
	}

	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Error("api_call_failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		return nil, &APIError{Endpoint: endpoint, Message: "api call failed", Cause: err}
	}
	defer func() { _ = httpResponse.Body.Close() }()

	rawResponse, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		c.logger.Error("api_response_read_failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		return nil, &APIError{Endpoint: endpoint, Message: "failed to read response", Cause: err}
	}

	parsed := &response{}
	if err := json.Unmarshal(rawResponse, parsed); err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "failed to parse response envelope", Cause: err}
	}

	// Classify failures before touching the data field.
	if parsed.Code != codeSuccess {
		message := parsed.Msg
		if message == "" {
			message = "unknown error"
		}
		c.logger.Error("api_error_response",
			slog.String("endpoint", endpoint),
			slog.Int("code", parsed.Code),
			slog.String("msg", message),
		)

		if isAuthFailure(parsed.Code, message) {
			c.validated = false
			return nil, &AuthError{APIError{Endpoint: endpoint, Code: parsed.Code, Message: message}}
		}
		return nil, &APIError{Endpoint: endpoint, Code: parsed.Code, Message: message}
	}

	c.decodeData(endpoint, parsed)

	return parsed, nil
}

// decodeData best-effort decrypts the response data field.
//
// Some endpoints return unencrypted auxiliary data, so a payload whose
// base64-decoded length is not a multiple of the cipher block size is
// skipped silently; decode failures are logged and never fail the call.
func (c *Client) decodeData(endpoint string, parsed *response) {
	if parsed.Data == "" {
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		c.logger.Warn("response_data_not_base64", slog.String("endpoint", endpoint), slog.Any("error", err))
		return
	}
	if len(decoded)%aes.BlockSize != 0 {
		// Plaintext auxiliary data; leave the envelope as-is.
		c.logger.Debug("response_data_not_encrypted",
			slog.String("endpoint", endpoint),
			slog.Int("length", len(decoded)),
		)
		return
	}

	decrypted, err := Decrypt(parsed.Data)
	if err != nil {
		c.logger.Warn("response_decryption_failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		return
	}

	if !json.Valid([]byte(decrypted)) {
		c.logger.Warn("response_data_not_json", slog.String("endpoint", endpoint))
		return
	}

	parsed.Decrypted = json.RawMessage(decrypted)
}

// isAuthFailure reports whether a failure response indicates bad, expired,
// or missing credentials rather than a generic API error.
func isAuthFailure(code int, message string) bool {
	for _, authCode := range authErrorCodes {
		if code == authCode {
			return true
		}
	}

	lowered := strings.ToLower(message)
	for _, keyword := range authErrorKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// decryptedDocument unmarshals the decrypted data field into target.
func (r *response) decryptedDocument(target any) error {
	if r.Decrypted == nil {
		return fmt.Errorf("response has no decrypted data")
	}
	return json.Unmarshal(r.Decrypted, target)
}
