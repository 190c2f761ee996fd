// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ra486/hacs-renpho-health/internal/api"
	"github.com/ra486/hacs-renpho-health/internal/history"
	"github.com/ra486/hacs-renpho-health/internal/poller"
	"github.com/ra486/hacs-renpho-health/internal/renpho"
	"github.com/ra486/hacs-renpho-health/internal/tokenstore"
	"github.com/ra486/hacs-renpho-health/pkg/pointer"
)

// # Test Doubles

type stubState struct {
	snapshot   poller.Snapshot
	refreshErr error
	refreshed  int
}

func (s *stubState) Snapshot() poller.Snapshot { return s.snapshot }

func (s *stubState) Refresh(_ context.Context) error {
	s.refreshed++
	return s.refreshErr
}

type stubSession struct {
	token    string
	userID   int64
	disabled bool
	calls    int
}

func (s *stubSession) SetCachedToken(token string, userID int64, disableAutoReauth bool) {
	s.token = token
	s.userID = userID
	s.disabled = disableAutoReauth
	s.calls++
}

type stubHistory struct {
	entries []*history.Entry
	total   int
	err     error
	limit   int
	offset  int
}

func (s *stubHistory) List(_ context.Context, limit, offset int) ([]*history.Entry, int, error) {
	s.limit = limit
	s.offset = offset
	return s.entries, s.total, s.err
}

// sessionToken builds a structurally valid unsigned JWT carrying a userId claim.
func sessionToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	encode := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}

	header := encode(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload := encode(claims)
	return header + "." + payload + ".signature"
}

func doRequest(handler *api.ReadingsHandler, method, target string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}

	request := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, request)
	return recorder
}

// # Snapshot Endpoint

func TestReadings_ReturnsSnapshot(t *testing.T) {
	state := &stubState{
		snapshot: poller.Snapshot{
			Reading:   &renpho.Measurement{WeightKg: pointer.To(70.0)},
			UpdatedAt: time.Now(),
		},
	}
	handler := api.NewReadingsHandler(state, &stubSession{}, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodGet, "/readings", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data poller.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Reading)
	assert.Equal(t, 70.0, *envelope.Data.Reading.WeightKg)
	assert.False(t, envelope.Data.Stale)
}

// # Manual Refresh Endpoint

func TestRefresh_TriggersFetchAndReturnsFreshSnapshot(t *testing.T) {
	state := &stubState{
		snapshot: poller.Snapshot{
			Reading: &renpho.Measurement{WeightKg: pointer.To(71.5)},
		},
	}
	handler := api.NewReadingsHandler(state, &stubSession{}, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodPost, "/refresh", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, state.refreshed)
}

func TestRefresh_AuthFailureMapsTo401(t *testing.T) {
	state := &stubState{
		refreshErr: &renpho.AuthError{APIError: renpho.APIError{
			Endpoint: "renpho-aggregation/user/login",
			Code:     103,
			Message:  "token expired",
		}},
	}
	handler := api.NewReadingsHandler(state, &stubSession{}, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodPost, "/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRefresh_TransportFailureMapsTo503(t *testing.T) {
	state := &stubState{refreshErr: errors.New("connection refused")}
	handler := api.NewReadingsHandler(state, &stubSession{}, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodPost, "/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

// # Token Update Endpoint

func TestUpdateToken_ExtractsUserIDAndSeedsSession(t *testing.T) {
	// 1. Build a token carrying userId 4711 and post it without user_id.
	token := sessionToken(t, map[string]any{"userId": 4711})
	body, err := json.Marshal(map[string]string{"token": token})
	require.NoError(t, err)

	session := &stubSession{}
	store := tokenstore.NewMemoryStore()
	handler := api.NewReadingsHandler(&stubState{}, session, store, nil, "user@example.com")

	recorder := doRequest(handler, http.MethodPost, "/token", body)
	require.Equal(t, http.StatusOK, recorder.Code)

	// 2. The session is seeded with re-authentication disabled.
	require.Equal(t, 1, session.calls)
	assert.Equal(t, token, session.token)
	assert.Equal(t, int64(4711), session.userID)
	assert.True(t, session.disabled)

	// 3. The document is persisted with a manual source marker.
	document, err := store.Load(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, token, document.Token)
	assert.Equal(t, int64(4711), document.UserID)
	assert.Equal(t, tokenstore.SourceManual, document.Source)
}

func TestUpdateToken_ExplicitUserIDWins(t *testing.T) {
	token := sessionToken(t, map[string]any{"userId": 4711})
	body, err := json.Marshal(map[string]any{"token": token, "user_id": 99})
	require.NoError(t, err)

	session := &stubSession{}
	handler := api.NewReadingsHandler(&stubState{}, session, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodPost, "/token", body)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(99), session.userID)
}

func TestUpdateToken_RejectsBadInput(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "not_json", body: "{nope"},
		{name: "missing_token", body: `{}`},
		{name: "not_a_jwt", body: `{"token": "plainstring"}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			session := &stubSession{}
			handler := api.NewReadingsHandler(&stubState{}, session, tokenstore.NewMemoryStore(), nil, "user@example.com")

			recorder := doRequest(handler, http.MethodPost, "/token", []byte(testCase.body))
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Zero(t, session.calls)
		})
	}
}

func TestUpdateToken_TokenWithoutUserIDNeedsExplicitID(t *testing.T) {
	token := sessionToken(t, map[string]any{"sub": "someone"})
	body, err := json.Marshal(map[string]string{"token": token})
	require.NoError(t, err)

	session := &stubSession{}
	handler := api.NewReadingsHandler(&stubState{}, session, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodPost, "/token", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Zero(t, session.calls)
}

// # History Endpoint

func TestHistory_DisabledReturns404(t *testing.T) {
	handler := api.NewReadingsHandler(&stubState{}, &stubSession{}, tokenstore.NewMemoryStore(), nil, "user@example.com")

	recorder := doRequest(handler, http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHistory_ReturnsPaginatedEntries(t *testing.T) {
	lister := &stubHistory{
		entries: []*history.Entry{
			{ID: "0198c0de-0000-7000-8000-000000000001", WeightKg: pointer.To(70.0)},
		},
		total: 41,
	}
	handler := api.NewReadingsHandler(&stubState{}, &stubSession{}, tokenstore.NewMemoryStore(), lister, "user@example.com")

	recorder := doRequest(handler, http.MethodGet, "/history?page=2&limit=10", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Pagination parameters reach the store as limit/offset.
	assert.Equal(t, 10, lister.limit)
	assert.Equal(t, 10, lister.offset)

	var envelope struct {
		Data []*history.Entry `json:"data"`
		Meta struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, 2, envelope.Meta.Page)
	assert.Equal(t, 41, envelope.Meta.Total)
	assert.Equal(t, 5, envelope.Meta.TotalPages)
}
