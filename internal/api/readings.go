// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package api contains the HTTP delivery layer for the measurement state
surface.

# Architecture

Handlers act as the "gatekeepers" to the system. They are responsible for:
  - JSON request parsing and strict input validation.
  - Mapping HTTP contexts to the poller and session client.
  - Standardizing JSON response formats via the [respond] package.

They contain NO vendor protocol logic or database queries.
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ra486/hacs-renpho-health/internal/history"
	"github.com/ra486/hacs-renpho-health/internal/platform/apperr"
	"github.com/ra486/hacs-renpho-health/internal/platform/respond"
	"github.com/ra486/hacs-renpho-health/internal/platform/sec"
	"github.com/ra486/hacs-renpho-health/internal/platform/validate"
	"github.com/ra486/hacs-renpho-health/internal/poller"
	"github.com/ra486/hacs-renpho-health/internal/renpho"
	"github.com/ra486/hacs-renpho-health/internal/tokenstore"
	"github.com/ra486/hacs-renpho-health/pkg/pagination"

	requestutil "github.com/ra486/hacs-renpho-health/internal/platform/request"
)

// # Contracts

// StateSource is the slice of the poller the handler needs.
type StateSource interface {
	// Snapshot returns the current observable state.
	Snapshot() poller.Snapshot

	// Refresh performs one synchronous fetch cycle.
	Refresh(ctx context.Context) error
}

// SessionUpdater seeds the live session client with an externally supplied
// token.
type SessionUpdater interface {
	SetCachedToken(token string, userID int64, disableAutoReauth bool)
}

// HistoryLister is the read side of the optional measurement history store.
type HistoryLister interface {
	List(ctx context.Context, limit, offset int) ([]*history.Entry, int, error)
}

// ReadingsHandler implements the measurement state-surface endpoints.
type ReadingsHandler struct {
	state   StateSource
	session SessionUpdater
	tokens  tokenstore.Store
	history HistoryLister
	account string
}

// NewReadingsHandler constructs a [ReadingsHandler]. The history lister may
// be nil when no database is configured.
func NewReadingsHandler(state StateSource, session SessionUpdater, tokens tokenstore.Store, lister HistoryLister, account string) *ReadingsHandler {
	return &ReadingsHandler{
		state:   state,
		session: session,
		tokens:  tokens,
		history: lister,
		account: account,
	}
}

// Routes returns a [chi.Router] configured with the state-surface routes.
//
// # Endpoints
//   - GET  /readings : Latest measurement snapshot.
//   - POST /refresh  : Synchronous out-of-schedule fetch.
//   - POST /token    : Replace the vendor session token.
//   - GET  /history  : Paginated persisted measurements (optional).
func (handler *ReadingsHandler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/readings", handler.readings)
	router.Post("/refresh", handler.refresh)
	router.Post("/token", handler.updateToken)
	router.Get("/history", handler.listHistory)

	return router
}

// readings handles GET /api/v1/readings requests.
//
// # Returns
//   - Writes HTTP 200 OK with the current snapshot; the reading is null
//     before the first successful fetch.
func (handler *ReadingsHandler) readings(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, handler.state.Snapshot())
}

// refresh handles POST /api/v1/refresh requests.
//
// # Returns
//   - Writes HTTP 200 OK with the fresh snapshot on success.
//   - Writes HTTP 401 Unauthorized when the vendor rejects the session and
//     re-authentication is not possible.
//   - Writes HTTP 503 Service Unavailable on transport failures.
func (handler *ReadingsHandler) refresh(writer http.ResponseWriter, request *http.Request) {
	if err := handler.state.Refresh(request.Context()); err != nil {
		if renpho.IsAuthError(err) {
			respond.Error(writer, request, apperr.Unauthorized(err.Error()))
			return
		}
		respond.Error(writer, request, apperr.ServiceUnavailable(err.Error()))
		return
	}

	respond.OK(writer, handler.state.Snapshot())
}

// tokenRequest represents the JSON payload for a manual session update.
type tokenRequest struct {
	Token string `json:"token"`

	// UserID may be omitted; it is then extracted from the token claims.
	UserID int64 `json:"user_id"`
}

// updateToken handles POST /api/v1/token requests.
//
// # Parameters
//   - writer: The HTTP response constructor.
//   - request: The incoming HTTP request payload.
//
// # Returns
//   - Writes HTTP 200 OK with the resolved user id on success.
//   - Writes HTTP 400 Bad Request if the token is missing, malformed, or
//     carries no user id.
func (handler *ReadingsHandler) updateToken(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input tokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	validator := &validate.Validator{}
	validator.Required("token", input.Token)
	validator.Custom("token", input.Token != "" && !sec.LooksLikeSessionToken(input.Token),
		"does not look like a session token")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := input.UserID
	if userID == 0 {
		extracted, err := sec.UserIDFromToken(input.Token)
		if err != nil {
			respond.Error(writer, request, apperr.ValidationError("token carries no user id; supply user_id explicitly"))
			return
		}
		userID = extracted
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	document := &tokenstore.Document{
		Token:  input.Token,
		UserID: userID,
		Source: tokenstore.SourceManual,
	}
	if err := handler.tokens.Save(request.Context(), handler.account, document); err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	// Manually supplied tokens come without a password we could re-login
	// with, so automatic re-authentication is disabled for this session.
	handler.session.SetCachedToken(input.Token, userID, true)

	// ── 4. Presentation Output ────────────────────────────────────────────

	respond.OK(writer, map[string]any{
		"user_id": userID,
		"source":  tokenstore.SourceManual,
	})
}

// listHistory handles GET /api/v1/history requests.
//
// # Returns
//   - Writes HTTP 200 OK with a paginated entry list.
//   - Writes HTTP 404 Not Found when the history store is disabled.
func (handler *ReadingsHandler) listHistory(writer http.ResponseWriter, request *http.Request) {
	if handler.history == nil {
		respond.Error(writer, request, apperr.NotFound("Measurement history"))
		return
	}

	params := pagination.FromRequest(request)

	entries, total, err := handler.history.List(request.Context(), params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}
