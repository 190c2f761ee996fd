// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package poller drives the periodic measurement refresh cycle.

It is the host-side orchestrator around the session client: it invokes a
fetch on a fixed interval, persists the session document after every call
that may have rotated the token, and republishes the latest derived record
as observable state for the HTTP surface.

Architecture:

  - Serialization: At most one fetch is in flight per account; ticker and
    manual refreshes share one mutex, honouring the client's one-call-at-a-time
    contract.
  - Degradation: A failed refresh retains the last good reading and surfaces
    an error state; it never terminates the process.
*/
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ra486/hacs-renpho-health/internal/renpho"
	"github.com/ra486/hacs-renpho-health/internal/tokenstore"
)

// # Contracts & Types

// Fetcher is the slice of the session client the poller needs.
type Fetcher interface {
	// FetchMeasurements retrieves today's reading, re-authenticating at
	// most once when permitted.
	FetchMeasurements(ctx context.Context) (*renpho.Measurement, error)

	// TokenData returns the persistable session document, or nil when the
	// session is incomplete.
	TokenData() *renpho.TokenData

	// AutoReauthDisabled reports whether the session was seeded from an
	// externally supplied token.
	AutoReauthDisabled() bool
}

// Recorder receives every successfully fetched measurement. The optional
// history store implements it.
type Recorder interface {
	Record(ctx context.Context, measurement *renpho.Measurement) error
}

// Snapshot is the observable state republished to the HTTP surface.
type Snapshot struct {
	// Reading is the last successfully fetched record, nil before the
	// first success.
	Reading *renpho.Measurement `json:"reading"`

	// UpdatedAt is when Reading was fetched.
	UpdatedAt time.Time `json:"updated_at"`

	// Stale marks a snapshot whose most recent refresh attempt failed;
	// Reading still holds the last good value.
	Stale bool `json:"stale"`

	// Error is the failure description of the most recent refresh attempt,
	// empty when it succeeded.
	Error string `json:"error,omitempty"`
}

// Poller periodically refreshes measurements for one account.
type Poller struct {
	fetcher  Fetcher
	store    tokenstore.Store
	recorder Recorder
	account  string
	interval time.Duration
	logger   *slog.Logger

	// fetchMu serializes refreshes: the ticker loop and manual triggers
	// must never overlap a fetch on the shared session.
	fetchMu sync.Mutex

	// stateMu guards the published snapshot.
	stateMu  sync.RWMutex
	snapshot Snapshot
}

// Options wires a [Poller]. Recorder may be nil when history is disabled.
type Options struct {
	Fetcher  Fetcher
	Store    tokenstore.Store
	Recorder Recorder
	Account  string
	Interval time.Duration
	Logger   *slog.Logger
}

// New constructs a poller; it does not start polling until [Poller.Run].
func New(options Options) *Poller {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		fetcher:  options.Fetcher,
		store:    options.Store,
		recorder: options.Recorder,
		account:  options.Account,
		interval: options.Interval,
		logger:   logger,
	}
}

// # Refresh Cycle

// Run polls until the context is cancelled. The first refresh happens
// immediately so the state surface is populated right after startup.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller_started",
		slog.String("account", p.account),
		slog.Duration("interval", p.interval),
	)

	if err := p.Refresh(ctx); err != nil {
		p.logger.Error("initial_refresh_failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Error("scheduled_refresh_failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			p.logger.Info("poller_stopped")
			return
		}
	}
}

/*
Refresh performs one fetch cycle and republishes the snapshot.

Description: On success the session document is saved (the server may have
rotated the token transparently) and the reading is handed to the recorder.
On failure the previous reading is retained and the snapshot is marked
stale.

Parameters:
  - ctx: context.Context bounding the vendor RPCs.

Returns:
  - error: The fetch failure, already reflected in the snapshot.
*/
func (p *Poller) Refresh(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	measurement, err := p.fetcher.FetchMeasurements(ctx)
	if err != nil {
		p.markFailed(err)
		return err
	}

	p.persistToken(ctx)

	if p.recorder != nil {
		// History is best-effort: a full disk must not break live state.
		if recordErr := p.recorder.Record(ctx, measurement); recordErr != nil {
			p.logger.Error("measurement_record_failed", slog.Any("error", recordErr))
		}
	}

	p.stateMu.Lock()
	p.snapshot = Snapshot{
		Reading:   measurement,
		UpdatedAt: time.Now(),
	}
	p.stateMu.Unlock()

	p.logger.Debug("refresh_successful")
	return nil
}

// Snapshot returns the current observable state.
func (p *Poller) Snapshot() Snapshot {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.snapshot
}

// persistToken saves the session document after a token-producing call.
//
// The source must reflect how the session was obtained: a manual session
// stays manual even when the fetch succeeded, otherwise a restart would
// re-enable the silent re-login the manual token exists to prevent.
func (p *Poller) persistToken(ctx context.Context) {
	tokenData := p.fetcher.TokenData()
	if tokenData == nil {
		return
	}

	source := tokenstore.SourceLogin
	if p.fetcher.AutoReauthDisabled() {
		source = tokenstore.SourceManual
	}

	document := &tokenstore.Document{
		Token:  tokenData.Token,
		UserID: tokenData.UserID,
		Source: source,
	}
	if err := p.store.Save(ctx, p.account, document); err != nil {
		p.logger.Error("token_save_failed", slog.Any("error", err))
	}
}

// markFailed publishes the failure while retaining the last good reading.
func (p *Poller) markFailed(err error) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.snapshot.Stale = true
	p.snapshot.Error = err.Error()
}
