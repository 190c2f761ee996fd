// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

// Command renphod is the entry point for the Renpho measurement daemon.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to Redis (token store).
//  4. Connect to PostgreSQL and run migrations (only when history is enabled).
//  5. Seed the vendor session (env token, persisted document, or fresh login).
//  6. Start the poller.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ra486/hacs-renpho-health/internal/api"
	"github.com/ra486/hacs-renpho-health/internal/history"
	"github.com/ra486/hacs-renpho-health/internal/platform/config"
	"github.com/ra486/hacs-renpho-health/internal/platform/constants"
	"github.com/ra486/hacs-renpho-health/internal/platform/migration"
	pgstore "github.com/ra486/hacs-renpho-health/internal/platform/postgres"
	redisstore "github.com/ra486/hacs-renpho-health/internal/platform/redis"
	"github.com/ra486/hacs-renpho-health/internal/platform/sec"
	"github.com/ra486/hacs-renpho-health/internal/poller"
	"github.com/ra486/hacs-renpho-health/internal/renpho"
	"github.com/ra486/hacs-renpho-health/internal/tokenstore"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Duration("refresh_interval", cfg.RefreshInterval()),
		slog.Bool("history_enabled", cfg.HistoryEnabled()),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Redis (token store) ────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	tokens := tokenstore.NewRedisStore(rdb)

	// ── 4. PostgreSQL (optional measurement history) ──────────────────────
	var pool *pgxpool.Pool
	var historyStore *history.Store
	if cfg.HistoryEnabled() {
		pool, err = pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
		historyStore = history.NewStore(pool)
	}

	// ── 5. Vendor Session ─────────────────────────────────────────────────
	client := renpho.NewClient(renpho.Config{
		Email:    cfg.Email,
		Password: cfg.Password,
		Logger:   log,
	})

	must(log, seedSession(startupCtx, cfg, client, tokens, log), "seed vendor session")

	// ── 6. Poller ─────────────────────────────────────────────────────────
	// Root context for the poller; cancelled during shutdown.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	pollerOptions := poller.Options{
		Fetcher:  client,
		Store:    tokens,
		Account:  cfg.Email,
		Interval: cfg.RefreshInterval(),
		Logger:   log,
	}
	if historyStore != nil {
		pollerOptions.Recorder = historyStore
	}
	refresher := poller.New(pollerOptions)
	go refresher.Run(runCtx)

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	healthDeps := api.HealthDependencies{
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}
	if pool != nil {
		healthDeps.CheckDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
	}
	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	var lister api.HistoryLister
	if historyStore != nil {
		lister = historyStore
	}

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Readings:  api.NewReadingsHandler(refresher, client, tokens, lister, cfg.Email),
	}

	server := api.NewServer(runCtx, cfg, log, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Stop the poller before draining HTTP so no fetch outlives the server.
	runCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// seedSession establishes the initial vendor session, in priority order: an
// explicitly configured token, the persisted session document, then a fresh
// credential login.
//
// A transport failure during the fresh login is non-fatal; the poller
// retries on its schedule. Rejected credentials are fatal since no later
// attempt can succeed without operator action.
func seedSession(ctx context.Context, cfg *config.Config, client *renpho.Client, tokens tokenstore.Store, log *slog.Logger) error {
	// Operator-supplied token, e.g. lifted from the mobile app. Re-auth is
	// disabled so a silent re-login cannot log the app out.
	if cfg.SessionToken != "" {
		if !sec.LooksLikeSessionToken(cfg.SessionToken) {
			return errors.New("RENPHO_SESSION_TOKEN does not look like a session token")
		}
		userID, err := sec.UserIDFromToken(cfg.SessionToken)
		if err != nil {
			return err
		}

		client.SetCachedToken(cfg.SessionToken, userID, true)
		document := &tokenstore.Document{
			Token:  cfg.SessionToken,
			UserID: userID,
			Source: tokenstore.SourceManual,
		}
		if err := tokens.Save(ctx, cfg.Email, document); err != nil {
			return err
		}

		log.Info("session_seeded_from_environment", slog.Int64("user_id", userID))
		return nil
	}

	// Persisted document from a previous run. Re-auth stays enabled for
	// documents produced by our own logins.
	document, err := tokens.Load(ctx, cfg.Email)
	if err == nil {
		client.SetCachedToken(document.Token, document.UserID, document.Source == tokenstore.SourceManual)
		log.Info("session_seeded_from_store",
			slog.Int64("user_id", document.UserID),
			slog.String("source", document.Source),
		)
		return nil
	}
	if !errors.Is(err, tokenstore.ErrNotFound) {
		return err
	}

	// First run: fresh login with the configured credentials.
	if err := client.Login(ctx); err != nil {
		if isCredentialRejection(err) {
			return err
		}
		log.Error("initial_login_failed_will_retry_on_schedule", slog.Any("error", err))
		return nil
	}

	if tokenData := client.TokenData(); tokenData != nil {
		document := &tokenstore.Document{
			Token:  tokenData.Token,
			UserID: tokenData.UserID,
			Source: tokenstore.SourceLogin,
		}
		if err := tokens.Save(ctx, cfg.Email, document); err != nil {
			return err
		}
	}

	log.Info("session_seeded_from_login", slog.Int64("user_id", client.UserID()))
	return nil
}

// isCredentialRejection distinguishes a vendor-rejected login from a
// transport or server problem: only an auth-classified failure carrying a
// vendor response code means retrying with the same credentials is
// pointless. Login wraps every failure in an auth error with code 0, so
// the chain is walked for the underlying classified response.
func isCredentialRejection(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if authError, ok := e.(*renpho.AuthError); ok && authError.Code != 0 {
			return true
		}
	}
	return false
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
