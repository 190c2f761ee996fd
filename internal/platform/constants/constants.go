// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package constants provides centralized, immutable values for the daemon.

It defines default timeouts, rate limits, and cross-cutting keys shared
between layers, keeping magic strings and numbers out of the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "renphod"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of
	// the response. Manual refreshes perform a live vendor fetch inside the
	// request, so this must exceed GlobalRequestTimeout.
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	// Vendor fetches triggered via the API run inside this window, and a
	// single fetch can take up to 30s, so this stays above that.
	GlobalRequestTimeout = 45 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP. The
	// state surface serves one automation host, so the budget is small.
	DefaultRateLimitRPS = 10.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 20

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// # JSON Field Identifiers

const (
	FieldCode  = "code"
	FieldError = "error"
)

// # Redis Prefixes

const (
	// RedisPrefixSessionToken keys the persisted vendor session document
	// per configured account.
	RedisPrefixSessionToken = "renpho:session:"
)
