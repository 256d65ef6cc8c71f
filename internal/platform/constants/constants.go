// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Orchestration: Deadlines and bounds for the request pipeline.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: Token issuers and session policy.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "datamira-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// Query-intent turns may run the full pipeline, so this exceeds the pipeline deadline.
	DefaultWriteTimeout = 40 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 35 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 10 * time.Second
)

// # Orchestration

const (
	// DefaultAskTimeout bounds a single component-to-component ask.
	DefaultAskTimeout = 10 * time.Second

	// QueryTurnTimeout is the end-to-end deadline for a query-intent turn.
	QueryTurnTimeout = 30 * time.Second

	// GeneralTurnTimeout is the end-to-end deadline for a general-chat turn.
	GeneralTurnTimeout = 10 * time.Second

	// ModelCallTimeout bounds a single language-model or embedding call.
	ModelCallTimeout = 8 * time.Second

	// DefaultContextTables is K: how many schema units feed the synthesizer.
	DefaultContextTables = 10

	// DefaultMaxRows bounds the result set returned by the query executor.
	DefaultMaxRows = 1000

	// DefaultInboxSize is the bounded mailbox capacity of every component.
	DefaultInboxSize = 64

	// SessionSweepInterval is how often ACTIVE sessions past expiry are marked EXPIRED.
	SessionSweepInterval = 5 * time.Minute
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in refresh tokens.
	AuthIssuer = "datamira.app"

	// HeaderXUserID carries the acting user for the chat surface.
	HeaderXUserID = "X-User-ID"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaCore  = "core"
	SchemaUsers = "users"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSession     = "auth:session:"
	RedisPrefixVectorPoint = "vector:point:"
	RedisPrefixVectorConn  = "vector:conn:"
)
