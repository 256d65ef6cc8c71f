// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByUsername returns the account with the given username.
		Lookups are case-sensitive.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		FindByEmail returns the account with the given email.
		Lookups are case-sensitive.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures (including unique violations)
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces the user's password hash and salt together.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string
		  - newSalt: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash, newSalt string) error

	/*
		RecordLoginSuccess resets the failure counter, clears the lockout,
		and stamps the last login time.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	RecordLoginSuccess(context context.Context, userID string, at time.Time) error

	/*
		RecordLoginFailure increments the failure counter after a credential
		mismatch and applies the lockout deadline when the counter reaches
		the threshold. The increment happens in storage, so concurrent
		failures each count.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - threshold: int
		  - lockUntil: time.Time (deadline applied at the threshold)

		Returns:
		  - int: The counter value after this increment
		  - error: Persistence failures
	*/
	RecordLoginFailure(context context.Context, userID string, threshold int, lockUntil time.Time) (int, error)

	/*
		UpdateRoleStatus updates the account's role and lifecycle status.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - role: string
		  - status: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateRoleStatus(context context.Context, userID string, role string, status string) error

	/*
		CountByRole returns the number of accounts holding the given role.
		Used by the idempotent admin bootstrap.

		Parameters:
		  - context: context.Context
		  - role: string

		Returns:
		  - int: Account count
		  - error: Retrieval failures
	*/
	CountByRole(context context.Context, role string) (int, error)
}

// # Session Data Access

// SessionRepository defines the data access contract for sessions.
type SessionRepository interface {

	/*
		Create persists a new session for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByID returns the session with the given ID regardless of status.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, sessionID string) (*Session, error)

	/*
		TouchAccessed updates the session's accessedAt timestamp.
		Best-effort: callers may ignore the error.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	TouchAccessed(context context.Context, sessionID string, at time.Time) error

	/*
		UpdateExpiry replaces the session's expiresAt.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - expiresAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	UpdateExpiry(context context.Context, sessionID string, expiresAt time.Time) error

	/*
		UpdateStatus transitions the session to the given status.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - status: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateStatus(context context.Context, sessionID string, status string) error

	/*
		RevokeAllForUser marks every ACTIVE session of the user as REVOKED.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID string) error

	/*
		MarkExpiredBefore transitions every ACTIVE session whose expiresAt is
		before the cutoff to EXPIRED. Used by the periodic sweeper.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time

		Returns:
		  - int: Number of sessions transitioned
		  - error: Persistence failures
	*/
	MarkExpiredBefore(context context.Context, cutoff time.Time) (int, error)
}

// # Volatile Data Access

// SessionCache is a write-through cache of sessions, giving other nodes a
// fast read path without touching the control-plane database.
type SessionCache interface {

	/*
		Set stores the session with a TTL matching its remaining lifetime.

		Parameters:
		  - context: context.Context
		  - session: *Session
		  - ttl: time.Duration

		Returns:
		  - error: Cache failures
	*/
	Set(context context.Context, session *Session, ttl time.Duration) error

	/*
		Get retrieves a cached session. A cache miss is a NotFound error;
		callers fall back to the repository.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Cached entity
		  - error: apperr.NotFound on miss, or cache failures
	*/
	Get(context context.Context, sessionID string) (*Session, error)

	/*
		Delete removes the session from the cache (revocation, expiry).

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Cache failures
	*/
	Delete(context context.Context, sessionID string) error
}
