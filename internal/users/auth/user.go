// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the user identity and session management layer.

It defines the core domain entities (User, Session) and logic for
authentication, authorization, and account lifecycle, including the login
lockout policy and lazy session expiry.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
external dependencies and encapsulate all business rules related to user
identity. No other component reads the users or sessions tables directly.
*/
package auth

import (
	"time"

	"github.com/taibuivan/datamira/internal/platform/sec"
)

// # Account Status

// UserStatus represents the lifecycle state of an account.
type UserStatus string

const (
	StatusActive    UserStatus = "ACTIVE"
	StatusInactive  UserStatus = "INACTIVE"
	StatusLocked    UserStatus = "LOCKED"
	StatusSuspended UserStatus = "SUSPENDED"
)

// # Session Status

// SessionStatus represents the lifecycle state of a session.
//
// ACTIVE is the only live state. REVOKED is terminal. EXPIRED is applied
// lazily on first observation after the expiry instant and is also terminal.
type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionRevoked SessionStatus = "REVOKED"
	SessionExpired SessionStatus = "EXPIRED"
)

// # Domain Entities

// User represents a registered member of the platform.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	Salt         string       `json:"-"` // Per-user random salt. Omitted for security.
	Role         sec.UserRole `json:"role"`
	Status       UserStatus   `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`

	// FailedAttempts counts consecutive credential mismatches. Reaching the
	// lockout threshold sets LockedUntil.
	FailedAttempts int `json:"-"`

	// LockedUntil, when set and in the future, makes the account effectively
	// LOCKED regardless of Status.
	LockedUntil *time.Time `json:"-"`
}

// IsLockedAt reports whether the account is under lockout at the given instant.
func (user *User) IsLockedAt(at time.Time) bool {
	if user.Status == StatusLocked {
		return user.LockedUntil == nil || at.Before(*user.LockedUntil)
	}
	return user.LockedUntil != nil && at.Before(*user.LockedUntil)
}

// Session represents an authenticated session.
type Session struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Username     string        `json:"username"`
	UserAgent    string        `json:"user_agent,omitempty"`
	IPAddress    string        `json:"ip_address,omitempty"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	AccessedAt   time.Time     `json:"accessed_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	RefreshToken string        `json:"-"` // Signed token, omitted from JSON.
}

// IsValidAt reports whether the session is usable at the given instant:
// status ACTIVE and not yet past expiry.
func (session *Session) IsValidAt(at time.Time) bool {
	return session.Status == SessionActive && at.Before(session.ExpiresAt)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldSessionID       = "session_id"
	FieldUserID          = "user_id"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldHours           = "hours"
	FieldMessage         = "message"
)
