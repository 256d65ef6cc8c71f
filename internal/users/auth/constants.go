// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// DefaultSessionTTL is the lifetime of a freshly issued session.
	// Configurable per deployment via SESSION_TTL_HOURS.
	DefaultSessionTTL = 24 * time.Hour

	// RefreshTokenTTL is the duration a signed refresh token remains valid.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// LockoutThreshold is the number of consecutive failed logins that
	// triggers a temporary account lockout.
	LockoutThreshold = 5

	// LockoutDuration is how long an account stays locked after the
	// threshold is reached.
	LockoutDuration = 30 * time.Minute

	// MaxExtensionHours bounds a single session extension request.
	MaxExtensionHours = 24 * 7
)
