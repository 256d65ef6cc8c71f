// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the core identity and access management system.

It handles user registration, login with automatic session issuance and
lockout enforcement, session validation/extension/revocation, password
change, role checks, and the idempotent admin bootstrap.

Architecture:

  - Service: Orchestrates business logic (Register, Login, ValidateSession).
  - Repository: Abstracted interfaces for Postgres (Users, Sessions) and the
    Redis session cache.
  - Security: PBKDF2 salted hashes and RSA-signed refresh tokens.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/sec"
	"github.com/taibuivan/datamira/internal/platform/validate"
	"github.com/taibuivan/datamira/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for generating signed refresh tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given user.
	GenerateAccessToken(userID, username, role string, timeToLive time.Duration) (string, error)
}

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// or session logic must be reviewed by the security team.
type Service struct {
	userRepository    UserRepository
	sessionRepository SessionRepository
	sessionCache      SessionCache
	tokenProvider     TokenProvider
	sessionTTL        time.Duration
	logger            *slog.Logger
}

// NewService constructs a new auth [Service] with necessary dependencies.
//
// A nil sessionCache disables the cross-node cache (single-node deployments
// and tests); a zero sessionTTL falls back to [DefaultSessionTTL].
func NewService(
	userRepo UserRepository,
	sessionRepo SessionRepository,
	cache SessionCache,
	tokenProv TokenProvider,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{
		userRepository:    userRepo,
		sessionRepository: sessionRepo,
		sessionCache:      cache,
		tokenProvider:     tokenProv,
		sessionTTL:        sessionTTL,
		logger:            logger,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Enforces the password policy (length >= 8, one of each character
class), verifies identity uniqueness, and derives a salted PBKDF2 hash.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: Conflict (if identity exists), ValidationError, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {

	// Enforce the password policy before anything touches storage.
	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Password(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Verify username uniqueness. Return a client-safe Conflict err.
	_, err := service.userRepository.FindByUsername(context, input.Username)
	if err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// Verify email uniqueness. Return a client-safe Conflict err.
	_, err = service.userRepository.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Fresh random salt per account; prevents rainbow-table reuse across users.
	salt, err := sec.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("auth_service_salt_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(input.Password, salt)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Salt:         salt,
		Role:         sec.RoleUser,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}

	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Username  string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult represents a successfully established user session.
type LoginResult struct {
	User    *User
	Session *Session
}

/*
Login validates user credentials and issues a session.

Description: Verifies identity with a constant-time hash comparison, enforces
the lockout policy (5 consecutive failures lock the account for 30 minutes),
resets the failure counter on success, stamps lastLoginAt, and creates an
ACTIVE session with the configured TTL.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: The user and the freshly issued session
  - error: Unauthorized, Locked, Inactive, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	user, err := service.userRepository.FindByUsername(context, input.Username)

	// If (err != nil) the user does not exist. Generic message to prevent enumeration.
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	now := time.Now()

	// Lockout gate: a locked account rejects even the correct password.
	if user.IsLockedAt(now) {
		return nil, apperr.Locked("Account is temporarily locked. Try again later.")
	}

	switch user.Status {
	case StatusInactive, StatusSuspended:
		return nil, apperr.Inactive("Account is not active")
	}

	// Constant-time comparison; any internal failure in the check reports a
	// mismatch so storage corruption cannot be distinguished from a bad password.
	if !sec.CheckPasswordHash(input.Password, user.Salt, user.PasswordHash) {
		return nil, service.recordFailure(context, user, now)
	}

	// Success: reset the failure counter and stamp lastLoginAt.
	if err := service.userRepository.RecordLoginSuccess(context, user.ID, now); err != nil {
		return nil, fmt.Errorf("auth_service_login_update_failed: %w", err)
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	session, err := service.issueSession(context, user, input.UserAgent, input.IPAddress, now)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Session: session}, nil
}

// recordFailure counts the mismatch and returns the client-facing error.
// The counter advances in storage, so concurrent mismatches each count and
// the lockout verdict comes from the incremented value, not a stale read.
func (service *Service) recordFailure(context context.Context, user *User, now time.Time) error {
	attempts, err := service.userRepository.RecordLoginFailure(context, user.ID, LockoutThreshold, now.Add(LockoutDuration))
	if err != nil {
		service.logger.Error("auth_record_failure_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return apperr.Unauthorized("Invalid login credentials")
	}

	if attempts >= LockoutThreshold {
		return apperr.Locked("Account is temporarily locked. Try again later.")
	}
	return apperr.Unauthorized("Invalid login credentials")
}

// issueSession creates and persists a new ACTIVE session for the user.
func (service *Service) issueSession(context context.Context, user *User, userAgent, ipAddress string, now time.Time) (*Session, error) {
	refreshToken, err := service.tokenProvider.GenerateAccessToken(user.ID, user.Username, string(user.Role), RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	session := &Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		Username:     user.Username,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		Status:       SessionActive,
		CreatedAt:    now,
		AccessedAt:   now,
		ExpiresAt:    now.Add(service.sessionTTL),
		RefreshToken: refreshToken,
	}

	if err := service.sessionRepository.Create(context, session); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	service.cacheSession(context, session)

	return session, nil
}

// # Session Management

/*
ValidateSession resolves a session ID into a usable session.

Description: Checks the cache first, then the repository. A session past its
expiry is lazily transitioned to EXPIRED (never back to ACTIVE). On success
the accessedAt timestamp is refreshed best-effort.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: The valid session
  - error: NotFound, SessionExpired, or SessionRevoked
*/
func (service *Service) ValidateSession(context context.Context, sessionID string) (*Session, error) {
	session, err := service.lookupSession(context, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	switch session.Status {
	case SessionRevoked:
		return nil, apperr.SessionRevoked()
	case SessionExpired:
		return nil, apperr.SessionExpired()
	}

	// Lazy expiry: first observation after expiresAt transitions the row.
	if !now.Before(session.ExpiresAt) {
		if err := service.sessionRepository.UpdateStatus(context, session.ID, string(SessionExpired)); err != nil {
			service.logger.Warn("auth_session_expire_update_failed",
				slog.String("session_id", session.ID),
				slog.Any("error", err),
			)
		}
		service.dropCachedSession(context, session.ID)
		return nil, apperr.SessionExpired()
	}

	// Best-effort access stamp; loss of this update is tolerable.
	if err := service.sessionRepository.TouchAccessed(context, session.ID, now); err != nil {
		service.logger.Debug("auth_session_touch_failed",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}
	session.AccessedAt = now

	return session, nil
}

// lookupSession reads the session from cache, falling back to the repository.
func (service *Service) lookupSession(context context.Context, sessionID string) (*Session, error) {
	if service.sessionCache != nil {
		if cached, err := service.sessionCache.Get(context, sessionID); err == nil {
			return cached, nil
		}
	}

	session, err := service.sessionRepository.FindByID(context, sessionID)
	if err != nil {
		return nil, apperr.NotFound("Session")
	}

	return session, nil
}

/*
ExtendSession pushes a session's expiry out to now + hours.

Parameters:
  - context: context.Context
  - sessionID: string
  - hours: int (bounded by MaxExtensionHours)

Returns:
  - *Session: The updated session
  - error: NotFound, ValidationError, or errors for non-ACTIVE sessions
*/
func (service *Service) ExtendSession(context context.Context, sessionID string, hours int) (*Session, error) {
	validator := &validate.Validator{}
	validator.Range(FieldHours, hours, 1, MaxExtensionHours)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	session, err := service.lookupSession(context, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status != SessionActive {
		return nil, apperr.Unauthorized("Session is not active")
	}

	newExpiry := time.Now().Add(time.Duration(hours) * time.Hour)
	if err := service.sessionRepository.UpdateExpiry(context, session.ID, newExpiry); err != nil {
		return nil, fmt.Errorf("auth_service_extend_failed: %w", err)
	}

	session.ExpiresAt = newExpiry
	service.cacheSession(context, session)

	return session, nil
}

/*
RevokeSession transitions a session to REVOKED.

Description: REVOKED is terminal. Revoking an already-revoked session is
idempotent and succeeds.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: NotFound or persistence failures
*/
func (service *Service) RevokeSession(context context.Context, sessionID string) error {
	session, err := service.lookupSession(context, sessionID)
	if err != nil {
		return err
	}

	// Idempotent: a second revoke is a no-op success.
	if session.Status == SessionRevoked {
		return nil
	}

	if err := service.sessionRepository.UpdateStatus(context, session.ID, string(SessionRevoked)); err != nil {
		return fmt.Errorf("auth_service_revoke_failed: %w", err)
	}

	service.dropCachedSession(context, session.ID)

	return nil
}

// Logout terminates the session. It is an alias for [Service.RevokeSession].
func (service *Service) Logout(context context.Context, sessionID string) error {
	return service.RevokeSession(context, sessionID)
}

// VerifySession implements the middleware SessionVerifier contract by
// validating the session and projecting it into auth claims.
func (service *Service) VerifySession(context context.Context, sessionID string) (*sec.AuthClaims, error) {
	session, err := service.ValidateSession(context, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := service.userRepository.FindByID(context, session.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Session owner no longer exists")
	}

	return &sec.AuthClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	}, nil
}

// # Password Management

/*
ChangePassword allows an authenticated user to update their credentials.

Description: Verifies the current password, enforces the password policy on
the new one, derives a fresh salt, and revokes every other session so stolen
sessions die with the old password.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - error: NotFound, Unauthorized (bad current), ValidationError, or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return apperr.NotFound("User")
	}

	if !sec.CheckPasswordHash(currentPassword, user.Salt, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	validator := &validate.Validator{}
	validator.Password(FieldNewPassword, newPassword)
	if err := validator.Err(); err != nil {
		return err
	}

	// New salt with every password change.
	salt, err := sec.GenerateSalt()
	if err != nil {
		return fmt.Errorf("auth_service_change_salt_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(newPassword, salt)
	if err != nil {
		return fmt.Errorf("auth_service_change_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword, salt); err != nil {
		return fmt.Errorf("auth_service_change_update_failed: %w", err)
	}

	// Security Side Effect: force re-login everywhere.
	if err := service.sessionRepository.RevokeAllForUser(context, userID); err != nil {
		service.logger.Warn("auth_revoke_all_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	return nil
}

// # Access Control

/*
ValidateAccess checks whether the user's role meets the required level.

Parameters:
  - context: context.Context
  - userID: string
  - requiredRole: sec.UserRole

Returns:
  - error: nil when granted; Forbidden or NotFound otherwise
*/
func (service *Service) ValidateAccess(context context.Context, userID string, requiredRole sec.UserRole) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return apperr.NotFound("User")
	}

	if user.Status != StatusActive {
		return apperr.Forbidden("Account is not active")
	}

	if !user.Role.AtLeast(requiredRole) {
		return apperr.Forbidden("Insufficient permissions")
	}

	return nil
}

// # Bootstrap

/*
BootstrapAdmin creates the default ADMIN account on first start.

Description: Idempotent — when any ADMIN already exists, nothing happens.
The operator is expected to rotate the bootstrap credentials immediately.

Parameters:
  - context: context.Context
  - username: string
  - email: string
  - password: string

Returns:
  - error: Storage failures; a pre-existing admin is not an error
*/
func (service *Service) BootstrapAdmin(context context.Context, username, email, password string) error {
	adminCount, err := service.userRepository.CountByRole(context, string(sec.RoleAdmin))
	if err != nil {
		return fmt.Errorf("auth_bootstrap_count_failed: %w", err)
	}

	if adminCount > 0 {
		return nil
	}

	salt, err := sec.GenerateSalt()
	if err != nil {
		return fmt.Errorf("auth_bootstrap_salt_failed: %w", err)
	}

	hashedPassword, err := sec.HashPassword(password, salt)
	if err != nil {
		return fmt.Errorf("auth_bootstrap_hash_failed: %w", err)
	}

	admin := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Salt:         salt,
		Role:         sec.RoleAdmin,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}

	if err := service.userRepository.Create(context, admin); err != nil {
		// A concurrent start may have won the race; unique violation is fine.
		if apperr.Is(err, "CONFLICT") {
			return nil
		}
		return fmt.Errorf("auth_bootstrap_create_failed: %w", err)
	}

	service.logger.Info("admin_bootstrap_created", slog.String("username", username))

	return nil
}

// # Cache Helpers

// cacheSession writes the session through to the cache, best-effort.
func (service *Service) cacheSession(context context.Context, session *Session) {
	if service.sessionCache == nil {
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := service.sessionCache.Set(context, session, ttl); err != nil {
		service.logger.Debug("auth_session_cache_set_failed",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}
}

// dropCachedSession removes the session from the cache, best-effort.
func (service *Service) dropCachedSession(context context.Context, sessionID string) {
	if service.sessionCache == nil {
		return
	}
	if err := service.sessionCache.Delete(context, sessionID); err != nil {
		service.logger.Debug("auth_session_cache_delete_failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}
}
