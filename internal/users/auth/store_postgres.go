// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/database/schema"
	"github.com/taibuivan/datamira/internal/platform/dberr"
)

// # Repository Implementations

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new Postgres implementation for account storage.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// PostgresSessionRepository implements [SessionRepository] using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new Postgres implementation for session storage.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// # UserRepository Methods

// scanUser hydrates a full account row in column order.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Salt,
		&user.Role,
		&user.Status,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.LastLoginAt,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// userSelect builds the shared SELECT clause for account lookups.
func userSelect(predicate string) string {
	return fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserAccount.ID, schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.PasswordHash, schema.UserAccount.Salt, schema.UserAccount.Role,
		schema.UserAccount.Status, schema.UserAccount.FailedAttempts, schema.UserAccount.LockedUntil,
		schema.UserAccount.LastLoginAt, schema.UserAccount.CreatedAt,
		schema.UserAccount.Table,
		predicate,
	)
}

/*
FindByID retrieves an account from the users.account table.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	user, err := scanUser(repository.pool.QueryRow(context, userSelect(schema.UserAccount.ID), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}
	return user, nil
}

/*
FindByUsername retrieves an account by its exact username.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	user, err := scanUser(repository.pool.QueryRow(context, userSelect(schema.UserAccount.Username), username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_username_failed: %w", err)
	}
	return user, nil
}

/*
FindByEmail retrieves an account by its exact email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	user, err := scanUser(repository.pool.QueryRow(context, userSelect(schema.UserAccount.Email), email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err)
	}
	return user, nil
}

/*
Create inserts a new account row.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: apperr.Conflict on unique violations, or execution failures
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.PasswordHash, schema.UserAccount.Salt, schema.UserAccount.Role,
		schema.UserAccount.Status, schema.UserAccount.FailedAttempts, schema.UserAccount.CreatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Salt,
		user.Role,
		user.Status,
		user.FailedAttempts,
		user.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "User")
	}

	return nil
}

/*
UpdatePassword replaces the password hash and salt as one write.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string
  - newSalt: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash, newSalt string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.PasswordHash, schema.UserAccount.Salt,
		schema.UserAccount.ID,
	)

	_, err := repository.pool.Exec(context, query, userID, newHash, newSalt)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

/*
RecordLoginSuccess clears the failure state and stamps the login time.

Parameters:
  - context: context.Context
  - userID: string
  - at: time.Time

Returns:
  - error: Execution failures
*/
func (repository *PostgresUserRepository) RecordLoginSuccess(context context.Context, userID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = 0, %s = NULL, %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.FailedAttempts, schema.UserAccount.LockedUntil,
		schema.UserAccount.LastLoginAt,
		schema.UserAccount.ID,
	)

	_, err := repository.pool.Exec(context, query, userID, at)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_login_success_failed: %w", err)
	}

	return nil
}

/*
RecordLoginFailure atomically increments the failure counter and applies the
lockout deadline at the threshold.

Description: The increment and the threshold check run in one statement, so
concurrent mismatches each advance the counter and exactly one of them trips
the lockout.

Parameters:
  - context: context.Context
  - userID: string
  - threshold: int
  - lockUntil: time.Time

Returns:
  - int: The counter value after this increment
  - error: Execution failures
*/
func (repository *PostgresUserRepository) RecordLoginFailure(context context.Context, userID string, threshold int, lockUntil time.Time) (int, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = %s + 1,
		    %s = CASE WHEN %s + 1 >= $2 THEN $3 ELSE %s END
		WHERE %s = $1
		RETURNING %s`,
		schema.UserAccount.Table,
		schema.UserAccount.FailedAttempts, schema.UserAccount.FailedAttempts,
		schema.UserAccount.LockedUntil, schema.UserAccount.FailedAttempts, schema.UserAccount.LockedUntil,
		schema.UserAccount.ID,
		schema.UserAccount.FailedAttempts,
	)

	var attempts int
	if err := repository.pool.QueryRow(context, query, userID, threshold, lockUntil).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("postgres_user_repo_login_failure_failed: %w", err)
	}

	return attempts, nil
}

/*
UpdateRoleStatus updates the account's role and lifecycle status.

Parameters:
  - context: context.Context
  - userID: string
  - role: string
  - status: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresUserRepository) UpdateRoleStatus(context context.Context, userID string, role string, status string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.Role, schema.UserAccount.Status,
		schema.UserAccount.ID,
	)

	_, err := repository.pool.Exec(context, query, userID, role, status)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_role_status_failed: %w", err)
	}

	return nil
}

/*
CountByRole counts accounts holding a role.

Parameters:
  - context: context.Context
  - role: string

Returns:
  - int: Account count
  - error: Execution failures
*/
func (repository *PostgresUserRepository) CountByRole(context context.Context, role string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.Role)

	var count int
	if err := repository.pool.QueryRow(context, query, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_user_repo_count_by_role_failed: %w", err)
	}

	return count, nil
}

// # SessionRepository Methods

/*
Create inserts a new session row.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Execution failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		schema.UserSession.Table,
		schema.UserSession.ID, schema.UserSession.UserID, schema.UserSession.Username,
		schema.UserSession.UserAgent, schema.UserSession.IPAddress, schema.UserSession.Status,
		schema.UserSession.CreatedAt, schema.UserSession.AccessedAt, schema.UserSession.ExpiresAt,
		schema.UserSession.RefreshToken,
	)

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.Username,
		session.UserAgent,
		session.IPAddress,
		session.Status,
		session.CreatedAt,
		session.AccessedAt,
		session.ExpiresAt,
		session.RefreshToken,
	)

	if err != nil {
		return dberr.Wrap(err, "Session")
	}

	return nil
}

/*
FindByID retrieves a session row regardless of its status.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Hydrated entity
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresSessionRepository) FindByID(context context.Context, sessionID string) (*Session, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserSession.ID, schema.UserSession.UserID, schema.UserSession.Username,
		schema.UserSession.UserAgent, schema.UserSession.IPAddress, schema.UserSession.Status,
		schema.UserSession.CreatedAt, schema.UserSession.AccessedAt, schema.UserSession.ExpiresAt,
		schema.UserSession.RefreshToken,
		schema.UserSession.Table,
		schema.UserSession.ID,
	)

	session := &Session{}
	err := repository.pool.QueryRow(context, query, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.Username,
		&session.UserAgent,
		&session.IPAddress,
		&session.Status,
		&session.CreatedAt,
		&session.AccessedAt,
		&session.ExpiresAt,
		&session.RefreshToken,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
TouchAccessed refreshes the accessedAt stamp.

Parameters:
  - context: context.Context
  - sessionID: string
  - at: time.Time

Returns:
  - error: Execution failures
*/
func (repository *PostgresSessionRepository) TouchAccessed(context context.Context, sessionID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserSession.Table, schema.UserSession.AccessedAt, schema.UserSession.ID)

	_, err := repository.pool.Exec(context, query, sessionID, at)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_touch_failed: %w", err)
	}

	return nil
}

/*
UpdateExpiry replaces the session's expiry instant.

Parameters:
  - context: context.Context
  - sessionID: string
  - expiresAt: time.Time

Returns:
  - error: Execution failures
*/
func (repository *PostgresSessionRepository) UpdateExpiry(context context.Context, sessionID string, expiresAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserSession.Table, schema.UserSession.ExpiresAt, schema.UserSession.ID)

	_, err := repository.pool.Exec(context, query, sessionID, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_update_expiry_failed: %w", err)
	}

	return nil
}

/*
UpdateStatus transitions the session to the given status.

Parameters:
  - context: context.Context
  - sessionID: string
  - status: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresSessionRepository) UpdateStatus(context context.Context, sessionID string, status string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserSession.Table, schema.UserSession.Status, schema.UserSession.ID)

	_, err := repository.pool.Exec(context, query, sessionID, status)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_update_status_failed: %w", err)
	}

	return nil
}

/*
RevokeAllForUser revokes every ACTIVE session of the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresSessionRepository) RevokeAllForUser(context context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1 AND %s = $3`,
		schema.UserSession.Table, schema.UserSession.Status,
		schema.UserSession.UserID, schema.UserSession.Status)

	_, err := repository.pool.Exec(context, query, userID, SessionRevoked, SessionActive)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}

	return nil
}

/*
MarkExpiredBefore sweeps ACTIVE sessions past their expiry to EXPIRED.

Parameters:
  - context: context.Context
  - cutoff: time.Time

Returns:
  - int: Number of sessions transitioned
  - error: Execution failures
*/
func (repository *PostgresSessionRepository) MarkExpiredBefore(context context.Context, cutoff time.Time) (int, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $3 AND %s < $1`,
		schema.UserSession.Table, schema.UserSession.Status,
		schema.UserSession.Status, schema.UserSession.ExpiresAt)

	tag, err := repository.pool.Exec(context, query, cutoff, SessionExpired, SessionActive)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_sweep_failed: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
