// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/sec"
)

// # Test Fakes

// fakeUserRepository is an in-memory UserRepository. The mutex mirrors the
// storage engine: increments in RecordLoginFailure are atomic, as in SQL.
type fakeUserRepository struct {
	mu    sync.Mutex
	users map[string]*User
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: map[string]*User{}}
}

func (repository *fakeUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	if user, ok := repository.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, apperr.NotFound("User")
}

func (repository *fakeUserRepository) FindByUsername(_ context.Context, username string) (*User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, user := range repository.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *fakeUserRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, user := range repository.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *fakeUserRepository) Create(_ context.Context, user *User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	for _, existing := range repository.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return apperr.Conflict("User already exists")
		}
	}
	copied := *user
	repository.users[user.ID] = &copied
	return nil
}

func (repository *fakeUserRepository) UpdatePassword(_ context.Context, userID, newHash, newSalt string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.PasswordHash = newHash
	user.Salt = newSalt
	return nil
}

func (repository *fakeUserRepository) RecordLoginSuccess(_ context.Context, userID string, at time.Time) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &at
	return nil
}

func (repository *fakeUserRepository) RecordLoginFailure(_ context.Context, userID string, threshold int, lockUntil time.Time) (int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[userID]
	if !ok {
		return 0, apperr.NotFound("User")
	}
	user.FailedAttempts++
	if user.FailedAttempts >= threshold {
		deadline := lockUntil
		user.LockedUntil = &deadline
	}
	return user.FailedAttempts, nil
}

func (repository *fakeUserRepository) UpdateRoleStatus(_ context.Context, userID string, role string, status string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user, ok := repository.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.Role = sec.UserRole(role)
	user.Status = UserStatus(status)
	return nil
}

func (repository *fakeUserRepository) CountByRole(_ context.Context, role string) (int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	count := 0
	for _, user := range repository.users {
		if string(user.Role) == role {
			count++
		}
	}
	return count, nil
}

// fakeSessionRepository is an in-memory SessionRepository.
type fakeSessionRepository struct {
	sessions map[string]*Session
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: map[string]*Session{}}
}

func (repository *fakeSessionRepository) Create(_ context.Context, session *Session) error {
	copied := *session
	repository.sessions[session.ID] = &copied
	return nil
}

func (repository *fakeSessionRepository) FindByID(_ context.Context, sessionID string) (*Session, error) {
	if session, ok := repository.sessions[sessionID]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, apperr.NotFound("Session")
}

func (repository *fakeSessionRepository) TouchAccessed(_ context.Context, sessionID string, at time.Time) error {
	if session, ok := repository.sessions[sessionID]; ok {
		session.AccessedAt = at
	}
	return nil
}

func (repository *fakeSessionRepository) UpdateExpiry(_ context.Context, sessionID string, expiresAt time.Time) error {
	session, ok := repository.sessions[sessionID]
	if !ok {
		return apperr.NotFound("Session")
	}
	session.ExpiresAt = expiresAt
	return nil
}

func (repository *fakeSessionRepository) UpdateStatus(_ context.Context, sessionID string, status string) error {
	session, ok := repository.sessions[sessionID]
	if !ok {
		return apperr.NotFound("Session")
	}
	session.Status = SessionStatus(status)
	return nil
}

func (repository *fakeSessionRepository) RevokeAllForUser(_ context.Context, userID string) error {
	for _, session := range repository.sessions {
		if session.UserID == userID && session.Status == SessionActive {
			session.Status = SessionRevoked
		}
	}
	return nil
}

func (repository *fakeSessionRepository) MarkExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	swept := 0
	for _, session := range repository.sessions {
		if session.Status == SessionActive && session.ExpiresAt.Before(cutoff) {
			session.Status = SessionExpired
			swept++
		}
	}
	return swept, nil
}

// fakeTokenProvider issues predictable tokens.
type fakeTokenProvider struct{}

func (fakeTokenProvider) GenerateAccessToken(userID, username, role string, timeToLive time.Duration) (string, error) {
	return fmt.Sprintf("token-%s-%s", userID, role), nil
}

// newTestService wires a Service against fresh fakes.
func newTestService(t *testing.T) (*Service, *fakeUserRepository, *fakeSessionRepository) {
	t.Helper()
	userRepo := newFakeUserRepository()
	sessionRepo := newFakeSessionRepository()
	service := NewService(userRepo, sessionRepo, nil, fakeTokenProvider{}, DefaultSessionTTL, slog.Default())
	return service, userRepo, sessionRepo
}

// registerUser creates a test account through the real Register path.
func registerUser(t *testing.T, service *Service, username, password string) *User {
	t.Helper()
	user, err := service.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return user
}

// # Registration

/*
TestRegister_PasswordPolicy verifies the character class and length rules.
*/
func TestRegister_PasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"all_classes_min_length", "Aa1!aaaa", true},
		{"one_rune_short", "Aa1!aaa", false},
		{"lowercase_only", "aaaaaaaa", false},
		{"missing_special", "Aa1aaaaa", false},
		{"missing_digit", "Aa!aaaaa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _ := newTestService(t)
			_, err := service.Register(context.Background(), RegisterInput{
				Username: "member",
				Email:    "member@example.com",
				Password: tt.password,
			})

			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
			}
		})
	}
}

/*
TestRegister_Duplicate rejects reuse of an existing username or email.
*/
func TestRegister_Duplicate(t *testing.T) {
	service, _, _ := newTestService(t)
	registerUser(t, service, "member", "Aa1!aaaa")

	_, err := service.Register(context.Background(), RegisterInput{
		Username: "member",
		Email:    "other@example.com",
		Password: "Aa1!aaaa",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "CONFLICT"))
}

/*
TestRegister_HashedAtRest checks that the stored credential is a salted hash,
never the plaintext, and that the role defaults to USER.
*/
func TestRegister_HashedAtRest(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	stored := userRepo.users[user.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, "Aa1!aaaa", stored.PasswordHash)
	assert.NotEmpty(t, stored.Salt)
	assert.Equal(t, sec.RoleUser, stored.Role)
	assert.Equal(t, StatusActive, stored.Status)
}

// # Login & Lockout

/*
TestLogin_Success issues an ACTIVE session and resets the failure counter.
*/
func TestLogin_Success(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	// Seed prior failures; a successful login must clear them.
	userRepo.users[user.ID].FailedAttempts = 3

	result, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Aa1!aaaa"})
	require.NoError(t, err)

	assert.Equal(t, SessionActive, result.Session.Status)
	assert.Equal(t, user.ID, result.Session.UserID)
	assert.True(t, result.Session.ExpiresAt.After(time.Now()))
	assert.Equal(t, 0, userRepo.users[user.ID].FailedAttempts)
	assert.NotNil(t, userRepo.users[user.ID].LastLoginAt)
}

/*
TestLogin_WrongPassword returns Unauthorized and increments the counter.
*/
func TestLogin_WrongPassword(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	_, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Wrong1!x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "UNAUTHORIZED"))
	assert.Equal(t, 1, userRepo.users[user.ID].FailedAttempts)
}

/*
TestLogin_LockoutAfterThreshold locks the account on the fifth consecutive
failure and keeps rejecting even the correct password while locked.
*/
func TestLogin_LockoutAfterThreshold(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	for i := 0; i < LockoutThreshold; i++ {
		_, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Wrong1!x"})
		require.Error(t, err)
	}

	stored := userRepo.users[user.ID]
	assert.Equal(t, LockoutThreshold, stored.FailedAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, stored.LockedUntil.After(time.Now()))

	// The sixth attempt with the CORRECT password is still rejected.
	_, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Aa1!aaaa"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "LOCKED"))
}

/*
TestLogin_ConcurrentFailuresAllCount parallel wrong-password attempts each
advance the counter; none are lost to a stale read.
*/
func TestLogin_ConcurrentFailuresAllCount(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	var waitGroup sync.WaitGroup
	for attempt := 0; attempt < LockoutThreshold; attempt++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Wrong1!x"})
			assert.Error(t, err)
		}()
	}
	waitGroup.Wait()

	stored := userRepo.users[user.ID]
	assert.Equal(t, LockoutThreshold, stored.FailedAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, stored.LockedUntil.After(time.Now()))
}

/*
TestLogin_LockoutExpires admits the correct password once the lockout
deadline has passed.
*/
func TestLogin_LockoutExpires(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	past := time.Now().Add(-time.Minute)
	userRepo.users[user.ID].FailedAttempts = LockoutThreshold
	userRepo.users[user.ID].LockedUntil = &past

	result, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Aa1!aaaa"})
	require.NoError(t, err)
	assert.Equal(t, SessionActive, result.Session.Status)
	assert.Equal(t, 0, userRepo.users[user.ID].FailedAttempts)
}

/*
TestLogin_InactiveAccount rejects INACTIVE and SUSPENDED accounts.
*/
func TestLogin_InactiveAccount(t *testing.T) {
	for _, status := range []UserStatus{StatusInactive, StatusSuspended} {
		t.Run(string(status), func(t *testing.T) {
			service, userRepo, _ := newTestService(t)
			user := registerUser(t, service, "member", "Aa1!aaaa")
			userRepo.users[user.ID].Status = status

			_, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Aa1!aaaa"})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, "INACTIVE"))
		})
	}
}

/*
TestLogin_UnknownUser returns a generic Unauthorized to prevent enumeration.
*/
func TestLogin_UnknownUser(t *testing.T) {
	service, _, _ := newTestService(t)
	_, err := service.Login(context.Background(), LoginInput{Username: "ghost", Password: "Aa1!aaaa"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "UNAUTHORIZED"))
}

// # Session Lifecycle

func login(t *testing.T, service *Service) *Session {
	t.Helper()
	result, err := service.Login(context.Background(), LoginInput{Username: "member", Password: "Aa1!aaaa"})
	require.NoError(t, err)
	return result.Session
}

/*
TestValidateSession_LazyExpiry transitions an overdue session to EXPIRED on
first observation; the transition is one-way.
*/
func TestValidateSession_LazyExpiry(t *testing.T) {
	service, _, sessionRepo := newTestService(t)
	registerUser(t, service, "member", "Aa1!aaaa")
	session := login(t, service)

	sessionRepo.sessions[session.ID].ExpiresAt = time.Now().Add(-time.Second)

	_, err := service.ValidateSession(context.Background(), session.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "SESSION_EXPIRED"))
	assert.Equal(t, SessionExpired, sessionRepo.sessions[session.ID].Status)

	// Pushing the clock forward never resurrects an EXPIRED session.
	sessionRepo.sessions[session.ID].ExpiresAt = time.Now().Add(time.Hour)
	_, err = service.ValidateSession(context.Background(), session.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "SESSION_EXPIRED"))
}

/*
TestValidateSession_TouchesAccessedAt refreshes the access stamp on success.
*/
func TestValidateSession_TouchesAccessedAt(t *testing.T) {
	service, _, sessionRepo := newTestService(t)
	registerUser(t, service, "member", "Aa1!aaaa")
	session := login(t, service)

	before := sessionRepo.sessions[session.ID].AccessedAt
	time.Sleep(5 * time.Millisecond)

	validated, err := service.ValidateSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, validated.AccessedAt.After(before))
}

/*
TestRevokeSession_Idempotent verifies REVOKED is terminal and a second revoke
is a silent success.
*/
func TestRevokeSession_Idempotent(t *testing.T) {
	service, _, sessionRepo := newTestService(t)
	registerUser(t, service, "member", "Aa1!aaaa")
	session := login(t, service)

	require.NoError(t, service.RevokeSession(context.Background(), session.ID))
	assert.Equal(t, SessionRevoked, sessionRepo.sessions[session.ID].Status)

	// Second revoke: no error, no state change.
	require.NoError(t, service.RevokeSession(context.Background(), session.ID))
	assert.Equal(t, SessionRevoked, sessionRepo.sessions[session.ID].Status)

	// A revoked session never validates.
	_, err := service.ValidateSession(context.Background(), session.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "SESSION_REVOKED"))
}

/*
TestExtendSession pushes the expiry out and bounds the requested hours.
*/
func TestExtendSession(t *testing.T) {
	service, _, _ := newTestService(t)
	registerUser(t, service, "member", "Aa1!aaaa")
	session := login(t, service)

	extended, err := service.ExtendSession(context.Background(), session.ID, 48)
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.After(session.ExpiresAt))

	_, err = service.ExtendSession(context.Background(), session.ID, 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))

	_, err = service.ExtendSession(context.Background(), session.ID, MaxExtensionHours+1)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))
}

// # Password Change

/*
TestChangePassword rotates credentials and revokes existing sessions.
*/
func TestChangePassword(t *testing.T) {
	service, userRepo, sessionRepo := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")
	session := login(t, service)
	oldSalt := userRepo.users[user.ID].Salt

	err := service.ChangePassword(context.Background(), user.ID, "Aa1!aaaa", "Bb2@bbbb")
	require.NoError(t, err)

	// Fresh salt, old sessions dead, new password works.
	assert.NotEqual(t, oldSalt, userRepo.users[user.ID].Salt)
	assert.Equal(t, SessionRevoked, sessionRepo.sessions[session.ID].Status)

	_, err = service.Login(context.Background(), LoginInput{Username: "member", Password: "Bb2@bbbb"})
	assert.NoError(t, err)
}

/*
TestChangePassword_WrongCurrent rejects rotation with a bad current password.
*/
func TestChangePassword_WrongCurrent(t *testing.T) {
	service, _, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	err := service.ChangePassword(context.Background(), user.ID, "Wrong1!x", "Bb2@bbbb")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "UNAUTHORIZED"))
}

// # Access Control & Bootstrap

/*
TestValidateAccess enforces the role hierarchy ADMIN > USER > GUEST.
*/
func TestValidateAccess(t *testing.T) {
	service, userRepo, _ := newTestService(t)
	user := registerUser(t, service, "member", "Aa1!aaaa")

	assert.NoError(t, service.ValidateAccess(context.Background(), user.ID, sec.RoleGuest))
	assert.NoError(t, service.ValidateAccess(context.Background(), user.ID, sec.RoleUser))

	err := service.ValidateAccess(context.Background(), user.ID, sec.RoleAdmin)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "FORBIDDEN"))

	userRepo.users[user.ID].Role = sec.RoleAdmin
	assert.NoError(t, service.ValidateAccess(context.Background(), user.ID, sec.RoleAdmin))
}

/*
TestBootstrapAdmin creates the first ADMIN exactly once.
*/
func TestBootstrapAdmin(t *testing.T) {
	service, userRepo, _ := newTestService(t)

	require.NoError(t, service.BootstrapAdmin(context.Background(), "root", "root@example.com", "Rr1!rrrr"))

	count, err := userRepo.CountByRole(context.Background(), string(sec.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Second call is a no-op.
	require.NoError(t, service.BootstrapAdmin(context.Background(), "root2", "root2@example.com", "Rr1!rrrr"))
	count, err = userRepo.CountByRole(context.Background(), string(sec.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// # Sweeper

/*
TestSweeper_MarksExpired transitions overdue ACTIVE sessions in one pass.
*/
func TestSweeper_MarksExpired(t *testing.T) {
	sessionRepo := newFakeSessionRepository()
	now := time.Now()

	sessionRepo.sessions["live"] = &Session{ID: "live", Status: SessionActive, ExpiresAt: now.Add(time.Hour)}
	sessionRepo.sessions["overdue"] = &Session{ID: "overdue", Status: SessionActive, ExpiresAt: now.Add(-time.Hour)}
	sessionRepo.sessions["revoked"] = &Session{ID: "revoked", Status: SessionRevoked, ExpiresAt: now.Add(-time.Hour)}

	swept, err := sessionRepo.MarkExpiredBefore(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, swept)
	assert.Equal(t, SessionActive, sessionRepo.sessions["live"].Status)
	assert.Equal(t, SessionExpired, sessionRepo.sessions["overdue"].Status)
	assert.Equal(t, SessionRevoked, sessionRepo.sessions["revoked"].Status)
}
