// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/middleware"
	requestutil "github.com/taibuivan/datamira/internal/platform/request"
	"github.com/taibuivan/datamira/internal/platform/respond"
)

// Handler implements the HTTP layer for authentication.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new auth [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with the auth domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public entry points
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)

	// Session-bound operations
	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Post("/logout", handler.logout)
		protected.Post("/extend", handler.extendSession)
		protected.Post("/change-password", handler.changePassword)
	})

	return router
}

// bearerSessionID pulls the opaque session ID out of the Authorization header.
func bearerSessionID(request *http.Request) (string, error) {
	header := request.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", apperr.Unauthorized("Authentication required")
	}
	return token, nil
}

// # Endpoints

// registerRequest defines the expected JSON payload for enrollment.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
POST /api/v1/auth/register.

Description: Enrolls a new user account.

Request:
  - body: registerRequest

Response:
  - 201: User: The created account
  - 400: Validation: Password policy or field violations
  - 409: Conflict: Username or email already taken
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// loginRequest defines the expected JSON payload for authentication.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the issued session back to the client. The session ID
// doubles as the bearer token for subsequent requests.
type loginResponse struct {
	SessionID string   `json:"session_id"`
	ExpiresAt string   `json:"expires_at"`
	User      *User    `json:"user"`
	Session   *Session `json:"session"`
}

/*
POST /api/v1/auth/login.

Description: Validates credentials and issues a session.

Request:
  - body: loginRequest

Response:
  - 200: loginResponse: Session and user profile
  - 401: Unauthorized/Locked/Inactive: Credential or account state failures
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Username:  input.Username,
		Password:  input.Password,
		UserAgent: request.UserAgent(),
		IPAddress: request.RemoteAddr,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, loginResponse{
		SessionID: result.Session.ID,
		ExpiresAt: result.Session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		User:      result.User,
		Session:   result.Session,
	})
}

/*
POST /api/v1/auth/logout.

Description: Revokes the presented session. Idempotent.

Response:
  - 204: Session revoked (or already revoked)
  - 401: Unauthorized: No valid session presented
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	sessionID, err := bearerSessionID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// extendRequest defines the payload for pushing a session's expiry out.
type extendRequest struct {
	Hours int `json:"hours"`
}

/*
POST /api/v1/auth/extend.

Description: Extends the presented session's expiry to now + hours.

Request:
  - body: extendRequest

Response:
  - 200: Session: The updated session
  - 400: Validation: Hours out of range
  - 401: Unauthorized: Session not active
*/
func (handler *Handler) extendSession(writer http.ResponseWriter, request *http.Request) {
	sessionID, err := bearerSessionID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input extendRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.ExtendSession(request.Context(), sessionID, input.Hours)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, session)
}

// changePasswordRequest defines the payload for credential rotation.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

/*
POST /api/v1/auth/change-password.

Description: Rotates the user's password and revokes all other sessions.

Request:
  - body: changePasswordRequest

Response:
  - 204: Password updated
  - 400: Validation: New password policy violation
  - 401: Unauthorized: Current password mismatch
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
