// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	requestutil "github.com/taibuivan/datamira/internal/platform/request"
	"github.com/taibuivan/datamira/internal/platform/respond"
)

// Handler implements the HTTP layer for conversation. It translates REST
// calls into asks against the chat router.
type Handler struct {
	router *Router
}

// NewHandler constructs a new chat [Handler].
func NewHandler(router *Router) *Handler {
	return &Handler{router: router}
}

// Routes returns a [chi.Router] configured with the chat endpoints.
// All routes require authentication; the server mounts RequireAuth above.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/database", handler.turn)
	router.Get("/history", handler.history)

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

// turnRequest defines the payload for one chat message.
type turnRequest struct {
	ConnectionID string `json:"connection_id,omitempty"`
	Message      string `json:"message"`
	MaxRows      *int   `json:"max_rows,omitempty"`
}

/*
POST /api/v1/chat/database.

Description: Runs one conversation turn. Data questions are answered with a
generated query and its bounded result; general conversation gets a plain
reply. The turn is bounded by the query budget end to end.

Request:
  - body: turnRequest

Response:
  - 200: Turn: The completed exchange
  - 400: Validation: Empty message, or a data question with no connection
  - 403: Blocked: The generated query contained a denylisted operation
  - 404: NotFound: Unknown, foreign, or not-live connection
  - 504: Timeout: A pipeline stage spent the turn budget
*/
func (handler *Handler) turn(writer http.ResponseWriter, request *http.Request) {
	sessionID, err := bearerSessionID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input turnRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if strings.TrimSpace(input.Message) == "" {
		respond.Error(writer, request, apperr.ValidationError("Message must not be empty"))
		return
	}

	// The chat router enforces the turn budget; the global request timeout
	// above only adds queueing headroom.
	askCtx, cancel := context.WithTimeout(request.Context(), constants.GlobalRequestTimeout)
	defer cancel()

	turn, err := actor.Ask(askCtx, handler.router.Ref(), func(reply *actor.ReplyTo[*Turn]) Command {
		return Command{Turn: &TurnCommand{
			SessionID:    sessionID,
			ConnectionID: input.ConnectionID,
			Message:      input.Message,
			MaxRows:      input.MaxRows,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, turn)
}

/*
GET /api/v1/chat/history?limit=20.

Description: Lists the caller's recent turns, newest first. Result rows are
not replayed; history carries the query, reply, and row count.

Response:
  - 200: []Turn
*/
func (handler *Handler) history(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	limit, _ := strconv.Atoi(request.URL.Query().Get("limit"))

	turns, err := handler.router.History(request.Context(), userID, limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, turns)
}
