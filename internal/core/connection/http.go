// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/constants"
	requestutil "github.com/taibuivan/datamira/internal/platform/request"
	"github.com/taibuivan/datamira/internal/platform/respond"
)

// Handler implements the HTTP layer for connection management. It translates
// REST calls into asks against the connection manager component.
type Handler struct {
	manager actor.Ref[Command]
}

// NewHandler constructs a new connection [Handler].
func NewHandler(manager actor.Ref[Command]) *Handler {
	return &Handler{manager: manager}
}

// Routes returns a [chi.Router] configured with the database endpoints.
// All routes require authentication; the server mounts RequireAuth above.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/connect", handler.establish)
	router.Post("/connect/{id}", handler.connectSaved)
	router.Post("/test", handler.test)
	router.Get("/connections", handler.list)
	router.Get("/status", handler.status)
	router.Delete("/{id}", handler.close)
	router.Delete("/{id}/purge", handler.purge)

	return router
}

// askContext bounds one component exchange with the general ask deadline.
func askContext(request *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(request.Context(), constants.DefaultAskTimeout)
}

// # Endpoints

// establishRequest defines the payload for saving and opening a connection.
type establishRequest struct {
	Name                 string            `json:"name"`
	Kind                 string            `json:"kind"`
	Host                 string            `json:"host"`
	Port                 int               `json:"port"`
	DatabaseName         string            `json:"database_name"`
	Username             string            `json:"username"`
	Password             string            `json:"password"`
	AdditionalProperties map[string]string `json:"additional_properties,omitempty"`
}

func (input establishRequest) params() Params {
	return Params{
		Kind:                 DatabaseKind(input.Kind),
		Host:                 input.Host,
		Port:                 input.Port,
		DatabaseName:         input.DatabaseName,
		Username:             input.Username,
		Password:             input.Password,
		AdditionalProperties: input.AdditionalProperties,
	}
}

/*
POST /api/v1/database/connect.

Description: Saves a new connection profile and opens a live handle to it.
The profile is persisted only after the target answers.

Request:
  - body: establishRequest

Response:
  - 201: SavedConnection: The saved, now-live profile
  - 400: Validation: Missing or malformed coordinates
  - 409: Conflict: Active profile with the same name exists
  - 503: Unreachable: Target did not answer
*/
func (handler *Handler) establish(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input establishRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	saved, err := actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[*SavedConnection]) Command {
		return Command{Establish: &EstablishCommand{
			UserID:  userID,
			Name:    input.Name,
			Params:  input.params(),
			ReplyTo: reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, saved)
}

/*
POST /api/v1/database/connect/{id}.

Description: Opens a live handle for an existing saved profile and stamps
its lastUsedAt.

Response:
  - 200: SavedConnection: The reconnected profile
  - 404: NotFound: Unknown or foreign profile
  - 503: Unreachable: Target did not answer
*/
func (handler *Handler) connectSaved(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	saved, err := actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[*SavedConnection]) Command {
		return Command{Connect: &ConnectCommand{
			UserID:       userID,
			ConnectionID: requestutil.ID(request, "id"),
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, saved)
}

// testRequest carries either raw coordinates or a saved profile reference.
type testRequest struct {
	ConnectionID string            `json:"connection_id,omitempty"`
	Coordinates  *establishRequest `json:"coordinates,omitempty"`
}

// testResponse reports a reachability probe.
type testResponse struct {
	Reachable bool `json:"reachable"`
}

/*
POST /api/v1/database/test.

Description: Probes reachability of a live profile or raw coordinates
without persisting anything.

Request:
  - body: testRequest

Response:
  - 200: testResponse
  - 404: NotFound: Unknown profile reference
  - 503: Unreachable: Target did not answer
*/
func (handler *Handler) test(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input testRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	var params *Params
	if input.Coordinates != nil {
		p := input.Coordinates.params()
		params = &p
	}

	reachable, err := actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[bool]) Command {
		return Command{Test: &TestCommand{
			UserID:       userID,
			ConnectionID: input.ConnectionID,
			Params:       params,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, testResponse{Reachable: reachable})
}

/*
GET /api/v1/database/connections.

Description: Lists the caller's active saved profiles, newest first.

Response:
  - 200: []SavedConnection
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	profiles, err := actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[[]*SavedConnection]) Command {
		return Command{List: &ListCommand{UserID: userID, ReplyTo: reply}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profiles)
}

/*
GET /api/v1/database/status.

Description: Reports the caller's currently live handles.

Response:
  - 200: []LiveStatus
*/
func (handler *Handler) status(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	statuses, err := actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[[]LiveStatus]) Command {
		return Command{Status: &StatusCommand{UserID: userID, ReplyTo: reply}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, statuses)
}

/*
DELETE /api/v1/database/{id}.

Description: Closes the live handle (best-effort) and soft-deletes the
profile, freeing its name for reuse.

Response:
  - 204: Profile deactivated
  - 404: NotFound: Unknown or foreign profile
*/
func (handler *Handler) close(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	_, err = actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[bool]) Command {
		return Command{CloseConn: &CloseCommand{
			UserID:       userID,
			ConnectionID: requestutil.ID(request, "id"),
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/database/{id}/purge.

Description: Hard-deletes the profile and purges every derived artifact
(vector points, graph edges) for the connection.

Response:
  - 204: Profile and derived data removed
  - 404: NotFound: Unknown or foreign profile
*/
func (handler *Handler) purge(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	askCtx, cancel := askContext(request)
	defer cancel()

	_, err = actor.Ask(askCtx, handler.manager, func(reply *actor.ReplyTo[bool]) Command {
		return Command{Delete: &DeleteCommand{
			UserID:       userID,
			ConnectionID: requestutil.ID(request, "id"),
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
