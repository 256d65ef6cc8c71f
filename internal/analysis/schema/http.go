// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/datamira/internal/analysis/graph"
	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	requestutil "github.com/taibuivan/datamira/internal/platform/request"
	"github.com/taibuivan/datamira/internal/platform/respond"
)

// Handler implements the HTTP layer for the analysis node. Ingestion runs
// on the ingestor; graph reads go straight to the graph index after an
// ownership check against the connection manager.
type Handler struct {
	ingestor actor.Ref[Command]
	graphs   actor.Ref[graph.Command]
	manager  actor.Ref[connection.Command]
}

// NewHandler constructs a new analysis [Handler].
func NewHandler(ingestor actor.Ref[Command], graphs actor.Ref[graph.Command], manager actor.Ref[connection.Command]) *Handler {
	return &Handler{ingestor: ingestor, graphs: graphs, manager: manager}
}

// authorize confirms the connection belongs to the caller. Graph data is
// keyed by connection alone, so reads must not cross user boundaries. A
// foreign connection answers NotFound, never Forbidden.
func (handler *Handler) authorize(context context.Context, userID, connectionID string) error {
	profiles, err := actor.Ask(context, handler.manager, func(reply *actor.ReplyTo[[]*connection.SavedConnection]) connection.Command {
		return connection.Command{List: &connection.ListCommand{UserID: userID, ReplyTo: reply}}
	})
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		if profile.ID == connectionID {
			return nil
		}
	}
	return apperr.NotFound("Connection")
}

// Routes returns a [chi.Router] configured with the analysis endpoints.
// All routes require authentication; the server mounts RequireAuth above.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/{id}/ingest", handler.ingest)
	router.Get("/{id}/related/{table}", handler.related)
	router.Get("/{id}/paths", handler.paths)
	router.Get("/{id}/dependencies/{table}", handler.dependencies)

	return router
}

// # Endpoints

/*
POST /api/v1/analysis/{id}/ingest.

Description: Re-walks the connection's schema and rebuilds its vector points
and relationship graph. Safe to repeat; points are replaced in place.

Response:
  - 200: Report: Tables indexed and skipped, edges stored, elapsed time
  - 404: NotFound: Unknown, foreign, or not-live connection
*/
func (handler *Handler) ingest(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Ingestion walks a live schema and embeds every table; give it the
	// full query budget rather than the short ask deadline.
	askCtx, cancel := context.WithTimeout(request.Context(), constants.QueryTurnTimeout)
	defer cancel()

	report, err := actor.Ask(askCtx, handler.ingestor, func(reply *actor.ReplyTo[*Report]) Command {
		return Command{Ingest: &IngestCommand{
			UserID:       userID,
			ConnectionID: requestutil.ID(request, "id"),
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}

/*
GET /api/v1/analysis/{id}/related/{table}?depth=2.

Description: Lists tables reachable from the given table through foreign
keys, up to depth hops, each with its shortest hop distance, sorted by
distance then name.

Response:
  - 200: []graph.Related
*/
func (handler *Handler) related(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	depth := queryDepth(request, 2)

	askCtx, cancel := context.WithTimeout(request.Context(), constants.DefaultAskTimeout)
	defer cancel()

	if err := handler.authorize(askCtx, userID, requestutil.ID(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	tables, err := actor.Ask(askCtx, handler.graphs, func(reply *actor.ReplyTo[[]graph.Related]) graph.Command {
		return graph.Command{Related: &graph.RelatedCommand{
			ConnectionID: requestutil.ID(request, "id"),
			Table:        requestutil.Param(request, "table"),
			MaxDepth:     depth,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tables)
}

/*
GET /api/v1/analysis/{id}/paths?from=orders&to=products&depth=4.

Description: Finds every shortest join path between two tables, treating
foreign keys as undirected edges.

Response:
  - 200: []graph.Path
  - 400: Validation: Missing from or to
*/
func (handler *Handler) paths(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	source := request.URL.Query().Get("from")
	target := request.URL.Query().Get("to")
	if source == "" || target == "" {
		respond.Error(writer, request, apperr.ValidationError("Both from and to tables are required"))
		return
	}
	depth := queryDepth(request, 4)

	askCtx, cancel := context.WithTimeout(request.Context(), constants.DefaultAskTimeout)
	defer cancel()

	if err := handler.authorize(askCtx, userID, requestutil.ID(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	found, err := actor.Ask(askCtx, handler.graphs, func(reply *actor.ReplyTo[[]graph.Path]) graph.Command {
		return graph.Command{FindPaths: &graph.FindPathsCommand{
			ConnectionID: requestutil.ID(request, "id"),
			Source:       source,
			Target:       target,
			MaxDepth:     depth,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, found)
}

/*
GET /api/v1/analysis/{id}/dependencies/{tables}.

Description: Splits each table's direct relationships into tables it depends
on and tables depending on it, with per-table dependent counts. The path
segment accepts a comma-separated list of tables.

Response:
  - 200: graph.DependencyReport
  - 400: Validation: No table names given
*/
func (handler *Handler) dependencies(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	tables := make([]string, 0)
	for _, table := range strings.Split(requestutil.Param(request, "table"), ",") {
		if table = strings.TrimSpace(table); table != "" {
			tables = append(tables, table)
		}
	}
	if len(tables) == 0 {
		respond.Error(writer, request, apperr.ValidationError("At least one table name is required"))
		return
	}

	askCtx, cancel := context.WithTimeout(request.Context(), constants.DefaultAskTimeout)
	defer cancel()

	if err := handler.authorize(askCtx, userID, requestutil.ID(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := actor.Ask(askCtx, handler.graphs, func(reply *actor.ReplyTo[*graph.DependencyReport]) graph.Command {
		return graph.Command{Dependencies: &graph.DependenciesCommand{
			ConnectionID: requestutil.ID(request, "id"),
			Tables:       tables,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}

func queryDepth(request *http.Request, fallback int) int {
	depth, err := strconv.Atoi(request.URL.Query().Get("depth"))
	if err != nil || depth < 0 || depth > 6 {
		return fallback
	}
	return depth
}
