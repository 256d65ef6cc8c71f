// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"

	"github.com/taibuivan/datamira/internal/platform/apperr"
)

// # Live Connection Contract

// LiveConnection is an open handle to one target database.
//
// Implementations are owned exclusively by the connection manager and are
// only ever used from its worker pool. Close must be safe to call once.
type LiveConnection interface {

	// Kind returns the engine this handle speaks to.
	Kind() DatabaseKind

	/*
		Ping verifies the handle is still reachable.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: apperr.Unreachable on failure
	*/
	Ping(context context.Context) error

	/*
		Execute runs one read query and returns engine-neutral rows.
		Row collection stops after maxRows and flags the result truncated.
		With maxRows of zero the query still runs; the result is empty and
		truncated exactly when the engine had at least one row to give.

		Parameters:
		  - context: context.Context
		  - query: string (engine dialect)
		  - maxRows: int

		Returns:
		  - *QueryResult: Columns and bounded rows
		  - error: apperr.DriverError on engine rejection, apperr.Unreachable on transport loss
	*/
	Execute(context context.Context, query string, maxRows int) (*QueryResult, error)

	/*
		WalkSchema enumerates every table with columns and relationships.

		Parameters:
		  - context: context.Context

		Returns:
		  - []SchemaTable: Full schema snapshot
		  - error: apperr.DriverError or apperr.Unreachable
	*/
	WalkSchema(context context.Context) ([]SchemaTable, error)

	// Close releases the handle. Errors are logged, never propagated.
	Close(context context.Context) error
}

// # Driver Strategy Table

// openFunc opens a live handle for one engine.
type openFunc func(context context.Context, params Params) (LiveConnection, error)

// drivers maps each supported engine to its opener. Adding an engine means
// adding one row here and one driver file.
var drivers = map[DatabaseKind]openFunc{
	KindPostgreSQL: openPostgres,
	KindMySQL:      openMySQL,
	KindMongoDB:    openMongo,
}

/*
Open dials the target database described by params.

Parameters:
  - context: context.Context
  - params: Params

Returns:
  - LiveConnection: Verified live handle
  - error: apperr.ValidationError for unknown kinds, apperr.Unreachable when the dial fails
*/
func Open(context context.Context, params Params) (LiveConnection, error) {
	open, ok := drivers[params.Kind]
	if !ok {
		return nil, apperr.ValidationError("Unsupported database kind: " + string(params.Kind))
	}
	return open(context, params)
}
