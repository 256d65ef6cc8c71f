// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package graph implements the relationship index over table foreign keys.

Each ingested connection contributes a directed graph: tables are nodes and
foreign keys are edges from the referencing table to the referenced table.
The index answers join-path and dependency questions that similarity search
cannot: how two tables connect, and what depends on what.
*/
package graph

import (
	"context"
)

// # Edges & Paths

// Edge is one foreign key relationship inside a connection's schema.
type Edge struct {
	ConnectionID string `json:"connection_id"`
	FromTable    string `json:"from_table"`
	FromColumn   string `json:"from_column"`
	ToTable      string `json:"to_table"`
	ToColumn     string `json:"to_column"`
}

// Path is an undirected walk between two tables. A path of length zero
// (source equals target) has one table and no edges.
type Path struct {
	Tables []string `json:"tables"`
	Edges  []Edge   `json:"edges"`
}

// Length returns the number of edges in the path.
func (path Path) Length() int { return len(path.Edges) }

// Related is one table reachable from a starting table, with the hop count
// of the shortest undirected route to it.
type Related struct {
	Table    string `json:"table"`
	Distance int    `json:"distance"`
}

// Dependencies is the direct dependency view of one table.
type Dependencies struct {
	Table      string   `json:"table"`
	DependsOn  []string `json:"depends_on"` // Tables this table references.
	Dependents []string `json:"dependents"` // Tables referencing this table.
}

// DependencyReport is the dependency view of a set of tables. InDegree
// counts the direct dependents of each requested table.
type DependencyReport struct {
	Tables   map[string]*Dependencies `json:"tables"`
	InDegree map[string]int           `json:"in_degree"`
}

// # Store Contract

// Store is the persistence contract for the relationship index.
type Store interface {

	/*
		ReplaceConnectionEdges atomically replaces the connection's edge set.
		Re-ingesting a schema never leaves stale edges behind.

		Parameters:
		  - context: context.Context
		  - connectionID: string
		  - edges: []Edge

		Returns:
		  - error: Storage failures
	*/
	ReplaceConnectionEdges(context context.Context, connectionID string, edges []Edge) error

	/*
		FindPaths returns every shortest undirected path between two tables,
		bounded by maxDepth edges. With maxDepth 0 the result is empty unless
		source equals target, which yields one zero-length path.

		Parameters:
		  - context: context.Context
		  - connectionID: string
		  - source: string
		  - target: string
		  - maxDepth: int

		Returns:
		  - []Path: Shortest paths, deterministic order
		  - error: Storage failures
	*/
	FindPaths(context context.Context, connectionID, source, target string, maxDepth int) ([]Path, error)

	/*
		RelatedTables returns the tables reachable from the given table within
		maxDepth undirected hops, excluding the table itself, each with its
		shortest hop distance, sorted by distance then name.

		Parameters:
		  - context: context.Context
		  - connectionID: string
		  - table: string
		  - maxDepth: int

		Returns:
		  - []Related: Reachable tables with distances
		  - error: Storage failures
	*/
	RelatedTables(context context.Context, connectionID, table string, maxDepth int) ([]Related, error)

	/*
		Dependencies returns the direct dependency view of one table.

		Parameters:
		  - context: context.Context
		  - connectionID: string
		  - table: string

		Returns:
		  - *Dependencies: Direct references in both directions
		  - error: Storage failures
	*/
	Dependencies(context context.Context, connectionID, table string) (*Dependencies, error)

	/*
		DeleteByConnection removes the connection's entire graph.

		Parameters:
		  - context: context.Context
		  - connectionID: string

		Returns:
		  - error: Storage failures
	*/
	DeleteByConnection(context context.Context, connectionID string) error
}
