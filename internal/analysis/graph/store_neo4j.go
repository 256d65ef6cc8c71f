// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// # Neo4j Store

// Neo4jStore implements [Store] on a Neo4j database.
//
// Model: (:Table {name, connectionId})-[:REFERENCES {fromColumn, toColumn,
// connectionId}]->(:Table). Every node and relationship carries the
// connection ID so one database serves all connections.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore wraps an established driver.
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{driver: driver}
}

// Connect dials a Neo4j server and verifies connectivity.
func Connect(context context.Context, uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j_store_dial_failed: %w", err)
	}
	if err := driver.VerifyConnectivity(context); err != nil {
		_ = driver.Close(context)
		return nil, fmt.Errorf("neo4j_store_verify_failed: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

// Close releases the underlying driver.
func (store *Neo4jStore) Close(context context.Context) error {
	return store.driver.Close(context)
}

// Ping verifies the server still answers. Used by the readiness probe.
func (store *Neo4jStore) Ping(context context.Context) error {
	return store.driver.VerifyConnectivity(context)
}

// ReplaceConnectionEdges clears and rebuilds the connection's graph in one
// write transaction.
func (store *Neo4jStore) ReplaceConnectionEdges(context context.Context, connectionID string, edges []Edge) error {
	session := store.driver.NewSession(context, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(context)

	_, err := session.ExecuteWrite(context, func(transaction neo4j.ManagedTransaction) (any, error) {
		_, err := transaction.Run(context,
			`MATCH (t:Table {connectionId: $connectionId}) DETACH DELETE t`,
			map[string]any{"connectionId": connectionID})
		if err != nil {
			return nil, err
		}

		for _, edge := range edges {
			_, err := transaction.Run(context, `
				MERGE (from:Table {name: $fromTable, connectionId: $connectionId})
				MERGE (to:Table {name: $toTable, connectionId: $connectionId})
				CREATE (from)-[:REFERENCES {fromColumn: $fromColumn, toColumn: $toColumn, connectionId: $connectionId}]->(to)`,
				map[string]any{
					"connectionId": connectionID,
					"fromTable":    edge.FromTable,
					"toTable":      edge.ToTable,
					"fromColumn":   edge.FromColumn,
					"toColumn":     edge.ToColumn,
				})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	if err != nil {
		return fmt.Errorf("neo4j_store_replace_failed: %w", err)
	}
	return nil
}

// FindPaths delegates to allShortestPaths bounded by maxDepth hops.
func (store *Neo4jStore) FindPaths(context context.Context, connectionID, source, target string, maxDepth int) ([]Path, error) {
	if source == target {
		return []Path{{Tables: []string{source}, Edges: []Edge{}}}, nil
	}
	if maxDepth <= 0 {
		return []Path{}, nil
	}

	session := store.driver.NewSession(context, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(context)

	// The variable-length bound cannot be parameterized; maxDepth is an int
	// under our control, not user text.
	cypher := fmt.Sprintf(`
		MATCH (a:Table {name: $source, connectionId: $connectionId}),
		      (b:Table {name: $target, connectionId: $connectionId})
		MATCH path = allShortestPaths((a)-[:REFERENCES*..%d]-(b))
		RETURN path`, maxDepth)

	records, err := session.Run(context, cypher, map[string]any{
		"connectionId": connectionID,
		"source":       source,
		"target":       target,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j_store_paths_failed: %w", err)
	}

	paths := make([]Path, 0)
	for records.Next(context) {
		value, ok := records.Record().Get("path")
		if !ok {
			continue
		}
		raw, ok := value.(neo4j.Path)
		if !ok {
			continue
		}
		paths = append(paths, decodePath(connectionID, raw))
	}
	if err := records.Err(); err != nil {
		return nil, fmt.Errorf("neo4j_store_paths_stream_failed: %w", err)
	}

	sort.Slice(paths, func(i, j int) bool {
		return fmt.Sprint(paths[i].Tables) < fmt.Sprint(paths[j].Tables)
	})
	return paths, nil
}

// decodePath converts a driver path into the engine-neutral shape.
func decodePath(connectionID string, raw neo4j.Path) Path {
	path := Path{
		Tables: make([]string, 0, len(raw.Nodes)),
		Edges:  make([]Edge, 0, len(raw.Relationships)),
	}
	for _, node := range raw.Nodes {
		name, _ := node.Props["name"].(string)
		path.Tables = append(path.Tables, name)
	}
	for _, relationship := range raw.Relationships {
		fromColumn, _ := relationship.Props["fromColumn"].(string)
		toColumn, _ := relationship.Props["toColumn"].(string)
		path.Edges = append(path.Edges, Edge{
			ConnectionID: connectionID,
			FromColumn:   fromColumn,
			ToColumn:     toColumn,
		})
	}
	return path
}

// RelatedTables returns the distinct tables within maxDepth undirected hops,
// each with its shortest hop distance.
func (store *Neo4jStore) RelatedTables(context context.Context, connectionID, table string, maxDepth int) ([]Related, error) {
	if maxDepth <= 0 {
		return []Related{}, nil
	}

	session := store.driver.NewSession(context, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(context)

	cypher := fmt.Sprintf(`
		MATCH (a:Table {name: $table, connectionId: $connectionId})
		MATCH path = (a)-[:REFERENCES*1..%d]-(b:Table {connectionId: $connectionId})
		WHERE b.name <> $table
		RETURN b.name AS name, min(length(path)) AS distance
		ORDER BY distance, name`, maxDepth)

	records, err := session.Run(context, cypher, map[string]any{
		"connectionId": connectionID,
		"table":        table,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j_store_related_failed: %w", err)
	}

	tables := make([]Related, 0)
	for records.Next(context) {
		record := records.Record()
		name, ok := record.Get("name")
		if !ok {
			continue
		}
		text, ok := name.(string)
		if !ok {
			continue
		}
		entry := Related{Table: text}
		if distance, ok := record.Get("distance"); ok {
			if hops, ok := distance.(int64); ok {
				entry.Distance = int(hops)
			}
		}
		tables = append(tables, entry)
	}
	if err := records.Err(); err != nil {
		return nil, fmt.Errorf("neo4j_store_related_stream_failed: %w", err)
	}

	return tables, nil
}

// Dependencies returns direct references in both directions.
func (store *Neo4jStore) Dependencies(context context.Context, connectionID, table string) (*Dependencies, error) {
	session := store.driver.NewSession(context, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(context)

	records, err := session.Run(context, `
		MATCH (a:Table {name: $table, connectionId: $connectionId})
		OPTIONAL MATCH (a)-[:REFERENCES]->(out:Table)
		OPTIONAL MATCH (in:Table)-[:REFERENCES]->(a)
		RETURN collect(DISTINCT out.name) AS dependsOn, collect(DISTINCT in.name) AS dependents`,
		map[string]any{
			"connectionId": connectionID,
			"table":        table,
		})
	if err != nil {
		return nil, fmt.Errorf("neo4j_store_dependencies_failed: %w", err)
	}

	dependencies := &Dependencies{Table: table, DependsOn: []string{}, Dependents: []string{}}
	if records.Next(context) {
		record := records.Record()
		if value, ok := record.Get("dependsOn"); ok {
			dependencies.DependsOn = stringList(value)
		}
		if value, ok := record.Get("dependents"); ok {
			dependencies.Dependents = stringList(value)
		}
	}
	if err := records.Err(); err != nil {
		return nil, fmt.Errorf("neo4j_store_dependencies_stream_failed: %w", err)
	}

	sort.Strings(dependencies.DependsOn)
	sort.Strings(dependencies.Dependents)
	return dependencies, nil
}

// stringList coerces a Cypher list into sorted Go strings, dropping nulls.
func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := item.(string); ok && text != "" {
			result = append(result, text)
		}
	}
	return result
}

// DeleteByConnection removes the connection's entire graph.
func (store *Neo4jStore) DeleteByConnection(context context.Context, connectionID string) error {
	session := store.driver.NewSession(context, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(context)

	_, err := session.ExecuteWrite(context, func(transaction neo4j.ManagedTransaction) (any, error) {
		return transaction.Run(context,
			`MATCH (t:Table {connectionId: $connectionId}) DETACH DELETE t`,
			map[string]any{"connectionId": connectionID})
	})
	if err != nil {
		return fmt.Errorf("neo4j_store_delete_failed: %w", err)
	}
	return nil
}
