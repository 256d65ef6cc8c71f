// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package graph

import (
	"context"
	"sort"
)

// # In-Memory Store

// MemoryStore is a process-local [Store]. It backs single-node deployments
// and tests; multi-node deployments use the Neo4j store.
//
// # Concurrency
//
// MemoryStore is not synchronized. It is owned by the graph index component
// and only touched from its loop.
type MemoryStore struct {
	edges map[string][]Edge // connectionID -> edge set
}

// NewMemoryStore creates an empty relationship store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{edges: map[string][]Edge{}}
}

// ReplaceConnectionEdges swaps the connection's edge set in one assignment.
func (store *MemoryStore) ReplaceConnectionEdges(_ context.Context, connectionID string, edges []Edge) error {
	copied := make([]Edge, len(edges))
	copy(copied, edges)
	store.edges[connectionID] = copied
	return nil
}

// DeleteByConnection removes the connection's graph.
func (store *MemoryStore) DeleteByConnection(_ context.Context, connectionID string) error {
	delete(store.edges, connectionID)
	return nil
}

// neighbor is one undirected adjacency entry.
type neighbor struct {
	table string
	edge  Edge
}

// adjacency builds the undirected adjacency map with sorted neighbors so
// traversal order is deterministic.
func (store *MemoryStore) adjacency(connectionID string) map[string][]neighbor {
	adjacent := map[string][]neighbor{}
	for _, edge := range store.edges[connectionID] {
		adjacent[edge.FromTable] = append(adjacent[edge.FromTable], neighbor{table: edge.ToTable, edge: edge})
		adjacent[edge.ToTable] = append(adjacent[edge.ToTable], neighbor{table: edge.FromTable, edge: edge})
	}
	for table := range adjacent {
		entries := adjacent[table]
		sort.Slice(entries, func(i, j int) bool { return entries[i].table < entries[j].table })
		adjacent[table] = entries
	}
	return adjacent
}

// FindPaths returns every shortest undirected path within maxDepth edges.
func (store *MemoryStore) FindPaths(_ context.Context, connectionID, source, target string, maxDepth int) ([]Path, error) {
	if source == target {
		return []Path{{Tables: []string{source}, Edges: []Edge{}}}, nil
	}
	if maxDepth <= 0 {
		return []Path{}, nil
	}

	adjacent := store.adjacency(connectionID)

	// Level-order BFS recording every shortest-path predecessor.
	distance := map[string]int{source: 0}
	predecessors := map[string][]neighbor{}
	frontier := []string{source}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, table := range frontier {
			for _, entry := range adjacent[table] {
				seen, visited := distance[entry.table]
				if !visited {
					distance[entry.table] = depth + 1
					predecessors[entry.table] = []neighbor{{table: table, edge: entry.edge}}
					next = append(next, entry.table)
				} else if seen == depth+1 {
					predecessors[entry.table] = append(predecessors[entry.table], neighbor{table: table, edge: entry.edge})
				}
			}
		}
		if _, found := distance[target]; found {
			break
		}
		frontier = next
	}

	if _, found := distance[target]; !found {
		return []Path{}, nil
	}

	return unwind(predecessors, source, target), nil
}

// unwind reconstructs every shortest path from the predecessor map.
func unwind(predecessors map[string][]neighbor, source, target string) []Path {
	if source == target {
		return []Path{{Tables: []string{source}, Edges: []Edge{}}}
	}

	paths := make([]Path, 0)
	for _, previous := range predecessors[target] {
		for _, prefix := range unwind(predecessors, source, previous.table) {
			paths = append(paths, Path{
				Tables: append(append([]string{}, prefix.Tables...), target),
				Edges:  append(append([]Edge{}, prefix.Edges...), previous.edge),
			})
		}
	}
	return paths
}

// RelatedTables returns tables reachable within maxDepth undirected hops,
// each with the BFS depth it was first discovered at.
func (store *MemoryStore) RelatedTables(_ context.Context, connectionID, table string, maxDepth int) ([]Related, error) {
	if maxDepth <= 0 {
		return []Related{}, nil
	}

	adjacent := store.adjacency(connectionID)
	visited := map[string]bool{table: true}
	frontier := []string{table}
	reachable := make([]Related, 0)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, current := range frontier {
			for _, entry := range adjacent[current] {
				if visited[entry.table] {
					continue
				}
				visited[entry.table] = true
				reachable = append(reachable, Related{Table: entry.table, Distance: depth + 1})
				next = append(next, entry.table)
			}
		}
		frontier = next
	}

	sort.Slice(reachable, func(i, j int) bool {
		if reachable[i].Distance != reachable[j].Distance {
			return reachable[i].Distance < reachable[j].Distance
		}
		return reachable[i].Table < reachable[j].Table
	})
	return reachable, nil
}

// Dependencies returns the direct references in both directions, sorted and
// deduplicated.
func (store *MemoryStore) Dependencies(_ context.Context, connectionID, table string) (*Dependencies, error) {
	dependsOn := map[string]bool{}
	dependents := map[string]bool{}

	for _, edge := range store.edges[connectionID] {
		if edge.FromTable == table {
			dependsOn[edge.ToTable] = true
		}
		if edge.ToTable == table {
			dependents[edge.FromTable] = true
		}
	}

	return &Dependencies{
		Table:      table,
		DependsOn:  sortedKeys(dependsOn),
		Dependents: sortedKeys(dependents),
	}, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
