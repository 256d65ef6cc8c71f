// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package graph

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/platform/actor"
)

// shopSchema wires a small store graph:
//
//	order_items -> orders -> customers
//	order_items -> products
//	orders      -> stores
func shopSchema(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	edges := []Edge{
		{ConnectionID: "c1", FromTable: "order_items", FromColumn: "order_id", ToTable: "orders", ToColumn: "id"},
		{ConnectionID: "c1", FromTable: "order_items", FromColumn: "product_id", ToTable: "products", ToColumn: "id"},
		{ConnectionID: "c1", FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
		{ConnectionID: "c1", FromTable: "orders", FromColumn: "store_id", ToTable: "stores", ToColumn: "id"},
	}
	require.NoError(t, store.ReplaceConnectionEdges(context.Background(), "c1", edges))
	return store
}

/*
TestFindPaths_ShortestPath walks the undirected graph and returns the
shortest route with its edges.
*/
func TestFindPaths_ShortestPath(t *testing.T) {
	store := shopSchema(t)

	paths, err := store.FindPaths(context.Background(), "c1", "products", "customers", 5)
	require.NoError(t, err)

	require.Len(t, paths, 1)
	assert.Equal(t, []string{"products", "order_items", "orders", "customers"}, paths[0].Tables)
	assert.Equal(t, 3, paths[0].Length())
}

/*
TestFindPaths_DepthBound returns nothing when the shortest path exceeds
the depth budget.
*/
func TestFindPaths_DepthBound(t *testing.T) {
	store := shopSchema(t)

	paths, err := store.FindPaths(context.Background(), "c1", "products", "customers", 2)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

/*
TestFindPaths_ZeroDepth is empty unless source equals target, which yields
one zero-length path.
*/
func TestFindPaths_ZeroDepth(t *testing.T) {
	store := shopSchema(t)

	paths, err := store.FindPaths(context.Background(), "c1", "orders", "customers", 0)
	require.NoError(t, err)
	assert.Empty(t, paths)

	paths, err = store.FindPaths(context.Background(), "c1", "orders", "orders", 0)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"orders"}, paths[0].Tables)
	assert.Equal(t, 0, paths[0].Length())
}

/*
TestFindPaths_MultipleShortest returns every equally short path.
*/
func TestFindPaths_MultipleShortest(t *testing.T) {
	store := NewMemoryStore()
	edges := []Edge{
		{ConnectionID: "c1", FromTable: "a", ToTable: "left"},
		{ConnectionID: "c1", FromTable: "a", ToTable: "right"},
		{ConnectionID: "c1", FromTable: "left", ToTable: "z"},
		{ConnectionID: "c1", FromTable: "right", ToTable: "z"},
	}
	require.NoError(t, store.ReplaceConnectionEdges(context.Background(), "c1", edges))

	paths, err := store.FindPaths(context.Background(), "c1", "a", "z", 5)
	require.NoError(t, err)

	require.Len(t, paths, 2)
	for _, path := range paths {
		assert.Equal(t, 2, path.Length())
	}
}

/*
TestRelatedTables_HopBound expands the neighborhood one hop at a time and
reports the shortest distance to each table.
*/
func TestRelatedTables_HopBound(t *testing.T) {
	store := shopSchema(t)

	oneHop, err := store.RelatedTables(context.Background(), "c1", "orders", 1)
	require.NoError(t, err)
	assert.Equal(t, []Related{
		{Table: "customers", Distance: 1},
		{Table: "order_items", Distance: 1},
		{Table: "stores", Distance: 1},
	}, oneHop)

	twoHops, err := store.RelatedTables(context.Background(), "c1", "orders", 2)
	require.NoError(t, err)
	assert.Equal(t, []Related{
		{Table: "customers", Distance: 1},
		{Table: "order_items", Distance: 1},
		{Table: "stores", Distance: 1},
		{Table: "products", Distance: 2},
	}, twoHops)

	zero, err := store.RelatedTables(context.Background(), "c1", "orders", 0)
	require.NoError(t, err)
	assert.Empty(t, zero)
}

/*
TestRelatedTables_DistanceIsShortestRoute a table reachable two ways keeps
the shorter hop count.
*/
func TestRelatedTables_DistanceIsShortestRoute(t *testing.T) {
	store := NewMemoryStore()
	edges := []Edge{
		{ConnectionID: "c1", FromTable: "a", ToTable: "b"},
		{ConnectionID: "c1", FromTable: "b", ToTable: "z"},
		{ConnectionID: "c1", FromTable: "a", ToTable: "z"},
	}
	require.NoError(t, store.ReplaceConnectionEdges(context.Background(), "c1", edges))

	related, err := store.RelatedTables(context.Background(), "c1", "a", 3)
	require.NoError(t, err)
	assert.Equal(t, []Related{
		{Table: "b", Distance: 1},
		{Table: "z", Distance: 1},
	}, related)
}

/*
TestDependencies splits direct references by direction.
*/
func TestDependencies(t *testing.T) {
	store := shopSchema(t)

	dependencies, err := store.Dependencies(context.Background(), "c1", "orders")
	require.NoError(t, err)

	assert.Equal(t, []string{"customers", "stores"}, dependencies.DependsOn)
	assert.Equal(t, []string{"order_items"}, dependencies.Dependents)
}

/*
TestReplaceConnectionEdges_Atomic drops stale edges on re-ingest.
*/
func TestReplaceConnectionEdges_Atomic(t *testing.T) {
	store := shopSchema(t)

	fresh := []Edge{{ConnectionID: "c1", FromTable: "orders", ToTable: "customers"}}
	require.NoError(t, store.ReplaceConnectionEdges(context.Background(), "c1", fresh))

	related, err := store.RelatedTables(context.Background(), "c1", "orders", 3)
	require.NoError(t, err)
	assert.Equal(t, []Related{{Table: "customers", Distance: 1}}, related)
}

/*
TestDeleteByConnection_Isolated removes one connection without touching
another.
*/
func TestDeleteByConnection_Isolated(t *testing.T) {
	store := shopSchema(t)
	other := []Edge{{ConnectionID: "c2", FromTable: "events", ToTable: "devices"}}
	require.NoError(t, store.ReplaceConnectionEdges(context.Background(), "c2", other))

	require.NoError(t, store.DeleteByConnection(context.Background(), "c1"))

	gone, err := store.RelatedTables(context.Background(), "c1", "orders", 3)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := store.RelatedTables(context.Background(), "c2", "events", 1)
	require.NoError(t, err)
	assert.Equal(t, []Related{{Table: "devices", Distance: 1}}, kept)
}

/*
TestIndex_DependencyReport assembles the batch dependency view with
in-degree counts through the component.
*/
func TestIndex_DependencyReport(t *testing.T) {
	store := shopSchema(t)
	index := NewIndex(store, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go index.Run(ctx)

	askCtx, askCancel := context.WithTimeout(ctx, 2*time.Second)
	defer askCancel()

	report, err := actor.Ask(askCtx, index.Ref(), func(reply *actor.ReplyTo[*DependencyReport]) Command {
		return Command{Dependencies: &DependenciesCommand{
			ConnectionID: "c1",
			Tables:       []string{"orders", "products"},
			ReplyTo:      reply,
		}}
	})
	require.NoError(t, err)

	require.Contains(t, report.Tables, "orders")
	assert.Equal(t, []string{"customers", "stores"}, report.Tables["orders"].DependsOn)
	assert.Equal(t, []string{"order_items"}, report.Tables["orders"].Dependents)
	assert.Equal(t, 1, report.InDegree["orders"])

	require.Contains(t, report.Tables, "products")
	assert.Empty(t, report.Tables["products"].DependsOn)
	assert.Equal(t, []string{"order_items"}, report.Tables["products"].Dependents)
	assert.Equal(t, 1, report.InDegree["products"])
}
