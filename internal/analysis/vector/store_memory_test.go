// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// point builds a 3-dimensional test point.
func point(id, userID, connectionID, table string, vector []float32) Point {
	return Point{
		ID:     id,
		Vector: vector,
		Payload: Payload{
			UserID:       userID,
			ConnectionID: connectionID,
			TableName:    table,
			Description:  "Table: " + table,
		},
	}
}

/*
TestMemoryStore_SearchRanking orders hits by cosine similarity and caps at k.
*/
func TestMemoryStore_SearchRanking(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, point("a", "u1", "c1", "orders", []float32{1, 0, 0})))
	require.NoError(t, store.Upsert(ctx, point("b", "u1", "c1", "customers", []float32{0.9, 0.1, 0})))
	require.NoError(t, store.Upsert(ctx, point("c", "u1", "c1", "logs", []float32{0, 0, 1})))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, Filter{UserID: "u1"}, 2)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "orders", matches[0].Point.Payload.TableName)
	assert.Equal(t, "customers", matches[1].Point.Payload.TableName)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

/*
TestMemoryStore_TieBreakInsertionOrder keeps equally scored points in
insertion order.
*/
func TestMemoryStore_TieBreakInsertionOrder(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, point("first", "u1", "c1", "alpha", []float32{1, 0, 0})))
	require.NoError(t, store.Upsert(ctx, point("second", "u1", "c1", "beta", []float32{1, 0, 0})))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, Filter{UserID: "u1"}, 10)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "alpha", matches[0].Point.Payload.TableName)
	assert.Equal(t, "beta", matches[1].Point.Payload.TableName)
}

/*
TestMemoryStore_UserIsolation never returns another user's points.
*/
func TestMemoryStore_UserIsolation(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, point("mine", "u1", "c1", "orders", []float32{1, 0, 0})))
	require.NoError(t, store.Upsert(ctx, point("theirs", "u2", "c2", "salaries", []float32{1, 0, 0})))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, Filter{UserID: "u1"}, 10)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "orders", matches[0].Point.Payload.TableName)
}

/*
TestMemoryStore_UpsertReplaces replaces by ID without duplicating.
*/
func TestMemoryStore_UpsertReplaces(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, point("a", "u1", "c1", "orders", []float32{1, 0, 0})))
	require.NoError(t, store.Upsert(ctx, point("a", "u1", "c1", "orders", []float32{0, 1, 0})))

	matches, err := store.Search(ctx, []float32{0, 1, 0}, Filter{UserID: "u1"}, 10)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

/*
TestMemoryStore_DeleteByConnection removes exactly one connection's points.
*/
func TestMemoryStore_DeleteByConnection(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, point("a", "u1", "c1", "orders", []float32{1, 0, 0})))
	require.NoError(t, store.Upsert(ctx, point("b", "u1", "c2", "customers", []float32{1, 0, 0})))

	require.NoError(t, store.DeleteByConnection(ctx, "c1"))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, Filter{UserID: "u1"}, 10)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "customers", matches[0].Point.Payload.TableName)
}

/*
TestMemoryStore_DimensionMismatch rejects vectors of the wrong length.
*/
func TestMemoryStore_DimensionMismatch(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	err := store.Upsert(ctx, point("a", "u1", "c1", "orders", []float32{1, 0}))
	require.Error(t, err)

	_, err = store.Search(ctx, []float32{1, 0}, Filter{UserID: "u1"}, 10)
	require.Error(t, err)
}

/*
TestCosine_ZeroVector scores zero against everything instead of dividing
by zero.
*/
func TestCosine_ZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{0, 0, 0}, []float32{1, 0, 0}))
	assert.InDelta(t, 1.0, Cosine([]float32{2, 0, 0}, []float32{5, 0, 0}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0, 0}, []float32{-1, 0, 0}), 1e-9)
}
