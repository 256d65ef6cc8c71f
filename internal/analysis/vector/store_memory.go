// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// # In-Memory Store

// MemoryStore is a process-local [Store]. It backs single-node deployments
// and tests; multi-node deployments use the Redis store.
//
// # Concurrency
//
// MemoryStore is not synchronized. It is owned by the vector index component
// and only touched from its loop.
type MemoryStore struct {
	dimension int
	points    map[string]Point
	order     []string
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		points:    map[string]Point{},
		order:     make([]string, 0),
	}
}

// Upsert inserts or replaces a point. Replacement keeps the original
// insertion position so ranking ties stay stable.
func (store *MemoryStore) Upsert(_ context.Context, point Point) error {
	if len(point.Vector) != store.dimension {
		return fmt.Errorf("vector_store_dimension_mismatch: got %d, want %d", len(point.Vector), store.dimension)
	}

	if _, exists := store.points[point.ID]; !exists {
		store.order = append(store.order, point.ID)
	}
	store.points[point.ID] = point
	return nil
}

// Search scans all points, filters, scores, and returns the top k.
// Ties break by insertion order, oldest first.
func (store *MemoryStore) Search(_ context.Context, vector []float32, filter Filter, k int) ([]Match, error) {
	if len(vector) != store.dimension {
		return nil, fmt.Errorf("vector_store_dimension_mismatch: got %d, want %d", len(vector), store.dimension)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0)
	for _, id := range store.order {
		point := store.points[id]
		if !filter.matches(point) {
			continue
		}
		matches = append(matches, Match{Point: point, Score: Cosine(vector, point.Vector)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteByConnection removes every point of one connection.
func (store *MemoryStore) DeleteByConnection(_ context.Context, connectionID string) error {
	kept := store.order[:0]
	for _, id := range store.order {
		if store.points[id].Payload.ConnectionID == connectionID {
			delete(store.points, id)
			continue
		}
		kept = append(kept, id)
	}
	store.order = kept
	return nil
}

// # Similarity

// Cosine returns the cosine similarity of two equal-length vectors.
// A zero vector scores 0 against everything.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
