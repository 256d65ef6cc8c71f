// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/taibuivan/datamira/internal/platform/constants"
)

// # Redis Store

// RedisStore implements [Store] on Redis for deployments where the analysis
// node restarts must not lose the index.
//
// Layout:
//   - vector:point:<id> holds the JSON point.
//   - vector:conn:<connectionID> is the set of point IDs for that connection.
//
// Search is a brute-force scan over the filtered connection sets. Index sizes
// are bounded by schema sizes (tables, not rows), so the scan stays small.
type RedisStore struct {
	client    *redis.Client
	dimension int
}

// NewRedisStore creates a Redis-backed store for vectors of the given dimension.
func NewRedisStore(client *redis.Client, dimension int) *RedisStore {
	return &RedisStore{client: client, dimension: dimension}
}

func pointKey(id string) string {
	return constants.RedisPrefixVectorPoint + id
}

func connectionKey(connectionID string) string {
	return constants.RedisPrefixVectorConn + connectionID
}

// Upsert stores the point and registers it in its connection set.
func (store *RedisStore) Upsert(context context.Context, point Point) error {
	if len(point.Vector) != store.dimension {
		return fmt.Errorf("vector_store_dimension_mismatch: got %d, want %d", len(point.Vector), store.dimension)
	}

	payload, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("redis_vector_marshal_failed: %w", err)
	}

	pipeline := store.client.TxPipeline()
	pipeline.Set(context, pointKey(point.ID), payload, 0)
	pipeline.SAdd(context, connectionKey(point.Payload.ConnectionID), point.ID)
	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_vector_upsert_failed: %w", err)
	}

	return nil
}

// Search scores the candidate points of the filtered connections.
func (store *RedisStore) Search(context context.Context, vector []float32, filter Filter, k int) ([]Match, error) {
	if len(vector) != store.dimension {
		return nil, fmt.Errorf("vector_store_dimension_mismatch: got %d, want %d", len(vector), store.dimension)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	ids, err := store.candidateIDs(context, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0)
	for _, id := range ids {
		raw, err := store.client.Get(context, pointKey(id)).Bytes()
		if err != nil {
			// Point evicted between set read and fetch; skip it.
			continue
		}

		var point Point
		if err := json.Unmarshal(raw, &point); err != nil {
			return nil, fmt.Errorf("redis_vector_unmarshal_failed: %w", err)
		}
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

// candidateIDs collects point IDs for the filter scope.
func (store *RedisStore) candidateIDs(context context.Context, filter Filter) ([]string, error) {
	if filter.ConnectionID != "" {
		ids, err := store.client.SMembers(context, connectionKey(filter.ConnectionID)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis_vector_members_failed: %w", err)
		}
		sort.Strings(ids)
		return ids, nil
	}

	// No connection scope: walk every connection set.
	ids := make([]string, 0)
	iterator := store.client.Scan(context, 0, constants.RedisPrefixVectorConn+"*", 0).Iterator()
	for iterator.Next(context) {
		members, err := store.client.SMembers(context, iterator.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis_vector_members_failed: %w", err)
		}
		ids = append(ids, members...)
	}
	if err := iterator.Err(); err != nil {
		return nil, fmt.Errorf("redis_vector_scan_failed: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteByConnection removes the connection's points and its set.
func (store *RedisStore) DeleteByConnection(context context.Context, connectionID string) error {
	ids, err := store.client.SMembers(context, connectionKey(connectionID)).Result()
	if err != nil {
		return fmt.Errorf("redis_vector_members_failed: %w", err)
	}

	pipeline := store.client.TxPipeline()
	for _, id := range ids {
		pipeline.Del(context, pointKey(id))
	}
	pipeline.Del(context, connectionKey(connectionID))
	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_vector_delete_failed: %w", err)
	}

	return nil
}
