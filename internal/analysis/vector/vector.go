// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package vector implements the semantic search index over schema descriptions.

Every ingested table becomes one point: a fixed-dimension embedding of its
description plus a payload identifying the owning user and connection. Search
is similarity-ranked and always filtered by the caller's user identity; a
query can never surface another user's schema.
*/
package vector

import (
	"context"
)

// # Points & Matches

// Payload identifies what a point describes and who owns it.
type Payload struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
	TableName    string `json:"table_name"`
	Description  string `json:"description"`
}

// Point is one indexed schema unit.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Match is one search hit with its cosine similarity score.
type Match struct {
	Point Point   `json:"point"`
	Score float64 `json:"score"`
}

// Filter scopes a search. UserID is mandatory; ConnectionID optionally
// narrows to one connection.
type Filter struct {
	UserID       string
	ConnectionID string
}

// matches reports whether the point passes the filter.
func (filter Filter) matches(point Point) bool {
	if point.Payload.UserID != filter.UserID {
		return false
	}
	if filter.ConnectionID != "" && point.Payload.ConnectionID != filter.ConnectionID {
		return false
	}
	return true
}

// # Store Contract

// Store is the persistence contract for the vector index.
type Store interface {

	/*
		Upsert inserts or replaces a point by ID.

		Parameters:
		  - context: context.Context
		  - point: Point

		Returns:
		  - error: Storage failures or dimension mismatches
	*/
	Upsert(context context.Context, point Point) error

	/*
		Search returns the top-k points by cosine similarity, restricted to
		the filter. Fewer than k matches may exist.

		Parameters:
		  - context: context.Context
		  - vector: []float32 (query embedding)
		  - filter: Filter (UserID mandatory)
		  - k: int

		Returns:
		  - []Match: Hits ordered by descending score
		  - error: Storage failures
	*/
	Search(context context.Context, vector []float32, filter Filter, k int) ([]Match, error)

	/*
		DeleteByConnection removes every point of one connection.

		Parameters:
		  - context: context.Context
		  - connectionID: string

		Returns:
		  - error: Storage failures
	*/
	DeleteByConnection(context context.Context, connectionID string) error
}
