// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package chat is the conversational entry point of the exploration service.

A chat message becomes a conversation turn. The router on the core node
validates the caller's session and forwards the turn to the orchestrator,
which runs the full pipeline on the reasoning node: classify the intent,
retrieve schema context, synthesize a query, and execute it. The finished
turn carries the reply, the generated query, and per-stage timings.
*/
package chat

import (
	"context"
	"time"

	"github.com/taibuivan/datamira/internal/reasoning/executor"
)

// # Turn

// TurnKind distinguishes data questions from general conversation.
type TurnKind string

const (
	// TurnQuery means the message required generating a database query.
	TurnQuery TurnKind = "QUERY"
	// TurnGeneral means the message was answered without touching a database.
	TurnGeneral TurnKind = "GENERAL"
)

// Timings records how long each pipeline stage took, in milliseconds.
// Stages that did not run for this turn stay zero.
type Timings struct {
	ClassifyMillis   int64 `json:"classify_ms"`
	RetrieveMillis   int64 `json:"retrieve_ms"`
	SynthesizeMillis int64 `json:"synthesize_ms"`
	ExecuteMillis    int64 `json:"execute_ms"`
	TotalMillis      int64 `json:"total_ms"`
}

// Turn is one completed exchange in a conversation.
type Turn struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ConnectionID  string           `json:"connection_id,omitempty"`
	Message       string           `json:"message"`
	Kind          TurnKind         `json:"kind"`
	Reply         string           `json:"reply"`
	Query         string           `json:"query,omitempty"`
	ContextTables []string         `json:"context_tables,omitempty"`
	Result        *executor.Result `json:"result,omitempty"`
	Timings       Timings          `json:"timings"`
	CreatedAt     time.Time        `json:"created_at"`
}

// # Repository

// TurnRepository persists completed turns for conversation history.
type TurnRepository interface {
	// Create stores one finished turn.
	Create(context context.Context, turn *Turn) error

	// ListByUser returns the user's most recent turns, newest first.
	ListByUser(context context.Context, userID string, limit int) ([]*Turn, error)
}
