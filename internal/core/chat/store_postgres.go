// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taibuivan/datamira/internal/platform/database/schema"
	"github.com/taibuivan/datamira/internal/reasoning/executor"
)

// # Repository Implementation

// PostgresTurnRepository implements [TurnRepository] using pgx against the
// core.conversationturn history table. Only the durable facts of a turn are
// stored; result rows are ephemeral and never persisted.
type PostgresTurnRepository struct {
	pool *pgxpool.Pool
}

// NewTurnRepository creates a new Postgres implementation for turn history.
func NewTurnRepository(pool *pgxpool.Pool) *PostgresTurnRepository {
	return &PostgresTurnRepository{pool: pool}
}

/*
Create stores one finished turn.

Parameters:
  - context: context.Context
  - turn: *Turn

Returns:
  - error: Execution failures
*/
func (repository *PostgresTurnRepository) Create(context context.Context, turn *Turn) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
		schema.ConversationTurn.Table,
		schema.ConversationTurn.ID, schema.ConversationTurn.UserID,
		schema.ConversationTurn.ConnectionID, schema.ConversationTurn.Message,
		schema.ConversationTurn.Kind, schema.ConversationTurn.Reply,
		schema.ConversationTurn.Query, schema.ConversationTurn.RowCount,
		schema.ConversationTurn.TotalMillis, schema.ConversationTurn.CreatedAt,
	)

	rowCount := 0
	if turn.Result != nil {
		rowCount = turn.Result.RowCount
	}

	_, err := repository.pool.Exec(context, query,
		turn.ID,
		turn.UserID,
		turn.ConnectionID,
		turn.Message,
		turn.Kind,
		turn.Reply,
		turn.Query,
		rowCount,
		turn.Timings.TotalMillis,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_turn_repo_create_failed: %w", err)
	}

	return nil
}

/*
ListByUser returns the user's most recent turns, newest first.

Parameters:
  - context: context.Context
  - userID: string
  - limit: int

Returns:
  - []*Turn: Persisted turn facts; Result carries only the stored row count
  - error: Execution failures
*/
func (repository *PostgresTurnRepository) ListByUser(context context.Context, userID string, limit int) ([]*Turn, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, COALESCE(%s, ''), %s, %s, %s, %s, %s, %s, %s
		FROM %s WHERE %s = $1 ORDER BY %s DESC LIMIT $2`,
		schema.ConversationTurn.ID, schema.ConversationTurn.UserID,
		schema.ConversationTurn.ConnectionID, schema.ConversationTurn.Message,
		schema.ConversationTurn.Kind, schema.ConversationTurn.Reply,
		schema.ConversationTurn.Query, schema.ConversationTurn.RowCount,
		schema.ConversationTurn.TotalMillis, schema.ConversationTurn.CreatedAt,
		schema.ConversationTurn.Table,
		schema.ConversationTurn.UserID,
		schema.ConversationTurn.CreatedAt,
	)

	rows, err := repository.pool.Query(context, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_turn_repo_list_failed: %w", err)
	}
	defer rows.Close()

	turns := make([]*Turn, 0)
	for rows.Next() {
		turn := &Turn{}
		var rowCount int
		err := rows.Scan(
			&turn.ID,
			&turn.UserID,
			&turn.ConnectionID,
			&turn.Message,
			&turn.Kind,
			&turn.Reply,
			&turn.Query,
			&rowCount,
			&turn.Timings.TotalMillis,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_turn_repo_scan_failed: %w", err)
		}
		// History keeps the row count only; result rows are not replayable.
		if turn.Kind == TurnQuery {
			turn.Result = &executor.Result{RowCount: rowCount}
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_turn_repo_rows_failed: %w", err)
	}

	return turns, nil
}
