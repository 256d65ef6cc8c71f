// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package vector

import (
	"context"
	"log/slog"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
)

// # Commands

// Command is the sum type of every message the vector index accepts.
type Command struct {
	Upsert *UpsertCommand
	Search *SearchCommand
	Purge  *PurgeCommand
}

// UpsertCommand inserts or replaces a batch of points.
type UpsertCommand struct {
	Points  []Point
	ReplyTo *actor.ReplyTo[int]
}

// SearchCommand runs a similarity search. The UserID is enforced as a filter
// on every search regardless of what the payload filter says.
type SearchCommand struct {
	UserID       string
	ConnectionID string
	Vector       []float32
	K            int
	ReplyTo      *actor.ReplyTo[[]Match]
}

// PurgeCommand removes every point of one connection.
type PurgeCommand struct {
	ConnectionID string
	ReplyTo      *actor.ReplyTo[bool]
}

// # Component

// Index is the vector index component on the analysis node.
//
// The store is only ever touched from the component loop, which keeps the
// in-memory implementation free of locks.
type Index struct {
	mailbox *actor.Mailbox[Command]
	ref     actor.Ref[Command]
	store   Store
	logger  *slog.Logger
}

// NewIndex constructs the vector index component over the given store.
func NewIndex(store Store, logger *slog.Logger) *Index {
	mailbox, ref := actor.New[Command]("vector-index", constants.DefaultInboxSize)
	return &Index{mailbox: mailbox, ref: ref, store: store, logger: logger}
}

// Ref returns the sending half of the index's inbox.
func (index *Index) Ref() actor.Ref[Command] { return index.ref }

// Name identifies the component inside the runtime system.
func (index *Index) Name() string { return index.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (index *Index) Run(context context.Context) {
	actor.Run(context, index.mailbox, index.logger, func(command Command) {
		index.handle(context, command)
	})
}

// handle dispatches one command to its operation.
func (index *Index) handle(context context.Context, command Command) {
	switch {
	case command.Upsert != nil:
		index.upsert(context, command.Upsert)
	case command.Search != nil:
		index.search(context, command.Search)
	case command.Purge != nil:
		index.purge(context, command.Purge)
	default:
		index.logger.Warn("vector_index_empty_command")
	}
}

// upsert applies the batch point by point. A bad point skips, the rest land;
// the reply carries the landed count.
func (index *Index) upsert(context context.Context, command *UpsertCommand) {
	stored := 0
	for _, point := range command.Points {
		if err := index.store.Upsert(context, point); err != nil {
			index.logger.Warn("vector_upsert_point_failed",
				slog.String("point_id", point.ID),
				slog.Any("error", err),
			)
			continue
		}
		stored++
	}
	command.ReplyTo.Deliver(stored, nil)
}

// search runs the similarity query with the caller's identity forced into
// the filter. There is no unfiltered search path.
func (index *Index) search(context context.Context, command *SearchCommand) {
	if command.UserID == "" {
		command.ReplyTo.Deliver(nil, apperr.ValidationError("Search requires a user identity"))
		return
	}

	k := command.K
	if k <= 0 {
		k = constants.DefaultContextTables
	}

	matches, err := index.store.Search(context, command.Vector, Filter{
		UserID:       command.UserID,
		ConnectionID: command.ConnectionID,
	}, k)
	command.ReplyTo.Deliver(matches, err)
}

func (index *Index) purge(context context.Context, command *PurgeCommand) {
	err := index.store.DeleteByConnection(context, command.ConnectionID)
	command.ReplyTo.Deliver(err == nil, err)
}

// # Connection Cascade

/*
PurgeConnection removes the connection's points through the component loop.
Implements the connection manager's purge cascade.

Parameters:
  - context: context.Context
  - connectionID: string

Returns:
  - error: Storage failures or deadline errors
*/
func (index *Index) PurgeConnection(context context.Context, connectionID string) error {
	_, err := actor.Ask(context, index.ref, func(reply *actor.ReplyTo[bool]) Command {
		return Command{Purge: &PurgeCommand{ConnectionID: connectionID, ReplyTo: reply}}
	})
	return err
}
