// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package graph

import (
	"context"
	"log/slog"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/constants"
)

// # Commands

// Command is the sum type of every message the graph index accepts.
type Command struct {
	Store        *StoreCommand
	FindPaths    *FindPathsCommand
	Related      *RelatedCommand
	Dependencies *DependenciesCommand
	Purge        *PurgeCommand
}

// StoreCommand atomically replaces a connection's relationship set.
type StoreCommand struct {
	ConnectionID string
	Edges        []Edge
	ReplyTo      *actor.ReplyTo[int]
}

// FindPathsCommand asks for shortest join paths between two tables.
type FindPathsCommand struct {
	ConnectionID string
	Source       string
	Target       string
	MaxDepth     int
	ReplyTo      *actor.ReplyTo[[]Path]
}

// RelatedCommand asks for tables within MaxDepth hops of one table, each
// with its shortest hop distance.
type RelatedCommand struct {
	ConnectionID string
	Table        string
	MaxDepth     int
	ReplyTo      *actor.ReplyTo[[]Related]
}

// DependenciesCommand asks for the dependency view of a set of tables,
// including per-table in-degree counts.
type DependenciesCommand struct {
	ConnectionID string
	Tables       []string
	ReplyTo      *actor.ReplyTo[*DependencyReport]
}

// PurgeCommand removes a connection's entire graph.
type PurgeCommand struct {
	ConnectionID string
	ReplyTo      *actor.ReplyTo[bool]
}

// # Component

// Index is the graph index component on the analysis node.
type Index struct {
	mailbox *actor.Mailbox[Command]
	ref     actor.Ref[Command]
	store   Store
	logger  *slog.Logger
}

// NewIndex constructs the graph index component over the given store.
func NewIndex(store Store, logger *slog.Logger) *Index {
	mailbox, ref := actor.New[Command]("graph-index", constants.DefaultInboxSize)
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
	case command.Store != nil:
		err := index.store.ReplaceConnectionEdges(context, command.Store.ConnectionID, command.Store.Edges)
		if err != nil {
			command.Store.ReplyTo.Deliver(0, err)
			return
		}
		command.Store.ReplyTo.Deliver(len(command.Store.Edges), nil)

	case command.FindPaths != nil:
		paths, err := index.store.FindPaths(context,
			command.FindPaths.ConnectionID, command.FindPaths.Source,
			command.FindPaths.Target, command.FindPaths.MaxDepth)
		command.FindPaths.ReplyTo.Deliver(paths, err)

	case command.Related != nil:
		tables, err := index.store.RelatedTables(context,
			command.Related.ConnectionID, command.Related.Table, command.Related.MaxDepth)
		command.Related.ReplyTo.Deliver(tables, err)

	case command.Dependencies != nil:
		report, err := index.report(context,
			command.Dependencies.ConnectionID, command.Dependencies.Tables)
		command.Dependencies.ReplyTo.Deliver(report, err)

	case command.Purge != nil:
		err := index.store.DeleteByConnection(context, command.Purge.ConnectionID)
		command.Purge.ReplyTo.Deliver(err == nil, err)

	default:
		index.logger.Warn("graph_index_empty_command")
	}
}

// report assembles the dependency view for each requested table. In-degree
// is the direct dependent count, a proxy for how load-bearing a table is.
func (index *Index) report(context context.Context, connectionID string, tables []string) (*DependencyReport, error) {
	report := &DependencyReport{
		Tables:   make(map[string]*Dependencies, len(tables)),
		InDegree: make(map[string]int, len(tables)),
	}

	for _, table := range tables {
		dependencies, err := index.store.Dependencies(context, connectionID, table)
		if err != nil {
			return nil, err
		}
		report.Tables[table] = dependencies
		report.InDegree[table] = len(dependencies.Dependents)
	}

	return report, nil
}

// # Connection Cascade

/*
PurgeConnection removes the connection's graph through the component loop.
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
