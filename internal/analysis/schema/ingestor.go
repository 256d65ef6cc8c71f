// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/datamira/internal/analysis/graph"
	"github.com/taibuivan/datamira/internal/analysis/vector"
	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/platform/llm"
)

// # Commands

// Command is the sum type of every message the ingestor accepts.
type Command struct {
	Ingest *IngestCommand
}

// IngestCommand walks, embeds, and indexes one connection's schema.
type IngestCommand struct {
	UserID       string
	ConnectionID string
	ReplyTo      *actor.ReplyTo[*Report]
}

// Report summarizes one ingestion run. Error carries the first per-table
// failure; the run itself still succeeds when other tables land.
type Report struct {
	TablesIndexed    int    `json:"tables_indexed"`
	TablesSkipped    int    `json:"tables_skipped"`
	EdgesStored      int    `json:"edges_stored"`
	ProcessingMillis int64  `json:"processing_ms"`
	Error            string `json:"error,omitempty"`
}

// # Component

// Ingestor drives schema ingestion on the analysis node.
//
// The heavy work (schema walk, embedding calls, index asks) runs on the
// worker pool so the loop stays responsive; one ingestion is in flight per
// command and commands queue behind each other in the inbox.
type Ingestor struct {
	mailbox   *actor.Mailbox[Command]
	ref       actor.Ref[Command]
	manager   actor.Ref[connection.Command]
	vectors   actor.Ref[vector.Command]
	graphs    actor.Ref[graph.Command]
	embedding llm.EmbeddingModel
	pool      *actor.Pool
	logger    *slog.Logger
}

// NewIngestor constructs the schema ingestor component.
func NewIngestor(
	manager actor.Ref[connection.Command],
	vectors actor.Ref[vector.Command],
	graphs actor.Ref[graph.Command],
	embedding llm.EmbeddingModel,
	pool *actor.Pool,
	logger *slog.Logger,
) *Ingestor {
	mailbox, ref := actor.New[Command]("schema-ingestor", constants.DefaultInboxSize)
	return &Ingestor{
		mailbox:   mailbox,
		ref:       ref,
		manager:   manager,
		vectors:   vectors,
		graphs:    graphs,
		embedding: embedding,
		pool:      pool,
		logger:    logger,
	}
}

// Ref returns the sending half of the ingestor's inbox.
func (ingestor *Ingestor) Ref() actor.Ref[Command] { return ingestor.ref }

// Name identifies the component inside the runtime system.
func (ingestor *Ingestor) Name() string { return ingestor.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (ingestor *Ingestor) Run(context context.Context) {
	actor.Run(context, ingestor.mailbox, ingestor.logger, func(command Command) {
		if command.Ingest == nil {
			ingestor.logger.Warn("schema_ingestor_empty_command")
			return
		}
		ingestor.ingest(context, command.Ingest)
	})
}

// ingest ships the full pipeline to the worker pool.
func (ingestor *Ingestor) ingest(context context.Context, command *IngestCommand) {
	reply := command.ReplyTo
	userID := command.UserID
	connectionID := command.ConnectionID

	if err := ingestor.pool.Submit(context, func() {
		report, err := ingestor.run(context, userID, connectionID)
		reply.Deliver(report, err)
	}); err != nil {
		reply.Deliver(nil, apperr.ServiceUnavailable("Schema ingestor is overloaded"))
	}
}

// run executes one ingestion: walk, describe, embed, index.
func (ingestor *Ingestor) run(parent context.Context, userID, connectionID string) (*Report, error) {
	started := time.Now()

	// 1. Snapshot the schema through the connection manager.
	walkContext, cancelWalk := context.WithTimeout(parent, constants.QueryTurnTimeout)
	defer cancelWalk()

	tables, err := actor.Ask(walkContext, ingestor.manager, func(reply *actor.ReplyTo[[]connection.SchemaTable]) connection.Command {
		return connection.Command{SchemaWalk: &connection.SchemaWalkCommand{
			UserID:       userID,
			ConnectionID: connectionID,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	points := make([]vector.Point, 0, len(tables))
	edges := make([]graph.Edge, 0)

	// 2. Describe and embed table by table. A failing table is skipped and
	// counted; the rest of the schema still lands.
	for _, table := range tables {
		description := Describe(table)

		embedContext, cancelEmbed := context.WithTimeout(parent, constants.ModelCallTimeout)
		embedded, err := ingestor.embedding.Embed(embedContext, description)
		cancelEmbed()
		if err != nil {
			ingestor.logger.Warn("schema_embed_failed",
				slog.String("connection_id", connectionID),
				slog.String("table", table.Name),
				slog.Any("error", err),
			)
			report.TablesSkipped++
			if report.Error == "" {
				report.Error = "embedding failed for table " + table.Name + ": " + err.Error()
			}
			continue
		}

		points = append(points, vector.Point{
			ID:     PointID(connectionID, table.Name),
			Vector: embedded,
			Payload: vector.Payload{
				UserID:       userID,
				ConnectionID: connectionID,
				TableName:    table.Name,
				Description:  description,
			},
		})

		for _, foreignKey := range table.ForeignKeys {
			edges = append(edges, graph.Edge{
				ConnectionID: connectionID,
				FromTable:    table.Name,
				FromColumn:   foreignKey.Column,
				ToTable:      foreignKey.ReferencedTable,
				ToColumn:     foreignKey.ReferencedColumn,
			})
		}
	}

	// 3. Land the points in the vector index.
	askContext, cancelAsk := context.WithTimeout(parent, constants.DefaultAskTimeout)
	defer cancelAsk()

	indexed, err := actor.Ask(askContext, ingestor.vectors, func(reply *actor.ReplyTo[int]) vector.Command {
		return vector.Command{Upsert: &vector.UpsertCommand{Points: points, ReplyTo: reply}}
	})
	if err != nil {
		return nil, apperr.UpstreamUnavailable("vector index", err)
	}
	report.TablesIndexed = indexed
	report.TablesSkipped += len(points) - indexed

	// 4. Replace the relationship graph atomically.
	stored, err := actor.Ask(askContext, ingestor.graphs, func(reply *actor.ReplyTo[int]) graph.Command {
		return graph.Command{Store: &graph.StoreCommand{
			ConnectionID: connectionID,
			Edges:        edges,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		return nil, apperr.UpstreamUnavailable("graph index", err)
	}
	report.EdgesStored = stored
	report.ProcessingMillis = time.Since(started).Milliseconds()

	return report, nil
}
