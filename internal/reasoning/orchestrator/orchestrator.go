// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package orchestrator coordinates the turn pipeline on the reasoning node.

One chat message flows through up to four stages: intent classification,
schema context retrieval, query synthesis, and execution. General
conversation short-circuits after classification. The orchestrator owns the
stage deadlines and the partial-failure policy: retrieval legs degrade to a
smaller context, while synthesis and execution failures end the turn.
*/
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/datamira/internal/analysis/graph"
	"github.com/taibuivan/datamira/internal/analysis/vector"
	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/platform/llm"
	"github.com/taibuivan/datamira/internal/reasoning/classifier"
	"github.com/taibuivan/datamira/internal/reasoning/executor"
	"github.com/taibuivan/datamira/internal/reasoning/synthesizer"
)

// # Commands

// Command is the sum type of every message the orchestrator accepts.
type Command struct {
	Chat *ChatCommand
}

// ChatCommand runs the full pipeline for one message.
type ChatCommand struct {
	UserID       string
	ConnectionID string
	Message      string
	MaxRows      *int
	ReplyTo      *actor.ReplyTo[*Outcome]
}

// Kind values carried on an [Outcome].
const (
	KindQuery   = "QUERY"
	KindGeneral = "GENERAL"
)

// graphHopLimit bounds context expansion to the direct relationship
// neighborhood of the top vector match.
const graphHopLimit = 1

// Timings records per-stage latency in milliseconds. Stages that did not
// run stay zero.
type Timings struct {
	ClassifyMillis   int64
	RetrieveMillis   int64
	SynthesizeMillis int64
	ExecuteMillis    int64
}

// Outcome is the finished pipeline result for one message.
type Outcome struct {
	Kind          string
	Reply         string
	Query         string
	ContextTables []string
	Result        *executor.Result
	Timings       Timings
}

// # Component

// Orchestrator is the pipeline coordinator on the reasoning node.
type Orchestrator struct {
	mailbox      *actor.Mailbox[Command]
	ref          actor.Ref[Command]
	classifiers  actor.Ref[classifier.Command]
	synthesizers actor.Ref[synthesizer.Command]
	executors    actor.Ref[executor.Command]
	vectors      actor.Ref[vector.Command]
	graphs       actor.Ref[graph.Command]
	manager      actor.Ref[connection.Command]
	embedding    llm.EmbeddingModel
	pool         *actor.Pool
	logger       *slog.Logger
}

// NewOrchestrator constructs the orchestrator component.
func NewOrchestrator(
	classifiers actor.Ref[classifier.Command],
	synthesizers actor.Ref[synthesizer.Command],
	executors actor.Ref[executor.Command],
	vectors actor.Ref[vector.Command],
	graphs actor.Ref[graph.Command],
	manager actor.Ref[connection.Command],
	embedding llm.EmbeddingModel,
	pool *actor.Pool,
	logger *slog.Logger,
) *Orchestrator {
	mailbox, ref := actor.New[Command]("orchestrator", constants.DefaultInboxSize)
	return &Orchestrator{
		mailbox:      mailbox,
		ref:          ref,
		classifiers:  classifiers,
		synthesizers: synthesizers,
		executors:    executors,
		vectors:      vectors,
		graphs:       graphs,
		manager:      manager,
		embedding:    embedding,
		pool:         pool,
		logger:       logger,
	}
}

// Ref returns the sending half of the orchestrator's inbox.
func (orchestrator *Orchestrator) Ref() actor.Ref[Command] { return orchestrator.ref }

// Name identifies the component inside the runtime system.
func (orchestrator *Orchestrator) Name() string { return orchestrator.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (orchestrator *Orchestrator) Run(context context.Context) {
	actor.Run(context, orchestrator.mailbox, orchestrator.logger, func(command Command) {
		if command.Chat == nil {
			orchestrator.logger.Warn("orchestrator_empty_command")
			return
		}
		orchestrator.chat(context, command.Chat)
	})
}

// chat ships the pipeline to the worker pool so slow turns never block the
// inbox.
func (orchestrator *Orchestrator) chat(context context.Context, command *ChatCommand) {
	reply := command.ReplyTo
	if err := orchestrator.pool.Submit(context, func() {
		outcome, err := orchestrator.pipeline(context, command)
		reply.Deliver(outcome, err)
	}); err != nil {
		reply.Deliver(nil, apperr.ServiceUnavailable("Orchestrator is overloaded"))
	}
}

// # Pipeline

func (orchestrator *Orchestrator) pipeline(parent context.Context, command *ChatCommand) (*Outcome, error) {
	turnContext, cancel := context.WithTimeout(parent, constants.QueryTurnTimeout)
	defer cancel()

	outcome := &Outcome{}

	// 1. Classify. The classifier fails closed, so an unclassifiable
	// message lands on the general path.
	classifyStart := time.Now()
	needsQuery, err := actor.Ask(turnContext, orchestrator.classifiers, func(reply *actor.ReplyTo[bool]) classifier.Command {
		return classifier.Command{Classify: &classifier.ClassifyCommand{Message: command.Message, ReplyTo: reply}}
	})
	outcome.Timings.ClassifyMillis = millisSince(classifyStart)
	if err != nil {
		return nil, stageError(err, "classify")
	}

	if !needsQuery {
		return orchestrator.general(parent, command, outcome)
	}

	// 2. A data question needs a live connection to run against.
	if command.ConnectionID == "" {
		return nil, apperr.ValidationError("No database connection is active. Connect a database and ask again.")
	}

	// 3. Retrieve. Dialect lookup runs alongside embedding and vector
	// search; only the dialect leg is fatal.
	retrieveStart := time.Now()
	var dialect connection.DatabaseKind
	var matches []vector.Match

	group, groupContext := errgroup.WithContext(turnContext)
	group.Go(func() error {
		kind, err := orchestrator.lookupDialect(groupContext, command.UserID, command.ConnectionID)
		if err != nil {
			return err
		}
		dialect = kind
		return nil
	})
	group.Go(func() error {
		matches = orchestrator.retrieve(groupContext, command)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, stageError(err, "retrieve")
	}

	contextTables := orchestrator.expand(turnContext, command.ConnectionID, matches)
	outcome.Timings.RetrieveMillis = millisSince(retrieveStart)
	outcome.ContextTables = tableNames(contextTables)

	// 4. Synthesize.
	synthesizeStart := time.Now()
	synthesis, err := actor.Ask(turnContext, orchestrator.synthesizers, func(reply *actor.ReplyTo[*synthesizer.Synthesis]) synthesizer.Command {
		return synthesizer.Command{Synthesize: &synthesizer.SynthesizeCommand{
			Question: command.Message,
			Dialect:  dialect,
			Context:  contextTables,
			ReplyTo:  reply,
		}}
	})
	outcome.Timings.SynthesizeMillis = millisSince(synthesizeStart)
	if err != nil {
		return nil, stageError(err, "synthesize")
	}

	// 5. Execute.
	executeStart := time.Now()
	result, err := actor.Ask(turnContext, orchestrator.executors, func(reply *actor.ReplyTo[*executor.Result]) executor.Command {
		return executor.Command{Execute: &executor.ExecuteCommand{
			UserID:       command.UserID,
			ConnectionID: command.ConnectionID,
			Query:        synthesis.Query,
			MaxRows:      command.MaxRows,
			ReplyTo:      reply,
		}}
	})
	outcome.Timings.ExecuteMillis = millisSince(executeStart)
	if err != nil {
		return nil, stageError(err, "execute")
	}

	outcome.Kind = KindQuery
	outcome.Reply = synthesis.Explanation
	outcome.Query = synthesis.Query
	outcome.Result = result
	return outcome, nil
}

// general answers without touching any database, under the tighter budget.
func (orchestrator *Orchestrator) general(parent context.Context, command *ChatCommand, outcome *Outcome) (*Outcome, error) {
	generalContext, cancel := context.WithTimeout(parent, constants.GeneralTurnTimeout)
	defer cancel()

	answer, err := actor.Ask(generalContext, orchestrator.classifiers, func(reply *actor.ReplyTo[string]) classifier.Command {
		return classifier.Command{Respond: &classifier.RespondCommand{Message: command.Message, ReplyTo: reply}}
	})
	if err != nil {
		return nil, stageError(err, "respond")
	}

	outcome.Kind = KindGeneral
	outcome.Reply = answer
	return outcome, nil
}

// lookupDialect resolves the live handle's engine kind. A connection that is
// not live cannot be queried, and a foreign one must stay invisible, so both
// cases answer NotFound.
func (orchestrator *Orchestrator) lookupDialect(context context.Context, userID, connectionID string) (connection.DatabaseKind, error) {
	statuses, err := actor.Ask(context, orchestrator.manager, func(reply *actor.ReplyTo[[]connection.LiveStatus]) connection.Command {
		return connection.Command{Status: &connection.StatusCommand{UserID: userID, ReplyTo: reply}}
	})
	if err != nil {
		return "", err
	}
	for _, status := range statuses {
		if status.ConnectionID == connectionID {
			return status.Kind, nil
		}
	}
	return "", apperr.NotFound("Connection")
}

// retrieve embeds the question and searches the vector index. Both legs are
// best-effort: a failure degrades to an empty context and the synthesizer
// still gets a chance with what is left.
func (orchestrator *Orchestrator) retrieve(parent context.Context, command *ChatCommand) []vector.Match {
	embedContext, cancelEmbed := context.WithTimeout(parent, constants.ModelCallTimeout)
	embedded, err := orchestrator.embedding.Embed(embedContext, command.Message)
	cancelEmbed()
	if err != nil {
		orchestrator.logger.Warn("orchestrator_embed_failed",
			slog.String("user_id", command.UserID),
			slog.Any("error", err),
		)
		return nil
	}

	// Over-fetch so graph expansion has candidates to promote from.
	matches, err := actor.Ask(parent, orchestrator.vectors, func(reply *actor.ReplyTo[[]vector.Match]) vector.Command {
		return vector.Command{Search: &vector.SearchCommand{
			UserID:       command.UserID,
			ConnectionID: command.ConnectionID,
			Vector:       embedded,
			K:            2 * constants.DefaultContextTables,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		orchestrator.logger.Warn("orchestrator_vector_search_failed",
			slog.String("user_id", command.UserID),
			slog.Any("error", err),
		)
		return nil
	}
	return matches
}

// expand merges vector matches with the relationship neighborhood of the top
// match. Tables joinable with the best hit rank ahead of lower-scored
// matches so multi-table questions get their join path in context. Graph
// failures degrade to the plain vector ranking.
func (orchestrator *Orchestrator) expand(parent context.Context, connectionID string, matches []vector.Match) []synthesizer.ContextTable {
	if len(matches) == 0 {
		return nil
	}

	related := make(map[string]bool)
	neighbors, err := actor.Ask(parent, orchestrator.graphs, func(reply *actor.ReplyTo[[]graph.Related]) graph.Command {
		return graph.Command{Related: &graph.RelatedCommand{
			ConnectionID: connectionID,
			Table:        matches[0].Point.Payload.TableName,
			MaxDepth:     graphHopLimit,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		orchestrator.logger.Warn("orchestrator_graph_expand_failed",
			slog.String("connection_id", connectionID),
			slog.Any("error", err),
		)
	} else {
		for _, entry := range neighbors {
			related[entry.Table] = true
		}
	}

	selected := make([]synthesizer.ContextTable, 0, constants.DefaultContextTables)
	seen := make(map[string]bool)
	pick := func(match vector.Match) {
		table := match.Point.Payload.TableName
		if seen[table] || len(selected) >= constants.DefaultContextTables {
			return
		}
		seen[table] = true
		selected = append(selected, synthesizer.ContextTable{
			TableName:   table,
			Description: match.Point.Payload.Description,
		})
	}

	pick(matches[0])
	for _, match := range matches[1:] {
		if related[match.Point.Payload.TableName] {
			pick(match)
		}
	}
	for _, match := range matches[1:] {
		pick(match)
	}
	return selected
}

// # Helpers

func tableNames(tables []synthesizer.ContextTable) []string {
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.TableName)
	}
	return names
}

func millisSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// stageError maps a blown deadline to a timeout naming the stage that spent
// the budget; other errors pass through untouched.
func stageError(err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(stage)
	}
	return err
}
