// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/analysis/graph"
	"github.com/taibuivan/datamira/internal/analysis/vector"
	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/llm"
	"github.com/taibuivan/datamira/internal/reasoning/classifier"
	"github.com/taibuivan/datamira/internal/reasoning/executor"
	"github.com/taibuivan/datamira/internal/reasoning/synthesizer"
)

// scriptedModel answers by recognizing which stage prompt it received.
type scriptedModel struct {
	verdict   string
	synthesis string
	reply     string

	lastSynthesisSystem string
}

func (model *scriptedModel) Complete(_ context.Context, _ string, params llm.CompletionParams) (*llm.Completion, error) {
	switch {
	case strings.Contains(params.System, "Answer with exactly one word"):
		return &llm.Completion{Text: model.verdict}, nil
	case strings.Contains(params.System, "query generator"):
		model.lastSynthesisSystem = params.System
		return &llm.Completion{Text: model.synthesis}, nil
	default:
		return &llm.Completion{Text: model.reply}, nil
	}
}

// staticEmbedding returns one fixed vector, optionally failing every call.
type staticEmbedding struct {
	fail  bool
	calls atomic.Int32
}

func (model *staticEmbedding) Embed(_ context.Context, _ string) ([]float32, error) {
	model.calls.Add(1)
	if model.fail {
		return nil, errors.New("embedding backend down")
	}
	return []float32{1, 0, 0, 0}, nil
}

func (model *staticEmbedding) Dimension() int { return 4 }

// scriptedManager serves status and query commands for one live connection.
type scriptedManager struct {
	ref     actor.Ref[connection.Command]
	status  []connection.LiveStatus
	queries atomic.Int32
}

type harness struct {
	orchestrator *Orchestrator
	model        *scriptedModel
	embedding    *staticEmbedding
	manager      *scriptedManager
	vectorStore  *vector.MemoryStore
	graphStore   *graph.MemoryStore
}

func newHarness(t *testing.T, model *scriptedModel, embedding *staticEmbedding) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.Default()

	pool := actor.NewPool(4, 32, logger)
	pool.Start(ctx)

	manager := &scriptedManager{
		status: []connection.LiveStatus{
			{ConnectionID: "c1", UserID: "u1", Kind: connection.KindPostgreSQL, DatabaseName: "shop"},
		},
	}
	managerMailbox, managerRef := actor.New[connection.Command]("connection-manager", 16)
	manager.ref = managerRef
	go actor.Run(ctx, managerMailbox, logger, func(command connection.Command) {
		switch {
		case command.Status != nil:
			command.Status.ReplyTo.Deliver(manager.status, nil)
		case command.Query != nil:
			manager.queries.Add(1)
			command.Query.ReplyTo.Deliver(&connection.QueryResult{
				Columns:  []string{"count"},
				Rows:     [][]any{{int64(7)}},
				RowCount: 1,
			}, nil)
		}
	})

	classifiers := classifier.NewClassifier(model, pool, logger)
	go classifiers.Run(ctx)

	synthesizers := synthesizer.NewSynthesizer(model, pool, logger)
	go synthesizers.Run(ctx)

	executors := executor.NewExecutor(managerRef, []string{"insert", "update", "delete", "drop"}, false, 100, logger)
	go executors.Run(ctx)

	vectorStore := vector.NewMemoryStore(4)
	vectorIndex := vector.NewIndex(vectorStore, logger)
	go vectorIndex.Run(ctx)

	graphStore := graph.NewMemoryStore()
	graphIndex := graph.NewIndex(graphStore, logger)
	go graphIndex.Run(ctx)

	component := NewOrchestrator(
		classifiers.Ref(), synthesizers.Ref(), executors.Ref(),
		vectorIndex.Ref(), graphIndex.Ref(), managerRef,
		embedding, pool, logger,
	)
	go component.Run(ctx)

	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	return &harness{
		orchestrator: component,
		model:        model,
		embedding:    embedding,
		manager:      manager,
		vectorStore:  vectorStore,
		graphStore:   graphStore,
	}
}

func (h *harness) seedSchema(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, h.vectorStore.Upsert(ctx, vector.Point{
		ID:     "c1:orders",
		Vector: []float32{1, 0, 0, 0},
		Payload: vector.Payload{
			UserID: "u1", ConnectionID: "c1", TableName: "orders",
			Description: "Table: orders. Columns: id (uuid, primary key).",
		},
	}))
	require.NoError(t, h.vectorStore.Upsert(ctx, vector.Point{
		ID:     "c1:customers",
		Vector: []float32{0.9, 0.1, 0, 0},
		Payload: vector.Payload{
			UserID: "u1", ConnectionID: "c1", TableName: "customers",
			Description: "Table: customers. Columns: id (uuid, primary key).",
		},
	}))

	err := h.graphStore.ReplaceConnectionEdges(ctx, "c1", []graph.Edge{
		{ConnectionID: "c1", FromTable: "orders", FromColumn: "customer_id", ToTable: "customers", ToColumn: "id"},
	})
	require.NoError(t, err)
}

func (h *harness) chat(t *testing.T, command ChatCommand) (*Outcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return actor.Ask(ctx, h.orchestrator.Ref(), func(reply *actor.ReplyTo[*Outcome]) Command {
		command.ReplyTo = reply
		return Command{Chat: &command}
	})
}

/*
TestChat_QueryTurn a data question runs the full pipeline: classify,
retrieve, synthesize, execute.
*/
func TestChat_QueryTurn(t *testing.T) {
	model := &scriptedModel{
		verdict:   "QUERY",
		synthesis: `{"query": "SELECT COUNT(*) FROM orders", "explanation": "Counts every order."}`,
	}
	h := newHarness(t, model, &staticEmbedding{})
	h.seedSchema(t)

	outcome, err := h.chat(t, ChatCommand{UserID: "u1", ConnectionID: "c1", Message: "how many orders are there?"})
	require.NoError(t, err)

	assert.Equal(t, KindQuery, outcome.Kind)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", outcome.Query)
	assert.Equal(t, "Counts every order.", outcome.Reply)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, outcome.Result.RowCount)
	assert.Equal(t, int32(1), h.manager.queries.Load())

	// Both the hit and its join neighbor land in context.
	assert.Contains(t, outcome.ContextTables, "orders")
	assert.Contains(t, outcome.ContextTables, "customers")
	assert.Contains(t, model.lastSynthesisSystem, "Table: orders")
}

/*
TestChat_GeneralTurn small talk short-circuits after classification and no
database work happens.
*/
func TestChat_GeneralTurn(t *testing.T) {
	model := &scriptedModel{verdict: "GENERAL", reply: "Hello! Connect a database to explore it."}
	h := newHarness(t, model, &staticEmbedding{})

	outcome, err := h.chat(t, ChatCommand{UserID: "u1", ConnectionID: "c1", Message: "hi there"})
	require.NoError(t, err)

	assert.Equal(t, KindGeneral, outcome.Kind)
	assert.Equal(t, "Hello! Connect a database to explore it.", outcome.Reply)
	assert.Empty(t, outcome.Query)
	assert.Equal(t, int32(0), h.manager.queries.Load())
	assert.Equal(t, int32(0), h.embedding.calls.Load())
}

/*
TestChat_BlockedQuery a synthesized write operation is stopped before the
driver sees it.
*/
func TestChat_BlockedQuery(t *testing.T) {
	model := &scriptedModel{
		verdict:   "QUERY",
		synthesis: `{"query": "DELETE FROM orders", "explanation": "Removes every order."}`,
	}
	h := newHarness(t, model, &staticEmbedding{})
	h.seedSchema(t)

	_, err := h.chat(t, ChatCommand{UserID: "u1", ConnectionID: "c1", Message: "clear the orders"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "BLOCKED"))
	assert.Equal(t, int32(0), h.manager.queries.Load())
}

/*
TestChat_QueryWithoutConnection a data question needs a connection to run
against.
*/
func TestChat_QueryWithoutConnection(t *testing.T) {
	model := &scriptedModel{verdict: "QUERY"}
	h := newHarness(t, model, &staticEmbedding{})

	_, err := h.chat(t, ChatCommand{UserID: "u1", ConnectionID: "", Message: "how many orders?"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))
}

/*
TestChat_ConnectionNotLive a saved but disconnected profile cannot serve a
turn.
*/
func TestChat_ConnectionNotLive(t *testing.T) {
	model := &scriptedModel{verdict: "QUERY"}
	h := newHarness(t, model, &staticEmbedding{})

	_, err := h.chat(t, ChatCommand{UserID: "u1", ConnectionID: "ghost", Message: "how many orders?"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "NOT_FOUND"))
}

/*
TestChat_RetrievalDegrades an embedding outage empties the context but the
turn still completes.
*/
func TestChat_RetrievalDegrades(t *testing.T) {
	model := &scriptedModel{
		verdict:   "QUERY",
		synthesis: `{"query": "SELECT COUNT(*) FROM orders", "explanation": "Counts every order."}`,
	}
	h := newHarness(t, model, &staticEmbedding{fail: true})
	h.seedSchema(t)

	outcome, err := h.chat(t, ChatCommand{UserID: "u1", ConnectionID: "c1", Message: "how many orders?"})
	require.NoError(t, err)

	assert.Equal(t, KindQuery, outcome.Kind)
	assert.Empty(t, outcome.ContextTables)
	assert.Contains(t, model.lastSynthesisSystem, "no schema context available")
}
