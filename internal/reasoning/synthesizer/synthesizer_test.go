// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package synthesizer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/llm"
)

// # Output Parsing

/*
TestParse_AcceptsModelVariants tolerates the formats models actually emit.
*/
func TestParse_AcceptsModelVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{
			name: "bare object",
			raw:  `{"query": "SELECT 1", "explanation": "Returns one."}`,
		},
		{
			name: "json fence",
			raw:  "```json\n{\"query\": \"SELECT 1\", \"explanation\": \"Returns one.\"}\n```",
		},
		{
			name: "plain fence",
			raw:  "```\n{\"query\": \"SELECT 1\", \"explanation\": \"Returns one.\"}\n```",
		},
		{
			name: "leading prose",
			raw:  "Here is the query you asked for:\n{\"query\": \"SELECT 1\", \"explanation\": \"Returns one.\"}",
		},
		{
			name: "trailing prose",
			raw:  "{\"query\": \"SELECT 1\", \"explanation\": \"Returns one.\"}\nLet me know if you need more.",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			synthesis, err := Parse(testCase.raw)
			require.NoError(t, err)
			assert.Equal(t, "SELECT 1", synthesis.Query)
			assert.Equal(t, "Returns one.", synthesis.Explanation)
		})
	}
}

/*
TestParse_RejectsIncompleteOutput a half-formed answer is a synthesis failure.
*/
func TestParse_RejectsIncompleteOutput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "SELECT * FROM orders"},
		{name: "empty string", raw: ""},
		{name: "empty query", raw: `{"query": "  ", "explanation": "Counts orders."}`},
		{name: "missing query", raw: `{"explanation": "Counts orders."}`},
		{name: "empty explanation", raw: `{"query": "SELECT 1", "explanation": ""}`},
		{name: "missing explanation", raw: `{"query": "SELECT 1"}`},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Parse(testCase.raw)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, "SYNTHESIS_FAILED"))
		})
	}
}

// # Component

// promptRecorder echoes a fixed answer and captures the system prompt.
type promptRecorder struct {
	answer string
	system string
}

func (model *promptRecorder) Complete(_ context.Context, _ string, params llm.CompletionParams) (*llm.Completion, error) {
	model.system = params.System
	return &llm.Completion{Text: model.answer}, nil
}

func startSynthesizer(t *testing.T, model llm.LanguageModel) *Synthesizer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.Default()

	pool := actor.NewPool(2, 16, logger)
	pool.Start(ctx)

	component := NewSynthesizer(model, pool, logger)
	go component.Run(ctx)

	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
	return component
}

func synthesize(component *Synthesizer, command SynthesizeCommand) (*Synthesis, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return actor.Ask(ctx, component.Ref(), func(reply *actor.ReplyTo[*Synthesis]) Command {
		command.ReplyTo = reply
		return Command{Synthesize: &command}
	})
}

/*
TestSynthesize_UsesDialectPrompt each engine gets its own instructions and
the schema context lands in the prompt.
*/
func TestSynthesize_UsesDialectPrompt(t *testing.T) {
	cases := []struct {
		dialect connection.DatabaseKind
		marker  string
	}{
		{dialect: connection.KindPostgreSQL, marker: "PostgreSQL"},
		{dialect: connection.KindMySQL, marker: "backtick"},
		{dialect: connection.KindMongoDB, marker: "MongoDB"},
	}

	for _, testCase := range cases {
		t.Run(string(testCase.dialect), func(t *testing.T) {
			model := &promptRecorder{answer: `{"query": "SELECT 1", "explanation": "Returns one."}`}
			component := startSynthesizer(t, model)

			synthesis, err := synthesize(component, SynthesizeCommand{
				Question: "how many orders?",
				Dialect:  testCase.dialect,
				Context: []ContextTable{
					{TableName: "orders", Description: "Table: orders. Columns: id (uuid, primary key)."},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, "SELECT 1", synthesis.Query)
			assert.Contains(t, model.system, testCase.marker)
			assert.Contains(t, model.system, "Table: orders")
		})
	}
}

/*
TestSynthesize_RejectsUnknownDialect no prompt exists, so no model call is made.
*/
func TestSynthesize_RejectsUnknownDialect(t *testing.T) {
	model := &promptRecorder{answer: `{"query": "SELECT 1", "explanation": "Returns one."}`}
	component := startSynthesizer(t, model)

	_, err := synthesize(component, SynthesizeCommand{
		Question: "how many orders?",
		Dialect:  connection.DatabaseKind("ORACLE"),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))
	assert.Empty(t, model.system)
}

// flakyModel fails its first failures calls, then answers.
type flakyModel struct {
	answer   string
	failures int
	calls    atomic.Int32
}

func (model *flakyModel) Complete(_ context.Context, _ string, _ llm.CompletionParams) (*llm.Completion, error) {
	if int(model.calls.Add(1)) <= model.failures {
		return nil, errors.New("connection reset by peer")
	}
	return &llm.Completion{Text: model.answer}, nil
}

/*
TestSynthesize_RetriesOnceOnTransportFailure a single model hiccup is
absorbed; the second attempt answers.
*/
func TestSynthesize_RetriesOnceOnTransportFailure(t *testing.T) {
	model := &flakyModel{
		answer:   `{"query": "SELECT 1", "explanation": "Returns one."}`,
		failures: 1,
	}
	component := startSynthesizer(t, model)

	synthesis, err := synthesize(component, SynthesizeCommand{
		Question: "how many orders?",
		Dialect:  connection.KindPostgreSQL,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", synthesis.Query)
	assert.Equal(t, int32(2), model.calls.Load())
}

/*
TestSynthesize_FailsAfterSecondTransportFailure two failures exhaust the
retry and surface as upstream unavailability.
*/
func TestSynthesize_FailsAfterSecondTransportFailure(t *testing.T) {
	model := &flakyModel{
		answer:   `{"query": "SELECT 1", "explanation": "Returns one."}`,
		failures: 2,
	}
	component := startSynthesizer(t, model)

	_, err := synthesize(component, SynthesizeCommand{
		Question: "how many orders?",
		Dialect:  connection.KindPostgreSQL,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "UPSTREAM_UNAVAILABLE"))
	assert.Equal(t, int32(2), model.calls.Load())
}

/*
TestSynthesize_MalformedOutputIsNotRetried parse failures are final; the
model is not asked again.
*/
func TestSynthesize_MalformedOutputIsNotRetried(t *testing.T) {
	model := &flakyModel{answer: "not a query object"}
	component := startSynthesizer(t, model)

	_, err := synthesize(component, SynthesizeCommand{
		Question: "how many orders?",
		Dialect:  connection.KindPostgreSQL,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "SYNTHESIS_FAILED"))
	assert.Equal(t, int32(1), model.calls.Load())
}

/*
TestSynthesize_EmptyContextStillRenders a connection with no indexed tables
produces a prompt that says so instead of an empty section.
*/
func TestSynthesize_EmptyContextStillRenders(t *testing.T) {
	model := &promptRecorder{answer: `{"query": "SELECT 1", "explanation": "Returns one."}`}
	component := startSynthesizer(t, model)

	_, err := synthesize(component, SynthesizeCommand{
		Question: "how many orders?",
		Dialect:  connection.KindPostgreSQL,
	})
	require.NoError(t, err)
	assert.Contains(t, model.system, "no schema context available")
}
