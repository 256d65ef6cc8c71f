// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package synthesizer turns natural-language questions into database queries.

The synthesizer receives the user's question together with the context tables
selected by the analysis node and produces a dialect-correct read query plus
a human-readable explanation. It never executes anything; validation and
execution belong to the query executor.
*/
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/platform/llm"
)

// # Dialect Prompts

// dialectPrompts is the strategy table mapping each engine to its prompt.
// Adding an engine means adding one row here.
var dialectPrompts = map[connection.DatabaseKind]string{
	connection.KindPostgreSQL: `Generate one PostgreSQL SELECT statement.
Use only the tables and columns listed in the schema context.
Prefer explicit JOINs over subqueries. Never modify data.`,

	connection.KindMySQL: `Generate one MySQL SELECT statement.
Use only the tables and columns listed in the schema context.
Use backtick quoting for identifiers that need it. Never modify data.`,

	connection.KindMongoDB: `Generate one MongoDB read command as an extended
JSON document ("find", "aggregate", or "count"). Use only the collections and
fields listed in the schema context. Never modify data.`,
}

const synthesizeSystemPrompt = `You are a query generator for a database
exploration assistant. %s

Schema context:
%s

Respond with a JSON object only, no markdown fences:
{"query": "<the query>", "explanation": "<one sentence explaining what it returns>"}`

// # Commands

// Command is the sum type of every message the synthesizer accepts.
type Command struct {
	Synthesize *SynthesizeCommand
}

// ContextTable is one schema unit handed to the model as grounding.
type ContextTable struct {
	TableName   string `json:"table_name"`
	Description string `json:"description"`
}

// Synthesis is the generated query with its explanation.
type Synthesis struct {
	Query       string `json:"query"`
	Explanation string `json:"explanation"`
}

// SynthesizeCommand generates one query for a question.
type SynthesizeCommand struct {
	Question string
	Dialect  connection.DatabaseKind
	Context  []ContextTable
	ReplyTo  *actor.ReplyTo[*Synthesis]
}

// # Component

// Synthesizer is the query generation component on the reasoning node.
type Synthesizer struct {
	mailbox *actor.Mailbox[Command]
	ref     actor.Ref[Command]
	model   llm.LanguageModel
	pool    *actor.Pool
	logger  *slog.Logger
}

// NewSynthesizer constructs the synthesizer component.
func NewSynthesizer(model llm.LanguageModel, pool *actor.Pool, logger *slog.Logger) *Synthesizer {
	mailbox, ref := actor.New[Command]("query-synthesizer", constants.DefaultInboxSize)
	return &Synthesizer{mailbox: mailbox, ref: ref, model: model, pool: pool, logger: logger}
}

// Ref returns the sending half of the synthesizer's inbox.
func (synthesizer *Synthesizer) Ref() actor.Ref[Command] { return synthesizer.ref }

// Name identifies the component inside the runtime system.
func (synthesizer *Synthesizer) Name() string { return synthesizer.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (synthesizer *Synthesizer) Run(context context.Context) {
	actor.Run(context, synthesizer.mailbox, synthesizer.logger, func(command Command) {
		if command.Synthesize == nil {
			synthesizer.logger.Warn("synthesizer_empty_command")
			return
		}
		synthesizer.synthesize(context, command.Synthesize)
	})
}

// # Operations

func (synthesizer *Synthesizer) synthesize(context context.Context, command *SynthesizeCommand) {
	dialect, ok := dialectPrompts[command.Dialect]
	if !ok {
		command.ReplyTo.Deliver(nil, apperr.ValidationError("Unsupported dialect: "+string(command.Dialect)))
		return
	}

	question := command.Question
	system := fmt.Sprintf(synthesizeSystemPrompt, dialect, renderContext(command.Context))
	reply := command.ReplyTo

	if err := synthesizer.pool.Submit(context, func() {
		completion, err := synthesizer.complete(context, question, system)
		if err != nil {
			reply.Deliver(nil, err)
			return
		}

		synthesis, err := Parse(completion)
		reply.Deliver(synthesis, err)
	}); err != nil {
		reply.Deliver(nil, apperr.ServiceUnavailable("Synthesizer is overloaded"))
	}
}

// complete calls the model with one retry on transport failure. Malformed
// output is not retried; that is a synthesis failure handled by Parse.
func (synthesizer *Synthesizer) complete(parent context.Context, question, system string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callContext, cancel := stdContextWithTimeout(parent)
		completion, err := synthesizer.model.Complete(callContext, question, llm.CompletionParams{
			System:      system,
			Temperature: 0,
			MaxTokens:   1024,
		})
		cancel()

		if err != nil {
			lastErr = err
			synthesizer.logger.Warn("synthesizer_model_failed",
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)
			continue
		}

		return completion.Text, nil
	}

	return "", apperr.UpstreamUnavailable("language model", lastErr)
}

func stdContextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, constants.ModelCallTimeout)
}

// renderContext lays the context tables out for the prompt, one per line.
func renderContext(tables []ContextTable) string {
	if len(tables) == 0 {
		return "(no schema context available)"
	}
	lines := make([]string, 0, len(tables))
	for _, table := range tables {
		lines = append(lines, "- "+table.Description)
	}
	return strings.Join(lines, "\n")
}

// # Output Parsing

/*
Parse extracts the query and explanation from the model's raw output.

Description: Tolerates markdown fences and leading prose, but requires a JSON
object with non-empty "query" and "explanation" fields. Anything else is a
synthesis failure; a half-formed query must never reach the executor.

Parameters:
  - raw: string (model output)

Returns:
  - *Synthesis: Parsed result
  - error: apperr.SynthesisFailed on malformed or incomplete output
*/
func Parse(raw string) (*Synthesis, error) {
	text := strings.TrimSpace(raw)

	// Strip markdown fences the model may add despite instructions.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if closing := strings.LastIndex(text, "```"); closing >= 0 {
			text = text[:closing]
		}
		text = strings.TrimSpace(text)
	}

	// Cut leading prose down to the first object.
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}
	if end := strings.LastIndex(text, "}"); end >= 0 {
		text = text[:end+1]
	}

	var synthesis Synthesis
	if err := json.Unmarshal([]byte(text), &synthesis); err != nil {
		return nil, apperr.SynthesisFailed("model output is not a query object")
	}

	synthesis.Query = strings.TrimSpace(synthesis.Query)
	synthesis.Explanation = strings.TrimSpace(synthesis.Explanation)

	if synthesis.Query == "" {
		return nil, apperr.SynthesisFailed("model returned an empty query")
	}
	if synthesis.Explanation == "" {
		return nil, apperr.SynthesisFailed("model returned no explanation")
	}

	return &synthesis, nil
}
