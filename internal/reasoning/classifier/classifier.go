// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package classifier decides how an incoming chat message should be handled.

A message either requires query generation (it asks about the data) or it is
general conversation (greetings, questions about the product, follow-ups with
no data need). The decision gates the entire query pipeline, so it fails
closed: when the model cannot answer, the message is treated as general
conversation and no query is ever synthesized from an unclassified message.
*/
package classifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/platform/llm"
)

// # Prompts

const classifySystemPrompt = `You are a router for a database exploration assistant.
Decide whether the user message requires generating a database query.
Answer with exactly one word:
QUERY   - the message asks about data, tables, counts, records, or reports
GENERAL - greetings, small talk, questions about the assistant, or anything
          answerable without touching a database`

const respondSystemPrompt = `You are a friendly database exploration assistant.
The user message does not require a database query. Answer briefly and
helpfully. If the user seems to want data, suggest connecting a database
and asking a concrete question about it.`

// # Commands

// Command is the sum type of every message the classifier accepts.
type Command struct {
	Classify *ClassifyCommand
	Respond  *RespondCommand
}

// ClassifyCommand asks whether the message needs query generation.
type ClassifyCommand struct {
	Message string
	ReplyTo *actor.ReplyTo[bool]
}

// RespondCommand generates the general-conversation reply.
type RespondCommand struct {
	Message string
	ReplyTo *actor.ReplyTo[string]
}

// # Component

// Classifier is the intent gate on the reasoning node.
type Classifier struct {
	mailbox *actor.Mailbox[Command]
	ref     actor.Ref[Command]
	model   llm.LanguageModel
	pool    *actor.Pool
	logger  *slog.Logger
}

// NewClassifier constructs the classifier component.
func NewClassifier(model llm.LanguageModel, pool *actor.Pool, logger *slog.Logger) *Classifier {
	mailbox, ref := actor.New[Command]("classifier", constants.DefaultInboxSize)
	return &Classifier{mailbox: mailbox, ref: ref, model: model, pool: pool, logger: logger}
}

// Ref returns the sending half of the classifier's inbox.
func (classifier *Classifier) Ref() actor.Ref[Command] { return classifier.ref }

// Name identifies the component inside the runtime system.
func (classifier *Classifier) Name() string { return classifier.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (classifier *Classifier) Run(context context.Context) {
	actor.Run(context, classifier.mailbox, classifier.logger, func(command Command) {
		classifier.handle(context, command)
	})
}

func (classifier *Classifier) handle(context context.Context, command Command) {
	switch {
	case command.Classify != nil:
		classifier.classify(context, command.Classify)
	case command.Respond != nil:
		classifier.respond(context, command.Respond)
	default:
		classifier.logger.Warn("classifier_empty_command")
	}
}

// # Operations

// classify runs the gate prompt on the worker pool. Model failures retry
// once, then fail closed to GENERAL.
func (classifier *Classifier) classify(context context.Context, command *ClassifyCommand) {
	message := command.Message
	reply := command.ReplyTo

	if err := classifier.pool.Submit(context, func() {
		reply.Deliver(classifier.decide(context, message), nil)
	}); err != nil {
		// Overload also fails closed.
		reply.Deliver(false, nil)
	}
}

// decide executes the classification with one retry.
func (classifier *Classifier) decide(parent context.Context, message string) bool {
	for attempt := 0; attempt < 2; attempt++ {
		callContext, cancel := context.WithTimeout(parent, constants.ModelCallTimeout)
		completion, err := classifier.model.Complete(callContext, message, llm.CompletionParams{
			System:      classifySystemPrompt,
			Temperature: 0,
			MaxTokens:   8,
		})
		cancel()

		if err != nil {
			classifier.logger.Warn("classifier_model_failed",
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)
			continue
		}

		return strings.Contains(strings.ToUpper(completion.Text), "QUERY")
	}

	// Fail closed: an unclassifiable message never reaches the synthesizer.
	return false
}

// respond generates the general-conversation answer.
func (classifier *Classifier) respond(context context.Context, command *RespondCommand) {
	message := command.Message
	reply := command.ReplyTo

	if err := classifier.pool.Submit(context, func() {
		callContext, cancel := classifier.callContext(context)
		defer cancel()

		completion, err := classifier.model.Complete(callContext, message, llm.CompletionParams{
			System:      respondSystemPrompt,
			Temperature: 0.7,
			MaxTokens:   512,
		})
		if err != nil {
			reply.Deliver("", apperr.UpstreamUnavailable("language model", err))
			return
		}
		reply.Deliver(strings.TrimSpace(completion.Text), nil)
	}); err != nil {
		reply.Deliver("", apperr.ServiceUnavailable("Classifier is overloaded"))
	}
}

func (classifier *Classifier) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, constants.ModelCallTimeout)
}
