// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/reasoning/orchestrator"
	"github.com/taibuivan/datamira/internal/users/auth"
	"github.com/taibuivan/datamira/pkg/uuid"
)

// SessionValidator revalidates the caller's session at turn time. Sessions
// expire lazily, so a turn that arrives after expiry must be rejected even
// though the HTTP middleware admitted the request moments earlier.
type SessionValidator interface {
	ValidateSession(context context.Context, sessionID string) (*auth.Session, error)
}

// # Commands

// Command is the sum type of every message the router accepts.
type Command struct {
	Turn *TurnCommand
}

// TurnCommand runs one conversation turn on behalf of a session.
type TurnCommand struct {
	SessionID    string
	ConnectionID string
	Message      string
	MaxRows      *int
	ReplyTo      *actor.ReplyTo[*Turn]
}

// # Component

// Router is the conversational front door on the core node. It owns session
// revalidation and turn bookkeeping; the pipeline itself runs on the
// reasoning node behind the orchestrator ref.
type Router struct {
	mailbox       *actor.Mailbox[Command]
	ref           actor.Ref[Command]
	sessions      SessionValidator
	orchestrators actor.Ref[orchestrator.Command]
	turns         TurnRepository
	pool          *actor.Pool
	logger        *slog.Logger
}

// NewRouter constructs the chat router component. The turn repository may be
// nil, which disables history.
func NewRouter(
	sessions SessionValidator,
	orchestrators actor.Ref[orchestrator.Command],
	turns TurnRepository,
	pool *actor.Pool,
	logger *slog.Logger,
) *Router {
	mailbox, ref := actor.New[Command]("chat-router", constants.DefaultInboxSize)
	return &Router{
		mailbox:       mailbox,
		ref:           ref,
		sessions:      sessions,
		orchestrators: orchestrators,
		turns:         turns,
		pool:          pool,
		logger:        logger,
	}
}

// Ref returns the sending half of the router's inbox.
func (router *Router) Ref() actor.Ref[Command] { return router.ref }

// Name identifies the component inside the runtime system.
func (router *Router) Name() string { return router.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (router *Router) Run(context context.Context) {
	actor.Run(context, router.mailbox, router.logger, func(command Command) {
		if command.Turn == nil {
			router.logger.Warn("chat_router_empty_command")
			return
		}
		router.turn(context, command.Turn)
	})
}

// # Operations

// turn ships one exchange to the worker pool.
func (router *Router) turn(context context.Context, command *TurnCommand) {
	reply := command.ReplyTo
	if err := router.pool.Submit(context, func() {
		turn, err := router.run(context, command)
		reply.Deliver(turn, err)
	}); err != nil {
		reply.Deliver(nil, apperr.ServiceUnavailable("Chat router is overloaded"))
	}
}

func (router *Router) run(parent context.Context, command *TurnCommand) (*Turn, error) {
	started := time.Now()

	session, err := router.sessions.ValidateSession(parent, command.SessionID)
	if err != nil {
		return nil, err
	}

	askContext, cancel := context.WithTimeout(parent, constants.QueryTurnTimeout)
	defer cancel()

	outcome, err := actor.Ask(askContext, router.orchestrators, func(reply *actor.ReplyTo[*orchestrator.Outcome]) orchestrator.Command {
		return orchestrator.Command{Chat: &orchestrator.ChatCommand{
			UserID:       session.UserID,
			ConnectionID: command.ConnectionID,
			Message:      command.Message,
			MaxRows:      command.MaxRows,
			ReplyTo:      reply,
		}}
	})
	if err != nil {
		return nil, err
	}

	turn := &Turn{
		ID:            uuid.New(),
		UserID:        session.UserID,
		ConnectionID:  command.ConnectionID,
		Message:       command.Message,
		Kind:          TurnKind(outcome.Kind),
		Reply:         outcome.Reply,
		Query:         outcome.Query,
		ContextTables: outcome.ContextTables,
		Result:        outcome.Result,
		Timings: Timings{
			ClassifyMillis:   outcome.Timings.ClassifyMillis,
			RetrieveMillis:   outcome.Timings.RetrieveMillis,
			SynthesizeMillis: outcome.Timings.SynthesizeMillis,
			ExecuteMillis:    outcome.Timings.ExecuteMillis,
			TotalMillis:      time.Since(started).Milliseconds(),
		},
		CreatedAt: started.UTC(),
	}

	router.record(parent, turn)
	return turn, nil
}

// record persists the turn for history. Best-effort; a storage hiccup never
// costs the user their answer.
func (router *Router) record(context context.Context, turn *Turn) {
	if router.turns == nil {
		return
	}
	if err := router.turns.Create(context, turn); err != nil {
		router.logger.Warn("chat_turn_record_failed",
			slog.String("turn_id", turn.ID),
			slog.Any("error", err),
		)
	}
}

// History returns the caller's recent turns, newest first.
func (router *Router) History(context context.Context, userID string, limit int) ([]*Turn, error) {
	if router.turns == nil {
		return []*Turn{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return router.turns.ListByUser(context, userID, limit)
}
