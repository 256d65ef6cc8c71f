// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package executor validates and runs synthesized queries.

The executor is the last gate before a query touches a live database. It
screens the query against the write-operation denylist, bounds the result
size, and forwards the work to the connection manager, which owns the only
driver handle. The executor itself never holds a handle.

# Safety Policy

Denylisted keywords hard-block execution by default. A deployment can switch
to warn-only mode, where the query runs and the hit is reported as a warning;
the toggle exists for trusted single-user installs, not shared deployments.
*/
package executor

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
)

// # Commands

// Command is the sum type of every message the executor accepts.
type Command struct {
	Execute *ExecuteCommand
}

// ExecuteCommand validates and runs one query. A nil MaxRows applies the
// deployment default; an explicit zero runs the query but collects no rows,
// flagging truncation when the engine had any to give.
type ExecuteCommand struct {
	UserID       string
	ConnectionID string
	Query        string
	MaxRows      *int
	ReplyTo      *actor.ReplyTo[*Result]
}

// Result is the executed query outcome with any policy warnings.
type Result struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	Warnings  []string `json:"warnings,omitempty"`
}

// # Component

// Executor is the validation and execution component on the reasoning node.
type Executor struct {
	mailbox  *actor.Mailbox[Command]
	ref      actor.Ref[Command]
	manager  actor.Ref[connection.Command]
	denylist []string
	warnOnly bool
	maxRows  int
	logger   *slog.Logger
}

// NewExecutor constructs the executor component.
//
// # Parameters
//   - manager: Connection manager ref; the only route to live handles.
//   - denylist: Lowercased keywords that block (or warn on) execution.
//   - warnOnly: When true, denylist hits run anyway and surface as warnings.
//   - maxRows: Deployment default row bound; 0 falls back to the platform default.
func NewExecutor(manager actor.Ref[connection.Command], denylist []string, warnOnly bool, maxRows int, logger *slog.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = constants.DefaultMaxRows
	}

	normalized := make([]string, 0, len(denylist))
	for _, keyword := range denylist {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			normalized = append(normalized, keyword)
		}
	}

	mailbox, ref := actor.New[Command]("query-executor", constants.DefaultInboxSize)
	return &Executor{
		mailbox:  mailbox,
		ref:      ref,
		manager:  manager,
		denylist: normalized,
		warnOnly: warnOnly,
		maxRows:  maxRows,
		logger:   logger,
	}
}

// Ref returns the sending half of the executor's inbox.
func (executor *Executor) Ref() actor.Ref[Command] { return executor.ref }

// Name identifies the component inside the runtime system.
func (executor *Executor) Name() string { return executor.mailbox.Name() }

// Run drives the component loop until the context is cancelled.
func (executor *Executor) Run(context context.Context) {
	actor.Run(context, executor.mailbox, executor.logger, func(command Command) {
		if command.Execute == nil {
			executor.logger.Warn("executor_empty_command")
			return
		}
		executor.execute(context, command.Execute)
	})
}

// # Operations

func (executor *Executor) execute(context context.Context, command *ExecuteCommand) {
	warnings := make([]string, 0)

	// 1. Policy screen. A hit blocks before any driver traffic by default.
	if keyword, hit := executor.screen(command.Query); hit {
		if !executor.warnOnly {
			executor.logger.Info("query_blocked",
				slog.String("user_id", command.UserID),
				slog.String("keyword", keyword),
			)
			command.ReplyTo.Deliver(nil, apperr.Blocked(keyword))
			return
		}
		warnings = append(warnings, "Query contains denylisted keyword: "+keyword)
	}

	// 2. Row bound. An explicit zero still runs the query; the driver
	// collects no rows and flags truncation only when rows were available.
	maxRows := executor.maxRows
	if command.MaxRows != nil {
		maxRows = *command.MaxRows
	}
	if maxRows < 0 {
		maxRows = 0
	}

	// 3. Hand off to the connection manager, the sole handle owner.
	reply := command.ReplyTo
	result, err := actor.Ask(context, executor.manager, func(managerReply *actor.ReplyTo[*connection.QueryResult]) connection.Command {
		return connection.Command{Query: &connection.QueryCommand{
			UserID:       command.UserID,
			ConnectionID: command.ConnectionID,
			Query:        command.Query,
			MaxRows:      maxRows,
			ReplyTo:      managerReply,
		}}
	})
	if err != nil {
		executor.logger.Warn("query_execution_failed",
			slog.String("user_id", command.UserID),
			slog.String("error", Scrub(err.Error())),
		)
		reply.Deliver(nil, err)
		return
	}

	reply.Deliver(&Result{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		Warnings:  warnings,
	}, nil)
}

// screen reports the first denylisted keyword appearing as a whole word in
// the query, case-insensitively.
func (executor *Executor) screen(query string) (string, bool) {
	words := tokenize(query)
	for _, keyword := range executor.denylist {
		if words[keyword] {
			return keyword, true
		}
	}
	return "", false
}

// tokenize splits the query into lowercased word tokens. Keyword matching is
// token-exact so a column named "created_at" never trips "create".
func tokenize(query string) map[string]bool {
	tokens := map[string]bool{}
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens[strings.ToLower(current.String())] = true
			current.Reset()
		}
	}
	for _, r := range query {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// # Credential Scrubbing

var (
	dsnCredentials  = regexp.MustCompile(`://[^/@\s]+@`)
	pairCredentials = regexp.MustCompile(`(?i)(password|passwd|pwd)\s*=\s*[^\s;&]+`)
)

// Scrub removes connection credentials from text destined for logs or
// client-facing messages.
func Scrub(text string) string {
	text = dsnCredentials.ReplaceAllString(text, "://***@")
	return pairCredentials.ReplaceAllString(text, "$1=***")
}
