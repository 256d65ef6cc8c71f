// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package actor implements the typed message-passing runtime for the
orchestration core.

Every component in the system runs as a single-goroutine message loop reading
from a bounded inbox. Components never share memory; parallelism is obtained
by passing commands between loops. Blocking I/O is dispatched to a shared
worker pool and its completion is delivered back as a message or through a
reply channel.

Architecture:

  - Mailbox/Ref: the receiving and sending halves of a bounded inbox.
  - Tell: fire-and-forget send, fails fast when the inbox is full.
  - Ask: request/response with a reply channel and an inherited deadline.
  - Pool: shared worker pool for off-loop blocking I/O.
  - System: supervised lifecycle for a set of component loops.

Ordering guarantees follow from Go channel semantics: commands from a single
sender to a single recipient are processed in send order, and each reply is
delivered to its waiter at most once.
*/
package actor

import (
	"context"
	"fmt"
	"log/slog"
)

// # Mailbox & Ref

// Mailbox is the receiving half of a component's bounded inbox.
//
// # Concurrency
//
// Exactly one goroutine (the component loop) may receive from a Mailbox.
type Mailbox[C any] struct {
	name string
	ch   chan C
}

// Ref is the sending half of a component's inbox. Refs are cheap values that
// may be copied and shared freely across components and nodes.
type Ref[C any] struct {
	name string
	ch   chan C
}

// New creates a bounded inbox and returns its two halves.
//
// # Parameters
//   - name: Component name used in logs and errors.
//   - capacity: Inbox depth; sends beyond it fail fast (backpressure).
func New[C any](name string, capacity int) (*Mailbox[C], Ref[C]) {
	ch := make(chan C, capacity)
	return &Mailbox[C]{name: name, ch: ch}, Ref[C]{name: name, ch: ch}
}

// Name returns the component name the mailbox was created with.
func (mailbox *Mailbox[C]) Name() string { return mailbox.name }

// Name returns the component name the ref points at.
func (ref Ref[C]) Name() string { return ref.name }

// IsZero reports whether the ref was never initialized (no component bound).
func (ref Ref[C]) IsZero() bool { return ref.ch == nil }

/*
Tell delivers a command to the component's inbox.

Description: Fire-and-forget send. Blocks while the inbox has space pending,
but gives up as soon as the context is done, so a stalled component applies
backpressure to its senders instead of hiding it.

Parameters:
  - context: context.Context (carries the request deadline)
  - command: C

Returns:
  - error: ErrMailboxClosed-style context errors when the deadline passes first
*/
func (ref Ref[C]) Tell(context context.Context, command C) error {
	if ref.ch == nil {
		return fmt.Errorf("actor_tell_unbound: component ref is not initialized")
	}

	select {
	case ref.ch <- command:
		return nil
	case <-context.Done():
		return fmt.Errorf("actor_tell_failed: %s inbox: %w", ref.name, context.Err())
	}
}

// # Component Loop

/*
Run drives a component loop until the context is cancelled.

Description: Receives commands one at a time and hands them to the handler.
Message handling is serial and non-preemptive: the current command is always
drained before shutdown proceeds. Panics inside the handler are recovered and
logged so one poisoned message cannot take down the whole node.

Parameters:
  - context: context.Context (loop lifetime)
  - mailbox: *Mailbox[C]
  - logger: *slog.Logger
  - handle: Per-command dispatch function
*/
func Run[C any](context context.Context, mailbox *Mailbox[C], logger *slog.Logger, handle func(C)) {
	for {
		select {
		case command := <-mailbox.ch:
			dispatch(mailbox.name, logger, handle, command)
		case <-context.Done():
			// Drain anything already queued, then refuse new work.
			for {
				select {
				case command := <-mailbox.ch:
					dispatch(mailbox.name, logger, handle, command)
				default:
					return
				}
			}
		}
	}
}

// dispatch invokes the handler with panic isolation.
func dispatch[C any](name string, logger *slog.Logger, handle func(C), command C) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("actor_handler_panic",
				slog.String("component", name),
				slog.Any("panic", recovered),
			)
		}
	}()
	handle(command)
}

// # Ask Pattern

// outcome carries a reply value or error through a reply channel.
type outcome[R any] struct {
	value R
	err   error
}

// ReplyTo is the write side of an ask. A command struct embeds a *ReplyTo so
// the handling component can answer its caller.
type ReplyTo[R any] struct {
	ch chan outcome[R]
}

// NewReply creates a reply channel for a single ask exchange.
//
// The channel is buffered so a late reply never blocks the replier after the
// waiter has abandoned its wait.
func NewReply[R any]() *ReplyTo[R] {
	return &ReplyTo[R]{ch: make(chan outcome[R], 1)}
}

// Deliver answers the ask. At most one delivery is retained; subsequent calls
// are dropped silently, preserving the exactly-once reply guarantee.
func (reply *ReplyTo[R]) Deliver(value R, err error) {
	select {
	case reply.ch <- outcome[R]{value: value, err: err}:
	default:
		// A reply was already delivered. Drop the duplicate.
	}
}

// Wait blocks until a reply arrives or the context deadline passes.
// On deadline the waiter abandons the exchange; a late reply is discarded.
func (reply *ReplyTo[R]) Wait(context context.Context) (R, error) {
	select {
	case result := <-reply.ch:
		return result.value, result.err
	case <-context.Done():
		var zero R
		return zero, context.Err()
	}
}

/*
Ask sends a command carrying a reply channel and waits for the single reply.

Description: The canonical request/response exchange between components. The
build function receives the fresh reply handle and must return the command
that embeds it. The deadline on the context bounds both the send and the wait.

Parameters:
  - context: context.Context
  - ref: Ref[C] (target component)
  - build: func(*ReplyTo[R]) C

Returns:
  - R: The reply value
  - error: Send failures, component errors, or context deadline errors
*/
func Ask[C any, R any](context context.Context, ref Ref[C], build func(*ReplyTo[R]) C) (R, error) {
	reply := NewReply[R]()

	if err := ref.Tell(context, build(reply)); err != nil {
		var zero R
		return zero, err
	}

	return reply.Wait(context)
}
