// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package actor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// # Logical Nodes

// Node labels the three logical deployment groups of the orchestration core.
// In the single-process deployment they only affect logging and supervision
// grouping; the three-node deployment replaces Refs with an RPC transport.
type Node string

const (
	NodeCore      Node = "core"
	NodeReasoning Node = "reasoning"
	NodeAnalysis  Node = "analysis"
)

// # Supervision

// Runnable is a component loop that the System supervises.
type Runnable interface {
	// Name identifies the component in logs.
	Name() string

	// Run drives the component loop until the context is cancelled.
	// Component-specific teardown happens after Run returns.
	Run(context context.Context)
}

// teardowner is implemented by components that need cleanup after their loop
// stops (e.g. ConnectionManager closing every live connection).
type teardowner interface {
	Teardown()
}

// System owns the lifecycle of every component loop and the shared worker pool.
//
// # Shutdown
//
// Stop cancels the shared context; each loop drains its current message,
// refuses new ones, and runs its teardown. Shutdown is bounded and forced
// thereafter.
type System struct {
	logger *slog.Logger
	pool   *Pool

	cancel    context.CancelFunc
	runCtx    context.Context
	waitGroup sync.WaitGroup
}

// NewSystem creates a system with a shared worker pool.
func NewSystem(parent context.Context, pool *Pool, logger *slog.Logger) *System {
	runCtx, cancel := context.WithCancel(parent)
	pool.Start(runCtx)

	return &System{
		logger: logger,
		pool:   pool,
		cancel: cancel,
		runCtx: runCtx,
	}
}

// Pool returns the shared worker pool for off-loop blocking I/O.
func (system *System) Pool() *Pool { return system.pool }

// Context returns the system-wide run context. Components derive per-request
// deadlines from their callers, never from this context.
func (system *System) Context() context.Context { return system.runCtx }

/*
Spawn starts a supervised component loop on the given logical node.

Description: The loop runs until system shutdown. If it exits early with a
panic it is restarted with a fixed backoff, up to a bounded number of times.

Parameters:
  - node: Node (logging label)
  - runnable: Runnable (the component)
*/
func (system *System) Spawn(node Node, runnable Runnable) {
	const maxRestarts = 5
	const restartBackoff = 500 * time.Millisecond

	system.waitGroup.Add(1)

	go func() {
		defer system.waitGroup.Done()

		for attempt := 0; attempt <= maxRestarts; attempt++ {
			exitedCleanly := system.runOnce(node, runnable)
			if exitedCleanly || system.runCtx.Err() != nil {
				break
			}

			system.logger.Warn("component_restarting",
				slog.String("node", string(node)),
				slog.String("component", runnable.Name()),
				slog.Int("attempt", attempt+1),
			)

			select {
			case <-time.After(restartBackoff):
			case <-system.runCtx.Done():
				break
			}
		}

		if td, ok := runnable.(teardowner); ok {
			td.Teardown()
		}

		system.logger.Info("component_stopped",
			slog.String("node", string(node)),
			slog.String("component", runnable.Name()),
		)
	}()
}

// runOnce executes a single supervised run; it reports whether the loop
// returned normally (true) or panicked (false).
func (system *System) runOnce(node Node, runnable Runnable) (exitedCleanly bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			system.logger.Error("component_panic",
				slog.String("node", string(node)),
				slog.String("component", runnable.Name()),
				slog.Any("panic", recovered),
			)
			exitedCleanly = false
		}
	}()

	runnable.Run(system.runCtx)
	return true
}

/*
Stop shuts the system down.

Description: Cancels the run context, then waits for every component loop and
worker to finish, bounded by the timeout. Components that do not stop in time
are abandoned (the process is expected to exit shortly after).

Parameters:
  - timeout: time.Duration

Returns:
  - bool: true when everything stopped within the bound
*/
func (system *System) Stop(timeout time.Duration) bool {
	system.cancel()

	done := make(chan struct{})
	go func() {
		system.waitGroup.Wait()
		system.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		system.logger.Error("system_stop_timeout", slog.Duration("timeout", timeout))
		return false
	}
}
