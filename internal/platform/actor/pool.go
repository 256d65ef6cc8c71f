// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// # Worker Pool

// Pool executes blocking I/O off the component loops.
//
// Component loops must never block on driver, model, or index calls; they
// submit the work here and receive the completion through a reply channel or
// a follow-up command to their own inbox.
type Pool struct {
	tasks  chan func()
	logger *slog.Logger

	startOnce sync.Once
	waitGroup sync.WaitGroup
	size      int
}

// NewPool creates a worker pool.
//
// # Parameters
//   - size: Worker count; 0 means one worker per available core.
//   - queueDepth: Pending-task buffer before Submit applies backpressure.
//   - logger: Structured logger for worker panics.
func NewPool(size, queueDepth int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		tasks:  make(chan func(), queueDepth),
		logger: logger,
		size:   size,
	}
}

// Start launches the workers. It is idempotent.
// Workers exit when the context is cancelled and the queue is drained.
func (pool *Pool) Start(context context.Context) {
	pool.startOnce.Do(func() {
		for workerIndex := 0; workerIndex < pool.size; workerIndex++ {
			pool.waitGroup.Add(1)
			go pool.worker(context)
		}
	})
}

// worker is a single task consumer with panic isolation.
func (pool *Pool) worker(context context.Context) {
	defer pool.waitGroup.Done()

	for {
		select {
		case task := <-pool.tasks:
			pool.runTask(task)
		case <-context.Done():
			// Drain queued tasks so pending asks still get their replies.
			for {
				select {
				case task := <-pool.tasks:
					pool.runTask(task)
				default:
					return
				}
			}
		}
	}
}

// runTask executes one task, recovering panics so a bad task cannot kill a worker.
func (pool *Pool) runTask(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			pool.logger.Error("worker_pool_task_panic", slog.Any("panic", recovered))
		}
	}()
	task()
}

/*
Submit enqueues a blocking task for off-loop execution.

Description: Applies backpressure: when the queue is full the submit blocks
until a worker frees up or the context deadline passes.

Parameters:
  - context: context.Context
  - task: func()

Returns:
  - error: Context deadline errors when the queue never accepted the task
*/
func (pool *Pool) Submit(context context.Context, task func()) error {
	select {
	case pool.tasks <- task:
		return nil
	case <-context.Done():
		return fmt.Errorf("worker_pool_submit_failed: %w", context.Err())
	}
}

// Wait blocks until all workers have exited. Call after cancelling the
// context passed to Start.
func (pool *Pool) Wait() {
	pool.waitGroup.Wait()
}
