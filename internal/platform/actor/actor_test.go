// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// # Mailbox & Ref

/*
TestTell_DeliversInSendOrder

Description: Verifies that commands from a single sender reach the component
loop in the order they were sent.
*/
func TestTell_DeliversInSendOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mailbox, ref := New[int]("echo", 16)

	received := make(chan int, 16)
	go Run(ctx, mailbox, slog.Default(), func(command int) {
		received <- command
	})

	for value := 0; value < 10; value++ {
		require.NoError(t, ref.Tell(ctx, value))
	}

	for want := 0; want < 10; want++ {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("command %d never arrived", want)
		}
	}
}

func TestTell_FailsFastWhenInboxStaysFull(t *testing.T) {
	_, ref := New[int]("stalled", 1)

	// Fill the single slot. No loop is running, so the second send can
	// only give up on the deadline.
	require.NoError(t, ref.Tell(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := ref.Tell(ctx, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "stalled")
}

func TestTell_RejectsUnboundRef(t *testing.T) {
	var unbound Ref[int]

	assert.True(t, unbound.IsZero())
	assert.Error(t, unbound.Tell(context.Background(), 1))
}

// # Component Loop

func TestRun_DrainsQueuedCommandsOnCancel(t *testing.T) {
	mailbox, ref := New[int]("drainer", 8)

	for value := 0; value < 5; value++ {
		require.NoError(t, ref.Tell(context.Background(), value))
	}

	// The context is already cancelled when the loop starts; queued
	// commands must still be handled before the loop returns.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var handled atomic.Int32
	done := make(chan struct{})
	go func() {
		Run(ctx, mailbox, slog.Default(), func(int) { handled.Add(1) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}

	assert.Equal(t, int32(5), handled.Load())
}

func TestRun_SurvivesHandlerPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mailbox, ref := New[string]("fragile", 8)

	handled := make(chan string, 8)
	go Run(ctx, mailbox, slog.Default(), func(command string) {
		if command == "poison" {
			panic("boom")
		}
		handled <- command
	})

	require.NoError(t, ref.Tell(ctx, "poison"))
	require.NoError(t, ref.Tell(ctx, "after"))

	select {
	case got := <-handled:
		assert.Equal(t, "after", got)
	case <-time.After(time.Second):
		t.Fatal("loop died on the poisoned message")
	}
}

// # Ask Pattern

func TestAsk_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	type question struct {
		text    string
		replyTo *ReplyTo[string]
	}

	mailbox, ref := New[question]("answerer", 8)
	go Run(ctx, mailbox, slog.Default(), func(command question) {
		command.replyTo.Deliver("echo: "+command.text, nil)
	})

	askCtx, askCancel := context.WithTimeout(ctx, time.Second)
	defer askCancel()

	answer, err := Ask(askCtx, ref, func(reply *ReplyTo[string]) question {
		return question{text: "ping", replyTo: reply}
	})

	require.NoError(t, err)
	assert.Equal(t, "echo: ping", answer)
}

func TestAsk_TimesOutWhenComponentNeverReplies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	type question struct {
		replyTo *ReplyTo[string]
	}

	mailbox, ref := New[question]("silent", 8)
	go Run(ctx, mailbox, slog.Default(), func(question) {
		// Swallow the command without answering.
	})

	askCtx, askCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer askCancel()

	_, err := Ask(askCtx, ref, func(reply *ReplyTo[string]) question {
		return question{replyTo: reply}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReply_DeliverKeepsFirstAnswerOnly(t *testing.T) {
	reply := NewReply[int]()

	reply.Deliver(1, nil)
	reply.Deliver(2, nil)

	value, err := reply.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, value)
}

func TestReply_LateDeliveryNeverBlocksReplier(t *testing.T) {
	reply := NewReply[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reply.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The waiter is gone. The buffered channel absorbs the late reply
	// so the replying component is never stuck.
	finished := make(chan struct{})
	go func() {
		reply.Deliver(7, nil)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("late delivery blocked")
	}
}

// # Worker Pool

func TestPool_RunsSubmittedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pool := NewPool(2, 8, slog.Default())
	pool.Start(ctx)

	var completed atomic.Int32
	var waitGroup sync.WaitGroup
	for taskIndex := 0; taskIndex < 10; taskIndex++ {
		waitGroup.Add(1)
		require.NoError(t, pool.Submit(ctx, func() {
			defer waitGroup.Done()
			completed.Add(1)
		}))
	}

	done := make(chan struct{})
	go func() {
		waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks never completed")
	}

	assert.Equal(t, int32(10), completed.Load())
}

func TestPool_SubmitAppliesBackpressure(t *testing.T) {
	// No workers started and no queue buffer, so a submit can only block
	// until its deadline.
	pool := NewPool(1, 0, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Submit(ctx, func() {})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_SurvivesTaskPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pool := NewPool(1, 4, slog.Default())
	pool.Start(ctx)

	require.NoError(t, pool.Submit(ctx, func() { panic("boom") }))

	completed := make(chan struct{})
	require.NoError(t, pool.Submit(ctx, func() { close(completed) }))

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("worker died on the panicking task")
	}
}

// # Supervision

// blockingComponent runs until cancelled and records its teardown.
type blockingComponent struct {
	runs     atomic.Int32
	tornDown atomic.Bool
}

func (component *blockingComponent) Name() string { return "blocking" }

func (component *blockingComponent) Run(context context.Context) {
	component.runs.Add(1)
	<-context.Done()
}

func (component *blockingComponent) Teardown() {
	component.tornDown.Store(true)
}

// crashOnceComponent panics on its first run and blocks thereafter.
type crashOnceComponent struct {
	runs atomic.Int32
}

func (component *crashOnceComponent) Name() string { return "crash-once" }

func (component *crashOnceComponent) Run(context context.Context) {
	if component.runs.Add(1) == 1 {
		panic("first run")
	}
	<-context.Done()
}

func TestSystem_StopsComponentsAndRunsTeardown(t *testing.T) {
	pool := NewPool(1, 4, slog.Default())
	system := NewSystem(context.Background(), pool, slog.Default())

	component := &blockingComponent{}
	system.Spawn(NodeCore, component)

	require.Eventually(t, func() bool {
		return component.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, system.Stop(time.Second))
	assert.True(t, component.tornDown.Load())
}

func TestSystem_RestartsPanickedComponent(t *testing.T) {
	pool := NewPool(1, 4, slog.Default())
	system := NewSystem(context.Background(), pool, slog.Default())

	component := &crashOnceComponent{}
	system.Spawn(NodeReasoning, component)

	// The supervisor backs off briefly before the second run.
	require.Eventually(t, func() bool {
		return component.runs.Load() == 2
	}, 3*time.Second, 20*time.Millisecond)

	assert.True(t, system.Stop(time.Second))
}
