// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/reasoning/executor"
	"github.com/taibuivan/datamira/internal/reasoning/orchestrator"
	"github.com/taibuivan/datamira/internal/users/auth"
)

// fakeSessions resolves one known session ID.
type fakeSessions struct {
	sessionID string
	userID    string
	err       error
}

func (sessions *fakeSessions) ValidateSession(_ context.Context, sessionID string) (*auth.Session, error) {
	if sessions.err != nil {
		return nil, sessions.err
	}
	if sessionID != sessions.sessionID {
		return nil, apperr.Unauthorized("Invalid session")
	}
	return &auth.Session{ID: sessionID, UserID: sessions.userID, Status: auth.SessionActive}, nil
}

// fakeTurnRepository records created turns in memory.
type fakeTurnRepository struct {
	mutex sync.Mutex
	turns []*Turn
}

func (repository *fakeTurnRepository) Create(_ context.Context, turn *Turn) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.turns = append(repository.turns, turn)
	return nil
}

func (repository *fakeTurnRepository) ListByUser(_ context.Context, userID string, limit int) ([]*Turn, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	listed := make([]*Turn, 0)
	for index := len(repository.turns) - 1; index >= 0 && len(listed) < limit; index-- {
		if repository.turns[index].UserID == userID {
			listed = append(listed, repository.turns[index])
		}
	}
	return listed, nil
}

func (repository *fakeTurnRepository) recorded() []*Turn {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	return append([]*Turn(nil), repository.turns...)
}

type routerHarness struct {
	router     *Router
	sessions   *fakeSessions
	repository *fakeTurnRepository
	outcome    *orchestrator.Outcome
	outcomeErr error
}

func startRouter(t *testing.T) *routerHarness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.Default()

	pool := actor.NewPool(2, 16, logger)
	pool.Start(ctx)

	h := &routerHarness{
		sessions:   &fakeSessions{sessionID: "s1", userID: "u1"},
		repository: &fakeTurnRepository{},
		outcome: &orchestrator.Outcome{
			Kind:   orchestrator.KindQuery,
			Reply:  "Counts every order.",
			Query:  "SELECT COUNT(*) FROM orders",
			Result: &executor.Result{Columns: []string{"count"}, Rows: [][]any{{int64(7)}}, RowCount: 1},
		},
	}

	orchestratorMailbox, orchestratorRef := actor.New[orchestrator.Command]("orchestrator", 16)
	go actor.Run(ctx, orchestratorMailbox, logger, func(command orchestrator.Command) {
		if command.Chat != nil {
			command.Chat.ReplyTo.Deliver(h.outcome, h.outcomeErr)
		}
	})

	h.router = NewRouter(h.sessions, orchestratorRef, h.repository, pool, logger)
	go h.router.Run(ctx)

	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
	return h
}

func (h *routerHarness) turn(t *testing.T, command TurnCommand) (*Turn, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return actor.Ask(ctx, h.router.Ref(), func(reply *actor.ReplyTo[*Turn]) Command {
		command.ReplyTo = reply
		return Command{Turn: &command}
	})
}

/*
TestTurn_BuildsAndRecords a completed pipeline outcome becomes a persisted
turn attributed to the session's user.
*/
func TestTurn_BuildsAndRecords(t *testing.T) {
	h := startRouter(t)

	turn, err := h.turn(t, TurnCommand{SessionID: "s1", ConnectionID: "c1", Message: "how many orders?"})
	require.NoError(t, err)

	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, "u1", turn.UserID)
	assert.Equal(t, TurnQuery, turn.Kind)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", turn.Query)
	assert.Equal(t, "Counts every order.", turn.Reply)
	assert.GreaterOrEqual(t, turn.Timings.TotalMillis, int64(0))

	recorded := h.repository.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, turn.ID, recorded[0].ID)
}

/*
TestTurn_RejectsInvalidSession the router revalidates even though the HTTP
middleware already admitted the request.
*/
func TestTurn_RejectsInvalidSession(t *testing.T) {
	h := startRouter(t)
	h.sessions.err = apperr.SessionExpired()

	_, err := h.turn(t, TurnCommand{SessionID: "s1", Message: "how many orders?"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "SESSION_EXPIRED"))
	assert.Empty(t, h.repository.recorded())
}

/*
TestTurn_PipelineErrorNotRecorded a failed turn produces no history entry.
*/
func TestTurn_PipelineErrorNotRecorded(t *testing.T) {
	h := startRouter(t)
	h.outcome = nil
	h.outcomeErr = apperr.Blocked("delete")

	_, err := h.turn(t, TurnCommand{SessionID: "s1", ConnectionID: "c1", Message: "clear the orders"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "BLOCKED"))
	assert.Empty(t, h.repository.recorded())
}

/*
TestHistory_ScopedToUser history answers only the caller's turns, newest
first, with a bounded limit.
*/
func TestHistory_ScopedToUser(t *testing.T) {
	h := startRouter(t)

	for i := 0; i < 3; i++ {
		_, err := h.turn(t, TurnCommand{SessionID: "s1", ConnectionID: "c1", Message: "how many orders?"})
		require.NoError(t, err)
	}

	turns, err := h.router.History(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	foreign, err := h.router.History(context.Background(), "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}
