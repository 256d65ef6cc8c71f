// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package classifier

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/llm"
)

// fakeModel returns scripted answers, failing the first failures calls.
type fakeModel struct {
	answer   string
	failures int
	calls    int
}

func (model *fakeModel) Complete(_ context.Context, _ string, _ llm.CompletionParams) (*llm.Completion, error) {
	model.calls++
	if model.calls <= model.failures {
		return nil, errors.New("model unavailable")
	}
	return &llm.Completion{Text: model.answer}, nil
}

func startClassifier(t *testing.T, model llm.LanguageModel) *Classifier {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.Default()

	pool := actor.NewPool(2, 16, logger)
	pool.Start(ctx)

	component := NewClassifier(model, pool, logger)
	go component.Run(ctx)

	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
	return component
}

func classify(t *testing.T, component *Classifier, message string) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	needsQuery, err := actor.Ask(ctx, component.Ref(), func(reply *actor.ReplyTo[bool]) Command {
		return Command{Classify: &ClassifyCommand{Message: message, ReplyTo: reply}}
	})
	require.NoError(t, err)
	return needsQuery
}

/*
TestClassify_ParsesVerdict maps the model's one-word answer to the decision.
*/
func TestClassify_ParsesVerdict(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "query verdict", answer: "QUERY", want: true},
		{name: "general verdict", answer: "GENERAL", want: false},
		{name: "lowercase query", answer: "query", want: true},
		{name: "verdict with chatter", answer: "Answer: QUERY.", want: true},
		{name: "unrelated text", answer: "I am not sure.", want: false},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			component := startClassifier(t, &fakeModel{answer: testCase.answer})
			assert.Equal(t, testCase.want, classify(t, component, "how many orders?"))
		})
	}
}

/*
TestClassify_RetriesOnce a single model failure is absorbed by the retry.
*/
func TestClassify_RetriesOnce(t *testing.T) {
	model := &fakeModel{answer: "QUERY", failures: 1}
	component := startClassifier(t, model)

	assert.True(t, classify(t, component, "list the customers"))
	assert.Equal(t, 2, model.calls)
}

/*
TestClassify_FailsClosed two failures classify the message as general.
*/
func TestClassify_FailsClosed(t *testing.T) {
	model := &fakeModel{answer: "QUERY", failures: 2}
	component := startClassifier(t, model)

	assert.False(t, classify(t, component, "list the customers"))
	assert.Equal(t, 2, model.calls)
}

/*
TestRespond_ReturnsTrimmedAnswer general conversation flows straight through.
*/
func TestRespond_ReturnsTrimmedAnswer(t *testing.T) {
	component := startClassifier(t, &fakeModel{answer: "  Hello! Connect a database to get started.  "})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	answer, err := actor.Ask(ctx, component.Ref(), func(reply *actor.ReplyTo[string]) Command {
		return Command{Respond: &RespondCommand{Message: "hi", ReplyTo: reply}}
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello! Connect a database to get started.", answer)
}

/*
TestRespond_SurfacesModelFailure respond has no fallback answer.
*/
func TestRespond_SurfacesModelFailure(t *testing.T) {
	component := startClassifier(t, &fakeModel{answer: "hi", failures: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := actor.Ask(ctx, component.Ref(), func(reply *actor.ReplyTo[string]) Command {
		return Command{Respond: &RespondCommand{Message: "hi", ReplyTo: reply}}
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, "UPSTREAM_UNAVAILABLE"))
}
