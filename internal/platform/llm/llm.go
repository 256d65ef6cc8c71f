// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package llm defines the outbound collaborator interfaces for language models
and embedding models.

The orchestration core depends only on these contracts; concrete adapters
(OpenAI today) are injected at the composition root. Test suites inject fakes.

Architecture:

  - LanguageModel: prompt in, text out, with token/latency accounting.
  - EmbeddingModel: text in, fixed-dimension vector out.
  - Fail-visible: adapters wrap transport failures so callers can apply their
    own bounded retry policy.
*/
package llm

import (
	"context"
	"time"
)

// # Contracts

// CompletionParams tunes a single language-model call.
type CompletionParams struct {
	// System is the system prompt framing the call. Optional.
	System string

	// Temperature controls sampling randomness. Classification calls use 0.
	Temperature float64

	// MaxTokens bounds the generated output. 0 uses the provider default.
	MaxTokens int
}

// Completion is the result of a language-model call.
type Completion struct {
	// Text is the generated reply.
	Text string

	// TokensUsed is the total token count billed for the call.
	TokensUsed int

	// Latency is the wall-clock duration of the provider round trip.
	Latency time.Duration
}

// LanguageModel produces conversational text and structured generations.
type LanguageModel interface {

	/*
		Complete runs one prompt through the model.

		Parameters:
		  - context: context.Context (carries the per-call deadline)
		  - prompt: string
		  - params: CompletionParams

		Returns:
		  - *Completion: Generated text with usage accounting
		  - error: Transport or provider failures
	*/
	Complete(context context.Context, prompt string, params CompletionParams) (*Completion, error)
}

// EmbeddingModel converts text into a fixed-dimension vector.
type EmbeddingModel interface {

	/*
		Embed converts the text into a vector of the deployment's dimension D.

		Parameters:
		  - context: context.Context
		  - text: string

		Returns:
		  - []float32: Embedding vector, always length D
		  - error: Transport or provider failures
	*/
	Embed(context context.Context, text string) ([]float32, error)

	// Dimension returns D, the fixed vector length of this deployment.
	Dimension() int
}
