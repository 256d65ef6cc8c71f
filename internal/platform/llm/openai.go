// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// # OpenAI Adapter

// OpenAIModel implements [LanguageModel] and [EmbeddingModel] against the
// OpenAI API.
type OpenAIModel struct {
	client         openai.Client
	chatModel      string
	embeddingModel string
	dimension      int
}

// NewOpenAIModel constructs the adapter.
//
// # Parameters
//   - apiKey: Provider API key.
//   - chatModel: Model identifier for completions (e.g. gpt-4o-mini).
//   - embeddingModel: Model identifier for embeddings.
//   - dimension: D, the fixed embedding dimension of this deployment.
func NewOpenAIModel(apiKey, chatModel, embeddingModel string, dimension int) *OpenAIModel {
	return &OpenAIModel{
		client:         openai.NewClient(option.WithAPIKey(apiKey)),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		dimension:      dimension,
	}
}

/*
Complete runs one prompt through the chat model.

Parameters:
  - context: context.Context
  - prompt: string
  - params: CompletionParams

Returns:
  - *Completion: Generated text with usage accounting
  - error: Provider or transport failures
*/
func (model *OpenAIModel) Complete(context context.Context, prompt string, params CompletionParams) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if params.System != "" {
		messages = append(messages, openai.SystemMessage(params.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	request := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model.chatModel),
		Messages:    messages,
		Temperature: openai.Float(params.Temperature),
	}
	if params.MaxTokens > 0 {
		request.MaxTokens = openai.Int(int64(params.MaxTokens))
	}

	startedAt := time.Now()
	response, err := model.client.Chat.Completions.New(context, request)
	if err != nil {
		return nil, fmt.Errorf("llm_openai_complete_failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("llm_openai_complete_empty: provider returned no choices")
	}

	return &Completion{
		Text:       response.Choices[0].Message.Content,
		TokensUsed: int(response.Usage.TotalTokens),
		Latency:    time.Since(startedAt),
	}, nil
}

/*
Embed converts text into a vector of the deployment's dimension.

Parameters:
  - context: context.Context
  - text: string

Returns:
  - []float32: Embedding vector of length D
  - error: Provider failures or dimension mismatches
*/
func (model *OpenAIModel) Embed(context context.Context, text string) ([]float32, error) {
	response, err := model.client.Embeddings.New(context, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Dimensions: openai.Int(int64(model.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("llm_openai_embed_failed: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("llm_openai_embed_empty: provider returned no vectors")
	}

	raw := response.Data[0].Embedding
	if len(raw) != model.dimension {
		return nil, fmt.Errorf("llm_openai_embed_dimension_mismatch: got %d, want %d", len(raw), model.dimension)
	}

	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}

	return vector, nil
}

// Dimension returns D, the fixed embedding dimension.
func (model *OpenAIModel) Dimension() int { return model.dimension }
