package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend implements the Backend interface for OpenAI models.
type OpenAIBackend struct {
	name   string
	model  string
	client openai.Client
}

// NewOpenAIBackend creates a new OpenAI backend.
func NewOpenAIBackend(name, model, apiKey string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = "gpt-5.2-instant"
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIBackend{name: name, model: model, client: client}, nil
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string {
	return b.name
}

// Model returns the pinned OpenAI model.
func (b *OpenAIBackend) Model() string {
	return b.model
}

// Invoke sends a query to OpenAI and returns the reply.
func (b *OpenAIBackend) Invoke(ctx context.Context, query string) (*Reply, error) {
	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(query),
		},
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Reply{Text: resp.Choices[0].Message.Content, Elapsed: time.Since(start)}, nil
}
