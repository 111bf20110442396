package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend implements the Backend interface for Claude models.
type AnthropicBackend struct {
	name   string
	model  string
	client anthropic.Client
}

// NewAnthropicBackend creates a new Anthropic backend.
func NewAnthropicBackend(name, model, apiKey string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicBackend{name: name, model: model, client: client}, nil
}

// Name returns the backend identifier.
func (b *AnthropicBackend) Name() string {
	return b.name
}

// Model returns the pinned Claude model.
func (b *AnthropicBackend) Model() string {
	return b.model
}

// Invoke sends a query to Claude and returns the reply.
func (b *AnthropicBackend) Invoke(ctx context.Context, query string) (*Reply, error) {
	start := time.Now()
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Reply{Text: content, Elapsed: time.Since(start)}, nil
}
