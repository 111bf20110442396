package backend

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GoogleBackend implements the Backend interface for Gemini models.
type GoogleBackend struct {
	name   string
	model  string
	client *genai.Client
}

// NewGoogleBackend creates a new Google Gemini backend.
func NewGoogleBackend(name, model, apiKey string) (*GoogleBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if model == "" {
		model = "gemini-2.0-pro"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleBackend{name: name, model: model, client: client}, nil
}

// Name returns the backend identifier.
func (b *GoogleBackend) Name() string {
	return b.name
}

// Model returns the pinned Gemini model.
func (b *GoogleBackend) Model() string {
	return b.model
}

// Invoke sends a query to Gemini and returns the reply.
func (b *GoogleBackend) Invoke(ctx context.Context, query string) (*Reply, error) {
	start := time.Now()
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(query), nil)
	if err != nil {
		return nil, fmt.Errorf("google API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("google returned no candidates")
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	return &Reply{Text: content, Elapsed: time.Since(start)}, nil
}
