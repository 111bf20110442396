package backend

import (
	"context"
	"fmt"
	"time"
)

// MockBackend returns deterministic replies for local runs and tests.
// It can be scripted to delay, fail, or return fixed text per query.
type MockBackend struct {
	name            string
	responses       map[string]string
	defaultResponse string

	// Delay is waited out (or cut short by ctx) before replying.
	Delay time.Duration
	// Err, when set, is returned on every invocation.
	Err error
}

// NewMockBackend creates a mock backend with a default response.
func NewMockBackend(name string) *MockBackend {
	if name == "" {
		name = "mock"
	}
	return &MockBackend{
		name:            name,
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockBackendWithResponses creates a mock backend with predefined responses.
func NewMockBackendWithResponses(name string, responses map[string]string, defaultResponse string) *MockBackend {
	b := NewMockBackend(name)
	if responses != nil {
		b.responses = responses
	}
	if defaultResponse != "" {
		b.defaultResponse = defaultResponse
	}
	return b
}

// SetResponse scripts a fixed reply for a query.
func (b *MockBackend) SetResponse(query, response string) {
	b.responses[query] = response
}

// Name returns the backend identifier.
func (b *MockBackend) Name() string {
	return b.name
}

// Model returns the mock model name.
func (b *MockBackend) Model() string {
	return "mock-1"
}

// Invoke returns the scripted reply for the query.
func (b *MockBackend) Invoke(ctx context.Context, query string) (*Reply, error) {
	start := time.Now()

	if b.Delay > 0 {
		timer := time.NewTimer(b.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if b.Err != nil {
		return nil, b.Err
	}

	if response, ok := b.responses[query]; ok {
		return &Reply{Text: response, Elapsed: time.Since(start)}, nil
	}
	content := fmt.Sprintf("%s\n%s", b.defaultResponse, query)
	return &Reply{Text: content, Elapsed: time.Since(start)}, nil
}
