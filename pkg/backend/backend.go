package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/zen-systems/quorum/pkg/config"
)

// Backend defines the uniform invocation contract for generative-text
// services. Implementations are opaque: the engine knows them only
// through their name and the replies they produce.
type Backend interface {
	// Invoke sends a query and returns the generated text with the
	// wall-clock time the call took. Timeout enforcement is the
	// caller's responsibility via ctx.
	Invoke(ctx context.Context, query string) (*Reply, error)

	// Name returns the backend's identifier.
	Name() string

	// Model returns the model the backend is pinned to.
	Model() string
}

// Reply is a successful backend response.
type Reply struct {
	Text    string
	Elapsed time.Duration
}

// New constructs a backend instance from its configuration. The
// instance name is the registry identifier; the provider decides which
// client serves it.
func New(name string, bc config.BackendConfig, cfg *config.Config) (Backend, error) {
	switch bc.Provider {
	case "anthropic":
		return NewAnthropicBackend(name, bc.Model, cfg.AnthropicAPIKey)
	case "openai":
		return NewOpenAIBackend(name, bc.Model, cfg.OpenAIAPIKey)
	case "google":
		return NewGoogleBackend(name, bc.Model, cfg.GoogleAPIKey)
	case "deepseek":
		return NewDeepSeekBackend(name, bc.Model, cfg.DeepSeekAPIKey)
	case "mock":
		return NewMockBackend(name), nil
	default:
		return nil, fmt.Errorf("unknown provider %q for backend %q", bc.Provider, name)
	}
}
