// Package provider implements completion clients for the model backends
// the assistant talks to. All clients work with the chat.Context type and
// expose the same Provider interface so callers never branch on backend.
package provider

import (
	"context"
	"fmt"

	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/config"
)

// Provider generates completions for an assembled chat context.
type Provider interface {
	// Generate returns the full completion text for the context.
	Generate(ctx context.Context, c *chat.Context) (string, error)
	// Stream delivers completion chunks to fn as they arrive. A non-nil
	// error from fn aborts the stream and is returned.
	Stream(ctx context.Context, c *chat.Context, fn func(chunk string) error) error
	// Name identifies the backend for logging.
	Name() string
}

// New builds a provider from configuration. The provider type selects the
// wire protocol; an unrecognized type is a configuration error.
func New(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "", "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}
