// Package llm wraps the language-model collaborators behind a single
// completion call: prompt in, text out. One attempt per message, no retries;
// the gateway turns failures into a user-visible apology.
package llm

import (
	"context"
	"fmt"

	"github.com/ventasur/stockbot/internal/config"
)

type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// New builds the configured provider client. "gemini" is the default;
// "openai" selects the OpenAI-compatible chat API (BaseURL overridable).
func New(cfg config.ProviderConfig) (Client, error) {
	switch cfg.Type {
	case "openai":
		return newOpenAI(cfg)
	case "", "gemini":
		return newGemini(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
