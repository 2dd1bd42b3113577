package llm

import (
	"context"
	"errors"
	"fmt"

	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/shared"
)

// ErrNoContent is returned when the service answered without any text.
var ErrNoContent = errors.New("no content generated")

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// New returns the TextGenerator for the configured provider. Callers should
// close the generator when it implements Closer.
func New(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI, config.ProviderGroq:
		return NewOpenAIClient(cfg), nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}
