package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/handbot/helper"
)

// Backend is the configured model backend of the chatbot
type Backend struct {
	Generator Generator
	Profile   Profile
	// Available is false when the local server did not answer at startup
	Available bool
}

// NewBackend creates the generator selected by llm.backend, wrapped with the configured timeout.
// A local server that does not answer is not an error, the backend is marked unavailable.
func NewBackend(ctx context.Context, config helper.LLMConfiguration, logger *slog.Logger) (*Backend, error) {
	var generator Generator
	available := true

	switch config.Backend {
	case BackendOpenAI:
		generator = NewOpenAIGenerator(config.OpenAI)
	case BackendLocal:
		local := NewLocalGenerator(config.Local)
		pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
		err := local.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("Local model server is not available", "url", config.Local.BaseURL, "error", err)
			available = false
		}
		generator = local
	case BackendGemini:
		gemini, err := NewGeminiGenerator(ctx, config.Gemini)
		if err != nil {
			return nil, err
		}
		generator = gemini
	case BackendClaude:
		generator = NewClaudeGenerator(config.Claude)
	default:
		return nil, helper.NewError("select llm backend", fmt.Errorf("unknown backend %q", config.Backend))
	}

	logger.Info("Initialized model backend", "backend", config.Backend, "available", available)

	return &Backend{
		Generator: WithTimeout(generator, config.Timeout),
		Profile:   ProfileFor(config.Backend),
		Available: available,
	}, nil
}
