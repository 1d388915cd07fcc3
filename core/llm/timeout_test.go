package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowGenerator struct {
	delay time.Duration
}

func (g *slowGenerator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	select {
	case <-time.After(g.delay):
		return "answer", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *slowGenerator) Backend() string {
	return "slow"
}

func TestWithTimeout(t *testing.T) {
	t.Run("Fast call returns the answer", func(t *testing.T) {
		text, err := WithTimeout(&slowGenerator{}, time.Second).Generate(context.Background(), model.Prompt{User: "q"})
		assert.NoError(t, err)
		assert.Equal(t, "answer", text)
	})

	t.Run("Expired deadline is a backend error", func(t *testing.T) {
		_, err := WithTimeout(&slowGenerator{delay: time.Second}, 10*time.Millisecond).Generate(context.Background(), model.Prompt{User: "q"})

		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, "slow", backendErr.Backend)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Backend name is passed through", func(t *testing.T) {
		assert.Equal(t, "slow", WithTimeout(&slowGenerator{}, time.Second).Backend())
	})
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Local backend without server is unavailable", func(t *testing.T) {
		config := helper.DefaultConfiguration().LLM
		config.Backend = BackendLocal
		config.Timeout = time.Second
		config.Local.BaseURL = "http://127.0.0.1:1/v1/"

		backend, err := NewBackend(ctx, config, logger)
		require.NoError(t, err)
		assert.False(t, backend.Available)
		assert.Equal(t, "LLM Local", backend.Profile.Label)
		assert.Equal(t, BackendLocal, backend.Generator.Backend())
	})

	t.Run("Local backend with server is available", func(t *testing.T) {
		server, _ := chatServer(t, "", 200)
		config := helper.DefaultConfiguration().LLM
		config.Backend = BackendLocal
		config.Local.BaseURL = server.URL + "/v1/"

		backend, err := NewBackend(ctx, config, logger)
		require.NoError(t, err)
		assert.True(t, backend.Available)
	})

	t.Run("Hosted backends are created", func(t *testing.T) {
		for _, name := range []string{BackendOpenAI, BackendGemini, BackendClaude} {
			config := helper.DefaultConfiguration().LLM
			config.Backend = name
			config.OpenAI.APIKey = "test"
			config.Gemini.APIKey = "test"
			config.Claude.APIKey = "test"

			backend, err := NewBackend(ctx, config, logger)
			require.NoError(t, err, "Expected backend %s to be created", name)
			assert.True(t, backend.Available)
			assert.Equal(t, name, backend.Generator.Backend())
		}
	})

	t.Run("Unknown backend is an error", func(t *testing.T) {
		config := helper.DefaultConfiguration().LLM
		config.Backend = "unknown"

		_, err := NewBackend(ctx, config, logger)
		assert.Error(t, err)
	})
}
