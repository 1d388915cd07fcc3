package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// ClaudeGenerator calls the Anthropic messages API
type ClaudeGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClaudeGenerator creates a generator for the claude backend
func NewClaudeGenerator(config helper.ClaudeConfiguration) *ClaudeGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &ClaudeGenerator{
		client:      anthropic.NewClient(opts...),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
	}
}

func (g *ClaudeGenerator) Backend() string {
	return BackendClaude
}

// Generate sends the user message with the system message as system prompt
func (g *ClaudeGenerator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
		Temperature: anthropic.Float(g.temperature),
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: prompt.System},
		}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", backendError(BackendClaude, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", backendError(BackendClaude, ErrEmptyResponse)
	}

	return strings.TrimSpace(text.String()), nil
}
