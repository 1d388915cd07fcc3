package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// NewOpenAIClient creates a client for the hosted API or a compatible base URL.
// Retries are disabled, a failed call is reported to the user right away.
func NewOpenAIClient(apiKey string, baseURL string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// OpenAIGenerator calls the chat completions endpoint of OpenAI
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIGenerator creates a generator for the hosted OpenAI backend
func NewOpenAIGenerator(config helper.OpenAIConfiguration) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      NewOpenAIClient(config.APIKey, config.BaseURL),
		model:       config.Model,
		temperature: config.Temperature,
	}
}

func (g *OpenAIGenerator) Backend() string {
	return BackendOpenAI
}

// Generate sends the prompt as system and user messages
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    chatMessages(prompt),
		Temperature: openai.Float(g.temperature),
	}

	text, err := chatCompletion(ctx, g.client, params)
	if err != nil {
		return "", backendError(BackendOpenAI, err)
	}
	return text, nil
}

// LocalGenerator calls an OpenAI compatible server on the local machine,
// e.g. llama-server or Ollama.
type LocalGenerator struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
	topP        float64
	topK        int
}

// NewLocalGenerator creates a generator for the local backend
func NewLocalGenerator(config helper.LocalConfiguration) *LocalGenerator {
	return &LocalGenerator{
		// Local servers ignore the key but the client sends one
		client:      NewOpenAIClient("sk-no-key-required", config.BaseURL),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		topP:        config.TopP,
		topK:        config.TopK,
	}
}

func (g *LocalGenerator) Backend() string {
	return BackendLocal
}

// Ping checks that the local server answers the models endpoint
func (g *LocalGenerator) Ping(ctx context.Context) error {
	_, err := g.client.Models.List(ctx)
	if err != nil {
		return backendError(BackendLocal, err)
	}
	return nil
}

// Generate sends the prompt with sampling parameters and strips a leading "response:" label
func (g *LocalGenerator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    chatMessages(prompt),
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(g.maxTokens)
	}
	if g.topP > 0 {
		params.TopP = openai.Float(g.topP)
	}

	var opts []option.RequestOption
	if g.topK > 0 {
		// top_k is not part of the OpenAI schema, llama-server and Ollama accept it
		opts = append(opts, option.WithJSONSet("top_k", g.topK))
	}

	text, err := chatCompletion(ctx, g.client, params, opts...)
	if err != nil {
		return "", backendError(BackendLocal, err)
	}

	return stripResponseLabel(text), nil
}

func stripResponseLabel(text string) string {
	const label = "response:"
	if len(text) >= len(label) && strings.EqualFold(text[:len(label)], label) {
		return strings.TrimSpace(text[len(label):])
	}
	return text
}

func chatMessages(prompt model.Prompt) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	return append(messages, openai.UserMessage(prompt.User))
}

func chatCompletion(ctx context.Context, client openai.Client, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (string, error) {
	resp, err := client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
