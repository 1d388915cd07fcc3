package llm

import (
	"context"
	"strings"

	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini API
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a generator for the gemini backend
func NewGeminiGenerator(ctx context.Context, config helper.GeminiConfiguration) (*GeminiGenerator, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, helper.NewError("create gemini client", err)
	}

	return &GeminiGenerator{
		client:      client,
		model:       config.Model,
		temperature: config.Temperature,
	}, nil
}

func (g *GeminiGenerator) Backend() string {
	return BackendGemini
}

// Generate sends the user message, the system message becomes the system instruction
func (g *GeminiGenerator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if prompt.System != "" {
		config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt.User, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", backendError(BackendGemini, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", backendError(BackendGemini, ErrEmptyResponse)
	}

	return strings.TrimSpace(resp.Text()), nil
}
