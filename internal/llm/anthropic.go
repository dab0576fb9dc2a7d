package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	Model  string
	apiKey string
	client anthropic.Client
}

// NewAnthropicProvider creates an Anthropic provider. An empty baseURL means
// the official endpoint.
func NewAnthropicProvider(model, apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(120 * time.Second),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		Model:  model,
		apiKey: apiKey,
		client: anthropic.NewClient(opts...),
	}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

// IsConfigured checks if the API key is set.
func (a *AnthropicProvider) IsConfigured() bool {
	return a.apiKey != ""
}

// Generate sends a prompt and returns the concatenated text blocks.
func (a *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("anthropic API key not configured")
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(0.3),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.Text)
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("empty response from anthropic")
	}
	return content, nil
}
