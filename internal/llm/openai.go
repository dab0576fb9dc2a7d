package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider talks to the OpenAI chat completions API or any endpoint
// compatible with it.
type OpenAIProvider struct {
	Model  string
	name   string
	apiKey string
	client openai.Client
}

// NewOpenAIProvider creates an OpenAI provider. An empty baseURL means the
// official endpoint.
func NewOpenAIProvider(model, apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(120 * time.Second),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		Model:  model,
		name:   "openai",
		apiKey: apiKey,
		client: openai.NewClient(opts...),
	}
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible API.
func NewGroqProvider(model, apiKey string) *OpenAIProvider {
	p := NewOpenAIProvider(model, apiKey, GroqBaseURL)
	p.name = "groq"
	return p
}

func (o *OpenAIProvider) Name() string { return o.name }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.apiKey != ""
}

// Generate sends a prompt as a single user message and returns the reply.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%s API key not configured", o.name)
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", o.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", o.name)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from %s", o.name)
	}
	return content, nil
}
