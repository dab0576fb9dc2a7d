package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/config"
)

// Provider is the interface for LLM providers.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.3,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	content := strings.TrimSpace(result.Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}

// CreateProvider picks the configured summarization provider, falling back
// through the others that have credentials. Returns nil when none is usable.
func CreateProvider(cfg config.Summarization, creds config.Credentials, log logrus.FieldLogger) Provider {
	candidates := []Provider{}
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		candidates = append(candidates,
			NewOllamaProvider(cfg.Model, cfg.OllamaURL),
			NewOpenAIProvider(cfg.OpenAIModel, creds.OpenAI, ""),
			NewAnthropicProvider(cfg.AnthropicModel, creds.Anthropic, ""),
		)
	case "anthropic":
		candidates = append(candidates,
			NewAnthropicProvider(cfg.AnthropicModel, creds.Anthropic, ""),
			NewOpenAIProvider(cfg.OpenAIModel, creds.OpenAI, ""),
		)
	default:
		candidates = append(candidates,
			NewOpenAIProvider(cfg.OpenAIModel, creds.OpenAI, ""),
			NewAnthropicProvider(cfg.AnthropicModel, creds.Anthropic, ""),
		)
	}

	for i, p := range candidates {
		if p.IsConfigured() {
			log.WithField("provider", p.Name()).Info("using LLM provider")
			return p
		}
		if i == 0 {
			log.WithField("provider", p.Name()).Warn("configured LLM provider unavailable, trying fallbacks")
		}
	}

	log.Warn("no LLM provider available; summaries and translations will use static fallbacks")
	return nil
}
