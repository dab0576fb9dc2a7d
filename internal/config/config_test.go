package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.News.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if cfg.Summarization.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Summarization.Provider)
	}
	if cfg.Summarization.MaxWords != 500 {
		t.Errorf("expected max_words 500, got %d", cfg.Summarization.MaxWords)
	}
	if cfg.Telegram.MaxChars != 2000 {
		t.Errorf("expected max_chars 2000, got %d", cfg.Telegram.MaxChars)
	}
	if cfg.Timeouts.Provider != 30*time.Second {
		t.Errorf("expected provider timeout 30s, got %s", cfg.Timeouts.Provider)
	}
	if len(cfg.News.Providers) != 4 || cfg.News.Providers[0] != "tavily" {
		t.Errorf("unexpected provider order %v", cfg.News.Providers)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
summarization:
  provider: anthropic
telegram:
  max_chars: 1000
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Summarization.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", cfg.Summarization.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Telegram.MaxChars != 1000 {
		t.Errorf("expected max_chars 1000, got %d", cfg.Telegram.MaxChars)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Summarization.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Summarization.OllamaURL)
	}
	if cfg.Credentials.Tavily != "TAVILY_API_KEY" {
		t.Errorf("expected default tavily env name, got %q", cfg.Credentials.Tavily)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown provider":   "summarization:\n  provider: bard\n",
		"zero word cap":      "summarization:\n  max_words: 0\n",
		"unknown credential": "required_credentials: [tavily, bogus]\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parse([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.News.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
