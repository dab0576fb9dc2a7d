package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	News                News          `yaml:"news"`
	Summarization       Summarization `yaml:"summarization"`
	Images              Images        `yaml:"images"`
	Telegram            Telegram      `yaml:"telegram"`
	Output              Output        `yaml:"output"`
	Credentials         CredentialEnv `yaml:"credentials"`
	RequiredCredentials []string      `yaml:"required_credentials"`
	Timeouts            Timeouts      `yaml:"timeouts"`
	Server              Server        `yaml:"server"`
	Logging             Logging       `yaml:"logging"`
}

type News struct {
	Query         string      `yaml:"query"`
	SerperQuery   string      `yaml:"serper_query"`
	MinResults    int         `yaml:"min_results"`
	MaxResults    int         `yaml:"max_results"`
	Providers     []string    `yaml:"providers"`
	Feeds         []Feed      `yaml:"feeds"`
	EnrichContent bool        `yaml:"enrich_content"`
	Enhancement   Enhancement `yaml:"enhancement"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Enhancement struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

type Summarization struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicModel string `yaml:"anthropic_model"`
	MaxWords       int    `yaml:"max_words"`
	MaxTokens      int    `yaml:"max_tokens"`
}

type Images struct {
	PlaceholderHosts []string      `yaml:"placeholder_hosts"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}

type Telegram struct {
	MaxChars  int    `yaml:"max_chars"`
	ParseMode string `yaml:"parse_mode"`
}

type Output struct {
	Dir     string `yaml:"dir"`
	DataDir string `yaml:"data_dir"`
}

// CredentialEnv maps each credential to the environment variable holding it.
type CredentialEnv struct {
	Tavily        string `yaml:"tavily"`
	Serper        string `yaml:"serper"`
	Finnhub       string `yaml:"finnhub"`
	Groq          string `yaml:"groq"`
	OpenAI        string `yaml:"openai"`
	Anthropic     string `yaml:"anthropic"`
	TelegramToken string `yaml:"telegram_token"`
	TelegramChat  string `yaml:"telegram_chat"`
}

type Timeouts struct {
	Provider time.Duration `yaml:"provider"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ConfigDir returns the XDG config directory for marketbrief.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "marketbrief")
}

// DataDir returns the XDG data directory for marketbrief.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "marketbrief")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/marketbrief/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'marketbrief init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		News: News{
			Query:       "US financial markets trading news earnings economic indicators",
			SerperQuery: "US stock market financial news today trading earnings",
			MinResults:  10,
			MaxResults:  10,
			Providers:   []string{"tavily", "serper", "finnhub", "feeds"},
			Enhancement: Enhancement{
				Enabled: true,
				Model:   "llama-3.1-70b-versatile",
			},
		},
		Summarization: Summarization{
			Provider:       "openai",
			Model:          "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-3-5-haiku-latest",
			MaxWords:       500,
			MaxTokens:      600,
		},
		Images: Images{
			PlaceholderHosts: []string{"via.placeholder.com", "placehold.co"},
			FetchTimeout:     30 * time.Second,
		},
		Telegram: Telegram{MaxChars: 2000, ParseMode: "Markdown"},
		Output:   Output{Dir: "output"},
		Credentials: CredentialEnv{
			Tavily:        "TAVILY_API_KEY",
			Serper:        "SERPER_API_KEY",
			Finnhub:       "FINNHUB_API_KEY",
			Groq:          "GROQ_API_KEY",
			OpenAI:        "OPENAI_API_KEY",
			Anthropic:     "ANTHROPIC_API_KEY",
			TelegramToken: "TELEGRAM_BOT_TOKEN",
			TelegramChat:  "TELEGRAM_CHAT_ID",
		},
		RequiredCredentials: []string{"tavily", "llm", "telegram_token", "telegram_chat"},
		Timeouts:            Timeouts{Provider: 30 * time.Second},
		Server:              Server{Port: 8000},
		Logging:             Logging{Level: "info", Format: "text"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Summarization.MaxWords <= 0 {
		return fmt.Errorf("summarization.max_words must be positive")
	}
	if c.Telegram.MaxChars <= 0 {
		return fmt.Errorf("telegram.max_chars must be positive")
	}
	switch strings.ToLower(c.Summarization.Provider) {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown summarization provider %q", c.Summarization.Provider)
	}
	for _, name := range c.RequiredCredentials {
		if !knownCredential(name) {
			return fmt.Errorf("unknown required credential %q", name)
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
