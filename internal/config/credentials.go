package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials is the fixed set of provider keys and channel identifiers read
// once at startup. It is never mutated afterwards.
type Credentials struct {
	Tavily        string
	Serper        string
	Finnhub       string
	Groq          string
	OpenAI        string
	Anthropic     string
	TelegramToken string
	TelegramChat  string
}

// LoadDotEnv loads variables from the given .env files (or ./.env) without
// overriding the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// LoadCredentials reads every credential from the environment using the
// variable names configured in env.
func LoadCredentials(env CredentialEnv) Credentials {
	return loadCredentials(env, os.Getenv)
}

func loadCredentials(env CredentialEnv, getenv func(string) string) Credentials {
	get := func(name string) string {
		if name == "" {
			return ""
		}
		return strings.TrimSpace(getenv(name))
	}
	return Credentials{
		Tavily:        get(env.Tavily),
		Serper:        get(env.Serper),
		Finnhub:       get(env.Finnhub),
		Groq:          get(env.Groq),
		OpenAI:        get(env.OpenAI),
		Anthropic:     get(env.Anthropic),
		TelegramToken: get(env.TelegramToken),
		TelegramChat:  get(env.TelegramChat),
	}
}

var credentialNames = []string{
	"tavily", "serper", "finnhub", "groq", "openai", "anthropic", "llm", "telegram_token", "telegram_chat",
}

func knownCredential(name string) bool {
	for _, n := range credentialNames {
		if n == name {
			return true
		}
	}
	return false
}

// Has reports whether the named credential is present. The pseudo-credential
// "llm" resolves to the key required by the configured summarization provider;
// a local Ollama needs none.
func (c Credentials) Has(name, llmProvider string) bool {
	switch name {
	case "tavily":
		return c.Tavily != ""
	case "serper":
		return c.Serper != ""
	case "finnhub":
		return c.Finnhub != ""
	case "groq":
		return c.Groq != ""
	case "openai":
		return c.OpenAI != ""
	case "anthropic":
		return c.Anthropic != ""
	case "telegram_token":
		return c.TelegramToken != ""
	case "telegram_chat":
		return c.TelegramChat != ""
	case "llm":
		switch strings.ToLower(llmProvider) {
		case "ollama":
			return true
		case "anthropic":
			return c.Anthropic != ""
		default:
			return c.OpenAI != ""
		}
	}
	return false
}

// Missing returns the required credentials that are absent, in order.
func (c Credentials) Missing(required []string, llmProvider string) []string {
	var missing []string
	for _, name := range required {
		if !c.Has(name, llmProvider) {
			missing = append(missing, name)
		}
	}
	return missing
}

// DemoReasons returns the missing required credentials that force demo mode.
// An empty result means the run can use live providers.
func (c *Config) DemoReasons(creds Credentials) []string {
	return creds.Missing(c.RequiredCredentials, c.Summarization.Provider)
}
