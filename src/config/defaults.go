package config

import (
	"os"
	"time"
)

// DefaultModel is used when no model is configured anywhere.
const DefaultModel = "anthropic/claude-sonnet-4"

// DefaultConfig returns the built-in configuration every other layer is
// merged over.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		API: APIConfig{
			Provider:     "openrouter",
			APIKeyEnvVar: "OPENROUTER_API_KEY",
			Timeout:      120 * time.Second,
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: 1 * time.Second,
				MaxDelay:     10 * time.Second,
				Multiplier:   2.0,
			},
		},

		Agent: AgentConfig{
			Model: DefaultModel,
		},

		Security: SecurityConfig{
			DefaultDecision: "prompt",
			ToolTimeout:     30 * time.Second,
			Audit: AuditConfig{
				Enabled: true,
			},
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DefaultOpenRouterConfig returns defaults wired for OpenRouter.
func DefaultOpenRouterConfig() *Config {
	config := DefaultConfig()
	config.API.Provider = "openrouter"
	config.API.BaseURL = "https://openrouter.ai/api/v1"
	config.API.APIKeyEnvVar = "OPENROUTER_API_KEY"

	// OpenRouter attributes traffic by these headers
	config.API.Headers = map[string]string{
		"HTTP-Referer": "https://github.com/skald-dev/skald",
		"X-Title":      "skald",
	}

	return config
}

// DefaultAnthropicConfig returns defaults wired for the Anthropic API.
func DefaultAnthropicConfig() *Config {
	config := DefaultConfig()
	config.API.Provider = "anthropic"
	config.API.APIKeyEnvVar = "ANTHROPIC_API_KEY"
	config.Agent.Model = "claude-sonnet-4-20250514"

	return config
}

// DefaultOpenAIConfig returns defaults wired for the OpenAI API.
func DefaultOpenAIConfig() *Config {
	config := DefaultConfig()
	config.API.Provider = "openai"
	config.API.APIKeyEnvVar = "OPENAI_API_KEY"
	config.Agent.Model = "gpt-4o"

	return config
}

// DefaultGoogleConfig returns defaults wired for Google Gemini.
func DefaultGoogleConfig() *Config {
	config := DefaultConfig()
	config.API.Provider = "google"
	config.API.APIKeyEnvVar = "GEMINI_API_KEY"
	config.Agent.Model = "gemini-2.5-flash"

	return config
}

// GenerateDefaultConfig returns the default configuration for a provider,
// used when writing an initial config file.
func GenerateDefaultConfig(provider string) *Config {
	switch provider {
	case "openrouter":
		return DefaultOpenRouterConfig()
	case "anthropic":
		return DefaultAnthropicConfig()
	case "openai":
		return DefaultOpenAIConfig()
	case "google":
		return DefaultGoogleConfig()
	default:
		return DefaultConfig()
	}
}

// ResolveAPIKey returns the API key for provider requests, consulting the
// configured environment variable when the key itself is unset.
func (c *Config) ResolveAPIKey() string {
	if c.API.APIKey != "" {
		return c.API.APIKey
	}
	if c.API.APIKeyEnvVar != "" {
		return os.Getenv(c.API.APIKeyEnvVar)
	}
	return ""
}
