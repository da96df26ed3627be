package config

import (
	"time"

	"github.com/skald-dev/skald/src/mcp"
	"github.com/skald-dev/skald/src/security"
)

// Config is the full configuration for skald, assembled from defaults,
// config files, and environment overrides.
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// API holds provider connection settings
	API APIConfig `json:"api"`

	// Agent holds the default conversation settings
	Agent AgentConfig `json:"agent"`

	// Agents holds named agent profiles that override the default
	Agents map[string]AgentConfig `json:"agents,omitempty"`

	// ModelParams holds per-model request parameter overrides, keyed by
	// model ID. Values are applied on top of the agent settings when a
	// request for that model is built.
	ModelParams map[string]map[string]any `json:"model_params,omitempty"`

	// Security controls remote tool authorization and auditing
	Security SecurityConfig `json:"security"`

	// MCPServers lists the MCP servers to launch at startup
	MCPServers []MCPServerConfig `json:"mcp_servers,omitempty"`

	// Logging controls log output
	Logging LoggingConfig `json:"logging"`

	// Storage controls where conversation state is written
	Storage StorageConfig `json:"storage"`
}

// APIConfig holds provider connection settings.
type APIConfig struct {
	// Provider selects the model provider ("openrouter", "openai",
	// "anthropic", "google")
	Provider string `json:"provider" validate:"required,provider"`

	// BaseURL overrides the provider's default endpoint
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey is the key used directly; APIKeyEnvVar names the environment
	// variable consulted when APIKey is empty
	APIKey       string `json:"api_key,omitempty"`
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`

	// Timeout bounds a single provider request
	Timeout time.Duration `json:"timeout,omitempty"`

	// Headers are added to every provider request
	Headers map[string]string `json:"headers,omitempty"`

	// Retry controls retries for transient provider failures
	Retry RetryConfig `json:"retry,omitempty"`
}

// RetryConfig controls retry behavior for provider requests.
type RetryConfig struct {
	MaxRetries   int           `json:"max_retries" validate:"min=0,max=10"`
	InitialDelay time.Duration `json:"initial_delay,omitempty"`
	MaxDelay     time.Duration `json:"max_delay,omitempty"`
	Multiplier   float64       `json:"multiplier,omitempty"`
}

// AgentConfig holds conversation settings for one agent profile.
type AgentConfig struct {
	Model        string   `json:"model" validate:"required"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	MaxTokens    *int     `json:"max_tokens,omitempty" validate:"omitempty,min=1"`
	TopP         *float64 `json:"top_p,omitempty" validate:"omitempty,min=0,max=1"`

	// MaxTurns caps assistant turns per conversation run. Zero uses the
	// conversation loop's default.
	MaxTurns int `json:"max_turns,omitempty" validate:"min=0"`
}

// SecurityConfig holds the remote tool policy and audit settings.
type SecurityConfig struct {
	// DefaultDecision applies when no allowlist or denylist pattern
	// matches ("allow", "prompt", "deny"). Empty means prompt.
	DefaultDecision string `json:"default_decision,omitempty" validate:"omitempty,decision"`

	// Allowlist and Denylist hold "server:tool" patterns; deny wins
	Allowlist []string `json:"allowlist,omitempty"`
	Denylist  []string `json:"denylist,omitempty"`

	// ToolTimeout bounds a single remote tool call; ServerTimeouts
	// override it per server
	ToolTimeout    time.Duration            `json:"tool_timeout,omitempty"`
	ServerTimeouts map[string]time.Duration `json:"server_timeouts,omitempty"`

	// Audit configures the remote tool audit trail
	Audit AuditConfig `json:"audit,omitempty"`
}

// AuditConfig configures the audit log sink.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// MCPServerConfig describes one MCP server to launch.
type MCPServerConfig struct {
	Name          string            `json:"name" validate:"required"`
	Command       string            `json:"command" validate:"required"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	TransportType string            `json:"transport,omitempty"`
	Timeout       time.Duration     `json:"timeout,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level,omitempty" validate:"omitempty,loglevel"`

	// Format is "text" or "json"; text output is colorized on a terminal
	Format string `json:"format,omitempty" validate:"omitempty,logformat"`

	// File redirects logs to a path instead of stderr
	File string `json:"file,omitempty"`
}

// StorageConfig controls conversation persistence.
type StorageConfig struct {
	// DatabasePath overrides the default sqlite database location
	DatabasePath string `json:"database_path,omitempty"`
}

// PolicyConfig converts the security section into the policy the tool
// gate evaluates.
func (c *Config) PolicyConfig() security.PolicyConfig {
	return security.PolicyConfig{
		DefaultDecision: security.Decision(c.Security.DefaultDecision),
		Allowlist:       c.Security.Allowlist,
		Denylist:        c.Security.Denylist,
		DefaultTimeout:  c.Security.ToolTimeout,
		ServerTimeouts:  c.Security.ServerTimeouts,
	}
}

// AuditLoggerConfig converts the audit section into the audit logger's
// configuration, defaulting the path into the state directory.
func (c *Config) AuditLoggerConfig() security.AuditConfig {
	path := c.Security.Audit.Path
	if path == "" {
		path = GetDefaultAuditLogPath()
	}
	return security.AuditConfig{
		Enabled: c.Security.Audit.Enabled,
		Path:    path,
	}
}

// MCPServerConfigs converts the configured servers into the MCP manager's
// launch configs.
func (c *Config) MCPServerConfigs() []mcp.ServerConfig {
	if len(c.MCPServers) == 0 {
		return nil
	}
	out := make([]mcp.ServerConfig, 0, len(c.MCPServers))
	for _, s := range c.MCPServers {
		out = append(out, mcp.ServerConfig{
			Name:          s.Name,
			Command:       s.Command,
			Args:          s.Args,
			Env:           s.Env,
			WorkingDir:    s.WorkingDir,
			TransportType: s.TransportType,
			Timeout:       s.Timeout,
		})
	}
	return out
}

// AgentProfile returns the named agent profile merged over the default
// agent settings. An empty name or unknown profile returns the default.
func (c *Config) AgentProfile(name string) AgentConfig {
	merged := c.Agent
	if name == "" {
		return merged
	}
	profile, ok := c.Agents[name]
	if !ok {
		return merged
	}
	if profile.Model != "" {
		merged.Model = profile.Model
	}
	if profile.SystemPrompt != "" {
		merged.SystemPrompt = profile.SystemPrompt
	}
	if profile.Temperature != nil {
		merged.Temperature = profile.Temperature
	}
	if profile.MaxTokens != nil {
		merged.MaxTokens = profile.MaxTokens
	}
	if profile.TopP != nil {
		merged.TopP = profile.TopP
	}
	if profile.MaxTurns > 0 {
		merged.MaxTurns = profile.MaxTurns
	}
	return merged
}

// ConfigPrecedence names the file paths consulted during loading, from
// lowest to highest precedence.
type ConfigPrecedence struct {
	SystemConfig      string
	UserConfig        string
	ProjectConfig     string
	LocalConfig       string
	EnvironmentPrefix string
}

// ConfigSource identifies where a configuration layer came from.
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceLocal       ConfigSource = "local"
	SourceEnvironment ConfigSource = "environment"
)
