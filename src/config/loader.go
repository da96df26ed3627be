package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/adrg/xdg"
)

// Loader loads and merges configuration from the precedence chain: built-in
// defaults, then system, user, project, and local files, then environment
// variables.
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
}

// NewLoader creates a configuration loader for the given precedence chain.
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load merges all sources and validates the result. Missing files are
// skipped; unreadable or malformed files fail the load.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.ProjectConfig, SourceProject},
		{l.precedence.LocalConfig, SourceLocal},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}

		cfg, err := l.loadFile(src.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
		config = l.mergeConfigs(config, cfg)
	}

	if l.precedence.EnvironmentPrefix != "" {
		l.applyEnvironmentOverrides(config)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &config, nil
}

// SaveFile validates and writes a configuration file, creating parent
// directories as needed.
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// mergeConfigs overlays override onto base. Only fields the override file
// actually set are applied.
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	result.API = l.mergeAPIConfig(result.API, override.API)
	result.Agent = mergeAgentConfig(result.Agent, override.Agent)
	result.Security = l.mergeSecurityConfig(result.Security, override.Security)
	result.Logging = l.mergeLoggingConfig(result.Logging, override.Logging)

	if override.Storage.DatabasePath != "" {
		result.Storage.DatabasePath = override.Storage.DatabasePath
	}

	// Named profiles and per-model overrides replace rather than merge;
	// partial-profile layering across files is more confusing than useful.
	if len(override.Agents) > 0 {
		if result.Agents == nil {
			result.Agents = make(map[string]AgentConfig, len(override.Agents))
		}
		for name, profile := range override.Agents {
			result.Agents[name] = profile
		}
	}
	if len(override.ModelParams) > 0 {
		if result.ModelParams == nil {
			result.ModelParams = make(map[string]map[string]any, len(override.ModelParams))
		}
		for model, params := range override.ModelParams {
			result.ModelParams[model] = params
		}
	}

	if len(override.MCPServers) > 0 {
		result.MCPServers = override.MCPServers
	}

	return &result
}

func (l *Loader) mergeAPIConfig(base, override APIConfig) APIConfig {
	result := base

	if override.Provider != "" {
		result.Provider = override.Provider
	}
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.APIKey != "" {
		result.APIKey = override.APIKey
	}
	if override.APIKeyEnvVar != "" {
		result.APIKeyEnvVar = override.APIKeyEnvVar
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if len(override.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(override.Headers))
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Retry.MaxRetries != 0 {
		result.Retry.MaxRetries = override.Retry.MaxRetries
	}
	if override.Retry.InitialDelay != 0 {
		result.Retry.InitialDelay = override.Retry.InitialDelay
	}
	if override.Retry.MaxDelay != 0 {
		result.Retry.MaxDelay = override.Retry.MaxDelay
	}
	if override.Retry.Multiplier != 0 {
		result.Retry.Multiplier = override.Retry.Multiplier
	}

	return result
}

func mergeAgentConfig(base, override AgentConfig) AgentConfig {
	result := base

	if override.Model != "" {
		result.Model = override.Model
	}
	if override.SystemPrompt != "" {
		result.SystemPrompt = override.SystemPrompt
	}
	if override.Temperature != nil {
		result.Temperature = override.Temperature
	}
	if override.MaxTokens != nil {
		result.MaxTokens = override.MaxTokens
	}
	if override.TopP != nil {
		result.TopP = override.TopP
	}
	if override.MaxTurns != 0 {
		result.MaxTurns = override.MaxTurns
	}

	return result
}

func (l *Loader) mergeSecurityConfig(base, override SecurityConfig) SecurityConfig {
	result := base

	if override.DefaultDecision != "" {
		result.DefaultDecision = override.DefaultDecision
	}
	if len(override.Allowlist) > 0 {
		result.Allowlist = override.Allowlist
	}
	if len(override.Denylist) > 0 {
		result.Denylist = override.Denylist
	}
	if override.ToolTimeout != 0 {
		result.ToolTimeout = override.ToolTimeout
	}
	if len(override.ServerTimeouts) > 0 {
		result.ServerTimeouts = override.ServerTimeouts
	}
	if override.Audit.Enabled {
		result.Audit.Enabled = true
	}
	if override.Audit.Path != "" {
		result.Audit.Path = override.Audit.Path
	}

	return result
}

func (l *Loader) mergeLoggingConfig(base, override LoggingConfig) LoggingConfig {
	result := base

	if override.Level != "" {
		result.Level = override.Level
	}
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.File != "" {
		result.File = override.File
	}

	return result
}

// applyEnvironmentOverrides applies SKALD_* environment variables on top of
// the file layers.
func (l *Loader) applyEnvironmentOverrides(config *Config) {
	prefix := l.precedence.EnvironmentPrefix

	if apiKey := os.Getenv(prefix + "_API_KEY"); apiKey != "" {
		config.API.APIKey = apiKey
	}
	if provider := os.Getenv(prefix + "_PROVIDER"); provider != "" {
		config.API.Provider = provider
	}
	if baseURL := os.Getenv(prefix + "_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if model := os.Getenv(prefix + "_MODEL"); model != "" {
		config.Agent.Model = model
	}
	if maxTurns := os.Getenv(prefix + "_MAX_TURNS"); maxTurns != "" {
		if n, err := strconv.Atoi(maxTurns); err == nil && n > 0 {
			config.Agent.MaxTurns = n
		}
	}
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if dbPath := os.Getenv(prefix + "_DB_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}
}

// GetConfigPaths returns the standard precedence chain for this platform.
func GetConfigPaths() ConfigPrecedence {
	userConfigPath := filepath.Join(xdg.ConfigHome, "skald", "config.json")

	systemConfigPath := "/etc/skald/config.json"
	if runtime.GOOS == "windows" {
		systemConfigPath = filepath.Join(os.Getenv("PROGRAMDATA"), "skald", "config.json")
	}

	return ConfigPrecedence{
		SystemConfig:      systemConfigPath,
		UserConfig:        userConfigPath,
		ProjectConfig:     filepath.Join(".skald", "config.json"),
		LocalConfig:       filepath.Join(".skald", "config.local.json"),
		EnvironmentPrefix: "SKALD",
	}
}

// FindConfigFile returns the highest-precedence config file that exists.
func FindConfigFile() (string, error) {
	paths := GetConfigPaths()

	checkPaths := []string{
		paths.LocalConfig,
		paths.ProjectConfig,
		paths.UserConfig,
		paths.SystemConfig,
	}

	for _, path := range checkPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found")
}
