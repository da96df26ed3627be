package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/config"
	"github.com/skald-dev/skald/src/executor"
	skaldfs "github.com/skald-dev/skald/src/fs"
	"github.com/skald-dev/skald/src/mcp"
	"github.com/skald-dev/skald/src/models"
	"github.com/skald-dev/skald/src/orclient"
	"github.com/skald-dev/skald/src/provider"
	"github.com/skald-dev/skald/src/security"
	"github.com/skald-dev/skald/src/shell"
	"github.com/skald-dev/skald/src/skaldagent"
	"github.com/skald-dev/skald/src/skaldagent/tools"
	"github.com/skald-dev/skald/src/storage"
)

// App bundles the long-lived services a skald process runs on: storage, the
// provider registry, the tool surface, the security gate, MCP servers, and
// the conversation engine.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	ProjectDir string

	Store     *storage.DB
	Catalog   *models.Registry
	Providers *provider.Registry
	Shell     *shell.ShellManager
	Toolbox   *agent.DefaultToolbox
	Gate      *security.Gate
	Audit     *security.AuditLogger
	MCP       *mcp.Manager
	Service   *executor.Service
}

// Options controls App construction.
type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	ProjectDir string

	// Confirmer answers approval prompts for remote tools. Nil means the
	// policy's default decision is final.
	Confirmer security.Confirmer

	// SystemPrompt overrides the generated default.
	SystemPrompt string

	// AgentProfile selects a named profile from config.
	AgentProfile string

	// DisableTools builds the app without a tool surface, turning chats
	// into plain Q&A.
	DisableTools bool

	// DisableStorage skips the conversation database; runs work but
	// nothing persists.
	DisableStorage bool
}

// New assembles an App. The configured primary provider must come up; other
// providers are registered opportunistically from their environment keys.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	projectDir := opts.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		projectDir = wd
	}

	a := &App{Config: cfg, Logger: logger, ProjectDir: projectDir}

	if !opts.DisableStorage {
		store, err := openStorage(cfg)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	a.Catalog = models.NewRegistry()
	a.Providers = provider.NewRegistry(a.Catalog, logger)
	if err := registerProviders(a.Providers, a.Catalog, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	audit, err := security.NewAuditLogger(cfg.AuditLoggerConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	a.Audit = audit
	a.Gate = security.NewGate(security.NewPolicy(cfg.PolicyConfig()), opts.Confirmer, logger)

	a.MCP = mcp.NewManager(logger)
	if len(cfg.MCPServers) > 0 {
		if err := a.MCP.LoadServers(cfg.MCPServerConfigs()); err != nil {
			// A dead server loses its tools, not the session.
			logger.Warn("some MCP servers failed to start", "error", err)
		}
	}

	if !opts.DisableTools {
		a.Shell = shell.NewShellManager(logger)
		toolbox, err := a.BuildToolbox(ctx, "")
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Toolbox = toolbox
	}

	profile := cfg.AgentProfile(opts.AgentProfile)
	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = profile.SystemPrompt
	}
	if systemPrompt == "" {
		systemPrompt = skaldagent.GetDefaultSystemPrompt(a.Toolbox)
	}
	var db *sql.DB
	if a.Store != nil {
		db = a.Store.DB()
	}
	a.Service = executor.NewService(executor.ServiceConfig{
		Database:     db,
		ProjectDir:   projectDir,
		SystemPrompt: systemPrompt,
		MaxTurns:     profile.MaxTurns,
		Logger:       logger,
	})

	return a, nil
}

// BuildToolbox assembles the builtin tools plus whatever the connected MCP
// servers export. A non-empty conversationID anchors the file tools to that
// conversation's shell working directory, so a cd in run_command carries over
// to the file tools.
func (a *App) BuildToolbox(ctx context.Context, conversationID string) (*agent.DefaultToolbox, error) {
	toolbox := agent.NewToolbox[agent.Tool]()
	toolbox.RegisterMiddleware(agent.LoggingMiddleware(a.Logger))

	var baseFs afero.Fs = afero.NewOsFs()
	if conversationID != "" && a.Shell != nil {
		baseFs = skaldfs.NewContextualFsFromShell(baseFs, a.Shell, conversationID)
	}

	builders := []func() (agent.Tool, error){
		func() (agent.Tool, error) { return tools.ReadFileTool(baseFs) },
		func() (agent.Tool, error) { return tools.WriteFileTool(baseFs) },
		func() (agent.Tool, error) { return tools.CopyFileTool(baseFs) },
		func() (agent.Tool, error) { return tools.MoveFileTool(baseFs) },
		func() (agent.Tool, error) { return tools.DeleteFileTool(baseFs) },
		func() (agent.Tool, error) { return tools.EditFileTool(baseFs) },
		func() (agent.Tool, error) { return tools.CreateDirectoryTool(baseFs) },
		func() (agent.Tool, error) { return tools.ListDirectoryTool(baseFs) },
		func() (agent.Tool, error) { return tools.GetFileInfoTool(baseFs) },
		func() (agent.Tool, error) { return tools.PatchTool(baseFs) },
		func() (agent.Tool, error) { return tools.SearchFilesTool(baseFs) },
		func() (agent.Tool, error) { return tools.GrepFilesTool(baseFs) },
		tools.WebFetchTool,
	}
	for _, build := range builders {
		tool, err := build()
		if err != nil {
			return nil, fmt.Errorf("build tool: %w", err)
		}
		if err := toolbox.RegisterTool(tool); err != nil {
			return nil, err
		}
	}

	if a.Shell != nil {
		if err := toolbox.RegisterTool(tools.RunCommandTool(a.Shell)); err != nil {
			return nil, err
		}
	}

	if err := toolbox.RegisterTool(tools.TaskCompleteTool()); err != nil {
		return nil, err
	}
	if err := toolbox.RegisterTool(tools.AskQuestionTool()); err != nil {
		return nil, err
	}

	if a.MCP != nil {
		for _, remote := range a.MCP.Tools(ctx) {
			if err := toolbox.RegisterTool(remote); err != nil {
				a.Logger.Warn("skipping MCP tool", "tool", remote.GetName(), "error", err)
			}
		}
	}

	return toolbox, nil
}

// Bridge builds the tool bridge for a session over the given toolbox. A nil
// toolbox falls back to the app-wide one.
func (a *App) Bridge(toolbox *agent.DefaultToolbox, sessionID string) *executor.ToolBridge {
	if toolbox == nil {
		toolbox = a.Toolbox
	}
	return executor.NewToolBridge(executor.BridgeConfig{
		Toolbox:   toolbox,
		Gate:      a.Gate,
		Audit:     a.Audit,
		SessionID: sessionID,
		Logger:    a.Logger,
	})
}

// Close releases everything the app holds. Safe on a partially built app.
func (a *App) Close() error {
	var firstErr error
	if a.Shell != nil {
		if err := a.Shell.CloseAllShells(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.MCP != nil {
		if err := a.MCP.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Audit != nil {
		if err := a.Audit.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func openStorage(cfg *config.Config) (*storage.DB, error) {
	path := cfg.Storage.DatabasePath
	if path == "" {
		path = config.GetDefaultStoragePaths().DatabasePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open conversation database: %w", err)
	}
	return store, nil
}

// knownProviderNames orders provider registration; the slice is also the set
// of providers skald can construct adapters for.
var knownProviderNames = []string{
	models.ProviderOpenRouter,
	models.ProviderAnthropic,
	models.ProviderOpenAI,
	models.ProviderGoogle,
}

var defaultKeyEnvVars = map[string]string{
	models.ProviderOpenRouter: "OPENROUTER_API_KEY",
	models.ProviderAnthropic:  "ANTHROPIC_API_KEY",
	models.ProviderOpenAI:     "OPENAI_API_KEY",
	models.ProviderGoogle:     "GEMINI_API_KEY",
}

func registerProviders(reg *provider.Registry, catalog *models.Registry, cfg *config.Config, logger *slog.Logger) error {
	primary := cfg.API.Provider

	for _, name := range knownProviderNames {
		key := apiKeyFor(cfg, name)
		if key == "" {
			if name == primary {
				return fmt.Errorf("no API key for provider %s: set %s or api.api_key in config", name, defaultKeyEnvVars[name])
			}
			continue
		}

		p, err := buildProvider(name, key, cfg, catalog, logger)
		if err != nil {
			if name == primary {
				return err
			}
			logger.Warn("skipping provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
	}
	return nil
}

// apiKeyFor resolves the key for a provider: the config's key for the
// primary, the conventional environment variable for the rest.
func apiKeyFor(cfg *config.Config, name string) string {
	if name == cfg.API.Provider {
		if key := cfg.ResolveAPIKey(); key != "" {
			return key
		}
	}
	return os.Getenv(defaultKeyEnvVars[name])
}

func buildProvider(name, key string, cfg *config.Config, catalog *models.Registry, logger *slog.Logger) (aisdk.Provider, error) {
	// The configured base URL only applies to the primary provider.
	baseURL := ""
	if name == cfg.API.Provider {
		baseURL = cfg.API.BaseURL
	}

	switch name {
	case models.ProviderOpenRouter:
		return orclient.NewClient(orclient.Config{
			APIKey:     key,
			BaseURL:    baseURL,
			Logger:     logger,
			Timeout:    cfg.API.Timeout,
			RetryCount: cfg.API.Retry.MaxRetries,
			RetryDelay: cfg.API.Retry.InitialDelay,
			SiteURL:    cfg.API.Headers["HTTP-Referer"],
			SiteName:   cfg.API.Headers["X-Title"],
		})
	case models.ProviderAnthropic:
		return provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey:     key,
			BaseURL:    baseURL,
			MaxRetries: cfg.API.Retry.MaxRetries,
			Logger:     logger,
		}, catalog)
	case models.ProviderOpenAI:
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:     key,
			BaseURL:    baseURL,
			MaxRetries: cfg.API.Retry.MaxRetries,
			RetryDelay: cfg.API.Retry.InitialDelay,
			Logger:     logger,
		}, catalog)
	case models.ProviderGoogle:
		return provider.NewGoogleProvider(provider.GoogleConfig{
			APIKey:     key,
			MaxRetries: cfg.API.Retry.MaxRetries,
			RetryDelay: cfg.API.Retry.InitialDelay,
			Logger:     logger,
		}, catalog)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
