package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/app"
	"github.com/skald-dev/skald/src/config"
	"github.com/skald-dev/skald/src/executor"
	"github.com/skald-dev/skald/src/security"
	"github.com/skald-dev/skald/src/shell"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
	"github.com/skald-dev/skald/src/storage"
)

// loadConfig builds the effective config: file precedence chain, environment
// overrides, then command-line flags on top.
func loadConfig(cli *CLI) (*config.Config, error) {
	paths := config.GetConfigPaths()
	if cli.Config != "" {
		if _, err := os.Stat(cli.Config); err != nil {
			return nil, &configError{err: fmt.Errorf("config file %s: %w", cli.Config, err)}
		}
		paths.UserConfig = cli.Config
	}

	cfg, err := config.NewLoader(paths).Load()
	if err != nil {
		return nil, &configError{err: err}
	}

	if cli.APIKey != "" {
		cfg.API.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	return cfg, nil
}

// appParams are the per-command knobs for app construction.
type appParams struct {
	confirmer    security.Confirmer
	systemPrompt string
	profile      string

	// noStore runs without the conversation database, leaving no
	// transcript behind.
	noStore bool
}

func buildApp(ctx context.Context, cli *CLI, logger *slog.Logger, params appParams) (*app.App, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}
	toolsutil.SetLogger(logger)

	return app.New(ctx, app.Options{
		Config:         cfg,
		Logger:         logger,
		Confirmer:      params.confirmer,
		SystemPrompt:   params.systemPrompt,
		AgentProfile:   params.profile,
		DisableTools:   cli.NoTools,
		DisableStorage: params.noStore,
	})
}

// runOptions selects the model and session a command runs against.
type runOptions struct {
	Model     string
	Profile   string
	SessionID string
	Resume    bool
}

// conversationSetup is everything a run needs from the app: the resolved
// model, the session and conversation rows, the replayed history, and the
// conversation-scoped tool surface.
type conversationSetup struct {
	modelID      string
	modelClient  aisdk.ModelClient
	session      *storage.Session
	conversation *storage.Conversation
	conv         *aisdk.Conversation
	toolbox      *agent.DefaultToolbox
	bridge       *executor.ToolBridge
}

func (s *conversationSetup) sessionID() string {
	if s.session == nil {
		return ""
	}
	return s.session.ID
}

func (s *conversationSetup) conversationID() string {
	if s.conversation == nil {
		return ""
	}
	return s.conversation.ID
}

// prepareConversation resolves the model and session for a run, anchors the
// shell context, and rebuilds the conversation from the database.
func prepareConversation(ctx context.Context, a *app.App, opts runOptions) (*conversationSetup, error) {
	modelID := opts.Model
	if modelID == "" {
		modelID = a.Config.AgentProfile(opts.Profile).Model
	}
	if modelID == "" {
		return nil, &configError{err: fmt.Errorf("no model configured: pass --model or set agent.model")}
	}

	modelClient, err := a.Providers.Model(ctx, modelID)
	if err != nil {
		return nil, err
	}

	setup := &conversationSetup{
		modelID:     modelID,
		modelClient: modelClient,
		toolbox:     a.Toolbox,
	}

	if a.Store == nil {
		setup.conv = a.Service.NewConversation()
		setup.bridge = a.Bridge(a.Toolbox, "")
		return setup, nil
	}

	session, err := a.Service.GetOrCreateSession(ctx, opts.SessionID, opts.Resume)
	if err != nil {
		return nil, err
	}
	conversation, err := a.Service.GetOrCreateConversation(ctx, session)
	if err != nil {
		return nil, err
	}

	// run_command resolves its persistent shell through the conversation
	// context, and the file tools follow that shell's working directory.
	shell.SetConversationContext(conversation.ID)
	if a.Toolbox != nil {
		toolbox, err := a.BuildToolbox(ctx, conversation.ID)
		if err != nil {
			return nil, err
		}
		setup.toolbox = toolbox
	}

	conv, err := a.Service.BuildConversationFromDB(ctx, conversation, "")
	if err != nil {
		return nil, err
	}

	setup.session = session
	setup.conversation = conversation
	setup.conv = conv
	setup.bridge = a.Bridge(setup.toolbox, session.ID)
	return setup, nil
}

// saveUserMessage persists the user's raw text before the run, so the
// transcript keeps what they typed even if the run fails. Persistence-off
// setups skip it.
func (s *conversationSetup) saveUserMessage(ctx context.Context, a *app.App, text string) {
	if s.conversation == nil {
		return
	}
	if err := a.Service.SaveUserMessage(ctx, s.conversation.ID, text); err != nil {
		a.Logger.Warn("failed to save user message", "error", err)
	}
}
