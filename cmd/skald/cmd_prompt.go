package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/skald-dev/skald/src/executor"
)

// PromptCmd runs a single prompt to completion and exits. Plain text answers
// finish the run instead of waiting for a reply.
type PromptCmd struct {
	Text []string `arg:"" optional:"" help:"Prompt text"`
	File string   `short:"f" type:"existingfile" help:"Read the prompt from a file"`

	Model        string `short:"m" help:"Model to use (defaults to config)"`
	MaxTurns     int    `help:"Maximum assistant turns"`
	Raw          bool   `help:"Print only the final assistant text"`
	NoSave       bool   `name:"no-save" help:"Do not record the run in the conversation database"`
	Resume       bool   `short:"r" help:"Continue the most recent session"`
	SessionID    string `name:"session" help:"Continue a specific session by ID"`
	Profile      string `help:"Agent profile from config"`
	SystemPrompt string `short:"s" help:"Override the system prompt"`
}

func (p *PromptCmd) Run(kctx *kong.Context, cli *CLI) error {
	text := strings.Join(p.Text, " ")
	if p.File != "" {
		data, err := os.ReadFile(p.File)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(string(data))
	}
	if strings.TrimSpace(text) == "" {
		return executor.ErrPromptTextRequired
	}
	if p.NoSave && (p.Resume || p.SessionID != "") {
		return fmt.Errorf("--no-save cannot be combined with --resume or --session")
	}

	logger := newConsoleLogger(cli.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No confirmer: in one-shot mode a tool that would prompt is denied.
	a, err := buildApp(ctx, cli, logger, appParams{
		systemPrompt: p.SystemPrompt,
		profile:      p.Profile,
		noStore:      p.NoSave,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	setup, err := prepareConversation(ctx, a, runOptions{
		Model:     p.Model,
		Profile:   p.Profile,
		SessionID: p.SessionID,
		Resume:    p.Resume,
	})
	if err != nil {
		return err
	}

	processor := executor.NewConsoleEventProcessor(executor.ConsoleProcessorConfig{
		ShowToolArguments: !p.Raw,
		ShowToolResults:   !p.Raw,
		StreamMode:        !p.Raw,
		Highlight:         !p.Raw,
		RawMode:           p.Raw,
	})
	sink := executor.NewChannelEventSink(64, logger, processor)
	defer sink.Close()

	setup.saveUserMessage(ctx, a, text)

	result, err := a.Service.RunConversation(ctx, &executor.RunRequest{
		Conversation:   setup.conv,
		UserMessage:    text,
		ModelClient:    setup.modelClient,
		ModelParams:    a.Config.ModelParams[setup.modelID],
		SessionID:      setup.sessionID(),
		ConversationID: setup.conversationID(),
		Toolbox:        setup.toolbox,
		Bridge:         setup.bridge,
		EventSink:      sink,
		MaxTurns:       p.MaxTurns,
		OneShot:        true,
	})
	if err != nil {
		return err
	}
	sink.Flush()

	// Terminal states the loop reports without an error still matter for
	// the exit code.
	switch result.State {
	case executor.RunStateMaxTurnsExceeded:
		return executor.ErrMaxTurnsExceeded
	case executor.RunStateCancelled:
		return context.Canceled
	case executor.RunStateAwaitingUserInput:
		if result.Question != "" {
			fmt.Println(result.Question)
		}
	}
	return nil
}
