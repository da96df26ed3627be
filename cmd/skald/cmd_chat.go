package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/skald-dev/skald/src/app"
	"github.com/skald-dev/skald/src/executor"
	"github.com/skald-dev/skald/src/tui/components/dialog"
)

// ChatCmd is the interactive loop: read a line, run the conversation, render
// events as they stream, repeat.
type ChatCmd struct {
	Model        string `short:"m" help:"Model to use (defaults to config)"`
	MaxTurns     int    `help:"Maximum assistant turns per message"`
	Resume       bool   `short:"r" help:"Continue the most recent session"`
	SessionID    string `name:"session" help:"Continue a specific session by ID"`
	Profile      string `help:"Agent profile from config"`
	SystemPrompt string `short:"s" help:"Override the system prompt"`
}

func (c *ChatCmd) Run(kctx *kong.Context, cli *CLI) error {
	// Logs go to a session file; stdout belongs to the transcript.
	logger, logPath := newSessionFileLogger(cli.LogLevel)

	a, err := buildApp(context.Background(), cli, logger, appParams{
		confirmer:    dialog.NewApprovalDialog(),
		systemPrompt: c.SystemPrompt,
		profile:      c.Profile,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	setup, err := prepareConversation(context.Background(), a, runOptions{
		Model:     c.Model,
		Profile:   c.Profile,
		SessionID: c.SessionID,
		Resume:    c.Resume,
	})
	if err != nil {
		return err
	}

	processor := executor.NewConsoleEventProcessor(executor.ConsoleProcessorConfig{
		ShowToolArguments: true,
		ShowToolResults:   true,
		StreamMode:        true,
		Highlight:         true,
	})
	sink := executor.NewChannelEventSink(64, logger, processor)
	defer sink.Close()

	printChatBanner(a, setup, logPath)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	conv := setup.conv

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			break
		}

		setup.saveUserMessage(context.Background(), a, line)

		// Ctrl-C cancels the running turn, not the whole session. The
		// engine keeps completed tool results on cancellation.
		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		result, err := a.Service.RunConversation(runCtx, &executor.RunRequest{
			Conversation:   conv,
			UserMessage:    line,
			ModelClient:    setup.modelClient,
			ModelParams:    a.Config.ModelParams[setup.modelID],
			SessionID:      setup.sessionID(),
			ConversationID: setup.conversationID(),
			Toolbox:        setup.toolbox,
			Bridge:         setup.bridge,
			EventSink:      sink,
			MaxTurns:       c.MaxTurns,
		})
		stop()
		sink.Flush()

		if result != nil && result.Conversation != nil {
			conv = result.Conversation
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		switch result.State {
		case executor.RunStateAwaitingUserInput:
			// The next line typed answers the question.
			if result.Question != "" {
				fmt.Printf("\n? %s\n", result.Question)
			}
		case executor.RunStateCancelled:
			fmt.Fprintln(os.Stderr, "\ninterrupted")
		}
	}

	return scanner.Err()
}

func printChatBanner(a *app.App, setup *conversationSetup, logPath string) {
	fmt.Printf("model: %s\n", setup.modelID)
	if setup.toolbox != nil {
		fmt.Printf("tools: %d available\n", len(setup.toolbox.Tools()))
	} else {
		fmt.Println("tools: disabled")
	}
	if setup.conversation != nil && len(setup.conv.Messages) > 1 {
		fmt.Printf("resumed: conversation %s, %d messages\n", setup.conversation.ID, len(setup.conv.Messages)-1)
	}
	if logPath != "" {
		a.Logger.Info("session started", "log", logPath, "model", setup.modelID)
	}
	fmt.Println("type /exit or Ctrl-D to quit")
	fmt.Println()
}
