package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI is the top-level command tree. Chat is the default command, so a bare
// `skald` drops into the interactive loop.
type CLI struct {
	APIKey   string `env:"OPENROUTER_API_KEY" help:"OpenRouter API key"`
	BaseURL  string `help:"Custom API base URL"`
	Config   string `short:"c" type:"path" help:"Config file overriding the user config"`
	LogLevel string `default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	NoTools  bool   `help:"Disable tool usage"`

	Chat    ChatCmd    `cmd:"" default:"1" help:"Interactive chat (default)"`
	Prompt  PromptCmd  `cmd:"" help:"Run a single prompt and exit"`
	Model   ModelCmd   `cmd:"" help:"Model catalog inspection"`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"MCP server management"`
	Migrate MigrateCmd `cmd:"" help:"Database migrations"`
}

func main() {
	// A .env in the working directory seeds API keys; absence is fine.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("skald"),
		kong.Description("Terminal AI assistant with tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "skald: %v\n", err)
		os.Exit(exitCode(err))
	}
}
