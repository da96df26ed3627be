package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/skald-dev/skald/src/mcp"
)

// MCPCmd manages the configured MCP servers.
type MCPCmd struct {
	List MCPListCmd `cmd:"" default:"1" help:"List configured servers and their tools"`
}

type MCPListCmd struct {
	Timeout time.Duration `default:"15s" help:"Total time allowed for server startup and tool listing"`
}

func (c *MCPListCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := newConsoleLogger(cli.LogLevel)
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if len(cfg.MCPServers) == 0 {
		fmt.Println("no MCP servers configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	manager := mcp.NewManager(logger)
	defer manager.Close()
	if err := manager.LoadServers(cfg.MCPServerConfigs()); err != nil {
		logger.Warn("some MCP servers failed to start", "error", err)
	}

	running := make(map[string]bool)
	for _, name := range manager.ListServers() {
		running[name] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMAND\tSTATUS\tTOOLS")
	for _, server := range cfg.MCPServers {
		status, toolCount := "failed", "-"
		if running[server.Name] {
			status = "connected"
			if tools, err := manager.GetServer(server.Name).ListTools(ctx); err == nil {
				toolCount = strconv.Itoa(len(tools))
			} else {
				status = "error"
				logger.Warn("failed to list tools", "server", server.Name, "error", err)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", server.Name, server.Command, status, toolCount)
	}
	return w.Flush()
}
