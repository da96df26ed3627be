package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
	"github.com/skald-dev/skald/src/orclient"
)

// ModelCmd inspects the model catalog. The built-in catalog answers without
// network or keys; --remote asks OpenRouter for its live list.
type ModelCmd struct {
	List ModelListCmd `cmd:"" default:"1" help:"List known models"`
	Show ModelShowCmd `cmd:"" help:"Show details for one model"`
}

type ModelListCmd struct {
	Format string `default:"table" enum:"table,json" help:"Output format (table, json)"`
	Remote bool   `help:"Query the provider API instead of the built-in catalog"`
}

func (c *ModelListCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := newConsoleLogger(cli.LogLevel)
	ctx := context.Background()

	var list []*aisdk.ModelInfo
	if c.Remote {
		client, err := remoteClient(cli, logger)
		if err != nil {
			return err
		}
		list, err = client.GetModels(ctx)
		if err != nil {
			return err
		}
	} else {
		list = models.NewRegistry().List()
	}

	if c.Format == "json" {
		return printJSON(os.Stdout, list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tCONTEXT\tREASONING")
	for _, m := range list {
		reasoning := ""
		if m.Reasoning {
			reasoning = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Provider, formatContext(m.ContextLength), reasoning)
	}
	return w.Flush()
}

type ModelShowCmd struct {
	Model  string `arg:"" help:"Model ID, or a search fragment with --remote"`
	Format string `default:"table" enum:"table,json" help:"Output format (table, json)"`
	Remote bool   `help:"Query the provider API instead of the built-in catalog"`
}

func (c *ModelShowCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := newConsoleLogger(cli.LogLevel)
	ctx := context.Background()

	var info *aisdk.ModelInfo
	var err error
	if c.Remote {
		client, cerr := remoteClient(cli, logger)
		if cerr != nil {
			return cerr
		}
		info, err = client.FindModel(ctx, c.Model)
	} else {
		info, err = models.NewRegistry().Resolve(c.Model)
	}
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return printJSON(os.Stdout, info)
	}

	fmt.Printf("id:       %s\n", info.ID)
	fmt.Printf("name:     %s\n", info.Name)
	fmt.Printf("provider: %s\n", info.Provider)
	fmt.Printf("context:  %s\n", formatContext(info.ContextLength))
	if info.MaxOutputTokens > 0 {
		fmt.Printf("max out:  %s\n", formatContext(info.MaxOutputTokens))
	}
	if info.Reasoning {
		fmt.Println("reasoning: yes")
	}
	if len(info.SupportedParameters) > 0 {
		fmt.Printf("params:   %s\n", strings.Join(info.SupportedParameters, ", "))
	}
	return nil
}

// remoteClient builds an OpenRouter client straight from config, without the
// full app.
func remoteClient(cli *CLI, logger *slog.Logger) (*orclient.Client, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}
	return orclient.NewClient(orclient.Config{
		APIKey:  cfg.ResolveAPIKey(),
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatContext renders a token count the way model cards do: 128000 as
// 128k, 4096 as 4k, 1048576 as 1m. Counts come in both decimal and binary
// multiples depending on the vendor.
func formatContext(tokens int) string {
	switch {
	case tokens <= 0:
		return "-"
	case tokens >= 1_000_000 && tokens%1_000_000 == 0:
		return fmt.Sprintf("%dm", tokens/1_000_000)
	case tokens >= 1<<20 && tokens%(1<<20) == 0:
		return fmt.Sprintf("%dm", tokens>>20)
	case tokens >= 1000 && tokens%1000 == 0:
		return fmt.Sprintf("%dk", tokens/1000)
	case tokens >= 1024 && tokens%1024 == 0:
		return fmt.Sprintf("%dk", tokens/1024)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}
