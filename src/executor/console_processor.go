package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/skald-dev/skald/src/theme"
)

// ConsoleProcessorConfig configures the console event renderer.
type ConsoleProcessorConfig struct {
	ShowTimestamps    bool
	ShowTurnNumbers   bool
	ShowToolArguments bool
	ShowToolResults   bool

	// RawMode prints only the final assistant text, verbatim, with no
	// decoration. Meant for piping output into other programs.
	RawMode bool

	// StreamMode prints assistant text chunk by chunk as it arrives.
	StreamMode bool

	// Highlight runs fenced code blocks in final assistant messages
	// through syntax highlighting.
	Highlight bool

	// MaxResultPreview caps the tool result preview width. Defaults to 200.
	MaxResultPreview int
}

type consoleStyles struct {
	tool  lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

func newConsoleStyles() consoleStyles {
	t := theme.CurrentTheme
	return consoleStyles{
		tool:  lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		ok:    lipgloss.NewStyle().Foreground(t.Primary),
		fail:  lipgloss.NewStyle().Foreground(t.Error),
		warn:  lipgloss.NewStyle().Foreground(t.Warning),
		muted: lipgloss.NewStyle().Foreground(t.TextMuted),
	}
}

// ConsoleEventProcessor renders conversation events to a terminal using the
// theme palette.
type ConsoleEventProcessor struct {
	config ConsoleProcessorConfig
	out    io.Writer
	styles consoleStyles
}

// NewConsoleEventProcessor renders to stdout.
func NewConsoleEventProcessor(config ConsoleProcessorConfig) *ConsoleEventProcessor {
	return NewConsoleEventProcessorWithWriter(config, os.Stdout)
}

// NewConsoleEventProcessorWithWriter renders to the given writer.
func NewConsoleEventProcessorWithWriter(config ConsoleProcessorConfig, out io.Writer) *ConsoleEventProcessor {
	if config.MaxResultPreview <= 0 {
		config.MaxResultPreview = 200
	}
	return &ConsoleEventProcessor{
		config: config,
		out:    out,
		styles: newConsoleStyles(),
	}
}

// Process renders a single event.
func (p *ConsoleEventProcessor) Process(event ConversationEvent) error {
	if p.config.RawMode {
		if msg, ok := event.(*AssistantMessageEvent); ok && len(msg.ToolCalls) == 0 {
			fmt.Fprint(p.out, msg.Content)
		}
		return nil
	}

	switch e := event.(type) {
	case *AssistantStreamChunkEvent:
		if p.config.StreamMode {
			fmt.Fprint(p.out, e.Content)
		}

	case *AssistantStreamEndEvent:
		if p.config.StreamMode {
			fmt.Fprintln(p.out)
		}

	case *AssistantMessageEvent:
		p.renderAssistantMessage(e)

	case *ToolCallRequestEvent:
		p.renderToolCallRequest(e)

	case *ToolCallResponseEvent:
		p.renderToolCallResponse(e)

	case *ToolCallErrorEvent:
		p.renderToolCallError(e)

	case *SystemMessageEvent:
		p.renderSystemMessage(e)

	case *ErrorEvent:
		fmt.Fprintf(p.out, "\n%s %v\n", p.styles.fail.Render("error in "+e.Context+":"), e.Error)

	case *ConversationCompleteEvent:
		p.renderConversationComplete(e)
	}

	return nil
}

func (p *ConsoleEventProcessor) Close() error {
	return nil
}

func (p *ConsoleEventProcessor) renderAssistantMessage(e *AssistantMessageEvent) {
	// Streamed text was already printed chunk by chunk.
	if p.config.StreamMode || len(e.ToolCalls) > 0 || e.Content == "" {
		return
	}
	fmt.Fprintln(p.out, p.renderAssistantText(e.Content))
}

func (p *ConsoleEventProcessor) renderToolCallRequest(e *ToolCallRequestEvent) {
	header := p.stamp(e) + p.styles.tool.Render("▸ "+e.ToolCall.Function.Name)
	if p.config.ShowTurnNumbers {
		header += p.styles.muted.Render(fmt.Sprintf("  [turn %d]", e.TurnNumber))
	}
	fmt.Fprintf(p.out, "\n%s\n", header)

	if p.config.ShowToolArguments {
		args := formatJSONArguments(e.ToolCall.Function.Arguments)
		if args != "" {
			fmt.Fprintf(p.out, "%s\n", p.styles.muted.Render(indentLines(args, "  ")))
		}
	}
}

func (p *ConsoleEventProcessor) renderToolCallResponse(e *ToolCallResponseEvent) {
	line := p.stamp(e) + p.styles.ok.Render("  ✓ "+e.ToolName)
	if e.Duration > 0 {
		line += p.styles.muted.Render(fmt.Sprintf(" (%v)", e.Duration.Round(10*time.Millisecond)))
	}
	fmt.Fprintln(p.out, line)

	if p.config.ShowToolResults && e.Content != "" {
		fmt.Fprintf(p.out, "  %s\n", p.styles.muted.Render(p.preview(e.Content)))
	}
}

func (p *ConsoleEventProcessor) renderToolCallError(e *ToolCallErrorEvent) {
	line := p.stamp(e) + p.styles.fail.Render(fmt.Sprintf("  ✗ %s: %v", e.ToolName, e.Error))
	if e.Duration > 0 {
		line += p.styles.muted.Render(fmt.Sprintf(" (%v)", e.Duration.Round(10*time.Millisecond)))
	}
	fmt.Fprintln(p.out, line)
}

func (p *ConsoleEventProcessor) renderSystemMessage(e *SystemMessageEvent) {
	switch e.Purpose {
	case "warning":
		fmt.Fprintf(p.out, "\n%s\n", p.styles.warn.Render(e.Message))
	case "info":
		fmt.Fprintf(p.out, "\n%s\n", p.styles.muted.Render(e.Message))
	}
}

func (p *ConsoleEventProcessor) renderConversationComplete(e *ConversationCompleteEvent) {
	if e.Reason == ReasonMaxTurns {
		fmt.Fprintf(p.out, "\n%s\n", p.styles.warn.Render(fmt.Sprintf("maximum turns reached (%d turns used)", e.TotalTurns)))
	}
}

// stamp prefixes a line with the event time when timestamps are on.
func (p *ConsoleEventProcessor) stamp(e ConversationEvent) string {
	if !p.config.ShowTimestamps {
		return ""
	}
	return p.styles.muted.Render(e.GetTimestamp().Format("15:04:05")) + " "
}

// renderAssistantText optionally highlights fenced code blocks. Text outside
// fences passes through untouched; an unbalanced fence disables highlighting
// for the whole message.
func (p *ConsoleEventProcessor) renderAssistantText(content string) string {
	if !p.config.Highlight || !strings.Contains(content, "```") {
		return content
	}

	parts := strings.Split(content, "```")
	if len(parts)%2 == 0 {
		return content
	}

	var b strings.Builder
	for i, part := range parts {
		if i%2 == 0 {
			b.WriteString(part)
			continue
		}

		lang := ""
		code := part
		if nl := strings.IndexByte(part, '\n'); nl >= 0 {
			lang = strings.TrimSpace(part[:nl])
			code = part[nl+1:]
		}

		var highlighted bytes.Buffer
		if err := quick.Highlight(&highlighted, code, lang, "terminal256", "monokai"); err != nil {
			b.WriteString("```")
			b.WriteString(part)
			b.WriteString("```")
			continue
		}
		b.WriteString(highlighted.String())
	}
	return b.String()
}

// preview flattens a tool result to one line bounded by the configured
// display width. Escape sequences in tool output are stripped first so they
// cannot leak into the terminal.
func (p *ConsoleEventProcessor) preview(content string) string {
	flat := strings.ReplaceAll(ansi.Strip(content), "\n", " ")
	if ansi.StringWidth(flat) <= p.config.MaxResultPreview {
		return flat
	}
	return ansi.Truncate(flat, p.config.MaxResultPreview, "...")
}

func formatJSONArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
