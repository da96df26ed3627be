package executor

import (
	"fmt"
	"strings"
)

// ConversationState feeds the message wrapper with everything it needs to
// build the turn-context reminder.
type ConversationState struct {
	// MaxTurns is the run's turn budget.
	MaxTurns int

	// TurnsRemaining counts the turns left, including the one about to run.
	TurnsRemaining int

	// ToolsEnabled reports whether any tools are advertised this run.
	ToolsEnabled bool
}

// WrapFirstMessage prefixes the first user message of a run with a
// system-reminder block carrying the turn budget and tool availability. The
// stored transcript keeps the original text; only the wire copy is wrapped.
// Messages that already carry a reminder block pass through untouched.
func WrapFirstMessage(originalMessage string, state ConversationState) string {
	if !needsWrapping(originalMessage) {
		return originalMessage
	}

	var b strings.Builder
	b.WriteString("<system-reminder>\n")
	b.WriteString("# Turn Budget\n")
	fmt.Fprintf(&b, "This conversation allows at most %d assistant turns; %d remain.\n", state.MaxTurns, state.TurnsRemaining)
	b.WriteString("Work autonomously across turns to complete the task. When the task is done, call task_complete; when you need input from the user, call ask_question.\n")

	b.WriteString("\n# Tool Availability\n")
	if state.ToolsEnabled {
		b.WriteString("Tools are available this session. Gather the context you need before acting: read a file before editing it, list a directory before navigating it.\n")
	} else {
		b.WriteString("No tools are available this session. Answer from the conversation alone.\n")
	}
	b.WriteString("</system-reminder>\n\n")
	b.WriteString(originalMessage)

	return b.String()
}

// needsWrapping reports whether the message still lacks a reminder block.
func needsWrapping(message string) bool {
	return !strings.Contains(message, "<system-reminder>")
}
