package skaldagent

import (
	"github.com/skald-dev/skald/src/agent"
)

// GetDefaultSystemPrompt returns the default system prompt, including the
// definitions of every tool registered in the toolbox.
func GetDefaultSystemPrompt(toolbox *agent.DefaultToolbox) string {
	return GenerateSystemPrompt(toolbox)
}
