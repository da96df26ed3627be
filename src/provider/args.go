package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/skald-dev/skald/src/aisdk"
)

// emptyArguments is the payload substituted for tool-call arguments that are
// missing or fail to parse. The call is still surfaced so the execution layer
// can report the problem back to the model instead of silently dropping it.
var emptyArguments = json.RawMessage(`{}`)

// finalizeArguments validates the argument text accumulated for a tool call.
// Providers stream arguments as partial fragments, so the concatenated result
// is only checked once the call is complete. Anything that is not a JSON
// object or array is replaced with an empty object.
func finalizeArguments(raw string, toolName string, logger *slog.Logger) json.RawMessage {
	if raw == "" {
		return emptyArguments
	}
	if !json.Valid([]byte(raw)) {
		if logger != nil {
			logger.Warn("discarding malformed tool call arguments",
				"tool", toolName,
				"length", len(raw))
		}
		return emptyArguments
	}
	return json.RawMessage(raw)
}

// fabricateToolCallID builds a synthetic tool call identifier for providers
// that do not assign one. The tool name is embedded so it can be recovered
// when the matching result is sent back.
func fabricateToolCallID(toolName string) string {
	return fmt.Sprintf("call_%s_%d", toolName, time.Now().UnixNano())
}

// systemPrompt returns the content of the first system message, or "" when
// the conversation has none. Adapters for providers that carry the system
// prompt out of band use this to lift it out of the message list.
func systemPrompt(messages []*aisdk.Message) string {
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if msg.Role == aisdk.RoleSystem {
			return msg.Content
		}
	}
	return ""
}
