package executor

import (
	"github.com/skald-dev/skald/src/aisdk"
)

// Callbacks are optional per-call hooks alongside the event sink. All
// methods are safe on a nil receiver.
type Callbacks struct {
	// OnToolCall runs before a tool call executes.
	OnToolCall func(call *aisdk.ToolCall)

	// OnToolResult runs after a tool call resolves, with the bridged result.
	OnToolResult func(call *aisdk.ToolCall, result *InvokeResult)
}

// ToolCall invokes OnToolCall when set.
func (c *Callbacks) ToolCall(call *aisdk.ToolCall) {
	if c == nil || c.OnToolCall == nil {
		return
	}
	c.OnToolCall(call)
}

// ToolResult invokes OnToolResult when set.
func (c *Callbacks) ToolResult(call *aisdk.ToolCall, result *InvokeResult) {
	if c == nil || c.OnToolResult == nil {
		return
	}
	c.OnToolResult(call, result)
}
