package agent

import (
	"context"
	"fmt"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/skald-dev/skald/src/aisdk"
)

// StaticTool is a tool declared from an explicit definition rather than a
// typed handler. Control-flow tools the conversation loop intercepts are
// declared this way, with an Executor supplying the fixed acknowledgement.
type StaticTool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Executor    ToolExecutor
}

// GetType returns the tool type.
func (t *StaticTool) GetType() string {
	return "function"
}

// GetName returns the tool's name.
func (t *StaticTool) GetName() string {
	return t.Name
}

// GetDescription returns the tool's description.
func (t *StaticTool) GetDescription() string {
	return t.Description
}

// GetParameters returns the tool's parameter schema.
func (t *StaticTool) GetParameters() *jsonschema.Schema {
	return t.Parameters
}

// Execute runs the tool.
func (t *StaticTool) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	if t.Executor == nil {
		return nil, fmt.Errorf("tool %s has no executor", t.Name)
	}
	return t.Executor(ctx, call)
}

var _ Tool = (*StaticTool)(nil)
