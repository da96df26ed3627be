package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/skald-dev/skald/src/aisdk"
)

// ToolExecutor is a function type for tool execution.
type ToolExecutor func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error)

// DefaultToolbox is a toolbox over the plain Tool interface.
type DefaultToolbox = Toolbox[Tool]

// Toolbox holds the registered tools and the middleware applied around their
// execution.
type Toolbox[T Tool] struct {
	tools      map[string]T
	middleware []ToolMiddleware
}

// ToolMiddleware wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// NewToolbox creates an empty toolbox.
func NewToolbox[T Tool]() *Toolbox[T] {
	return &Toolbox[T]{
		tools: make(map[string]T),
	}
}

// RegisterTool registers a tool. Names must be unique.
func (tm *Toolbox[T]) RegisterTool(tool T) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := tm.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}
	tm.tools[tool.GetName()] = tool
	return nil
}

// RegisterMiddleware registers middleware applied to all tool executions.
// Middleware runs in registration order, first registered outermost.
func (tm *Toolbox[T]) RegisterMiddleware(middleware ToolMiddleware) {
	tm.middleware = append(tm.middleware, middleware)
}

// ClearMiddleware removes all registered middleware.
func (tm *Toolbox[T]) ClearMiddleware() {
	tm.middleware = nil
}

// Tools returns the registered tools sorted by name, so tool lists sent to
// providers are stable across runs.
func (tm *Toolbox[T]) Tools() []T {
	out := make([]T, 0, len(tm.tools))
	for _, tool := range tm.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GetName() < out[j].GetName()
	})
	return out
}

// ExecuteTool executes a tool call with the middleware chain applied.
func (tm *Toolbox[T]) ExecuteTool(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	tool, exists := tm.tools[call.Function.Name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", call.Function.Name)
	}

	executor := ToolExecutor(func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
		return tool.Execute(ctx, call)
	})
	for i := len(tm.middleware) - 1; i >= 0; i-- {
		executor = tm.middleware[i](executor)
	}

	return executor(ctx, call)
}

// GetTool returns a specific tool by name.
func (tm *Toolbox[T]) GetTool(name string) (T, bool) {
	tool, exists := tm.tools[name]
	return tool, exists
}

// LoggingMiddleware logs tool execution at debug level.
func LoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			logger.Debug("executing tool", "tool", call.Function.Name, "args", string(call.Function.Arguments))
			result, err := next(ctx, call)
			if err != nil {
				logger.Debug("tool execution failed", "tool", call.Function.Name, "error", err)
			} else {
				logger.Debug("tool execution completed", "tool", call.Function.Name)
			}
			return result, err
		}
	}
}
