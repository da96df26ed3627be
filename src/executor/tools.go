package executor

import (
	"context"
	"errors"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/storage"
)

// ExecuteToolCalls runs one assistant message's tool batch strictly
// sequentially, in the exact order the model emitted the calls. Each result,
// success or error-shaped, becomes a tool message carrying the call's id and
// name; a failing call never aborts the batch.
//
// Cancellation stops the batch between calls: results already obtained are
// returned (and stay recorded), calls not yet started are neither executed
// nor recorded, and the context error is returned alongside the partial
// result.
func (s *Service) ExecuteToolCalls(ctx context.Context, req *ToolExecutionRequest) (*StepResult, error) {
	emitter := NewEventEmitter(req.EventSink, req.ConversationID, req.TurnNumber)

	bridge := req.Bridge
	if bridge == nil {
		bridge = NewToolBridge(BridgeConfig{Logger: s.logger})
	}

	var (
		results []*aisdk.Message
		exit    *ExitSignal
	)
	for i := range req.ToolCalls {
		call := &req.ToolCalls[i]

		if err := ctx.Err(); err != nil {
			return &StepResult{State: StateToolCallsCompleted, ToolResults: results, Exit: exit}, err
		}

		s.logger.Debug("executing tool call", "tool", call.Function.Name, "id", call.ID)
		req.Callbacks.ToolCall(call)

		result, err := bridge.Invoke(ctx, call)
		if err != nil {
			// Cancelled mid-flight: the abandoned call is not recorded.
			_ = emitter.EmitToolCallError(call.Function.Name, call.ID, err, 0)
			return &StepResult{State: StateToolCallsCompleted, ToolResults: results, Exit: exit}, err
		}

		if result.Exit != nil && exit == nil {
			exit = result.Exit
		}

		msg := &aisdk.Message{
			Role:       "tool",
			Content:    result.Content,
			Name:       call.Function.Name,
			ToolCallID: call.ID,
		}
		results = append(results, msg)

		if result.IsError {
			_ = emitter.EmitToolCallError(call.Function.Name, call.ID, errors.New(result.Content), result.Duration)
		} else {
			_ = emitter.EmitToolCallResponse(call.Function.Name, call.ID, result.Content, result.Duration)
		}
		req.Callbacks.ToolResult(call, result)

		s.saveToolResult(ctx, req, call, result)
	}

	return &StepResult{State: StateToolCallsCompleted, ToolResults: results, Exit: exit}, nil
}

// saveToolResult persists the execution record and the tool message. Both
// are best-effort; persistence failures are logged, never surfaced.
func (s *Service) saveToolResult(ctx context.Context, req *ToolExecutionRequest, call *aisdk.ToolCall, result *InvokeResult) {
	if s.database == nil || req.ConversationID == "" {
		return
	}

	execution := &storage.ToolExecution{
		ID:             storage.GenerateID(),
		MessageID:      req.AssistantMessageID,
		ConversationID: req.ConversationID,
		Provider:       req.Provider,
		Model:          req.Model,
		ToolName:       call.Function.Name,
		Input:          string(call.Function.Arguments),
		DurationMs:     result.Duration.Milliseconds(),
	}
	if result.IsError {
		execution.Error = result.Content
	} else {
		execution.Output = result.Content
	}
	if err := storage.CreateToolExecution(ctx, s.database, execution); err != nil {
		s.logger.Error("failed to save tool execution", "tool", call.Function.Name, "error", err)
	}

	callID := call.ID
	toolName := call.Function.Name
	message := &storage.Message{
		ID:             storage.GenerateID(),
		ConversationID: req.ConversationID,
		Role:           "tool",
		Provider:       req.Provider,
		Model:          req.Model,
		Content:        result.Content,
		ToolCallID:     &callID,
		Name:           &toolName,
	}
	if err := storage.CreateMessage(ctx, s.database, message); err != nil {
		s.logger.Error("failed to save tool message", "tool", call.Function.Name, "error", err)
	}
}
