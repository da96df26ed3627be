package executor

import (
	"context"
	"errors"

	"github.com/skald-dev/skald/src/aisdk"
)

// RunConversation drives model turns until an exit condition: an exit tool
// fires, the assistant answers with plain text, the turn budget runs out, or
// the context is cancelled.
//
// Exit tools still execute with the rest of their batch, in emission order;
// the loop returns only after their acknowledgements are recorded. After a
// tool batch the loop continues with no synthetic user message: the tool
// results are the model's next input.
func (s *Service) RunConversation(ctx context.Context, req *RunRequest) (*RunResult, error) {
	if req.ModelClient == nil {
		return nil, ErrModelClientRequired
	}
	if req.Conversation == nil {
		return nil, ErrConversationRequired
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = s.maxTurns
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	conversation := req.Conversation
	modelID, provider := modelIdentity(req.ModelClient)
	toolsEnabled := req.Toolbox != nil && len(req.Toolbox.Tools()) > 0

	var pending *aisdk.Message
	var pendingText string
	if req.UserMessage != "" {
		wrapped := WrapFirstMessage(req.UserMessage, ConversationState{
			MaxTurns:       maxTurns,
			TurnsRemaining: maxTurns,
			ToolsEnabled:   toolsEnabled,
		})
		pending = aisdk.NewUserMessage(wrapped)
		pendingText = req.UserMessage
	}

	finalText := ""
	for turn := 1; turn <= maxTurns; turn++ {
		emitter := NewEventEmitter(req.EventSink, req.ConversationID, turn)
		remaining := maxTurns - turn

		if ctx.Err() != nil {
			return s.finishRun(emitter, conversation, RunStateCancelled, ReasonCancelled, finalText, "", turn-1, remaining+1)
		}

		stepResult, err := s.Step(ctx, &StepRequest{
			Conversation:   conversation,
			Message:        pending,
			UserText:       pendingText,
			ModelClient:    req.ModelClient,
			ModelParams:    req.ModelParams,
			SessionID:      req.SessionID,
			ConversationID: req.ConversationID,
			Toolbox:        req.Toolbox,
			Bridge:         req.Bridge,
			Callbacks:      req.Callbacks,
			EventSink:      req.EventSink,
			TurnNumber:     turn,
			TurnsRemaining: remaining + 1,
		})
		if err != nil {
			if isContextError(err) {
				result, _ := s.finishRun(emitter, conversation, RunStateCancelled, ReasonCancelled, finalText, "", turn, remaining)
				return result, nil
			}
			_ = emitter.EmitError(err, "conversation step")
			result, _ := s.finishRun(emitter, conversation, RunStateError, ReasonError, finalText, "", turn, remaining)
			return result, err
		}

		pending, pendingText = nil, ""
		conversation = stepResult.UpdatedConversation
		if stepResult.Response != nil && stepResult.Response.Content != "" {
			finalText = stepResult.Response.Content
		}

		if stepResult.State == StateToolCallsNeeded {
			execResult, execErr := s.ExecuteToolCalls(ctx, &ToolExecutionRequest{
				ToolCalls:          stepResult.ToolCalls,
				Bridge:             req.Bridge,
				SessionID:          req.SessionID,
				ConversationID:     req.ConversationID,
				AssistantMessageID: stepResult.AssistantMessageID,
				Provider:           provider,
				Model:              modelID,
				Callbacks:          req.Callbacks,
				EventSink:          req.EventSink,
				TurnNumber:         turn,
			})
			for _, msg := range execResult.ToolResults {
				conversation.AddMessage(msg)
			}

			if execErr != nil {
				result, _ := s.finishRun(emitter, conversation, RunStateCancelled, ReasonCancelled, finalText, "", turn, remaining)
				return result, nil
			}

			_ = emitter.EmitTurnComplete(remaining, StateToolCallsCompleted)

			if exit := execResult.Exit; exit != nil {
				switch exit.Tool {
				case ToolNameAskQuestion:
					return s.finishRun(emitter, conversation, RunStateAwaitingUserInput, ReasonQuestion, finalText, exit.Question, turn, remaining)
				default:
					text := finalText
					if exit.Summary != "" {
						text = exit.Summary
					}
					return s.finishRun(emitter, conversation, RunStateCompleted, ReasonTaskComplete, text, "", turn, remaining)
				}
			}
			continue
		}

		// Plain text answer: the run ends in one-shot mode, otherwise the
		// prompt takes over.
		_ = emitter.EmitTurnComplete(remaining, StateTextResponse)
		if req.OneShot {
			return s.finishRun(emitter, conversation, RunStateCompleted, ReasonTaskComplete, finalText, "", turn, remaining)
		}
		return &RunResult{
			State:        RunStateAwaitingUserInput,
			FinalText:    finalText,
			TotalTurns:   turn,
			Conversation: conversation,
		}, nil
	}

	finalEmitter := NewEventEmitter(req.EventSink, req.ConversationID, maxTurns)
	return s.finishRun(finalEmitter, conversation, RunStateMaxTurnsExceeded, ReasonMaxTurns, finalText, "", maxTurns, 0)
}

// finishRun emits the closing event and builds the terminal result.
func (s *Service) finishRun(emitter *EventEmitter, conversation *aisdk.Conversation, state RunState, reason, finalText, question string, totalTurns, turnsRemaining int) (*RunResult, error) {
	_ = emitter.EmitConversationComplete(reason, totalTurns, turnsRemaining)
	return &RunResult{
		State:        state,
		Reason:       reason,
		Question:     question,
		FinalText:    finalText,
		TotalTurns:   totalTurns,
		Conversation: conversation,
	}, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
