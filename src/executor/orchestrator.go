package executor

import (
	"context"
	"fmt"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
)

// degradedResponseText replaces the assistant content when both the stream
// and the non-streaming fallback fail. The turn still completes; the raw
// provider error goes to the log, never to the transcript.
const degradedResponseText = "Error: the model response could not be retrieved. Try again or rephrase the request."

// Step runs a single model turn: send the conversation, drain the stream,
// persist the assistant message, and report whether tool calls are pending.
//
// A transport failure after the stream opened is retried exactly once via
// the non-streaming endpoint. If that also fails the turn degrades to a
// placeholder text response instead of failing, so the loop always
// terminates the turn cleanly. Only context cancellation aborts the step;
// partial streamed text is then discarded, not persisted.
func (s *Service) Step(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if req.ModelClient == nil {
		return nil, ErrModelClientRequired
	}
	if req.Conversation == nil {
		return nil, ErrConversationRequired
	}

	emitter := NewEventEmitter(req.EventSink, req.ConversationID, req.TurnNumber)

	if req.Message != nil {
		display := req.Message.Content
		wrapped := req.UserText != "" && req.UserText != req.Message.Content
		_ = emitter.EmitUserMessage(display, wrapped, req.UserText, req.TurnsRemaining)
	}

	messages := make([]*aisdk.Message, 0, len(req.Conversation.Messages)+1)
	messages = append(messages, req.Conversation.Messages...)
	if req.Message != nil {
		messages = append(messages, req.Message)
	}

	ag := &agent.Agent{
		SystemPrompt: s.systemPrompt,
		Model:        req.ModelClient,
		Toolbox:      req.Toolbox,
		Logger:       s.logger,
		ModelParams:  req.ModelParams,
	}

	modelID, provider := modelIdentity(req.ModelClient)
	_ = emitter.EmitAssistantStreamStart(modelID)

	response, err := s.streamTurn(ctx, ag, messages, emitter)
	if err != nil {
		return nil, err
	}

	_ = emitter.EmitAssistantStreamEnd()
	_ = emitter.EmitAssistantMessage(response.Content, response.ToolCalls, modelID)

	var assistantMessageID string
	if req.ConversationID != "" {
		id, saveErr := s.saveAssistantMessage(ctx, req.ConversationID, provider, modelID, response)
		if saveErr != nil {
			s.logger.Error("failed to save assistant message", "conversation_id", req.ConversationID, "error", saveErr)
		} else {
			assistantMessageID = id
		}
	}

	updated := req.Conversation.Clone()
	if req.Message != nil {
		updated.AddMessage(req.Message)
	}
	updated.AddAssistantMessage(response.Content, response.ToolCalls)

	state := StateTextResponse
	if len(response.ToolCalls) > 0 {
		state = StateToolCallsNeeded
	}
	return &StepResult{
		State:               state,
		Response:            response,
		ToolCalls:           response.ToolCalls,
		AssistantMessageID:  assistantMessageID,
		UpdatedConversation: updated,
	}, nil
}

// streamTurn opens the stream and drains it, falling back to one
// non-streaming request on transport failure. It returns an error only when
// the context was cancelled.
func (s *Service) streamTurn(ctx context.Context, ag *agent.Agent, messages []*aisdk.Message, emitter *EventEmitter) (*StreamResponse, error) {
	var streamErr error

	stream, err := ag.OpenStream(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		streamErr = err
	} else {
		response, procErr := processStream(ctx, stream, emitter)
		if procErr == nil {
			return response, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		streamErr = procErr
	}

	s.logger.Warn("stream failed, retrying without streaming", "error", streamErr)
	response, fbErr := s.fallbackTurn(ctx, ag, messages, emitter)
	if fbErr == nil {
		return response, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.logger.Error("non-streaming fallback failed", "stream_error", streamErr, "fallback_error", fbErr)
	_ = emitter.EmitError(fmt.Errorf("model request failed: %w", fbErr), "model request")
	_ = emitter.EmitAssistantStreamChunk(degradedResponseText)
	return &StreamResponse{Content: degradedResponseText}, nil
}

// fallbackTurn issues the single non-streaming retry and replays the full
// response through the stream events so renderers see the same sequence.
func (s *Service) fallbackTurn(ctx context.Context, ag *agent.Agent, messages []*aisdk.Message, emitter *EventEmitter) (*StreamResponse, error) {
	resp, err := ag.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	response := &StreamResponse{Content: msg.Content, ToolCalls: msg.ToolCalls}
	if response.Content != "" {
		_ = emitter.EmitAssistantStreamChunk(response.Content)
	}
	for _, call := range response.ToolCalls {
		_ = emitter.EmitToolCallRequest(call)
	}
	return response, nil
}

func modelIdentity(client aisdk.ModelClient) (modelID, provider string) {
	info := client.GetModelInfo()
	if info == nil {
		return "", ""
	}
	return info.ID, info.Provider
}
