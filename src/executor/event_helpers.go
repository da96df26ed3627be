package executor

import (
	"time"

	"github.com/skald-dev/skald/src/aisdk"
)

// EventEmitter stamps events with the conversation id and turn number. All
// Emit methods are no-ops on a nil sink, so callers never guard.
type EventEmitter struct {
	sink           EventSink
	conversationID string
	turnNumber     int
}

func NewEventEmitter(sink EventSink, conversationID string, turnNumber int) *EventEmitter {
	return &EventEmitter{
		sink:           sink,
		conversationID: conversationID,
		turnNumber:     turnNumber,
	}
}

func (e *EventEmitter) base(eventType EventType) BaseEvent {
	return BaseEvent{
		Type:           eventType,
		Timestamp:      time.Now(),
		ConversationID: e.conversationID,
		TurnNumber:     e.turnNumber,
	}
}

func (e *EventEmitter) send(event ConversationEvent) error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Send(event)
}

func (e *EventEmitter) EmitUserMessage(message string, isWrapped bool, originalText string, turnsRemaining int) error {
	return e.send(&UserMessageEvent{
		BaseEvent:      e.base(EventUserMessage),
		Message:        message,
		IsWrapped:      isWrapped,
		OriginalText:   originalText,
		TurnsRemaining: turnsRemaining,
	})
}

func (e *EventEmitter) EmitAssistantStreamStart(model string) error {
	return e.send(&AssistantStreamStartEvent{
		BaseEvent: e.base(EventAssistantStreamStart),
		Model:     model,
	})
}

func (e *EventEmitter) EmitAssistantStreamChunk(content string) error {
	return e.send(&AssistantStreamChunkEvent{
		BaseEvent: e.base(EventAssistantStreamChunk),
		Content:   content,
	})
}

func (e *EventEmitter) EmitAssistantStreamEnd() error {
	return e.send(&AssistantStreamEndEvent{
		BaseEvent: e.base(EventAssistantStreamEnd),
	})
}

func (e *EventEmitter) EmitAssistantMessage(content string, toolCalls []aisdk.ToolCall, model string) error {
	return e.send(&AssistantMessageEvent{
		BaseEvent: e.base(EventAssistantMessage),
		Content:   content,
		ToolCalls: toolCalls,
		Model:     model,
	})
}

func (e *EventEmitter) EmitToolCallRequest(toolCall aisdk.ToolCall) error {
	return e.send(&ToolCallRequestEvent{
		BaseEvent: e.base(EventToolCallRequest),
		ToolCall:  toolCall,
	})
}

func (e *EventEmitter) EmitToolCallResponse(toolName, toolID, content string, duration time.Duration) error {
	return e.send(&ToolCallResponseEvent{
		BaseEvent: e.base(EventToolCallResponse),
		ToolName:  toolName,
		ToolID:    toolID,
		Content:   content,
		Duration:  duration,
	})
}

func (e *EventEmitter) EmitToolCallError(toolName, toolID string, err error, duration time.Duration) error {
	return e.send(&ToolCallErrorEvent{
		BaseEvent: e.base(EventToolCallError),
		ToolName:  toolName,
		ToolID:    toolID,
		Error:     err,
		Duration:  duration,
	})
}

func (e *EventEmitter) EmitSystemMessage(message, purpose string) error {
	return e.send(&SystemMessageEvent{
		BaseEvent: e.base(EventSystemMessage),
		Message:   message,
		Purpose:   purpose,
	})
}

func (e *EventEmitter) EmitError(err error, context string) error {
	return e.send(&ErrorEvent{
		BaseEvent: e.base(EventError),
		Error:     err,
		Context:   context,
	})
}

func (e *EventEmitter) EmitTurnComplete(turnsRemaining int, state ExecutionState) error {
	return e.send(&TurnCompleteEvent{
		BaseEvent:      e.base(EventTurnComplete),
		TurnsRemaining: turnsRemaining,
		State:          state,
	})
}

func (e *EventEmitter) EmitConversationComplete(reason string, totalTurns, turnsRemaining int) error {
	return e.send(&ConversationCompleteEvent{
		BaseEvent:      e.base(EventConversationComplete),
		Reason:         reason,
		TotalTurns:     totalTurns,
		TurnsRemaining: turnsRemaining,
	})
}
