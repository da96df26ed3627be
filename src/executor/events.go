package executor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skald-dev/skald/src/aisdk"
)

// EventType identifies a conversation event.
type EventType string

const (
	EventUserMessage EventType = "user_message"

	EventAssistantStreamStart EventType = "assistant_stream_start"
	EventAssistantStreamChunk EventType = "assistant_stream_chunk"
	EventAssistantStreamEnd   EventType = "assistant_stream_end"
	EventAssistantMessage     EventType = "assistant_message"

	EventToolCallRequest  EventType = "tool_call_request"
	EventToolCallResponse EventType = "tool_call_response"
	EventToolCallError    EventType = "tool_call_error"

	EventSystemMessage        EventType = "system_message"
	EventError                EventType = "error"
	EventTurnComplete         EventType = "turn_complete"
	EventConversationComplete EventType = "conversation_complete"
)

// ConversationEvent is implemented by every engine event.
type ConversationEvent interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetConversationID() string
	GetTurnNumber() int
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	TurnNumber     int       `json:"turn_number"`
}

func (e BaseEvent) GetType() EventType        { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time   { return e.Timestamp }
func (e BaseEvent) GetConversationID() string { return e.ConversationID }
func (e BaseEvent) GetTurnNumber() int        { return e.TurnNumber }

// UserMessageEvent announces the user message opening a turn.
type UserMessageEvent struct {
	BaseEvent
	Message        string `json:"message"`
	IsWrapped      bool   `json:"is_wrapped"`
	OriginalText   string `json:"original_text,omitempty"`
	TurnsRemaining int    `json:"turns_remaining"`
}

// AssistantStreamStartEvent marks the start of a streamed model response.
type AssistantStreamStartEvent struct {
	BaseEvent
	Model string `json:"model"`
}

// AssistantStreamChunkEvent carries one increment of streamed text.
type AssistantStreamChunkEvent struct {
	BaseEvent
	Content string `json:"content"`
}

// AssistantStreamEndEvent marks the end of a streamed model response.
type AssistantStreamEndEvent struct {
	BaseEvent
}

// AssistantMessageEvent carries the complete assistant message for the turn.
type AssistantMessageEvent struct {
	BaseEvent
	Content   string           `json:"content"`
	ToolCalls []aisdk.ToolCall `json:"tool_calls,omitempty"`
	Model     string           `json:"model"`
}

// ToolCallRequestEvent announces a tool call the assistant requested, in
// stream arrival order.
type ToolCallRequestEvent struct {
	BaseEvent
	ToolCall aisdk.ToolCall `json:"tool_call"`
}

// ToolCallResponseEvent carries a completed tool call's normalized result.
type ToolCallResponseEvent struct {
	BaseEvent
	ToolName string        `json:"tool_name"`
	ToolID   string        `json:"tool_id"`
	Content  string        `json:"content"`
	Duration time.Duration `json:"duration"`
}

// ToolCallErrorEvent carries a failed tool call.
type ToolCallErrorEvent struct {
	BaseEvent
	ToolName string        `json:"tool_name"`
	ToolID   string        `json:"tool_id"`
	Error    error         `json:"error"`
	Duration time.Duration `json:"duration"`
}

// SystemMessageEvent carries out-of-band engine notices.
type SystemMessageEvent struct {
	BaseEvent
	Message string `json:"message"`
	Purpose string `json:"purpose"`
}

// ErrorEvent reports an error the run survived or stopped on.
type ErrorEvent struct {
	BaseEvent
	Error   error  `json:"error"`
	Context string `json:"context"`
}

// TurnCompleteEvent marks the end of one turn.
type TurnCompleteEvent struct {
	BaseEvent
	TurnsRemaining int            `json:"turns_remaining"`
	State          ExecutionState `json:"state"`
}

// ConversationCompleteEvent marks the end of a run.
type ConversationCompleteEvent struct {
	BaseEvent
	Reason         string `json:"reason"`
	TotalTurns     int    `json:"total_turns"`
	TurnsRemaining int    `json:"turns_remaining"`
}

// EventSink receives engine events. Send must be safe to call from the
// conversation goroutine without blocking for long.
type EventSink interface {
	Send(event ConversationEvent) error
	Close() error
}

// EventProcessor consumes events delivered by a sink.
type EventProcessor interface {
	Process(event ConversationEvent) error
	Close() error
}

// ChannelEventSink fans events out to processors through a buffered channel,
// decoupling the conversation loop from rendering.
type ChannelEventSink struct {
	events     chan ConversationEvent
	processors []EventProcessor
	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewChannelEventSink starts a sink delivering to the given processors in
// registration order.
func NewChannelEventSink(bufferSize int, logger *slog.Logger, processors ...EventProcessor) *ChannelEventSink {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	sink := &ChannelEventSink{
		events:     make(chan ConversationEvent, bufferSize),
		processors: processors,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go sink.processEvents()
	return sink
}

// Send queues an event for processing. Sending to a closed sink is an error,
// never a panic.
func (s *ChannelEventSink) Send(event ConversationEvent) error {
	select {
	case <-s.quit:
		return fmt.Errorf("event sink is closed")
	default:
	}

	select {
	case s.events <- event:
		return nil
	case <-s.quit:
		return fmt.Errorf("event sink is closed")
	}
}

// flushEvent is a marker that travels the queue like any other event.
// dispatch closes done instead of forwarding it to processors.
type flushEvent struct {
	BaseEvent
	done chan struct{}
}

// Flush blocks until every event queued before the call has been processed.
// A closed sink flushes trivially, since Close already drained the queue.
func (s *ChannelEventSink) Flush() {
	marker := &flushEvent{done: make(chan struct{})}
	if err := s.Send(marker); err != nil {
		return
	}
	select {
	case <-marker.done:
	case <-s.done:
	}
}

// Close drains queued events, then closes the processors. Safe to call more
// than once.
func (s *ChannelEventSink) Close() error {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done

	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			s.logger.Warn("failed to close event processor", "error", err)
		}
	}
	return nil
}

func (s *ChannelEventSink) processEvents() {
	defer close(s.done)

	for {
		select {
		case event := <-s.events:
			s.dispatch(event)
		case <-s.quit:
			for {
				select {
				case event := <-s.events:
					s.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (s *ChannelEventSink) dispatch(event ConversationEvent) {
	if marker, ok := event.(*flushEvent); ok {
		close(marker.done)
		return
	}
	for _, processor := range s.processors {
		if err := processor.Process(event); err != nil {
			s.logger.Warn("event processor failed", "event", event.GetType(), "error", err)
		}
	}
}
