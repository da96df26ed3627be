package executor

import (
	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
)

// ExecutionState is the outcome of a single model turn.
type ExecutionState int

const (
	// StateTextResponse means the model answered with text and no tool calls.
	StateTextResponse ExecutionState = iota
	// StateToolCallsNeeded means the model requested tool calls.
	StateToolCallsNeeded
	// StateToolCallsCompleted means a tool batch finished and results are ready.
	StateToolCallsCompleted
	// StateError means the turn failed.
	StateError
)

func (s ExecutionState) String() string {
	switch s {
	case StateTextResponse:
		return "text_response"
	case StateToolCallsNeeded:
		return "tool_calls_needed"
	case StateToolCallsCompleted:
		return "tool_calls_completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RunState is the terminal state of a full conversation run.
type RunState string

const (
	// RunStateCompleted means the assistant signalled task_complete or, in
	// one-shot mode, answered with plain text.
	RunStateCompleted RunState = "completed"
	// RunStateMaxTurnsExceeded means the turn budget ran out first.
	RunStateMaxTurnsExceeded RunState = "max_turns_exceeded"
	// RunStateAwaitingUserInput means control went back to the user, either
	// after a plain text answer in interactive mode or an ask_question call.
	RunStateAwaitingUserInput RunState = "awaiting_user_input"
	// RunStateCancelled means the context was cancelled mid-run.
	RunStateCancelled RunState = "cancelled"
	// RunStateError means the run stopped on an unexpected error.
	RunStateError RunState = "error"
)

// Completion reasons carried by conversation_complete events.
const (
	ReasonTaskComplete = "task_complete"
	ReasonMaxTurns     = "max_turns"
	ReasonQuestion     = "question"
	ReasonCancelled    = "cancelled"
	ReasonError        = "error"
)

// StepRequest describes one model turn.
type StepRequest struct {
	// Conversation history. The step never mutates it; the updated copy is
	// returned in StepResult.
	Conversation *aisdk.Conversation

	// Message is the new user message for this turn, already wrapped if
	// wrapping applies. Nil when continuing after tool execution.
	Message *aisdk.Message

	// UserText is the unwrapped text of Message, for display and storage.
	UserText string

	ModelClient aisdk.ModelClient

	// ModelParams are per-model sampling overrides forwarded to the agent.
	ModelParams map[string]any

	SessionID      string
	ConversationID string

	// Toolbox supplies the tool definitions advertised to the model.
	Toolbox *agent.DefaultToolbox

	// Bridge resolves the tool calls the model requests.
	Bridge *ToolBridge

	Callbacks *Callbacks
	EventSink EventSink

	TurnNumber     int
	TurnsRemaining int
}

// StepResult is the outcome of one model turn or tool batch.
type StepResult struct {
	State    ExecutionState
	Response *StreamResponse

	// ToolCalls requested by the assistant this turn, in emission order.
	ToolCalls []aisdk.ToolCall

	// ToolResults produced by a tool batch, one tool message per executed
	// call, in the same order.
	ToolResults []*aisdk.Message

	// Exit is set when a control-flow tool fired during the batch.
	Exit *ExitSignal

	// AssistantMessageID is the stored id of the assistant message, when
	// persistence is configured.
	AssistantMessageID string

	// UpdatedConversation is the history including this turn's messages.
	UpdatedConversation *aisdk.Conversation
}

// ToolExecutionRequest describes one assistant message's tool batch.
type ToolExecutionRequest struct {
	// ToolCalls to execute, strictly in this order.
	ToolCalls []aisdk.ToolCall

	// Bridge resolves each call. A nil bridge turns every call into an
	// error-shaped result but never aborts the batch.
	Bridge *ToolBridge

	SessionID      string
	ConversationID string

	// AssistantMessageID links persisted tool executions back to the
	// requesting assistant message.
	AssistantMessageID string

	// Provider and Model annotate persisted rows.
	Provider string
	Model    string

	Callbacks *Callbacks
	EventSink EventSink

	TurnNumber int
}

// RunRequest describes a full conversation run.
type RunRequest struct {
	Conversation *aisdk.Conversation

	// UserMessage is the raw first user message. It is wrapped with turn
	// context before sending; the stored transcript keeps the raw text.
	UserMessage string

	ModelClient aisdk.ModelClient

	// ModelParams are per-model sampling overrides forwarded to each step.
	ModelParams map[string]any

	SessionID      string
	ConversationID string

	Toolbox *agent.DefaultToolbox
	Bridge  *ToolBridge

	Callbacks *Callbacks
	EventSink EventSink

	// MaxTurns overrides the service default when > 0.
	MaxTurns int

	// OneShot ends the run after a plain text answer instead of handing
	// control back to the prompt.
	OneShot bool
}

// RunResult is the terminal outcome of a conversation run.
type RunResult struct {
	State RunState

	// Reason mirrors the conversation_complete event reason, when one was
	// emitted.
	Reason string

	// Question is the pending question when State is awaiting input after
	// an ask_question call.
	Question string

	// FinalText is the last assistant text, or the task_complete summary.
	FinalText string

	TotalTurns int

	Conversation *aisdk.Conversation
}
