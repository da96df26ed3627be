package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/mcp"
	"github.com/skald-dev/skald/src/security"
)

// Control-flow tool names the loop intercepts. Their definitions are
// advertised to the model like any other tool, but the bridge answers them
// with a fixed acknowledgement instead of executing anything.
const (
	ToolNameTaskComplete = "task_complete"
	ToolNameAskQuestion  = "ask_question"
)

// Fixed acknowledgements the control-flow tools answer with.
const (
	TaskCompleteAck = "Task marked as complete."
	AskQuestionAck  = "Question forwarded to the user."
)

// emptyResultText stands in for successful results with no content, so the
// model never sees an empty tool message.
const emptyResultText = "(no output)"

// ToolKind says where a tool call resolved.
type ToolKind int

const (
	ToolKindControlFlow ToolKind = iota
	ToolKindBuiltin
	ToolKindRemote
	ToolKindUnknown
)

func (k ToolKind) String() string {
	switch k {
	case ToolKindControlFlow:
		return "control_flow"
	case ToolKindBuiltin:
		return "builtin"
	case ToolKindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ExitSignal is raised by a control-flow tool to end the run.
type ExitSignal struct {
	// Tool is ToolNameTaskComplete or ToolNameAskQuestion.
	Tool string

	// Summary is task_complete's optional closing summary.
	Summary string

	// Question is ask_question's question for the user.
	Question string
}

// InvokeResult is the bridge's answer for one tool call: a single string for
// the model, already error-prefixed when the call failed.
type InvokeResult struct {
	Kind     ToolKind
	Content  string
	IsError  bool
	Exit     *ExitSignal
	Duration time.Duration
}

// BridgeConfig wires a ToolBridge.
type BridgeConfig struct {
	// Toolbox resolves built-in and remote tools by name.
	Toolbox *agent.DefaultToolbox

	// Gate authorizes remote calls. Nil gets a default gate, which denies
	// anything the default policy would prompt for.
	Gate *security.Gate

	// Audit records remote invocation attempts. Nil disables auditing.
	Audit *security.AuditLogger

	// SessionID annotates audit entries.
	SessionID string

	Logger *slog.Logger
}

// ToolBridge is the single entry point for every tool call the model
// requests. It resolves control-flow pseudo-tools first, then registered
// tools, dispatching remote ones through the security pipeline. Failures of
// any shape come back as error-text results; only context cancellation is
// returned as an error.
type ToolBridge struct {
	toolbox   *agent.DefaultToolbox
	gate      *security.Gate
	audit     *security.AuditLogger
	sessionID string
	logger    *slog.Logger
}

func NewToolBridge(cfg BridgeConfig) *ToolBridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := cfg.Gate
	if gate == nil {
		gate = security.NewGate(nil, nil, logger)
	}
	return &ToolBridge{
		toolbox:   cfg.Toolbox,
		gate:      gate,
		audit:     cfg.Audit,
		sessionID: cfg.SessionID,
		logger:    logger.With("component", "tool_bridge"),
	}
}

// Invoke resolves and executes one tool call. The returned error is non-nil
// only when the context was cancelled; every other failure is normalized
// into the result so the conversation can continue.
func (b *ToolBridge) Invoke(ctx context.Context, call *aisdk.ToolCall) (*InvokeResult, error) {
	if call == nil {
		return &InvokeResult{
			Kind:    ToolKindUnknown,
			Content: errorText("missing tool call"),
			IsError: true,
		}, nil
	}

	name := call.Function.Name
	switch name {
	case ToolNameTaskComplete, ToolNameAskQuestion:
		return b.invokeControlFlow(name, call)
	}

	if b.toolbox != nil {
		if tool, ok := b.toolbox.GetTool(name); ok {
			if remote, isRemote := tool.(*mcp.RemoteTool); isRemote {
				return b.invokeRemote(ctx, remote, call)
			}
			return b.invokeBuiltin(ctx, call)
		}
	}

	b.logger.Warn("model requested unknown tool", "tool", name)
	return &InvokeResult{
		Kind:    ToolKindUnknown,
		Content: errorText(fmt.Sprintf("tool %q is not available", name)),
		IsError: true,
	}, nil
}

// invokeControlFlow answers an exit tool without executing anything.
func (b *ToolBridge) invokeControlFlow(name string, call *aisdk.ToolCall) (*InvokeResult, error) {
	var args struct {
		Summary  string `json:"summary"`
		Question string `json:"question"`
	}
	if err := json.Unmarshal(call.NormalizedArguments(), &args); err != nil {
		b.logger.Debug("unparseable control-flow arguments", "tool", name, "error", err)
	}

	exit := &ExitSignal{Tool: name, Summary: args.Summary, Question: args.Question}
	ack := TaskCompleteAck
	if name == ToolNameAskQuestion {
		ack = AskQuestionAck
	}
	return &InvokeResult{
		Kind:    ToolKindControlFlow,
		Content: ack,
		Exit:    exit,
	}, nil
}

func (b *ToolBridge) invokeBuiltin(ctx context.Context, call *aisdk.ToolCall) (*InvokeResult, error) {
	start := time.Now()
	resp, err := b.safeExecute(ctx, call)
	duration := time.Since(start)

	if err != nil {
		if isCancellation(ctx, err) {
			return nil, err
		}
		return &InvokeResult{
			Kind:     ToolKindBuiltin,
			Content:  errorText(err.Error()),
			IsError:  true,
			Duration: duration,
		}, nil
	}

	content, isErr := normalizeResponse(resp)
	return &InvokeResult{
		Kind:     ToolKindBuiltin,
		Content:  content,
		IsError:  isErr,
		Duration: duration,
	}, nil
}

// safeExecute runs a toolbox tool, turning panics into plain errors so a
// misbehaving tool cannot take down the conversation loop.
func (b *ToolBridge) safeExecute(ctx context.Context, call *aisdk.ToolCall) (resp *aisdk.ToolResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("tool panicked", "tool", call.Function.Name, "panic", r)
			resp = nil
			err = fmt.Errorf("tool %s panicked: %v", call.Function.Name, r)
		}
	}()
	return b.toolbox.ExecuteTool(ctx, call)
}

// invokeRemote runs the full security pipeline for an MCP-backed tool:
// authorize, race against the server's timeout, and record exactly one audit
// entry for the attempt whatever its fate.
func (b *ToolBridge) invokeRemote(ctx context.Context, remote *mcp.RemoteTool, call *aisdk.ToolCall) (*InvokeResult, error) {
	server := remote.ServerName()
	name := call.Function.Name
	args := call.NormalizedArguments()

	entry := &security.AuditLogEntry{
		Timestamp:  time.Now(),
		SessionID:  b.sessionID,
		ServerName: server,
		ToolName:   name,
		ToolCallID: call.ID,
		Args:       args,
	}

	decision, authErr := b.gate.Authorize(ctx, security.ConfirmRequest{
		Server:     server,
		Tool:       name,
		ToolCallID: call.ID,
		Arguments:  args,
	})
	entry.Decision = decision
	if authErr != nil {
		if isCancellation(ctx, authErr) {
			entry.Outcome = security.OutcomeCancelled
			b.auditLog(entry)
			return nil, authErr
		}

		var blocked *security.ToolBlockedError
		if errors.As(authErr, &blocked) {
			entry.Outcome = security.OutcomeBlocked
		} else {
			entry.Outcome = security.OutcomeDenied
		}
		entry.Error = authErr.Error()
		b.auditLog(entry)
		return &InvokeResult{
			Kind:    ToolKindRemote,
			Content: errorText(authErr.Error()),
			IsError: true,
		}, nil
	}

	timeout := b.gate.Policy().TimeoutFor(server)
	start := time.Now()
	resp, execErr := security.RunWithTimeout(ctx, timeout, server, name, b.logger, func(execCtx context.Context) (*aisdk.ToolResponse, error) {
		return remote.Execute(execCtx, call)
	})
	duration := time.Since(start)

	if execErr != nil {
		entry.Error = execErr.Error()

		if isCancellation(ctx, execErr) {
			entry.Outcome = security.OutcomeCancelled
			b.auditLog(entry)
			return nil, execErr
		}

		var timedOut *security.ToolTimeoutError
		if errors.As(execErr, &timedOut) {
			entry.Outcome = security.OutcomeTimeout
			b.auditLog(entry)
		} else {
			entry.Outcome = security.OutcomeError
			entry.DurationMs = duration.Milliseconds()
			b.auditLog(entry)
		}
		return &InvokeResult{
			Kind:     ToolKindRemote,
			Content:  errorText(execErr.Error()),
			IsError:  true,
			Duration: duration,
		}, nil
	}

	content, isErr := normalizeResponse(resp)
	entry.DurationMs = duration.Milliseconds()
	if isErr {
		entry.Outcome = security.OutcomeError
		entry.Error = content
	} else {
		entry.Outcome = security.OutcomeExecuted
	}
	b.auditLog(entry)

	return &InvokeResult{
		Kind:     ToolKindRemote,
		Content:  content,
		IsError:  isErr,
		Duration: duration,
	}, nil
}

func (b *ToolBridge) auditLog(entry *security.AuditLogEntry) {
	if b.audit == nil {
		return
	}
	b.audit.Log(entry)
}

// normalizeResponse flattens a tool response into the one string the model
// receives. JSON content is compacted, empty success becomes a placeholder,
// and error responses gain the recognizable prefix.
func normalizeResponse(resp *aisdk.ToolResponse) (string, bool) {
	if resp == nil {
		return emptyResultText, false
	}

	content := strings.TrimSpace(string(resp.Content))
	if resp.IsError {
		if content == "" {
			content = "tool execution failed"
		}
		return errorText(content), true
	}
	if content == "" {
		return emptyResultText, false
	}
	if json.Valid([]byte(content)) && (strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[")) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(content)); err == nil {
			return buf.String(), false
		}
	}
	return content, false
}

// errorText prefixes a failure message so the model can recognize it.
func errorText(msg string) string {
	if strings.HasPrefix(msg, "Error:") {
		return msg
	}
	return "Error: " + msg
}

// isCancellation distinguishes caller cancellation from a tool that merely
// returned a context error while the conversation is still live.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
