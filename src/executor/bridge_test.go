package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/mcp"
	"github.com/skald-dev/skald/src/security"
)

// fakeMCPServer answers CallTool from a canned result. A delay simulates a
// slow server; it deliberately ignores the context so timeout tests are
// deterministic.
type fakeMCPServer struct {
	mu     sync.Mutex
	calls  []string
	result *mcp.CallToolResult
	err    error
	delay  time.Duration
}

func (s *fakeMCPServer) Initialize(ctx context.Context, params *mcp.InitializeParams) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (s *fakeMCPServer) ListTools(ctx context.Context) ([]mcp.Tool, error) { return nil, nil }

func (s *fakeMCPServer) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &mcp.CallToolResult{Content: []mcp.ContentItem{{Type: "text", Text: "ok"}}}, nil
}

func (s *fakeMCPServer) ListResources(ctx context.Context) ([]mcp.Resource, error) { return nil, nil }

func (s *fakeMCPServer) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeMCPServer) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) { return nil, nil }

func (s *fakeMCPServer) GetPrompt(ctx context.Context, name string, arguments map[string]any) (*mcp.GetPromptResult, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeMCPServer) Close() error { return nil }

func (s *fakeMCPServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// scriptedConfirmer answers approval prompts from a fixed script.
type scriptedConfirmer struct {
	mu      sync.Mutex
	answer  security.ConfirmAnswer
	calls   int
	waitCtx bool
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, req security.ConfirmRequest) (security.ConfirmAnswer, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.waitCtx {
		<-ctx.Done()
		return security.AnswerDeny, ctx.Err()
	}
	return c.answer, nil
}

func (c *scriptedConfirmer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func remoteToolbox(t *testing.T, server mcp.Server, toolName string) *agent.DefaultToolbox {
	t.Helper()
	remote, err := mcp.NewRemoteTool("github", server, mcp.Tool{Name: toolName})
	require.NoError(t, err)

	toolbox := agent.NewToolbox[agent.Tool]()
	require.NoError(t, toolbox.RegisterTool(remote))
	return toolbox
}

func openAudit(t *testing.T) (*security.AuditLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := security.NewAuditLogger(security.AuditConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	return audit, path
}

func readAuditEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestBridgeControlFlowTaskComplete(t *testing.T) {
	bridge := NewToolBridge(BridgeConfig{Logger: testLogger()})
	call := makeToolCall("call_1", ToolNameTaskComplete, `{"summary":"All tests pass."}`)

	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, ToolKindControlFlow, result.Kind)
	assert.Equal(t, "Task marked as complete.", result.Content)
	assert.False(t, result.IsError)
	require.NotNil(t, result.Exit)
	assert.Equal(t, ToolNameTaskComplete, result.Exit.Tool)
	assert.Equal(t, "All tests pass.", result.Exit.Summary)
}

func TestBridgeControlFlowAskQuestion(t *testing.T) {
	bridge := NewToolBridge(BridgeConfig{Logger: testLogger()})
	call := makeToolCall("call_1", ToolNameAskQuestion, `{"question":"Deploy to staging or production?"}`)

	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, "Question forwarded to the user.", result.Content)
	require.NotNil(t, result.Exit)
	assert.Equal(t, ToolNameAskQuestion, result.Exit.Tool)
	assert.Equal(t, "Deploy to staging or production?", result.Exit.Question)
}

func TestBridgeControlFlowToleratesBadArguments(t *testing.T) {
	bridge := NewToolBridge(BridgeConfig{Logger: testLogger()})
	call := makeToolCall("call_1", ToolNameTaskComplete, `{"summary": tru`)

	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, "Task marked as complete.", result.Content)
	require.NotNil(t, result.Exit)
	assert.Empty(t, result.Exit.Summary)
}

func TestBridgeBuiltinToolCompactsJSONResult(t *testing.T) {
	toolbox := agent.NewToolbox[agent.Tool]()
	require.NoError(t, toolbox.RegisterTool(&agent.StaticTool{
		Name: "list_files",
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return &aisdk.ToolResponse{Content: []byte("{\n  \"files\": [ \"a.go\" ]\n}")}, nil
		},
	}))
	bridge := NewToolBridge(BridgeConfig{Toolbox: toolbox, Logger: testLogger()})

	call := makeToolCall("call_1", "list_files", `{}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, ToolKindBuiltin, result.Kind)
	assert.Equal(t, `{"files":["a.go"]}`, result.Content)
	assert.False(t, result.IsError)
}

func TestBridgeBuiltinToolEmptySuccessGetsPlaceholder(t *testing.T) {
	toolbox := agent.NewToolbox[agent.Tool]()
	require.NoError(t, toolbox.RegisterTool(&agent.StaticTool{
		Name: "touch_file",
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return &aisdk.ToolResponse{Content: []byte("  \n")}, nil
		},
	}))
	bridge := NewToolBridge(BridgeConfig{Toolbox: toolbox, Logger: testLogger()})

	call := makeToolCall("call_1", "touch_file", `{}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, "(no output)", result.Content)
	assert.False(t, result.IsError)
}

func TestBridgeBuiltinToolErrorKeepsSinglePrefix(t *testing.T) {
	toolbox := agent.NewToolbox[agent.Tool]()
	require.NoError(t, toolbox.RegisterTool(&agent.StaticTool{
		Name: "read_file",
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return &aisdk.ToolResponse{IsError: true, Content: []byte("Error: file not found")}, nil
		},
	}))
	bridge := NewToolBridge(BridgeConfig{Toolbox: toolbox, Logger: testLogger()})

	call := makeToolCall("call_1", "read_file", `{"path":"gone.go"}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: file not found", result.Content)
}

func TestBridgeBuiltinToolFailureBecomesErrorResult(t *testing.T) {
	toolbox := agent.NewToolbox[agent.Tool]()
	require.NoError(t, toolbox.RegisterTool(&agent.StaticTool{
		Name: "flaky",
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return nil, errors.New("disk full")
		},
	}))
	bridge := NewToolBridge(BridgeConfig{Toolbox: toolbox, Logger: testLogger()})

	call := makeToolCall("call_1", "flaky", `{}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: disk full", result.Content)
}

func TestBridgeBuiltinToolPanicIsRecovered(t *testing.T) {
	toolbox := agent.NewToolbox[agent.Tool]()
	require.NoError(t, toolbox.RegisterTool(&agent.StaticTool{
		Name: "unstable",
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			panic("index out of range")
		},
	}))
	bridge := NewToolBridge(BridgeConfig{Toolbox: toolbox, Logger: testLogger()})

	call := makeToolCall("call_1", "unstable", `{}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "panicked")
	assert.Contains(t, result.Content, "index out of range")
}

func TestBridgeUnknownToolIsReportedNotFatal(t *testing.T) {
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: agent.NewToolbox[agent.Tool](),
		Logger:  testLogger(),
	})

	call := makeToolCall("call_1", "transmogrify", `{}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, ToolKindUnknown, result.Kind)
	assert.True(t, result.IsError)
	assert.Equal(t, `Error: tool "transmogrify" is not available`, result.Content)
}

func TestBridgeRemoteDenylistBlocksWithoutExecuting(t *testing.T) {
	server := &fakeMCPServer{}
	audit, path := openAudit(t)
	gate := security.NewGate(security.NewPolicy(security.PolicyConfig{
		DefaultDecision: security.DecisionAllow,
		Denylist:        []string{"github:delete_*"},
	}), nil, testLogger())
	bridge := NewToolBridge(BridgeConfig{
		Toolbox:   remoteToolbox(t, server, "delete_repo"),
		Gate:      gate,
		Audit:     audit,
		SessionID: "sess-1",
		Logger:    testLogger(),
	})

	call := makeToolCall("call_1", "delete_repo", `{"repo":"skald"}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, ToolKindRemote, result.Kind)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "blocked by security policy")
	assert.Equal(t, 0, server.callCount())

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "deny", entries[0]["decision"])
	assert.Equal(t, "blocked", entries[0]["outcome"])
	assert.Equal(t, "sess-1", entries[0]["session_id"])
}

func TestBridgeRemotePromptWithoutConfirmerDenies(t *testing.T) {
	server := &fakeMCPServer{}
	audit, path := openAudit(t)
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: remoteToolbox(t, server, "get_issue"),
		Gate:    security.NewGate(nil, nil, testLogger()),
		Audit:   audit,
		Logger:  testLogger(),
	})

	call := makeToolCall("call_1", "get_issue", `{"number":7}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "no interactive prompt")
	assert.Equal(t, 0, server.callCount())

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "denied", entries[0]["outcome"])
}

func TestBridgeRemoteAllowlistExecutes(t *testing.T) {
	server := &fakeMCPServer{result: &mcp.CallToolResult{
		Content: []mcp.ContentItem{{Type: "text", Text: "issue #7 closed"}},
	}}
	audit, path := openAudit(t)
	gate := security.NewGate(security.NewPolicy(security.PolicyConfig{
		Allowlist: []string{"github:*"},
	}), nil, testLogger())
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: remoteToolbox(t, server, "close_issue"),
		Gate:    gate,
		Audit:   audit,
		Logger:  testLogger(),
	})

	call := makeToolCall("call_1", "close_issue", `{"number":7}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.Equal(t, ToolKindRemote, result.Kind)
	assert.False(t, result.IsError)
	assert.Equal(t, "issue #7 closed", result.Content)
	assert.Equal(t, 1, server.callCount())

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "allow", entries[0]["decision"])
	assert.Equal(t, "executed", entries[0]["outcome"])
}

func TestBridgeRemoteServerErrorResult(t *testing.T) {
	server := &fakeMCPServer{result: &mcp.CallToolResult{
		Content: []mcp.ContentItem{{Type: "text", Text: "rate limited"}},
		IsError: true,
	}}
	audit, path := openAudit(t)
	gate := security.NewGate(security.NewPolicy(security.PolicyConfig{
		Allowlist: []string{"github:*"},
	}), nil, testLogger())
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: remoteToolbox(t, server, "search"),
		Gate:    gate,
		Audit:   audit,
		Logger:  testLogger(),
	})

	call := makeToolCall("call_1", "search", `{"q":"panic"}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: rate limited", result.Content)

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["outcome"])
}

func TestBridgeRemoteTimeoutRecordedWithoutDuration(t *testing.T) {
	server := &fakeMCPServer{delay: 150 * time.Millisecond}
	audit, path := openAudit(t)
	gate := security.NewGate(security.NewPolicy(security.PolicyConfig{
		Allowlist:      []string{"github:*"},
		ServerTimeouts: map[string]time.Duration{"github": 20 * time.Millisecond},
	}), nil, testLogger())
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: remoteToolbox(t, server, "slow_search"),
		Gate:    gate,
		Audit:   audit,
		Logger:  testLogger(),
	})

	call := makeToolCall("call_1", "slow_search", `{}`)
	result, err := bridge.Invoke(context.Background(), &call)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "timed out")
	assert.Equal(t, 1, server.callCount())

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "timeout", entries[0]["outcome"])
	_, hasDuration := entries[0]["duration_ms"]
	assert.False(t, hasDuration, "a timed-out call has no meaningful duration")
}

func TestBridgeRemoteAllowAlwaysPromptsOnce(t *testing.T) {
	server := &fakeMCPServer{}
	audit, path := openAudit(t)
	confirmer := &scriptedConfirmer{answer: security.AnswerAllowAlways}
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: remoteToolbox(t, server, "get_issue"),
		Gate:    security.NewGate(nil, confirmer, testLogger()),
		Audit:   audit,
		Logger:  testLogger(),
	})

	for i := 0; i < 2; i++ {
		call := makeToolCall("call_1", "get_issue", `{"number":7}`)
		result, err := bridge.Invoke(context.Background(), &call)
		require.NoError(t, err)
		assert.False(t, result.IsError)
	}

	assert.Equal(t, 1, confirmer.callCount())
	assert.Equal(t, 2, server.callCount())

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "executed", entry["outcome"])
	}
}

func TestBridgeRemoteCancelledAtPrompt(t *testing.T) {
	server := &fakeMCPServer{}
	audit, path := openAudit(t)
	confirmer := &scriptedConfirmer{waitCtx: true}
	bridge := NewToolBridge(BridgeConfig{
		Toolbox: remoteToolbox(t, server, "get_issue"),
		Gate:    security.NewGate(nil, confirmer, testLogger()),
		Audit:   audit,
		Logger:  testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	call := makeToolCall("call_1", "get_issue", `{"number":7}`)
	result, err := bridge.Invoke(ctx, &call)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Equal(t, 0, server.callCount())

	require.NoError(t, audit.Close())
	entries := readAuditEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "cancelled", entries[0]["outcome"])
}
