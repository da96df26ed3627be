package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport answers every request with a scripted result, delivering the
// response id as float64 the way JSON decoding does.
type fakeTransport struct {
	incoming chan *Message
	results  map[string]json.RawMessage
	errors   map[string]*Error

	mu   sync.Mutex
	sent []*Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan *Message, 8),
		results:  make(map[string]json.RawMessage),
		errors:   make(map[string]*Error),
	}
}

func (f *fakeTransport) Send(ctx context.Context, m *Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, m)
	f.mu.Unlock()

	resp := &Message{Jsonrpc: "2.0", ID: float64(m.ID.(int64))}
	if errObj, ok := f.errors[m.Method]; ok {
		resp.Error = errObj
	} else if result, ok := f.results[m.Method]; ok {
		resp.Result = result
	} else {
		resp.Result = json.RawMessage(`{}`)
	}
	f.incoming <- resp
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-f.incoming:
		return m, nil
	}
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) sentMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]string, len(f.sent))
	for i, m := range f.sent {
		methods[i] = m.Method
	}
	return methods
}

func newTestServer(t *testing.T, ft *fakeTransport) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := &server{
		config:    ServerConfig{Name: "test", Timeout: 2 * time.Second},
		transport: ft,
		logger:    discardLogger(),
		pending:   make(map[int64]chan *Message),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.wg.Add(1)
	go s.receiveLoop()
	t.Cleanup(func() {
		cancel()
		s.wg.Wait()
	})
	return s
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		id   any
		want int64
		ok   bool
	}{
		{"int64", int64(7), 7, true},
		{"float64 from json", float64(7), 7, true},
		{"json number", json.Number("42"), 42, true},
		{"string rejected", "7", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeID(tt.id)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSendRequestCorrelatesFloatIDs(t *testing.T) {
	ft := newFakeTransport()
	ft.results[MethodPing] = json.RawMessage(`{"pong":true}`)
	s := newTestServer(t, ft)

	resp, err := s.sendRequest(context.Background(), MethodPing, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pong":true}`, string(resp.Result))
}

func TestSendRequestServerError(t *testing.T) {
	ft := newFakeTransport()
	ft.errors[MethodCallTool] = &Error{Code: ErrorCodeInvalidParams, Message: "bad params"}
	s := newTestServer(t, ft)

	_, err := s.sendRequest(context.Background(), MethodCallTool, CallToolParams{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad params")
}

func TestInitializeAndCapabilityGates(t *testing.T) {
	ft := newFakeTransport()
	init := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapability{Tools: &ToolsCapability{}},
		ServerInfo:      &ServerInfo{Name: "files", Version: "1.0"},
	}
	raw, err := json.Marshal(init)
	require.NoError(t, err)
	ft.results[MethodInitialize] = raw
	ft.results[MethodListTools] = json.RawMessage(`{"tools":[{"name":"read_file","description":"reads","inputSchema":{"type":"object"}}]}`)

	s := newTestServer(t, ft)

	_, err = s.ListTools(context.Background())
	require.Error(t, err, "listing before initialize should fail")

	result, err := s.Initialize(context.Background(), &InitializeParams{ProtocolVersion: ProtocolVersion})
	require.NoError(t, err)
	assert.Equal(t, "files", result.ServerInfo.Name)

	tools, err := s.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "read_file", tools[0].Name)

	// No resources capability, so the list short-circuits without a request.
	resources, err := s.ListResources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resources)
	assert.NotContains(t, ft.sentMethods(), MethodListResources)
}

func TestCallToolWithoutCapability(t *testing.T) {
	ft := newFakeTransport()
	raw, err := json.Marshal(InitializeResult{ProtocolVersion: ProtocolVersion})
	require.NoError(t, err)
	ft.results[MethodInitialize] = raw

	s := newTestServer(t, ft)
	_, err = s.Initialize(context.Background(), &InitializeParams{})
	require.NoError(t, err)

	_, err = s.CallTool(context.Background(), "read_file", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support tools")
}
