package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// server implements the Server interface over a Transport, correlating
// JSON-RPC responses to in-flight requests by ID.
type server struct {
	config    ServerConfig
	transport Transport
	logger    *slog.Logger

	requestID atomic.Int64
	pending   map[int64]chan *Message
	pendingMu sync.Mutex

	initialized  bool
	initMu       sync.Mutex
	capabilities ServerCapability
	serverInfo   *ServerInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer launches the configured server process and starts the receive
// loop. The connection is not usable until Initialize succeeds.
func NewServer(config ServerConfig, logger *slog.Logger) (Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mcp_server", config.Name)
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}

	var transport Transport
	var err error
	switch config.TransportType {
	case "", "stdio":
		transport, err = NewStdioTransport(config, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio transport: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", config.TransportType)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &server{
		config:    config,
		transport: transport,
		logger:    logger,
		pending:   make(map[int64]chan *Message),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.receiveLoop()

	return s, nil
}

// receiveLoop routes incoming messages to the pending request that owns them.
func (s *server) receiveLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		msg, err := s.transport.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("error receiving message", "error", err)
			continue
		}

		if msg.ID == nil {
			// Server-initiated notification. Logged and dropped.
			s.logger.Debug("received server notification", "method", msg.Method)
			continue
		}

		id, ok := normalizeID(msg.ID)
		if !ok {
			s.logger.Warn("response with unusable id", "id", msg.ID)
			continue
		}

		s.pendingMu.Lock()
		if ch, exists := s.pending[id]; exists {
			ch <- msg
			delete(s.pending, id)
		} else {
			s.logger.Debug("response for unknown request", "id", id)
		}
		s.pendingMu.Unlock()
	}
}

// normalizeID coerces the JSON-RPC id back to the int64 we issued. JSON
// decoding turns numbers into float64.
func normalizeID(id any) (int64, bool) {
	switch v := id.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// sendRequest sends one request and waits for its response, the per-server
// request timeout, or ctx.
func (s *server) sendRequest(ctx context.Context, method string, params any) (*Message, error) {
	id := s.requestID.Add(1)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	req := &Message{
		ID:     id,
		Method: method,
		Params: paramsJSON,
	}

	respCh := make(chan *Message, 1)
	s.pendingMu.Lock()
	s.pending[id] = respCh
	s.pendingMu.Unlock()

	dropPending := func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}

	if err := s.transport.Send(ctx, req); err != nil {
		dropPending()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case <-ctx.Done():
		dropPending()
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-time.After(s.config.Timeout):
		dropPending()
		return nil, fmt.Errorf("request %s timed out after %s", method, s.config.Timeout)
	}
}

// Initialize performs the protocol handshake.
func (s *server) Initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return nil, fmt.Errorf("already initialized")
	}

	resp, err := s.sendRequest(ctx, MethodInitialize, params)
	if err != nil {
		return nil, err
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal initialize result: %w", err)
	}

	s.capabilities = result.Capabilities
	s.serverInfo = result.ServerInfo
	s.initialized = true

	s.logger.Info("mcp server initialized",
		"protocol", result.ProtocolVersion,
		"info", s.serverInfo)

	return &result, nil
}

func (s *server) requireInit() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if !s.initialized {
		return fmt.Errorf("server %s not initialized", s.config.Name)
	}
	return nil
}

// ListTools returns the tools the server advertises. Servers without the
// tools capability yield an empty list.
func (s *server) ListTools(ctx context.Context) ([]Tool, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if s.capabilities.Tools == nil {
		return []Tool{}, nil
	}

	resp, err := s.sendRequest(ctx, MethodListTools, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a tool on the server.
func (s *server) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallToolResult, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if s.capabilities.Tools == nil {
		return nil, fmt.Errorf("server %s does not support tools", s.config.Name)
	}

	resp, err := s.sendRequest(ctx, MethodCallTool, CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, err
	}

	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool result: %w", err)
	}
	return &result, nil
}

// ListResources returns available resources.
func (s *server) ListResources(ctx context.Context) ([]Resource, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if s.capabilities.Resources == nil {
		return []Resource{}, nil
	}

	resp, err := s.sendRequest(ctx, MethodListResources, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Resources []Resource `json:"resources"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resources: %w", err)
	}
	return result.Resources, nil
}

// ReadResource reads a resource by URI.
func (s *server) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if s.capabilities.Resources == nil {
		return nil, fmt.Errorf("server %s does not support resources", s.config.Name)
	}

	resp, err := s.sendRequest(ctx, MethodReadResource, ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}

	var result ReadResourceResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource result: %w", err)
	}
	return &result, nil
}

// ListPrompts returns available prompts.
func (s *server) ListPrompts(ctx context.Context) ([]Prompt, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if s.capabilities.Prompts == nil {
		return []Prompt{}, nil
	}

	resp, err := s.sendRequest(ctx, MethodListPrompts, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Prompts []Prompt `json:"prompts"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	return result.Prompts, nil
}

// GetPrompt retrieves a prompt template.
func (s *server) GetPrompt(ctx context.Context, name string, arguments map[string]any) (*GetPromptResult, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	if s.capabilities.Prompts == nil {
		return nil, fmt.Errorf("server %s does not support prompts", s.config.Name)
	}

	resp, err := s.sendRequest(ctx, MethodGetPrompt, GetPromptParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, err
	}

	var result GetPromptResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt result: %w", err)
	}
	return &result, nil
}

// Close stops the receive loop and tears the transport down.
func (s *server) Close() error {
	s.cancel()
	s.wg.Wait()

	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
