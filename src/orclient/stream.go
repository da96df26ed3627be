package orclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/skald-dev/skald/src/aisdk"
)

// createChatCompletionStream opens an SSE completion stream.
func (c *Client) createChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	wire := buildWireRequest(req, true)

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPost, "/chat/completions", body, true)
	if err != nil {
		return nil, err
	}
	return newChatStream(resp, c.logger), nil
}

// Server-sent event payloads for streamed completions.
type streamEvent struct {
	Choices []streamChoice `json:"choices"`
	Usage   *aisdk.Usage   `json:"usage"`
	Error   *streamError   `json:"error"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamDelta struct {
	Content   string          `json:"content"`
	ToolCalls []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type streamError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// chatStream adapts the SSE wire into the neutral pull interface. Text deltas
// pass through as they arrive; tool-call deltas accumulate by index and
// surface as whole calls once the model stops emitting them.
type chatStream struct {
	resp    *http.Response
	reader  *bufio.Reader
	logger  *slog.Logger
	pending []*aisdk.StreamChunk
	calls   map[int]*pendingCall
	order   []int
	done    bool
	closed  bool
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

var _ aisdk.StreamInterface = (*chatStream)(nil)

func newChatStream(resp *http.Response, logger *slog.Logger) *chatStream {
	return &chatStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
		logger: logger,
		calls:  make(map[int]*pendingCall),
	}
}

func (s *chatStream) Read() (*aisdk.StreamChunk, error) {
	for {
		if s.closed {
			return nil, ErrStreamClosed
		}
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.done {
			return nil, io.EOF
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			// The transport ended without a [DONE] marker. Surface
			// whatever accumulated before reporting the cut.
			s.flushCalls()
			s.done = true
			if len(s.pending) == 0 && err != io.EOF {
				return nil, fmt.Errorf("openrouter: stream interrupted: %w", err)
			}
			continue
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, ":") {
			// Blank separators and comment frames. OpenRouter sends
			// ": OPENROUTER PROCESSING" keep-alives while a slow
			// upstream warms up.
			continue
		}

		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			s.flushCalls()
			s.done = true
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Debug("skipping malformed stream frame", "error", err)
			continue
		}
		if event.Error != nil {
			s.done = true
			return nil, streamAPIError(event.Error)
		}
		if event.Usage != nil {
			s.logger.Debug("stream usage",
				"prompt_tokens", event.Usage.PromptTokens,
				"completion_tokens", event.Usage.CompletionTokens,
				"total_tokens", event.Usage.TotalTokens)
		}

		for _, choice := range event.Choices {
			if choice.Delta.Content != "" {
				s.pending = append(s.pending, aisdk.TextChunk(choice.Delta.Content))
			}
			for _, delta := range choice.Delta.ToolCalls {
				s.accumulate(delta)
			}
			if choice.FinishReason != "" {
				s.flushCalls()
			}
		}
	}
}

func (s *chatStream) accumulate(delta toolCallDelta) {
	call, ok := s.calls[delta.Index]
	if !ok {
		call = &pendingCall{}
		s.calls[delta.Index] = call
		s.order = append(s.order, delta.Index)
	}
	if delta.ID != "" {
		call.id = delta.ID
	}
	if delta.Function.Name != "" {
		call.name = delta.Function.Name
	}
	call.args.WriteString(delta.Function.Arguments)
}

// flushCalls queues every accumulated tool call, in emission order, and
// resets the accumulator.
func (s *chatStream) flushCalls() {
	for _, idx := range s.order {
		call := s.calls[idx]
		args := call.args.String()
		if args == "" {
			args = "{}"
		}
		id := call.id
		if id == "" {
			// Some routed vendors omit call IDs; results must still
			// reference one.
			id = fmt.Sprintf("call_auto_%d", idx)
		}
		s.pending = append(s.pending, aisdk.ToolCallChunk(aisdk.ToolCall{
			ID:   id,
			Type: "function",
			Function: aisdk.FunctionCall{
				Name:      call.name,
				Arguments: json.RawMessage(args),
			},
		}))
	}
	s.calls = make(map[int]*pendingCall)
	s.order = s.order[:0]
}

func (s *chatStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Body.Close()
}

// streamAPIError converts a mid-stream error event. The code carries the
// upstream HTTP status when it is numeric.
func streamAPIError(se *streamError) *APIError {
	apiErr := &APIError{Message: se.Message, Code: codeString(se.Code)}
	if n, err := strconv.Atoi(apiErr.Code); err == nil {
		apiErr.StatusCode = n
	}
	return apiErr
}
