package orclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
)

func sseHandler(t *testing.T, frames []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "%s\n\n", frame)
			flusher.Flush()
		}
	}
}

func openStream(t *testing.T, frames []string) aisdk.StreamInterface {
	t.Helper()
	srv := httptest.NewServer(sseHandler(t, frames))
	t.Cleanup(srv.Close)

	client := testClient(t, srv)
	stream, err := client.createChatCompletionStream(context.Background(), &aisdk.ChatCompletionRequest{
		Model:    "anthropic/claude-sonnet-4",
		Messages: []*aisdk.Message{aisdk.NewUserMessage("hello")},
	})
	if err != nil {
		t.Fatalf("createChatCompletionStream() error = %v", err)
	}
	t.Cleanup(func() { stream.Close() })
	return stream
}

func TestStreamTextDeltas(t *testing.T) {
	stream := openStream(t, []string{
		`: OPENROUTER PROCESSING`,
		`data: {"choices":[{"delta":{"role":"assistant","content":"Hel"},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: {"choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
		`data: [DONE]`,
	})

	var text string
	for {
		chunk, err := stream.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if chunk.Type != aisdk.ChunkTypeText {
			t.Fatalf("chunk type = %v, want text", chunk.Type)
		}
		text += chunk.Text
	}
	if text != "Hello" {
		t.Errorf("collected text = %q, want Hello", text)
	}
}

func TestStreamAccumulatesToolCalls(t *testing.T) {
	stream := openStream(t, []string{
		`data: {"choices":[{"delta":{"content":"Checking."},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"read_file","arguments":""}}]},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go.mod\"}"}}]},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"name":"list_directory","arguments":"{}"}}]},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	})

	var chunks []*aisdk.StreamChunk
	for {
		chunk, err := stream.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want text + 2 tool calls", len(chunks))
	}
	if chunks[0].Type != aisdk.ChunkTypeText || chunks[0].Text != "Checking." {
		t.Errorf("chunks[0] = %+v", chunks[0])
	}

	first := chunks[1].ToolCall
	if first.ID != "call_1" || first.Function.Name != "read_file" {
		t.Errorf("first call = %+v", first)
	}
	if string(first.Function.Arguments) != `{"path":"go.mod"}` {
		t.Errorf("first call arguments = %s", first.Function.Arguments)
	}

	// The second call never got an ID on the wire; one is synthesized so
	// results can reference it.
	second := chunks[2].ToolCall
	if second.ID != "call_auto_1" {
		t.Errorf("second call ID = %q, want call_auto_1", second.ID)
	}
	if second.Function.Name != "list_directory" {
		t.Errorf("second call = %+v", second)
	}
}

func TestStreamMidStreamError(t *testing.T) {
	stream := openStream(t, []string{
		`data: {"choices":[{"delta":{"content":"par"},"finish_reason":null}]}`,
		`data: {"error":{"message":"upstream overloaded","code":502}}`,
	})

	chunk, err := stream.Read()
	if err != nil || chunk.Text != "par" {
		t.Fatalf("first Read() = %v, %v", chunk, err)
	}

	_, err = stream.Read()
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502 from numeric code", apiErr.StatusCode)
	}
}

func TestStreamTruncatedWithoutDone(t *testing.T) {
	stream := openStream(t, []string{
		`data: {"choices":[{"delta":{"content":"partial"},"finish_reason":null}]}`,
	})

	chunk, err := stream.Read()
	if err != nil || chunk.Text != "partial" {
		t.Fatalf("first Read() = %v, %v", chunk, err)
	}

	// Server closed the body with no [DONE]; the stream ends cleanly.
	if _, err := stream.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Read() after truncation = %v, want io.EOF", err)
	}
}

func TestStreamReadAfterClose(t *testing.T) {
	stream := openStream(t, []string{
		`data: {"choices":[{"delta":{"content":"x"},"finish_reason":null}]}`,
		`data: [DONE]`,
	})

	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := stream.Read(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Read() after Close = %v, want %v", err, ErrStreamClosed)
	}
}

func TestStreamOpenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API key","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	client := testClient(t, srv)
	_, err := client.createChatCompletionStream(context.Background(), &aisdk.ChatCompletionRequest{
		Model:    "openai/gpt-4o",
		Messages: []*aisdk.Message{aisdk.NewUserMessage("hello")},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsAuthError() {
		t.Errorf("IsAuthError() = false for %v", apiErr)
	}
}
