package aisdk

import (
	"errors"
	"io"
	"strings"
)

// StreamCallback is a function called for each chunk in a stream.
type StreamCallback func(chunk *StreamChunk) error

// StreamToCallback reads a stream and calls the callback for each chunk, in
// arrival order, until the stream ends or the callback returns an error.
func StreamToCallback(stream StreamInterface, callback StreamCallback) error {
	defer stream.Close()

	for {
		chunk, err := stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil // End of stream
			}
			return err
		}

		if chunk == nil {
			return nil // End of stream
		}

		if err := callback(chunk); err != nil {
			return err
		}
	}
}

// CollectStreamContent reads a stream and collects all text into a single
// string, discarding tool calls.
func CollectStreamContent(stream StreamInterface) (string, error) {
	var content strings.Builder

	err := StreamToCallback(stream, func(chunk *StreamChunk) error {
		if chunk.Type == ChunkTypeText {
			content.WriteString(chunk.Text)
		}
		return nil
	})

	return content.String(), err
}

// StreamToChannel converts a StreamInterface to a Go channel.
func StreamToChannel(stream StreamInterface) <-chan StreamResult {
	ch := make(chan StreamResult, 1)

	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			chunk, err := stream.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					ch <- StreamResult{Error: err}
				}
				return
			}

			if chunk == nil {
				return // End of stream
			}

			ch <- StreamResult{Chunk: chunk}
		}
	}()

	return ch
}

// StreamResult represents a result from a streaming operation.
type StreamResult struct {
	Chunk *StreamChunk
	Error error
}

// IsError returns true if this result contains an error.
func (r StreamResult) IsError() bool {
	return r.Error != nil
}

// IsChunk returns true if this result contains a chunk.
func (r StreamResult) IsChunk() bool {
	return r.Chunk != nil
}

// StreamAggregator accumulates stream chunks into a full assistant message.
// Text increments concatenate; tool calls collect in arrival order.
type StreamAggregator struct {
	content   strings.Builder
	toolCalls []ToolCall
}

// NewStreamAggregator creates a new stream aggregator.
func NewStreamAggregator() *StreamAggregator {
	return &StreamAggregator{}
}

// AddChunk processes a stream chunk and updates the aggregated state.
func (a *StreamAggregator) AddChunk(chunk *StreamChunk) {
	if chunk == nil {
		return
	}
	switch chunk.Type {
	case ChunkTypeText:
		a.content.WriteString(chunk.Text)
	case ChunkTypeToolCall:
		if chunk.ToolCall != nil {
			a.toolCalls = append(a.toolCalls, *chunk.ToolCall)
		}
	}
}

// Content returns the text accumulated so far.
func (a *StreamAggregator) Content() string {
	return a.content.String()
}

// ToolCalls returns the tool calls accumulated so far, in arrival order.
func (a *StreamAggregator) ToolCalls() []ToolCall {
	return a.toolCalls
}

// Message materializes the aggregated assistant message.
func (a *StreamAggregator) Message() *Message {
	msg := NewAssistantMessage(a.content.String())
	msg.ToolCalls = a.toolCalls
	return msg
}

// CollectStream drains a stream into a single assistant message.
func CollectStream(stream StreamInterface) (*Message, error) {
	aggregator := NewStreamAggregator()

	err := StreamToCallback(stream, func(chunk *StreamChunk) error {
		aggregator.AddChunk(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return aggregator.Message(), nil
}
