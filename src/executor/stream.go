package executor

import (
	"context"
	"errors"
	"io"

	"github.com/skald-dev/skald/src/aisdk"
)

// StreamResponse is the aggregated output of one model turn.
type StreamResponse struct {
	Content   string
	ToolCalls []aisdk.ToolCall
}

// processStream drains a model stream until EOF. Text chunks are emitted as
// assistant_stream_chunk events the moment they arrive; tool-call chunks are
// collected in arrival order and announced as tool_call_request events.
//
// On a transport error the partial response accumulated so far is returned
// alongside the error so the caller can decide whether to fall back to a
// non-streaming request. Context cancellation returns the context error.
func processStream(ctx context.Context, stream aisdk.StreamInterface, emitter *EventEmitter) (*StreamResponse, error) {
	defer stream.Close()

	agg := aisdk.NewStreamAggregator()
	for {
		if err := ctx.Err(); err != nil {
			return aggregated(agg), err
		}

		chunk, err := stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return aggregated(agg), ctxErr
			}
			return aggregated(agg), err
		}
		if chunk == nil {
			break
		}

		agg.AddChunk(chunk)
		switch chunk.Type {
		case aisdk.ChunkTypeText:
			_ = emitter.EmitAssistantStreamChunk(chunk.Text)
		case aisdk.ChunkTypeToolCall:
			if chunk.ToolCall != nil {
				_ = emitter.EmitToolCallRequest(*chunk.ToolCall)
			}
		}
	}

	return aggregated(agg), nil
}

func aggregated(agg *aisdk.StreamAggregator) *StreamResponse {
	return &StreamResponse{
		Content:   agg.Content(),
		ToolCalls: agg.ToolCalls(),
	}
}
