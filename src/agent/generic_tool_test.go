package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skald-dev/skald/src/aisdk"
)

func TestGenericToolReflectsSchema(t *testing.T) {
	tool := newEchoTool(t, "echo")

	schema := tool.GetParameters()
	require.NotNil(t, schema)
	assert.Contains(t, schema.Required, "text")

	chat := ToChatTool(tool)
	assert.Equal(t, "function", chat.Type)
	assert.Equal(t, "echo", chat.Function.Name)
	assert.Equal(t, "echoes its input", chat.Function.Description)
	assert.Same(t, schema, chat.Function.Parameters)
}

func TestGenericToolExecute(t *testing.T) {
	tool := newEchoTool(t, "echo")

	t.Run("success", func(t *testing.T) {
		resp, err := tool.Execute(context.Background(), callFor("echo", `{"text":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, "success", resp.Type)
		assert.False(t, resp.IsError)
		assert.JSONEq(t, `{"text":"hello"}`, string(resp.Content))
	})

	t.Run("malformed arguments become error response", func(t *testing.T) {
		resp, err := tool.Execute(context.Background(), callFor("echo", `{"text":`))
		require.NoError(t, err)
		assert.True(t, resp.IsError)
		assert.Contains(t, string(resp.Content), "failed to parse input")
	})

	t.Run("missing required field becomes error response", func(t *testing.T) {
		resp, err := tool.Execute(context.Background(), callFor("echo", `{}`))
		require.NoError(t, err)
		assert.True(t, resp.IsError)
		assert.Contains(t, string(resp.Content), "required field 'text' is missing")
	})

	t.Run("empty arguments normalized before parsing", func(t *testing.T) {
		resp, err := tool.Execute(context.Background(), callFor("echo", ``))
		require.NoError(t, err)
		assert.True(t, resp.IsError)
		assert.Contains(t, string(resp.Content), "required field 'text' is missing")
	})
}

func TestGenericToolHandlerError(t *testing.T) {
	tool, err := NewGenericTool("fails", "always fails",
		func(ctx context.Context, input echoInput) (echoOutput, error) {
			return echoOutput{}, errors.New("backend unavailable")
		})
	require.NoError(t, err)

	resp, execErr := tool.Execute(context.Background(), callFor("fails", `{"text":"x"}`))
	require.NoError(t, execErr)
	assert.True(t, resp.IsError)
	assert.Equal(t, "backend unavailable", string(resp.Content))
}

func TestNewGenericToolRejectsNonStructInput(t *testing.T) {
	_, err := NewGenericTool("bad", "non-struct input",
		func(ctx context.Context, input string) (echoOutput, error) {
			return echoOutput{}, nil
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a struct")
}

func TestStaticTool(t *testing.T) {
	tool := &StaticTool{
		Name:        "task_complete",
		Description: "Signal that the task is finished",
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return &aisdk.ToolResponse{Type: "success", Content: []byte("ok")}, nil
		},
	}

	assert.Equal(t, "function", tool.GetType())
	assert.Equal(t, "task_complete", tool.GetName())

	resp, err := tool.Execute(context.Background(), callFor("task_complete", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Content))

	bare := &StaticTool{Name: "noop"}
	_, err = bare.Execute(context.Background(), callFor("noop", `{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no executor")
}
