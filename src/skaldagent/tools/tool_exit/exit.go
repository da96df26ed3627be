package tool_exit

import (
	"context"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/executor"
	"github.com/skald-dev/skald/src/schema"
)

// Tool name constants. The conversation loop intercepts these by name and
// answers them itself; the executors below only run when a tool is invoked
// outside a loop, and return the same fixed acknowledgements.
const (
	TaskCompleteName = executor.ToolNameTaskComplete
	AskQuestionName  = executor.ToolNameAskQuestion
)

const taskCompletePrompt = `Signals that the requested task is finished.

Call this once the user's request has been fully carried out and verified.
Include a short summary of what was done when the task involved changes worth
recapping. Do not call this while follow-up work you already planned is still
outstanding.`

const askQuestionPrompt = `Asks the user a question and pauses for their answer.

Call this when you cannot proceed without input from the user: a missing
requirement, an ambiguous instruction, or a decision only they can make. The
question should be specific enough to answer in one reply. The conversation
resumes when the user responds.`

// TaskCompleteTool returns the task_complete control-flow tool definition.
func TaskCompleteTool() agent.Tool {
	return &agent.StaticTool{
		Name:        TaskCompleteName,
		Description: taskCompletePrompt,
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"summary": schema.String("Short summary of what was accomplished"),
		}),
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return &aisdk.ToolResponse{
				Type:    "success",
				Content: []byte(executor.TaskCompleteAck),
			}, nil
		},
	}
}

// AskQuestionTool returns the ask_question control-flow tool definition.
func AskQuestionTool() agent.Tool {
	return &agent.StaticTool{
		Name:        AskQuestionName,
		Description: askQuestionPrompt,
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"question": schema.String("The question to put to the user"),
		}, "question"),
		Executor: func(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
			return &aisdk.ToolResponse{
				Type:    "success",
				Content: []byte(executor.AskQuestionAck),
			}, nil
		},
	}
}

// Tools returns both control-flow tool definitions.
func Tools() []agent.Tool {
	return []agent.Tool{TaskCompleteTool(), AskQuestionTool()}
}
