package tool_runcommand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/shell"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
)

// Tool name constant
const Name = "run_command"

const runCommandPrompt = `Executes a shell command in a persistent shell session with an optional timeout.

The shell session persists across calls: environment variables, the working
directory, and shell state carry over from one command to the next.

Usage notes:
  - The command argument is required.
  - You can specify an optional timeout in seconds (up to 300). If not specified, commands time out after 30 seconds.
  - Always quote file paths that contain spaces with double quotes (e.g., cd "path with spaces").
  - When issuing multiple commands, separate them with ';' or '&&'. Do not use newlines outside of quoted strings.
  - Prefer absolute paths over cd so the working directory stays stable across the session.
  - Prefer the dedicated file tools (read_file, write_file, list_directory, grep_files) over shell equivalents like cat and ls.
  - The output contains combined stdout and stderr along with the exit code.`

// RunCommandInput represents the parameters for run_command
type RunCommandInput struct {
	Command    string `json:"command" required:"true" description:"The command to execute"`
	WorkingDir string `json:"working_dir,omitempty" description:"Working directory for the command"`
	Timeout    int    `json:"timeout,omitempty" description:"Timeout in seconds (default 30)"`
}

// RunCommandOutput represents the response from run_command
type RunCommandOutput struct {
	Command    string `json:"command" description:"The command that was executed"`
	ExitCode   int    `json:"exit_code" description:"Exit code of the command"`
	Output     string `json:"output" description:"Combined stdout and stderr output"`
	WorkingDir string `json:"working_dir" description:"Working directory where command was executed"`
	Timeout    bool   `json:"timeout" description:"Whether the command timed out"`
	Duration   string `json:"duration" description:"Time taken to execute the command"`
}

// Tool returns the run_command tool definition using GenericTool
func Tool(shellManager *shell.ShellManager) agent.Tool {
	tool, err := agent.NewGenericTool(Name, runCommandPrompt, makeRunCommandHandler(shellManager))
	if err != nil {
		// This should never happen with a well-formed handler, but we need to handle it
		panic(fmt.Sprintf("failed to create run_command tool: %v", err))
	}
	return tool
}

// makeRunCommandHandler creates a type-safe handler for the run_command tool
func makeRunCommandHandler(shellManager *shell.ShellManager) func(ctx context.Context, input RunCommandInput) (RunCommandOutput, error) {
	return func(ctx context.Context, input RunCommandInput) (RunCommandOutput, error) {
		logger := toolsutil.GetLogger()

		select {
		case <-ctx.Done():
			return RunCommandOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		// Safety check: validate working directory
		if input.WorkingDir != "" && !toolsutil.IsPathSafe(input.WorkingDir) {
			logger.Error("unsafe working directory rejected", "working_dir", input.WorkingDir)
			return RunCommandOutput{}, fmt.Errorf("unsafe working directory: %s", input.WorkingDir)
		}

		if shellManager == nil {
			logger.Error("shell manager not provided")
			return RunCommandOutput{}, fmt.Errorf("shell manager not provided")
		}

		// Get current conversation ID
		conversationID := shell.GetConversationContext()
		if conversationID == "" {
			logger.Warn("no conversation context set, using default")
			conversationID = "default"
		}

		// If working directory is specified, change to it first
		command := input.Command
		if input.WorkingDir != "" {
			command = fmt.Sprintf("cd %s && %s", input.WorkingDir, input.Command)
		}

		if input.Timeout == 0 {
			input.Timeout = 30
		}
		// Limit timeout to maximum of 5 minutes
		if input.Timeout > 300 {
			input.Timeout = 300
		}

		logger.Info("running command in persistent shell", "command", input.Command, "working_dir", input.WorkingDir, "timeout", input.Timeout, "conversation_id", conversationID)

		start := time.Now()
		ctx, cancel := context.WithTimeout(ctx, time.Duration(input.Timeout)*time.Second)
		defer cancel()

		shellResult, err := shellManager.ExecuteCommand(ctx, conversationID, command, time.Duration(input.Timeout)*time.Second)
		duration := time.Since(start)

		result := RunCommandOutput{
			Command:  input.Command,
			Duration: duration.String(),
		}

		if shellResult != nil {
			// Combine stdout and stderr for output
			var output strings.Builder
			if shellResult.Output != "" {
				output.WriteString(shellResult.Output)
			}
			if shellResult.Error != "" {
				if output.Len() > 0 {
					output.WriteString("\n")
				}
				output.WriteString(shellResult.Error)
			}

			result.Output = output.String()
			result.ExitCode = shellResult.ExitCode
			result.WorkingDir = shellResult.WorkingDir
		}

		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				logger.Error("command timed out", "command", input.Command, "timeout", input.Timeout)
				result.Timeout = true
				result.ExitCode = 124 // Standard timeout exit code
				if result.Output == "" {
					result.Output = fmt.Sprintf("command timed out after %d seconds", input.Timeout)
				}
				return result, nil
			}

			logger.Error("command failed", "command", input.Command, "error", err)

			// No shellResult means the command never ran
			if shellResult == nil {
				return RunCommandOutput{}, fmt.Errorf("command validation failed: %v", err)
			}
		} else {
			result.Timeout = false
			logger.Info("command completed successfully", "command", input.Command, "output_size", len(result.Output))
		}

		return result, nil
	}
}
