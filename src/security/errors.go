package security

import (
	"fmt"
	"time"
)

// ToolBlockedError reports a call rejected by the denylist. No execution was
// attempted and no prompt was shown.
type ToolBlockedError struct {
	Server string
	Tool   string
}

func (e *ToolBlockedError) Error() string {
	return fmt.Sprintf("tool %s blocked by security policy", QualifiedName(e.Server, e.Tool))
}

// ToolDeniedError reports a call the user declined at the approval prompt,
// or one that required approval in a run with no way to ask.
type ToolDeniedError struct {
	Server string
	Tool   string
	Reason string
}

func (e *ToolDeniedError) Error() string {
	msg := fmt.Sprintf("tool %s denied", QualifiedName(e.Server, e.Tool))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ToolTimeoutError reports a call that exceeded its server's execution
// budget. The underlying call may still finish later; its result is
// discarded.
type ToolTimeoutError struct {
	Server  string
	Tool    string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", QualifiedName(e.Server, e.Tool), e.Timeout)
}

// ToolExecutionError wraps a failure raised by the tool itself.
type ToolExecutionError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", QualifiedName(e.Server, e.Tool), e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// QualifiedName joins a server and tool into the server:tool form used by
// policy patterns and audit entries. Tools without a server keep their bare
// name.
func QualifiedName(server, tool string) string {
	if server == "" {
		return tool
	}
	return server + ":" + tool
}
