package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/skald-dev/skald/src/aisdk"
)

type execResult struct {
	response *aisdk.ToolResponse
	err      error
}

// RunWithTimeout races fn against the server's execution budget. fn runs in
// its own goroutine; once the caller gives up, a late result is discarded
// with a warning rather than delivered. The goroutine can never block on
// hand-off. Caller cancellation surfaces as the context error, a blown
// budget as ToolTimeoutError, and a failure from fn as ToolExecutionError.
func RunWithTimeout(ctx context.Context, timeout time.Duration, server, tool string, logger *slog.Logger, fn func(context.Context) (*aisdk.ToolResponse, error)) (*aisdk.ToolResponse, error) {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultChan := make(chan execResult)
	abandoned := make(chan struct{})

	go func() {
		response, err := fn(execCtx)
		select {
		case resultChan <- execResult{response: response, err: err}:
		case <-abandoned:
			if logger != nil {
				logger.Warn("tool completed after deadline, result discarded",
					"server", server,
					"tool", tool)
			}
		}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			return nil, &ToolExecutionError{Server: server, Tool: tool, Err: res.err}
		}
		return res.response, nil
	case <-execCtx.Done():
		close(abandoned)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ToolTimeoutError{Server: server, Tool: tool, Timeout: timeout}
	}
}
