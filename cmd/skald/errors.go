package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/skald-dev/skald/src/executor"
	"github.com/skald-dev/skald/src/orclient"
)

// Exit codes, stable for scripting.
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitConfig      = 3
	ExitAuth        = 4
	ExitNetwork     = 5
	ExitInterrupted = 6
)

// configError marks failures before the app came up, so scripts can tell a
// bad config from a failed run.
type configError struct {
	err error
}

func (e *configError) Error() string {
	return fmt.Sprintf("configuration: %v", e.err)
}

func (e *configError) Unwrap() error {
	return e.err
}

// exitCode maps an error to its exit code by type, not by message text.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cfgErr *configError
	var apiErr *orclient.APIError
	var netErr net.Error
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, orclient.ErrNoAPIKey):
		return ExitAuth
	case errors.As(err, &apiErr) && (apiErr.IsAuthError() || apiErr.StatusCode == http.StatusForbidden):
		return ExitAuth
	case errors.Is(err, executor.ErrPromptTextRequired):
		return ExitUsage
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return ExitNetwork
	case errors.Is(err, executor.ErrMaxTurnsExceeded):
		return ExitError
	default:
		return ExitError
	}
}
