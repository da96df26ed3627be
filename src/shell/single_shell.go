package shell

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SingleShellManager drives one persistent shell for single-conversation
// use, recreating it transparently when the underlying process dies.
type SingleShellManager struct {
	shell  *PersistentShell
	logger *slog.Logger
}

// NewSingleShellManager starts a manager with one persistent shell.
func NewSingleShellManager(logger *slog.Logger) (*SingleShellManager, error) {
	shell, err := NewPersistentShell(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistent shell: %w", err)
	}
	return &SingleShellManager{shell: shell, logger: logger}, nil
}

// ensureShell replaces the shell if it has been closed or its process died.
func (sm *SingleShellManager) ensureShell() error {
	if sm.shell != nil && sm.shell.Alive() {
		return nil
	}
	if sm.shell != nil {
		sm.logger.Warn("replacing dead shell session", "session_id", sm.shell.GetSessionID())
		sm.shell.Close()
	}
	shell, err := NewPersistentShell(sm.logger)
	if err != nil {
		return fmt.Errorf("failed to recreate persistent shell: %w", err)
	}
	sm.shell = shell
	return nil
}

// ExecuteCommand validates and runs a command in the persistent shell. A
// command that navigates outside the original directory is reported as a
// security violation and the shell is moved back.
func (sm *SingleShellManager) ExecuteCommand(ctx context.Context, command string, timeout time.Duration) (*ShellResult, error) {
	if err := sm.ensureShell(); err != nil {
		return nil, err
	}

	if err := sm.shell.ValidateCommand(command); err != nil {
		return nil, err
	}

	result, err := sm.shell.ExecuteCommand(ctx, command, timeout)
	if err != nil {
		return nil, err
	}

	if !sm.shell.IsPathWithinOriginal() {
		sm.logger.Error("command attempted to navigate outside original directory",
			"current_dir", sm.shell.GetCurrentDirectory(),
			"original_dir", sm.shell.GetOriginalDirectory(),
			"command", command)

		if resetErr := sm.shell.ResetToOriginalDirectory(ctx); resetErr != nil {
			sm.logger.Error("failed to reset shell to original directory", "error", resetErr)
			sm.shell.Close()
			if err := sm.ensureShell(); err != nil {
				return nil, fmt.Errorf("failed to recreate shell after reset failure: %w", err)
			}
		}

		return &ShellResult{
			Error:       fmt.Sprintf("Security violation: command attempted to navigate outside project directory (%s)", sm.shell.GetOriginalDirectory()),
			ExitCode:    1,
			WorkingDir:  sm.shell.GetOriginalDirectory(),
			CommandLine: command,
		}, fmt.Errorf("security violation: cannot navigate outside project directory")
	}

	return result, nil
}

// GetCurrentDirectory returns the cached current working directory.
func (sm *SingleShellManager) GetCurrentDirectory() string {
	if sm.shell == nil {
		return ""
	}
	return sm.shell.GetCurrentDirectory()
}

// GetWorkingDirectory queries the shell for its actual current directory.
func (sm *SingleShellManager) GetWorkingDirectory(ctx context.Context) (string, error) {
	if sm.shell == nil {
		return "", fmt.Errorf("no shell available")
	}
	return sm.shell.GetWorkingDirectory(ctx)
}

// UpdateWorkingDirectory forces a refresh of the cached working directory.
func (sm *SingleShellManager) UpdateWorkingDirectory(ctx context.Context) error {
	if sm.shell == nil {
		return fmt.Errorf("no shell available")
	}
	return sm.shell.UpdateWorkingDirectory(ctx)
}

// GetShellInfo describes the shell session.
func (sm *SingleShellManager) GetShellInfo() map[string]interface{} {
	if sm.shell == nil {
		return map[string]interface{}{"exists": false}
	}

	return map[string]interface{}{
		"exists":             true,
		"session_id":         sm.shell.GetSessionID(),
		"current_directory":  sm.shell.GetCurrentDirectory(),
		"original_directory": sm.shell.GetOriginalDirectory(),
		"within_original":    sm.shell.IsPathWithinOriginal(),
	}
}

// Close closes the persistent shell.
func (sm *SingleShellManager) Close() error {
	if sm.shell != nil {
		return sm.shell.Close()
	}
	return nil
}

// GetShell returns the underlying persistent shell.
func (sm *SingleShellManager) GetShell() *PersistentShell {
	return sm.shell
}
