package shell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ShellManager keeps one persistent shell per conversation so that commands
// within a conversation share working directory and shell state.
type ShellManager struct {
	mu     sync.RWMutex
	shells map[string]*PersistentShell
	logger *slog.Logger
}

// NewShellManager creates an empty shell manager.
func NewShellManager(logger *slog.Logger) *ShellManager {
	return &ShellManager{
		shells: make(map[string]*PersistentShell),
		logger: logger,
	}
}

// GetShell returns the shell for a conversation, creating a fresh one if none
// exists yet or the existing one has died.
func (sm *ShellManager) GetShell(conversationID string) (*PersistentShell, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if shell, ok := sm.shells[conversationID]; ok {
		if shell.Alive() {
			return shell, nil
		}
		sm.logger.Warn("replacing dead shell session", "conversation_id", conversationID, "session_id", shell.GetSessionID())
		shell.Close()
		delete(sm.shells, conversationID)
	}

	shell, err := NewPersistentShell(sm.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create shell for conversation %s: %w", conversationID, err)
	}
	sm.shells[conversationID] = shell
	sm.logger.Info("created new shell session", "conversation_id", conversationID, "session_id", shell.GetSessionID())
	return shell, nil
}

// CloseShell closes and removes the shell for a conversation. Closing a
// conversation that has no shell is a no-op.
func (sm *ShellManager) CloseShell(conversationID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	shell, ok := sm.shells[conversationID]
	if !ok {
		return nil
	}

	err := shell.Close()
	delete(sm.shells, conversationID)
	sm.logger.Info("closed shell session", "conversation_id", conversationID)
	return err
}

// CloseAllShells closes every shell session, returning the last error seen.
func (sm *ShellManager) CloseAllShells() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var lastErr error
	for conversationID, shell := range sm.shells {
		if err := shell.Close(); err != nil {
			sm.logger.Error("failed to close shell", "conversation_id", conversationID, "error", err)
			lastErr = err
		}
	}
	sm.shells = make(map[string]*PersistentShell)
	sm.logger.Info("closed all shell sessions")
	return lastErr
}

// ExecuteCommand validates and runs a command in the conversation's shell.
// If the command navigated outside the original directory the shell is moved
// back, and closed when even that fails.
func (sm *ShellManager) ExecuteCommand(ctx context.Context, conversationID, command string, timeout time.Duration) (*ShellResult, error) {
	shell, err := sm.GetShell(conversationID)
	if err != nil {
		return nil, err
	}

	if err := shell.ValidateCommand(command); err != nil {
		return nil, err
	}

	result, err := shell.ExecuteCommand(ctx, command, timeout)
	if err != nil {
		return nil, err
	}

	if !shell.IsPathWithinOriginal() {
		sm.logger.Warn("shell navigated outside original directory, resetting",
			"conversation_id", conversationID,
			"current_dir", shell.GetCurrentDirectory(),
			"original_dir", shell.GetOriginalDirectory())

		if resetErr := shell.ResetToOriginalDirectory(ctx); resetErr != nil {
			sm.logger.Error("failed to reset shell to original directory", "error", resetErr)
			sm.CloseShell(conversationID)
			return nil, fmt.Errorf("shell navigated outside allowed directory and reset failed: %w", resetErr)
		}
	}

	return result, nil
}

// GetCurrentDirectory returns the cached working directory for a
// conversation's shell, or an empty string if it has no shell yet.
func (sm *ShellManager) GetCurrentDirectory(conversationID string) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	shell, ok := sm.shells[conversationID]
	if !ok {
		return ""
	}
	return shell.GetCurrentDirectory()
}

// GetShellInfo describes the shell session for a conversation.
func (sm *ShellManager) GetShellInfo(conversationID string) map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	shell, ok := sm.shells[conversationID]
	if !ok {
		return map[string]interface{}{"exists": false}
	}

	return map[string]interface{}{
		"exists":             true,
		"session_id":         shell.GetSessionID(),
		"current_directory":  shell.GetCurrentDirectory(),
		"original_directory": shell.GetOriginalDirectory(),
		"within_original":    shell.IsPathWithinOriginal(),
	}
}

var currentConversationID string

// SetConversationContext records which conversation subsequent tool calls
// belong to.
func SetConversationContext(conversationID string) {
	currentConversationID = conversationID
}

// GetConversationContext returns the conversation recorded by
// SetConversationContext.
func GetConversationContext() string {
	return currentConversationID
}
