package executor

import "errors"

var (
	// Request validation errors.
	ErrPromptTextRequired   = errors.New("prompt text is required")
	ErrModelClientRequired  = errors.New("model client is required")
	ErrConversationRequired = errors.New("conversation is required")
	ErrDatabaseRequired     = errors.New("database is required")

	// Session errors.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMaxTurnsExceeded reports a run that spent its whole turn budget
	// without reaching an exit tool.
	ErrMaxTurnsExceeded = errors.New("maximum turns exceeded")
)
