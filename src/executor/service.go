package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/storage"
)

// DefaultMaxTurns bounds a conversation run when no explicit budget is
// configured.
const DefaultMaxTurns = 25

// Service owns conversation execution: session and conversation lookup,
// single model turns, tool batches, and the multi-turn loop.
type Service struct {
	database     *sql.DB
	projectDir   string
	logger       *slog.Logger
	systemPrompt string
	maxTurns     int
}

// ServiceConfig configures a Service. A nil Database disables persistence;
// runs still work, nothing is stored.
type ServiceConfig struct {
	Database     *sql.DB
	ProjectDir   string
	SystemPrompt string
	MaxTurns     int
	Logger       *slog.Logger
}

func NewService(config ServiceConfig) *Service {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultMaxTurns
	}

	return &Service{
		database:     config.Database,
		projectDir:   config.ProjectDir,
		logger:       config.Logger,
		systemPrompt: config.SystemPrompt,
		maxTurns:     config.MaxTurns,
	}
}

// GetOrCreateSession resolves the session to run under: an explicit id must
// exist, resume picks the latest, and otherwise a fresh session is created.
func (s *Service) GetOrCreateSession(ctx context.Context, sessionID string, resume bool) (*storage.Session, error) {
	if s.database == nil {
		return nil, ErrDatabaseRequired
	}

	if sessionID != "" {
		session, err := storage.GetSessionByID(ctx, s.database, sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return session, nil
	}

	if resume {
		session, err := storage.GetLatestSession(ctx, s.database)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	session := &storage.Session{}
	if err := storage.CreateSession(ctx, s.database, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetOrCreateConversation returns the session's current conversation,
// creating and registering one when none exists yet.
func (s *Service) GetOrCreateConversation(ctx context.Context, session *storage.Session) (*storage.Conversation, error) {
	if s.database == nil {
		return nil, ErrDatabaseRequired
	}

	if session.CurrentConversationID != nil {
		conversation, err := storage.GetConversationByID(ctx, s.database, *session.CurrentConversationID)
		if err != nil {
			return nil, err
		}
		if conversation != nil {
			return conversation, nil
		}
	}

	conversation := &storage.Conversation{
		Title:            "New Conversation",
		ProjectDirectory: s.projectDir,
	}
	if err := storage.CreateConversation(ctx, s.database, conversation); err != nil {
		return nil, err
	}

	session.ConversationIDs = append(session.ConversationIDs, conversation.ID)
	session.CurrentConversationID = &conversation.ID
	if err := storage.UpdateSession(ctx, s.database, session); err != nil {
		return nil, err
	}

	return conversation, nil
}

// NewConversation returns a fresh in-memory conversation carrying the
// configured system prompt, for runs that skip persistence.
func (s *Service) NewConversation() *aisdk.Conversation {
	return aisdk.NewConversation(s.systemPrompt)
}

// BuildConversationFromDB reconstructs the in-memory history from stored
// messages, including assistant tool calls and tool result pairing. An empty
// systemPrompt keeps the configured one.
func (s *Service) BuildConversationFromDB(ctx context.Context, conversation *storage.Conversation, systemPrompt string) (*aisdk.Conversation, error) {
	if s.database == nil {
		return nil, ErrDatabaseRequired
	}
	if systemPrompt == "" {
		systemPrompt = s.systemPrompt
	}

	messages, err := storage.GetMessagesByConversationID(ctx, s.database, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	conv := aisdk.NewConversation(systemPrompt)
	conv.ID = conversation.ID
	conv.CreatedAt = conversation.CreatedAt

	for _, msg := range messages {
		m := &aisdk.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}
		if msg.ToolCalls != nil && *msg.ToolCalls != "" {
			var toolCalls []aisdk.ToolCall
			if err := json.Unmarshal([]byte(*msg.ToolCalls), &toolCalls); err != nil {
				s.logger.Warn("skipping malformed stored tool calls", "message_id", msg.ID, "error", err)
			} else {
				m.ToolCalls = toolCalls
			}
		}
		if msg.ToolCallID != nil {
			m.ToolCallID = *msg.ToolCallID
		}
		if msg.Name != nil {
			m.Name = *msg.Name
		}
		conv.AddMessage(m)
	}

	return conv, nil
}

// SaveUserMessage stores the raw user message. Wrapped copies sent to the
// model are never persisted.
func (s *Service) SaveUserMessage(ctx context.Context, conversationID, content string) error {
	if s.database == nil {
		return ErrDatabaseRequired
	}

	return storage.CreateMessage(ctx, s.database, &storage.Message{
		ConversationID: conversationID,
		Role:           "user",
		Content:        content,
	})
}

// saveAssistantMessage stores the assistant turn and returns the stored id,
// so tool execution records can reference their requesting message.
func (s *Service) saveAssistantMessage(ctx context.Context, conversationID, provider, model string, response *StreamResponse) (string, error) {
	if s.database == nil {
		return "", nil
	}
	if response.Content == "" && len(response.ToolCalls) == 0 {
		return "", nil
	}

	msg := &storage.Message{
		ID:             storage.GenerateID(),
		ConversationID: conversationID,
		Role:           "assistant",
		Provider:       provider,
		Model:          model,
		Content:        response.Content,
	}
	if len(response.ToolCalls) > 0 {
		toolCallsJSON, err := json.Marshal(response.ToolCalls)
		if err != nil {
			return "", fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCallsStr := string(toolCallsJSON)
		msg.ToolCalls = &toolCallsStr
	}

	if err := storage.CreateMessage(ctx, s.database, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}
