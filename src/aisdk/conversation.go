package aisdk

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conversation is the ordered message history shared between the engine and
// the provider adapters. The system message, when present, is always
// Messages[0]; everything else only ever appends.
type Conversation struct {
	ID            string      `json:"id"`
	Messages      []*Message  `json:"messages"`
	SystemPrompt  string      `json:"system_prompt,omitempty"`
	Tools         []*ChatTool `json:"tools,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	LastMessageAt time.Time   `json:"last_message_at,omitempty"`
	TurnCount     int         `json:"turn_count"`
	MaxTurns      int         `json:"max_turns,omitempty"`

	mu sync.Mutex
}

// NewConversation creates an empty conversation, installing the system prompt
// as the first message when one is given.
func NewConversation(systemPrompt string) *Conversation {
	conv := &Conversation{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	if systemPrompt != "" {
		conv.SetSystemPrompt(systemPrompt)
	}
	return conv
}

// SetSystemPrompt installs or replaces the system message. Calling it twice
// never produces two system messages.
func (c *Conversation) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SystemPrompt = prompt
	msg := NewSystemMessage(prompt)
	if len(c.Messages) > 0 && c.Messages[0].Role == RoleSystem {
		c.Messages[0] = msg
		return
	}
	c.Messages = append([]*Message{msg}, c.Messages...)
}

// AddMessage appends a message to the history. System messages go through
// SetSystemPrompt instead.
func (c *Conversation) AddMessage(msg *Message) {
	if msg == nil {
		return
	}
	if msg.Role == RoleSystem {
		c.SetSystemPrompt(msg.Content)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	c.Messages = append(c.Messages, msg)
	c.LastMessageAt = msg.CreatedAt
}

// AddUserMessage appends a user message.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage appends an assistant message carrying any tool calls the
// model requested.
func (c *Conversation) AddAssistantMessage(content string, toolCalls []ToolCall) *Message {
	msg := NewAssistantMessage(content)
	msg.ToolCalls = toolCalls
	c.AddMessage(msg)
	return msg
}

// AddToolMessage appends the result message for one tool call.
func (c *Conversation) AddToolMessage(name, toolCallID, content string) *Message {
	msg := NewToolMessage(name, toolCallID, content)
	c.AddMessage(msg)
	return msg
}

// MessageCount returns the number of messages including the system message.
func (c *Conversation) MessageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Messages)
}

// LastMessage returns the most recent message, or nil for an empty
// conversation.
func (c *Conversation) LastMessage() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Clone returns a conversation with its own message slice. The message
// pointers are shared; callers append to the clone, they do not mutate
// existing messages.
func (c *Conversation) Clone() *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := &Conversation{
		ID:            c.ID,
		Messages:      make([]*Message, len(c.Messages)),
		SystemPrompt:  c.SystemPrompt,
		Tools:         c.Tools,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
		TurnCount:     c.TurnCount,
		MaxTurns:      c.MaxTurns,
	}
	copy(clone.Messages, c.Messages)
	return clone
}
