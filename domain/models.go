// Package domain defines the core domain models for the storefront chat assistant.
package domain

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is a thread of messages between one shop's customer and the assistant.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	ShopID         string    `json:"shop_id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message is a single immutable message within a conversation.
// Messages are ordered by creation time; that order is replayed verbatim
// to the completion provider on every turn.
type Message struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// StoreSettings holds per-shop configuration, keyed 1:1 by shop id.
// All override fields are optional; empty means "use the process default".
type StoreSettings struct {
	ShopID          string    `json:"shop_id"`
	OpenAIKey       string    `json:"openai_key,omitempty"`
	SystemPrompt    string    `json:"system_prompt,omitempty"`
	StorefrontToken string    `json:"storefront_token,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SettingsUpdate is a partial update for StoreSettings. Nil fields are left
// untouched by the upsert.
type SettingsUpdate struct {
	OpenAIKey       *string `json:"openai_key,omitempty"`
	SystemPrompt    *string `json:"system_prompt,omitempty"`
	StorefrontToken *string `json:"storefront_token,omitempty"`
}

// InputSchema is the structural contract for a tool's arguments, shaped like
// a JSON schema object.
type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// ToolDeclaration describes one callable tool. The description is consumed by
// the model for tool selection, so it has to disambiguate between tools.
type ToolDeclaration struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ToolCall is a model-issued request to execute one tool. It only lives for
// the duration of a turn and is never persisted on its own.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolOutcome records the result of one tool call for the buffered reply.
// Exactly one of Result and Error is set.
type ToolOutcome struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ChatRequest is the inbound chat request body.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	ShopID         string `json:"shopId,omitempty"`
	CustomerID     string `json:"customerId,omitempty"`
	ShopDomain     string `json:"shopDomain,omitempty"`
}

// ChatReply is the buffered (non-streaming) chat response body.
type ChatReply struct {
	ConversationID string        `json:"conversationId"`
	Message        string        `json:"message"`
	ToolResults    []ToolOutcome `json:"toolResults"`
}
