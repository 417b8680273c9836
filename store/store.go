// Package store defines the persistence interface and implementations.
package store

import (
	"context"
	"errors"

	"github.com/xiaot623/shopchat/domain"
)

// ErrPersistence wraps storage failures so callers can classify them.
var ErrPersistence = errors.New("persistence error")

// Store defines the interface for conversation and settings persistence.
type Store interface {
	// Conversation operations
	FindOrCreateConversation(ctx context.Context, shopID, customerID string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Message operations
	AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error)
	LoadHistory(ctx context.Context, conversationID string) ([]domain.Message, error)

	// Settings operations
	GetOrCreateSettings(ctx context.Context, shopID string) (*domain.StoreSettings, error)
	UpdateSettings(ctx context.Context, shopID string, update domain.SettingsUpdate) (*domain.StoreSettings, error)

	// Lifecycle
	Close() error
}
