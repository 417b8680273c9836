package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/shopchat/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			customer_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_shop_customer ON conversations(shop_id, customer_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS store_settings (
			shop_id TEXT PRIMARY KEY,
			openai_key TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			storefront_token TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindOrCreateConversation resolves the active conversation for a
// (shop, customer) pair, picking the most recently updated match. An empty
// customer id always creates a fresh conversation so guest sessions stay
// distinct. The read-then-create sequence is not transactional: two first
// messages racing for the same new customer can create two conversations.
func (s *SQLiteStore) FindOrCreateConversation(ctx context.Context, shopID, customerID string) (*domain.Conversation, error) {
	if customerID != "" {
		var conv domain.Conversation
		var cust sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT conversation_id, shop_id, customer_id, created_at, updated_at FROM conversations
			 WHERE shop_id = ? AND customer_id = ? ORDER BY updated_at DESC LIMIT 1`,
			shopID, customerID).Scan(&conv.ConversationID, &conv.ShopID, &cust, &conv.CreatedAt, &conv.UpdatedAt)
		if err == nil {
			if cust.Valid {
				conv.CustomerID = cust.String
			}
			return &conv, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("%w: find conversation: %v", ErrPersistence, err)
		}
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ConversationID: "conv_" + uuid.New().String()[:8],
		ShopID:         shopID,
		CustomerID:     customerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	var cust sql.NullString
	if customerID != "" {
		cust = sql.NullString{String: customerID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, shop_id, customer_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ConversationID, conv.ShopID, cust, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %v", ErrPersistence, err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by id. Returns nil when absent.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var cust sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, shop_id, customer_id, created_at, updated_at FROM conversations WHERE conversation_id = ?`,
		conversationID).Scan(&conv.ConversationID, &conv.ShopID, &cust, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get conversation: %v", ErrPersistence, err)
	}
	if cust.Valid {
		conv.CustomerID = cust.String
	}
	return &conv, nil
}

// AppendMessage inserts an immutable message and refreshes the owning
// conversation's updated_at so find-or-create keeps resolving to it.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error) {
	now := time.Now().UTC()
	msg := &domain.Message{
		MessageID:      "msg_" + uuid.New().String()[:8],
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.MessageID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: append message: %v", ErrPersistence, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE conversation_id = ?`, now, conversationID); err != nil {
		return nil, fmt.Errorf("%w: touch conversation: %v", ErrPersistence, err)
	}
	return msg, nil
}

// LoadHistory returns all messages of a conversation in ascending timestamp
// order, ties broken by insertion order. The full history is replayed to the
// completion provider every turn; there is no windowing or summarization, so
// context grows without bound over a conversation's life.
func (s *SQLiteStore) LoadHistory(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, conversation_id, role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.MessageID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrPersistence, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load history: %v", ErrPersistence, err)
	}
	return messages, nil
}

// GetOrCreateSettings returns the settings row for a shop, creating an empty
// one on first read.
func (s *SQLiteStore) GetOrCreateSettings(ctx context.Context, shopID string) (*domain.StoreSettings, error) {
	settings, err := s.getSettings(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	now := time.Now().UTC()
	settings = &domain.StoreSettings{ShopID: shopID, CreatedAt: now, UpdatedAt: now}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO store_settings (shop_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(shop_id) DO NOTHING`,
		shopID, now, now)
	if err != nil {
		return nil, fmt.Errorf("%w: create settings: %v", ErrPersistence, err)
	}
	return settings, nil
}

// UpdateSettings upserts the given fields, leaving nil fields untouched.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, shopID string, update domain.SettingsUpdate) (*domain.StoreSettings, error) {
	current, err := s.GetOrCreateSettings(ctx, shopID)
	if err != nil {
		return nil, err
	}

	if update.OpenAIKey != nil {
		current.OpenAIKey = *update.OpenAIKey
	}
	if update.SystemPrompt != nil {
		current.SystemPrompt = *update.SystemPrompt
	}
	if update.StorefrontToken != nil {
		current.StorefrontToken = *update.StorefrontToken
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE store_settings SET openai_key = ?, system_prompt = ?, storefront_token = ?, updated_at = ? WHERE shop_id = ?`,
		current.OpenAIKey, current.SystemPrompt, current.StorefrontToken, current.UpdatedAt, shopID)
	if err != nil {
		return nil, fmt.Errorf("%w: update settings: %v", ErrPersistence, err)
	}
	return current, nil
}

func (s *SQLiteStore) getSettings(ctx context.Context, shopID string) (*domain.StoreSettings, error) {
	var settings domain.StoreSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT shop_id, openai_key, system_prompt, storefront_token, created_at, updated_at FROM store_settings WHERE shop_id = ?`,
		shopID).Scan(&settings.ShopID, &settings.OpenAIKey, &settings.SystemPrompt, &settings.StorefrontToken, &settings.CreatedAt, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get settings: %v", ErrPersistence, err)
	}
	return &settings, nil
}
