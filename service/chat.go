// Package service drives one chat turn: persist the user message, replay
// history to the completion provider, dispatch tool calls, and persist the
// assistant's reply.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xiaot623/shopchat/domain"
	"github.com/xiaot623/shopchat/llm"
	"github.com/xiaot623/shopchat/sse"
	"github.com/xiaot623/shopchat/store"
)

var (
	// ErrMissingMessage rejects a turn with an empty message body.
	ErrMissingMessage = errors.New("missing message")
	// ErrMissingShop rejects a turn whose shop identifier cannot be resolved.
	ErrMissingShop = errors.New("missing shop identifier")
)

// Completer streams one conversation turn against the completion provider.
type Completer interface {
	StreamConversation(ctx context.Context, req llm.StreamRequest, handlers llm.Handlers) (*llm.ChatMessage, error)
}

// ToolExecutor exposes the tool catalog and executes calls for one shop.
type ToolExecutor interface {
	Catalog() []domain.ToolDeclaration
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// CompleterFactory builds a completion client with a per-shop API key.
type CompleterFactory func(apiKey string) Completer

// ExecutorFactory builds a tool executor bound to one shop's storefront
// domain, access token, and customer.
type ExecutorFactory func(shopDomain, accessToken, customerID string) ToolExecutor

// Service orchestrates chat turns.
type Service struct {
	store        store.Store
	newCompleter CompleterFactory
	newExecutor  ExecutorFactory
	logger       *slog.Logger
}

// New creates the chat service.
func New(st store.Store, newCompleter CompleterFactory, newExecutor ExecutorFactory, logger *slog.Logger) *Service {
	return &Service{
		store:        st,
		newCompleter: newCompleter,
		newExecutor:  newExecutor,
		logger:       logger,
	}
}

// NormalizeShopID canonicalizes a shop identifier to its fully-qualified
// store domain, so "acme" and "acme.myshopify.com" resolve to the same rows.
func NormalizeShopID(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	if shop == "" {
		return ""
	}
	if strings.Contains(shop, ".") {
		return shop
	}
	return shop + ".myshopify.com"
}

// Respond handles one buffered turn: incremental forwarding is suppressed and
// the final text plus all tool outcomes are returned in one reply. The
// persisted state is identical to a streamed turn.
func (s *Service) Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	conv, text, outcomes, err := s.converse(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return &domain.ChatReply{
		ConversationID: conv.ConversationID,
		Message:        text,
		ToolResults:    outcomes,
	}, nil
}

// RespondStream handles one streaming turn, emitting events through send as
// they occur and terminating with a done event on success. Events already
// emitted before a failure stay emitted.
func (s *Service) RespondStream(ctx context.Context, req domain.ChatRequest, send sse.SendFunc) error {
	conv, _, _, err := s.converse(ctx, req, send)
	if err != nil {
		return err
	}
	send(domain.DoneEvent(conv.ConversationID))
	return nil
}

// ValidateChatRequest checks the turn preconditions: a non-empty message and
// a resolvable shop identifier. It performs no side effects.
func ValidateChatRequest(req domain.ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrMissingMessage
	}
	if NormalizeShopID(firstNonEmpty(req.ShopID, req.ShopDomain)) == "" {
		return ErrMissingShop
	}
	return nil
}

// converse runs the shared turn state machine:
// receive -> persist user message -> load context -> stream and dispatch ->
// persist assistant message. emit is nil in buffered mode.
func (s *Service) converse(ctx context.Context, req domain.ChatRequest, emit sse.SendFunc) (*domain.Conversation, string, []domain.ToolOutcome, error) {
	if err := ValidateChatRequest(req); err != nil {
		return nil, "", nil, err
	}
	shopID := NormalizeShopID(firstNonEmpty(req.ShopID, req.ShopDomain))

	log := s.logger.With("shop_id", shopID)

	conv, err := s.store.FindOrCreateConversation(ctx, shopID, req.CustomerID)
	if err != nil {
		return nil, "", nil, fmt.Errorf("resolve conversation: %w", err)
	}
	log = log.With("conversation_id", conv.ConversationID)

	// The user message write is fatal: without it the model would answer a
	// question the store never recorded.
	if _, err := s.store.AppendMessage(ctx, conv.ConversationID, domain.RoleUser, req.Message); err != nil {
		return nil, "", nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := s.store.LoadHistory(ctx, conv.ConversationID)
	if err != nil {
		return nil, "", nil, fmt.Errorf("load history: %w", err)
	}

	settings, err := s.store.GetOrCreateSettings(ctx, shopID)
	if err != nil {
		return nil, "", nil, fmt.Errorf("load settings: %w", err)
	}
	if settings.StorefrontToken == "" {
		log.Warn("shop has no storefront access token; catalog tool calls will fail individually")
	}

	executor := s.newExecutor(shopID, settings.StorefrontToken, req.CustomerID)
	completer := s.newCompleter(settings.OpenAIKey)

	var assistantText strings.Builder
	var outcomes []domain.ToolOutcome

	handlers := llm.Handlers{
		OnText: func(text string) {
			assistantText.WriteString(text)
			if emit != nil {
				emit(domain.TextEvent(text))
			}
		},
		OnToolUse: func(call domain.ToolCall) {
			if emit != nil {
				emit(domain.ToolCallEvent(call.Name, call.Arguments))
			}
			result, err := executor.Execute(ctx, call.Name, call.Arguments)
			if err != nil {
				log.Error("tool execution failed", "tool", call.Name, "error", err)
				outcomes = append(outcomes, domain.ToolOutcome{Tool: call.Name, Error: err.Error()})
				if emit != nil {
					emit(domain.ToolErrorEvent(call.Name, err.Error()))
				}
				return
			}
			outcomes = append(outcomes, domain.ToolOutcome{Tool: call.Name, Result: result})
			if emit != nil {
				emit(domain.ToolResultEvent(call.Name, result))
			}
		},
	}

	_, err = completer.StreamConversation(ctx, llm.StreamRequest{
		History:   history,
		PromptKey: settings.SystemPrompt,
		Tools:     executor.Catalog(),
	}, handlers)
	if err != nil {
		// Text already forwarded stays emitted. Persist the partial reply
		// only when at least one fragment arrived.
		if assistantText.Len() > 0 {
			s.persistAssistant(ctx, log, conv.ConversationID, assistantText.String())
		}
		return nil, "", nil, fmt.Errorf("stream completion: %w", err)
	}

	if assistantText.Len() > 0 {
		s.persistAssistant(ctx, log, conv.ConversationID, assistantText.String())
	}

	return conv, assistantText.String(), outcomes, nil
}

// persistAssistant saves the assistant reply. The user already received the
// streamed answer, so a failure here is logged and swallowed.
func (s *Service) persistAssistant(ctx context.Context, log *slog.Logger, conversationID, text string) {
	if _, err := s.store.AppendMessage(ctx, conversationID, domain.RoleAssistant, text); err != nil {
		log.Error("failed to persist assistant message", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
