package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xiaot623/shopchat/domain"
	"github.com/xiaot623/shopchat/llm"
	"github.com/xiaot623/shopchat/store"
	"github.com/xiaot623/shopchat/tests/helpers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedCompleter drives the handlers like a real provider stream would.
type scriptedCompleter struct {
	script func(handlers llm.Handlers) error
}

func (c *scriptedCompleter) StreamConversation(ctx context.Context, req llm.StreamRequest, handlers llm.Handlers) (*llm.ChatMessage, error) {
	if err := c.script(handlers); err != nil {
		return nil, err
	}
	return &llm.ChatMessage{Role: "assistant"}, nil
}

// recordingExecutor returns canned results per tool and records calls.
type recordingExecutor struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (e *recordingExecutor) Catalog() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{{Name: "search_shop_catalog"}}
}

func (e *recordingExecutor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	e.calls = append(e.calls, name)
	if err := e.errs[name]; err != nil {
		return nil, err
	}
	return e.results[name], nil
}

func newTestService(t *testing.T, completer Completer, executor ToolExecutor) (*Service, *store.SQLiteStore) {
	t.Helper()
	st := helpers.NewTestStore(t)
	svc := New(st,
		func(apiKey string) Completer { return completer },
		func(shopDomain, accessToken, customerID string) ToolExecutor { return executor },
		testLogger())
	return svc, st
}

func TestRespondValidation(t *testing.T) {
	svc, st := newTestService(t, &scriptedCompleter{script: func(llm.Handlers) error { return nil }}, &recordingExecutor{})
	ctx := context.Background()

	if _, err := svc.Respond(ctx, domain.ChatRequest{ShopID: "acme"}); !errors.Is(err, ErrMissingMessage) {
		t.Fatalf("expected ErrMissingMessage, got %v", err)
	}
	if _, err := svc.Respond(ctx, domain.ChatRequest{Message: "hi"}); !errors.Is(err, ErrMissingShop) {
		t.Fatalf("expected ErrMissingShop, got %v", err)
	}

	// Rejected turns must leave no trace.
	conv, err := st.FindOrCreateConversation(ctx, "acme.myshopify.com", "")
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}
	history, err := st.LoadHistory(ctx, conv.ConversationID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no persisted messages after rejected turns, got %d", len(history))
	}
}

func TestRespondBufferedTurn(t *testing.T) {
	completer := &scriptedCompleter{script: func(h llm.Handlers) error {
		h.OnText("Here are ")
		h.OnText("some boots.")
		h.OnToolUse(domain.ToolCall{Name: "search_shop_catalog", Arguments: map[string]any{"query": "boots"}})
		return nil
	}}
	executor := &recordingExecutor{results: map[string]any{"search_shop_catalog": map[string]any{"products": []any{}}}}
	svc, st := newTestService(t, completer, executor)
	ctx := context.Background()

	reply, err := svc.Respond(ctx, domain.ChatRequest{Message: "boots?", ShopDomain: "acme", CustomerID: "cust_1"})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if reply.Message != "Here are some boots." {
		t.Fatalf("unexpected reply text: %q", reply.Message)
	}
	if len(reply.ToolResults) != 1 || reply.ToolResults[0].Tool != "search_shop_catalog" || reply.ToolResults[0].Error != "" {
		t.Fatalf("unexpected tool results: %+v", reply.ToolResults)
	}
	if len(executor.calls) != 1 {
		t.Fatalf("expected one tool dispatch, got %v", executor.calls)
	}

	// Bare shop names normalize to the full store domain.
	conv, err := st.GetConversation(ctx, reply.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv == nil || conv.ShopID != "acme.myshopify.com" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	history, err := st.LoadHistory(ctx, reply.ConversationID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(history))
	}
	if history[0].Role != domain.RoleUser || history[0].Content != "boots?" {
		t.Fatalf("unexpected user message: %+v", history[0])
	}
	if history[1].Role != domain.RoleAssistant || history[1].Content != "Here are some boots." {
		t.Fatalf("unexpected assistant message: %+v", history[1])
	}
}

func TestRespondStreamEventSequence(t *testing.T) {
	completer := &scriptedCompleter{script: func(h llm.Handlers) error {
		h.OnText("Checking")
		h.OnToolUse(domain.ToolCall{Name: "search_shop_catalog", Arguments: map[string]any{"query": "boots"}})
		h.OnText(" done.")
		return nil
	}}
	executor := &recordingExecutor{results: map[string]any{"search_shop_catalog": "ok"}}
	svc, _ := newTestService(t, completer, executor)

	var events []domain.StreamEvent
	err := svc.RespondStream(context.Background(), domain.ChatRequest{Message: "boots?", ShopID: "acme.myshopify.com"},
		func(event domain.StreamEvent) { events = append(events, event) })
	if err != nil {
		t.Fatalf("RespondStream failed: %v", err)
	}

	wantTypes := []domain.EventType{
		domain.EventTypeText,
		domain.EventTypeToolCall,
		domain.EventTypeToolResult,
		domain.EventTypeText,
		domain.EventTypeDone,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("unexpected event count: %d (%+v)", len(events), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].Type)
		}
	}
}

func TestStreamedAndBufferedPersistIdentically(t *testing.T) {
	script := func(h llm.Handlers) error {
		h.OnText("Same answer.")
		return nil
	}
	svc, st := newTestService(t, &scriptedCompleter{script: script}, &recordingExecutor{})
	ctx := context.Background()

	reply, err := svc.Respond(ctx, domain.ChatRequest{Message: "q1", ShopID: "acme.myshopify.com", CustomerID: "cust_a"})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if err := svc.RespondStream(ctx, domain.ChatRequest{Message: "q2", ShopID: "acme.myshopify.com", CustomerID: "cust_b"},
		func(domain.StreamEvent) {}); err != nil {
		t.Fatalf("RespondStream failed: %v", err)
	}

	buffered, err := st.LoadHistory(ctx, reply.ConversationID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	streamedConv, err := st.FindOrCreateConversation(ctx, "acme.myshopify.com", "cust_b")
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}
	streamed, err := st.LoadHistory(ctx, streamedConv.ConversationID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	if len(buffered) != 2 || len(streamed) != 2 {
		t.Fatalf("expected 2 messages each, got %d and %d", len(buffered), len(streamed))
	}
	for i := range buffered {
		if buffered[i].Role != streamed[i].Role {
			t.Fatalf("message %d role differs between delivery modes", i)
		}
	}
	if buffered[1].Content != streamed[1].Content {
		t.Fatalf("delivery modes persisted different replies: %q vs %q", buffered[1].Content, streamed[1].Content)
	}
}

func TestToolErrorDoesNotAbortTurn(t *testing.T) {
	completer := &scriptedCompleter{script: func(h llm.Handlers) error {
		h.OnToolUse(domain.ToolCall{Name: "search_shop_catalog", Arguments: map[string]any{"query": "x"}})
		h.OnText("Sorry, search is down.")
		return nil
	}}
	executor := &recordingExecutor{errs: map[string]error{"search_shop_catalog": errors.New("backend down")}}
	svc, _ := newTestService(t, completer, executor)

	var events []domain.StreamEvent
	err := svc.RespondStream(context.Background(), domain.ChatRequest{Message: "x", ShopID: "acme.myshopify.com"},
		func(event domain.StreamEvent) { events = append(events, event) })
	if err != nil {
		t.Fatalf("RespondStream failed: %v", err)
	}

	var sawToolError, sawDone bool
	for _, e := range events {
		if e.Type == domain.EventTypeToolError {
			sawToolError = true
		}
		if e.Type == domain.EventTypeDone {
			sawDone = true
		}
	}
	if !sawToolError || !sawDone {
		t.Fatalf("expected tool_error followed by done, got %+v", events)
	}
}

func TestCompletionErrorPersistsPartialText(t *testing.T) {
	completer := &scriptedCompleter{script: func(h llm.Handlers) error {
		h.OnText("I was about to say")
		return errors.New("stream cut")
	}}
	svc, st := newTestService(t, completer, &recordingExecutor{})
	ctx := context.Background()

	_, err := svc.Respond(ctx, domain.ChatRequest{Message: "hi", ShopID: "acme.myshopify.com", CustomerID: "cust_1"})
	if err == nil {
		t.Fatalf("expected completion error")
	}

	conv, err := st.FindOrCreateConversation(ctx, "acme.myshopify.com", "cust_1")
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}
	history, err := st.LoadHistory(ctx, conv.ConversationID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user message plus partial reply, got %d", len(history))
	}
	if history[1].Role != domain.RoleAssistant || history[1].Content != "I was about to say" {
		t.Fatalf("unexpected partial reply: %+v", history[1])
	}
}

func TestCompletionErrorWithoutTextPersistsNothingExtra(t *testing.T) {
	completer := &scriptedCompleter{script: func(h llm.Handlers) error {
		return errors.New("immediate failure")
	}}
	svc, st := newTestService(t, completer, &recordingExecutor{})
	ctx := context.Background()

	_, err := svc.Respond(ctx, domain.ChatRequest{Message: "hi", ShopID: "acme.myshopify.com", CustomerID: "cust_1"})
	if err == nil {
		t.Fatalf("expected completion error")
	}

	conv, err := st.FindOrCreateConversation(ctx, "acme.myshopify.com", "cust_1")
	if err != nil {
		t.Fatalf("FindOrCreateConversation failed: %v", err)
	}
	history, err := st.LoadHistory(ctx, conv.ConversationID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Role != domain.RoleUser {
		t.Fatalf("expected only the user message, got %+v", history)
	}
}

func TestNormalizeShopID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"acme", "acme.myshopify.com"},
		{"Acme.MyShopify.com", "acme.myshopify.com"},
		{"  acme  ", "acme.myshopify.com"},
		{"shop.example.com", "shop.example.com"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeShopID(c.in); got != c.want {
			t.Fatalf("NormalizeShopID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
